package templates

import (
	"errors"
	"sync"
)

// ErrTemplateNotFound is returned when a template id is unknown
var ErrTemplateNotFound = errors.New("template not found")

// Template is a reusable message body with placeholder variables resolved
// against lead fields at send time. Read-mostly; usage counts increment on
// every send.
type Template struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Subject    string `json:"subject,omitempty"`
	Body       string `json:"body"`
	UsageCount int64  `json:"usage_count"`
}

// Library holds templates in memory.
type Library struct {
	mu   sync.RWMutex
	byID map[string]*Template
}

// NewLibrary creates an empty template library.
func NewLibrary() *Library {
	return &Library{byID: make(map[string]*Template)}
}

// Put registers or replaces a template. The usage count of an existing
// template is retained.
func (l *Library) Put(t Template) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.byID[t.ID]; ok {
		t.UsageCount = existing.UsageCount
	}
	copied := t
	l.byID[t.ID] = &copied
}

// Get returns a copy of the template with the given id.
func (l *Library) Get(id string) (Template, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.byID[id]
	if !ok {
		return Template{}, ErrTemplateNotFound
	}
	return *t, nil
}

// List returns copies of every template.
func (l *Library) List() []Template {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Template, 0, len(l.byID))
	for _, t := range l.byID {
		out = append(out, *t)
	}
	return out
}

// RenderTemplate resolves a template's subject and body against lead fields
// and increments its usage counter. The counter only moves when rendering
// succeeds.
func (l *Library) RenderTemplate(id string, fields Fields) (subject, body string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.byID[id]
	if !ok {
		return "", "", ErrTemplateNotFound
	}
	body, err = Render(t.Body, fields)
	if err != nil {
		return "", "", err
	}
	if t.Subject != "" {
		subject, err = Render(t.Subject, fields)
		if err != nil {
			return "", "", err
		}
	}
	t.UsageCount++
	return subject, body, nil
}
