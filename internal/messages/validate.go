package messages

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Content length caps, in runes.
const (
	MaxReplyLength    = 10000
	MaxTemplateLength = 5000
)

// ValidateContent checks free-text content against emptiness and length
// constraints. limit is in runes.
func ValidateContent(content string, limit int) error {
	if strings.TrimSpace(content) == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if n := utf8.RuneCountInString(content); n > limit {
		return &ValidationError{Field: "content", Reason: fmt.Sprintf("exceeds %d characters (%d)", limit, n)}
	}
	return nil
}

// Validate checks the fields required of every message before it enters the
// store or goes out over the wire.
func (m *Message) Validate() error {
	if strings.TrimSpace(m.LeadID) == "" {
		return &ValidationError{Field: "lead_id", Reason: "is required"}
	}
	if !m.Type.Valid() {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown type %q", m.Type)}
	}
	if m.Priority != "" && !m.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", m.Priority)}
	}
	return ValidateContent(m.Content, MaxReplyLength)
}
