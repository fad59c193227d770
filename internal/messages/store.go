package messages

import (
	"sort"
	"sync"
)

// Scope names the slice of the conversation universe a store or a merge
// operates on: a single lead, or every lead.
type Scope string

// ScopeAll covers messages for every lead.
const ScopeAll Scope = "*"

// LeadScope scopes to a single lead's thread.
func LeadScope(leadID string) Scope { return Scope(leadID) }

// Contains reports whether a message owned by leadID falls inside the scope.
func (s Scope) Contains(leadID string) bool {
	return s == ScopeAll || string(s) == leadID
}

// Store is the single shared mutable collection of message records. All
// derived views (inbox grouping, thread buckets, counters) are computed from
// snapshots of it. Reads return copies; the internal slice never escapes.
type Store struct {
	mu   sync.RWMutex
	msgs []Message

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

// NewStore creates an empty message store.
func NewStore() *Store {
	return &Store{subs: make(map[int]func())}
}

// Subscribe registers fn to run after every mutation. The returned function
// removes the subscription. Callbacks run outside the store lock.
func (s *Store) Subscribe(fn func()) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Insert adds a message, keeping records ordered by creation time.
func (s *Store) Insert(msg Message) error {
	s.mu.Lock()
	if s.indexOf(msg.ID) >= 0 {
		s.mu.Unlock()
		return ErrDuplicateID
	}
	s.msgs = append(s.msgs, msg)
	sortMessages(s.msgs)
	s.mu.Unlock()
	s.notify()
	return nil
}

// Get returns a copy of the message with the given id.
func (s *Store) Get(id ID) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.msgs[i], true
	}
	return Message{}, false
}

// Update applies fn to the message with the given id.
func (s *Store) Update(id ID, fn func(*Message)) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrMessageNotFound
	}
	fn(&s.msgs[i])
	sortMessages(s.msgs)
	s.mu.Unlock()
	s.notify()
	return nil
}

// Remove deletes the message with the given id, reporting whether it existed.
func (s *Store) Remove(id ID) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
	s.mu.Unlock()
	s.notify()
	return true
}

// Replace swaps a temporary record for its server-confirmed counterpart in a
// single mutation. The temporary record is discarded, never merged.
func (s *Store) Replace(tempID ID, confirmed Message) error {
	s.mu.Lock()
	i := s.indexOf(tempID)
	if i < 0 {
		s.mu.Unlock()
		return ErrMessageNotFound
	}
	s.msgs[i] = confirmed
	sortMessages(s.msgs)
	s.mu.Unlock()
	s.notify()
	return nil
}

// Snapshot returns a copy of every record.
func (s *Store) Snapshot() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// ForLead returns a copy of the records belonging to one lead.
func (s *Store) ForLead(leadID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Message
	for _, m := range s.msgs {
		if m.LeadID == leadID {
			out = append(out, m)
		}
	}
	return out
}

// Len reports the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// MergeAuthoritative replaces the scope's confirmed records with the
// authoritative set from the server. Locally-pending records inside the scope
// are preserved: an in-flight optimistic send must survive a refresh. Records
// absent from the authoritative set simply disappear (silent reconciliation
// of server-side deletes).
func (s *Store) MergeAuthoritative(scope Scope, authoritative []Message) {
	s.mu.Lock()
	kept := s.msgs[:0]
	for _, m := range s.msgs {
		if !scope.Contains(m.LeadID) || m.ID.IsPending() {
			kept = append(kept, m)
		}
	}
	s.msgs = append(kept, authoritative...)
	sortMessages(s.msgs)
	s.mu.Unlock()
	s.notify()
}

// indexOf must be called with the lock held.
func (s *Store) indexOf(id ID) int {
	for i := range s.msgs {
		if s.msgs[i].ID.Equal(id) {
			return i
		}
	}
	return -1
}

// sortMessages orders ascending by creation time, ties broken by id so
// repeated operations over equal timestamps stay reproducible.
func sortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID.String() < msgs[j].ID.String()
	})
}
