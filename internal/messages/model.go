package messages

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type classifies a message in a lead's conversation thread.
type Type string

const (
	TypeInternalNote  Type = "internal_note"
	TypeClientMessage Type = "client_message"
	TypeClientReply   Type = "client_reply"

	// Channel types carried for compatibility with upstream records. They
	// behave exactly like client messages in the engine.
	TypeEmail Type = "email"
	TypeSMS   Type = "sms"
)

// Valid reports whether t is a known message type.
func (t Type) Valid() bool {
	switch t {
	case TypeInternalNote, TypeClientMessage, TypeClientReply, TypeEmail, TypeSMS:
		return true
	}
	return false
}

// Private reports whether messages of this type are internal-only.
// Privacy is derived from the type; there is no separate flag to keep in sync.
func (t Type) Private() bool {
	return t == TypeInternalNote
}

// Priority is the urgency attached to a message.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// DeliveryStatus tracks a message through the send protocol. It is distinct
// from read state.
type DeliveryStatus string

const (
	StatusPending DeliveryStatus = "pending"
	StatusSent    DeliveryStatus = "sent"
	StatusFailed  DeliveryStatus = "failed"
)

// tempIDPrefix marks unconfirmed ids on the wire. Code never inspects the
// prefix; pending-ness lives in the ID variant.
const tempIDPrefix = "tmp_"

// ID identifies a message. A pending ID belongs to a locally-synthesized
// record the server has not confirmed yet; a confirmed ID is authoritative.
type ID struct {
	value   string
	pending bool
}

// NewPendingID creates a locally-unique temporary id.
func NewPendingID() ID {
	return ID{value: uuid.NewString(), pending: true}
}

// ConfirmedID wraps a server-assigned id.
func ConfirmedID(value string) ID {
	return ID{value: value}
}

// IsPending reports whether the id is an unconfirmed temporary id.
func (id ID) IsPending() bool { return id.pending }

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool { return id.value == "" }

// String renders the wire form. Pending ids carry a prefix so they are
// recognizable in logs and debug output.
func (id ID) String() string {
	if id.pending {
		return tempIDPrefix + id.value
	}
	return id.value
}

// ParseID parses the wire form of an id, as found in URLs and payloads.
func ParseID(raw string) (ID, error) {
	if raw == "" {
		return ID{}, ErrMessageNotFound
	}
	if rest, ok := strings.CutPrefix(raw, tempIDPrefix); ok {
		return ID{value: rest, pending: true}, nil
	}
	return ID{value: raw}, nil
}

// Equal reports whether two ids refer to the same record.
func (id ID) Equal(other ID) bool {
	return id.value == other.value && id.pending == other.pending
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON implements json.Unmarshaler. The temp prefix is parsed once
// here, at the wire boundary, and never inspected again.
func (id *ID) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if rest, ok := strings.CutPrefix(raw, tempIDPrefix); ok {
		*id = ID{value: rest, pending: true}
		return nil
	}
	*id = ID{value: raw}
	return nil
}

// Author identifies who wrote a message.
type Author struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Message is one entry in a lead's conversation thread.
type Message struct {
	ID        ID
	LeadID    string
	Type      Type
	Author    Author
	Subject   string
	Content   string
	Priority  Priority
	Status    DeliveryStatus
	Read      bool
	ReadAt    *time.Time
	RepliedTo *ID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPrivate reports whether the message must never cross into a client-facing
// context. Derived from the type.
func (m Message) IsPrivate() bool {
	return m.Type.Private()
}

type messageJSON struct {
	ID        ID             `json:"id"`
	LeadID    string         `json:"lead_id"`
	Type      Type           `json:"type"`
	IsPrivate bool           `json:"is_private"`
	Author    Author         `json:"author"`
	Subject   string         `json:"subject,omitempty"`
	Content   string         `json:"content"`
	Priority  Priority       `json:"priority"`
	Status    DeliveryStatus `json:"status"`
	Read      bool           `json:"read"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	RepliedTo *ID            `json:"replied_to,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// MarshalJSON emits is_private as a derived, read-only field.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageJSON{
		ID:        m.ID,
		LeadID:    m.LeadID,
		Type:      m.Type,
		IsPrivate: m.IsPrivate(),
		Author:    m.Author,
		Subject:   m.Subject,
		Content:   m.Content,
		Priority:  m.Priority,
		Status:    m.Status,
		Read:      m.Read,
		ReadAt:    m.ReadAt,
		RepliedTo: m.RepliedTo,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler. Any is_private flag on the wire
// is ignored; privacy is recomputed from the type.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Message{
		ID:        raw.ID,
		LeadID:    raw.LeadID,
		Type:      raw.Type,
		Author:    raw.Author,
		Subject:   raw.Subject,
		Content:   raw.Content,
		Priority:  raw.Priority,
		Status:    raw.Status,
		Read:      raw.Read,
		ReadAt:    raw.ReadAt,
		RepliedTo: raw.RepliedTo,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
	}
	return nil
}
