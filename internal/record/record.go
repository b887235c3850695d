// Package record defines the canonical shapes of trackable occurrences:
// telemetry events captured by the queue and user-facing notifications
// managed by the notification center. Records are immutable once handed
// to their owning component — mutation happens by replacement, never in
// place.
package record

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Page is a snapshot of the page (or logical screen) active at capture time.
type Page struct {
	URL   string `json:"url"`
	Path  string `json:"path"`
	Title string `json:"title,omitempty"`
}

// Context is an immutable environment snapshot captured once per record.
type Context struct {
	UserAgent string `json:"user_agent,omitempty"`
	Locale    string `json:"locale,omitempty"`
	Platform  string `json:"platform,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
	Online    bool   `json:"online"`
}

// Event is one captured telemetry occurrence with envelope metadata.
type Event struct {
	Type      string  `json:"type"`
	Timestamp int64   `json:"timestamp"` // epoch milliseconds
	SessionID string  `json:"session_id"`
	UserID    string  `json:"user_id"`
	Page      Page    `json:"page"`
	Data      Payload `json:"data,omitempty"`
	Context   Context `json:"context"`
}

// Validate checks that an event has the required envelope fields.
func (e *Event) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if e.Timestamp <= 0 {
		return fmt.Errorf("timestamp must be positive")
	}
	if e.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	return nil
}

// Kind classifies a notification for icon/color selection.
type Kind string

const (
	KindInfo     Kind = "info"
	KindSuccess  Kind = "success"
	KindWarning  Kind = "warning"
	KindError    Kind = "error"
	KindMessage  Kind = "message"
	KindPayment  Kind = "payment"
	KindSecurity Kind = "security"
	KindSystem   Kind = "system"
)

// kindStyles maps each kind to its fixed icon/color pair.
var kindStyles = map[Kind]struct{ icon, color string }{
	KindInfo:     {"info-circle", "#3b82f6"},
	KindSuccess:  {"check-circle", "#22c55e"},
	KindWarning:  {"exclamation-triangle", "#f59e0b"},
	KindError:    {"x-circle", "#ef4444"},
	KindMessage:  {"chat-bubble", "#8b5cf6"},
	KindPayment:  {"credit-card", "#14b8a6"},
	KindSecurity: {"shield", "#f97316"},
	KindSystem:   {"gear", "#6b7280"},
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := kindStyles[k]
	return ok
}

// Icon returns the icon name for the kind. Unknown kinds fall back to info.
func (k Kind) Icon() string {
	if s, ok := kindStyles[k]; ok {
		return s.icon
	}
	return kindStyles[KindInfo].icon
}

// Color returns the display color for the kind. Unknown kinds fall back to info.
func (k Kind) Color() string {
	if s, ok := kindStyles[k]; ok {
		return s.color
	}
	return kindStyles[KindInfo].color
}

// Action is a button attached to a notification.
type Action struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Primary bool   `json:"primary,omitempty"`
}

// Notification is a user-facing alert retained in the bounded history.
type Notification struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Body      string         `json:"body,omitempty"`
	Kind      Kind           `json:"kind"`
	Timestamp int64          `json:"timestamp"` // epoch milliseconds
	Read      bool           `json:"read"`
	Dismissed bool           `json:"dismissed"`
	Data      map[string]any `json:"data,omitempty"`
	Actions   []Action       `json:"actions,omitempty"`
}

// NewNotification constructs an unread notification with a generated ID
// and the current timestamp.
func NewNotification(title, body string, kind Kind) *Notification {
	if !kind.Valid() {
		kind = KindInfo
	}
	return &Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      body,
		Kind:      kind,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Validate checks that a notification has the required fields.
func (n *Notification) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("notification id is required")
	}
	if n.Title == "" {
		return fmt.Errorf("notification title is required")
	}
	if !n.Kind.Valid() {
		return fmt.Errorf("invalid notification kind: %q", n.Kind)
	}
	return nil
}
