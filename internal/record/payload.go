package record

import (
	"encoding/json"
	"fmt"
)

// Payload is the event-type-specific data attached to an Event. Built-in
// event types carry typed payloads; anything else is carried opaquely by
// CustomPayload. Payloads marshal to plain JSON objects — the union is
// keyed by the owning event's Type, not by an embedded discriminator.
type Payload interface {
	payload()
}

// Built-in event type tags.
const (
	TypePageLoad        = "page_load"
	TypeClick           = "click"
	TypeScrollMilestone = "scroll_milestone"
	TypeError           = "error"
)

// ClickPayload describes a pointer interaction.
type ClickPayload struct {
	Element string `json:"element,omitempty"`
	Text    string `json:"text,omitempty"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
}

// PageLoadPayload describes initial page timing.
type PageLoadPayload struct {
	LoadTimeMs int64  `json:"load_time_ms"`
	Referrer   string `json:"referrer,omitempty"`
}

// ScrollPayload marks a scroll-depth milestone being crossed.
type ScrollPayload struct {
	Percent int `json:"percent"`
}

// ErrorPayload captures a client-side error occurrence.
type ErrorPayload struct {
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// CustomPayload carries arbitrary key-value data for custom event types.
type CustomPayload map[string]any

func (ClickPayload) payload()    {}
func (PageLoadPayload) payload() {}
func (ScrollPayload) payload()   {}
func (ErrorPayload) payload()    {}
func (CustomPayload) payload()   {}

// MarshalJSON emits the map directly so custom payloads stay flat.
func (p CustomPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(p))
}

// DecodePayload reconstructs a typed payload from raw JSON for the given
// event type. Unknown types decode as CustomPayload. A nil or empty raw
// value yields a nil payload.
func DecodePayload(eventType string, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch eventType {
	case TypeClick:
		var p ClickPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode click payload: %w", err)
		}
		return p, nil
	case TypePageLoad:
		var p PageLoadPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode page_load payload: %w", err)
		}
		return p, nil
	case TypeScrollMilestone:
		var p ScrollPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode scroll_milestone payload: %w", err)
		}
		return p, nil
	case TypeError:
		var p ErrorPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode error payload: %w", err)
		}
		return p, nil
	default:
		var p CustomPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode custom payload: %w", err)
		}
		return p, nil
	}
}

// eventAlias avoids recursive UnmarshalJSON on Event.
type eventAlias struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id"`
	Page      Page            `json:"page"`
	Data      json.RawMessage `json:"data,omitempty"`
	Context   Context         `json:"context"`
}

// UnmarshalJSON decodes an event, reconstructing the typed payload from
// the event's type tag.
func (e *Event) UnmarshalJSON(data []byte) error {
	var a eventAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	payload, err := DecodePayload(a.Type, a.Data)
	if err != nil {
		return err
	}
	*e = Event{
		Type:      a.Type,
		Timestamp: a.Timestamp,
		SessionID: a.SessionID,
		UserID:    a.UserID,
		Page:      a.Page,
		Data:      payload,
		Context:   a.Context,
	}
	return nil
}
