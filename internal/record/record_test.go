package record

import (
	"encoding/json"
	"testing"
)

func TestEventValidate(t *testing.T) {
	valid := Event{Type: TypeClick, Timestamp: 1700000000000, SessionID: "sess-1"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	cases := []struct {
		name string
		ev   Event
	}{
		{"missing type", Event{Timestamp: 1, SessionID: "s"}},
		{"zero timestamp", Event{Type: TypeClick, SessionID: "s"}},
		{"missing session", Event{Type: TypeClick, Timestamp: 1}},
	}
	for _, tc := range cases {
		if err := tc.ev.Validate(); err == nil {
			t.Errorf("%s: Validate returned nil", tc.name)
		}
	}
}

func TestTypedPayloadRoundTrip(t *testing.T) {
	ev := Event{
		Type:      TypeClick,
		Timestamp: 1700000000000,
		SessionID: "sess-1",
		Page:      Page{URL: "https://example.com/pricing", Path: "/pricing"},
		Data:      ClickPayload{Element: "buy", X: 10, Y: 20},
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Event
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	click, ok := back.Data.(ClickPayload)
	if !ok {
		t.Fatalf("payload decoded as %T, want ClickPayload", back.Data)
	}
	if click.Element != "buy" || click.X != 10 || click.Y != 20 {
		t.Fatalf("payload = %+v", click)
	}
}

func TestCustomPayloadRoundTrip(t *testing.T) {
	ev := Event{
		Type:      "custom_signup",
		Timestamp: 1,
		SessionID: "sess-1",
		Data:      CustomPayload{"plan": "pro", "seats": float64(4)},
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Event
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	custom, ok := back.Data.(CustomPayload)
	if !ok {
		t.Fatalf("payload decoded as %T, want CustomPayload", back.Data)
	}
	if custom["plan"] != "pro" || custom["seats"] != float64(4) {
		t.Fatalf("payload = %v", custom)
	}
}

func TestNilPayloadRoundTrip(t *testing.T) {
	ev := Event{Type: TypePageLoad, Timestamp: 1, SessionID: "sess-1"}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Event
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Data != nil {
		t.Fatalf("payload = %v, want nil", back.Data)
	}
}

func TestNewNotificationDefaults(t *testing.T) {
	n := NewNotification("Title", "Body", KindSuccess)
	if n.ID == "" {
		t.Error("no id generated")
	}
	if n.Read || n.Dismissed {
		t.Error("new notification not unread/undismissed")
	}
	if n.Timestamp <= 0 {
		t.Error("timestamp not set")
	}
	if err := n.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestUnknownKindFallsBackToInfo(t *testing.T) {
	n := NewNotification("x", "", Kind("bogus"))
	if n.Kind != KindInfo {
		t.Fatalf("kind = %q, want info fallback", n.Kind)
	}
	if Kind("bogus").Icon() != KindInfo.Icon() {
		t.Error("unknown kind icon does not fall back to info")
	}
}

func TestKindStylesFixed(t *testing.T) {
	kinds := []Kind{KindInfo, KindSuccess, KindWarning, KindError, KindMessage, KindPayment, KindSecurity, KindSystem}
	seen := make(map[string]Kind)
	for _, k := range kinds {
		if !k.Valid() {
			t.Errorf("kind %q not valid", k)
		}
		if k.Icon() == "" || k.Color() == "" {
			t.Errorf("kind %q missing icon/color", k)
		}
		if prev, dup := seen[k.Icon()]; dup {
			t.Errorf("kinds %q and %q share icon %q", prev, k, k.Icon())
		}
		seen[k.Icon()] = k
	}
}
