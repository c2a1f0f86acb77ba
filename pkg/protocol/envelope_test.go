package protocol

import (
	"encoding/json"
	"testing"
)

func TestNewEvent_AlwaysCarriesPayload(t *testing.T) {
	for _, env := range []Envelope{
		NewEvent(EventConfigSuccess, nil),
		NewEvent(EventPong, struct{}{}),
	} {
		data, err := json.Marshal(env)
		if err != nil {
			t.Fatal(err)
		}
		var frame map[string]json.RawMessage
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatal(err)
		}
		if string(frame["payload"]) != "{}" {
			t.Errorf("%s: frame = %s, want payload {}", env.Type, data)
		}
	}
}

func TestNewErrorEvent(t *testing.T) {
	env := NewErrorEvent(EventConfigError, "bad token")
	var p ErrorPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatal(err)
	}
	if env.Type != EventConfigError || p.Message != "bad token" {
		t.Errorf("event = %s %+v", env.Type, p)
	}
}
