package protocol

import "encoding/json"

// ProtocolVersion is reported by /health and the version command.
const ProtocolVersion = 1

// Envelope is the {type, payload} wrapper used for every frame in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload is the payload of every *_ERROR event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// TypingPayload is the payload of AGENT_TYPING.
type TypingPayload struct {
	IsTyping bool `json:"isTyping"`
}

// NewEvent builds an outbound envelope. A nil payload is sent as an empty
// object so every frame carries a payload.
func NewEvent(eventType string, payload interface{}) Envelope {
	env := Envelope{Type: eventType, Payload: json.RawMessage("{}")}
	if payload == nil {
		return env
	}
	data, err := json.Marshal(payload)
	if err != nil {
		data, _ = json.Marshal(ErrorPayload{Message: err.Error()})
	}
	env.Payload = data
	return env
}

// NewErrorEvent builds an error event with a human readable message.
func NewErrorEvent(eventType, message string) Envelope {
	return NewEvent(eventType, ErrorPayload{Message: message})
}
