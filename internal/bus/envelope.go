package bus

import (
	"encoding/json"
	"fmt"
)

// Chat modes carried by envelopes.
const (
	ModeMessage = "message"
	ModeAction  = "action"
	ModeNick    = "nick"
	ModeNames   = "names"
	ModeMsg     = "msg"
	ModeJoin    = "join"
	ModeAlert   = "alert"
)

// Envelope is one chat event in transit through the bus. It is never persisted.
type Envelope struct {
	Mode    string
	Message any
	Sender  string
	// Target is set for private messages only.
	Target string
	// Extra holds additional payload fields a mode attaches.
	Extra map[string]any
}

type wireEnvelope struct {
	Mode string          `json:"mode"`
	Data json.RawMessage `json:"data"`
}

// Data returns the JSON payload of the envelope: message, sender, target
// when set, and every Extra field.
func (e Envelope) Data() ([]byte, error) {
	fields := make(map[string]any, len(e.Extra)+3)
	for k, v := range e.Extra {
		fields[k] = v
	}
	fields["message"] = e.Message
	fields["sender"] = e.Sender
	if e.Target != "" {
		fields["target"] = e.Target
	}
	return json.Marshal(fields)
}

// Encode serializes the envelope for a pub/sub channel.
func Encode(e Envelope) ([]byte, error) {
	if e.Mode == "" {
		return nil, fmt.Errorf("encode envelope: empty mode")
	}
	data, err := e.Data()
	if err != nil {
		return nil, fmt.Errorf("encode envelope data: %w", err)
	}
	return json.Marshal(wireEnvelope{Mode: e.Mode, Data: data})
}

// Decode parses a payload produced by Encode.
func Decode(payload []byte) (Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(payload, &wire); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if wire.Mode == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing mode")
	}

	var fields map[string]any
	if len(wire.Data) > 0 {
		if err := json.Unmarshal(wire.Data, &fields); err != nil {
			return Envelope{}, fmt.Errorf("decode envelope data: %w", err)
		}
	}

	env := Envelope{Mode: wire.Mode, Message: fields["message"]}
	env.Sender, _ = fields["sender"].(string)
	env.Target, _ = fields["target"].(string)
	delete(fields, "message")
	delete(fields, "sender")
	delete(fields, "target")
	if len(fields) > 0 {
		env.Extra = fields
	}

	return env, nil
}
