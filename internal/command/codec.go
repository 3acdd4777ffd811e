package command

import (
	"encoding/json"
	"errors"
)

var errEmptyKind = errors.New("command kind is empty")

// Encode serializes an envelope to its JSON wire form.
func Encode(e Envelope) ([]byte, error) {
	if e == nil {
		return nil, &SerializationError{Err: errors.New("nil envelope")}
	}
	kind := e.CommandKind()
	if kind == "" {
		return nil, &SerializationError{Err: errEmptyKind}
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, &SerializationError{Kind: kind, Err: err}
	}
	return data, nil
}

// Decode parses a payload read from topic into the envelope type of that topic's family.
// Malformed JSON and a missing kind are both reported as *DecodeError.
func Decode[E Envelope](topic string, data []byte) (E, error) {
	var cmd E
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, &DecodeError{Topic: topic, Err: err}
	}
	if cmd.CommandKind() == "" {
		return cmd, &DecodeError{Topic: topic, Err: errEmptyKind}
	}
	return cmd, nil
}
