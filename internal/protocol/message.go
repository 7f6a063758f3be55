package protocol

import (
	"encoding/json"
	"fmt"
)

// Message is the envelope shared by every boundary. T is one of the closed
// tag sets below.
type Message[T ~string] struct {
	Type T               `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type (
	// HostMessage travels from the supervisor to the worker.
	HostMessage = Message[HostType]
	// WorkerMessage travels from the worker to the supervisor.
	WorkerMessage = Message[WorkerType]
	// ClientMessage travels from an external client to the worker.
	ClientMessage = Message[ClientType]
	// ServerMessage travels from the worker to an external client.
	ServerMessage = Message[ServerType]
)

// NewMessage builds an envelope. A nil payload leaves data empty.
func NewMessage[T ~string](typ T, payload any) (Message[T], error) {
	msg := Message[T]{Type: typ}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return msg, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	msg.Data = data
	return msg, nil
}

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
func (m Message[T]) Decode(v any) error {
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}
