package protocol

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Encoder writes one JSON envelope per line. Safe for concurrent use; writes
// are serialized so lines never interleave.
type Encoder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewEncoder creates a line encoder over w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

// Encode writes msg followed by a newline.
func (e *Encoder) Encode(msg any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Decoder reads envelopes written by an Encoder. Not safe for concurrent use.
type Decoder struct {
	dec *json.Decoder
}

// NewDecoder creates a decoder over r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: json.NewDecoder(r)}
}

// Decode reads the next envelope into v. It returns io.EOF when the peer
// closed its end cleanly.
func (d *Decoder) Decode(v any) error {
	return d.dec.Decode(v)
}
