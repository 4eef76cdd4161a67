// Package wire implements the Chunk-on-the-wire encoding (spec §6): a
// binary envelope over CBOR for stages that transport chunks across a
// network boundary. It promotes github.com/fxamacker/cbor/v2 — already
// pulled in transitively by the reference corpus but never imported
// directly there — to a direct, exercised dependency.
package wire

import (
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/speechflow/speechflow/internal/chunk"
)

// envelope is the on-the-wire shape: millisecond integer timestamps and a
// plain byte payload, matching spec §6 exactly.
type envelope struct {
	TimestampStart int64  `cbor:"timestampStart"`
	TimestampEnd   int64  `cbor:"timestampEnd"`
	Kind           string `cbor:"kind"`
	Type           string `cbor:"type"`
	Payload        []byte `cbor:"payload"`
}

// Encode serializes c into its CBOR envelope.
func Encode(c chunk.Chunk) ([]byte, error) {
	env := envelope{
		TimestampStart: c.TimestampStart.Milliseconds(),
		TimestampEnd:   c.TimestampEnd.Milliseconds(),
		Kind:           string(c.Kind),
		Type:           string(c.Type),
	}
	switch c.Type {
	case chunk.TypeAudio:
		env.Payload = c.Audio()
	case chunk.TypeText:
		env.Payload = []byte(c.Text())
	}
	return cbor.Marshal(env)
}

// Decode parses a CBOR envelope into a Chunk: bytes for type "audio", a
// UTF-8 string for type "text".
func Decode(data []byte) (chunk.Chunk, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return chunk.Chunk{}, err
	}

	start := time.Duration(env.TimestampStart) * time.Millisecond
	end := time.Duration(env.TimestampEnd) * time.Millisecond
	kind := chunk.Kind(env.Kind)

	switch chunk.Type(env.Type) {
	case chunk.TypeAudio:
		return chunk.NewAudio(start, end, kind, env.Payload), nil
	case chunk.TypeText:
		return chunk.NewText(start, end, kind, string(env.Payload)), nil
	default:
		return chunk.Chunk{}, chunk.ErrTypeMismatch
	}
}
