// Package cache stores query rewrites and their hit counters behind a single
// backend capability with interchangeable implementations.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMiss is returned by Backend.Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// Backend is a binned key/value store. Implementations own eviction.
type Backend interface {
	// Get returns the payload stored under bin/key, or ErrMiss.
	Get(ctx context.Context, bin, key string) (Payload, error)
	// Set stores p under bin/key, replacing any previous value.
	Set(ctx context.Context, bin, key string, p Payload) error
	// Delete removes bin/key. Deleting an absent key is not an error.
	Delete(ctx context.Context, bin, key string) error
}

// PayloadKind tags a Payload.
type PayloadKind uint8

const (
	// KindRaw holds bytes stored verbatim.
	KindRaw PayloadKind = iota + 1
	// KindSerialized holds bytes produced by a Serializer.
	KindSerialized
)

func (k PayloadKind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindSerialized:
		return "serialized"
	default:
		return fmt.Sprintf("PayloadKind(%d)", uint8(k))
	}
}

// Payload is the value stored in a Backend: either raw bytes or bytes
// encoded in a named format.
type Payload struct {
	Kind   PayloadKind
	Format string
	Data   []byte
}

// Raw wraps bytes that need no decoding.
func Raw(data []byte) Payload {
	return Payload{Kind: KindRaw, Data: data}
}

// Serialized wraps bytes encoded with the named format.
func Serialized(data []byte, format string) Payload {
	return Payload{Kind: KindSerialized, Format: format, Data: data}
}

// MarshalBinary encodes p as kind, format length, format, data.
func (p Payload) MarshalBinary() ([]byte, error) {
	if p.Kind != KindRaw && p.Kind != KindSerialized {
		return nil, fmt.Errorf("encode payload: invalid kind %s", p.Kind)
	}
	if len(p.Format) > 255 {
		return nil, fmt.Errorf("encode payload: format name too long (%d bytes)", len(p.Format))
	}
	buf := make([]byte, 0, 2+len(p.Format)+len(p.Data))
	buf = append(buf, byte(p.Kind), byte(len(p.Format)))
	buf = append(buf, p.Format...)
	buf = append(buf, p.Data...)
	return buf, nil
}

// UnmarshalBinary decodes an envelope written by MarshalBinary.
func (p *Payload) UnmarshalBinary(b []byte) error {
	if len(b) < 2 {
		return fmt.Errorf("decode payload: short envelope (%d bytes)", len(b))
	}
	kind := PayloadKind(b[0])
	if kind != KindRaw && kind != KindSerialized {
		return fmt.Errorf("decode payload: invalid kind %s", kind)
	}
	n := int(b[1])
	if len(b) < 2+n {
		return fmt.Errorf("decode payload: truncated format name")
	}
	p.Kind = kind
	p.Format = string(b[2 : 2+n])
	p.Data = append([]byte(nil), b[2+n:]...)
	return nil
}

// Serializer encodes values stored as KindSerialized payloads.
type Serializer interface {
	Format() string
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// JSONSerializer encodes values as JSON.
type JSONSerializer struct{}

// Format returns "json".
func (JSONSerializer) Format() string { return "json" }

// Marshal encodes v.
func (JSONSerializer) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes data into v.
func (JSONSerializer) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

// Encode serializes v into a payload.
func Encode(s Serializer, v interface{}) (Payload, error) {
	data, err := s.Marshal(v)
	if err != nil {
		return Payload{}, fmt.Errorf("serialize %s: %w", s.Format(), err)
	}
	return Serialized(data, s.Format()), nil
}

// Decode reverses Encode. It fails when p was written in another format.
func Decode(s Serializer, p Payload, v interface{}) error {
	if p.Kind != KindSerialized {
		return fmt.Errorf("decode: payload is %s, want serialized", p.Kind)
	}
	if p.Format != s.Format() {
		return fmt.Errorf("decode: payload format %q, want %q", p.Format, s.Format())
	}
	return s.Unmarshal(p.Data, v)
}
