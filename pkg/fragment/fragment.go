// Package fragment defines the immutable memory record and its codec.
package fragment

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// IdentifierSize is the serialized length of an Identifier in bytes.
const IdentifierSize = 32

// Identifier is a 256-bit random value used as the primary key for every
// stored fragment. Identifiers are globally unique by construction and are
// never derived from fragment content.
type Identifier [IdentifierSize]byte

// NewIdentifier generates a fresh random identifier.
func NewIdentifier() (Identifier, error) {
	var id Identifier
	if _, err := rand.Read(id[:]); err != nil {
		return Identifier{}, fmt.Errorf("failed to generate identifier: %w", err)
	}
	return id, nil
}

// IdentifierFromBytes reconstructs an identifier from its serialized form.
func IdentifierFromBytes(b []byte) (Identifier, error) {
	var id Identifier
	if len(b) != IdentifierSize {
		return id, fmt.Errorf("invalid identifier length: got %d, want %d", len(b), IdentifierSize)
	}
	copy(id[:], b)
	return id, nil
}

// ParseIdentifier parses the hex string form produced by String.
func ParseIdentifier(s string) (Identifier, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Identifier{}, fmt.Errorf("invalid identifier encoding: %w", err)
	}
	return IdentifierFromBytes(b)
}

// Bytes returns the serialized identifier used as the storage key.
func (id Identifier) Bytes() []byte {
	b := make([]byte, IdentifierSize)
	copy(b, id[:])
	return b
}

// String returns the hex form of the identifier.
func (id Identifier) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalJSON encodes the identifier as a hex string.
func (id Identifier) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes the hex string form.
func (id *Identifier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseIdentifier(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Fragment is one immutable stored memory record. Fragments are created on
// store and never mutated; removal only happens through engine-level cleanup.
type Fragment struct {
	ID        Identifier `json:"id"`
	Content   []byte     `json:"content"`
	Tags      []byte     `json:"tags,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Digest    string     `json:"digest"`
}

// Encode serializes the fragment for storage.
func (f *Fragment) Encode() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fragment: %w", err)
	}
	return data, nil
}

// Decode deserializes a stored fragment record.
func Decode(data []byte) (*Fragment, error) {
	var f Fragment
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode fragment: %w", err)
	}
	return &f, nil
}

// EncodeTags serializes a tag map into the opaque blob embedded in a
// fragment. A nil or empty map encodes to nil so untagged fragments stay
// compact.
func EncodeTags(tags map[string]string) ([]byte, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	return data, nil
}

// DecodeTags deserializes a fragment's tag blob. An absent blob decodes to an
// empty map.
func DecodeTags(blob []byte) (map[string]string, error) {
	if len(blob) == 0 {
		return map[string]string{}, nil
	}
	var tags map[string]string
	if err := json.Unmarshal(blob, &tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return tags, nil
}
