package utils

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// SixIDHookFunc overrides NewSixID in tests when override is true.
type SixIDHookFunc func() (id SixID, override bool)

// NewSixIDHook lets tests force specific IDs (e.g. to provoke duplicate key retries).
var NewSixIDHook SixIDHookFunc

// sixIDSubtype is the BSON binary subtype used to store SixIDs.
const sixIDSubtype byte = 0x80

// ErrInvalidSixID is returned for malformed SixID strings or BSON values.
var ErrInvalidSixID = errors.New("invalid SixID")

// SixID is a 6-byte random identifier, rendered as 10 Crockford Base32 characters.
type SixID [6]byte

// NewSixID returns a random SixID.
func NewSixID() SixID {
	if NewSixIDHook != nil {
		if id, override := NewSixIDHook(); override {
			return id
		}
	}

	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		// crypto/rand only fails when the OS entropy source is broken
		panic(fmt.Sprintf("sixid: reading random bytes: %v", err))
	}
	return id
}

// IsZero reports whether the ID is unset.
func (u SixID) IsZero() bool {
	return u == SixID{}
}

// Compare orders IDs by their raw bytes.
func (u SixID) Compare(other SixID) int {
	return bytes.Compare(u[:], other[:])
}

const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var crockfordDecodeMap [256]int8

func init() {
	for i := range crockfordDecodeMap {
		crockfordDecodeMap[i] = -1
	}
	for i := 0; i < len(crockfordAlphabet); i++ {
		c := crockfordAlphabet[i]
		crockfordDecodeMap[c] = int8(i)
		if c >= 'A' && c <= 'Z' {
			crockfordDecodeMap[c+('a'-'A')] = int8(i)
		}
	}
	// Crockford aliases for easily confused characters
	for _, alias := range []struct{ from, to byte }{{'O', '0'}, {'o', '0'}, {'I', '1'}, {'i', '1'}, {'L', '1'}, {'l', '1'}} {
		crockfordDecodeMap[alias.from] = crockfordDecodeMap[alias.to]
	}
}

// String returns the 10-character Crockford Base32 form.
func (u SixID) String() string {
	out := make([]byte, 0, 10)
	var bits uint
	var offset uint
	for i := 0; i < len(u); i++ {
		bits |= uint(u[i]) << offset
		offset += 8
		for offset >= 5 {
			out = append(out, crockfordAlphabet[bits&0x1F])
			bits >>= 5
			offset -= 5
		}
	}
	if offset > 0 {
		out = append(out, crockfordAlphabet[bits&0x1F])
	}
	return string(out)
}

// ParseSixID decodes a Crockford Base32 SixID. Hyphens and spaces are ignored.
func ParseSixID(s string) (SixID, error) {
	s = strings.NewReplacer("-", "", " ", "").Replace(s)
	if len(s) != 10 {
		return SixID{}, fmt.Errorf("%w: want 10 characters, got %d", ErrInvalidSixID, len(s))
	}

	var id SixID
	var bits uint64
	var offset uint
	n := 0
	for i := 0; i < len(s); i++ {
		v := crockfordDecodeMap[s[i]]
		if v < 0 {
			return SixID{}, fmt.Errorf("%w: bad character %q", ErrInvalidSixID, s[i])
		}
		bits |= uint64(v) << offset
		offset += 5
		for offset >= 8 && n < len(id) {
			id[n] = byte(bits)
			n++
			bits >>= 8
			offset -= 8
		}
	}
	if n != len(id) {
		return SixID{}, fmt.Errorf("%w: short decode", ErrInvalidSixID)
	}
	// The last character only carries 3 bits; anything above would alias another ID.
	if bits != 0 {
		return SixID{}, fmt.Errorf("%w: non-canonical final character %q", ErrInvalidSixID, s[len(s)-1])
	}
	return id, nil
}

// MarshalBSONValue stores the ID as binary subtype 0x80.
func (u SixID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bsontype.Binary, bsoncore.AppendBinary(nil, sixIDSubtype, u[:]), nil
}

// UnmarshalBSONValue accepts binary subtype 0x80 (or generic 0x00, for data written by other tools).
func (u *SixID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t == bsontype.Null || t == bsontype.Undefined {
		*u = SixID{}
		return nil
	}
	if t != bsontype.Binary {
		return fmt.Errorf("%w: BSON type %s", ErrInvalidSixID, t)
	}
	subtype, bin, _, ok := bsoncore.ReadBinary(data)
	if !ok || len(bin) != len(u) || (subtype != sixIDSubtype && subtype != 0x00) {
		return fmt.Errorf("%w: BSON binary subtype %#x length %d", ErrInvalidSixID, subtype, len(bin))
	}
	copy(u[:], bin)
	return nil
}

// MarshalJSON renders the ID as its Base32 string.
func (u SixID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON parses a Base32 string. An empty string yields the zero ID.
func (u *SixID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*u = SixID{}
		return nil
	}
	parsed, err := ParseSixID(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
