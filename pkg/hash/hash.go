package hash

import (
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/zeebo/blake3"

	"github.com/mpc-sdk/mpc-driver/internal/params"
)

// DigestLengthBytes is the length of a Sum output.
const DigestLengthBytes = params.SecBytes * 2 // 64

// Hash is the hash function used for session identifiers, message integrity
// tags and commitments. Internally it wraps blake3, but any hash with an
// easily extendable output would work as well.
type Hash struct {
	h *blake3.Hasher
}

// New creates a Hash struct seeded with the given initial data.
func New(initialData ...WriterToWithDomain) *Hash {
	hash := &Hash{h: blake3.New()}
	for _, d := range initialData {
		_ = hash.WriteAny(d)
	}
	return hash
}

// Digest returns a reader for the current output of the function.
//
// This finalizes the current state of the hash, and returns what is
// essentially a stream of random bytes.
func (hash *Hash) Digest() io.Reader {
	return hash.h.Digest()
}

// Sum returns a slice of length DigestLengthBytes resulting from the current hash state.
// If a different length is required, use io.ReadFull(hash.Digest(), out) instead.
func (hash *Hash) Sum() []byte {
	out := make([]byte, DigestLengthBytes)
	if _, err := io.ReadFull(hash.Digest(), out); err != nil {
		panic(fmt.Sprintf("hash.Sum: internal hash failure: %v", err))
	}
	return out
}

// WriteAny takes many different data types and writes them to the hash state.
//
// Currently supported types:
//
//   - []byte
//   - *saferith.Nat, *saferith.Int, *saferith.Modulus
//   - hash.WriterToWithDomain
//
// The first two get a default domain; the last carries its own.
func (hash *Hash) WriteAny(data ...interface{}) error {
	for _, d := range data {
		var err error
		switch t := d.(type) {
		case []byte:
			err = writeWithDomain(hash.h, BytesWithDomain{
				TheDomain: "[]byte",
				Bytes:     t,
			})
		case *saferith.Nat:
			var b []byte
			b, err = t.MarshalBinary()
			if err == nil {
				err = writeWithDomain(hash.h, BytesWithDomain{TheDomain: "Nat", Bytes: b})
			}
		case *saferith.Int:
			var b []byte
			b, err = t.MarshalBinary()
			if err == nil {
				err = writeWithDomain(hash.h, BytesWithDomain{TheDomain: "Int", Bytes: b})
			}
		case *saferith.Modulus:
			var b []byte
			b, err = t.MarshalBinary()
			if err == nil {
				err = writeWithDomain(hash.h, BytesWithDomain{TheDomain: "Modulus", Bytes: b})
			}
		case WriterToWithDomain:
			err = writeWithDomain(hash.h, t)
		default:
			panic(fmt.Sprintf("hash.WriteAny: unsupported type %T", d))
		}
		if err != nil {
			return fmt.Errorf("hash: write %T: %w", d, err)
		}
	}
	return nil
}

// Clone returns a copy of the Hash in its current state.
func (hash *Hash) Clone() *Hash {
	return &Hash{h: hash.h.Clone()}
}
