package party

import (
	"encoding/binary"
	"io"
	"strconv"
)

// ByteSize is the number of bytes required to store an ID.
const ByteSize = 2

// MAX is the largest value an ID can take, and therefore also bounds the
// number of parties in a session.
const MAX = (1 << (ByteSize * 8)) - 1

// ID identifies a participant within a single session.
// IDs are assigned by the session layer and remain stable for the session's
// lifetime. The zero value is reserved and never identifies a real party;
// message headers use it to indicate a broadcast recipient.
type ID uint16

// Bytes returns a big-endian encoding of the ID, of length party.ByteSize.
func (id ID) Bytes() []byte {
	bytes := make([]byte, ByteSize)
	binary.BigEndian.PutUint16(bytes, uint16(id))
	return bytes
}

// String returns a base 10 representation of the ID.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// FromBytes reads the first party.ByteSize bytes of b and creates an ID from them.
func FromBytes(b []byte) ID {
	return ID(binary.BigEndian.Uint16(b))
}

// FromString parses a base 10 string as an ID.
func FromString(str string) (ID, error) {
	p, err := strconv.ParseUint(str, 10, 16)
	if err != nil {
		return 0, err
	}
	return ID(p), nil
}

// WriteTo implements io.WriterTo and should be used within the hash.Hash function.
func (id ID) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(id.Bytes())
	return int64(n), err
}

// Domain implements hash.WriterToWithDomain.
func (ID) Domain() string {
	return "Party ID"
}
