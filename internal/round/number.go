package round

import (
	"encoding/binary"
	"io"
)

// Number is the index of a protocol round.
// Rounds are numbered from 0; the protocol adapter reports the index of the
// final round for each variant.
type Number uint16

// WriteTo implements io.WriterTo interface.
func (n Number) WriteTo(w io.Writer) (int64, error) {
	err := binary.Write(w, binary.BigEndian, uint16(n))
	return 2, err
}

// Domain implements hash.WriterToWithDomain.
func (Number) Domain() string {
	return "Round Number"
}
