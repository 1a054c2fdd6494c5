package round

import (
	"errors"

	"github.com/mpc-sdk/mpc-driver/pkg/party"
)

// ErrDuplicate is returned by Admit when a sender already has an entry for
// the buffered round. The first message wins; a byzantine peer must not be
// able to overwrite its own earlier contribution.
var ErrDuplicate = errors.New("round: duplicate message from sender")

// Buffer is the mailbox for a single round. It holds at most one payload per
// sender, reports completeness against a required sender set, and hands the
// collected payloads over in a deterministic order.
type Buffer struct {
	number   Number
	payloads map[party.ID][]byte
}

// NewBuffer returns an empty mailbox for round number.
func NewBuffer(number Number) *Buffer {
	return &Buffer{
		number:   number,
		payloads: map[party.ID][]byte{},
	}
}

// Number returns the round this buffer collects messages for.
func (b *Buffer) Number() Number {
	return b.number
}

// Admit stores the payload from the given sender.
// A second payload from the same sender is rejected with ErrDuplicate and
// the stored payload is left untouched.
func (b *Buffer) Admit(from party.ID, payload []byte) error {
	if _, ok := b.payloads[from]; ok {
		return ErrDuplicate
	}
	b.payloads[from] = payload
	return nil
}

// Has reports whether a payload from the given sender was admitted.
func (b *Buffer) Has(from party.ID) bool {
	_, ok := b.payloads[from]
	return ok
}

// Len returns the number of admitted payloads.
func (b *Buffer) Len() int {
	return len(b.payloads)
}

// Received returns the sorted set of senders whose payloads were admitted.
func (b *Buffer) Received() party.IDSlice {
	ids := make([]party.ID, 0, len(b.payloads))
	for id := range b.payloads {
		ids = append(ids, id)
	}
	return party.NewIDSlice(ids)
}

// Complete reports whether every member of the quorum has exactly one entry.
func (b *Buffer) Complete(quorum party.IDSlice) bool {
	for _, id := range quorum {
		if _, ok := b.payloads[id]; !ok {
			return false
		}
	}
	return true
}

// Drain returns the collected payloads and resets the buffer for the next
// round. Callers must iterate the result in party.ID order (via Received or
// a sorted quorum) so that downstream computation is reproducible regardless
// of network arrival order.
func (b *Buffer) Drain() map[party.ID][]byte {
	out := b.payloads
	b.payloads = map[party.ID][]byte{}
	b.number++
	return out
}

// Reset clears the buffer and points it at the given round.
func (b *Buffer) Reset(number Number) {
	b.number = number
	b.payloads = map[party.ID][]byte{}
}
