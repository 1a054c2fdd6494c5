package protocol

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/mpc-sdk/mpc-driver/internal/round"
	"github.com/mpc-sdk/mpc-driver/pkg/hash"
	"github.com/mpc-sdk/mpc-driver/pkg/party"
)

// Message is the envelope for a single round message.
//
// Session-level framing (sender, recipient, round number, payload, integrity
// tag) is the only wire format this layer fixes; the payload encoding belongs
// to the protocol variant and is opaque here.
type Message struct {
	// SSID is the unique identifier of the session this message belongs to.
	SSID []byte
	// From is the sender.
	From party.ID
	// To is the recipient for point to point messages, and 0 when Broadcast.
	To party.ID
	// Broadcast indicates the message is intended for all other parties.
	Broadcast bool
	// RoundNumber is the round the payload belongs to.
	RoundNumber round.Number
	// Data is the opaque payload, interpreted only by the protocol adapter.
	Data []byte
	// Tag is an integrity tag over the framing and payload.
	Tag []byte
	// Abort announces that the sender aborted; Data carries the reason.
	Abort bool
}

// IsFor returns true if the message is intended for the given party.
func (m *Message) IsFor(id party.ID) bool {
	if m.From == id {
		return false
	}
	if m.Broadcast {
		return true
	}
	return m.To == id
}

// Seal computes and stores the integrity tag. It must be called before the
// message is handed to the transport.
func (m *Message) Seal() {
	m.Tag = m.tag()
}

// VerifyTag recomputes the integrity tag and compares it to the stored one.
func (m *Message) VerifyTag() bool {
	return bytes.Equal(m.Tag, m.tag())
}

func (m *Message) tag() []byte {
	flags := []byte{0, 0}
	if m.Broadcast {
		flags[0] = 1
	}
	if m.Abort {
		flags[1] = 1
	}
	h := hash.New()
	_ = h.WriteAny(
		hash.BytesWithDomain{TheDomain: "SSID", Bytes: m.SSID},
		m.From,
		m.To,
		m.RoundNumber,
		hash.BytesWithDomain{TheDomain: "Flags", Bytes: flags},
		hash.BytesWithDomain{TheDomain: "Payload", Bytes: m.Data},
	)
	return h.Sum()[:32]
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *Message) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(m)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *Message) UnmarshalBinary(data []byte) error {
	return cbor.Unmarshal(data, m)
}

func (m *Message) String() string {
	return fmt.Sprintf("message: round %d, from: %s, to: %s, broadcast: %v", m.RoundNumber, m.From, m.To, m.Broadcast)
}
