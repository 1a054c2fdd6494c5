package protocol

import (
	"github.com/mpc-sdk/mpc-driver/internal/round"
	"github.com/mpc-sdk/mpc-driver/pkg/party"
)

// Info describes a protocol variant execution.
type Info struct {
	// ProtocolID is an identifier for the protocol variant, e.g. "gg20/keygen".
	ProtocolID string
	// FinalRound is the index of the last round; the adapter must produce
	// the artifact when advancing it.
	FinalRound round.Number
	// SelfID is this party's ID.
	SelfID party.ID
	// PartyIDs is the sorted set of participants.
	PartyIDs party.IDSlice
}

// Outbound is a payload produced by the adapter, destined for one recipient
// or for all other parties.
type Outbound struct {
	// To is the recipient; ignored when Broadcast.
	To party.ID
	// Broadcast requests delivery to every other participant.
	Broadcast bool
	// Data is the variant-specific payload.
	Data []byte
}

// Step is the outcome of advancing the protocol by one round: either a batch
// of next-round messages, or the terminal artifact.
type Step struct {
	// Outbound holds the messages for the next round. Empty on the final step.
	Outbound []Outbound
	// Artifact is the protocol output (key share, presignature, signature).
	// Non-nil exactly when the protocol finished.
	Artifact interface{}
}

// Adapter is the polymorphic interface over protocol variants
// (keygen, presign, sign for each protocol family).
//
// The adapter is the only component that interprets payload bytes; the driver
// passes opaque protocol state between calls and never inspects it. Given
// identical inputs and the randomness source injected at construction, an
// adapter must behave deterministically, since all honest parties must derive
// consistent next-round messages.
//
// An adapter must never call back into the driver that owns it; Advance is
// not re-entrant.
type Adapter interface {
	// Info returns the static description of this execution.
	Info() Info

	// Quorum returns the senders whose round r messages are required before
	// the round can be advanced. The rule is variant specific: keygen
	// typically requires every other participant, signing only the chosen
	// signer subset.
	Quorum(r round.Number) party.IDSlice

	// ValidatePayload performs structural checks on a raw payload before it
	// is admitted to the round mailbox. It must not mutate adapter state.
	ValidatePayload(r round.Number, from party.ID, data []byte) error

	// Begin produces the round 0 outbound batch.
	Begin() ([]Outbound, error)

	// Advance consumes the complete round r mailbox and moves the protocol
	// forward. Inputs hold exactly one payload per quorum member and must be
	// iterated in party.ID order. A returned *Error signals an unrecoverable
	// protocol fault, naming the offending party when attributable.
	Advance(r round.Number, inputs map[party.ID][]byte) (*Step, error)
}
