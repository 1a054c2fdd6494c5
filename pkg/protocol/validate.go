package protocol

import (
	"github.com/mpc-sdk/mpc-driver/internal/round"
	"github.com/mpc-sdk/mpc-driver/pkg/party"
)

// lookAheadWindow is how many rounds ahead of the awaited round a message may
// be and still be cached rather than dropped. Bounding the window bounds the
// memory a peer can make us hold.
const lookAheadWindow = 1

// Validate classifies an inbound message against the awaited round and the
// known sender set. It has no side effects and never mutates shared state.
//
// A nil result means the message may be admitted: either to the current
// round's mailbox, or to the look-ahead cache when its round number is
// exactly one ahead.
func Validate(msg *Message, current round.Number, final round.Number, senders party.IDSlice) *ValidationError {
	if !senders.Contains(msg.From) {
		return &ValidationError{Kind: UnknownSender, From: msg.From, Round: msg.RoundNumber}
	}
	// stale rounds are discarded, never buffered
	if msg.RoundNumber < current {
		return &ValidationError{Kind: StaleOrFutureRound, From: msg.From, Round: msg.RoundNumber}
	}
	if msg.RoundNumber > current+lookAheadWindow || msg.RoundNumber > final {
		return &ValidationError{Kind: StaleOrFutureRound, From: msg.From, Round: msg.RoundNumber}
	}
	if len(msg.Data) == 0 {
		return &ValidationError{Kind: MalformedPayload, From: msg.From, Round: msg.RoundNumber}
	}
	if !msg.VerifyTag() {
		return &ValidationError{Kind: MalformedPayload, From: msg.From, Round: msg.RoundNumber}
	}
	return nil
}
