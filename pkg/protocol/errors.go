package protocol

import (
	"fmt"
	"strings"

	"github.com/mpc-sdk/mpc-driver/internal/round"
	"github.com/mpc-sdk/mpc-driver/pkg/party"
)

// ErrorKind classifies the reasons a session can terminate in an abort.
type ErrorKind uint8

const (
	// ErrorInvalidProof indicates a peer supplied round data failing a
	// cryptographic check (bad proof, mismatched commitment).
	ErrorInvalidProof ErrorKind = iota + 1
	// ErrorInconsistentState indicates the protocol reached a state it
	// cannot recover from, without a clearly attributable culprit.
	ErrorInconsistentState
	// ErrorCancelled indicates the host cancelled the session.
	ErrorCancelled
	// ErrorTimeout indicates a round failed to complete within the
	// configured deadline.
	ErrorTimeout
	// ErrorPeerAborted indicates another party announced an abort.
	ErrorPeerAborted
	// ErrorMisbehavior indicates a sender exceeded the configured
	// tolerance for invalid messages.
	ErrorMisbehavior
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorInvalidProof:
		return "invalid proof"
	case ErrorInconsistentState:
		return "inconsistent state"
	case ErrorCancelled:
		return "cancelled"
	case ErrorTimeout:
		return "timeout"
	case ErrorPeerAborted:
		return "aborted by peer"
	case ErrorMisbehavior:
		return "misbehavior threshold exceeded"
	default:
		return "unknown"
	}
}

// Error is the structured abort reason of a session.
// It carries enough detail to diagnose the failure (kind, round, culprits)
// without leaking any cryptographic secrets.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind
	// Culprits lists the parties responsible, when attributable.
	Culprits []party.ID
	// Round is the round during which the session aborted.
	Round round.Number
	// Err is the underlying cause, if any.
	Err error
}

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "protocol: abort (%s) in round %d", e.Kind, e.Round)
	if len(e.Culprits) != 0 {
		ids := make([]string, len(e.Culprits))
		for i, id := range e.Culprits {
			ids[i] = id.String()
		}
		fmt.Fprintf(&b, ", culprits: [%s]", strings.Join(ids, " "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err)
	}
	return b.String()
}

// Unwrap returns the cause of the abort.
func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationKind classifies why an inbound message was rejected before
// admission. Validation failures are local: the message is dropped and the
// session continues, unless a misbehavior tolerance is exceeded.
type ValidationKind uint8

const (
	// UnknownSender means the sender is not in the participant set.
	UnknownSender ValidationKind = iota + 1
	// StaleOrFutureRound means the round number is behind the awaited
	// round, or further ahead than the look-ahead window.
	StaleOrFutureRound
	// MalformedPayload means the message failed structural checks.
	MalformedPayload
)

func (k ValidationKind) String() string {
	switch k {
	case UnknownSender:
		return "unknown sender"
	case StaleOrFutureRound:
		return "stale or future round"
	case MalformedPayload:
		return "malformed payload"
	default:
		return "unknown"
	}
}

// ValidationError reports why a single message was rejected.
type ValidationError struct {
	Kind  ValidationKind
	From  party.ID
	Round round.Number
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("protocol: message from %s for round %d rejected: %s", e.From, e.Round, e.Kind)
}
