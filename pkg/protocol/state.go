package protocol

import (
	"fmt"

	"github.com/mpc-sdk/mpc-driver/internal/round"
	"github.com/mpc-sdk/mpc-driver/pkg/party"
)

// Status enumerates the driver states. Exactly one is active at any time and
// transitions are owned by the driver.
type Status uint8

const (
	// AwaitingMessages means the driver is collecting the current round's quorum.
	AwaitingMessages Status = iota
	// Computing means the adapter is advancing the current round.
	Computing
	// Completed is terminal; the artifact is available through Result.
	Completed
	// Aborted is terminal; the structured reason is available through Result.
	Aborted
)

func (s Status) String() string {
	switch s {
	case AwaitingMessages:
		return "awaiting messages"
	case Computing:
		return "computing"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// State is a snapshot of the driver's state machine.
type State struct {
	// Status is the active variant.
	Status Status
	// Round is the round being collected or computed. Unset when terminal.
	Round round.Number
	// Received lists the senders admitted so far, when awaiting messages.
	Received party.IDSlice
	// Artifact is the protocol output, when Completed.
	Artifact interface{}
	// Reason is the structured abort reason, when Aborted.
	Reason *Error
}

func (s State) String() string {
	switch s.Status {
	case AwaitingMessages:
		return fmt.Sprintf("awaiting messages for round %d (%d received)", s.Round, len(s.Received))
	case Computing:
		return fmt.Sprintf("computing round %d", s.Round)
	case Completed:
		return "completed"
	case Aborted:
		return fmt.Sprintf("aborted: %s", s.Reason)
	default:
		return "unknown"
	}
}
