package protocol

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/mpc-sdk/mpc-driver/internal/round"
	"github.com/mpc-sdk/mpc-driver/pkg/party"
)

// Core computes the cryptographic content of each round. Implementations
// belong to the protocol library for the chosen variant; this module only
// sequences them. A Core must be deterministic given the randomness source it
// was constructed with.
type Core interface {
	// Begin produces the round 0 payloads.
	Begin() ([]Outbound, error)
	// Round consumes one payload per quorum member for round r and produces
	// the payloads for round r+1. On the final round it returns no output.
	Round(r round.Number, inputs map[party.ID][]byte) ([]Outbound, error)
	// Finish returns the protocol artifact after the final round.
	Finish() (interface{}, error)
}

// coreAdapter lifts a Core into the Adapter interface, adding the variant's
// round schedule, quorum rule and structural payload checks.
type coreAdapter struct {
	info       Info
	quorum     func(r round.Number) party.IDSlice
	maxPayload int
	core       Core
}

// NewCoreAdapter binds a protocol core to a variant description.
// quorum may be nil, in which case every other participant is required each
// round. maxPayload bounds accepted payload sizes; zero disables the bound.
func NewCoreAdapter(info Info, quorum func(r round.Number) party.IDSlice, maxPayload int, core Core) (Adapter, error) {
	if core == nil {
		return nil, errors.New("protocol: core is nil")
	}
	if !info.PartyIDs.Valid() || !info.PartyIDs.Contains(info.SelfID) {
		return nil, errors.New("protocol: invalid participant set")
	}
	a := &coreAdapter{
		info:       info,
		quorum:     quorum,
		maxPayload: maxPayload,
		core:       core,
	}
	if a.quorum == nil {
		others := info.PartyIDs.Remove(info.SelfID)
		a.quorum = func(round.Number) party.IDSlice { return others }
	}
	return a, nil
}

func (a *coreAdapter) Info() Info {
	return a.info
}

func (a *coreAdapter) Quorum(r round.Number) party.IDSlice {
	return a.quorum(r)
}

// ValidatePayload checks shape only: size bounds and cbor well-formedness.
// Cryptographic checks happen in the core, which can attribute them.
func (a *coreAdapter) ValidatePayload(r round.Number, from party.ID, data []byte) error {
	if len(data) == 0 {
		return errors.New("protocol: empty payload")
	}
	if a.maxPayload > 0 && len(data) > a.maxPayload {
		return fmt.Errorf("protocol: payload of %d bytes exceeds limit %d", len(data), a.maxPayload)
	}
	if err := cbor.Valid(data); err != nil {
		return fmt.Errorf("protocol: payload not well-formed: %w", err)
	}
	return nil
}

func (a *coreAdapter) Begin() ([]Outbound, error) {
	return a.core.Begin()
}

func (a *coreAdapter) Advance(r round.Number, inputs map[party.ID][]byte) (*Step, error) {
	outbound, err := a.core.Round(r, inputs)
	if err != nil {
		return nil, err
	}
	if r == a.info.FinalRound {
		artifact, err := a.core.Finish()
		if err != nil {
			return nil, err
		}
		return &Step{Artifact: artifact}, nil
	}
	return &Step{Outbound: outbound}, nil
}
