// Package cggmp describes the CGGMP21 protocol variants to the session
// driver. As with gg20, only sequencing metadata lives here; the round math
// is an injected protocol.Core.
package cggmp

import (
	"fmt"

	"github.com/mpc-sdk/mpc-driver/internal/round"
	"github.com/mpc-sdk/mpc-driver/pkg/party"
	"github.com/mpc-sdk/mpc-driver/pkg/protocol"
)

// Round schedules, 0-based.
const (
	keygenFinalRound  round.Number = 4
	refreshFinalRound round.Number = 4
	presignFinalRound round.Number = 6
	signFinalRound    round.Number = 0
)

const maxPayload = 1 << 20

// Keygen returns the adapter for CGGMP distributed key generation.
func Keygen(core protocol.Core, selfID party.ID, participants party.IDSlice, threshold int) (protocol.Adapter, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("cggmp: threshold %d is invalid", threshold)
	}
	if len(participants) < threshold+1 {
		return nil, fmt.Errorf("cggmp: keygen needs at least %d participants for threshold %d, got %d",
			threshold+1, threshold, len(participants))
	}
	info := protocol.Info{
		ProtocolID: "cggmp/keygen",
		FinalRound: keygenFinalRound,
		SelfID:     selfID,
		PartyIDs:   participants,
	}
	return protocol.NewCoreAdapter(info, nil, maxPayload, core)
}

// Refresh returns the adapter for the share refresh protocol. The key is
// unchanged; all original participants take part.
func Refresh(core protocol.Core, selfID party.ID, participants party.IDSlice) (protocol.Adapter, error) {
	if len(participants) < 2 {
		return nil, fmt.Errorf("cggmp: refresh needs at least 2 participants, got %d", len(participants))
	}
	info := protocol.Info{
		ProtocolID: "cggmp/refresh",
		FinalRound: refreshFinalRound,
		SelfID:     selfID,
		PartyIDs:   participants,
	}
	return protocol.NewCoreAdapter(info, nil, maxPayload, core)
}

// Presign returns the adapter for the CGGMP presigning stage among the
// chosen signer subset.
func Presign(core protocol.Core, selfID party.ID, signers party.IDSlice) (protocol.Adapter, error) {
	if len(signers) < 2 {
		return nil, fmt.Errorf("cggmp: presign needs at least 2 signers, got %d", len(signers))
	}
	info := protocol.Info{
		ProtocolID: "cggmp/presign",
		FinalRound: presignFinalRound,
		SelfID:     selfID,
		PartyIDs:   signers,
	}
	return protocol.NewCoreAdapter(info, nil, maxPayload, core)
}

// Sign returns the adapter for the online signing round.
func Sign(core protocol.Core, selfID party.ID, signers party.IDSlice) (protocol.Adapter, error) {
	if len(signers) < 2 {
		return nil, fmt.Errorf("cggmp: sign needs at least 2 signers, got %d", len(signers))
	}
	info := protocol.Info{
		ProtocolID: "cggmp/sign",
		FinalRound: signFinalRound,
		SelfID:     selfID,
		PartyIDs:   signers,
	}
	return protocol.NewCoreAdapter(info, nil, maxPayload, core)
}
