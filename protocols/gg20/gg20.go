// Package gg20 describes the GG20 protocol variants to the session driver:
// round schedules, quorum rules and payload bounds. The round computation
// itself is supplied as a protocol.Core by the GG20 protocol library.
package gg20

import (
	"fmt"

	"github.com/mpc-sdk/mpc-driver/internal/round"
	"github.com/mpc-sdk/mpc-driver/pkg/party"
	"github.com/mpc-sdk/mpc-driver/pkg/protocol"
)

// Round schedules, 0-based: the final round index produces the artifact.
const (
	// keygen is 4 rounds: commitments, decommitments, VSS shares, proofs.
	keygenFinalRound round.Number = 3
	// presign is the 6 round offline stage.
	presignFinalRound round.Number = 5
	// sign is the single online round over a presignature.
	signFinalRound round.Number = 0
)

// maxPayload bounds a single round message. GG20 payloads carry Paillier
// ciphertexts and range proofs, so the bound is generous.
const maxPayload = 1 << 20

// Keygen returns the adapter for GG20 distributed key generation among
// participants. Every participant must contribute in every round, so the
// quorum is all other participants.
func Keygen(core protocol.Core, selfID party.ID, participants party.IDSlice, threshold int) (protocol.Adapter, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("gg20: threshold %d is invalid", threshold)
	}
	if len(participants) < threshold+1 {
		return nil, fmt.Errorf("gg20: keygen needs at least %d participants for threshold %d, got %d",
			threshold+1, threshold, len(participants))
	}
	info := protocol.Info{
		ProtocolID: "gg20/keygen",
		FinalRound: keygenFinalRound,
		SelfID:     selfID,
		PartyIDs:   participants,
	}
	return protocol.NewCoreAdapter(info, nil, maxPayload, core)
}

// Presign returns the adapter for the GG20 offline signing stage among the
// chosen signer subset. The session's participant set is the signer set, and
// every signer is required each round.
func Presign(core protocol.Core, selfID party.ID, signers party.IDSlice) (protocol.Adapter, error) {
	if len(signers) < 2 {
		return nil, fmt.Errorf("gg20: presign needs at least 2 signers, got %d", len(signers))
	}
	info := protocol.Info{
		ProtocolID: "gg20/presign",
		FinalRound: presignFinalRound,
		SelfID:     selfID,
		PartyIDs:   signers,
	}
	return protocol.NewCoreAdapter(info, nil, maxPayload, core)
}

// Sign returns the adapter for the GG20 online round, combining a
// presignature with the message digest.
func Sign(core protocol.Core, selfID party.ID, signers party.IDSlice) (protocol.Adapter, error) {
	if len(signers) < 2 {
		return nil, fmt.Errorf("gg20: sign needs at least 2 signers, got %d", len(signers))
	}
	info := protocol.Info{
		ProtocolID: "gg20/sign",
		FinalRound: signFinalRound,
		SelfID:     selfID,
		PartyIDs:   signers,
	}
	return protocol.NewCoreAdapter(info, nil, maxPayload, core)
}
