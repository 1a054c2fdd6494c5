package main

import (
	crand "crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mpc-sdk/mpc-driver/internal/test"
	"github.com/mpc-sdk/mpc-driver/pkg/ecdsa"
	"github.com/mpc-sdk/mpc-driver/pkg/party"
	"github.com/mpc-sdk/mpc-driver/pkg/protocol"
	"github.com/mpc-sdk/mpc-driver/protocols/example/schnorr"
)

func runKeygen(cmd *cobra.Command, args []string) error {
	if parties < 2 {
		return fmt.Errorf("need at least 2 parties, got %d", parties)
	}
	shares, err := simulateKeygen(parties)
	if err != nil {
		return fmt.Errorf("keygen failed: %w", err)
	}

	pub := shares[0].PublicKey
	fmt.Printf("Key generation complete with %d parties.\n", parties)
	fmt.Printf("Public key: %s\n", hex.EncodeToString(pub))
	if addr, err := groupAddress(pub); err == nil {
		fmt.Printf("Address:    %s\n", addr)
	}
	return nil
}

func runSign(cmd *cobra.Command, args []string) error {
	if parties < 2 {
		return fmt.Errorf("need at least 2 parties, got %d", parties)
	}
	message, _ := cmd.Flags().GetString("message")
	if message == "" {
		return fmt.Errorf("--message must not be empty")
	}

	shares, err := simulateKeygen(parties)
	if err != nil {
		return fmt.Errorf("keygen failed: %w", err)
	}
	sig, err := simulateSign(shares, []byte(message))
	if err != nil {
		return fmt.Errorf("signing failed: %w", err)
	}
	if !sig.Verify([]byte(message)) {
		return fmt.Errorf("produced signature does not verify")
	}

	fmt.Printf("Signature created by %d parties.\n", parties)
	fmt.Printf("R: %s\n", hex.EncodeToString(sig.R))
	fmt.Printf("S: %s\n", hex.EncodeToString(sig.S))
	return nil
}

// simulateKeygen runs one driver per party over an in-memory network and
// collects each party's key share.
func simulateKeygen(n int) ([]*schnorr.KeyShare, error) {
	ids := test.PartyIDs(n)
	network := test.NewNetwork(ids)

	shares := make([]*schnorr.KeyShare, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			adapter, err := schnorr.NewKeygen(crand.Reader, id, ids)
			if err != nil {
				return err
			}
			result, err := runParty(id, adapter, network)
			if err != nil {
				return err
			}
			shares[i] = result.(*schnorr.KeyShare)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return shares, nil
}

// simulateSign has every share holder sign the message and returns the first
// party's signature; all parties produce the same one.
func simulateSign(shares []*schnorr.KeyShare, message []byte) (*schnorr.Signature, error) {
	var signers party.IDSlice
	for _, share := range shares {
		signers = append(signers, share.SelfID)
	}
	signers = party.NewIDSlice(signers)
	network := test.NewNetwork(signers)

	sigs := make([]*schnorr.Signature, len(shares))
	var g errgroup.Group
	for i, share := range shares {
		i, share := i, share
		g.Go(func() error {
			adapter, err := schnorr.NewSign(crand.Reader, share, message)
			if err != nil {
				return err
			}
			result, err := runParty(share.SelfID, adapter, network)
			if err != nil {
				return err
			}
			sigs[i] = result.(*schnorr.Signature)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sigs[0], nil
}

func runParty(id party.ID, adapter protocol.Adapter, network *test.Network) (interface{}, error) {
	h, err := protocol.NewDriver(protocol.SessionConfig{
		SessionID: []byte(sessionID),
		Adapter:   adapter,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("party started",
		zap.String("party", id.String()),
		zap.String("protocol", adapter.Info().ProtocolID),
	)
	test.HandlerLoop(id, h, network)
	result, err := h.Result()
	if err != nil {
		return nil, fmt.Errorf("party %s: %w", id, err)
	}
	logger.Debug("party finished", zap.String("party", id.String()))
	return result, nil
}

// groupAddress derives the Ethereum-style address of a compressed public key.
func groupAddress(compressed []byte) (string, error) {
	pub, err := secp256k1.ParsePubKey(compressed)
	if err != nil {
		return "", err
	}
	return ecdsa.Address(pub.SerializeUncompressed())
}
