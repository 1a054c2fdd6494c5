package schnorr_test

import (
	crand "crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mpc-sdk/mpc-driver/internal/round"
	"github.com/mpc-sdk/mpc-driver/internal/test"
	"github.com/mpc-sdk/mpc-driver/pkg/party"
	"github.com/mpc-sdk/mpc-driver/pkg/protocol"
	"github.com/mpc-sdk/mpc-driver/protocols/example/schnorr"
)

func runParty(id party.ID, adapter protocol.Adapter, network *test.Network) (interface{}, error) {
	h, err := protocol.NewDriver(protocol.SessionConfig{Adapter: adapter})
	if err != nil {
		return nil, err
	}
	test.HandlerLoop(id, h, network)
	return h.Result()
}

func runKeygen(t *testing.T, n int) []*schnorr.KeyShare {
	t.Helper()
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
	require.NoError(t, g.Wait())
	return shares
}

func TestKeygenAndSign(t *testing.T) {
	message := []byte("the message to be signed")
	shares := runKeygen(t, 3)

	for _, share := range shares[1:] {
		assert.Equal(t, shares[0].PublicKey, share.PublicKey)
		assert.Equal(t, shares[0].PublicShares, share.PublicShares)
	}

	network := test.NewNetwork(test.PartyIDs(3))
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
	require.NoError(t, g.Wait())

	for _, sig := range sigs {
		assert.Equal(t, sigs[0].R, sig.R)
		assert.Equal(t, sigs[0].S, sig.S)
		assert.True(t, sig.Verify(message))
		assert.False(t, sig.Verify([]byte("a different message")))
	}
}

// corruptAdapter flips the last payload byte of the batch produced when the
// given round is advanced, leaving the encoding well-formed.
type corruptAdapter struct {
	protocol.Adapter
	corruptRound round.Number
}

func (c *corruptAdapter) Advance(r round.Number, inputs map[party.ID][]byte) (*protocol.Step, error) {
	step, err := c.Adapter.Advance(r, inputs)
	if err != nil || step == nil {
		return step, err
	}
	if r == c.corruptRound {
		for i := range step.Outbound {
			data := step.Outbound[i].Data
			data[len(data)-1] ^= 0xFF
		}
	}
	return step, nil
}

func TestKeygenBadRevealNamesCulprit(t *testing.T) {
	ids := test.PartyIDs(2)
	network := test.NewNetwork(ids)

	var g errgroup.Group
	errs := make([]error, 2)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			adapter, err := schnorr.NewKeygen(crand.Reader, id, ids)
			if err != nil {
				return err
			}
			if id == 1 {
				// tamper with the reveal so it no longer matches the commitment
				adapter = &corruptAdapter{Adapter: adapter, corruptRound: 0}
			}
			_, errs[i] = runParty(id, adapter, network)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// the honest party attributes the abort to the cheater
	require.Error(t, errs[1])
	var e *protocol.Error
	require.ErrorAs(t, errs[1], &e)
	assert.Equal(t, protocol.ErrorInvalidProof, e.Kind)
	assert.Equal(t, []party.ID{1}, e.Culprits)
}

func TestSignBadPartialNamesCulprit(t *testing.T) {
	shares := runKeygen(t, 2)
	message := []byte("message under attack")

	network := test.NewNetwork(test.PartyIDs(2))
	var g errgroup.Group
	errs := make([]error, 2)
	for i, share := range shares {
		i, share := i, share
		g.Go(func() error {
			adapter, err := schnorr.NewSign(crand.Reader, share, message)
			if err != nil {
				return err
			}
			if share.SelfID == 1 {
				// tamper with the partial response share
				adapter = &corruptAdapter{Adapter: adapter, corruptRound: 0}
			}
			_, errs[i] = runParty(share.SelfID, adapter, network)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Error(t, errs[1])
	var e *protocol.Error
	require.ErrorAs(t, errs[1], &e)
	assert.Equal(t, protocol.ErrorInvalidProof, e.Kind)
	assert.Equal(t, []party.ID{1}, e.Culprits)
}

func TestConstructorValidation(t *testing.T) {
	ids := test.PartyIDs(2)

	_, err := schnorr.NewKeygen(nil, 1, ids)
	assert.Error(t, err)

	_, err = schnorr.NewSign(crand.Reader, nil, []byte("m"))
	assert.Error(t, err)

	key := &schnorr.KeyShare{SelfID: 1}
	_, err = schnorr.NewSign(crand.Reader, key, nil)
	assert.Error(t, err)
}

func TestSignatureVerifyRejectsGarbage(t *testing.T) {
	sig := &schnorr.Signature{
		R:         []byte("not a point"),
		S:         make([]byte, 32),
		PublicKey: []byte("not a point either"),
	}
	assert.False(t, sig.Verify([]byte("m")))
}
