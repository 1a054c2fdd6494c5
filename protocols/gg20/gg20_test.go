package gg20_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpc-sdk/mpc-driver/internal/round"
	"github.com/mpc-sdk/mpc-driver/pkg/party"
	"github.com/mpc-sdk/mpc-driver/pkg/protocol"
	"github.com/mpc-sdk/mpc-driver/protocols/gg20"
)

type fakeCore struct{}

func (fakeCore) Begin() ([]protocol.Outbound, error) { return nil, nil }
func (fakeCore) Round(round.Number, map[party.ID][]byte) ([]protocol.Outbound, error) {
	return nil, nil
}
func (fakeCore) Finish() (interface{}, error) { return nil, nil }

func TestKeygenDescriptor(t *testing.T) {
	ids := party.NewIDSlice([]party.ID{1, 2, 3, 4})

	adapter, err := gg20.Keygen(fakeCore{}, 1, ids, 2)
	require.NoError(t, err)
	info := adapter.Info()
	assert.Equal(t, "gg20/keygen", info.ProtocolID)
	assert.Equal(t, round.Number(3), info.FinalRound)
	assert.Equal(t, ids.Remove(1), adapter.Quorum(0))

	// not enough participants for the threshold
	_, err = gg20.Keygen(fakeCore{}, 1, party.NewIDSlice([]party.ID{1, 2}), 2)
	assert.Error(t, err)

	_, err = gg20.Keygen(fakeCore{}, 1, ids, 0)
	assert.Error(t, err)
}

func TestSignerDescriptors(t *testing.T) {
	signers := party.NewIDSlice([]party.ID{2, 5})

	presign, err := gg20.Presign(fakeCore{}, 2, signers)
	require.NoError(t, err)
	assert.Equal(t, round.Number(5), presign.Info().FinalRound)

	sign, err := gg20.Sign(fakeCore{}, 2, signers)
	require.NoError(t, err)
	assert.Equal(t, round.Number(0), sign.Info().FinalRound)
	assert.Equal(t, signers, sign.Info().PartyIDs)

	solo := party.NewIDSlice([]party.ID{2})
	_, err = gg20.Sign(fakeCore{}, 2, solo)
	assert.Error(t, err)
}

func TestPayloadBound(t *testing.T) {
	signers := party.NewIDSlice([]party.ID{2, 5})
	adapter, err := gg20.Sign(fakeCore{}, 2, signers)
	require.NoError(t, err)

	assert.Error(t, adapter.ValidatePayload(0, 5, nil))
	assert.Error(t, adapter.ValidatePayload(0, 5, make([]byte, 2<<20)))
}
