package schnorr

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/fxamacker/cbor/v2"

	"github.com/mpc-sdk/mpc-driver/internal/params"
	"github.com/mpc-sdk/mpc-driver/internal/round"
	"github.com/mpc-sdk/mpc-driver/pkg/hash"
	"github.com/mpc-sdk/mpc-driver/pkg/party"
	"github.com/mpc-sdk/mpc-driver/pkg/protocol"
)

// keygenFinalRound is the last keygen round: commit, then reveal.
const keygenFinalRound round.Number = 1

// commitMessage is broadcast in round 0.
type commitMessage struct {
	Commit []byte
}

// revealMessage is broadcast in round 1.
type revealMessage struct {
	Public []byte
	Blind  []byte
}

// keygenCore generates an additive key share: every party samples a secret
// scalar, commits to its public share, then reveals it. The group key is the
// sum of all public shares.
type keygenCore struct {
	rand     io.Reader
	selfID   party.ID
	partyIDs party.IDSlice

	secret  *secp256k1.ModNScalar
	public  []byte
	blind   []byte
	commits map[party.ID][]byte
	shares  map[party.ID][]byte
}

// NewKeygen returns the adapter running the example keygen among partyIDs.
// rand is the only source of randomness the protocol uses.
func NewKeygen(rand io.Reader, selfID party.ID, partyIDs party.IDSlice) (protocol.Adapter, error) {
	if rand == nil {
		return nil, errors.New("schnorr: rand is nil")
	}
	info := protocol.Info{
		ProtocolID: "example/schnorr/keygen",
		FinalRound: keygenFinalRound,
		SelfID:     selfID,
		PartyIDs:   partyIDs,
	}
	core := &keygenCore{
		rand:     rand,
		selfID:   selfID,
		partyIDs: partyIDs,
		commits:  map[party.ID][]byte{},
		shares:   map[party.ID][]byte{},
	}
	return protocol.NewCoreAdapter(info, nil, 1024, core)
}

// Begin samples the secret share and broadcasts a binding commitment to the
// public share.
func (c *keygenCore) Begin() ([]protocol.Outbound, error) {
	secret, err := sampleScalar(c.rand)
	if err != nil {
		return nil, err
	}
	c.secret = secret

	var pub secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(c.secret, &pub)
	c.public = encodePoint(&pub)

	c.blind = make([]byte, params.SecBytes)
	if _, err := io.ReadFull(c.rand, c.blind); err != nil {
		return nil, fmt.Errorf("schnorr: sample blind: %w", err)
	}

	data, err := cbor.Marshal(&commitMessage{Commit: commitment(c.selfID, c.public, c.blind)})
	if err != nil {
		return nil, err
	}
	return []protocol.Outbound{{Broadcast: true, Data: data}}, nil
}

func (c *keygenCore) Round(r round.Number, inputs map[party.ID][]byte) ([]protocol.Outbound, error) {
	switch r {
	case 0:
		return c.storeCommits(inputs)
	case keygenFinalRound:
		return nil, c.verifyReveals(inputs)
	default:
		return nil, fmt.Errorf("schnorr: unexpected keygen round %d", r)
	}
}

func (c *keygenCore) storeCommits(inputs map[party.ID][]byte) ([]protocol.Outbound, error) {
	for _, from := range sortedIDs(inputs) {
		var msg commitMessage
		if err := cbor.Unmarshal(inputs[from], &msg); err != nil {
			return nil, invalidProof(from, 0, fmt.Errorf("bad commit message: %w", err))
		}
		if len(msg.Commit) != 32 {
			return nil, invalidProof(from, 0, errors.New("commitment must be 32 bytes"))
		}
		c.commits[from] = msg.Commit
	}

	data, err := cbor.Marshal(&revealMessage{Public: c.public, Blind: c.blind})
	if err != nil {
		return nil, err
	}
	return []protocol.Outbound{{Broadcast: true, Data: data}}, nil
}

func (c *keygenCore) verifyReveals(inputs map[party.ID][]byte) error {
	c.shares[c.selfID] = c.public
	for _, from := range sortedIDs(inputs) {
		var msg revealMessage
		if err := cbor.Unmarshal(inputs[from], &msg); err != nil {
			return invalidProof(from, keygenFinalRound, fmt.Errorf("bad reveal message: %w", err))
		}
		if !bytes.Equal(commitment(from, msg.Public, msg.Blind), c.commits[from]) {
			return invalidProof(from, keygenFinalRound, errors.New("reveal does not match commitment"))
		}
		if _, err := decodePoint(msg.Public); err != nil {
			return invalidProof(from, keygenFinalRound, fmt.Errorf("bad public share: %w", err))
		}
		c.shares[from] = msg.Public
	}
	return nil
}

// Finish sums the public shares into the group key.
func (c *keygenCore) Finish() (interface{}, error) {
	var sum secp256k1.JacobianPoint
	for _, id := range c.partyIDs {
		share, ok := c.shares[id]
		if !ok {
			return nil, fmt.Errorf("schnorr: missing public share for %s", id)
		}
		p, err := decodePoint(share)
		if err != nil {
			return nil, err
		}
		secp256k1.AddNonConst(&sum, p, &sum)
	}
	return &KeyShare{
		SelfID:       c.selfID,
		Secret:       encodeScalar(c.secret),
		PublicKey:    encodePoint(&sum),
		PublicShares: c.shares,
	}, nil
}

func commitment(from party.ID, public, blind []byte) []byte {
	h := hash.New()
	_ = h.WriteAny(
		from,
		hash.BytesWithDomain{TheDomain: "Schnorr Keygen Share", Bytes: public},
		new(saferith.Nat).SetBytes(blind),
	)
	return h.Sum()[:32]
}

func invalidProof(from party.ID, r round.Number, err error) *protocol.Error {
	return &protocol.Error{
		Kind:     protocol.ErrorInvalidProof,
		Culprits: []party.ID{from},
		Round:    r,
		Err:      err,
	}
}

func sortedIDs(m map[party.ID][]byte) party.IDSlice {
	ids := make([]party.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return party.NewIDSlice(ids)
}
