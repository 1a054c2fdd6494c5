package schnorr

import (
	"errors"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/fxamacker/cbor/v2"

	"github.com/mpc-sdk/mpc-driver/internal/round"
	"github.com/mpc-sdk/mpc-driver/pkg/party"
	"github.com/mpc-sdk/mpc-driver/pkg/protocol"
)

// signFinalRound is the last signing round: nonces, then partial responses.
const signFinalRound round.Number = 1

// nonceMessage is broadcast in round 0.
type nonceMessage struct {
	Nonce []byte
}

// partialMessage is broadcast in round 1.
type partialMessage struct {
	Partial []byte
}

// signCore produces an aggregated Schnorr signature from additive key
// shares: the parties exchange nonce points, derive a common challenge, and
// exchange partial responses. All share holders must take part.
type signCore struct {
	rand    io.Reader
	key     *KeyShare
	message []byte
	signers party.IDSlice

	nonce     *secp256k1.ModNScalar
	noncePub  []byte
	nonces    map[party.ID][]byte
	partials  map[party.ID][]byte
	challenge *secp256k1.ModNScalar
	aggNonce  []byte
}

// NewSign returns the adapter producing a signature over message with the
// given key share. The session's participant set is every share holder.
func NewSign(rand io.Reader, key *KeyShare, message []byte) (protocol.Adapter, error) {
	if rand == nil {
		return nil, errors.New("schnorr: rand is nil")
	}
	if key == nil {
		return nil, errors.New("schnorr: key share is nil")
	}
	if len(message) == 0 {
		return nil, errors.New("schnorr: empty message")
	}
	signers := make([]party.ID, 0, len(key.PublicShares))
	for id := range key.PublicShares {
		signers = append(signers, id)
	}
	info := protocol.Info{
		ProtocolID: "example/schnorr/sign",
		FinalRound: signFinalRound,
		SelfID:     key.SelfID,
		PartyIDs:   party.NewIDSlice(signers),
	}
	core := &signCore{
		rand:     rand,
		key:      key,
		message:  message,
		signers:  info.PartyIDs,
		nonces:   map[party.ID][]byte{},
		partials: map[party.ID][]byte{},
	}
	return protocol.NewCoreAdapter(info, nil, 1024, core)
}

// Begin samples the nonce share and broadcasts its public point.
func (c *signCore) Begin() ([]protocol.Outbound, error) {
	nonce, err := sampleScalar(c.rand)
	if err != nil {
		return nil, err
	}
	c.nonce = nonce

	var pub secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(c.nonce, &pub)
	c.noncePub = encodePoint(&pub)

	data, err := cbor.Marshal(&nonceMessage{Nonce: c.noncePub})
	if err != nil {
		return nil, err
	}
	return []protocol.Outbound{{Broadcast: true, Data: data}}, nil
}

func (c *signCore) Round(r round.Number, inputs map[party.ID][]byte) ([]protocol.Outbound, error) {
	switch r {
	case 0:
		return c.aggregateNonces(inputs)
	case signFinalRound:
		return nil, c.storePartials(inputs)
	default:
		return nil, fmt.Errorf("schnorr: unexpected sign round %d", r)
	}
}

// aggregateNonces sums the nonce points, derives the challenge and responds
// with this party's partial response share.
func (c *signCore) aggregateNonces(inputs map[party.ID][]byte) ([]protocol.Outbound, error) {
	c.nonces[c.key.SelfID] = c.noncePub
	for _, from := range sortedIDs(inputs) {
		var msg nonceMessage
		if err := cbor.Unmarshal(inputs[from], &msg); err != nil {
			return nil, invalidProof(from, 0, fmt.Errorf("bad nonce message: %w", err))
		}
		if _, err := decodePoint(msg.Nonce); err != nil {
			return nil, invalidProof(from, 0, fmt.Errorf("bad nonce point: %w", err))
		}
		c.nonces[from] = msg.Nonce
	}

	var sum secp256k1.JacobianPoint
	for _, id := range c.signers {
		p, err := decodePoint(c.nonces[id])
		if err != nil {
			return nil, err
		}
		secp256k1.AddNonConst(&sum, p, &sum)
	}
	c.aggNonce = encodePoint(&sum)
	c.challenge = challenge(c.aggNonce, c.key.PublicKey, c.message)

	// s_i = k_i + c·x_i
	secret, err := decodeScalar(c.key.Secret)
	if err != nil {
		return nil, err
	}
	partial := new(secp256k1.ModNScalar).Mul2(c.challenge, secret).Add(c.nonce)
	c.partials[c.key.SelfID] = encodeScalar(partial)

	data, err := cbor.Marshal(&partialMessage{Partial: c.partials[c.key.SelfID]})
	if err != nil {
		return nil, err
	}
	return []protocol.Outbound{{Broadcast: true, Data: data}}, nil
}

func (c *signCore) storePartials(inputs map[party.ID][]byte) error {
	for _, from := range sortedIDs(inputs) {
		var msg partialMessage
		if err := cbor.Unmarshal(inputs[from], &msg); err != nil {
			return invalidProof(from, signFinalRound, fmt.Errorf("bad partial message: %w", err))
		}
		if _, err := decodeScalar(msg.Partial); err != nil {
			return invalidProof(from, signFinalRound, fmt.Errorf("bad partial scalar: %w", err))
		}
		c.partials[from] = msg.Partial
	}
	return nil
}

// Finish aggregates the partial responses and verifies the signature,
// attributing a bad partial to its sender when verification fails.
func (c *signCore) Finish() (interface{}, error) {
	var s secp256k1.ModNScalar
	for _, id := range c.signers {
		partial, ok := c.partials[id]
		if !ok {
			return nil, fmt.Errorf("schnorr: missing partial from %s", id)
		}
		p, err := decodeScalar(partial)
		if err != nil {
			return nil, err
		}
		s.Add(p)
	}

	sig := &Signature{
		R:         c.aggNonce,
		S:         encodeScalar(&s),
		PublicKey: c.key.PublicKey,
	}
	if !sig.Verify(c.message) {
		if culprit, ok := c.findCulprit(); ok {
			return nil, invalidProof(culprit, signFinalRound, errors.New("partial response does not verify"))
		}
		return nil, &protocol.Error{
			Kind:  protocol.ErrorInconsistentState,
			Round: signFinalRound,
			Err:   errors.New("aggregated signature does not verify"),
		}
	}
	return sig, nil
}

// findCulprit checks each partial against the sender's nonce point and
// public share: s_j·G == R_j + c·X_j.
func (c *signCore) findCulprit() (party.ID, bool) {
	for _, id := range c.signers {
		s, err := decodeScalar(c.partials[id])
		if err != nil {
			return id, true
		}
		r, err := decodePoint(c.nonces[id])
		if err != nil {
			return id, true
		}
		x, err := decodePoint(c.key.PublicShares[id])
		if err != nil {
			return id, true
		}
		var lhs, cx, rhs secp256k1.JacobianPoint
		secp256k1.ScalarBaseMultNonConst(s, &lhs)
		secp256k1.ScalarMultNonConst(c.challenge, x, &cx)
		secp256k1.AddNonConst(r, &cx, &rhs)
		lhs.ToAffine()
		rhs.ToAffine()
		if !lhs.X.Equals(&rhs.X) || !lhs.Y.Equals(&rhs.Y) || !lhs.Z.Equals(&rhs.Z) {
			return id, true
		}
	}
	return 0, false
}
