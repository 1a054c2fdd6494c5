// Package schnorr implements a naive n-of-n Schnorr signing protocol over
// secp256k1, with additive key and nonce shares.
//
// It exists so the driver, bridge and transport layers can be exercised end
// to end without an external protocol library. It is an example: the scheme
// has no defense against rogue key attacks and must not be used to guard
// real funds.
package schnorr

import (
	"errors"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/mpc-sdk/mpc-driver/pkg/hash"
	"github.com/mpc-sdk/mpc-driver/pkg/party"
)

// KeyShare is the artifact of the keygen protocol.
type KeyShare struct {
	// SelfID is the owner of the secret share.
	SelfID party.ID
	// Secret is the additive secret share, as a 32 byte scalar.
	Secret []byte
	// PublicKey is the group public key, compressed.
	PublicKey []byte
	// PublicShares maps every participant to its public share, compressed.
	PublicShares map[party.ID][]byte
}

// Signature is the artifact of the signing protocol.
type Signature struct {
	// R is the aggregated nonce point, compressed.
	R []byte
	// S is the aggregated response scalar, 32 bytes.
	S []byte
	// PublicKey is the group public key the signature verifies under.
	PublicKey []byte
}

// Verify checks sG == R + cX for the challenge bound to message.
func (sig *Signature) Verify(message []byte) bool {
	s, err := decodeScalar(sig.S)
	if err != nil {
		return false
	}
	r, err := decodePoint(sig.R)
	if err != nil {
		return false
	}
	x, err := decodePoint(sig.PublicKey)
	if err != nil {
		return false
	}
	c := challenge(sig.R, sig.PublicKey, message)

	var lhs, cx, rhs secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(s, &lhs)
	secp256k1.ScalarMultNonConst(c, x, &cx)
	secp256k1.AddNonConst(r, &cx, &rhs)
	lhs.ToAffine()
	rhs.ToAffine()
	return lhs.X.Equals(&rhs.X) && lhs.Y.Equals(&rhs.Y) && lhs.Z.Equals(&rhs.Z)
}

// challenge derives the Schnorr challenge scalar c = H(R, X, m).
func challenge(rBytes, pubBytes, message []byte) *secp256k1.ModNScalar {
	h := hash.New()
	_ = h.WriteAny(
		hash.BytesWithDomain{TheDomain: "Schnorr Nonce Point", Bytes: rBytes},
		hash.BytesWithDomain{TheDomain: "Schnorr Public Key", Bytes: pubBytes},
		hash.BytesWithDomain{TheDomain: "Schnorr Message", Bytes: message},
	)
	var c secp256k1.ModNScalar
	c.SetByteSlice(h.Sum()[:32])
	return &c
}

func sampleScalar(rand io.Reader) (*secp256k1.ModNScalar, error) {
	var buf [32]byte
	var s secp256k1.ModNScalar
	for {
		if _, err := io.ReadFull(rand, buf[:]); err != nil {
			return nil, fmt.Errorf("schnorr: sample scalar: %w", err)
		}
		if overflow := s.SetBytes(&buf); overflow != 0 {
			continue
		}
		if !s.IsZero() {
			return &s, nil
		}
	}
}

func decodeScalar(b []byte) (*secp256k1.ModNScalar, error) {
	if len(b) != 32 {
		return nil, errors.New("schnorr: scalar must be 32 bytes")
	}
	var buf [32]byte
	copy(buf[:], b)
	var s secp256k1.ModNScalar
	if overflow := s.SetBytes(&buf); overflow != 0 {
		return nil, errors.New("schnorr: scalar out of range")
	}
	return &s, nil
}

func encodeScalar(s *secp256k1.ModNScalar) []byte {
	b := s.Bytes()
	return b[:]
}

func encodePoint(p *secp256k1.JacobianPoint) []byte {
	affine := *p
	affine.ToAffine()
	return secp256k1.NewPublicKey(&affine.X, &affine.Y).SerializeCompressed()
}

func decodePoint(b []byte) (*secp256k1.JacobianPoint, error) {
	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, err
	}
	var p secp256k1.JacobianPoint
	pub.AsJacobian(&p)
	return &p, nil
}
