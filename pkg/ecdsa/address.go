// Package ecdsa provides helpers for consumers of ECDSA artifacts.
package ecdsa

import (
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/sha3"
)

// Address computes the Ethereum style address of an uncompressed public key
// (65 bytes): the last 20 bytes of the keccak256 digest of the point body,
// 0x-hex encoded.
func Address(publicKey []byte) (string, error) {
	if len(publicKey) != 65 || publicKey[0] != 0x04 {
		return "", errors.New("ecdsa: address requires an uncompressed 65 byte public key")
	}
	h := sha3.NewLegacyKeccak256()
	// drop the leading 0x04
	h.Write(publicKey[1:])
	digest := h.Sum(nil)
	return "0x" + hex.EncodeToString(digest[12:]), nil
}
