// Package ecdh computes the BIP-47 shared secret between a notification
// transaction's sender and recipient, and the HMAC-SHA-512 mask derived
// from it that blinds a payment code inside that transaction's OP_RETURN
// output.
//
// This diverges deliberately from the scalar-multiplication pattern lnd's
// keychain.PrivKeyECDH follows: that type hashes the shared point's
// compressed serialization with SHA-256 before handing it to callers, but
// BIP-47 needs the raw 32-byte X coordinate, unhashed, so SharedSecretX
// stops short of that last step.
package ecdh

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ErrNotSecp256k1 is returned when the private scalar is zero or exceeds
// the curve order, or the multiplication otherwise yields the point at
// infinity.
var ErrNotSecp256k1 = errors.New("ecdh: not a valid secp256k1 scalar")

// OutpointLength is the byte length of the serialized outpoint used as the
// HMAC key in Mask: a 32-byte little-endian txid followed by a 4-byte
// little-endian output index.
const OutpointLength = 36

// SharedSecretX computes the secp256k1 ECDH shared point a*B and returns
// the big-endian encoding of its X coordinate, unhashed.
func SharedSecretX(priv *btcec.PrivateKey, pub *btcec.PublicKey) ([32]byte, error) {
	var secretX [32]byte

	scalar := &priv.Key
	if scalar.IsZero() {
		return secretX, ErrNotSecp256k1
	}

	var pubJacobian btcec.JacobianPoint
	pub.AsJacobian(&pubJacobian)

	var result btcec.JacobianPoint
	btcec.ScalarMultNonConst(scalar, &pubJacobian, &result)
	result.ToAffine()

	if result.X.IsZero() && result.Y.IsZero() {
		return secretX, ErrNotSecp256k1
	}

	result.X.PutBytesUnchecked(secretX[:])
	return secretX, nil
}

// Mask computes the 64-byte BIP-47 blinding mask HMAC-SHA-512(key=outpoint,
// data=sharedX). outpoint must be the 36-byte txid_le||vout_le of the
// notification transaction's first input.
func Mask(outpoint [OutpointLength]byte, sharedX [32]byte) [64]byte {
	var mac [64]byte
	h := hmac.New(sha512.New, outpoint[:])
	h.Write(sharedX[:])
	copy(mac[:], h.Sum(nil))
	return mac
}

// IncomingTweak returns SHA-256(sharedX), the scalar tweak added to our own
// payment key when pre-deriving the lookahead addresses a counterparty
// might pay.
func IncomingTweak(sharedX [32]byte) [32]byte {
	return sha256.Sum256(sharedX[:])
}

// TweakPrivateKey returns the effective private key (priv + tweak) mod N,
// the key whose P2PKH address a counterparty will pay when they derive our
// lookahead child and add the same tweak to our public key.
func TweakPrivateKey(priv *btcec.PrivateKey, tweak [32]byte) (*btcec.PrivateKey, error) {
	tweakScalar := new(btcec.ModNScalar)
	tweakScalar.SetByteSlice(tweak[:])
	tweakScalar.Add(&priv.Key)

	if tweakScalar.IsZero() {
		return nil, ErrNotSecp256k1
	}

	return &btcec.PrivateKey{Key: *tweakScalar}, nil
}
