// Package mnemonic implements the wallet's seed-creation half of the
// lifecycle spec.md's data model declares but leaves to an external
// collaborator: turning 256 bits of entropy into a BIP-39 word list and
// that word list into the 64-byte seed every other package's HD
// derivation starts from.
package mnemonic

import (
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// EntropyBits is the amount of entropy, in bits, Generate draws for a new
// wallet: a 24-word mnemonic.
const EntropyBits = 256

// Generate creates a fresh 24-word mnemonic from 256 bits of entropy.
func Generate() ([]string, error) {
	entropy, err := bip39.NewEntropy(EntropyBits)
	if err != nil {
		return nil, err
	}

	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}

	log.Debugf("generated a new %d-word mnemonic", len(strings.Fields(phrase)))
	return strings.Fields(phrase), nil
}

// Validate reports whether words forms a checksum-valid BIP-39 mnemonic.
func Validate(words []string) bool {
	return bip39.IsMnemonicValid(strings.Join(words, " "))
}

// SeedFromMnemonic derives the 64-byte wallet seed from words and an
// optional passphrase, via PBKDF2-HMAC-SHA-512 as BIP-39 specifies. It does
// not validate the mnemonic's checksum first; callers that accept a
// user-typed phrase should call Validate beforehand.
func SeedFromMnemonic(words []string, passphrase string) []byte {
	return bip39.NewSeed(strings.Join(words, " "), passphrase)
}
