// Package keychain implements the BIP-47 account derivation path
// m/47'/coin_type'/account' on top of a BIP-32 extended key, and the
// payment-code view of that account. Apart from MasterKeyFromMnemonic, the
// seed-to-master-key and mnemonic-to-seed steps are an external
// collaborator of this package: callers hand keychain an already-derived
// BIP-32 master key (itself obtained from a wallet's BIP-32 key store), the
// same boundary lnd draws between its keychain package and the underlying
// btcwallet key store.
package keychain

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"

	"github.com/kmels/bitcoincashj/chainparams"
	"github.com/kmels/bitcoincashj/mnemonic"
	"github.com/kmels/bitcoincashj/paymentcode"
)

// Bip47Purpose is the hardened purpose constant for the BIP-47 derivation
// path m/47'/coin_type'/account'.
const Bip47Purpose = 47

// notificationChildIndex is the non-hardened child index of the account
// node that yields the notification key, per BIP-47.
const notificationChildIndex = 0

// DeriveBip47CoinTypeKey derives m/47'/coin_type' from a BIP-32 master
// extended private key, the shared ancestor every account on a given chain
// is derived from. Deriving the master key itself from a seed is the HD
// key store's job, or MasterKeyFromMnemonic's for a bare mnemonic.
func DeriveBip47CoinTypeKey(
	master *hdkeychain.ExtendedKey, params *chainparams.Params,
) (*hdkeychain.ExtendedKey, error) {

	purposeKey, err := master.Derive(hdkeychain.HardenedKeyStart + Bip47Purpose)
	if err != nil {
		return nil, fmt.Errorf("keychain: deriving purpose 47': %w", err)
	}

	coinTypeKey, err := purposeKey.Derive(
		hdkeychain.HardenedKeyStart + params.CoinType,
	)
	if err != nil {
		return nil, fmt.Errorf("keychain: deriving coin type %d': %w",
			params.CoinType, err)
	}

	return coinTypeKey, nil
}

// MasterKeyFromMnemonic derives the BIP-32 master extended private key for
// params' network directly from a BIP-39 mnemonic and optional passphrase.
// It is the one path through this module that does not treat seed
// derivation as an external collaborator: a caller with only a mnemonic,
// rather than an already-running HD wallet key store, can still bootstrap
// an Account through DeriveBip47CoinTypeKey and NewAccount.
func MasterKeyFromMnemonic(
	words []string, passphrase string, params *chainparams.Params,
) (*hdkeychain.ExtendedKey, error) {

	seed := mnemonic.SeedFromMnemonic(words, passphrase)
	master, err := hdkeychain.NewMaster(seed, params.ChainCfgParams())
	if err != nil {
		return nil, fmt.Errorf("keychain: deriving master key from mnemonic: %w", err)
	}
	return master, nil
}

// Account is one BIP-47 account: either our own, derived with a private
// key from a coin-type extended key, or a counterparty's, reconstructed
// read-only from their published payment code.
type Account struct {
	params *chainparams.Params

	// priv is the account's own hardened extended private key. It is
	// nil for an Account built from a counterparty's payment code.
	priv *hdkeychain.ExtendedKey

	// pub is the account's neutered extended public key. It is always
	// set: for our own account it is priv.Neuter(); for a counterparty
	// it is reconstructed directly from their payment code payload.
	pub *hdkeychain.ExtendedKey
}

// NewAccount derives account' (hardened) from coinTypeKey, the node
// returned by DeriveBip47CoinTypeKey, yielding our own BIP-47 account.
func NewAccount(
	params *chainparams.Params, coinTypeKey *hdkeychain.ExtendedKey,
	accountID uint32,
) (*Account, error) {

	priv, err := coinTypeKey.Derive(hdkeychain.HardenedKeyStart + accountID)
	if err != nil {
		return nil, fmt.Errorf("keychain: deriving account %d': %w",
			accountID, err)
	}

	pub, err := priv.Neuter()
	if err != nil {
		return nil, fmt.Errorf("keychain: neutering account %d': %w",
			accountID, err)
	}

	return &Account{params: params, priv: priv, pub: pub}, nil
}

// NewAccountFromPaymentCode reconstructs a counterparty's account node,
// read-only, directly from the public key and chain code embedded in their
// payment code. No private key material is ever available for this
// Account.
func NewAccountFromPaymentCode(
	params *chainparams.Params, code string,
) (*Account, error) {

	pc, err := paymentcode.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("keychain: decoding payment code: %w", err)
	}

	pub := pc.PubKey()
	chainCode := pc.ChainCode()

	pubNode := hdkeychain.NewExtendedKey(
		params.HDPublicKeyID[:], pub[:], chainCode[:],
		[]byte{0, 0, 0, 0}, 0, 0, false,
	)

	return &Account{params: params, pub: pubNode}, nil
}

// IsReadOnly reports whether a is a counterparty account with no private
// key material, constructed via NewAccountFromPaymentCode.
func (a *Account) IsReadOnly() bool {
	return a.priv == nil
}

// NotificationKey returns the private key of the account's notification
// child, m/47'/coin_type'/account'/0, the key whose address the
// counterparty's notification transaction pays to. It fails on a read-only
// Account.
func (a *Account) NotificationKey() (*btcec.PrivateKey, error) {
	if a.priv == nil {
		return nil, fmt.Errorf("keychain: account is read-only, no notification private key")
	}

	child, err := a.priv.Derive(notificationChildIndex)
	if err != nil {
		return nil, fmt.Errorf("keychain: deriving notification key: %w", err)
	}
	return child.ECPrivKey()
}

// NotificationPubKey returns the public key of the account's notification
// child. It works for both our own account and a counterparty's read-only
// account, since it only needs the public branch.
func (a *Account) NotificationPubKey() (*btcec.PublicKey, error) {
	child, err := a.pub.Derive(notificationChildIndex)
	if err != nil {
		return nil, fmt.Errorf("keychain: deriving notification pubkey: %w", err)
	}
	return child.ECPubKey()
}

// NotificationAddress returns the P2PKH address that a notification
// transaction intended for this account must pay.
func (a *Account) NotificationAddress() (*btcutil.AddressPubKeyHash, error) {
	pub, err := a.NotificationPubKey()
	if err != nil {
		return nil, err
	}
	return pubKeyToAddress(pub, a.params)
}

// KeyAt returns the private key of the account's non-hardened payment
// child at index n. It fails on a read-only Account; use the account's
// PaymentCode to derive a counterparty's public child instead.
func (a *Account) KeyAt(n uint32) (*btcec.PrivateKey, error) {
	if a.priv == nil {
		return nil, fmt.Errorf("keychain: account is read-only, no private key at index %d", n)
	}
	if n >= hdkeychain.HardenedKeyStart {
		return nil, fmt.Errorf("keychain: index %d is not a valid non-hardened child", n)
	}

	child, err := a.priv.Derive(n)
	if err != nil {
		return nil, fmt.Errorf("keychain: deriving key at %d: %w", n, err)
	}
	return child.ECPrivKey()
}

// PubKeyAt returns the public key of the account's non-hardened payment
// child at index n. It works for both our own account and a
// counterparty's.
func (a *Account) PubKeyAt(n uint32) (*btcec.PublicKey, error) {
	if n >= hdkeychain.HardenedKeyStart {
		return nil, fmt.Errorf("keychain: index %d is not a valid non-hardened child", n)
	}

	child, err := a.pub.Derive(n)
	if err != nil {
		return nil, fmt.Errorf("keychain: deriving pubkey at %d: %w", n, err)
	}
	return child.ECPubKey()
}

// PaymentCode returns the BIP-47 payment code published for this account:
// its neutered public key and chain code, structured and Base58Check
// encoded by the paymentcode package.
func (a *Account) PaymentCode() (*paymentcode.PaymentCode, error) {
	pub, err := a.pub.ECPubKey()
	if err != nil {
		return nil, fmt.Errorf("keychain: reading account pubkey: %w", err)
	}

	var compressed [33]byte
	copy(compressed[:], pub.SerializeCompressed())

	var chainCode [32]byte
	copy(chainCode[:], a.pub.ChainCode())

	return paymentcode.New(compressed, chainCode)
}

func pubKeyToAddress(
	pub *btcec.PublicKey, params *chainparams.Params,
) (*btcutil.AddressPubKeyHash, error) {

	hash160 := btcutil.Hash160(pub.SerializeCompressed())
	return btcutil.NewAddressPubKeyHash(hash160, params.ChainCfgParams())
}
