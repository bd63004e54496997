// Package channel implements the per-counterparty BIP-47 payment channel:
// the incoming-address lookahead window, the outgoing-address sequence, and
// the notification-sent state flag that together let a wallet track one
// payment-code relationship over time.
package channel

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"

	"github.com/kmels/bitcoincashj/chainparams"
	"github.com/kmels/bitcoincashj/ecdh"
	"github.com/kmels/bitcoincashj/keychain"
	"github.com/kmels/bitcoincashj/paymentcode"
)

// Lookahead is the number of unused incoming addresses a channel keeps
// generated ahead of the most recently seen one.
const Lookahead = 10

// Status values for a channel's sending direction. They are monotonic:
// once a channel reaches StatusSentCfm it never regresses to
// StatusNotSent.
const (
	StatusNotSent = -1
	StatusSentCfm = 1
)

// KeyImporter is the wallet's watched keyset, an external collaborator:
// every lookahead address this package derives must be imported here
// before the caller can recognize a payment to it on-chain.
type KeyImporter interface {
	ImportPrivateKey(priv *btcec.PrivateKey, addr btcutil.Address) error
}

// IncomingAddress is one pre-derived address a counterparty may pay to
// reach us, along with whether it has been observed on-chain yet.
type IncomingAddress struct {
	Address string `json:"address"`
	Index   uint32 `json:"index"`
	Seen    bool   `json:"seen"`
}

// Channel is the persisted state of one counterparty relationship,
// matching the sidecar's per-channel JSON record.
type Channel struct {
	PaymentCode string `json:"paymentCode"`
	Label       string `json:"label"`

	IncomingAddresses []IncomingAddress `json:"incomingAddresses"`
	OutgoingAddresses []string          `json:"outgoingAddresses"`

	Status               int    `json:"status"`
	CurrentOutgoingIndex uint32 `json:"currentOutgoingIndex"`
	CurrentIncomingIndex int32  `json:"currentIncomingIndex"`
}

// New creates a fresh channel for a counterparty's payment code, with no
// notification sent yet and no addresses generated.
func New(peerPaymentCode, label string) *Channel {
	return &Channel{
		PaymentCode:          peerPaymentCode,
		Label:                label,
		Status:               StatusNotSent,
		CurrentIncomingIndex: -1,
	}
}

// MarkNotified records that our notification transaction to this
// counterparty has been committed. The transition is monotonic.
func (c *Channel) MarkNotified() {
	c.Status = StatusSentCfm
}

// p2pkhAddress derives the P2PKH address for a public key under params.
func p2pkhAddress(
	pub *btcec.PublicKey, params *chainparams.Params,
) (*btcutil.AddressPubKeyHash, error) {

	hash160 := btcutil.Hash160(pub.SerializeCompressed())
	return btcutil.NewAddressPubKeyHash(hash160, params.ChainCfgParams())
}

// incomingAddressAt derives the effective private key and P2PKH address a
// counterparty would compute to pay us at payment-key index i: our payment
// key tweaked by SHA-256 of the ECDH shared secret with the peer's
// payment-code pubkey #0.
func incomingAddressAt(
	ourAccount *keychain.Account, peerPub0 *btcec.PublicKey,
	params *chainparams.Params, i uint32,
) (*btcec.PrivateKey, *btcutil.AddressPubKeyHash, error) {

	ourPriv, err := ourAccount.KeyAt(i)
	if err != nil {
		return nil, nil, fmt.Errorf("channel: deriving our payment key %d: %w", i, err)
	}

	sharedX, err := ecdh.SharedSecretX(ourPriv, peerPub0)
	if err != nil {
		return nil, nil, fmt.Errorf("channel: computing shared secret at %d: %w", i, err)
	}

	tweak := ecdh.IncomingTweak(sharedX)
	effectivePriv, err := ecdh.TweakPrivateKey(ourPriv, tweak)
	if err != nil {
		return nil, nil, fmt.Errorf("channel: tweaking payment key %d: %w", i, err)
	}

	addr, err := p2pkhAddress(effectivePriv.PubKey(), params)
	if err != nil {
		return nil, nil, fmt.Errorf("channel: deriving incoming address %d: %w", i, err)
	}

	return effectivePriv, addr, nil
}

// GenerateLookahead derives and imports the first Lookahead incoming
// addresses for a freshly created channel, and advances
// CurrentIncomingIndex to Lookahead-1. It must be called exactly once, when
// the channel is created.
func (c *Channel) GenerateLookahead(
	ourAccount *keychain.Account, params *chainparams.Params,
	importer KeyImporter,
) error {

	peerAccount, err := keychain.NewAccountFromPaymentCode(params, c.PaymentCode)
	if err != nil {
		return fmt.Errorf("channel: decoding peer payment code: %w", err)
	}
	peerPub0, err := peerAccount.PubKeyAt(0)
	if err != nil {
		return fmt.Errorf("channel: deriving peer pubkey 0: %w", err)
	}

	for i := uint32(0); i < Lookahead; i++ {
		if err := c.importIncomingAddress(ourAccount, peerPub0, params, importer, i); err != nil {
			return err
		}
	}

	c.CurrentIncomingIndex = Lookahead - 1
	return nil
}

func (c *Channel) importIncomingAddress(
	ourAccount *keychain.Account, peerPub0 *btcec.PublicKey,
	params *chainparams.Params, importer KeyImporter, i uint32,
) error {

	priv, addr, err := incomingAddressAt(ourAccount, peerPub0, params, i)
	if err != nil {
		return err
	}

	if err := importer.ImportPrivateKey(priv, addr); err != nil {
		return fmt.Errorf("channel: importing incoming key %d: %w", i, err)
	}

	c.IncomingAddresses = append(c.IncomingAddresses, IncomingAddress{
		Address: addr.EncodeAddress(),
		Index:   i,
	})
	return nil
}

// MarkSeen records that the incoming address at the given index has been
// observed paying us, and extends the lookahead window by one address so
// at least Lookahead unused addresses remain past the most recently seen
// one.
func (c *Channel) MarkSeen(
	index uint32, ourAccount *keychain.Account, params *chainparams.Params,
	importer KeyImporter,
) error {

	found := false
	for i := range c.IncomingAddresses {
		if c.IncomingAddresses[i].Index == index {
			c.IncomingAddresses[i].Seen = true
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("channel: no incoming address at index %d", index)
	}

	peerAccount, err := keychain.NewAccountFromPaymentCode(params, c.PaymentCode)
	if err != nil {
		return fmt.Errorf("channel: decoding peer payment code: %w", err)
	}
	peerPub0, err := peerAccount.PubKeyAt(0)
	if err != nil {
		return fmt.Errorf("channel: deriving peer pubkey 0: %w", err)
	}

	next := uint32(c.CurrentIncomingIndex) + 1
	if err := c.importIncomingAddress(ourAccount, peerPub0, params, importer, next); err != nil {
		return err
	}
	c.CurrentIncomingIndex = int32(next)
	return nil
}

// AddOutgoingAddress derives the next address we would pay to reach this
// counterparty, appends it to the channel's outgoing history, and advances
// CurrentOutgoingIndex.
func (c *Channel) AddOutgoingAddress(params *chainparams.Params) (string, error) {
	peerPC, err := paymentcode.Decode(c.PaymentCode)
	if err != nil {
		return "", fmt.Errorf("channel: decoding peer payment code: %w", err)
	}

	pub, err := peerPC.DerivePubKeyAt(params.HDPublicKeyID, c.CurrentOutgoingIndex)
	if err != nil {
		return "", fmt.Errorf("channel: deriving outgoing pubkey %d: %w",
			c.CurrentOutgoingIndex, err)
	}

	addr, err := p2pkhAddress(pub, params)
	if err != nil {
		return "", fmt.Errorf("channel: deriving outgoing address: %w", err)
	}

	encoded := addr.EncodeAddress()
	c.OutgoingAddresses = append(c.OutgoingAddresses, encoded)
	c.CurrentOutgoingIndex++
	return encoded, nil
}
