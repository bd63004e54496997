package wallet

import (
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/wire"

	"github.com/kmels/bitcoincashj/channel"
)

// KeyStore is the general-purpose HD-wallet key store this package builds
// on: it supplies the master extended key the account is derived from, and
// accepts the lookahead private keys a channel derives so they are watched
// going forward. Keys are never generated or persisted here; the key store
// owns that.
type KeyStore interface {
	channel.KeyImporter

	// MasterKey returns the wallet's BIP-32 master extended private key.
	MasterKey() (*hdkeychain.ExtendedKey, error)
}

// ChainSource is the external SPV block/header store and peer-to-peer
// gossip layer. The wallet coordinator reacts to the transactions it
// relays and occasionally drives its filter and rollback behavior, but
// never owns header validation itself beyond the cash-DAA check in
// chainparams.
type ChainSource interface {
	// RollbackOneBlock rolls the locally synced header chain back by one
	// block and resumes sync from there, so Bloom-filtered blocks already
	// downloaded are re-fetched with an updated filter.
	RollbackOneBlock() error

	// RebuildFilter signals the peer group that its Bloom filter must be
	// rebuilt from the current watched-keys set, because the wallet has
	// observed filter-exhausting traffic.
	RebuildFilter() error

	// Start begins syncing and connecting to peers.
	Start() error

	// Stop disconnects from peers and halts syncing. It is idempotent.
	Stop()
}

// Broadcaster relays a signed transaction to the network. Constructing and
// signing the transaction are this module's and the external signer's
// job respectively; only relaying it is delegated here.
type Broadcaster interface {
	Broadcast(tx *wire.MsgTx) error
}

// FilterExhaustionThreshold is the number of notification transactions
// destined to us within a single block that triggers a Bloom filter
// rebuild via ChainSource.RebuildFilter.
const FilterExhaustionThreshold = 5
