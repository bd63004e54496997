// Package wallet coordinates a single coin's BIP-47 state: the account,
// the in-memory channel map, and the on-disk sidecar, reacting to
// transactions relayed by an external SPV chain source to detect
// notification transactions and payments to watched lookahead addresses.
//
// The wallet file itself, the SPV header store, and the peer group are all
// external collaborators (see interfaces.go); this package only ever reads
// from or drives them through the narrow interfaces it declares.
package wallet

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/kmels/bitcoincashj/chainparams"
	"github.com/kmels/bitcoincashj/channel"
	"github.com/kmels/bitcoincashj/keychain"
	"github.com/kmels/bitcoincashj/notify"
	"github.com/kmels/bitcoincashj/paymentcode"
)

// Wallet is the per-coin BIP-47 coordinator.
type Wallet struct {
	mu sync.Mutex

	params   *chainparams.Params
	keyStore KeyStore
	chain    ChainSource

	account     *keychain.Account
	notifAddr   string
	chainFile   string
	sidecar     *sidecarFile
	channels    map[string]*channel.Channel
	blockNtxs   map[chainhash.Hash]int
	rolledBack  map[chainhash.Hash]bool

	stopped bool
}

// coinDir returns <dataDir>/<COIN>, the per-coin directory holding the
// wallet file, the SPV chain file, and the sidecar.
func coinDir(dataDir string, coin chainparams.Coin) string {
	return filepath.Join(dataDir, string(coin))
}

// Open loads or creates the wallet for one coin: it derives the BIP-47
// account from the key store's master key, loads the sidecar's channel
// set, and, if restore is true (an explicitly supplied seed rather than an
// existing wallet file), deletes any pre-existing SPV chain file so the
// chain is synced from scratch rather than replayed against stale headers.
// It does not start the chain source; call Start for that once the caller
// has finished wiring up callbacks.
func Open(
	params *chainparams.Params, dataDir string, keyStore KeyStore,
	chain ChainSource, accountID uint32, restore bool,
) (*Wallet, error) {

	dir := coinDir(dataDir, params.Coin)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("wallet: creating coin directory: %w", err)
	}

	master, err := keyStore.MasterKey()
	if err != nil {
		return nil, fmt.Errorf("wallet: reading master key: %w", err)
	}

	coinTypeKey, err := keychain.DeriveBip47CoinTypeKey(master, params)
	if err != nil {
		return nil, fmt.Errorf("wallet: deriving coin type key: %w", err)
	}

	account, err := keychain.NewAccount(params, coinTypeKey, accountID)
	if err != nil {
		return nil, fmt.Errorf("wallet: deriving account %d: %w", accountID, err)
	}

	notifAddr, err := account.NotificationAddress()
	if err != nil {
		return nil, fmt.Errorf("wallet: deriving notification address: %w", err)
	}

	chainFile := filepath.Join(dir, string(params.Coin)+".spvchain")
	if restore {
		if err := os.Remove(chainFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("wallet: removing stale chain file: %w", err)
		}
	}

	sidecarPath := filepath.Join(dir, string(params.Coin)+".bip47")
	sidecar := newSidecarFile(sidecarPath)
	channels, err := sidecar.Load()
	if err != nil {
		return nil, fmt.Errorf("wallet: loading sidecar: %w", err)
	}

	channelMap := make(map[string]*channel.Channel, len(channels))
	for _, ch := range channels {
		channelMap[ch.PaymentCode] = ch
	}

	w := &Wallet{
		params:     params,
		keyStore:   keyStore,
		chain:      chain,
		account:    account,
		notifAddr:  notifAddr.EncodeAddress(),
		chainFile:  chainFile,
		sidecar:    sidecar,
		channels:   channelMap,
		blockNtxs:  make(map[chainhash.Hash]int),
		rolledBack: make(map[chainhash.Hash]bool),
	}

	log.Infof("opened %s wallet with %d channel(s), notification address %s",
		params.Coin, len(channelMap), w.notifAddr)

	return w, nil
}

// Start begins chain sync. The notification address itself needs no
// explicit watch call here: it is derived from the account's own private
// key, so the key store already has it in its keyset by construction.
func (w *Wallet) Start() error {
	return w.chain.Start()
}

// Stop stops the chain source and persists the sidecar one final time. It
// is idempotent; calling it more than once is a no-op.
func (w *Wallet) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true

	w.chain.Stop()
	return w.saveChannelsLocked()
}

// saveChannelsLocked writes the current channel set to the sidecar. Callers
// must hold w.mu.
func (w *Wallet) saveChannelsLocked() error {
	channels := make([]*channel.Channel, 0, len(w.channels))
	for _, ch := range w.channels {
		channels = append(channels, ch)
	}
	return w.sidecar.Save(channels)
}

// NotificationAddress returns the P2PKH address counterparties must pay to
// notify this wallet of a new channel.
func (w *Wallet) NotificationAddress() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.notifAddr
}

// PaymentCode returns this wallet's own BIP-47 payment code, the text a
// user shares so others can open a channel with them.
func (w *Wallet) PaymentCode() (*paymentcode.PaymentCode, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.account.PaymentCode()
}

// NewOutgoingChannel builds the unsigned notification transaction that
// bootstraps a channel with peerCode, Base58-decoding it and funding the
// transaction from utxo at the given fee rate. If a channel for peerCode
// does not already exist, a FRESH one is created and persisted so a
// concurrent restart does not lose track of the pending handshake; it is
// only marked notified once Broadcast succeeds. Signing the returned
// transaction is left to the wallet's external signer.
func (w *Wallet) NewOutgoingChannel(
	peerCode string, utxo notify.UTXO, feeRatePerKB int64, changeScript []byte,
) (*wire.MsgTx, error) {

	w.mu.Lock()
	defer w.mu.Unlock()

	peerAccount, err := keychain.NewAccountFromPaymentCode(w.params, peerCode)
	if err != nil {
		return nil, fmt.Errorf("wallet: parsing peer payment code: %w", err)
	}
	peerNotifPub, err := peerAccount.NotificationPubKey()
	if err != nil {
		return nil, fmt.Errorf("wallet: deriving peer notification key: %w", err)
	}
	senderPC, err := w.account.PaymentCode()
	if err != nil {
		return nil, fmt.Errorf("wallet: deriving own payment code: %w", err)
	}

	tx, err := notify.Construct(
		w.params, utxo, feeRatePerKB, senderPC, peerNotifPub, changeScript,
	)
	if err != nil {
		return nil, fmt.Errorf("wallet: constructing notification transaction: %w", err)
	}

	if _, exists := w.channels[peerCode]; !exists {
		w.channels[peerCode] = channel.New(peerCode, "")
		if err := w.saveChannelsLocked(); err != nil {
			return nil, fmt.Errorf("wallet: persisting sidecar: %w", err)
		}
	}

	return tx, nil
}

// Broadcast relays a signed notification transaction for peerCode through
// broadcaster and, once accepted, marks that channel notified. Callers must
// sign the transaction NewOutgoingChannel returned before calling this.
func (w *Wallet) Broadcast(peerCode string, tx *wire.MsgTx, broadcaster Broadcaster) error {
	if err := broadcaster.Broadcast(tx); err != nil {
		return fmt.Errorf("wallet: broadcasting notification transaction: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	ch, ok := w.channels[peerCode]
	if !ok {
		return nil
	}
	ch.MarkNotified()
	return w.saveChannelsLocked()
}

// Channels returns a snapshot of the current channel set, keyed by peer
// payment code.
func (w *Wallet) Channels() map[string]*channel.Channel {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make(map[string]*channel.Channel, len(w.channels))
	for k, v := range w.channels {
		out[k] = v
	}
	return out
}

// OnTransaction reacts to a transaction relayed by the chain source:
// notification transactions bootstrap a channel, and payments to a
// channel's watched incoming addresses advance its lookahead window.
// blockHash is nil for an unconfirmed, mempool-relayed transaction.
func (w *Wallet) OnTransaction(tx *wire.MsgTx, blockHash *chainhash.Hash) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	addrs := w.receivedAddresses(tx)

	if w.paysNotificationAddress(addrs) {
		if err := w.handleNotificationLocked(tx, blockHash); err != nil {
			return err
		}
	}

	if err := w.handleIncomingPaymentsLocked(addrs); err != nil {
		return err
	}

	return nil
}

// receivedAddresses extracts every destination address tx pays to.
func (w *Wallet) receivedAddresses(tx *wire.MsgTx) []string {
	var addrs []string
	for _, out := range tx.TxOut {
		_, scriptAddrs, _, err := txscript.ExtractPkScriptAddrs(
			out.PkScript, w.params.ChainCfgParams(),
		)
		if err != nil {
			continue
		}
		for _, a := range scriptAddrs {
			addrs = append(addrs, a.EncodeAddress())
		}
	}
	return addrs
}

func (w *Wallet) paysNotificationAddress(addrs []string) bool {
	for _, a := range addrs {
		if a == w.notifAddr {
			return true
		}
	}
	return false
}

// handleNotificationLocked parses the notification transaction, creates or
// looks up the corresponding channel, generates its lookahead window, and
// rolls the chain back by one block the first time a notification is seen
// in a given block. Callers must hold w.mu.
func (w *Wallet) handleNotificationLocked(tx *wire.MsgTx, blockHash *chainhash.Hash) error {
	notifPriv, err := w.account.NotificationKey()
	if err != nil {
		return fmt.Errorf("wallet: deriving notification key: %w", err)
	}

	peerPC, err := notify.Parse(tx, notifPriv)
	if err != nil {
		return fmt.Errorf("wallet: parsing notification transaction: %w", err)
	}

	code := peerPC.String()
	ch, exists := w.channels[code]
	if !exists {
		ch = channel.New(code, "")
		if err := ch.GenerateLookahead(w.account, w.params, w.keyStore); err != nil {
			return fmt.Errorf("wallet: generating lookahead for %s: %w", code, err)
		}
		w.channels[code] = ch
	}
	ch.MarkNotified()

	if err := w.saveChannelsLocked(); err != nil {
		return fmt.Errorf("wallet: persisting sidecar: %w", err)
	}

	if blockHash != nil {
		w.blockNtxs[*blockHash]++

		if !w.rolledBack[*blockHash] {
			w.rolledBack[*blockHash] = true
			if err := w.chain.RollbackOneBlock(); err != nil {
				return fmt.Errorf("wallet: rolling back after notification: %w", err)
			}
		}

		if w.blockNtxs[*blockHash] >= FilterExhaustionThreshold {
			if err := w.chain.RebuildFilter(); err != nil {
				return fmt.Errorf("wallet: rebuilding filter: %w", err)
			}
		}
	}

	return nil
}

// handleIncomingPaymentsLocked marks any channel's incoming address found
// among addrs as seen and extends its lookahead window. Callers must hold
// w.mu.
func (w *Wallet) handleIncomingPaymentsLocked(addrs []string) error {
	for _, ch := range w.channels {
		for _, ia := range ch.IncomingAddresses {
			if ia.Seen {
				continue
			}
			if !containsAddress(addrs, ia.Address) {
				continue
			}

			if err := ch.MarkSeen(ia.Index, w.account, w.params, w.keyStore); err != nil {
				return fmt.Errorf("wallet: marking address seen: %w", err)
			}
			if err := w.saveChannelsLocked(); err != nil {
				return fmt.Errorf("wallet: persisting sidecar: %w", err)
			}
		}
	}
	return nil
}

func containsAddress(addrs []string, target string) bool {
	for _, a := range addrs {
		if a == target {
			return true
		}
	}
	return false
}
