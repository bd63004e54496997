package wallet

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/kmels/bitcoincashj/chainparams"
	"github.com/kmels/bitcoincashj/channel"
	"github.com/kmels/bitcoincashj/keychain"
	"github.com/kmels/bitcoincashj/notify"
	"github.com/kmels/bitcoincashj/paymentcode"
)

type fakeKeyStore struct {
	master   *hdkeychain.ExtendedKey
	imported map[string]*btcec.PrivateKey
}

func newFakeKeyStore(t *testing.T) *fakeKeyStore {
	seed := make([]byte, 32)
	_, err := rand.Read(seed)
	require.NoError(t, err)

	master, err := hdkeychain.NewMaster(seed, chainparams.BCHMainNetParams.ChainCfgParams())
	require.NoError(t, err)

	return &fakeKeyStore{master: master, imported: make(map[string]*btcec.PrivateKey)}
}

func (f *fakeKeyStore) MasterKey() (*hdkeychain.ExtendedKey, error) {
	return f.master, nil
}

func (f *fakeKeyStore) ImportPrivateKey(priv *btcec.PrivateKey, addr btcutil.Address) error {
	f.imported[addr.EncodeAddress()] = priv
	return nil
}

type fakeChainSource struct {
	started    bool
	stopped    bool
	rollbacks  int
	rebuilds   int
}

func (f *fakeChainSource) Start() error           { f.started = true; return nil }
func (f *fakeChainSource) Stop()                  { f.stopped = true }
func (f *fakeChainSource) RollbackOneBlock() error { f.rollbacks++; return nil }
func (f *fakeChainSource) RebuildFilter() error    { f.rebuilds++; return nil }

type fakeBroadcaster struct {
	sent []*wire.MsgTx
}

func (f *fakeBroadcaster) Broadcast(tx *wire.MsgTx) error {
	f.sent = append(f.sent, tx)
	return nil
}

func fakeSignatureScript(t *testing.T, pub *btcec.PublicKey) []byte {
	script, err := txscript.NewScriptBuilder().
		AddData(make([]byte, 71)).
		AddData(pub.SerializeCompressed()).
		Script()
	require.NoError(t, err)
	return script
}

func buildNotificationTx(
	t *testing.T, w *Wallet, senderPriv *btcec.PrivateKey, senderPC *paymentcode.PaymentCode,
) *wire.MsgTx {

	notifPub, err := notificationPubKeyOf(t, w)
	require.NoError(t, err)

	var hash chainhash.Hash
	_, err = rand.Read(hash[:])
	require.NoError(t, err)

	utxo := notify.UTXO{
		Outpoint: wire.OutPoint{Hash: hash, Index: 0},
		Value:    100000,
		PrivKey:  senderPriv,
	}

	tx, err := notify.Construct(
		&chainparams.BCHMainNetParams, utxo, 1000, senderPC, notifPub, nil,
	)
	require.NoError(t, err)
	tx.TxIn[0].SignatureScript = fakeSignatureScript(t, senderPriv.PubKey())
	return tx
}

// notificationPubKeyOf recovers the wallet's own notification public key by
// re-deriving the account from the same key store, since Wallet does not
// export its private account state directly.
func notificationPubKeyOf(t *testing.T, w *Wallet) (*btcec.PublicKey, error) {
	master, err := w.keyStore.MasterKey()
	require.NoError(t, err)
	coinTypeKey, err := keychain.DeriveBip47CoinTypeKey(master, w.params)
	require.NoError(t, err)
	account, err := keychain.NewAccount(w.params, coinTypeKey, 0)
	require.NoError(t, err)
	return account.NotificationPubKey()
}

func TestOpenCreatesEmptyWalletAndSidecar(t *testing.T) {
	dir := t.TempDir()
	ks := newFakeKeyStore(t)
	chain := &fakeChainSource{}

	w, err := Open(&chainparams.BCHMainNetParams, dir, ks, chain, 0, false)
	require.NoError(t, err)
	require.Empty(t, w.Channels())
	require.NotEmpty(t, w.NotificationAddress())
}

func TestOnTransactionCreatesChannelFromNotification(t *testing.T) {
	dir := t.TempDir()
	ks := newFakeKeyStore(t)
	chain := &fakeChainSource{}

	w, err := Open(&chainparams.BCHMainNetParams, dir, ks, chain, 0, false)
	require.NoError(t, err)

	senderPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	var compressed [33]byte
	copy(compressed[:], senderPriv.PubKey().SerializeCompressed())
	var chainCode [32]byte
	_, err = rand.Read(chainCode[:])
	require.NoError(t, err)
	senderPC, err := paymentcode.New(compressed, chainCode)
	require.NoError(t, err)

	tx := buildNotificationTx(t, w, senderPriv, senderPC)

	var blockHash chainhash.Hash
	_, err = rand.Read(blockHash[:])
	require.NoError(t, err)

	err = w.OnTransaction(tx, &blockHash)
	require.NoError(t, err)

	channels := w.Channels()
	require.Len(t, channels, 1)
	ch, ok := channels[senderPC.String()]
	require.True(t, ok)
	require.Equal(t, channel.StatusSentCfm, ch.Status)
	require.Len(t, ch.IncomingAddresses, 10)
	require.Equal(t, 1, chain.rollbacks)

	require.Len(t, ks.imported, 10)
}

func TestOnTransactionPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ks := newFakeKeyStore(t)
	chain := &fakeChainSource{}

	w, err := Open(&chainparams.BCHMainNetParams, dir, ks, chain, 0, false)
	require.NoError(t, err)

	senderPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	var compressed [33]byte
	copy(compressed[:], senderPriv.PubKey().SerializeCompressed())
	var chainCode [32]byte
	_, err = rand.Read(chainCode[:])
	require.NoError(t, err)
	senderPC, err := paymentcode.New(compressed, chainCode)
	require.NoError(t, err)

	tx := buildNotificationTx(t, w, senderPriv, senderPC)
	require.NoError(t, w.OnTransaction(tx, nil))
	require.NoError(t, w.Stop())

	reopened, err := Open(&chainparams.BCHMainNetParams, dir, ks, &fakeChainSource{}, 0, false)
	require.NoError(t, err)
	channels := reopened.Channels()
	require.Len(t, channels, 1)
	_, ok := channels[senderPC.String()]
	require.True(t, ok)
}

func TestNewOutgoingChannelAndBroadcastMarksNotified(t *testing.T) {
	dir := t.TempDir()
	ks := newFakeKeyStore(t)
	chain := &fakeChainSource{}

	w, err := Open(&chainparams.BCHMainNetParams, dir, ks, chain, 0, false)
	require.NoError(t, err)

	peerKs := newFakeKeyStore(t)
	peerMaster, err := peerKs.MasterKey()
	require.NoError(t, err)
	peerCoinType, err := keychain.DeriveBip47CoinTypeKey(peerMaster, w.params)
	require.NoError(t, err)
	peerAccount, err := keychain.NewAccount(w.params, peerCoinType, 0)
	require.NoError(t, err)
	peerCode, err := peerAccount.PaymentCode()
	require.NoError(t, err)

	senderPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	var hash chainhash.Hash
	_, err = rand.Read(hash[:])
	require.NoError(t, err)

	utxo := notify.UTXO{
		Outpoint: wire.OutPoint{Hash: hash, Index: 0},
		Value:    100000,
		PrivKey:  senderPriv,
	}

	tx, err := w.NewOutgoingChannel(peerCode.String(), utxo, 1000, nil)
	require.NoError(t, err)
	require.NotNil(t, tx)

	channels := w.Channels()
	ch, ok := channels[peerCode.String()]
	require.True(t, ok)
	require.Equal(t, channel.StatusNotSent, ch.Status)

	broadcaster := &fakeBroadcaster{}
	require.NoError(t, w.Broadcast(peerCode.String(), tx, broadcaster))
	require.Len(t, broadcaster.sent, 1)

	channels = w.Channels()
	require.Equal(t, channel.StatusSentCfm, channels[peerCode.String()].Status)
}

func TestOpenContinuesWithEmptyChannelsOnCorruptSidecar(t *testing.T) {
	dir := t.TempDir()
	ks := newFakeKeyStore(t)

	sidecarPath := filepath.Join(
		coinDir(dir, chainparams.BCHMainNetParams.Coin),
		string(chainparams.BCHMainNetParams.Coin)+".bip47",
	)
	require.NoError(t, os.MkdirAll(filepath.Dir(sidecarPath), 0700))
	require.NoError(t, os.WriteFile(sidecarPath, []byte("not json"), 0600))

	w, err := Open(&chainparams.BCHMainNetParams, dir, ks, &fakeChainSource{}, 0, false)
	require.NoError(t, err)
	require.Empty(t, w.Channels())
}

func TestRestoreDeletesExistingChainFile(t *testing.T) {
	dir := t.TempDir()
	ks := newFakeKeyStore(t)
	chain := &fakeChainSource{}

	w, err := Open(&chainparams.BCHMainNetParams, dir, ks, chain, 0, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(w.chainFile, []byte("stale header data"), 0600))

	_, err = Open(&chainparams.BCHMainNetParams, dir, ks, chain, 0, true)
	require.NoError(t, err)

	_, statErr := os.Stat(w.chainFile)
	require.True(t, os.IsNotExist(statErr))
}
