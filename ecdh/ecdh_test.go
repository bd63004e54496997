package ecdh

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/kmels/bitcoincashj/chainparams"
	"github.com/kmels/bitcoincashj/keychain"
)

func TestSharedSecretXIsSymmetric(t *testing.T) {
	alicePriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	bobPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	aliceSide, err := SharedSecretX(alicePriv, bobPriv.PubKey())
	require.NoError(t, err)
	bobSide, err := SharedSecretX(bobPriv, alicePriv.PubKey())
	require.NoError(t, err)

	require.Equal(t, aliceSide, bobSide)
}

func TestMaskIsDeterministicAndOutpointSensitive(t *testing.T) {
	var sharedX [32]byte
	for i := range sharedX {
		sharedX[i] = byte(i)
	}

	var outpointA, outpointB [OutpointLength]byte
	outpointA[0] = 0x01
	outpointB[0] = 0x02

	maskA1 := Mask(outpointA, sharedX)
	maskA2 := Mask(outpointA, sharedX)
	require.Equal(t, maskA1, maskA2)

	maskB := Mask(outpointB, sharedX)
	require.NotEqual(t, maskA1, maskB)
}

func TestTweakPrivateKeyMatchesTweakedPubKey(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	var sharedX [32]byte
	for i := range sharedX {
		sharedX[i] = byte(i + 7)
	}
	tweak := IncomingTweak(sharedX)

	tweaked, err := TweakPrivateKey(priv, tweak)
	require.NoError(t, err)

	var tweakScalar btcec.ModNScalar
	tweakScalar.SetByteSlice(tweak[:])

	var tweakJacobian, basePointJacobian, resultJacobian btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&tweakScalar, &tweakJacobian)
	priv.PubKey().AsJacobian(&basePointJacobian)
	btcec.AddNonConst(&basePointJacobian, &tweakJacobian, &resultJacobian)
	resultJacobian.ToAffine()
	wantPub := btcec.NewPublicKey(&resultJacobian.X, &resultJacobian.Y)

	require.True(t, tweaked.PubKey().IsEqual(wantPub))
}

// bobAccount derives Bob's BIP-47 account over the fixed mnemonic used
// throughout the cross-implementation vectors.
func bobAccount(t *testing.T) *keychain.Account {
	words := strings.Fields(
		"reward upper indicate eight swift arch injury crystal super wrestle already dentist",
	)
	master, err := keychain.MasterKeyFromMnemonic(words, "", &chainparams.BCHMainNetParams)
	require.NoError(t, err)

	coinTypeKey, err := keychain.DeriveBip47CoinTypeKey(master, &chainparams.BCHMainNetParams)
	require.NoError(t, err)

	account, err := keychain.NewAccount(&chainparams.BCHMainNetParams, coinTypeKey, 0)
	require.NoError(t, err)
	return account
}

// aliceNotificationPubKey0 derives payment-code pubkey #0 for Alice's fixed
// mnemonic, the peer pubkey Bob's shared-secret vectors are computed
// against.
func aliceNotificationPubKey0(t *testing.T) *btcec.PublicKey {
	peer, err := keychain.NewAccountFromPaymentCode(
		&chainparams.BCHMainNetParams,
		"PM8TJTLJbPRGxSbc8EJi42Wrr6QbNSaSSVJ5Y3E4pbCYiTHUskHg13935Ubb7q8tx9GVbh2UuRnBc3WSyJHhUrw8KhprKnn9eDznYGieTzFcwQRya4GA",
	)
	require.NoError(t, err)

	pub, err := peer.PubKeyAt(0)
	require.NoError(t, err)
	return pub
}

// TestSharedSecretXMatchesBobReceivingFromAliceVector pins SharedSecretX
// against the known shared secrets Bob computes, at payment-key indices 0,
// 1, and 9, when receiving from Alice's payment code: the one leg of the
// incoming-address lookahead derivation not already covered by the
// payment-code and notification-address vectors in keychain's account
// tests.
func TestSharedSecretXMatchesBobReceivingFromAliceVector(t *testing.T) {
	bob := bobAccount(t)
	alicePub0 := aliceNotificationPubKey0(t)

	cases := []struct {
		index int
		want  string
	}{
		{0, "f5bb84706ee366052471e6139e6a9a969d586e5fe6471a9b96c3d8caefe86fef"},
		{1, "adfb9b18ee1c4460852806a8780802096d67a8c1766222598dc801076beb0b4d"},
		{9, "fe36c27c62c99605d6cd7b63bf8d9fe85d753592b14744efca8be20a4d767c37"},
	}

	for _, c := range cases {
		bobPriv, err := bob.KeyAt(uint32(c.index))
		require.NoError(t, err)

		sharedX, err := SharedSecretX(bobPriv, alicePub0)
		require.NoError(t, err)

		want, err := hex.DecodeString(c.want)
		require.NoError(t, err)
		require.Equal(t, want, sharedX[:], "index %d", c.index)
	}
}
