// Package notify builds and parses BIP-47 notification transactions: the
// on-chain carrier that blinds a sender's payment code into a recipient's
// OP_RETURN output so a channel can bootstrap without any out-of-band
// exchange. Signing the constructed transaction is left to the wallet's
// external signer; this package only ever produces or consumes an unsigned
// *wire.MsgTx's shape.
package notify

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/kmels/bitcoincashj/chainparams"
	"github.com/kmels/bitcoincashj/ecdh"
	"github.com/kmels/bitcoincashj/paymentcode"
)

// notificationPrefix is the two leading bytes (version, features) every
// OP_RETURN notification payload starts with.
var notificationPrefix = [2]byte{paymentcode.Version1, 0x00}

// Errors returned by Parse.
var (
	// ErrNoOpReturn is returned when tx carries no output matching the
	// notification payload shape.
	ErrNoOpReturn = errors.New("notify: no matching OP_RETURN output")

	// ErrBadMaskLength is returned when the notification push cannot be
	// unblinded with the derived mask. An OP_RETURN push that is not
	// exactly paymentcode.PayloadLength bytes is not recognized as a
	// notification payload at all, and Parse returns ErrNoOpReturn for it.
	ErrBadMaskLength = errors.New("notify: OP_RETURN push is not 80 bytes")

	// ErrInvalidUnblindedCode is returned when unblinding the OP_RETURN
	// payload does not yield a well-formed payment code.
	ErrInvalidUnblindedCode = errors.New("notify: unblinded payload is not a valid payment code")
)

// UTXO is the spendable output the sender funds a notification transaction
// from: its outpoint, value, and the private key that signs that input. It
// is also the ECDH input on the sender's side.
type UTXO struct {
	Outpoint wire.OutPoint
	Value    int64
	PrivKey  *btcec.PrivateKey
}

// estimatedNotificationTxSize is the approximate serialized size, in bytes,
// of a one-input, three-output (payment + OP_RETURN + change) notification
// transaction with a compressed-key P2PKH signature script. It is used only
// to scale FeeRatePerKB into an absolute fee before a signature exists; the
// actual signed size may differ slightly.
const estimatedNotificationTxSize = 300

// outpointBytes serializes op as the 36-byte txid_le||vout_le used as the
// HMAC key for the blinding mask.
func outpointBytes(op wire.OutPoint) [ecdh.OutpointLength]byte {
	var out [ecdh.OutpointLength]byte
	copy(out[:32], op.Hash[:])
	binary.LittleEndian.PutUint32(out[32:], op.Index)
	return out
}

// Construct builds the unsigned notification transaction Alice sends to
// bootstrap a channel with Bob: one dust output to Bob's notification
// address, one OP_RETURN output carrying Alice's blinded payment code, and,
// if the UTXO leaves enough left over once feeRatePerKB is applied, a
// change output back to changeScript. The returned transaction's sole
// input has no signature script; the wallet's external signer fills it in
// before broadcast.
func Construct(
	params *chainparams.Params, utxo UTXO, feeRatePerKB int64,
	senderPC *paymentcode.PaymentCode, recipientNotifPubKey *btcec.PublicKey,
	changeScript []byte,
) (*wire.MsgTx, error) {

	sharedX, err := ecdh.SharedSecretX(utxo.PrivKey, recipientNotifPubKey)
	if err != nil {
		return nil, fmt.Errorf("notify: computing shared secret: %w", err)
	}

	mask := ecdh.Mask(outpointBytes(utxo.Outpoint), sharedX)

	payload := append([]byte(nil), senderPC.Payload()...)
	if err := paymentcode.Blind(payload, mask[:]); err != nil {
		return nil, fmt.Errorf("notify: blinding payment code: %w", err)
	}

	recipientHash := btcutil.Hash160(recipientNotifPubKey.SerializeCompressed())
	recipientAddr, err := btcutil.NewAddressPubKeyHash(
		recipientHash, params.ChainCfgParams(),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: building recipient address: %w", err)
	}
	paymentScript, err := txscript.PayToAddrScript(recipientAddr)
	if err != nil {
		return nil, fmt.Errorf("notify: building payment script: %w", err)
	}

	opReturnScript, err := txscript.NullDataScript(payload)
	if err != nil {
		return nil, fmt.Errorf("notify: building OP_RETURN script: %w", err)
	}

	fee := feeRatePerKB * estimatedNotificationTxSize / 1000

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&utxo.Outpoint, nil, nil))
	tx.AddTxOut(wire.NewTxOut(params.MinNonDustOutput, paymentScript))
	tx.AddTxOut(wire.NewTxOut(0, opReturnScript))

	change := utxo.Value - params.MinNonDustOutput - fee
	if change >= params.MinNonDustOutput && len(changeScript) > 0 {
		tx.AddTxOut(wire.NewTxOut(change, changeScript))
	}

	return tx, nil
}

// findNotificationPush scans tx's outputs for the unique null-data script
// whose pushed data starts with the version/features notification prefix
// and is exactly PayloadLength bytes.
func findNotificationPush(tx *wire.MsgTx) ([]byte, error) {
	for _, out := range tx.TxOut {
		if txscript.GetScriptClass(out.PkScript) != txscript.NullDataTy {
			continue
		}

		pushes, err := txscript.PushedData(out.PkScript)
		if err != nil || len(pushes) == 0 {
			continue
		}

		data := pushes[0]
		if len(data) != paymentcode.PayloadLength {
			continue
		}
		if data[0] != notificationPrefix[0] || data[1] != notificationPrefix[1] {
			continue
		}

		return data, nil
	}

	return nil, ErrNoOpReturn
}

// firstInputPubKey extracts the compressed public key from a standard
// P2PKH signature script: OP_DATA_<len> <sig> OP_DATA_<len> <pubkey>.
func firstInputPubKey(tx *wire.MsgTx) (*btcec.PublicKey, error) {
	if len(tx.TxIn) == 0 {
		return nil, errors.New("notify: transaction has no inputs")
	}

	pushes, err := txscript.PushedData(tx.TxIn[0].SignatureScript)
	if err != nil || len(pushes) < 2 {
		return nil, fmt.Errorf("notify: first input's signature script is not P2PKH-shaped")
	}

	return btcec.ParsePubKey(pushes[len(pushes)-1])
}

// Parse recovers the sender's unblinded payment code from a confirmed or
// relayed notification transaction, using the recipient's notification
// private key.
func Parse(tx *wire.MsgTx, myNotifPriv *btcec.PrivateKey) (*paymentcode.PaymentCode, error) {
	push, err := findNotificationPush(tx)
	if err != nil {
		return nil, err
	}
	if len(push) != paymentcode.PayloadLength {
		return nil, ErrBadMaskLength
	}

	inputPubKey, err := firstInputPubKey(tx)
	if err != nil {
		return nil, fmt.Errorf("notify: recovering input pubkey: %w", err)
	}

	sharedX, err := ecdh.SharedSecretX(myNotifPriv, inputPubKey)
	if err != nil {
		return nil, fmt.Errorf("notify: computing shared secret: %w", err)
	}

	outpoint := outpointBytes(tx.TxIn[0].PreviousOutPoint)
	mask := ecdh.Mask(outpoint, sharedX)

	unblinded := append([]byte(nil), push...)
	if err := paymentcode.Unblind(unblinded, mask[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMaskLength, err)
	}

	pc, err := paymentcode.FromPayload(unblinded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUnblindedCode, err)
	}

	return pc, nil
}

// IsNotificationTransaction reports whether tx carries an OP_RETURN output
// shaped like a BIP-47 notification payload, without attempting to decrypt
// it. It is a cheap pre-filter the wallet applies before calling Parse.
func IsNotificationTransaction(tx *wire.MsgTx) bool {
	_, err := findNotificationPush(tx)
	return err == nil
}
