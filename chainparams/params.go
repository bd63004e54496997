// Package chainparams carries the per-chain constants for the four networks
// this wallet understands — Bitcoin mainnet/testnet3 and Bitcoin Cash
// mainnet/testnet3 — and the Bitcoin Cash difficulty-adjustment algorithm
// that governs header acceptance on the two BCH variants.
//
// Each network is an immutable value rather than a process-wide singleton
// accessed through subclassing: callers hold a *Params by reference and
// pass it explicitly, which keeps tests free of global state.
package chainparams

import (
	"math/big"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Coin identifies one of the four supported chains by the identifier string
// used throughout the wallet file layout and the sidecar.
type Coin string

const (
	BTC  Coin = "BTC"
	TBTC Coin = "tBTC"
	BCH  Coin = "BCH"
	TBCH Coin = "tBCH"
)

// Params is the immutable set of constants that describe one of the four
// supported networks.
type Params struct {
	// Coin is the short identifier used for the per-coin wallet
	// directory and the sidecar/chain file names.
	Coin Coin

	// Net is the wire protocol magic that identifies the network on the
	// P2P layer.
	Net uint32

	// DefaultPort is the TCP port full nodes on this network listen on.
	DefaultPort string

	// CoinType is the BIP-44 coin type used in the BIP-47 account path
	// m/47'/CoinType'/account'. BCH shares BTC's coin type 0 in this
	// implementation rather than the registered 145; see DESIGN.md.
	CoinType uint32

	// PubKeyHashAddrID is the version byte prefixed to a RIPEMD160(SHA256(pubkey))
	// hash before Base58Check encoding to form a legacy P2PKH address.
	PubKeyHashAddrID byte

	// ScriptHashAddrID is the version byte for P2SH addresses.
	ScriptHashAddrID byte

	// PrivateKeyID is the version byte for WIF-encoded private keys.
	PrivateKeyID byte

	// HDPrivateKeyID and HDPublicKeyID are the four-byte version
	// prefixes serialized into BIP-32 extended private/public keys
	// ("xprv"/"xpub" and chain-specific equivalents).
	HDPrivateKeyID [4]byte
	HDPublicKeyID  [4]byte

	// GenesisHash is the hash of the network's genesis block.
	GenesisHash chainhash.Hash

	// DNSSeeds lists the network's bootstrap DNS seed hostnames.
	DNSSeeds []string

	// Checkpoints maps known-good block heights to their hash, used to
	// bound SPV header validation against old reorgs.
	Checkpoints map[int32]chainhash.Hash

	// URIScheme is the scheme used for payment URIs on this network,
	// e.g. "bitcoin" or "bitcoincash".
	URIScheme string

	// CashAddrPrefix is the CashAddr human-readable part for BCH chains
	// ("bitcoincash" or "bchtest"); empty for the two BTC variants,
	// which only use legacy Base58Check addresses.
	CashAddrPrefix string

	// UseForkID selects the BIP-143-style fork-id sighash flag used when
	// signing inputs on Bitcoin Cash.
	UseForkID bool

	// MinNonDustOutput is, in satoshis, the smallest output value this
	// network's relay rules consider non-dust; it is the value used for
	// a notification transaction's payment output.
	MinNonDustOutput int64

	// DAAActivationHeight is the block height at which the cash-work
	// difficulty algorithm (ComputeNextCashWork) replaces the classic
	// 2016-block retarget. Zero for networks that never activated it.
	DAAActivationHeight int32

	// PowLimit is the highest (easiest) target this network's proof of
	// work may have.
	PowLimit *big.Int

	// AllowsMinDifficulty enables the testnet special-case rule: a
	// block more than 2*targetSpacing after its parent may be mined at
	// PowLimit regardless of the DAA's computed target.
	AllowsMinDifficulty bool
}

var bigOne = big.NewInt(1)

// btcMainPowLimit is 2^224 - 1, Bitcoin's mainnet proof-of-work limit.
var btcMainPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

// btcTestPowLimit is 2^224 - 1 as well; testnet3 shares mainnet's limit but
// allows the minimum-difficulty special case.
var btcTestPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

// BTCMainNetParams describes the Bitcoin mainnet chain.
var BTCMainNetParams = Params{
	Coin:             BTC,
	Net:              0xd9b4bef9,
	DefaultPort:      "8333",
	CoinType:         0,
	PubKeyHashAddrID: 0x00,
	ScriptHashAddrID: 0x05,
	PrivateKeyID:     0x80,
	HDPrivateKeyID:   [4]byte{0x04, 0x88, 0xad, 0xe4},
	HDPublicKeyID:    [4]byte{0x04, 0x88, 0xb2, 0x1e},
	GenesisHash:      mustHash("000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"),
	DNSSeeds: []string{
		"seed.bitcoin.sipa.be",
		"dnsseed.bluematt.me",
		"dnsseed.bitcoin.dashjr.org",
		"seed.bitcoinstats.com",
	},
	Checkpoints:         map[int32]chainhash.Hash{},
	URIScheme:           "bitcoin",
	UseForkID:           false,
	MinNonDustOutput:    546,
	DAAActivationHeight: 0,
	PowLimit:            btcMainPowLimit,
}

// BTCTestNet3Params describes Bitcoin's third public test network.
var BTCTestNet3Params = Params{
	Coin:                TBTC,
	Net:                 0x0709110b,
	DefaultPort:         "18333",
	CoinType:            1,
	PubKeyHashAddrID:    0x6f,
	ScriptHashAddrID:    0xc4,
	PrivateKeyID:        0xef,
	HDPrivateKeyID:      [4]byte{0x04, 0x35, 0x83, 0x94},
	HDPublicKeyID:       [4]byte{0x04, 0x35, 0x87, 0xcf},
	GenesisHash:         mustHash("000000000933ea01ad0ee984209779baaec3ced90fa3f408719526f8d77f4943"),
	DNSSeeds:            []string{"testnet-seed.bitcoin.jonasschnelli.ch"},
	Checkpoints:         map[int32]chainhash.Hash{},
	URIScheme:           "bitcoin",
	UseForkID:           false,
	MinNonDustOutput:    546,
	DAAActivationHeight: 0,
	PowLimit:            btcTestPowLimit,
	AllowsMinDifficulty: true,
}

// BCHMainNetParams describes the Bitcoin Cash mainnet chain. Its legacy
// address header is 0, shared with BTC, per §6 of the specification; CashAddr
// text uses the "bitcoincash" prefix.
var BCHMainNetParams = Params{
	Coin:             BCH,
	Net:              0xe3e1f3e8,
	DefaultPort:      "8333",
	CoinType:         0,
	PubKeyHashAddrID: 0x00,
	ScriptHashAddrID: 0x05,
	PrivateKeyID:     0x80,
	HDPrivateKeyID:   [4]byte{0x04, 0x88, 0xad, 0xe4},
	HDPublicKeyID:    [4]byte{0x04, 0x88, 0xb2, 0x1e},
	GenesisHash:      mustHash("000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"),
	DNSSeeds: []string{
		"seed.bitcoinabc.org",
		"btccash-seeder.bitcoinunlimited.info",
		"seed.bitprim.org",
		"seed.deadalnix.me",
	},
	Checkpoints: map[int32]chainhash.Hash{
		504031: mustHash("0000000000000000011ebf65b60d0a3de80b8175be709d653b4c1a1beeb6ab9c"),
	},
	URIScheme:           "bitcoincash",
	CashAddrPrefix:      "bitcoincash",
	UseForkID:           true,
	MinNonDustOutput:    546,
	DAAActivationHeight: 504032,
	PowLimit:            btcMainPowLimit,
}

// BCHTestNet3Params describes the Bitcoin Cash testnet3 chain.
var BCHTestNet3Params = Params{
	Coin:                TBCH,
	Net:                 0xf4f3e5f4,
	DefaultPort:         "18333",
	CoinType:            1,
	PubKeyHashAddrID:    0x6f,
	ScriptHashAddrID:    0xc4,
	PrivateKeyID:        0xef,
	HDPrivateKeyID:      [4]byte{0x04, 0x35, 0x83, 0x94},
	HDPublicKeyID:       [4]byte{0x04, 0x35, 0x87, 0xcf},
	GenesisHash:         mustHash("000000000933ea01ad0ee984209779baaec3ced90fa3f408719526f8d77f4943"),
	DNSSeeds:            []string{"testnet-seed-abc.bitcoinforks.org"},
	Checkpoints:         map[int32]chainhash.Hash{},
	URIScheme:           "bitcoincash",
	CashAddrPrefix:      "bchtest",
	UseForkID:           true,
	MinNonDustOutput:    546,
	DAAActivationHeight: 1188697,
	PowLimit:            btcTestPowLimit,
	AllowsMinDifficulty: true,
}

func mustHash(s string) chainhash.Hash {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		panic(err)
	}
	return *h
}

// ByCoin returns the immutable Params value for the given coin identifier.
func ByCoin(coin Coin) (*Params, error) {
	switch coin {
	case BTC:
		return &BTCMainNetParams, nil
	case TBTC:
		return &BTCTestNet3Params, nil
	case BCH:
		return &BCHMainNetParams, nil
	case TBCH:
		return &BCHTestNet3Params, nil
	default:
		return nil, errUnknownCoin(coin)
	}
}

// ChainCfgParams adapts p into the *chaincfg.Params shape btcutil's address
// and hdkeychain constructors expect. Only the fields those packages
// actually read are populated.
func (p *Params) ChainCfgParams() *chaincfg.Params {
	return &chaincfg.Params{
		Net:              wire.BitcoinNet(p.Net),
		PubKeyHashAddrID: p.PubKeyHashAddrID,
		ScriptHashAddrID: p.ScriptHashAddrID,
		PrivateKeyID:     p.PrivateKeyID,
		HDPrivateKeyID:   p.HDPrivateKeyID,
		HDPublicKeyID:    p.HDPublicKeyID,
		Name:             string(p.Coin),
	}
}

type errUnknownCoin Coin

func (e errUnknownCoin) Error() string {
	return "chainparams: unknown coin " + string(e)
}
