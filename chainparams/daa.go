package chainparams

import (
	"errors"
	"math/big"
)

// targetSpacing is the intended average time between blocks, in seconds, on
// both Bitcoin and Bitcoin Cash.
const targetSpacing = 600

// daaWindow is the number of blocks the cash difficulty algorithm looks back
// over when computing the next target.
const daaWindow = 144

// ErrInsufficientHistory is returned by ComputeNextCashWork when the chain
// is not yet daaWindow+3 blocks deep, the bootstrap concession also made by
// the original implementation: let early blocks through rather than refuse
// to sync.
var ErrInsufficientHistory = errors.New("chainparams: insufficient header history for cash DAA")

// HeaderView is the minimal read-only view the cash difficulty algorithm
// needs of one block header. The SPV header store that supplies these
// views, and tracks cumulative chain work, is an external collaborator of
// this package; chainparams only consumes it.
type HeaderView interface {
	Height() int32
	Timestamp() int64
	Bits() uint32
	// ChainWork is the cumulative proof-of-work committed by the chain up
	// to and including this header, as tracked by the header store.
	ChainWork() *big.Int
}

// HeaderProvider resolves ancestor headers by height, as an SPV header
// store does over its locally synced chain.
type HeaderProvider interface {
	// HeaderByHeight returns the header at height, or an error if the
	// store does not hold it (not yet synced, or pruned).
	HeaderByHeight(height int32) (HeaderView, error)
}

// suitableBlock returns the median-by-timestamp of the three headers
// {cur, cur's parent, cur's grandparent} via a fixed three-element sorting
// network, the same selection the original cash difficulty algorithm
// applies to suppress timestamp manipulation at the window's edges.
func suitableBlock(provider HeaderProvider, cur HeaderView) (HeaderView, error) {
	b2, err := provider.HeaderByHeight(cur.Height() - 1)
	if err != nil {
		return nil, err
	}
	b1, err := provider.HeaderByHeight(cur.Height() - 2)
	if err != nil {
		return nil, err
	}
	blocks := [3]HeaderView{b1, b2, cur}

	if blocks[0].Timestamp() > blocks[2].Timestamp() {
		blocks[0], blocks[2] = blocks[2], blocks[0]
	}
	if blocks[0].Timestamp() > blocks[1].Timestamp() {
		blocks[0], blocks[1] = blocks[1], blocks[0]
	}
	if blocks[1].Timestamp() > blocks[2].Timestamp() {
		blocks[1], blocks[2] = blocks[2], blocks[1]
	}
	return blocks[1], nil
}

// computeTarget derives the next target from the work performed and time
// elapsed between two suitable blocks 144 blocks apart: projected work is
// scaled to a 600-second spacing, then inverted back into a target.
func computeTarget(first, last HeaderView, powLimit *big.Int) *big.Int {
	workDiff := new(big.Int).Sub(last.ChainWork(), first.ChainWork())

	timeDiff := last.Timestamp() - first.Timestamp()
	switch {
	case timeDiff > 288*targetSpacing:
		timeDiff = 288 * targetSpacing
	case timeDiff < 72*targetSpacing:
		timeDiff = 72 * targetSpacing
	}

	projectedWork := new(big.Int).Mul(workDiff, big.NewInt(targetSpacing))
	projectedWork.Div(projectedWork, big.NewInt(timeDiff))

	if projectedWork.Sign() == 0 {
		return new(big.Int).Set(powLimit)
	}

	target := new(big.Int).Lsh(bigOne, 256)
	target.Div(target, projectedWork)
	target.Sub(target, bigOne)

	if target.Cmp(powLimit) > 0 {
		return new(big.Int).Set(powLimit)
	}
	return target
}

// ComputeNextCashWork returns the compact-form difficulty target the block
// following tip must satisfy, per the Bitcoin Cash DAA activated on mainnet
// at height 504032. Callers on a chain below params.DAAActivationHeight
// should use the classic 2016-block retarget instead.
//
// AllowsMinDifficulty blocks (testnet blocks mined more than 2*targetSpacing
// after their parent) are the caller's responsibility to detect against the
// candidate block's own timestamp; this function always returns the DAA's
// computed target.
func ComputeNextCashWork(provider HeaderProvider, tip HeaderView, params *Params) (uint32, error) {
	if tip.Height() < daaWindow+3 {
		return bigToCompact(params.PowLimit), ErrInsufficientHistory
	}

	last, err := suitableBlock(provider, tip)
	if err != nil {
		return 0, err
	}

	firstAnchor, err := provider.HeaderByHeight(tip.Height() - daaWindow)
	if err != nil {
		return 0, err
	}
	first, err := suitableBlock(provider, firstAnchor)
	if err != nil {
		return 0, err
	}

	target := computeTarget(first, last, params.PowLimit)
	return bigToCompact(target), nil
}

// ComputeNextBitcoinWork returns the classic 2016-block Bitcoin retarget
// target for the block following a window boundary. prevBits is the
// compact form of the current target in effect and actualTimespan is the
// wall-clock time, in seconds, the most recent 2016 blocks took to mine.
func ComputeNextBitcoinWork(prevBits uint32, actualTimespan int64, params *Params) uint32 {
	const (
		targetTimespan = 14 * 24 * 60 * 60 // two weeks, in seconds
		minTimespan    = targetTimespan / 4
		maxTimespan    = targetTimespan * 4
	)

	if actualTimespan < minTimespan {
		actualTimespan = minTimespan
	}
	if actualTimespan > maxTimespan {
		actualTimespan = maxTimespan
	}

	oldTarget := compactToBig(prevBits)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(actualTimespan))
	newTarget.Div(newTarget, big.NewInt(targetTimespan))

	if newTarget.Cmp(params.PowLimit) > 0 {
		newTarget.Set(params.PowLimit)
	}
	return bigToCompact(newTarget)
}

// calcWork converts a compact-form difficulty bits field into the amount of
// work a block satisfying it represents, as 2^256 / (target+1).
func calcWork(bits uint32) *big.Int {
	target := compactToBig(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}
	denominator := new(big.Int).Add(target, bigOne)
	work := new(big.Int).Lsh(bigOne, 256)
	return work.Div(work, denominator)
}

// compactToBig converts a compact-form target (the "bits" field in a block
// header) into its full big.Int representation. The format packs a 3-byte
// mantissa and a 1-byte base-256 exponent, the same encoding used throughout
// the Bitcoin and Bitcoin Cash codebases.
func compactToBig(compact uint32) *big.Int {
	mantissa := compact & 0x007fffff
	isNegative := compact&0x00800000 != 0
	exponent := uint(compact >> 24)

	var bn *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		bn = big.NewInt(int64(mantissa))
	} else {
		bn = big.NewInt(int64(mantissa))
		bn.Lsh(bn, 8*(exponent-3))
	}

	if isNegative {
		bn = bn.Neg(bn)
	}
	return bn
}

// bigToCompact converts a big.Int target into the compact "bits" encoding.
func bigToCompact(n *big.Int) uint32 {
	if n.Sign() == 0 {
		return 0
	}

	var mantissa uint32
	exponent := uint(len(n.Bytes()))

	if exponent <= 3 {
		mantissa = uint32(n.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		tn := new(big.Int).Set(n)
		mantissa = uint32(tn.Rsh(tn, 8*(exponent-3)).Bits()[0])
	}

	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	compact := uint32(exponent<<24) | mantissa
	if n.Sign() < 0 {
		compact |= 0x00800000
	}
	return compact
}
