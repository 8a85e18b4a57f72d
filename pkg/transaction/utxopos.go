package transaction

import (
	"fmt"
	"math/big"
)

var (
	blockOffset = big.NewInt(BlockOffset)
	txOffset    = big.NewInt(TxOffset)
)

// EncodeUtxoPos packs an input position into a single integer:
//
//	blknum*BlockOffset + txindex*TxOffset + oindex
func EncodeUtxoPos(in Input) *big.Int {
	pos := new(big.Int).Mul(new(big.Int).SetUint64(in.Blknum), blockOffset)
	pos.Add(pos, new(big.Int).Mul(new(big.Int).SetUint64(in.Txindex), txOffset))
	pos.Add(pos, new(big.Int).SetUint64(in.Oindex))
	return pos
}

// DecodeUtxoPos is the inverse of EncodeUtxoPos.
func DecodeUtxoPos(pos *big.Int) (Input, error) {
	if pos == nil || pos.Sign() < 0 {
		return Input{}, fmt.Errorf("utxo position must be non-negative, got %v", pos)
	}

	blknum, rem := new(big.Int).DivMod(pos, blockOffset, new(big.Int))
	txindex, oindex := new(big.Int).DivMod(rem, txOffset, new(big.Int))
	if !blknum.IsUint64() {
		return Input{}, fmt.Errorf("utxo position %s: block number overflows uint64", pos)
	}

	return Input{
		Blknum:  blknum.Uint64(),
		Txindex: txindex.Uint64(),
		Oindex:  oindex.Uint64(),
	}, nil
}

// ValidPosition reports whether in can round-trip through EncodeUtxoPos.
func ValidPosition(in Input) bool {
	return in.Txindex < TxOffset && in.Oindex < TxOffset
}

// CheckPosition returns a SizeConstraintError when in would be packed
// into the position of a different output.
func CheckPosition(in Input) error {
	if ValidPosition(in) {
		return nil
	}
	msg := fmt.Sprintf("input %s: txindex and oindex must be below %d", in, TxOffset)
	return &SizeConstraintError{
		Code:    ErrInvalidPosition,
		Message: msg,
	}
}
