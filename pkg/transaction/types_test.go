package transaction

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUTXOConversions(t *testing.T) {
	utxo := UTXO{Blknum: 5, Txindex: 6, Oindex: 1, Owner: guardA, Currency: tokenOne, Amount: big.NewInt(99)}

	assert.Equal(t, Input{Blknum: 5, Txindex: 6, Oindex: 1}, utxo.Input())
	assert.Equal(t, "5000060001", utxo.Pos().String())

	out := utxo.Output()
	assert.Equal(t, OutputTypePayment, out.OutputType)
	assert.Equal(t, guardA, out.OutputGuard)

	// The conversion copies the amount.
	out.Amount.SetInt64(1)
	assert.Equal(t, "99", utxo.Amount.String())
}

func TestNewPaymentAndFee(t *testing.T) {
	_, err := NewPayment(guardA, NativeCurrency, big.NewInt(0))
	require.Error(t, err)
	_, err = NewPayment(NativeCurrency, NativeCurrency, big.NewInt(1))
	require.Error(t, err)
	p, err := NewPayment(guardA, tokenOne, big.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, "3", p.Amount.String())

	_, err = NewFee(NativeCurrency, big.NewInt(-1))
	require.Error(t, err)
	f, err := NewFee(NativeCurrency, big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, 0, f.Amount.Sign())
}

func TestValidateRejectsOverflowingPosition(t *testing.T) {
	body := &Body{
		TxType:  TxTypePayment,
		Inputs:  []Input{{Blknum: 1, Txindex: 0, Oindex: TxOffset}},
		Outputs: []Output{{OutputType: OutputTypePayment, OutputGuard: guardA, Amount: big.NewInt(1)}},
	}

	err := body.Validate(false)
	var sizeErr *SizeConstraintError
	require.True(t, errors.As(err, &sizeErr))
	assert.Equal(t, ErrInvalidPosition, sizeErr.Code)
}
