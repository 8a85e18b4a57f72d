package transaction

import (
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	guardA   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	guardB   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	tokenOne = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

// Bytes produced by an independent RLP encoder for fixtureBody.
const fixtureUnsignedHex = "f8d101f844a0000000000000000000000000000000000000000000000000000000e8d4a51000" +
	"a0000000000000000000000000000000000000000000000000000001d1a94a95318080f866f501f39411111111" +
	"11111111111111111111111111111111940000000000000000000000000000000000000000880de0b6b3a76400" +
	"00ed01eb9422222222222222222222222222222222222222229433333333333333333333333333333333333333" +
	"3305c0c080a000000000000000000000000000000000000000000000000000000068656c6c6f"

func fixtureBody(t *testing.T) *Body {
	t.Helper()

	metadata, err := ParseMetadata("hello")
	require.NoError(t, err)

	return &Body{
		TxType: TxTypePayment,
		Inputs: []Input{
			{Blknum: 1000, Txindex: 0, Oindex: 0},
			{Blknum: 2000, Txindex: 3, Oindex: 1},
		},
		Outputs: []Output{
			{OutputType: OutputTypePayment, OutputGuard: guardA, Currency: NativeCurrency, Amount: big.NewInt(1_000_000_000_000_000_000)},
			{OutputType: OutputTypePayment, OutputGuard: guardB, Currency: tokenOne, Amount: big.NewInt(5)},
		},
		TxData:   0,
		Metadata: metadata,
	}
}

func TestEncodeMatchesReferenceBytes(t *testing.T) {
	encoded, err := fixtureBody(t).Encode()
	require.NoError(t, err)
	assert.Equal(t, fixtureUnsignedHex, hex.EncodeToString(encoded))
}

func TestBodyHash(t *testing.T) {
	hash, err := fixtureBody(t).Hash()
	require.NoError(t, err)
	assert.Equal(t, "0x5820fd38ef66a5c4e3cd37f54cb79fc0d95ad9a3ce0a76466a5f897edc9f50af", hash.Hex())
}

func TestRoundTripUnsigned(t *testing.T) {
	body := fixtureBody(t)
	encoded, err := body.Encode()
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	assert.Nil(t, decoded.Signatures)
	assertBodiesEqual(t, body, &decoded.Body)
}

func TestRoundTripSigned(t *testing.T) {
	body := fixtureBody(t)
	sigs := [][]byte{bytesOf(0xaa, SignatureLength), bytesOf(0xbb, SignatureLength)}

	encoded, err := (&Signed{Body: *body, Signatures: sigs}).Encode()
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, sigs, decoded.Signatures)
	assertBodiesEqual(t, body, &decoded.Body)

	// The unsigned view of a signed transaction is the unsigned encoding.
	unsigned, err := Encode(&decoded.Body, decoded.Signatures, false)
	require.NoError(t, err)
	assert.Equal(t, fixtureUnsignedHex, hex.EncodeToString(unsigned))
}

func TestRoundTripSignedWithoutSignatures(t *testing.T) {
	body := fixtureBody(t)
	encoded, err := (&Signed{Body: *body}).Encode()
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.NotNil(t, decoded.Signatures)
	assert.Empty(t, decoded.Signatures)
}

func TestEncodeRejectsBadSignatureLength(t *testing.T) {
	_, err := Encode(fixtureBody(t), [][]byte{bytesOf(0xaa, SignatureLength), {0x01, 0x02}}, true)
	require.Error(t, err)
}

func TestEncodeRejectsSignatureCount(t *testing.T) {
	sig := bytesOf(0xaa, SignatureLength)
	tests := []struct {
		name string
		sigs [][]byte
	}{
		{"fewer than inputs", [][]byte{sig}},
		{"more than inputs", [][]byte{sig, sig, sig}},
		{"more than max inputs", [][]byte{sig, sig, sig, sig, sig}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(fixtureBody(t), tt.sigs, true)
			var sizeErr *SizeConstraintError
			require.True(t, errors.As(err, &sizeErr), "expected SizeConstraintError, got %v", err)
			assert.Equal(t, ErrSignatureCount, sizeErr.Code)
		})
	}
}

func TestEncodeRejectsOverflowingPosition(t *testing.T) {
	tests := []Input{
		{Blknum: 1, Txindex: 0, Oindex: TxOffset},
		{Blknum: 1, Txindex: TxOffset, Oindex: 0},
	}

	for _, in := range tests {
		t.Run(in.String(), func(t *testing.T) {
			body := fixtureBody(t)
			body.Inputs = []Input{in}

			// 1/0/10000 would otherwise pack into the position of 1/1/0.
			_, err := body.Encode()
			var sizeErr *SizeConstraintError
			require.True(t, errors.As(err, &sizeErr), "expected SizeConstraintError, got %v", err)
			assert.Equal(t, ErrInvalidPosition, sizeErr.Code)

			_, err = body.Hash()
			require.Error(t, err)
		})
	}
}

func TestEncodeRejectsTooManyOutputs(t *testing.T) {
	body := fixtureBody(t)
	for len(body.Outputs) <= MaxOutputs {
		body.Outputs = append(body.Outputs, body.Outputs[0])
	}

	_, err := body.Encode()
	var sizeErr *SizeConstraintError
	require.True(t, errors.As(err, &sizeErr))
	assert.Equal(t, ErrTooManyOutputs, sizeErr.Code)
}

func TestZeroAmountOutputIsDropped(t *testing.T) {
	body := fixtureBody(t)
	body.Outputs = append(body.Outputs, Output{OutputType: OutputTypePayment, OutputGuard: guardA, Amount: big.NewInt(0)})

	encoded, err := body.Encode()
	require.NoError(t, err)
	assert.Equal(t, fixtureUnsignedHex, hex.EncodeToString(encoded))

	decoded, err := DecodeBody(encoded)
	require.NoError(t, err)
	assert.Len(t, decoded.Outputs, 2)
}

func TestDecodeRejectsWrongArity(t *testing.T) {
	tests := []struct {
		name  string
		items []interface{}
	}{
		{"empty list", []interface{}{}},
		{"four elements", []interface{}{uint64(1), []interface{}{}, []interface{}{}, uint64(0)}},
		{"seven elements", []interface{}{
			[]interface{}{}, uint64(1), []interface{}{}, []interface{}{}, uint64(0), NullMetadata[:], uint64(9),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := rlp.EncodeToBytes(tt.items)
			require.NoError(t, err)

			_, err = Decode(data)
			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr), "expected DecodeError, got %v", err)
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, {0x01}, {0xc1}, append(mustDecodeHex(t, fixtureUnsignedHex), 0x00)} {
		_, err := Decode(data)
		var decodeErr *DecodeError
		assert.True(t, errors.As(err, &decodeErr), "expected DecodeError for %x, got %v", data, err)
	}
}

func TestDecodeAcceptsOmittedSlots(t *testing.T) {
	metadata := NullMetadata
	data, err := rlp.EncodeToBytes([]interface{}{
		uint64(1),
		[]interface{}{common.LeftPadBytes(EncodeUtxoPos(Input{Blknum: 7, Txindex: 1, Oindex: 2}).Bytes(), 32)},
		[]interface{}{
			[]interface{}{uint64(1), []interface{}{guardA, NativeCurrency, big.NewInt(42)}},
		},
		uint64(0),
		metadata[:],
	})
	require.NoError(t, err)

	body, err := DecodeBody(data)
	require.NoError(t, err)
	assert.Equal(t, []Input{{Blknum: 7, Txindex: 1, Oindex: 2}}, body.Inputs)
	require.Len(t, body.Outputs, 1)
	assert.Equal(t, "42", body.Outputs[0].Amount.String())

	padded := body.PaddedOutputs()
	assert.True(t, padded[3].Equal(DecodedNullOutput()))
	assert.Equal(t, OutputTypePayment, padded[3].OutputType)
	assert.Equal(t, NullInput, body.PaddedInputs()[1])
}

func TestDecodeRejectsTooManySlots(t *testing.T) {
	inputs := make([]interface{}, MaxInputs+1)
	for i := range inputs {
		inputs[i] = common.LeftPadBytes(big.NewInt(int64(i+1)*BlockOffset).Bytes(), 32)
	}
	data, err := rlp.EncodeToBytes([]interface{}{uint64(1), inputs, []interface{}{}, uint64(0), NullMetadata[:]})
	require.NoError(t, err)

	_, err = Decode(data)
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
}

func TestDepositRoundTrip(t *testing.T) {
	amount := big.NewInt(1_000_000_000_000_000_000)
	encoded, err := EncodeDeposit(guardA, amount, NativeCurrency)
	require.NoError(t, err)
	assert.Equal(t,
		"f86301c480808080f839f501f3941111111111111111111111111111111111111111940000000000000000000000000000000000000000880de0b6b3a7640000c0c0c080a00000000000000000000000000000000000000000000000000000000000000000",
		hex.EncodeToString(encoded))

	deposit, err := DecodeDeposit(encoded)
	require.NoError(t, err)
	assert.Equal(t, guardA, deposit.Owner)
	assert.Equal(t, NativeCurrency, deposit.Currency)
	assert.Equal(t, 0, amount.Cmp(deposit.Amount))
}

func TestDecodeDepositRejectsPayment(t *testing.T) {
	_, err := DecodeDeposit(mustDecodeHex(t, fixtureUnsignedHex))
	require.Error(t, err)
}

func assertBodiesEqual(t *testing.T, want, got *Body) {
	t.Helper()

	assert.Equal(t, want.TxType, got.TxType)
	assert.Equal(t, want.Inputs, got.Inputs)
	assert.Equal(t, want.TxData, got.TxData)
	assert.Equal(t, want.Metadata, got.Metadata)
	require.Len(t, got.Outputs, len(want.Outputs))
	for i := range want.Outputs {
		assert.True(t, want.Outputs[i].Equal(got.Outputs[i]), "output %d differs", i)
	}
}

func bytesOf(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func mustDecodeHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}
