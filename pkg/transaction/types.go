// Package transaction implements the childchain payment transaction format.
//
// The types in this file are the minimal wire-format structures (Input,
// Output, Body, Signed) plus the superset ledger view (UTXO) that wallets
// receive from the Watcher. The ledger view is never written to the wire;
// it is converted to wire structures with explicit conversion methods.
//
// Wire layout (RLP):
//
//	unsigned: [txType, inputs[4], outputs[4], txData, metadata]
//	signed:   [sigs[], txType, inputs[4], outputs[4], txData, metadata]
//
// An input slot is a 32-byte big-endian utxo position, or an empty byte
// string for an unused slot. An output slot is
// [outputType, [outputGuard, currency, amount]], or an empty list.
package transaction

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Format limits and position offsets.
const (
	MaxInputs  = 4 // Input slots serialized on the wire
	MaxOutputs = 4 // Output slots serialized on the wire

	BlockOffset = 1_000_000_000 // blknum multiplier in a utxo position
	TxOffset    = 10_000        // txindex multiplier in a utxo position

	MetadataLength  = 32 // Metadata is always 32 bytes on the wire
	SignatureLength = 65 // r || s || v
)

// Transaction and output types understood by the payment exit game.
const (
	TxTypePayment     uint64 = 1
	OutputTypePayment uint64 = 1
)

// NativeCurrency is the currency id of the rootchain native asset (ETH).
var NativeCurrency = common.Address{}

// NullMetadata is the all-zero metadata used when none is supplied.
var NullMetadata = [MetadataLength]byte{}

// Input references a spendable output by its position in the childchain.
type Input struct {
	Blknum  uint64 // Childchain block number
	Txindex uint64 // Transaction index within the block
	Oindex  uint64 // Output index within the transaction
}

// NullInput is the value of an unused input slot.
var NullInput = Input{}

// IsNull reports whether the input is an unused slot.
func (in Input) IsNull() bool {
	return in == NullInput
}

func (in Input) String() string {
	return fmt.Sprintf("%d/%d/%d", in.Blknum, in.Txindex, in.Oindex)
}

// Output is a transaction output as it appears on the wire.
type Output struct {
	OutputType  uint64         // Output type (1 = payment)
	OutputGuard common.Address // Owner (guard) of the output
	Currency    common.Address // Token contract, zero for the native asset
	Amount      *big.Int       // Non-negative amount in the token's base unit
}

// IsNull reports whether the output occupies no slot on the wire.
// A zero amount output is indistinguishable from an absent one.
func (o Output) IsNull() bool {
	return o.Amount == nil || o.Amount.Sign() == 0
}

// Equal compares two outputs by value.
func (o Output) Equal(other Output) bool {
	return o.OutputType == other.OutputType &&
		o.OutputGuard == other.OutputGuard &&
		o.Currency == other.Currency &&
		amountOrZero(o.Amount).Cmp(amountOrZero(other.Amount)) == 0
}

// DecodedNullOutput is what an unused output slot reconstructs to when a
// decoded body is padded back to MaxOutputs slots.
func DecodedNullOutput() Output {
	return Output{
		OutputType: OutputTypePayment,
		Amount:     new(big.Int),
	}
}

// Body is an unsigned transaction.
type Body struct {
	TxType   uint64               // Transaction type (1 = payment)
	Inputs   []Input              // Filled input slots, in order
	Outputs  []Output             // Filled output slots, in order
	TxData   uint64               // Reserved, always 0
	Metadata [MetadataLength]byte // Free-form 32 bytes
}

// PaddedInputs returns exactly MaxInputs slots, filling unused ones with
// NullInput.
func (b *Body) PaddedInputs() [MaxInputs]Input {
	var slots [MaxInputs]Input
	copy(slots[:], b.Inputs)
	return slots
}

// PaddedOutputs returns exactly MaxOutputs slots, filling unused ones with
// DecodedNullOutput.
func (b *Body) PaddedOutputs() [MaxOutputs]Output {
	var slots [MaxOutputs]Output
	for i := range slots {
		if i < len(b.Outputs) {
			slots[i] = b.Outputs[i]
		} else {
			slots[i] = DecodedNullOutput()
		}
	}
	return slots
}

// Validate checks the size invariants of the body.
//
// Deposits are the only transactions allowed to have no inputs, so
// allowEmptyInputs is only set when encoding deposits.
func (b *Body) Validate(allowEmptyInputs bool) error {
	if len(b.Inputs) > MaxInputs {
		return &SizeConstraintError{
			Code:    ErrTooManyInputs,
			Message: fmt.Sprintf("transaction has %d inputs, maximum is %d", len(b.Inputs), MaxInputs),
		}
	}
	if len(b.Inputs) == 0 && !allowEmptyInputs {
		return &SizeConstraintError{
			Code:    ErrTooFewInputs,
			Message: "transaction needs at least 1 input",
		}
	}
	for _, in := range b.Inputs {
		if err := CheckPosition(in); err != nil {
			return err
		}
	}
	if len(b.Outputs) > MaxOutputs {
		return &SizeConstraintError{
			Code:    ErrTooManyOutputs,
			Message: fmt.Sprintf("transaction has %d outputs, maximum is %d", len(b.Outputs), MaxOutputs),
		}
	}
	for i, out := range b.Outputs {
		if out.Amount != nil && out.Amount.Sign() < 0 {
			return fmt.Errorf("output %d has negative amount %s", i, out.Amount)
		}
	}
	return nil
}

// Signed is a transaction body together with one signature per filled
// input slot, in input order.
type Signed struct {
	Body
	Signatures [][]byte
}

// UTXO is the ledger view of a spendable output as reported by the Watcher.
//
// It carries the position fields and the output fields side by side. Use
// Input and Output to obtain the wire-format structures.
type UTXO struct {
	Blknum     uint64
	Txindex    uint64
	Oindex     uint64
	OutputType uint64
	Owner      common.Address
	Currency   common.Address
	Amount     *big.Int
}

// Input returns the position of the UTXO as a transaction input.
func (u UTXO) Input() Input {
	return Input{Blknum: u.Blknum, Txindex: u.Txindex, Oindex: u.Oindex}
}

// Output returns the UTXO as a wire-format output.
func (u UTXO) Output() Output {
	outputType := u.OutputType
	if outputType == 0 {
		outputType = OutputTypePayment
	}
	return Output{
		OutputType:  outputType,
		OutputGuard: u.Owner,
		Currency:    u.Currency,
		Amount:      new(big.Int).Set(amountOrZero(u.Amount)),
	}
}

// Pos returns the encoded utxo position.
func (u UTXO) Pos() *big.Int {
	return EncodeUtxoPos(u.Input())
}

// Payment is a request to pay Amount of Currency to Owner.
type Payment struct {
	Owner    common.Address
	Currency common.Address
	Amount   *big.Int
}

// NewPayment validates and returns a payment. The amount must be positive.
func NewPayment(owner, currency common.Address, amount *big.Int) (Payment, error) {
	if amount == nil || amount.Sign() <= 0 {
		return Payment{}, fmt.Errorf("payment amount must be positive, got %v", amount)
	}
	if owner == (common.Address{}) {
		return Payment{}, fmt.Errorf("payment owner must not be the zero address")
	}
	return Payment{Owner: owner, Currency: currency, Amount: new(big.Int).Set(amount)}, nil
}

// Fee is the amount of Currency paid to the operator.
type Fee struct {
	Currency common.Address
	Amount   *big.Int
}

// NewFee validates and returns a fee. The amount may be zero.
func NewFee(currency common.Address, amount *big.Int) (Fee, error) {
	if amount == nil || amount.Sign() < 0 {
		return Fee{}, fmt.Errorf("fee amount must be non-negative, got %v", amount)
	}
	return Fee{Currency: currency, Amount: new(big.Int).Set(amount)}, nil
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
