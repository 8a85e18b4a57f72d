package roles

import (
	"fmt"
	"math/big"

	"github.com/suffix-labs/omg-txkit/pkg/transaction"
)

// Merge bounds: a merge spends at least two and at most MaxInputs UTXOs.
const (
	MinMergeUtxos = 2
	MaxMergeUtxos = transaction.MaxInputs
)

// MergeUtxosToOutput sums same-owner, same-currency UTXOs into a single
// output owned by that owner.
//
// Returns an error if:
//   - Fewer than 2 or more than 4 UTXOs are given (SizeConstraintError)
//   - The UTXOs differ in currency or owner (ConsistencyError)
func MergeUtxosToOutput(utxos []transaction.UTXO) (transaction.Output, error) {
	if len(utxos) < MinMergeUtxos || len(utxos) > MaxMergeUtxos {
		return transaction.Output{}, &transaction.SizeConstraintError{
			Code:    transaction.ErrMergeSize,
			Message: fmt.Sprintf("merge needs %d to %d utxos, got %d", MinMergeUtxos, MaxMergeUtxos, len(utxos)),
		}
	}

	first := utxos[0]
	total := new(big.Int)
	for i, u := range utxos {
		if u.Currency != first.Currency {
			return transaction.Output{}, &transaction.ConsistencyError{
				Message: fmt.Sprintf("utxo %d has currency %s, expected %s", i, u.Currency.Hex(), first.Currency.Hex()),
			}
		}
		if u.Owner != first.Owner {
			return transaction.Output{}, &transaction.ConsistencyError{
				Message: fmt.Sprintf("utxo %d is owned by %s, expected %s", i, u.Owner.Hex(), first.Owner.Hex()),
			}
		}
		if u.Amount == nil || u.Amount.Sign() <= 0 {
			return transaction.Output{}, fmt.Errorf("utxo %d (%s) has non-positive amount", i, u.Input())
		}
		total.Add(total, u.Amount)
	}

	return transaction.Output{
		OutputType:  transaction.OutputTypePayment,
		OutputGuard: first.Owner,
		Currency:    first.Currency,
		Amount:      total,
	}, nil
}

// CreateMergeTransactionBody builds the body spending utxos into their
// merged output. No fee is deducted.
func CreateMergeTransactionBody(utxos []transaction.UTXO, metadata string) (*transaction.Body, error) {
	output, err := MergeUtxosToOutput(utxos)
	if err != nil {
		return nil, err
	}

	md, err := transaction.ParseMetadata(metadata)
	if err != nil {
		return nil, err
	}

	body := &transaction.Body{
		TxType:   transaction.TxTypePayment,
		Inputs:   make([]transaction.Input, len(utxos)),
		Outputs:  []transaction.Output{output},
		Metadata: md,
	}
	for i, u := range utxos {
		body.Inputs[i] = u.Input()
	}
	if err := body.Validate(false); err != nil {
		return nil, err
	}
	return body, nil
}
