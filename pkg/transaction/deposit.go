package transaction

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Deposit is the decoded form of a deposit transaction.
type Deposit struct {
	Owner    common.Address
	Currency common.Address
	Amount   *big.Int
}

// EncodeDeposit builds and encodes the zero-input, single-output payment
// transaction that the rootchain deposit contracts expect.
func EncodeDeposit(owner common.Address, amount *big.Int, currency common.Address) ([]byte, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("deposit amount must be positive, got %v", amount)
	}

	body := &Body{
		TxType: TxTypePayment,
		Inputs: []Input{},
		Outputs: []Output{{
			OutputType:  OutputTypePayment,
			OutputGuard: owner,
			Currency:    currency,
			Amount:      new(big.Int).Set(amount),
		}},
		Metadata: NullMetadata,
	}
	return body.Encode()
}

// DecodeDeposit parses deposit bytes produced by EncodeDeposit.
func DecodeDeposit(data []byte) (*Deposit, error) {
	body, err := DecodeBody(data)
	if err != nil {
		return nil, err
	}
	if len(body.Inputs) != 0 || len(body.Outputs) != 1 {
		return nil, &DecodeError{
			Message: fmt.Sprintf("deposit must have 0 inputs and 1 output, got %d and %d",
				len(body.Inputs), len(body.Outputs)),
		}
	}

	out := body.Outputs[0]
	return &Deposit{
		Owner:    out.OutputGuard,
		Currency: out.Currency,
		Amount:   out.Amount,
	}, nil
}
