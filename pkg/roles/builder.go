// Package roles implements the transaction role pattern.
//
// Transaction construction is split into distinct responsibilities:
//   - Builder: selects inputs, computes change and produces the body
//   - Signer: signs the EIP-712 digest once per filled input
//   - Combiner: merges signatures collected by different owners
//   - TxExtractor: checks the signatures and produces the final bytes
//
// Each role can be executed by a different party or at a different time.
// All roles are pure: they read their inputs and return new values,
// never touching shared state.
package roles

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/suffix-labs/omg-txkit/pkg/transaction"
	"go.uber.org/zap"
)

// TransactionRequest describes a payment to build.
type TransactionRequest struct {
	From     common.Address        // Sender, receives the change
	Utxos    []transaction.UTXO    // Spendable UTXOs of the sender, in preference order
	Payments []transaction.Payment // Recipients, in output order
	Fee      transaction.Fee       // Fee paid to the operator
	Metadata string                // Plain string or 0x-prefixed hex, empty for none
}

// Builder turns a request into an unsigned transaction body.
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a Builder. A nil logger disables logging.
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{logger: logger.Named("builder")}
}

// currencyBalance tracks the needed and supplied amounts of one currency.
type currencyBalance struct {
	currency common.Address
	needed   *big.Int
	supplied *big.Int
}

func (c currencyBalance) change() *big.Int {
	return new(big.Int).Sub(c.supplied, c.needed)
}

// CreateTransactionBody builds an unsigned payment body.
//
// Inputs are chosen greedily in the order the UTXOs are given: a UTXO is
// taken while its currency still needs funds. This does not minimize the
// number of inputs; callers that want a particular selection order the
// UTXOs accordingly.
//
// Outputs are one change output per currency with a positive remainder,
// followed by one output per payment in payment order.
//
// Returns an error if:
//   - A currency is short (InsufficientFundsError)
//   - The result needs no inputs, more than 4 inputs, or more than 4
//     outputs (SizeConstraintError)
//   - The metadata does not fit in 32 bytes
func (b *Builder) CreateTransactionBody(req TransactionRequest) (*transaction.Body, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	allPayments := make([]transaction.Payment, 0, len(req.Payments)+1)
	allPayments = append(allPayments, req.Payments...)
	allPayments = append(allPayments, transaction.Payment{Currency: req.Fee.Currency, Amount: req.Fee.Amount})

	// Every UTXO counts towards the funds check.
	balances := calculateBalances(allPayments, req.Utxos)
	for _, bal := range balances {
		if bal.change().Sign() < 0 {
			shortfall := new(big.Int).Neg(bal.change())
			b.logger.Debug("insufficient funds",
				zap.Stringer("currency", bal.currency),
				zap.Stringer("needed", bal.needed),
				zap.Stringer("supplied", bal.supplied))
			return nil, &transaction.InsufficientFundsError{Currency: bal.currency, Shortfall: shortfall}
		}
	}

	inputs := selectInputs(balances, req.Utxos)
	if err := validateInputCount(len(inputs)); err != nil {
		return nil, err
	}

	// Change is recomputed over the selected inputs only.
	var outputs []transaction.Output
	for _, bal := range calculateBalances(allPayments, inputs) {
		change := bal.change()
		if change.Sign() > 0 {
			outputs = append(outputs, transaction.Output{
				OutputType:  transaction.OutputTypePayment,
				OutputGuard: req.From,
				Currency:    bal.currency,
				Amount:      change,
			})
		}
	}
	for _, p := range req.Payments {
		outputs = append(outputs, transaction.Output{
			OutputType:  transaction.OutputTypePayment,
			OutputGuard: p.Owner,
			Currency:    p.Currency,
			Amount:      new(big.Int).Set(p.Amount),
		})
	}
	if err := validateOutputCount(len(outputs)); err != nil {
		return nil, err
	}

	metadata, err := transaction.ParseMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}

	body := &transaction.Body{
		TxType:   transaction.TxTypePayment,
		Inputs:   make([]transaction.Input, len(inputs)),
		Outputs:  outputs,
		TxData:   0,
		Metadata: metadata,
	}
	for i, u := range inputs {
		body.Inputs[i] = u.Input()
	}

	b.logger.Debug("built transaction body",
		zap.Int("inputs", len(body.Inputs)),
		zap.Int("outputs", len(body.Outputs)),
		zap.Int("changeOutputs", len(outputs)-len(req.Payments)))

	return body, nil
}

// calculateBalances sums needed and supplied amounts per currency, in
// order of first appearance among the payments (fee last).
func calculateBalances(payments []transaction.Payment, utxos []transaction.UTXO) []currencyBalance {
	var balances []currencyBalance
	index := map[common.Address]int{}

	for _, p := range payments {
		i, ok := index[p.Currency]
		if !ok {
			i = len(balances)
			index[p.Currency] = i
			balances = append(balances, currencyBalance{
				currency: p.Currency,
				needed:   new(big.Int),
				supplied: new(big.Int),
			})
		}
		balances[i].needed.Add(balances[i].needed, p.Amount)
	}

	for _, u := range utxos {
		if i, ok := index[u.Currency]; ok {
			balances[i].supplied.Add(balances[i].supplied, u.Amount)
		}
	}
	return balances
}

// selectInputs walks utxos in order and keeps each one whose currency
// still needs funds.
func selectInputs(balances []currencyBalance, utxos []transaction.UTXO) []transaction.UTXO {
	remaining := map[common.Address]*big.Int{}
	for _, bal := range balances {
		remaining[bal.currency] = new(big.Int).Set(bal.needed)
	}

	var selected []transaction.UTXO
	for _, u := range utxos {
		need, ok := remaining[u.Currency]
		if !ok || need.Sign() <= 0 {
			continue
		}
		need.Sub(need, u.Amount)
		selected = append(selected, u)
	}
	return selected
}

func validateRequest(req TransactionRequest) error {
	for i, u := range req.Utxos {
		if u.Amount == nil || u.Amount.Sign() <= 0 {
			return fmt.Errorf("utxo %d (%s) has non-positive amount", i, u.Input())
		}
		if err := transaction.CheckPosition(u.Input()); err != nil {
			return fmt.Errorf("utxo %d: %w", i, err)
		}
	}
	for i, p := range req.Payments {
		if p.Amount == nil || p.Amount.Sign() <= 0 {
			return fmt.Errorf("payment %d has non-positive amount", i)
		}
	}
	if req.Fee.Amount == nil || req.Fee.Amount.Sign() < 0 {
		return fmt.Errorf("fee amount must be non-negative")
	}
	return nil
}

func validateInputCount(n int) error {
	if n == 0 {
		return &transaction.SizeConstraintError{
			Code:    transaction.ErrTooFewInputs,
			Message: "payments and fee select no inputs",
		}
	}
	if n > transaction.MaxInputs {
		return &transaction.SizeConstraintError{
			Code:    transaction.ErrTooManyInputs,
			Message: fmt.Sprintf("transaction needs %d inputs, maximum is %d; merge utxos first", n, transaction.MaxInputs),
		}
	}
	return nil
}

func validateOutputCount(n int) error {
	if n > transaction.MaxOutputs {
		return &transaction.SizeConstraintError{
			Code:    transaction.ErrTooManyOutputs,
			Message: fmt.Sprintf("transaction needs %d outputs, maximum is %d", n, transaction.MaxOutputs),
		}
	}
	return nil
}
