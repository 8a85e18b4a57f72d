package roles

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/suffix-labs/omg-txkit/pkg/crypto"
	"github.com/suffix-labs/omg-txkit/pkg/transaction"
)

// TxExtractor produces the final transaction bytes from a Signed
// transaction.
//
// The Transaction Extractor role:
//   - Verifies every input carries a well-formed signature
//   - Optionally checks each signature recovers to the expected owner
//   - Serializes the signed transaction as RLP
//
// This is the final role in the workflow. The result can be submitted to
// the childchain as is.
type TxExtractor struct {
	tx     *transaction.Signed
	domain crypto.Domain
	owners []common.Address
}

// NewTxExtractor creates a new Transaction Extractor.
func NewTxExtractor(tx *transaction.Signed, domain crypto.Domain) *TxExtractor {
	return &TxExtractor{tx: tx, domain: domain}
}

// WithOwners sets the expected signer of each input, in input order.
func (e *TxExtractor) WithOwners(owners []common.Address) *TxExtractor {
	e.owners = owners
	return e
}

// Extract validates the signatures and returns the signed RLP bytes.
func (e *TxExtractor) Extract() ([]byte, error) {
	if err := e.validate(); err != nil {
		return nil, fmt.Errorf("signed transaction validation failed: %w", err)
	}

	txBytes, err := e.tx.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return txBytes, nil
}

// validate checks that the transaction is fully signed.
//
// Validation rules:
//   - One signature per input, each 65 bytes
//   - If owners are set, one owner per input and each signature recovers
//     to its owner
func (e *TxExtractor) validate() error {
	inputs := len(e.tx.Inputs)
	if len(e.tx.Signatures) != inputs {
		return fmt.Errorf("have %d signatures for %d inputs", len(e.tx.Signatures), inputs)
	}
	for i, sig := range e.tx.Signatures {
		if len(sig) != crypto.SignatureLength {
			return fmt.Errorf("input %d not signed", i)
		}
	}

	if e.owners == nil {
		return nil
	}
	if len(e.owners) != inputs {
		return fmt.Errorf("have %d owners for %d inputs", len(e.owners), inputs)
	}

	digest := crypto.ToSignHash(&e.tx.Body, e.domain)
	for i, sig := range e.tx.Signatures {
		signer, err := crypto.RecoverAddress(digest, sig)
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		if signer != e.owners[i] {
			return fmt.Errorf("input %d signed by %s, expected %s", i, signer.Hex(), e.owners[i].Hex())
		}
	}
	return nil
}
