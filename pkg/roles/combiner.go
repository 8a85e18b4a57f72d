package roles

import (
	"bytes"
	"fmt"

	"github.com/suffix-labs/omg-txkit/pkg/transaction"
)

// Combiner merges signatures collected on separate copies of the same
// transaction.
//
// The Combiner role enables parallel signing workflows:
//   - Each owner runs a Signer over the shared body
//   - Each produces a Signed transaction holding only their signatures
//   - The Combiner merges all signatures into one Signed transaction
//
// Copies are compatible when their bodies encode to the same bytes.
type Combiner struct {
	txs []*transaction.Signed
}

// NewCombiner creates a new Combiner.
//
// Parameters:
//   - txs: Signed copies to combine (must all carry the same body)
func NewCombiner(txs []*transaction.Signed) *Combiner {
	return &Combiner{txs: txs}
}

// Combine merges all copies into a new Signed transaction.
//
// Returns an error if:
//   - No transactions are given
//   - The bodies differ
//   - Two copies hold different signatures for the same input
func (c *Combiner) Combine() (*transaction.Signed, error) {
	if len(c.txs) == 0 {
		return nil, fmt.Errorf("no transactions to combine")
	}

	base := c.txs[0]
	baseHash, err := base.Body.Hash()
	if err != nil {
		return nil, fmt.Errorf("failed to hash transaction 0: %w", err)
	}

	result := &transaction.Signed{
		Body:       base.Body,
		Signatures: make([][]byte, len(base.Inputs)),
	}
	if err := mergeSignatures(result, base); err != nil {
		return nil, fmt.Errorf("failed to merge transaction 0: %w", err)
	}

	for i := 1; i < len(c.txs); i++ {
		hash, err := c.txs[i].Body.Hash()
		if err != nil {
			return nil, fmt.Errorf("failed to hash transaction %d: %w", i, err)
		}
		if hash != baseHash {
			return nil, fmt.Errorf("transaction %d has a different body: %s != %s", i, hash.Hex(), baseHash.Hex())
		}
		if err := mergeSignatures(result, c.txs[i]); err != nil {
			return nil, fmt.Errorf("failed to merge transaction %d: %w", i, err)
		}
	}

	return result, nil
}

// mergeSignatures copies every non-empty signature of src into dst.
func mergeSignatures(dst, src *transaction.Signed) error {
	if len(src.Signatures) > len(dst.Signatures) {
		return fmt.Errorf("%d signatures for %d inputs", len(src.Signatures), len(dst.Signatures))
	}
	for i, sig := range src.Signatures {
		if len(sig) == 0 {
			continue
		}
		if existing := dst.Signatures[i]; len(existing) > 0 {
			if !bytes.Equal(existing, sig) {
				return fmt.Errorf("input %d: conflicting signatures", i)
			}
			continue
		}
		dst.Signatures[i] = bytes.Clone(sig)
	}
	return nil
}
