package roles

import (
	"fmt"

	"github.com/suffix-labs/omg-txkit/pkg/crypto"
	"github.com/suffix-labs/omg-txkit/pkg/transaction"
)

// Signer adds signatures to a transaction body.
//
// The Signer role:
//   - Computes the EIP-712 signing hash of the body once
//   - Signs it with the owner key of each input
//   - Stores one 65-byte r || s || v signature per input slot
//
// Every input is signed over the same digest, so owners holding different
// inputs can sign independently. The Combiner can then merge their
// results together.
type Signer struct {
	body       *transaction.Body
	digest     [32]byte
	signatures [][]byte
}

// NewSigner creates a new Signer for body under domain.
func NewSigner(body *transaction.Body, domain crypto.Domain) *Signer {
	return &Signer{
		body:       body,
		digest:     crypto.ToSignHash(body, domain),
		signatures: make([][]byte, len(body.Inputs)),
	}
}

// Digest returns the hash being signed.
func (s *Signer) Digest() [32]byte {
	return s.digest
}

// SignInput signs the input at inputIndex.
//
// Parameters:
//   - inputIndex: Index of the input to sign (0-based)
//   - privateKey: Key of the owner of the spent output
//
// Returns an error if the input index is out of bounds or the input has
// no valid utxo position.
func (s *Signer) SignInput(inputIndex int, privateKey *crypto.PrivateKey) error {
	if inputIndex < 0 || inputIndex >= len(s.body.Inputs) {
		return fmt.Errorf("input index %d out of bounds (have %d inputs)",
			inputIndex, len(s.body.Inputs))
	}
	if err := transaction.CheckPosition(s.body.Inputs[inputIndex]); err != nil {
		return err
	}
	s.signatures[inputIndex] = privateKey.SignRecoverable(s.digest)
	return nil
}

// SignAll signs every input, the i-th key signing the i-th input.
//
// The same key may be passed several times when one owner holds several
// inputs.
func (s *Signer) SignAll(privateKeys ...*crypto.PrivateKey) error {
	if len(privateKeys) != len(s.body.Inputs) {
		return fmt.Errorf("got %d keys for %d inputs", len(privateKeys), len(s.body.Inputs))
	}
	for i, key := range privateKeys {
		if err := s.SignInput(i, key); err != nil {
			return err
		}
	}
	return nil
}

// Finish returns the body with the signatures collected so far.
//
// Unsigned slots hold nil signatures. The result can be:
//   - Passed to the Combiner if other owners sign separately
//   - Passed to the TxExtractor once every input is signed
func (s *Signer) Finish() *transaction.Signed {
	sigs := make([][]byte, len(s.signatures))
	copy(sigs, s.signatures)
	return &transaction.Signed{Body: *s.body, Signatures: sigs}
}
