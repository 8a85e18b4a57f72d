package roles

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suffix-labs/omg-txkit/pkg/crypto"
	"github.com/suffix-labs/omg-txkit/pkg/merkle"
	"github.com/suffix-labs/omg-txkit/pkg/transaction"
	"go.uber.org/zap/zaptest"
)

var testContract = common.HexToAddress("0x9c6d8f4b1b5d3f2a8e0c1e9d7a3b5c6d4e2f1a0b")

func mustKey(t *testing.T, hex string) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.ParsePrivateKeyHex(hex)
	require.NoError(t, err)
	return key
}

// TestPaymentEndToEnd walks a payment through every role: build, sign by
// two owners in parallel, combine, extract, then decode and prove it.
func TestPaymentEndToEnd(t *testing.T) {
	domain := crypto.DefaultDomain(testContract)

	// Step 1: Keys for the two input owners
	ownerA := mustKey(t, "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	ownerB := mustKey(t, "0x0000000000000000000000000000000000000000000000000000000000000001")

	// Step 2: Build a payment spending one UTXO of each owner
	utxos := []transaction.UTXO{
		utxo(1000, 0, ownerA.Address(), eth, "700"),
		utxo(2000, 3, ownerB.Address(), eth, "300"),
	}
	builder := NewBuilder(zaptest.NewLogger(t))
	body, err := builder.CreateTransactionBody(TransactionRequest{
		From:     ownerA.Address(),
		Utxos:    utxos,
		Payments: []transaction.Payment{payment(carol, eth, "900")},
		Fee:      transaction.Fee{Currency: eth, Amount: wei("50")},
		Metadata: "rent",
	})
	require.NoError(t, err)
	require.Len(t, body.Inputs, 2)
	require.Len(t, body.Outputs, 2)
	assert.Equal(t, "50", body.Outputs[0].Amount.String())

	// Step 3: Each owner signs only their own input
	signerA := NewSigner(body, domain)
	require.NoError(t, signerA.SignInput(0, ownerA))
	signerB := NewSigner(body, domain)
	require.NoError(t, signerB.SignInput(1, ownerB))
	assert.Equal(t, signerA.Digest(), crypto.ToSignHash(body, domain))

	partA := signerA.Finish()
	assert.Nil(t, partA.Signatures[1])

	// A partially signed transaction cannot be extracted
	_, err = NewTxExtractor(partA, domain).Extract()
	require.Error(t, err)

	// Step 4: Combine
	combined, err := NewCombiner([]*transaction.Signed{partA, signerB.Finish()}).Combine()
	require.NoError(t, err)
	require.Len(t, combined.Signatures, 2)

	// Step 5: Extract with owner checks
	owners := []common.Address{ownerA.Address(), ownerB.Address()}
	txBytes, err := NewTxExtractor(combined, domain).WithOwners(owners).Extract()
	require.NoError(t, err)

	// Owners in the wrong order must be caught
	_, err = NewTxExtractor(combined, domain).
		WithOwners([]common.Address{ownerB.Address(), ownerA.Address()}).
		Extract()
	require.Error(t, err)

	// Step 6: Decode and check the signatures against the decoded body
	decoded, err := transaction.Decode(txBytes)
	require.NoError(t, err)
	assert.Equal(t, body.Inputs, decoded.Inputs)
	require.Len(t, decoded.Signatures, 2)
	digest := crypto.ToSignHash(&decoded.Body, domain)
	for i, sig := range decoded.Signatures {
		assert.True(t, crypto.VerifySignature(owners[i], digest, sig), "input %d", i)
	}

	// Step 7: Prove inclusion in a block
	tree, err := merkle.NewTree([][]byte{[]byte("other tx"), txBytes}, 16)
	require.NoError(t, err)
	proof, err := tree.InclusionProof(txBytes)
	require.NoError(t, err)
	assert.True(t, merkle.VerifyProof(tree.Root(), txBytes, 1, proof))
}

func TestSignAllAndMerge(t *testing.T) {
	domain := crypto.DefaultDomain(testContract)
	owner := mustKey(t, "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")

	body, err := CreateMergeTransactionBody([]transaction.UTXO{
		utxo(1000, 0, owner.Address(), eth, "1"),
		utxo(2000, 0, owner.Address(), eth, "2"),
		utxo(3000, 0, owner.Address(), eth, "10"),
	}, "")
	require.NoError(t, err)

	signer := NewSigner(body, domain)
	require.Error(t, signer.SignAll(owner))
	require.NoError(t, signer.SignAll(owner, owner, owner))
	require.Error(t, signer.SignInput(3, owner))

	overflowing := &transaction.Body{
		TxType:  transaction.TxTypePayment,
		Inputs:  []transaction.Input{{Blknum: 1, Oindex: transaction.TxOffset}},
		Outputs: body.Outputs,
	}
	require.Error(t, NewSigner(overflowing, domain).SignInput(0, owner))

	txBytes, err := NewTxExtractor(signer.Finish(), domain).
		WithOwners([]common.Address{owner.Address(), owner.Address(), owner.Address()}).
		Extract()
	require.NoError(t, err)

	decoded, err := transaction.Decode(txBytes)
	require.NoError(t, err)
	require.Len(t, decoded.Outputs, 1)
	assert.Equal(t, "13", decoded.Outputs[0].Amount.String())
}

func TestCombinerRejectsMismatches(t *testing.T) {
	domain := crypto.DefaultDomain(testContract)
	keyA := mustKey(t, "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	keyB := mustKey(t, "0x0000000000000000000000000000000000000000000000000000000000000001")

	utxos := []transaction.UTXO{
		utxo(1000, 0, keyA.Address(), eth, "1"),
		utxo(2000, 0, keyA.Address(), eth, "2"),
	}
	body, err := CreateMergeTransactionBody(utxos, "")
	require.NoError(t, err)
	other, err := CreateMergeTransactionBody(utxos, "different")
	require.NoError(t, err)

	_, err = NewCombiner(nil).Combine()
	require.Error(t, err)

	s1 := NewSigner(body, domain)
	require.NoError(t, s1.SignInput(0, keyA))
	s2 := NewSigner(body, domain)
	require.NoError(t, s2.SignInput(0, keyB))
	_, err = NewCombiner([]*transaction.Signed{s1.Finish(), s2.Finish()}).Combine()
	require.Error(t, err, "conflicting signatures")

	s3 := NewSigner(other, domain)
	require.NoError(t, s3.SignInput(1, keyA))
	_, err = NewCombiner([]*transaction.Signed{s1.Finish(), s3.Finish()}).Combine()
	require.Error(t, err, "different bodies")

	// The same signature seen twice is not a conflict.
	combined, err := NewCombiner([]*transaction.Signed{s1.Finish(), s1.Finish()}).Combine()
	require.NoError(t, err)
	assert.NotNil(t, combined.Signatures[0])
	assert.Nil(t, combined.Signatures[1])
}
