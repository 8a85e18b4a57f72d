// Package api provides the high-level public API for childchain
// transactions.
//
// This is the main entry point for applications using the omg-txkit
// library. It covers the client flow end to end:
//
//  1. CreateTransaction - Selects inputs and builds an unsigned body
//  2. GetTypedData / GetToSignHash - EIP-712 payload and digest
//  3. SignTransaction - One signature per input
//  4. BuildSignedTransaction - Signed wire bytes
//  5. Combine - Merges signatures collected separately
//  6. DecodeTransaction - Wire bytes back to structure
//  7. MergeUtxos - Consolidates UTXOs into one output
//  8. BuildExitData - Inclusion proof for a standard exit
//
// All functions are pure. Fetching UTXOs, blocks and submitting
// transactions is left to the caller.
package api

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/suffix-labs/omg-txkit/pkg/crypto"
	"github.com/suffix-labs/omg-txkit/pkg/merkle"
	"github.com/suffix-labs/omg-txkit/pkg/payreq"
	"github.com/suffix-labs/omg-txkit/pkg/roles"
	"github.com/suffix-labs/omg-txkit/pkg/transaction"
	"go.uber.org/zap"
)

// ExitData is what the exit game needs to start a standard exit.
type ExitData struct {
	Proof   hexutil.Bytes `json:"proof"`
	TxBytes hexutil.Bytes `json:"txbytes"`
	UtxoPos *big.Int      `json:"utxo_pos"`
}

// ============================================================================
// API Function 1: CreateTransaction
// ============================================================================

// CreateTransaction builds an unsigned transaction body.
//
// Inputs are chosen greedily from req.Utxos in the order given; change
// goes back to req.From. See roles.Builder for the exact rules.
//
// Parameters:
//   - logger: Receives selection decisions at debug level (nil disables)
//   - req: Sender, UTXOs, payments, fee and metadata
func CreateTransaction(logger *zap.Logger, req roles.TransactionRequest) (*transaction.Body, error) {
	body, err := roles.NewBuilder(logger).CreateTransactionBody(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return body, nil
}

// CreateTransactionFromURI builds a body paying the recipients of a
// payment request URI. Amounts in the URI are converted with decimals
// (nil means 18 for every currency).
func CreateTransactionFromURI(
	logger *zap.Logger,
	from common.Address,
	utxos []transaction.UTXO,
	uri string,
	fee transaction.Fee,
	decimals func(common.Address) int32,
) (*transaction.Body, error) {
	req, err := payreq.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid payment request: %w", err)
	}
	payments, err := req.ToPayments(decimals)
	if err != nil {
		return nil, fmt.Errorf("invalid payment request: %w", err)
	}
	return CreateTransaction(logger, roles.TransactionRequest{
		From:     from,
		Utxos:    utxos,
		Payments: payments,
		Fee:      fee,
		Metadata: req.Metadata,
	})
}

// ============================================================================
// API Function 2: GetTypedData / GetToSignHash
// ============================================================================

// GetTypedData returns the EIP-712 payload of body, suitable for
// eth_signTypedData.
func GetTypedData(body *transaction.Body, domain crypto.Domain) *crypto.TypedData {
	return crypto.NewTypedData(body, domain)
}

// GetToSignHash returns the digest that every input owner signs.
func GetToSignHash(typedData *crypto.TypedData) [32]byte {
	return typedData.ToSignHash()
}

// ============================================================================
// API Function 3: SignTransaction
// ============================================================================

// SignTransaction signs body with one key per input, in input order.
//
// Returns the 65-byte r || s || v signatures in input order.
func SignTransaction(body *transaction.Body, domain crypto.Domain, keys []*crypto.PrivateKey) ([][]byte, error) {
	signer := roles.NewSigner(body, domain)
	if err := signer.SignAll(keys...); err != nil {
		return nil, fmt.Errorf("signing failed: %w", err)
	}
	return signer.Finish().Signatures, nil
}

// ============================================================================
// API Function 4: BuildSignedTransaction
// ============================================================================

// BuildSignedTransaction encodes body with its signatures.
func BuildSignedTransaction(body *transaction.Body, signatures [][]byte) ([]byte, error) {
	txBytes, err := transaction.Encode(body, signatures, true)
	if err != nil {
		return nil, fmt.Errorf("failed to encode signed transaction: %w", err)
	}
	return txBytes, nil
}

// VerifySignatures checks that every signature of a signed transaction
// recovers to the owner of the matching input.
func VerifySignatures(txBytes []byte, domain crypto.Domain, owners []common.Address) error {
	tx, err := transaction.Decode(txBytes)
	if err != nil {
		return err
	}
	if _, err := roles.NewTxExtractor(tx, domain).WithOwners(owners).Extract(); err != nil {
		return err
	}
	return nil
}

// ============================================================================
// API Function 5: Combine
// ============================================================================

// Combine merges partially signed copies of the same body, each carrying
// the signatures of some owners, and returns the fully signed encoding.
func Combine(partials []*transaction.Signed) ([]byte, error) {
	combined, err := roles.NewCombiner(partials).Combine()
	if err != nil {
		return nil, fmt.Errorf("combination failed: %w", err)
	}

	// Encoding rejects inputs that are still unsigned.
	combinedBytes, err := combined.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode combined transaction: %w", err)
	}
	return combinedBytes, nil
}

// ============================================================================
// API Function 6: DecodeTransaction
// ============================================================================

// DecodeTransaction decodes signed or unsigned wire bytes. Unsigned bytes
// decode with no signatures.
func DecodeTransaction(txBytes []byte) (*transaction.Signed, error) {
	return transaction.Decode(txBytes)
}

// ============================================================================
// API Function 7: MergeUtxos
// ============================================================================

// MergeUtxos builds the body consolidating 2 to 4 UTXOs of one owner and
// one currency into a single output.
func MergeUtxos(utxos []transaction.UTXO, metadata string) (*transaction.Body, error) {
	body, err := roles.CreateMergeTransactionBody(utxos, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to merge utxos: %w", err)
	}
	return body, nil
}

// ============================================================================
// API Function 8: BuildExitData
// ============================================================================

// BuildExitData proves that the output at utxoPos is part of its block.
//
// Parameters:
//   - blockTxs: Every transaction of the block, in block order, signed or
//     unsigned. Leaves are their unsigned encodings.
//   - utxoPos: Position of the output being exited
//   - height: Merkle tree height of the block (0 for the minimum)
//
// Returns an error if the position does not point at a non-empty output
// of one of blockTxs.
func BuildExitData(blockTxs [][]byte, utxoPos *big.Int, height int) (*ExitData, error) {
	in, err := transaction.DecodeUtxoPos(utxoPos)
	if err != nil {
		return nil, fmt.Errorf("invalid utxo position: %w", err)
	}
	if in.Txindex >= uint64(len(blockTxs)) {
		return nil, fmt.Errorf("txindex %d outside block of %d transactions", in.Txindex, len(blockTxs))
	}
	if in.Oindex >= transaction.MaxOutputs {
		return nil, fmt.Errorf("oindex %d out of range", in.Oindex)
	}

	leaves := make([][]byte, len(blockTxs))
	for i, txBytes := range blockTxs {
		tx, err := transaction.Decode(txBytes)
		if err != nil {
			return nil, fmt.Errorf("block transaction %d: %w", i, err)
		}
		raw, err := tx.Body.Encode()
		if err != nil {
			return nil, fmt.Errorf("block transaction %d: %w", i, err)
		}
		if uint64(i) == in.Txindex && tx.PaddedOutputs()[in.Oindex].IsNull() {
			return nil, fmt.Errorf("output %s is empty", in)
		}
		leaves[i] = raw
	}

	tree, err := merkle.NewTree(leaves, height)
	if err != nil {
		return nil, fmt.Errorf("failed to build block tree: %w", err)
	}
	proof, err := tree.ProofAt(int(in.Txindex))
	if err != nil {
		return nil, err
	}

	return &ExitData{
		Proof:   proof,
		TxBytes: leaves[in.Txindex],
		UtxoPos: new(big.Int).Set(utxoPos),
	}, nil
}
