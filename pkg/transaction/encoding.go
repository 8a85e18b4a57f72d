// Package transaction encoding implements the RLP wire format.
//
// The encoder always writes MaxInputs input slots and MaxOutputs output
// slots, using an empty byte string for an unused input and an empty list
// for an unused output. The decoder accepts lists with fewer slots as
// well, since older encoders dropped unused slots instead of writing them.
//
// Unsigned and signed transactions are told apart purely by the number of
// top-level elements: 5 for unsigned, 6 for signed.
package transaction

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"
)

const (
	unsignedArity = 5
	signedArity   = 6
)

// Encode serializes a body, optionally preceded by its signatures.
//
// When signed is false the signature list is omitted even if signatures
// are given, which yields the bytes that are hashed and merkleized.
func Encode(body *Body, signatures [][]byte, signed bool) ([]byte, error) {
	if err := body.Validate(true); err != nil {
		return nil, err
	}

	var txArray []interface{}
	if signed && signatures != nil {
		// An empty list is the signed form with nothing signed yet.
		if len(signatures) != 0 && len(signatures) != len(body.Inputs) {
			return nil, &SizeConstraintError{
				Code:    ErrSignatureCount,
				Message: fmt.Sprintf("got %d signatures for %d inputs", len(signatures), len(body.Inputs)),
			}
		}
		sigs := make([]interface{}, len(signatures))
		for i, sig := range signatures {
			if len(sig) != SignatureLength {
				return nil, fmt.Errorf("signature %d is %d bytes, expected %d", i, len(sig), SignatureLength)
			}
			sigs[i] = sig
		}
		txArray = append(txArray, sigs)
	}

	inputs := make([]interface{}, MaxInputs)
	for i, in := range body.PaddedInputs() {
		inputs[i] = encodeInput(in)
	}

	outputs := make([]interface{}, MaxOutputs)
	for i := range outputs {
		if i < len(body.Outputs) {
			outputs[i] = encodeOutput(body.Outputs[i])
		} else {
			outputs[i] = []interface{}{}
		}
	}

	txArray = append(txArray,
		body.TxType,
		inputs,
		outputs,
		body.TxData,
		body.Metadata[:],
	)

	encoded, err := rlp.EncodeToBytes(txArray)
	if err != nil {
		return nil, fmt.Errorf("rlp encode: %w", err)
	}
	return encoded, nil
}

// Encode serializes the signed transaction.
func (s *Signed) Encode() ([]byte, error) {
	sigs := s.Signatures
	if sigs == nil {
		sigs = [][]byte{}
	}
	return Encode(&s.Body, sigs, true)
}

// Encode serializes the unsigned body.
func (b *Body) Encode() ([]byte, error) {
	return Encode(b, nil, false)
}

// Hash returns the keccak256 hash of the unsigned encoding.
func (b *Body) Hash() (common.Hash, error) {
	encoded, err := b.Encode()
	if err != nil {
		return common.Hash{}, err
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(encoded)
	return common.BytesToHash(h.Sum(nil)), nil
}

func encodeInput(in Input) []byte {
	if in.IsNull() {
		return []byte{}
	}
	return common.LeftPadBytes(EncodeUtxoPos(in).Bytes(), 32)
}

func encodeOutput(out Output) interface{} {
	if out.IsNull() {
		return []interface{}{}
	}
	return []interface{}{
		out.OutputType,
		[]interface{}{out.OutputGuard, out.Currency, out.Amount},
	}
}

// Decode parses transaction bytes produced by Encode.
//
// The returned transaction has Signatures set only when the bytes carry a
// signature list. Unused slots are dropped from Inputs and Outputs; use
// PaddedInputs and PaddedOutputs for the 4-slot view.
func Decode(data []byte) (*Signed, error) {
	content, rest, err := rlp.SplitList(data)
	if err != nil {
		return nil, &DecodeError{Message: "transaction is not an RLP list", Cause: err}
	}
	if len(rest) != 0 {
		return nil, &DecodeError{Message: fmt.Sprintf("%d trailing bytes after transaction", len(rest))}
	}

	arity, err := rlp.CountValues(content)
	if err != nil {
		return nil, &DecodeError{Message: "malformed transaction list", Cause: err}
	}

	tx := &Signed{}
	switch arity {
	case unsignedArity:
	case signedArity:
		sigs, err := decodeSignatures(&content)
		if err != nil {
			return nil, err
		}
		tx.Signatures = sigs
	default:
		return nil, &DecodeError{
			Message: fmt.Sprintf("transaction has %d top-level elements, expected %d or %d",
				arity, unsignedArity, signedArity),
		}
	}

	if tx.TxType, content, err = rlp.SplitUint64(content); err != nil {
		return nil, &DecodeError{Message: "invalid txType", Cause: err}
	}
	if tx.Inputs, err = decodeInputs(&content); err != nil {
		return nil, err
	}
	if tx.Outputs, err = decodeOutputs(&content); err != nil {
		return nil, err
	}
	if tx.TxData, content, err = rlp.SplitUint64(content); err != nil {
		return nil, &DecodeError{Message: "invalid txData", Cause: err}
	}

	metadata, _, err := rlp.SplitString(content)
	if err != nil {
		return nil, &DecodeError{Message: "invalid metadata", Cause: err}
	}
	if len(metadata) != MetadataLength {
		return nil, &DecodeError{
			Message: fmt.Sprintf("metadata is %d bytes, expected %d", len(metadata), MetadataLength),
		}
	}
	copy(tx.Metadata[:], metadata)

	return tx, nil
}

// DecodeBody parses transaction bytes and discards any signatures.
func DecodeBody(data []byte) (*Body, error) {
	tx, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return &tx.Body, nil
}

func decodeSignatures(content *[]byte) ([][]byte, error) {
	list, rest, err := rlp.SplitList(*content)
	if err != nil {
		return nil, &DecodeError{Message: "signatures must be a list", Cause: err}
	}
	*content = rest

	sigs := [][]byte{}
	for len(list) > 0 {
		var sig []byte
		if sig, list, err = rlp.SplitString(list); err != nil {
			return nil, &DecodeError{Message: fmt.Sprintf("invalid signature %d", len(sigs)), Cause: err}
		}
		sigs = append(sigs, common.CopyBytes(sig))
	}
	return sigs, nil
}

func decodeInputs(content *[]byte) ([]Input, error) {
	list, rest, err := rlp.SplitList(*content)
	if err != nil {
		return nil, &DecodeError{Message: "inputs must be a list", Cause: err}
	}
	*content = rest

	inputs := []Input{}
	for slot := 0; len(list) > 0; slot++ {
		if slot >= MaxInputs {
			return nil, &DecodeError{Message: fmt.Sprintf("more than %d input slots", MaxInputs)}
		}

		var raw []byte
		if raw, list, err = rlp.SplitString(list); err != nil {
			return nil, &DecodeError{Message: fmt.Sprintf("invalid input slot %d", slot), Cause: err}
		}
		if len(raw) > 32 {
			return nil, &DecodeError{Message: fmt.Sprintf("input slot %d is %d bytes", slot, len(raw))}
		}

		pos := new(big.Int).SetBytes(raw)
		if pos.Sign() == 0 {
			continue
		}
		in, err := DecodeUtxoPos(pos)
		if err != nil {
			return nil, &DecodeError{Message: fmt.Sprintf("input slot %d", slot), Cause: err}
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func decodeOutputs(content *[]byte) ([]Output, error) {
	list, rest, err := rlp.SplitList(*content)
	if err != nil {
		return nil, &DecodeError{Message: "outputs must be a list", Cause: err}
	}
	*content = rest

	outputs := []Output{}
	for slot := 0; len(list) > 0; slot++ {
		if slot >= MaxOutputs {
			return nil, &DecodeError{Message: fmt.Sprintf("more than %d output slots", MaxOutputs)}
		}

		var item []byte
		if item, list, err = rlp.SplitList(list); err != nil {
			return nil, &DecodeError{Message: fmt.Sprintf("output slot %d must be a list", slot), Cause: err}
		}
		if len(item) == 0 {
			continue
		}

		out, err := decodeOutput(item)
		if err != nil {
			return nil, &DecodeError{Message: fmt.Sprintf("output slot %d", slot), Cause: err}
		}
		if out.IsNull() {
			continue
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func decodeOutput(item []byte) (Output, error) {
	var out Output

	outputType, item, err := rlp.SplitUint64(item)
	if err != nil {
		return out, fmt.Errorf("invalid outputType: %w", err)
	}
	out.OutputType = outputType

	fields, _, err := rlp.SplitList(item)
	if err != nil {
		return out, fmt.Errorf("output data must be a list: %w", err)
	}

	if out.OutputGuard, fields, err = splitAddress(fields); err != nil {
		return out, fmt.Errorf("invalid outputGuard: %w", err)
	}
	if out.Currency, fields, err = splitAddress(fields); err != nil {
		return out, fmt.Errorf("invalid currency: %w", err)
	}

	amount, _, err := rlp.SplitString(fields)
	if err != nil {
		return out, fmt.Errorf("invalid amount: %w", err)
	}
	out.Amount = new(big.Int).SetBytes(amount)

	return out, nil
}

// splitAddress reads a 20-byte string. An empty string decodes to the zero
// address.
func splitAddress(b []byte) (common.Address, []byte, error) {
	raw, rest, err := rlp.SplitString(b)
	if err != nil {
		return common.Address{}, nil, err
	}
	if len(raw) > common.AddressLength {
		return common.Address{}, nil, fmt.Errorf("address is %d bytes", len(raw))
	}
	return common.BytesToAddress(raw), rest, nil
}
