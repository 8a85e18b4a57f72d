// Package crypto implements EIP-712 typed-data hashing for payment
// transactions.
//
// The signing digest is the one checked by the payment exit game on the
// rootchain:
//
//	digest = keccak256(0x19 || 0x01 || domainSeparator || hashStruct(tx))
//
// where hashStruct(s) = keccak256(typeHash(s) || encodeData(s)). Nested
// structs (Input, Output) are replaced by their own struct hash, strings
// are replaced by their keccak256, and every other value is ABI-encoded
// into one 32-byte word.
//
// Unused input and output slots are hashed as all-zero structs, which is
// what the rootchain library uses for its empty input/output constants.
package crypto

import (
	"fmt"
	"hash"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/suffix-labs/omg-txkit/pkg/transaction"
	"golang.org/x/crypto/sha3"
)

// Domain defaults.
const (
	DefaultDomainName    = "OMG Network"
	DefaultDomainVersion = "1"
)

// DefaultDomainSalt is the fixed salt of the payment exit game domain.
var DefaultDomainSalt = common.HexToHash("0xfad5c7f626d80f9256ef01929f3beb96e058b8b4b0e3fe52d84f054c0e2a7a83")

// Type names.
const (
	DomainType      = "EIP712Domain"
	TransactionType = "Transaction"
	InputType       = "Input"
	OutputType      = "Output"
)

// TypedField is one member of a struct type.
type TypedField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Types is the fixed schema for payment transactions.
var Types = map[string][]TypedField{
	DomainType: {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "verifyingContract", Type: "address"},
		{Name: "salt", Type: "bytes32"},
	},
	TransactionType: {
		{Name: "txType", Type: "uint256"},
		{Name: "input0", Type: InputType},
		{Name: "input1", Type: InputType},
		{Name: "input2", Type: InputType},
		{Name: "input3", Type: InputType},
		{Name: "output0", Type: OutputType},
		{Name: "output1", Type: OutputType},
		{Name: "output2", Type: OutputType},
		{Name: "output3", Type: OutputType},
		{Name: "txData", Type: "uint256"},
		{Name: "metadata", Type: "bytes32"},
	},
	InputType: {
		{Name: "blknum", Type: "uint256"},
		{Name: "txindex", Type: "uint256"},
		{Name: "oindex", Type: "uint256"},
	},
	OutputType: {
		{Name: "outputType", Type: "uint256"},
		{Name: "outputGuard", Type: "bytes20"},
		{Name: "currency", Type: "address"},
		{Name: "amount", Type: "uint256"},
	},
}

var (
	domainTypeHash      = typeHash(DomainType)
	transactionTypeHash = typeHash(TransactionType)
	inputTypeHash       = typeHash(InputType)
	outputTypeHash      = typeHash(OutputType)
)

// Domain is the EIP-712 domain of the payment exit game.
type Domain struct {
	Name              string         `json:"name"`
	Version           string         `json:"version"`
	VerifyingContract common.Address `json:"verifyingContract"`
	Salt              common.Hash    `json:"salt"`
}

// DefaultDomain returns the production domain bound to the given
// plasma framework contract.
func DefaultDomain(verifyingContract common.Address) Domain {
	return Domain{
		Name:              DefaultDomainName,
		Version:           DefaultDomainVersion,
		VerifyingContract: verifyingContract,
		Salt:              DefaultDomainSalt,
	}
}

// TypedInput is an input as it appears in the typed-data message.
type TypedInput struct {
	Blknum  uint64 `json:"blknum"`
	Txindex uint64 `json:"txindex"`
	Oindex  uint64 `json:"oindex"`
}

// TypedOutput is an output as it appears in the typed-data message.
type TypedOutput struct {
	OutputType  uint64         `json:"outputType"`
	OutputGuard common.Address `json:"outputGuard"`
	Currency    common.Address `json:"currency"`
	Amount      *hexutil.Big   `json:"amount"`
}

// TypedMessage is the Transaction struct with all slots filled.
type TypedMessage struct {
	TxType   uint64        `json:"txType"`
	Input0   TypedInput    `json:"input0"`
	Input1   TypedInput    `json:"input1"`
	Input2   TypedInput    `json:"input2"`
	Input3   TypedInput    `json:"input3"`
	Output0  TypedOutput   `json:"output0"`
	Output1  TypedOutput   `json:"output1"`
	Output2  TypedOutput   `json:"output2"`
	Output3  TypedOutput   `json:"output3"`
	TxData   uint64        `json:"txData"`
	Metadata hexutil.Bytes `json:"metadata"`
}

// TypedData is the full eth_signTypedData payload for a transaction.
type TypedData struct {
	Types       map[string][]TypedField `json:"types"`
	Domain      Domain                  `json:"domain"`
	PrimaryType string                  `json:"primaryType"`
	Message     TypedMessage            `json:"message"`
}

// NewTypedData builds the typed-data payload for a transaction body.
func NewTypedData(body *transaction.Body, domain Domain) *TypedData {
	inputs := typedInputs(body)
	outputs := typedOutputs(body)

	return &TypedData{
		Types:       Types,
		Domain:      domain,
		PrimaryType: TransactionType,
		Message: TypedMessage{
			TxType:   body.TxType,
			Input0:   inputs[0],
			Input1:   inputs[1],
			Input2:   inputs[2],
			Input3:   inputs[3],
			Output0:  outputs[0],
			Output1:  outputs[1],
			Output2:  outputs[2],
			Output3:  outputs[3],
			TxData:   body.TxData,
			Metadata: hexutil.Bytes(common.CopyBytes(body.Metadata[:])),
		},
	}
}

// ToSignHash returns the EIP-712 digest that owners of the inputs sign.
func ToSignHash(body *transaction.Body, domain Domain) [32]byte {
	domainSeparator := HashDomain(domain)
	messageHash := HashMessage(body)

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte{0x19, 0x01})
	h.Write(domainSeparator[:])
	h.Write(messageHash[:])
	return sum(h)
}

// ToSignHash returns the digest of an already built payload.
func (td *TypedData) ToSignHash() [32]byte {
	body := &transaction.Body{
		TxType:  td.Message.TxType,
		TxData:  td.Message.TxData,
		Inputs:  make([]transaction.Input, 0, transaction.MaxInputs),
		Outputs: make([]transaction.Output, 0, transaction.MaxOutputs),
	}
	for _, in := range []TypedInput{td.Message.Input0, td.Message.Input1, td.Message.Input2, td.Message.Input3} {
		body.Inputs = append(body.Inputs, transaction.Input(in))
	}
	for _, out := range []TypedOutput{td.Message.Output0, td.Message.Output1, td.Message.Output2, td.Message.Output3} {
		body.Outputs = append(body.Outputs, transaction.Output{
			OutputType:  out.OutputType,
			OutputGuard: out.OutputGuard,
			Currency:    out.Currency,
			Amount:      out.Amount.ToInt(),
		})
	}
	copy(body.Metadata[:], td.Message.Metadata)
	return ToSignHash(body, td.Domain)
}

// HashDomain returns the domain separator.
func HashDomain(domain Domain) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(domainTypeHash[:])
	h.Write(keccak([]byte(domain.Name)))
	h.Write(keccak([]byte(domain.Version)))
	h.Write(common.LeftPadBytes(domain.VerifyingContract.Bytes(), 32))
	h.Write(domain.Salt.Bytes())
	return sum(h)
}

// HashMessage returns hashStruct of the Transaction struct.
func HashMessage(body *transaction.Body) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(transactionTypeHash[:])
	h.Write(uint256Word(new(big.Int).SetUint64(body.TxType)))

	for _, in := range typedInputs(body) {
		digest := hashInput(in)
		h.Write(digest[:])
	}
	for _, out := range typedOutputs(body) {
		digest := hashOutput(out)
		h.Write(digest[:])
	}

	h.Write(uint256Word(new(big.Int).SetUint64(body.TxData)))
	h.Write(body.Metadata[:])
	return sum(h)
}

func hashInput(in TypedInput) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(inputTypeHash[:])
	h.Write(uint256Word(new(big.Int).SetUint64(in.Blknum)))
	h.Write(uint256Word(new(big.Int).SetUint64(in.Txindex)))
	h.Write(uint256Word(new(big.Int).SetUint64(in.Oindex)))
	return sum(h)
}

func hashOutput(out TypedOutput) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(outputTypeHash[:])
	h.Write(uint256Word(new(big.Int).SetUint64(out.OutputType)))
	// bytesN values are left aligned, addresses are right aligned.
	h.Write(common.RightPadBytes(out.OutputGuard.Bytes(), 32))
	h.Write(common.LeftPadBytes(out.Currency.Bytes(), 32))
	h.Write(uint256Word(out.Amount.ToInt()))
	return sum(h)
}

func typedInputs(body *transaction.Body) [transaction.MaxInputs]TypedInput {
	var slots [transaction.MaxInputs]TypedInput
	for i, in := range body.Inputs {
		if i >= transaction.MaxInputs {
			break
		}
		slots[i] = TypedInput(in)
	}
	return slots
}

func typedOutputs(body *transaction.Body) [transaction.MaxOutputs]TypedOutput {
	var slots [transaction.MaxOutputs]TypedOutput
	for i := range slots {
		slots[i] = TypedOutput{Amount: (*hexutil.Big)(new(big.Int))}
		if i < len(body.Outputs) && !body.Outputs[i].IsNull() {
			out := body.Outputs[i]
			slots[i] = TypedOutput{
				OutputType:  out.OutputType,
				OutputGuard: out.OutputGuard,
				Currency:    out.Currency,
				Amount:      (*hexutil.Big)(new(big.Int).Set(out.Amount)),
			}
		}
	}
	return slots
}

// EncodeType returns the canonical type signature of primary: the primary
// type first, then every type it references in alphabetical order.
func EncodeType(primary string) string {
	deps := map[string]bool{}
	collectDependencies(primary, deps)
	delete(deps, primary)

	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range append([]string{primary}, names...) {
		fields := make([]string, len(Types[name]))
		for i, f := range Types[name] {
			fields[i] = f.Type + " " + f.Name
		}
		fmt.Fprintf(&b, "%s(%s)", name, strings.Join(fields, ","))
	}
	return b.String()
}

func collectDependencies(name string, found map[string]bool) {
	if found[name] {
		return
	}
	if _, ok := Types[name]; !ok {
		return
	}
	found[name] = true
	for _, f := range Types[name] {
		collectDependencies(f.Type, found)
	}
}

func typeHash(primary string) [32]byte {
	var out [32]byte
	copy(out[:], keccak([]byte(EncodeType(primary))))
	return out
}

// uint256Word ABI-encodes a non-negative integer into one 32-byte word.
func uint256Word(v *big.Int) []byte {
	if v == nil {
		return make([]byte, 32)
	}
	return common.LeftPadBytes(v.Bytes(), 32)
}

func keccak(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

func sum(h hash.Hash) [32]byte {
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}
