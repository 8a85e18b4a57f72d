package crypto

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suffix-labs/omg-txkit/pkg/transaction"
)

// Expected digests were produced by an independent EIP-712 implementation.
const (
	vectorContract        = "0x9c6d8f4b1b5d3f2a8e0c1e9d7a3b5c6d4e2f1a0b"
	vectorDomainTypeHash  = "36c25de3e541d5d970f66e4210d728721220fff5c077cc6cd008b3a0c62adab7"
	vectorTxTypeHash      = "241c8cf311f10d9082cd3aa8f912df0fe9d65d95571fa11b7ac8833ea3dcf40a"
	vectorInputTypeHash   = "5f0e06e50b513a68a090818949172483acfec769d9b7756cad7c00b26b52178c"
	vectorOutputTypeHash  = "9fd642c2bbaa2f3431add55df5d3932807048fb41b6b07d65c59e0f9ad3a8eb7"
	vectorDomainSeparator = "5b4df0572ee7bec8f51fe8d1c8b955b074ea4496854ae89480e0c0ae43bc24e1"
	vectorEmptyInputHash  = "1a5933eb0b3223b0500fbbe7039cab9badc006adda6cf3d337751412fd7a4b61"
	vectorEmptyOutputHash = "7ad3294754e2cfc48a946ab7f8ec5b7dc50fc8ecbc0236a020e5c9c0db60a98c"
	vectorMessageHash     = "5f937069b01c037af8df11faea7937ff0adccd8aa09c7d261d4277d636d8c9b0"
	vectorToSignHash      = "cf9a86fd895f8a4032a8ebb846c2149658262f99f22d3134a3635a80872c9b20"
)

func vectorBody(t *testing.T) *transaction.Body {
	t.Helper()

	metadata, err := transaction.ParseMetadata("hello")
	require.NoError(t, err)

	return &transaction.Body{
		TxType: transaction.TxTypePayment,
		Inputs: []transaction.Input{
			{Blknum: 1000, Txindex: 0, Oindex: 0},
			{Blknum: 2000, Txindex: 3, Oindex: 1},
		},
		Outputs: []transaction.Output{
			{
				OutputType:  transaction.OutputTypePayment,
				OutputGuard: common.HexToAddress("0x1111111111111111111111111111111111111111"),
				Currency:    transaction.NativeCurrency,
				Amount:      big.NewInt(1_000_000_000_000_000_000),
			},
			{
				OutputType:  transaction.OutputTypePayment,
				OutputGuard: common.HexToAddress("0x2222222222222222222222222222222222222222"),
				Currency:    common.HexToAddress("0x3333333333333333333333333333333333333333"),
				Amount:      big.NewInt(5),
			},
		},
		Metadata: metadata,
	}
}

func vectorDomain() Domain {
	return DefaultDomain(common.HexToAddress(vectorContract))
}

func TestEncodeType(t *testing.T) {
	assert.Equal(t,
		"Transaction(uint256 txType,Input input0,Input input1,Input input2,Input input3,"+
			"Output output0,Output output1,Output output2,Output output3,uint256 txData,bytes32 metadata)"+
			"Input(uint256 blknum,uint256 txindex,uint256 oindex)"+
			"Output(uint256 outputType,bytes20 outputGuard,address currency,uint256 amount)",
		EncodeType(TransactionType))
	assert.Equal(t,
		"EIP712Domain(string name,string version,address verifyingContract,bytes32 salt)",
		EncodeType(DomainType))
}

func TestTypeHashes(t *testing.T) {
	assert.Equal(t, vectorDomainTypeHash, hex.EncodeToString(domainTypeHash[:]))
	assert.Equal(t, vectorTxTypeHash, hex.EncodeToString(transactionTypeHash[:]))
	assert.Equal(t, vectorInputTypeHash, hex.EncodeToString(inputTypeHash[:]))
	assert.Equal(t, vectorOutputTypeHash, hex.EncodeToString(outputTypeHash[:]))
}

func TestEmptySlotHashes(t *testing.T) {
	emptyIn := hashInput(TypedInput{})
	assert.Equal(t, vectorEmptyInputHash, hex.EncodeToString(emptyIn[:]))

	slots := typedOutputs(&transaction.Body{})
	emptyOut := hashOutput(slots[0])
	assert.Equal(t, vectorEmptyOutputHash, hex.EncodeToString(emptyOut[:]))
}

func TestToSignHashVector(t *testing.T) {
	body := vectorBody(t)
	domain := vectorDomain()

	domainSeparator := HashDomain(domain)
	assert.Equal(t, vectorDomainSeparator, hex.EncodeToString(domainSeparator[:]))

	messageHash := HashMessage(body)
	assert.Equal(t, vectorMessageHash, hex.EncodeToString(messageHash[:]))

	digest := ToSignHash(body, domain)
	assert.Equal(t, vectorToSignHash, hex.EncodeToString(digest[:]))
}

func TestToSignHashIsDeterministic(t *testing.T) {
	body := vectorBody(t)
	assert.Equal(t, ToSignHash(body, vectorDomain()), ToSignHash(vectorBody(t), vectorDomain()))
}

func TestToSignHashChangesWithEveryField(t *testing.T) {
	base := ToSignHash(vectorBody(t), vectorDomain())

	mutations := map[string]func(b *transaction.Body, d *Domain){
		"txType":        func(b *transaction.Body, d *Domain) { b.TxType = 2 },
		"input blknum":  func(b *transaction.Body, d *Domain) { b.Inputs[0].Blknum++ },
		"input txindex": func(b *transaction.Body, d *Domain) { b.Inputs[1].Txindex++ },
		"input oindex":  func(b *transaction.Body, d *Domain) { b.Inputs[1].Oindex = 0 },
		"extra input":   func(b *transaction.Body, d *Domain) { b.Inputs = append(b.Inputs, transaction.Input{Blknum: 3}) },
		"outputType":    func(b *transaction.Body, d *Domain) { b.Outputs[0].OutputType = 2 },
		"outputGuard":   func(b *transaction.Body, d *Domain) { b.Outputs[0].OutputGuard[19] ^= 1 },
		"currency":      func(b *transaction.Body, d *Domain) { b.Outputs[1].Currency = transaction.NativeCurrency },
		"amount":        func(b *transaction.Body, d *Domain) { b.Outputs[1].Amount = big.NewInt(6) },
		"txData":        func(b *transaction.Body, d *Domain) { b.TxData = 1 },
		"metadata":      func(b *transaction.Body, d *Domain) { b.Metadata[0] = 1 },
		"domain name":   func(b *transaction.Body, d *Domain) { d.Name = "Other" },
		"version":       func(b *transaction.Body, d *Domain) { d.Version = "2" },
		"contract":      func(b *transaction.Body, d *Domain) { d.VerifyingContract[0] ^= 1 },
		"salt":          func(b *transaction.Body, d *Domain) { d.Salt[31] ^= 1 },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			body := vectorBody(t)
			domain := vectorDomain()
			mutate(body, &domain)
			assert.NotEqual(t, base, ToSignHash(body, domain))
		})
	}
}

func TestZeroAmountOutputHashesAsEmpty(t *testing.T) {
	body := vectorBody(t)
	withZero := vectorBody(t)
	withZero.Outputs = append(withZero.Outputs, transaction.Output{
		OutputType:  transaction.OutputTypePayment,
		OutputGuard: common.HexToAddress("0x4444444444444444444444444444444444444444"),
		Amount:      big.NewInt(0),
	})
	assert.Equal(t, HashMessage(body), HashMessage(withZero))
}

func TestTypedDataPayload(t *testing.T) {
	td := NewTypedData(vectorBody(t), vectorDomain())

	digest := td.ToSignHash()
	assert.Equal(t, vectorToSignHash, hex.EncodeToString(digest[:]))

	encoded, err := json.Marshal(td)
	require.NoError(t, err)

	var decoded TypedData
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, TransactionType, decoded.PrimaryType)
	assert.Equal(t, "0x5", decoded.Message.Output1.Amount.String())
	assert.Equal(t, uint64(2000), decoded.Message.Input1.Blknum)

	again := decoded.ToSignHash()
	assert.Equal(t, digest, again)
}
