package main

import (
	"bytes"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/omg-txkit/pkg/transaction"
)

const testContract = "0x9c6d8f4b1b5d3f2a8e0c1e9d7a3b5c6d4e2f1a0b"

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr

	err := app.Run(append([]string{"omg-txkit"}, args...))
	return stdout.String(), err
}

func TestVersion(t *testing.T) {
	out, err := runApp(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestDeposit(t *testing.T) {
	owner := common.HexToAddress("0xa11ce00000000000000000000000000000000001")

	out, err := runApp(t, "deposit", "--owner", owner.Hex(), "--amount", "1.5")
	require.NoError(t, err)

	expected, err := transaction.EncodeDeposit(owner, big.NewInt(1_500_000_000_000_000_000), transaction.NativeCurrency)
	require.NoError(t, err)
	assert.Equal(t, hexString(expected), strings.TrimSpace(out))

	_, err = runApp(t, "deposit", "--amount", "1")
	require.Error(t, err)
}

func TestParseURI(t *testing.T) {
	out, err := runApp(t, "parse-uri", "omg:0xb0b0000000000000000000000000000000000002?amount=2.5&label=rent&metadata=march")
	require.NoError(t, err)

	var parsed struct {
		Payments []paymentView `json:"payments"`
		Metadata string        `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	require.Len(t, parsed.Payments, 1)
	assert.Equal(t, common.HexToAddress("0xb0b0000000000000000000000000000000000002"), parsed.Payments[0].Address)
	assert.Equal(t, "2.5", parsed.Payments[0].Amount)
	require.NotNil(t, parsed.Payments[0].Label)
	assert.Equal(t, "rent", *parsed.Payments[0].Label)
	assert.Equal(t, "march", parsed.Metadata)

	_, err = runApp(t, "parse-uri")
	require.Error(t, err)
}

func TestCreateSignDecode(t *testing.T) {
	dir := t.TempDir()
	utxoFile := filepath.Join(dir, "utxos.json")
	owner := "0x2c7536e3605d9c16a7a3d7b1898e529396a65c23"
	require.NoError(t, os.WriteFile(utxoFile, []byte(`{
  "success": true,
  "data": [
    {
      "blknum": 1000, "txindex": 0, "oindex": 0, "otype": 1,
      "owner": "`+owner+`",
      "currency": "0x0000000000000000000000000000000000000000",
      "amount": 1000000000000000000
    }
  ]
}`), 0o600))

	out, err := runApp(t, "--contract", testContract,
		"create", "--from", owner, "--utxos", utxoFile,
		"--to", "0xb0b0000000000000000000000000000000000002", "--amount", "0.25",
		"--fee", "0.01", "--metadata", "coffee")
	require.NoError(t, err)

	var unsigned struct {
		TxBytes    string       `json:"txbytes"`
		ToSignHash *common.Hash `json:"toSignHash"`
		Inputs     int          `json:"inputs"`
		Outputs    int          `json:"outputs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &unsigned))
	assert.Equal(t, 1, unsigned.Inputs)
	assert.Equal(t, 2, unsigned.Outputs)
	require.NotNil(t, unsigned.ToSignHash)

	out, err = runApp(t, "--contract", testContract,
		"sign", "--tx", unsigned.TxBytes,
		"--key", "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	signed := strings.TrimSpace(out)

	out, err = runApp(t, "--contract", testContract, "decode", "--tx", signed)
	require.NoError(t, err)

	var view txView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Len(t, view.Outputs, 2)
	assert.Equal(t, "740000000000000000", view.Outputs[0].Amount)
	assert.Equal(t, "250000000000000000", view.Outputs[1].Amount)
	assert.Equal(t, "coffee", view.MetadataText)
	require.Len(t, view.Signers, 1)
	assert.Equal(t, common.HexToAddress(owner), view.Signers[0])

	t.Run("two payment sources", func(t *testing.T) {
		_, err := runApp(t, "create", "--from", owner, "--utxos", utxoFile,
			"--to", owner, "--amount", "1", "--uri", "omg:"+owner)
		require.Error(t, err)
	})
	t.Run("wrong key count", func(t *testing.T) {
		_, err := runApp(t, "--contract", testContract, "sign", "--tx", unsigned.TxBytes)
		require.Error(t, err)
	})
}

func TestProof(t *testing.T) {
	dir := t.TempDir()
	owner := common.HexToAddress("0xa11ce00000000000000000000000000000000001")

	var lines []string
	for i := uint64(0); i < 2; i++ {
		body := &transaction.Body{
			TxType: transaction.TxTypePayment,
			Inputs: []transaction.Input{{Blknum: 1000 * (i + 1)}},
			Outputs: []transaction.Output{{
				OutputType:  transaction.OutputTypePayment,
				OutputGuard: owner,
				Currency:    transaction.NativeCurrency,
				Amount:      big.NewInt(int64(i + 1)),
			}},
		}
		raw, err := body.Encode()
		require.NoError(t, err)
		lines = append(lines, hexString(raw))
	}
	blockFile := filepath.Join(dir, "block.txt")
	require.NoError(t, os.WriteFile(blockFile, []byte(strings.Join(lines, "\n")+"\n\n"), 0o600))

	out, err := runApp(t, "proof", "--block", blockFile, "--utxo-pos", "3000000010000")
	require.NoError(t, err)

	var exit struct {
		Proof   string `json:"proof"`
		TxBytes string `json:"txbytes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &exit))
	assert.Equal(t, lines[1], exit.TxBytes)
	// default height of 16 levels
	assert.Len(t, common.FromHex(exit.Proof), 16*32)

	_, err = runApp(t, "proof", "--block", blockFile, "--utxo-pos", "nope")
	require.Error(t, err)
}

func TestProofRejectsBadBlockHex(t *testing.T) {
	blockFile := filepath.Join(t.TempDir(), "block.txt")
	require.NoError(t, os.WriteFile(blockFile, []byte("0xf8d1\n\n0xzz12\n"), 0o600))

	_, err := runApp(t, "proof", "--block", blockFile, "--utxo-pos", "1000000000000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")

	_, err = readBlock(blockFile)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(blockFile, []byte("f8d1\n0Xabcd\n"), 0o600))
	txs, err := readBlock(blockFile)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{0xf8, 0xd1}, {0xab, 0xcd}}, txs)
}
