// Package ledger decodes the Watcher's view of an owner's UTXOs.
//
// The Watcher answers account.get_utxos with a JSON envelope:
//
//	{"success": true, "data": [{"blknum": 1000, "txindex": 0, "oindex": 0, ...}]}
//
// or, on failure:
//
//	{"success": false, "data": {"object": "error", "code": "...", "description": "..."}}
//
// Amounts are arbitrary precision integers and may arrive as JSON numbers
// larger than 2^53, as decimal strings, or as 0x-prefixed hex strings.
package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mitchellh/mapstructure"
	"github.com/suffix-labs/omg-txkit/pkg/transaction"
)

// APIError is returned when the Watcher reports a failure.
type APIError struct {
	Code        string `mapstructure:"code"`
	Description string `mapstructure:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("watcher error [%s]: %s", e.Code, e.Description)
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// utxoRecord mirrors one element of the Watcher's UTXO list.
type utxoRecord struct {
	Blknum   uint64         `mapstructure:"blknum"`
	Txindex  uint64         `mapstructure:"txindex"`
	Oindex   uint64         `mapstructure:"oindex"`
	Otype    uint64         `mapstructure:"otype"`
	Owner    common.Address `mapstructure:"owner"`
	Currency common.Address `mapstructure:"currency"`
	Amount   *big.Int       `mapstructure:"amount"`
	UtxoPos  *big.Int       `mapstructure:"utxo_pos"`
}

var (
	bigIntType  = reflect.TypeOf((*big.Int)(nil))
	addressType = reflect.TypeOf(common.Address{})
)

// DecodeUtxos decodes an account.get_utxos response.
//
// The UTXOs are returned in the order the Watcher listed them.
//
// Returns an error if:
//   - The body is not JSON or does not match the envelope (wrapped)
//   - The Watcher reports a failure (*APIError)
//   - An entry has a non-positive amount or a utxo_pos that disagrees
//     with its blknum, txindex and oindex
func DecodeUtxos(r io.Reader) ([]transaction.UTXO, error) {
	data, err := decodeEnvelope(r)
	if err != nil {
		return nil, err
	}

	var records []utxoRecord
	if err := decodeInto(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode utxos: %w", err)
	}

	utxos := make([]transaction.UTXO, len(records))
	for i, rec := range records {
		u := transaction.UTXO{
			Blknum:     rec.Blknum,
			Txindex:    rec.Txindex,
			Oindex:     rec.Oindex,
			OutputType: rec.Otype,
			Owner:      rec.Owner,
			Currency:   rec.Currency,
			Amount:     rec.Amount,
		}
		if u.OutputType == 0 {
			u.OutputType = transaction.OutputTypePayment
		}
		if u.Amount == nil || u.Amount.Sign() <= 0 {
			return nil, fmt.Errorf("utxo %d (%s) has non-positive amount", i, u.Input())
		}
		if err := transaction.CheckPosition(u.Input()); err != nil {
			return nil, fmt.Errorf("utxo %d: %w", i, err)
		}
		if rec.UtxoPos != nil && rec.UtxoPos.Cmp(u.Pos()) != 0 {
			return nil, fmt.Errorf("utxo %d: utxo_pos %s does not match position %s", i, rec.UtxoPos, u.Input())
		}
		utxos[i] = u
	}
	return utxos, nil
}

// DecodeUtxosBytes is DecodeUtxos over an in-memory response.
func DecodeUtxosBytes(body []byte) ([]transaction.UTXO, error) {
	return DecodeUtxos(bytes.NewReader(body))
}

func decodeEnvelope(r io.Reader) (interface{}, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if !env.Success {
		apiErr := &APIError{}
		if err := decodeInto(env.Data, apiErr); err != nil {
			return nil, fmt.Errorf("failed to decode error response: %w", err)
		}
		if apiErr.Code == "" {
			apiErr.Code = "unknown"
		}
		return nil, apiErr
	}
	return env.Data, nil
}

func decodeInto(input interface{}, result interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(bigIntHook, addressHook),
		Result:     result,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// bigIntHook turns JSON numbers and numeric strings into *big.Int.
func bigIntHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != bigIntType {
		return data, nil
	}

	var s string
	switch v := data.(type) {
	case json.Number:
		s = v.String()
	case string:
		s = v
	default:
		return data, nil
	}

	n, ok := parseBigInt(s)
	if !ok {
		return nil, fmt.Errorf("%q is not an integer", s)
	}
	return n, nil
}

func parseBigInt(s string) (*big.Int, bool) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return new(big.Int).SetString(s[2:], 16)
	}
	return new(big.Int).SetString(s, 10)
}

// addressHook turns 0x-prefixed hex strings into common.Address.
func addressHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	s, ok := data.(string)
	if to != addressType || !ok {
		return data, nil
	}
	if !common.IsHexAddress(s) {
		return nil, fmt.Errorf("%q is not a 20-byte hex address", s)
	}
	return common.HexToAddress(s), nil
}
