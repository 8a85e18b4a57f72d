// Package payreq implements payment request URIs for the childchain.
//
// A payment request encodes one or more recipients, their currencies and
// amounts, plus the transaction metadata, in a URI that can be shared via
// QR codes, links, or text.
//
// URI Format:
//
//	omg:<address>?amount=<amount>&currency=<token>&metadata=<metadata>
//
// Multiple recipients are supported with indexed parameters:
//
//	omg:?address.1=<addr1>&amount.1=<amt1>&currency.1=<token1>&address.2=<addr2>&amount.2=<amt2>
//
// Amounts are written in whole currency units ("0.6") and converted to the
// currency's base unit with ParseAmount. A missing currency means the
// native currency.
package payreq

import (
	"fmt"
	"math/big"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/suffix-labs/omg-txkit/pkg/transaction"
)

// Scheme is the URI scheme of payment requests.
const Scheme = "omg:"

// DefaultDecimals is the number of decimals of the native currency.
const DefaultDecimals = 18

// maxIndex bounds indexed parameter suffixes.
const maxIndex = 9999

// PaymentRequest represents a parsed payment request.
type PaymentRequest struct {
	Payments []Payment // List of payment recipients
	Metadata string    // Transaction metadata (plain string or 0x hex)
}

// Payment represents a single recipient within a request.
type Payment struct {
	Address  common.Address   // Recipient
	Currency common.Address   // Token address, zero for the native currency
	Amount   *decimal.Decimal // Amount in whole units (nil = user specifies)
	Label    *string          // Optional label for recipient
}

// Parse parses a payment request URI.
//
// URI formats supported:
//  1. Single recipient: omg:<address>?amount=1.5&currency=<token>
//  2. Multiple recipients: omg:?address.1=addr1&amount.1=1.0&address.2=addr2&amount.2=2.0
//
// Parameters:
//   - uri: The URI string (with or without "omg:" prefix)
//
// Returns an error if the URI is malformed, an address is not a 20-byte
// hex address, or an amount is not a non-negative decimal.
func Parse(uri string) (*PaymentRequest, error) {
	uri = strings.TrimPrefix(uri, Scheme)

	var baseAddress, query string
	parts := strings.SplitN(uri, "?", 2)
	if len(parts) == 2 {
		baseAddress, query = parts[0], parts[1]
	} else if strings.Contains(parts[0], "=") {
		query = parts[0]
	} else {
		baseAddress = parts[0]
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("failed to parse query: %w", err)
	}

	var payments []Payment
	if hasIndexedParams(params) {
		payments, err = parseIndexedPayments(baseAddress, params)
		if err != nil {
			return nil, err
		}
	} else {
		payment, err := parsePayment(baseAddress, params, -1)
		if err != nil {
			return nil, err
		}
		payments = []Payment{payment}
	}

	if len(payments) == 0 {
		return nil, fmt.Errorf("no payments found in URI")
	}

	return &PaymentRequest{
		Payments: payments,
		Metadata: params.Get("metadata"),
	}, nil
}

// parsePayment reads one recipient. An index of -1 reads the unindexed
// parameters, with address falling back to the URI path.
func parsePayment(address string, params url.Values, index int) (Payment, error) {
	get := func(name string) string {
		if index < 0 {
			return params.Get(name)
		}
		return getIndexedParam(params, name, index)
	}

	if a := get("address"); a != "" {
		address = a
	}
	if address == "" {
		return Payment{}, fmt.Errorf("payment %s missing address", describeIndex(index))
	}

	var payment Payment
	var err error
	if payment.Address, err = parseAddress(address); err != nil {
		return payment, fmt.Errorf("payment %s: invalid address: %w", describeIndex(index), err)
	}

	if c := get("currency"); c != "" {
		if payment.Currency, err = parseAddress(c); err != nil {
			return payment, fmt.Errorf("payment %s: invalid currency: %w", describeIndex(index), err)
		}
	}

	if amountStr := get("amount"); amountStr != "" {
		amount, err := parseDecimal(amountStr)
		if err != nil {
			return payment, fmt.Errorf("payment %s: invalid amount: %w", describeIndex(index), err)
		}
		payment.Amount = &amount
	}

	if label := get("label"); label != "" {
		payment.Label = &label
	}

	return payment, nil
}

// paymentParams are the per-recipient parameter names. Metadata applies
// to the whole transaction and is not one of them.
var paymentParams = []string{"address", "currency", "amount", "label"}

// parseIndexedPayments parses multiple recipients using indexed parameters.
//
// Indices run from 0 to 9999. Index 0 can be written without suffix, and
// its address can also come from the URI path. Writing the same index 0
// field twice is an error. Payments are returned in index order.
func parseIndexedPayments(baseAddress string, params url.Values) ([]Payment, error) {
	indices := map[int]bool{}
	for key := range params {
		if idx := extractIndex(key); idx >= 0 {
			indices[idx] = true
		}
	}

	if baseAddress != "" {
		indices[0] = true
	}
	for _, name := range paymentParams {
		bare, suffixed := params.Has(name), params.Has(name+".0")
		if bare {
			indices[0] = true
		}
		if bare && suffixed {
			return nil, fmt.Errorf("payment 0: both %s and %s.0 given", name, name)
		}
	}
	if baseAddress != "" && (params.Has("address") || params.Has("address.0")) {
		return nil, fmt.Errorf("payment 0: address given in both path and parameters")
	}

	ordered := make([]int, 0, len(indices))
	for idx := range indices {
		ordered = append(ordered, idx)
	}
	sort.Ints(ordered)

	payments := make([]Payment, 0, len(ordered))
	for _, idx := range ordered {
		address := ""
		if idx == 0 {
			address = baseAddress
		}
		payment, err := parsePayment(address, params, idx)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, nil
}

// hasIndexedParams checks if the query contains indexed parameters.
func hasIndexedParams(params url.Values) bool {
	for key := range params {
		if extractIndex(key) >= 0 {
			return true
		}
	}
	return false
}

// extractIndex extracts the index from a parameter name.
//
// Examples:
//   - "address.1" -> 1
//   - "amount.42" -> 42
//   - "address" -> -1 (no index)
//
// Returns -1 if no index found.
func extractIndex(paramName string) int {
	parts := strings.Split(paramName, ".")
	if len(parts) != 2 {
		return -1
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil || idx < 0 || idx > maxIndex {
		return -1
	}
	return idx
}

// getIndexedParam gets a parameter value for a specific index.
//
// For index 0, tries both "name" and "name.0".
func getIndexedParam(params url.Values, name string, index int) string {
	if index == 0 {
		if val := params.Get(name); val != "" {
			return val
		}
	}
	return params.Get(fmt.Sprintf("%s.%d", name, index))
}

func describeIndex(index int) string {
	if index < 0 {
		return "0"
	}
	return strconv.Itoa(index)
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%q is not a 20-byte hex address", s)
	}
	return common.HexToAddress(s), nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("not a valid number: %w", err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("amount cannot be negative")
	}
	return d, nil
}

// ParseAmount converts a decimal amount in whole units to base units.
//
// Example: ParseAmount("0.6", 18) returns 600000000000000000.
//
// Returns an error if the amount is negative or has more fractional
// digits than the currency supports.
func ParseAmount(amount string, decimals int32) (*big.Int, error) {
	d, err := parseDecimal(amount)
	if err != nil {
		return nil, err
	}
	return toBaseUnits(d, decimals)
}

// FormatAmount converts base units to a decimal string in whole units,
// without trailing zeros.
func FormatAmount(amount *big.Int, decimals int32) string {
	return decimal.NewFromBigInt(amount, -decimals).String()
}

func toBaseUnits(d decimal.Decimal, decimals int32) (*big.Int, error) {
	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimals", d, decimals)
	}
	return shifted.BigInt(), nil
}

// ToPayments converts the request into builder payments.
//
// decimals returns the number of decimals of a currency. A nil decimals
// uses DefaultDecimals for every currency.
//
// Returns an error if a payment has no amount, a zero amount, or an
// amount that does not convert exactly to base units.
func (req *PaymentRequest) ToPayments(decimals func(currency common.Address) int32) ([]transaction.Payment, error) {
	if decimals == nil {
		decimals = func(common.Address) int32 { return DefaultDecimals }
	}

	payments := make([]transaction.Payment, 0, len(req.Payments))
	for i, p := range req.Payments {
		if p.Amount == nil {
			return nil, fmt.Errorf("payment %d has no amount", i)
		}
		amount, err := toBaseUnits(*p.Amount, decimals(p.Currency))
		if err != nil {
			return nil, fmt.Errorf("payment %d: %w", i, err)
		}
		payment, err := transaction.NewPayment(p.Address, p.Currency, amount)
		if err != nil {
			return nil, fmt.Errorf("payment %d: %w", i, err)
		}
		payments = append(payments, payment)
	}
	return payments, nil
}

// Encode creates a URI from a PaymentRequest.
//
// This is the inverse of Parse. A single recipient uses the path form,
// several recipients use indexed parameters.
func (req *PaymentRequest) Encode() string {
	params := url.Values{}
	uri := Scheme

	if len(req.Payments) == 1 {
		uri += req.Payments[0].Address.Hex()
		addPaymentParams(params, req.Payments[0], "")
	} else {
		for i, p := range req.Payments {
			suffix := fmt.Sprintf(".%d", i)
			params.Add("address"+suffix, p.Address.Hex())
			addPaymentParams(params, p, suffix)
		}
	}
	if req.Metadata != "" {
		params.Add("metadata", req.Metadata)
	}

	if len(params) > 0 {
		uri += "?" + params.Encode()
	}
	return uri
}

func addPaymentParams(params url.Values, p Payment, suffix string) {
	if p.Currency != transaction.NativeCurrency {
		params.Add("currency"+suffix, p.Currency.Hex())
	}
	if p.Amount != nil {
		params.Add("amount"+suffix, p.Amount.String())
	}
	if p.Label != nil {
		params.Add("label"+suffix, *p.Label)
	}
}
