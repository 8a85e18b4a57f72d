package main

import (
	"bufio"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/suffix-labs/omg-txkit/pkg/api"
	"github.com/suffix-labs/omg-txkit/pkg/crypto"
	"github.com/suffix-labs/omg-txkit/pkg/ledger"
	"github.com/suffix-labs/omg-txkit/pkg/payreq"
	"github.com/suffix-labs/omg-txkit/pkg/roles"
	"github.com/suffix-labs/omg-txkit/pkg/store"
	"github.com/suffix-labs/omg-txkit/pkg/transaction"
)

func runCreate(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	from, err := addressFlag(c, "from", true)
	if err != nil {
		return err
	}
	decimals := int32(c.Int("decimals"))

	utxos, err := loadUtxos(c, m, from)
	if err != nil {
		return err
	}

	feeCurrency, err := addressFlag(c, "fee-currency", false)
	if err != nil {
		return err
	}
	feeAmount, err := payreq.ParseAmount(c.String("fee"), decimals)
	if err != nil {
		return fmt.Errorf("invalid fee: %w", err)
	}
	fee, err := transaction.NewFee(feeCurrency, feeAmount)
	if err != nil {
		return err
	}

	var body *transaction.Body
	uri := c.String("uri")
	switch {
	case uri != "" && c.String("to") != "":
		return fmt.Errorf("only one of --uri and --to can be given")
	case uri != "":
		body, err = api.CreateTransactionFromURI(m.log, from, utxos, uri, fee,
			func(common.Address) int32 { return decimals })
	default:
		var payment transaction.Payment
		payment, err = paymentFromFlags(c, decimals)
		if err != nil {
			return err
		}
		body, err = api.CreateTransaction(m.log, roles.TransactionRequest{
			From:     from,
			Utxos:    utxos,
			Payments: []transaction.Payment{payment},
			Fee:      fee,
			Metadata: c.String("metadata"),
		})
	}
	if err != nil {
		return err
	}

	return printUnsigned(m, body)
}

func runTypedData(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	tx, err := txFlag(c)
	if err != nil {
		return err
	}
	domain, err := m.config.Network.Domain()
	if err != nil {
		return err
	}

	typedData := api.GetTypedData(&tx.Body, domain)
	toSign := api.GetToSignHash(typedData)
	return printJson(m.w, struct {
		TypedData  *crypto.TypedData `json:"typedData"`
		ToSignHash common.Hash       `json:"toSignHash"`
	}{typedData, toSign})
}

func runSign(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	tx, err := txFlag(c)
	if err != nil {
		return err
	}
	domain, err := m.config.Network.Domain()
	if err != nil {
		return err
	}

	var keys []*crypto.PrivateKey
	for i, s := range c.StringSlice("key") {
		key, err := crypto.ParsePrivateKey(s)
		if err != nil {
			return fmt.Errorf("key %d: %w", i, err)
		}
		keys = append(keys, key)
	}

	sigs, err := api.SignTransaction(&tx.Body, domain, keys)
	if err != nil {
		return err
	}
	txBytes, err := api.BuildSignedTransaction(&tx.Body, sigs)
	if err != nil {
		return err
	}

	m.log.Debug("signed transaction",
		zap.Int("inputs", len(tx.Inputs)),
		zap.Int("bytes", len(txBytes)))
	fmt.Fprintf(m.w, "%s\n", hexString(txBytes))
	return nil
}

func runDecode(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	tx, err := txFlag(c)
	if err != nil {
		return err
	}

	view := newTxView(tx)
	if len(tx.Signatures) > 0 {
		if domain, err := m.config.Network.Domain(); err == nil {
			view.recoverSigners(tx, domain)
		} else if m.verbose {
			fmt.Fprintf(m.e, "signers not recovered: %s\n", err)
		}
	}
	return printJson(m.w, view)
}

func runMerge(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	owner, err := addressFlag(c, "owner", true)
	if err != nil {
		return err
	}
	currency, err := addressFlag(c, "currency", false)
	if err != nil {
		return err
	}

	utxos, err := loadUtxos(c, m, owner)
	if err != nil {
		return err
	}

	var candidates []transaction.UTXO
	for _, u := range utxos {
		if u.Owner == owner && u.Currency == currency {
			candidates = append(candidates, u)
		}
		if len(candidates) == roles.MaxMergeUtxos {
			break
		}
	}
	m.log.Debug("merge candidates",
		zap.Stringer("owner", owner),
		zap.Stringer("currency", currency),
		zap.Int("count", len(candidates)))

	body, err := api.MergeUtxos(candidates, c.String("metadata"))
	if err != nil {
		return err
	}
	return printUnsigned(m, body)
}

func runProof(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	blockFile := c.String("block")
	if blockFile == "" {
		return fmt.Errorf("--block is required")
	}
	pos, ok := new(big.Int).SetString(c.String("utxo-pos"), 10)
	if !ok {
		return fmt.Errorf("invalid --utxo-pos %q", c.String("utxo-pos"))
	}
	height := c.Int("height")
	if height < 0 {
		height = m.config.Merkle.Height
	}

	blockTxs, err := readBlock(blockFile)
	if err != nil {
		return err
	}

	exitData, err := api.BuildExitData(blockTxs, pos, height)
	if err != nil {
		return err
	}
	return printJson(m.w, exitData)
}

func runDeposit(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	owner, err := addressFlag(c, "owner", true)
	if err != nil {
		return err
	}
	currency, err := addressFlag(c, "currency", false)
	if err != nil {
		return err
	}
	amount, err := payreq.ParseAmount(c.String("amount"), int32(c.Int("decimals")))
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	txBytes, err := transaction.EncodeDeposit(owner, amount, currency)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.w, "%s\n", hexString(txBytes))
	return nil
}

func runUtxosImport(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	file := c.String("file")
	if file == "" {
		return fmt.Errorf("--file is required")
	}
	utxos, err := readUtxoFile(file)
	if err != nil {
		return err
	}

	byOwner := map[common.Address][]transaction.UTXO{}
	var owners []common.Address
	for _, u := range utxos {
		if _, ok := byOwner[u.Owner]; !ok {
			owners = append(owners, u.Owner)
		}
		byOwner[u.Owner] = append(byOwner[u.Owner], u)
	}

	db, err := store.Open(m.config.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, owner := range owners {
		if err := db.Replace(owner, byOwner[owner]); err != nil {
			return err
		}
		m.log.Info("imported utxos",
			zap.Stringer("owner", owner),
			zap.Int("count", len(byOwner[owner])))
	}
	return nil
}

func runUtxosList(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	owner, err := addressFlag(c, "owner", true)
	if err != nil {
		return err
	}

	db, err := store.Open(m.config.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	utxos, err := db.List(owner)
	if err != nil {
		return err
	}

	views := make([]utxoView, len(utxos))
	for i, u := range utxos {
		views[i] = newUtxoView(u)
	}
	return printJson(m.w, views)
}

func runParseURI(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one URI")
	}
	req, err := payreq.Parse(c.Args().Get(0))
	if err != nil {
		return err
	}

	views := make([]paymentView, len(req.Payments))
	for i, p := range req.Payments {
		views[i] = paymentView{Address: p.Address, Currency: p.Currency, Label: p.Label}
		if p.Amount != nil {
			views[i].Amount = p.Amount.String()
		}
	}
	return printJson(m.w, struct {
		Payments []paymentView `json:"payments"`
		Metadata string        `json:"metadata,omitempty"`
	}{views, req.Metadata})
}

// ============================================================================
// Flag helpers
// ============================================================================

// addressFlag reads an address flag. Optional flags default to the zero
// address, which is also the native currency.
func addressFlag(c *cli.Context, name string, required bool) (common.Address, error) {
	s := c.String(name)
	if s == "" {
		if required {
			return common.Address{}, fmt.Errorf("--%s is required", name)
		}
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("--%s: %q is not an address", name, s)
	}
	return common.HexToAddress(s), nil
}

func paymentFromFlags(c *cli.Context, decimals int32) (transaction.Payment, error) {
	to, err := addressFlag(c, "to", true)
	if err != nil {
		return transaction.Payment{}, fmt.Errorf("one of --uri and --to is required: %w", err)
	}
	currency, err := addressFlag(c, "currency", false)
	if err != nil {
		return transaction.Payment{}, err
	}
	amount, err := payreq.ParseAmount(c.String("amount"), decimals)
	if err != nil {
		return transaction.Payment{}, fmt.Errorf("invalid amount: %w", err)
	}
	return transaction.NewPayment(to, currency, amount)
}

func txFlag(c *cli.Context) (*transaction.Signed, error) {
	s := c.String("tx")
	if s == "" {
		return nil, fmt.Errorf("--tx is required")
	}
	return api.DecodeTransaction(common.FromHex(strings.TrimSpace(s)))
}

// loadUtxos reads UTXOs from --utxos or, with --store, from the snapshot
// of owner.
func loadUtxos(c *cli.Context, m *metadata, owner common.Address) ([]transaction.UTXO, error) {
	file := c.String("utxos")
	fromStore := c.Bool("store")

	switch {
	case file != "" && fromStore:
		return nil, fmt.Errorf("only one of --utxos and --store can be given")
	case file != "":
		return readUtxoFile(file)
	case fromStore:
		db, err := store.Open(m.config.Store.Path)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return db.List(owner)
	default:
		return nil, fmt.Errorf("one of --utxos and --store is required")
	}
}

func readUtxoFile(name string) ([]transaction.UTXO, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ledger.DecodeUtxos(f)
}

// readBlock reads one transaction hex per line, skipping blank lines. The
// 0x prefix is optional.
func readBlock(name string) ([][]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var txs [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "0x") && !strings.HasPrefix(line, "0X") {
			line = "0x" + line
		}
		tx, err := hexutil.Decode(line)
		if err != nil {
			return nil, fmt.Errorf("block %s line %d: %w", name, n, err)
		}
		txs = append(txs, tx)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read block %s: %w", name, err)
	}
	return txs, nil
}

func printUnsigned(m *metadata, body *transaction.Body) error {
	txBytes, err := body.Encode()
	if err != nil {
		return err
	}

	out := struct {
		TxBytes    string       `json:"txbytes"`
		ToSignHash *common.Hash `json:"toSignHash,omitempty"`
		Inputs     int          `json:"inputs"`
		Outputs    int          `json:"outputs"`
	}{
		TxBytes: hexString(txBytes),
		Inputs:  len(body.Inputs),
		Outputs: len(body.Outputs),
	}
	if domain, err := m.config.Network.Domain(); err == nil {
		toSign := common.Hash(crypto.ToSignHash(body, domain))
		out.ToSignHash = &toSign
	}
	return printJson(m.w, out)
}
