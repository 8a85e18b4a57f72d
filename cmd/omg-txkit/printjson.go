package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/suffix-labs/omg-txkit/pkg/crypto"
	"github.com/suffix-labs/omg-txkit/pkg/transaction"
)

func printJson(handle io.Writer, message interface{}) error {
	b, err := json.MarshalIndent(message, "", "  ")
	if nil != err {
		return err
	}

	fmt.Fprintf(handle, "%s\n", b)
	return nil
}

func hexString(b []byte) string {
	return hexutil.Encode(b)
}

type inputView struct {
	Blknum  uint64       `json:"blknum"`
	Txindex uint64       `json:"txindex"`
	Oindex  uint64       `json:"oindex"`
	UtxoPos *hexutil.Big `json:"utxo_pos"`
}

type outputView struct {
	OutputType  uint64         `json:"outputType"`
	OutputGuard common.Address `json:"outputGuard"`
	Currency    common.Address `json:"currency"`
	Amount      string         `json:"amount"`
}

type txView struct {
	TxType       uint64           `json:"txType"`
	Inputs       []inputView      `json:"inputs"`
	Outputs      []outputView     `json:"outputs"`
	TxData       uint64           `json:"txData"`
	Metadata     hexutil.Bytes    `json:"metadata"`
	MetadataText string           `json:"metadataText,omitempty"`
	Signatures   []hexutil.Bytes  `json:"signatures,omitempty"`
	Signers      []common.Address `json:"signers,omitempty"`
}

func newTxView(tx *transaction.Signed) *txView {
	view := &txView{
		TxType:   tx.TxType,
		Inputs:   make([]inputView, len(tx.Inputs)),
		Outputs:  make([]outputView, len(tx.Outputs)),
		TxData:   tx.TxData,
		Metadata: tx.Metadata[:],
	}
	for i, in := range tx.Inputs {
		view.Inputs[i] = inputView{
			Blknum:  in.Blknum,
			Txindex: in.Txindex,
			Oindex:  in.Oindex,
			UtxoPos: (*hexutil.Big)(transaction.EncodeUtxoPos(in)),
		}
	}
	for i, out := range tx.Outputs {
		view.Outputs[i] = outputView{
			OutputType:  out.OutputType,
			OutputGuard: out.OutputGuard,
			Currency:    out.Currency,
			Amount:      out.Amount.String(),
		}
	}
	if text, err := transaction.DecodeMetadata(hexString(tx.Metadata[:])); err == nil {
		view.MetadataText = text
	}
	for _, sig := range tx.Signatures {
		view.Signatures = append(view.Signatures, sig)
	}
	return view
}

// recoverSigners fills in the address behind each signature. Signatures
// that do not recover are left out.
func (v *txView) recoverSigners(tx *transaction.Signed, domain crypto.Domain) {
	digest := crypto.ToSignHash(&tx.Body, domain)
	for _, sig := range tx.Signatures {
		signer, err := crypto.RecoverAddress(digest, sig)
		if err != nil {
			continue
		}
		v.Signers = append(v.Signers, signer)
	}
}

type utxoView struct {
	Blknum   uint64         `json:"blknum"`
	Txindex  uint64         `json:"txindex"`
	Oindex   uint64         `json:"oindex"`
	UtxoPos  string         `json:"utxo_pos"`
	Owner    common.Address `json:"owner"`
	Currency common.Address `json:"currency"`
	Amount   string         `json:"amount"`
}

func newUtxoView(u transaction.UTXO) utxoView {
	return utxoView{
		Blknum:   u.Blknum,
		Txindex:  u.Txindex,
		Oindex:   u.Oindex,
		UtxoPos:  u.Pos().String(),
		Owner:    u.Owner,
		Currency: u.Currency,
		Amount:   u.Amount.String(),
	}
}

type paymentView struct {
	Address  common.Address `json:"address"`
	Currency common.Address `json:"currency"`
	Amount   string         `json:"amount,omitempty"`
	Label    *string        `json:"label,omitempty"`
}
