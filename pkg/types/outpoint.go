package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Outpoint references a specific output in a transaction.
type Outpoint struct {
	TxID  TxID   `json:"txid"`
	Index uint32 `json:"vout"`
}

// IsZero returns true if the outpoint has a zero TxID and zero index.
func (o Outpoint) IsZero() bool {
	return o.TxID.IsZero() && o.Index == 0
}

// String returns "txid:index" with the txid in display order.
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID.String(), o.Index)
}

// ParseOutpoint parses the "txid:index" form produced by String.
func ParseOutpoint(s string) (Outpoint, error) {
	txid, idx, ok := strings.Cut(s, ":")
	if !ok {
		return Outpoint{}, fmt.Errorf("outpoint %q: missing ':'", s)
	}
	id, err := HexToTxID(txid)
	if err != nil {
		return Outpoint{}, fmt.Errorf("outpoint %q: %w", s, err)
	}
	n, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return Outpoint{}, fmt.Errorf("outpoint %q: invalid index: %w", s, err)
	}
	return Outpoint{TxID: id, Index: uint32(n)}, nil
}

// Utxo is an unspent output as reported by a node.
type Utxo struct {
	Outpoint      Outpoint `json:"outpoint"`
	Value         uint64   `json:"value"`
	Asset         AssetID  `json:"asset"`
	ScriptPubKey  []byte   `json:"script_pubkey,omitempty"`
	Confirmations int64    `json:"confirmations"`
	// Confidential outputs carry blinded commitments on chain. Value and
	// Asset are the wallet's unblinded view and cannot be spent as
	// explicit amounts.
	Confidential bool `json:"confidential,omitempty"`
}
