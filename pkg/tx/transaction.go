// Package tx defines Elements transactions with explicit (unblinded)
// assets and values, and assembles puzzle spends.
package tx

import (
	"encoding/hex"
	"fmt"
	"math"

	"github.com/Klingon-tech/puzzle-jackpot/pkg/crypto"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
)

// DefaultVersion is the version of assembled transactions.
const DefaultVersion uint32 = 2

// HexBytes marshals as a hex string in JSON.
type HexBytes []byte

// MarshalText encodes the bytes as hex.
func (h HexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h)), nil
}

// UnmarshalText decodes hex.
func (h *HexBytes) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	*h = b
	return nil
}

// Transaction is an Elements transaction.
type Transaction struct {
	Version  uint32   `json:"version"`
	Inputs   []Input  `json:"inputs"`
	Outputs  []Output `json:"outputs"`
	LockTime uint32   `json:"locktime"`
}

// Input references an output being spent.
type Input struct {
	PrevOut   types.Outpoint `json:"prevout"`
	ScriptSig HexBytes       `json:"script_sig,omitempty"`
	Sequence  uint32         `json:"sequence"`
	Witness   []HexBytes     `json:"witness,omitempty"`
}

// Output is an explicit-asset, explicit-value output. An empty script
// marks the network fee output.
type Output struct {
	Asset  types.AssetID `json:"asset"`
	Value  uint64        `json:"value"`
	Script HexBytes      `json:"script"`
}

// IsFee reports whether the output is the explicit network fee.
func (o Output) IsFee() bool {
	return len(o.Script) == 0
}

// HasWitness reports whether any input carries witness data.
func (tx *Transaction) HasWitness() bool {
	for _, in := range tx.Inputs {
		if len(in.Witness) > 0 {
			return true
		}
	}
	return false
}

// TxHash returns the transaction id: double SHA-256 of the serialization
// without witness data.
func (tx *Transaction) TxHash() types.TxID {
	return types.TxID(crypto.DoubleSHA256(tx.Serialize(false)))
}

// Hex returns the full serialization (with witnesses) as hex, ready for
// sendrawtransaction.
func (tx *Transaction) Hex() string {
	return hex.EncodeToString(tx.Serialize(true))
}

// TotalOutputValue returns the sum of all output values.
// Returns an error if the sum overflows uint64.
func (tx *Transaction) TotalOutputValue() (uint64, error) {
	var total uint64
	for _, out := range tx.Outputs {
		if total > math.MaxUint64-out.Value {
			return 0, ErrOutputOverflow
		}
		total += out.Value
	}
	return total, nil
}

// FeeValue returns the sum of the explicit fee outputs.
func (tx *Transaction) FeeValue() uint64 {
	var fee uint64
	for _, out := range tx.Outputs {
		if out.IsFee() {
			fee += out.Value
		}
	}
	return fee
}

// Copy returns a deep copy of the transaction.
func (tx *Transaction) Copy() *Transaction {
	c := &Transaction{Version: tx.Version, LockTime: tx.LockTime}
	c.Inputs = make([]Input, len(tx.Inputs))
	for i, in := range tx.Inputs {
		c.Inputs[i] = Input{
			PrevOut:   in.PrevOut,
			ScriptSig: append(HexBytes(nil), in.ScriptSig...),
			Sequence:  in.Sequence,
		}
		for _, w := range in.Witness {
			c.Inputs[i].Witness = append(c.Inputs[i].Witness, append(HexBytes(nil), w...))
		}
	}
	c.Outputs = make([]Output, len(tx.Outputs))
	for i, out := range tx.Outputs {
		c.Outputs[i] = Output{Asset: out.Asset, Value: out.Value, Script: append(HexBytes(nil), out.Script...)}
	}
	return c
}

// SetWitness replaces the script witness of input i.
func (tx *Transaction) SetWitness(i int, stack [][]byte) error {
	if i < 0 || i >= len(tx.Inputs) {
		return fmt.Errorf("input %d out of range (have %d)", i, len(tx.Inputs))
	}
	w := make([]HexBytes, len(stack))
	for j, item := range stack {
		w[j] = append(HexBytes(nil), item...)
	}
	tx.Inputs[i].Witness = w
	return nil
}
