package tx

import "github.com/Klingon-tech/puzzle-jackpot/pkg/types"

// Builder constructs transactions incrementally.
type Builder struct {
	tx *Transaction
}

// NewBuilder creates a new transaction builder.
func NewBuilder() *Builder {
	return &Builder{
		tx: &Transaction{Version: DefaultVersion},
	}
}

// AddInput adds an input referencing a previous output, with a zero
// sequence and empty scriptSig.
func (b *Builder) AddInput(prevOut types.Outpoint) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, Input{PrevOut: prevOut})
	return b
}

// AddOutput adds an explicit output paying value of asset to script.
func (b *Builder) AddOutput(asset types.AssetID, value uint64, script []byte) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, Output{
		Asset:  asset,
		Value:  value,
		Script: append(HexBytes(nil), script...),
	})
	return b
}

// AddFee adds the explicit network fee output.
func (b *Builder) AddFee(asset types.AssetID, value uint64) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, Output{Asset: asset, Value: value})
	return b
}

// SetLockTime sets the transaction lock time.
func (b *Builder) SetLockTime(lockTime uint32) *Builder {
	b.tx.LockTime = lockTime
	return b
}

// Build returns the constructed transaction.
// Does NOT validate; call tx.Validate() separately.
func (b *Builder) Build() *Transaction {
	return b.tx
}
