package tx

import (
	"errors"
	"fmt"
	"math"

	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
)

// Limits on assembled transactions.
const (
	MaxTxInputs  = 256
	MaxTxOutputs = 256
	MaxScriptLen = 10_000
)

// Validation errors.
var (
	ErrNoInputs           = errors.New("transaction has no inputs")
	ErrNoOutputs          = errors.New("transaction has no outputs")
	ErrDuplicateInput     = errors.New("duplicate input")
	ErrOutputOverflow     = errors.New("output values overflow")
	ErrInputOverflow      = errors.New("input values overflow")
	ErrZeroOutput         = errors.New("output value is zero")
	ErrTooManyInputs      = errors.New("too many inputs")
	ErrTooManyOutputs     = errors.New("too many outputs")
	ErrScriptDataTooLarge = errors.New("script data too large")
	ErrNoFeeOutput        = errors.New("transaction has no fee output")
	ErrAssetMismatch      = errors.New("asset mismatch")
	ErrUnbalanced         = errors.New("inputs and outputs do not balance")
)

// Validate checks transaction structure: counts, duplicates, output
// values and the presence of exactly one explicit fee output.
func (tx *Transaction) Validate() error {
	if len(tx.Inputs) == 0 {
		return ErrNoInputs
	}
	if len(tx.Outputs) == 0 {
		return ErrNoOutputs
	}
	if len(tx.Inputs) > MaxTxInputs {
		return fmt.Errorf("%w: %d inputs, max %d", ErrTooManyInputs, len(tx.Inputs), MaxTxInputs)
	}
	if len(tx.Outputs) > MaxTxOutputs {
		return fmt.Errorf("%w: %d outputs, max %d", ErrTooManyOutputs, len(tx.Outputs), MaxTxOutputs)
	}

	// Check for duplicate inputs.
	seen := make(map[types.Outpoint]bool, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if seen[in.PrevOut] {
			return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
		}
		seen[in.PrevOut] = true
	}

	var totalOutput uint64
	fees := 0
	for i, out := range tx.Outputs {
		if out.Value == 0 {
			return fmt.Errorf("output %d: %w", i, ErrZeroOutput)
		}
		if len(out.Script) > MaxScriptLen {
			return fmt.Errorf("output %d: %w: %d bytes, max %d", i, ErrScriptDataTooLarge, len(out.Script), MaxScriptLen)
		}
		if totalOutput > math.MaxUint64-out.Value {
			return fmt.Errorf("output %d: %w", i, ErrOutputOverflow)
		}
		totalOutput += out.Value
		if out.IsFee() {
			fees++
		}
	}
	if fees != 1 {
		return fmt.Errorf("%w: found %d", ErrNoFeeOutput, fees)
	}
	if _, ok := outputsAsset(tx.Outputs); !ok {
		return fmt.Errorf("%w: outputs carry more than one asset", ErrAssetMismatch)
	}
	return nil
}

// CheckBalance verifies Σinputs == Σoutputs given the values of the spent
// outputs, in input order.
func (tx *Transaction) CheckBalance(inputValues []uint64) error {
	if len(inputValues) != len(tx.Inputs) {
		return fmt.Errorf("%w: %d input values for %d inputs", ErrUnbalanced, len(inputValues), len(tx.Inputs))
	}
	var in uint64
	for i, v := range inputValues {
		if in > math.MaxUint64-v {
			return fmt.Errorf("input %d: %w", i, ErrInputOverflow)
		}
		in += v
	}
	out, err := tx.TotalOutputValue()
	if err != nil {
		return err
	}
	if in != out {
		return fmt.Errorf("%w: in %d, out %d", ErrUnbalanced, in, out)
	}
	return nil
}
