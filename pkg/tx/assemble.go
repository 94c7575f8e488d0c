package tx

import (
	"errors"
	"fmt"
	"math"

	"github.com/Klingon-tech/puzzle-jackpot/pkg/covenant"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
)

// Assembly errors.
var (
	ErrInsufficientValue  = errors.New("insufficient value")
	ErrContributionTooLow = errors.New("contribution below covenant minimum")
	ErrMissingFeeInput    = errors.New("pay-to-play spend needs a fee input")
	ErrMissingScript      = errors.New("missing output script")
)

// AssembleRequest describes a puzzle spend.
type AssembleRequest struct {
	Variant covenant.Variant
	// Asset is the expected asset of every input; zero accepts the puzzle's.
	Asset types.AssetID
	// Puzzle is the covenant-locked output being claimed.
	Puzzle types.Utxo
	// FeeInput is the spender's own output funding the pay-to-play
	// contribution. Ignored for the simple variant.
	FeeInput *types.Utxo
	// Contribution is the amount added to the prize from FeeInput. Zero
	// means the variant's minimum.
	Contribution uint64
	// Destination receives the prize.
	Destination []byte
	// Change receives FeeInput minus the contribution.
	Change []byte
	// NetworkFee is paid through an explicit fee output.
	NetworkFee uint64
}

// Spend is an assembled, not yet witnessed, puzzle spend.
type Spend struct {
	Tx *Transaction
	// PuzzleIndex is the input index of the puzzle output.
	PuzzleIndex int
	// InputValues are the spent values in input order.
	InputValues []uint64
}

// Assemble builds the spend for req.
//
// Simple: [puzzle] -> [destination = puzzle - fee, fee].
// Pay-to-play: [fee input, puzzle] -> [prize, change, fee] with
// prize = Σinputs - fee - change and change = fee input - contribution.
// The change output is left out when it would be zero.
func Assemble(req AssembleRequest) (*Spend, error) {
	if len(req.Destination) == 0 {
		return nil, fmt.Errorf("%w: destination", ErrMissingScript)
	}
	asset := req.Asset
	if asset.IsZero() {
		asset = req.Puzzle.Asset
	}
	if req.Puzzle.Asset != asset {
		return nil, fmt.Errorf("%w: puzzle output holds %s, expected %s", ErrAssetMismatch, req.Puzzle.Asset, asset)
	}

	var spend *Spend
	switch req.Variant.Kind {
	case covenant.KindSimple:
		if req.Puzzle.Value <= req.NetworkFee {
			return nil, fmt.Errorf("%w: puzzle holds %d, network fee is %d", ErrInsufficientValue, req.Puzzle.Value, req.NetworkFee)
		}
		b := NewBuilder().
			AddInput(req.Puzzle.Outpoint).
			AddOutput(asset, req.Puzzle.Value-req.NetworkFee, req.Destination).
			AddFee(asset, req.NetworkFee)
		spend = &Spend{Tx: b.Build(), PuzzleIndex: 0, InputValues: []uint64{req.Puzzle.Value}}

	case covenant.KindPayToPlay:
		s, err := assemblePayToPlay(req, asset)
		if err != nil {
			return nil, err
		}
		spend = s

	default:
		return nil, fmt.Errorf("%w: %d", covenant.ErrUnknownKind, req.Variant.Kind)
	}

	if err := spend.Tx.Validate(); err != nil {
		return nil, fmt.Errorf("assembled transaction invalid: %w", err)
	}
	if err := spend.Tx.CheckBalance(spend.InputValues); err != nil {
		return nil, err
	}
	return spend, nil
}

func assemblePayToPlay(req AssembleRequest, asset types.AssetID) (*Spend, error) {
	if req.FeeInput == nil {
		return nil, ErrMissingFeeInput
	}
	if req.FeeInput.Outpoint == req.Puzzle.Outpoint {
		return nil, fmt.Errorf("%w: fee input is the puzzle output", ErrDuplicateInput)
	}
	if req.FeeInput.Asset != asset {
		return nil, fmt.Errorf("%w: fee input holds %s, expected %s", ErrAssetMismatch, req.FeeInput.Asset, asset)
	}

	contribution := req.Contribution
	if contribution == 0 {
		contribution = req.Variant.MinFeeSats
	}
	if contribution < req.Variant.MinFeeSats {
		return nil, fmt.Errorf("%w: %d < %d", ErrContributionTooLow, contribution, req.Variant.MinFeeSats)
	}
	if req.FeeInput.Value < contribution {
		return nil, fmt.Errorf("%w: fee input holds %d, contribution is %d", ErrInsufficientValue, req.FeeInput.Value, contribution)
	}
	if req.Puzzle.Value > math.MaxUint64-req.FeeInput.Value {
		return nil, ErrInputOverflow
	}
	total := req.Puzzle.Value + req.FeeInput.Value
	change := req.FeeInput.Value - contribution
	if total-change <= req.NetworkFee {
		return nil, fmt.Errorf("%w: inputs %d, network fee %d, contribution %d", ErrInsufficientValue, total, req.NetworkFee, contribution)
	}
	if change > 0 && len(req.Change) == 0 {
		return nil, fmt.Errorf("%w: change", ErrMissingScript)
	}
	prize := total - req.NetworkFee - change

	b := NewBuilder().
		AddInput(req.FeeInput.Outpoint).
		AddInput(req.Puzzle.Outpoint).
		AddOutput(asset, prize, req.Destination)
	if change > 0 {
		b.AddOutput(asset, change, req.Change)
	}
	b.AddFee(asset, req.NetworkFee)

	return &Spend{
		Tx:          b.Build(),
		PuzzleIndex: 1,
		InputValues: []uint64{req.FeeInput.Value, req.Puzzle.Value},
	}, nil
}

// Env returns the covenant view of this spend from the puzzle input.
func (s *Spend) Env() covenant.Env {
	return &spendEnv{spend: s}
}

// Attach sets the puzzle input's witness stack.
func (s *Spend) Attach(stack [][]byte) error {
	return s.Tx.SetWitness(s.PuzzleIndex, stack)
}

type spendEnv struct {
	spend *Spend
}

func (e *spendEnv) CurrentInput() int {
	return e.spend.PuzzleIndex
}

func (e *spendEnv) InputValue(i int) (uint64, error) {
	if i < 0 || i >= len(e.spend.InputValues) {
		return 0, fmt.Errorf("input %d out of range (have %d)", i, len(e.spend.InputValues))
	}
	return e.spend.InputValues[i], nil
}

func (e *spendEnv) OutputValue(i int) (uint64, error) {
	outs := e.spend.Tx.Outputs
	if i < 0 || i >= len(outs) {
		return 0, fmt.Errorf("output %d out of range (have %d)", i, len(outs))
	}
	return outs[i].Value, nil
}

func (e *spendEnv) NumOutputs() int {
	return len(e.spend.Tx.Outputs)
}
