package tx

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/puzzle-jackpot/pkg/commitment"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/covenant"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
)

var changeSPK = []byte{0x00, 0x14, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}

func puzzleUtxo(t *testing.T, value uint64) types.Utxo {
	return types.Utxo{Outpoint: testOutpoint(t, 0), Value: value, Asset: testAsset(t)}
}

func feeUtxo(t *testing.T, value uint64) *types.Utxo {
	return &types.Utxo{Outpoint: testOutpoint(t, 1), Value: value, Asset: testAsset(t)}
}

func sum(vs []uint64) uint64 {
	var s uint64
	for _, v := range vs {
		s += v
	}
	return s
}

func TestAssemble_Simple(t *testing.T) {
	spend, err := Assemble(AssembleRequest{
		Variant:     covenant.Simple(),
		Puzzle:      puzzleUtxo(t, 100_000),
		Destination: mustHex(t, taprootSPK),
		NetworkFee:  3000,
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	tx := spend.Tx
	if len(tx.Inputs) != 1 || len(tx.Outputs) != 2 {
		t.Fatalf("shape %d-in %d-out, want 1-in 2-out", len(tx.Inputs), len(tx.Outputs))
	}
	if tx.Outputs[0].Value != 97_000 || tx.Outputs[1].Value != 3000 || !tx.Outputs[1].IsFee() {
		t.Errorf("unexpected outputs %+v", tx.Outputs)
	}
	if spend.PuzzleIndex != 0 {
		t.Errorf("PuzzleIndex = %d, want 0", spend.PuzzleIndex)
	}
	if tx.TxHash().String() != simpleSpendID {
		t.Errorf("TxHash = %s, want %s", tx.TxHash(), simpleSpendID)
	}
	out, _ := tx.TotalOutputValue()
	if out != sum(spend.InputValues) {
		t.Errorf("Σout %d != Σin %d", out, sum(spend.InputValues))
	}
}

func TestAssemble_PayToPlay(t *testing.T) {
	req := AssembleRequest{
		Variant:     covenant.PayToPlay(1000),
		Puzzle:      puzzleUtxo(t, 100_000),
		FeeInput:    feeUtxo(t, 50_000),
		Destination: mustHex(t, taprootSPK),
		Change:      changeSPK,
		NetworkFee:  3000,
	}
	spend, err := Assemble(req)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	tx := spend.Tx
	if len(tx.Inputs) != 2 || len(tx.Outputs) != 3 {
		t.Fatalf("shape %d-in %d-out, want 2-in 3-out", len(tx.Inputs), len(tx.Outputs))
	}
	if tx.Inputs[0].PrevOut != req.FeeInput.Outpoint || tx.Inputs[1].PrevOut != req.Puzzle.Outpoint {
		t.Error("fee input must come first, puzzle second")
	}
	if spend.PuzzleIndex != 1 {
		t.Errorf("PuzzleIndex = %d, want 1", spend.PuzzleIndex)
	}
	// prize = 150000 - 3000 - 49000
	if tx.Outputs[0].Value != 98_000 {
		t.Errorf("prize = %d, want 98000", tx.Outputs[0].Value)
	}
	if tx.Outputs[1].Value != 49_000 {
		t.Errorf("change = %d, want 49000", tx.Outputs[1].Value)
	}
	if !tx.Outputs[2].IsFee() || tx.Outputs[2].Value != 3000 {
		t.Errorf("fee output = %+v", tx.Outputs[2])
	}
	out, _ := tx.TotalOutputValue()
	if out != 150_000 {
		t.Errorf("Σout = %d, want 150000", out)
	}

	// The assembled spend satisfies the pay-to-play covenant.
	target := commitment.Derive([]byte("satoshi"))
	prog, err := covenant.Compile(req.Variant, target)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := covenant.Satisfy(prog, []byte("satoshi"), spend.Env()); err != nil {
		t.Errorf("Satisfy: %v", err)
	}
}

func TestAssemble_PayToPlayExactFeeInput(t *testing.T) {
	spend, err := Assemble(AssembleRequest{
		Variant:     covenant.PayToPlay(1000),
		Puzzle:      puzzleUtxo(t, 100_000),
		FeeInput:    feeUtxo(t, 1000),
		Destination: mustHex(t, taprootSPK),
		NetworkFee:  3000,
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(spend.Tx.Outputs) != 2 {
		t.Fatalf("zero change should be omitted, got %d outputs", len(spend.Tx.Outputs))
	}
	if spend.Tx.Outputs[0].Value != 98_000 {
		t.Errorf("prize = %d, want 98000", spend.Tx.Outputs[0].Value)
	}
	// The fee output is last, wherever the change went.
	prog, err := covenant.Compile(covenant.PayToPlay(1000), commitment.Derive([]byte("satoshi")))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := covenant.Satisfy(prog, []byte("satoshi"), spend.Env()); err != nil {
		t.Errorf("Satisfy: %v", err)
	}
}

func TestAssemble_Errors(t *testing.T) {
	other := types.AssetID{0x01}
	foreign := feeUtxo(t, 50_000)
	foreign.Asset = other

	tests := []struct {
		name string
		req  AssembleRequest
		want error
	}{
		{
			name: "simple value equals fee",
			req:  AssembleRequest{Variant: covenant.Simple(), Puzzle: puzzleUtxo(t, 3000), Destination: changeSPK, NetworkFee: 3000},
			want: ErrInsufficientValue,
		},
		{
			name: "simple value below fee",
			req:  AssembleRequest{Variant: covenant.Simple(), Puzzle: puzzleUtxo(t, 100), Destination: changeSPK, NetworkFee: 3000},
			want: ErrInsufficientValue,
		},
		{
			name: "asset mismatch",
			req:  AssembleRequest{Variant: covenant.Simple(), Asset: other, Puzzle: puzzleUtxo(t, 100_000), Destination: changeSPK, NetworkFee: 3000},
			want: ErrAssetMismatch,
		},
		{
			name: "fee input asset mismatch",
			req: AssembleRequest{Variant: covenant.PayToPlay(1000), Puzzle: puzzleUtxo(t, 100_000), FeeInput: foreign,
				Destination: changeSPK, Change: changeSPK, NetworkFee: 3000},
			want: ErrAssetMismatch,
		},
		{
			name: "missing fee input",
			req:  AssembleRequest{Variant: covenant.PayToPlay(1000), Puzzle: puzzleUtxo(t, 100_000), Destination: changeSPK, NetworkFee: 3000},
			want: ErrMissingFeeInput,
		},
		{
			name: "contribution below minimum",
			req: AssembleRequest{Variant: covenant.PayToPlay(1000), Puzzle: puzzleUtxo(t, 100_000), FeeInput: feeUtxo(t, 50_000),
				Contribution: 999, Destination: changeSPK, Change: changeSPK, NetworkFee: 3000},
			want: ErrContributionTooLow,
		},
		{
			name: "fee input too small",
			req: AssembleRequest{Variant: covenant.PayToPlay(1000), Puzzle: puzzleUtxo(t, 100_000), FeeInput: feeUtxo(t, 999),
				Destination: changeSPK, Change: changeSPK, NetworkFee: 3000},
			want: ErrInsufficientValue,
		},
		{
			name: "network fee swallows pot",
			req: AssembleRequest{Variant: covenant.PayToPlay(1000), Puzzle: puzzleUtxo(t, 1000), FeeInput: feeUtxo(t, 50_000),
				Destination: changeSPK, Change: changeSPK, NetworkFee: 2000},
			want: ErrInsufficientValue,
		},
		{
			name: "missing destination",
			req:  AssembleRequest{Variant: covenant.Simple(), Puzzle: puzzleUtxo(t, 100_000), NetworkFee: 3000},
			want: ErrMissingScript,
		},
		{
			name: "missing change script",
			req: AssembleRequest{Variant: covenant.PayToPlay(1000), Puzzle: puzzleUtxo(t, 100_000), FeeInput: feeUtxo(t, 50_000),
				Destination: changeSPK, NetworkFee: 3000},
			want: ErrMissingScript,
		},
		{
			name: "zero network fee",
			req:  AssembleRequest{Variant: covenant.Simple(), Puzzle: puzzleUtxo(t, 100_000), Destination: changeSPK},
			want: ErrZeroOutput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spend, err := Assemble(tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if spend != nil {
				t.Error("failed assembly must not return a spend")
			}
		})
	}
}

func TestAssemble_LowContributionFailsCovenant(t *testing.T) {
	// An assembler bypass: a spend whose prize ignores the contribution
	// must be caught by satisfaction.
	spend, err := Assemble(AssembleRequest{
		Variant:     covenant.Simple(),
		Puzzle:      puzzleUtxo(t, 100_000),
		Destination: mustHex(t, taprootSPK),
		NetworkFee:  3000,
	})
	if err != nil {
		t.Fatal(err)
	}
	prog, err := covenant.Compile(covenant.PayToPlay(1000), commitment.Derive([]byte("satoshi")))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := covenant.Satisfy(prog, []byte("satoshi"), spend.Env()); !errors.Is(err, covenant.ErrSatisfaction) {
		t.Errorf("got %v, want ErrSatisfaction", err)
	}
}

func TestCheckBalance(t *testing.T) {
	tx := simpleSpend(t)
	if err := tx.CheckBalance([]uint64{100_000}); err != nil {
		t.Errorf("balanced: %v", err)
	}
	if err := tx.CheckBalance([]uint64{100_001}); !errors.Is(err, ErrUnbalanced) {
		t.Errorf("unbalanced: got %v", err)
	}
	if err := tx.CheckBalance(nil); !errors.Is(err, ErrUnbalanced) {
		t.Errorf("missing values: got %v", err)
	}
}

func TestValidate(t *testing.T) {
	asset := testAsset(t)
	tests := []struct {
		name string
		tx   *Transaction
		want error
	}{
		{"no inputs", NewBuilder().AddFee(asset, 1).Build(), ErrNoInputs},
		{"no outputs", NewBuilder().AddInput(testOutpoint(t, 0)).Build(), ErrNoOutputs},
		{"duplicate input", NewBuilder().AddInput(testOutpoint(t, 0)).AddInput(testOutpoint(t, 0)).AddFee(asset, 1).Build(), ErrDuplicateInput},
		{"no fee", NewBuilder().AddInput(testOutpoint(t, 0)).AddOutput(asset, 1, changeSPK).Build(), ErrNoFeeOutput},
		{"two fees", NewBuilder().AddInput(testOutpoint(t, 0)).AddFee(asset, 1).AddFee(asset, 1).Build(), ErrNoFeeOutput},
		{"mixed assets", NewBuilder().AddInput(testOutpoint(t, 0)).AddOutput(types.AssetID{1}, 1, changeSPK).AddFee(asset, 1).Build(), ErrAssetMismatch},
		{"zero value", NewBuilder().AddInput(testOutpoint(t, 0)).AddOutput(asset, 0, changeSPK).AddFee(asset, 1).Build(), ErrZeroOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.tx.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEstimateFee(t *testing.T) {
	if got := EstimateFee(1000, DefaultFeeRate); got != 100 {
		t.Errorf("EstimateFee(1000) = %d, want 100", got)
	}
	if got := EstimateFee(1001, DefaultFeeRate); got != 101 {
		t.Errorf("EstimateFee rounds up: got %d, want 101", got)
	}
	tx := simpleSpend(t)
	if got := RequiredFee(tx, 1000); got != uint64(tx.VSize()) {
		t.Errorf("RequiredFee at 1 sat/vB = %d, want %d", got, tx.VSize())
	}
	if EstimatePuzzleVSize(2, 3, 200) <= EstimatePuzzleVSize(1, 2, 200) {
		t.Error("more inputs and outputs must cost more")
	}
}
