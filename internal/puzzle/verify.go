package puzzle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/Klingon-tech/puzzle-jackpot/internal/node"
	"github.com/Klingon-tech/puzzle-jackpot/internal/wallet"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/commitment"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/covenant"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/taproot"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
)

// AddressReport summarizes the outputs at an address.
type AddressReport struct {
	Address string
	Unspent []types.Utxo
	Value   uint64
}

// Active reports whether anything is left to claim.
func (r *AddressReport) Active() bool {
	return len(r.Unspent) > 0
}

// VerifyAddress lists what can still be claimed at address.
func (e *Engine) VerifyAddress(ctx context.Context, address string) (*AddressReport, error) {
	if _, err := e.params.DecodeAddress(address); err != nil {
		return nil, err
	}
	if err := e.requireNode(); err != nil {
		return nil, err
	}
	utxos, err := e.node.FindUnspent(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("find outputs: %w", err)
	}
	return &AddressReport{Address: address, Unspent: utxos, Value: wallet.TotalValue(utxos)}, nil
}

// Solution is a puzzle claim found in a transaction input.
type Solution struct {
	Input      int
	PrevOut    types.Outpoint
	Variant    covenant.Variant
	Commitment types.Hash
	Root       types.Hash
	// Preimage is the revealed 32-byte witness.
	Preimage [commitment.PreimageSize]byte
	// Secret is the preimage without left zero padding when that is
	// printable text, otherwise empty.
	Secret string
	// Valid reports that the preimage hashes to the commitment.
	Valid bool
	// ControlBlockChecked is set when the spent output was available and
	// the control block commits to its key.
	ControlBlockChecked bool
}

// TxReport describes a transaction and the puzzle solutions it carries.
type TxReport struct {
	Info      *node.TxInfo
	Solutions []Solution
}

// VerifyTx fetches txid and recognizes puzzle solutions among its inputs:
// a script-path witness whose leaf script is a puzzle covenant.
func (e *Engine) VerifyTx(ctx context.Context, txid types.TxID) (*TxReport, error) {
	if err := e.requireNode(); err != nil {
		return nil, err
	}
	info, err := e.node.GetTransaction(ctx, txid)
	if err != nil {
		return nil, err
	}
	r := &TxReport{Info: info}
	for i, in := range info.Inputs {
		sol, ok := parseSolution(in.Witness)
		if !ok {
			continue
		}
		sol.Input = i
		sol.PrevOut = in.PrevOut
		if key := e.spentOutputKey(ctx, in.PrevOut); key != nil {
			sol.ControlBlockChecked = taproot.VerifyControlBlock(in.Witness[2], in.Witness[1], key) == nil
		}
		r.Solutions = append(r.Solutions, sol)
	}
	return r, nil
}

// spentOutputKey returns the x-only key of a spent taproot output, or nil.
func (e *Engine) spentOutputKey(ctx context.Context, op types.Outpoint) []byte {
	prev, err := e.node.GetTransaction(ctx, op.TxID)
	if err != nil {
		if !errors.Is(err, node.ErrNotFound) {
			e.logger.Debug().Err(err).Str("outpoint", op.String()).Msg("Spent output unavailable")
		}
		return nil
	}
	for _, o := range prev.Outputs {
		if o.Index == op.Index && len(o.Script) == 34 && o.Script[0] == 0x51 && o.Script[1] == 0x20 {
			return o.Script[2:]
		}
	}
	return nil
}

// parseSolution recognizes the witness layout
// [preimage, leaf script, control block].
func parseSolution(w [][]byte) (Solution, bool) {
	var sol Solution
	if len(w) != 3 || len(w[2]) != 33 {
		return sol, false
	}
	if w[2][0]&0xfe != byte(taproot.LeafVersion) {
		return sol, false
	}
	prog, err := covenant.DecodeProgram(w[1])
	if err != nil {
		return sol, false
	}
	values, err := prog.DecodeWitness(w[:1])
	if err != nil || values[0].Type != covenant.TypeU256 {
		return sol, false
	}

	sol.Root = prog.Root()
	sol.Commitment = prog.Target()
	sol.Preimage = values[0].U256
	sol.Valid = commitment.Derive(sol.Preimage[:]) == sol.Commitment
	sol.Secret = printable(sol.Preimage[:])
	sol.Variant = prog.Variant
	return sol, true
}

func printable(pre []byte) string {
	s := bytes.TrimLeft(pre, "\x00")
	if len(s) == 0 || !utf8.Valid(s) {
		return ""
	}
	for _, r := range string(s) {
		if !unicode.IsPrint(r) {
			return ""
		}
	}
	return string(s)
}
