package puzzle

import (
	"context"
	"fmt"
	"sort"

	"github.com/Klingon-tech/puzzle-jackpot/internal/log"
	"github.com/Klingon-tech/puzzle-jackpot/internal/record"
	"github.com/Klingon-tech/puzzle-jackpot/internal/wallet"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/commitment"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/covenant"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/tx"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
)

// SolveRequest describes a claim attempt.
type SolveRequest struct {
	Record *record.Record
	Secret []byte
	// Destination address receiving the prize.
	Destination string
	// Outpoint selects one of several puzzle outputs; zero picks the
	// largest.
	Outpoint types.Outpoint
	// FeeInput funds a pay-to-play contribution. Nil asks the wallet.
	FeeInput *types.Utxo
	// Contribution defaults to the covenant minimum.
	Contribution uint64
	// Change receives the rest of FeeInput; empty asks the wallet.
	Change string
	// Confirm allows broadcasting.
	Confirm bool
}

// SolveResult is a fully witnessed solution.
type SolveResult struct {
	Puzzle   *Puzzle
	Utxo     types.Utxo
	FeeInput *types.Utxo
	Tx       *tx.Transaction
	// Hex is the broadcastable serialization, including wallet signatures.
	Hex   string
	TxID  types.TxID
	Prize uint64
	// Broadcast reports whether the transaction was submitted.
	Broadcast bool
}

// Solve claims a puzzle with secret. The secret is checked against the
// commitment before anything touches the node, and the assembled spend is
// evaluated against the covenant before anything is broadcast.
func (e *Engine) Solve(ctx context.Context, req SolveRequest) (*SolveResult, error) {
	if req.Record == nil {
		return nil, fmt.Errorf("%w: no puzzle record", ErrInvalidInput)
	}
	if err := req.Record.Validate(); err != nil {
		return nil, err
	}
	h, _ := req.Record.Commitment()
	v, _ := req.Record.Variant()

	if err := commitment.Verify(req.Secret, h); err != nil {
		return nil, err
	}
	p, err := e.Derive(v, h)
	if err != nil {
		return nil, err
	}
	if p.Address() != req.Record.Address {
		return nil, fmt.Errorf("%w: record %s, derived %s", ErrAddressMismatch, req.Record.Address, p.Address())
	}
	dest, err := e.params.ScriptPubKey(req.Destination)
	if err != nil {
		return nil, err
	}
	if err := e.requireNode(); err != nil {
		return nil, err
	}

	plog := log.WithPuzzle(e.logger, req.Record.Hash)

	utxos, err := e.node.FindUnspent(ctx, p.Address())
	if err != nil {
		return nil, fmt.Errorf("find puzzle output: %w", err)
	}
	utxo, err := pickUtxo(utxos, e.params.PolicyAssetID(), req.Outpoint)
	if err != nil {
		return nil, err
	}
	plog.Debug().Str("outpoint", utxo.Outpoint.String()).Uint64("value", utxo.Value).Msg("Puzzle output found")

	areq := tx.AssembleRequest{
		Variant:      v,
		Asset:        e.params.PolicyAssetID(),
		Puzzle:       utxo,
		Contribution: req.Contribution,
		Destination:  dest,
		NetworkFee:   e.networkFee,
	}
	if v.Kind == covenant.KindPayToPlay {
		if err := e.fundContribution(ctx, &areq, req); err != nil {
			return nil, err
		}
	}

	spend, err := tx.Assemble(areq)
	if err != nil {
		return nil, err
	}
	sat, err := covenant.Satisfy(p.Program, req.Secret, spend.Env())
	if err != nil {
		return nil, err
	}
	if err := spend.Attach(p.Spend.WitnessStack(sat.Witness)); err != nil {
		return nil, err
	}
	if e.feeRate > 0 {
		if need := tx.RequiredFee(spend.Tx, e.feeRate); need > e.networkFee {
			plog.Warn().Uint64("fee", e.networkFee).Uint64("required", need).Msg("Network fee below relay floor")
		}
	}

	res := &SolveResult{
		Puzzle:   p,
		Utxo:     utxo,
		FeeInput: areq.FeeInput,
		Tx:       spend.Tx,
		Hex:      spend.Tx.Hex(),
		TxID:     spend.Tx.TxHash(),
		Prize:    spend.Tx.Outputs[0].Value,
	}

	if v.Kind == covenant.KindPayToPlay {
		signed, err := e.wallet.SignTransaction(ctx, res.Hex, utxo.Outpoint)
		if err != nil {
			return nil, err
		}
		stx, err := tx.DecodeHex(signed)
		if err != nil {
			return nil, fmt.Errorf("decode signed transaction: %w", err)
		}
		if stx.TxHash() != res.TxID {
			return nil, fmt.Errorf("%w: %s != %s", ErrSignerChangedTx, stx.TxHash(), res.TxID)
		}
		res.Tx, res.Hex = stx, signed
	}

	if !req.Confirm {
		plog.Info().Str("txid", res.TxID.String()).Msg("Solution built, broadcast not confirmed")
		return res, nil
	}
	txid, err := e.node.Broadcast(ctx, res.Hex)
	if err != nil {
		return nil, err
	}
	res.TxID = txid
	res.Broadcast = true
	plog.Info().Str("txid", txid.String()).Uint64("prize", res.Prize).Msg("Solution broadcast")
	return res, nil
}

func (e *Engine) fundContribution(ctx context.Context, areq *tx.AssembleRequest, req SolveRequest) error {
	contribution := req.Contribution
	if contribution == 0 {
		contribution = areq.Variant.MinFeeSats
	}
	if contribution < areq.Variant.MinFeeSats {
		return fmt.Errorf("%w: %d < %d", tx.ErrContributionTooLow, contribution, areq.Variant.MinFeeSats)
	}
	if e.wallet == nil {
		return fmt.Errorf("%w: pay-to-play needs a fee input and a signer", ErrNoWallet)
	}

	fee := req.FeeInput
	if fee == nil {
		list, err := e.wallet.ListUnspent(ctx, e.minConf)
		if err != nil {
			return fmt.Errorf("list wallet outputs: %w", err)
		}
		fee, err = wallet.SelectFeeUTXO(list, wallet.Selection{
			Asset:            areq.Asset,
			Target:           contribution,
			MinConfirmations: e.minConf,
			Exclude:          []types.Outpoint{areq.Puzzle.Outpoint},
		})
		if err != nil {
			return fmt.Errorf("select fee input: %w", err)
		}
	}
	areq.FeeInput = fee
	areq.Contribution = contribution

	if fee.Value == contribution {
		return nil
	}
	change := req.Change
	if change == "" {
		addr, err := e.wallet.NewAddress(ctx)
		if err != nil {
			return fmt.Errorf("change address: %w", err)
		}
		change = addr
	}
	script, err := e.params.ScriptPubKey(change)
	if err != nil {
		return fmt.Errorf("change address: %w", err)
	}
	areq.Change = script
	return nil
}

// pickUtxo returns the requested outpoint, or the largest output holding
// asset. Ties go to the lowest outpoint so repeated runs pick the same
// output. A requested outpoint is returned whatever its asset; assembly
// rejects it if it cannot pay the prize.
func pickUtxo(utxos []types.Utxo, asset types.AssetID, want types.Outpoint) (types.Utxo, error) {
	if len(utxos) == 0 {
		return types.Utxo{}, ErrNoUTXO
	}
	if !want.IsZero() {
		for _, u := range utxos {
			if u.Outpoint == want {
				return u, nil
			}
		}
		return types.Utxo{}, fmt.Errorf("%w: %s", ErrNoUTXO, want)
	}
	sorted := make([]types.Utxo, 0, len(utxos))
	for _, u := range utxos {
		if u.Asset == asset {
			sorted = append(sorted, u)
		}
	}
	if len(sorted) == 0 {
		return types.Utxo{}, fmt.Errorf("%w: %d outputs, none hold %s", ErrNoUTXO, len(utxos), asset)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Value != sorted[j].Value {
			return sorted[i].Value > sorted[j].Value
		}
		return sorted[i].Outpoint.String() < sorted[j].Outpoint.String()
	})
	return sorted[0], nil
}
