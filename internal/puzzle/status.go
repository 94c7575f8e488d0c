package puzzle

import (
	"context"
	"errors"
	"fmt"

	"github.com/Klingon-tech/puzzle-jackpot/internal/book"
	"github.com/Klingon-tech/puzzle-jackpot/internal/log"
	"github.com/Klingon-tech/puzzle-jackpot/internal/node"
	"github.com/Klingon-tech/puzzle-jackpot/internal/record"
	"github.com/Klingon-tech/puzzle-jackpot/internal/wallet"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
)

// Status is the observed chain state of a puzzle.
type Status struct {
	State   State
	Address string
	Unspent []types.Utxo
	// Value is the sum of unspent outputs at the address.
	Value uint64
	// FundingConfirmations is taken from the recorded funding tx, -1 when
	// none is recorded or the node does not know it.
	FundingConfirmations int64
}

// Status observes the puzzle at rec's address:
//   - confirmed unspent outputs: Active
//   - only unconfirmed outputs, or a known unconfirmed funding tx: Funded
//   - the recorded funding outputs all spent: Solved
//   - otherwise Created
func (e *Engine) Status(ctx context.Context, rec *record.Record) (*Status, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := e.requireNode(); err != nil {
		return nil, err
	}
	st := &Status{State: StateCreated, Address: rec.Address, FundingConfirmations: -1}

	utxos, err := e.node.FindUnspent(ctx, rec.Address)
	if err != nil {
		return nil, fmt.Errorf("find puzzle outputs: %w", err)
	}
	st.Unspent = utxos
	st.Value = wallet.TotalValue(utxos)
	for _, u := range utxos {
		if u.Confirmations > 0 {
			st.State = StateActive
		} else if st.State == StateCreated {
			st.State = StateFunded
		}
	}

	fundingID, _ := rec.FundingTxID()
	if !fundingID.IsZero() {
		info, err := e.node.GetTransaction(ctx, fundingID)
		switch {
		case errors.Is(err, node.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("funding transaction: %w", err)
		default:
			st.FundingConfirmations = info.Confirmations
			if len(utxos) == 0 {
				state, err := e.fundingState(ctx, info, rec.Address)
				if err != nil {
					return nil, err
				}
				st.State = state
			}
		}
	}

	if e.book != nil {
		if h, err := rec.Commitment(); err == nil {
			prev, _ := e.book.LastObservation(h)
			if prev != nil {
				if old, err := ParseState(prev.State); err == nil && !old.CanTransition(st.State) {
					plog := log.WithPuzzle(e.logger, rec.Hash)
					plog.Warn().Stringer("from", old).Stringer("to", st.State).Msg("Unexpected state change")
				}
			}
			obs := book.Observation{State: st.State.String(), Value: st.Value, Outputs: len(utxos)}
			if err := e.book.Observe(h, obs); err != nil {
				e.logger.Warn().Err(err).Msg("Could not record observation")
			}
		}
	}
	return st, nil
}

// fundingState classifies a puzzle without unspent outputs from its
// funding transaction.
func (e *Engine) fundingState(ctx context.Context, info *node.TxInfo, address string) (State, error) {
	outs := info.OutputsTo(address)
	if len(outs) == 0 {
		return StateCreated, nil
	}
	for _, o := range outs {
		spent, err := e.node.IsSpent(ctx, types.Outpoint{TxID: info.TxID, Index: o.Index})
		if err != nil {
			return StateCreated, fmt.Errorf("check funding output: %w", err)
		}
		if !spent {
			// The scan only sees confirmed outputs; this one is in the mempool.
			return StateFunded, nil
		}
	}
	return StateSolved, nil
}
