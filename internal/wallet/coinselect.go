// Package wallet holds the spender-side helpers that sit next to the node
// wallet: picking the UTXO that pays a pay-to-play contribution, sealing
// puzzle secrets at rest and generating word secrets.
package wallet

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
)

// Coin selection errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoUTXOs           = errors.New("no UTXOs available")
)

// Selection filters the wallet listing before a fee UTXO is chosen.
type Selection struct {
	// Asset every candidate must hold.
	Asset types.AssetID
	// Target is the minimum value of the chosen output.
	Target uint64
	// MinConfirmations excludes outputs with fewer confirmations.
	MinConfirmations int64
	// Exclude lists outpoints that must not be chosen, such as the
	// puzzle output itself when the wallet watches the puzzle address.
	Exclude []types.Outpoint
}

// SelectFeeUTXO chooses the single output that funds a pay-to-play
// contribution. An exact match wins, otherwise the smallest output that
// covers the target, so the change output stays small. Ties break on the
// outpoint so the choice is deterministic.
func SelectFeeUTXO(utxos []types.Utxo, sel Selection) (*types.Utxo, error) {
	if len(utxos) == 0 {
		return nil, ErrNoUTXOs
	}
	if sel.Target == 0 {
		return nil, fmt.Errorf("target must be positive")
	}

	excluded := make(map[types.Outpoint]bool, len(sel.Exclude))
	for _, op := range sel.Exclude {
		excluded[op] = true
	}

	candidates := make([]types.Utxo, 0, len(utxos))
	for _, u := range utxos {
		// Contributions are explicit amounts the covenant can inspect.
		if u.Value == 0 || u.Confidential || excluded[u.Outpoint] {
			continue
		}
		if u.Asset != sel.Asset || u.Confirmations < sel.MinConfirmations {
			continue
		}
		candidates = append(candidates, u)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: none of %d outputs hold %s with %d confirmations",
			ErrNoUTXOs, len(utxos), sel.Asset, sel.MinConfirmations)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Value != candidates[j].Value {
			return candidates[i].Value < candidates[j].Value
		}
		return candidates[i].Outpoint.String() < candidates[j].Outpoint.String()
	})

	for i := range candidates {
		if candidates[i].Value >= sel.Target {
			u := candidates[i]
			return &u, nil
		}
	}
	return nil, fmt.Errorf("%w: largest output %d, need %d",
		ErrInsufficientFunds, candidates[len(candidates)-1].Value, sel.Target)
}

// TotalValue sums the values of utxos.
func TotalValue(utxos []types.Utxo) uint64 {
	var total uint64
	for _, u := range utxos {
		total += u.Value
	}
	return total
}
