package main

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/puzzle-jackpot/internal/puzzle"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
)

func cmdSolve(ctx context.Context, args []string) error {
	fs, gf := newFlagSet("solve")
	to := fs.String("to", "", "Address receiving the prize")
	secret := fs.String("secret", "", "Secret (default: from the record, or prompted)")
	outpoint := fs.String("outpoint", "", "Puzzle output to claim as txid:vout (default: largest)")
	contribution := fs.Uint64("contribution", 0, "Pay-to-play contribution in sats (default: covenant minimum)")
	change := fs.String("change", "", "Change address for the contribution (default: new wallet address)")
	yes := fs.Bool("yes", false, "Broadcast the solution")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := oneArg(fs.Args(), "record file")
	if err != nil {
		return err
	}
	if *to == "" {
		return fmt.Errorf("%w: --to is required", puzzle.ErrInvalidInput)
	}
	var op types.Outpoint
	if *outpoint != "" {
		if op, err = types.ParseOutpoint(*outpoint); err != nil {
			return fmt.Errorf("%w: outpoint: %v", puzzle.ErrInvalidInput, err)
		}
	}
	rec, err := loadRecord(path)
	if err != nil {
		return err
	}

	a, err := setup(gf, setupOpts{node: true})
	if err != nil {
		return err
	}
	defer a.close()

	sec, err := recordSecret(rec, *secret)
	if err != nil {
		return err
	}
	res, err := a.engine.Solve(ctx, puzzle.SolveRequest{
		Record:       rec,
		Secret:       sec,
		Destination:  *to,
		Outpoint:     op,
		Contribution: *contribution,
		Change:       *change,
		Confirm:      *yes,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Puzzle output: %s, %s\n", res.Utxo.Outpoint, formatSats(res.Utxo.Value))
	if res.FeeInput != nil {
		fmt.Printf("Fee input:     %s, %s\n", res.FeeInput.Outpoint, formatSats(res.FeeInput.Value))
	}
	fmt.Printf("Prize:         %s to %s\n", formatSats(res.Prize), *to)
	if !res.Broadcast {
		fmt.Printf("Transaction:   %s\n", res.TxID)
		fmt.Println(res.Hex)
		fmt.Println("Not broadcast: re-run with --yes")
		return nil
	}
	fmt.Printf("Broadcast:     %s\n", res.TxID)
	return nil
}
