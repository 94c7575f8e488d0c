package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Klingon-tech/puzzle-jackpot/internal/log"
	"github.com/Klingon-tech/puzzle-jackpot/internal/puzzle"
	"github.com/Klingon-tech/puzzle-jackpot/internal/record"
)

func cmdCreate(ctx context.Context, args []string) error {
	fs, gf := newFlagSet("create")
	secret := fs.String("secret", "", "Puzzle secret (default: generated words)")
	words := fs.Int("words", 0, "Generate a secret of this many BIP-39 words")
	amountStr := fs.String("amount", "", "Amount to fund the puzzle with (e.g. 0.001)")
	hint := fs.String("hint", "", "Hint stored in the record (default: secret length)")
	payToPlay := fs.Bool("pay-to-play", false, "Require a contribution from every solver")
	minFee := fs.Uint64("min-fee", 0, "Minimum pay-to-play contribution in sats (default from config)")
	seal := fs.Bool("seal", false, "Store the secret sealed with a passphrase")
	yes := fs.Bool("yes", false, "Send the funding transaction")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *secret == "" && *words == 0 {
		*words = 4
	}
	amount, err := parseAmount(*amountStr)
	if err != nil {
		return err
	}

	a, err := setup(gf, setupOpts{node: amount > 0 && *yes, book: true})
	if err != nil {
		return err
	}
	defer a.close()

	if *minFee == 0 {
		*minFee = a.cfg.Puzzle.MinFee
	}
	req := puzzle.CreateRequest{
		Variant: variantFlags(*payToPlay, *minFee),
		Secret:  *secret,
		Words:   *words,
		Amount:  amount,
		Hint:    *hint,
		Confirm: *yes,
	}
	if *seal {
		if req.Passphrase, err = readNewPassphrase(); err != nil {
			return err
		}
	}

	res, err := a.engine.Create(ctx, req)
	if err != nil {
		return err
	}
	path, err := record.Save(a.cfg.Puzzle.RecordDir, res.Record)
	if err != nil {
		// Funds may already be on their way; keep the secret visible.
		fmt.Fprintf(os.Stderr, "Could not save record, keep this secret: %s\n", res.Secret)
		return err
	}
	if _, err := a.book.Put(res.Record, path); err != nil {
		log.CLI.Warn().Err(err).Msg("Could not book puzzle")
	}

	fmt.Printf("Puzzle:     %s\n", res.Record.Hash)
	fmt.Printf("Variant:    %s\n", req.Variant)
	fmt.Printf("Address:    %s\n", res.Puzzle.Address())
	fmt.Printf("Record:     %s\n", path)
	if *secret == "" {
		fmt.Printf("Secret:     %s\n", res.Secret)
	}
	fmt.Printf("Hint:       %s\n", res.Record.Hint)
	switch {
	case res.Funded:
		fmt.Printf("Funded:     %s in %s\n", formatSats(amount), res.FundingTx)
	case amount > 0:
		fmt.Printf("Not funded: re-run with --yes to send %s\n", formatSats(amount))
	}
	return nil
}

func cmdFund(ctx context.Context, args []string) error {
	fs, gf := newFlagSet("fund")
	amountStr := fs.String("amount", "", "Amount to add (e.g. 0.001)")
	yes := fs.Bool("yes", false, "Send the transaction")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := oneArg(fs.Args(), "record file")
	if err != nil {
		return err
	}
	amount, err := parseAmount(*amountStr)
	if err != nil {
		return err
	}
	rec, err := loadRecord(path)
	if err != nil {
		return err
	}

	a, err := setup(gf, setupOpts{node: true, book: true})
	if err != nil {
		return err
	}
	defer a.close()

	txid, err := a.engine.AddFunds(ctx, rec, amount, *yes)
	if err != nil {
		return err
	}
	if !*yes {
		fmt.Printf("Would send %s to %s; re-run with --yes\n", formatSats(amount), rec.Address)
		return nil
	}
	if err := record.WriteFile(path, rec); err != nil {
		return err
	}
	if _, err := a.book.Put(rec, path); err != nil {
		log.CLI.Warn().Err(err).Msg("Could not book puzzle")
	}
	fmt.Printf("Sent:   %s in %s\n", formatSats(amount), txid)
	fmt.Printf("Amount: %s\n", rec.Amount)
	return nil
}
