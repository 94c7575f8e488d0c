package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/Klingon-tech/puzzle-jackpot/config"
	"github.com/Klingon-tech/puzzle-jackpot/internal/book"
	"github.com/Klingon-tech/puzzle-jackpot/internal/log"
	"github.com/Klingon-tech/puzzle-jackpot/internal/puzzle"
	"github.com/Klingon-tech/puzzle-jackpot/internal/record"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/covenant"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"
)

// puzzleFlags selects a puzzle by record file or by hash and variant.
type puzzleFlags struct {
	hash      *string
	payToPlay *bool
	minFee    *uint64
}

func addPuzzleFlags(fs *flag.FlagSet) puzzleFlags {
	return puzzleFlags{
		hash:      fs.String("hash", "", "Commitment (64 hex, optional 0x)"),
		payToPlay: fs.Bool("pay-to-play", false, "Pay-to-play covenant"),
		minFee:    fs.Uint64("min-fee", 0, "Pay-to-play minimum contribution in sats"),
	}
}

// resolve returns the variant, commitment and known address of the puzzle,
// from the record in args or from the flags.
func (p puzzleFlags) resolve(args []string) (covenant.Variant, types.Hash, string, error) {
	if len(args) == 1 {
		rec, err := loadRecord(args[0])
		if err != nil {
			return covenant.Variant{}, types.Hash{}, "", err
		}
		v, _ := rec.Variant()
		h, _ := rec.Commitment()
		return v, h, rec.Address, nil
	}
	if *p.hash == "" || len(args) > 1 {
		return covenant.Variant{}, types.Hash{}, "", fmt.Errorf("%w: give a record file or --hash", puzzle.ErrInvalidInput)
	}
	h, err := puzzle.ParseCommitment(*p.hash)
	if err != nil {
		return covenant.Variant{}, types.Hash{}, "", err
	}
	return variantFlags(*p.payToPlay, *p.minFee), h, "", nil
}

func cmdCheck(_ context.Context, args []string) error {
	fs, gf := newFlagSet("check")
	pf := addPuzzleFlags(fs)
	address := fs.String("address", "", "Expected address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	v, h, known, err := pf.resolve(fs.Args())
	if err != nil {
		return err
	}
	expected := *address
	if expected == "" {
		expected = known
	}

	a, err := setup(gf, setupOpts{})
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.engine.Check(v, h, expected)
	if err != nil {
		return err
	}
	fmt.Printf("Variant:  %s\n", v)
	fmt.Printf("Hash:     %s\n", record.FormatHash(h))
	fmt.Printf("Root:     %s\n", res.Puzzle.Program.Root())
	fmt.Printf("Derived:  %s\n", res.Puzzle.Address())
	if expected == "" {
		return nil
	}
	fmt.Printf("Expected: %s\n", expected)
	if !res.Match {
		return fmt.Errorf("%w: derived %s", errMismatch, res.Puzzle.Address())
	}
	fmt.Println("Match")
	return nil
}

func cmdExport(_ context.Context, args []string) error {
	fs, gf := newFlagSet("export")
	pf := addPuzzleFlags(fs)
	disasm := fs.Bool("disasm", false, "Print the leaf script one opcode per line instead of base64")
	if err := fs.Parse(args); err != nil {
		return err
	}
	v, h, _, err := pf.resolve(fs.Args())
	if err != nil {
		return err
	}
	a, err := setup(gf, setupOpts{})
	if err != nil {
		return err
	}
	defer a.close()

	encoded, p, err := a.engine.Export(v, h)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s program for %s (%d bytes)\n", v, p.Address(), len(p.Program.Bytes()))
	writeExport(os.Stdout, encoded, p, *disasm)
	return nil
}

// writeExport prints the exported program, base64 or disassembled.
func writeExport(w io.Writer, encoded string, p *puzzle.Puzzle, disasm bool) {
	if disasm {
		fmt.Fprint(w, p.Program.Disasm())
		return
	}
	fmt.Fprintln(w, encoded)
}

func cmdList(_ context.Context, args []string) error {
	fs, gf := newFlagSet("list")
	showSecret := fs.Bool("show-secret", false, "Print plain secrets")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := setup(gf, setupOpts{book: true})
	if err != nil {
		return err
	}
	defer a.close()

	dir := a.cfg.Puzzle.RecordDir
	entries, err := record.List(dir)
	if err != nil {
		return err
	}
	if n, err := a.book.Sync(dir); err != nil {
		log.CLI.Warn().Err(err).Msg("Could not sync puzzle book")
	} else if n > 0 {
		log.CLI.Debug().Int("booked", n).Msg("Puzzle book updated")
	}
	if len(entries) == 0 {
		fmt.Printf("No puzzle records in %s\n", dir)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tTYPE\tAMOUNT\tADDRESS\tCREATED\tHINT")
	for _, e := range entries {
		name := filepath.Base(e.Path)
		if e.Err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\tunreadable: %v\n", name, e.Err)
			continue
		}
		r := e.Record
		v, _ := r.Variant()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", name, v, r.Amount, r.Address, created(r.Created), r.Hint)
		if *showSecret && r.Secret != "" {
			fmt.Fprintf(w, "\tsecret: %s\t\t\t\t\n", r.Secret)
		}
	}
	return w.Flush()
}

func created(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return "-"
	}
	return humanize.Time(t)
}

func cmdVerify(ctx context.Context, args []string) error {
	fs, gf := newFlagSet("verify")
	if err := fs.Parse(args); err != nil {
		return err
	}
	target, err := oneArg(fs.Args(), "address or txid")
	if err != nil {
		return err
	}
	a, err := setup(gf, setupOpts{node: true})
	if err != nil {
		return err
	}
	defer a.close()

	if txid, err := types.HexToTxID(target); err == nil {
		return verifyTx(ctx, a, txid)
	}
	r, err := a.engine.VerifyAddress(ctx, target)
	if err != nil {
		return err
	}
	if !r.Active() {
		fmt.Printf("%s: no unspent outputs (solved or never funded)\n", target)
		return nil
	}
	fmt.Printf("%s: active, %s in %d output(s)\n", target, formatSats(r.Value), len(r.Unspent))
	for _, u := range r.Unspent {
		fmt.Printf("  %s  %s  %d conf\n", u.Outpoint, formatSats(u.Value), u.Confirmations)
	}
	return nil
}

func verifyTx(ctx context.Context, a *app, txid types.TxID) error {
	rep, err := a.engine.VerifyTx(ctx, txid)
	if err != nil {
		return err
	}
	info := rep.Info
	fmt.Printf("Transaction %s, %d confirmations\n", info.TxID, info.Confirmations)
	for i, in := range info.Inputs {
		fmt.Printf("  in  %d  %s  witness items: %d\n", i, in.PrevOut, len(in.Witness))
	}
	for _, o := range info.Outputs {
		to := o.Address
		if o.Fee {
			to = "fee"
		}
		fmt.Printf("  out %d  %s  %s\n", o.Index, formatSats(o.Value), to)
	}
	if len(rep.Solutions) == 0 {
		fmt.Println("No puzzle solution found")
		return nil
	}
	for _, s := range rep.Solutions {
		fmt.Printf("Solution in input %d (%s)\n", s.Input, s.Variant)
		fmt.Printf("  commitment: %s\n", record.FormatHash(s.Commitment))
		fmt.Printf("  preimage:   %x\n", s.Preimage)
		if s.Secret != "" {
			fmt.Printf("  secret:     %s\n", s.Secret)
		}
		fmt.Printf("  valid:      %v, control block checked: %v\n", s.Valid, s.ControlBlockChecked)
	}
	return nil
}

func printStatus(st *puzzle.Status) {
	fmt.Printf("%s  %-8s  %s in %d output(s)", time.Now().Format("15:04:05"), st.State, formatSats(st.Value), len(st.Unspent))
	if st.FundingConfirmations >= 0 {
		fmt.Printf(", funding %d conf", st.FundingConfirmations)
	}
	fmt.Println()
}

func cmdStatus(ctx context.Context, args []string) error {
	fs, gf := newFlagSet("status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := oneArg(fs.Args(), "record file")
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
	warnTampered(a, rec)

	st, err := a.engine.Status(ctx, rec)
	if err != nil {
		return err
	}
	fmt.Printf("Puzzle %s at %s\n", rec.Hash, rec.Address)
	printStatus(st)
	return nil
}

func cmdWatch(ctx context.Context, args []string) error {
	fs, gf := newFlagSet("watch")
	interval := fs.Duration("interval", 0, "Polling interval (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := oneArg(fs.Args(), "record file")
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
	warnTampered(a, rec)

	every := *interval
	if every <= 0 {
		every = a.cfg.WatchInterval()
	}
	fmt.Printf("Watching %s every %s\n", rec.Address, every)
	st, err := a.engine.Watch(ctx, rec, every, printStatus)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	fmt.Printf("Puzzle %s\n", st.State)
	return nil
}

// warnTampered compares rec with the booked copy, if any.
func warnTampered(a *app, rec *record.Record) {
	if a.book == nil {
		return
	}
	if err := a.book.Verify(rec); err != nil {
		if errors.Is(err, book.ErrTampered) {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			return
		}
		log.CLI.Debug().Err(err).Msg("Record not verified against book")
	}
}

func cmdConfig(_ context.Context, args []string) error {
	fs, gf := newFlagSet("config")
	force := fs.Bool("force", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(gf)
	if err != nil {
		return err
	}
	path := gf.Config
	if path == "" {
		path = cfg.ConfigFile()
	}
	if _, err := os.Stat(path); err == nil && !*force {
		return fmt.Errorf("%w: %s exists, use --force", puzzle.ErrInvalidInput, path)
	}
	if err := config.WriteFile(path, cfg); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
