package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/Klingon-tech/puzzle-jackpot/internal/puzzle"
	"github.com/Klingon-tech/puzzle-jackpot/internal/record"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/covenant"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

// formatSats renders an amount as coins with the sats count alongside.
func formatSats(sats uint64) string {
	return fmt.Sprintf("%s (%s sats)", types.FormatAmount(sats), humanize.Comma(int64(sats)))
}

// parseAmount parses a coin amount with up to 8 decimals.
func parseAmount(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := types.ParseAmount(s)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q: %v", puzzle.ErrInvalidInput, s, err)
	}
	return v, nil
}

// variantFlags turns --pay-to-play/--min-fee into a covenant variant.
func variantFlags(payToPlay bool, minFee uint64) covenant.Variant {
	if !payToPlay {
		return covenant.Simple()
	}
	if minFee == 0 {
		minFee = covenant.DefaultMinFee
	}
	return covenant.PayToPlay(minFee)
}

// oneArg returns the single positional argument.
func oneArg(args []string, what string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: expected one %s", puzzle.ErrInvalidInput, what)
	}
	return args[0], nil
}

func loadRecord(path string) (*record.Record, error) {
	rec, err := record.Load(path)
	if err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// readPassword prompts on stderr and reads a line without echo.
func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// readNewPassphrase asks twice and requires both entries to match.
func readNewPassphrase() ([]byte, error) {
	first, err := readPassword("New passphrase: ")
	if err != nil {
		return nil, err
	}
	if len(first) == 0 {
		return nil, fmt.Errorf("%w: empty passphrase", puzzle.ErrInvalidInput)
	}
	second, err := readPassword("Repeat passphrase: ")
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(first, second) {
		return nil, fmt.Errorf("%w: passphrases do not match", puzzle.ErrInvalidInput)
	}
	return first, nil
}

// recordSecret returns the secret for rec: the flag value, the record's
// own secret (unsealed on demand) or a hidden prompt.
func recordSecret(rec *record.Record, flagSecret string) ([]byte, error) {
	if flagSecret != "" {
		return []byte(flagSecret), nil
	}
	if rec.Secret != "" {
		return []byte(rec.Secret), nil
	}
	if rec.SecretSealed != "" {
		pass, err := readPassword("Passphrase: ")
		if err != nil {
			return nil, err
		}
		return puzzle.SecretFromRecord(rec, pass)
	}
	fmt.Fprintf(os.Stderr, "Hint: %s\n", rec.Hint)
	return readPassword("Secret: ")
}
