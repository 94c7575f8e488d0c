package puzzle

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/puzzle-jackpot/internal/log"
	"github.com/Klingon-tech/puzzle-jackpot/internal/record"
	"github.com/Klingon-tech/puzzle-jackpot/internal/wallet"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/commitment"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/covenant"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
)

// CreateRequest describes a new puzzle.
type CreateRequest struct {
	Variant covenant.Variant
	// Secret is the preimage. When empty, Words random BIP-39 words are
	// generated instead.
	Secret string
	Words  int
	// Amount to fund the puzzle with, in sats. Zero only derives.
	Amount uint64
	// Hint defaults to the secret's length.
	Hint string
	// Passphrase, when set, stores the secret sealed instead of in clear.
	Passphrase []byte
	// Confirm allows paying Amount to the puzzle address.
	Confirm bool
}

// CreateResult is a derived and possibly funded puzzle.
type CreateResult struct {
	Puzzle *Puzzle
	Record *record.Record
	// Secret is the preimage in clear, also when it was generated.
	Secret string
	// Funded reports whether the funding transaction was sent.
	Funded    bool
	FundingTx types.TxID
}

// Create derives a puzzle, builds its record and, when confirmed, funds it.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	secret := req.Secret
	if secret == "" {
		if req.Words == 0 {
			return nil, fmt.Errorf("%w: no secret and no word count", ErrInvalidInput)
		}
		w, err := wallet.WordSecret(req.Words)
		if err != nil {
			return nil, err
		}
		secret = w
	}
	if commitment.Truncated([]byte(secret)) {
		e.logger.Warn().Int("length", len(secret)).Msg("Secret longer than 32 bytes, only the last 32 count")
	}

	p, err := e.DeriveSecret(req.Variant, []byte(secret))
	if err != nil {
		return nil, err
	}

	hint := req.Hint
	if hint == "" {
		hint = record.DefaultHint(secret)
	}
	rec := record.New(req.Variant, p.Commitment, p.Address(), req.Amount, hint, e.now())
	rec.Network = e.params.Name
	if len(req.Passphrase) > 0 {
		sealed, err := wallet.Seal([]byte(secret), req.Passphrase, p.Commitment[:], e.kdf)
		if err != nil {
			return nil, fmt.Errorf("seal secret: %w", err)
		}
		rec.SecretSealed = sealed
	} else {
		rec.Secret = secret
	}

	res := &CreateResult{Puzzle: p, Record: rec, Secret: secret}
	plog := log.WithPuzzle(e.logger, rec.Hash).With().Str("address", p.Address()).Logger()
	plog.Info().Str("variant", req.Variant.String()).Msg("Puzzle derived")

	if req.Amount == 0 {
		return res, nil
	}
	if !req.Confirm {
		plog.Info().Uint64("sats", req.Amount).Msg("Funding skipped, not confirmed")
		return res, nil
	}
	if err := e.requireFundable(); err != nil {
		return nil, err
	}
	if err := e.requireNode(); err != nil {
		return nil, err
	}
	txid, err := e.node.SendToAddress(ctx, p.Address(), req.Amount)
	if err != nil {
		return nil, fmt.Errorf("fund puzzle: %w", err)
	}
	rec.TxID = txid.String()
	res.Funded = true
	res.FundingTx = txid
	plog.Info().Str("txid", rec.TxID).Uint64("sats", req.Amount).Msg("Puzzle funded")
	return res, nil
}

// AddFunds pays sats more to a puzzle and bumps the record's advisory
// amount. Without confirm nothing is sent and the record is untouched.
func (e *Engine) AddFunds(ctx context.Context, rec *record.Record, sats uint64, confirm bool) (types.TxID, error) {
	if sats == 0 {
		return types.TxID{}, fmt.Errorf("%w: zero amount", ErrInvalidInput)
	}
	if err := rec.Validate(); err != nil {
		return types.TxID{}, err
	}
	if _, err := e.params.DecodeAddress(rec.Address); err != nil {
		return types.TxID{}, err
	}
	if !confirm {
		return types.TxID{}, nil
	}
	if err := e.requireFundable(); err != nil {
		return types.TxID{}, err
	}
	if err := e.requireNode(); err != nil {
		return types.TxID{}, err
	}
	txid, err := e.node.SendToAddress(ctx, rec.Address, sats)
	if err != nil {
		return types.TxID{}, fmt.Errorf("add funds: %w", err)
	}
	if err := rec.AddAmount(sats); err != nil {
		return txid, err
	}
	plog := log.WithPuzzle(e.logger, rec.Hash)
	plog.Info().Str("txid", txid.String()).Uint64("sats", sats).Msg("Funds added")
	return txid, nil
}

// SecretFromRecord returns the record's secret, unsealing it with
// passphrase when needed.
func SecretFromRecord(rec *record.Record, passphrase []byte) ([]byte, error) {
	if rec.Secret != "" {
		return []byte(rec.Secret), nil
	}
	if rec.SecretSealed == "" {
		return nil, record.ErrNoSecret
	}
	h, err := rec.Commitment()
	if err != nil {
		return nil, err
	}
	if len(passphrase) == 0 {
		return nil, wallet.ErrEmptyPassphrase
	}
	return wallet.Open(rec.SecretSealed, passphrase, h[:])
}
