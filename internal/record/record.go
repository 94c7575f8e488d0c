// Package record reads and writes puzzle records: the JSON files that keep
// what is needed to check, fund, watch and solve a puzzle later.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Klingon-tech/puzzle-jackpot/pkg/covenant"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
)

// Record errors.
var (
	ErrInvalid  = errors.New("invalid puzzle record")
	ErrNoSecret = errors.New("record holds no secret")
)

// TypePayToPlay is the type field of pay-to-play records. Simple records
// leave it empty.
const TypePayToPlay = "pay_to_play"

const filePerm = 0o600

// Record is the persisted form of a puzzle.
type Record struct {
	Secret       string `json:"secret,omitempty"`
	SecretSealed string `json:"secret_sealed,omitempty"`
	Hash         string `json:"hash"`
	Address      string `json:"address"`
	Amount       string `json:"amount"`
	Hint         string `json:"hint"`
	Type         string `json:"type,omitempty"`
	MinFeeSats   uint64 `json:"min_fee_sats,omitempty"`
	TxID         string `json:"txid,omitempty"`
	Created      string `json:"created,omitempty"`
	Network      string `json:"network,omitempty"`
}

// DefaultHint describes the secret without revealing it.
func DefaultHint(secret string) string {
	return fmt.Sprintf("The password has %d characters", utf8.RuneCountInString(secret))
}

// FormatHash renders a commitment the way records store it.
func FormatHash(h types.Hash) string {
	return "0x" + h.String()
}

// New fills a record for a freshly created puzzle.
func New(v covenant.Variant, commitment types.Hash, address string, sats uint64, hint string, now time.Time) *Record {
	r := &Record{
		Hash:    FormatHash(commitment),
		Address: address,
		Amount:  types.FormatAmount(sats),
		Hint:    hint,
		Created: now.UTC().Format(time.RFC3339),
	}
	if v.Kind == covenant.KindPayToPlay {
		r.Type = TypePayToPlay
		r.MinFeeSats = v.MinFeeSats
	}
	return r
}

// Commitment parses the hash field.
func (r *Record) Commitment() (types.Hash, error) {
	h, err := types.HexToHash(r.Hash)
	if err != nil {
		return types.Hash{}, fmt.Errorf("%w: hash: %v", ErrInvalid, err)
	}
	return h, nil
}

// Variant returns the covenant the record was created with. Pay-to-play
// records without min_fee_sats use the default minimum.
func (r *Record) Variant() (covenant.Variant, error) {
	minFee := r.MinFeeSats
	if minFee == 0 {
		minFee = covenant.DefaultMinFee
	}
	v, err := covenant.ParseVariant(r.Type, minFee)
	if err != nil {
		return covenant.Variant{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return v, nil
}

// AmountSats parses the advisory amount field.
func (r *Record) AmountSats() (uint64, error) {
	if r.Amount == "" {
		return 0, nil
	}
	v, err := types.ParseAmount(r.Amount)
	if err != nil {
		return 0, fmt.Errorf("%w: amount: %v", ErrInvalid, err)
	}
	return v, nil
}

// AddAmount bumps the advisory amount after more funds were sent.
func (r *Record) AddAmount(sats uint64) error {
	cur, err := r.AmountSats()
	if err != nil {
		return err
	}
	if cur+sats < cur {
		return fmt.Errorf("%w: amount overflow", ErrInvalid)
	}
	r.Amount = types.FormatAmount(cur + sats)
	return nil
}

// FundingTxID parses the txid field. The zero id means none was recorded.
func (r *Record) FundingTxID() (types.TxID, error) {
	if r.TxID == "" {
		return types.TxID{}, nil
	}
	id, err := types.HexToTxID(r.TxID)
	if err != nil {
		return types.TxID{}, fmt.Errorf("%w: txid: %v", ErrInvalid, err)
	}
	return id, nil
}

// HasSecret reports whether the record can solve its puzzle by itself,
// possibly after unsealing.
func (r *Record) HasSecret() bool {
	return r.Secret != "" || r.SecretSealed != ""
}

// Redacted returns a copy without the plain or sealed secret.
func (r *Record) Redacted() *Record {
	c := *r
	c.Secret = ""
	c.SecretSealed = ""
	return &c
}

// Validate checks the fields every record must carry.
func (r *Record) Validate() error {
	if r.Address == "" {
		return fmt.Errorf("%w: missing address", ErrInvalid)
	}
	if _, err := r.Commitment(); err != nil {
		return err
	}
	if _, err := r.Variant(); err != nil {
		return err
	}
	if _, err := r.AmountSats(); err != nil {
		return err
	}
	if _, err := r.FundingTxID(); err != nil {
		return err
	}
	if r.Created != "" {
		if _, err := time.Parse(time.RFC3339, r.Created); err != nil {
			return fmt.Errorf("%w: created: %v", ErrInvalid, err)
		}
	}
	return nil
}

// FileName is puzzle_<hash8>.json, or puzzle_fee_<hash8>.json for
// pay-to-play puzzles.
func (r *Record) FileName() string {
	h := strings.TrimPrefix(strings.ToLower(r.Hash), "0x")
	if len(h) > 8 {
		h = h[:8]
	}
	if r.Type == TypePayToPlay {
		return "puzzle_fee_" + h + ".json"
	}
	return "puzzle_" + h + ".json"
}

// Marshal encodes the record as indented JSON.
func (r *Record) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return append(data, '\n'), nil
}

// Unmarshal decodes and validates a record.
func Unmarshal(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Save writes the record into dir under FileName and returns the path.
func Save(dir string, r *Record) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create record dir: %w", err)
	}
	path := filepath.Join(dir, r.FileName())
	if err := WriteFile(path, r); err != nil {
		return "", err
	}
	return path, nil
}

// WriteFile replaces the record at path atomically. The file is readable by
// the owner only.
func WriteFile(path string, r *Record) error {
	data, err := r.Marshal()
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".puzzle-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close record: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename record: %w", err)
	}
	return nil
}

// Load reads a record file.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	r, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return r, nil
}

// Entry is a record found on disk.
type Entry struct {
	Path   string
	Record *Record
	Err    error
}

// List loads every puzzle_*.json file in dir, sorted by file name.
// Unreadable files are returned with Err set rather than failing the listing.
func List(dir string) ([]Entry, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "puzzle_*.json"))
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	sort.Strings(matches)
	entries := make([]Entry, 0, len(matches))
	for _, m := range matches {
		r, err := Load(m)
		entries = append(entries, Entry{Path: m, Record: r, Err: err})
	}
	return entries, nil
}
