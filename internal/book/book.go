// Package book keeps a local index of known puzzles: where each record file
// lives, a fingerprint of its public fields and the last state observed on
// chain. Secrets never enter the book.
package book

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Klingon-tech/puzzle-jackpot/internal/record"
	"github.com/Klingon-tech/puzzle-jackpot/internal/storage"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/crypto"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
	"github.com/rs/zerolog"
)

// Book errors.
var (
	ErrUnknownPuzzle = errors.New("puzzle not in book")
	ErrTampered      = errors.New("record differs from the booked fingerprint")
)

var (
	prefixRecords = []byte("rec/")
	prefixWatch   = []byte("watch/")
)

// Entry is one booked puzzle.
type Entry struct {
	Record      *record.Record `json:"record"`
	Path        string         `json:"path,omitempty"`
	Fingerprint types.Hash     `json:"fingerprint"`
	Added       time.Time      `json:"added"`
}

// Observation is the last chain state seen for a puzzle.
type Observation struct {
	State     string    `json:"state"`
	Value     uint64    `json:"value"`
	Outputs   int       `json:"outputs"`
	Checked   time.Time `json:"checked"`
	SpendTxID string    `json:"spend_txid,omitempty"`
}

// Book indexes puzzles by commitment.
type Book struct {
	db      storage.DB
	records *storage.PrefixDB
	watch   *storage.PrefixDB
	logger  zerolog.Logger
	now     func() time.Time
}

// New wraps db.
func New(db storage.DB, logger zerolog.Logger) *Book {
	return &Book{
		db:      db,
		records: storage.NewPrefixDB(db, prefixRecords),
		watch:   storage.NewPrefixDB(db, prefixWatch),
		logger:  logger,
		now:     time.Now,
	}
}

// Open opens a badger-backed book in dir. Database messages go to dbLogger.
func Open(dir string, logger, dbLogger zerolog.Logger) (*Book, error) {
	db, err := storage.NewBadger(dir, dbLogger)
	if err != nil {
		return nil, fmt.Errorf("open puzzle book: %w", err)
	}
	return New(db, logger), nil
}

// Close closes the underlying database.
func (b *Book) Close() error {
	return b.db.Close()
}

// Fingerprint hashes the public fields of r with BLAKE3.
func Fingerprint(r *record.Record) (types.Hash, error) {
	data, err := json.Marshal(r.Redacted())
	if err != nil {
		return types.Hash{}, fmt.Errorf("marshal record: %w", err)
	}
	return crypto.Hash(data), nil
}

// Put books r, found at path. An existing entry is replaced but keeps its
// Added time.
func (b *Book) Put(r *record.Record, path string) (*Entry, error) {
	h, err := r.Commitment()
	if err != nil {
		return nil, err
	}
	fp, err := Fingerprint(r)
	if err != nil {
		return nil, err
	}
	e := &Entry{Record: r.Redacted(), Path: path, Fingerprint: fp, Added: b.now().UTC()}
	if old, err := b.Get(h); err == nil {
		e.Added = old.Added
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal entry: %w", err)
	}
	if err := b.records.Put(h[:], data); err != nil {
		return nil, fmt.Errorf("put entry: %w", err)
	}
	b.logger.Debug().Str("puzzle", r.Hash).Str("path", path).Msg("Puzzle booked")
	return e, nil
}

// Get returns the entry for commitment h.
func (b *Book) Get(h types.Hash) (*Entry, error) {
	data, err := b.records.Get(h[:])
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPuzzle, h)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", h, err)
	}
	return &e, nil
}

// Delete removes a puzzle and its observation.
func (b *Book) Delete(h types.Hash) error {
	if err := b.records.Delete(h[:]); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if err := b.watch.Delete(h[:]); err != nil {
		return fmt.Errorf("delete observation: %w", err)
	}
	return nil
}

// List returns all entries ordered by creation time, then hash.
func (b *Book) List() ([]*Entry, error) {
	var entries []*Entry
	err := b.records.ForEach(nil, func(key, value []byte) error {
		var e Entry
		if err := json.Unmarshal(value, &e); err != nil {
			return fmt.Errorf("decode entry %x: %w", key, err)
		}
		entries = append(entries, &e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		ci, cj := entries[i].Record.Created, entries[j].Record.Created
		if ci != cj {
			return ci < cj
		}
		return entries[i].Record.Hash < entries[j].Record.Hash
	})
	return entries, nil
}

// Verify checks r against its booked fingerprint.
func (b *Book) Verify(r *record.Record) error {
	h, err := r.Commitment()
	if err != nil {
		return err
	}
	e, err := b.Get(h)
	if err != nil {
		return err
	}
	fp, err := Fingerprint(r)
	if err != nil {
		return err
	}
	if fp != e.Fingerprint {
		return fmt.Errorf("%w: %s", ErrTampered, r.Hash)
	}
	return nil
}

// Sync books every readable record in dir and returns how many were added
// or updated.
func (b *Book) Sync(dir string) (int, error) {
	entries, err := record.List(dir)
	if err != nil {
		return 0, err
	}
	var n int
	for _, e := range entries {
		if e.Err != nil {
			b.logger.Warn().Err(e.Err).Str("path", e.Path).Msg("Skipping unreadable record")
			continue
		}
		if err := b.Verify(e.Record); err == nil {
			continue
		}
		if _, err := b.Put(e.Record, e.Path); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Observe stores the latest chain observation for h.
func (b *Book) Observe(h types.Hash, o Observation) error {
	if o.Checked.IsZero() {
		o.Checked = b.now().UTC()
	}
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal observation: %w", err)
	}
	if err := b.watch.Put(h[:], data); err != nil {
		return fmt.Errorf("put observation: %w", err)
	}
	return nil
}

// LastObservation returns the stored observation for h, or nil if the puzzle
// was never observed.
func (b *Book) LastObservation(h types.Hash) (*Observation, error) {
	data, err := b.watch.Get(h[:])
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get observation: %w", err)
	}
	var o Observation
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("decode observation: %w", err)
	}
	return &o, nil
}
