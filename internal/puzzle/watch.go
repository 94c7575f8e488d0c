package puzzle

import (
	"context"
	"time"

	"github.com/Klingon-tech/puzzle-jackpot/internal/log"
	"github.com/Klingon-tech/puzzle-jackpot/internal/record"
	"golang.org/x/time/rate"
)

// DefaultWatchInterval is the polling period of Watch.
const DefaultWatchInterval = 30 * time.Second

// Watch polls the puzzle's status every interval and calls fn with the
// first observation and with every change of state. It returns the last
// status when the puzzle reaches a terminal state or ctx ends. Transient
// node errors are logged and polling continues.
func (e *Engine) Watch(ctx context.Context, rec *record.Record, interval time.Duration, fn func(*Status)) (*Status, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := e.requireNode(); err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	plog := log.WithPuzzle(e.logger, rec.Hash)

	var last *Status
	for {
		if err := limiter.Wait(ctx); err != nil {
			return last, err
		}
		st, err := e.Status(ctx, rec)
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			if k := KindOf(err); k == KindConfiguration || k == KindInput {
				return last, err
			}
			plog.Warn().Err(err).Msg("Status poll failed")
			continue
		}
		if last == nil || last.State != st.State || last.Value != st.Value {
			if last != nil {
				plog.Info().Stringer("from", last.State).Stringer("to", st.State).Msg("Puzzle changed")
			}
			if fn != nil {
				fn(st)
			}
		}
		last = st
		if st.State.Terminal() {
			return st, nil
		}
	}
}
