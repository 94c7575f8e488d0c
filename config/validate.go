package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Klingon-tech/puzzle-jackpot/internal/log"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/network"
)

// ErrInvalid is returned for configuration the tools cannot run with.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks the configuration for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalid)
	}
	if _, err := network.ByName(cfg.Network); err != nil {
		return fmt.Errorf("%w: network: %w", ErrInvalid, err)
	}
	if cfg.Node.URL != "" {
		u, err := url.Parse(cfg.Node.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: node.url must be an http(s) URL", ErrInvalid)
		}
	}
	if err := validDuration("node.timeout", cfg.Node.Timeout); err != nil {
		return err
	}
	if err := validDuration("puzzle.watch_interval", cfg.Puzzle.WatchInterval); err != nil {
		return err
	}
	if cfg.Puzzle.NetworkFee == 0 {
		return fmt.Errorf("%w: puzzle.network_fee must be positive", ErrInvalid)
	}
	if cfg.Puzzle.MinFee == 0 {
		return fmt.Errorf("%w: puzzle.min_fee must be positive", ErrInvalid)
	}
	if cfg.Puzzle.MinConfirmations < 0 {
		return fmt.Errorf("%w: puzzle.min_confirmations must not be negative", ErrInvalid)
	}
	if cfg.Puzzle.RecordDir == "" {
		cfg.Puzzle.RecordDir = "."
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if !log.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("%w: log.level %q", ErrInvalid, cfg.Log.Level)
	}
	return nil
}

func validDuration(field, s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fmt.Errorf("%w: %s must be a positive duration, got %q", ErrInvalid, field, s)
	}
	return nil
}
