// Package config handles puzzle tool configuration.
//
// Settings come from three layers, later ones winning:
//   - per-network defaults (Default)
//   - a TOML file (LoadFile), <datadir>/puzzle.toml unless --config says otherwise
//   - command-line flags (ApplyFlags)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/Klingon-tech/puzzle-jackpot/pkg/network"
)

// Config holds the runtime configuration of the puzzle tools.
type Config struct {
	Network string `toml:"network"`
	DataDir string `toml:"datadir"`

	// Elements node RPC
	Node NodeConfig `toml:"node"`

	// Puzzle engine
	Puzzle PuzzleConfig `toml:"puzzle"`

	// Logging
	Log LogConfig `toml:"log"`
}

// NodeConfig holds the node connection settings.
type NodeConfig struct {
	// URL of the node's JSON-RPC endpoint. Empty means localhost on the
	// network's default RPC port.
	URL      string `toml:"url"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	// Wallet is the node wallet that funds puzzles and pay-to-play
	// contributions. Empty uses the node's default wallet.
	Wallet string `toml:"wallet"`
	// Timeout per RPC call, as a Go duration ("30s").
	Timeout string `toml:"timeout"`
}

// PuzzleConfig holds engine settings.
type PuzzleConfig struct {
	// NetworkFee is the explicit fee of a solution, in sats.
	NetworkFee uint64 `toml:"network_fee"`
	// MinFee is the default pay-to-play minimum contribution, in sats.
	MinFee uint64 `toml:"min_fee"`
	// FeeRate is the sat/kvB relay floor a solution is checked against.
	FeeRate uint64 `toml:"fee_rate"`
	// RecordDir is where puzzle_*.json records are written and listed.
	RecordDir string `toml:"record_dir"`
	// MinConfirmations a wallet output needs to fund a contribution.
	MinConfirmations int64 `toml:"min_confirmations"`
	// WatchInterval is the status polling period, as a Go duration.
	WatchInterval string `toml:"watch_interval"`
	// AllowPublicFunding permits sending funds to covenant addresses on
	// liquid and liquidtestnet. Off by default: no node release there
	// accepts the covenant's leaf yet.
	AllowPublicFunding bool `toml:"allow_public_funding"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
	JSON  bool   `toml:"json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.puzzle-jackpot
//	macOS:   ~/Library/Application Support/PuzzleJackpot
//	Windows: %APPDATA%\PuzzleJackpot
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".puzzle-jackpot"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "PuzzleJackpot")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "PuzzleJackpot")
		}
		return filepath.Join(home, "AppData", "Roaming", "PuzzleJackpot")
	default:
		return filepath.Join(home, ".puzzle-jackpot")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, c.Network)
}

// BookDir returns the puzzle book database directory.
func (c *Config) BookDir() string {
	return filepath.Join(c.NetworkDataDir(), "book")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "puzzle.toml")
}

// Params returns the network parameters for c.Network.
func (c *Config) Params() (*network.Params, error) {
	return network.ByName(c.Network)
}

// RPCURL returns the node endpoint, defaulting to localhost on the
// network's RPC port.
func (c *Config) RPCURL() string {
	if c.Node.URL != "" {
		return c.Node.URL
	}
	port := 0
	if p, err := c.Params(); err == nil {
		port = p.RPCPort
	}
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}

// RPCTimeout parses Node.Timeout. Validate has already rejected bad values.
func (c *Config) RPCTimeout() time.Duration {
	d, err := time.ParseDuration(c.Node.Timeout)
	if err != nil || d <= 0 {
		return DefaultRPCTimeout
	}
	return d
}

// WatchInterval parses Puzzle.WatchInterval.
func (c *Config) WatchInterval() time.Duration {
	d, err := time.ParseDuration(c.Puzzle.WatchInterval)
	if err != nil || d <= 0 {
		return DefaultWatchInterval
	}
	return d
}
