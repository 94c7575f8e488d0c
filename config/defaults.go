package config

import "time"

// Defaults shared by every network.
const (
	DefaultNetwork          = "elementsregtest"
	DefaultRPCTimeout       = 30 * time.Second
	DefaultWatchInterval    = 30 * time.Second
	DefaultNetworkFee       = 3000
	DefaultMinFee           = 1000
	DefaultFeeRate          = 100
	DefaultMinConfirmations = 1
)

// DefaultLiquid returns the default configuration for Liquid mainnet.
func DefaultLiquid() *Config {
	return &Config{
		Network: "liquid",
		DataDir: DefaultDataDir(),
		Node: NodeConfig{
			Timeout: DefaultRPCTimeout.String(),
		},
		Puzzle: PuzzleConfig{
			NetworkFee:       DefaultNetworkFee,
			MinFee:           DefaultMinFee,
			FeeRate:          DefaultFeeRate,
			RecordDir:        ".",
			MinConfirmations: DefaultMinConfirmations,
			WatchInterval:    DefaultWatchInterval.String(),
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultLiquidTestnet returns the default configuration for Liquid testnet.
func DefaultLiquidTestnet() *Config {
	cfg := DefaultLiquid()
	cfg.Network = "liquidtestnet"
	return cfg
}

// DefaultRegtest returns the default configuration for a local Elements
// regtest node. Blocks come on demand there, so nothing waits for
// confirmations.
func DefaultRegtest() *Config {
	cfg := DefaultLiquid()
	cfg.Network = "elementsregtest"
	cfg.Puzzle.MinConfirmations = 0
	cfg.Puzzle.WatchInterval = (5 * time.Second).String()
	return cfg
}

// Default returns the default configuration for the given network. The
// empty name selects regtest. Unknown names keep the name so Validate can
// report it.
func Default(network string) *Config {
	switch network {
	case "liquidtestnet":
		return DefaultLiquidTestnet()
	case "", DefaultNetwork:
		return DefaultRegtest()
	case "liquid":
		return DefaultLiquid()
	default:
		cfg := DefaultLiquid()
		cfg.Network = network
		return cfg
	}
}
