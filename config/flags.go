package config

import (
	flag "github.com/spf13/pflag"
)

// Flags holds the global command-line flags.
type Flags struct {
	Network string
	DataDir string
	Config  string

	// Node
	RPCURL      string
	RPCUser     string
	RPCPassword string
	Wallet      string

	// Engine
	NetworkFee uint64
	FeeRate    uint64
	RecordDir  string
	// AllowPublicFunding lets create and fund send to Liquid and Liquid
	// testnet covenant addresses.
	AllowPublicFunding bool

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	fs *flag.FlagSet
}

// RegisterFlags adds the global flags to fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}

	// Core
	fs.StringVarP(&f.Network, "network", "n", "", "Network: elementsregtest (default), liquidtestnet or liquid")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory (default: ~/.puzzle-jackpot)")
	fs.StringVarP(&f.Config, "config", "c", "", "Config file path (default: <datadir>/puzzle.toml)")

	// Node
	fs.StringVar(&f.RPCURL, "rpc", "", "Node RPC endpoint (default: http://127.0.0.1:<network port>)")
	fs.StringVar(&f.RPCUser, "rpc-user", "", "Node RPC user")
	fs.StringVar(&f.RPCPassword, "rpc-password", "", "Node RPC password")
	fs.StringVar(&f.Wallet, "wallet", "", "Node wallet used for funding and contributions")

	// Engine
	fs.Uint64Var(&f.NetworkFee, "network-fee", 0, "Solution network fee in sats")
	fs.Uint64Var(&f.FeeRate, "fee-rate", 0, "Relay fee floor in sat/kvB")
	fs.StringVar(&f.RecordDir, "record-dir", "", "Directory holding puzzle records")
	fs.BoolVar(&f.AllowPublicFunding, "allow-public-funding", false, "Fund covenants on liquid and liquidtestnet")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")
	return f
}

// ApplyFlags applies the flags that were set on the command line to cfg.
func ApplyFlags(cfg *Config, f *Flags) {
	changed := func(name string) bool {
		return f.fs != nil && f.fs.Changed(name)
	}

	// Core
	if f.Network != "" {
		cfg.Network = f.Network
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Node
	if f.RPCURL != "" {
		cfg.Node.URL = f.RPCURL
	}
	if f.RPCUser != "" {
		cfg.Node.User = f.RPCUser
	}
	if f.RPCPassword != "" {
		cfg.Node.Password = f.RPCPassword
	}
	if f.Wallet != "" {
		cfg.Node.Wallet = f.Wallet
	}

	// Engine
	if f.NetworkFee != 0 {
		cfg.Puzzle.NetworkFee = f.NetworkFee
	}
	if changed("fee-rate") {
		cfg.Puzzle.FeeRate = f.FeeRate
	}
	if f.RecordDir != "" {
		cfg.Puzzle.RecordDir = f.RecordDir
	}
	if changed("allow-public-funding") {
		cfg.Puzzle.AllowPublicFunding = f.AllowPublicFunding
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if changed("log-json") {
		cfg.Log.JSON = f.LogJSON
	}
}

// Load builds the configuration: defaults for the selected network, then
// the config file, then flags. The network is resolved from the flags
// first, then from the file, so defaults match the network in use.
func Load(f *Flags) (*Config, error) {
	boot := &Config{DataDir: DefaultDataDir()}
	if f.DataDir != "" {
		boot.DataDir = f.DataDir
	}
	path := f.Config
	if path == "" {
		path = boot.ConfigFile()
	}
	if err := LoadFile(path, boot); err != nil {
		return nil, err
	}

	name := boot.Network
	if f.Network != "" {
		name = f.Network
	}
	cfg := Default(name)
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if err := LoadFile(path, cfg); err != nil {
		return nil, err
	}
	ApplyFlags(cfg, f)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
