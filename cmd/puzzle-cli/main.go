// puzzle-cli creates, funds, checks and solves hash-locked puzzles on
// Liquid and Elements networks through an Elements node.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/puzzle-jackpot/config"
	"github.com/Klingon-tech/puzzle-jackpot/internal/book"
	"github.com/Klingon-tech/puzzle-jackpot/internal/log"
	"github.com/Klingon-tech/puzzle-jackpot/internal/node"
	"github.com/Klingon-tech/puzzle-jackpot/internal/puzzle"
	"github.com/Klingon-tech/puzzle-jackpot/internal/rpcclient"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/network"
	flag "github.com/spf13/pflag"
)

// Exit codes, one per error kind.
const (
	exitOK = iota
	exitOther
	exitConfiguration
	exitInput
	exitPrecondition
	exitMismatch
	exitBroadcast
)

type command struct {
	usage string
	run   func(ctx context.Context, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"create": {"create [--secret s | --words n] [--amount btc] [--pay-to-play] [--seal] [--yes]", cmdCreate},
		"fund":   {"fund <record.json> --amount btc [--yes]", cmdFund},
		"solve":  {"solve <record.json> --to <address> [--secret s] [--outpoint txid:vout] [--yes]", cmdSolve},
		"check":  {"check <record.json> | --hash h [--pay-to-play] [--address a]", cmdCheck},
		"export": {"export <record.json> | --hash h [--pay-to-play] [--disasm]", cmdExport},
		"list":   {"list [--show-secret]", cmdList},
		"verify": {"verify <address | txid>", cmdVerify},
		"status": {"status <record.json>", cmdStatus},
		"watch":  {"watch <record.json> [--interval 30s]", cmdWatch},
		"config": {"config [--force]", cmdConfig},
	}
}

var order = []string{"create", "fund", "solve", "check", "export", "list", "verify", "status", "watch", "config"}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitInput)
	}
	name := os.Args[1]
	if name == "help" || name == "--help" || name == "-h" {
		usage()
		return
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		usage()
		os.Exit(exitInput)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.run(ctx, os.Args[2:])
	stop()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: puzzle-cli <command> [flags]\n\nCommands:\n")
	for _, name := range order {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
	fmt.Fprintf(os.Stderr, `
Global flags (any command):
  -n, --network <name>    elementsregtest (default), liquidtestnet or liquid
      --datadir <path>    Data directory (default: ~/.puzzle-jackpot)
  -c, --config <path>     Config file (default: <datadir>/puzzle.toml)
      --rpc <url>         Node RPC endpoint
      --rpc-user, --rpc-password, --wallet
      --log-level, --log-file, --log-json

Nothing is paid or broadcast without --yes.
`)
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	if errors.Is(err, config.ErrInvalid) {
		return exitConfiguration
	}
	if errors.Is(err, errMismatch) {
		return exitMismatch
	}
	switch puzzle.KindOf(err) {
	case puzzle.KindConfiguration:
		return exitConfiguration
	case puzzle.KindInput:
		return exitInput
	case puzzle.KindPrecondition:
		return exitPrecondition
	case puzzle.KindCryptoMismatch:
		return exitMismatch
	case puzzle.KindBroadcast:
		return exitBroadcast
	default:
		return exitOther
	}
}

// errMismatch reports a failed check without being a failure of the tool.
var errMismatch = errors.New("address does not match")

// newFlagSet returns a subcommand flag set carrying the global flags.
func newFlagSet(name string) (*flag.FlagSet, *config.Flags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SortFlags = false
	gf := config.RegisterFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: puzzle-cli %s\n\n", commands[name].usage)
		fs.PrintDefaults()
	}
	return fs, gf
}

// app is the wiring shared by the commands.
type app struct {
	cfg    *config.Config
	params *network.Params
	node   *node.Client
	book   *book.Book
	engine *puzzle.Engine
}

type setupOpts struct {
	node bool
	book bool
}

// setup loads configuration, initializes logging and builds the engine with
// the collaborators the command needs.
func setup(gf *config.Flags, o setupOpts) (*app, error) {
	cfg, err := config.Load(gf)
	if err != nil {
		return nil, err
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		return nil, fmt.Errorf("%w: log file: %v", config.ErrInvalid, err)
	}
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, params: params}

	opts := []puzzle.Option{
		puzzle.WithNetworkFee(cfg.Puzzle.NetworkFee),
		puzzle.WithFeeRate(cfg.Puzzle.FeeRate),
		puzzle.WithMinConfirmations(cfg.Puzzle.MinConfirmations),
		puzzle.WithPublicFunding(cfg.Puzzle.AllowPublicFunding),
		puzzle.WithLogger(log.Engine),
	}
	var nc puzzle.NodeClient
	if o.node {
		rpcOpts := []rpcclient.Option{rpcclient.WithTimeout(cfg.RPCTimeout())}
		if cfg.Node.User != "" {
			rpcOpts = append(rpcOpts, rpcclient.WithAuth(cfg.Node.User, cfg.Node.Password))
		}
		a.node = node.New(rpcclient.New(cfg.RPCURL(), rpcOpts...), cfg.Node.Wallet, params, log.Node)
		nc = a.node
		opts = append(opts, puzzle.WithWallet(a.node))
	}
	if o.book {
		b, err := book.Open(cfg.BookDir(), log.Book, log.Storage)
		if err != nil {
			return nil, err
		}
		a.book = b
		opts = append(opts, puzzle.WithBook(b))
	}
	a.engine, err = puzzle.New(params, nc, opts...)
	if err != nil {
		a.close()
		return nil, err
	}
	log.CLI.Debug().Str("network", params.Name).Str("rpc", cfg.RPCURL()).Msg("Configured")
	return a, nil
}

func (a *app) close() {
	if a.book != nil {
		if err := a.book.Close(); err != nil {
			log.CLI.Warn().Err(err).Msg("Closing puzzle book")
		}
	}
}
