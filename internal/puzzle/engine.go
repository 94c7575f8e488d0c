// Package puzzle runs the puzzle lifecycle: deriving commitments and
// addresses, funding, solving, checking and watching puzzles through a node.
//
// One Engine serves both covenant variants; the variant travels with each
// request. Every outward action (paying to an address, broadcasting a
// solution) runs only when the request carries Confirm. Without it the
// operation stops right before the side effect and reports what it built.
package puzzle

import (
	"context"
	"fmt"
	"time"

	"github.com/Klingon-tech/puzzle-jackpot/internal/book"
	"github.com/Klingon-tech/puzzle-jackpot/internal/node"
	"github.com/Klingon-tech/puzzle-jackpot/internal/wallet"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/commitment"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/covenant"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/network"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/taproot"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultNetworkFee is the explicit fee paid by a solution, in sats.
const DefaultNetworkFee uint64 = 3000

// NodeClient is the chain access the engine needs.
type NodeClient interface {
	FindUnspent(ctx context.Context, address string) ([]types.Utxo, error)
	GetTransaction(ctx context.Context, txid types.TxID) (*node.TxInfo, error)
	Broadcast(ctx context.Context, txHex string) (types.TxID, error)
	SendToAddress(ctx context.Context, address string, sats uint64) (types.TxID, error)
	IsSpent(ctx context.Context, op types.Outpoint) (bool, error)
}

// Wallet provides the solver's own coins for pay-to-play contributions.
type Wallet interface {
	ListUnspent(ctx context.Context, minConf int64) ([]types.Utxo, error)
	NewAddress(ctx context.Context) (string, error)
	SignTransaction(ctx context.Context, txHex string, foreign ...types.Outpoint) (string, error)
}

// Engine drives puzzles on one network.
type Engine struct {
	params        *network.Params
	node          NodeClient
	wallet        Wallet
	book          *book.Book
	networkFee    uint64
	feeRate       uint64
	minConf       int64
	kdf           wallet.KDFParams
	publicFunding bool
	logger        zerolog.Logger
	now           func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithWallet sets the wallet used for pay-to-play fee inputs.
func WithWallet(w Wallet) Option {
	return func(e *Engine) { e.wallet = w }
}

// WithBook records observed states in a puzzle book.
func WithBook(b *book.Book) Option {
	return func(e *Engine) { e.book = b }
}

// WithNetworkFee overrides DefaultNetworkFee.
func WithNetworkFee(sats uint64) Option {
	return func(e *Engine) { e.networkFee = sats }
}

// WithFeeRate sets the sat/kvB floor a solution's fee is checked against.
// Zero disables the check.
func WithFeeRate(satsPerKvB uint64) Option {
	return func(e *Engine) { e.feeRate = satsPerKvB }
}

// WithMinConfirmations sets how many confirmations a wallet output needs
// before it may fund a contribution.
func WithMinConfirmations(n int64) Option {
	return func(e *Engine) { e.minConf = n }
}

// WithKDFParams sets the Argon2id cost used when sealing secrets.
func WithKDFParams(p wallet.KDFParams) Option {
	return func(e *Engine) { e.kdf = p }
}

// WithPublicFunding allows Create and AddFunds to pay covenant addresses
// on public networks.
func WithPublicFunding(allow bool) Option {
	return func(e *Engine) { e.publicFunding = allow }
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine. node may be nil for the offline operations
// (Derive, Check, Export).
func New(params *network.Params, nc NodeClient, opts ...Option) (*Engine, error) {
	if params == nil {
		return nil, ErrNoNetwork
	}
	e := &Engine{
		params:     params,
		node:       nc,
		networkFee: DefaultNetworkFee,
		minConf:    1,
		kdf:        wallet.DefaultKDFParams(),
		logger:     zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Puzzle is the deterministic derivation chain of one puzzle:
// commitment, compiled covenant and taproot output.
type Puzzle struct {
	Variant    covenant.Variant
	Commitment types.Hash
	Program    *covenant.Program
	Spend      *taproot.SpendInfo
}

// Address returns the puzzle's funding address.
func (p *Puzzle) Address() string {
	return p.Spend.Address
}

// Derive compiles the covenant for commitment and builds its address.
// Creation and solving both go through here, so they agree bit for bit.
func (e *Engine) Derive(v covenant.Variant, h types.Hash) (*Puzzle, error) {
	prog, err := covenant.Compile(v, h)
	if err != nil {
		return nil, err
	}
	spend, err := taproot.Build(prog.Bytes(), e.params)
	if err != nil {
		return nil, err
	}
	return &Puzzle{Variant: v, Commitment: h, Program: prog, Spend: spend}, nil
}

// DeriveSecret derives the puzzle for a secret.
func (e *Engine) DeriveSecret(v covenant.Variant, secret []byte) (*Puzzle, error) {
	return e.Derive(v, commitment.Derive(secret))
}

func (e *Engine) requireNode() error {
	if e.node == nil {
		return fmt.Errorf("%w: no node client", ErrNoNetwork)
	}
	return nil
}

// requireFundable refuses payments to covenant addresses on public networks
// unless explicitly allowed. Released Liquid nodes do not accept the
// covenant's leaf yet, so coins sent there could not be claimed.
func (e *Engine) requireFundable() error {
	if e.params.Public && !e.publicFunding {
		return fmt.Errorf("%w: %s", ErrPublicFunding, e.params.Name)
	}
	return nil
}
