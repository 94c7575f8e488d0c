package puzzle

import (
	"errors"

	"github.com/Klingon-tech/puzzle-jackpot/internal/node"
	"github.com/Klingon-tech/puzzle-jackpot/internal/record"
	"github.com/Klingon-tech/puzzle-jackpot/internal/wallet"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/commitment"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/covenant"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/network"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/taproot"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/tx"
)

// Engine errors.
var (
	ErrNoNetwork       = errors.New("no network parameters configured")
	ErrNoWallet        = errors.New("operation needs a wallet")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNoUTXO          = errors.New("no unspent output at puzzle address")
	ErrAddressMismatch = errors.New("derived address does not match")
	ErrSignerChangedTx = errors.New("wallet changed the transaction while signing")
	ErrPublicFunding   = errors.New("funding covenants on a public network is disabled")
)

// Kind classifies errors so callers can decide whether to abort, fix input,
// retry later or give up on an attempt.
type Kind int

const (
	// KindOther covers transport failures and anything unclassified.
	KindOther Kind = iota
	// KindConfiguration is fatal and raised before any node call.
	KindConfiguration
	// KindInput means the caller supplied something unparsable.
	KindInput
	// KindPrecondition is recoverable: fund more, wait or retry later.
	KindPrecondition
	// KindCryptoMismatch means the secret or derivation does not match.
	KindCryptoMismatch
	// KindBroadcast is a terminal rejection of this attempt by the network.
	KindBroadcast
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindInput:
		return "input"
	case KindPrecondition:
		return "precondition"
	case KindCryptoMismatch:
		return "crypto-mismatch"
	case KindBroadcast:
		return "broadcast"
	default:
		return "other"
	}
}

var kinds = []struct {
	kind Kind
	errs []error
}{
	// Mismatch first: a failed covenant check can wrap arithmetic causes.
	{KindCryptoMismatch, []error{
		commitment.ErrMismatch,
		covenant.ErrSatisfaction,
		ErrAddressMismatch,
	}},
	{KindBroadcast, []error{
		node.ErrRejected,
		node.ErrAlreadySpent,
	}},
	{KindConfiguration, []error{
		ErrNoNetwork,
		ErrNoWallet,
		ErrPublicFunding,
		network.ErrUnknownNetwork,
		covenant.ErrCompile,
		covenant.ErrBadProgram,
		covenant.ErrUnknownKind,
		taproot.ErrTreeConstruction,
	}},
	{KindInput, []error{
		ErrInvalidInput,
		network.ErrInvalidAddress,
		network.ErrConfidentialAddress,
		network.ErrWrongNetwork,
		record.ErrInvalid,
		record.ErrNoSecret,
		wallet.ErrWordCount,
		wallet.ErrWrongPassphrase,
		wallet.ErrSealedFormat,
		wallet.ErrEmptyPassphrase,
	}},
	{KindPrecondition, []error{
		ErrNoUTXO,
		ErrSignerChangedTx,
		tx.ErrInsufficientValue,
		tx.ErrContributionTooLow,
		tx.ErrAssetMismatch,
		tx.ErrMissingFeeInput,
		wallet.ErrInsufficientFunds,
		wallet.ErrNoUTXOs,
		node.ErrSigning,
		node.ErrNotFound,
		node.ErrScanFailed,
	}},
}

// KindOf returns the category of err.
func KindOf(err error) Kind {
	if err == nil {
		return KindOther
	}
	for _, k := range kinds {
		for _, target := range k.errs {
			if errors.Is(err, target) {
				return k.kind
			}
		}
	}
	return KindOther
}
