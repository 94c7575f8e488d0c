package puzzle

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Klingon-tech/puzzle-jackpot/internal/node"
	"github.com/Klingon-tech/puzzle-jackpot/internal/record"
	"github.com/Klingon-tech/puzzle-jackpot/internal/wallet"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/commitment"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/covenant"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/network"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/tx"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindOther},
		{errors.New("dial tcp: connection refused"), KindOther},
		{ErrNoNetwork, KindConfiguration},
		{network.ErrUnknownNetwork, KindConfiguration},
		{fmt.Errorf("compile: %w", covenant.ErrCompile), KindConfiguration},
		{network.ErrConfidentialAddress, KindInput},
		{record.ErrInvalid, KindInput},
		{wallet.ErrWrongPassphrase, KindInput},
		{ErrNoUTXO, KindPrecondition},
		{tx.ErrInsufficientValue, KindPrecondition},
		{wallet.ErrInsufficientFunds, KindPrecondition},
		{fmt.Errorf("x: %w", node.ErrScanFailed), KindPrecondition},
		{commitment.ErrMismatch, KindCryptoMismatch},
		{&covenant.SatisfactionError{Index: 3, Err: covenant.ErrVerifyFailed}, KindCryptoMismatch},
		{ErrAddressMismatch, KindCryptoMismatch},
		{fmt.Errorf("broadcast: %w", node.ErrRejected), KindBroadcast},
		{node.ErrAlreadySpent, KindBroadcast},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindCryptoMismatch.String() != "crypto-mismatch" || Kind(99).String() != "other" {
		t.Error("unexpected kind names")
	}
}
