package puzzle

import (
	"encoding/base64"
	"fmt"

	"github.com/Klingon-tech/puzzle-jackpot/pkg/covenant"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
)

// CheckResult compares a derivation against an expected address.
type CheckResult struct {
	Puzzle *Puzzle
	// Match is false when an expected address was given and differs.
	Match bool
}

// Check recompiles the covenant for h and compares the derived address with
// expected. An empty expected address only derives.
func (e *Engine) Check(v covenant.Variant, h types.Hash, expected string) (*CheckResult, error) {
	p, err := e.Derive(v, h)
	if err != nil {
		return nil, err
	}
	res := &CheckResult{Puzzle: p, Match: true}
	if expected != "" {
		if _, err := e.params.DecodeAddress(expected); err != nil {
			return nil, err
		}
		res.Match = expected == p.Address()
	}
	return res, nil
}

// Export returns the compiled program, without witness, base64 encoded.
func (e *Engine) Export(v covenant.Variant, h types.Hash) (string, *Puzzle, error) {
	p, err := e.Derive(v, h)
	if err != nil {
		return "", nil, err
	}
	return base64.StdEncoding.EncodeToString(p.Program.Bytes()), p, nil
}

// ParseCommitment parses a 32-byte hex commitment with optional 0x prefix.
func ParseCommitment(s string) (types.Hash, error) {
	h, err := types.HexToHash(s)
	if err != nil {
		return types.Hash{}, fmt.Errorf("%w: commitment: %v", ErrInvalidInput, err)
	}
	return h, nil
}
