// Package commitment derives the public hash a puzzle is locked to.
//
// A secret is first canonicalized into a fixed 32-byte preimage: the secret
// bytes are right-aligned and zero-padded on the left. Secrets longer than
// 32 bytes keep only their last 32 bytes. The commitment is SHA-256 of
// that preimage.
package commitment

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/Klingon-tech/puzzle-jackpot/pkg/crypto"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
)

// PreimageSize is the width of the canonical preimage.
const PreimageSize = 32

// ErrMismatch is returned when a secret does not hash to the expected commitment.
var ErrMismatch = errors.New("secret does not match commitment")

// Canonicalize returns the 32-byte preimage for a secret.
func Canonicalize(secret []byte) [PreimageSize]byte {
	var out [PreimageSize]byte
	if len(secret) > PreimageSize {
		secret = secret[len(secret)-PreimageSize:]
	}
	copy(out[PreimageSize-len(secret):], secret)
	return out
}

// Derive returns SHA256(Canonicalize(secret)).
func Derive(secret []byte) types.Hash {
	pre := Canonicalize(secret)
	return crypto.SHA256(pre[:])
}

// Verify checks that secret commits to target.
func Verify(secret []byte, target types.Hash) error {
	got := Derive(secret)
	if subtle.ConstantTimeCompare(got[:], target[:]) != 1 {
		return fmt.Errorf("%w: got %s, want %s", ErrMismatch, got, target)
	}
	return nil
}

// Truncated reports whether Canonicalize drops bytes from secret.
func Truncated(secret []byte) bool {
	return len(secret) > PreimageSize
}
