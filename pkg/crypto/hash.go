// Package crypto provides the hash primitives used across the puzzle packages.
package crypto

import (
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	sha256 "github.com/minio/sha256-simd"
	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
// It is used for local fingerprints only, never for anything a node checks.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// SHA256 computes a single SHA-256 of the input data.
func SHA256(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// DoubleSHA256 computes SHA256(SHA256(data)), the transaction id hash.
func DoubleSHA256(data []byte) types.Hash {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// TaggedHash computes SHA256(SHA256(tag) || SHA256(tag) || msgs...).
func TaggedHash(tag string, msgs ...[]byte) types.Hash {
	return types.Hash(*chainhash.TaggedHash([]byte(tag), msgs...))
}
