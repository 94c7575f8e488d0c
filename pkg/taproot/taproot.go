// Package taproot builds the single-leaf, script-path-only taproot output
// that locks a puzzle.
//
// Elements uses its own tagged-hash domains ("TapLeaf/elements",
// "TapTweak/elements"), so the leaf hash and key tweak are computed here
// rather than with the Bitcoin helpers in txscript.
package taproot

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Klingon-tech/puzzle-jackpot/pkg/crypto"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/network"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// LeafVersion is the Elements tapscript leaf version; Bitcoin uses 0xc0.
const LeafVersion txscript.TapscriptLeafVersion = 0xc4

// NUMSKeyHex is the BIP-341 "nothing up my sleeve" x-only point. Nobody
// knows its discrete log, so the key path can never be used.
const NUMSKeyHex = "50929b74c1a04954b78b4b6035e97a5e078a5a0f28ec96d547bfee9ace803ac0"

// Tagged-hash domains.
const (
	TagLeaf  = "TapLeaf/elements"
	TagTweak = "TapTweak/elements"
)

// Errors.
var (
	ErrTreeConstruction = errors.New("taproot tree construction failed")
	ErrControlBlock     = errors.New("control block does not commit to output key")
)

var numsKey *btcec.PublicKey

func init() {
	raw, err := hex.DecodeString(NUMSKeyHex)
	if err != nil {
		panic(err)
	}
	numsKey, err = schnorr.ParsePubKey(raw)
	if err != nil {
		panic(fmt.Sprintf("parse NUMS key: %v", err))
	}
}

// InternalKey returns the unspendable internal key.
func InternalKey() *btcec.PublicKey {
	return numsKey
}

// SpendInfo carries everything needed to pay to and spend from a puzzle output.
type SpendInfo struct {
	LeafScript   []byte
	// LeafHash is the covenant commitment root and, for a single leaf,
	// the merkle root.
	LeafHash     types.Hash
	InternalKey  *btcec.PublicKey
	OutputKey    *btcec.PublicKey
	ControlBlock []byte
	ScriptPubKey []byte
	Address      string
}

// LeafHash computes TaggedHash(TapLeaf/elements, version || compact(len) || script).
func LeafHash(version txscript.TapscriptLeafVersion, script []byte) types.Hash {
	var buf bytes.Buffer
	buf.WriteByte(byte(version))
	// bytes.Buffer writes cannot fail.
	_ = wire.WriteVarBytes(&buf, 0, script)
	return crypto.TaggedHash(TagLeaf, buf.Bytes())
}

// TweakKey returns internal + TaggedHash(TapTweak/elements, x(internal) || merkleRoot)·G.
func TweakKey(internal *btcec.PublicKey, merkleRoot types.Hash) (*btcec.PublicKey, error) {
	t := crypto.TaggedHash(TagTweak, schnorr.SerializePubKey(internal), merkleRoot[:])

	var k secp256k1.ModNScalar
	if overflow := k.SetByteSlice(t[:]); overflow {
		return nil, fmt.Errorf("%w: tweak exceeds curve order", ErrTreeConstruction)
	}

	var p, tG, q secp256k1.JacobianPoint
	internal.AsJacobian(&p)
	secp256k1.ScalarBaseMultNonConst(&k, &tG)
	secp256k1.AddNonConst(&p, &tG, &q)
	if (q.X.IsZero() && q.Y.IsZero()) || q.Z.IsZero() {
		return nil, fmt.Errorf("%w: tweaked key is infinity", ErrTreeConstruction)
	}
	q.ToAffine()
	return secp256k1.NewPublicKey(&q.X, &q.Y), nil
}

// Build places a covenant leaf script as the only leaf of a taproot tree
// over the NUMS internal key and derives the address for params.
func Build(leafScript []byte, params *network.Params) (*SpendInfo, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: no network parameters", ErrTreeConstruction)
	}
	if len(leafScript) == 0 {
		return nil, fmt.Errorf("%w: empty leaf script", ErrTreeConstruction)
	}
	leafScript = append([]byte(nil), leafScript...)
	leaf := LeafHash(LeafVersion, leafScript)

	// A single-leaf tree has the leaf hash as its merkle root.
	outputKey, err := TweakKey(numsKey, leaf)
	if err != nil {
		return nil, err
	}

	cb := txscript.ControlBlock{
		InternalKey:     numsKey,
		OutputKeyYIsOdd: outputKey.SerializeCompressed()[0] == secp256k1.PubKeyFormatCompressedOdd,
		LeafVersion:     LeafVersion,
	}
	cbBytes, err := cb.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: control block: %v", ErrTreeConstruction, err)
	}

	spk, err := txscript.PayToTaprootScript(outputKey)
	if err != nil {
		return nil, fmt.Errorf("%w: output script: %v", ErrTreeConstruction, err)
	}

	addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey), params.Chain())
	if err != nil {
		return nil, fmt.Errorf("%w: address: %v", ErrTreeConstruction, err)
	}

	return &SpendInfo{
		LeafScript:   leafScript,
		LeafHash:     leaf,
		InternalKey:  numsKey,
		OutputKey:    outputKey,
		ControlBlock: cbBytes,
		ScriptPubKey: spk,
		Address:      addr.EncodeAddress(),
	}, nil
}

// WitnessStack returns the script-path witness in its fixed order: the
// covenant witness items, the leaf script, the control block.
func (s *SpendInfo) WitnessStack(witness [][]byte) [][]byte {
	stack := make([][]byte, 0, len(witness)+2)
	for _, w := range witness {
		stack = append(stack, append([]byte(nil), w...))
	}
	return append(stack,
		append([]byte(nil), s.LeafScript...),
		append([]byte(nil), s.ControlBlock...),
	)
}

// VerifyControlBlock checks that a control block and leaf script commit to
// the x-only output key found in a witness v1 scriptPubKey.
func VerifyControlBlock(controlBlock, leafScript, outputKeyX []byte) error {
	cb, err := txscript.ParseControlBlock(controlBlock)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrControlBlock, err)
	}
	if len(cb.InclusionProof) != 0 {
		return fmt.Errorf("%w: unexpected merkle path", ErrControlBlock)
	}
	q, err := TweakKey(cb.InternalKey, LeafHash(cb.LeafVersion, leafScript))
	if err != nil {
		return err
	}
	if !bytes.Equal(schnorr.SerializePubKey(q), outputKeyX) {
		return fmt.Errorf("%w: derived %x", ErrControlBlock, schnorr.SerializePubKey(q))
	}
	odd := q.SerializeCompressed()[0] == secp256k1.PubKeyFormatCompressedOdd
	if odd != cb.OutputKeyYIsOdd {
		return fmt.Errorf("%w: parity mismatch", ErrControlBlock)
	}
	return nil
}
