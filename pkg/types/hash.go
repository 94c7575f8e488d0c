// Package types defines core primitive types shared by the puzzle packages.
package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// HashSize is the length of a hash in bytes.
const HashSize = 32

// Hash represents a 256-bit value printed in natural byte order.
// Commitments and covenant roots use it.
type Hash [HashSize]byte

// TxID identifies a transaction. It is stored in internal (wire) byte
// order and printed reversed, the way node RPCs display it.
type TxID Hash

// AssetID identifies an issued asset. Like TxID it is stored in wire
// order and printed reversed.
type AssetID Hash

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the hex-encoded hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// MarshalJSON encodes the hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string into a hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Hash{}
		return nil
	}
	parsed, err := HexToHash(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// HexToHash converts a hex string to a Hash. An optional "0x" prefix is
// accepted. Returns an error if the rest is not exactly 64 hex characters.
func HexToHash(s string) (Hash, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// HexToTxID parses a transaction id in display (reversed) order.
func HexToTxID(s string) (TxID, error) {
	h, err := parseReversed(s)
	return TxID(h), err
}

// IsZero returns true if the txid is all zeros.
func (t TxID) IsZero() bool {
	return Hash(t).IsZero()
}

// String returns the txid in display order.
func (t TxID) String() string {
	return chainhash.Hash(t).String()
}

// MarshalJSON encodes the txid in display order.
func (t TxID) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a display-order txid.
func (t *TxID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*t = TxID{}
		return nil
	}
	parsed, err := HexToTxID(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// HexToAssetID parses an asset id in display (reversed) order.
func HexToAssetID(s string) (AssetID, error) {
	h, err := parseReversed(s)
	return AssetID(h), err
}

// IsZero returns true if the asset id is all zeros.
func (a AssetID) IsZero() bool {
	return Hash(a).IsZero()
}

// String returns the asset id in display order.
func (a AssetID) String() string {
	return chainhash.Hash(a).String()
}

// MarshalJSON encodes the asset id in display order.
func (a AssetID) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a display-order asset id.
func (a *AssetID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*a = AssetID{}
		return nil
	}
	parsed, err := HexToAssetID(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func parseReversed(s string) (Hash, error) {
	if len(s) != HashSize*2 {
		return Hash{}, fmt.Errorf("hash must be %d hex characters, got %d", HashSize*2, len(s))
	}
	ch, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	return Hash(*ch), nil
}
