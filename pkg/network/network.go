// Package network describes the Elements networks puzzles can live on.
package network

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Address errors.
var (
	ErrUnknownNetwork      = errors.New("unknown network")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrConfidentialAddress = errors.New("confidential addresses are not supported")
	ErrWrongNetwork        = errors.New("address belongs to another network")
)

// Params holds the per-network constants.
type Params struct {
	Name string

	// Bech32HRP is the human-readable part of unconfidential segwit addresses.
	Bech32HRP string
	// Blech32HRP is the prefix of confidential segwit addresses.
	Blech32HRP string

	PubKeyHashAddrID   byte
	ScriptHashAddrID   byte
	ConfidentialAddrID byte

	// PolicyAsset is the network's fee asset, in display order.
	PolicyAsset string
	RPCPort     int
	// Public networks carry real value.
	Public bool

	chain *chaincfg.Params
}

// Chain returns btcd-compatible parameters used for address encoding.
func (p *Params) Chain() *chaincfg.Params {
	return p.chain
}

// PolicyAssetID returns the parsed policy asset.
func (p *Params) PolicyAssetID() types.AssetID {
	// Literals below are validated in init.
	id, _ := types.HexToAssetID(p.PolicyAsset)
	return id
}

// Known networks.
var (
	Liquid = &Params{
		Name:               "liquid",
		Bech32HRP:          "ex",
		Blech32HRP:         "lq",
		PubKeyHashAddrID:   57,
		ScriptHashAddrID:   39,
		ConfidentialAddrID: 12,
		PolicyAsset:        "6f0279e9ed041c3d710a9f57d0c02928416460c4b722ae3457a11eec381c526d",
		RPCPort:            7041,
		Public:             true,
	}

	LiquidTestnet = &Params{
		Name:               "liquidtestnet",
		Bech32HRP:          "tex",
		Blech32HRP:         "tlq",
		PubKeyHashAddrID:   36,
		ScriptHashAddrID:   19,
		ConfidentialAddrID: 23,
		PolicyAsset:        "144c654344aa716d6f3abcc1ca90e5641e4e2a7f633bc09fe3baf64585819a49",
		RPCPort:            18891,
		Public:             true,
	}

	ElementsRegtest = &Params{
		Name:               "elementsregtest",
		Bech32HRP:          "ert",
		Blech32HRP:         "el",
		PubKeyHashAddrID:   235,
		ScriptHashAddrID:   75,
		ConfidentialAddrID: 4,
		PolicyAsset:        "b2e15d0d7a0c94e4e2ce0fe6e8691b9e451377f6e46e8045a86f7c4b5d4f0f23",
		RPCPort:            18884,
	}
)

var all = []*Params{Liquid, LiquidTestnet, ElementsRegtest}

func init() {
	// Network magics only need to be distinct from btcd's own networks.
	magics := []wire.BitcoinNet{0x4c514d4e, 0x4c515453, 0x454c5254}
	for i, p := range all {
		if _, err := types.HexToAssetID(p.PolicyAsset); err != nil {
			panic(fmt.Sprintf("network %s: bad policy asset: %v", p.Name, err))
		}
		p.chain = &chaincfg.Params{
			Name:             p.Name,
			Net:              magics[i],
			Bech32HRPSegwit:  p.Bech32HRP,
			PubKeyHashAddrID: p.PubKeyHashAddrID,
			ScriptHashAddrID: p.ScriptHashAddrID,
		}
		// btcutil only recognizes segwit prefixes of registered networks.
		if err := chaincfg.Register(p.chain); err != nil && !errors.Is(err, chaincfg.ErrDuplicateNet) {
			panic(fmt.Sprintf("register network %s: %v", p.Name, err))
		}
	}
}

// ByName returns the parameters for a network name. The empty name and a
// few common aliases select regtest.
func ByName(name string) (*Params, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "liquid", "liquidv1", "mainnet":
		return Liquid, nil
	case "liquidtestnet", "testnet":
		return LiquidTestnet, nil
	case "", "elementsregtest", "regtest":
		return ElementsRegtest, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
	}
}

// Names lists the canonical network names.
func Names() []string {
	names := make([]string, len(all))
	for i, p := range all {
		names[i] = p.Name
	}
	return names
}

// DecodeAddress parses an unconfidential address for this network.
func (p *Params) DecodeAddress(addr string) (btcutil.Address, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if p.isConfidential(addr) {
		return nil, fmt.Errorf("%w: %s", ErrConfidentialAddress, addr)
	}
	a, err := btcutil.DecodeAddress(addr, p.chain)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, addr, err)
	}
	if !a.IsForNet(p.chain) {
		return nil, fmt.Errorf("%w: %s is not a %s address", ErrWrongNetwork, addr, p.Name)
	}
	return a, nil
}

// ScriptPubKey decodes addr and returns its output script.
func (p *Params) ScriptPubKey(addr string) ([]byte, error) {
	a, err := p.DecodeAddress(addr)
	if err != nil {
		return nil, err
	}
	script, err := txscript.PayToAddrScript(a)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, addr, err)
	}
	return script, nil
}

func (p *Params) isConfidential(addr string) bool {
	lower := strings.ToLower(addr)
	for _, q := range all {
		if strings.HasPrefix(lower, q.Blech32HRP+"1") {
			return true
		}
	}
	if _, version, err := base58.CheckDecode(addr); err == nil {
		for _, q := range all {
			if version == q.ConfidentialAddrID {
				return true
			}
		}
	}
	return false
}
