package node

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
)

// TxInfo is a decoded transaction as reported by the node.
type TxInfo struct {
	TxID          types.TxID
	Hex           string
	Confirmations int64
	BlockHash     string
	Inputs        []TxInput
	Outputs       []TxOutput
}

// TxInput is one decoded input.
type TxInput struct {
	PrevOut  types.Outpoint
	Coinbase bool
	Witness  [][]byte
}

// TxOutput is one decoded output. Value and Asset are zero for blinded
// outputs.
type TxOutput struct {
	Index        uint32
	Value        uint64
	Asset        types.AssetID
	Address      string
	Script       []byte
	Fee          bool
	Confidential bool
}

// OutputsTo returns the outputs paying address.
func (t *TxInfo) OutputsTo(address string) []TxOutput {
	var outs []TxOutput
	for _, o := range t.Outputs {
		if o.Address == address {
			outs = append(outs, o)
		}
	}
	return outs
}

// amount decodes a JSON coin amount (8 decimal places) into sats.
type amount uint64

func (a *amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if v, err := types.ParseAmount(s); err == nil {
		*a = amount(v)
		return nil
	}
	// Exponent notation from non-bitcoind encoders.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > float64(math.MaxInt64)/float64(types.Coin) {
		return fmt.Errorf("invalid amount %s", data)
	}
	*a = amount(math.Round(f * float64(types.Coin)))
	return nil
}

// amountParam renders sats as a JSON number literal with 8 decimals.
func amountParam(sats uint64) json.Number {
	return json.Number(types.FormatAmount(sats))
}

// parseAsset decodes an asset field, falling back to def when the node
// omits it.
func parseAsset(s string, def types.AssetID) (types.AssetID, error) {
	if s == "" {
		return def, nil
	}
	return types.HexToAssetID(s)
}

// errBlinded marks an output whose amount the node cannot show.
var errBlinded = errors.New("output is blinded")

type scanResult struct {
	Success  bool          `json:"success"`
	Height   int64         `json:"height"`
	Unspents []scanUnspent `json:"unspents"`
}

type scanUnspent struct {
	TxID         string  `json:"txid"`
	Vout         uint32  `json:"vout"`
	ScriptPubKey string  `json:"scriptPubKey"`
	Amount       *amount `json:"amount"`
	Asset        string  `json:"asset"`
	Height       int64   `json:"height"`
}

func (u scanUnspent) toUtxo(tip int64, policy types.AssetID) (types.Utxo, error) {
	txid, err := types.HexToTxID(u.TxID)
	if err != nil {
		return types.Utxo{}, err
	}
	if u.Amount == nil {
		return types.Utxo{}, fmt.Errorf("%w: %s:%d", errBlinded, u.TxID, u.Vout)
	}
	asset, err := parseAsset(u.Asset, policy)
	if err != nil {
		return types.Utxo{}, err
	}
	script, err := hex.DecodeString(u.ScriptPubKey)
	if err != nil {
		return types.Utxo{}, fmt.Errorf("script of %s:%d: %w", u.TxID, u.Vout, err)
	}
	var confs int64
	if u.Height > 0 && tip >= u.Height {
		confs = tip - u.Height + 1
	}
	return types.Utxo{
		Outpoint:      types.Outpoint{TxID: txid, Index: u.Vout},
		Value:         uint64(*u.Amount),
		Asset:         asset,
		ScriptPubKey:  script,
		Confirmations: confs,
	}, nil
}

type walletUnspent struct {
	TxID          string  `json:"txid"`
	Vout          uint32  `json:"vout"`
	ScriptPubKey  string  `json:"scriptPubKey"`
	Amount        *amount `json:"amount"`
	Asset         string  `json:"asset"`
	AmountBlinder string  `json:"amountblinder"`
	AssetBlinder  string  `json:"assetblinder"`
	Confirmations int64   `json:"confirmations"`
	Spendable     bool    `json:"spendable"`
}

func (u walletUnspent) toUtxo(policy types.AssetID) (types.Utxo, error) {
	s := scanUnspent{TxID: u.TxID, Vout: u.Vout, ScriptPubKey: u.ScriptPubKey, Amount: u.Amount, Asset: u.Asset}
	utxo, err := s.toUtxo(0, policy)
	if err != nil {
		return types.Utxo{}, err
	}
	utxo.Confirmations = u.Confirmations
	utxo.Confidential = blinded(u.AmountBlinder) || blinded(u.AssetBlinder)
	return utxo, nil
}

// blinded reports whether a wallet blinding factor is set. Explicit outputs
// list an all-zero factor, or none at all.
func blinded(factor string) bool {
	return strings.Trim(factor, "0") != ""
}

type rawTx struct {
	TxID          string `json:"txid"`
	Hex           string `json:"hex"`
	Confirmations int64  `json:"confirmations"`
	BlockHash     string `json:"blockhash"`
	Vin           []struct {
		Coinbase    string   `json:"coinbase"`
		TxID        string   `json:"txid"`
		Vout        uint32   `json:"vout"`
		TxInWitness []string `json:"txinwitness"`
	} `json:"vin"`
	Vout []struct {
		Value        *amount `json:"value"`
		Asset        string  `json:"asset"`
		N            uint32  `json:"n"`
		ScriptPubKey struct {
			Hex     string `json:"hex"`
			Type    string `json:"type"`
			Address string `json:"address"`
		} `json:"scriptPubKey"`
	} `json:"vout"`
}

func (r *rawTx) toInfo() (*TxInfo, error) {
	txid, err := types.HexToTxID(r.TxID)
	if err != nil {
		return nil, fmt.Errorf("txid: %w", err)
	}
	info := &TxInfo{
		TxID:          txid,
		Hex:           r.Hex,
		Confirmations: r.Confirmations,
		BlockHash:     r.BlockHash,
	}

	for i, in := range r.Vin {
		if in.Coinbase != "" {
			info.Inputs = append(info.Inputs, TxInput{Coinbase: true})
			continue
		}
		prev, err := types.HexToTxID(in.TxID)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		witness := make([][]byte, 0, len(in.TxInWitness))
		for j, w := range in.TxInWitness {
			b, err := hex.DecodeString(w)
			if err != nil {
				return nil, fmt.Errorf("input %d witness %d: %w", i, j, err)
			}
			witness = append(witness, b)
		}
		info.Inputs = append(info.Inputs, TxInput{
			PrevOut: types.Outpoint{TxID: prev, Index: in.Vout},
			Witness: witness,
		})
	}

	for _, out := range r.Vout {
		script, err := hex.DecodeString(out.ScriptPubKey.Hex)
		if err != nil {
			return nil, fmt.Errorf("output %d script: %w", out.N, err)
		}
		o := TxOutput{
			Index:   out.N,
			Address: out.ScriptPubKey.Address,
			Script:  script,
			Fee:     out.ScriptPubKey.Type == "fee",
		}
		if out.Value == nil || out.Asset == "" {
			o.Confidential = true
		} else {
			o.Value = uint64(*out.Value)
			if o.Asset, err = types.HexToAssetID(out.Asset); err != nil {
				return nil, fmt.Errorf("output %d asset: %w", out.N, err)
			}
		}
		info.Outputs = append(info.Outputs, o)
	}
	return info, nil
}
