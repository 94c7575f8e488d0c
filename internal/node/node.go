// Package node talks to an Elements node over JSON-RPC. It provides the
// chain queries and broadcast the puzzle engine needs, and the wallet calls
// used to fund pay-to-play contributions.
package node

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/Klingon-tech/puzzle-jackpot/internal/rpcclient"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/network"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
	"github.com/rs/zerolog"
)

// Node errors.
var (
	ErrAlreadySpent = errors.New("outputs already spent")
	ErrRejected     = errors.New("transaction rejected by node")
	ErrNotFound     = errors.New("not found")
	ErrScanFailed   = errors.New("utxo scan failed")
	ErrSigning      = errors.New("wallet could not sign transaction")
)

// Elements RPC error codes the client interprets.
const (
	codeInvalidAddressOrKey = -5
	codeVerifyError         = -25
	codeVerifyRejected      = -26
	codeAlreadyInChain      = -27
	codeScanInProgress      = -8
)

// Client implements the node and wallet capabilities on top of an RPC
// connection. Wallet calls go to the named wallet endpoint when one is set.
type Client struct {
	rpc    *rpcclient.Client
	wallet *rpcclient.Client
	params *network.Params
	logger zerolog.Logger
}

// New wraps rpc. walletName selects a loaded node wallet; empty uses the
// node's default wallet.
func New(rpc *rpcclient.Client, walletName string, params *network.Params, logger zerolog.Logger) *Client {
	return &Client{
		rpc:    rpc,
		wallet: rpc.ForWallet(walletName),
		params: params,
		logger: logger,
	}
}

// FindUnspent scans the UTXO set for outputs paying address.
func (c *Client) FindUnspent(ctx context.Context, address string) ([]types.Utxo, error) {
	var res scanResult
	desc := fmt.Sprintf("addr(%s)", address)
	err := c.rpc.Call(ctx, "scantxoutset", []interface{}{"start", []string{desc}}, &res)
	if code, ok := rpcclient.Code(err); ok && code == codeScanInProgress {
		// A previous scan is still running; abort it and retry once.
		_ = c.rpc.Call(ctx, "scantxoutset", []interface{}{"abort"}, nil)
		err = c.rpc.Call(ctx, "scantxoutset", []interface{}{"start", []string{desc}}, &res)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScanFailed, err)
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: node reported failure for %s", ErrScanFailed, address)
	}

	utxos := make([]types.Utxo, 0, len(res.Unspents))
	for _, u := range res.Unspents {
		utxo, err := u.toUtxo(res.Height, c.params.PolicyAssetID())
		if errors.Is(err, errBlinded) {
			// The covenant only inspects explicit values.
			c.logger.Debug().Str("address", address).Str("txid", u.TxID).Uint32("vout", u.Vout).Msg("Skipping blinded output")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("scantxoutset: %w", err)
		}
		utxos = append(utxos, utxo)
	}
	c.logger.Debug().Str("address", address).Int("found", len(utxos)).Int("scanned", len(res.Unspents)).Msg("Scanned UTXO set")
	return utxos, nil
}

// GetTransaction fetches a transaction with its decoded inputs and outputs.
func (c *Client) GetTransaction(ctx context.Context, txid types.TxID) (*TxInfo, error) {
	var raw rawTx
	err := c.rpc.Call(ctx, "getrawtransaction", []interface{}{txid.String(), true}, &raw)
	if code, ok := rpcclient.Code(err); ok && code == codeInvalidAddressOrKey {
		return nil, fmt.Errorf("transaction %s: %w", txid, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getrawtransaction: %w", err)
	}
	return raw.toInfo()
}

// Broadcast submits a serialized transaction and returns its txid.
func (c *Client) Broadcast(ctx context.Context, txHex string) (types.TxID, error) {
	var txid string
	if err := c.rpc.Call(ctx, "sendrawtransaction", []interface{}{txHex}, &txid); err != nil {
		return types.TxID{}, classifyBroadcast(err)
	}
	id, err := types.HexToTxID(txid)
	if err != nil {
		return types.TxID{}, fmt.Errorf("sendrawtransaction returned %q: %w", txid, err)
	}
	c.logger.Info().Str("txid", txid).Msg("Transaction broadcast")
	return id, nil
}

func classifyBroadcast(err error) error {
	var rpcErr *rpcclient.RPCError
	if !errors.As(err, &rpcErr) {
		return fmt.Errorf("sendrawtransaction: %w", err)
	}
	msg := strings.ToLower(rpcErr.Message)
	switch {
	case rpcErr.Code == codeAlreadyInChain:
		return fmt.Errorf("%w: %s", ErrAlreadySpent, rpcErr.Message)
	case rpcErr.Code == codeVerifyError && (strings.Contains(msg, "missing") || strings.Contains(msg, "spent")):
		return fmt.Errorf("%w: %s", ErrAlreadySpent, rpcErr.Message)
	case rpcErr.Code == codeVerifyRejected && strings.Contains(msg, "conflict"):
		return fmt.Errorf("%w: %s", ErrAlreadySpent, rpcErr.Message)
	case rpcErr.Code == codeVerifyError || rpcErr.Code == codeVerifyRejected:
		return fmt.Errorf("%w: %s", ErrRejected, rpcErr.Message)
	default:
		return fmt.Errorf("sendrawtransaction: %w", err)
	}
}

// IsSpent reports whether outpoint is no longer in the UTXO set, counting
// mempool spends.
func (c *Client) IsSpent(ctx context.Context, op types.Outpoint) (bool, error) {
	var out *struct {
		Confirmations int64 `json:"confirmations"`
	}
	if err := c.rpc.Call(ctx, "gettxout", []interface{}{op.TxID.String(), op.Index, true}, &out); err != nil {
		return false, fmt.Errorf("gettxout: %w", err)
	}
	return out == nil, nil
}

// SendToAddress pays sats to address from the node wallet.
func (c *Client) SendToAddress(ctx context.Context, address string, sats uint64) (types.TxID, error) {
	var txid string
	err := c.wallet.Call(ctx, "sendtoaddress", []interface{}{address, amountParam(sats)}, &txid)
	if err != nil {
		return types.TxID{}, fmt.Errorf("sendtoaddress: %w", err)
	}
	id, err := types.HexToTxID(txid)
	if err != nil {
		return types.TxID{}, fmt.Errorf("sendtoaddress returned %q: %w", txid, err)
	}
	c.logger.Info().Str("txid", txid).Str("address", address).Uint64("sats", sats).Msg("Funds sent")
	return id, nil
}

// ListUnspent returns the wallet's spendable outputs.
func (c *Client) ListUnspent(ctx context.Context, minConf int64) ([]types.Utxo, error) {
	var list []walletUnspent
	if err := c.wallet.Call(ctx, "listunspent", []interface{}{minConf}, &list); err != nil {
		return nil, fmt.Errorf("listunspent: %w", err)
	}
	utxos := make([]types.Utxo, 0, len(list))
	for _, u := range list {
		if !u.Spendable {
			continue
		}
		utxo, err := u.toUtxo(c.params.PolicyAssetID())
		if err != nil {
			return nil, fmt.Errorf("listunspent: %w", err)
		}
		utxos = append(utxos, utxo)
	}
	return utxos, nil
}

// NewAddress returns a fresh unconfidential wallet address.
func (c *Client) NewAddress(ctx context.Context) (string, error) {
	var addr string
	if err := c.wallet.Call(ctx, "getnewaddress", []interface{}{"", "bech32"}, &addr); err != nil {
		return "", fmt.Errorf("getnewaddress: %w", err)
	}
	var info struct {
		Unconfidential string `json:"unconfidential"`
	}
	if err := c.wallet.Call(ctx, "getaddressinfo", []interface{}{addr}, &info); err != nil {
		return "", fmt.Errorf("getaddressinfo: %w", err)
	}
	if info.Unconfidential != "" {
		addr = info.Unconfidential
	}
	return addr, nil
}

// SignTransaction asks the wallet to sign the inputs it owns. Errors for
// the foreign outpoints are tolerated: those inputs carry their own witness.
func (c *Client) SignTransaction(ctx context.Context, txHex string, foreign ...types.Outpoint) (string, error) {
	var res struct {
		Hex      string `json:"hex"`
		Complete bool   `json:"complete"`
		Errors   []struct {
			TxID  string `json:"txid"`
			Vout  uint32 `json:"vout"`
			Error string `json:"error"`
		} `json:"errors"`
	}
	if err := c.wallet.Call(ctx, "signrawtransactionwithwallet", []interface{}{txHex}, &res); err != nil {
		return "", fmt.Errorf("signrawtransactionwithwallet: %w", err)
	}
	if res.Hex == "" {
		return "", fmt.Errorf("%w: wallet returned no transaction", ErrSigning)
	}
	if _, err := hex.DecodeString(res.Hex); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	if res.Complete {
		return res.Hex, nil
	}

	skip := make(map[string]bool, len(foreign))
	for _, op := range foreign {
		skip[op.String()] = true
	}
	var problems []string
	for _, e := range res.Errors {
		op := fmt.Sprintf("%s:%d", e.TxID, e.Vout)
		if skip[op] {
			continue
		}
		problems = append(problems, fmt.Sprintf("%s: %s", op, e.Error))
	}
	if len(problems) > 0 {
		return "", fmt.Errorf("%w: %s", ErrSigning, strings.Join(problems, "; "))
	}
	return res.Hex, nil
}
