package node

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Klingon-tech/puzzle-jackpot/internal/rpcclient"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/network"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
	"github.com/rs/zerolog"
)

var (
	txidA = strings.Repeat("11", 32)
	txidB = strings.Repeat("22", 32)
)

type handlerFunc func(params []json.RawMessage) (interface{}, *rpcErrReply)

type rpcErrReply struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// fakeNode answers JSON-RPC calls from a method table and records the
// paths and params it saw.
type fakeNode struct {
	mu       sync.Mutex
	handlers map[string]handlerFunc
	paths    map[string]string
	params   map[string][]json.RawMessage
}

func newFakeNode(t *testing.T) (*fakeNode, *Client) {
	t.Helper()
	f := &fakeNode{
		handlers: make(map[string]handlerFunc),
		paths:    make(map[string]string),
		params:   make(map[string][]json.RawMessage),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
			ID     uint64            `json:"id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		h := f.handlers[req.Method]
		f.paths[req.Method] = r.URL.Path
		f.params[req.Method] = req.Params
		f.mu.Unlock()

		if h == nil {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"result": nil, "id": req.ID,
				"error": rpcErrReply{Code: -32601, Message: "Method not found"},
			})
			return
		}
		result, rerr := h(req.Params)
		if rerr != nil {
			w.WriteHeader(http.StatusInternalServerError)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"result": result, "error": rerr, "id": req.ID})
	}))
	t.Cleanup(srv.Close)

	c := New(rpcclient.New(srv.URL), "puzzles", network.ElementsRegtest, zerolog.Nop())
	return f, c
}

func (f *fakeNode) on(method string, h handlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

func (f *fakeNode) seen(method string) (string, []json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paths[method], f.params[method]
}

func (f *fakeNode) reply(method string, result interface{}) {
	f.on(method, func([]json.RawMessage) (interface{}, *rpcErrReply) { return result, nil })
}

func (f *fakeNode) fail(method string, code int, msg string) {
	f.on(method, func([]json.RawMessage) (interface{}, *rpcErrReply) {
		return nil, &rpcErrReply{Code: code, Message: msg}
	})
}

func TestFindUnspent(t *testing.T) {
	f, c := newFakeNode(t)
	f.reply("scantxoutset", json.RawMessage(`{
		"success": true,
		"height": 110,
		"unspents": [
			{"txid": "`+txidA+`", "vout": 1, "scriptPubKey": "5120aa", "amount": 0.00100000, "height": 101},
			{"txid": "`+txidB+`", "vout": 0, "scriptPubKey": "5120bb", "amount": 2.5, "asset": "`+network.ElementsRegtest.PolicyAsset+`", "height": 0}
		]
	}`))

	utxos, err := c.FindUnspent(context.Background(), "ert1qtest")
	if err != nil {
		t.Fatalf("FindUnspent: %v", err)
	}
	if len(utxos) != 2 {
		t.Fatalf("got %d utxos, want 2", len(utxos))
	}
	if utxos[0].Value != 100000 || utxos[0].Confirmations != 10 {
		t.Errorf("utxo[0] value=%d confs=%d, want 100000/10", utxos[0].Value, utxos[0].Confirmations)
	}
	if utxos[0].Asset != network.ElementsRegtest.PolicyAssetID() {
		t.Errorf("missing asset should default to the policy asset, got %s", utxos[0].Asset)
	}
	if utxos[0].Outpoint.String() != txidA+":1" {
		t.Errorf("outpoint = %s", utxos[0].Outpoint)
	}
	if utxos[1].Value != 250000000 || utxos[1].Confirmations != 0 {
		t.Errorf("utxo[1] value=%d confs=%d", utxos[1].Value, utxos[1].Confirmations)
	}

	_, raw := f.seen("scantxoutset")
	var params []interface{}
	_ = json.Unmarshal(raw[1], &params)
	if len(params) != 1 || params[0] != "addr(ert1qtest)" {
		t.Errorf("scan descriptor = %v", params)
	}
}

func TestFindUnspent_Blinded(t *testing.T) {
	f, c := newFakeNode(t)
	f.reply("scantxoutset", json.RawMessage(`{"success": true, "height": 5, "unspents": [
		{"txid": "`+txidA+`", "vout": 0, "scriptPubKey": "5120aa", "height": 1},
		{"txid": "`+txidB+`", "vout": 2, "scriptPubKey": "5120aa", "amount": 0.0002, "height": 5}
	]}`))
	utxos, err := c.FindUnspent(context.Background(), "ert1q")
	if err != nil {
		t.Fatalf("FindUnspent: %v", err)
	}
	if len(utxos) != 1 || utxos[0].Outpoint.String() != txidB+":2" || utxos[0].Value != 20000 {
		t.Errorf("utxos = %+v, want only the explicit output", utxos)
	}

	f.reply("scantxoutset", json.RawMessage(`{"success": true, "height": 1, "unspents": [
		{"txid": "`+txidA+`", "vout": 0, "scriptPubKey": "", "height": 1}
	]}`))
	utxos, err = c.FindUnspent(context.Background(), "ert1q")
	if err != nil || len(utxos) != 0 {
		t.Errorf("all blinded = %+v, %v; want empty", utxos, err)
	}
}

func TestFindUnspent_Failure(t *testing.T) {
	f, c := newFakeNode(t)
	f.reply("scantxoutset", json.RawMessage(`{"success": false}`))
	if _, err := c.FindUnspent(context.Background(), "ert1q"); !errors.Is(err, ErrScanFailed) {
		t.Fatalf("error = %v, want ErrScanFailed", err)
	}
}

func TestGetTransaction(t *testing.T) {
	f, c := newFakeNode(t)
	f.reply("getrawtransaction", json.RawMessage(`{
		"txid": "`+txidB+`",
		"hex": "0200",
		"confirmations": 3,
		"vin": [{"txid": "`+txidA+`", "vout": 0, "txinwitness": ["aa", "bbcc", "", "be"]}],
		"vout": [
			{"value": 0.00097000, "asset": "`+network.ElementsRegtest.PolicyAsset+`", "n": 0,
			 "scriptPubKey": {"hex": "0014aa", "address": "ert1qdest", "type": "witness_v0_keyhash"}},
			{"value": 0.00003000, "asset": "`+network.ElementsRegtest.PolicyAsset+`", "n": 1,
			 "scriptPubKey": {"hex": "", "type": "fee"}},
			{"n": 2, "scriptPubKey": {"hex": "0014bb", "address": "ert1qblind"}}
		]
	}`))

	txid, _ := types.HexToTxID(txidB)
	info, err := c.GetTransaction(context.Background(), txid)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if info.Confirmations != 3 || len(info.Inputs) != 1 || len(info.Outputs) != 3 {
		t.Fatalf("info = %+v", info)
	}
	if w := info.Inputs[0].Witness; len(w) != 4 || len(w[2]) != 0 || w[1][1] != 0xcc {
		t.Errorf("witness = %x", w)
	}
	if !info.Outputs[1].Fee || info.Outputs[1].Value != 3000 {
		t.Errorf("fee output = %+v", info.Outputs[1])
	}
	if !info.Outputs[2].Confidential {
		t.Error("output without value should be confidential")
	}
	if outs := info.OutputsTo("ert1qdest"); len(outs) != 1 || outs[0].Value != 97000 {
		t.Errorf("OutputsTo = %+v", outs)
	}
}

func TestGetTransaction_NotFound(t *testing.T) {
	f, c := newFakeNode(t)
	f.fail("getrawtransaction", -5, "No such mempool or blockchain transaction")
	_, err := c.GetTransaction(context.Background(), types.TxID{1})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestBroadcast(t *testing.T) {
	f, c := newFakeNode(t)
	f.reply("sendrawtransaction", txidA)

	txid, err := c.Broadcast(context.Background(), "0200")
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if txid.String() != txidA {
		t.Errorf("txid = %s", txid)
	}
}

func TestBroadcast_Errors(t *testing.T) {
	tests := []struct {
		name string
		code int
		msg  string
		want error
	}{
		{"missing inputs", -25, "bad-txns-inputs-missingorspent", ErrAlreadySpent},
		{"already in chain", -27, "Transaction already in block chain", ErrAlreadySpent},
		{"mempool conflict", -26, "txn-mempool-conflict", ErrAlreadySpent},
		{"script failure", -26, "non-mandatory-script-verify-flag", ErrRejected},
		{"verify error", -25, "bad-txns-in-ne-out", ErrRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, c := newFakeNode(t)
			f.fail("sendrawtransaction", tt.code, tt.msg)
			_, err := c.Broadcast(context.Background(), "0200")
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	f, c := newFakeNode(t)
	f.fail("sendrawtransaction", -22, "TX decode failed")
	_, err := c.Broadcast(context.Background(), "zz")
	if errors.Is(err, ErrRejected) || errors.Is(err, ErrAlreadySpent) {
		t.Errorf("decode failure should not classify as rejection: %v", err)
	}
	if code, ok := rpcclient.Code(err); !ok || code != -22 {
		t.Errorf("rpc code = %d, %v", code, ok)
	}
}

func TestIsSpent(t *testing.T) {
	f, c := newFakeNode(t)
	op := types.Outpoint{TxID: types.TxID{1}, Index: 0}

	f.reply("gettxout", nil)
	spent, err := c.IsSpent(context.Background(), op)
	if err != nil || !spent {
		t.Errorf("IsSpent(null) = %v, %v; want true", spent, err)
	}

	f.reply("gettxout", map[string]interface{}{"confirmations": 2, "value": 0.001})
	spent, err = c.IsSpent(context.Background(), op)
	if err != nil || spent {
		t.Errorf("IsSpent(object) = %v, %v; want false", spent, err)
	}
}

func TestSendToAddress(t *testing.T) {
	f, c := newFakeNode(t)
	f.reply("sendtoaddress", txidA)

	if _, err := c.SendToAddress(context.Background(), "ert1qpuzzle", 100000); err != nil {
		t.Fatalf("SendToAddress: %v", err)
	}
	path, raw := f.seen("sendtoaddress")
	if path != "/wallet/puzzles" {
		t.Errorf("wallet path = %q", path)
	}
	if got := string(raw[1]); got != "0.00100000" {
		t.Errorf("amount param = %s, want 0.00100000", got)
	}
}

func TestListUnspent(t *testing.T) {
	f, c := newFakeNode(t)
	f.reply("listunspent", json.RawMessage(`[
		{"txid": "`+txidA+`", "vout": 0, "scriptPubKey": "0014aa", "amount": 0.0005, "confirmations": 6, "spendable": true},
		{"txid": "`+txidB+`", "vout": 1, "scriptPubKey": "0014bb", "amount": 1, "confirmations": 1, "spendable": false}
	]`))

	utxos, err := c.ListUnspent(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListUnspent: %v", err)
	}
	if len(utxos) != 1 || utxos[0].Value != 50000 || utxos[0].Confirmations != 6 || utxos[0].Confidential {
		t.Errorf("utxos = %+v", utxos)
	}
}

func TestListUnspent_Blinders(t *testing.T) {
	zero := strings.Repeat("00", 32)
	set := strings.Repeat("ab", 32)
	tests := []struct {
		name   string
		amount string
		asset  string
		want   bool
	}{
		{"no blinders", "", "", false},
		{"zero blinders", zero, zero, false},
		{"amount blinded", set, zero, true},
		{"asset blinded", zero, set, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, c := newFakeNode(t)
			f.reply("listunspent", json.RawMessage(`[
				{"txid": "`+txidA+`", "vout": 0, "scriptPubKey": "0014aa", "amount": 0.0005,
				 "amountblinder": "`+tt.amount+`", "assetblinder": "`+tt.asset+`",
				 "confirmations": 2, "spendable": true}
			]`))
			utxos, err := c.ListUnspent(context.Background(), 1)
			if err != nil {
				t.Fatalf("ListUnspent: %v", err)
			}
			if len(utxos) != 1 || utxos[0].Confidential != tt.want {
				t.Errorf("utxos = %+v, want confidential %v", utxos, tt.want)
			}
		})
	}
}

func TestNewAddress_Unconfidential(t *testing.T) {
	f, c := newFakeNode(t)
	f.reply("getnewaddress", "el1qqconfidential")
	f.reply("getaddressinfo", map[string]string{"unconfidential": "ert1qplain"})

	addr, err := c.NewAddress(context.Background())
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	if addr != "ert1qplain" {
		t.Errorf("address = %q, want the unconfidential form", addr)
	}
}

func TestSignTransaction(t *testing.T) {
	puzzle := types.Outpoint{TxID: types.TxID{0x22}, Index: 0}
	incomplete := map[string]interface{}{
		"hex":      "0201",
		"complete": false,
		"errors": []map[string]interface{}{
			{"txid": puzzle.TxID.String(), "vout": 0, "error": "Unable to sign input"},
		},
	}

	f, c := newFakeNode(t)
	f.reply("signrawtransactionwithwallet", incomplete)

	got, err := c.SignTransaction(context.Background(), "0200", puzzle)
	if err != nil {
		t.Fatalf("SignTransaction with foreign puzzle input: %v", err)
	}
	if got != "0201" {
		t.Errorf("hex = %q", got)
	}

	if _, err := c.SignTransaction(context.Background(), "0200"); !errors.Is(err, ErrSigning) {
		t.Errorf("unexpected unsigned input error = %v, want ErrSigning", err)
	}
}
