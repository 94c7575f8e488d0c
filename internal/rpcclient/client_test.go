package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type captured struct {
	path   string
	user   string
	pass   string
	method string
	params []json.RawMessage
}

func newServer(t *testing.T, status int, reply string, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if got != nil {
			got.path = r.URL.Path
			got.user, got.pass, _ = r.BasicAuth()
			got.method = req.Method
			got.params = req.Params
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCall_Result(t *testing.T) {
	var got captured
	srv := newServer(t, http.StatusOK, `{"result":{"blocks":42},"error":null,"id":1}`, &got)
	c := New(srv.URL, WithAuth("user", "secret"), WithTimeout(time.Second))

	var info struct {
		Blocks int `json:"blocks"`
	}
	if err := c.Call(context.Background(), "getblockchaininfo", nil, &info); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if info.Blocks != 42 {
		t.Errorf("blocks = %d, want 42", info.Blocks)
	}
	if got.user != "user" || got.pass != "secret" {
		t.Errorf("basic auth = %q/%q", got.user, got.pass)
	}
	if got.method != "getblockchaininfo" || got.params == nil {
		t.Errorf("request = %+v", got)
	}
}

func TestCall_RPCError(t *testing.T) {
	srv := newServer(t, http.StatusInternalServerError,
		`{"result":null,"error":{"code":-26,"message":"non-mandatory-script-verify-flag"},"id":1}`, nil)
	c := New(srv.URL)

	err := c.Call(context.Background(), "sendrawtransaction", []interface{}{"00"}, nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("got %v, want *RPCError", err)
	}
	if rpcErr.Code != -26 || rpcErr.Method != "sendrawtransaction" {
		t.Errorf("unexpected error %+v", rpcErr)
	}
	if code, ok := Code(err); !ok || code != -26 {
		t.Errorf("Code = %d, %v", code, ok)
	}
}

func TestCall_Unauthorized(t *testing.T) {
	srv := newServer(t, http.StatusUnauthorized, ``, nil)
	err := New(srv.URL).Call(context.Background(), "getblockcount", nil, nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized", err)
	}
}

func TestCall_HTTPErrorWithoutJSON(t *testing.T) {
	srv := newServer(t, http.StatusNotFound, `not found`, nil)
	err := New(srv.URL).Call(context.Background(), "getblockcount", nil, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := Code(err); ok {
		t.Error("plain HTTP failure must not look like an RPC error")
	}
}

func TestCall_ContextCanceled(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"result":1,"error":null,"id":1}`, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := New(srv.URL).Call(ctx, "getblockcount", nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestForWallet(t *testing.T) {
	var got captured
	srv := newServer(t, http.StatusOK, `{"result":"ert1qxyz","error":null,"id":1}`, &got)
	c := New(srv.URL+"/", WithAuth("u", "p")).ForWallet("puzzle wallet")

	var addr string
	if err := c.Call(context.Background(), "getnewaddress", nil, &addr); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got.path != "/wallet/puzzle wallet" {
		t.Errorf("path = %q", got.path)
	}
	if addr != "ert1qxyz" || got.user != "u" {
		t.Errorf("addr %q, user %q", addr, got.user)
	}
	base := New(srv.URL)
	if base.ForWallet("") != base {
		t.Error("empty wallet name must return the same client")
	}
}
