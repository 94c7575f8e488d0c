package puzzle

import (
	"context"
	"fmt"
	"sync"

	"github.com/Klingon-tech/puzzle-jackpot/internal/node"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
)

// mockNode is an in-memory NodeClient.
type mockNode struct {
	mu sync.Mutex

	unspent map[string][]types.Utxo
	// scans, when set, replaces unspent with one answer per call.
	scans    [][]types.Utxo
	txs      map[types.TxID]*node.TxInfo
	spent    map[types.Outpoint]bool
	scanErr  error
	sendErr  error
	broadErr error

	calls     []string
	sent      map[string]uint64
	broadcast []string
}

func newMockNode() *mockNode {
	return &mockNode{
		unspent: make(map[string][]types.Utxo),
		txs:     make(map[types.TxID]*node.TxInfo),
		spent:   make(map[types.Outpoint]bool),
		sent:    make(map[string]uint64),
	}
}

func (m *mockNode) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockNode) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockNode) FindUnspent(_ context.Context, address string) ([]types.Utxo, error) {
	m.record("FindUnspent")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	if len(m.scans) > 0 {
		next := m.scans[0]
		if len(m.scans) > 1 {
			m.scans = m.scans[1:]
		}
		return next, nil
	}
	return m.unspent[address], nil
}

func (m *mockNode) GetTransaction(_ context.Context, txid types.TxID) (*node.TxInfo, error) {
	m.record("GetTransaction")
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.txs[txid]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", txid, node.ErrNotFound)
	}
	return info, nil
}

func (m *mockNode) Broadcast(_ context.Context, txHex string) (types.TxID, error) {
	m.record("Broadcast")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broadErr != nil {
		return types.TxID{}, m.broadErr
	}
	m.broadcast = append(m.broadcast, txHex)
	return types.TxID{0xbb}, nil
}

func (m *mockNode) SendToAddress(_ context.Context, address string, sats uint64) (types.TxID, error) {
	m.record("SendToAddress")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return types.TxID{}, m.sendErr
	}
	m.sent[address] += sats
	return types.TxID{0xaa}, nil
}

func (m *mockNode) IsSpent(_ context.Context, op types.Outpoint) (bool, error) {
	m.record("IsSpent")
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spent[op], nil
}

// mockWallet hands out fixed outputs and signs by returning the
// transaction unchanged.
type mockWallet struct {
	utxos   []types.Utxo
	address string
	signed  []string
	foreign []types.Outpoint
	signErr error
}

func (w *mockWallet) ListUnspent(context.Context, int64) ([]types.Utxo, error) {
	return w.utxos, nil
}

func (w *mockWallet) NewAddress(context.Context) (string, error) {
	return w.address, nil
}

func (w *mockWallet) SignTransaction(_ context.Context, txHex string, foreign ...types.Outpoint) (string, error) {
	if w.signErr != nil {
		return "", w.signErr
	}
	w.signed = append(w.signed, txHex)
	w.foreign = foreign
	return txHex, nil
}
