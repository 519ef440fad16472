package chain

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
)

const (
	escrowKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	recipient    = "0x0000000000000000000000000000000000000123"
)

// rpcNode answers the JSON-RPC calls a transfer makes. failChainID
// makes that many eth_chainId calls fail before answering.
type rpcNode struct {
	mu          sync.Mutex
	calls       map[string]int
	failChainID int
}

func newRPCNode(failChainID int) *rpcNode {
	return &rpcNode{calls: map[string]int{}, failChainID: failChainID}
}

func (n *rpcNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	n.calls[req.Method]++
	seen := n.calls[req.Method]
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	switch req.Method {
	case "eth_chainId":
		if seen <= n.failChainID {
			resp["error"] = map[string]any{"code": -32000, "message": "transient upstream error"}
		} else {
			resp["result"] = "0xaa36a7"
		}
	case "eth_getTransactionCount":
		resp["result"] = "0x0"
	case "eth_gasPrice":
		resp["result"] = "0x3b9aca00"
	case "eth_sendRawTransaction":
		resp["result"] = "0x" + strings.Repeat("ab", 32)
	default:
		resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *rpcNode) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

func dialNode(t *testing.T, node *rpcNode) *EVMClient {
	t.Helper()
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)
	client, err := DialEVM(context.Background(), "testnet", srv.URL, escrowKeyHex, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("DialEVM: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestTransferRetriesChainIDAfterFailure(t *testing.T) {
	node := newRPCNode(1)
	client := dialNode(t, node)
	ctx := context.Background()
	wei := big.NewInt(10_000_000_000_000_000)

	if _, err := client.Transfer(ctx, recipient, wei); err == nil || !strings.Contains(err.Error(), "chain id") {
		t.Fatalf("first transfer err = %v, want chain id failure", err)
	}
	for i := 0; i < 2; i++ {
		hash, err := client.Transfer(ctx, recipient, wei)
		if err != nil {
			t.Fatalf("transfer %d: %v", i+2, err)
		}
		if !IsTxHash(hash) {
			t.Errorf("transfer %d hash = %q", i+2, hash)
		}
	}
	// One failed call, one successful call, then the cached id.
	if got := node.count("eth_chainId"); got != 2 {
		t.Errorf("eth_chainId calls = %d, want 2", got)
	}
	if got := node.count("eth_sendRawTransaction"); got != 2 {
		t.Errorf("eth_sendRawTransaction calls = %d, want 2", got)
	}
}

func TestTransferRecoversFromCancelledFirstCall(t *testing.T) {
	node := newRPCNode(0)
	client := dialNode(t, node)
	wei := big.NewInt(10_000_000_000_000_000)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Transfer(cancelled, recipient, wei); err == nil {
		t.Fatal("transfer with a cancelled context succeeded")
	}
	if _, err := client.Transfer(context.Background(), recipient, wei); err != nil {
		t.Fatalf("transfer after cancelled call: %v", err)
	}
}

func TestTransferWithoutKey(t *testing.T) {
	srv := httptest.NewServer(newRPCNode(0))
	defer srv.Close()
	client, err := DialEVM(context.Background(), "testnet", srv.URL, "", zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	if _, err := client.Transfer(context.Background(), recipient, big.NewInt(1)); err != ErrNoSigner {
		t.Fatalf("err = %v, want ErrNoSigner", err)
	}
}
