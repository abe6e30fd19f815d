package ore_protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
)

// rpcHandler answers one JSON-RPC method. A non-nil *rpcFailure is sent as
// the error object.
type rpcHandler func(params []json.RawMessage) (any, *rpcFailure)

type rpcFailure struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type fakeRPC struct {
	mu       sync.Mutex
	handlers map[string]rpcHandler
	calls    map[string]int
}

func newFakeRPC(t *testing.T) (*fakeRPC, *Client) {
	t.Helper()
	f := &fakeRPC{handlers: map[string]rpcHandler{}, calls: map[string]int{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	client, err := NewClientWithRPC(rpc.New(srv.URL), nil)
	require.NoError(t, err)
	return f, client
}

func (f *fakeRPC) handle(method string, h rpcHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

func (f *fakeRPC) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeRPC) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage   `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.calls[req.Method]++
	h, ok := f.handlers[req.Method]
	f.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = rpcFailure{Code: -32601, Message: "method not found: " + req.Method}
	} else if result, failure := h(req.Params); failure != nil {
		resp["error"] = failure
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func withContext(value any) map[string]any {
	return map[string]any{"context": map[string]any{"slot": 1}, "value": value}
}

func accountJSON(owner solana.PublicKey, data []byte) map[string]any {
	return map[string]any{
		"lamports":   1_000_000,
		"owner":      owner.String(),
		"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
		"executable": false,
		"rentEpoch":  0,
		"space":      len(data),
	}
}

func mintData(t *testing.T, decimals uint8) []byte {
	t.Helper()
	var buf bytes.Buffer
	m := token.Mint{Supply: 1_000, Decimals: decimals, IsInitialized: true}
	require.NoError(t, m.MarshalWithEncoder(bin.NewBinEncoder(&buf)))
	return buf.Bytes()
}

func firstParamKeys(params []json.RawMessage) ([]string, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("no params")
	}
	var keys []string
	err := json.Unmarshal(params[0], &keys)
	return keys, err
}
