// Package substratetest serves an in-memory Substrate JSON-RPC node over a websocket
package substratetest

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/screwyprof/bondaudit/pkg/substrate"
)

// Node is a fake node holding storage per block
type Node struct {
	mu        sync.Mutex
	server    *httptest.Server
	finalized substrate.Hash
	numbers   map[substrate.Hash]uint64
	storage   map[substrate.Hash]map[string][]byte
	failures  map[string]*substrate.RPCError
	stalls    map[string]bool
	calls     map[string]int
	queriedAt map[substrate.Hash]int
}

// NewNode starts a node whose finalized head is block number of hash.
// The server is closed when the test ends.
func NewNode(t *testing.T, hash substrate.Hash, number uint64) *Node {
	t.Helper()

	n := &Node{
		finalized: hash,
		numbers:   map[substrate.Hash]uint64{hash: number},
		storage:   map[substrate.Hash]map[string][]byte{hash: {}},
		failures:  map[string]*substrate.RPCError{},
		stalls:    map[string]bool{},
		calls:     map[string]int{},
		queriedAt: map[substrate.Hash]int{},
	}
	n.server = httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(n.server.Close)

	return n
}

// URL is the websocket endpoint of the node
func (n *Node) URL() string {
	return "ws" + strings.TrimPrefix(n.server.URL, "http")
}

// AddBlock registers another block with empty storage
func (n *Node) AddBlock(hash substrate.Hash, number uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.numbers[hash] = number
	n.storage[hash] = map[string][]byte{}
}

// Put stores a raw value at the given block
func (n *Node) Put(at substrate.Hash, key, value []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.storage[at][string(key)] = slices.Clone(value)
}

// Bond records stash -> controller in Staking.Bonded
func (n *Node) Bond(at substrate.Hash, stash, controller substrate.AccountID) {
	n.Put(at, substrate.BondedKey(stash), controller[:])
}

// SetLedger stores an encoded ledger for account
func (n *Node) SetLedger(at substrate.Hash, account substrate.AccountID, total int64) {
	n.Put(at, substrate.LedgerKey(account), EncodeLedger(account, total))
}

// Fail makes every call of method return an RPC error
func (n *Node) Fail(method string, code int, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures[method] = &substrate.RPCError{Code: code, Message: message}
}

// Stall makes the node swallow requests for method without replying
func (n *Node) Stall(method string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stalls[method] = true
}

func (n *Node) stalled(method string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls[method]++
	return n.stalls[method]
}

// Calls reports how often method was invoked
func (n *Node) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

// QueriedAt reports which blocks storage reads were made against
func (n *Node) QueriedAt() map[substrate.Hash]int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[substrate.Hash]int, len(n.queriedAt))
	for k, v := range n.queriedAt {
		out[k] = v
	}
	return out
}

// EncodeLedger builds a SCALE encoded ledger with no unlocking chunks
func EncodeLedger(stash substrate.AccountID, total int64) []byte {
	var b bytes.Buffer
	b.Write(stash[:])
	b.Write(EncodeCompact(big.NewInt(total)))
	b.Write(EncodeCompact(big.NewInt(total)))
	b.Write(EncodeCompact(big.NewInt(0)))
	b.Write(EncodeCompact(big.NewInt(0)))
	return b.Bytes()
}

// EncodeCompact encodes a non-negative integer in SCALE compact form
func EncodeCompact(v *big.Int) []byte {
	switch {
	case v.Cmp(big.NewInt(1<<6)) < 0:
		return []byte{byte(v.Uint64() << 2)}
	case v.Cmp(big.NewInt(1<<14)) < 0:
		return binary.LittleEndian.AppendUint16(nil, uint16(v.Uint64()<<2|0b01))
	case v.Cmp(big.NewInt(1<<30)) < 0:
		return binary.LittleEndian.AppendUint32(nil, uint32(v.Uint64()<<2|0b10))
	}
	be := v.Bytes()
	out := []byte{byte(len(be)-4)<<2 | 0b11}
	for i := len(be) - 1; i >= 0; i-- {
		out = append(out, be[i])
	}
	return out
}

type rpcRequest struct {
	ID     uint64            `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      uint64              `json:"id"`
	Result  any                 `json:"result"`
	Error   *substrate.RPCError `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{}

func (n *Node) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var req rpcRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if n.stalled(req.Method) {
			continue
		}
		result, rpcErr := n.handle(req)
		if err := conn.WriteJSON(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rpcErr}); err != nil {
			return
		}
	}
}

func (n *Node) handle(req rpcRequest) (any, *substrate.RPCError) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if e, ok := n.failures[req.Method]; ok {
		return nil, e
	}

	switch req.Method {
	case "chain_getFinalizedHead":
		return n.finalized, nil
	case "chain_getHeader":
		var hash substrate.Hash
		if !decodeParam(req.Params, 0, &hash) {
			return nil, invalidParams()
		}
		number, ok := n.numbers[hash]
		if !ok {
			return nil, nil
		}
		return map[string]any{
			"parentHash": substrate.Hash{},
			"number":     "0x" + strconv.FormatUint(number, 16),
		}, nil
	case "state_getKeysPaged":
		return n.keysPaged(req.Params)
	case "state_queryStorageAt":
		return n.queryStorageAt(req.Params)
	case "state_getStorage":
		var key substrate.Bytes
		var at substrate.Hash
		if !decodeParam(req.Params, 0, &key) || !decodeParam(req.Params, 1, &at) {
			return nil, invalidParams()
		}
		n.queriedAt[at]++
		value, ok := n.storage[at][string(key)]
		if !ok {
			return nil, nil
		}
		return substrate.Bytes(value), nil
	}

	return nil, &substrate.RPCError{Code: -32601, Message: "Method not found"}
}

func (n *Node) keysPaged(params []json.RawMessage) (any, *substrate.RPCError) {
	var prefix, start substrate.Bytes
	var count uint32
	var at substrate.Hash
	if !decodeParam(params, 0, &prefix) || !decodeParam(params, 1, &count) ||
		!decodeParam(params, 2, &start) || !decodeParam(params, 3, &at) {
		return nil, invalidParams()
	}
	n.queriedAt[at]++

	var keys []string
	for k := range n.storage[at] {
		if strings.HasPrefix(k, string(prefix)) && (start == nil || k > string(start)) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	if len(keys) > int(count) {
		keys = keys[:count]
	}

	out := make([]substrate.Bytes, len(keys))
	for i, k := range keys {
		out[i] = substrate.Bytes(k)
	}
	return out, nil
}

func (n *Node) queryStorageAt(params []json.RawMessage) (any, *substrate.RPCError) {
	var keys []substrate.Bytes
	var at substrate.Hash
	if !decodeParam(params, 0, &keys) || !decodeParam(params, 1, &at) {
		return nil, invalidParams()
	}
	n.queriedAt[at]++

	changes := make([][2]any, len(keys))
	for i, k := range keys {
		changes[i][0] = k
		if v, ok := n.storage[at][string(k)]; ok {
			changes[i][1] = substrate.Bytes(v)
		}
	}
	return []map[string]any{{"block": at, "changes": changes}}, nil
}

func decodeParam(params []json.RawMessage, i int, v any) bool {
	if i >= len(params) {
		return false
	}
	return json.Unmarshal(params[i], v) == nil
}

func invalidParams() *substrate.RPCError {
	return &substrate.RPCError{Code: -32602, Message: "Invalid params"}
}
