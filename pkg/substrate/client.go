package substrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Sentinel errors for client operations
var (
	ErrDialFailed     = errors.New("websocket dial failed")
	ErrRequestFailed  = errors.New("rpc request failed")
	ErrInvalidPayload = errors.New("invalid rpc payload")
)

const (
	DefaultHandshakeTimeout = 30 * time.Second
	DefaultCallTimeout      = 60 * time.Second
)

// Option configures the Client
type Option func(*Client)

// WithCallTimeout bounds every round trip. Zero disables the deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) { c.callTimeout = d }
}

// WithHandshakeTimeout sets the websocket handshake timeout
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialer.HandshakeTimeout = d }
}

// Client is a JSON-RPC 2.0 client for a Substrate node over a websocket.
// Calls are serialised: at most one request is in flight.
type Client struct {
	mu          sync.Mutex
	conn        *websocket.Conn
	dialer      websocket.Dialer
	callTimeout time.Duration
	nextID      uint64
	broken      error
}

// RPCError is an error object returned by the node
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// Dial connects to the node at endpoint (ws:// or wss://)
func Dial(ctx context.Context, endpoint string, opts ...Option) (*Client, error) {
	c := &Client{
		dialer: websocket.Dialer{
			HandshakeTimeout: DefaultHandshakeTimeout,
		},
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDialFailed, endpoint, err)
	}
	c.conn = conn

	return c, nil
}

// Close closes the underlying connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(time.Second),
	)
	return c.conn.Close()
}

// Call invokes method with params and decodes the result into result.
// A JSON null result leaves result untouched and reports found=false.
// Cancelling ctx interrupts a pending round trip; the connection is
// unusable afterwards.
func (c *Client) Call(ctx context.Context, result any, method string, params ...any) (found bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrRequestFailed, method, err)
	}
	if c.broken != nil {
		return false, fmt.Errorf("%w: %s: connection unusable: %w", ErrRequestFailed, method, c.broken)
	}

	c.nextID++
	id := c.nextID
	if params == nil {
		params = []any{}
	}

	deadline := c.deadline(ctx)
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrRequestFailed, method, err)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrRequestFailed, method, err)
	}

	stop := context.AfterFunc(ctx, func() {
		now := time.Now()
		_ = c.conn.SetWriteDeadline(now)
		_ = c.conn.SetReadDeadline(now)
	})
	defer stop()

	if err := c.conn.WriteJSON(request{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return false, c.transportError(ctx, method, "writing request", err)
	}

	for {
		var resp response
		if err := c.conn.ReadJSON(&resp); err != nil {
			return false, c.transportError(ctx, method, "reading response", err)
		}
		// notifications and stale replies carry another (or no) id
		if resp.ID == nil || *resp.ID != id {
			continue
		}
		if resp.Error != nil {
			return false, fmt.Errorf("%w: %s: %w", ErrRequestFailed, method, resp.Error)
		}
		if len(resp.Result) == 0 || string(resp.Result) == "null" {
			return false, nil
		}
		if result == nil {
			return true, nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return false, fmt.Errorf("%w: %s: %w", ErrInvalidPayload, method, err)
		}
		return true, nil
	}
}

// transportError marks the connection broken and reports ctx's error
// in place of the deadline it triggered.
func (c *Client) transportError(ctx context.Context, method, op string, err error) error {
	c.broken = err
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return fmt.Errorf("%w: %s: %s: %w", ErrRequestFailed, method, op, err)
}

func (c *Client) deadline(ctx context.Context) time.Time {
	var deadline time.Time
	if c.callTimeout > 0 {
		deadline = time.Now().Add(c.callTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	return deadline
}
