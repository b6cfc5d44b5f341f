package subtensor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"dca-stake-agent/internal/domain"
)

// WSConfig configures WebSocket client behavior.
type WSConfig struct {
	// HandshakeTimeout bounds the initial dial.
	HandshakeTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// CallTimeout bounds waiting for a call response.
	CallTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		CallTimeout:      30 * time.Second,
	}
}

// WSClient implements Client over a WebSocket JSON-RPC 2.0 connection.
type WSClient struct {
	endpoint string
	config   WSConfig

	conn   *websocket.Conn
	connMu sync.Mutex // guards writes and conn replacement
	closed atomic.Bool

	requestID atomic.Uint64

	// pending maps request ID to the channel waiting for its response
	pending   map[uint64]chan *rpcResponse
	pendingMu sync.Mutex

	// subs maps subscription ID to its notification channel; orphans
	// holds notifications that arrived between the subscription response
	// and the channel registration.
	subs    map[string]chan json.RawMessage
	orphans map[string][]json.RawMessage
	subsMu  sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

// Dial connects to a node endpoint and starts the read loop.
func Dial(ctx context.Context, endpoint string, config *WSConfig) (*WSClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", endpoint, err)
	}

	c := &WSClient{
		endpoint: endpoint,
		config:   cfg,
		conn:     conn,
		pending:  make(map[uint64]chan *rpcResponse),
		subs:     make(map[string]chan json.RawMessage),
		orphans:  make(map[string][]json.RawMessage),
		done:     make(chan struct{}),
	}

	c.wg.Add(1)
	go c.readLoop()

	return c, nil
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`

	// Set on subscription notifications instead of ID/Result.
	Method string               `json:"method,omitempty"`
	Params *subscriptionPayload `json:"params,omitempty"`
}

type subscriptionPayload struct {
	Subscription subscriptionID  `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// subscriptionID tolerates both string and numeric subscription IDs.
type subscriptionID string

func (s *subscriptionID) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)
	*s = subscriptionID(str)
	return nil
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs one request/response round trip.
func (c *WSClient) call(ctx context.Context, method string, params []any, result any) error {
	resp, err := c.roundTrip(ctx, method, params)
	if err != nil {
		return err
	}
	if result != nil && resp.Result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

func (c *WSClient) roundTrip(ctx context.Context, method string, params []any) (*rpcResponse, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)
	respCh := make(chan *rpcResponse, 1)

	c.pendingMu.Lock()
	c.pending[reqID] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}()

	req := rpcRequest{JSONRPC: "2.0", ID: reqID, Method: method, Params: params}

	c.connMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", method, err)
	}

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp, nil
	case <-time.After(c.config.CallTimeout):
		return nil, fmt.Errorf("%s: response timeout after %s", method, c.config.CallTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, fmt.Errorf("client closed")
	}
}

// subscribe issues a subscription request and returns the notification
// channel. The caller must release it with unsubscribe.
func (c *WSClient) subscribe(ctx context.Context, method string, params []any) (string, <-chan json.RawMessage, error) {
	resp, err := c.roundTrip(ctx, method, params)
	if err != nil {
		return "", nil, err
	}

	var subID subscriptionID
	if err := json.Unmarshal(resp.Result, &subID); err != nil {
		return "", nil, fmt.Errorf("unmarshal subscription id: %w", err)
	}

	// Buffered so the read loop never blocks on a slow consumer.
	ch := make(chan json.RawMessage, 64)
	c.subsMu.Lock()
	c.subs[string(subID)] = ch
	// Replay notifications that beat the registration.
	for _, raw := range c.orphans[string(subID)] {
		ch <- raw
	}
	delete(c.orphans, string(subID))
	c.subsMu.Unlock()

	return string(subID), ch, nil
}

func (c *WSClient) unsubscribe(ctx context.Context, method, subID string) {
	c.subsMu.Lock()
	if ch, ok := c.subs[subID]; ok {
		delete(c.subs, subID)
		close(ch)
	}
	delete(c.orphans, subID)
	c.subsMu.Unlock()

	// Best effort; the node drops the subscription on disconnect anyway.
	_ = c.call(ctx, method, []any{subID}, nil)
}

// Close closes the WebSocket connection and releases all waiters.
func (c *WSClient) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}

	close(c.done)

	c.connMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := c.conn.Close()
	c.connMu.Unlock()

	c.subsMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.wg.Wait()
	return err
}

// readLoop reads messages and dispatches them to callers and subscribers.
func (c *WSClient) readLoop() {
	defer c.wg.Done()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleMessage(message)
	}
}

func (c *WSClient) handleMessage(message []byte) {
	var resp rpcResponse
	if err := json.Unmarshal(message, &resp); err != nil {
		return // not JSON-RPC, ignore
	}

	// Subscription notification
	if resp.Method != "" && resp.Params != nil {
		subID := string(resp.Params.Subscription)
		c.subsMu.Lock()
		ch, ok := c.subs[subID]
		if !ok {
			// The subscription response may still be in flight; park the
			// notification until the channel is registered.
			if len(c.orphans[subID]) < 64 {
				c.orphans[subID] = append(c.orphans[subID], resp.Params.Result)
			}
			c.subsMu.Unlock()
			return
		}
		// Send while holding subsMu so unsubscribe cannot close the
		// channel mid-send. The send never blocks.
		select {
		case ch <- resp.Params.Result:
		default:
			// Consumer fell behind; drop rather than stall the reader.
		}
		c.subsMu.Unlock()
		return
	}

	// Call response
	if resp.ID == nil {
		return
	}
	c.pendingMu.Lock()
	ch, ok := c.pending[*resp.ID]
	c.pendingMu.Unlock()
	if ok {
		ch <- &resp
	}
}

// chainHeader is the result shape of chain_getHeader.
type chainHeader struct {
	Number string `json:"number"` // hex encoded
}

// BlockNumber retrieves the current chain head height.
func (c *WSClient) BlockNumber(ctx context.Context) (uint64, error) {
	var header chainHeader
	if err := c.call(ctx, "chain_getHeader", nil, &header); err != nil {
		return 0, err
	}
	return parseHexUint(header.Number)
}

func parseHexUint(s string) (uint64, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" {
		return 0, fmt.Errorf("empty block number")
	}
	n, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse block number %q: %w", s, err)
	}
	return n, nil
}

// dynamicSubnetInfo is the wire shape of one subnetInfo_getAllDynamicInfo item.
type dynamicSubnetInfo struct {
	Netuid        int    `json:"netuid"`
	SubnetName    string `json:"subnet_name"`
	Price         string `json:"price"`
	TaoIn         string `json:"tao_in"`
	TaoInEmission string `json:"tao_in_emission"`
}

// AllSubnets retrieves dynamic info for every subnet pool.
func (c *WSClient) AllSubnets(ctx context.Context) ([]domain.SubnetInfo, error) {
	var result []dynamicSubnetInfo
	if err := c.call(ctx, "subnetInfo_getAllDynamicInfo", nil, &result); err != nil {
		return nil, err
	}

	subnets := make([]domain.SubnetInfo, len(result))
	for i, r := range result {
		subnets[i] = domain.SubnetInfo{
			Netuid:        r.Netuid,
			Name:          r.SubnetName,
			Price:         r.Price,
			TaoIn:         r.TaoIn,
			TaoInEmission: r.TaoInEmission,
		}
	}
	return subnets, nil
}

// accountBalance is the wire shape of the balance query result.
type accountBalance struct {
	Free uint64 `json:"free"` // RAO
}

// Balance retrieves the free balance of an account, converted to TAO.
func (c *WSClient) Balance(ctx context.Context, address string) (float64, error) {
	var result accountBalance
	if err := c.call(ctx, "system_accountBalance", []any{address}, &result); err != nil {
		return 0, err
	}
	return float64(result.Free) / domain.RaoPerTao, nil
}

// Extrinsic lifecycle statuses reported by author_extrinsicUpdate
// notifications. Object-shaped statuses carry a payload (block hash,
// peer list); string-shaped ones do not.
const (
	statusReady     = "ready"
	statusBroadcast = "broadcast"
	statusRetracted = "retracted"
	statusInBlock   = "inBlock"
	statusInvalid   = "invalid"
	statusDropped   = "dropped"
	statusUsurped   = "usurped"
)

// SubmitExtrinsic submits a signed extrinsic and watches its status until
// the node reports inclusion. Returns false for invalid/dropped/usurped.
// Finalization is deliberately not awaited.
func (c *WSClient) SubmitExtrinsic(ctx context.Context, ext string) (bool, error) {
	subID, updates, err := c.subscribe(ctx, "author_submitAndWatchExtrinsic", []any{ext})
	if err != nil {
		return false, fmt.Errorf("submit extrinsic: %w", err)
	}
	defer c.unsubscribe(ctx, "author_unwatchExtrinsic", subID)

	for {
		select {
		case raw, ok := <-updates:
			if !ok {
				return false, fmt.Errorf("watch stream closed before inclusion")
			}
			status, err := parseExtrinsicStatus(raw)
			if err != nil {
				return false, err
			}
			switch status {
			case statusInBlock:
				return true, nil
			case statusInvalid, statusDropped, statusUsurped:
				return false, nil
			default:
				// ready / broadcast / retracted: keep waiting
			}
		case <-ctx.Done():
			return false, ctx.Err()
		case <-c.done:
			return false, fmt.Errorf("client closed while watching extrinsic")
		}
	}
}

// parseExtrinsicStatus extracts the status tag from an extrinsic update,
// which is either a bare string ("ready") or a single-key object
// ({"inBlock": "0x..."}).
func parseExtrinsicStatus(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return "", fmt.Errorf("unrecognized extrinsic status: %s", string(raw))
	}
	for tag := range tagged {
		return tag, nil
	}
	return "", fmt.Errorf("empty extrinsic status")
}

// Ensure WSClient implements Client
var _ Client = (*WSClient)(nil)
