package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"rebalance-lab/internal/domain"
)

// StreamConfig configures live bar stream behavior.
type StreamConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription confirmation.
	SubscribeTimeout time.Duration
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
	}
}

// BarFilter selects the bar series a stream subscription delivers.
type BarFilter struct {
	Ticker          string
	IntervalMinutes int
}

// StreamClient receives live bars over a WebSocket feed. It reconnects
// with exponential backoff and resubscribes active filters, so a
// subscriber channel survives transient connection loss.
type StreamClient struct {
	endpoint string
	config   StreamConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps subscription ID to delivery channel
	subs   map[int64]chan domain.PriceBar
	subsMu sync.RWMutex

	// activeFilters stores filters for resubscription after reconnect
	activeFilters   map[int64]BarFilter
	activeFiltersMu sync.RWMutex

	// pendingSubs maps request ID to channel waiting for subscription ID
	pendingSubs   map[uint64]chan int64
	pendingSubsMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewStreamClient creates a stream client and connects to the endpoint.
func NewStreamClient(ctx context.Context, endpoint string, config *StreamConfig) (*StreamClient, error) {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}

	c := &StreamClient{
		endpoint:      endpoint,
		config:        cfg,
		subs:          make(map[int64]chan domain.PriceBar),
		activeFilters: make(map[int64]BarFilter),
		pendingSubs:   make(map[uint64]chan int64),
		done:          make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// connect establishes the WebSocket connection.
func (c *StreamClient) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// SubscribeBars subscribes to live bars matching the filter. The returned
// channel is closed when the client closes.
func (c *StreamClient) SubscribeBars(ctx context.Context, filter BarFilter) (<-chan domain.PriceBar, error) {
	if !domain.ValidIntervalMinutes(filter.IntervalMinutes) {
		return nil, fmt.Errorf("unsupported interval %d minutes", filter.IntervalMinutes)
	}

	subID, err := c.subscribeBarsInternal(ctx, filter)
	if err != nil {
		return nil, err
	}

	// Blocking send on delivery ensures no bar loss; buffer absorbs burst.
	ch := make(chan domain.PriceBar, 1024)
	c.subsMu.Lock()
	c.subs[subID] = ch
	c.subsMu.Unlock()

	c.activeFiltersMu.Lock()
	c.activeFilters[subID] = filter
	c.activeFiltersMu.Unlock()

	return ch, nil
}

// Close closes the connection and all subscriber channels.
func (c *StreamClient) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.subsMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.pendingSubsMu.Lock()
	for id, ch := range c.pendingSubs {
		close(ch)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads messages and dispatches to subscribers.
func (c *StreamClient) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			// Connection error: reconnect with exponential backoff.
			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// reconnect attempts to reconnect and resubscribe.
func (c *StreamClient) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error.
		return
	}

	c.resubscribeAll()
}

// resubscribeAll resubscribes active filters after reconnect, rebinding
// existing subscriber channels to the new subscription IDs.
func (c *StreamClient) resubscribeAll() {
	c.activeFiltersMu.RLock()
	filters := make(map[int64]BarFilter, len(c.activeFilters))
	for id, f := range c.activeFilters {
		filters[id] = f
	}
	c.activeFiltersMu.RUnlock()

	c.subsMu.RLock()
	channels := make(map[int64]chan domain.PriceBar, len(c.subs))
	for id, ch := range c.subs {
		channels[id] = ch
	}
	c.subsMu.RUnlock()

	for oldSubID, filter := range filters {
		ch := channels[oldSubID]
		if ch == nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newSubID, err := c.subscribeBarsInternal(ctx, filter)
		cancel()

		if err != nil {
			// Failed to resubscribe, keep old mapping.
			continue
		}

		c.subsMu.Lock()
		delete(c.subs, oldSubID)
		c.subs[newSubID] = ch
		c.subsMu.Unlock()

		c.activeFiltersMu.Lock()
		delete(c.activeFilters, oldSubID)
		c.activeFilters[newSubID] = filter
		c.activeFiltersMu.Unlock()
	}
}

// subscribeBarsInternal sends a subscribe request and waits for the
// subscription ID without storing channel/filter mappings.
func (c *StreamClient) subscribeBarsInternal(ctx context.Context, filter BarFilter) (int64, error) {
	if c.closed.Load() {
		return 0, fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)

	req := streamRequest{
		ID:     reqID,
		Method: "subscribeBars",
		Params: &streamSubscribeParams{
			Ticker:          filter.Ticker,
			IntervalMinutes: filter.IntervalMinutes,
		},
	}

	confirmCh := make(chan int64, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = confirmCh
	c.pendingSubsMu.Unlock()

	removePending := func() {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		removePending()
		return 0, fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()

	if err != nil {
		removePending()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID := <-confirmCh:
		return subID, nil
	case <-time.After(c.config.SubscribeTimeout):
		removePending()
		return 0, fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-c.done:
		return 0, fmt.Errorf("client closed")
	case <-ctx.Done():
		removePending()
		return 0, ctx.Err()
	}
}

// handleMessage processes an incoming message.
func (c *StreamClient) handleMessage(message []byte) {
	// Try to parse as subscription confirmation first.
	var resp streamSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 {
		c.handleSubscribeResponse(&resp)
		return
	}

	var notif streamNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "barNotification" {
		c.handleBarNotification(&notif)
		return
	}
}

// handleSubscribeResponse resolves a pending subscription.
func (c *StreamClient) handleSubscribeResponse(resp *streamSubscribeResponse) {
	c.pendingSubsMu.Lock()
	ch, ok := c.pendingSubs[resp.ID]
	if ok {
		delete(c.pendingSubs, resp.ID)
	}
	c.pendingSubsMu.Unlock()

	if ok {
		select {
		case ch <- resp.Result:
		default:
		}
	}
}

// handleBarNotification dispatches a bar to its subscriber.
func (c *StreamClient) handleBarNotification(notif *streamNotification) {
	if notif.Params == nil {
		return
	}

	c.subsMu.RLock()
	ch, ok := c.subs[notif.Params.Subscription]
	c.subsMu.RUnlock()

	if ok {
		// Block until we can send - never drop bars.
		select {
		case ch <- notif.Params.Bar.toDomain():
		case <-c.done:
			return
		}
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *StreamClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				// Write errors surface in the read loop as a reconnect.
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

// Stream message types.

type streamRequest struct {
	ID     uint64                 `json:"id"`
	Method string                 `json:"method"`
	Params *streamSubscribeParams `json:"params,omitempty"`
}

type streamSubscribeParams struct {
	Ticker          string `json:"ticker"`
	IntervalMinutes int    `json:"interval_minutes"`
}

type streamSubscribeResponse struct {
	ID     uint64 `json:"id"`
	Result int64  `json:"result"` // subscription ID
}

type streamNotification struct {
	Method string                    `json:"method"`
	Params *streamNotificationParams `json:"params"`
}

type streamNotificationParams struct {
	Subscription int64     `json:"subscription"`
	Bar          streamBar `json:"bar"`
}

// streamBar is the wire form of a price bar.
type streamBar struct {
	Ticker        string  `json:"ticker"`
	TimestampMs   int64   `json:"timestamp_ms"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	Volume        float64 `json:"volume"`
	Bid           float64 `json:"bid"`
	Ask           float64 `json:"ask"`
	IsMarketHours bool    `json:"is_market_hours"`
}

func (b streamBar) toDomain() domain.PriceBar {
	return domain.PriceBar{
		Ticker:        b.Ticker,
		TimestampMs:   b.TimestampMs,
		Open:          b.Open,
		High:          b.High,
		Low:           b.Low,
		Close:         b.Close,
		Volume:        b.Volume,
		Bid:           b.Bid,
		Ask:           b.Ask,
		IsMarketHours: b.IsMarketHours,
	}
}
