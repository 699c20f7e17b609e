package roon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Bridge defines the control-channel operations consumed by the rest of
// the system. Reconnection is NOT handled here; the health monitor and
// reconnection manager own recovery, so a lost session simply fails all
// in-flight and subsequent calls with ErrConnectionLost until Connect is
// called again.
type Bridge interface {
	Connect(ctx context.Context) error
	Close() error
	IsConnected() bool
	Browse(ctx context.Context, path []string) ([]BrowseItem, error)
	PlayMedia(ctx context.Context, path []string, zoneID, action string) error
	Transport(ctx context.Context, zoneID, control string) error
	ListZones(ctx context.Context) ([]ZoneInfo, error)
	Status(ctx context.Context) (*BridgeStatus, error)
	Events() <-chan ZoneEvent
}

// Client implements Bridge over a WebSocket session to the bridge process
type Client struct {
	url    string
	logger *zap.Logger

	conn        *websocket.Conn
	connected   bool
	sessionDone chan struct{}
	connMu      sync.RWMutex
	writeMu     sync.Mutex // Protects websocket writes

	msgID   int
	msgIDMu sync.Mutex

	pending   map[int]chan Message
	pendingMu sync.Mutex

	// events carries zone-changed notifications across sessions; the
	// channel survives disconnects so the tracker's drain loop never
	// has to resubscribe to a new channel.
	events chan ZoneEvent
}

// NewClient creates a new bridge control-channel client
func NewClient(url string, logger *zap.Logger) *Client {
	return &Client{
		url:     url,
		logger:  logger,
		pending: make(map[int]chan Message),
		events:  make(chan ZoneEvent, 64),
	}
}

// Connect establishes the WebSocket session, waits for the bridge's
// welcome frame and subscribes to zone-changed events.
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()

	if c.connected {
		c.connMu.Unlock()
		return fmt.Errorf("already connected")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.connMu.Unlock()
		return fmt.Errorf("failed to connect to bridge: %w", err)
	}

	// The bridge announces itself before accepting requests
	var welcome Message
	if err := conn.ReadJSON(&welcome); err != nil {
		conn.Close()
		c.connMu.Unlock()
		return fmt.Errorf("failed to read welcome: %w", err)
	}

	if welcome.Type != "welcome" {
		conn.Close()
		c.connMu.Unlock()
		return fmt.Errorf("expected welcome, got %s", welcome.Type)
	}

	c.conn = conn
	c.connected = true
	c.sessionDone = make(chan struct{})
	done := c.sessionDone
	c.logger.Info("Connected to Roon bridge", zap.String("url", c.url))

	// Start background message receiver for this session
	go c.receiveMessages(conn, done)

	// Release lock before sending the subscribe request to avoid deadlock
	c.connMu.Unlock()

	if err := c.subscribeZones(ctx); err != nil {
		c.logger.Warn("Failed to subscribe to zone events", zap.Error(err))
	}

	return nil
}

// Close tears down the current session. Safe to call when already closed.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if !c.connected {
		return nil
	}

	c.connected = false
	close(c.sessionDone)

	if c.conn != nil {
		c.writeMu.Lock()
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		c.conn.Close()
		c.conn = nil
	}

	c.logger.Info("Disconnected from Roon bridge")
	return nil
}

// IsConnected returns true if a session is currently established
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// Events returns the zone-changed notification channel
func (c *Client) Events() <-chan ZoneEvent {
	return c.events
}

// nextMsgID returns the next request correlation ID
func (c *Client) nextMsgID() int {
	c.msgIDMu.Lock()
	defer c.msgIDMu.Unlock()
	c.msgID++
	return c.msgID
}

// sendMessage sends a request frame and waits for its correlated response
func (c *Client) sendMessage(ctx context.Context, msgID int, msg interface{}) (*Message, error) {
	c.connMu.RLock()
	if !c.connected {
		c.connMu.RUnlock()
		return nil, ErrConnectionLost
	}
	conn := c.conn
	done := c.sessionDone
	c.connMu.RUnlock()

	respChan := make(chan Message, 1)
	c.pendingMu.Lock()
	c.pending[msgID] = respChan
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, msgID)
		c.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	err := conn.WriteJSON(msg)
	c.writeMu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", ErrConnectionLost)
	}

	select {
	case resp := <-respChan:
		if resp.Success != nil && !*resp.Success {
			return nil, wireError(resp.Error)
		}
		return &resp, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	case <-done:
		return nil, ErrConnectionLost
	}
}

// wireError maps a bridge error payload onto the package's sentinels
func wireError(we *WireError) error {
	if we == nil {
		return fmt.Errorf("request failed")
	}
	switch we.Code {
	case codeNotFound:
		return fmt.Errorf("%s: %w", we.Message, ErrNotFound)
	case codeTimeout:
		return fmt.Errorf("%s: %w", we.Message, ErrTimeout)
	default:
		return fmt.Errorf("bridge error: %s - %s", we.Code, we.Message)
	}
}

// receiveMessages handles incoming frames for one session
func (c *Client) receiveMessages(conn *websocket.Conn, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			c.handleDisconnect(done, err)
			return
		}

		if msg.Type == "event" {
			c.handleEvent(&msg)
			continue
		}

		// Route response to the waiting goroutine
		if msg.ID > 0 {
			c.pendingMu.Lock()
			if ch, ok := c.pending[msg.ID]; ok {
				select {
				case ch <- msg:
				default:
					c.logger.Warn("Response channel full", zap.Int("msg_id", msg.ID))
				}
			}
			c.pendingMu.Unlock()
		}
	}
}

// handleEvent parses zone-changed events and pushes them onto the
// events channel. Delivery is best-effort; the tracker refreshes on
// demand, so a dropped event only delays convergence.
func (c *Client) handleEvent(msg *Message) {
	if msg.Event == nil || msg.Event.EventType != "zone_changed" {
		return
	}

	var ev ZoneEvent
	if err := json.Unmarshal(msg.Event.Data, &ev); err != nil {
		c.logger.Error("Failed to unmarshal zone_changed event", zap.Error(err))
		return
	}

	select {
	case c.events <- ev:
	default:
		c.logger.Warn("Zone event channel full, dropping event", zap.String("zone_id", ev.ZoneID))
	}
}

// handleDisconnect marks the session dead. Recovery belongs to the
// health monitor; nothing is retried here.
func (c *Client) handleDisconnect(done chan struct{}, cause error) {
	c.connMu.Lock()
	if c.sessionDone != done {
		// A newer session already replaced this one
		c.connMu.Unlock()
		return
	}
	if c.connected {
		c.connected = false
		close(c.sessionDone)
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
	}
	c.connMu.Unlock()

	c.logger.Warn("Bridge connection lost", zap.Error(cause))
}

// subscribeZones subscribes the session to zone_changed events
func (c *Client) subscribeZones(ctx context.Context) error {
	msgID := c.nextMsgID()
	req := &SubscribeZonesRequest{
		ID:   msgID,
		Type: "subscribe_zones",
	}

	_, err := c.sendMessage(ctx, msgID, req)
	return err
}

// Browse resolves a hierarchical library path and returns its items
func (c *Client) Browse(ctx context.Context, path []string) ([]BrowseItem, error) {
	msgID := c.nextMsgID()
	req := &BrowseRequest{
		ID:   msgID,
		Type: "browse",
		Path: path,
	}

	resp, err := c.sendMessage(ctx, msgID, req)
	if err != nil {
		return nil, err
	}

	var items []BrowseItem
	if err := json.Unmarshal(resp.Result, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal browse result: %w", err)
	}

	return items, nil
}

// PlayMedia starts playback of a resolved path on the given zone. An
// empty action uses the library's default action for the entry.
func (c *Client) PlayMedia(ctx context.Context, path []string, zoneID, action string) error {
	msgID := c.nextMsgID()
	req := &PlayMediaRequest{
		ID:     msgID,
		Type:   "play_media",
		Path:   path,
		ZoneID: zoneID,
		Action: action,
	}

	_, err := c.sendMessage(ctx, msgID, req)
	return err
}

// Transport issues a transport control (play/pause/next/previous/stop)
func (c *Client) Transport(ctx context.Context, zoneID, control string) error {
	msgID := c.nextMsgID()
	req := &TransportRequest{
		ID:      msgID,
		Type:    "transport_control",
		ZoneID:  zoneID,
		Control: control,
	}

	_, err := c.sendMessage(ctx, msgID, req)
	return err
}

// ListZones retrieves all zones currently known to the bridge
func (c *Client) ListZones(ctx context.Context) ([]ZoneInfo, error) {
	msgID := c.nextMsgID()
	req := &ListZonesRequest{
		ID:   msgID,
		Type: "list_zones",
	}

	resp, err := c.sendMessage(ctx, msgID, req)
	if err != nil {
		return nil, err
	}

	var zones []ZoneInfo
	if err := json.Unmarshal(resp.Result, &zones); err != nil {
		return nil, fmt.Errorf("failed to unmarshal zones: %w", err)
	}

	return zones, nil
}

// Status retrieves the bridge's liveness/status payload
func (c *Client) Status(ctx context.Context) (*BridgeStatus, error) {
	msgID := c.nextMsgID()
	req := &StatusRequest{
		ID:   msgID,
		Type: "status",
	}

	resp, err := c.sendMessage(ctx, msgID, req)
	if err != nil {
		return nil, err
	}

	var status BridgeStatus
	if err := json.Unmarshal(resp.Result, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}

	return &status, nil
}
