package hass

// Goroutine safety:
// readLoop is the sole reader of conn. Writes are serialized by writeMu
// because gorilla/websocket allows one concurrent writer. mu guards the
// pending, handlers and states maps. Event handlers run on the read
// goroutine without mu held, so they must not block.

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// defaultTimeout bounds the auth handshake and unsubscribe calls.
	defaultTimeout = 10 * time.Second

	// defaultRequestsPerSecond throttles outbound commands. A show-all
	// refresh issues one plant/get_info per plant at once.
	defaultRequestsPerSecond = 20
)

// Options tunes a Client. The zero value is usable.
type Options struct {
	RequestsPerSecond float64
	Timeout           time.Duration
	Dialer            *websocket.Dialer
}

// CommandError is a failed command result reported by Home Assistant.
type CommandError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("hass: %s: %s", e.Code, e.Message)
}

// message is the union of every frame Home Assistant sends.
type message struct {
	ID      int64           `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success bool            `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *CommandError   `json:"error,omitempty"`
	Event   *Event          `json:"event,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Client is a websocket connection to Home Assistant.
type Client struct {
	conn    *websocket.Conn
	limiter *rate.Limiter
	timeout time.Duration

	writeMu sync.Mutex
	nextID  atomic.Int64

	mu       sync.Mutex
	pending  map[int64]chan message
	handlers map[int64]func(Event)
	states   map[string]EntityState

	done      chan struct{}
	closeOnce sync.Once
	readErr   error
}

var _ Bridge = (*Client)(nil)

// Dial connects to Home Assistant at baseURL (http(s):// or ws(s)://) and
// authenticates with a long-lived access token.
func Dial(ctx context.Context, baseURL, token string, opts Options) (*Client, error) {
	wsURL, err := websocketURL(baseURL)
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRequestsPerSecond
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	if err := authenticate(conn, token, opts.Timeout); err != nil {
		conn.Close()
		return nil, err
	}

	burst := int(opts.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	c := &Client{
		conn:     conn,
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst),
		timeout:  opts.Timeout,
		pending:  make(map[int64]chan message),
		handlers: make(map[int64]func(Event)),
		states:   make(map[string]EntityState),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// websocketURL maps a Home Assistant base URL to its websocket endpoint.
func websocketURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse hass url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("hass url %q: unsupported scheme %q", raw, u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/api/websocket") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/api/websocket"
	}
	return u.String(), nil
}

// authenticate runs the auth_required -> auth -> auth_ok handshake.
func authenticate(conn *websocket.Conn, token string, timeout time.Duration) error {
	conn.SetReadDeadline(time.Now().Add(timeout))
	defer conn.SetReadDeadline(time.Time{})

	var hello message
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read auth_required: %w", err)
	}
	if hello.Type != "auth_required" {
		return fmt.Errorf("hass: unexpected greeting %q", hello.Type)
	}

	if err := conn.WriteJSON(map[string]any{"type": "auth", "access_token": token}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	var reply message
	if err := conn.ReadJSON(&reply); err != nil {
		return fmt.Errorf("read auth reply: %w", err)
	}
	switch reply.Type {
	case "auth_ok":
		return nil
	case "auth_invalid":
		return fmt.Errorf("%w: %s", ErrAuthInvalid, reply.Message)
	default:
		return fmt.Errorf("hass: unexpected auth reply %q", reply.Type)
	}
}

// readLoop dispatches results to waiting commands and events to handlers.
func (c *Client) readLoop() {
	for {
		var msg message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.shutdown(err)
			return
		}

		switch msg.Type {
		case "result":
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			delete(c.pending, msg.ID)
			c.mu.Unlock()
			if ok {
				ch <- msg
			}

		case "event":
			if msg.Event == nil {
				continue
			}
			c.applyEvent(*msg.Event)

			c.mu.Lock()
			handler := c.handlers[msg.ID]
			c.mu.Unlock()
			if handler != nil {
				handler(*msg.Event)
			}
		}
	}
}

// applyEvent keeps the state cache current before handlers observe the event.
func (c *Client) applyEvent(ev Event) {
	sc := ev.StateChange()
	if sc.EntityID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if sc.NewState == nil {
		delete(c.states, sc.EntityID)
		return
	}
	c.states[sc.EntityID] = *sc.NewState
}

// shutdown fails every pending command and marks the client closed.
func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.readErr = err
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
		close(c.done)
	})
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection closed, or nil while it is open.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

// Close closes the connection and waits for the read loop to exit.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := c.conn.Close()
	c.shutdown(ErrClosed)
	<-c.done
	return err
}

// command sends payload under a fresh id and waits for its result.
func (c *Client) command(ctx context.Context, payload map[string]any) (json.RawMessage, error) {
	return c.commandWithID(ctx, c.nextID.Add(1), payload)
}

func (c *Client) commandWithID(ctx context.Context, id int64, payload map[string]any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ch := make(chan message, 1)
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return nil, ErrClosed
	default:
	}
	c.pending[id] = ch
	c.mu.Unlock()

	payload["id"] = id
	c.writeMu.Lock()
	err := c.conn.WriteJSON(payload)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("send %v: %w", payload["type"], err)
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if !msg.Success {
			if msg.Error != nil {
				return nil, msg.Error
			}
			return nil, &CommandError{Code: "unknown_error", Message: "command failed"}
		}
		return msg.Result, nil
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Resync replaces the state cache with a fresh get_states result and
// returns a copy of it.
func (c *Client) Resync(ctx context.Context) (map[string]EntityState, error) {
	raw, err := c.command(ctx, map[string]any{"type": "get_states"})
	if err != nil {
		return nil, fmt.Errorf("get_states: %w", err)
	}
	var list []EntityState
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode get_states: %w", err)
	}

	states := make(map[string]EntityState, len(list))
	for _, st := range list {
		states[st.EntityID] = st
	}
	c.mu.Lock()
	c.states = states
	c.mu.Unlock()
	return c.States(), nil
}

// States returns a copy of the state cache.
func (c *Client) States() map[string]EntityState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]EntityState, len(c.states))
	for id, st := range c.states {
		out[id] = st
	}
	return out
}

// SubscribeEvents registers handler for events of eventType. The handler
// is installed before the subscribe command is sent so no event between
// the result and the return of this call is lost.
func (c *Client) SubscribeEvents(ctx context.Context, eventType string, handler func(Event)) (Subscription, error) {
	id := c.nextID.Add(1)
	c.mu.Lock()
	c.handlers[id] = handler
	c.mu.Unlock()

	_, err := c.commandWithID(ctx, id, map[string]any{
		"type":       "subscribe_events",
		"event_type": eventType,
	})
	if err != nil {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("subscribe %s: %w", eventType, err)
	}
	return &subscription{client: c, id: id}, nil
}

type subscription struct {
	client *Client
	id     int64
	once   sync.Once
}

// Unsubscribe stops delivery immediately and tells Home Assistant to drop
// the subscription. Safe to call more than once.
func (s *subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		c := s.client
		c.mu.Lock()
		delete(c.handlers, s.id)
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		_, err = c.command(ctx, map[string]any{
			"type":         "unsubscribe_events",
			"subscription": s.id,
		})
	})
	return err
}

// FetchMetadata calls plant/get_info. A successful call with an empty
// result returns nil metadata and no error.
func (c *Client) FetchMetadata(ctx context.Context, entityID string) (*Metadata, error) {
	raw, err := c.command(ctx, map[string]any{
		"type":      "plant/get_info",
		"entity_id": entityID,
	})
	if err != nil {
		return nil, fmt.Errorf("plant/get_info %s: %w", entityID, err)
	}
	var envelope struct {
		Result *Metadata `json:"result"`
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode plant/get_info %s: %w", entityID, err)
	}
	return envelope.Result, nil
}

// CallService invokes a service and waits for Home Assistant to accept it.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	_, err := c.command(ctx, map[string]any{
		"type":         "call_service",
		"domain":       domain,
		"service":      service,
		"service_data": data,
	})
	if err != nil {
		return fmt.Errorf("call %s.%s: %w", domain, service, err)
	}
	return nil
}
