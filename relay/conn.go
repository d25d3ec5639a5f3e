package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"

	"github.com/ashu01304/nostr-forms-sub000/protocol"
)

// Wire frame labels of the relay protocol.
const (
	frameReq    = "REQ"
	frameClose  = "CLOSE"
	frameEvent  = "EVENT"
	frameEOSE   = "EOSE"
	frameClosed = "CLOSED"
	frameNotice = "NOTICE"
)

// subscriptionBuffer is the per-subscription event queue depth. A relay that
// outruns a slow consumer beyond this depth has its events dropped rather
// than blocking the connection's read loop; Dropped exposes the count.
const subscriptionBuffer = 256

// ErrConnClosed is returned for operations on a closed connection.
var ErrConnClosed = errors.New("relay: connection closed")

// Conn is one live connection to a relay endpoint. All methods are safe for
// concurrent use. The zero value is not usable; use Dial.
type Conn struct {
	url string
	log *slog.Logger

	ws      *websocket.Conn
	writeMu sync.Mutex

	mu     sync.Mutex
	subs   map[string]*subscription
	closed bool
	err    error

	dropped atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
}

type subscription struct {
	events   chan *protocol.Event
	eose     chan struct{}
	eoseOnce sync.Once
}

// Dial opens a websocket connection to a relay URL. The context bounds the
// handshake only; the connection outlives it.
func Dial(ctx context.Context, url string, log *slog.Logger) (*Conn, error) {
	if log == nil {
		log = slog.Default()
	}
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("relay: dial %s: %w", url, err)
	}

	c := &Conn{
		url:  url,
		log:  log.With("relay", url),
		ws:   ws,
		subs: make(map[string]*subscription),
		done: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// URL returns the relay endpoint this connection is bound to.
func (c *Conn) URL() string { return c.url }

// Subscribe opens a logical subscription and returns its event stream. The
// second channel closes once the relay signals end of stored events.
func (c *Conn) Subscribe(id string, filters ...protocol.Filter) (<-chan *protocol.Event, <-chan struct{}, error) {
	sub := &subscription{
		events: make(chan *protocol.Event, subscriptionBuffer),
		eose:   make(chan struct{}),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, nil, ErrConnClosed
	}
	c.subs[id] = sub
	c.mu.Unlock()

	frame := make([]any, 0, 2+len(filters))
	frame = append(frame, frameReq, id)
	for _, f := range filters {
		frame = append(frame, f)
	}
	if err := c.writeFrame(frame); err != nil {
		c.dropSubscription(id)
		return nil, nil, err
	}
	return sub.events, sub.eose, nil
}

// Unsubscribe tears down a logical subscription and closes its event stream.
func (c *Conn) Unsubscribe(id string) {
	if c.dropSubscription(id) {
		_ = c.writeFrame([]any{frameClose, id})
	}
}

// Close shuts the connection down, closing all subscription streams. It is
// idempotent and safe to call concurrently with event delivery.
func (c *Conn) Close() error {
	c.closeWith(ErrConnClosed)
	return nil
}

// Done is closed once the connection is no longer delivering events, whether
// by Close or by a transport failure.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err reports why the connection terminated; nil while it is live.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Conn) writeFrame(frame []any) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("relay: encode frame: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("relay: write to %s: %w", c.url, err)
	}
	return nil
}

func (c *Conn) dropSubscription(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[id]
	if !ok {
		return false
	}
	delete(c.subs, id)
	close(sub.events)
	return !c.closed
}

func (c *Conn) closeWith(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.err = err
		subs := c.subs
		c.subs = make(map[string]*subscription)
		c.mu.Unlock()

		for _, sub := range subs {
			close(sub.events)
		}
		_ = c.ws.Close()
		close(c.done)
	})
}

// readLoop parses inbound frames and routes events to their subscription
// until the transport fails or the connection is closed.
func (c *Conn) readLoop() {
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			c.closeWith(fmt.Errorf("relay: read from %s: %w", c.url, err))
			return
		}
		c.handleFrame(payload)
	}
}

func (c *Conn) handleFrame(payload []byte) {
	var frame []json.RawMessage
	if err := json.Unmarshal(payload, &frame); err != nil || len(frame) == 0 {
		c.log.Debug("discarding unparseable frame")
		return
	}
	var label string
	if err := json.Unmarshal(frame[0], &label); err != nil {
		return
	}

	switch label {
	case frameEvent:
		if len(frame) < 3 {
			return
		}
		var subID string
		if err := json.Unmarshal(frame[1], &subID); err != nil {
			return
		}
		var ev protocol.Event
		if err := json.Unmarshal(frame[2], &ev); err != nil {
			c.log.Debug("discarding malformed event", "sub", subID)
			return
		}
		c.deliver(subID, &ev)

	case frameEOSE:
		if len(frame) < 2 {
			return
		}
		var subID string
		if err := json.Unmarshal(frame[1], &subID); err != nil {
			return
		}
		c.mu.Lock()
		sub, ok := c.subs[subID]
		c.mu.Unlock()
		if ok {
			sub.eoseOnce.Do(func() { close(sub.eose) })
		}

	case frameClosed:
		if len(frame) < 2 {
			return
		}
		var subID string
		if err := json.Unmarshal(frame[1], &subID); err != nil {
			return
		}
		c.log.Debug("relay closed subscription", "sub", subID)
		c.dropSubscription(subID)

	case frameNotice:
		var msg string
		if len(frame) > 1 {
			_ = json.Unmarshal(frame[1], &msg)
		}
		c.log.Debug("relay notice", "msg", msg)
	}
}

func (c *Conn) deliver(subID string, ev *protocol.Event) {
	// The send happens under mu so a concurrent Unsubscribe/Close cannot
	// close the channel out from under it. The send never blocks.
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[subID]
	if !ok {
		return
	}
	select {
	case sub.events <- ev:
	default:
		c.dropped.Inc()
		c.log.Warn("subscription queue full, dropping event", "sub", subID, "event", ev.ID)
	}
}

// Dropped reports how many events this connection discarded because a
// subscription buffer was full. A non-zero count means the consumer fell
// behind and the session may be missing events.
func (c *Conn) Dropped() uint64 { return c.dropped.Load() }
