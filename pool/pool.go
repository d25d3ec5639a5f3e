package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/ashu01304/nostr-forms-sub000/protocol"
	"github.com/ashu01304/nostr-forms-sub000/relay"
)

// Defaults applied when Options leaves a knob zero.
const (
	DefaultDialTimeout = 10 * time.Second
	DefaultQueueSize   = 512
)

// ErrNoRelays is returned when a subscription is requested with an empty
// relay list. This is the only hard subscribe error: individual relay
// failures are reported through Reachability, never as an error.
var ErrNoRelays = errors.New("pool: no relay urls given")

// Options configures a Pool.
type Options struct {
	// Log receives connection lifecycle events. Defaults to slog.Default().
	Log *slog.Logger
	// DialTimeout bounds each relay's websocket handshake.
	DialTimeout time.Duration
	// QueueSize bounds the subscription's delivery queue.
	QueueSize int
}

// Pool opens multi-relay subscriptions. The zero value is not usable; use
// New.
type Pool struct {
	log         *slog.Logger
	dialTimeout time.Duration
	queueSize   int
}

// New creates a subscription manager with the given options.
func New(opts Options) *Pool {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Pool{log: log, dialTimeout: dialTimeout, queueSize: queueSize}
}

// Delivery is one event received on a subscription, annotated with the relay
// it arrived from. The same event id may be delivered several times, once
// per relay that carries it; deduplication belongs to the aggregation layer.
type Delivery struct {
	Relay string
	Event *protocol.Event
}

// Subscription is a live logical subscription over the union of a relay
// list. Consumers range over Events until it closes; Close is the
// cancellation handle and is safe to call from the consuming goroutine.
type Subscription struct {
	id     string
	cancel context.CancelFunc

	queue chan Delivery
	done  chan struct{}

	eoseCh      chan struct{}
	eosePending *atomic.Int32

	mu    sync.Mutex
	reach map[string]error

	closeOnce sync.Once
}

// Subscribe opens one logical subscription with a single filter against
// every given relay. It returns immediately; connections are established in
// the background and a relay that cannot be reached only shows up in
// Reachability. The subscription ends when ctx is canceled or Close is
// called.
func (p *Pool) Subscribe(ctx context.Context, urls []string, filter protocol.Filter) (*Subscription, error) {
	if len(urls) == 0 {
		return nil, ErrNoRelays
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		id:          uuid.NewString(),
		cancel:      cancel,
		queue:       make(chan Delivery, p.queueSize),
		done:        make(chan struct{}),
		eoseCh:      make(chan struct{}),
		eosePending: atomic.NewInt32(int32(len(urls))),
		reach:       make(map[string]error, len(urls)),
	}

	var wg sync.WaitGroup
	for _, url := range urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			p.serveRelay(ctx, s, url, filter)
		}(url)
	}

	go func() {
		wg.Wait()
		close(s.queue)
		close(s.done)
	}()

	return s, nil
}

// serveRelay feeds one relay's events into the subscription queue until the
// subscription ends or the connection dies. A dead or unreachable relay
// never fails the subscription as a whole.
func (p *Pool) serveRelay(ctx context.Context, s *Subscription, url string, filter protocol.Filter) {
	dialCtx, cancelDial := context.WithTimeout(ctx, p.dialTimeout)
	conn, err := relay.Dial(dialCtx, url, p.log)
	cancelDial()
	if err != nil {
		p.log.Warn("relay unreachable", "relay", url, "err", err)
		s.setReach(url, err)
		s.markEOSE()
		return
	}
	defer func() {
		conn.Close()
		if n := conn.Dropped(); n > 0 {
			p.log.Warn("relay dropped events on a full queue", "relay", url, "dropped", n)
		}
	}()
	s.setReach(url, nil)

	events, eose, err := conn.Subscribe(s.id, filter)
	if err != nil {
		s.setReach(url, err)
		s.markEOSE()
		return
	}

	eoseSeen := false
	markOnce := func() {
		if !eoseSeen {
			eoseSeen = true
			s.markEOSE()
		}
	}

	for {
		select {
		case <-ctx.Done():
			markOnce()
			return

		case <-eose:
			// Stored events the relay sent before its EOSE frame are
			// already buffered on the events channel; flush them first so
			// EOSE observers see complete stored history.
			eose = nil // fires once; stop selecting on it
			for flushed := false; !flushed; {
				select {
				case ev, ok := <-events:
					if !ok {
						markOnce()
						return
					}
					if !s.forward(ctx, url, ev) {
						markOnce()
						return
					}
				default:
					flushed = true
				}
			}
			markOnce()

		case ev, ok := <-events:
			if !ok {
				// Connection died; the rest of the relay set carries on.
				if err := conn.Err(); err != nil && !errors.Is(err, relay.ErrConnClosed) {
					p.log.Warn("relay connection lost", "relay", url, "err", err)
					s.setReach(url, err)
				}
				markOnce()
				return
			}
			if !s.forward(ctx, url, ev) {
				markOnce()
				return
			}
		}
	}
}

// forward queues one delivery, giving up when the subscription is ending.
func (s *Subscription) forward(ctx context.Context, url string, ev *protocol.Event) bool {
	select {
	case s.queue <- Delivery{Relay: url, Event: ev}:
		return true
	case <-ctx.Done():
		return false
	}
}

// Events is the subscription's delivery stream. It closes once the
// subscription has fully shut down; consumers should stop then.
func (s *Subscription) Events() <-chan Delivery { return s.queue }

// EOSE is closed once every relay has either reported end of stored events
// or failed, i.e. all stored history that is going to arrive has arrived.
func (s *Subscription) EOSE() <-chan struct{} { return s.eoseCh }

// Done is closed when the subscription has released all relay connections
// and Events is closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Reachability reports the best-effort per-relay outcome: nil for a relay
// that connected, the dial or transport error otherwise. Relays still
// connecting are absent.
func (s *Subscription) Reachability() map[string]error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]error, len(s.reach))
	for url, err := range s.reach {
		out[url] = err
	}
	return out
}

// Close terminates the subscription: all per-relay listeners unregister,
// sockets close, and Events closes after in-flight deliveries are dropped.
// Idempotent, and safe to call from the goroutine consuming Events.
func (s *Subscription) Close() {
	s.closeOnce.Do(s.cancel)
	<-s.done
}

func (s *Subscription) setReach(url string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reach[url] = err
}

func (s *Subscription) markEOSE() {
	if s.eosePending.Dec() == 0 {
		close(s.eoseCh)
	}
}
