package client

import (
	"context"
	"sync"

	"github.com/ashu01304/nostr-forms-sub000/aggregator"
	"github.com/ashu01304/nostr-forms-sub000/pool"
	"github.com/ashu01304/nostr-forms-sub000/protocol"
)

// Update is one aggregator verdict, annotated with the relay the event
// arrived from. Relay is empty for events replayed from the local cache.
type Update struct {
	Relay  string
	Result aggregator.Result
}

// Watch is a live response-collection session for one form. Updates carries
// one entry per ingested event and closes when the session ends; Rows and
// Summary expose the aggregate at any point in between.
type Watch struct {
	sub     *pool.Subscription
	updates chan Update

	mu  sync.Mutex
	agg *aggregator.Aggregator
}

// WatchResponses opens a response subscription for the form on the given
// relays, widened with the relays the specification itself names, and wires
// it into a fresh aggregator keyed by keys.
//
// When the client has a store, cached events for the form are replayed
// through the aggregator before the subscription opens, and the
// subscription resumes just past the newest cached event.
func (c *Client) WatchResponses(ctx context.Context, urls []string, spec *protocol.FormSpec, keys aggregator.KeySource) (*Watch, error) {
	w := &Watch{
		agg:     aggregator.New(spec, keys, c.log),
		updates: make(chan Update),
	}

	var cached []*protocol.Event
	var since int64
	if c.store != nil {
		var err error
		cached, err = c.store.Events(ctx, spec.Owner, spec.ID)
		if err != nil {
			return nil, err
		}
		latest, err := c.store.LatestCreatedAt(ctx, spec.Owner, spec.ID)
		if err != nil {
			return nil, err
		}
		if latest > 0 {
			since = latest + 1
		}
	}

	sub, err := c.pool.Subscribe(ctx, sessionRelays(urls, spec), protocol.ResponseFilter(spec.Owner, spec.ID, since))
	if err != nil {
		return nil, err
	}
	w.sub = sub

	go w.run(ctx, c, spec, cached)
	return w, nil
}

// run is the only goroutine that touches the aggregator while the session
// is live; cached events go first so relay deliveries land on a seeded
// state.
func (w *Watch) run(ctx context.Context, c *Client, spec *protocol.FormSpec, cached []*protocol.Event) {
	defer close(w.updates)

	for _, ev := range cached {
		if !w.emit(ctx, Update{Result: w.ingest(ev)}) {
			return
		}
	}

	for d := range w.sub.Events() {
		res := w.ingest(d.Event)
		if c.store != nil && res.Rejected != aggregator.RejectWrongKind {
			if err := c.store.PutEvent(ctx, spec.Owner, spec.ID, d.Event); err != nil {
				c.log.Warn("failed to cache response event", "relay", d.Relay, "err", err)
			}
		}
		if !w.emit(ctx, Update{Relay: d.Relay, Result: res}) {
			return
		}
	}
}

func (w *Watch) ingest(ev *protocol.Event) aggregator.Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.agg.Ingest(ev)
}

func (w *Watch) emit(ctx context.Context, u Update) bool {
	select {
	case w.updates <- u:
		return true
	case <-ctx.Done():
		return false
	case <-w.sub.Done():
		return false
	}
}

// Updates delivers one Update per ingested event. The channel closes when
// the session ends; a consumer that stops reading stalls delivery but the
// session still unwinds on Close or context cancellation.
func (w *Watch) Updates() <-chan Update { return w.updates }

// EOSE is closed once every reachable relay reported end-of-stored.
func (w *Watch) EOSE() <-chan struct{} { return w.sub.EOSE() }

// Done is closed when the underlying subscription has fully shut down.
func (w *Watch) Done() <-chan struct{} { return w.sub.Done() }

// Reachability reports the per-relay connection outcome so far.
func (w *Watch) Reachability() map[string]error { return w.sub.Reachability() }

// Rows returns the current respondent rows in first-seen order.
func (w *Watch) Rows() []*aggregator.Row {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.agg.Rows()
}

// Summary returns per-option selection counts over the current rows.
func (w *Watch) Summary() []aggregator.FieldSummary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.agg.Summary()
}

// Close ends the session and waits for the subscription to unwind. Safe to
// call from the goroutine consuming Updates.
func (w *Watch) Close() { w.sub.Close() }
