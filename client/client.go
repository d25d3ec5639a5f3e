package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashu01304/nostr-forms-sub000/crypto"
	"github.com/ashu01304/nostr-forms-sub000/pool"
	"github.com/ashu01304/nostr-forms-sub000/protocol"
	"github.com/ashu01304/nostr-forms-sub000/store"
)

var (
	// ErrSpecNotFound is returned when no relay produced a form
	// specification event for the requested form before end-of-stored.
	ErrSpecNotFound = errors.New("client: form specification not found")

	// ErrViewKeyRequired is returned when the form specification content is
	// encrypted and no view key was supplied.
	ErrViewKeyRequired = errors.New("client: encrypted form requires a view key")
)

// Options configures a Client.
type Options struct {
	// Pool opens the relay subscriptions. Required.
	Pool *pool.Pool
	// Store, when set, caches response events and seeds new sessions.
	Store *store.Store
	// Log defaults to slog.Default().
	Log *slog.Logger
}

// Client runs form sessions over a relay pool, with an optional local event
// cache.
type Client struct {
	pool  *pool.Pool
	store *store.Store
	log   *slog.Logger
}

// New creates a Client. Options.Pool must be set.
func New(opts Options) (*Client, error) {
	if opts.Pool == nil {
		return nil, errors.New("client: pool is required")
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Client{pool: opts.Pool, store: opts.Store, log: log}, nil
}

// FetchFormSpec resolves the newest form specification event for
// (owner, formID) across the given relays and parses it. An event with
// non-empty content carries its tag list encrypted under the form view key;
// viewSecret must then hold that key's 32 raw bytes. It may be nil for
// public forms.
//
// The fetch ends at end-of-stored (or when ctx is done); form
// specifications are replaceable events, so live updates are not waited
// for.
func (c *Client) FetchFormSpec(ctx context.Context, urls []string, owner, formID string, viewSecret []byte) (*protocol.FormSpec, error) {
	sub, err := c.pool.Subscribe(ctx, urls, protocol.SpecFilter(owner, formID))
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	var latest *protocol.Event

	take := func(ev *protocol.Event) {
		if ev.Kind != protocol.KindFormSpec || ev.PubKey != owner {
			return
		}
		if latest == nil || ev.CreatedAt > latest.CreatedAt {
			latest = ev
		}
	}

collect:
	for {
		select {
		case d, ok := <-sub.Events():
			if !ok {
				break collect
			}
			take(d.Event)
		case <-sub.EOSE():
			// Drain what the relays delivered before end-of-stored.
			for {
				select {
				case d, ok := <-sub.Events():
					if !ok {
						break collect
					}
					take(d.Event)
				default:
					break collect
				}
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if latest == nil {
		return nil, ErrSpecNotFound
	}
	return parseSpecEvent(latest, owner, formID, viewSecret)
}

func parseSpecEvent(ev *protocol.Event, owner, formID string, viewSecret []byte) (*protocol.FormSpec, error) {
	tags := ev.Tags
	if ev.Content != "" {
		if len(viewSecret) == 0 {
			return nil, ErrViewKeyRequired
		}
		key, err := crypto.DeriveConversationKey(viewSecret, owner)
		if err != nil {
			return nil, fmt.Errorf("client: derive view key: %w", err)
		}
		plain, err := crypto.Decrypt(key, ev.Content)
		if err != nil {
			return nil, fmt.Errorf("client: decrypt form specification: %w", err)
		}
		if err := json.Unmarshal(plain, &tags); err != nil {
			return nil, fmt.Errorf("client: decode form specification tags: %w", err)
		}
	}
	spec, err := protocol.ParseFormSpec(owner, formID, tags)
	if err != nil {
		return nil, err
	}
	return spec, nil
}

// sessionRelays widens the configured relay list with the relays the form
// specification names, preserving order and dropping duplicates.
func sessionRelays(urls []string, spec *protocol.FormSpec) []string {
	seen := make(map[string]struct{}, len(urls)+len(spec.Relays))
	out := make([]string, 0, len(urls)+len(spec.Relays))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	for _, u := range spec.Relays {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
