package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/ashu01304/nostr-forms-sub000/protocol"
)

// FakeRelay is an in-process relay endpoint for tests. It serves stored
// events to new subscriptions (each stored event once per matching REQ,
// or more often via DuplicateStored) followed by EOSE, and pushes
// live-published events to all matching subscriptions.
type FakeRelay struct {
	t      *testing.T
	server *httptest.Server

	mu     sync.Mutex
	stored []*protocol.Event
	// duplicateStored > 1 makes each stored event be delivered that many
	// times, simulating a relay that re-emits duplicates.
	duplicateStored int
	clients         map[*relayClient]struct{}
	reqCount        int
}

type relayClient struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string][]protocol.Filter
}

// NewFakeRelay starts a fake relay; it shuts down with the test.
func NewFakeRelay(t *testing.T) *FakeRelay {
	t.Helper()
	fr := &FakeRelay{
		t:               t,
		duplicateStored: 1,
		clients:         make(map[*relayClient]struct{}),
	}
	upgrader := websocket.Upgrader{}
	fr.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := &relayClient{ws: ws, subs: make(map[string][]protocol.Filter)}
		fr.mu.Lock()
		fr.clients[client] = struct{}{}
		fr.mu.Unlock()
		fr.serve(client)
	}))
	t.Cleanup(fr.Close)
	return fr
}

// URL returns the websocket endpoint of the fake relay.
func (fr *FakeRelay) URL() string {
	return "ws" + strings.TrimPrefix(fr.server.URL, "http")
}

// Store adds events served to future subscriptions.
func (fr *FakeRelay) Store(events ...*protocol.Event) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.stored = append(fr.stored, events...)
}

// DuplicateStored makes every stored event be delivered n times per
// subscription.
func (fr *FakeRelay) DuplicateStored(n int) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.duplicateStored = n
}

// Publish delivers an event live to every open matching subscription.
func (fr *FakeRelay) Publish(ev *protocol.Event) {
	fr.mu.Lock()
	clients := make([]*relayClient, 0, len(fr.clients))
	for c := range fr.clients {
		clients = append(clients, c)
	}
	fr.mu.Unlock()

	for _, c := range clients {
		c.mu.Lock()
		for subID, filters := range c.subs {
			if matchesAny(filters, ev) {
				c.send("EVENT", subID, ev)
			}
		}
		c.mu.Unlock()
	}
}

// ReqCount reports how many REQ frames the relay has received.
func (fr *FakeRelay) ReqCount() int {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return fr.reqCount
}

// Close tears the relay down, dropping all client connections.
func (fr *FakeRelay) Close() {
	fr.mu.Lock()
	clients := make([]*relayClient, 0, len(fr.clients))
	for c := range fr.clients {
		clients = append(clients, c)
	}
	fr.mu.Unlock()

	// The server's Close never reaches hijacked websocket connections;
	// drop them explicitly so clients observe the shutdown.
	for _, c := range clients {
		_ = c.ws.Close()
	}
	fr.server.Close()
}

func (fr *FakeRelay) serve(client *relayClient) {
	defer func() {
		fr.mu.Lock()
		delete(fr.clients, client)
		fr.mu.Unlock()
		client.ws.Close()
	}()

	for {
		_, payload, err := client.ws.ReadMessage()
		if err != nil {
			return
		}
		var frame []json.RawMessage
		if err := json.Unmarshal(payload, &frame); err != nil || len(frame) < 2 {
			continue
		}
		var label, subID string
		if err := json.Unmarshal(frame[0], &label); err != nil {
			continue
		}
		if err := json.Unmarshal(frame[1], &subID); err != nil {
			continue
		}

		switch label {
		case "REQ":
			var filters []protocol.Filter
			for _, raw := range frame[2:] {
				var f wireFilter
				if err := json.Unmarshal(raw, &f); err == nil {
					filters = append(filters, f.toFilter())
				}
			}
			client.mu.Lock()
			client.subs[subID] = filters
			client.mu.Unlock()
			fr.answerReq(client, subID, filters)
		case "CLOSE":
			client.mu.Lock()
			delete(client.subs, subID)
			client.mu.Unlock()
		}
	}
}

func (fr *FakeRelay) answerReq(client *relayClient, subID string, filters []protocol.Filter) {
	fr.mu.Lock()
	fr.reqCount++
	stored := append([]*protocol.Event(nil), fr.stored...)
	repeat := fr.duplicateStored
	fr.mu.Unlock()

	for _, ev := range stored {
		if !matchesAny(filters, ev) {
			continue
		}
		for i := 0; i < repeat; i++ {
			client.mu.Lock()
			client.send("EVENT", subID, ev)
			client.mu.Unlock()
		}
	}
	client.mu.Lock()
	client.send("EOSE", subID, nil)
	client.mu.Unlock()
}

func (c *relayClient) send(label, subID string, ev *protocol.Event) {
	frame := []any{label, subID}
	if ev != nil {
		frame = append(frame, ev)
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	c.writeMu.Lock()
	_ = c.ws.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
}

func matchesAny(filters []protocol.Filter, ev *protocol.Event) bool {
	if len(filters) == 0 {
		return false
	}
	for _, f := range filters {
		if f.Matches(ev) {
			return true
		}
	}
	return false
}

// wireFilter parses the relay wire form of a filter, including "#x" tag
// conditions.
type wireFilter struct {
	IDs     []string `json:"ids"`
	Authors []string `json:"authors"`
	Kinds   []int    `json:"kinds"`
	Since   int64    `json:"since"`
	Until   int64    `json:"until"`
	Limit   int      `json:"limit"`

	tagFilters map[string][]string
}

func (w *wireFilter) UnmarshalJSON(data []byte) error {
	type plain wireFilter
	if err := json.Unmarshal(data, (*plain)(w)); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, val := range raw {
		if !strings.HasPrefix(key, "#") {
			continue
		}
		var values []string
		if err := json.Unmarshal(val, &values); err != nil {
			return fmt.Errorf("tag filter %s: %w", key, err)
		}
		if w.tagFilters == nil {
			w.tagFilters = make(map[string][]string)
		}
		w.tagFilters[strings.TrimPrefix(key, "#")] = values
	}
	return nil
}

func (w wireFilter) toFilter() protocol.Filter {
	return protocol.Filter{
		IDs:        w.IDs,
		Authors:    w.Authors,
		Kinds:      w.Kinds,
		TagFilters: w.tagFilters,
		Since:      w.Since,
		Until:      w.Until,
		Limit:      w.Limit,
	}
}
