package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/ashu01304/nostr-forms-sub000/client"
	"github.com/ashu01304/nostr-forms-sub000/protocol"
	"github.com/ashu01304/nostr-forms-sub000/relay"
)

// SessionHandler serves one live collection session read-only: the form
// shape, the aggregated rows and the relay health map.
type SessionHandler struct {
	log     *slog.Logger
	spec    *protocol.FormSpec
	watch   *client.Watch
	monitor *relay.Monitor

	mu    sync.RWMutex
	items []relay.Item
}

// NewSessionHandler builds a registrar over an already-opened watch. items
// are the relay endpoints the health endpoints probe and report on.
func NewSessionHandler(log *slog.Logger, spec *protocol.FormSpec, watch *client.Watch, monitor *relay.Monitor, items []relay.Item) *SessionHandler {
	return &SessionHandler{
		log:     log,
		spec:    spec,
		watch:   watch,
		monitor: monitor,
		items:   items,
	}
}

func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/form", h.handleForm)
	r.Get("/api/responses", h.handleResponses)
	r.Get("/api/responses/summary", h.handleSummary)
	r.Get("/api/relays", h.handleRelays)
	r.Post("/api/relays/probe", h.handleProbe)
}

type fieldInfo struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
}

type formInfo struct {
	Owner  string      `json:"owner"`
	FormID string      `json:"formId"`
	Name   string      `json:"name"`
	Fields []fieldInfo `json:"fields"`
}

func (h *SessionHandler) handleForm(w http.ResponseWriter, r *http.Request) {
	info := formInfo{
		Owner:  h.spec.Owner,
		FormID: h.spec.ID,
		Name:   h.spec.DisplayName(),
		Fields: make([]fieldInfo, 0, len(h.spec.Fields)),
	}
	for _, f := range h.spec.Fields {
		info.Fields = append(info.Fields, fieldInfo{ID: f.ID, Type: string(f.Type), Label: f.Label})
	}
	h.writeJSON(w, info)
}

type responseRow struct {
	Author    string            `json:"author"`
	CreatedAt int64             `json:"createdAt"`
	SeenCount int               `json:"seenCount"`
	Readable  bool              `json:"readable"`
	Values    map[string]string `json:"values"`
	Labels    map[string]string `json:"labels"`
}

func (h *SessionHandler) handleResponses(w http.ResponseWriter, r *http.Request) {
	rows := h.watch.Rows()
	out := make([]responseRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, responseRow{
			Author:    row.Author,
			CreatedAt: row.CreatedAt,
			SeenCount: row.SeenCount,
			Readable:  row.Readable,
			Values:    row.Values,
			Labels:    row.Labels,
		})
	}
	h.writeJSON(w, out)
}

func (h *SessionHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.watch.Summary())
}

type relayInfo struct {
	URL    string       `json:"url"`
	Status relay.Status `json:"status"`
}

func (h *SessionHandler) handleRelays(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	items := h.items
	h.mu.RUnlock()

	out := make([]relayInfo, 0, len(items))
	for _, item := range items {
		out = append(out, relayInfo{URL: item.URL, Status: h.monitor.Status(item.LocalID)})
	}
	h.writeJSON(w, out)
}

// handleProbe re-probes every relay in the background; poll /api/relays for
// the outcome.
func (h *SessionHandler) handleProbe(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	items := h.items
	h.mu.RUnlock()

	for _, item := range items {
		go h.monitor.Probe(context.Background(), item, relay.DefaultProbeTimeout)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte(`{"status":"probing"}`))
}

func (h *SessionHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode response", "err", err)
	}
}
