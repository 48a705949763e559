// Package httpapi exposes a store over HTTP: snapshot reads, dispatching,
// a server-sent-events stream of published snapshots, and Prometheus
// metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store defines what the handlers need from the state container.
type Store interface {
	Snapshot() domain.Snapshot
	Dispatch(ctx context.Context, act domain.Action) *canopy.Pending
	DispatchNamed(ctx context.Context, name, typeTag string, payload any) *canopy.Pending
	Watch(ctx context.Context) <-chan domain.Tree
	Actions() []canopy.ActionInfo
	Name() string
	Queued() int
}

var _ Store = (*canopy.Store)(nil)

// Server holds the handler state.
type Server struct {
	Store Store
}

type config struct {
	gatherer prometheus.Gatherer
}

// Option adjusts the handler configuration.
type Option func(*config)

// WithMetricsGatherer serves /metrics from g instead of the default
// Prometheus gatherer.
func WithMetricsGatherer(g prometheus.Gatherer) Option {
	return func(c *config) {
		c.gatherer = g
	}
}

// NewHandler creates the HTTP handler for a store.
func NewHandler(store Store, opts ...Option) http.Handler {
	cfg := config{gatherer: prometheus.DefaultGatherer}
	for _, opt := range opts {
		opt(&cfg)
	}

	server := &Server{Store: store}
	r := chi.NewRouter()

	r.Get("/state", server.getState)
	r.Get("/state/{path}", server.getStateAt)
	r.Post("/dispatch", server.dispatch)
	r.Get("/actions", server.getActions)
	r.Get("/events", server.events)
	r.Get("/healthz", server.getHealth)
	r.Get("/info", server.getInfo)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.gatherer, promhttp.HandlerOpts{}))

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getState handles GET /state.
func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Store.Snapshot().Tree()); err != nil {
		slog.Error("state response encode failed", "err", err)
	}
}

// getStateAt handles GET /state/{path}. The path segment is a dotted
// selector into the tree.
func (s *Server) getStateAt(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "path")
	value, ok := s.Store.Snapshot().At(path)
	if !ok {
		http.Error(w, fmt.Sprintf("No value at %q", path), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		slog.Error("state response encode failed", "err", err)
	}
}

type dispatchRequest struct {
	Name    string `json:"name,omitempty"`
	Type    string `json:"type,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// dispatch handles POST /dispatch. With a name the action resolves through
// the registered strategy table; with only a type tag it dispatches raw.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	var body dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		slog.Warn("dispatch: invalid request body", "err", err)
		return
	}
	if body.Name == "" && body.Type == "" {
		http.Error(w, "Either name or type is required", http.StatusBadRequest)
		return
	}

	var pending *canopy.Pending
	if body.Name != "" {
		pending = s.Store.DispatchNamed(r.Context(), body.Name, body.Type, body.Payload)
	} else {
		pending = s.Store.Dispatch(r.Context(), domain.Action{Type: body.Type, Payload: body.Payload})
	}

	tree, err := pending.Wait(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrUnknownAction):
			status = http.StatusNotFound
		case errors.Is(err, domain.ErrInvalidActionType):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, domain.ErrClosed):
			status = http.StatusServiceUnavailable
		}
		http.Error(w, fmt.Sprintf("Dispatch error: %v", err), status)
		slog.Warn("dispatch failed", "name", body.Name, "type", body.Type, "err", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(tree); err != nil {
		slog.Error("dispatch response encode failed", "err", err)
	}
}

// getActions handles GET /actions.
func (s *Server) getActions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Store.Actions()); err != nil {
		slog.Error("actions response encode failed", "err", err)
	}
}

// getHealth handles GET /healthz.
func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// getInfo handles GET /info.
func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"app":     "canopy-http",
		"store":   s.Store.Name(),
		"version": strings.TrimSpace(canopy.Version),
		"queued":  s.Store.Queued(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// events handles GET /events (SSE). The stream opens with a ping, then the
// current snapshot, then every published snapshot until the client leaves.
// An optional ?path= query narrows the stream to the value at that dotted
// path; unchanged values are not re-sent.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		slog.Error("events: streaming not supported")
		return
	}

	path := r.URL.Query().Get("path")
	// Subscribe before the snapshot read so no publish falls between them.
	feed := s.Store.Watch(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	var last any
	sent := false
	emit := func(tree domain.Tree) {
		value := any(tree)
		if path != "" {
			v, ok := tree.At(path)
			if !ok {
				return
			}
			value = v
		}
		if sent && reflect.DeepEqual(last, value) {
			return
		}
		data, err := json.Marshal(value)
		if err != nil {
			slog.Warn("events: marshal failed", "err", err)
			return
		}
		last, sent = value, true
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	emit(s.Store.Snapshot().Tree())

	for {
		select {
		case <-r.Context().Done():
			return
		case tree, open := <-feed:
			if !open {
				return
			}
			emit(tree)
		}
	}
}
