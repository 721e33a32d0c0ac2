// Package linkserver exposes the navigation engine over HTTP: deep-link
// intake, history inspection, navigation commands, and a websocket stream of
// observability events. It is the process-boundary counterpart of the
// platform link listeners a host application would normally wire up.
package linkserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/navkit-dev/navkit/core/navstate"
	"github.com/navkit-dev/navkit/engine"
	"github.com/navkit-dev/navkit/persist"
)

const defaultAddr = ":8765"

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithAddr sets the listen address for ListenAndServe.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.addr = addr }
}

// WithBridge sets the event bridge backing GET /events. The bridge must
// also be wired into the engine's observer fan-out for the stream to carry
// events; NewServer creates a detached bridge when none is given.
func WithBridge(bridge *StreamBridge) ServerOption {
	return func(s *Server) { s.bridge = bridge }
}

// Server serves the engine's HTTP surface.
type Server struct {
	engine *engine.Engine
	logger *slog.Logger
	bridge *StreamBridge
	addr   string
}

// NewServer creates a Server around e.
func NewServer(e *engine.Engine, opts ...ServerOption) *Server {
	s := &Server{
		engine: e,
		logger: slog.Default(),
		addr:   defaultAddr,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bridge == nil {
		s.bridge = NewStreamBridge()
	}
	return s
}

// Bridge returns the event bridge backing GET /events.
func (s *Server) Bridge() *StreamBridge {
	return s.bridge
}

// RegisterHTTP registers the server's endpoints on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Post("/open", s.handleOpen)
	r.Get("/history", s.handleHistory)
	r.Get("/routes", s.handleRoutes)
	r.Get("/metrics", s.handleMetrics)
	r.Post("/navigate", s.handleNavigate)
	r.Get("/events", s.handleEvents)
}

// Handler builds the chi router with the standard middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	s.RegisterHTTP(r)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("link server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("link server: %w", err)
		}
		return nil
	}
}

type openRequest struct {
	URL string `json:"url"`
}

type matchPayload struct {
	Template    string            `json:"template"`
	PathParams  map[string]string `json:"path_params,omitempty"`
	QueryParams map[string]string `json:"query_params,omitempty"`
}

type openResponse struct {
	Matches []matchPayload `json:"matches"`
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	matches := s.engine.OpenURL(r.Context(), req.URL)
	resp := openResponse{Matches: make([]matchPayload, 0, len(matches))}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, matchPayload{
			Template:    m.Template,
			PathParams:  m.PathParams,
			QueryParams: m.QueryParams,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type historyResponse struct {
	Depth int              `json:"depth"`
	Steps []persist.Record `json:"steps"`
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	records := s.engine.History()
	s.writeJSON(w, http.StatusOK, historyResponse{Depth: len(records), Steps: records})
}

type routesResponse struct {
	Routes []string `json:"routes"`
}

func (s *Server) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, routesResponse{Routes: s.engine.RoutePaths()})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Metrics().Snapshot())
}

type navigateRequest struct {
	Path  string         `json:"path"`
	Extra navstate.Extra `json:"extra,omitempty"`
	Force bool           `json:"force,omitempty"`
}

type navigateResponse struct {
	Depth int `json:"depth"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}

	s.engine.Navigate(r.Context(), req.Path, req.Extra, req.Force)
	s.writeJSON(w, http.StatusAccepted, navigateResponse{Depth: s.engine.Depth()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}
