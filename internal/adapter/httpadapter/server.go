package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/shop-discovery/internal/domain"
	"github.com/couchcryptid/shop-discovery/internal/feed"
)

// FeedService is the part of the feed engine the HTTP layer needs.
type FeedService interface {
	Discover(ctx context.Context, req feed.Request) (feed.FeedPage, error)
	NearbyByCategory(ctx context.Context, req feed.Request) (feed.CategoryFeed, error)
}

// Server exposes the discovery feed plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	feeds      FeedService
	geocoder   domain.Geocoder
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and, when
// feeds is non-nil, the /v1/shops routes. geocoder may be nil; typed places
// are then ignored.
func NewServer(addr string, feeds FeedService, geocoder domain.Geocoder, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second, // covers the longest location wait
			IdleTimeout:  60 * time.Second,
		},
		feeds:    feeds,
		geocoder: geocoder,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if feeds != nil {
		mux.HandleFunc("GET /v1/shops", s.handleShops)
		mux.HandleFunc("GET /v1/shops/categories", s.handleCategories)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
