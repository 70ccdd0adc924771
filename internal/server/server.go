// Package server implements the admin HTTP API: lookups over sightings and gossip,
// failover log inspection and acknowledgement.
package server

import (
	"net/http"

	"github.com/woozymasta/alphahub/internal/config"
)

// New creates a new Server with the provided store, optional country resolver and configuration.
func New(store Store, geo CountryResolver, cfg *config.Config) *Server {
	maxList := cfg.Server.MaxList
	if maxList <= 0 {
		maxList = 500
	}

	s := &Server{
		store:      store,
		geoip:      geo,
		authToken:  cfg.Server.AuthToken,
		maxList:    maxList,
		limiter:    newIPLimiter(cfg.RateLimit.Count, cfg.RateLimit.Window),
		trustProxy: cfg.Server.TrustProxy,
		shutdown:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.gcLimiter()

	return s
}

// Close stops the rate limiter cleanup goroutine and waits for it. It is safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.shutdown)
		s.wg.Wait()
	})
}

// Handler configures the HTTP routes and returns the main handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	api := func(h http.HandlerFunc) http.Handler {
		return s.RateLimitMiddleware(AdminAuthMiddleware(s.authToken, h))
	}

	mux.Handle("GET /api/version", api(s.handleVersion))
	mux.Handle("GET /api/stats", api(s.handleStats))
	mux.Handle("GET /api/sighting", api(s.handleGetSighting))
	mux.Handle("GET /api/sightings", api(s.handleListSightings))
	mux.Handle("GET /api/gossip", api(s.handleGetGossip))
	mux.Handle("GET /api/gossips", api(s.handleListGossips))
	mux.Handle("GET /api/failover", api(s.handleListPackets))
	mux.Handle("DELETE /api/failover", api(s.handleDeletePacket))

	mux.HandleFunc("GET /healthz", s.handleHealth)

	return s.LoggingMiddleware(mux)
}
