// Package server implements the HTTP server, middleware, and request handlers for the application.
package server

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gorilla/websocket"
	"github.com/woozymasta/mcstatus/assets"
	"github.com/woozymasta/mcstatus/internal/config"
	"github.com/woozymasta/mcstatus/internal/geoip"
	"github.com/woozymasta/mcstatus/internal/registry"
	"github.com/woozymasta/mcstatus/internal/storage"
)

// New creates a new Server instance with the provided engine, storage, GeoIP provider, and configuration.
// store and geo may be nil.
func New(engine StatusResolver, store *storage.Repository, geo *geoip.Provider, cfg *config.Config) *Server {
	denied := make(map[uint64]struct{})
	for _, host := range cfg.Server.DeniedHosts {
		denied[hostHash(host)] = struct{}{}
	}

	s := &Server{
		engine:         engine,
		storage:        store,
		templates:      template.Must(template.New("").Funcs(templateFuncs).ParseFS(assets.FS(), "templates/*.html")),
		deniedHosts:    denied,
		authToken:      cfg.Server.AuthToken,
		baseURL:        strings.TrimSuffix(cfg.Server.BaseURL, "/"),
		workers:        max(cfg.Server.Workers, 1),
		watchInterval:  cfg.Server.WatchInterval,
		hardLimitCount: cfg.RateLimit.HardLimitCount,
		hardLimitWin:   cfg.RateLimit.HardLimitWin,
		softLimitDur:   cfg.RateLimit.SoftLimitDur,
		trustProxy:     cfg.Server.TrustProxy,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},

		queue:    make(chan registryJob, 1000),
		shutdown: make(chan struct{}),
	}

	if store != nil {
		s.registry = registry.New(store, geo)
	}

	return s
}

// hostHash returns the denied-host key of a host name.
func hostHash(host string) uint64 {
	return xxhash.Sum64String(strings.ToLower(strings.TrimSuffix(host, ".")))
}

// StartWorkers initializes the background worker pool for recording resolved servers
// and the cache cleanup routine.
func (s *Server) StartWorkers() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	// Clean soft-limit cache
	go s.gcSoftLimitCache()
}

// StopWorkers gracefully stops the background workers and closes the job queue.
// Jobs already queued are recorded; later enqueue calls are dropped.
func (s *Server) StopWorkers() {
	s.stopOnce.Do(func() {
		close(s.shutdown)

		s.queueMu.Lock()
		s.stopped = true
		close(s.queue)
		s.queueMu.Unlock()

		s.wg.Wait()
	})
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /", http.HandlerFunc(s.handleIndex))
	mux.Handle("GET /favicon.ico", http.NotFoundHandler())
	mux.Handle("GET /api/version", http.HandlerFunc(s.handleVersion))

	// Resolving routes share one per-IP limiter
	resolving := http.NewServeMux()
	resolving.HandleFunc("GET /{address}", s.handleStatus)
	resolving.HandleFunc("GET /icon/{address}", s.handleIcon)
	resolving.HandleFunc("GET /api/watch/{address}", s.handleWatch)
	limited := s.RateLimitMiddleware(resolving)

	mux.Handle("GET /{address}", limited)
	mux.Handle("GET /icon/{address}", limited)
	mux.Handle("GET /api/watch/{address}", limited)

	mux.Handle("GET /api/servers", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleServers)))
	mux.Handle("GET /api/server", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleGetServer)))
	mux.Handle("DELETE /api/server", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleDeleteServer)))

	return s.LoggingMiddleware(RecoverMiddleware(mux))
}

// gcSoftLimitCache periodically cleans up expired entries from the soft rate-limit cache.
func (s *Server) gcSoftLimitCache() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			now := time.Now()
			s.seenCache.Range(func(key, value any) bool {
				if t, ok := value.(time.Time); ok {
					if now.Sub(t) > s.softLimitDur {
						s.seenCache.Delete(key)
					}
				} else {
					s.seenCache.Delete(key)
				}
				return true
			})
		}
	}
}
