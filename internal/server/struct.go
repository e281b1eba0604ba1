package server

import (
	"context"
	"html/template"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/woozymasta/mcstatus/internal/models"
	"github.com/woozymasta/mcstatus/internal/registry"
	"github.com/woozymasta/mcstatus/internal/storage"
)

// StatusResolver resolves server status. *status.Engine implements it.
type StatusResolver interface {
	Resolve(ctx context.Context, q models.ServerQuery) *models.StatusResult
}

// Server holds the dependencies, configuration, and runtime state required
// to handle HTTP requests and background registry processing.
type Server struct {
	// engine resolves live server status for every status, icon and watch request.
	engine StatusResolver

	// storage provides access to the tracked-server registry for the admin API.
	// It can be nil, the admin API and registry recording are then disabled.
	storage *storage.Repository

	// registry enriches resolution results and writes them to storage.
	registry *registry.Registry

	// templates holds the parsed landing, status and link-preview templates.
	templates *template.Template

	// deniedHosts is a set of hashed host names (using xxhash) that are never resolved.
	deniedHosts map[uint64]struct{}

	// queue is a buffered channel used to pass resolution results from HTTP handlers
	// to background workers for asynchronous recording.
	queue chan registryJob

	// queueMu guards queue sends against the close in StopWorkers.
	queueMu sync.RWMutex

	// stopped is set under queueMu once the queue is closed.
	stopped bool

	// stopOnce makes StopWorkers safe to call more than once.
	stopOnce sync.Once

	// shutdown is a signal channel used to broadcast a stop signal to all background
	// goroutines during a graceful shutdown.
	shutdown chan struct{}

	// seenCache tracks recently recorded servers keyed by xxhash of host and port.
	// It supports the "soft rate limit" logic to reduce unnecessary database writes.
	seenCache sync.Map

	// upgrader upgrades watch requests to websocket connections.
	upgrader websocket.Upgrader

	// authToken is the secret token required to access administrative API endpoints.
	authToken string

	// baseURL is the public URL used in rendered links, derived from the request when empty.
	baseURL string

	// wg is used to wait for all background workers to finish processing
	// before the server shuts down completely.
	wg sync.WaitGroup

	// workers is the number of background registry workers.
	workers int

	// watchInterval is the delay between two status pushes on a watch stream.
	watchInterval time.Duration

	// hardLimitCount is the maximum number of requests allowed per IP address
	// within the hardLimitWin duration.
	hardLimitCount int

	// hardLimitWin is the time window duration for the hard rate limiter.
	hardLimitWin time.Duration

	// softLimitDur is the duration for which a registry update is skipped
	// if the server was recently recorded.
	softLimitDur time.Duration

	// trustProxy indicates whether the server should trust headers like X-Forwarded-For
	// or CF-Connecting-IP when determining the client's real IP address.
	trustProxy bool
}

// registryJob represents a unit of work to be processed by background workers.
type registryJob struct {
	// Result is the resolution outcome to record.
	Result *models.StatusResult

	// Query is the request as received, its port is zero when discovered.
	Query models.ServerQuery
}
