// Package server exposes the ABMX HTTP surface: the CRM webhook
// ingestion endpoint, the cache, scheduler, scoring, and flow admin
// endpoints, a health endpoint, and a websocket feed of pipeline run
// events.
package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-hq/ABMX/abm"
	"github.com/meridian-hq/ABMX/cache"
	"github.com/meridian-hq/ABMX/logger"
	"github.com/meridian-hq/ABMX/schedule"
	"github.com/meridian-hq/ABMX/scoring"
)

// Server states.
type serverState int32

const (
	stateStopped serverState = iota
	stateRunning
	stateDraining
)

// ShutdownTimeout bounds how long Stop waits for the HTTP server and
// the websocket goroutines.
const ShutdownTimeout = 10 * time.Second

// Server is the ABMX HTTP server.
type Server struct {
	service   *abm.Service
	caches    *cache.Manager
	scheduler *schedule.Scheduler
	agent     *scoring.Agent
	log       *zap.SugaredLogger

	httpSrv   *http.Server
	startedAt time.Time
	state     atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.RWMutex
	clients        map[*client]struct{}
	broadcastDrops atomic.Int64
}

// New creates a server over the assembled domain components.
func New(service *abm.Service, caches *cache.Manager, scheduler *schedule.Scheduler, agent *scoring.Agent) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		service:   service,
		caches:    caches,
		scheduler: scheduler,
		agent:     agent,
		log:       logger.ComponentLogger("server"),
		ctx:       ctx,
		cancel:    cancel,
		clients:   make(map[*client]struct{}),
	}
	service.SetBroadcaster(s)
	return s
}

// routes builds the request mux. Method dispatch happens inside each
// handler, matching how the rest of the surface is written.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/webhook/crm", s.handleWebhook)

	mux.HandleFunc("/api/cache/stats", s.handleCacheStats)
	mux.HandleFunc("/api/cache/clear", s.handleCacheClear)

	mux.HandleFunc("/api/scheduler", s.handleSchedulerStatus)
	mux.HandleFunc("/api/scheduler/start", s.handleSchedulerStart)
	mux.HandleFunc("/api/scheduler/stop", s.handleSchedulerStop)
	mux.HandleFunc("/api/scheduler/tasks", s.handleSchedulerTasks)
	mux.HandleFunc("/api/scheduler/tasks/", s.handleSchedulerTask)

	mux.HandleFunc("/api/scoring/weights", s.handleScoringWeights)
	mux.HandleFunc("/api/scoring/weights/reset", s.handleScoringWeightsReset)

	mux.HandleFunc("/api/flow/status", s.handleFlowStatus)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/events", s.handleEvents)

	return mux
}
