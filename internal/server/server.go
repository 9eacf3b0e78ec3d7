// Package server exposes the catalog and scan controls over HTTP.
package server

import (
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/mantonx/tonearm/internal/scanner"
	"github.com/mantonx/tonearm/internal/storage"
)

// Server wires the ingestion engine and song store into a gin router and
// keeps the latest catalog snapshot for status queries.
type Server struct {
	engine *scanner.Engine
	store  *storage.Store

	mu     sync.RWMutex
	latest scanner.Snapshot
}

// New creates a server and starts consuming the engine's snapshot stream.
func New(engine *scanner.Engine, store *storage.Store) *Server {
	s := &Server{
		engine: engine,
		store:  store,
	}
	go s.consumeUpdates()
	return s
}

// consumeUpdates caches the most recent snapshot. Snapshots carry their
// generation, so a stale one from a superseded scan is ignored.
func (s *Server) consumeUpdates() {
	for snap := range s.engine.Updates() {
		s.mu.Lock()
		if snap.Generation >= s.latest.Generation {
			s.latest = snap
		}
		s.mu.Unlock()
	}
}

func (s *Server) latestSnapshot() scanner.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// SetupRouter configures and returns the main router.
func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	// CORS middleware for development
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s.setupRoutes(r)
	return r
}
