package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mantonx/tonearm/internal/scanner"
)

type scanRequest struct {
	Path string `json:"path" binding:"required"`
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"service": "tonearm",
				"storage": s.store.Mode().String(),
			})
		})

		// Current catalog as the store sees it.
		api.GET("/songs", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"songs": s.store.GetAll()})
		})

		// Catalog restored from storage without touching the filesystem.
		api.GET("/songs/cached", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"songs": s.engine.LoadFromCache()})
		})

		// Kick off a scan; responds with the placeholder catalog while
		// enrichment continues in the background.
		api.POST("/scan", func(c *gin.Context) {
			var req scanRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
				return
			}

			// Enrichment outlives the request, so it must not inherit the
			// request context.
			songs, err := s.engine.Scan(context.Background(), req.Path)
			if err != nil {
				if errors.Is(err, scanner.ErrEmptyLibrary) {
					c.JSON(http.StatusOK, gin.H{
						"songs":  songs,
						"reason": scanner.ErrEmptyLibrary.Error(),
					})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusAccepted, gin.H{
				"songs":      songs,
				"generation": s.engine.Generation(),
			})
		})

		// Latest enrichment snapshot.
		api.GET("/scan/status", func(c *gin.Context) {
			snap := s.latestSnapshot()
			c.JSON(http.StatusOK, gin.H{
				"generation": snap.Generation,
				"complete":   snap.Complete,
				"songs":      snap.Songs,
			})
		})
	}
}
