package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"iatlab/internal/store"
)

type HealthHandler struct {
	log   *zap.Logger
	store store.Store
}

func NewHealthHandler(log *zap.Logger, s store.Store) *HealthHandler {
	return &HealthHandler{log: log, store: s}
}

// Health reports process liveness plus the current database connection
// state. It always answers 200; the database field tells the client
// whether a submission would have anywhere to go.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	database := "connected"
	if err := h.store.Ping(ctx); err != nil {
		database = "disconnected"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": database,
	})
}

// Probe runs a real write-read-delete cycle against storage, proving
// end-to-end connectivity beyond process liveness.
func (h *HealthHandler) Probe(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Probe(ctx); err != nil {
		h.log.Error("Storage probe failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "storage round trip failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "storage round trip succeeded",
	})
}
