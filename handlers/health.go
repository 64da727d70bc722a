package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carlbunn/musicbox/catalog"
)

// HealthHandler answers liveness probes.
type HealthHandler struct {
	store *catalog.Store
}

func NewHealthHandler(store *catalog.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// HealthCheck reports service health.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "musicbox",
		"timestamp": time.Now().Unix(),
	})
}

// APIStatus reports what the service is serving.
func (h *HealthHandler) APIStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "musicbox API is running",
		"musicRoot": h.store.MusicRoot(),
		"tracks":    len(h.store.Tracks()),
	})
}
