package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const serviceName = "supamon-api"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves liveness and readiness probes.
type Handler struct {
	store     Pinger
	startedAt time.Time
}

// NewHandler returns probes that check store for readiness.
func NewHandler(store Pinger) *Handler {
	return &Handler{store: store, startedAt: time.Now()}
}

// RegisterRoutes mounts /health and /ready.
func (h *Handler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/health", h.HandleHealthCheck)
	router.GET("/ready", h.HandleSystemReady)
}

// HandleHealthCheck returns basic health status
func (h *Handler) HandleHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startedAt).String(),
	})
}

// HandleSystemReady returns readiness status
func (h *Handler) HandleSystemReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	storeReady := h.store != nil
	if storeReady {
		if err := h.store.Ping(ctx); err != nil {
			logrus.Warnf("Readiness check failed: %v", err)
			storeReady = false
		}
	}

	status := http.StatusOK
	if !storeReady {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"ready":   storeReady,
		"store":   storeReady,
		"service": serviceName,
	})
}
