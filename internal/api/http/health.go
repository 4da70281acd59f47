package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/slc-run/slc-demo-backend/internal/demo/controlplane"
	"github.com/slc-run/slc-demo-backend/internal/demo/tracking"
)

type HealthResponse struct {
	Status       string                `json:"status"`
	Timestamp    time.Time             `json:"timestamp"`
	Service      string                `json:"service"`
	Version      string                `json:"version"`
	DemoEnabled  bool                  `json:"demo_enabled"`
	Tracking     string                `json:"tracking"`
	Store        string                `json:"store,omitempty"`
	TrackingRows *tracking.Stats       `json:"tracking_stats,omitempty"`
	ControlPlane *ControlPlaneSnapshot `json:"control_plane,omitempty"`
}

type ControlPlaneSnapshot struct {
	Calls            controlplane.Metrics `json:"calls"`
	AverageLatencyMs float64              `json:"average_latency_ms"`
	ErrorRate        float64              `json:"error_rate"`
}

// Pinger is implemented by the Postgres and Redis tracking stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthDeps struct {
	ServiceName     string
	Version         string
	TrackingBackend string
	ControlPlane    *controlplane.Client
	Recorder        *tracking.Recorder
	Store           Pinger // optional
}

type HealthHandler struct {
	dep HealthDeps
}

func NewHealthHandler(dep HealthDeps) *HealthHandler {
	return &HealthHandler{dep: dep}
}

// HealthCheck always answers 200 while the process serves; a store that is
// down is reported, not fatal, because tracking is best-effort.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Service:   h.dep.ServiceName,
		Version:   h.dep.Version,
		Tracking:  h.dep.TrackingBackend,
	}

	if h.dep.Store != nil {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := h.dep.Store.Ping(pingCtx); err != nil {
			resp.Store = "down"
			resp.Status = "degraded"
		} else {
			resp.Store = "up"
		}
	}

	if cp := h.dep.ControlPlane; cp != nil {
		resp.DemoEnabled = cp.Ready() == nil
		m := cp.Metrics()
		resp.ControlPlane = &ControlPlaneSnapshot{
			Calls:            m,
			AverageLatencyMs: m.AverageLatencyMs(),
			ErrorRate:        m.ErrorRate(),
		}
	}

	if h.dep.Recorder != nil {
		stats := h.dep.Recorder.Stats()
		resp.TrackingRows = &stats
	}

	c.JSON(http.StatusOK, resp)
}

func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)
	r.GET("/healthz", h.HealthCheck)
}
