package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/slc-run/slc-demo-backend/internal/demo/domain"
	"github.com/slc-run/slc-demo-backend/internal/demo/expiry"
	"github.com/slc-run/slc-demo-backend/internal/logger"
)

// DefaultMaxBodyBytes caps request bodies independently of the code size
// limit so oversized uploads are cut off while reading.
const DefaultMaxBodyBytes = 1 << 20

type Handler struct {
	svc          DemoService
	maxBodyBytes int64
}

func New(svc DemoService, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{svc: svc, maxBodyBytes: maxBodyBytes}
}

func (h *Handler) StartDemo(c *gin.Context) {
	if err := h.svc.Ready(); err != nil {
		h.writeError(c, "start_demo", err)
		return
	}

	var req StartDemoRequest
	if !h.bind(c, &req) {
		return
	}

	handle, err := h.svc.StartFromBoilerplate(c.Request.Context(), req.id())
	if err != nil {
		h.writeError(c, "start_demo", err)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(handle))
}

func (h *Handler) StartCustomDemo(c *gin.Context) {
	if err := h.svc.Ready(); err != nil {
		h.writeError(c, "start_custom_demo", err)
		return
	}

	var req StartCustomDemoRequest
	if !h.bind(c, &req) {
		return
	}

	handle, err := h.svc.StartFromCustomCode(c.Request.Context(), req.Code, req.AppName)
	if err != nil {
		h.writeError(c, "start_custom_demo", err)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(handle))
}

func (h *Handler) Cleanup(c *gin.Context) {
	if err := h.svc.Ready(); err != nil {
		h.writeError(c, "cleanup_demo", err)
		return
	}

	var req CleanupRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.svc.Cleanup(c.Request.Context(), req.ProjectID)
	if err != nil {
		h.writeError(c, "cleanup_demo", err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Status needs no control plane access and works without the admin token.
func (h *Handler) Status(c *gin.Context) {
	var req StatusRequest
	if !h.bind(c, &req) {
		return
	}

	raw := strings.TrimSpace(req.ExpiresAt)
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required field: expiresAt"})
		return
	}
	expiresAt, err := expiry.ParseTimestamp(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid expiresAt: " + raw})
		return
	}

	state := h.svc.Status(expiresAt)
	c.JSON(http.StatusOK, StatusResponse{
		Valid:            !state.IsExpired,
		ExpiresAt:        raw,
		RemainingSeconds: state.RemainingSeconds,
		IsExpired:        state.IsExpired,
	})
}

func (h *Handler) ListBoilerplates(c *gin.Context) {
	items := h.svc.Boilerplates()
	out := make([]BoilerplateSummary, 0, len(items))
	for _, bp := range items {
		out = append(out, BoilerplateSummary{ID: bp.ID, Name: bp.Name, Description: bp.Description})
	}
	c.JSON(http.StatusOK, gin.H{"boilerplates": out})
}

// bind decodes the JSON body and writes the 400/413 response itself when it
// fails.
func (h *Handler) bind(c *gin.Context, dst interface{}) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return false
	}
	return true
}

func (h *Handler) writeError(c *gin.Context, op string, err error) {
	status := domain.StatusCode(err)
	log := logger.New(c.Request.Context())
	if status >= http.StatusInternalServerError {
		log.LogError(op, err)
	} else {
		log.LogWarnf(op, "status=%d error=%v", status, err)
	}
	c.JSON(status, gin.H{"error": domain.PublicMessage(err)})
}

func (h *Handler) toResponse(handle *domain.DemoHandle) DemoResponse {
	return DemoResponse{
		Success:          true,
		ProjectID:        handle.ProjectID,
		Credential:       handle.Credential,
		APIKey:           handle.Credential,
		AppName:          handle.AppName,
		SourceKind:       handle.SourceKind,
		Boilerplate:      handle.Boilerplate,
		ExpiresAt:        expiry.FormatTimestamp(handle.ExpiresAt),
		ExpiresInSeconds: int(h.svc.TTL().Seconds()),
		WarningSeconds:   int(h.svc.WarningLead().Seconds()),
	}
}
