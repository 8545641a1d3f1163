package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mobatt/mobatt-backend/internal/logger"
	"github.com/mobatt/mobatt-backend/internal/metrics"
	"github.com/mobatt/mobatt-backend/internal/services"
)

// RevalidateHandler accepts rebuild requests for individual frontend pages.
// Callers authenticate with the shared secret in the body, matching the
// contract of the page-side revalidation hook.
type RevalidateHandler struct {
	log      *logger.Logger
	secret   string
	reval    services.RevalidateService
	registry *metrics.Registry
}

func NewRevalidateHandler(log *logger.Logger, secret string, reval services.RevalidateService, registry *metrics.Registry) *RevalidateHandler {
	return &RevalidateHandler{
		log:      log.With("handler", "RevalidateHandler"),
		secret:   secret,
		reval:    reval,
		registry: registry,
	}
}

type revalidateRequest struct {
	Secret string `json:"secret"`
	Path   string `json:"path"`
}

// The page-side hook expects {ok, reason} bodies on failure, so this
// endpoint does not use the admin error envelope.
func (h *RevalidateHandler) Revalidate(c *gin.Context) {
	var req revalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "reason": "invalid_body"})
		return
	}
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.secret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "reason": "invalid_secret"})
		return
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "reason": "missing_path"})
		return
	}

	if err := h.reval.Revalidate(c.Request.Context(), path); err != nil {
		h.log.Error("revalidation failed", "path", path, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "reason": "revalidate_failed"})
		return
	}
	h.registry.IncRevalidate()
	RespondOK(c, gin.H{"ok": true, "path": path})
}
