package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feral-file/ff-token-gate/internal/api/middleware"
	"github.com/feral-file/ff-token-gate/internal/domain"
	"github.com/feral-file/ff-token-gate/internal/logger"
	"github.com/feral-file/ff-token-gate/internal/ruleset"
)

// Engine is the decision-engine surface the admin API needs
type Engine interface {
	Decide(ctx context.Context, path, address string) (domain.Decision, error)
	Configure(spec *ruleset.Spec) error
	CurrentSpec() *ruleset.Spec
}

// Handler handles the admin REST endpoints
type Handler struct {
	engine    Engine
	loader    *ruleset.Loader
	rulesPath string
}

// NewHandler creates a new REST handler
func NewHandler(engine Engine, loader *ruleset.Loader, rulesPath string) *Handler {
	return &Handler{
		engine:    engine,
		loader:    loader,
		rulesPath: rulesPath,
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetSpec handles GET /api/v1/gate/spec - returns the active ruleset
// rendered back into the load format, with token ids shown as their
// alias names where one covers them
func (h *Handler) GetSpec(c *gin.Context) {
	spec := h.engine.CurrentSpec()
	if spec == nil {
		respondNotFound(c, "No ruleset loaded")
		return
	}
	c.JSON(http.StatusOK, spec)
}

// ReloadSpec handles POST /api/v1/gate/reload - reloads the rules file
// and atomically replaces the active configuration. On any load or
// compile error the previous configuration keeps serving.
func (h *Handler) ReloadSpec(c *gin.Context) {
	spec, err := h.loader.Load(h.rulesPath)
	if err != nil {
		respondValidationError(c, "Failed to load ruleset", err.Error())
		return
	}

	if err := h.engine.Configure(spec); err != nil {
		respondValidationError(c, "Failed to apply ruleset", err.Error())
		return
	}

	logger.InfoCtx(c.Request.Context(), "Ruleset reloaded",
		zap.String("path", h.rulesPath),
		zap.Int("endpoints", len(spec.Endpoints)),
		zap.Int("aliases", len(spec.Aliases)),
	)

	c.JSON(http.StatusOK, gin.H{
		"reloaded":  true,
		"endpoints": len(spec.Endpoints),
		"aliases":   len(spec.Aliases),
	})
}

// checkRequest is the body of POST /api/v1/gate/check
type checkRequest struct {
	Path    string `json:"path" binding:"required"`
	Address string `json:"address"`
}

// CheckAccess handles POST /api/v1/gate/check - dry-runs a decision for
// a (path, address) pair without touching the gated endpoint
func (h *Handler) CheckAccess(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	address := middleware.NormalizeAddress(req.Address)

	decision, err := h.engine.Decide(c.Request.Context(), req.Path, address)
	if err != nil {
		respondInternalError(c, err, "Access evaluation failed",
			zap.String("path", req.Path),
			zap.String("address", address),
		)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"path":     req.Path,
		"address":  address,
		"decision": decision.String(),
		"allowed":  decision.Allowed(),
	})
}
