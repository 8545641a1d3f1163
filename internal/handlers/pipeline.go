package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mobatt/mobatt-backend/internal/logger"
	"github.com/mobatt/mobatt-backend/internal/repos"
	"github.com/mobatt/mobatt-backend/internal/services"
	"github.com/mobatt/mobatt-backend/internal/types"
)

// PipelineHandler exposes each pipeline stage as an admin-triggered endpoint.
// Stages respond 409 when the job lock is already held.
type PipelineHandler struct {
	log        *logger.Logger
	pipeline   services.PipelineService
	generation services.GenerationService
	flagRepo   repos.FeatureFlagRepo
}

func NewPipelineHandler(log *logger.Logger, pipeline services.PipelineService, generation services.GenerationService, flagRepo repos.FeatureFlagRepo) *PipelineHandler {
	return &PipelineHandler{
		log:        log.With("handler", "PipelineHandler"),
		pipeline:   pipeline,
		generation: generation,
		flagRepo:   flagRepo,
	}
}

func (h *PipelineHandler) Fetch(c *gin.Context) {
	summary, err := h.pipeline.RunFetch(c.Request.Context())
	h.respond(c, summary, err)
}

func (h *PipelineHandler) Project(c *gin.Context) {
	summary, err := h.pipeline.RunProjection(c.Request.Context())
	h.respond(c, summary, err)
}

func (h *PipelineHandler) NormalizePrices(c *gin.Context) {
	summary, err := h.pipeline.RunPriceNormalization(c.Request.Context())
	h.respond(c, summary, err)
}

func (h *PipelineHandler) Quality(c *gin.Context) {
	summary, err := h.pipeline.RunQualitySweep(c.Request.Context())
	h.respond(c, summary, err)
}

// Generate resolves the generation flag once, here at trigger time, and hands
// the value to the run.
func (h *PipelineHandler) Generate(c *gin.Context) {
	if h.generation == nil {
		RespondError(c, http.StatusServiceUnavailable, "generation_unavailable", errors.New("generation service not configured"))
		return
	}
	enabled, err := h.flagRepo.Get(c.Request.Context(), nil, types.FlagGenerationEnabled)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "flag_lookup_failed", err)
		return
	}
	summary, err := h.generation.Run(c.Request.Context(), enabled)
	h.respond(c, summary, err)
}

func (h *PipelineHandler) respond(c *gin.Context, summary any, err error) {
	if err != nil {
		if errors.Is(err, services.ErrStageLocked) {
			RespondError(c, http.StatusConflict, "stage_locked", err)
			return
		}
		h.log.Error("stage trigger failed", "path", c.FullPath(), "error", err)
		RespondError(c, http.StatusInternalServerError, "stage_failed", err)
		return
	}
	RespondOK(c, summary)
}
