package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/salesdesk/pipeline-api/internal/service"
	"github.com/salesdesk/pipeline-api/pkg/response"
)

// PipelineHandler exposes the composed reporting endpoint.
type PipelineHandler struct {
	service *service.PipelineService
}

// NewPipelineHandler constructs a pipeline handler.
func NewPipelineHandler(svc *service.PipelineService) *PipelineHandler {
	return &PipelineHandler{service: svc}
}

// Summary godoc
// @Summary Pipeline summary across leads, callbacks and transfers
// @Tags Pipeline
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /pipeline/summary [get]
func (h *PipelineHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
