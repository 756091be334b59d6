package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/salesdesk/pipeline-api/internal/dto"
	"github.com/salesdesk/pipeline-api/internal/models"
	"github.com/salesdesk/pipeline-api/internal/service"
	appErrors "github.com/salesdesk/pipeline-api/pkg/errors"
	"github.com/salesdesk/pipeline-api/pkg/response"
)

// CallbackHandler exposes follow-up scheduling endpoints.
type CallbackHandler struct {
	service *service.CallbackService
}

// NewCallbackHandler constructs a callback handler.
func NewCallbackHandler(svc *service.CallbackService) *CallbackHandler {
	return &CallbackHandler{service: svc}
}

// List godoc
// @Summary List callbacks
// @Tags Callbacks
// @Produce json
// @Param leadId query string false "Filter by lead"
// @Param status query string false "Filter by status"
// @Param channel query string false "Filter by channel"
// @Param assignedTo query string false "Filter by assignee"
// @Param startDate query string false "Scheduled on or after (RFC 3339 date)"
// @Param endDate query string false "Scheduled on or before (RFC 3339 date)"
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /callbacks [get]
func (h *CallbackHandler) List(c *gin.Context) {
	var filter models.CallbackFilter
	filter.LeadID = c.Query("leadId")
	filter.Status = models.CallbackStatus(c.Query("status"))
	filter.Channel = models.CallbackChannel(c.Query("channel"))
	filter.AssignedTo = c.Query("assignedTo")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if raw := c.Query("startDate"); raw != "" {
		if parsed, err := time.Parse(time.DateOnly, raw); err == nil {
			filter.StartDate = &parsed
		}
	}
	if raw := c.Query("endDate"); raw != "" {
		if parsed, err := time.Parse(time.DateOnly, raw); err == nil {
			filter.EndDate = &parsed
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	callbacks, pagination, err := h.service.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, callbacks, pagination)
}

// Get godoc
// @Summary Get callback detail
// @Tags Callbacks
// @Produce json
// @Param id path string true "Callback ID"
// @Success 200 {object} response.Envelope
// @Router /callbacks/{id} [get]
func (h *CallbackHandler) Get(c *gin.Context) {
	cb, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cb, nil)
}

// ListByLead godoc
// @Summary List a lead's callbacks
// @Tags Callbacks
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} response.Envelope
// @Router /leads/{id}/callbacks [get]
func (h *CallbackHandler) ListByLead(c *gin.Context) {
	callbacks, err := h.service.ListByLead(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, callbacks, nil)
}

// Create godoc
// @Summary Schedule a callback
// @Tags Callbacks
// @Accept json
// @Produce json
// @Param payload body dto.CreateCallbackRequest true "Callback payload"
// @Success 201 {object} response.Envelope
// @Router /callbacks [post]
func (h *CallbackHandler) Create(c *gin.Context) {
	var req dto.CreateCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	cb, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cb)
}

// Reschedule godoc
// @Summary Reschedule a callback
// @Tags Callbacks
// @Accept json
// @Produce json
// @Param id path string true "Callback ID"
// @Param payload body dto.RescheduleCallbackRequest true "New slot"
// @Success 200 {object} response.Envelope
// @Router /callbacks/{id}/reschedule [patch]
func (h *CallbackHandler) Reschedule(c *gin.Context) {
	var req dto.RescheduleCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	cb, err := h.service.Reschedule(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cb, nil)
}

// Complete godoc
// @Summary Complete a callback
// @Tags Callbacks
// @Accept json
// @Produce json
// @Param id path string true "Callback ID"
// @Param payload body dto.CompleteCallbackRequest true "Outcome"
// @Success 200 {object} response.Envelope
// @Router /callbacks/{id}/complete [patch]
func (h *CallbackHandler) Complete(c *gin.Context) {
	var req dto.CompleteCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	cb, err := h.service.Complete(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cb, nil)
}

// Cancel godoc
// @Summary Cancel a callback
// @Tags Callbacks
// @Produce json
// @Param id path string true "Callback ID"
// @Success 200 {object} response.Envelope
// @Router /callbacks/{id}/cancel [patch]
func (h *CallbackHandler) Cancel(c *gin.Context) {
	cb, err := h.service.Cancel(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cb, nil)
}

// MarkNotReachable godoc
// @Summary Flag a failed contact attempt
// @Tags Callbacks
// @Produce json
// @Param id path string true "Callback ID"
// @Success 200 {object} response.Envelope
// @Router /callbacks/{id}/unreachable [patch]
func (h *CallbackHandler) MarkNotReachable(c *gin.Context) {
	cb, err := h.service.MarkNotReachable(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cb, nil)
}

// Delete godoc
// @Summary Delete a callback
// @Tags Callbacks
// @Param id path string true "Callback ID"
// @Success 204 "No Content"
// @Router /callbacks/{id} [delete]
func (h *CallbackHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stats godoc
// @Summary Callback completion statistics
// @Tags Callbacks
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /callbacks/stats [get]
func (h *CallbackHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
