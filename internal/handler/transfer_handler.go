package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/salesdesk/pipeline-api/internal/dto"
	"github.com/salesdesk/pipeline-api/internal/models"
	"github.com/salesdesk/pipeline-api/internal/service"
	appErrors "github.com/salesdesk/pipeline-api/pkg/errors"
	"github.com/salesdesk/pipeline-api/pkg/response"
)

// TransferHandler exposes callback handoff endpoints.
type TransferHandler struct {
	service *service.TransferService
}

// NewTransferHandler constructs a transfer handler.
func NewTransferHandler(svc *service.TransferService) *TransferHandler {
	return &TransferHandler{service: svc}
}

// Initiate godoc
// @Summary Transfer a callback to another employee
// @Tags Transfers
// @Accept json
// @Produce json
// @Param id path string true "Callback ID"
// @Param payload body dto.InitiateTransferRequest true "Transfer payload"
// @Success 201 {object} response.Envelope
// @Router /callbacks/{id}/transfers [post]
func (h *TransferHandler) Initiate(c *gin.Context) {
	var req dto.InitiateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	transfer, err := h.service.Initiate(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, transfer)
}

// List godoc
// @Summary List transfers with status totals
// @Tags Transfers
// @Produce json
// @Param callbackId query string false "Filter by callback"
// @Param from query string false "Filter by initiator"
// @Param to query string false "Filter by recipient"
// @Param status query []string false "Filter by status"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /transfers [get]
func (h *TransferHandler) List(c *gin.Context) {
	var filter models.TransferFilter
	filter.CallbackID = c.Query("callbackId")
	filter.FromEmployee = c.Query("from")
	filter.ToEmployee = c.Query("to")
	for _, status := range c.QueryArray("status") {
		filter.Status = append(filter.Status, models.TransferStatus(status))
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		filter.Offset = offset
	}

	result, err := h.service.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListMine godoc
// @Summary List the caller's sent and received transfers
// @Tags Transfers
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /transfers/my [get]
func (h *TransferHandler) ListMine(c *gin.Context) {
	transfers, err := h.service.ListMine(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transfers, nil)
}

// Get godoc
// @Summary Get transfer detail
// @Tags Transfers
// @Produce json
// @Param id path string true "Transfer ID"
// @Success 200 {object} response.Envelope
// @Router /transfers/{id} [get]
func (h *TransferHandler) Get(c *gin.Context) {
	transfer, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transfer, nil)
}

// Resolve godoc
// @Summary Accept or reject a pending transfer
// @Tags Transfers
// @Accept json
// @Produce json
// @Param id path string true "Transfer ID"
// @Param payload body dto.ResolveTransferRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /transfers/{id}/resolve [post]
func (h *TransferHandler) Resolve(c *gin.Context) {
	var req dto.ResolveTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	transfer, err := h.service.Resolve(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transfer, nil)
}

// Complete godoc
// @Summary Complete an accepted transfer
// @Tags Transfers
// @Accept json
// @Produce json
// @Param id path string true "Transfer ID"
// @Param payload body dto.CompleteTransferRequest true "Completion payload"
// @Success 200 {object} response.Envelope
// @Router /transfers/{id}/complete [post]
func (h *TransferHandler) Complete(c *gin.Context) {
	var req dto.CompleteTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	transfer, err := h.service.Complete(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transfer, nil)
}

// Cancel godoc
// @Summary Withdraw a pending transfer
// @Tags Transfers
// @Produce json
// @Param id path string true "Transfer ID"
// @Success 200 {object} response.Envelope
// @Router /transfers/{id}/cancel [post]
func (h *TransferHandler) Cancel(c *gin.Context) {
	transfer, err := h.service.Cancel(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transfer, nil)
}
