package dto

import "github.com/salesdesk/pipeline-api/internal/models"

// InitiateTransferRequest starts a handoff of a callback to another employee.
type InitiateTransferRequest struct {
	ToEmployee string `json:"toEmployee" validate:"required"`
	Remarks    string `json:"remarks"`
}

// ResolveTransferRequest is the recipient's accept/reject verdict.
type ResolveTransferRequest struct {
	Decision models.TransferDecision `json:"decision" validate:"required"`
	Remarks  string                  `json:"remarks"`
}

// CompleteTransferRequest closes an accepted handoff.
type CompleteTransferRequest struct {
	Remarks string `json:"remarks"`
}

// TransferStatusTotals counts transfers per workflow state.
type TransferStatusTotals struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Accepted  int `json:"accepted"`
	Rejected  int `json:"rejected"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

// TransferListResponse wraps admin listings with their totals.
type TransferListResponse struct {
	Totals    TransferStatusTotals `json:"totals"`
	Transfers []models.Transfer    `json:"transfers"`
}
