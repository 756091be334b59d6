package dto

import (
	"time"

	"github.com/salesdesk/pipeline-api/internal/models"
)

// CreateCallbackRequest schedules a follow-up for a lead.
type CreateCallbackRequest struct {
	LeadID        string                 `json:"leadId" validate:"required"`
	ScheduledDate time.Time              `json:"scheduledDate" validate:"required"`
	ScheduledTime string                 `json:"scheduledTime" validate:"required"`
	Channel       models.CallbackChannel `json:"channel"`
	Priority      models.Priority        `json:"priority"`
	AssignedTo    string                 `json:"assignedTo"`
	Remarks       string                 `json:"remarks"`
}

// RescheduleCallbackRequest moves a pending follow-up to a new slot.
type RescheduleCallbackRequest struct {
	ScheduledDate time.Time `json:"scheduledDate" validate:"required"`
	ScheduledTime string    `json:"scheduledTime" validate:"required"`
	Remarks       string    `json:"remarks"`
}

// CompleteCallbackRequest records the outcome of a follow-up.
type CompleteCallbackRequest struct {
	Outcome string `json:"outcome"`
}

// CallbackStats is the callback reporting projection.
type CallbackStats struct {
	Total          int                       `json:"total"`
	Pending        int                       `json:"pending"`
	Completed      int                       `json:"completed"`
	CompletionRate float64                   `json:"completionRate"`
	ByBucket       map[models.TimeBucket]int `json:"byBucket"`
}
