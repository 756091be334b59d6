package dto

import (
	"time"

	"github.com/salesdesk/pipeline-api/internal/models"
)

// CreateLeadRequest captures fields for creating a lead.
type CreateLeadRequest struct {
	ClientName      string            `json:"clientName" validate:"required"`
	BusinessName    string            `json:"businessName" validate:"required"`
	Email           string            `json:"email" validate:"required,email"`
	Phone           string            `json:"phone" validate:"required"`
	AlternatePhone  string            `json:"alternatePhone"`
	Source          models.LeadSource `json:"source"`
	Status          models.LeadStatus `json:"status"`
	Priority        models.Priority   `json:"priority"`
	Industry        string            `json:"industry"`
	ExpectedRevenue float64           `json:"expectedRevenue" validate:"gte=0"`
	AssignedTo      string            `json:"assignedTo"`
	Notes           string            `json:"notes"`
	Tags            []string          `json:"tags"`
	NextFollowUpAt  *time.Time        `json:"nextFollowUpAt"`
}

// UpdateLeadRequest modifies descriptive lead fields. Status and assignee move
// through their dedicated endpoints.
type UpdateLeadRequest struct {
	ClientName      string            `json:"clientName" validate:"required"`
	BusinessName    string            `json:"businessName" validate:"required"`
	Email           string            `json:"email" validate:"required,email"`
	Phone           string            `json:"phone" validate:"required"`
	AlternatePhone  string            `json:"alternatePhone"`
	Source          models.LeadSource `json:"source"`
	Priority        models.Priority   `json:"priority"`
	Industry        string            `json:"industry"`
	ExpectedRevenue float64           `json:"expectedRevenue" validate:"gte=0"`
	Notes           string            `json:"notes"`
	Tags            []string          `json:"tags"`
	NextFollowUpAt  *time.Time        `json:"nextFollowUpAt"`
}

// UpdateLeadStatusRequest drives the pipeline state machine. Reopen must be
// set to write through a closed (Won/Lost) lead.
type UpdateLeadStatusRequest struct {
	Status     models.LeadStatus `json:"status" validate:"required"`
	Reopen     bool              `json:"reopen"`
	LostReason string            `json:"lostReason"`
}

// ReassignLeadRequest changes lead ownership.
type ReassignLeadRequest struct {
	AssignedTo string `json:"assignedTo" validate:"required"`
}

// LeadStatusCount aggregates leads per pipeline stage.
type LeadStatusCount struct {
	Status  models.LeadStatus `json:"status"`
	Count   int               `json:"count"`
	Revenue float64           `json:"revenue"`
}

// LeadStats is the lead reporting projection.
type LeadStats struct {
	TotalLeads     int               `json:"totalLeads"`
	ConvertedLeads int               `json:"convertedLeads"`
	ConversionRate float64           `json:"conversionRate"`
	WinRate        float64           `json:"winRate"`
	TotalRevenue   float64           `json:"totalRevenue"`
	AvgDealSize    float64           `json:"avgDealSize"`
	ByStatus       []LeadStatusCount `json:"byStatus"`
}
