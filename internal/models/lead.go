package models

import (
	"time"

	"github.com/lib/pq"
)

// LeadStatus enumerates pipeline stages for a lead.
type LeadStatus string

const (
	LeadStatusNew          LeadStatus = "New"
	LeadStatusContacted    LeadStatus = "Contacted"
	LeadStatusQualified    LeadStatus = "Qualified"
	LeadStatusProposalSent LeadStatus = "Proposal Sent"
	LeadStatusNegotiation  LeadStatus = "Negotiation"
	LeadStatusWon          LeadStatus = "Won"
	LeadStatusLost         LeadStatus = "Lost"
	LeadStatusOnHold       LeadStatus = "On Hold"
)

// ValidLeadStatus reports whether s is a defined pipeline stage.
func ValidLeadStatus(s LeadStatus) bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusProposalSent,
		LeadStatusNegotiation, LeadStatusWon, LeadStatusLost, LeadStatusOnHold:
		return true
	}
	return false
}

// Closed reports whether the status is terminal. Closed leads reject further
// status writes unless explicitly reopened.
func (s LeadStatus) Closed() bool {
	return s == LeadStatusWon || s == LeadStatusLost
}

// LeadSource enumerates acquisition channels.
type LeadSource string

const (
	LeadSourceWebsite       LeadSource = "Website"
	LeadSourceReferral      LeadSource = "Referral"
	LeadSourceColdCall      LeadSource = "Cold Call"
	LeadSourceSocialMedia   LeadSource = "Social Media"
	LeadSourceEmailCampaign LeadSource = "Email Campaign"
	LeadSourceOther         LeadSource = "Other"
)

// Priority is shared by leads and callbacks.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// ValidPriority reports whether p is a defined priority.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Lead represents a prospective client engagement tracked through the sales
// pipeline.
type Lead struct {
	ID              string         `db:"id" json:"id"`
	Code            string         `db:"code" json:"code"`
	ClientName      string         `db:"client_name" json:"clientName"`
	BusinessName    string         `db:"business_name" json:"businessName"`
	Email           string         `db:"email" json:"email"`
	Phone           string         `db:"phone" json:"phone"`
	AlternatePhone  *string        `db:"alternate_phone" json:"alternatePhone,omitempty"`
	Source          LeadSource     `db:"source" json:"source"`
	Status          LeadStatus     `db:"status" json:"status"`
	Priority        Priority       `db:"priority" json:"priority"`
	Industry        *string        `db:"industry" json:"industry,omitempty"`
	ExpectedRevenue float64        `db:"expected_revenue" json:"expectedRevenue"`
	AssignedTo      string         `db:"assigned_to" json:"assignedTo"`
	AssignedBy      *string        `db:"assigned_by" json:"assignedBy,omitempty"`
	Notes           *string        `db:"notes" json:"notes,omitempty"`
	Tags            pq.StringArray `db:"tags" json:"tags"`
	LostReason      *string        `db:"lost_reason" json:"lostReason,omitempty"`
	Converted       bool           `db:"converted" json:"converted"`
	ConvertedAt     *time.Time     `db:"converted_at" json:"convertedAt,omitempty"`
	LastContactedAt *time.Time     `db:"last_contacted_at" json:"lastContactedAt,omitempty"`
	NextFollowUpAt  *time.Time     `db:"next_follow_up_at" json:"nextFollowUpAt,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updatedAt"`
}

// LeadFilter captures filtering criteria for listing leads.
type LeadFilter struct {
	Status     LeadStatus
	Priority   Priority
	Source     LeadSource
	AssignedTo string
	Search     string
	Page       int
	PageSize   int
}
