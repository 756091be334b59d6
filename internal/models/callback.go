package models

import "time"

// CallbackStatus enumerates follow-up states.
type CallbackStatus string

const (
	CallbackStatusPending      CallbackStatus = "Pending"
	CallbackStatusCompleted    CallbackStatus = "Completed"
	CallbackStatusRescheduled  CallbackStatus = "Rescheduled"
	CallbackStatusNotReachable CallbackStatus = "Not Reachable"
	CallbackStatusCancelled    CallbackStatus = "Cancelled"
)

// CallbackChannel enumerates contact channels for a follow-up.
type CallbackChannel string

const (
	ChannelCall     CallbackChannel = "Call"
	ChannelEmail    CallbackChannel = "Email"
	ChannelWhatsApp CallbackChannel = "WhatsApp"
	ChannelZoom     CallbackChannel = "Zoom"
	ChannelInPerson CallbackChannel = "In-Person Meeting"
)

// ValidCallbackChannel reports whether ch is a defined channel.
func ValidCallbackChannel(ch CallbackChannel) bool {
	switch ch {
	case ChannelCall, ChannelEmail, ChannelWhatsApp, ChannelZoom, ChannelInPerson:
		return true
	}
	return false
}

// TimeBucket is the derived, now-relative freshness classification of a
// callback. It is computed on every read and never persisted.
type TimeBucket string

const (
	BucketOverdue   TimeBucket = "overdue"
	BucketToday     TimeBucket = "today"
	BucketTomorrow  TimeBucket = "tomorrow"
	BucketThisWeek  TimeBucket = "thisWeek"
	BucketFuture    TimeBucket = "future"
	BucketCompleted TimeBucket = "completed"
)

// Callback is a scheduled follow-up contact attempt tied to a lead. Client and
// business names are copied from the lead at creation so the record stays
// displayable after the lead is edited or removed.
type Callback struct {
	ID               string          `db:"id" json:"id"`
	Code             string          `db:"code" json:"code"`
	LeadID           string          `db:"lead_id" json:"leadId"`
	ClientName       string          `db:"client_name" json:"clientName"`
	BusinessName     string          `db:"business_name" json:"businessName"`
	ScheduledDate    time.Time       `db:"scheduled_date" json:"scheduledDate"`
	ScheduledTime    string          `db:"scheduled_time" json:"scheduledTime"`
	Channel          CallbackChannel `db:"channel" json:"channel"`
	Status           CallbackStatus  `db:"status" json:"status"`
	Priority         Priority        `db:"priority" json:"priority"`
	AssignedTo       string          `db:"assigned_to" json:"assignedTo"`
	AssignedBy       *string         `db:"assigned_by" json:"assignedBy,omitempty"`
	Remarks          *string         `db:"remarks" json:"remarks,omitempty"`
	Outcome          *string         `db:"outcome" json:"outcome,omitempty"`
	CompletedAt      *time.Time      `db:"completed_at" json:"completedAt,omitempty"`
	CompletedBy      *string         `db:"completed_by" json:"completedBy,omitempty"`
	RescheduledFrom  *time.Time      `db:"rescheduled_from" json:"rescheduledFrom,omitempty"`
	RescheduledCount int             `db:"rescheduled_count" json:"rescheduledCount"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`

	// Bucket is derived at read time and not stored.
	Bucket TimeBucket `db:"-" json:"bucket,omitempty"`
}

// CallbackFilter captures filtering criteria for listing callbacks.
type CallbackFilter struct {
	LeadID     string
	Status     CallbackStatus
	Channel    CallbackChannel
	AssignedTo string
	StartDate  *time.Time
	EndDate    *time.Time
	Search     string
	Page       int
	PageSize   int
}
