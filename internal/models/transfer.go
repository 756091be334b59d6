package models

import "time"

// TransferStatus captures workflow states for a callback handoff.
type TransferStatus string

const (
	TransferStatusTransferred TransferStatus = "Transferred"
	TransferStatusAccepted    TransferStatus = "Accepted"
	TransferStatusRejected    TransferStatus = "Rejected"
	TransferStatusCompleted   TransferStatus = "Completed"
	TransferStatusCancelled   TransferStatus = "Cancelled"
)

// Open reports whether the transfer is still unresolved. At most one open
// transfer may exist per callback.
func (s TransferStatus) Open() bool {
	return s == TransferStatusTransferred || s == TransferStatusAccepted
}

// TransferDecision is the recipient's verdict on a pending handoff.
type TransferDecision string

const (
	DecisionAccept TransferDecision = "Accept"
	DecisionReject TransferDecision = "Reject"
)

// Transfer is a consent-based handoff of a callback between two employees.
// Ownership of the callback only moves when the recipient accepts.
type Transfer struct {
	ID            string         `db:"id" json:"id"`
	CallbackID    string         `db:"callback_id" json:"callbackId"`
	ClientName    string         `db:"client_name" json:"clientName"`
	BusinessName  string         `db:"business_name" json:"businessName"`
	FromEmployee  string         `db:"from_employee" json:"fromEmployee"`
	ToEmployee    string         `db:"to_employee" json:"toEmployee"`
	Status        TransferStatus `db:"status" json:"status"`
	Remarks       *string        `db:"remarks" json:"remarks,omitempty"`
	TransferredAt time.Time      `db:"transferred_at" json:"transferredAt"`
	CompletedAt   *time.Time     `db:"completed_at" json:"completedAt,omitempty"`
}

// TransferFilter captures filtering criteria for listing transfers.
type TransferFilter struct {
	CallbackID   string
	FromEmployee string
	ToEmployee   string
	Status       []TransferStatus
	Limit        int
	Offset       int
}
