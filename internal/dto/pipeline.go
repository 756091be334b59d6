package dto

import (
	"time"

	"github.com/salesdesk/pipeline-api/internal/models"
)

// LeaderboardEntry is one employee's transfer volume.
type LeaderboardEntry struct {
	EmployeeID string `json:"employeeId"`
	Name       string `json:"name,omitempty"`
	Position   string `json:"position,omitempty"`
	Count      int    `json:"count"`
}

// TransferLeaderboard ranks employees by handoffs given and received.
type TransferLeaderboard struct {
	Initiated []LeaderboardEntry `json:"initiated"`
	Received  []LeaderboardEntry `json:"received"`
}

// PipelineSummary is the composed read-side projection over leads, callbacks
// and transfers. It is recomputed on demand and cached only with a TTL.
type PipelineSummary struct {
	GeneratedAt     time.Time                 `json:"generatedAt"`
	Leads           LeadStats                 `json:"leads"`
	CallbackBuckets map[models.TimeBucket]int `json:"callbackBuckets"`
	Transfers       TransferStatusTotals      `json:"transfers"`
	Leaderboard     TransferLeaderboard       `json:"leaderboard"`
}
