package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salesdesk/pipeline-api/internal/models"
)

func TestComputeLeadMetrics(t *testing.T) {
	leads := []models.Lead{
		{Status: models.LeadStatusWon, ExpectedRevenue: 100},
		{Status: models.LeadStatusWon, ExpectedRevenue: 300},
		{Status: models.LeadStatusLost, ExpectedRevenue: 500},
		{Status: models.LeadStatusNew, ExpectedRevenue: 50},
	}

	stats := ComputeLeadMetrics(leads)

	assert.Equal(t, 4, stats.TotalLeads)
	assert.Equal(t, 2, stats.ConvertedLeads)
	assert.Equal(t, 50.0, stats.ConversionRate)
	assert.Equal(t, 66.7, stats.WinRate)
	assert.Equal(t, 400.0, stats.TotalRevenue)
	assert.Equal(t, 200.0, stats.AvgDealSize)

	byStatus := make(map[models.LeadStatus]int)
	for _, entry := range stats.ByStatus {
		byStatus[entry.Status] = entry.Count
	}
	assert.Equal(t, 2, byStatus[models.LeadStatusWon])
	assert.Equal(t, 1, byStatus[models.LeadStatusLost])
	assert.Equal(t, 1, byStatus[models.LeadStatusNew])
}

func TestComputeLeadMetricsEmpty(t *testing.T) {
	stats := ComputeLeadMetrics(nil)

	assert.Equal(t, 0, stats.TotalLeads)
	assert.Equal(t, 0.0, stats.ConversionRate)
	assert.Equal(t, 0.0, stats.WinRate)
	assert.Equal(t, 0.0, stats.AvgDealSize)
	assert.Empty(t, stats.ByStatus)
}

func TestComputeCallbackBucketsIncludesZeroes(t *testing.T) {
	now := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	callbacks := []models.Callback{
		{ScheduledDate: time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC), Status: models.CallbackStatusPending},
		{ScheduledDate: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC), Status: models.CallbackStatusPending},
		{ScheduledDate: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC), Status: models.CallbackStatusCompleted},
		{ScheduledDate: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC), Status: models.CallbackStatusCancelled},
	}

	buckets := ComputeCallbackBuckets(callbacks, now)

	assert.Equal(t, 1, buckets[models.BucketOverdue])
	assert.Equal(t, 1, buckets[models.BucketToday])
	assert.Equal(t, 1, buckets[models.BucketCompleted])
	// Cancelled callbacks are excluded entirely.
	assert.Equal(t, 0, buckets[models.BucketTomorrow])
	assert.Contains(t, buckets, models.BucketFuture)
	assert.Contains(t, buckets, models.BucketThisWeek)
}

func TestComputeCallbackStats(t *testing.T) {
	now := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	callbacks := []models.Callback{
		{ScheduledDate: now, Status: models.CallbackStatusPending},
		{ScheduledDate: now, Status: models.CallbackStatusCompleted},
		{ScheduledDate: now, Status: models.CallbackStatusCompleted},
		{ScheduledDate: now, Status: models.CallbackStatusNotReachable},
	}

	stats := ComputeCallbackStats(callbacks, now)

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 50.0, stats.CompletionRate)
}

func TestComputeTransferTotals(t *testing.T) {
	transfers := []models.Transfer{
		{Status: models.TransferStatusTransferred},
		{Status: models.TransferStatusTransferred},
		{Status: models.TransferStatusAccepted},
		{Status: models.TransferStatusRejected},
		{Status: models.TransferStatusCompleted},
		{Status: models.TransferStatusCancelled},
	}

	totals := ComputeTransferTotals(transfers)

	assert.Equal(t, 6, totals.Total)
	assert.Equal(t, 2, totals.Pending)
	assert.Equal(t, 1, totals.Accepted)
	assert.Equal(t, 1, totals.Rejected)
	assert.Equal(t, 1, totals.Completed)
	assert.Equal(t, 1, totals.Cancelled)
}

func TestComputeTransferLeaderboard(t *testing.T) {
	transfers := []models.Transfer{
		{FromEmployee: "a", ToEmployee: "x"},
		{FromEmployee: "a", ToEmployee: "y"},
		{FromEmployee: "b", ToEmployee: "x"},
		{FromEmployee: "c", ToEmployee: "x"},
	}

	board := ComputeTransferLeaderboard(transfers, 2)

	require.Len(t, board.Initiated, 2)
	assert.Equal(t, "a", board.Initiated[0].EmployeeID)
	assert.Equal(t, 2, board.Initiated[0].Count)

	require.Len(t, board.Received, 2)
	assert.Equal(t, "x", board.Received[0].EmployeeID)
	assert.Equal(t, 3, board.Received[0].Count)
}

func TestComputeTransferLeaderboardDeterministicTies(t *testing.T) {
	transfers := []models.Transfer{
		{FromEmployee: "b", ToEmployee: "z"},
		{FromEmployee: "a", ToEmployee: "z"},
	}

	board := ComputeTransferLeaderboard(transfers, 5)

	require.Len(t, board.Initiated, 2)
	assert.Equal(t, "a", board.Initiated[0].EmployeeID)
	assert.Equal(t, "b", board.Initiated[1].EmployeeID)
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 66.7, round1(66.66666))
	assert.Equal(t, 50.0, round1(50.0))
	assert.Equal(t, 0.1, round1(0.05))
}
