package service

import (
	"math"
	"sort"
	"time"

	"github.com/salesdesk/pipeline-api/internal/dto"
	"github.com/salesdesk/pipeline-api/internal/models"
)

// The aggregation functions below are pure: they take snapshots and return
// projections, never touching storage or the clock. All rates are percentages
// rounded to one decimal, and empty inputs yield zeroed projections rather
// than NaN.

// ComputeLeadMetrics folds a lead snapshot into conversion metrics.
// Conversion rate is won over total; win rate is won over decided (won+lost).
// Revenue sums only won leads.
func ComputeLeadMetrics(leads []models.Lead) dto.LeadStats {
	stats := dto.LeadStats{TotalLeads: len(leads)}

	byStatus := make(map[models.LeadStatus]*dto.LeadStatusCount)
	var won, lost int
	for _, lead := range leads {
		entry, ok := byStatus[lead.Status]
		if !ok {
			entry = &dto.LeadStatusCount{Status: lead.Status}
			byStatus[lead.Status] = entry
		}
		entry.Count++
		entry.Revenue += lead.ExpectedRevenue

		switch lead.Status {
		case models.LeadStatusWon:
			won++
			stats.TotalRevenue += lead.ExpectedRevenue
		case models.LeadStatusLost:
			lost++
		}
	}

	stats.ConvertedLeads = won
	if stats.TotalLeads > 0 {
		stats.ConversionRate = round1(float64(won) / float64(stats.TotalLeads) * 100)
	}
	if won+lost > 0 {
		stats.WinRate = round1(float64(won) / float64(won+lost) * 100)
	}
	if won > 0 {
		stats.AvgDealSize = round1(stats.TotalRevenue / float64(won))
	}

	stats.ByStatus = make([]dto.LeadStatusCount, 0, len(byStatus))
	for _, entry := range byStatus {
		stats.ByStatus = append(stats.ByStatus, *entry)
	}
	sort.Slice(stats.ByStatus, func(i, j int) bool {
		return stats.ByStatus[i].Status < stats.ByStatus[j].Status
	})
	return stats
}

// ComputeCallbackBuckets classifies a callback snapshot against a single now.
// Every defined bucket appears in the result, zero or not, so chart clients
// never need to fill in missing keys.
func ComputeCallbackBuckets(callbacks []models.Callback, now time.Time) map[models.TimeBucket]int {
	buckets := map[models.TimeBucket]int{
		models.BucketOverdue:   0,
		models.BucketToday:     0,
		models.BucketTomorrow:  0,
		models.BucketThisWeek:  0,
		models.BucketFuture:    0,
		models.BucketCompleted: 0,
	}
	for _, cb := range callbacks {
		if cb.Status == models.CallbackStatusCancelled {
			continue
		}
		buckets[ClassifyBucket(cb, now)]++
	}
	return buckets
}

// ComputeCallbackStats folds callbacks into totals and a completion rate.
func ComputeCallbackStats(callbacks []models.Callback, now time.Time) dto.CallbackStats {
	stats := dto.CallbackStats{
		Total:    len(callbacks),
		ByBucket: ComputeCallbackBuckets(callbacks, now),
	}
	for _, cb := range callbacks {
		switch cb.Status {
		case models.CallbackStatusCompleted:
			stats.Completed++
		case models.CallbackStatusPending, models.CallbackStatusRescheduled, models.CallbackStatusNotReachable:
			stats.Pending++
		}
	}
	if stats.Total > 0 {
		stats.CompletionRate = round1(float64(stats.Completed) / float64(stats.Total) * 100)
	}
	return stats
}

// ComputeTransferTotals counts transfers per workflow state.
func ComputeTransferTotals(transfers []models.Transfer) dto.TransferStatusTotals {
	totals := dto.TransferStatusTotals{Total: len(transfers)}
	for _, t := range transfers {
		switch t.Status {
		case models.TransferStatusTransferred:
			totals.Pending++
		case models.TransferStatusAccepted:
			totals.Accepted++
		case models.TransferStatusRejected:
			totals.Rejected++
		case models.TransferStatusCompleted:
			totals.Completed++
		case models.TransferStatusCancelled:
			totals.Cancelled++
		}
	}
	return totals
}

// ComputeTransferLeaderboard ranks employees by handoffs initiated and
// received, keeping the top size entries per direction. Ties break on
// employee id so the ordering is deterministic.
func ComputeTransferLeaderboard(transfers []models.Transfer, size int) dto.TransferLeaderboard {
	if size <= 0 {
		size = 5
	}
	initiated := make(map[string]int)
	received := make(map[string]int)
	for _, t := range transfers {
		initiated[t.FromEmployee]++
		received[t.ToEmployee]++
	}
	return dto.TransferLeaderboard{
		Initiated: topEntries(initiated, size),
		Received:  topEntries(received, size),
	}
}

func topEntries(counts map[string]int, size int) []dto.LeaderboardEntry {
	entries := make([]dto.LeaderboardEntry, 0, len(counts))
	for id, count := range counts {
		entries = append(entries, dto.LeaderboardEntry{EmployeeID: id, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].EmployeeID < entries[j].EmployeeID
	})
	if len(entries) > size {
		entries = entries[:size]
	}
	return entries
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
