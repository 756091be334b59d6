package service

import (
	"time"

	"github.com/salesdesk/pipeline-api/internal/models"
)

// ClassifyBucket derives the freshness bucket of a callback relative to an
// explicit now. It is a pure function: the clock is always injected, never
// read, so bucket boundaries stay testable and stable across time zones.
//
// A completed callback short-circuits the date logic entirely. Otherwise the
// scheduled date is compared against calendar days with the week boundary at
// the upcoming Sunday (weekday index 0).
func ClassifyBucket(cb models.Callback, now time.Time) models.TimeBucket {
	if cb.Status == models.CallbackStatusCompleted {
		return models.BucketCompleted
	}

	today := dateOnly(now)
	tomorrow := today.AddDate(0, 0, 1)
	endOfWeek := today.AddDate(0, 0, 7-int(today.Weekday()))
	cbDate := dateOnly(cb.ScheduledDate)

	switch {
	case cbDate.Before(today):
		return models.BucketOverdue
	case cbDate.Equal(today):
		return models.BucketToday
	case cbDate.Equal(tomorrow):
		return models.BucketTomorrow
	case !cbDate.After(endOfWeek):
		return models.BucketThisWeek
	default:
		return models.BucketFuture
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
