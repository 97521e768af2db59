package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gymstack/checkin-server/internal/store"
)

// Stats is the occupancy snapshot derived from check-in records. It is
// recomputed from the store on every call, never cached.
type Stats struct {
	CurrentlyIn        int
	TodayTotal         int
	AverageStayMinutes int
}

// StatsStore is the slice of the store the aggregator needs.
type StatsStore interface {
	CountOpenCheckIns(ctx context.Context) (int, error)
	CountCheckInsBetween(ctx context.Context, start, end time.Time) (int, error)
	CompletedCheckInsBetween(ctx context.Context, start, end time.Time) ([]*store.CheckIn, error)
}

// Aggregator computes occupancy stats against "today" in the server-local
// calendar date.
type Aggregator struct {
	store StatsStore
	now   func() time.Time
}

// NewAggregator creates a stats aggregator over the given record store.
func NewAggregator(st StatsStore) *Aggregator {
	return &Aggregator{store: st, now: time.Now}
}

// ComputeStats returns a fresh snapshot. CurrentlyIn counts all open records
// regardless of day; TodayTotal and AverageStayMinutes only consider records
// checked in today. The average is 0 when no completed record exists today.
func (a *Aggregator) ComputeStats(ctx context.Context) (*Stats, error) {
	currentlyIn, err := a.store.CountOpenCheckIns(ctx)
	if err != nil {
		return nil, fmt.Errorf("count open: %w", err)
	}

	now := a.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)

	todayTotal, err := a.store.CountCheckInsBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("count today: %w", err)
	}

	completed, err := a.store.CompletedCheckInsBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("completed today: %w", err)
	}

	avg := 0
	if len(completed) > 0 {
		var total time.Duration
		for _, rec := range completed {
			total += rec.CheckOutTime.Sub(rec.CheckInTime)
		}
		mean := total.Minutes() / float64(len(completed))
		avg = int(math.Round(mean))
	}

	return &Stats{
		CurrentlyIn:        currentlyIn,
		TodayTotal:         todayTotal,
		AverageStayMinutes: avg,
	}, nil
}
