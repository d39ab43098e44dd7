// Package deadline answers whether the current execution still has time to start another chunk.
package deadline

import (
	"context"
	"math"
	"time"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
)

// Tracker compares the remaining time of an execution against a fixed threshold.
type Tracker struct {
	source      port.RemainingTimeSource
	thresholdMs int64
}

// NewTracker creates a Tracker. thresholdMs is the time one re-dispatch round trip needs plus a margin.
func NewTracker(source port.RemainingTimeSource, thresholdMs int64) *Tracker {
	return &Tracker{source: source, thresholdMs: thresholdMs}
}

// HasTimeFor reports whether another unit of work may start: remaining time strictly above the threshold.
// op names the work for logging by callers and does not affect the answer.
func (t *Tracker) HasTimeFor(op string) bool {
	return t.source.RemainingTimeMs() > t.thresholdMs
}

// ThresholdMs returns the configured threshold.
func (t *Tracker) ThresholdMs() int64 { return t.thresholdMs }

// RemainingTimeMs exposes the underlying source.
func (t *Tracker) RemainingTimeMs() int64 { return t.source.RemainingTimeMs() }

// ContextSource reads the remaining time from a context deadline.
// A context without a deadline never runs out of time.
type ContextSource struct {
	ctx context.Context
	now func() time.Time
}

// NewContextSource creates a ContextSource for ctx.
func NewContextSource(ctx context.Context) *ContextSource {
	return &ContextSource{ctx: ctx, now: time.Now}
}

// RemainingTimeMs implements port.RemainingTimeSource.
func (s *ContextSource) RemainingTimeMs() int64 {
	dl, ok := s.ctx.Deadline()
	if !ok {
		return math.MaxInt64
	}
	return clampMs(dl.Sub(s.now()))
}

// BudgetSource counts down a fixed budget from a start time.
type BudgetSource struct {
	start  time.Time
	budget time.Duration
	now    func() time.Time
}

// NewBudgetSource creates a BudgetSource. A nil now defaults to time.Now.
func NewBudgetSource(start time.Time, budget time.Duration, now func() time.Time) *BudgetSource {
	if now == nil {
		now = time.Now
	}
	return &BudgetSource{start: start, budget: budget, now: now}
}

// RemainingTimeMs implements port.RemainingTimeSource.
func (s *BudgetSource) RemainingTimeMs() int64 {
	return clampMs(s.budget - s.now().Sub(s.start))
}

// FixedSource always reports the same remaining time.
type FixedSource int64

// RemainingTimeMs implements port.RemainingTimeSource.
func (s FixedSource) RemainingTimeMs() int64 { return int64(s) }

func clampMs(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return d.Milliseconds()
}

var (
	_ port.RemainingTimeSource = (*ContextSource)(nil)
	_ port.RemainingTimeSource = (*BudgetSource)(nil)
	_ port.RemainingTimeSource = FixedSource(0)
)
