// Package baseline builds the statistical context risk scoring compares
// against: per-category magnitude distributions over a trailing window,
// and per-day rolling metrics derived from daily summaries.
package baseline

import (
	"context"
	"math"
	"time"

	"github.com/vigialab/vigia/riskpipe/internal/store"
)

// DefaultWindowDays is the trailing window for per-category velocity
// baselines.
const DefaultWindowDays = 30

// CategoryBaseline is the magnitude distribution of one category over
// the window.
type CategoryBaseline struct {
	Count  int
	Mean   float64
	Stddev float64
}

// Snapshot is an immutable view of the baselines as of a moment in time.
// A pipeline run builds one snapshot up front and scores every event in
// the batch against it, so events within a run cannot influence each
// other's velocity.
type Snapshot struct {
	AsOf       time.Time
	WindowDays int
	categories map[string]CategoryBaseline
}

// NewSnapshot builds a snapshot from precomputed category baselines.
func NewSnapshot(asOf time.Time, windowDays int, categories map[string]CategoryBaseline) *Snapshot {
	return &Snapshot{AsOf: asOf, WindowDays: windowDays, categories: categories}
}

// Category returns the baseline for a category and whether the window
// held any observations for it.
func (s *Snapshot) Category(category string) (CategoryBaseline, bool) {
	if s == nil {
		return CategoryBaseline{}, false
	}
	b, ok := s.categories[category]
	return b, ok
}

// Build computes a snapshot from stored events in the trailing window
// ending at asOf.
func Build(ctx context.Context, st *store.Store, asOf time.Time) (*Snapshot, error) {
	stats, err := st.CategoryMagnitudeStats(ctx, asOf, DefaultWindowDays)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		AsOf:       asOf,
		WindowDays: DefaultWindowDays,
		categories: make(map[string]CategoryBaseline, len(stats)),
	}
	for cat, ms := range stats {
		if ms.Count == 0 {
			continue
		}
		mean, stddev := meanStddevFromSums(ms.Count, ms.Sum, ms.SumSq)
		snap.categories[cat] = CategoryBaseline{Count: ms.Count, Mean: mean, Stddev: stddev}
	}
	return snap, nil
}

// meanStddevFromSums computes the population mean and standard deviation
// from streaming accumulators. SQLite has no stddev aggregate, so the
// store hands back count/sum/sum-of-squares and the math happens here.
func meanStddevFromSums(count int, sum, sumsq float64) (mean, stddev float64) {
	if count == 0 {
		return 0, 0
	}
	n := float64(count)
	mean = sum / n
	variance := sumsq/n - mean*mean
	if variance < 0 { // floating-point residue near zero variance
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// MeanStddev computes the population mean and standard deviation of a
// sample.
func MeanStddev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum, sumsq float64
	for _, v := range values {
		sum += v
		sumsq += v * v
	}
	return meanStddevFromSums(len(values), sum, sumsq)
}

// ComputeRollingMetrics recomputes every rolling window for one date
// from the daily summary history ending at that date (inclusive) and
// writes the rows with replace semantics. Pure derived state: running it
// twice is a no-op.
func ComputeRollingMetrics(ctx context.Context, st *store.Store, date string) error {
	dayStart, _, err := store.DayBounds(date)
	if err != nil {
		return err
	}
	end := time.UnixMilli(dayStart).UTC()
	now := time.Now().UnixMilli()

	for _, window := range store.RollingWindows {
		from := end.AddDate(0, 0, -(window - 1)).Format("2006-01-02")
		summaries, err := st.ListDailySummaries(ctx, from, date)
		if err != nil {
			return err
		}

		rm := &store.RollingMetrics{
			Date:          date,
			WindowDays:    window,
			CategoryMeans: map[string]float64{},
			ComputedAt:    now,
		}
		if len(summaries) > 0 {
			scores := make([]float64, len(summaries))
			counts := make([]float64, len(summaries))
			catSums := map[string]float64{}
			for i, ds := range summaries {
				scores[i] = ds.RiskScore
				counts[i] = float64(ds.EventCount)
				for cat, sc := range ds.CategoryScores {
					catSums[cat] += sc
				}
			}
			rm.MeanScore, rm.StddevScore = MeanStddev(scores)
			rm.MeanEventCount, rm.StddevEventCount = MeanStddev(counts)
			for cat, sum := range catSums {
				rm.CategoryMeans[cat] = sum / float64(len(summaries))
			}
		}
		if err := st.ReplaceRollingMetrics(ctx, rm); err != nil {
			return err
		}
	}
	return nil
}
