// Package aggregate rolls scored events up into category sub-scores and
// the daily composite, and labels the composite's trend against rolling
// baselines. Every function here is pure: the pipeline owns all I/O.
package aggregate

import (
	"errors"
	"fmt"
	"math"

	"github.com/vigialab/vigia/riskpipe/internal/store"
)

// ErrInvalidCategoryWeights marks a category weight set that does not
// sum to 1.
var ErrInvalidCategoryWeights = errors.New("aggregate: category weights must sum to 1.0")

// SeverityWeights give higher-priority events more pull on category
// sub-scores.
var SeverityWeights = map[string]float64{
	store.SeverityP1: 4,
	store.SeverityP2: 3,
	store.SeverityP3: 2,
	store.SeverityP4: 1,
}

// CategoryWeights shape the composite. The table is a fixed contract:
// changing any value shifts every historical composite, so the
// individual entries are pinned by tests, not just the sum.
var CategoryWeights = map[string]float64{
	store.CategoryPolitical:      0.15,
	store.CategoryConflict:       0.12,
	store.CategoryEconomic:       0.15,
	store.CategoryTrade:          0.12,
	store.CategoryRegulatory:     0.12,
	store.CategoryInfrastructure: 0.08,
	store.CategoryHealthcare:     0.05,
	store.CategorySocial:         0.06,
	store.CategoryEnvironmental:  0.05,
	store.CategoryEnergy:         0.10,
}

// ValidateCategoryWeights rejects weight tables that miss a category or
// do not sum to 1. Checked once at startup.
func ValidateCategoryWeights(weights map[string]float64) error {
	var sum float64
	for _, cat := range store.Categories {
		w, ok := weights[cat]
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrInvalidCategoryWeights, cat)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("%w: got %.6f", ErrInvalidCategoryWeights, sum)
	}
	return nil
}

// CategoryScores computes one sub-score per category from the day's
// scored events: a severity-weighted mean boosted by event volume, up to
// +20% at 10 or more events. Categories with no events score zero — the
// explicit "no signal" state, never carried over from yesterday.
func CategoryScores(events []*store.ScoredEvent) map[string]float64 {
	type acc struct {
		weighted float64
		weight   float64
		count    int
	}
	accs := map[string]*acc{}
	for _, se := range events {
		a := accs[se.Category]
		if a == nil {
			a = &acc{}
			accs[se.Category] = a
		}
		w := SeverityWeights[se.Severity]
		if w == 0 {
			w = 1
		}
		a.weighted += w * se.RiskScore
		a.weight += w
		a.count++
	}

	out := make(map[string]float64, len(store.Categories))
	for _, cat := range store.Categories {
		a := accs[cat]
		if a == nil || a.weight == 0 {
			out[cat] = 0
			continue
		}
		mean := a.weighted / a.weight
		boost := 1 + 0.2*math.Min(float64(a.count)/10, 1)
		out[cat] = clamp100(mean * boost)
	}
	return out
}

// Composite folds category sub-scores into the single daily number. Any
// day with P1 events is floored at 70 and escalated up to +25% by P1
// volume, so a quiet tail of categories cannot dilute a critical event.
func Composite(categoryScores map[string]float64, weights map[string]float64, p1Count int) float64 {
	var score float64
	for cat, w := range weights {
		score += w * categoryScores[cat]
	}
	if p1Count > 0 {
		floored := math.Max(score, 70)
		score = floored * (1 + 0.05*math.Min(float64(p1Count), 5))
	}
	return clamp100(score)
}

// SeverityCounts tallies events per priority.
func SeverityCounts(events []*store.ScoredEvent) (p1, p2, p3, p4 int) {
	for _, se := range events {
		switch se.Severity {
		case store.SeverityP1:
			p1++
		case store.SeverityP2:
			p2++
		case store.SeverityP3:
			p3++
		case store.SeverityP4:
			p4++
		}
	}
	return
}

// Trend is the composite's movement relative to rolling baselines.
type Trend struct {
	Velocity7d  float64
	Velocity30d float64
	Label       string
}

// ComputeTrend compares the current composite to the 7- and 30-day
// rolling baselines as z-scores. Missing or zero-variance baselines give
// zero velocity, and the label follows the 7-day z-score: past ±1 is
// fast movement, past ±0.5 plain movement, otherwise stable.
func ComputeTrend(current float64, rm7, rm30 *store.RollingMetrics) Trend {
	tr := Trend{
		Velocity7d:  zScore(current, rm7),
		Velocity30d: zScore(current, rm30),
		Label:       store.TrendStable,
	}
	switch {
	case tr.Velocity7d > 1:
		tr.Label = store.TrendRisingFast
	case tr.Velocity7d > 0.5:
		tr.Label = store.TrendRising
	case tr.Velocity7d < -1:
		tr.Label = store.TrendFallingFast
	case tr.Velocity7d < -0.5:
		tr.Label = store.TrendFalling
	}
	return tr
}

func zScore(current float64, rm *store.RollingMetrics) float64 {
	if rm == nil || rm.StddevScore == 0 {
		return 0
	}
	return (current - rm.MeanScore) / rm.StddevScore
}

func clamp100(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 100 {
		return 100
	}
	return x
}
