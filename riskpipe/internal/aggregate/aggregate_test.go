package aggregate

import (
	"math"
	"testing"

	"github.com/vigialab/vigia/riskpipe/internal/store"
)

func scored(category, severity string, risk float64) *store.ScoredEvent {
	return &store.ScoredEvent{
		CanonicalEvent: store.CanonicalEvent{Category: category},
		Severity:       severity,
		RiskScore:      risk,
	}
}

func TestCategoryWeights_SumToOne(t *testing.T) {
	// WHAT: The production weight table covers all ten categories and
	// sums to exactly 1.00.
	// WHY: The composite is a weighted mean; a hole or drift here skews
	// every daily score.
	if err := ValidateCategoryWeights(CategoryWeights); err != nil {
		t.Fatal(err)
	}
}

func TestCategoryWeights_PinnedValues(t *testing.T) {
	// WHAT: Every individual weight is pinned, not just the sum.
	// WHY: Two different tables can both sum to 1.00 while producing
	// different composites for the same day; the values are the contract.
	want := map[string]float64{
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
	for cat, w := range want {
		if CategoryWeights[cat] != w {
			t.Errorf("weight[%s] = %v, want %v", cat, CategoryWeights[cat], w)
		}
	}
	if len(CategoryWeights) != len(want) {
		t.Errorf("table has %d entries, want %d", len(CategoryWeights), len(want))
	}
}

func TestValidateCategoryWeights_Rejects(t *testing.T) {
	missing := map[string]float64{store.CategoryConflict: 1.0}
	if err := ValidateCategoryWeights(missing); err == nil {
		t.Error("missing categories should fail")
	}

	skewed := map[string]float64{}
	for cat, w := range CategoryWeights {
		skewed[cat] = w
	}
	skewed[store.CategoryConflict] += 0.1
	if err := ValidateCategoryWeights(skewed); err == nil {
		t.Error("sum 1.1 should fail")
	}
}

func TestCategoryScores_SeverityWeightedMean(t *testing.T) {
	// WHAT: P1 events pull the category mean harder than P4 events, and
	// volume boosts the result up to +20%.
	events := []*store.ScoredEvent{
		scored(store.CategoryConflict, store.SeverityP1, 80),
		scored(store.CategoryConflict, store.SeverityP4, 20),
	}
	scores := CategoryScores(events)
	// (4·80 + 1·20)/5 = 68, boosted by 2 events: ×(1+0.2·0.2) = ×1.04.
	want := 68.0 * 1.04
	if math.Abs(scores[store.CategoryConflict]-want) > 1e-9 {
		t.Errorf("conflict = %v, want %v", scores[store.CategoryConflict], want)
	}
}

func TestCategoryScores_ZeroEventCategories(t *testing.T) {
	// WHAT: Categories without events score exactly 0 — no carry-over.
	scores := CategoryScores([]*store.ScoredEvent{
		scored(store.CategoryEnergy, store.SeverityP2, 60),
	})
	if len(scores) != len(store.Categories) {
		t.Fatalf("got %d categories, want %d", len(scores), len(store.Categories))
	}
	for _, cat := range store.Categories {
		if cat == store.CategoryEnergy {
			continue
		}
		if scores[cat] != 0 {
			t.Errorf("%s = %v, want 0", cat, scores[cat])
		}
	}
}

func TestCategoryScores_VolumeBoostSaturates(t *testing.T) {
	// WHAT: The volume boost caps at +20% from 10 events on.
	ten := make([]*store.ScoredEvent, 10)
	thirty := make([]*store.ScoredEvent, 30)
	for i := range ten {
		ten[i] = scored(store.CategoryConflict, store.SeverityP3, 50)
	}
	for i := range thirty {
		thirty[i] = scored(store.CategoryConflict, store.SeverityP3, 50)
	}
	a := CategoryScores(ten)[store.CategoryConflict]
	b := CategoryScores(thirty)[store.CategoryConflict]
	if math.Abs(a-60) > 1e-9 || math.Abs(b-60) > 1e-9 {
		t.Errorf("boost: 10 events → %v, 30 events → %v, want 60 both", a, b)
	}
}

func TestComposite_WeightedMean(t *testing.T) {
	scores := map[string]float64{}
	for _, cat := range store.Categories {
		scores[cat] = 40
	}
	got := Composite(scores, CategoryWeights, 0)
	if math.Abs(got-40) > 1e-9 {
		t.Errorf("uniform 40 should compose to 40, got %v", got)
	}
}

func TestComposite_P1Floor(t *testing.T) {
	// WHAT: Any day with a P1 event scores at least 70 (then escalated),
	// even when the weighted mean is far below.
	quiet := map[string]float64{}
	for _, cat := range store.Categories {
		quiet[cat] = 10
	}
	got := Composite(quiet, CategoryWeights, 1)
	want := 70.0 * 1.05
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("one P1 on a quiet day = %v, want %v", got, want)
	}

	// Escalation saturates at five P1s and the result stays clamped.
	five := Composite(quiet, CategoryWeights, 5)
	nine := Composite(quiet, CategoryWeights, 9)
	if math.Abs(five-87.5) > 1e-9 || five != nine {
		t.Errorf("escalation: five=%v nine=%v, want 87.5 both", five, nine)
	}

	hot := map[string]float64{}
	for _, cat := range store.Categories {
		hot[cat] = 95
	}
	if got := Composite(hot, CategoryWeights, 5); got != 100 {
		t.Errorf("escalated hot day should clamp at 100, got %v", got)
	}
}

func TestComputeTrend_Labels(t *testing.T) {
	// WHAT: The 7-day z-score drives the label with ±0.5 and ±1 bands.
	rm := func(mean, stddev float64) *store.RollingMetrics {
		return &store.RollingMetrics{MeanScore: mean, StddevScore: stddev}
	}
	cases := []struct {
		current float64
		want    string
	}{
		{62, store.TrendRisingFast},   // z = 1.2
		{57, store.TrendRising},       // z = 0.7
		{52, store.TrendStable},       // z = 0.2
		{43, store.TrendFalling},      // z = −0.7
		{38, store.TrendFallingFast},  // z = −1.2
	}
	for _, c := range cases {
		tr := ComputeTrend(c.current, rm(50, 10), rm(50, 20))
		if tr.Label != c.want {
			t.Errorf("current=%v: label %s, want %s", c.current, tr.Label, c.want)
		}
	}
}

func TestComputeTrend_ZeroVarianceAndMissing(t *testing.T) {
	// WHAT: Flat history or no history yields zero velocity and STABLE.
	flat := &store.RollingMetrics{MeanScore: 50, StddevScore: 0}
	tr := ComputeTrend(90, flat, nil)
	if tr.Velocity7d != 0 || tr.Velocity30d != 0 || tr.Label != store.TrendStable {
		t.Errorf("cold start trend: %+v", tr)
	}
}

func TestSeverityCounts(t *testing.T) {
	events := []*store.ScoredEvent{
		scored(store.CategoryConflict, store.SeverityP1, 80),
		scored(store.CategoryConflict, store.SeverityP2, 60),
		scored(store.CategorySocial, store.SeverityP2, 55),
		scored(store.CategoryTrade, store.SeverityP4, 10),
	}
	p1, p2, p3, p4 := SeverityCounts(events)
	if p1 != 1 || p2 != 2 || p3 != 0 || p4 != 1 {
		t.Errorf("counts: %d %d %d %d", p1, p2, p3, p4)
	}
}
