package baseline

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/vigialab/vigia/dbopen"
	"github.com/vigialab/vigia/riskpipe/internal/store"
	_ "modernc.org/sqlite"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	return store.NewStore(db)
}

func putEvent(t *testing.T, st *store.Store, ts time.Time, category string, magnitude float64) {
	t.Helper()
	ev := &store.CanonicalEvent{
		Source:         store.SourceGDELT,
		SourceEventID:  fmt.Sprintf("%s-%d-%v", category, ts.UnixMilli(), magnitude),
		EventTimestamp: ts.UnixMilli(),
		IngestedAt:     ts.UnixMilli(),
		Category:       category,
		EventType:      "FIGHT",
		CountryCode:    "VE",
		Direction:      store.DirectionNegative,
		MagnitudeNorm:  magnitude,
		ToneNorm:       0.5,
		NumSources:     1,
		Confidence:     0.5,
	}
	if err := st.UpsertEvent(context.Background(), ev); err != nil {
		t.Fatalf("upsert event: %v", err)
	}
}

func TestBuild_PerCategoryStats(t *testing.T) {
	// WHAT: The snapshot carries mean and population stddev per category,
	// only for categories with observations in the window.
	st := openTestStore(t)
	asOf := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	for _, m := range []float64{0.2, 0.4, 0.6} {
		putEvent(t, st, asOf.AddDate(0, 0, -3), store.CategoryConflict, m)
	}

	snap, err := Build(context.Background(), st, asOf)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b, ok := snap.Category(store.CategoryConflict)
	if !ok {
		t.Fatal("no CONFLICT baseline")
	}
	if b.Count != 3 || math.Abs(b.Mean-0.4) > 1e-9 {
		t.Errorf("count/mean = %d/%v, want 3/0.4", b.Count, b.Mean)
	}
	wantStd := math.Sqrt(((0.04) + 0 + (0.04)) / 3) // population stddev
	if math.Abs(b.Stddev-wantStd) > 1e-9 {
		t.Errorf("stddev = %v, want %v", b.Stddev, wantStd)
	}
	if _, ok := snap.Category(store.CategoryEnergy); ok {
		t.Error("ENERGY baseline should be absent")
	}
}

func TestBuild_WindowExcludesOldEvents(t *testing.T) {
	// WHAT: Events outside the trailing 30-day window do not shape the
	// baseline.
	st := openTestStore(t)
	asOf := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	putEvent(t, st, asOf.AddDate(0, 0, -45), store.CategoryConflict, 0.95)
	putEvent(t, st, asOf.AddDate(0, 0, -2), store.CategoryConflict, 0.1)

	snap, err := Build(context.Background(), st, asOf)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b, _ := snap.Category(store.CategoryConflict)
	if b.Count != 1 || b.Mean != 0.1 {
		t.Errorf("window leak: count=%d mean=%v", b.Count, b.Mean)
	}
}

func TestMeanStddev(t *testing.T) {
	cases := []struct {
		values     []float64
		mean, std  float64
	}{
		{nil, 0, 0},
		{[]float64{5}, 5, 0},
		{[]float64{2, 4, 4, 4, 5, 5, 7, 9}, 5, 2},
	}
	for _, c := range cases {
		m, s := MeanStddev(c.values)
		if math.Abs(m-c.mean) > 1e-9 || math.Abs(s-c.std) > 1e-9 {
			t.Errorf("MeanStddev(%v) = %v/%v, want %v/%v", c.values, m, s, c.mean, c.std)
		}
	}
}

func putSummary(t *testing.T, st *store.Store, date string, score float64, count int) {
	t.Helper()
	err := st.ReplaceDailySummary(context.Background(), &store.DailySummary{
		Date:       date,
		RiskScore:  score,
		EventCount: count,
		CategoryScores: map[string]float64{
			store.CategoryConflict: score / 2,
		},
		RiskTrend:  store.TrendStable,
		ComputedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatalf("put summary %s: %v", date, err)
	}
}

func TestComputeRollingMetrics(t *testing.T) {
	// WHAT: Each configured window gets a row computed from the summaries
	// inside it, and recomputation replaces rather than duplicates.
	st := openTestStore(t)
	ctx := context.Background()

	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		d := day.AddDate(0, 0, -i).Format("2006-01-02")
		putSummary(t, st, d, 40+float64(i), 10+i)
	}

	if err := ComputeRollingMetrics(ctx, st, "2025-06-10"); err != nil {
		t.Fatalf("compute: %v", err)
	}

	rm7, err := st.GetRollingMetrics(ctx, "2025-06-10", 7)
	if err != nil || rm7 == nil {
		t.Fatalf("get 7d: %v %v", rm7, err)
	}
	// Window covers 2025-06-04..10: scores 46..40, mean 43.
	if math.Abs(rm7.MeanScore-43) > 1e-9 {
		t.Errorf("7d mean = %v, want 43", rm7.MeanScore)
	}
	if rm7.StddevScore <= 0 {
		t.Errorf("7d stddev = %v, want > 0", rm7.StddevScore)
	}
	if math.Abs(rm7.CategoryMeans[store.CategoryConflict]-21.5) > 1e-9 {
		t.Errorf("7d conflict mean = %v, want 21.5", rm7.CategoryMeans[store.CategoryConflict])
	}

	for _, w := range store.RollingWindows {
		rm, err := st.GetRollingMetrics(ctx, "2025-06-10", w)
		if err != nil || rm == nil {
			t.Errorf("missing window %d: %v", w, err)
		}
	}

	// Idempotent recomputation.
	if err := ComputeRollingMetrics(ctx, st, "2025-06-10"); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	again, _ := st.GetRollingMetrics(ctx, "2025-06-10", 7)
	if math.Abs(again.MeanScore-rm7.MeanScore) > 1e-9 {
		t.Errorf("recompute changed mean: %v vs %v", again.MeanScore, rm7.MeanScore)
	}
}

func TestComputeRollingMetrics_EmptyHistory(t *testing.T) {
	// WHAT: With no summaries at all, rows are still written with zeroed
	// statistics so downstream reads see explicit cold-start state.
	st := openTestStore(t)
	if err := ComputeRollingMetrics(context.Background(), st, "2025-06-10"); err != nil {
		t.Fatalf("compute: %v", err)
	}
	rm, err := st.GetRollingMetrics(context.Background(), "2025-06-10", 30)
	if err != nil || rm == nil {
		t.Fatalf("get: %v %v", rm, err)
	}
	if rm.MeanScore != 0 || rm.StddevScore != 0 {
		t.Errorf("cold start should be zeroed: %+v", rm)
	}
}
