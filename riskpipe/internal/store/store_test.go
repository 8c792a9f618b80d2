package store

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vigialab/vigia/dbopen"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	return NewStore(db)
}

func testEvent(sourceEventID string, ts time.Time) *CanonicalEvent {
	return &CanonicalEvent{
		Source:            SourceACLED,
		SourceEventID:     sourceEventID,
		EventTimestamp:    ts.UnixMilli(),
		Category:          CategoryConflict,
		Subcategory:       "Battles",
		EventType:         "ARMED_CLASH",
		CountryCode:       "VE",
		Admin1:            "Zulia",
		MagnitudeRaw:      4,
		MagnitudeUnit:     "fatalities",
		MagnitudeNorm:     0.55,
		Direction:         DirectionNegative,
		ToneNorm:          0.8,
		NumSources:        3,
		SourceCredibility: 0.9,
		Confidence:        0.85,
		RawPayload:        `{"event_id_cnty":"` + sourceEventID + `"}`,
	}
}

func TestApplySchema(t *testing.T) {
	// WHAT: Schema creates all tables without error.
	// WHY: Everything downstream depends on it.
	s := openTestStore(t)
	for _, table := range []string{"raw_records", "events", "scored_events", "daily_summaries", "rolling_metrics", "alerts"} {
		var name string
		err := s.DB.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestRawRecords_InboxLifecycle(t *testing.T) {
	// WHAT: Insert → pending → done/failed transitions work and pending
	// drains oldest-first.
	// WHY: The inbox is the pipeline's only input edge.
	s := openTestStore(t)
	ctx := context.Background()

	old := &RawRecord{Source: SourceGDELT, PayloadJSON: `{"a":1}`, ReceivedAt: 1000}
	newer := &RawRecord{Source: SourceACLED, PayloadJSON: `{"b":2}`, ReceivedAt: 2000}
	if err := s.InsertRawRecord(ctx, newer); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.InsertRawRecord(ctx, old); err != nil {
		t.Fatalf("insert: %v", err)
	}

	pending, err := s.PendingRawRecords(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending: got %d, want 2", len(pending))
	}
	if pending[0].ID != old.ID {
		t.Errorf("pending order: oldest first expected")
	}

	if err := s.MarkRawRecordDone(ctx, old.ID); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if err := s.MarkRawRecordFailed(ctx, newer.ID, "missing field"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	pending, _ = s.PendingRawRecords(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("pending after marks: got %d, want 0", len(pending))
	}

	var status, errMsg string
	s.DB.QueryRow(`SELECT status, error FROM raw_records WHERE id = ?`, newer.ID).Scan(&status, &errMsg)
	if status != RawFailed || errMsg != "missing field" {
		t.Errorf("failed record: got status=%q error=%q", status, errMsg)
	}
}

func TestUpsertEvent_IdempotentKeepsID(t *testing.T) {
	// WHAT: Upserting the same (source, source_event_id) twice keeps one row
	// and the original event_id.
	// WHY: At-least-once delivery means re-ingestion must not duplicate
	// events or orphan scored rows.
	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	ev1 := testEvent("VEN1234", ts)
	if err := s.UpsertEvent(ctx, ev1); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	firstID := ev1.EventID

	ev2 := testEvent("VEN1234", ts)
	ev2.MagnitudeRaw = 6 // re-fetched record with updated fatality count
	if err := s.UpsertEvent(ctx, ev2); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if ev2.EventID != firstID {
		t.Errorf("event_id changed on upsert: %q -> %q", firstID, ev2.EventID)
	}

	var count int
	s.DB.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count)
	if count != 1 {
		t.Fatalf("events: got %d, want 1", count)
	}

	got, err := s.GetEvent(ctx, firstID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MagnitudeRaw != 6 {
		t.Errorf("magnitude_raw not updated: got %v", got.MagnitudeRaw)
	}
}

func TestUpsertScoredEvent_ReplaceOnRescore(t *testing.T) {
	// WHAT: Scoring the same event twice keeps one row with the latest values.
	// WHY: Re-scoring runs are idempotent by contract.
	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	ev := testEvent("VEN1", ts)
	if err := s.UpsertEvent(ctx, ev); err != nil {
		t.Fatalf("upsert event: %v", err)
	}

	se := &ScoredEvent{CanonicalEvent: *ev, Severity: SeverityP2, SeverityReason: "fatalities in [1,10)",
		RiskScore: 55, MagnitudeContrib: 0.5, ToneContrib: 0.8, VelocityContrib: 0.5,
		AttentionContrib: 0.3, PersistenceContrib: 0, ConfidenceMod: 0.9, BaseScore: 48}
	if err := s.UpsertScoredEvent(ctx, se); err != nil {
		t.Fatalf("first score: %v", err)
	}

	se.RiskScore = 60
	se.Severity = SeverityP1
	if err := s.UpsertScoredEvent(ctx, se); err != nil {
		t.Fatalf("rescore: %v", err)
	}

	day := ts.Format("2006-01-02")
	scored, err := s.ScoredEventsForDay(ctx, day)
	if err != nil {
		t.Fatalf("scored for day: %v", err)
	}
	if len(scored) != 1 {
		t.Fatalf("scored rows: got %d, want 1", len(scored))
	}
	if scored[0].RiskScore != 60 || scored[0].Severity != SeverityP1 {
		t.Errorf("rescore not applied: score=%v severity=%s", scored[0].RiskScore, scored[0].Severity)
	}
	if scored[0].Subcategory != "Battles" {
		t.Errorf("canonical fields missing in join: %+v", scored[0].CanonicalEvent)
	}
}

func TestListEvents_Filters(t *testing.T) {
	// WHAT: Severity, category and date filters narrow results; pagination
	// limits them.
	// WHY: This is the read contract the dashboard depends on.
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	for i, tc := range []struct {
		severity string
		category string
	}{
		{SeverityP1, CategoryConflict},
		{SeverityP3, CategoryConflict},
		{SeverityP3, CategoryEnergy},
	} {
		ev := testEvent("E"+string(rune('A'+i)), base.Add(time.Duration(i)*time.Hour))
		ev.Category = tc.category
		if err := s.UpsertEvent(ctx, ev); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		se := &ScoredEvent{CanonicalEvent: *ev, Severity: tc.severity, RiskScore: 50,
			ConfidenceMod: 1, BaseScore: 50, VelocityContrib: 0.5}
		if err := s.UpsertScoredEvent(ctx, se); err != nil {
			t.Fatalf("score: %v", err)
		}
	}

	got, err := s.ListEvents(ctx, EventFilter{Severity: SeverityP3})
	if err != nil {
		t.Fatalf("list by severity: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("P3 events: got %d, want 2", len(got))
	}

	got, _ = s.ListEvents(ctx, EventFilter{Severity: SeverityP3, Category: CategoryEnergy})
	if len(got) != 1 {
		t.Errorf("P3+ENERGY: got %d, want 1", len(got))
	}

	got, _ = s.ListEvents(ctx, EventFilter{From: base.Add(90 * time.Minute).UnixMilli()})
	if len(got) != 1 {
		t.Errorf("from filter: got %d, want 1", len(got))
	}

	got, _ = s.ListEvents(ctx, EventFilter{Limit: 2})
	if len(got) != 2 {
		t.Errorf("limit: got %d, want 2", len(got))
	}
}

func TestDailySummary_ReplaceSemantics(t *testing.T) {
	// WHAT: Writing the same date twice keeps one row with the second values.
	// WHY: Aggregation reruns replace, never accumulate.
	s := openTestStore(t)
	ctx := context.Background()

	first := &DailySummary{Date: "2025-06-10", RiskScore: 40,
		CategoryScores: map[string]float64{CategoryConflict: 55}, EventCount: 3}
	if err := s.ReplaceDailySummary(ctx, first); err != nil {
		t.Fatalf("first replace: %v", err)
	}

	second := &DailySummary{Date: "2025-06-10", RiskScore: 62, RiskTrend: TrendRising,
		CategoryScores: map[string]float64{CategoryConflict: 70}, EventCount: 5, P1Count: 1}
	if err := s.ReplaceDailySummary(ctx, second); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	var count int
	s.DB.QueryRow(`SELECT COUNT(*) FROM daily_summaries`).Scan(&count)
	if count != 1 {
		t.Fatalf("summary rows: got %d, want 1", count)
	}

	got, err := s.GetDailySummary(ctx, "2025-06-10")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RiskScore != 62 || got.P1Count != 1 {
		t.Errorf("replace not applied: %+v", got)
	}
	if got.CategoryScores[CategoryConflict] != 70 {
		t.Errorf("category scores: got %v", got.CategoryScores)
	}
}

func TestListDailySummaries_RangeAndLatest(t *testing.T) {
	// WHAT: Date-range listing is inclusive and ascending; latest picks the
	// newest date.
	// WHY: History endpoint semantics.
	s := openTestStore(t)
	ctx := context.Background()

	for _, d := range []string{"2025-06-08", "2025-06-09", "2025-06-10"} {
		s.ReplaceDailySummary(ctx, &DailySummary{Date: d, RiskScore: 10})
	}

	got, err := s.ListDailySummaries(ctx, "2025-06-09", "2025-06-10")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Date != "2025-06-09" {
		t.Errorf("range listing wrong: %+v", got)
	}

	latest, err := s.LatestDailySummary(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Date != "2025-06-10" {
		t.Errorf("latest: got %s", latest.Date)
	}
}

func TestRollingMetrics_ReplaceAndGet(t *testing.T) {
	// WHAT: (date, window) rows replace and round-trip category means.
	// WHY: Baselines are recomputed daily; stale rows must be overwritten.
	s := openTestStore(t)
	ctx := context.Background()

	rm := &RollingMetrics{Date: "2025-06-10", WindowDays: 7, MeanScore: 42, StddevScore: 5,
		MeanEventCount: 12, CategoryMeans: map[string]float64{CategoryPolitical: 38}}
	if err := s.ReplaceRollingMetrics(ctx, rm); err != nil {
		t.Fatalf("replace: %v", err)
	}
	rm.MeanScore = 45
	if err := s.ReplaceRollingMetrics(ctx, rm); err != nil {
		t.Fatalf("re-replace: %v", err)
	}

	got, err := s.GetRollingMetrics(ctx, "2025-06-10", 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MeanScore != 45 {
		t.Errorf("mean_score: got %v, want 45", got.MeanScore)
	}
	if got.CategoryMeans[CategoryPolitical] != 38 {
		t.Errorf("category_means: got %v", got.CategoryMeans)
	}

	missing, err := s.GetRollingMetrics(ctx, "2025-06-10", 30)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for absent window, got %+v", missing)
	}
}

func TestCategoryMagnitudeStats_WindowBounds(t *testing.T) {
	// WHAT: Only events inside the trailing window contribute to baselines.
	// WHY: Velocity z-scores must not leak future or ancient data.
	s := openTestStore(t)
	ctx := context.Background()
	asOf := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	inside := testEvent("IN", asOf.AddDate(0, 0, -3))
	outside := testEvent("OUT", asOf.AddDate(0, 0, -40))
	future := testEvent("FUT", asOf.Add(time.Hour))
	for _, ev := range []*CanonicalEvent{inside, outside, future} {
		if err := s.UpsertEvent(ctx, ev); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	stats, err := s.CategoryMagnitudeStats(ctx, asOf, 30)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	st := stats[CategoryConflict]
	if st.Count != 1 {
		t.Errorf("window count: got %d, want 1", st.Count)
	}
}

func TestStats_Counters(t *testing.T) {
	// WHAT: Stats counts each table.
	// WHY: The stats read shape mirrors the store.
	s := openTestStore(t)
	ctx := context.Background()

	s.InsertRawRecord(ctx, &RawRecord{Source: SourceGDELT, PayloadJSON: "{}"})
	ev := testEvent("S1", time.Now())
	s.UpsertEvent(ctx, ev)

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.RawPending != 1 || stats.Events != 1 || stats.ScoredEvents != 0 {
		t.Errorf("counters: %+v", stats)
	}
}

func TestDayBounds(t *testing.T) {
	// WHAT: DayBounds spans exactly one UTC day; DateOf inverts it.
	// WHY: Day partitioning drives every aggregate.
	start, end, err := DayBounds("2025-06-10")
	if err != nil {
		t.Fatalf("day bounds: %v", err)
	}
	if end-start != 24*time.Hour.Milliseconds() {
		t.Errorf("span: got %d ms", end-start)
	}
	if DateOf(start) != "2025-06-10" || DateOf(end-1) != "2025-06-10" {
		t.Errorf("DateOf round trip failed")
	}
	if DateOf(end) != "2025-06-11" {
		t.Errorf("end bound should be next day")
	}
	if _, _, err := DayBounds("not-a-date"); err == nil {
		t.Error("expected error for malformed date")
	}
}
