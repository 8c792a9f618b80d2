package score

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/vigialab/vigia/riskpipe/internal/baseline"
	"github.com/vigialab/vigia/riskpipe/internal/severity"
	"github.com/vigialab/vigia/riskpipe/internal/store"
)

var scoredAt = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func snapshotWith(t *testing.T, category string, magnitudes []float64) *baseline.Snapshot {
	t.Helper()
	mean, stddev := baseline.MeanStddev(magnitudes)
	return baseline.NewSnapshot(scoredAt, baseline.DefaultWindowDays, map[string]baseline.CategoryBaseline{
		category: {Count: len(magnitudes), Mean: mean, Stddev: stddev},
	})
}

func neutralExternals() Externals {
	return Externals{PersistenceDays: 0, CorroborationScore: -1}
}

func baseEvent() *store.CanonicalEvent {
	return &store.CanonicalEvent{
		Source:            store.SourceACLED,
		SourceEventID:     "VEN1",
		Category:          store.CategoryConflict,
		EventType:         "BATTLES",
		Direction:         store.DirectionNegative,
		MagnitudeNorm:     0.6,
		ToneNorm:          0.9,
		NumSources:        3,
		SourceCredibility: 0.9,
		Confidence:        0.8,
	}
}

func TestWeights_Validate(t *testing.T) {
	// WHAT: The default weights sum to 1; anything else is rejected.
	// WHY: A silently skewed weight set would corrupt every score.
	if err := DefaultWeights.Validate(); err != nil {
		t.Fatalf("default weights: %v", err)
	}
	bad := DefaultWeights
	bad.Magnitude = 0.5
	if err := bad.Validate(); err == nil {
		t.Fatal("weights summing to 1.2 should fail validation")
	}
}

func TestEvent_ComponentsAndDecomposition(t *testing.T) {
	// WHAT: The stored score decomposes exactly into its parts:
	// base = 100·Σ(wᵢcᵢ), risk = clamp(base·mod) before floors.
	ev := baseEvent()
	cls := severity.Result{Severity: store.SeverityP3, Reason: "moderate adverse signal"}
	se := Event(ev, cls, nil, neutralExternals(), DefaultWeights, scoredAt)

	if se.MagnitudeContrib != 0.6 || se.ToneContrib != 0.9 {
		t.Errorf("magnitude/tone contribs: %v/%v", se.MagnitudeContrib, se.ToneContrib)
	}
	// No snapshot → cold-start velocity.
	if se.VelocityContrib != 0.5 {
		t.Errorf("velocity = %v, want 0.5 cold start", se.VelocityContrib)
	}
	if math.Abs(se.AttentionContrib-0.3) > 1e-9 {
		t.Errorf("attention = %v, want 0.3 (3 of 10 sources)", se.AttentionContrib)
	}
	if se.PersistenceContrib != 0 {
		t.Errorf("persistence = %v, want 0", se.PersistenceContrib)
	}

	wantBase := 100 * (0.30*0.6 + 0.20*0.9 + 0.20*0.5 + 0.15*0.3 + 0.15*0)
	if math.Abs(se.BaseScore-wantBase) > 1e-9 {
		t.Errorf("base = %v, want %v", se.BaseScore, wantBase)
	}
	// mod = 0.5 + 0.5·(0.4·0.9 + 0.3·(3/5) + 0.3·0.5)
	wantMod := 0.5 + 0.5*(0.4*0.9+0.3*0.6+0.3*0.5)
	if math.Abs(se.ConfidenceMod-wantMod) > 1e-9 {
		t.Errorf("mod = %v, want %v", se.ConfidenceMod, wantMod)
	}
	if math.Abs(se.RiskScore-wantBase*wantMod) > 1e-9 {
		t.Errorf("risk = %v, want %v", se.RiskScore, wantBase*wantMod)
	}
	if se.Severity != store.SeverityP3 || se.SeverityReason == "" {
		t.Errorf("severity carried wrong: %s %q", se.Severity, se.SeverityReason)
	}
}

func TestEvent_SeverityFloors(t *testing.T) {
	// WHAT: A P1 event never scores below 70 and a P2 never below 50,
	// whatever its components say.
	ev := baseEvent()
	ev.MagnitudeNorm = 0.05
	ev.ToneNorm = 0.1
	ev.NumSources = 1
	ev.SourceCredibility = 0.5

	p1 := Event(ev, severity.Result{Severity: store.SeverityP1, Auto: true}, nil, neutralExternals(), DefaultWeights, scoredAt)
	if p1.RiskScore < 70 {
		t.Errorf("P1 floor violated: %v", p1.RiskScore)
	}
	p2 := Event(ev, severity.Result{Severity: store.SeverityP2}, nil, neutralExternals(), DefaultWeights, scoredAt)
	if p2.RiskScore < 50 {
		t.Errorf("P2 floor violated: %v", p2.RiskScore)
	}
	p4 := Event(ev, severity.Result{Severity: store.SeverityP4}, nil, neutralExternals(), DefaultWeights, scoredAt)
	if p4.RiskScore >= 50 {
		t.Errorf("P4 should not be floored: %v", p4.RiskScore)
	}
}

func TestEvent_ConfidenceModifierBounds(t *testing.T) {
	// WHAT: The modifier stays inside [0.5, 1.0] at both provenance
	// extremes.
	weak := baseEvent()
	weak.NumSources = 1
	weak.SourceCredibility = 0
	se := Event(weak, severity.Result{Severity: store.SeverityP4}, nil, Externals{CorroborationScore: 0}, DefaultWeights, scoredAt)
	if se.ConfidenceMod < 0.5 || se.ConfidenceMod > 1.0 {
		t.Errorf("weak mod = %v out of [0.5,1]", se.ConfidenceMod)
	}

	strong := baseEvent()
	strong.NumSources = 10
	strong.SourceCredibility = 1
	se = Event(strong, severity.Result{Severity: store.SeverityP4}, nil, Externals{CorroborationScore: 1}, DefaultWeights, scoredAt)
	if math.Abs(se.ConfidenceMod-1.0) > 1e-9 {
		t.Errorf("strong mod = %v, want 1.0", se.ConfidenceMod)
	}
}

func TestEvent_VelocityAgainstBaseline(t *testing.T) {
	// WHAT: Magnitude above the category baseline pushes velocity above
	// 0.5, below pushes it under; a zero-variance baseline is neutral.
	snap := snapshotWith(t, store.CategoryConflict, []float64{0.2, 0.4, 0.6})

	hot := baseEvent()
	hot.MagnitudeNorm = 0.9
	se := Event(hot, severity.Result{Severity: store.SeverityP4}, snap, neutralExternals(), DefaultWeights, scoredAt)
	if se.VelocityContrib <= 0.5 {
		t.Errorf("above-baseline velocity = %v, want > 0.5", se.VelocityContrib)
	}

	cold := baseEvent()
	cold.MagnitudeNorm = 0.1
	se = Event(cold, severity.Result{Severity: store.SeverityP4}, snap, neutralExternals(), DefaultWeights, scoredAt)
	if se.VelocityContrib >= 0.5 {
		t.Errorf("below-baseline velocity = %v, want < 0.5", se.VelocityContrib)
	}

	flat := snapshotWith(t, store.CategoryConflict, []float64{0.4, 0.4, 0.4})
	se = Event(hot, severity.Result{Severity: store.SeverityP4}, flat, neutralExternals(), DefaultWeights, scoredAt)
	if se.VelocityContrib != 0.5 {
		t.Errorf("zero-variance velocity = %v, want 0.5", se.VelocityContrib)
	}
}

func TestEvent_Deterministic(t *testing.T) {
	// WHAT: Re-scoring the same event against the same snapshot yields an
	// identical result.
	// WHY: Rescoring happens on replays and rebuilds; drift would make
	// summaries unreproducible.
	ev := baseEvent()
	cls := severity.Result{Severity: store.SeverityP2, Reason: "fatalities"}
	a := Event(ev, cls, nil, neutralExternals(), DefaultWeights, scoredAt)
	b := Event(ev, cls, nil, neutralExternals(), DefaultWeights, scoredAt)
	if !reflect.DeepEqual(a, b) {
		t.Error("scoring not deterministic")
	}
}

func TestEvent_PersistenceSaturates(t *testing.T) {
	ev := baseEvent()
	cls := severity.Result{Severity: store.SeverityP4}
	week := Event(ev, cls, nil, Externals{PersistenceDays: 7, CorroborationScore: -1}, DefaultWeights, scoredAt)
	month := Event(ev, cls, nil, Externals{PersistenceDays: 30, CorroborationScore: -1}, DefaultWeights, scoredAt)
	if week.PersistenceContrib != 1 || month.PersistenceContrib != 1 {
		t.Errorf("persistence: week=%v month=%v, want both 1", week.PersistenceContrib, month.PersistenceContrib)
	}
}
