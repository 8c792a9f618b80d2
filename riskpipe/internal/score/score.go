// Package score turns a classified canonical event into a decomposed
// risk score on [0,100]. Scoring is deterministic: the same event scored
// against the same baseline snapshot always produces the same result.
package score

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vigialab/vigia/riskpipe/internal/baseline"
	"github.com/vigialab/vigia/riskpipe/internal/normalize"
	"github.com/vigialab/vigia/riskpipe/internal/severity"
	"github.com/vigialab/vigia/riskpipe/internal/store"
)

// ErrInvalidWeights marks a weight set that does not sum to 1.
var ErrInvalidWeights = errors.New("score: component weights must sum to 1.0")

// Weights are the component weights of the base score.
type Weights struct {
	Magnitude   float64 `yaml:"magnitude"`
	Tone        float64 `yaml:"tone"`
	Velocity    float64 `yaml:"velocity"`
	Attention   float64 `yaml:"attention"`
	Persistence float64 `yaml:"persistence"`
}

// DefaultWeights is the production weighting.
var DefaultWeights = Weights{
	Magnitude:   0.30,
	Tone:        0.20,
	Velocity:    0.20,
	Attention:   0.15,
	Persistence: 0.15,
}

// Validate rejects weight sets that do not sum to 1. Checked once at
// startup; a bad configuration is fatal, not a per-event warning.
func (w Weights) Validate() error {
	sum := w.Magnitude + w.Tone + w.Velocity + w.Attention + w.Persistence
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("%w: got %.6f", ErrInvalidWeights, sum)
	}
	return nil
}

// Externals are per-event inputs produced outside normalization:
// persistence from signal history, corroboration from cross-source
// enrichment. A CorroborationScore < 0 means "unknown" and scores as the
// neutral 0.5.
type Externals struct {
	PersistenceDays    int
	CorroborationScore float64
}

// Severity floors. A P1 event never scores below 70, a P2 never below
// 50, so classification and scoring cannot disagree about urgency.
const (
	floorP1 = 70
	floorP2 = 50
)

// Event scores one classified event against the baseline snapshot.
func Event(ev *store.CanonicalEvent, cls severity.Result, snap *baseline.Snapshot, ext Externals, w Weights, scoredAt time.Time) *store.ScoredEvent {
	se := &store.ScoredEvent{
		CanonicalEvent: *ev,
		Severity:       cls.Severity,
		SeverityReason: cls.Reason,
		SeverityAuto:   cls.Auto,
		ScoredAt:       scoredAt.UnixMilli(),
	}

	se.MagnitudeContrib = normalize.Clamp01(ev.MagnitudeNorm)
	se.ToneContrib = normalize.Clamp01(ev.ToneNorm)
	se.VelocityContrib = velocity(ev, snap)
	se.AttentionContrib = normalize.SaturatingRatio(float64(ev.NumSources), 10)
	se.PersistenceContrib = normalize.SaturatingRatio(float64(ext.PersistenceDays), 7)

	se.BaseScore = 100 * (w.Magnitude*se.MagnitudeContrib +
		w.Tone*se.ToneContrib +
		w.Velocity*se.VelocityContrib +
		w.Attention*se.AttentionContrib +
		w.Persistence*se.PersistenceContrib)

	se.ConfidenceMod = confidenceModifier(ev, ext)
	se.RiskScore = clamp100(se.BaseScore * se.ConfidenceMod)

	switch cls.Severity {
	case store.SeverityP1:
		se.RiskScore = math.Max(se.RiskScore, floorP1)
	case store.SeverityP2:
		se.RiskScore = math.Max(se.RiskScore, floorP2)
	}
	return se
}

// velocity measures how unusual this event's magnitude is against the
// category's trailing distribution, squashed onto [0,1]. Cold starts and
// zero-variance baselines score the neutral 0.5.
func velocity(ev *store.CanonicalEvent, snap *baseline.Snapshot) float64 {
	b, ok := snap.Category(ev.Category)
	if !ok || b.Stddev == 0 {
		return 0.5
	}
	z := (ev.MagnitudeNorm - b.Mean) / b.Stddev
	return normalize.Sigmoid(z)
}

// confidenceModifier maps credibility, source diversity and
// corroboration onto [0.5, 1.0]: weak provenance halves a score but
// never erases it.
func confidenceModifier(ev *store.CanonicalEvent, ext Externals) float64 {
	corroboration := ext.CorroborationScore
	if corroboration < 0 {
		corroboration = 0.5
	}
	diversity := normalize.SaturatingRatio(float64(ev.NumSources), 5)
	quality := normalize.Clamp01(0.4*ev.SourceCredibility + 0.3*diversity + 0.3*corroboration)
	return 0.5 + 0.5*quality
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
