// Package alert evaluates the day's aggregate state against alerting
// predicates and emits deduplicated alerts through the store's cooldown
// gate.
package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vigialab/vigia/riskpipe/internal/store"
)

// DefaultThresholds are the composite levels watched for upward
// crossings, ascending.
var DefaultThresholds = []float64{70, 80, 90}

// Config tunes the alerting predicates.
type Config struct {
	Thresholds    []float64     `yaml:"thresholds"`
	DeltaMin      float64       `yaml:"delta_min"`      // 24h composite jump
	BreakoutLevel float64       `yaml:"breakout_level"` // category crossing
	VolumeFactor  float64       `yaml:"volume_factor"`  // × 7-day mean
	Cooldowns     CooldownsConf `yaml:"cooldowns"`
}

// CooldownsConf is the per-alert-type suppression window.
type CooldownsConf struct {
	Threshold time.Duration `yaml:"threshold"`
	Velocity  time.Duration `yaml:"velocity"`
	Breakout  time.Duration `yaml:"breakout"`
	Critical  time.Duration `yaml:"critical"`
	Volume    time.Duration `yaml:"volume"`
}

func (c *Config) defaults() {
	if len(c.Thresholds) == 0 {
		c.Thresholds = append([]float64(nil), DefaultThresholds...)
	}
	if c.DeltaMin == 0 {
		c.DeltaMin = 15
	}
	if c.BreakoutLevel == 0 {
		c.BreakoutLevel = 70
	}
	if c.VolumeFactor == 0 {
		c.VolumeFactor = 3
	}
	if c.Cooldowns.Critical == 0 {
		c.Cooldowns.Critical = time.Hour
	}
	if c.Cooldowns.Velocity == 0 {
		c.Cooldowns.Velocity = 4 * time.Hour
	}
	if c.Cooldowns.Threshold == 0 {
		c.Cooldowns.Threshold = 6 * time.Hour
	}
	if c.Cooldowns.Breakout == 0 {
		c.Cooldowns.Breakout = 6 * time.Hour
	}
	if c.Cooldowns.Volume == 0 {
		c.Cooldowns.Volume = 6 * time.Hour
	}
}

// Engine runs the predicates. It holds no per-run state: dedup lives in
// the store, so overlapping runs and restarts cannot double-emit.
type Engine struct {
	store  *store.Store
	cfg    Config
	logger *slog.Logger
}

// NewEngine builds an engine with config gaps filled by defaults.
func NewEngine(st *store.Store, cfg Config, logger *slog.Logger) *Engine {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: st, cfg: cfg, logger: logger.With("component", "alerts")}
}

// Input is the aggregate state one evaluation runs against.
type Input struct {
	Current  *store.DailySummary  // today, required
	Previous *store.DailySummary  // yesterday, nil on day one
	Events   []*store.ScoredEvent // today's scored events
	Rolling7 *store.RollingMetrics
	Now      time.Time
}

// Evaluate runs every predicate and returns the alerts that actually
// fired. Suppressed duplicates are logged at debug and skipped; a store
// failure aborts the evaluation.
func (e *Engine) Evaluate(ctx context.Context, in Input) ([]*store.Alert, error) {
	if in.Current == nil {
		return nil, nil
	}
	var emitted []*store.Alert

	emit := func(a *store.Alert, cooldown time.Duration) error {
		a.Timestamp = in.Now.UnixMilli()
		err := e.store.CreateAlert(ctx, a, cooldown)
		if errors.Is(err, store.ErrAlertSuppressed) {
			e.logger.Debug("alert suppressed",
				"type", a.AlertType, "discriminator", a.Discriminator)
			return nil
		}
		if err != nil {
			return err
		}
		e.logger.Info("alert emitted",
			"type", a.AlertType, "discriminator", a.Discriminator, "severity", a.Severity)
		emitted = append(emitted, a)
		return nil
	}

	for _, a := range e.thresholdBreaches(in) {
		if err := emit(a, e.cfg.Cooldowns.Threshold); err != nil {
			return emitted, err
		}
	}
	if a := e.velocitySpike(in); a != nil {
		if err := emit(a, e.cfg.Cooldowns.Velocity); err != nil {
			return emitted, err
		}
	}
	for _, a := range e.categoryBreakouts(in) {
		if err := emit(a, e.cfg.Cooldowns.Breakout); err != nil {
			return emitted, err
		}
	}
	for _, a := range e.criticalEvents(in) {
		if err := emit(a, e.cfg.Cooldowns.Critical); err != nil {
			return emitted, err
		}
	}
	if a := e.volumeAnomaly(in); a != nil {
		if err := emit(a, e.cfg.Cooldowns.Volume); err != nil {
			return emitted, err
		}
	}
	return emitted, nil
}

// thresholdBreaches fires when the composite crosses a watched level
// upward. Sitting above a level does not re-fire; the crossing does.
func (e *Engine) thresholdBreaches(in Input) []*store.Alert {
	prev := 0.0
	if in.Previous != nil {
		prev = in.Previous.RiskScore
	}
	curr := in.Current.RiskScore

	var out []*store.Alert
	for _, threshold := range e.cfg.Thresholds {
		if prev >= threshold || curr < threshold {
			continue
		}
		out = append(out, &store.Alert{
			AlertType:     store.AlertThresholdBreach,
			Discriminator: fmt.Sprintf("threshold_%.0f", threshold),
			Severity:      thresholdSeverity(threshold),
			Title:         fmt.Sprintf("Composite risk crossed %.0f", threshold),
			Message: fmt.Sprintf("Composite risk score rose from %.1f to %.1f, crossing %.0f.",
				prev, curr, threshold),
			DataJSON: mustJSON(map[string]any{
				"threshold": threshold, "previous": prev, "current": curr, "date": in.Current.Date,
			}),
		})
	}
	return out
}

func thresholdSeverity(threshold float64) string {
	switch {
	case threshold >= 90:
		return "CRITICAL"
	case threshold >= 80:
		return "SEVERE"
	default:
		return "HIGH"
	}
}

// velocitySpike fires on a large 24-hour composite jump regardless of
// absolute level.
func (e *Engine) velocitySpike(in Input) *store.Alert {
	if in.Previous == nil {
		return nil
	}
	delta := in.Current.RiskScore - in.Previous.RiskScore
	if delta < e.cfg.DeltaMin {
		return nil
	}
	return &store.Alert{
		AlertType:     store.AlertVelocitySpike,
		Discriminator: "composite_24h",
		Severity:      "HIGH",
		Title:         "Composite risk spiking",
		Message: fmt.Sprintf("Composite risk score jumped %.1f points in 24h (%.1f → %.1f).",
			delta, in.Previous.RiskScore, in.Current.RiskScore),
		DataJSON: mustJSON(map[string]any{
			"delta": delta, "previous": in.Previous.RiskScore,
			"current": in.Current.RiskScore, "date": in.Current.Date,
		}),
	}
}

// categoryBreakouts fires when a category sub-score crosses the breakout
// level upward.
func (e *Engine) categoryBreakouts(in Input) []*store.Alert {
	var out []*store.Alert
	for _, cat := range store.Categories {
		curr := in.Current.CategoryScores[cat]
		prev := 0.0
		if in.Previous != nil {
			prev = in.Previous.CategoryScores[cat]
		}
		if prev >= e.cfg.BreakoutLevel || curr < e.cfg.BreakoutLevel {
			continue
		}
		out = append(out, &store.Alert{
			AlertType:     store.AlertCategoryBreakout,
			Discriminator: cat,
			Severity:      "HIGH",
			Title:         fmt.Sprintf("%s risk crossed %.0f", cat, e.cfg.BreakoutLevel),
			Message: fmt.Sprintf("%s sub-score rose from %.1f to %.1f.",
				cat, prev, curr),
			DataJSON: mustJSON(map[string]any{
				"category": cat, "previous": prev, "current": curr, "date": in.Current.Date,
			}),
		})
	}
	return out
}

// criticalEvents fires one alert per P1 event, keyed by event id so the
// same event never alerts twice however often the pipeline reruns.
func (e *Engine) criticalEvents(in Input) []*store.Alert {
	var out []*store.Alert
	for _, se := range in.Events {
		if se.Severity != store.SeverityP1 {
			continue
		}
		out = append(out, &store.Alert{
			AlertType:     store.AlertCriticalEvent,
			Discriminator: se.EventID,
			Severity:      "CRITICAL",
			Title:         fmt.Sprintf("P1 event: %s", se.EventType),
			Message: fmt.Sprintf("%s event from %s scored %.1f. %s.",
				se.Category, se.Source, se.RiskScore, se.SeverityReason),
			DataJSON: mustJSON(map[string]any{
				"event_id": se.EventID, "source": se.Source, "category": se.Category,
				"risk_score": se.RiskScore, "reason": se.SeverityReason, "auto": se.SeverityAuto,
			}),
		})
	}
	return out
}

// volumeAnomaly fires when today's event count runs well above the
// 7-day mean. Needs an established baseline: no history, no anomaly.
func (e *Engine) volumeAnomaly(in Input) *store.Alert {
	if in.Rolling7 == nil || in.Rolling7.MeanEventCount <= 0 {
		return nil
	}
	mean := in.Rolling7.MeanEventCount
	count := float64(in.Current.EventCount)
	if count < e.cfg.VolumeFactor*mean {
		return nil
	}
	return &store.Alert{
		AlertType:     store.AlertVolumeAnomaly,
		Discriminator: "event_volume",
		Severity:      "MEDIUM",
		Title:         "Event volume anomaly",
		Message: fmt.Sprintf("%d events today against a 7-day mean of %.1f (%.1fx).",
			in.Current.EventCount, mean, count/mean),
		DataJSON: mustJSON(map[string]any{
			"count": in.Current.EventCount, "mean_7d": mean, "date": in.Current.Date,
		}),
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
