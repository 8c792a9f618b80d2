package riskpipe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/vigialab/vigia/idgen"
	"github.com/vigialab/vigia/observability"
	"github.com/vigialab/vigia/riskpipe/internal/aggregate"
	"github.com/vigialab/vigia/riskpipe/internal/alert"
	"github.com/vigialab/vigia/riskpipe/internal/api"
	"github.com/vigialab/vigia/riskpipe/internal/baseline"
	"github.com/vigialab/vigia/riskpipe/internal/normalize"
	"github.com/vigialab/vigia/riskpipe/internal/score"
	"github.com/vigialab/vigia/riskpipe/internal/severity"
	"github.com/vigialab/vigia/riskpipe/internal/store"
)

// Enrichment supplies the per-event signals normalization cannot derive
// from a single payload: how many consecutive days the signal has
// persisted, and how strongly other sources corroborate it (negative
// means unknown).
type Enrichment interface {
	Enrich(ctx context.Context, ev *CanonicalEvent) (persistenceDays int, corroboration float64, err error)
}

type noopEnrichment struct{}

func (noopEnrichment) Enrich(context.Context, *CanonicalEvent) (int, float64, error) {
	return 0, -1, nil
}

// Service is the pipeline orchestrator.
type Service struct {
	store       *store.Store
	normalizers map[string]normalize.Normalizer
	engine      *alert.Engine
	enrich      Enrichment
	logger      *slog.Logger
	config      *Config
	metrics     *observability.MetricsManager
	now         func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithEnrichment plugs in a cross-source enrichment provider.
func WithEnrichment(e Enrichment) ServiceOption {
	return func(s *Service) { s.enrich = e }
}

// WithMetrics wires cycle counters into a metrics manager.
func WithMetrics(mm *observability.MetricsManager) ServiceOption {
	return func(s *Service) { s.metrics = mm }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides event and alert id generation.
func WithIDGenerator(gen idgen.Generator) ServiceOption {
	return func(s *Service) { s.store.WithIDGenerator(gen) }
}

// New builds a Service over an open database, applying the schema and
// validating configuration. Weight errors are fatal here, never at
// scoring time.
func New(db *sql.DB, cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	if err := cfg.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := aggregate.ValidateCategoryWeights(aggregate.CategoryWeights); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := store.ApplySchema(db); err != nil {
		return nil, fmt.Errorf("riskpipe: apply schema: %w", err)
	}

	svc := &Service{
		store:       store.NewStore(db),
		normalizers: normalize.Registry(cfg.CountryCode),
		enrich:      noopEnrichment{},
		logger:      logger.With("component", "riskpipe"),
		config:      cfg,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.engine = alert.NewEngine(svc.store, cfg.Alerts, logger)
	return svc, nil
}

// CycleResult summarizes one pipeline cycle.
type CycleResult struct {
	Processed int      // raw records drained
	Failed    int      // records parked as failed
	Scored    int      // events scored
	Dates     []string // affected dates, ascending
	Alerts    int      // alerts emitted
}

// RunCycle drains the raw inbox once: normalize, score, re-aggregate
// affected days and evaluate alerts. Safe to call concurrently with
// itself; every write but alert emission is idempotent and alerts
// deduplicate durably.
func (s *Service) RunCycle(ctx context.Context) (*CycleResult, error) {
	started := s.now()
	res := &CycleResult{}

	records, err := s.store.PendingRawRecords(ctx, s.config.Pipeline.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("riskpipe: pending records: %w", err)
	}
	if len(records) == 0 {
		return res, nil
	}

	// One snapshot per cycle: events in a batch are scored against the
	// same baselines, so batch order cannot change their velocity.
	snap, err := baseline.Build(ctx, s.store, started)
	if err != nil {
		return nil, fmt.Errorf("riskpipe: build baseline: %w", err)
	}

	dates := map[string]bool{}
	for _, rec := range records {
		date, err := s.processRecord(ctx, rec, snap)
		if err != nil {
			res.Failed++
			s.logger.Warn("record failed",
				"raw_id", rec.ID, "source", rec.Source, "error", err)
			if markErr := s.store.MarkRawRecordFailed(ctx, rec.ID, err.Error()); markErr != nil {
				return res, fmt.Errorf("riskpipe: mark failed: %w", markErr)
			}
			continue
		}
		if err := s.store.MarkRawRecordDone(ctx, rec.ID); err != nil {
			return res, fmt.Errorf("riskpipe: mark done: %w", err)
		}
		res.Processed++
		res.Scored++
		dates[date] = true
	}

	for date := range dates {
		res.Dates = append(res.Dates, date)
	}
	sort.Strings(res.Dates)

	var latest *store.DailySummary
	for _, date := range res.Dates {
		latest, err = s.recomputeDay(ctx, date)
		if err != nil {
			return res, err
		}
	}

	if latest != nil {
		emitted, err := s.evaluateAlerts(ctx, latest)
		if err != nil {
			return res, err
		}
		res.Alerts = emitted
	}

	s.recordCycle(res, s.now().Sub(started))
	s.logger.Info("cycle complete",
		"processed", res.Processed, "failed", res.Failed,
		"dates", len(res.Dates), "alerts", res.Alerts,
		"elapsed", s.now().Sub(started))
	return res, nil
}

// processRecord normalizes, classifies and scores one raw record,
// returning the UTC date it lands on.
func (s *Service) processRecord(ctx context.Context, rec *store.RawRecord, snap *baseline.Snapshot) (string, error) {
	norm, ok := s.normalizers[rec.Source]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSource, rec.Source)
	}
	ev, err := norm.Normalize([]byte(rec.PayloadJSON), time.UnixMilli(rec.ReceivedAt).UTC())
	if err != nil {
		return "", err
	}
	if err := s.store.UpsertEvent(ctx, ev); err != nil {
		return "", fmt.Errorf("upsert event: %w", err)
	}

	cls := severity.Classify(ev)
	persistence, corroboration, err := s.enrich.Enrich(ctx, ev)
	if err != nil {
		// Enrichment is advisory: degrade to neutral values rather than
		// parking the record.
		s.logger.Warn("enrichment failed", "event_id", ev.EventID, "error", err)
		persistence, corroboration = 0, -1
	}
	se := score.Event(ev, cls, snap, score.Externals{
		PersistenceDays:    persistence,
		CorroborationScore: corroboration,
	}, s.config.Weights, s.now())

	if err := s.store.UpsertScoredEvent(ctx, se); err != nil {
		return "", fmt.Errorf("upsert scored event: %w", err)
	}
	return store.DateOf(ev.EventTimestamp), nil
}

// recomputeDay rebuilds one day's summary and rolling metrics from its
// scored events. Replace semantics throughout: recomputing an already
// computed day converges to the same rows.
func (s *Service) recomputeDay(ctx context.Context, date string) (*store.DailySummary, error) {
	scored, err := s.store.ScoredEventsForDay(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("riskpipe: events for %s: %w", date, err)
	}

	catScores := aggregate.CategoryScores(scored)
	p1, p2, p3, p4 := aggregate.SeverityCounts(scored)
	composite := aggregate.Composite(catScores, aggregate.CategoryWeights, p1)

	prev, err := s.store.GetDailySummary(ctx, prevDate(date))
	if err != nil {
		return nil, fmt.Errorf("riskpipe: previous summary: %w", err)
	}
	rm7, err := s.store.GetRollingMetrics(ctx, prevDate(date), 7)
	if err != nil {
		return nil, err
	}
	rm30, err := s.store.GetRollingMetrics(ctx, prevDate(date), 30)
	if err != nil {
		return nil, err
	}
	trend := aggregate.ComputeTrend(composite, rm7, rm30)

	summary := &store.DailySummary{
		Date:           date,
		RiskScore:      composite,
		RiskTrend:      trend.Label,
		CategoryScores: catScores,
		P1Count:        p1, P2Count: p2, P3Count: p3, P4Count: p4,
		EventCount:  len(scored),
		Velocity7d:  trend.Velocity7d,
		Velocity30d: trend.Velocity30d,
		ComputedAt:  s.now().UnixMilli(),
	}
	if prev != nil {
		summary.RiskScoreChange = composite - prev.RiskScore
	}

	if err := s.store.ReplaceDailySummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("riskpipe: replace summary: %w", err)
	}
	if err := baseline.ComputeRollingMetrics(ctx, s.store, date); err != nil {
		return nil, fmt.Errorf("riskpipe: rolling metrics: %w", err)
	}
	return summary, nil
}

// evaluateAlerts runs the alert predicates against the most recently
// recomputed day.
func (s *Service) evaluateAlerts(ctx context.Context, curr *store.DailySummary) (int, error) {
	prev, err := s.store.GetDailySummary(ctx, prevDate(curr.Date))
	if err != nil {
		return 0, err
	}
	events, err := s.store.ScoredEventsForDay(ctx, curr.Date)
	if err != nil {
		return 0, err
	}
	// Yesterday's rolling window: today's count must not dilute its own
	// anomaly baseline.
	rm7, err := s.store.GetRollingMetrics(ctx, prevDate(curr.Date), 7)
	if err != nil {
		return 0, err
	}

	emitted, err := s.engine.Evaluate(ctx, alert.Input{
		Current:  curr,
		Previous: prev,
		Events:   events,
		Rolling7: rm7,
		Now:      s.now(),
	})
	if err != nil {
		return 0, fmt.Errorf("riskpipe: evaluate alerts: %w", err)
	}
	return len(emitted), nil
}

// Start runs cycles on the configured interval until ctx is cancelled.
// One immediate cycle runs first so a restart never waits a full
// interval to drain the backlog.
func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.config.Pipeline.Interval)
	go func() {
		defer ticker.Stop()
		s.runCycleLogged(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runCycleLogged(ctx)
			}
		}
	}()
}

func (s *Service) runCycleLogged(ctx context.Context) {
	if _, err := s.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("cycle failed", "error", err)
	}
}

// Rebuild recomputes summaries and rolling metrics for every date in
// the inclusive range from existing scored events. Events are not
// rescored; this repairs aggregates after backfills or weight-neutral
// fixes.
func (s *Service) Rebuild(ctx context.Context, from, to string) error {
	start, err := time.ParseInLocation("2006-01-02", from, time.UTC)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDateRange, from)
	}
	end, err := time.ParseInLocation("2006-01-02", to, time.UTC)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDateRange, to)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: %s after %s", ErrInvalidDateRange, from, to)
	}

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		date := day.Format("2006-01-02")
		if _, err := s.recomputeDay(ctx, date); err != nil {
			return err
		}
		s.logger.Debug("rebuilt day", "date", date)
	}
	s.logger.Info("rebuild complete", "from", from, "to", to)
	return nil
}

// IngestRaw drops one source payload into the raw inbox for the next
// cycle. The (source, sourceEventID) pair is the replay key.
func (s *Service) IngestRaw(ctx context.Context, source, sourceEventID string, payload []byte) error {
	if _, ok := s.normalizers[source]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	return s.store.InsertRawRecord(ctx, &store.RawRecord{
		Source:        source,
		SourceEventID: sourceEventID,
		PayloadJSON:   string(payload),
		ReceivedAt:    s.now().UnixMilli(),
	})
}

// Handler returns the HTTP API over this service's store.
func (s *Service) Handler() http.Handler {
	return api.New(s.store, s.logger).Router()
}

// CurrentRisk returns the latest daily summary, or nil when the
// platform has no data yet.
func (s *Service) CurrentRisk(ctx context.Context) (*DailySummary, error) {
	return s.store.LatestDailySummary(ctx)
}

// History returns daily summaries for an inclusive date range.
func (s *Service) History(ctx context.Context, from, to string) ([]*DailySummary, error) {
	return s.store.ListDailySummaries(ctx, from, to)
}

// Events returns scored events matching the filter, newest first.
func (s *Service) Events(ctx context.Context, f EventFilter) ([]*ScoredEvent, error) {
	return s.store.ListEvents(ctx, f)
}

// Alerts returns emitted alerts, newest first.
func (s *Service) Alerts(ctx context.Context, limit, offset int) ([]*Alert, error) {
	return s.store.ListAlerts(ctx, limit, offset)
}

// Stats returns platform counters.
func (s *Service) Stats(ctx context.Context) (*PlatformStats, error) {
	return s.store.Stats(ctx)
}

func (s *Service) recordCycle(res *CycleResult, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordSimple("pipeline.cycle.processed", float64(res.Processed), "records")
	s.metrics.RecordSimple("pipeline.cycle.failed", float64(res.Failed), "records")
	s.metrics.RecordSimple("pipeline.cycle.alerts", float64(res.Alerts), "alerts")
	s.metrics.RecordSimple("pipeline.cycle.elapsed", elapsed.Seconds(), "seconds")
}

// prevDate returns the calendar day before a "2006-01-02" date.
func prevDate(date string) string {
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return ""
	}
	return day.AddDate(0, 0, -1).Format("2006-01-02")
}
