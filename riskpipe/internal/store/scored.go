package store

import (
	"context"
	"time"
)

// UpsertScoredEvent inserts or replaces the derived columns for an event.
// Keyed by event_id: re-scoring runs overwrite, never duplicate.
func (s *Store) UpsertScoredEvent(ctx context.Context, se *ScoredEvent) error {
	if se.ScoredAt == 0 {
		se.ScoredAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO scored_events (
			event_id, severity, severity_reason, severity_auto, risk_score,
			magnitude_contrib, tone_contrib, velocity_contrib,
			attention_contrib, persistence_contrib, confidence_mod, base_score,
			scored_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(event_id) DO UPDATE SET
			severity=excluded.severity,
			severity_reason=excluded.severity_reason,
			severity_auto=excluded.severity_auto,
			risk_score=excluded.risk_score,
			magnitude_contrib=excluded.magnitude_contrib,
			tone_contrib=excluded.tone_contrib,
			velocity_contrib=excluded.velocity_contrib,
			attention_contrib=excluded.attention_contrib,
			persistence_contrib=excluded.persistence_contrib,
			confidence_mod=excluded.confidence_mod,
			base_score=excluded.base_score,
			scored_at=excluded.scored_at`,
		se.EventID, se.Severity, se.SeverityReason, se.SeverityAuto, se.RiskScore,
		se.MagnitudeContrib, se.ToneContrib, se.VelocityContrib,
		se.AttentionContrib, se.PersistenceContrib, se.ConfidenceMod, se.BaseScore,
		se.ScoredAt,
	)
	return err
}

// scoredQuery is the joined select for canonical + derived columns.
const scoredQuery = `SELECT e.event_id, e.source, e.source_event_id, e.event_timestamp, e.ingested_at,
	e.category, e.subcategory, e.event_type, e.country_code, e.admin1, e.admin2, e.lat, e.lon,
	e.magnitude_raw, e.magnitude_unit, e.magnitude_norm, e.direction, e.tone_raw, e.tone_norm,
	e.num_sources, e.source_credibility, e.confidence,
	e.actor1_name, e.actor1_type, e.actor2_name, e.actor2_type,
	e.commodities, e.sectors, e.raw_payload,
	s.severity, s.severity_reason, s.severity_auto, s.risk_score,
	s.magnitude_contrib, s.tone_contrib, s.velocity_contrib,
	s.attention_contrib, s.persistence_contrib, s.confidence_mod, s.base_score, s.scored_at
	FROM events e JOIN scored_events s ON s.event_id = e.event_id`

func scanScored(scan func(...any) error) (*ScoredEvent, error) {
	se := &ScoredEvent{}
	var commodities, sectors string
	err := scan(
		&se.EventID, &se.Source, &se.SourceEventID, &se.EventTimestamp, &se.IngestedAt,
		&se.Category, &se.Subcategory, &se.EventType,
		&se.CountryCode, &se.Admin1, &se.Admin2, &se.Lat, &se.Lon,
		&se.MagnitudeRaw, &se.MagnitudeUnit, &se.MagnitudeNorm,
		&se.Direction, &se.ToneRaw, &se.ToneNorm,
		&se.NumSources, &se.SourceCredibility, &se.Confidence,
		&se.Actor1Name, &se.Actor1Type, &se.Actor2Name, &se.Actor2Type,
		&commodities, &sectors, &se.RawPayload,
		&se.Severity, &se.SeverityReason, &se.SeverityAuto, &se.RiskScore,
		&se.MagnitudeContrib, &se.ToneContrib, &se.VelocityContrib,
		&se.AttentionContrib, &se.PersistenceContrib, &se.ConfidenceMod, &se.BaseScore,
		&se.ScoredAt,
	)
	if err != nil {
		return nil, err
	}
	unmarshalList(commodities, &se.Commodities)
	unmarshalList(sectors, &se.Sectors)
	return se, nil
}

// ScoredEventsForDay returns all scored events for a UTC calendar date.
func (s *Store) ScoredEventsForDay(ctx context.Context, date string) ([]*ScoredEvent, error) {
	start, end, err := DayBounds(date)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx,
		scoredQuery+` WHERE e.event_timestamp >= ? AND e.event_timestamp < ? ORDER BY e.event_timestamp ASC`,
		start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ScoredEvent
	for rows.Next() {
		se, err := scanScored(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, se)
	}
	return out, rows.Err()
}

// ListEvents returns scored events matching the filter, newest first.
func (s *Store) ListEvents(ctx context.Context, f EventFilter) ([]*ScoredEvent, error) {
	q := scoredQuery + ` WHERE 1=1`
	args := make([]any, 0, 6)
	if f.Severity != "" {
		q += ` AND s.severity = ?`
		args = append(args, f.Severity)
	}
	if f.Category != "" {
		q += ` AND e.category = ?`
		args = append(args, f.Category)
	}
	if f.From > 0 {
		q += ` AND e.event_timestamp >= ?`
		args = append(args, f.From)
	}
	if f.To > 0 {
		q += ` AND e.event_timestamp < ?`
		args = append(args, f.To)
	}
	q += ` ORDER BY e.event_timestamp DESC`
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	q += ` LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ScoredEvent
	for rows.Next() {
		se, err := scanScored(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, se)
	}
	return out, rows.Err()
}
