package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// UpsertEvent inserts or replaces a canonical event, keyed by
// (source, source_event_id). On conflict the original event_id is kept so
// downstream scored_events rows stay attached; all other columns are
// replaced. ev.EventID is set to the stored ID.
func (s *Store) UpsertEvent(ctx context.Context, ev *CanonicalEvent) error {
	if ev.EventID == "" {
		ev.EventID = "evt_" + s.newID()
	}
	if ev.IngestedAt == 0 {
		ev.IngestedAt = time.Now().UnixMilli()
	}
	commodities, _ := json.Marshal(emptyIfNil(ev.Commodities))
	sectors, _ := json.Marshal(emptyIfNil(ev.Sectors))

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO events (
			event_id, source, source_event_id, event_timestamp, ingested_at,
			category, subcategory, event_type,
			country_code, admin1, admin2, lat, lon,
			magnitude_raw, magnitude_unit, magnitude_norm,
			direction, tone_raw, tone_norm,
			num_sources, source_credibility, confidence,
			actor1_name, actor1_type, actor2_name, actor2_type,
			commodities, sectors, raw_payload
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(source, source_event_id) DO UPDATE SET
			event_timestamp=excluded.event_timestamp,
			ingested_at=excluded.ingested_at,
			category=excluded.category,
			subcategory=excluded.subcategory,
			event_type=excluded.event_type,
			country_code=excluded.country_code,
			admin1=excluded.admin1,
			admin2=excluded.admin2,
			lat=excluded.lat,
			lon=excluded.lon,
			magnitude_raw=excluded.magnitude_raw,
			magnitude_unit=excluded.magnitude_unit,
			magnitude_norm=excluded.magnitude_norm,
			direction=excluded.direction,
			tone_raw=excluded.tone_raw,
			tone_norm=excluded.tone_norm,
			num_sources=excluded.num_sources,
			source_credibility=excluded.source_credibility,
			confidence=excluded.confidence,
			actor1_name=excluded.actor1_name,
			actor1_type=excluded.actor1_type,
			actor2_name=excluded.actor2_name,
			actor2_type=excluded.actor2_type,
			commodities=excluded.commodities,
			sectors=excluded.sectors,
			raw_payload=excluded.raw_payload`,
		ev.EventID, ev.Source, ev.SourceEventID, ev.EventTimestamp, ev.IngestedAt,
		ev.Category, ev.Subcategory, ev.EventType,
		ev.CountryCode, ev.Admin1, ev.Admin2, ev.Lat, ev.Lon,
		ev.MagnitudeRaw, ev.MagnitudeUnit, ev.MagnitudeNorm,
		ev.Direction, ev.ToneRaw, ev.ToneNorm,
		ev.NumSources, ev.SourceCredibility, ev.Confidence,
		ev.Actor1Name, ev.Actor1Type, ev.Actor2Name, ev.Actor2Type,
		string(commodities), string(sectors), ev.RawPayload,
	)
	if err != nil {
		return err
	}

	// Re-read the stored ID: on conflict the insert's event_id was discarded.
	var storedID string
	err = s.DB.QueryRowContext(ctx,
		`SELECT event_id FROM events WHERE source = ? AND source_event_id = ?`,
		ev.Source, ev.SourceEventID).Scan(&storedID)
	if err != nil {
		return err
	}
	ev.EventID = storedID
	return nil
}

// GetEvent retrieves a canonical event by ID, or nil if absent.
func (s *Store) GetEvent(ctx context.Context, eventID string) (*CanonicalEvent, error) {
	row := s.DB.QueryRowContext(ctx, selectEvent+` WHERE event_id = ?`, eventID)
	ev, err := scanEvent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ev, err
}

const selectEvent = `SELECT event_id, source, source_event_id, event_timestamp, ingested_at,
	category, subcategory, event_type, country_code, admin1, admin2, lat, lon,
	magnitude_raw, magnitude_unit, magnitude_norm, direction, tone_raw, tone_norm,
	num_sources, source_credibility, confidence,
	actor1_name, actor1_type, actor2_name, actor2_type,
	commodities, sectors, raw_payload
	FROM events`

func scanEvent(scan func(...any) error) (*CanonicalEvent, error) {
	ev := &CanonicalEvent{}
	var commodities, sectors string
	err := scan(
		&ev.EventID, &ev.Source, &ev.SourceEventID, &ev.EventTimestamp, &ev.IngestedAt,
		&ev.Category, &ev.Subcategory, &ev.EventType,
		&ev.CountryCode, &ev.Admin1, &ev.Admin2, &ev.Lat, &ev.Lon,
		&ev.MagnitudeRaw, &ev.MagnitudeUnit, &ev.MagnitudeNorm,
		&ev.Direction, &ev.ToneRaw, &ev.ToneNorm,
		&ev.NumSources, &ev.SourceCredibility, &ev.Confidence,
		&ev.Actor1Name, &ev.Actor1Type, &ev.Actor2Name, &ev.Actor2Type,
		&commodities, &sectors, &ev.RawPayload,
	)
	if err != nil {
		return nil, err
	}
	unmarshalList(commodities, &ev.Commodities)
	unmarshalList(sectors, &ev.Sectors)
	return ev, nil
}

// unmarshalList decodes a JSON array column, leaving dst nil on "[]" or
// malformed input rather than failing the whole scan.
func unmarshalList(src string, dst *[]string) {
	if src == "" || src == "[]" {
		return
	}
	json.Unmarshal([]byte(src), dst)
}

// CategoryMagnitudeStats returns per-category magnitude accumulators over
// the trailing windowDays ending at asOf (exclusive). Mean and stddev are
// derived in Go from count/sum/sum-of-squares.
func (s *Store) CategoryMagnitudeStats(ctx context.Context, asOf time.Time, windowDays int) (map[string]MagnitudeStats, error) {
	end := asOf.UnixMilli()
	start := asOf.AddDate(0, 0, -windowDays).UnixMilli()
	rows, err := s.DB.QueryContext(ctx, `
		SELECT category, COUNT(*), SUM(magnitude_norm), SUM(magnitude_norm*magnitude_norm)
		FROM events WHERE event_timestamp >= ? AND event_timestamp < ?
		GROUP BY category`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]MagnitudeStats)
	for rows.Next() {
		var st MagnitudeStats
		if err := rows.Scan(&st.Category, &st.Count, &st.Sum, &st.SumSq); err != nil {
			return nil, err
		}
		out[st.Category] = st
	}
	return out, rows.Err()
}

func emptyIfNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
