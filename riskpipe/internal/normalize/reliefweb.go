package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vigialab/vigia/riskpipe/internal/store"
)

// ReliefWeb normalizes humanitarian situation reports. Magnitude is the
// affected-population estimate; half a million affected saturates the
// scale.
type ReliefWeb struct {
	Country string
}

type reliefWebRecord struct {
	ReportID           string   `json:"report_id"`
	Date               string   `json:"date"`
	Type               string   `json:"type"` // disaster/report type
	Title              string   `json:"title"`
	AffectedPopulation *float64 `json:"affected_population"`
	SeverityLabel      string   `json:"severity_label"`
	Themes             []string `json:"themes"`
	SourceCount        int      `json:"source_count"`
}

var reliefWebSeverityTone = map[string]float64{
	"severe":   0.9,
	"moderate": 0.65,
	"minor":    0.45,
}

func (ReliefWeb) Source() string { return store.SourceReliefWeb }

func (r ReliefWeb) Normalize(payload []byte, ingestedAt time.Time) (*store.CanonicalEvent, error) {
	var rec reliefWebRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("normalize: reliefweb payload: %w", err)
	}
	if rec.ReportID == "" {
		return nil, missingField(r.Source(), "", "report_id")
	}
	if rec.Type == "" {
		return nil, missingField(r.Source(), rec.ReportID, "type")
	}
	ts, ok := parseDay(rec.Date, time.RFC3339, "2006-01-02")
	if !ok {
		return nil, missingField(r.Source(), rec.ReportID, "date")
	}

	ev := newEvent(r.Source(), rec.ReportID, r.Country, ts, ingestedAt, payload)
	ev.Category = reliefWebCategory(rec.Type)
	ev.Subcategory = rec.Type
	ev.EventType = "HUMANITARIAN_REPORT"

	affected := 0.0
	if rec.AffectedPopulation != nil {
		affected = *rec.AffectedPopulation
	}
	ev.MagnitudeRaw = affected
	ev.MagnitudeUnit = "people_affected"
	ev.MagnitudeNorm = SaturatingRatio(affected, 500000)

	ev.Direction = store.DirectionNegative
	if tone, ok := reliefWebSeverityTone[strings.ToLower(rec.SeverityLabel)]; ok {
		ev.ToneNorm = tone
	} else {
		ev.ToneNorm = 0.6
	}
	ev.ToneRaw = affected

	ev.NumSources = rec.SourceCount
	ev.Sectors = rec.Themes
	return finish(ev), nil
}
