package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vigialab/vigia/riskpipe/internal/store"
)

// EIA normalizes energy time-series observations (crude production,
// exports, refinery throughput). A drop in output is the adverse
// direction: the economy under watch is an oil exporter.
type EIA struct {
	Country string
}

type eiaRecord struct {
	SeriesID      string   `json:"series_id"`
	SeriesName    string   `json:"series_name"`
	Period        string   `json:"period"`
	Value         *float64 `json:"value"`
	Previous      *float64 `json:"previous"`
	PercentChange *float64 `json:"percent_change"`
	Units         string   `json:"units"`
}

func (EIA) Source() string { return store.SourceEIA }

func (e EIA) Normalize(payload []byte, ingestedAt time.Time) (*store.CanonicalEvent, error) {
	var rec eiaRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("normalize: eia payload: %w", err)
	}
	if rec.SeriesID == "" {
		return nil, missingField(e.Source(), "", "series_id")
	}
	if rec.Value == nil {
		return nil, missingField(e.Source(), rec.SeriesID, "value")
	}
	ts, ok := parseDay(rec.Period, "2006-01-02", "2006-01", "2006")
	if !ok {
		return nil, missingField(e.Source(), rec.SeriesID, "period")
	}

	change := percentChange(rec.PercentChange, rec.Value, rec.Previous)

	ev := newEvent(e.Source(), rec.SeriesID+"/"+rec.Period, e.Country, ts, ingestedAt, payload)
	ev.Category = store.CategoryEnergy
	ev.Subcategory = rec.SeriesID
	ev.EventType = "ENERGY_SERIES_UPDATE"

	ev.MagnitudeRaw = change
	ev.MagnitudeUnit = "percent"
	ev.MagnitudeNorm = LogisticSquash(math.Abs(change), 10)

	switch {
	case change < 0:
		ev.Direction = store.DirectionNegative
	case change > 0:
		ev.Direction = store.DirectionPositive
	default:
		ev.Direction = store.DirectionNeutral
	}
	ev.ToneRaw = change
	if ev.Direction == store.DirectionNegative {
		ev.ToneNorm = 0.5 + 0.5*ev.MagnitudeNorm
	} else {
		ev.ToneNorm = 0.5 - 0.5*ev.MagnitudeNorm
	}

	ev.Commodities = []string{eiaCommodity(rec.SeriesID)}
	if rec.SeriesName != "" {
		ev.Sectors = []string{rec.SeriesName}
	}
	return finish(ev), nil
}

// eiaCommodity extracts the commodity family from an EIA series id
// ("PET.MCRFPVE2.M" → crude petroleum).
func eiaCommodity(seriesID string) string {
	switch {
	case strings.HasPrefix(seriesID, "PET."):
		return "crude petroleum"
	case strings.HasPrefix(seriesID, "NG."):
		return "natural gas"
	case strings.HasPrefix(seriesID, "ELEC."):
		return "electricity"
	default:
		return "energy"
	}
}
