package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/vigialab/vigia/riskpipe/internal/store"
)

// WorldBank normalizes macroeconomic indicator observations. Magnitude
// is the percent change against the previous observation; indicator
// polarity decides which sign is adverse.
type WorldBank struct {
	Country string
}

type worldBankRecord struct {
	Indicator     string   `json:"indicator"`
	IndicatorName string   `json:"indicator_name"`
	Date          string   `json:"date"`
	Value         *float64 `json:"value"`
	PreviousValue *float64 `json:"previous_value"`
	PercentChange *float64 `json:"percent_change"`
	Unit          string   `json:"unit"`
}

func (WorldBank) Source() string { return store.SourceWorldBank }

func (w WorldBank) Normalize(payload []byte, ingestedAt time.Time) (*store.CanonicalEvent, error) {
	var rec worldBankRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("normalize: worldbank payload: %w", err)
	}
	if rec.Indicator == "" {
		return nil, missingField(w.Source(), "", "indicator")
	}
	if rec.Value == nil {
		return nil, missingField(w.Source(), rec.Indicator, "value")
	}
	ts, ok := parseDay(rec.Date, "2006-01-02", "2006-01", "2006")
	if !ok {
		return nil, missingField(w.Source(), rec.Indicator, "date")
	}

	change := percentChange(rec.PercentChange, rec.Value, rec.PreviousValue)

	ev := newEvent(w.Source(), rec.Indicator+"/"+rec.Date, w.Country, ts, ingestedAt, payload)
	ev.Category = worldBankCategory(rec.Indicator)
	ev.Subcategory = rec.Indicator
	ev.EventType = "INDICATOR_UPDATE"

	ev.MagnitudeRaw = change
	ev.MagnitudeUnit = "percent"
	ev.MagnitudeNorm = LogisticSquash(math.Abs(change), 10)

	ev.Direction = worldBankDirection(rec.Indicator, change)
	ev.ToneRaw = change
	if ev.Direction == store.DirectionNegative {
		ev.ToneNorm = 0.5 + 0.5*ev.MagnitudeNorm
	} else {
		ev.ToneNorm = 0.5 - 0.5*ev.MagnitudeNorm
	}

	if rec.IndicatorName != "" {
		ev.Sectors = []string{rec.IndicatorName}
	}
	return finish(ev), nil
}

// percentChange prefers the upstream-computed figure and otherwise
// derives it from the current and previous observations.
func percentChange(pct, value, previous *float64) float64 {
	if pct != nil {
		return *pct
	}
	if value == nil || previous == nil || *previous == 0 {
		return 0
	}
	return (*value - *previous) / math.Abs(*previous) * 100
}
