package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vigialab/vigia/riskpipe/internal/store"
)

// Comtrade normalizes bilateral trade-flow observations. Magnitude is
// the percent change in trade value for one (flow, commodity, partner)
// tuple against the previous period.
type Comtrade struct {
	Country string
}

type comtradeRecord struct {
	Period        string   `json:"period"` // "2025-06" or "2025"
	FlowCode      string   `json:"flow"`   // "X" export, "M" import
	CommodityCode string   `json:"commodity_code"`
	Commodity     string   `json:"commodity"`
	Partner       string   `json:"partner"`
	TradeValueUSD *float64 `json:"trade_value_usd"`
	PreviousValue *float64 `json:"previous_value"`
	PercentChange *float64 `json:"percent_change"`
}

func (Comtrade) Source() string { return store.SourceComtrade }

func (c Comtrade) Normalize(payload []byte, ingestedAt time.Time) (*store.CanonicalEvent, error) {
	var rec comtradeRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("normalize: comtrade payload: %w", err)
	}
	if rec.CommodityCode == "" {
		return nil, missingField(c.Source(), "", "commodity_code")
	}
	if rec.TradeValueUSD == nil {
		return nil, missingField(c.Source(), rec.CommodityCode, "trade_value_usd")
	}
	ts, ok := parseDay(rec.Period, "2006-01-02", "2006-01", "2006")
	if !ok {
		return nil, missingField(c.Source(), rec.CommodityCode, "period")
	}

	change := percentChange(rec.PercentChange, rec.TradeValueUSD, rec.PreviousValue)
	nativeID := strings.Join([]string{rec.FlowCode, rec.CommodityCode, rec.Partner, rec.Period}, "/")

	ev := newEvent(c.Source(), nativeID, c.Country, ts, ingestedAt, payload)
	// Mineral fuels (HS chapter 27) dominate the export basket and read
	// as energy risk rather than general trade risk.
	if strings.HasPrefix(rec.CommodityCode, "27") {
		ev.Category = store.CategoryEnergy
	} else {
		ev.Category = store.CategoryTrade
	}
	ev.Subcategory = rec.CommodityCode
	if rec.FlowCode == "M" {
		ev.EventType = "IMPORT_FLOW_UPDATE"
	} else {
		ev.EventType = "EXPORT_FLOW_UPDATE"
	}

	ev.MagnitudeRaw = change
	ev.MagnitudeUnit = "percent"
	ev.MagnitudeNorm = LogisticSquash(math.Abs(change), 20)

	// Collapsing exports and surging import dependence both read as
	// adverse; growth in either flow reads as recovery.
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

	if rec.Commodity != "" {
		ev.Commodities = []string{rec.Commodity}
	}
	if rec.Partner != "" {
		ev.Actor2Name = rec.Partner
		ev.Actor2Type = store.ActorGovernment
	}
	return finish(ev), nil
}
