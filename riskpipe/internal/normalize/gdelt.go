package normalize

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vigialab/vigia/riskpipe/internal/store"
)

// GDELT normalizes machine-coded CAMEO event records. Magnitude is the
// Goldstein scale (−10 cooperative … +10 conflictual after sign flip),
// tone is the document average tone.
type GDELT struct {
	Country string
}

type gdeltRecord struct {
	GlobalEventID  string   `json:"GLOBALEVENTID"`
	SQLDate        string   `json:"SQLDATE"`
	EventCode      string   `json:"EventCode"`
	EventRootCode  string   `json:"EventRootCode"`
	GoldsteinScale *float64 `json:"GoldsteinScale"`
	AvgTone        float64  `json:"AvgTone"`
	NumMentions    int      `json:"NumMentions"`
	NumSources     int      `json:"NumSources"`
	NumArticles    int      `json:"NumArticles"`
	Actor1Name     string   `json:"Actor1Name"`
	Actor1Type     string   `json:"Actor1Type1Code"`
	Actor2Name     string   `json:"Actor2Name"`
	Actor2Type     string   `json:"Actor2Type1Code"`
	GeoADM1        string   `json:"ActionGeo_ADM1Code"`
	GeoFullName    string   `json:"ActionGeo_FullName"`
	GeoLat         *float64 `json:"ActionGeo_Lat"`
	GeoLon         *float64 `json:"ActionGeo_Long"`
}

func (GDELT) Source() string { return store.SourceGDELT }

func (g GDELT) Normalize(payload []byte, ingestedAt time.Time) (*store.CanonicalEvent, error) {
	var rec gdeltRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("normalize: gdelt payload: %w", err)
	}
	if rec.GlobalEventID == "" {
		return nil, missingField(g.Source(), "", "GLOBALEVENTID")
	}
	root := rec.EventRootCode
	if root == "" && len(rec.EventCode) >= 2 {
		root = rec.EventCode[:2]
	}
	if root == "" {
		return nil, missingField(g.Source(), rec.GlobalEventID, "EventRootCode")
	}
	if rec.GoldsteinScale == nil {
		return nil, missingField(g.Source(), rec.GlobalEventID, "GoldsteinScale")
	}
	ts, ok := parseDay(rec.SQLDate, "20060102", "2006-01-02")
	if !ok {
		return nil, missingField(g.Source(), rec.GlobalEventID, "SQLDATE")
	}

	ev := newEvent(g.Source(), rec.GlobalEventID, g.Country, ts, ingestedAt, payload)
	ev.Category = gdeltCategory(root)
	ev.Subcategory = rec.EventCode
	if ev.Subcategory == "" {
		ev.Subcategory = root
	}
	if name, ok := gdeltEventTypes[root]; ok {
		ev.EventType = name
	} else {
		ev.EventType = "DIPLOMATIC_EVENT"
	}

	// Goldstein runs +10 (most cooperative) to −10 (most conflictual);
	// flip so higher normalized magnitude means more adverse.
	ev.MagnitudeRaw = *rec.GoldsteinScale
	ev.MagnitudeUnit = "goldstein"
	ev.MagnitudeNorm = LinearRescale(-*rec.GoldsteinScale, -10, 10)

	ev.ToneRaw = rec.AvgTone
	ev.ToneNorm = LinearRescale(-rec.AvgTone, -10, 10)
	switch {
	case rec.AvgTone < -1:
		ev.Direction = store.DirectionNegative
	case rec.AvgTone > 1:
		ev.Direction = store.DirectionPositive
	default:
		ev.Direction = store.DirectionNeutral
	}

	ev.NumSources = rec.NumSources
	ev.Actor1Name = rec.Actor1Name
	ev.Actor1Type = gdeltActorTypes[rec.Actor1Type]
	ev.Actor2Name = rec.Actor2Name
	ev.Actor2Type = gdeltActorTypes[rec.Actor2Type]
	ev.Admin1 = rec.GeoADM1
	ev.Admin2 = rec.GeoFullName
	ev.Lat = rec.GeoLat
	ev.Lon = rec.GeoLon
	return finish(ev), nil
}
