package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vigialab/vigia/riskpipe/internal/store"
)

// ACLED normalizes curated armed-conflict event records. Magnitude is
// the fatality count, squashed so that mass-casualty outliers saturate
// instead of dominating every other signal.
type ACLED struct {
	Country string
}

type acledRecord struct {
	EventIDCnty   string   `json:"event_id_cnty"`
	EventDate     string   `json:"event_date"`
	EventType     string   `json:"event_type"`
	SubEventType  string   `json:"sub_event_type"`
	Fatalities    *int     `json:"fatalities"`
	Actor1        string   `json:"actor1"`
	Inter1        string   `json:"inter1"`
	Actor2        string   `json:"actor2"`
	Inter2        string   `json:"inter2"`
	Admin1        string   `json:"admin1"`
	Admin2        string   `json:"admin2"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	Source        string   `json:"source"`
	Notes         string   `json:"notes"`
}

// ACLED interaction labels → canonical actor types.
var acledActorTypes = map[string]string{
	"State forces":          store.ActorMilitary,
	"Rebel group":           store.ActorRebel,
	"Political militia":     store.ActorRebel,
	"Identity militia":      store.ActorRebel,
	"Rioters":               store.ActorCivilian,
	"Protesters":            store.ActorCivilian,
	"Civilians":             store.ActorCivilian,
	"External/Other forces": store.ActorInternational,
}

func (ACLED) Source() string { return store.SourceACLED }

func (a ACLED) Normalize(payload []byte, ingestedAt time.Time) (*store.CanonicalEvent, error) {
	var rec acledRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("normalize: acled payload: %w", err)
	}
	if rec.EventIDCnty == "" {
		return nil, missingField(a.Source(), "", "event_id_cnty")
	}
	if rec.EventType == "" {
		return nil, missingField(a.Source(), rec.EventIDCnty, "event_type")
	}
	if rec.Fatalities == nil {
		return nil, missingField(a.Source(), rec.EventIDCnty, "fatalities")
	}
	ts, ok := parseDay(rec.EventDate, "2006-01-02", "02 January 2006")
	if !ok {
		return nil, missingField(a.Source(), rec.EventIDCnty, "event_date")
	}

	ev := newEvent(a.Source(), rec.EventIDCnty, a.Country, ts, ingestedAt, payload)
	if cat, ok := acledCategories[rec.EventType]; ok {
		ev.Category = cat
	} else {
		ev.Category = store.CategoryConflict
	}
	ev.Subcategory = rec.SubEventType
	ev.EventType = strings.ToUpper(strings.ReplaceAll(rec.EventType, " ", "_"))

	fat := *rec.Fatalities
	ev.MagnitudeRaw = float64(fat)
	ev.MagnitudeUnit = "fatalities"
	ev.MagnitudeNorm = LogisticSquash(float64(fat), 5)
	if fat == 0 {
		// Zero-fatality conflict events still carry signal proportional
		// to the inherent violence of the event class.
		ev.MagnitudeNorm = 0.3 * acledTone[rec.EventType]
	}

	ev.ToneRaw = float64(fat)
	if tone, ok := acledTone[rec.EventType]; ok {
		ev.ToneNorm = tone
	} else {
		ev.ToneNorm = 0.6
	}
	ev.Direction = store.DirectionNegative
	if rec.EventType == "Strategic developments" && fat == 0 {
		ev.Direction = store.DirectionNeutral
	}

	// ACLED concatenates corroborating outlets with semicolons.
	if rec.Source != "" {
		ev.NumSources = len(strings.Split(rec.Source, ";"))
	}
	ev.Actor1Name = rec.Actor1
	ev.Actor1Type = acledActorTypes[rec.Inter1]
	ev.Actor2Name = rec.Actor2
	ev.Actor2Type = acledActorTypes[rec.Inter2]
	ev.Admin1 = rec.Admin1
	ev.Admin2 = rec.Admin2
	ev.Lat = rec.Latitude
	ev.Lon = rec.Longitude
	return finish(ev), nil
}
