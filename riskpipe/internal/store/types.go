package store

// Source identifiers for the seven external feeds. The set is closed:
// normalizer dispatch is a static table keyed by these values and unknown
// sources are rejected at the inbox.
const (
	SourceGDELT     = "GDELT"
	SourceACLED     = "ACLED"
	SourceNewsAPI   = "NEWSAPI"
	SourceWorldBank = "WORLDBANK"
	SourceEIA       = "EIA"
	SourceComtrade  = "COMTRADE"
	SourceReliefWeb = "RELIEFWEB"
)

// Sources lists all valid source identifiers.
var Sources = []string{
	SourceGDELT, SourceACLED, SourceNewsAPI, SourceWorldBank,
	SourceEIA, SourceComtrade, SourceReliefWeb,
}

// The ten fixed risk categories. Every event carries exactly one; an
// unmappable source code falls back to the source's default category,
// never to an "unknown" value.
const (
	CategoryPolitical      = "POLITICAL"
	CategoryConflict       = "CONFLICT"
	CategoryEconomic       = "ECONOMIC"
	CategoryTrade          = "TRADE"
	CategoryRegulatory     = "REGULATORY"
	CategoryInfrastructure = "INFRASTRUCTURE"
	CategoryHealthcare     = "HEALTHCARE"
	CategorySocial         = "SOCIAL"
	CategoryEnvironmental  = "ENVIRONMENTAL"
	CategoryEnergy         = "ENERGY"
)

// Categories lists all ten category values.
var Categories = []string{
	CategoryPolitical, CategoryConflict, CategoryEconomic, CategoryTrade,
	CategoryRegulatory, CategoryInfrastructure, CategoryHealthcare,
	CategorySocial, CategoryEnvironmental, CategoryEnergy,
}

// Event direction.
const (
	DirectionPositive = "POSITIVE"
	DirectionNegative = "NEGATIVE"
	DirectionNeutral  = "NEUTRAL"
)

// Severity tiers, most severe first.
const (
	SeverityP1 = "P1"
	SeverityP2 = "P2"
	SeverityP3 = "P3"
	SeverityP4 = "P4"
)

// Actor types.
const (
	ActorGovernment    = "GOVERNMENT"
	ActorMilitary      = "MILITARY"
	ActorRebel         = "REBEL"
	ActorOpposition    = "OPPOSITION"
	ActorCivilian      = "CIVILIAN"
	ActorCorporate     = "CORPORATE"
	ActorInternational = "INTERNATIONAL"
	ActorCriminal      = "CRIMINAL"
)

// Trend labels.
const (
	TrendRisingFast  = "RISING_FAST"
	TrendRising      = "RISING"
	TrendStable      = "STABLE"
	TrendFalling     = "FALLING"
	TrendFallingFast = "FALLING_FAST"
)

// Alert types.
const (
	AlertThresholdBreach  = "THRESHOLD_BREACH"
	AlertVelocitySpike    = "VELOCITY_SPIKE"
	AlertCategoryBreakout = "CATEGORY_BREAKOUT"
	AlertCriticalEvent    = "CRITICAL_EVENT"
	AlertVolumeAnomaly    = "VOLUME_ANOMALY"
)

// Raw record inbox status values.
const (
	RawPending = "pending"
	RawDone    = "done"
	RawFailed  = "failed"
)

// RawRecord is one unprocessed source payload in the inbox. External
// fetchers insert rows; the pipeline drains pending ones each cycle.
type RawRecord struct {
	ID            string `json:"id"`
	Source        string `json:"source"`
	SourceEventID string `json:"source_event_id"`
	PayloadJSON   string `json:"payload_json"`
	ReceivedAt    int64  `json:"received_at"` // ms
	Status        string `json:"status"`
	Error         string `json:"error"`
	ProcessedAt   *int64 `json:"processed_at,omitempty"`
}

// CanonicalEvent is the source-agnostic representation of one signal.
// All *_norm fields and Confidence lie in [0,1].
type CanonicalEvent struct {
	EventID       string `json:"event_id"`
	Source        string `json:"source"`
	SourceEventID string `json:"source_event_id"`

	EventTimestamp int64 `json:"event_timestamp"` // ms
	IngestedAt     int64 `json:"ingested_at"`     // ms

	Category    string `json:"category"`
	Subcategory string `json:"subcategory"` // source-native code
	EventType   string `json:"event_type"`

	CountryCode string   `json:"country_code"`
	Admin1      string   `json:"admin1,omitempty"`
	Admin2      string   `json:"admin2,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`

	MagnitudeRaw  float64 `json:"magnitude_raw"`
	MagnitudeUnit string  `json:"magnitude_unit"`
	MagnitudeNorm float64 `json:"magnitude_norm"`

	Direction string  `json:"direction"`
	ToneRaw   float64 `json:"tone_raw"`
	ToneNorm  float64 `json:"tone_norm"` // 1 = most negative

	NumSources        int     `json:"num_sources"`
	SourceCredibility float64 `json:"source_credibility"`
	Confidence        float64 `json:"confidence"`

	Actor1Name string `json:"actor1_name,omitempty"`
	Actor1Type string `json:"actor1_type,omitempty"`
	Actor2Name string `json:"actor2_name,omitempty"`
	Actor2Type string `json:"actor2_type,omitempty"`

	Commodities []string `json:"commodities,omitempty"`
	Sectors     []string `json:"sectors,omitempty"`

	RawPayload string `json:"raw_payload,omitempty"` // original record, verbatim
}

// ScoredEvent is a CanonicalEvent plus severity classification and the
// fully decomposed risk score. Every component is retained verbatim so a
// score can always show its work.
type ScoredEvent struct {
	CanonicalEvent

	Severity       string `json:"severity"`
	SeverityReason string `json:"severity_reason"`
	SeverityAuto   bool   `json:"severity_auto"`

	RiskScore float64 `json:"risk_score"` // [0,100]

	MagnitudeContrib   float64 `json:"magnitude_contrib"`
	ToneContrib        float64 `json:"tone_contrib"`
	VelocityContrib    float64 `json:"velocity_contrib"`
	AttentionContrib   float64 `json:"attention_contrib"`
	PersistenceContrib float64 `json:"persistence_contrib"`
	ConfidenceMod      float64 `json:"confidence_mod"` // [0.5,1.0]
	BaseScore          float64 `json:"base_score"`

	ScoredAt int64 `json:"scored_at"` // ms
}

// DailySummary is one calendar day's aggregate risk picture.
// Keyed by Date ("2006-01-02", UTC) with replace semantics.
type DailySummary struct {
	Date            string             `json:"date"`
	RiskScore       float64            `json:"risk_score"`
	RiskScoreChange float64            `json:"risk_score_change"`
	RiskTrend       string             `json:"risk_trend"`
	CategoryScores  map[string]float64 `json:"category_scores"`
	P1Count         int                `json:"p1_count"`
	P2Count         int                `json:"p2_count"`
	P3Count         int                `json:"p3_count"`
	P4Count         int                `json:"p4_count"`
	EventCount      int                `json:"event_count"`
	Velocity7d      float64            `json:"velocity_7d"`
	Velocity30d     float64            `json:"velocity_30d"`
	ComputedAt      int64              `json:"computed_at"` // ms
}

// RollingMetrics is the trailing-window statistical baseline for one
// (date, window) pair. Pure derived state, recomputed from DailySummary
// history; never hand-edited.
type RollingMetrics struct {
	Date             string             `json:"date"`
	WindowDays       int                `json:"window_days"` // 7, 14, 30 or 90
	MeanScore        float64            `json:"mean_score"`
	StddevScore      float64            `json:"stddev_score"`
	MeanEventCount   float64            `json:"mean_event_count"`
	StddevEventCount float64            `json:"stddev_event_count"`
	CategoryMeans    map[string]float64 `json:"category_means"`
	ComputedAt       int64              `json:"computed_at"` // ms
}

// RollingWindows are the window sizes maintained per day.
var RollingWindows = []int{7, 14, 30, 90}

// Alert is one emitted notification. Immutable once created; dedup runs
// on (AlertType, Discriminator) with a per-type cooldown window.
type Alert struct {
	AlertID        string `json:"alert_id"`
	Timestamp      int64  `json:"timestamp"` // ms
	AlertType      string `json:"alert_type"`
	Discriminator  string `json:"discriminator"`
	CooldownBucket int64  `json:"-"`
	Severity       string `json:"severity"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	DataJSON       string `json:"data_json"`
	DeliveryStatus string `json:"delivery_status"`
	DeliveredAt    *int64 `json:"delivered_at,omitempty"`
	CreatedAt      int64  `json:"created_at"` // ms
}

// EventFilter restricts ListEvents results. Zero values mean "no filter".
type EventFilter struct {
	Severity string
	Category string
	From     int64 // ms, inclusive
	To       int64 // ms, exclusive
	Limit    int
	Offset   int
}

// MagnitudeStats is the per-category accumulator used to derive rolling
// magnitude baselines (mean/stddev computed in Go; SQLite has no STDDEV).
type MagnitudeStats struct {
	Category string
	Count    int
	Sum      float64
	SumSq    float64
}

// PlatformStats holds aggregate store counters.
type PlatformStats struct {
	RawPending   int `json:"raw_pending"`
	Events       int `json:"events"`
	ScoredEvents int `json:"scored_events"`
	Summaries    int `json:"summaries"`
	Alerts       int `json:"alerts"`
}

// ValidCategory reports whether c is one of the ten fixed categories.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// ValidSource reports whether s is one of the seven source identifiers.
func ValidSource(s string) bool {
	for _, v := range Sources {
		if v == s {
			return true
		}
	}
	return false
}
