package store

import "database/sql"

// Schema is the complete risk store schema. All timestamps are ms epoch;
// dates are "YYYY-MM-DD" UTC strings. Map/set columns are JSON text.
const Schema = `
-- Raw source payload inbox (filled by external fetchers)
CREATE TABLE IF NOT EXISTS raw_records (
    id               TEXT PRIMARY KEY,
    source           TEXT NOT NULL,
    source_event_id  TEXT NOT NULL DEFAULT '',
    payload_json     TEXT NOT NULL,
    received_at      INTEGER NOT NULL,
    status           TEXT NOT NULL DEFAULT 'pending',
    error            TEXT NOT NULL DEFAULT '',
    processed_at     INTEGER
);
CREATE INDEX IF NOT EXISTS idx_raw_records_pending ON raw_records(status, received_at);

-- Canonical events, idempotent on (source, source_event_id)
CREATE TABLE IF NOT EXISTS events (
    event_id         TEXT PRIMARY KEY,
    source           TEXT NOT NULL,
    source_event_id  TEXT NOT NULL,
    event_timestamp  INTEGER NOT NULL,
    ingested_at      INTEGER NOT NULL,
    category         TEXT NOT NULL,
    subcategory      TEXT NOT NULL DEFAULT '',
    event_type       TEXT NOT NULL DEFAULT '',
    country_code     TEXT NOT NULL,
    admin1           TEXT NOT NULL DEFAULT '',
    admin2           TEXT NOT NULL DEFAULT '',
    lat              REAL,
    lon              REAL,
    magnitude_raw    REAL NOT NULL DEFAULT 0,
    magnitude_unit   TEXT NOT NULL DEFAULT '',
    magnitude_norm   REAL NOT NULL DEFAULT 0,
    direction        TEXT NOT NULL DEFAULT 'NEUTRAL',
    tone_raw         REAL NOT NULL DEFAULT 0,
    tone_norm        REAL NOT NULL DEFAULT 0,
    num_sources      INTEGER NOT NULL DEFAULT 0,
    source_credibility REAL NOT NULL DEFAULT 0,
    confidence       REAL NOT NULL DEFAULT 0,
    actor1_name      TEXT NOT NULL DEFAULT '',
    actor1_type      TEXT NOT NULL DEFAULT '',
    actor2_name      TEXT NOT NULL DEFAULT '',
    actor2_type      TEXT NOT NULL DEFAULT '',
    commodities      TEXT NOT NULL DEFAULT '[]',
    sectors          TEXT NOT NULL DEFAULT '[]',
    raw_payload      TEXT NOT NULL DEFAULT '',
    UNIQUE(source, source_event_id)
);
CREATE INDEX IF NOT EXISTS idx_events_time ON events(event_timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_events_category_time ON events(category, event_timestamp DESC);

-- Derived severity + risk score per event, replace-on-rescore
CREATE TABLE IF NOT EXISTS scored_events (
    event_id            TEXT PRIMARY KEY REFERENCES events(event_id) ON DELETE CASCADE,
    severity            TEXT NOT NULL,
    severity_reason     TEXT NOT NULL DEFAULT '',
    severity_auto       INTEGER NOT NULL DEFAULT 0,
    risk_score          REAL NOT NULL,
    magnitude_contrib   REAL NOT NULL,
    tone_contrib        REAL NOT NULL,
    velocity_contrib    REAL NOT NULL,
    attention_contrib   REAL NOT NULL,
    persistence_contrib REAL NOT NULL,
    confidence_mod      REAL NOT NULL,
    base_score          REAL NOT NULL,
    scored_at           INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scored_severity ON scored_events(severity);

-- One row per calendar day, fully replaced on recompute
CREATE TABLE IF NOT EXISTS daily_summaries (
    date              TEXT PRIMARY KEY,
    risk_score        REAL NOT NULL,
    risk_score_change REAL NOT NULL DEFAULT 0,
    risk_trend        TEXT NOT NULL DEFAULT 'STABLE',
    category_scores   TEXT NOT NULL DEFAULT '{}',
    p1_count          INTEGER NOT NULL DEFAULT 0,
    p2_count          INTEGER NOT NULL DEFAULT 0,
    p3_count          INTEGER NOT NULL DEFAULT 0,
    p4_count          INTEGER NOT NULL DEFAULT 0,
    event_count       INTEGER NOT NULL DEFAULT 0,
    velocity_7d       REAL NOT NULL DEFAULT 0,
    velocity_30d      REAL NOT NULL DEFAULT 0,
    computed_at       INTEGER NOT NULL
);

-- Rolling statistical baselines, derived from daily_summaries
CREATE TABLE IF NOT EXISTS rolling_metrics (
    date               TEXT NOT NULL,
    window_days        INTEGER NOT NULL,
    mean_score         REAL NOT NULL DEFAULT 0,
    stddev_score       REAL NOT NULL DEFAULT 0,
    mean_event_count   REAL NOT NULL DEFAULT 0,
    stddev_event_count REAL NOT NULL DEFAULT 0,
    category_means     TEXT NOT NULL DEFAULT '{}',
    computed_at        INTEGER NOT NULL,
    PRIMARY KEY (date, window_days)
);

-- Alerts. The UNIQUE index is the cross-run race guard: two overlapping
-- pipeline runs computing the same cooldown bucket cannot both insert.
CREATE TABLE IF NOT EXISTS alerts (
    alert_id        TEXT PRIMARY KEY,
    timestamp       INTEGER NOT NULL,
    alert_type      TEXT NOT NULL,
    discriminator   TEXT NOT NULL,
    cooldown_bucket INTEGER NOT NULL,
    severity        TEXT NOT NULL,
    title           TEXT NOT NULL,
    message         TEXT NOT NULL DEFAULT '',
    data_json       TEXT NOT NULL DEFAULT '{}',
    delivery_status TEXT NOT NULL DEFAULT 'pending',
    delivered_at    INTEGER,
    created_at      INTEGER NOT NULL,
    UNIQUE(alert_type, discriminator, cooldown_bucket)
);
CREATE INDEX IF NOT EXISTS idx_alerts_time ON alerts(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_alerts_dedup ON alerts(alert_type, discriminator, timestamp DESC);
`

// ApplySchema applies the risk store schema to db.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
