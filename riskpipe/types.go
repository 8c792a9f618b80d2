// Package riskpipe turns raw multi-source country signals into scored
// events, daily risk summaries and deduplicated alerts.
//
// External fetchers drop source payloads into the raw inbox; the
// pipeline normalizes them into canonical events, classifies severity,
// scores each event against rolling statistical baselines, aggregates
// per-category and composite daily scores, and evaluates alerting
// predicates. Everything but alert emission is idempotent, so cycles
// can overlap, crash and replay without corrupting state.
package riskpipe

import (
	"github.com/vigialab/vigia/riskpipe/internal/aggregate"
	"github.com/vigialab/vigia/riskpipe/internal/store"
)

// Re-export store types for the public API.
type (
	RawRecord      = store.RawRecord
	CanonicalEvent = store.CanonicalEvent
	ScoredEvent    = store.ScoredEvent
	DailySummary   = store.DailySummary
	RollingMetrics = store.RollingMetrics
	Alert          = store.Alert
	EventFilter    = store.EventFilter
	PlatformStats  = store.PlatformStats
	Trend          = aggregate.Trend
)

// Source identifiers.
const (
	SourceGDELT     = store.SourceGDELT
	SourceACLED     = store.SourceACLED
	SourceNewsAPI   = store.SourceNewsAPI
	SourceWorldBank = store.SourceWorldBank
	SourceEIA       = store.SourceEIA
	SourceComtrade  = store.SourceComtrade
	SourceReliefWeb = store.SourceReliefWeb
)

// Severity levels.
const (
	SeverityP1 = store.SeverityP1
	SeverityP2 = store.SeverityP2
	SeverityP3 = store.SeverityP3
	SeverityP4 = store.SeverityP4
)

// Sources lists every supported source identifier.
var Sources = store.Sources

// Categories lists every risk category.
var Categories = store.Categories
