// Package normalize converts raw source payloads into canonical events.
// One Normalizer per upstream source; all of them are pure functions of
// the payload, so a raw record replayed through the pipeline always
// yields the same canonical event.
package normalize

import (
	"errors"
	"fmt"
	"time"

	"github.com/vigialab/vigia/riskpipe/internal/store"
)

// ErrMissingField marks a payload that lacks a required field. The
// pipeline treats it as a per-record failure: the record is parked in the
// failed state and the rest of the batch proceeds.
var ErrMissingField = errors.New("normalize: missing required field")

// ErrUnknownSource marks a raw record whose source has no registered
// normalizer.
var ErrUnknownSource = errors.New("normalize: unknown source")

func missingField(source, nativeID, field string) error {
	return fmt.Errorf("%w: %s record %q has no %s", ErrMissingField, source, nativeID, field)
}

// Normalizer converts one raw payload from a single source into a
// canonical event. Implementations must not mutate shared state.
type Normalizer interface {
	// Source returns the source identifier this normalizer handles.
	Source() string

	// Normalize parses the raw payload and returns the canonical event.
	// The returned event has no EventID; the store assigns one on first
	// insert. ingestedAt stamps when the raw record entered the inbox.
	Normalize(payload []byte, ingestedAt time.Time) (*store.CanonicalEvent, error)
}

// DefaultCountryCode is stamped on events when no country is configured.
const DefaultCountryCode = "VE"

// Registry returns the full set of source normalizers, keyed by source
// identifier. The set is static: adding a source means adding a
// normalizer here and nowhere else. countryCode is stamped on every
// canonical event; empty falls back to DefaultCountryCode.
func Registry(countryCode string) map[string]Normalizer {
	norms := []Normalizer{
		GDELT{Country: countryCode},
		ACLED{Country: countryCode},
		NewsAPI{Country: countryCode},
		WorldBank{Country: countryCode},
		EIA{Country: countryCode},
		Comtrade{Country: countryCode},
		ReliefWeb{Country: countryCode},
	}
	out := make(map[string]Normalizer, len(norms))
	for _, n := range norms {
		out[n.Source()] = n
	}
	return out
}

// newEvent fills the fields every normalizer sets the same way.
func newEvent(source, sourceEventID, country string, eventTS, ingestedAt time.Time, payload []byte) *store.CanonicalEvent {
	if country == "" {
		country = DefaultCountryCode
	}
	return &store.CanonicalEvent{
		Source:            source,
		SourceEventID:     sourceEventID,
		EventTimestamp:    eventTS.UnixMilli(),
		IngestedAt:        ingestedAt.UnixMilli(),
		CountryCode:       country,
		SourceCredibility: CredibilityFor(source),
		RawPayload:        string(payload),
	}
}

// finish derives confidence once the normalizer has set NumSources.
func finish(ev *store.CanonicalEvent) *store.CanonicalEvent {
	if ev.NumSources < 1 {
		ev.NumSources = 1
	}
	ev.MagnitudeNorm = Clamp01(ev.MagnitudeNorm)
	ev.ToneNorm = Clamp01(ev.ToneNorm)
	ev.Confidence = Confidence(ev.Source, ev.NumSources)
	return ev
}

// parseDay parses the given date layouts in order, returning the first
// match as a UTC midnight timestamp.
func parseDay(value string, layouts ...string) (time.Time, bool) {
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
