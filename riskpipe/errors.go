package riskpipe

import (
	"errors"

	"github.com/vigialab/vigia/riskpipe/internal/normalize"
	"github.com/vigialab/vigia/riskpipe/internal/store"
)

// ErrInvalidConfig is returned by New when the configuration cannot
// produce a working pipeline (bad weights, bad thresholds).
var ErrInvalidConfig = errors.New("riskpipe: invalid configuration")

// ErrInvalidDateRange is returned by Rebuild for malformed or inverted
// date ranges.
var ErrInvalidDateRange = errors.New("riskpipe: invalid date range")

// Re-exported sentinels from internal packages, so callers never import
// internals to test error identity.
var (
	ErrAlertSuppressed = store.ErrAlertSuppressed
	ErrMissingField    = normalize.ErrMissingField
	ErrUnknownSource   = normalize.ErrUnknownSource
)
