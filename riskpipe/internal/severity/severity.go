// Package severity assigns P1–P4 priorities to canonical events with an
// ordered decision list. Rules are evaluated top to bottom and the first
// match wins, so ordering is part of the contract.
package severity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vigialab/vigia/riskpipe/internal/store"
)

// Result is a classification with its audit trail: which rule fired and
// whether it was an auto-trigger.
type Result struct {
	Severity string
	Reason   string
	Auto     bool
}

// Event types that unconditionally classify P1 regardless of magnitude.
var autoEventTypes = map[string]bool{
	"COUP_ATTEMPT":     true,
	"ASSASSINATION":    true,
	"MASS_VIOLENCE":    true,
	"MARTIAL_LAW":      true,
	"DEBT_DEFAULT":     true,
	"OIL_EMBARGO":      true,
	"BORDER_CLOSURE":   true,
	"MASS_CASUALTY":    true,
}

// Source-native codes that auto-trigger P1: CAMEO codes for coups,
// assassinations, WMD use and ethnic cleansing.
var autoCodes = map[string]bool{
	"1622": true, // impose state of emergency or martial law (CAMEO)
	"180":  true, // use unconventional violence
	"186":  true, // assassinate
	"202":  true, // engage in mass killings
	"203":  true, // engage in ethnic cleansing
	"204":  true, // use weapons of mass destruction
}

// Keyword patterns scanned case-insensitively across the event's text
// fields and raw payload.
var autoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bcoup\b`),
	regexp.MustCompile(`(?i)martial law`),
	regexp.MustCompile(`(?i)state of emergency`),
	regexp.MustCompile(`(?i)assassinat`),
	regexp.MustCompile(`(?i)mass casualt`),
	regexp.MustCompile(`(?i)default(ed)? on (its )?(sovereign )?debt`),
	regexp.MustCompile(`(?i)oil embargo`),
	regexp.MustCompile(`(?i)national blackout`),
}

// Classify runs the decision list against one canonical event.
func Classify(ev *store.CanonicalEvent) Result {
	// Rule 1: auto-triggers override everything.
	if reason, ok := autoTrigger(ev); ok {
		return Result{Severity: store.SeverityP1, Reason: reason, Auto: true}
	}

	fatalities := ev.MagnitudeUnit == "fatalities"
	negative := ev.Direction == store.DirectionNegative

	// Rule 2: mass-casualty violence.
	if fatalities && ev.MagnitudeRaw >= 10 {
		return Result{Severity: store.SeverityP1,
			Reason: fmt.Sprintf("%.0f fatalities (>= 10)", ev.MagnitudeRaw)}
	}

	// Rule 3: severe adverse oil/energy shock.
	if (ev.Category == store.CategoryEnergy || hasOilCommodity(ev)) &&
		negative && ev.MagnitudeNorm > 0.8 {
		return Result{Severity: store.SeverityP1,
			Reason: fmt.Sprintf("adverse energy shock, magnitude %.2f > 0.8", ev.MagnitudeNorm)}
	}

	// Rule 4: lethal violence below the mass-casualty line.
	if fatalities && ev.MagnitudeRaw >= 1 {
		return Result{Severity: store.SeverityP2,
			Reason: fmt.Sprintf("%.0f fatalities (1-9)", ev.MagnitudeRaw)}
	}

	// Rule 5: strong adverse political or regulatory signal.
	if (ev.Category == store.CategoryPolitical || ev.Category == store.CategoryRegulatory) &&
		negative && ev.MagnitudeNorm > 0.7 {
		return Result{Severity: store.SeverityP2,
			Reason: fmt.Sprintf("adverse %s signal, magnitude %.2f > 0.7", strings.ToLower(ev.Category), ev.MagnitudeNorm)}
	}

	// Rule 6: double-digit economic swing.
	if ev.Category == store.CategoryEconomic && ev.MagnitudeUnit == "percent" &&
		abs(ev.MagnitudeRaw) > 10 {
		return Result{Severity: store.SeverityP2,
			Reason: fmt.Sprintf("economic indicator moved %.1f%% (>10%%)", ev.MagnitudeRaw)}
	}

	// Rule 7: localized significant conflict.
	if ev.Category == store.CategoryConflict && ev.MagnitudeNorm > 0.5 && ev.Admin1 != "" {
		return Result{Severity: store.SeverityP2,
			Reason: fmt.Sprintf("conflict event in %s, magnitude %.2f > 0.5", ev.Admin1, ev.MagnitudeNorm)}
	}

	// Rule 8: moderate adverse signal of any category.
	if negative && ev.MagnitudeNorm > 0.3 && ev.MagnitudeNorm <= 0.7 {
		return Result{Severity: store.SeverityP3,
			Reason: fmt.Sprintf("moderate adverse signal, magnitude %.2f", ev.MagnitudeNorm)}
	}

	// Rule 9: peaceful protest activity.
	if isProtest(ev) && !(fatalities && ev.MagnitudeRaw >= 1) {
		return Result{Severity: store.SeverityP3, Reason: "protest activity without fatalities"}
	}

	// Rule 10: routine regulatory movement.
	if ev.Category == store.CategoryRegulatory && ev.MagnitudeNorm <= 0.5 {
		return Result{Severity: store.SeverityP3, Reason: "low-magnitude regulatory change"}
	}

	// Rule 11: everything else is background signal.
	return Result{Severity: store.SeverityP4, Reason: "background signal"}
}

func autoTrigger(ev *store.CanonicalEvent) (string, bool) {
	if autoEventTypes[ev.EventType] {
		return "auto-trigger: event type " + ev.EventType, true
	}
	if autoCodes[ev.Subcategory] {
		return "auto-trigger: source code " + ev.Subcategory, true
	}
	text := strings.Join([]string{
		ev.EventType, ev.Subcategory, ev.Actor1Name, ev.Actor2Name, ev.RawPayload,
	}, "\n")
	for _, re := range autoPatterns {
		if re.MatchString(text) {
			return "auto-trigger: keyword " + re.String(), true
		}
	}
	return "", false
}

func hasOilCommodity(ev *store.CanonicalEvent) bool {
	for _, c := range ev.Commodities {
		lc := strings.ToLower(c)
		if strings.Contains(lc, "petroleum") || strings.Contains(lc, "crude") ||
			strings.Contains(lc, "oil") {
			return true
		}
	}
	return false
}

func isProtest(ev *store.CanonicalEvent) bool {
	return ev.EventType == "PROTEST" || ev.EventType == "PROTESTS" ||
		strings.EqualFold(ev.Subcategory, "protests") ||
		strings.Contains(strings.ToLower(ev.EventType), "protest")
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
