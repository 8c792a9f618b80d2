package normalize

import (
	"strings"

	"github.com/vigialab/vigia/riskpipe/internal/store"
)

// Source credibility on [0,1]. Curated datasets score higher than
// machine-coded or aggregated feeds.
var Credibility = map[string]float64{
	store.SourceGDELT:     0.6,
	store.SourceACLED:     0.9,
	store.SourceNewsAPI:   0.5,
	store.SourceWorldBank: 0.95,
	store.SourceEIA:       0.9,
	store.SourceComtrade:  0.85,
	store.SourceReliefWeb: 0.8,
}

// CredibilityFor returns the credibility weight for a source, defaulting
// to 0.5 for anything unrecognized.
func CredibilityFor(source string) float64 {
	if c, ok := Credibility[source]; ok {
		return c
	}
	return 0.5
}

// Confidence blends source credibility with corroboration breadth: a
// single-source record from a curated dataset still outranks a widely
// repeated rumor from a low-credibility feed.
func Confidence(source string, numSources int) float64 {
	return Clamp01(0.6*CredibilityFor(source) + 0.4*SaturatingRatio(float64(numSources), 5))
}

// CAMEO root code → risk category. Codes 01–09 are the cooperative half
// of the scale, 10–20 the conflictual half.
var gdeltCategories = map[string]string{
	"01": store.CategoryPolitical,
	"02": store.CategoryPolitical,
	"03": store.CategoryPolitical,
	"04": store.CategoryPolitical,
	"05": store.CategoryPolitical,
	"06": store.CategoryEconomic,
	"07": store.CategoryEconomic,
	"08": store.CategoryPolitical,
	"09": store.CategoryRegulatory,
	"10": store.CategoryPolitical,
	"11": store.CategoryPolitical,
	"12": store.CategoryPolitical,
	"13": store.CategoryPolitical,
	"14": store.CategorySocial,
	"15": store.CategoryConflict,
	"16": store.CategoryPolitical,
	"17": store.CategoryConflict,
	"18": store.CategoryConflict,
	"19": store.CategoryConflict,
	"20": store.CategoryConflict,
}

// CAMEO root code → event type label used by the severity classifier.
var gdeltEventTypes = map[string]string{
	"10": "DEMAND",
	"11": "DISAPPROVAL",
	"12": "REJECTION",
	"13": "THREAT",
	"14": "PROTEST",
	"15": "FORCE_POSTURE",
	"16": "RELATIONS_REDUCTION",
	"17": "COERCION",
	"18": "ASSAULT",
	"19": "FIGHT",
	"20": "MASS_VIOLENCE",
}

// CAMEO actor type code → canonical actor type.
var gdeltActorTypes = map[string]string{
	"GOV": store.ActorGovernment,
	"MIL": store.ActorMilitary,
	"REB": store.ActorRebel,
	"INS": store.ActorRebel,
	"OPP": store.ActorOpposition,
	"CVL": store.ActorCivilian,
	"BUS": store.ActorCorporate,
	"MNC": store.ActorCorporate,
	"IGO": store.ActorInternational,
	"NGO": store.ActorInternational,
	"UNO": store.ActorInternational,
	"CRM": store.ActorCriminal,
}

// ACLED event type → category.
var acledCategories = map[string]string{
	"Battles":                     store.CategoryConflict,
	"Explosions/Remote violence":  store.CategoryConflict,
	"Violence against civilians":  store.CategoryConflict,
	"Riots":                       store.CategorySocial,
	"Protests":                    store.CategorySocial,
	"Strategic developments":      store.CategoryPolitical,
}

// ACLED event type → base tone. Conflict taxonomies carry no sentiment
// field, so tone is pinned by how inherently violent the event class is.
var acledTone = map[string]float64{
	"Battles":                     0.90,
	"Explosions/Remote violence":  0.90,
	"Violence against civilians":  0.95,
	"Riots":                       0.70,
	"Protests":                    0.55,
	"Strategic developments":      0.45,
}

// World Bank indicator prefix → category. Longest matching prefix wins.
var worldBankCategories = map[string]string{
	"FP.CPI":    store.CategoryEconomic, // inflation
	"NY.GDP":    store.CategoryEconomic,
	"PA.NUS":    store.CategoryEconomic, // exchange rate
	"FR.INR":    store.CategoryEconomic, // interest rates
	"SL.UEM":    store.CategorySocial,   // unemployment
	"SI.POV":    store.CategorySocial,   // poverty
	"SH.":       store.CategoryHealthcare,
	"SP.DYN":    store.CategoryHealthcare,
	"EG.":       store.CategoryEnergy,
	"EN.":       store.CategoryEnvironmental,
	"IC.BUS":    store.CategoryRegulatory,
	"IC.REG":    store.CategoryRegulatory,
	"IS.":       store.CategoryInfrastructure,
	"IT.":       store.CategoryInfrastructure,
	"TX.":       store.CategoryTrade,
	"TM.":       store.CategoryTrade,
	"NE.EXP":    store.CategoryTrade,
	"NE.IMP":    store.CategoryTrade,
	"DT.DOD":    store.CategoryEconomic, // external debt
	"BN.CAB":    store.CategoryEconomic, // current account
}

// Indicators where an increase is adverse. Anything not listed is
// treated as higher-is-better, so a decline is the adverse direction.
var worldBankHigherIsWorse = map[string]bool{
	"FP.CPI": true, // inflation
	"SL.UEM": true, // unemployment
	"SI.POV": true, // poverty headcount
	"DT.DOD": true, // external debt stock
	"SH.DYN": true, // mortality rates
	"FR.INR": true, // lending rates
}

// NewsAPI topic → category.
var newsTopics = map[string]string{
	"politics":       store.CategoryPolitical,
	"election":       store.CategoryPolitical,
	"sanctions":      store.CategoryRegulatory,
	"regulation":     store.CategoryRegulatory,
	"economy":        store.CategoryEconomic,
	"inflation":      store.CategoryEconomic,
	"currency":       store.CategoryEconomic,
	"trade":          store.CategoryTrade,
	"oil":            store.CategoryEnergy,
	"energy":         store.CategoryEnergy,
	"power":          store.CategoryInfrastructure,
	"infrastructure": store.CategoryInfrastructure,
	"health":         store.CategoryHealthcare,
	"epidemic":       store.CategoryHealthcare,
	"migration":      store.CategorySocial,
	"crime":          store.CategorySocial,
	"protest":        store.CategorySocial,
	"environment":    store.CategoryEnvironmental,
	"security":       store.CategoryConflict,
	"violence":       store.CategoryConflict,
}

// ReliefWeb disaster/report type → category.
var reliefWebCategories = map[string]string{
	"epidemic":       store.CategoryHealthcare,
	"health":         store.CategoryHealthcare,
	"flood":          store.CategoryEnvironmental,
	"drought":        store.CategoryEnvironmental,
	"earthquake":     store.CategoryEnvironmental,
	"storm":          store.CategoryEnvironmental,
	"wildfire":       store.CategoryEnvironmental,
	"displacement":   store.CategorySocial,
	"food security":  store.CategorySocial,
	"power outage":   store.CategoryInfrastructure,
	"infrastructure": store.CategoryInfrastructure,
}

// gdeltCategory resolves a CAMEO event code to a category via its
// two-digit root code.
func gdeltCategory(rootCode string) string {
	if cat, ok := gdeltCategories[rootCode]; ok {
		return cat
	}
	return store.CategoryPolitical
}

// worldBankCategory resolves an indicator code by longest prefix match.
func worldBankCategory(indicator string) string {
	best, bestLen := store.CategoryEconomic, 0
	for prefix, cat := range worldBankCategories {
		if strings.HasPrefix(indicator, prefix) && len(prefix) > bestLen {
			best, bestLen = cat, len(prefix)
		}
	}
	return best
}

// worldBankDirection maps a signed change in an indicator to a canonical
// direction, honoring indicator polarity.
func worldBankDirection(indicator string, change float64) string {
	if change == 0 {
		return store.DirectionNeutral
	}
	worse := false
	for prefix, hiBad := range worldBankHigherIsWorse {
		if strings.HasPrefix(indicator, prefix) {
			worse = hiBad
			break
		}
	}
	if (change > 0) == worse {
		return store.DirectionNegative
	}
	return store.DirectionPositive
}

func newsCategory(topic string) string {
	if cat, ok := newsTopics[strings.ToLower(strings.TrimSpace(topic))]; ok {
		return cat
	}
	return store.CategoryPolitical
}

func reliefWebCategory(kind string) string {
	if cat, ok := reliefWebCategories[strings.ToLower(strings.TrimSpace(kind))]; ok {
		return cat
	}
	return store.CategorySocial
}
