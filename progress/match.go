package progress

import (
	"strings"
)

// =============================================================================
// KEY MATCHER - Does a KPI record belong to a BOQ activity?
// =============================================================================

type MatchMode int

const (
	// MatchStrict requires an exact full-code match for sub-coded activities.
	// Aggregation always uses this mode.
	MatchStrict MatchMode = iota

	// MatchLenient also accepts records that carry only a base code.
	MatchLenient
)

func (m MatchMode) String() string {
	if m == MatchLenient {
		return "lenient"
	}
	return "strict"
}

// Matches reports whether kpi belongs to activity. All three criteria must
// hold: project identity, activity name and zone.
func Matches(kpi KPIRecord, activity Activity, mode MatchMode) bool {
	if !ProjectMatches(kpi, activity, mode) {
		return false
	}
	if !NamesMatch(activity.ActivityName, kpi.ActivityName) {
		return false
	}
	return ZonesMatch(
		EffectiveZone(activity.ZoneLabel, activity.Description, activity.ProjectFullCode, activity.ProjectCode),
		EffectiveZone(kpi.ZoneLabel, kpi.Description, kpi.ProjectFullCode, kpi.ProjectCode),
	)
}

// MatchRecords returns the records that belong to activity, in input order.
func MatchRecords(activity Activity, kpis []KPIRecord, mode MatchMode) []KPIRecord {
	var out []KPIRecord
	for _, k := range kpis {
		if Matches(k, activity, mode) {
			out = append(out, k)
		}
	}
	return out
}

// ProjectMatches applies the project-identity rule.
//
// An activity whose full code carries a sub-code ("P5066-12") only accepts
// records with that exact full code, so sub-projects sharing a base code
// never cross-link. Otherwise any non-empty pairing of base and full codes
// is enough.
func ProjectMatches(kpi KPIRecord, activity Activity, mode MatchMode) bool {
	aFull, aBase := normalizeCode(activity.ProjectFullCode), normalizeCode(activity.ProjectCode)
	kFull, kBase := normalizeCode(kpi.ProjectFullCode), normalizeCode(kpi.ProjectCode)

	if hasSubCode(aFull, aBase) {
		if kFull == aFull {
			return true
		}
		if mode == MatchLenient && kFull == "" && kBase != "" {
			return kBase == aFull || kBase == aBase
		}
		return false
	}

	for _, a := range []string{aFull, aBase} {
		if a == "" {
			continue
		}
		if a == kFull || a == kBase {
			return true
		}
	}
	return false
}

// NamesMatch compares activity names: trimmed, case-insensitive equality or
// containment in either direction. Both names are required.
func NamesMatch(activityName, kpiName string) bool {
	a, k := normalizeName(activityName), normalizeName(kpiName)
	if a == "" || k == "" {
		return false
	}
	return a == k || strings.Contains(a, k) || strings.Contains(k, a)
}

// hasSubCode reports whether a full code carries a "-<sub>" suffix. A base
// code that itself contains '-' is not treated as a sub-code.
func hasSubCode(full, base string) bool {
	if !strings.Contains(full, "-") {
		return false
	}
	return full != base
}

func projectIdentity(full, base string) string {
	if f := normalizeCode(full); f != "" {
		return f
	}
	return normalizeCode(base)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
