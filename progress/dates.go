package progress

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// DATE RESOLVER - Parse loose date fields and walk fallback chains
// =============================================================================
//
// BOQ activities are often entered without dates. Once the daily KPI log
// exists it is the more reliable source, so KPI-derived dates win over the
// static activity fields.

var (
	isoDatePrefix = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:$|[T ])`)
	usDate        = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})(?:$|[T ])`)
)

// lastResortLayouts are tried only when the component patterns fail.
var lastResortLayouts = []string{
	time.RFC1123,
	time.RFC1123Z,
	"2006/01/02",
	"02-Jan-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ResolveDate extracts a calendar date from a loosely typed value. Strings
// in YYYY-MM-DD[THH:MM:SS...] or MM/DD/YYYY form are read component by
// component so no timezone conversion can move the day. Returns the zero
// Date when nothing usable is found.
func ResolveDate(candidate any) Date {
	switch v := candidate.(type) {
	case nil:
		return Date{}
	case Date:
		return v
	case *Date:
		if v == nil {
			return Date{}
		}
		return *v
	case time.Time:
		return DateOf(v)
	case *time.Time:
		if v == nil {
			return Date{}
		}
		return DateOf(*v)
	case string:
		return parseDateString(v)
	case *string:
		if v == nil {
			return Date{}
		}
		return parseDateString(*v)
	default:
		return Date{}
	}
}

func parseDateString(raw string) Date {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Date{}
	}
	if m := isoDatePrefix.FindStringSubmatch(s); m != nil {
		return componentDate(m[1], m[2], m[3])
	}
	if m := usDate.FindStringSubmatch(s); m != nil {
		return componentDate(m[3], m[1], m[2])
	}
	for _, layout := range lastResortLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t)
		}
	}
	return Date{}
}

// componentDate validates the parts by round-tripping through time.Date so
// "2025-02-30" is rejected instead of normalized into March.
func componentDate(y, m, d string) Date {
	year, err1 := strconv.Atoi(y)
	month, err2 := strconv.Atoi(m)
	day, err3 := strconv.Atoi(d)
	if err1 != nil || err2 != nil || err3 != nil {
		return Date{}
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return Date{}
	}
	date := NewDate(year, time.Month(month), day)
	if date.Month() != time.Month(month) || date.Day() != day {
		return Date{}
	}
	return date
}

// firstParseable returns the first raw value that resolves to a date.
func firstParseable(raws []string) Date {
	for _, r := range raws {
		if d := ResolveDate(r); !d.IsZero() {
			return d
		}
	}
	return Date{}
}

// =============================================================================
// ACTIVITY DATE CHAINS
// =============================================================================

// ResolvePlannedStart walks the planned-start chain:
//  1. earliest date among matched planned KPI records
//  2. the activity's planned start
//  3. deadline minus calendar duration
//  4. the owning project's start date
//  5. legacy start fields
func ResolvePlannedStart(activity Activity, kpis []KPIRecord, ref *Reference) Date {
	return plannedStart(activity, MatchRecords(activity, kpis, MatchStrict), ref)
}

// ResolvePlannedEnd walks the planned-end chain: deadline, resolved planned
// start plus calendar duration, latest matched planned KPI date, legacy end
// fields.
func ResolvePlannedEnd(activity Activity, kpis []KPIRecord, ref *Reference) Date {
	return plannedEnd(activity, MatchRecords(activity, kpis, MatchStrict), ref)
}

// ResolveActualStart returns the earliest matched actual KPI date, falling
// back to an explicit actual start on the activity.
func ResolveActualStart(activity Activity, kpis []KPIRecord) Date {
	return actualStart(activity, MatchRecords(activity, kpis, MatchStrict))
}

// ResolveActualEnd returns the latest matched actual KPI date, falling back
// to an explicit actual end on the activity.
func ResolveActualEnd(activity Activity, kpis []KPIRecord) Date {
	return actualEnd(activity, MatchRecords(activity, kpis, MatchStrict))
}

// The lower-case variants take records already matched to the activity.

func plannedStart(a Activity, matched []KPIRecord, ref *Reference) Date {
	if d := earliestOf(matched, InputPlanned); !d.IsZero() {
		return d
	}
	if !a.PlannedStart.IsZero() {
		return a.PlannedStart
	}
	if !a.Deadline.IsZero() && a.CalendarDuration > 0 {
		return a.Deadline.AddDays(-a.CalendarDuration)
	}
	if p, ok := ref.Project(a.ProjectFullCode, a.ProjectCode); ok && !p.StartDate.IsZero() {
		return p.StartDate
	}
	return firstParseable(a.LegacyStartDates)
}

func plannedEnd(a Activity, matched []KPIRecord, ref *Reference) Date {
	if !a.Deadline.IsZero() {
		return a.Deadline
	}
	if a.CalendarDuration > 0 {
		if start := plannedStart(a, matched, ref); !start.IsZero() {
			return start.AddDays(a.CalendarDuration)
		}
	}
	if d := latestOf(matched, InputPlanned); !d.IsZero() {
		return d
	}
	return firstParseable(a.LegacyEndDates)
}

func actualStart(a Activity, matched []KPIRecord) Date {
	return FirstDate(earliestOf(matched, InputActual), a.ActualStart)
}

func actualEnd(a Activity, matched []KPIRecord) Date {
	return FirstDate(latestOf(matched, InputActual), a.ActualEnd)
}

func earliestOf(records []KPIRecord, input InputType) Date {
	var out Date
	for _, r := range records {
		if r.InputType == input {
			out = EarliestDate(out, r.Date)
		}
	}
	return out
}

func latestOf(records []KPIRecord, input InputType) Date {
	var out Date
	for _, r := range records {
		if r.InputType == input {
			out = LatestDate(out, r.Date)
		}
	}
	return out
}

// DefaultAsOf is the aggregation cutoff when none is given: the end of the
// day before today. Today's entries are never counted as committed progress.
func DefaultAsOf(today Date) Date {
	return today.AddDays(-1)
}
