package progress

import (
	"slices"
)

// =============================================================================
// KPI INDEX - Per-call lookup by project code
// =============================================================================
//
// A record can only match an activity when one of the record's codes equals
// one of the activity's codes, so bucketing records under both of their codes
// and taking the union for an activity yields every candidate. Matches still
// runs on each candidate; the index narrows the scan, it never decides.

type Index struct {
	records []KPIRecord
	byCode  map[string][]int
}

// NewIndex buckets kpis by normalized full and base project code.
func NewIndex(kpis []KPIRecord) *Index {
	idx := &Index{
		records: kpis,
		byCode:  make(map[string][]int),
	}
	for i, k := range kpis {
		full, base := normalizeCode(k.ProjectFullCode), normalizeCode(k.ProjectCode)
		if full != "" {
			idx.byCode[full] = append(idx.byCode[full], i)
		}
		if base != "" && base != full {
			idx.byCode[base] = append(idx.byCode[base], i)
		}
	}
	return idx
}

// candidates returns positions of records sharing a code with a, in input order.
func (idx *Index) candidates(a Activity) []int {
	full, base := normalizeCode(a.ProjectFullCode), normalizeCode(a.ProjectCode)
	var out []int
	out = append(out, idx.byCode[full]...)
	if base != full {
		out = append(out, idx.byCode[base]...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Match returns the records matching a in the given mode, in input order.
// The result is identical to MatchRecords over the full collection.
func (idx *Index) Match(a Activity, mode MatchMode) []KPIRecord {
	var out []KPIRecord
	for _, i := range idx.matchPositions(a, mode) {
		out = append(out, idx.records[i])
	}
	return out
}

func (idx *Index) matchPositions(a Activity, mode MatchMode) []int {
	var out []int
	for _, i := range idx.candidates(a) {
		if Matches(idx.records[i], a, mode) {
			out = append(out, i)
		}
	}
	return out
}

// Len returns the number of indexed records.
func (idx *Index) Len() int { return len(idx.records) }
