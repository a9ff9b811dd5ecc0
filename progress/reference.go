package progress

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REFERENCE - Read-only lookup tables passed into the engine
// =============================================================================

// RateEntry is one row of the rate table. An empty ProjectCode applies to
// every project.
type RateEntry struct {
	ProjectCode  string
	ActivityName string
	Rate         decimal.Decimal
}

type rateKey struct {
	project  string
	activity string
}

// Reference holds project reference data and the rate table. It is built
// once per snapshot and never mutated; a nil *Reference is an empty table.
type Reference struct {
	projects map[string]Project
	rates    map[rateKey]decimal.Decimal
}

// NewReference indexes projects by full and base code. On a code collision
// the first project seen is kept.
func NewReference(projects []Project, rates []RateEntry) *Reference {
	ref := &Reference{
		projects: make(map[string]Project, len(projects)*2),
		rates:    make(map[rateKey]decimal.Decimal, len(rates)),
	}
	for _, p := range projects {
		if full := normalizeCode(p.FullCode); full != "" {
			if _, exists := ref.projects[full]; !exists {
				ref.projects[full] = p
			}
		}
		if base := normalizeCode(p.Code); base != "" {
			if _, exists := ref.projects[base]; !exists {
				ref.projects[base] = p
			}
		}
	}
	for _, r := range rates {
		if !r.Rate.IsPositive() {
			continue
		}
		ref.rates[rateKey{project: normalizeCode(r.ProjectCode), activity: normalizeName(r.ActivityName)}] = r.Rate
	}
	return ref
}

// Project finds the owning project, by full code first, then base code.
func (r *Reference) Project(fullCode, baseCode string) (Project, bool) {
	if r == nil {
		return Project{}, false
	}
	for _, c := range []string{fullCode, baseCode} {
		if code := normalizeCode(c); code != "" {
			if p, ok := r.projects[code]; ok {
				return p, true
			}
		}
	}
	return Project{}, false
}

// Projects returns the distinct projects in the table, ordered by base code
// then full code.
func (r *Reference) Projects() []Project {
	if r == nil {
		return nil
	}
	seen := make(map[Project]bool)
	var out []Project
	for _, p := range r.projects {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b Project) int {
		if c := cmp.Compare(normalizeCode(a.Code), normalizeCode(b.Code)); c != 0 {
			return c
		}
		return cmp.Compare(normalizeCode(a.FullCode), normalizeCode(b.FullCode))
	})
	return out
}

// ProjectType returns the project's type, or "" when unknown.
func (r *Reference) ProjectType(fullCode, baseCode string) string {
	p, _ := r.Project(fullCode, baseCode)
	return p.Type
}

// Rate looks up a reference rate for an activity, project-specific entries
// first, then project-independent ones.
func (r *Reference) Rate(projectCode, activityName string) (decimal.Decimal, bool) {
	if r == nil {
		return decimal.Zero, false
	}
	name := normalizeName(activityName)
	if rate, ok := r.rates[rateKey{project: normalizeCode(projectCode), activity: name}]; ok {
		return rate, true
	}
	rate, ok := r.rates[rateKey{activity: name}]
	return rate, ok
}
