package api

import (
	"github.com/warp/progress-engine/progress"
	"github.com/warp/progress-engine/store"
)

// ReportDTO is a full derivation of one snapshot: every activity, a summary
// per project and the records nothing claims.
type ReportDTO struct {
	Today      string         `json:"today"`
	AsOf       string         `json:"as_of"`
	Activities []ActivityDTO  `json:"activities"`
	Projects   []SummaryDTO   `json:"projects"`
	Unmatched  []KPIRecordDTO `json:"unmatched"`
}

// BuildReport derives snap as of opts. derived may be nil, in which case the
// activities are derived here; otherwise it must be aligned with
// snap.Activities.
func BuildReport(snap store.Snapshot, ref *progress.Reference, opts progress.Options, derived []progress.Derived) (ReportDTO, error) {
	if derived == nil {
		derived = progress.DeriveAll(snap.Activities, snap.KPIs, ref, opts)
	}

	report := ReportDTO{
		Today:      opts.Today.String(),
		AsOf:       opts.AsOf.String(),
		Activities: make([]ActivityDTO, len(snap.Activities)),
		Projects:   []SummaryDTO{},
		Unmatched:  []KPIRecordDTO{},
	}
	for i, a := range snap.Activities {
		report.Activities[i] = toActivityDTO(a, &derived[i], ref)
	}

	for _, code := range projectCodes(snap.Activities) {
		summary, err := progress.Summarize(code, snap.Activities, derived)
		if err != nil {
			return ReportDTO{}, err
		}
		report.Projects = append(report.Projects, toSummaryDTO(summary, opts.AsOf))
	}

	for _, k := range progress.Unmatched(snap.KPIs, snap.Activities) {
		report.Unmatched = append(report.Unmatched, toKPIRecordDTO(k))
	}
	return report, nil
}

// projectCodes lists the projects activities belong to, by full code when
// one is set, in order of first appearance.
func projectCodes(activities []progress.Activity) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, a := range activities {
		code := a.ProjectFullCode
		if code == "" {
			code = a.ProjectCode
		}
		key := store.ProjectKey(progress.Project{Code: code})
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		codes = append(codes, code)
	}
	return codes
}
