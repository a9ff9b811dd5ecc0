package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/warp/progress-engine/progress"
)

// =============================================================================
// JSON PAYLOADS
// =============================================================================

// DecodeRecords reads a JSON array of objects. A single object is accepted as
// a one-element batch. Numbers are kept as json.Number so no precision is lost
// before they become decimals.
func DecodeRecords(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	return decodeRecords(data)
}

func decodeRecords(data []byte) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if data[0] == '{' {
		var one Record
		if err := dec.Decode(&one); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return []Record{one}, nil
	}

	var many []Record
	if err := dec.Decode(&many); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return many, nil
}

// =============================================================================
// DATASET FILES
// =============================================================================

// Dataset is a parsed snapshot file:
//
//	{"projects": [...], "activities": [...], "kpis": [...]}
type Dataset struct {
	Projects   []progress.Project
	Activities []progress.Activity
	KPIs       []progress.KPIRecord

	// Rows that could not be parsed, as *RecordError values
	Skipped []error
}

type rawDataset struct {
	Projects   json.RawMessage `json:"projects"`
	Activities json.RawMessage `json:"activities"`
	KPIs       json.RawMessage `json:"kpis"`
}

// LoadDataset reads and parses a dataset file.
func LoadDataset(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()
	return DecodeDataset(f)
}

// DecodeDataset parses a dataset document. Bad rows are collected in
// Dataset.Skipped; only a malformed document is an error.
func DecodeDataset(r io.Reader) (Dataset, error) {
	var raw rawDataset
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Dataset{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	projects, err := decodeRecords(raw.Projects)
	if err != nil {
		return Dataset{}, fmt.Errorf("projects: %w", err)
	}
	activities, err := decodeRecords(raw.Activities)
	if err != nil {
		return Dataset{}, fmt.Errorf("activities: %w", err)
	}
	kpis, err := decodeRecords(raw.KPIs)
	if err != nil {
		return Dataset{}, fmt.Errorf("kpis: %w", err)
	}

	var ds Dataset
	var skipped []error

	ds.Projects, skipped = ParseProjects(projects)
	ds.Skipped = append(ds.Skipped, prefixed("projects", skipped)...)

	ds.Activities, skipped = ParseActivities(activities)
	ds.Skipped = append(ds.Skipped, prefixed("activities", skipped)...)

	ds.KPIs, skipped = ParseKPIs(kpis)
	ds.Skipped = append(ds.Skipped, prefixed("kpis", skipped)...)

	return ds, nil
}

func prefixed(section string, errs []error) []error {
	out := make([]error, 0, len(errs))
	for _, err := range errs {
		out = append(out, fmt.Errorf("%s: %w", section, err))
	}
	return out
}
