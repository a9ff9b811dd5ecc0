package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/progress-engine/progress"
)

// =============================================================================
// RATE TABLE - YAML reference file
// =============================================================================
//
//	projects:
//	  - code: P5066
//	    full_code: P5066-2
//	    name: Northern trunk line
//	    type: pipeline
//	    start_date: 2025-01-15
//	rates:
//	  - activity: Excavation
//	    rate: 50
//	  - project: P5066-2
//	    activity: Excavation
//	    rate: 55

type RateTable struct {
	Projects []progress.Project
	Rates    []progress.RateEntry
}

type rateTableYAML struct {
	Projects []projectYAML `yaml:"projects"`
	Rates    []rateYAML    `yaml:"rates"`
}

type projectYAML struct {
	Code      string `yaml:"code"`
	FullCode  string `yaml:"full_code"`
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	StartDate string `yaml:"start_date"`
}

type rateYAML struct {
	Project  string          `yaml:"project"`
	Activity string          `yaml:"activity"`
	Rate     decimal.Decimal `yaml:"rate"`
}

// LoadRateTable reads a YAML rate table from disk.
func LoadRateTable(path string) (RateTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RateTable{}, fmt.Errorf("reading rate table: %w", err)
	}
	return ParseRateTable(data)
}

// ParseRateTable parses a YAML rate table. Unknown keys are rejected so a
// misspelled field does not silently drop a rate.
func ParseRateTable(data []byte) (RateTable, error) {
	var raw rateTableYAML
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return RateTable{}, fmt.Errorf("parsing rate table: %w", err)
	}

	var rt RateTable
	for i, p := range raw.Projects {
		code, full := p.Code, p.FullCode
		if err := resolveCodes("project", &code, &full); err != nil {
			return RateTable{}, fmt.Errorf("rate table project %d: %w", i, err)
		}
		rt.Projects = append(rt.Projects, progress.Project{
			Code:      code,
			FullCode:  full,
			Name:      p.Name,
			Type:      p.Type,
			StartDate: progress.ResolveDate(p.StartDate),
		})
	}
	for i, r := range raw.Rates {
		if r.Activity == "" {
			return RateTable{}, fmt.Errorf("rate table entry %d: %w", i, missing("rate", "activity"))
		}
		if r.Rate.IsNegative() {
			return RateTable{}, fmt.Errorf("rate table entry %d: %w", i, invalid("rate", "rate", r.Rate.String(), ErrNegativeQuantity))
		}
		rt.Rates = append(rt.Rates, progress.RateEntry{
			ProjectCode:  r.Project,
			ActivityName: r.Activity,
			Rate:         r.Rate,
		})
	}
	return rt, nil
}

// Reference merges the table with extra projects (typically the stored
// project list). Table entries come first and win on code collisions.
func (rt RateTable) Reference(extra ...progress.Project) *progress.Reference {
	projects := append(append([]progress.Project(nil), rt.Projects...), extra...)
	return progress.NewReference(projects, rt.Rates)
}
