/*
scenarios.go - Demo datasets for testing and demonstrations

PURPOSE:

	Provides pre-built BOQ datasets that populate the store with realistic
	activities and daily KPI logs. Dates are laid out relative to the
	server's today so a freshly loaded scenario always reads as live.

AVAILABLE SCENARIOS:

	pipeline-on-track: Trunk line works logged in step with the plan
	building-delayed:  Building package lagging, one activity not started
	data-quality:      Over-scope logs, orphans, base-code-only and undated rows

HOW SCENARIOS WORK:
 1. Build the dataset for the current today
 2. Reset database (clear all data)
 3. Upsert projects and activities
 4. Append the KPI records

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "building-delayed"}

ADDING NEW SCENARIOS:
 1. Write a builder: func(today progress.Date) ingest.Dataset
 2. Add it to the 'scenarios' slice with ID, name, description

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase
  - ingest/dataset.go: Dataset files with the same shape
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/hlog"
	"github.com/shopspring/decimal"

	"github.com/warp/progress-engine/ingest"
	"github.com/warp/progress-engine/progress"
	"github.com/warp/progress-engine/store"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes a demo dataset.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// LoadScenarioResponse reports what a scenario wrote.
type LoadScenarioResponse struct {
	Status     string      `json:"status"`
	Scenario   ScenarioDTO `json:"scenario"`
	Projects   int         `json:"projects"`
	Activities int         `json:"activities"`
	KPIRecords int         `json:"kpi_records"`
}

type scenario struct {
	ScenarioDTO
	build func(today progress.Date) ingest.Dataset
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "pipeline-on-track",
			Name:        "Pipeline On Track",
			Description: "Excavation and pipe laying on a trunk line sub-project, logged in step with the plan",
			Category:    "infrastructure",
		},
		build: pipelineOnTrack,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "building-delayed",
			Name:        "Building Delayed",
			Description: "Concrete and blockwork behind plan, roofing planned but not started",
			Category:    "building",
		},
		build: buildingDelayed,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "data-quality",
			Name:        "Data Quality",
			Description: "Over-scope logs, records for unknown work, base-code-only and undated records",
			Category:    "data-quality",
		},
		build: dataQuality,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns the available demo datasets.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	list := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		list[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, list)
}

// GetCurrentScenario returns the last loaded scenario, or null once the data
// has been reset or nothing was loaded.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.scenario
	h.mu.RUnlock()

	s, ok := findScenario(current)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, s.ScenarioDTO)
}

// LoadScenario resets the store and loads a demo dataset.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", nil)
		return
	}

	ds := s.build(h.Clock())

	h.mu.Lock()
	err := h.Store.Reset(r.Context())
	if err == nil {
		_, err = StoreDataset(r.Context(), h.Store, ds)
	}
	if err == nil {
		h.scenario = s.ID
	} else {
		h.scenario = ""
	}
	h.mu.Unlock()

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	hlog.FromRequest(r).Info().
		Str("scenario", s.ID).
		Int("activities", len(ds.Activities)).
		Int("kpis", len(ds.KPIs)).
		Msg("Scenario loaded")
	writeJSON(w, http.StatusOK, LoadScenarioResponse{
		Status:     "loaded",
		Scenario:   s.ScenarioDTO,
		Projects:   len(ds.Projects),
		Activities: len(ds.Activities),
		KPIRecords: len(ds.KPIs),
	})
}

// StoreDataset writes a dataset into s: projects and activities are upserted,
// KPI records appended idempotently.
func StoreDataset(ctx context.Context, s store.Store, ds ingest.Dataset) (store.BatchResult, error) {
	if err := s.SaveProjects(ctx, ds.Projects); err != nil {
		return store.BatchResult{}, fmt.Errorf("saving projects: %w", err)
	}
	if err := s.SaveActivities(ctx, ds.Activities); err != nil {
		return store.BatchResult{}, fmt.Errorf("saving activities: %w", err)
	}
	res, err := s.AppendKPIs(ctx, ds.KPIs)
	if err != nil {
		return store.BatchResult{}, fmt.Errorf("appending kpi records: %w", err)
	}
	return res, nil
}

// =============================================================================
// SCENARIO BUILDERS
// =============================================================================

// pipelineOnTrack: both activities started 20 days ago and finish in 20;
// actuals match the plan through yesterday.
func pipelineOnTrack(today progress.Date) ingest.Dataset {
	start := today.AddDays(-20)
	end := today.AddDays(20)

	excavation := boqLine("pl-exc-z2", "P5066-2", "Excavation", "Zone 2", 400, "m3", 50, start, end)
	pipe := boqLine("pl-pipe-z2", "P5066-2", "Pipe laying", "Zone 2", 800, "m", 120, start, end)

	var kpis []progress.KPIRecord
	kpis = append(kpis, daily(excavation, progress.InputPlanned, 10, start, 40)...)
	kpis = append(kpis, daily(excavation, progress.InputActual, 10, start, 20)...)
	kpis = append(kpis, daily(pipe, progress.InputPlanned, 20, start, 40)...)
	kpis = append(kpis, daily(pipe, progress.InputActual, 20, start, 20)...)

	return ingest.Dataset{
		Projects: []progress.Project{
			{Code: "P5066", FullCode: "P5066-2", Name: "Northern trunk line", Type: "infrastructure", StartDate: start},
		},
		Activities: []progress.Activity{excavation, pipe},
		KPIs:       kpis,
	}
}

// buildingDelayed: concrete runs at half the planned rate, blockwork stopped
// after ten days and roofing has a plan but no actuals.
func buildingDelayed(today progress.Date) ingest.Dataset {
	start := today.AddDays(-30)
	end := today.AddDays(10)

	concrete := boqLine("rv-conc-a", "P7100", "Concrete works", "Block A", 600, "m3", 150, start, end)
	blockwork := boqLine("rv-block-a", "P7100", "Blockwork", "Block A", 2000, "m2", 35, start.AddDays(10), end)
	roofing := boqLine("rv-roof-a", "P7100", "Roofing", "Block A", 800, "m2", 60, today.AddDays(-5), end)

	var kpis []progress.KPIRecord
	kpis = append(kpis, daily(concrete, progress.InputPlanned, 15, start, 40)...)
	kpis = append(kpis, daily(concrete, progress.InputActual, 8, start, 30)...)
	kpis = append(kpis, daily(blockwork, progress.InputPlanned, 70, start.AddDays(10), 30)...)
	kpis = append(kpis, daily(blockwork, progress.InputActual, 50, start.AddDays(10), 10)...)
	kpis = append(kpis, daily(roofing, progress.InputPlanned, 50, today.AddDays(-5), 15)...)

	return ingest.Dataset{
		Projects: []progress.Project{
			{Code: "P7100", FullCode: "P7100", Name: "Riverside offices", Type: "building", StartDate: start},
		},
		Activities: []progress.Activity{concrete, blockwork, roofing},
		KPIs:       kpis,
	}
}

// dataQuality: the trench log overshoots its scope, a record is filed
// against the base project code only, Zone 1 work has no BOQ line and one
// record carries no date.
func dataQuality(today progress.Date) ingest.Dataset {
	start := today.AddDays(-10)
	end := today.AddDays(10)

	trench := boqLine("sp-trench-z12", "P5066-12", "Trenching", "Zone 12", 100, "m", 40, start, end)

	var kpis []progress.KPIRecord
	kpis = append(kpis, daily(trench, progress.InputPlanned, 5, start, 20)...)
	kpis = append(kpis, daily(trench, progress.InputActual, 13, start, 10)...)

	baseOnly := record(trench, "sp-trench-base-001", progress.InputActual, 4, start)
	baseOnly.ProjectFullCode = ""

	orphan := record(trench, "sp-trench-z1-001", progress.InputActual, 6, start.AddDays(1))
	orphan.ZoneLabel = "Zone 1"

	backfill := record(trench, "sp-backfill-z12-001", progress.InputActual, 9, start.AddDays(2))
	backfill.ActivityName = "Backfilling"

	undated := record(trench, "sp-trench-undated", progress.InputActual, 25, progress.Date{})

	kpis = append(kpis, baseOnly, orphan, backfill, undated)

	return ingest.Dataset{
		Projects: []progress.Project{
			{Code: "P5066", FullCode: "P5066-12", Name: "Spur line", Type: "infrastructure", StartDate: start},
		},
		Activities: []progress.Activity{trench},
		KPIs:       kpis,
	}
}

func boqLine(id, fullCode, name, zone string, units int64, unit string, rate int64, start, deadline progress.Date) progress.Activity {
	total := decimal.NewFromInt(units)
	r := decimal.NewFromInt(rate)
	return progress.Activity{
		ID:               id,
		ProjectCode:      ingest.BaseCode(fullCode),
		ProjectFullCode:  fullCode,
		ActivityName:     name,
		ZoneLabel:        zone,
		TotalUnits:       total,
		Unit:             unit,
		Rate:             r,
		TotalValue:       total.Mul(r),
		PlannedStart:     start,
		Deadline:         deadline,
		CalendarDuration: progress.DaysBetween(start, deadline),
	}
}

// daily logs qty per day for days consecutive days from 'from'.
func daily(a progress.Activity, input progress.InputType, qty int64, from progress.Date, days int) []progress.KPIRecord {
	out := make([]progress.KPIRecord, 0, days)
	for i := 0; i < days; i++ {
		id := fmt.Sprintf("%s-%s-%03d", a.ID, input, i+1)
		out = append(out, record(a, id, input, qty, from.AddDays(i)))
	}
	return out
}

func record(a progress.Activity, id string, input progress.InputType, qty int64, date progress.Date) progress.KPIRecord {
	return progress.KPIRecord{
		ID:              id,
		ProjectCode:     a.ProjectCode,
		ProjectFullCode: a.ProjectFullCode,
		ActivityName:    a.ActivityName,
		ZoneLabel:       a.ZoneLabel,
		InputType:       input,
		Quantity:        decimal.NewFromInt(qty),
		Date:            date,
	}
}
