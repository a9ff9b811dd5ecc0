/*
handlers.go - HTTP API handlers for the progress engine

PURPOSE:
  Exposes BOQ activities, KPI records and their derived progress via REST
  API. Handles HTTP request/response and JSON serialization, and delegates
  every computation to the progress package.

ENDPOINTS:
  Projects:
    GET    /api/projects                  List projects
    POST   /api/projects                  Upsert projects (loose JSON array)
    GET    /api/projects/{code}/summary   Value-weighted roll-up

  Activities:
    GET    /api/activities?project=       Activities with derived fields
    POST   /api/activities                Upsert activities (loose JSON array)
    GET    /api/activities/{id}           One activity with derived fields
    GET    /api/activities/{id}/kpis      Records matched to the activity

  KPI records:
    POST   /api/kpis                      Append records, idempotent by id
    GET    /api/kpis/unmatched?project=   Records no activity claims

  Report:
    GET    /api/report                    Every activity, project and orphan

  Scenarios:
    GET    /api/scenarios                 List demo datasets
    GET    /api/scenarios/current         Last loaded demo dataset
    POST   /api/scenarios/load            Reset and load a demo dataset

  Admin:
    POST   /api/reset                     Clear all data (dev only)

DERIVATION PARAMETERS:
  Read endpoints accept ?today=YYYY-MM-DD and ?as_of=YYYY-MM-DD. today
  defaults to the server's date, as_of to the day before today.
  /kpis also accepts ?mode=lenient to include base-code-only records.

ARCHITECTURE:
  Nothing derived is stored. Every read loads one consistent snapshot of
  the store and recomputes. Writes take the handler's lock exclusively so
  a snapshot never sees half of a batch.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed payloads, invalid query parameters
  - 404: Activity or project not found
  - 409: Duplicate record (single-record append)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Response data structures
  - scenarios.go: Demo dataset loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/warp/progress-engine/ingest"
	"github.com/warp/progress-engine/progress"
	"github.com/warp/progress-engine/store"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   store.Store
	Rates   ingest.RateTable
	Metrics *Metrics

	// Clock anchors "today" when a request does not pass one.
	Clock func() progress.Date

	// Serializes writes against snapshot reads.
	mu sync.RWMutex

	// Last loaded demo scenario, guarded by mu.
	scenario string
}

// NewHandler creates a new handler with the given store and rate table.
func NewHandler(s store.Store, rates ingest.RateTable, metrics *Metrics) *Handler {
	return &Handler{
		Store:   s,
		Rates:   rates,
		Metrics: metrics,
		Clock:   progress.Today,
	}
}

// view is one consistent read of the store plus the reference data built
// from it.
type view struct {
	store.Snapshot
	ref *progress.Reference
}

func (h *Handler) load(ctx context.Context) (view, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loadLocked(ctx)
}

func (h *Handler) loadLocked(ctx context.Context) (view, error) {
	snap, err := store.LoadSnapshot(ctx, h.Store)
	if err != nil {
		return view{}, err
	}
	return view{Snapshot: snap, ref: h.Rates.Reference(snap.Projects...)}, nil
}

// loadActivity reads one activity and the snapshot it is derived against.
func (h *Handler) loadActivity(ctx context.Context, id string) (progress.Activity, view, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	a, err := h.Store.GetActivity(ctx, id)
	if err != nil {
		return progress.Activity{}, view{}, err
	}
	v, err := h.loadLocked(ctx)
	return a, v, err
}

func (h *Handler) deriveAll(activities []progress.Activity, v view, opts progress.Options) []progress.Derived {
	start := time.Now()
	derived := progress.DeriveAll(activities, v.KPIs, v.ref, opts)
	h.Metrics.ObserveDerivation(derived, time.Since(start))
	return derived
}

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

// ListProjects returns all stored projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list projects", err)
		return
	}

	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = toProjectDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProjects upserts a batch of projects.
// POST /api/projects
func (h *Handler) CreateProjects(w http.ResponseWriter, r *http.Request) {
	records, ok := decodeBatch(w, r)
	if !ok {
		return
	}
	projects, skipped := ingest.ParseProjects(records)
	if rejectEmptyBatch(w, records, projects, skipped) {
		return
	}

	h.mu.Lock()
	err := h.Store.SaveProjects(r.Context(), projects)
	h.mu.Unlock()
	if err != nil {
		writeStoreError(w, "Failed to save projects", err)
		return
	}

	logSkipped(r, "projects", skipped)
	writeJSON(w, http.StatusOK, IngestResponse{
		Received: len(records),
		Stored:   len(projects),
		Skipped:  toSkippedDTOs(skipped),
	})
}

// GetProjectSummary rolls up one project's activities.
// GET /api/projects/{code}/summary
func (h *Handler) GetProjectSummary(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	opts, err := h.options(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date parameter", err)
		return
	}

	v, err := h.load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load data", err)
		return
	}

	activities := filterActivities(v.Activities, code)
	if len(activities) == 0 {
		if _, known := v.ref.Project(code, code); !known {
			writeStoreError(w, "Project not found", fmt.Errorf("%w: %s", store.ErrProjectNotFound, code))
			return
		}
	}

	derived := h.deriveAll(activities, v, opts)
	summary, err := progress.Summarize(code, activities, derived)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to summarize project", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary, opts.AsOf))
}

// =============================================================================
// ACTIVITY HANDLERS
// =============================================================================

// ListActivities returns activities with derived fields, optionally
// restricted to one project.
// GET /api/activities?project=P5066
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	opts, err := h.options(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date parameter", err)
		return
	}

	v, err := h.load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load data", err)
		return
	}

	activities := filterActivities(v.Activities, r.URL.Query().Get("project"))
	derived := h.deriveAll(activities, v, opts)

	dtos := make([]ActivityDTO, len(activities))
	for i, a := range activities {
		dtos[i] = toActivityDTO(a, &derived[i], v.ref)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateActivities upserts a batch of BOQ activities.
// POST /api/activities
func (h *Handler) CreateActivities(w http.ResponseWriter, r *http.Request) {
	records, ok := decodeBatch(w, r)
	if !ok {
		return
	}
	activities, skipped := ingest.ParseActivities(records)
	if rejectEmptyBatch(w, records, activities, skipped) {
		return
	}

	h.mu.Lock()
	err := h.Store.SaveActivities(r.Context(), activities)
	h.mu.Unlock()
	if err != nil {
		writeStoreError(w, "Failed to save activities", err)
		return
	}

	logSkipped(r, "activities", skipped)
	writeJSON(w, http.StatusOK, IngestResponse{
		Received: len(records),
		Stored:   len(activities),
		Skipped:  toSkippedDTOs(skipped),
	})
}

// GetActivity returns one activity with derived fields.
// GET /api/activities/{id}
func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	opts, err := h.options(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date parameter", err)
		return
	}

	a, v, err := h.loadActivity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, "Failed to get activity", err)
		return
	}

	derived := h.deriveAll([]progress.Activity{a}, v, opts)
	writeJSON(w, http.StatusOK, toActivityDTO(a, &derived[0], v.ref))
}

// GetActivityKPIs lists the records matched to an activity, flagging the
// ones counted at the cutoff.
// GET /api/activities/{id}/kpis?mode=lenient
func (h *Handler) GetActivityKPIs(w http.ResponseWriter, r *http.Request) {
	opts, err := h.options(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date parameter", err)
		return
	}
	mode := progress.MatchStrict
	switch m := r.URL.Query().Get("mode"); m {
	case "", "strict":
	case "lenient":
		mode = progress.MatchLenient
	default:
		writeError(w, http.StatusBadRequest, "Invalid mode (use strict or lenient)", nil)
		return
	}

	a, v, err := h.loadActivity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, "Failed to get activity", err)
		return
	}

	matched := progress.MatchRecords(a, v.KPIs, mode)
	counted := make(map[string]bool)
	for _, k := range progress.CountedRecords(matched, opts.AsOf) {
		counted[k.ID] = true
	}

	dtos := make([]KPIRecordDTO, len(matched))
	for i, k := range matched {
		dtos[i] = toKPIRecordDTO(k)
		c := counted[k.ID]
		dtos[i].Counted = &c
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// KPI HANDLERS
// =============================================================================

// CreateKPIs appends a batch of KPI records. Records whose id is already
// logged are counted as duplicates and left untouched, so retries are safe.
// POST /api/kpis
func (h *Handler) CreateKPIs(w http.ResponseWriter, r *http.Request) {
	records, ok := decodeBatch(w, r)
	if !ok {
		return
	}
	kpis, skipped := ingest.ParseKPIs(records)
	if rejectEmptyBatch(w, records, kpis, skipped) {
		return
	}

	h.mu.Lock()
	res, err := h.Store.AppendKPIs(r.Context(), kpis)
	h.mu.Unlock()
	if err != nil {
		writeStoreError(w, "Failed to append KPI records", err)
		return
	}

	logSkipped(r, "kpis", skipped)
	hlog.FromRequest(r).Info().
		Int("appended", res.Appended).
		Int("duplicates", res.Duplicates).
		Msg("KPI batch stored")

	writeJSON(w, http.StatusOK, IngestResponse{
		Received:   len(records),
		Stored:     res.Appended,
		Duplicates: res.Duplicates,
		Skipped:    toSkippedDTOs(skipped),
	})
}

// ListUnmatchedKPIs returns the records no activity claims.
// GET /api/kpis/unmatched?project=P5066
func (h *Handler) ListUnmatchedKPIs(w http.ResponseWriter, r *http.Request) {
	v, err := h.load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load data", err)
		return
	}

	unmatched := progress.Unmatched(v.KPIs, v.Activities)
	h.Metrics.SetUnmatched(len(unmatched))

	project := r.URL.Query().Get("project")
	dtos := make([]KPIRecordDTO, 0, len(unmatched))
	for _, k := range unmatched {
		if project != "" && !kpiInProject(k, project) {
			continue
		}
		dtos = append(dtos, toKPIRecordDTO(k))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REPORT
// =============================================================================

// GetReport derives the whole store in one response.
// GET /api/report
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	opts, err := h.options(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date parameter", err)
		return
	}

	v, err := h.load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load data", err)
		return
	}

	report, err := BuildReport(v.Snapshot, v.ref, opts, h.deriveAll(v.Activities, v, opts))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build report", err)
		return
	}
	h.Metrics.SetUnmatched(len(report.Unmatched))
	writeJSON(w, http.StatusOK, report)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ResetDatabase clears all data.
// POST /api/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	err := h.Store.Reset(r.Context())
	h.scenario = ""
	h.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	hlog.FromRequest(r).Warn().Msg("Database reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

// options reads ?today= and ?as_of=.
func (h *Handler) options(r *http.Request) (progress.Options, error) {
	q := r.URL.Query()
	return ParseOptions(q.Get("today"), q.Get("as_of"), h.Clock())
}

// ParseOptions builds derivation options from raw today/as-of values.
// Absent values fall back to now and the day before today; present but
// unparseable values are an error.
func ParseOptions(rawToday, rawAsOf string, now progress.Date) (progress.Options, error) {
	today := now
	if rawToday != "" {
		today = progress.ResolveDate(rawToday)
		if today.IsZero() {
			return progress.Options{}, fmt.Errorf("today=%q is not a date", rawToday)
		}
	}

	asOf := progress.DefaultAsOf(today)
	if rawAsOf != "" {
		asOf = progress.ResolveDate(rawAsOf)
		if asOf.IsZero() {
			return progress.Options{}, fmt.Errorf("as_of=%q is not a date", rawAsOf)
		}
	}

	return progress.Options{Today: today, AsOf: asOf}, nil
}

func filterActivities(activities []progress.Activity, project string) []progress.Activity {
	if project == "" {
		return activities
	}
	var out []progress.Activity
	for _, a := range activities {
		if progress.InProject(a, project) {
			out = append(out, a)
		}
	}
	return out
}

func kpiInProject(k progress.KPIRecord, project string) bool {
	return strings.EqualFold(strings.TrimSpace(k.ProjectFullCode), project) ||
		strings.EqualFold(strings.TrimSpace(k.ProjectCode), project)
}

func decodeBatch(w http.ResponseWriter, r *http.Request) ([]ingest.Record, bool) {
	records, err := ingest.DecodeRecords(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, false
	}
	return records, true
}

// rejectEmptyBatch answers 400 when a non-empty batch produced no valid row.
func rejectEmptyBatch[T any](w http.ResponseWriter, records []ingest.Record, parsed []T, skipped []error) bool {
	if len(records) == 0 || len(parsed) > 0 {
		return false
	}
	writeJSON(w, http.StatusBadRequest, struct {
		ErrorResponse
		Skipped []SkippedDTO `json:"skipped"`
	}{
		ErrorResponse: ErrorResponse{Error: "No valid records in batch"},
		Skipped:       toSkippedDTOs(skipped),
	})
	return true
}

func logSkipped(r *http.Request, kind string, skipped []error) {
	if len(skipped) == 0 {
		return
	}
	logger := hlog.FromRequest(r)
	for _, err := range skipped {
		logger.Warn().Err(err).Str("kind", kind).Msg("Skipped record")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeStoreError maps store and ingest errors to HTTP statuses.
func writeStoreError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case store.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateKPI):
		status = http.StatusConflict
	case errors.Is(err, store.ErrInvalidRecord), ingest.IsClientError(err):
		status = http.StatusBadRequest
	}
	writeError(w, status, message, err)
}
