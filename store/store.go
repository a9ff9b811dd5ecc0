/*
Package store defines persistence for projects, BOQ activities and the KPI
log.

PURPOSE:
  The engine never touches storage. It is handed a Snapshot, a consistent
  copy of all three collections, and recomputes everything from it. This
  package defines the interface between that snapshot and the database.

KEY INTERFACES:
  Store: project and activity upserts, append-only KPI log, snapshot reads

APPEND-ONLY KPI LOG:
  KPI records are facts about a day's work. They are never updated or
  deleted individually:
  - AppendKPIs(): atomic multi-record write
  - The record ID is the idempotency key; re-sending a record is a no-op
    reported as a duplicate, so client retries are safe.
  Corrections are made by logging a compensating record.

ACTIVITIES AND PROJECTS:
  These are master data and are upserted: activities by ID, projects by
  FullCode (or Code when there is no sub-code).

IMPLEMENTATIONS:
  - store/memory: In-memory, for tests and the offline CLI
  - store/sqlite: SQLite with WAL

EXAMPLE:
  s, _ := sqlite.New("./data/progress.db")
  res, err := s.AppendKPIs(ctx, kpis)
  // res.Duplicates records were already logged

  snap, err := store.LoadSnapshot(ctx, s)
  derived := progress.DeriveAll(snap.Activities, snap.KPIs, ref, opts)
*/
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/warp/progress-engine/progress"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrActivityNotFound is returned when a referenced activity doesn't exist.
	ErrActivityNotFound = errors.New("activity not found")

	// ErrProjectNotFound is returned when a referenced project doesn't exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrDuplicateKPI is returned when a KPI record ID is already logged.
	ErrDuplicateKPI = errors.New("duplicate kpi record id")

	// ErrInvalidRecord is returned when a record lacks the key it is stored under.
	ErrInvalidRecord = errors.New("record has no storage key")
)

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrActivityNotFound) || errors.Is(err, ErrProjectNotFound)
}

// =============================================================================
// STORE - Interface for persistence
// =============================================================================

// BatchResult reports the outcome of an idempotent KPI batch.
type BatchResult struct {
	Appended   int
	Duplicates int
}

type Store interface {
	// SaveProjects upserts projects keyed by ProjectKey, atomically.
	SaveProjects(ctx context.Context, projects []progress.Project) error

	// ListProjects returns all projects ordered by key.
	ListProjects(ctx context.Context) ([]progress.Project, error)

	// SaveActivities upserts activities by ID, atomically.
	SaveActivities(ctx context.Context, activities []progress.Activity) error

	// GetActivity returns ErrActivityNotFound when id is unknown.
	GetActivity(ctx context.Context, id string) (progress.Activity, error)

	// ListActivities returns all activities in first-insertion order.
	ListActivities(ctx context.Context) ([]progress.Activity, error)

	// AppendKPI appends one record. Returns ErrDuplicateKPI if its ID exists.
	AppendKPI(ctx context.Context, kpi progress.KPIRecord) error

	// AppendKPIs appends the records whose IDs are not yet logged. Either
	// every new record is written or none is. IDs repeated inside the batch
	// count as duplicates after their first occurrence.
	AppendKPIs(ctx context.Context, kpis []progress.KPIRecord) (BatchResult, error)

	// ListKPIs returns the log in append order.
	ListKPIs(ctx context.Context) ([]progress.KPIRecord, error)

	// KPIExists checks whether a record ID is already logged.
	KPIExists(ctx context.Context, id string) (bool, error)

	// Reset clears all data (for testing/demo).
	Reset(ctx context.Context) error

	Close() error
}

// ProjectKey is the key a project is stored under.
func ProjectKey(p progress.Project) string {
	if full := strings.ToUpper(strings.TrimSpace(p.FullCode)); full != "" {
		return full
	}
	return strings.ToUpper(strings.TrimSpace(p.Code))
}

// ValidateKPIs rejects records that cannot be logged.
func ValidateKPIs(kpis []progress.KPIRecord) error {
	for i, k := range kpis {
		if strings.TrimSpace(k.ID) == "" {
			return fmt.Errorf("kpi %d: %w", i, ErrInvalidRecord)
		}
	}
	return nil
}

// =============================================================================
// SNAPSHOT - Everything the engine needs, loaded together
// =============================================================================

type Snapshot struct {
	Projects   []progress.Project
	Activities []progress.Activity
	KPIs       []progress.KPIRecord
}

// LoadSnapshot loads the three collections concurrently. The caller must
// keep writers out for the duration to get a consistent view.
func LoadSnapshot(ctx context.Context, s Store) (Snapshot, error) {
	var snap Snapshot
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		projects, err := s.ListProjects(ctx)
		if err != nil {
			return fmt.Errorf("loading projects: %w", err)
		}
		snap.Projects = projects
		return nil
	})
	g.Go(func() error {
		activities, err := s.ListActivities(ctx)
		if err != nil {
			return fmt.Errorf("loading activities: %w", err)
		}
		snap.Activities = activities
		return nil
	})
	g.Go(func() error {
		kpis, err := s.ListKPIs(ctx)
		if err != nil {
			return fmt.Errorf("loading kpis: %w", err)
		}
		snap.KPIs = kpis
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
