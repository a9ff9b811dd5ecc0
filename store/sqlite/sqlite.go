/*
Package sqlite provides a SQLite-backed implementation of store.Store.

PURPOSE:
  Persists projects, BOQ activities and the KPI log. In production the same
  patterns apply to PostgreSQL with minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  The kpi_records table is a log:
  - No UPDATE statements on kpi_records
  - No DELETE statements on kpi_records (except Reset)
  - The record id is UNIQUE and doubles as the idempotency key

KEY TABLES:
  projects:    Reference data, keyed by full code (or code)
  activities:  BOQ lines, upserted by id
  kpi_records: Immutable daily planned/actual quantities

ENCODING:
  Decimals are stored as TEXT so no precision is lost. Dates are stored as
  YYYY-MM-DD TEXT, empty when unknown, so comparisons never involve a
  timezone.

INDEXES:
  - idx_kpi_project: narrows KPI reads by project code
  - idx_kpi_date:    cutoff queries

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  s, err := sqlite.New("./data/progress.db")
  if err != nil {
      log.Fatal(err)
  }
  defer s.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - store/store.go: Interface definition
  - store/memory:   In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/progress-engine/progress"
	"github.com/warp/progress-engine/store"
)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ store.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every new connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Projects (reference data)
	CREATE TABLE IF NOT EXISTS projects (
		project_key TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		full_code TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		project_type TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- BOQ activities
	CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		project_code TEXT NOT NULL,
		project_full_code TEXT NOT NULL DEFAULT '',
		activity_name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		zone_label TEXT NOT NULL DEFAULT '',
		total_units TEXT NOT NULL DEFAULT '0',
		unit TEXT NOT NULL DEFAULT '',
		rate TEXT NOT NULL DEFAULT '0',
		total_value TEXT NOT NULL DEFAULT '0',
		planned_start TEXT NOT NULL DEFAULT '',
		deadline TEXT NOT NULL DEFAULT '',
		calendar_duration INTEGER NOT NULL DEFAULT 0,
		actual_start TEXT NOT NULL DEFAULT '',
		actual_end TEXT NOT NULL DEFAULT '',
		legacy_start_json TEXT,
		legacy_end_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activities_project
		ON activities(project_full_code, project_code);

	-- KPI records (append-only log)
	CREATE TABLE IF NOT EXISTS kpi_records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		project_code TEXT NOT NULL,
		project_full_code TEXT NOT NULL DEFAULT '',
		activity_name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		zone_label TEXT NOT NULL DEFAULT '',
		input_type TEXT NOT NULL,
		quantity TEXT NOT NULL,
		value TEXT NOT NULL DEFAULT '0',
		rate TEXT NOT NULL DEFAULT '0',
		date TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_kpi_project
		ON kpi_records(project_full_code, project_code);
	CREATE INDEX IF NOT EXISTS idx_kpi_date
		ON kpi_records(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// PROJECTS
// =============================================================================

// SaveProjects upserts projects in one transaction.
func (s *Store) SaveProjects(ctx context.Context, projects []progress.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range projects {
		if store.ProjectKey(p) == "" {
			return fmt.Errorf("project %d: %w", i, store.ErrInvalidRecord)
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO projects (project_key, code, full_code, name, project_type, start_date, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(project_key) DO UPDATE SET
				code = excluded.code,
				full_code = excluded.full_code,
				name = excluded.name,
				project_type = excluded.project_type,
				start_date = excluded.start_date,
				updated_at = excluded.updated_at
		`
		now := nowString()
		for _, p := range projects {
			if _, err := tx.ExecContext(ctx, query,
				store.ProjectKey(p), p.Code, p.FullCode, p.Name, p.Type, p.StartDate.String(), now, now,
			); err != nil {
				return fmt.Errorf("failed to save project %s: %w", store.ProjectKey(p), err)
			}
		}
		return nil
	})
}

// ListProjects returns all projects ordered by key.
func (s *Store) ListProjects(ctx context.Context) ([]progress.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT code, full_code, name, project_type, start_date FROM projects ORDER BY project_key",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []progress.Project
	for rows.Next() {
		var p progress.Project
		var startDate string
		if err := rows.Scan(&p.Code, &p.FullCode, &p.Name, &p.Type, &startDate); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.StartDate = progress.ResolveDate(startDate)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// =============================================================================
// ACTIVITIES
// =============================================================================

const activityColumns = `id, project_code, project_full_code, activity_name, description, zone_label,
	total_units, unit, rate, total_value, planned_start, deadline, calendar_duration,
	actual_start, actual_end, legacy_start_json, legacy_end_json`

// SaveActivities upserts activities in one transaction.
func (s *Store) SaveActivities(ctx context.Context, activities []progress.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, a := range activities {
		if a.ID == "" {
			return fmt.Errorf("activity %d: %w", i, store.ErrInvalidRecord)
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, a := range activities {
			if err := saveActivity(ctx, tx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

func saveActivity(ctx context.Context, db execer, a progress.Activity) error {
	query := `
		INSERT INTO activities (` + activityColumns + `, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_code = excluded.project_code,
			project_full_code = excluded.project_full_code,
			activity_name = excluded.activity_name,
			description = excluded.description,
			zone_label = excluded.zone_label,
			total_units = excluded.total_units,
			unit = excluded.unit,
			rate = excluded.rate,
			total_value = excluded.total_value,
			planned_start = excluded.planned_start,
			deadline = excluded.deadline,
			calendar_duration = excluded.calendar_duration,
			actual_start = excluded.actual_start,
			actual_end = excluded.actual_end,
			legacy_start_json = excluded.legacy_start_json,
			legacy_end_json = excluded.legacy_end_json,
			updated_at = excluded.updated_at
	`
	now := nowString()
	_, err := db.ExecContext(ctx, query,
		a.ID, a.ProjectCode, a.ProjectFullCode, a.ActivityName, a.Description, a.ZoneLabel,
		a.TotalUnits.String(), a.Unit, a.Rate.String(), a.TotalValue.String(),
		a.PlannedStart.String(), a.Deadline.String(), a.CalendarDuration,
		a.ActualStart.String(), a.ActualEnd.String(),
		jsonStrings(a.LegacyStartDates), jsonStrings(a.LegacyEndDates),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save activity %s: %w", a.ID, err)
	}
	return nil
}

// GetActivity retrieves an activity by ID.
func (s *Store) GetActivity(ctx context.Context, id string) (progress.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+activityColumns+" FROM activities WHERE id = ?", id)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return progress.Activity{}, fmt.Errorf("%w: %s", store.ErrActivityNotFound, id)
	}
	return a, err
}

// ListActivities returns all activities in insertion order.
func (s *Store) ListActivities(ctx context.Context) ([]progress.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+activityColumns+" FROM activities ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var activities []progress.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(row scanner) (progress.Activity, error) {
	var (
		a                            progress.Activity
		totalUnits, rate, totalValue string
		plannedStart, deadline       string
		actualStart, actualEnd       string
		legacyStart, legacyEnd       sql.NullString
	)

	err := row.Scan(
		&a.ID, &a.ProjectCode, &a.ProjectFullCode, &a.ActivityName, &a.Description, &a.ZoneLabel,
		&totalUnits, &a.Unit, &rate, &totalValue, &plannedStart, &deadline, &a.CalendarDuration,
		&actualStart, &actualEnd, &legacyStart, &legacyEnd,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return a, err
	}
	if err != nil {
		return a, fmt.Errorf("failed to scan activity: %w", err)
	}

	a.TotalUnits = parseDecimal(totalUnits)
	a.Rate = parseDecimal(rate)
	a.TotalValue = parseDecimal(totalValue)
	a.PlannedStart = progress.ResolveDate(plannedStart)
	a.Deadline = progress.ResolveDate(deadline)
	a.ActualStart = progress.ResolveDate(actualStart)
	a.ActualEnd = progress.ResolveDate(actualEnd)
	a.LegacyStartDates = parseStrings(legacyStart)
	a.LegacyEndDates = parseStrings(legacyEnd)
	return a, nil
}

// =============================================================================
// KPI LOG (append-only)
// =============================================================================

// AppendKPI adds a record to the log.
func (s *Store) AppendKPI(ctx context.Context, kpi progress.KPIRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := store.ValidateKPIs([]progress.KPIRecord{kpi}); err != nil {
		return err
	}
	return s.appendKPI(ctx, s.db, kpi)
}

func (s *Store) appendKPI(ctx context.Context, db execer, k progress.KPIRecord) error {
	query := `
		INSERT INTO kpi_records
		(id, project_code, project_full_code, activity_name, description, zone_label,
		 input_type, quantity, value, rate, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		k.ID, k.ProjectCode, k.ProjectFullCode, k.ActivityName, k.Description, k.ZoneLabel,
		string(k.InputType), k.Quantity.String(), k.Value.String(), k.Rate.String(),
		k.Date.String(), nowString(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return store.ErrDuplicateKPI
		}
		return fmt.Errorf("failed to append kpi record: %w", err)
	}
	return nil
}

// AppendKPIs adds the new records of a batch atomically.
func (s *Store) AppendKPIs(ctx context.Context, kpis []progress.KPIRecord) (store.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := store.ValidateKPIs(kpis); err != nil {
		return store.BatchResult{}, err
	}

	var res store.BatchResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, k := range kpis {
			err := s.appendKPI(ctx, tx, k)
			switch {
			case errors.Is(err, store.ErrDuplicateKPI):
				res.Duplicates++
			case err != nil:
				return err
			default:
				res.Appended++
			}
		}
		return nil
	})
	if err != nil {
		return store.BatchResult{}, err
	}
	return res, nil
}

// ListKPIs returns the log in append order.
func (s *Store) ListKPIs(ctx context.Context) ([]progress.KPIRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_code, project_full_code, activity_name, description, zone_label,
		       input_type, quantity, value, rate, date
		FROM kpi_records
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query kpi records: %w", err)
	}
	defer rows.Close()

	var kpis []progress.KPIRecord
	for rows.Next() {
		var (
			k                     progress.KPIRecord
			inputType             string
			quantity, value, rate string
			date                  string
		)
		if err := rows.Scan(
			&k.ID, &k.ProjectCode, &k.ProjectFullCode, &k.ActivityName, &k.Description, &k.ZoneLabel,
			&inputType, &quantity, &value, &rate, &date,
		); err != nil {
			return nil, fmt.Errorf("failed to scan kpi record: %w", err)
		}
		k.InputType = progress.InputType(inputType)
		k.Quantity = parseDecimal(quantity)
		k.Value = parseDecimal(value)
		k.Rate = parseDecimal(rate)
		k.Date = progress.ResolveDate(date)
		kpis = append(kpis, k)
	}
	return kpis, rows.Err()
}

// KPIExists checks if a record ID is already logged.
func (s *Store) KPIExists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM kpi_records WHERE id = ?",
		id,
	).Scan(&count)

	return count > 0, err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"kpi_records", "activities", "projects"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Helper functions

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func jsonStrings(values []string) sql.NullString {
	if len(values) == 0 {
		return sql.NullString{}
	}
	data, _ := json.Marshal(values)
	return sql.NullString{String: string(data), Valid: true}
}

func parseStrings(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil
	}
	return out
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
