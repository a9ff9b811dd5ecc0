// Package memory provides an in-memory store.Store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/progress-engine/progress"
	"github.com/warp/progress-engine/store"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	projects map[string]progress.Project

	activities    map[string]progress.Activity
	activityOrder []string

	kpis   []progress.KPIRecord
	kpiIDs map[string]bool
}

var _ store.Store = (*Memory)(nil)

func New() *Memory {
	m := &Memory{}
	m.resetLocked()
	return m
}

func (m *Memory) resetLocked() {
	m.projects = make(map[string]progress.Project)
	m.activities = make(map[string]progress.Activity)
	m.activityOrder = nil
	m.kpis = nil
	m.kpiIDs = make(map[string]bool)
}

// =============================================================================
// PROJECTS
// =============================================================================

func (m *Memory) SaveProjects(_ context.Context, projects []progress.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate all first (atomic check)
	for i, p := range projects {
		if store.ProjectKey(p) == "" {
			return fmt.Errorf("project %d: %w", i, store.ErrInvalidRecord)
		}
	}
	for _, p := range projects {
		m.projects[store.ProjectKey(p)] = p
	}
	return nil
}

func (m *Memory) ListProjects(_ context.Context) ([]progress.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.projects))
	for k := range m.projects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]progress.Project, 0, len(keys))
	for _, k := range keys {
		result = append(result, m.projects[k])
	}
	return result, nil
}

// =============================================================================
// ACTIVITIES
// =============================================================================

func (m *Memory) SaveActivities(_ context.Context, activities []progress.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, a := range activities {
		if a.ID == "" {
			return fmt.Errorf("activity %d: %w", i, store.ErrInvalidRecord)
		}
	}
	for _, a := range activities {
		if _, exists := m.activities[a.ID]; !exists {
			m.activityOrder = append(m.activityOrder, a.ID)
		}
		m.activities[a.ID] = cloneActivity(a)
	}
	return nil
}

func (m *Memory) GetActivity(_ context.Context, id string) (progress.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.activities[id]
	if !ok {
		return progress.Activity{}, fmt.Errorf("%w: %s", store.ErrActivityNotFound, id)
	}
	return cloneActivity(a), nil
}

func (m *Memory) ListActivities(_ context.Context) ([]progress.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]progress.Activity, 0, len(m.activityOrder))
	for _, id := range m.activityOrder {
		result = append(result, cloneActivity(m.activities[id]))
	}
	return result, nil
}

// cloneActivity detaches the legacy slices from the caller's copy.
func cloneActivity(a progress.Activity) progress.Activity {
	a.LegacyStartDates = append([]string(nil), a.LegacyStartDates...)
	a.LegacyEndDates = append([]string(nil), a.LegacyEndDates...)
	return a
}

// =============================================================================
// KPI LOG - Append-only
// =============================================================================

// AppendKPI adds a single record. Append-only.
func (m *Memory) AppendKPI(_ context.Context, kpi progress.KPIRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := store.ValidateKPIs([]progress.KPIRecord{kpi}); err != nil {
		return err
	}
	if m.kpiIDs[kpi.ID] {
		return store.ErrDuplicateKPI
	}
	m.appendLocked(kpi)
	return nil
}

// AppendKPIs adds the new records of a batch atomically.
func (m *Memory) AppendKPIs(_ context.Context, kpis []progress.KPIRecord) (store.BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate all first (atomic check)
	if err := store.ValidateKPIs(kpis); err != nil {
		return store.BatchResult{}, err
	}

	var res store.BatchResult
	for _, k := range kpis {
		if m.kpiIDs[k.ID] {
			res.Duplicates++
			continue
		}
		m.appendLocked(k)
		res.Appended++
	}
	return res, nil
}

func (m *Memory) appendLocked(k progress.KPIRecord) {
	m.kpis = append(m.kpis, k)
	m.kpiIDs[k.ID] = true
}

func (m *Memory) ListKPIs(_ context.Context) ([]progress.KPIRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]progress.KPIRecord, len(m.kpis))
	copy(result, m.kpis)
	return result, nil
}

func (m *Memory) KPIExists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.kpiIDs[id], nil
}

// =============================================================================
// UTILITIES
// =============================================================================

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return nil
}

func (m *Memory) Close() error { return nil }
