/*
scheduler.go - Periodic data-quality check

PURPOSE:
  Periodically re-derives the whole store and reports what needs a human:
  KPI records no activity claims, and activities whose logged quantities
  exceed their scope and were capped.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - Updates the unmatched-record gauge and logs a summary per run
  - Keeps the last report for display

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewDataQualityScheduler(handler, log.Logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ListUnmatchedKPIs endpoint (on-demand check)
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/progress-engine/progress"
)

// DataQualityReport is the outcome of one check.
type DataQualityReport struct {
	CheckedAt  time.Time `json:"checked_at"`
	AsOf       string    `json:"as_of"`
	Activities int       `json:"activities"`
	KPIRecords int       `json:"kpi_records"`
	Unmatched  int       `json:"unmatched"`
	OverScope  int       `json:"over_scope"`
	NoMatches  int       `json:"no_matches"`
}

// DataQualityScheduler runs the data-quality check on an interval.
type DataQualityScheduler struct {
	Handler       *Handler
	Logger        zerolog.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu sync.RWMutex
	last   DataQualityReport
}

// NewDataQualityScheduler creates a new scheduler.
func NewDataQualityScheduler(h *Handler, logger zerolog.Logger) *DataQualityScheduler {
	return &DataQualityScheduler{
		Handler:       h,
		Logger:        logger.With().Str("component", "scheduler").Logger(),
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler.
func (s *DataQualityScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled || s.CheckInterval <= 0 {
		s.Logger.Info().Msg("Data-quality scheduler disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.Info().Dur("interval", s.CheckInterval).Msg("Data-quality scheduler started")
}

// Stop stops the scheduler and waits for a running check to finish.
func (s *DataQualityScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.Logger.Info().Msg("Data-quality scheduler stopped")
}

func (s *DataQualityScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	// Run immediately on start
	s.checkAndLog(ctx)

	for {
		select {
		case <-ticker.C:
			s.checkAndLog(ctx)
		case <-stop:
			return
		}
	}
}

func (s *DataQualityScheduler) checkAndLog(ctx context.Context) {
	if _, err := s.RunNow(ctx); err != nil && ctx.Err() == nil {
		s.Logger.Error().Err(err).Msg("Data-quality check failed")
	}
}

// RunNow performs one check synchronously.
func (s *DataQualityScheduler) RunNow(ctx context.Context) (DataQualityReport, error) {
	h := s.Handler
	v, err := h.load(ctx)
	if err != nil {
		return DataQualityReport{}, err
	}

	opts := progress.Options{Today: h.Clock()}
	opts.AsOf = progress.DefaultAsOf(opts.Today)
	derived := h.deriveAll(v.Activities, v, opts)
	unmatched := progress.Unmatched(v.KPIs, v.Activities)
	h.Metrics.SetUnmatched(len(unmatched))

	report := DataQualityReport{
		CheckedAt:  time.Now().UTC(),
		AsOf:       opts.AsOf.String(),
		Activities: len(v.Activities),
		KPIRecords: len(v.KPIs),
		Unmatched:  len(unmatched),
	}
	for _, d := range derived {
		if d.Quantities.PlannedOverScope() || d.Quantities.ActualOverScope() {
			report.OverScope++
			s.Logger.Warn().Str("activity", d.ActivityID).Msg("Logged quantity exceeds total units")
		}
		if d.MatchedRecords == 0 {
			report.NoMatches++
		}
	}

	event := s.Logger.Info()
	if report.Unmatched > 0 || report.OverScope > 0 {
		event = s.Logger.Warn()
	}
	event.
		Int("activities", report.Activities).
		Int("unmatched", report.Unmatched).
		Int("over_scope", report.OverScope).
		Int("no_matches", report.NoMatches).
		Msg("Data-quality check complete")

	s.lastMu.Lock()
	s.last = report
	s.lastMu.Unlock()
	return report, nil
}

// Last returns the most recent report; zero before the first run.
func (s *DataQualityScheduler) Last() DataQualityReport {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}
