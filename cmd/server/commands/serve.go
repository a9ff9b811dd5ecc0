package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/warp/progress-engine/api"
	"github.com/warp/progress-engine/store/sqlite"
)

type serveOptions struct {
	port          int
	dbPath        string
	rates         string
	checkInterval time.Duration
}

func newServeCmd(a *app) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Starts the HTTP API on the SQLite store.

A background data-quality check re-derives the store every --check-interval
and logs unmatched KPI records and over-scope activities. Pass 0 to disable.

On SIGINT/SIGTERM the server stops accepting connections, waits up to 30s
for active requests, closes the database and exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				opts.port = a.cfg.Port
			}
			opts.dbPath = orDefault(opts.dbPath, a.cfg.DBPath)
			opts.rates = orDefault(opts.rates, a.cfg.RateTable)
			return a.serve(cmd.Context(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.port, "port", 8080, "HTTP server port (overrides PORT)")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", `SQLite database path, ":memory:" for an in-memory database (overrides DB_PATH)`)
	cmd.Flags().StringVar(&opts.rates, "rates", "", "YAML rate table (overrides RATE_TABLE)")
	cmd.Flags().DurationVar(&opts.checkInterval, "check-interval", time.Hour, "data-quality check interval, 0 disables")
	return cmd
}

func (a *app) serve(ctx context.Context, opts serveOptions) error {
	// Initialize store
	s, err := sqlite.New(opts.dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer s.Close()

	rates, err := loadRates(opts.rates)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler := api.NewHandler(s, rates, api.NewMetrics(reg))
	router := api.NewRouter(handler, api.RouterConfig{
		Logger:         log.Logger,
		AllowedOrigins: a.cfg.CORSOrigins,
		Gatherer:       reg,
	})

	scheduler := api.NewDataQualityScheduler(handler, log.Logger)
	scheduler.CheckInterval = opts.checkInterval
	scheduler.Enabled = opts.checkInterval > 0
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", opts.port).
			Str("db", opts.dbPath).
			Msgf("Server starting on http://localhost:%d", opts.port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}
