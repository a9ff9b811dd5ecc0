/*
Package commands wires the progress-engine command line.

COMMANDS:
  serve    HTTP API over the SQLite store
  derive   Offline derivation of a dataset file, printed as JSON
  import   Load a dataset file into the SQLite store

CONFIGURATION:
  config.Load() reads .env files and the environment (PORT, DB_PATH,
  DATA_PATH, LOGS_FOLDER, RATE_TABLE, CORS_ORIGINS, LOG_LEVEL). Flags
  override it.

EXAMPLES:
  # Serve with a file database
  progress-engine serve --db ./data/progress.db --rates rates.yaml

  # In-memory demo server checking data quality every five minutes
  progress-engine serve --db ":memory:" --check-interval 5m

  # Derive a snapshot file as of a given day
  progress-engine derive --data snapshot.json --as-of 2025-04-15
*/
package commands

import (
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/warp/progress-engine/config"
	"github.com/warp/progress-engine/ingest"
	"github.com/warp/progress-engine/logging"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	verbose   bool
	cfg       *config.AppConfig
	logCloser io.Closer
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "progress-engine",
		Short: "Reconciles BOQ activities with daily KPI records",
		Long: `Derives planned/actual quantities, progress percentages, status and
productivity for bill-of-quantities activities from a log of daily KPI
records.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg

			closer, err := logging.Init(logging.Options{
				Verbose: a.verbose,
				Level:   cfg.LogLevel,
				Dir:     cfg.LogDir,
				Console: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			a.logCloser = closer

			if len(cfg.EnvFiles) == 0 {
				log.Debug().Msg("No .env file found, relying on environment variables")
			}
			log.Debug().
				Strs("env_files", cfg.EnvFiles).
				Str("version", Version).
				Str("commit", Commit).
				Str("buildDate", BuildDate).
				Str("command", cmd.Name()).
				Msg("progress-engine starting")
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.logCloser != nil {
				return a.logCloser.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose logging")
	root.AddCommand(newServeCmd(a), newDeriveCmd(a), newImportCmd(a))
	return root
}

// Execute runs the command line.
func Execute() error {
	return NewRootCmd().Execute()
}

// orDefault returns flag unless it is empty.
func orDefault(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

func loadRates(path string) (ingest.RateTable, error) {
	if path == "" {
		return ingest.RateTable{}, nil
	}
	rt, err := ingest.LoadRateTable(path)
	if err != nil {
		return ingest.RateTable{}, err
	}
	log.Info().
		Str("path", path).
		Int("projects", len(rt.Projects)).
		Int("rates", len(rt.Rates)).
		Msg("Loaded rate table")
	return rt, nil
}
