package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/warp/progress-engine/store/sqlite"
)

func newImportCmd(a *app) *cobra.Command {
	var dataPath, dbPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a dataset file into the SQLite store",
		Long: `Upserts the dataset's projects and activities and appends its KPI records.
Records whose id is already logged are skipped, so re-importing a file is
safe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath = orDefault(dbPath, a.cfg.DBPath)

			ds, err := loadDataset(dataPath)
			if err != nil {
				return err
			}

			s, err := sqlite.New(dbPath)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer s.Close()

			res, err := storeDataset(cmd, s, ds)
			if err != nil {
				return err
			}

			log.Info().
				Str("db", dbPath).
				Int("projects", len(ds.Projects)).
				Int("activities", len(ds.Activities)).
				Int("appended", res.Appended).
				Msg("Import complete")
			fmt.Fprintf(cmd.OutOrStdout(),
				"imported %d projects, %d activities, %d kpi records (%d duplicates, %d rows skipped)\n",
				len(ds.Projects), len(ds.Activities), res.Appended, res.Duplicates, len(ds.Skipped))
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "dataset JSON file")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides DB_PATH)")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}
