package commands

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/warp/progress-engine/api"
	"github.com/warp/progress-engine/ingest"
	"github.com/warp/progress-engine/progress"
	"github.com/warp/progress-engine/store"
	"github.com/warp/progress-engine/store/memory"
)

func newDeriveCmd(a *app) *cobra.Command {
	var dataPath, asOf, today, rates string

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive progress for a dataset file and print a JSON report",
		Long: `Reads a dataset file ({"projects": [...], "activities": [...], "kpis": [...]}),
derives every activity and prints the report to stdout. Nothing is written
to the database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := api.ParseOptions(today, asOf, progress.Today())
			if err != nil {
				return err
			}
			rt, err := loadRates(orDefault(rates, a.cfg.RateTable))
			if err != nil {
				return err
			}
			ds, err := loadDataset(dataPath)
			if err != nil {
				return err
			}

			// The memory store applies the same upsert and idempotency rules
			// as the server.
			s := memory.New()
			if _, err := storeDataset(cmd, s, ds); err != nil {
				return err
			}
			snap, err := store.LoadSnapshot(cmd.Context(), s)
			if err != nil {
				return err
			}

			report, err := api.BuildReport(snap, rt.Reference(snap.Projects...), opts, nil)
			if err != nil {
				return err
			}
			log.Info().
				Int("activities", len(report.Activities)).
				Int("unmatched", len(report.Unmatched)).
				Str("as_of", report.AsOf).
				Msg("Derivation complete")

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "dataset JSON file")
	cmd.Flags().StringVar(&asOf, "as-of", "", "aggregation cutoff, YYYY-MM-DD (default: the day before today)")
	cmd.Flags().StringVar(&today, "today", "", "reference day for remaining-days arithmetic, YYYY-MM-DD")
	cmd.Flags().StringVar(&rates, "rates", "", "YAML rate table (overrides RATE_TABLE)")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func loadDataset(path string) (ingest.Dataset, error) {
	ds, err := ingest.LoadDataset(path)
	if err != nil {
		return ingest.Dataset{}, err
	}
	for _, err := range ds.Skipped {
		log.Warn().Err(err).Str("path", path).Msg("Skipped record")
	}
	return ds, nil
}

func storeDataset(cmd *cobra.Command, s store.Store, ds ingest.Dataset) (store.BatchResult, error) {
	res, err := api.StoreDataset(cmd.Context(), s, ds)
	if err != nil {
		return store.BatchResult{}, err
	}
	if res.Duplicates > 0 {
		log.Warn().Int("duplicates", res.Duplicates).Msg("KPI records already logged were ignored")
	}
	return res, nil
}
