package cmd

import (
	"fmt"
	"time"

	"github.com/rasnes/dhis2-duckdb-framework/pipeline"
	"github.com/rasnes/dhis2-duckdb-framework/utils"
	"github.com/spf13/cobra"
)

func newTDBCmd() *cobra.Command {
	params := pipeline.Params{}

	cmd := &cobra.Command{
		Use:   "tdb",
		Short: "Runs the routine dashboard (TdB) extraction pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}

			p, cleanup, err := newPipeline(cmd.Context(), cfg, log, utils.RealTimeProvider{})
			if err != nil {
				return fmt.Errorf("error creating pipeline: %w", err)
			}
			defer cleanup()

			result, err := p.RunTDB(cmd.Context(), params)
			if err != nil {
				log.Error(fmt.Sprintf("Error running pipeline: %v", err))
				return err
			}
			log.Info(fmt.Sprintf("Dashboard pipeline completed without errors. Wrote %d extracts", len(result.Extracts)),
				"year", params.Year,
				"notebook", result.Notebook)
			return nil
		},
	}

	cmd.Flags().IntVar(&params.Year, "year", time.Now().Year(), "Target year")
	cmd.Flags().BoolVar(&params.DownloadRoutine, "download-routine", true, "Extract monthly routine data")
	cmd.Flags().BoolVar(&params.DownloadMape, "download-mape", true, "Extract weekly (epi-week) MAPE data")
	cmd.Flags().BoolVar(&params.DownloadPop, "download-pop", true, "Extract yearly population data")
	cmd.Flags().BoolVar(&params.RunNotebooks, "run-notebooks", true, "Run the dashboard notebook after extraction")
	cmd.Flags().BoolVar(&params.Upload, "upload", true, "Upload the results to the dashboard database")

	return cmd
}
