package cmd

import (
	"fmt"

	"github.com/rasnes/dhis2-duckdb-framework/utils"
	"github.com/spf13/cobra"
)

func newCustomCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "custom",
		Short: "Runs the custom analytics extraction for the configured data elements",
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

			path, err := p.RunCustom(cmd.Context())
			if err != nil {
				log.Error(fmt.Sprintf("Error running pipeline: %v", err))
				return err
			}
			log.Info("Custom pipeline completed without errors", "output", path)
			return nil
		},
	}
}
