package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rasnes/dhis2-duckdb-framework/epiweek"
	"github.com/rasnes/dhis2-duckdb-framework/period"
	"github.com/spf13/cobra"
)

func newPeriodsCmd() *cobra.Command {
	var (
		year   int
		mode   string
		today  string
		system string
	)

	cmd := &cobra.Command{
		Use:   "periods",
		Short: "Prints the DHIS2 periods requested for a year and mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printPeriods(cmd.OutOrStdout(), year, mode, today, system, time.Now())
		},
	}

	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "Target year")
	cmd.Flags().StringVar(&mode, "mode", string(period.Routine), "Extraction mode: routine, mape or population")
	cmd.Flags().StringVar(&today, "today", "", "Resolve as of this date (YYYY-MM-DD) instead of today")
	cmd.Flags().StringVar(&system, "system", "cdc", "Epi-week system: cdc or iso")

	return cmd
}

func printPeriods(w io.Writer, year int, modeArg, todayArg, systemArg string, now time.Time) error {
	mode, err := period.ParseMode(modeArg)
	if err != nil {
		return err
	}

	system, err := epiweek.ParseSystem(systemArg)
	if err != nil {
		return err
	}

	if todayArg != "" {
		now, err = time.Parse(time.DateOnly, todayArg)
		if err != nil {
			return fmt.Errorf("invalid --today date: %w", err)
		}
	}

	periods := period.Resolver{System: system}.Resolve(year, mode, now)
	_, err = fmt.Fprintln(w, strings.Join(periods, ";"))
	return err
}
