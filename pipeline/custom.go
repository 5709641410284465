package pipeline

import (
	"context"
	"fmt"

	"github.com/rasnes/dhis2-duckdb-framework/constants"
	"github.com/rasnes/dhis2-duckdb-framework/extract"
	"github.com/rasnes/dhis2-duckdb-framework/period"
)

// RunCustom extracts the configured data elements for every month from
// custom.start_period up to and including the current month, and writes
// {output dir}/analytics.csv. It returns the written path, or "" when the
// start period lies in the future.
func (p *Pipeline) RunCustom(ctx context.Context) (string, error) {
	cfg := p.Config.Custom

	start, err := period.ParseMonth(cfg.StartPeriod)
	if err != nil {
		return "", fmt.Errorf("error reading custom.start_period: %w", err)
	}
	periods := period.MonthRange(start, period.CurrentMonth(p.timeProvider.Now()))
	if len(periods) == 0 {
		p.Logger.Warn(fmt.Sprintf("Start period %s is after the current month, skipping extract", start))
		return "", nil
	}
	if len(cfg.DataElements) == 0 {
		return "", fmt.Errorf("custom.data_elements is empty")
	}
	if len(cfg.OrgUnitLevels) == 0 {
		return "", fmt.Errorf("custom.org_unit_levels is empty")
	}

	p.Logger.Info(fmt.Sprintf("Extracting custom analytics (%s to %s)", periods[0], periods[len(periods)-1]),
		"data_elements", len(cfg.DataElements),
		"org_unit_levels", cfg.OrgUnitLevels)

	output := p.Config.WorkspacePath(cfg.OutputDir, constants.AnalyticsFile)
	req := extract.AnalyticsRequest{
		DataElements:  cfg.DataElements,
		Periods:       periods,
		OrgUnitLevels: cfg.OrgUnitLevels,
	}
	if _, err := p.extractToCSV(ctx, req, limitsFrom(cfg.Batch), output); err != nil {
		return "", err
	}

	if p.Archiver != nil {
		if _, err := p.Archiver.Archive(ctx, output, "custom"); err != nil {
			return output, fmt.Errorf("error archiving custom extract: %w", err)
		}
	}

	return output, nil
}
