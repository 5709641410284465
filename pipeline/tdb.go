package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/rasnes/dhis2-duckdb-framework/constants"
	"github.com/rasnes/dhis2-duckdb-framework/extract"
	"github.com/rasnes/dhis2-duckdb-framework/load"
	"github.com/rasnes/dhis2-duckdb-framework/period"
)

// Params are the run options of the routine dashboard pipeline.
type Params struct {
	Year            int
	DownloadRoutine bool
	DownloadMape    bool
	DownloadPop     bool
	RunNotebooks    bool
	Upload          bool
}

// Result lists what a dashboard run produced. Modes that were skipped or
// had no complete period yet have no entry in Extracts.
type Result struct {
	Extracts map[period.Mode]string
	Notebook string
}

// defaultOrgUnitLevel is the level extracted when tdb.org_unit_levels has no
// entry for a mode: health facilities for routine data, health areas otherwise.
func defaultOrgUnitLevel(mode period.Mode) int {
	if mode == period.Routine {
		return 5
	}
	return 4
}

// RunTDB runs the dashboard steps in order: routine, mape and population
// extracts, then the notebook, then the dashboard upload. The first failing
// step stops the run.
func (p *Pipeline) RunTDB(ctx context.Context, params Params) (*Result, error) {
	result := &Result{Extracts: map[period.Mode]string{}}

	steps := []struct {
		mode    period.Mode
		enabled bool
	}{
		{period.Routine, params.DownloadRoutine},
		{period.Mape, params.DownloadMape},
		{period.Population, params.DownloadPop},
	}

	for _, step := range steps {
		if !step.enabled {
			continue
		}
		path, err := p.ExtractAnalytics(ctx, step.mode, params.Year)
		if err != nil {
			return result, fmt.Errorf("error extracting %s analytics: %w", step.mode, err)
		}
		if path != "" {
			result.Extracts[step.mode] = path
		}
	}

	if params.RunNotebooks {
		output, err := p.runNotebook(ctx, params.Year, params.Upload)
		if err != nil {
			return result, err
		}
		result.Notebook = output
	}

	if params.Upload {
		if err := p.publish(ctx, params.Year, result.Extracts); err != nil {
			return result, err
		}
	}

	return result, nil
}

// ExtractAnalytics writes {raw data dir}/{mode}/{year}/analytics.csv and
// returns its path. When mode has no complete period for year yet, nothing
// is written and the returned path is empty.
func (p *Pipeline) ExtractAnalytics(ctx context.Context, mode period.Mode, year int) (string, error) {
	periods := p.Resolver.Resolve(year, mode, p.timeProvider.Now())
	if len(periods) == 0 {
		p.Logger.Warn(fmt.Sprintf("No complete %s period for %d yet, skipping extract", mode, year))
		return "", nil
	}

	dataElements, err := p.dataElements(mode)
	if err != nil {
		return "", err
	}

	if err := p.stageMetadata(ctx); err != nil {
		return "", err
	}

	level := p.Config.TDB.OrgUnitLevel(string(mode), defaultOrgUnitLevel(mode))
	orgUnits := p.orgUnitsAtLevel(level)
	if len(orgUnits) == 0 {
		return "", fmt.Errorf("no organisation units at level %d", level)
	}

	p.Logger.Info(fmt.Sprintf("Extracting analytics data for %s (%s to %s)", mode, periods[0], periods[len(periods)-1]),
		"year", year,
		"periods", len(periods),
		"org_unit_level", level)

	output := p.Config.TDBPath(p.Config.TDB.RawDataDir, string(mode), strconv.Itoa(year), constants.AnalyticsFile)
	req := extract.AnalyticsRequest{
		DataElements: dataElements,
		Periods:      periods,
		OrgUnits:     orgUnits,
	}
	if _, err := p.extractToCSV(ctx, req, limitsFrom(p.Config.TDB.Batch), output); err != nil {
		return "", err
	}

	if p.Archiver != nil {
		if _, err := p.Archiver.Archive(ctx, output, string(mode), strconv.Itoa(year)); err != nil {
			return output, fmt.Errorf("error archiving %s extract: %w", mode, err)
		}
	}

	return output, nil
}

// dataElements reads the ids of the data elements extracted at the
// frequency of mode from the mapping file.
func (p *Pipeline) dataElements(mode period.Mode) ([]string, error) {
	mappingPath := p.Config.TDBPath(p.Config.TDB.DEMappingFile)
	f, err := os.Open(mappingPath)
	if err != nil {
		return nil, fmt.Errorf("error opening data element mapping: %w", err)
	}
	defer f.Close()

	ids, err := load.ReadColumnWhere(f, constants.DEMappingIDCol, constants.DEMappingFreq, mode.Frequency())
	if err != nil {
		return nil, fmt.Errorf("error reading data element mapping %s: %w", mappingPath, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no %s data elements in %s", mode.Frequency(), mappingPath)
	}
	return ids, nil
}

func (p *Pipeline) runNotebook(ctx context.Context, year int, upload bool) (string, error) {
	if p.Notebook == nil {
		return "", errors.New("notebook runner is not configured")
	}

	output, err := p.Notebook.Run(ctx,
		p.Config.TDBPath(p.Config.TDB.InputNotebook),
		p.Config.TDBPath(p.Config.TDB.OutputNotebookDir),
		map[string]any{"ANNEE": year, "UPLOAD": upload},
	)
	if err != nil {
		return "", fmt.Errorf("error running dashboard notebook: %w", err)
	}
	return output, nil
}

// publish loads every extract of the run into the dashboard database. Without
// a configured database the upload is left to the notebook.
func (p *Pipeline) publish(ctx context.Context, year int, extracts map[period.Mode]string) error {
	if p.Publisher == nil {
		p.Logger.Info("No dashboard database configured, upload is handled by the notebook")
		return nil
	}

	var errs []error
	for _, mode := range period.Modes() {
		path, ok := extracts[mode]
		if !ok {
			continue
		}
		if _, err := p.Publisher.Publish(ctx, p.RunID, string(mode), year, path); err != nil {
			errs = append(errs, fmt.Errorf("error publishing %s extract: %w", mode, err))
		}
	}
	return errors.Join(errs...)
}
