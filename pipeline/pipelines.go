package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/oklog/ulid/v2"
	"github.com/rasnes/dhis2-duckdb-framework/config"
	"github.com/rasnes/dhis2-duckdb-framework/epiweek"
	"github.com/rasnes/dhis2-duckdb-framework/extract"
	"github.com/rasnes/dhis2-duckdb-framework/load"
	"github.com/rasnes/dhis2-duckdb-framework/notebook"
	"github.com/rasnes/dhis2-duckdb-framework/period"
	"github.com/rasnes/dhis2-duckdb-framework/template"
	"github.com/rasnes/dhis2-duckdb-framework/utils"
	"github.com/sourcegraph/conc/iter"
)

const defaultMaxConcurrency = 4

type NotebookRunner interface {
	Run(ctx context.Context, input, outputDir string, params map[string]any) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, runID, mode string, year int, csvPath string) (int64, error)
}

type Archiver interface {
	Archive(ctx context.Context, file string, parts ...string) (string, error)
}

// Pipeline extracts DHIS2 analytics into CSV files. Notebook, Publisher and
// Archiver are optional; a nil value disables the corresponding step.
type Pipeline struct {
	DuckDB      *load.DuckDB
	DHIS2Client *extract.DHIS2Client
	Notebook    NotebookRunner
	Publisher   Publisher
	Archiver    Archiver
	Logger      *slog.Logger
	Config      *config.Config
	Resolver    period.Resolver
	RunID       string

	sqlDir         string
	timeProvider   utils.TimeProvider
	orgUnits       []extract.OrgUnit
	metadataLoaded bool
}

func NewPipeline(config *config.Config, logger *slog.Logger, timeProvider utils.TimeProvider) (*Pipeline, error) {
	system, err := epiweek.ParseSystem(config.TDB.EpiWeekSystem)
	if err != nil {
		return nil, fmt.Errorf("error reading tdb.epi_week_system: %w", err)
	}

	sqlDir, err := utils.FindDir("sql")
	if err != nil {
		return nil, err
	}

	httpClient, err := extract.NewDHIS2Client(config, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating DHIS2 HTTP client: %w", err)
	}

	db, err := load.NewDuckDB(config, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating DB database: %w", err)
	}

	runID := ulid.Make().String()

	return &Pipeline{
		DuckDB:       db,
		DHIS2Client:  httpClient,
		Notebook:     notebook.NewRunner(config.Notebook.Executable, logger, timeProvider),
		Logger:       logger.With("run_id", runID),
		Config:       config,
		Resolver:     period.Resolver{System: system},
		RunID:        runID,
		sqlDir:       sqlDir,
		timeProvider: timeProvider,
	}, nil
}

func (p *Pipeline) Close() {
	p.DuckDB.Close()
}

// stageMetadata loads org units, data elements and category option combos
// into DuckDB. It runs once per pipeline.
func (p *Pipeline) stageMetadata(ctx context.Context) error {
	if p.metadataLoaded {
		return nil
	}

	if err := p.DuckDB.RunQueryFile(p.getSQLPath("create__metadata.sql")); err != nil {
		return fmt.Errorf("error creating metadata tables: %w", err)
	}

	orgUnits, err := p.DHIS2Client.OrganisationUnits(ctx)
	if err != nil {
		return fmt.Errorf("error fetching organisation units: %w", err)
	}
	ouCSV, err := load.OrgUnitsToCSV(orgUnits)
	if err != nil {
		return err
	}
	if err := p.loadIfRows(ouCSV, "org_units"); err != nil {
		return err
	}

	dataElements, err := p.DHIS2Client.DataElements(ctx)
	if err != nil {
		return fmt.Errorf("error fetching data elements: %w", err)
	}
	deCSV, err := load.NamedItemsToCSV(dataElements)
	if err != nil {
		return err
	}
	if err := p.loadIfRows(deCSV, "data_elements"); err != nil {
		return err
	}

	combos, err := p.DHIS2Client.CategoryOptionCombos(ctx)
	if err != nil {
		return fmt.Errorf("error fetching category option combos: %w", err)
	}
	cocCSV, err := load.NamedItemsToCSV(combos)
	if err != nil {
		return err
	}
	if err := p.loadIfRows(cocCSV, "category_option_combos"); err != nil {
		return err
	}

	p.Logger.Info("Staged DHIS2 metadata",
		"org_units", len(orgUnits),
		"data_elements", len(dataElements),
		"category_option_combos", len(combos))

	p.orgUnits = orgUnits
	p.metadataLoaded = true
	return nil
}

// orgUnitsAtLevel returns the ids of staged org units at level.
func (p *Pipeline) orgUnitsAtLevel(level int) []string {
	var ids []string
	for _, ou := range p.orgUnits {
		if ou.Level == level {
			ids = append(ids, ou.ID)
		}
	}
	return ids
}

func (p *Pipeline) loadIfRows(csv []byte, table string) error {
	if !hasRows(csv) {
		p.Logger.Warn(fmt.Sprintf("No rows to load into %s", table))
		return nil
	}
	if err := p.DuckDB.LoadCSV(csv, table); err != nil {
		return fmt.Errorf("error loading %s into DB: %w", table, err)
	}
	return nil
}

// fetchCSVs fetches every batch concurrently and concatenates the per-batch
// CSVs in batch order.
func (p *Pipeline) fetchCSVs(ctx context.Context, batches []extract.AnalyticsRequest) ([]byte, error) {
	maxGoroutines := p.Config.Extract.MaxConcurrency
	if maxGoroutines <= 0 {
		maxGoroutines = defaultMaxConcurrency
	}

	mapper := iter.Mapper[extract.AnalyticsRequest, []byte]{
		MaxGoroutines: maxGoroutines,
	}

	csvs, err := mapper.MapErr(batches, func(batch *extract.AnalyticsRequest) ([]byte, error) {
		values, err := p.DHIS2Client.Analytics(ctx, *batch)
		if err != nil {
			return nil, err
		}
		return load.DataValuesToCSV(values)
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching analytics: %w", err)
	}

	finalCsv, err := load.ConcatCSVs(csvs)
	if err != nil {
		return nil, fmt.Errorf("error concatenating CSVs: %w", err)
	}

	return finalCsv, nil
}

// extractToCSV runs the batched analytics request, stages the values and
// writes the enriched table to output.
func (p *Pipeline) extractToCSV(ctx context.Context, req extract.AnalyticsRequest, limits extract.Limits, output string) (int, error) {
	if err := p.stageMetadata(ctx); err != nil {
		return 0, err
	}

	batches := extract.SplitRequest(req, limits)
	p.Logger.Info(fmt.Sprintf("Fetching analytics in %d batches", len(batches)),
		"data_elements", len(req.DataElements),
		"periods", len(req.Periods),
		"org_units", len(req.OrgUnits),
		"org_unit_levels", req.OrgUnitLevels)

	csv, err := p.fetchCSVs(ctx, batches)
	if err != nil {
		return 0, err
	}

	if err := p.DuckDB.RunQueryFile(p.getSQLPath("create__data_values.sql")); err != nil {
		return 0, fmt.Errorf("error creating data_values table: %w", err)
	}

	rows := 0
	if hasRows(csv) {
		insertFile := p.getSQLPath("insert__data_values.sql")
		queryTemplate, err := template.ReadSqlTemplate(insertFile)
		if err != nil {
			return 0, fmt.Errorf("error reading %s file: %w", insertFile, err)
		}

		res, err := p.DuckDB.LoadCSVWithQuery(csv, queryTemplate, nil)
		if err != nil {
			return 0, fmt.Errorf("error loading data values into DB: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("error getting rows affected: %w", err)
		}
		rows = int(affected)
	} else {
		p.Logger.Warn("DHIS2 returned no data values")
	}

	query, err := p.enrichedQuery()
	if err != nil {
		return 0, err
	}

	if err := p.DuckDB.CopyQueryToCSV(query, output); err != nil {
		return 0, fmt.Errorf("error writing %s: %w", output, err)
	}

	p.Logger.Info(fmt.Sprintf("Wrote %d data values to %s", rows, output))
	return rows, nil
}

// enrichedQuery renders the enrichment query with one pair of parent columns
// per level above the deepest org unit level present in the data.
func (p *Pipeline) enrichedQuery() (string, error) {
	res, err := p.DuckDB.GetQueryResultsFromFile(p.getSQLPath("query__max_org_unit_level.sql"))
	if err != nil {
		return "", fmt.Errorf("error getting max org unit level: %w", err)
	}

	maxLevel := 0
	if values := res["max_level"]; len(values) == 1 {
		maxLevel, err = strconv.Atoi(values[0])
		if err != nil {
			return "", fmt.Errorf("error parsing max org unit level %q: %w", values[0], err)
		}
	}

	query, err := template.ExecuteSqlTemplate(p.getSQLPath("query__enriched_analytics.sql"), map[string]any{
		"Levels": parentLevels(maxLevel),
	})
	if err != nil {
		return "", fmt.Errorf("error rendering enrichment query: %w", err)
	}
	return query, nil
}

// parentLevels returns 1..maxLevel-1.
func parentLevels(maxLevel int) []int {
	levels := make([]int, 0, max(maxLevel-1, 0))
	for l := 1; l < maxLevel; l++ {
		levels = append(levels, l)
	}
	return levels
}

// hasRows reports whether csv has at least one record after the header.
func hasRows(csv []byte) bool {
	trimmed := bytes.TrimSpace(csv)
	return len(trimmed) > 0 && bytes.IndexByte(trimmed, '\n') >= 0
}

func limitsFrom(batch config.BatchConfig) extract.Limits {
	return extract.Limits{MaxDX: batch.MaxDX, MaxPE: batch.MaxPE, MaxOU: batch.MaxOU}
}

func (p *Pipeline) getSQLPath(filename string) string {
	return filepath.Join(p.sqlDir, filename)
}
