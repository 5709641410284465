package dashboard

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/rasnes/dhis2-duckdb-framework/load"
)

// Columns of the dashboard table, in COPY order.
var Columns = []string{"run_id", "mode", "year", "dx", "pe", "ou", "co", "value", "dx_name", "co_name", "ou_name"}

// Publisher loads analytics extracts into the Postgres table read by the
// dashboard. A publish replaces every row of the same mode and year.
type Publisher struct {
	DB     *sql.DB
	Table  string
	Logger *slog.Logger
}

func NewPublisher(ctx context.Context, dsn, table string, logger *slog.Logger) (*Publisher, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening dashboard database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to dashboard database: %w", err)
	}

	return &Publisher{DB: db, Table: table, Logger: logger}, nil
}

func (p *Publisher) Close() error {
	return p.DB.Close()
}

func (p *Publisher) EnsureTable(ctx context.Context) error {
	if _, err := p.DB.ExecContext(ctx, createTableQuery(p.Table)); err != nil {
		return fmt.Errorf("error creating dashboard table %s: %w", p.Table, err)
	}
	return nil
}

// Publish replaces the (mode, year) slice of the dashboard table with the
// rows of the analytics CSV at csvPath, in a single transaction.
func (p *Publisher) Publish(ctx context.Context, runID, mode string, year int, csvPath string) (int64, error) {
	data, err := os.ReadFile(csvPath)
	if err != nil {
		return 0, fmt.Errorf("error reading %s: %w", csvPath, err)
	}

	rows, err := readRows(data, runID, mode, year)
	if err != nil {
		return 0, fmt.Errorf("error reading rows from %s: %w", csvPath, err)
	}

	deleteQuery, deleteArgs, err := deleteSliceQuery(p.Table, mode, year)
	if err != nil {
		return 0, fmt.Errorf("error building delete query: %w", err)
	}

	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...)
	if err != nil {
		return 0, fmt.Errorf("error deleting previous rows: %w", err)
	}
	deleted, _ := res.RowsAffected()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(p.Table, Columns...))
	if err != nil {
		return 0, fmt.Errorf("error preparing copy: %w", err)
	}
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("error copying row: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("error flushing copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("error closing copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing transaction: %w", err)
	}

	p.Logger.Info(fmt.Sprintf("Published %d rows to %s", len(rows), p.Table),
		"mode", mode,
		"year", year,
		"deleted", deleted,
		"run_id", runID)

	return int64(len(rows)), nil
}

func deleteSliceQuery(table, mode string, year int) (string, []any, error) {
	return squirrel.
		Delete(pq.QuoteIdentifier(table)).
		Where(squirrel.Eq{"mode": mode, "year": year}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

func createTableQuery(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id TEXT NOT NULL,
	mode TEXT NOT NULL,
	year INTEGER NOT NULL,
	dx TEXT NOT NULL,
	pe TEXT NOT NULL,
	ou TEXT NOT NULL,
	co TEXT,
	value TEXT,
	dx_name TEXT,
	co_name TEXT,
	ou_name TEXT,
	loaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, pq.QuoteIdentifier(table))
}

// readRows stamps every analytics row with the run metadata and returns the
// values in Columns order. Columns missing from the CSV are NULL.
func readRows(data []byte, runID, mode string, year int) ([][]any, error) {
	stamped, err := load.AddColumn(data, "run_id", runID)
	if err != nil {
		return nil, err
	}
	if stamped, err = load.AddColumn(stamped, "mode", mode); err != nil {
		return nil, err
	}
	if stamped, err = load.AddColumn(stamped, "year", strconv.Itoa(year)); err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(stamped))
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, required := range []string{"dx", "pe", "ou"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("column '%s' not found in CSV header", required)
		}
	}

	var rows [][]any
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		row := make([]any, len(Columns))
		for i, col := range Columns {
			j, ok := index[col]
			if !ok || record[j] == "" && col != "value" {
				row[i] = nil
				continue
			}
			if col == "year" {
				row[i] = year
				continue
			}
			row[i] = record[j]
		}
		rows = append(rows, row)
	}

	return rows, nil
}
