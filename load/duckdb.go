package load

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcboeker/go-duckdb"
	"github.com/rasnes/dhis2-duckdb-framework/config"
	"github.com/rasnes/dhis2-duckdb-framework/constants"
	"github.com/rasnes/dhis2-duckdb-framework/template"
)

type DuckDB struct {
	Logger    *slog.Logger
	DB        *sql.DB
	Connector *duckdb.Connector
}

func NewDuckDB(config *config.Config, logger *slog.Logger) (*DuckDB, error) {
	path, err := connectionPath(config.DuckDB.Path)
	if err != nil {
		return nil, err
	}

	var connInitFn func(driver.ExecerContext) error
	if len(config.DuckDB.ConnInitFnQueries) > 0 {
		connInitFn = func(exec driver.ExecerContext) error {
			for _, file := range config.DuckDB.ConnInitFnQueries {
				query, err := readQuery(file)
				if err != nil {
					return err
				}
				if _, err := exec.ExecContext(context.Background(), string(query), nil); err != nil {
					return fmt.Errorf("failed to execute query from file %s: %w", file, err)
				}
			}
			return nil
		}
		logger.Debug(fmt.Sprintf("Connection initialization queries: %v", config.DuckDB.ConnInitFnQueries))
	}

	connector, err := duckdb.NewConnector(path, connInitFn)
	if err != nil {
		return nil, err
	}

	switch {
	case path == "":
		logger.Info("Connected to DuckDB in-memory database")
	case strings.HasPrefix(path, "md:"):
		logger.Info("Connected to MotherDuck database")
	default:
		logger.Info(fmt.Sprintf("Connected to local DuckDB database at %s", path))
	}

	return &DuckDB{
		Logger:    logger,
		DB:        sql.OpenDB(connector),
		Connector: connector,
	}, nil
}

// connectionPath maps duckdb.path to a connector path: empty or ":memory:"
// is an in-memory database, "md:" paths get the MotherDuck token appended.
func connectionPath(configured string) (string, error) {
	switch {
	case configured == "" || configured == ":memory:":
		return "", nil
	case strings.HasPrefix(configured, "md:"):
		token := os.Getenv("MOTHERDUCK_TOKEN")
		if token == "" {
			return "", fmt.Errorf("MOTHERDUCK_TOKEN env variable is not set")
		}
		return fmt.Sprintf("%s?motherduck_token=%s", configured, token), nil
	default:
		return configured, nil
	}
}

func readQuery(path string) ([]byte, error) {
	// Open the file
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	// Read the content of the file
	query, err := io.ReadAll(file)
	if err != nil {
		file.Close() // Ensure the file is closed if reading fails
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	// Close the file after reading its content
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file %s: %w", path, err)
	}
	return query, nil
}

func (db *DuckDB) Close() {
	db.DB.Close()
	db.Connector.Close()
}

// LoadCSVWithQuery loads CSV data using a templated SQL query.
// The query template should use {{.CsvFile}} where the temporary CSV filename should be inserted.
func (db *DuckDB) LoadCSVWithQuery(csv []byte, queryTemplate string, params map[string]any) (sql.Result, error) {
	// Create a temporary file
	tmpFile, err := createTmpFile(csv)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmpFile.Name())

	// Add the temporary file path to the template parameters
	if params == nil {
		params = make(map[string]any)
	}
	params["CsvFile"] = tmpFile.Name()

	query, err := template.RenderSqlTemplate(queryTemplate, params)
	if err != nil {
		return nil, err
	}

	res, err := db.DB.ExecContext(context.Background(), query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	return res, nil
}

// LoadCSV appends the rows of csv to table with COPY. Rows that do not fit
// the table are skipped and short rows are padded with NULLs.
func (db *DuckDB) LoadCSV(csv []byte, table string) error {
	tmpFile, err := createTmpFile(csv)
	if err != nil {
		return err
	}
	defer os.Remove(tmpFile.Name())

	query := fmt.Sprintf("COPY %s FROM '%s' (FORMAT CSV, DELIMITER ',', QUOTE '\"', ESCAPE '\"', HEADER, NULL_PADDING, IGNORE_ERRORS);", table, tmpFile.Name())
	db.Logger.Debug("Executing DuckDB query", "query", query)

	if _, err := db.DB.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("failed to copy CSV into %s: %w", table, err)
	}

	return nil
}

func createTmpFile(csv []byte) (*os.File, error) {
	// Validate CSV content
	if len(csv) == 0 {
		return nil, fmt.Errorf("received empty CSV data")
	}

	// Create a temporary file
	tmpFile, err := os.CreateTemp("", constants.TmpCSVFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}

	// Write the CSV data to the temporary file
	if _, err := tmpFile.Write(csv); err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("failed to write to temporary file: %w", err)
	}

	// Close the file to flush the data
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temporary file: %w", err)
	}

	return tmpFile, nil
}

func (db *DuckDB) RunQuery(query string) error {
	_, err := db.DB.ExecContext(context.Background(), query)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	return nil
}

func (db *DuckDB) RunQueryFile(path string) error {
	query, err := readQuery(path)
	if err != nil {
		return err
	}

	return db.RunQuery(string(query))
}

// CopyQueryToCSV writes the result of query to a CSV file with a header row,
// creating the parent directory if needed.
func (db *DuckDB) CopyQueryToCSV(query, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory for %s: %w", path, err)
	}

	query = strings.TrimRight(strings.TrimSpace(query), ";")
	copyQuery := fmt.Sprintf("COPY (%s) TO '%s' (FORMAT CSV, HEADER, DELIMITER ',');", query, strings.ReplaceAll(path, "'", "''"))

	db.Logger.Debug("Executing DuckDB query", "query", copyQuery)

	if _, err := db.DB.ExecContext(context.Background(), copyQuery); err != nil {
		return fmt.Errorf("failed to copy query results to %s: %w", path, err)
	}
	return nil
}

func (db *DuckDB) GetQueryResultsFromFile(path string) (map[string][]string, error) {
	query, err := readQuery(path)
	if err != nil {
		return nil, err
	}

	return db.GetQueryResults(string(query))
}

// GetQueryResults executes a query and returns the results as a map of column names to slices of values
func (db *DuckDB) GetQueryResults(query string) (map[string][]string, error) {
	// Execute the query
	rows, err := db.DB.QueryContext(context.Background(), query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	// get column names
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	// Initialize a map to hold slices for each column
	results := make(map[string][]string)
	for _, col := range columns {
		results[col] = []string{}
	}

	// Iterate over the rows
	for rows.Next() {
		// Create a slice to hold the column values
		values := make([]interface{}, len(columns))
		// Create a slice of pointers to the column values
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		// Scan the row into the value pointers
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		// Append the values to the corresponding slices in the results map
		for i, col := range columns {
			// Convert the value to a string
			valueStr := fmt.Sprintf("%v", values[i])
			results[col] = append(results[col], valueStr)
		}
	}

	// Check for errors from iterating over rows
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	return results, nil
}
