package load

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rasnes/dhis2-duckdb-framework/extract"
	"github.com/rasnes/dhis2-duckdb-framework/utils"
)

// Column headers of the staging CSVs, in staging table column order.
var (
	DataValueHeader = []string{"dx", "pe", "ou", "co", "value"}
	OrgUnitHeader   = []string{"id", "name", "level", "path"}
	NamedItemHeader = []string{"id", "name"}
)

// RecordsToCSV writes a header and rows as CSV.
func RecordsToCSV(header []string, rows [][]string) ([]byte, error) {
	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)

	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write CSV data: %w", err)
	}

	return buffer.Bytes(), nil
}

func DataValuesToCSV(values []extract.DataValue) ([]byte, error) {
	rows := make([][]string, 0, len(values))
	for _, v := range values {
		rows = append(rows, []string{v.DataElement, v.Period, v.OrgUnit, v.CategoryOptionCombo, v.Value})
	}
	return RecordsToCSV(DataValueHeader, rows)
}

func OrgUnitsToCSV(orgUnits []extract.OrgUnit) ([]byte, error) {
	rows := make([][]string, 0, len(orgUnits))
	for _, ou := range orgUnits {
		rows = append(rows, []string{ou.ID, ou.Name, strconv.Itoa(ou.Level), ou.Path})
	}
	return RecordsToCSV(OrgUnitHeader, rows)
}

func NamedItemsToCSV(items []extract.NamedItem) ([]byte, error) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{item.ID, item.Name})
	}
	return RecordsToCSV(NamedItemHeader, rows)
}

// AddColumn appends a column with a constant value to every row.
func AddColumn(csvData []byte, column, value string) ([]byte, error) {
	reader := csv.NewReader(bytes.NewReader(csvData))

	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	header = append(header, column)
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV data: %w", err)
		}

		record = append(record, value)
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV data: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV writer: %w", err)
	}

	return buffer.Bytes(), nil
}

// ConcatCSVs concatenates CSV parts sharing the same header, e.g. the
// per-batch analytics extracts.
// It uses the first CSV file as the header and appends the remaining CSV files.
func ConcatCSVs(csvs [][]byte) ([]byte, error) {
	if len(csvs) == 0 {
		return nil, fmt.Errorf("received empty CSV data")
	}

	// Filter out empty CSVs
	var nonEmptyCSVs [][]byte
	for _, csv := range csvs {
		if len(bytes.TrimSpace(csv)) > 0 {
			nonEmptyCSVs = append(nonEmptyCSVs, csv)
		}
	}

	if len(nonEmptyCSVs) == 0 {
		return nil, fmt.Errorf("all CSV inputs were empty")
	}

	if len(nonEmptyCSVs) == 1 {
		return nonEmptyCSVs[0], nil // Single CSV case
	}

	parts := nonEmptyCSVs

	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)

	// Process the first CSV to get headers
	firstReader := csv.NewReader(bytes.NewReader(parts[0]))
	header, err := firstReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header from first CSV: %w", err)
	}

	// Check headers in all parts match the first one
	for i, part := range parts[1:] {
		if len(bytes.TrimSpace(part)) == 0 {
			continue
		}
		reader := csv.NewReader(bytes.NewReader(part))
		currentHeader, err := reader.Read()
		if err != nil {
			return nil, fmt.Errorf("failed to read header from part %d: %w", i+2, err)
		}
		if len(currentHeader) != len(header) {
			return nil, fmt.Errorf("mismatched number of columns in part %d: expected %d, got %d", i+2, len(header), len(currentHeader))
		}
		for j, col := range header {
			if currentHeader[j] != col {
				return nil, fmt.Errorf("mismatched column name in part %d: expected '%s', got '%s' at position %d", i+2, col, currentHeader[j], j+1)
			}
		}
	}

	// Write header
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	// Process all CSVs (including first one)
	for _, part := range parts {
		if len(bytes.TrimSpace(part)) == 0 {
			continue
		}

		reader := csv.NewReader(bytes.NewReader(part))
		// Skip header for each part (including first CSV)
		_, err := reader.Read()
		if err != nil {
			return nil, fmt.Errorf("failed to skip header: %w", err)
		}

		// Read and write all records
		for {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read CSV record: %w", err)
			}

			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV writer: %w", err)
	}

	return buffer.Bytes(), nil
}

// ReadColumnWhere returns the unique, non-empty values of column for rows
// whose filterColumn equals filterValue (case and surrounding space ignored).
// Order of first appearance is kept.
func ReadColumnWhere(r io.Reader, column, filterColumn, filterValue string) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	// spreadsheet exports often start with a UTF-8 BOM
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	colIdx, filterIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case column:
			colIdx = i
		case filterColumn:
			filterIdx = i
		}
	}
	if colIdx < 0 {
		return nil, fmt.Errorf("column '%s' not found in CSV header", column)
	}
	if filterIdx < 0 {
		return nil, fmt.Errorf("column '%s' not found in CSV header", filterColumn)
	}

	var values []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		if colIdx >= len(record) || filterIdx >= len(record) {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(record[filterIdx]), filterValue) {
			values = append(values, strings.TrimSpace(record[colIdx]))
		}
	}

	return utils.Unique(values), nil
}
