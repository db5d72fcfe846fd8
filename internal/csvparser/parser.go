// =============================================================================
// NTD Report Validation - CSV Loader
// =============================================================================
//
// This module reads CSV extracts into tables: the subrecipient roster and the
// form extracts that are delivered as CSV instead of a workbook (the A-10
// facilities extract, for example).
//
// FEATURES:
//   - Configurable delimiter (comma, pipe, tab, semicolon)
//   - Configurable data start row for extracts with a banner above the header
//   - Excel's UTF-8 byte order mark is stripped from the first header
//   - Blank rows are skipped; short rows are padded with empty cells
//
// =============================================================================

package csvparser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cal-itp/ntd-modernization/internal/config"
	"github.com/cal-itp/ntd-modernization/internal/table"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseFile reads a CSV file into a table named after the file.
func ParseFile(filePath string, settings config.CSVSettings) (*table.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Parse(file, filepath.Base(filePath), settings)
}

// Parse reads CSV data into a table.
//
// PARSING PROCESS:
//  1. Configure the CSV reader from settings
//  2. Read the header row (HeaderRow, 1-indexed)
//  3. Read data rows starting at DataStartRow
//  4. Canonicalize headers and convert each row to header -> value
func Parse(r io.Reader, name string, settings config.CSVSettings) (*table.Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	csvReader := csv.NewReader(br)
	configureReader(csvReader, settings)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV %s: %w", name, err)
	}
	if len(allRows) == 0 {
		return nil, fmt.Errorf("CSV file %s is empty", name)
	}

	headerIndex := settings.HeaderRow - 1
	if headerIndex < 0 {
		headerIndex = 0
	}
	if headerIndex >= len(allRows) {
		return nil, fmt.Errorf("CSV file %s has fewer rows than header_row %d", name, settings.HeaderRow)
	}
	headers := cleanHeaders(allRows[headerIndex])

	t := table.New(name, headers)
	for _, row := range extractDataRows(allRows, headers, headerIndex, settings) {
		t.Append(row)
	}
	return t, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Exports are not always rectangular.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// cleanHeaders trims headers and names blank ones by position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}

// extractDataRows converts the data rows to maps. DataStartRow is 1-indexed;
// when unset, data starts right after the header.
func extractDataRows(allRows [][]string, headers []string, headerIndex int, settings config.CSVSettings) []map[string]string {
	startIndex := settings.DataStartRow - 1
	if startIndex <= headerIndex {
		startIndex = headerIndex + 1
	}
	if startIndex >= len(allRows) {
		return nil
	}

	dataRows := make([]map[string]string, 0, len(allRows)-startIndex)
	for rowIndex := startIndex; rowIndex < len(allRows); rowIndex++ {
		row := allRows[rowIndex]
		if isRowEmpty(row) {
			continue
		}

		rowMap := make(map[string]string, len(headers))
		for colIndex, header := range headers {
			if colIndex < len(row) {
				rowMap[header] = strings.TrimSpace(row[colIndex])
			} else {
				rowMap[header] = ""
			}
		}
		dataRows = append(dataRows, rowMap)
	}
	return dataRows
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
