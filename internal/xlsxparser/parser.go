// =============================================================================
// NTD Report Validation - Workbook Reader
// =============================================================================
//
// This module reads the sheets of an NTD form export (RR-20, A-10, A-30 and the
// revenue vehicle inventory) into tables.
//
// WORKBOOK STRUCTURE (Expected Layout):
//   Each sheet holds one header row followed by data rows. Form exports put the
//   header on the first row; extracts with a banner can set HeaderRow.
//
//   | Organization_Legal_Name | Fiscal_Year | Mode | Annual_VRM | Annual_VRH | ...
//   |-------------------------|-------------|------|------------|------------|
//   | Agency A                | 2023        | MB   | 120000     | 8000       |
//
// CELL VALUES:
//   Cells are read raw, so dates arrive as Excel serial numbers and amounts
//   without their display formatting. The schema decoder parses both.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/cal-itp/ntd-modernization/internal/table"
)

// =============================================================================
// WORKBOOK
// =============================================================================

// Options control how sheets are read.
type Options struct {
	// HeaderRow is the 1-indexed row holding the column headers.
	// Default: 1
	HeaderRow int
}

// Workbook is an open form export.
type Workbook struct {
	// Name identifies the workbook in table names and errors.
	Name string

	file    *excelize.File
	options Options
}

// OpenReader opens a workbook from a stream, such as an object in the upload
// bucket.
func OpenReader(r io.Reader, name string, options Options) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", name, err)
	}
	return &Workbook{Name: name, file: f, options: options}, nil
}

// Close releases the workbook.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// Sheets lists the sheet names in workbook order.
func (w *Workbook) Sheets() []string {
	return w.file.GetSheetList()
}

// resolveSheet returns the workbook's spelling of a sheet name. Form exports
// disagree on capitalization ("Expenses By Mode" vs "Expenses by Mode").
func (w *Workbook) resolveSheet(name string) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, sheet := range w.file.GetSheetList() {
		if strings.ToLower(strings.TrimSpace(sheet)) == want {
			return sheet, true
		}
	}
	return "", false
}

// HasSheet reports whether the workbook has the sheet.
func (w *Workbook) HasSheet(name string) bool {
	_, ok := w.resolveSheet(name)
	return ok
}

// ReadSheet reads one sheet into a table named "<workbook>:<sheet>".
//
// PARSING PROCESS:
//  1. Resolve the sheet name case-insensitively
//  2. Read every row with raw cell values
//  3. Take headers from HeaderRow
//  4. Convert each non-empty data row to header -> value
func (w *Workbook) ReadSheet(name string) (*table.Table, error) {
	sheet, ok := w.resolveSheet(name)
	if !ok {
		return nil, fmt.Errorf("workbook %s has no sheet %q", w.Name, name)
	}

	rows, err := w.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of %s:%s: %w", w.Name, sheet, err)
	}

	headerIndex := w.options.HeaderRow - 1
	if headerIndex < 0 {
		headerIndex = 0
	}
	if headerIndex >= len(rows) {
		return nil, fmt.Errorf("sheet %s:%s has no header row", w.Name, sheet)
	}

	headers := cleanHeaders(rows[headerIndex])
	t := table.New(w.Name+":"+sheet, headers)

	for i := headerIndex + 1; i < len(rows); i++ {
		row := rows[i]

		// Skip empty rows.
		if len(row) == 0 || isRowEmpty(row) {
			continue
		}

		values := make(map[string]string, len(headers))
		for col, header := range headers {
			if col < len(row) {
				values[header] = strings.TrimSpace(row[col])
			} else {
				values[header] = ""
			}
		}
		t.Append(values)
	}

	return t, nil
}

// ReadSheets reads several sheets. A missing sheet is an error.
func (w *Workbook) ReadSheets(names ...string) (map[string]*table.Table, error) {
	out := make(map[string]*table.Table, len(names))
	for _, name := range names {
		t, err := w.ReadSheet(name)
		if err != nil {
			return nil, err
		}
		out[name] = t
	}
	return out, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// cleanHeaders trims headers and names blank ones by column letter.
func cleanHeaders(row []string) []string {
	headers := make([]string, len(row))
	for i, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			name, err := excelize.ColumnNumberToName(i + 1)
			if err != nil {
				name = fmt.Sprintf("%d", i+1)
			}
			cell = "Column_" + name
		}
		headers[i] = cell
	}
	return headers
}

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
