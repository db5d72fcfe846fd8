// =============================================================================
// NTD Report Validation - Report Writer
// =============================================================================
//
// This module renders finding tables as the Excel workbooks that program
// liaisons send back to agencies.
//
// SHEET LAYOUT:
//
//   A1   NTD Data Validation Report                  (bold, blue, 15pt)
//   A2   <subtitle>, merged across a few columns      (bold, 19pt)
//   3    Organization | name_of_check | mode | value_checked | check_status |
//        Description | Agency Response | Response Date
//   4+   one row per finding
//
//   The Agency Response and Response Date headers are highlighted yellow for
//   liaisons to track the agency's answer. Panes are frozen at B4 so the
//   organization column and the headers stay visible.
//
// =============================================================================

package report

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/cal-itp/ntd-modernization/internal/types"
)

// Title is written to A1 of every findings sheet.
const Title = "NTD Data Validation Report"

const (
	headerRow    = 3
	firstDataRow = 4
)

// ResponseColumns are appended after the data columns of a findings sheet.
var ResponseColumns = []string{"Agency Response", "Response Date"}

// =============================================================================
// REPORT STRUCTURE
// =============================================================================

// ColumnWidth sets the width of the columns Start through End (letters).
type ColumnWidth struct {
	Start string
	End   string
	Width float64
}

// Sheet is one findings sheet.
type Sheet struct {
	Name string

	Subtitle string

	// SubtitleEnd is the last column the subtitle is merged across.
	// Default: "C"
	SubtitleEnd string

	Columns []string
	Rows    [][]string

	Widths []ColumnWidth

	// Response adds the Agency Response and Response Date headers.
	Response bool
}

// Report is a workbook of findings sheets plus an optional readme sheet.
type Report struct {
	Sheets []Sheet

	// Readme lines are written to a "readme" sheet, one per row. Lines
	// with Heading set use the subtitle style.
	Readme []ReadmeLine
}

// ReadmeLine is one row of the readme sheet. Blank lines are empty rows.
type ReadmeLine struct {
	Text    string
	Heading bool
}

// FindingsSheet builds a sheet from findings in the canonical column order.
func FindingsSheet(name, subtitle string, findings []types.Finding) Sheet {
	rows := make([][]string, len(findings))
	for i, f := range findings {
		rows[i] = f.Values()
	}
	return Sheet{
		Name:     name,
		Subtitle: subtitle,
		Columns:  types.Columns,
		Rows:     rows,
		Widths: []ColumnWidth{
			{Start: "A", End: "A", Width: 35},
			{Start: "B", End: "D", Width: 22},
			{Start: "E", End: "E", Width: 11},
			{Start: "F", End: "H", Width: 53},
		},
		Response: true,
	}
}

// =============================================================================
// RENDERING
// =============================================================================

type styles struct {
	title     int
	subtitle  int
	highlight int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error

	s.title, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "1C639E", Size: 15},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create title style: %w", err)
	}

	s.subtitle, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "000000", Size: 19},
		Alignment: &excelize.Alignment{Horizontal: "left"},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create subtitle style: %w", err)
	}

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	s.highlight, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFFF00"}, Pattern: 1},
		Border: border,
	})
	if err != nil {
		return s, fmt.Errorf("failed to create highlight style: %w", err)
	}
	return s, nil
}

// build renders the report into a new workbook.
func build(r Report) (*excelize.File, error) {
	if len(r.Sheets) == 0 {
		return nil, fmt.Errorf("report has no sheets")
	}

	f := excelize.NewFile()
	st, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	for i, sheet := range r.Sheets {
		if i == 0 {
			err = f.SetSheetName(f.GetSheetName(0), sheet.Name)
		} else {
			_, err = f.NewSheet(sheet.Name)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", sheet.Name, err)
		}
		if err := writeSheet(f, sheet, st); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write sheet %s: %w", sheet.Name, err)
		}
	}

	if len(r.Readme) > 0 {
		if err := writeReadme(f, r.Readme, st); err != nil {
			f.Close()
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, s Sheet, st styles) error {
	name := s.Name

	if err := f.SetCellValue(name, "A1", Title); err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", "A1", st.title); err != nil {
		return err
	}

	subtitleEnd := s.SubtitleEnd
	if subtitleEnd == "" {
		subtitleEnd = "C"
	}
	if err := f.SetCellValue(name, "A2", s.Subtitle); err != nil {
		return err
	}
	if err := f.MergeCell(name, "A2", subtitleEnd+"2"); err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A2", subtitleEnd+"2", st.subtitle); err != nil {
		return err
	}

	header := make([]interface{}, 0, len(s.Columns)+len(ResponseColumns))
	for _, c := range s.Columns {
		header = append(header, c)
	}
	if s.Response {
		for _, c := range ResponseColumns {
			header = append(header, c)
		}
	}
	if err := f.SetSheetRow(name, cellName(1, headerRow), &header); err != nil {
		return err
	}
	if s.Response {
		first := cellName(len(s.Columns)+1, headerRow)
		last := cellName(len(s.Columns)+len(ResponseColumns), headerRow)
		if err := f.SetCellStyle(name, first, last, st.highlight); err != nil {
			return err
		}
	}

	for i, row := range s.Rows {
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(name, cellName(1, firstDataRow+i), &values); err != nil {
			return err
		}
	}

	for _, w := range s.Widths {
		if err := f.SetColWidth(name, w.Start, w.End, w.Width); err != nil {
			return err
		}
	}

	return f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      headerRow,
		TopLeftCell: cellName(2, firstDataRow),
		ActivePane:  "bottomRight",
	})
}

func writeReadme(f *excelize.File, lines []ReadmeLine, st styles) error {
	const name = "readme"
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create readme sheet: %w", err)
	}

	if err := f.SetCellValue(name, "A1", "Read Me"); err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", "A1", st.title); err != nil {
		return err
	}

	for i, line := range lines {
		cell := cellName(1, i+2)
		if line.Text == "" {
			continue
		}
		if err := f.SetCellValue(name, cell, line.Text); err != nil {
			return err
		}
		if line.Heading {
			if err := f.SetCellStyle(name, cell, cell, st.subtitle); err != nil {
				return err
			}
		}
	}
	return nil
}

// write renders the report to w.
func write(w io.Writer, r Report) error {
	f, err := build(r)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// WriteFile renders the report to path.
func WriteFile(path string, r Report) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", path, err)
	}
	if err := write(out, r); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to save report %s: %w", path, err)
	}
	return nil
}

func cellName(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		// col and row are always positive here.
		panic(err)
	}
	return name
}
