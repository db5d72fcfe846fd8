// =============================================================================
// NTD Report Validation - Tabular Data
// =============================================================================
//
// This package holds the in-memory table model that every loader produces and
// the Record Join Layer that combines per-form tables into one table per
// (agency, mode, fiscal year).
//
// COLUMN NAMES:
//   Headers are canonicalized when a table is built (see CanonicalHeader) so
//   that the same column from an Excel export, a CSV extract or a warehouse
//   table has the same name. Column lookups are case-insensitive because the
//   forms disagree on capitalization ("Expenses By Mode" vs "Expenses by Mode").
//
// SCHEMA DRIFT:
//   Columns renamed between reporting cycles are mapped back to their
//   canonical names with Rename, driven by the per-year column mapping in the
//   configuration. This happens once at the input boundary.
//
// =============================================================================

package table

import (
	"regexp"
	"strings"
)

// Row is one table row keyed by canonical column name.
type Row map[string]string

// Table is a named collection of uniformly shaped rows.
type Table struct {
	// Name identifies the source (form and sheet) in errors and logs.
	Name string

	// Columns lists the canonical column names in source order.
	Columns []string

	// Rows holds the data rows.
	Rows []Row

	index map[string]string
}

// New creates an empty table with the given columns. Column names are
// canonicalized.
func New(name string, columns []string) *Table {
	t := &Table{Name: name}
	for _, c := range columns {
		t.addColumn(CanonicalHeader(c))
	}
	return t
}

func (t *Table) addColumn(col string) {
	if t.index == nil {
		t.index = make(map[string]string)
	}
	key := strings.ToLower(col)
	if _, exists := t.index[key]; exists {
		return
	}
	t.index[key] = col
	t.Columns = append(t.Columns, col)
}

// Append adds a row. Keys are canonicalized and unknown columns are added to
// the table.
func (t *Table) Append(values map[string]string) {
	row := make(Row, len(values))
	for k, v := range values {
		col := CanonicalHeader(k)
		if actual, ok := t.Resolve(col); ok {
			col = actual
		} else {
			t.addColumn(col)
		}
		row[col] = strings.TrimSpace(v)
	}
	t.Rows = append(t.Rows, row)
}

// Resolve returns the table's spelling of a column, matched case-insensitively.
func (t *Table) Resolve(column string) (string, bool) {
	if t.index == nil {
		return "", false
	}
	actual, ok := t.index[strings.ToLower(CanonicalHeader(column))]
	return actual, ok
}

// HasColumn reports whether the table has the column.
func (t *Table) HasColumn(column string) bool {
	_, ok := t.Resolve(column)
	return ok
}

// Get returns a row's value for column, or "" when the column is absent.
func (t *Table) Get(row Row, column string) string {
	actual, ok := t.Resolve(column)
	if !ok {
		return ""
	}
	return row[actual]
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Filter returns a new table holding the rows for which keep returns true.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := t.emptyCopy()
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

func (t *Table) emptyCopy() *Table {
	out := &Table{Name: t.Name}
	for _, c := range t.Columns {
		out.addColumn(c)
	}
	return out
}

// =============================================================================
// HEADER CANONICALIZATION
// =============================================================================

var (
	nonWord         = regexp.MustCompile(`[^A-Za-z0-9_]+`)
	repeatedUnderln = regexp.MustCompile(`_{2,}`)
	headerReplacer  = strings.NewReplacer(
		" ", "_",
		"/", "_",
		".", "_",
		"-", "",
		"#", "num",
	)
)

// CanonicalHeader converts a spreadsheet header to its canonical column name:
// spaces, slashes and dots become underscores, dashes are dropped, "#" becomes
// "num" and any other punctuation is stripped.
//
//	"Organization Legal Name" -> "Organization_Legal_Name"
//	"Common Name/Acronym/DBA" -> "Common_Name_Acronym_DBA"
//	"Vehicle #"               -> "Vehicle_num"
func CanonicalHeader(header string) string {
	h := headerReplacer.Replace(strings.TrimSpace(header))
	h = nonWord.ReplaceAllString(h, "")
	h = repeatedUnderln.ReplaceAllString(h, "_")
	return strings.Trim(h, "_")
}

// =============================================================================
// SCHEMA DRIFT
// =============================================================================

// Rename returns a copy of t with columns renamed according to mapping
// (source name -> canonical name). Names on both sides are canonicalized and
// matched case-insensitively; columns not in the mapping are kept as is.
func Rename(t *Table, mapping map[string]string) *Table {
	if len(mapping) == 0 {
		return t
	}

	rename := make(map[string]string, len(mapping))
	for from, to := range mapping {
		if actual, ok := t.Resolve(from); ok {
			rename[actual] = CanonicalHeader(to)
		}
	}
	if len(rename) == 0 {
		return t
	}

	out := &Table{Name: t.Name}
	for _, c := range t.Columns {
		if to, ok := rename[c]; ok {
			out.addColumn(to)
		} else {
			out.addColumn(c)
		}
	}
	for _, row := range t.Rows {
		nr := make(Row, len(row))
		for k, v := range row {
			if to, ok := rename[k]; ok {
				if actual, found := out.Resolve(to); found {
					k = actual
				}
			}
			nr[k] = v
		}
		out.Rows = append(out.Rows, nr)
	}
	return out
}

// Concat stacks tables with possibly different columns into one table. Missing
// cells are left empty.
func Concat(name string, tables ...*Table) *Table {
	out := &Table{Name: name}
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.Columns {
			out.addColumn(c)
		}
	}
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, row := range t.Rows {
			nr := make(Row, len(row))
			for k, v := range row {
				actual, _ := out.Resolve(k)
				nr[actual] = v
			}
			out.Rows = append(out.Rows, nr)
		}
	}
	return out
}
