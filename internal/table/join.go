package table

import (
	"strconv"
	"strings"

	"github.com/cal-itp/ntd-modernization/internal/types"
)

// =============================================================================
// RECORD JOIN LAYER
// =============================================================================

// Join inner-joins tables on the key columns and returns one merged table.
//
// Rows match when every key value is equal after trimming; numeric keys are
// compared by value so "2023" and "2023.0" match. Like a relational inner
// join, a left row matching several right rows produces several output rows.
// When a non-key column exists in more than one table the left-most table's
// value wins.
//
// A key column missing from any table is a fatal configuration error.
func Join(name string, keys []string, tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return New(name, keys), nil
	}

	for _, t := range tables {
		if err := Require(t, "join", keys...); err != nil {
			return nil, err
		}
	}

	result := tables[0].emptyCopy()
	result.Rows = append(result.Rows, tables[0].Rows...)
	for _, right := range tables[1:] {
		result = joinPair(name, keys, result, right)
	}
	result.Name = name
	return result, nil
}

// joinPair joins two tables that are known to carry all key columns.
func joinPair(name string, keys []string, left, right *Table) *Table {
	out := &Table{Name: name}
	for _, c := range left.Columns {
		out.addColumn(c)
	}
	for _, c := range right.Columns {
		out.addColumn(c)
	}

	index := make(map[string][]Row, len(right.Rows))
	for _, row := range right.Rows {
		k := keyOf(right, row, keys)
		index[k] = append(index[k], row)
	}

	for _, lrow := range left.Rows {
		matches := index[keyOf(left, lrow, keys)]
		for _, rrow := range matches {
			merged := make(Row, len(lrow)+len(rrow))
			for k, v := range lrow {
				actual, _ := out.Resolve(k)
				merged[actual] = v
			}
			for k, v := range rrow {
				actual, _ := out.Resolve(k)
				if _, exists := merged[actual]; exists {
					continue
				}
				merged[actual] = v
			}
			out.Rows = append(out.Rows, merged)
		}
	}
	return out
}

// keyOf builds the composite join key of a row.
func keyOf(t *Table, row Row, keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = normalizeKey(t.Get(row, k))
	}
	return strings.Join(parts, "\x1f")
}

func normalizeKey(v string) string {
	v = strings.TrimSpace(v)
	if f, err := strconv.ParseFloat(v, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return v
}

// Require returns a ConfigError when any of the columns is missing from t.
func Require(t *Table, op string, columns ...string) error {
	for _, c := range columns {
		if !t.HasColumn(c) {
			return &types.ConfigError{
				Op:     op,
				Table:  t.Name,
				Column: c,
				Err:    types.ErrMissingColumn,
			}
		}
	}
	return nil
}

// RestrictToRoster keeps only rows whose organization column names a roster
// member and returns the organizations that were dropped. Dropping
// non-subrecipients is expected and is not an error.
func RestrictToRoster(t *Table, orgColumn string, roster types.Roster) (*Table, []string, error) {
	if err := Require(t, "restrict to roster", orgColumn); err != nil {
		return nil, nil, err
	}

	seen := make(map[string]bool)
	var dropped []string
	out := t.Filter(func(row Row) bool {
		org := strings.TrimSpace(t.Get(row, orgColumn))
		if roster.Contains(org) {
			return true
		}
		if !seen[org] {
			seen[org] = true
			dropped = append(dropped, org)
		}
		return false
	})
	return out, dropped, nil
}
