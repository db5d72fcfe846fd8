// =============================================================================
// NTD Report Validation - Snapshot Store
// =============================================================================
//
// Form uploads are ingested into a SQLite database as per-agency snapshots.
// An agency's rows are written again only when they differ from its latest
// snapshot, so the store keeps the history of resubmissions without repeating
// unchanged data from every upload.
//
// TABLE:
//   snapshots(id, form, sheet, organization, date_uploaded, payload)
//
//   payload is the agency's rows as JSON: {"columns": [...], "rows": [...]}.
//
// =============================================================================

package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cal-itp/ntd-modernization/internal/table"
)

const dateLayout = "2006-01-02"

// organizationColumns are tried in order to find a table's agency column.
var organizationColumns = []string{"Organization_Legal_Name", "Organization", "Agency"}

// Store is a snapshot database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" opens a private
// in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database lives only as long as its connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		form TEXT NOT NULL,
		sheet TEXT NOT NULL,
		organization TEXT NOT NULL,
		date_uploaded TEXT NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_lookup
		ON snapshots(form, sheet, organization, date_uploaded);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create snapshots table: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type payload struct {
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"rows"`
}

// Append splits t by agency and writes the agencies whose rows differ from
// their latest snapshot of (form, sheet). It returns the number of agencies
// written.
func (s *Store) Append(ctx context.Context, form, sheet string, uploaded time.Time, t *table.Table) (int, error) {
	orgCol, err := organizationColumn(t)
	if err != nil {
		return 0, err
	}

	latest, err := s.latestPayloads(ctx, form, sheet)
	if err != nil {
		return 0, err
	}

	groups := make(map[string]*payload)
	var orgs []string
	for _, row := range t.Rows {
		org := row[orgCol]
		if org == "" {
			continue
		}
		p, ok := groups[org]
		if !ok {
			p = &payload{Columns: t.Columns}
			groups[org] = p
			orgs = append(orgs, org)
		}
		p.Rows = append(p.Rows, row)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	written := 0
	for _, org := range orgs {
		data, err := json.Marshal(groups[org])
		if err != nil {
			return 0, fmt.Errorf("failed to encode snapshot for %s: %w", org, err)
		}
		if latest[org] == string(data) {
			continue
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO snapshots (form, sheet, organization, date_uploaded, payload) VALUES (?, ?, ?, ?, ?)`,
			form, sheet, org, uploaded.Format(dateLayout), string(data))
		if err != nil {
			return 0, fmt.Errorf("failed to insert snapshot for %s: %w", org, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshots: %w", err)
	}
	return written, nil
}

// Latest returns, for every agency, the rows of its most recent snapshot of
// (form, sheet), in agency order. The table is empty when nothing was
// ingested.
func (s *Store) Latest(ctx context.Context, form, sheet string) (*table.Table, error) {
	latest, err := s.latestPayloads(ctx, form, sheet)
	if err != nil {
		return nil, err
	}

	orgs := make([]string, 0, len(latest))
	for org := range latest {
		orgs = append(orgs, org)
	}
	sort.Strings(orgs)

	decoded := make([]payload, len(orgs))
	var columns []string
	seen := make(map[string]bool)
	for i, org := range orgs {
		if err := json.Unmarshal([]byte(latest[org]), &decoded[i]); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot for %s: %w", org, err)
		}
		for _, col := range decoded[i].Columns {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}

	t := table.New(form+":"+sheet, columns)
	for _, p := range decoded {
		for _, row := range p.Rows {
			t.Append(row)
		}
	}
	return t, nil
}

// Dates lists the upload dates stored for an agency, newest first.
func (s *Store) Dates(ctx context.Context, form, sheet, organization string) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT date_uploaded FROM snapshots
		 WHERE form = ? AND sheet = ? AND organization = ?
		 ORDER BY date_uploaded DESC`, form, sheet, organization)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot date: %w", err)
		}
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid snapshot date %q: %w", raw, err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// latestPayloads returns organization -> payload of its newest snapshot.
func (s *Store) latestPayloads(ctx context.Context, form, sheet string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT organization, payload FROM (
			SELECT organization, payload,
				ROW_NUMBER() OVER (PARTITION BY organization ORDER BY date_uploaded DESC, id DESC) AS rn
			FROM snapshots
			WHERE form = ? AND sheet = ?
		) WHERE rn = 1`, form, sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshots: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var org, data string
		if err := rows.Scan(&org, &data); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out[org] = data
	}
	return out, rows.Err()
}

func organizationColumn(t *table.Table) (string, error) {
	for _, col := range organizationColumns {
		if actual, ok := t.Resolve(col); ok {
			return actual, nil
		}
	}
	return "", fmt.Errorf("table %s has no organization column", t.Name)
}
