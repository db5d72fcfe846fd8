package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cal-itp/ntd-modernization/internal/config"
	"github.com/cal-itp/ntd-modernization/internal/csvparser"
	"github.com/cal-itp/ntd-modernization/internal/schema"
	"github.com/cal-itp/ntd-modernization/internal/snapshot"
	"github.com/cal-itp/ntd-modernization/internal/source"
	"github.com/cal-itp/ntd-modernization/internal/table"
	"github.com/cal-itp/ntd-modernization/internal/types"
	"github.com/cal-itp/ntd-modernization/internal/xlsxparser"
)

// =============================================================================
// INPUTS
// =============================================================================

// Inputs holds the tables a check run reads, already renamed to canonical
// column names for their fiscal year.
type Inputs struct {
	Roster types.Roster

	// RR20 holds the RR-20 sheets per fiscal year, keyed by sheet name.
	RR20 map[int]map[string]*table.Table

	// A10 holds the A-10 facilities table per fiscal year.
	A10 map[int]*table.Table

	A30       *table.Table
	Inventory *table.Table
}

// Rows returns the number of rows loaded.
func (in *Inputs) Rows() int {
	n := 0
	for _, sheets := range in.RR20 {
		for _, t := range sheets {
			n += t.Len()
		}
	}
	for _, t := range in.A10 {
		n += t.Len()
	}
	if in.A30 != nil {
		n += in.A30.Len()
	}
	if in.Inventory != nil {
		n += in.Inventory.Len()
	}
	return n
}

// Loader resolves and reads the input files of a form.
type Loader struct {
	cfg    *config.Config
	src    source.Source
	logger *zap.Logger
}

// NewLoader creates a loader. src is used for inputs the configuration does
// not name explicitly; it may be nil when every input is configured.
func NewLoader(cfg *config.Config, src source.Source, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{cfg: cfg, src: src, logger: logger}
}

// storeFunc returns the snapshot store, opening it on first use.
type storeFunc func() (*snapshot.Store, error)

// Load reads every input the form needs. Files are read concurrently; the
// first failure cancels the rest. The snapshot store is opened only when an
// input is configured as config.SnapshotInput, and is closed before Load
// returns.
func (l *Loader) Load(ctx context.Context, form Form) (*Inputs, error) {
	in := &Inputs{
		RR20: make(map[int]map[string]*table.Table),
		A10:  make(map[int]*table.Table),
	}
	current, prior := l.cfg.Years()
	sheets := l.cfg.Sheets

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)

	var (
		storeOnce sync.Once
		store     *snapshot.Store
		storeErr  error
	)
	snaps := func() (*snapshot.Store, error) {
		storeOnce.Do(func() {
			store, storeErr = snapshot.Open(ctx, l.cfg.SnapshotDB)
		})
		return store, storeErr
	}
	defer func() {
		if store != nil {
			store.Close()
		}
	}()

	g.Go(func() error {
		roster, err := l.roster()
		if err != nil {
			return err
		}
		mu.Lock()
		in.Roster = roster
		mu.Unlock()
		return nil
	})

	rr20 := func(year int, path string, required, optional []string) {
		g.Go(func() error {
			tables, err := l.readWorkbook(ctx, snaps, path, "RR-20", year, required, optional)
			if err != nil {
				return err
			}
			mu.Lock()
			in.RR20[year] = tables
			mu.Unlock()
			return nil
		})
	}

	switch form {
	case FormRR20Service:
		required := []string{sheets.ServiceData, sheets.ExpensesByMode}
		optional := []string{sheets.RevenuesByMode}
		rr20(current, l.cfg.Inputs.RR20.Current, required, optional)
		rr20(prior, l.cfg.Inputs.RR20.Prior, required, optional)

	case FormRR20Financial:
		required := []string{sheets.Financials}
		rr20(current, l.cfg.Inputs.RR20.Current, required, nil)
		rr20(prior, l.cfg.Inputs.RR20.Prior, required, nil)
		g.Go(func() error {
			t, err := l.single(ctx, snaps, l.cfg.Inputs.Inventory, "Inventory", current, sheets.Inventory)
			if errors.Is(err, source.ErrNoUpload) {
				l.logger.Warn("no revenue vehicle inventory upload, new fleet check will warn", zap.Error(err))
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			in.Inventory = t
			mu.Unlock()
			return nil
		})

	case FormA10:
		for _, yf := range []struct {
			year int
			path string
		}{{current, l.cfg.Inputs.A10.Current}, {prior, l.cfg.Inputs.A10.Prior}} {
			g.Go(func() error {
				t, err := l.single(ctx, snaps, yf.path, "A-10", yf.year, sheets.Facilities)
				if yf.year == prior && errors.Is(err, source.ErrNoUpload) {
					l.logger.Warn("no prior year A-10 upload, year over year check skipped", zap.Error(err))
					return nil
				}
				if err != nil {
					return err
				}
				mu.Lock()
				in.A10[yf.year] = t
				mu.Unlock()
				return nil
			})
		}

	case FormVOMS:
		rr20(current, l.cfg.Inputs.RR20.Current, []string{sheets.ServiceData}, nil)
		g.Go(func() error {
			t, err := l.single(ctx, snaps, l.cfg.Inputs.A30, "A-30", current, sheets.A30)
			if err != nil {
				return err
			}
			mu.Lock()
			in.A30 = t
			mu.Unlock()
			return nil
		})
		g.Go(func() error {
			t, err := l.single(ctx, snaps, l.cfg.Inputs.Inventory, "Inventory", current, sheets.Inventory)
			if err != nil {
				return err
			}
			mu.Lock()
			in.Inventory = t
			mu.Unlock()
			return nil
		})

	default:
		return nil, fmt.Errorf("unknown form %q", form)
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return in, nil
}

// roster reads the subrecipient roster CSV.
func (l *Loader) roster() (types.Roster, error) {
	if l.cfg.Inputs.Roster == "" {
		return nil, &types.ConfigError{Op: "load roster", Err: errors.New("inputs.roster is not set")}
	}
	t, err := csvparser.ParseFile(l.path(l.cfg.Inputs.Roster), l.cfg.CSVSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	return schema.Roster(t)
}

// path resolves a configured path against the input directory.
func (l *Loader) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(l.cfg.InputDir, p)
}

// open opens a configured file, or the latest upload of the form when path is
// empty.
func (l *Loader) open(ctx context.Context, path, formName string, year int) (io.ReadCloser, string, error) {
	if path != "" {
		f, err := os.Open(l.path(path))
		if err != nil {
			return nil, "", fmt.Errorf("failed to open %s input: %w", formName, err)
		}
		return f, filepath.Base(path), nil
	}

	if l.src == nil {
		return nil, "", fmt.Errorf("%s input for %d: %w (no source configured)", formName, year, source.ErrNoUpload)
	}
	form, err := source.LookupForm(formName)
	if err != nil {
		return nil, "", err
	}
	name, date, err := source.Latest(ctx, l.src, form.Prefix(year))
	if err != nil {
		return nil, "", err
	}
	l.logger.Info("using latest upload",
		zap.String("form", formName),
		zap.Int("year", year),
		zap.String("file", name),
		zap.Time("uploaded", date))

	rc, err := l.src.Open(ctx, name)
	if err != nil {
		return nil, "", err
	}
	return rc, name, nil
}

// snapshotSheets reads the latest per-agency snapshots of the required sheets,
// and the optional ones ingested, of a form for a fiscal year. A required
// sheet with no snapshot is ErrNoUpload.
func (l *Loader) snapshotSheets(ctx context.Context, snaps storeFunc, formName string, year int, required, optional []string) (map[string]*table.Table, error) {
	store, err := snaps()
	if err != nil {
		return nil, err
	}

	key := snapshot.Key(formName, year)
	tables := make(map[string]*table.Table, len(required)+len(optional))
	for _, sheet := range required {
		t, err := store.Latest(ctx, key, sheet)
		if err != nil {
			return nil, err
		}
		if t.Len() == 0 {
			return nil, fmt.Errorf("%s %q snapshot: %w", key, sheet, source.ErrNoUpload)
		}
		tables[sheet] = t
	}
	for _, sheet := range optional {
		t, err := store.Latest(ctx, key, sheet)
		if err != nil {
			return nil, err
		}
		if t.Len() > 0 {
			tables[sheet] = t
		}
	}

	l.logger.Info("using latest snapshots",
		zap.String("form", formName),
		zap.Int("year", year),
		zap.Int("sheets", len(tables)))
	for sheet, t := range tables {
		tables[sheet] = table.Rename(t, l.cfg.ColumnMapping(year))
	}
	return tables, nil
}

// snapshotTable reads the snapshots of one sheet. When the sheet was never
// ingested, the form's ingested sheets are stacked instead; A-10 uploads are
// ingested per facility sheet while the check reads a single facilities table.
func (l *Loader) snapshotTable(ctx context.Context, snaps storeFunc, formName string, year int, sheet string) (*table.Table, error) {
	tables, err := l.snapshotSheets(ctx, snaps, formName, year, nil, []string{sheet})
	if err != nil {
		return nil, err
	}
	if t, ok := tables[sheet]; ok {
		return t, nil
	}

	form, err := source.LookupForm(formName)
	if err != nil {
		return nil, err
	}
	tables, err = l.snapshotSheets(ctx, snaps, formName, year, nil, form.Sheets)
	if err != nil {
		return nil, err
	}
	var parts []*table.Table
	for _, name := range form.Sheets {
		if t, ok := tables[name]; ok {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%s %q snapshot: %w", snapshot.Key(formName, year), sheet, source.ErrNoUpload)
	}
	return table.Concat(snapshot.Key(formName, year)+":"+sheet, parts...), nil
}

// readWorkbook reads the required sheets, and the optional ones present, of a
// form's workbook for a fiscal year.
func (l *Loader) readWorkbook(ctx context.Context, snaps storeFunc, path, formName string, year int, required, optional []string) (map[string]*table.Table, error) {
	if path == config.SnapshotInput {
		return l.snapshotSheets(ctx, snaps, formName, year, required, optional)
	}

	rc, name, err := l.open(ctx, path, formName, year)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	wb, err := xlsxparser.OpenReader(rc, filepath.Base(name), xlsxparser.Options{})
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	sheets := append([]string{}, required...)
	for _, s := range optional {
		if wb.HasSheet(s) {
			sheets = append(sheets, s)
		} else {
			l.logger.Debug("optional sheet not in workbook", zap.String("workbook", wb.Name), zap.String("sheet", s))
		}
	}

	tables, err := wb.ReadSheets(sheets...)
	if err != nil {
		return nil, err
	}
	for sheet, t := range tables {
		tables[sheet] = table.Rename(t, l.cfg.ColumnMapping(year))
	}
	return tables, nil
}

// single reads a one-table input: a CSV extract, one sheet of a workbook, or
// that sheet's snapshots.
func (l *Loader) single(ctx context.Context, snaps storeFunc, path, formName string, year int, sheet string) (*table.Table, error) {
	if path == config.SnapshotInput {
		return l.snapshotTable(ctx, snaps, formName, year, sheet)
	}

	rc, name, err := l.open(ctx, path, formName, year)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var t *table.Table
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		t, err = csvparser.Parse(rc, filepath.Base(name), l.cfg.CSVSettings)
	} else {
		var wb *xlsxparser.Workbook
		wb, err = xlsxparser.OpenReader(rc, filepath.Base(name), xlsxparser.Options{})
		if err != nil {
			return nil, err
		}
		defer wb.Close()
		t, err = wb.ReadSheet(sheet)
	}
	if err != nil {
		return nil, err
	}
	return table.Rename(t, l.cfg.ColumnMapping(year)), nil
}
