package snapshot

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/cal-itp/ntd-modernization/internal/source"
	"github.com/cal-itp/ntd-modernization/internal/xlsxparser"
)

// Key is the store's form key for a form's uploads of one fiscal year.
func Key(form string, year int) string {
	return fmt.Sprintf("%s/%d", form, year)
}

// IngestResult reports what one upload contributed to the store.
type IngestResult struct {
	File     string
	Uploaded time.Time

	// Written counts the agencies written per sheet.
	Written map[string]int

	// Missing lists the form's sheets the workbook does not have.
	Missing []string
}

// Ingest snapshots the form's sheets from one upload under Key(form.Name,
// year). When name is empty the latest upload of the form for year is used.
// The upload date is taken from the file name, falling back to now.
func (s *Store) Ingest(ctx context.Context, src source.Source, form source.Form, year int, name string, now time.Time, logger *zap.Logger) (IngestResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	res := IngestResult{Written: make(map[string]int)}

	uploaded := now
	if name == "" {
		latest, date, err := source.Latest(ctx, src, form.Prefix(year))
		if err != nil {
			return res, err
		}
		name, uploaded = latest, date
	} else if d, ok := source.UploadDate(name); ok {
		uploaded = d
	}
	res.File, res.Uploaded = name, uploaded

	rc, err := src.Open(ctx, name)
	if err != nil {
		return res, err
	}
	defer rc.Close()

	wb, err := xlsxparser.OpenReader(rc, filepath.Base(name), xlsxparser.Options{})
	if err != nil {
		return res, err
	}
	defer wb.Close()

	for _, sheet := range form.Sheets {
		if !wb.HasSheet(sheet) {
			res.Missing = append(res.Missing, sheet)
			logger.Warn("sheet missing from upload", zap.String("file", name), zap.String("sheet", sheet))
			continue
		}
		t, err := wb.ReadSheet(sheet)
		if err != nil {
			return res, err
		}
		n, err := s.Append(ctx, Key(form.Name, year), sheet, uploaded, t)
		if err != nil {
			return res, fmt.Errorf("failed to snapshot %s: %w", sheet, err)
		}
		res.Written[sheet] = n
		logger.Info("ingested sheet",
			zap.String("form", form.Name),
			zap.String("sheet", sheet),
			zap.Int("rows", t.Len()),
			zap.Int("agencies_written", n))
	}
	return res, nil
}
