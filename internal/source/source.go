// =============================================================================
// NTD Report Validation - Upload Sources
// =============================================================================
//
// Agencies' form exports are dropped into an upload folder (a local directory
// or a GCS bucket) with the export date in the file name, e.g.
//
//   NTD_Annual_Report_Rural_2023_2024-02-15.xlsx
//
// This package lists those uploads and picks the most recent one per form.
//
// =============================================================================

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ErrNoUpload is returned when no upload matches a form's file prefix.
var ErrNoUpload = errors.New("no upload found")

// Source lists and opens uploaded files.
type Source interface {
	// List returns the names of the files whose name starts with prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Open opens a file returned by List.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

var uploadDate = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// UploadDate returns the last YYYY-MM-DD date in a file name.
func UploadDate(name string) (time.Time, bool) {
	matches := uploadDate.FindAllString(name, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		if d, err := time.Parse("2006-01-02", matches[i]); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// Latest returns the newest dated upload whose base name contains prefix.
// Files without a date in their name are ignored. Ties are broken by name.
func Latest(ctx context.Context, src Source, prefix string) (string, time.Time, error) {
	names, err := src.List(ctx, "")
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to list uploads: %w", err)
	}

	type upload struct {
		name string
		date time.Time
	}
	var candidates []upload
	for _, name := range names {
		if !strings.Contains(baseName(name), prefix) {
			continue
		}
		if d, ok := UploadDate(name); ok {
			candidates = append(candidates, upload{name: name, date: d})
		}
	}
	if len(candidates) == 0 {
		return "", time.Time{}, fmt.Errorf("%w for %q", ErrNoUpload, prefix)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].date.Equal(candidates[j].date) {
			return candidates[i].date.After(candidates[j].date)
		}
		return candidates[i].name > candidates[j].name
	})
	return candidates[0].name, candidates[0].date, nil
}

func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}
