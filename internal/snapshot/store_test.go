package snapshot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cal-itp/ntd-modernization/internal/table"
)

func day(d int) time.Time {
	return time.Date(2024, 2, d, 0, 0, 0, 0, time.UTC)
}

func serviceTable(vrm map[string]string) *table.Table {
	t := table.New("Service Data", []string{"Organization_Legal_Name", "Mode", "Annual_VRM"})
	for _, org := range []string{"Agency A", "Agency B"} {
		if v, ok := vrm[org]; ok {
			t.Append(map[string]string{"Organization_Legal_Name": org, "Mode": "MB", "Annual_VRM": v})
		}
	}
	return t
}

func TestAppend_SkipsUnchangedAgencies(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "data", "snapshots.db"))
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Append(ctx, "RR-20", "Service Data", day(1),
		serviceTable(map[string]string{"Agency A": "100", "Agency B": "200"}))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Agency B resubmits; Agency A's data is unchanged.
	n, err = store.Append(ctx, "RR-20", "Service Data", day(15),
		serviceTable(map[string]string{"Agency A": "100", "Agency B": "250"}))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	dates, err := store.Dates(ctx, "RR-20", "Service Data", "Agency B")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(15), day(1)}, dates)

	dates, err = store.Dates(ctx, "RR-20", "Service Data", "Agency A")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(1)}, dates)

	latest, err := store.Latest(ctx, "RR-20", "Service Data")
	require.NoError(t, err)
	require.Equal(t, 2, latest.Len())
	assert.Equal(t, []string{"Organization_Legal_Name", "Mode", "Annual_VRM"}, latest.Columns)
	assert.Equal(t, "Agency A", latest.Get(latest.Rows[0], "Organization_Legal_Name"))
	assert.Equal(t, "100", latest.Get(latest.Rows[0], "Annual_VRM"))
	assert.Equal(t, "250", latest.Get(latest.Rows[1], "Annual_VRM"))
}

func TestLatest_Empty(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	latest, err := store.Latest(ctx, "A-30", "A-30 (Rural) RVI")
	require.NoError(t, err)
	assert.Equal(t, 0, latest.Len())
}

func TestAppend_RequiresOrganizationColumn(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Append(ctx, "Inventory", "Revenue Vehicles", day(1), table.New("inventory", []string{"VIN"}))
	assert.Error(t, err)
}
