package checks

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cal-itp/ntd-modernization/internal/metrics"
	"github.com/cal-itp/ntd-modernization/internal/rules"
	"github.com/cal-itp/ntd-modernization/internal/types"
)

var years = rules.Years{Current: 2023, Prior: 2022}

func num(v float64) *float64 { return &v }

func serviceRow(org, mode string, year int, vrm, vrh, upt, vomx, expenses, fares float64) types.ServiceRecord {
	return types.ServiceRecord{
		Organization:        org,
		Mode:                mode,
		FiscalYear:          year,
		AnnualVRM:           num(vrm),
		AnnualVRH:           num(vrh),
		AnnualUPT:           num(upt),
		SponsoredUPT:        num(0),
		VOMX:                num(vomx),
		TotalExpensesByMode: num(expenses),
		FareRevenues:        num(fares),
	}
}

func prepared(t *testing.T, records []types.ServiceRecord) []types.ServiceRecord {
	t.Helper()
	out, err := metrics.Attach(metrics.FillZero(records), metrics.Defaults)
	require.NoError(t, err)
	return out
}

func TestMissingServiceData(t *testing.T) {
	complete := serviceRow("A", "MB", 2023, 1, 1, 1, 1, 1, 1)
	gap := serviceRow("B", "DR", 2023, 1, 1, 1, 1, 1, 1)
	gap.AnnualVRH = nil
	priorOnly := serviceRow("C", "DR", 2022, 1, 1, 1, 1, 1, 1)
	priorOnly.VOMX = nil

	got := New(years, nil).MissingServiceData([]types.ServiceRecord{complete, gap, priorOnly})
	require.Len(t, got, 2)

	assert.Equal(t, "A", got[0].Organization)
	assert.Equal(t, types.StatusPass, got[0].Status)
	assert.Empty(t, got[0].Description)

	assert.Equal(t, "B", got[1].Organization)
	assert.Equal(t, types.StatusFail, got[1].Status)
	assert.Equal(t, CheckMissingServiceData, got[1].CheckName)
	assert.Equal(t, "Service data columns", got[1].ValueChecked)
	assert.NotEmpty(t, got[1].Description)
}

// TestServiceRules_CostPerHourScenario verifies the 12.50 vs 10.00 pass and
// 14.00 vs 10.00 fail end to end through the metric layer.
func TestServiceRules_CostPerHourScenario(t *testing.T) {
	records := prepared(t, []types.ServiceRecord{
		serviceRow("A", "MB", 2023, 100, 10, 50, 2, 125, 10),
		serviceRow("A", "MB", 2022, 100, 10, 50, 2, 100, 10),
		serviceRow("B", "MB", 2023, 100, 10, 50, 2, 140, 10),
		serviceRow("B", "MB", 2022, 100, 10, 50, 2, 100, 10),
	})
	cost := rules.DefaultServiceRules()[:1]

	got, err := New(years, nil).ServiceRules(records, cost)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, types.StatusPass, got[0].Status)
	assert.Equal(t, "2023 = 12.5, 2022 = 10.0", got[0].ValueChecked)
	assert.Equal(t, types.StatusFail, got[1].Status)
	assert.Contains(t, got[1].Description, "40.0%")
	assert.Equal(t, "MB", got[1].Mode)
}

// TestServiceRules_Completeness verifies exactly one finding per rule per mode
// for agencies with both years, plus the zero substitution for modes missing
// from the prior year.
func TestServiceRules_Completeness(t *testing.T) {
	records := prepared(t, []types.ServiceRecord{
		serviceRow("A", "MB", 2023, 100, 10, 50, 2, 125, 10),
		serviceRow("A", "DR", 2023, 100, 10, 50, 2, 125, 10),
		serviceRow("A", "MB", 2022, 100, 10, 50, 2, 100, 10),
		serviceRow("C", "MB", 2023, 100, 10, 50, 2, 100, 10),
	})
	rs := rules.DefaultServiceRules()

	got, err := New(years, nil).ServiceRules(records, rs)
	require.NoError(t, err)

	counts := make(map[string]int)
	for _, f := range got {
		assert.Equal(t, "A", f.Organization, "agency C has no prior year")
		counts[f.Mode]++
		assert.Equal(t, f.Status == types.StatusPass, f.Description == "", f)
	}

	// MB: every rule. DR: only the three rules that substitute zero.
	assert.Equal(t, len(rs), counts["MB"])
	assert.Equal(t, 3, counts["DR"])

	for _, f := range got {
		if f.Mode == "DR" && f.CheckName == "VOMX" {
			assert.Equal(t, types.StatusFail, f.Status)
			assert.Equal(t, "2023 = 2.0, 2022 = 0.0", f.ValueChecked)
		}
	}
}

func TestServiceRules_LogsSkippedAgencies(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	records := prepared(t, []types.ServiceRecord{
		serviceRow("C", "MB", 2023, 100, 10, 50, 2, 100, 10),
	})

	got, err := New(years, zap.New(core)).ServiceRules(records, rules.DefaultServiceRules()[:1])
	require.NoError(t, err)
	assert.Empty(t, got)

	entries := logs.FilterField(zap.String("organization", "C")).All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "skipping comparison")
}

func TestServiceRules_UnknownMetricIsConfigError(t *testing.T) {
	records := prepared(t, []types.ServiceRecord{serviceRow("A", "MB", 2023, 1, 1, 1, 1, 1, 1)})

	_, err := New(years, nil).ServiceRules(records, []rules.Rule{{Metric: "cost_per_mile", Kind: rules.KindPercentChange}})
	assert.ErrorIs(t, err, types.ErrMissingColumn)
}

// TestServiceRules_Idempotent verifies two runs over the same input produce
// identical findings.
func TestServiceRules_Idempotent(t *testing.T) {
	raw := []types.ServiceRecord{
		serviceRow("A", "MB", 2023, 100, 10, 50, 2, 125, 10),
		serviceRow("A", "MB", 2022, 120, 10, 0, 2, 100, 10),
		serviceRow("A", "DR", 2023, 0, 3, 9, 0, 30, 0),
		serviceRow("B", "MB", 2023, 10, 1, 5, 1, 14, 2),
		serviceRow("B", "MB", 2022, 10, 1, 5, 1, 10, 2),
	}
	c := New(years, nil)

	run := func() []types.Finding {
		out := c.MissingServiceData(raw)
		more, err := c.ServiceRules(prepared(t, raw), rules.DefaultServiceRules())
		require.NoError(t, err)
		return append(out, more...)
	}

	first, second := run(), run()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
}
