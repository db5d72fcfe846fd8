package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/cal-itp/ntd-modernization/internal/checks"
	"github.com/cal-itp/ntd-modernization/internal/config"
	"github.com/cal-itp/ntd-modernization/internal/rules"
	"github.com/cal-itp/ntd-modernization/internal/snapshot"
	"github.com/cal-itp/ntd-modernization/internal/source"
	"github.com/cal-itp/ntd-modernization/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type sheet struct {
	name string
	rows [][]interface{}
}

func writeWorkbook(t *testing.T, path string, sheets ...sheet) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.name))
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}
		for r, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(s.name, cell, &row))
		}
	}
	require.NoError(t, f.SaveAs(path))
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

// rr20 builds an RR-20 export for one year with Agency A (MB) and an agency
// that is not on the roster.
func rr20(year int, vrm, vrh, expenses float64) []sheet {
	return []sheet{
		{name: "Service Data", rows: [][]interface{}{
			{"Organization Legal Name", "Fiscal Year", "Mode", "Annual VRM", "Annual VRH", "Annual UPT", "Sponsored UPT", "VOMX"},
			{"Agency A", year, "MB", vrm, vrh, 40000, 0, 4},
			{"Not Listed", year, "MB", 1, 1, 1, 0, 1},
		}},
		{name: "Expenses By Mode", rows: [][]interface{}{
			{"Organization Legal Name", "Fiscal Year", "Mode", "Total Annual Expenses By Mode"},
			{"Agency A", year, "MB", expenses},
			{"Not Listed", year, "MB", 1},
		}},
		{name: "Revenues By Mode", rows: [][]interface{}{
			{"Organization Legal Name", "Fiscal Year", "Mode", "Fare Revenues"},
			{"Agency A", year, "MB", 20000},
			{"Not Listed", year, "MB", 0},
		}},
		{name: "Financials - 2", rows: [][]interface{}{
			{"Organization Legal Name", "Fiscal Year", "Operating Capital", "Total Annual Revenues Expended",
				"Total Annual Expenses By Mode", "5311", "ODG", "Fare Revenues", "Local"},
			{"Agency A", year, "Operating", expenses, expenses, 50000, 1000, 20000, expenses - 71000},
			{"Agency A", year, "Capital", 0, 0, 0, 0, 0, 0},
		}},
	}
}

// fixture writes a complete set of inputs and returns a configuration that
// names them.
func fixture(t *testing.T) *config.Config {
	t.Helper()
	in := t.TempDir()

	writeFile(t, filepath.Join(in, "roster.csv"), "Organization\nAgency A\n")
	writeWorkbook(t, filepath.Join(in, "rr20_2023.xlsx"), rr20(2023, 140000, 10000, 140000)...)
	writeWorkbook(t, filepath.Join(in, "rr20_2022.xlsx"), rr20(2022, 125000, 10000, 125000)...)

	writeFile(t, filepath.Join(in, "a10_2023.csv"),
		"Agency,year,Total Facilities,Under 200 Vehicles,200 to 300 Vehicles,Over 300 Vehicles\n"+
			"Agency A,2023,1,1,0,0\n"+
			"Not Listed,2023,0,0,0,0\n")
	writeFile(t, filepath.Join(in, "a10_2022.csv"),
		"Agency,year,Total Facilities,Under 200 Vehicles,200 to 300 Vehicles,Over 300 Vehicles\n"+
			"Agency A,2022,1,1,0,0\n")

	writeWorkbook(t, filepath.Join(in, "inventory.xlsx"), sheet{name: "Revenue Vehicles", rows: [][]interface{}{
		{"Organization", "VIN", "Status", "Ownership Type"},
		{"Agency A", "VIN1", "Active", "OOPA"},
		{"Agency A", "VIN2", "Inactive", "OOPA"},
	}})

	cfg := &config.Config{
		ThisYear:         2023,
		LastYear:         2022,
		InputDir:         in,
		OutputDir:        filepath.Join(t.TempDir(), "reports"),
		ReportNameFormat: "{form}_check_report_{date}",
		Inputs: config.InputsConfig{
			Roster:    "roster.csv",
			RR20:      config.YearFiles{Current: "rr20_2023.xlsx", Prior: "rr20_2022.xlsx"},
			A10:       config.YearFiles{Current: "a10_2023.csv", Prior: "a10_2022.csv"},
			Inventory: "inventory.xlsx",
		},
		Sheets: config.SheetsConfig{
			ServiceData:    "Service Data",
			ExpensesByMode: "Expenses By Mode",
			RevenuesByMode: "Revenues By Mode",
			Financials:     "Financials - 2",
			Facilities:     "A-10",
			A30:            "A-30 (Rural) RVI",
			Inventory:      "Revenue Vehicles",
		},
		CSVSettings:          config.CSVSettings{Delimiter: ",", HeaderRow: 1},
		FinancialFields:      config.DefaultFinancialFields,
		FundingSourceColumns: config.DefaultFundingSourceColumns,
	}
	return cfg
}

func byCheck(all []types.Finding) map[string]types.Finding {
	out := make(map[string]types.Finding, len(all))
	for _, f := range all {
		out[f.CheckName] = f
	}
	return out
}

func TestRun_RR20Service(t *testing.T) {
	cfg := fixture(t)
	runner := New(cfg, nil, zap.NewNop())

	result := runner.Run(context.Background(), FormRR20Service)
	require.NoError(t, result.Error)

	assert.Equal(t, []string{"Not Listed"}, result.Dropped)
	assert.Empty(t, result.Issues)
	require.Len(t, result.Findings, 1+len(rules.DefaultServiceRules()))
	for _, f := range result.Findings {
		assert.Equal(t, "Agency A", f.Organization)
	}

	got := byCheck(result.Findings)
	assert.Equal(t, types.StatusPass, got[checks.CheckMissingServiceData].Status)

	// 12.5 -> 14.0 per hour is a 12% change, inside the 30% threshold.
	cph := got["cost_per_hr"]
	assert.Equal(t, types.StatusPass, cph.Status)
	assert.Equal(t, "MB", cph.Mode)
	assert.Equal(t, "2023 = 14.0, 2022 = 12.5", cph.ValueChecked)

	assert.Equal(t, result.Summary.Total, len(result.Findings))
	assert.Equal(t, runner.RunID, result.RunID)
}

func TestRun_ThresholdOverride(t *testing.T) {
	cfg := fixture(t)
	cfg.Thresholds = map[string]float64{"cost_per_hr": 0.1}

	result := New(cfg, nil, nil).Run(context.Background(), FormRR20Service)
	require.NoError(t, result.Error)
	assert.Equal(t, types.StatusFail, byCheck(result.Findings)["cost_per_hr"].Status)
}

func TestRun_RR20FinancialWithoutInventory(t *testing.T) {
	cfg := fixture(t)
	cfg.Inputs.Inventory = ""

	result := New(cfg, nil, nil).Run(context.Background(), FormRR20Financial)
	require.NoError(t, result.Error)

	got := byCheck(result.Findings)
	require.Contains(t, got, checks.CheckNewFleetCapital)
	assert.Equal(t, types.StatusWarning, got[checks.CheckNewFleetCapital].Status)
	for _, f := range result.Findings {
		assert.Equal(t, "Agency A", f.Organization)
	}
}

func TestRun_A10FromCSV(t *testing.T) {
	cfg := fixture(t)

	result := New(cfg, nil, nil).Run(context.Background(), FormA10)
	require.NoError(t, result.Error)

	got := byCheck(result.Findings)
	assert.Equal(t, types.StatusPass, got[rules.CheckWholeNumberFacilities].Status)
	assert.Equal(t, types.StatusPass, got[rules.CheckGenPurposeLastYear].Status)
	assert.Equal(t, []string{"Not Listed"}, result.Dropped)
	assert.Len(t, result.Report.Readme, 11)
}

func TestRun_VOMSFromLatestUpload(t *testing.T) {
	cfg := fixture(t)

	// The A-30 is not configured and is resolved from the upload folder.
	uploads := cfg.InputDir
	writeWorkbook(t, filepath.Join(uploads, "A_30_Revenue_Vehicle_Report_2023_2024-01-02.xlsx"),
		sheet{name: "A-30 (Rural) RVI", rows: [][]interface{}{{"Organization", "VIN"}, {"Agency A", "OLD"}}})
	writeWorkbook(t, filepath.Join(uploads, "A_30_Revenue_Vehicle_Report_2023_2024-02-01.xlsx"),
		sheet{name: "A-30 (Rural) RVI", rows: [][]interface{}{
			{"Organization", "VIN"},
			{"Agency A", "VIN1"},
			{"Agency A", "VIN2"},
		}})

	result := New(cfg, source.NewLocal(uploads), nil).Run(context.Background(), FormVOMS)
	require.NoError(t, result.Error)

	var vinStatus []types.Status
	var totals types.Finding
	for _, f := range result.Findings {
		switch f.CheckName {
		case checks.CheckVIN:
			vinStatus = append(vinStatus, f.Status)
		case checks.CheckFleetTotals:
			totals = f
		}
	}
	assert.ElementsMatch(t, []types.Status{types.StatusPass, types.StatusFail}, vinStatus)
	assert.Equal(t, types.StatusWarning, totals.Status)
	assert.Equal(t, "A-30 vehicles = 2, active inventory = 1, RR-20 VOMS = 4", totals.ValueChecked)

	require.Len(t, result.Report.Sheets, 3)
	fails := result.Report.Sheets[1]
	assert.Equal(t, "vin_check_fails_only", fails.Name)
	require.Len(t, fails.Rows, 1)
	assert.Contains(t, fails.Rows[0], "VIN2")
	assert.NotContains(t, fails.Rows[0], "VIN1")
}

func TestRun_RR20ServiceFromSnapshots(t *testing.T) {
	ctx := context.Background()
	cfg := fixture(t)
	fromFiles := New(cfg, nil, nil).Run(ctx, FormRR20Service)
	require.NoError(t, fromFiles.Error)

	cfg.SnapshotDB = filepath.Join(t.TempDir(), "snapshots.db")
	store, err := snapshot.Open(ctx, cfg.SnapshotDB)
	require.NoError(t, err)
	form, err := source.LookupForm("RR-20")
	require.NoError(t, err)
	src := source.NewLocal(cfg.InputDir)
	now := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	for year, file := range map[int]string{2023: "rr20_2023.xlsx", 2022: "rr20_2022.xlsx"} {
		_, err := store.Ingest(ctx, src, form, year, file, now, nil)
		require.NoError(t, err)
	}
	require.NoError(t, store.Close())

	cfg.Inputs.RR20 = config.YearFiles{Current: config.SnapshotInput, Prior: config.SnapshotInput}
	fromSnapshots := New(cfg, nil, nil).Run(ctx, FormRR20Service)
	require.NoError(t, fromSnapshots.Error)

	assert.Equal(t, fromFiles.Findings, fromSnapshots.Findings)
	assert.Equal(t, fromFiles.Dropped, fromSnapshots.Dropped)
}

func TestRun_A10FromFacilitySnapshots(t *testing.T) {
	ctx := context.Background()
	cfg := fixture(t)
	fromFiles := New(cfg, nil, nil).Run(ctx, FormA10)
	require.NoError(t, fromFiles.Error)

	// A-10 uploads are ingested per facility sheet; the check reads them
	// stacked as one facilities table.
	header := []interface{}{"Agency", "year", "Total Facilities", "Under 200 Vehicles", "200 to 300 Vehicles", "Over 300 Vehicles"}
	writeWorkbook(t, filepath.Join(cfg.InputDir, "a10_2023.xlsx"),
		sheet{name: "PurchaseTranspFacOwnTypes", rows: [][]interface{}{header, {"Agency A", 2023, 0, 0, 0, 0}}},
		sheet{name: "DirectlyOperatedFacOwnTypes", rows: [][]interface{}{
			header,
			{"Agency A", 2023, 1, 1, 0, 0},
			{"Not Listed", 2023, 0, 0, 0, 0},
		}})
	writeWorkbook(t, filepath.Join(cfg.InputDir, "a10_2022.xlsx"),
		sheet{name: "DirectlyOperatedFacOwnTypes", rows: [][]interface{}{header, {"Agency A", 2022, 1, 1, 0, 0}}})

	cfg.SnapshotDB = filepath.Join(t.TempDir(), "snapshots.db")
	store, err := snapshot.Open(ctx, cfg.SnapshotDB)
	require.NoError(t, err)
	form, err := source.LookupForm("A-10")
	require.NoError(t, err)
	src := source.NewLocal(cfg.InputDir)
	now := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	for year, file := range map[int]string{2023: "a10_2023.xlsx", 2022: "a10_2022.xlsx"} {
		_, err := store.Ingest(ctx, src, form, year, file, now, nil)
		require.NoError(t, err)
	}
	require.NoError(t, store.Close())

	cfg.Inputs.A10 = config.YearFiles{Current: config.SnapshotInput, Prior: config.SnapshotInput}
	fromSnapshots := New(cfg, nil, nil).Run(ctx, FormA10)
	require.NoError(t, fromSnapshots.Error)

	assert.Equal(t, fromFiles.Findings, fromSnapshots.Findings)
	assert.Equal(t, []string{"Not Listed"}, fromSnapshots.Dropped)
}

func TestRun_MissingSnapshotFails(t *testing.T) {
	cfg := fixture(t)
	cfg.SnapshotDB = filepath.Join(t.TempDir(), "snapshots.db")
	cfg.Inputs.RR20.Prior = config.SnapshotInput

	result := New(cfg, nil, nil).Run(context.Background(), FormRR20Financial)
	assert.ErrorIs(t, result.Error, source.ErrNoUpload)
}

func TestRun_MissingRosterFails(t *testing.T) {
	cfg := fixture(t)
	cfg.Inputs.Roster = ""

	result := New(cfg, nil, nil).Run(context.Background(), FormA10)
	var cfgErr *types.ConfigError
	require.ErrorAs(t, result.Error, &cfgErr)
	assert.Equal(t, "load roster", cfgErr.Op)
}

func TestRun_MissingUploadFails(t *testing.T) {
	cfg := fixture(t)
	cfg.Inputs.A30 = ""

	result := New(cfg, nil, nil).Run(context.Background(), FormVOMS)
	assert.ErrorIs(t, result.Error, source.ErrNoUpload)
}

func TestWriteReport(t *testing.T) {
	cfg := fixture(t)
	runner := New(cfg, nil, nil)

	result := runner.Run(context.Background(), FormA10)
	require.NoError(t, result.Error)

	now := time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, runner.WriteReport(&result, now))
	assert.Equal(t, filepath.Join(cfg.OutputDir, "a10_check_report_2024-02-15.xlsx"), result.OutputFile)

	f, err := excelize.OpenFile(result.OutputFile)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"a10_checks_full", "readme"}, f.GetSheetList())
}

func TestParseForm(t *testing.T) {
	forms, err := ParseForm("all")
	require.NoError(t, err)
	assert.Equal(t, Forms, forms)

	forms, err = ParseForm("RR20-Financial")
	require.NoError(t, err)
	assert.Equal(t, []Form{FormRR20Financial}, forms)
	assert.Equal(t, "rr20_financial", forms[0].ReportName())

	_, err = ParseForm("b-99")
	assert.Error(t, err)
}
