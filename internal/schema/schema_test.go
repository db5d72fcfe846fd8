package schema

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cal-itp/ntd-modernization/internal/table"
	"github.com/cal-itp/ntd-modernization/internal/types"
)

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want *float64
		err  bool
	}{
		{in: "1200", want: ptr(1200)},
		{in: "$1,200.50", want: ptr(1200.5)},
		{in: "(300)", want: ptr(-300)},
		{in: " 2023.0 ", want: ptr(2023)},
		{in: "", want: nil},
		{in: "NaN", want: nil},
		{in: "-", want: nil},
		{in: "twelve", err: true},
	}
	for _, tc := range cases {
		got, err := parseNumber(tc.in)
		if tc.err {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2023-03-15")
	require.NoError(t, err)
	assert.Equal(t, 2023, d.Year())

	d, err = parseDate("3/15/2023")
	require.NoError(t, err)
	assert.Equal(t, time.March, d.Month())

	// Excel serial for 2023-01-02.
	d, err = parseDate("44928")
	require.NoError(t, err)
	assert.Equal(t, 2023, d.Year())
	assert.Equal(t, time.January, d.Month())

	d, err = parseDate("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = parseDate("someday")
	assert.Error(t, err)
}

func TestDecoder_ServiceKeepsNulls(t *testing.T) {
	tbl := table.New("rr20 service", []string{"Organization Legal Name", "Mode", "Fiscal Year", "Annual VRM", "Annual VRH", "VOMX"})
	tbl.Append(map[string]string{"Organization Legal Name": "A", "Mode": "MB", "Fiscal Year": "2023", "Annual VRM": "1,000", "Annual VRH": "", "VOMX": "4"})

	records, issues, err := NewDecoder(nil).Service(tbl)
	require.NoError(t, err)
	assert.Empty(t, issues)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "A", rec.Organization)
	assert.Equal(t, 2023, rec.FiscalYear)
	require.NotNil(t, rec.AnnualVRM)
	assert.Equal(t, 1000.0, *rec.AnnualVRM)
	assert.Nil(t, rec.AnnualVRH)
	assert.Nil(t, rec.AnnualUPT)
}

func TestDecoder_ServiceMissingModeIsConfigError(t *testing.T) {
	tbl := table.New("rr20 service", []string{"Organization Legal Name", "Fiscal Year"})

	_, _, err := NewDecoder(nil).Service(tbl)
	require.Error(t, err)

	var cfgErr *types.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ColMode, cfgErr.Column)
	assert.ErrorIs(t, err, types.ErrMissingColumn)
}

func TestDecoder_InvalidRowsBecomeIssues(t *testing.T) {
	tbl := table.New("rr20 service", []string{"Organization", "Mode", "year", "Annual UPT"})
	tbl.Append(map[string]string{"Organization": "A", "Mode": "MB", "year": "2023", "Annual UPT": "lots"})
	tbl.Append(map[string]string{"Organization": "", "Mode": "MB", "year": "2023"})
	tbl.Append(map[string]string{"Organization": "B", "Mode": "DR", "year": "n/a"})

	records, issues, err := NewDecoder(nil).Service(tbl)
	require.NoError(t, err)

	// The unparseable cell is reported but the row is kept with a null value.
	require.Len(t, records, 1)
	assert.Nil(t, records[0].AnnualUPT)

	require.Len(t, issues, 3)
	for _, issue := range issues {
		assert.ErrorIs(t, issue, types.ErrInvalidRecord)
	}
	assert.Equal(t, ColAnnualUPT, issues[0].Column)
	assert.Equal(t, "Organization", issues[1].Column)
	assert.Equal(t, ColFiscalYear, issues[2].Column)
}

func TestDecoder_FinancialFundingColumns(t *testing.T) {
	funding := []string{"Directly_Generated", "Federal_Government"}
	tbl := table.New("financials", []string{"Organization Legal Name", "Fiscal Year", "Operating Capital", "Total Annual Expenses By Mode", "Directly Generated"})
	tbl.Append(map[string]string{
		"Organization Legal Name":       "A",
		"Fiscal Year":                   "2023",
		"Operating Capital":             "Capital",
		"Total Annual Expenses By Mode": "5000",
		"Directly Generated":            "2000",
	})

	records, issues, err := NewDecoder(funding).Financial(tbl)
	require.NoError(t, err)
	assert.Empty(t, issues)
	require.Len(t, records, 1)
	assert.Equal(t, "Capital", records[0].OperatingCapital)
	assert.Equal(t, 5000.0, records[0].TotalAnnualExpensesByMode)
	assert.Equal(t, 2000.0, records[0].Funding("Directly_Generated"))
	assert.Equal(t, 0.0, records[0].Funding("Federal_Government"))
}

func TestDecoder_FacilitiesAliases(t *testing.T) {
	tbl := table.New("a10", []string{"Agency", "year", "Total Facilities", "Under 200 Vehicles", "200 to 300 Vehicles"})
	tbl.Append(map[string]string{"Agency": "A", "year": "2023", "Total Facilities": "2", "Under 200 Vehicles": "1", "200 to 300 Vehicles": "1"})

	records, _, err := NewDecoder(nil).Facilities(tbl)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "A", records[0].Organization)
	assert.Equal(t, 2.0, records[0].GeneralPurpose())
}

func TestDecoder_InventoryAndA30(t *testing.T) {
	inv := table.New("inventory", []string{"Organization", "VIN", "Status", "Ownership Type", "In Service Date"})
	inv.Append(map[string]string{"Organization": "A", "VIN": "V1", "Status": "Active", "Ownership Type": "OOPA", "In Service Date": "2023-05-01"})
	inv.Append(map[string]string{"Organization": "A", "VIN": "", "Status": "Active"})

	vehicles, issues, err := NewDecoder(nil).Inventory(inv)
	require.NoError(t, err)
	require.Len(t, vehicles, 1)
	require.Len(t, issues, 1)
	assert.True(t, vehicles[0].Active())
	assert.Equal(t, 2023, vehicles[0].InServiceDate.Year())

	a30 := table.New("a30", []string{"Organization", "VIN"})
	a30.Append(map[string]string{"Organization": "A", "VIN": "V1"})
	listed, _, err := NewDecoder(nil).A30(a30)
	require.NoError(t, err)
	assert.Equal(t, []types.A30Vehicle{{Organization: "A", VIN: "V1"}}, listed)
}

func TestRoster(t *testing.T) {
	tbl := table.New("roster", []string{"Organization"})
	tbl.Append(map[string]string{"Organization": " Agency A "})
	tbl.Append(map[string]string{"Organization": ""})

	roster, err := Roster(tbl)
	require.NoError(t, err)
	assert.Equal(t, []string{"Agency A"}, roster.Names())

	_, err = Roster(table.New("roster", []string{"Name"}))
	assert.ErrorIs(t, err, types.ErrMissingColumn)
}

func ptr(f float64) *float64 { return &f }
