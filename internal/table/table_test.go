package table

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cal-itp/ntd-modernization/internal/types"
)

func TestCanonicalHeader(t *testing.T) {
	cases := map[string]string{
		"Organization Legal Name":              "Organization_Legal_Name",
		"Common Name/Acronym/DBA":              "Common_Name_Acronym_DBA",
		"Fiscal Year":                          "Fiscal_Year",
		"Vehicle #":                            "Vehicle_num",
		"Financials - 2":                       "Financials_2",
		"ADA Accessible Vehicles (0/No 1/Yes)": "ADA_Accessible_Vehicles_0_No_1_Yes",
		"  VOMX ":                              "VOMX",
		"Organization_Legal_Name":              "Organization_Legal_Name",
	}
	for in, want := range cases {
		assert.Equal(t, want, CanonicalHeader(in), in)
	}
}

func TestTable_CaseInsensitiveLookup(t *testing.T) {
	tbl := New("expenses", []string{"Total Annual Expenses By Mode"})
	tbl.Append(map[string]string{"Total Annual Expenses By Mode": " 1200 "})

	assert.True(t, tbl.HasColumn("Total_Annual_Expenses_by_Mode"))
	assert.Equal(t, "1200", tbl.Get(tbl.Rows[0], "total annual expenses by mode"))
	assert.Equal(t, "", tbl.Get(tbl.Rows[0], "Missing"))
}

func TestRename(t *testing.T) {
	tbl := New("service 2022", []string{"Org Name", "VOMS"})
	tbl.Append(map[string]string{"Org Name": "Agency A", "VOMS": "4"})

	renamed := Rename(tbl, map[string]string{
		"Org Name": "Organization Legal Name",
		"VOMS":     "VOMX",
	})

	require.Equal(t, []string{"Organization_Legal_Name", "VOMX"}, renamed.Columns)
	assert.Equal(t, "Agency A", renamed.Get(renamed.Rows[0], "Organization_Legal_Name"))
	assert.Equal(t, "4", renamed.Get(renamed.Rows[0], "VOMX"))

	// The source table is untouched.
	assert.True(t, tbl.HasColumn("Org_Name"))
}

func TestConcat(t *testing.T) {
	a := New("a", []string{"Org", "X"})
	a.Append(map[string]string{"Org": "A", "X": "1"})
	b := New("b", []string{"Org", "Y"})
	b.Append(map[string]string{"Org": "B", "Y": "2"})

	c := Concat("ab", a, nil, b)
	assert.Equal(t, []string{"Org", "X", "Y"}, c.Columns)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, "", c.Get(c.Rows[1], "X"))
	assert.Equal(t, "2", c.Get(c.Rows[1], "Y"))
}

func TestJoin_InnerOnKeys(t *testing.T) {
	keys := []string{"Organization Legal Name", "Mode", "Fiscal Year"}

	service := New("service", []string{"Organization Legal Name", "Mode", "Fiscal Year", "VOMX"})
	service.Append(map[string]string{"Organization Legal Name": "A", "Mode": "MB", "Fiscal Year": "2023", "VOMX": "5"})
	service.Append(map[string]string{"Organization Legal Name": "A", "Mode": "DR", "Fiscal Year": "2023", "VOMX": "3"})
	service.Append(map[string]string{"Organization Legal Name": "B", "Mode": "MB", "Fiscal Year": "2023", "VOMX": "2"})

	expenses := New("expenses", []string{"Organization Legal Name", "Mode", "Fiscal Year", "Total Annual Expenses By Mode"})
	expenses.Append(map[string]string{"Organization Legal Name": "A", "Mode": "MB", "Fiscal Year": "2023.0", "Total Annual Expenses By Mode": "1000"})
	expenses.Append(map[string]string{"Organization Legal Name": "B", "Mode": "MB", "Fiscal Year": "2022", "Total Annual Expenses By Mode": "900"})

	joined, err := Join("rr20", keys, service, expenses)
	require.NoError(t, err)
	require.Equal(t, 1, joined.Len())

	row := joined.Rows[0]
	assert.Equal(t, "A", joined.Get(row, "Organization_Legal_Name"))
	assert.Equal(t, "5", joined.Get(row, "VOMX"))
	assert.Equal(t, "1000", joined.Get(row, "Total_Annual_Expenses_By_Mode"))
	assert.Equal(t, "rr20", joined.Name)
	assert.Equal(t, "service", service.Name)
}

func TestJoin_MissingKeyIsConfigError(t *testing.T) {
	service := New("service", []string{"Organization Legal Name", "Mode", "Fiscal Year"})
	expenses := New("expenses", []string{"Organization Legal Name", "Fiscal Year"})

	_, err := Join("rr20", []string{"Organization Legal Name", "Mode", "Fiscal Year"}, service, expenses)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrMissingColumn))

	var cfgErr *types.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "expenses", cfgErr.Table)
	assert.Equal(t, "Mode", cfgErr.Column)
}

func TestRestrictToRoster(t *testing.T) {
	tbl := New("service", []string{"Organization Legal Name"})
	tbl.Append(map[string]string{"Organization Legal Name": "A"})
	tbl.Append(map[string]string{"Organization Legal Name": "Z"})
	tbl.Append(map[string]string{"Organization Legal Name": "Z"})

	kept, dropped, err := RestrictToRoster(tbl, "Organization Legal Name", types.NewRoster(" A "))
	require.NoError(t, err)
	assert.Equal(t, 1, kept.Len())
	assert.Equal(t, []string{"Z"}, dropped)

	_, _, err = RestrictToRoster(tbl, "Agency", types.NewRoster("A"))
	assert.ErrorIs(t, err, types.ErrMissingColumn)
}
