package xlsxparser

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// newWorkbook builds an RR-20 style export with a Service Data sheet.
func newWorkbook(t *testing.T) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Service Data"))

	rows := [][]interface{}{
		{"Organization Legal Name", "Fiscal Year", "Mode", "", "Annual VRM"},
		{"Agency A", 2023, "MB", nil, 120000.5},
		{nil, nil, nil, nil, nil},
		{"Agency B", 2023, "DR"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Service Data", cell, &row))
	}

	_, err := f.NewSheet("Expenses by Mode")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Expenses by Mode", "A1", &[]interface{}{"Organization_Legal_Name"}))
	return f
}

func TestReadSheets_NamedSheets(t *testing.T) {
	f := newWorkbook(t)
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	w, err := OpenReader(&buf, "NTD_Annual_Report_Rural_2023.xlsx", Options{})
	require.NoError(t, err)
	defer w.Close()

	tables, err := w.ReadSheets("Service Data", "Expenses By Mode")
	require.NoError(t, err)

	service := tables["Service Data"]
	require.NotNil(t, service)
	assert.Equal(t, "NTD_Annual_Report_Rural_2023.xlsx:Service Data", service.Name)
	assert.Equal(t, []string{"Organization_Legal_Name", "Fiscal_Year", "Mode", "Column_D", "Annual_VRM"}, service.Columns)

	require.Equal(t, 2, service.Len())
	first := service.Rows[0]
	assert.Equal(t, "Agency A", service.Get(first, "Organization_Legal_Name"))
	assert.Equal(t, "2023", service.Get(first, "Fiscal_Year"))
	assert.Equal(t, "120000.5", service.Get(first, "Annual_VRM"))
	assert.Equal(t, "", service.Get(service.Rows[1], "Annual_VRM"))

	assert.Equal(t, 0, tables["Expenses By Mode"].Len())
}

func TestOpenReader_MissingSheet(t *testing.T) {
	f := newWorkbook(t)
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	w, err := OpenReader(&buf, "upload.xlsx", Options{})
	require.NoError(t, err)
	defer w.Close()

	assert.True(t, w.HasSheet("service data"))
	assert.False(t, w.HasSheet("Safety"))
	assert.Equal(t, []string{"Service Data", "Expenses by Mode"}, w.Sheets())

	_, err = w.ReadSheet("Safety")
	assert.Error(t, err)
}

func TestReadSheet_HeaderRow(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Revenue vehicle inventory, exported 2023-09-01"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"VIN", "Status"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"1FT000", "Active"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	w, err := OpenReader(&buf, "inventory.xlsx", Options{HeaderRow: 2})
	require.NoError(t, err)
	defer w.Close()

	tbl, err := w.ReadSheet("Sheet1")
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, "1FT000", tbl.Get(tbl.Rows[0], "VIN"))
}

func TestOpenReader_NotAWorkbook(t *testing.T) {
	_, err := OpenReader(strings.NewReader("Organization,VIN\n"), "rvi.csv", Options{})
	assert.Error(t, err)
}
