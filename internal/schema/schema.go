// =============================================================================
// NTD Report Validation - Schema Decoding
// =============================================================================
//
// This package converts loaded tables into the typed per-form records the rule
// engine works on. Every form is decoded exactly once, at the input boundary,
// so rule code never reads a column by name.
//
// VALIDATION:
//   Decoded records are checked with struct tags (go-playground/validator).
//   A record that fails validation, or a cell that cannot be parsed, is
//   reported as an Issue and the record is skipped (or the cell treated as not
//   reported). Issues are data-quality problems and never abort a run.
//
//   A required column missing from the table is a configuration error and
//   aborts the run.
//
// COLUMN ALIASES:
//   The same field is called differently in different exports ("Agency" in
//   the A-10 extract, "Organization_Legal_Name" in the RR-20 workbook, "year"
//   vs "Fiscal_Year"). Each field lists its accepted spellings and the first
//   one present in the table wins.
//
// =============================================================================

package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cal-itp/ntd-modernization/internal/table"
	"github.com/cal-itp/ntd-modernization/internal/types"
)

// =============================================================================
// CANONICAL COLUMNS
// =============================================================================

const (
	ColOrganization = "Organization_Legal_Name"
	ColFiscalYear   = "Fiscal_Year"
	ColMode         = "Mode"

	ColAnnualVRM           = "Annual_VRM"
	ColAnnualVRH           = "Annual_VRH"
	ColAnnualUPT           = "Annual_UPT"
	ColSponsoredUPT        = "Sponsored_UPT"
	ColVOMX                = "VOMX"
	ColTotalExpensesByMode = "Total_Annual_Expenses_By_Mode"
	ColFareRevenues        = "Fare_Revenues"

	ColOperatingCapital       = "Operating_Capital"
	ColTotalRevenuesExpended  = "Total_Annual_Revenues_Expended"
	ColTotalFacilities        = "Total_Facilities"
	ColUnder200Vehicles       = "Under_200_Vehicles"
	ColFrom200To300Vehicles   = "200_to_300_Vehicles"
	ColOver300Vehicles        = "Over_300_Vehicles"
	ColVIN                    = "VIN"
	ColVehicleStatus          = "Status"
	ColOwnershipType          = "Ownership_Type"
	ColInServiceDate          = "In_Service_Date"
	ColCommonName             = "Common_Name_Acronym_DBA"
	ColOrganizationRosterName = "Organization"
)

// aliases lists the accepted spellings of a canonical column, preferred first.
var aliases = map[string][]string{
	ColOrganization:        {ColOrganization, "Organization", "Agency"},
	ColFiscalYear:          {ColFiscalYear, "year", "Report_Year"},
	ColMode:                {ColMode, "Mode_Name"},
	ColTotalExpensesByMode: {ColTotalExpensesByMode, "Total_Annual_Expenses"},
	ColVehicleStatus:       {ColVehicleStatus, "Vehicle_Status"},
	ColInServiceDate:       {ColInServiceDate, "In_Service_Date_Year"},
	ColVIN:                 {ColVIN, "Vehicle_Identification_Number"},
}

// ServiceFields are the raw service columns the missing-data check covers.
var ServiceFields = []string{
	ColAnnualVRM,
	ColAnnualVRH,
	ColAnnualUPT,
	ColSponsoredUPT,
	ColVOMX,
}

// =============================================================================
// ISSUES
// =============================================================================

// Issue is a row-level data problem found while decoding. It wraps
// types.ErrInvalidRecord.
type Issue struct {
	Table  string
	Row    int
	Column string
	Err    error
}

func (i Issue) Error() string {
	if i.Column != "" {
		return fmt.Sprintf("%s row %d column %s: %v", i.Table, i.Row, i.Column, i.Err)
	}
	return fmt.Sprintf("%s row %d: %v", i.Table, i.Row, i.Err)
}

func (i Issue) Unwrap() error { return types.ErrInvalidRecord }

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns tables into typed records.
type Decoder struct {
	validate       *validator.Validate
	fundingColumns []string
}

// NewDecoder creates a decoder. fundingColumns are the RR-20 funding-source
// columns that make up the capital double-entry sum.
func NewDecoder(fundingColumns []string) *Decoder {
	return &Decoder{
		validate:       validator.New(),
		fundingColumns: fundingColumns,
	}
}

// rowReader reads typed cells from one table row and collects issues.
type rowReader struct {
	t      *table.Table
	row    table.Row
	n      int
	cols   map[string]string
	issues []Issue
}

func (r *rowReader) text(col string) string {
	return strings.TrimSpace(r.t.Get(r.row, r.cols[col]))
}

func (r *rowReader) number(col string) *float64 {
	actual, ok := r.cols[col]
	if !ok {
		return nil
	}
	v, err := parseNumber(r.t.Get(r.row, actual))
	if err != nil {
		r.issues = append(r.issues, Issue{Table: r.t.Name, Row: r.n, Column: col, Err: err})
		return nil
	}
	return v
}

func (r *rowReader) float(col string) float64 {
	if v := r.number(col); v != nil {
		return *v
	}
	return 0
}

func (r *rowReader) year() (int, bool) {
	y, err := parseInt(r.text(ColFiscalYear))
	if err != nil {
		r.issues = append(r.issues, Issue{Table: r.t.Name, Row: r.n, Column: ColFiscalYear, Err: err})
		return 0, false
	}
	return y, true
}

// Column returns the spelling of a canonical column present in t, trying its
// accepted aliases in order.
func Column(t *table.Table, canonical string) (string, bool) {
	names := aliases[canonical]
	if len(names) == 0 {
		names = []string{canonical}
	}
	for _, n := range names {
		if actual, ok := t.Resolve(n); ok {
			return actual, true
		}
	}
	return "", false
}

// resolve maps each canonical column to the spelling present in t. Required
// columns that cannot be found produce a ConfigError; optional ones are left
// out of the map.
func resolve(t *table.Table, op string, required, optional []string) (map[string]string, error) {
	cols := make(map[string]string, len(required)+len(optional))
	find := func(canonical string) (string, bool) { return Column(t, canonical) }

	for _, c := range required {
		actual, ok := find(c)
		if !ok {
			return nil, &types.ConfigError{Op: op, Table: t.Name, Column: c, Err: types.ErrMissingColumn}
		}
		cols[c] = actual
	}
	for _, c := range optional {
		if actual, ok := find(c); ok {
			cols[c] = actual
		}
	}
	return cols, nil
}

// check validates a decoded record and converts validator errors to an Issue.
func (d *Decoder) check(t *table.Table, n int, record any) *Issue {
	err := d.validate.Struct(record)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &Issue{
			Table:  t.Name,
			Row:    n,
			Column: fe.Field(),
			Err:    fmt.Errorf("failed %q validation (value %v)", fe.Tag(), fe.Value()),
		}
	}
	return &Issue{Table: t.Name, Row: n, Err: err}
}

// Service decodes joined RR-20 service rows. The table must carry the join
// keys; fact columns that are absent decode as not reported.
func (d *Decoder) Service(t *table.Table) ([]types.ServiceRecord, []Issue, error) {
	cols, err := resolve(t, "decode service data",
		[]string{ColOrganization, ColMode, ColFiscalYear},
		append(append([]string{}, ServiceFields...), ColTotalExpensesByMode, ColFareRevenues),
	)
	if err != nil {
		return nil, nil, err
	}

	var records []types.ServiceRecord
	var issues []Issue
	for i, row := range t.Rows {
		r := &rowReader{t: t, row: row, n: i + 1, cols: cols}
		year, ok := r.year()
		rec := types.ServiceRecord{
			Organization:        r.text(ColOrganization),
			Mode:                r.text(ColMode),
			FiscalYear:          year,
			AnnualVRM:           r.number(ColAnnualVRM),
			AnnualVRH:           r.number(ColAnnualVRH),
			AnnualUPT:           r.number(ColAnnualUPT),
			SponsoredUPT:        r.number(ColSponsoredUPT),
			VOMX:                r.number(ColVOMX),
			TotalExpensesByMode: r.number(ColTotalExpensesByMode),
			FareRevenues:        r.number(ColFareRevenues),
		}
		issues = append(issues, r.issues...)
		if !ok {
			continue
		}
		if issue := d.check(t, i+1, rec); issue != nil {
			issues = append(issues, *issue)
			continue
		}
		records = append(records, rec)
	}
	return records, issues, nil
}

// Financial decodes RR-20 "Financials" rows.
func (d *Decoder) Financial(t *table.Table) ([]types.FinancialRecord, []Issue, error) {
	cols, err := resolve(t, "decode financials",
		[]string{ColOrganization, ColFiscalYear, ColOperatingCapital},
		append([]string{ColTotalRevenuesExpended, ColTotalExpensesByMode}, d.fundingColumns...),
	)
	if err != nil {
		return nil, nil, err
	}

	var records []types.FinancialRecord
	var issues []Issue
	for i, row := range t.Rows {
		r := &rowReader{t: t, row: row, n: i + 1, cols: cols}
		year, ok := r.year()
		rec := types.FinancialRecord{
			Organization:                r.text(ColOrganization),
			FiscalYear:                  year,
			OperatingCapital:            r.text(ColOperatingCapital),
			TotalAnnualRevenuesExpended: r.float(ColTotalRevenuesExpended),
			TotalAnnualExpensesByMode:   r.float(ColTotalExpensesByMode),
			FundingSources:              make(map[string]float64, len(d.fundingColumns)),
		}
		for _, c := range d.fundingColumns {
			rec.FundingSources[c] = r.float(c)
		}
		issues = append(issues, r.issues...)
		if !ok {
			continue
		}
		if issue := d.check(t, i+1, rec); issue != nil {
			issues = append(issues, *issue)
			continue
		}
		records = append(records, rec)
	}
	return records, issues, nil
}

// Facilities decodes A-10 facility rows.
func (d *Decoder) Facilities(t *table.Table) ([]types.FacilityRecord, []Issue, error) {
	cols, err := resolve(t, "decode facilities",
		[]string{ColOrganization, ColFiscalYear, ColTotalFacilities},
		[]string{ColUnder200Vehicles, ColFrom200To300Vehicles, ColOver300Vehicles},
	)
	if err != nil {
		return nil, nil, err
	}

	var records []types.FacilityRecord
	var issues []Issue
	for i, row := range t.Rows {
		r := &rowReader{t: t, row: row, n: i + 1, cols: cols}
		year, ok := r.year()
		rec := types.FacilityRecord{
			Organization:         r.text(ColOrganization),
			FiscalYear:           year,
			TotalFacilities:      r.float(ColTotalFacilities),
			Under200Vehicles:     r.float(ColUnder200Vehicles),
			From200To300Vehicles: r.float(ColFrom200To300Vehicles),
			Over300Vehicles:      r.float(ColOver300Vehicles),
		}
		issues = append(issues, r.issues...)
		if !ok {
			continue
		}
		if issue := d.check(t, i+1, rec); issue != nil {
			issues = append(issues, *issue)
			continue
		}
		records = append(records, rec)
	}
	return records, issues, nil
}

// Inventory decodes the revenue vehicle inventory. Unparseable in-service
// dates are reported and left as the zero time.
func (d *Decoder) Inventory(t *table.Table) ([]types.InventoryVehicle, []Issue, error) {
	cols, err := resolve(t, "decode inventory",
		[]string{ColOrganization, ColVIN, ColVehicleStatus},
		[]string{ColOwnershipType, ColInServiceDate},
	)
	if err != nil {
		return nil, nil, err
	}

	var records []types.InventoryVehicle
	var issues []Issue
	for i, row := range t.Rows {
		r := &rowReader{t: t, row: row, n: i + 1, cols: cols}
		rec := types.InventoryVehicle{
			Organization:  r.text(ColOrganization),
			VIN:           r.text(ColVIN),
			Status:        r.text(ColVehicleStatus),
			OwnershipType: r.text(ColOwnershipType),
		}
		if _, ok := cols[ColInServiceDate]; ok {
			date, err := parseDate(r.text(ColInServiceDate))
			if err != nil {
				issues = append(issues, Issue{Table: t.Name, Row: i + 1, Column: ColInServiceDate, Err: err})
			}
			rec.InServiceDate = date
		}
		if issue := d.check(t, i+1, rec); issue != nil {
			issues = append(issues, *issue)
			continue
		}
		records = append(records, rec)
	}
	return records, issues, nil
}

// A30 decodes the vehicles listed on an A-30 report.
func (d *Decoder) A30(t *table.Table) ([]types.A30Vehicle, []Issue, error) {
	cols, err := resolve(t, "decode A-30", []string{ColOrganization, ColVIN}, nil)
	if err != nil {
		return nil, nil, err
	}

	var records []types.A30Vehicle
	var issues []Issue
	for i, row := range t.Rows {
		r := &rowReader{t: t, row: row, n: i + 1, cols: cols}
		rec := types.A30Vehicle{
			Organization: r.text(ColOrganization),
			VIN:          r.text(ColVIN),
		}
		if issue := d.check(t, i+1, rec); issue != nil {
			issues = append(issues, *issue)
			continue
		}
		records = append(records, rec)
	}
	return records, issues, nil
}

// Roster reads organization names from a roster table. The first of
// "Organization", "Organization_Legal_Name" or "Agency" present is used.
func Roster(t *table.Table) (types.Roster, error) {
	for _, c := range []string{ColOrganizationRosterName, ColOrganization, "Agency"} {
		if actual, ok := t.Resolve(c); ok {
			names := make([]string, 0, t.Len())
			for _, row := range t.Rows {
				names = append(names, row[actual])
			}
			return types.NewRoster(names...), nil
		}
	}
	return nil, &types.ConfigError{
		Op:     "decode roster",
		Table:  t.Name,
		Column: ColOrganizationRosterName,
		Err:    types.ErrMissingColumn,
	}
}
