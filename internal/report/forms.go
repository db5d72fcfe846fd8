package report

import (
	"fmt"

	"github.com/cal-itp/ntd-modernization/internal/types"
)

// RR20Service lays out the RR-20 service data report.
func RR20Service(findings []types.Finding) Report {
	return Report{Sheets: []Sheet{
		FindingsSheet("rr20_checks_full", "Reduced Reporting RR-20: Validation Warnings", findings),
	}}
}

// RR20Financial lays out the RR-20 financial report.
func RR20Financial(findings []types.Finding) Report {
	s := FindingsSheet("rr20_financial_checks_full", "Reduced Reporting RR-20: Financial Validation Warnings", findings)
	s.Widths = []ColumnWidth{
		{Start: "A", End: "B", Width: 35},
		{Start: "C", End: "C", Width: 22},
		{Start: "D", End: "E", Width: 11},
		{Start: "F", End: "H", Width: 53},
	}
	return Report{Sheets: []Sheet{s}}
}

// A10 lays out the A-10 facilities report with a readme describing the
// checks.
func A10(findings []types.Finding, year int) Report {
	return Report{
		Sheets: []Sheet{
			FindingsSheet("a10_checks_full", "A-10 Facilities: Validation Warnings", findings),
		},
		Readme: []ReadmeLine{
			{Text: fmt.Sprintf("This file runs 6 validation checks on submitted %d A-10 form data, based on historical NTD validation errors.", year)},
			{},
			{Text: "Total Facilities checks", Heading: true},
			{Text: `1. "Whole Number Facilities": the total facilities for each agency, across all modes, must be a whole number.`},
			{Text: `2. "Non-zero Facilities": the total of all facilities must not be zero.`},
			{},
			{Text: `General Purpose Facilities checks (all except "heavy maintenance")`, Heading: true},
			{Text: `3. "Gen Purpose Facilities": fails when more than one general purpose facility is reported.`},
			{Text: `4. "Multiple Gen Purpose Facilities": when more than one is reported, ask for a narrative justification.`},
			{Text: `5. "Comparison to last yr: Gen Purpose Facilities": fails when the total differs from last year.`},
			{Text: `6. "Non-zero Gen Purpose Facilities": fails when reported as 0.`},
		},
	}
}

// VOMS lays out the vehicle reconciliation report: every VIN checked, the
// VINs that failed, and the fleet total comparison.
func VOMS(vins, mismatched, totals []types.Finding) Report {
	full := FindingsSheet("vin_check_full", "VOMS Inventory Vehicle Check: Validation Warnings", vins)
	full.SubtitleEnd = "D"
	full.Response = false

	fails := FindingsSheet("vin_check_fails_only", "VOMS Inventory Vehicle Check: Validation Warnings", mismatched)
	fails.SubtitleEnd = "D"

	bounds := FindingsSheet("totals_check", "VOMS RR-20 & A-30 check", totals)
	bounds.SubtitleEnd = "B"

	return Report{Sheets: []Sheet{full, fails, bounds}}
}
