// =============================================================================
// NTD Report Validation - Shared Types
// =============================================================================
//
// This package contains the types shared across the validation pipeline so
// that the core packages do not import each other. Types defined here are used
// by:
//   - schema    (decodes tables into typed records)
//   - metrics   (attaches derived values to service records)
//   - checks    (emits findings)
//   - findings  (aggregates findings)
//   - report    (renders findings)
//
// =============================================================================

package types

import (
	"sort"
	"strings"
	"time"
)

// =============================================================================
// FINDINGS
// =============================================================================

// Status is the outcome of a single check.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusWarning Status = "warning"
)

// Valid reports whether s is one of the three allowed statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPass, StatusFail, StatusWarning:
		return true
	}
	return false
}

// Finding is one row of validation output: which check ran for which agency,
// what was compared, the outcome and why.
//
// Description is empty exactly when Status is StatusPass.
type Finding struct {
	// Organization is the agency legal name.
	Organization string

	// CheckName identifies the rule (e.g. "cost_per_hr", "RR20F-001C: ...").
	CheckName string

	// Mode is the transit mode, empty for agency-level checks.
	Mode string

	// ValueChecked summarizes the compared values for a human reviewer.
	ValueChecked string

	// Status is pass, fail or warning.
	Status Status

	// Description explains a non-passing outcome.
	Description string
}

// Columns is the canonical output column order of a finding table.
var Columns = []string{
	"Organization",
	"name_of_check",
	"mode",
	"value_checked",
	"check_status",
	"Description",
}

// Values returns the finding's cells in Columns order.
func (f Finding) Values() []string {
	return []string{
		f.Organization,
		f.CheckName,
		f.Mode,
		f.ValueChecked,
		string(f.Status),
		f.Description,
	}
}

// =============================================================================
// ROSTER
// =============================================================================

// Roster is the set of organizations that are valid subrecipients for the
// current reporting cycle.
type Roster map[string]struct{}

// NewRoster builds a roster from names, trimming surrounding whitespace and
// skipping blanks.
func NewRoster(names ...string) Roster {
	r := make(Roster, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		r[n] = struct{}{}
	}
	return r
}

// Contains reports whether name (trimmed) is on the roster.
func (r Roster) Contains(name string) bool {
	_, ok := r[strings.TrimSpace(name)]
	return ok
}

// Names returns the roster sorted alphabetically.
func (r Roster) Names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// TYPED FORM RECORDS
// =============================================================================
// One record type per form. Fact fields that may legitimately be blank in a
// submission are pointers so that completeness checks can tell "missing" from
// "reported as zero".

// ServiceRecord is one RR-20 service row joined with its expense and revenue
// rows, keyed by (Organization, Mode, FiscalYear).
type ServiceRecord struct {
	Organization string `validate:"required"`
	Mode         string `validate:"required"`
	FiscalYear   int    `validate:"gte=1990,lte=2100"`

	AnnualVRM           *float64
	AnnualVRH           *float64
	AnnualUPT           *float64
	SponsoredUPT        *float64
	VOMX                *float64
	TotalExpensesByMode *float64
	FareRevenues        *float64

	// Metrics holds derived values keyed by metric name.
	Metrics map[string]float64
}

// FinancialRecord is one RR-20 "Financials" row. Each agency reports one
// Operating and one Capital row per year.
type FinancialRecord struct {
	Organization     string `validate:"required"`
	FiscalYear       int    `validate:"gte=1990,lte=2100"`
	OperatingCapital string

	TotalAnnualRevenuesExpended float64
	TotalAnnualExpensesByMode   float64

	// FundingSources holds the configured funding-source columns.
	FundingSources map[string]float64
}

// Funding returns the amount reported for a funding-source column, zero when
// the column was not reported.
func (r FinancialRecord) Funding(column string) float64 {
	return r.FundingSources[column]
}

// FacilityRecord is one A-10 facilities row.
type FacilityRecord struct {
	Organization string `validate:"required"`
	FiscalYear   int    `validate:"gte=1990,lte=2100"`

	TotalFacilities      float64
	Under200Vehicles     float64
	From200To300Vehicles float64
	Over300Vehicles      float64
}

// GeneralPurpose is the count of general purpose (non heavy maintenance)
// facilities on the row.
func (r FacilityRecord) GeneralPurpose() float64 {
	return r.Under200Vehicles + r.From200To300Vehicles + r.Over300Vehicles
}

// InventoryVehicle is one row of the revenue vehicle inventory.
type InventoryVehicle struct {
	Organization  string `validate:"required"`
	VIN           string `validate:"required"`
	Status        string
	OwnershipType string
	InServiceDate time.Time
}

// Active reports whether the vehicle is in active service.
func (v InventoryVehicle) Active() bool {
	return strings.EqualFold(strings.TrimSpace(v.Status), "Active")
}

// A30Vehicle is one vehicle listed on an A-30 revenue vehicle report.
type A30Vehicle struct {
	Organization string `validate:"required"`
	VIN          string `validate:"required"`
}
