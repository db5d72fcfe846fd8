package checks

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cal-itp/ntd-modernization/internal/rules"
	"github.com/cal-itp/ntd-modernization/internal/types"
)

// Financial check names.
const (
	CheckRevenueExpenseBalance = "RR20F-001OA: equal totals"
	CheckCapitalDoubleEntry    = "RR20F-001C: equal totals for capital expenses by mode and funding source expenditures"
	CheckNewFleetCapital       = "RR20F-182: new fleet has capital expenses"
)

// DefaultFinancialFields are the funding sources compared year over year.
var DefaultFinancialFields = []string{
	rules.RuralFormulaGrantField,
	rules.OtherDirectlyGeneratedField,
	"Fare_Revenues",
}

// financialIndex holds de-duplicated financial rows per (agency, year).
type financialIndex struct {
	orgs orderedSet
	rows map[string]map[int][]types.FinancialRecord
}

func indexFinancial(records []types.FinancialRecord, current int) *financialIndex {
	idx := &financialIndex{rows: make(map[string]map[int][]types.FinancialRecord)}
	seen := make(map[string]bool)
	for _, r := range records {
		k := financialRowKey(r)
		if seen[k] {
			continue
		}
		seen[k] = true

		if r.FiscalYear == current {
			idx.orgs.add(r.Organization)
		}
		if idx.rows[r.Organization] == nil {
			idx.rows[r.Organization] = make(map[int][]types.FinancialRecord)
		}
		idx.rows[r.Organization][r.FiscalYear] = append(idx.rows[r.Organization][r.FiscalYear], r)
	}
	return idx
}

// financialRowKey identifies a row by all of its values.
func financialRowKey(r types.FinancialRecord) string {
	cols := make([]string, 0, len(r.FundingSources))
	for c := range r.FundingSources {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	var b strings.Builder
	fmt.Fprintf(&b, "%s|%d|%s|%v|%v", r.Organization, r.FiscalYear, r.OperatingCapital,
		r.TotalAnnualRevenuesExpended, r.TotalAnnualExpensesByMode)
	for _, c := range cols {
		fmt.Fprintf(&b, "|%s=%v", c, r.FundingSources[c])
	}
	return b.String()
}

// row returns the agency's first current-year row of the given kind
// (Operating or Capital).
func (idx *financialIndex) row(org string, year int, kind string) (types.FinancialRecord, bool) {
	for _, r := range idx.rows[org][year] {
		if strings.EqualFold(strings.TrimSpace(r.OperatingCapital), kind) {
			return r, true
		}
	}
	return types.FinancialRecord{}, false
}

// FinancialFigures compares each field's agency total (Operating plus
// Capital) with the prior year. Agencies without prior-year rows are skipped.
func (c *Checker) FinancialFigures(records []types.FinancialRecord, fields []string) []types.Finding {
	idx := indexFinancial(records, c.years.Current)

	var out []types.Finding
	for _, field := range fields {
		for _, org := range idx.orgs.items {
			prev := idx.rows[org][c.years.Prior]
			if len(prev) == 0 {
				c.logger.Info("skipping financial comparison, no prior-year data",
					zap.String("organization", org),
					zap.String("field", field),
				)
				continue
			}

			var current, prior float64
			for _, r := range idx.rows[org][c.years.Current] {
				current += r.Funding(field)
			}
			for _, r := range prev {
				prior += r.Funding(field)
			}
			out = append(out, rules.FinancialFigure(field, current, prior, c.years).Finding(org, ""))
		}
		c.logger.Debug("ran financial checks", zap.String("field", field))
	}
	return out
}

// RevenueExpenseBalance checks that the Operating row's total revenues
// expended equal its total expenses by mode, in whole dollars.
func (c *Checker) RevenueExpenseBalance(records []types.FinancialRecord) []types.Finding {
	idx := indexFinancial(records, c.years.Current)

	var out []types.Finding
	for _, org := range idx.orgs.items {
		op, ok := idx.row(org, c.years.Current, "Operating")
		if !ok {
			c.logger.Info("skipping balance check, no Operating row", zap.String("organization", org))
			continue
		}

		revenues := op.TotalAnnualRevenuesExpended
		expenses := op.TotalAnnualExpensesByMode
		f := types.Finding{
			Organization: org,
			CheckName:    CheckRevenueExpenseBalance,
			ValueChecked: fmt.Sprintf("Total_Annual_Revenues_Expended = $%s,Total_Annual_Expenses_by_Mode = $%s",
				rules.FormatNumber(revenues), rules.FormatNumber(expenses)),
			Status: types.StatusPass,
		}
		if rules.RoundWhole(revenues) != rules.RoundWhole(expenses) {
			f.Status = types.StatusFail
			f.Description = fmt.Sprintf(
				"Total_Annual_Revenues_Expended ($%s) should, but does not, equal Total_Annual_Expenses_by_Mode ($%s). Please provide a narrative justification.",
				rules.FormatNumber(revenues), rules.FormatNumber(expenses))
		}
		out = append(out, f)
	}
	return out
}

// CapitalDoubleEntry checks that the Capital row's total expenses by mode
// equal the sum of its funding-source columns, in whole dollars.
func (c *Checker) CapitalDoubleEntry(records []types.FinancialRecord, fundingColumns []string) []types.Finding {
	idx := indexFinancial(records, c.years.Current)

	var out []types.Finding
	for _, org := range idx.orgs.items {
		capital, ok := idx.row(org, c.years.Current, "Capital")
		if !ok {
			c.logger.Info("skipping capital double-entry check, no Capital row", zap.String("organization", org))
			continue
		}

		expenses := capital.TotalAnnualExpensesByMode
		var funding float64
		for _, col := range fundingColumns {
			funding += capital.Funding(col)
		}

		f := types.Finding{
			Organization: org,
			CheckName:    CheckCapitalDoubleEntry,
			ValueChecked: fmt.Sprintf("Total_Annual_Expenses_by_Mode = %s,by funding source = %s",
				rules.FormatNumber(expenses), rules.FormatNumber(funding)),
			Status: types.StatusPass,
		}
		if rules.RoundWhole(expenses) != rules.RoundWhole(funding) {
			f.Status = types.StatusFail
			f.Description = fmt.Sprintf(
				"The sum of Total Expenses for all modes for Uses of Capital %s does not equal the sum of all values entered for Directly Generated, Non-Federal and Federal Government Funds %s for Uses of Capital. Please revise or explain.",
				rules.FormatNumber(expenses), rules.FormatNumber(funding))
		}
		out = append(out, f)
	}
	return out
}

// NewFleetCapital checks that an agency whose inventory shows vehicles placed
// in service this year as Owned Outright by Public Agency (OOPA) reports
// capital expenses. The outcome is three-way:
//
//   - pass:    new OOPA vehicles and nonzero capital expenses
//   - fail:    new OOPA vehicles and zero capital expenses
//   - warning: no inventory, no Capital row or no new OOPA vehicles
func (c *Checker) NewFleetCapital(records []types.FinancialRecord, inventory []types.InventoryVehicle) []types.Finding {
	idx := indexFinancial(records, c.years.Current)

	fleet := make(map[string]map[types.InventoryVehicle]bool)
	for _, v := range inventory {
		if fleet[v.Organization] == nil {
			fleet[v.Organization] = make(map[types.InventoryVehicle]bool)
		}
		fleet[v.Organization][v] = true
	}

	var out []types.Finding
	for _, org := range idx.orgs.items {
		newFleet := 0
		for v := range fleet[org] {
			if !v.InServiceDate.IsZero() && v.InServiceDate.Year() == c.years.Current &&
				strings.Contains(v.OwnershipType, "OOPA") {
				newFleet++
			}
		}

		capital, hasCapital := idx.row(org, c.years.Current, "Capital")
		capex := capital.TotalAnnualExpensesByMode

		f := types.Finding{
			Organization: org,
			CheckName:    CheckNewFleetCapital,
			ValueChecked: fmt.Sprintf("New fleet OOPA=%d, Total_Annual_Expenses_by_Mode = $%s", newFleet, rules.FormatNumber(capex)),
		}
		switch {
		case len(fleet[org]) > 0 && hasCapital && newFleet > 0 && capex != 0:
			f.Status = types.StatusPass
		case len(fleet[org]) > 0 && hasCapital && newFleet > 0:
			f.Status = types.StatusFail
			f.Description = fmt.Sprintf(
				"There was $0 reported for Funds Expended on Capital for all modes on the RR-20 form, but %d in the reporting year reported as Owned Outright by Public Agency (OOPA) in your inventory. Please provide narrative justification.",
				newFleet)
		default:
			if len(fleet[org]) == 0 {
				c.logger.Info("no inventory data for agency", zap.String("organization", org), zap.Int("year", c.years.Current))
			}
			f.Status = types.StatusWarning
			f.Description = "Either capital expenses or inventory data is lacking. Check manually."
		}
		out = append(out, f)
	}
	return out
}
