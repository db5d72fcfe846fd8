package checks

import (
	"go.uber.org/zap"

	"github.com/cal-itp/ntd-modernization/internal/rules"
	"github.com/cal-itp/ntd-modernization/internal/types"
)

// Facilities runs the A-10 facility count checks for every agency with
// current-year rows: whole number total, nonzero total, one general purpose
// facility and, when the prior year was reported, the same general purpose
// count as last year.
func (c *Checker) Facilities(records []types.FacilityRecord) []types.Finding {
	var orgs orderedSet
	type sums struct {
		total, general float64
		present        bool
	}
	byYear := make(map[string]map[int]*sums)
	for _, r := range records {
		if r.FiscalYear != c.years.Current && r.FiscalYear != c.years.Prior {
			continue
		}
		if r.FiscalYear == c.years.Current {
			orgs.add(r.Organization)
		}
		if byYear[r.Organization] == nil {
			byYear[r.Organization] = map[int]*sums{c.years.Current: {}, c.years.Prior: {}}
		}
		s := byYear[r.Organization][r.FiscalYear]
		s.total += r.TotalFacilities
		s.general += r.GeneralPurpose()
		s.present = true
	}

	var out []types.Finding
	for _, org := range orgs.items {
		cur := byYear[org][c.years.Current]
		out = append(out,
			rules.WholeNumber(cur.total).Finding(org, ""),
			rules.NonZero(cur.total).Finding(org, ""),
			rules.GeneralPurposeCount(cur.general).Finding(org, ""),
		)

		prev := byYear[org][c.years.Prior]
		if !prev.present {
			c.logger.Info("skipping facility comparison, no prior-year data", zap.String("organization", org))
			continue
		}
		out = append(out, rules.SameAsLastYear(cur.general, prev.general, c.years).Finding(org, ""))
	}
	return out
}
