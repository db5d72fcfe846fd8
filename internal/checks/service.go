package checks

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cal-itp/ntd-modernization/internal/metrics"
	"github.com/cal-itp/ntd-modernization/internal/rules"
	"github.com/cal-itp/ntd-modernization/internal/types"
)

// CheckMissingServiceData is the check name of the completeness pre-check.
const CheckMissingServiceData = "Missing service data check"

const missingServiceDataDescription = "One or more service data values is missing in these columns. " +
	"Please revise in BlackCat and resubmit.'Annual VRM', 'Annual VRH', 'Annual UPT','Sponsored UPT', 'VOMX'"

// MissingServiceData emits one finding per agency with current-year service
// rows. The agency fails when any required service fact is unreported on any
// of those rows. It must run on records that have not been zero-filled.
func (c *Checker) MissingServiceData(records []types.ServiceRecord) []types.Finding {
	var orgs orderedSet
	missing := make(map[string]bool)
	for _, r := range records {
		if r.FiscalYear != c.years.Current {
			continue
		}
		orgs.add(r.Organization)
		for _, f := range []metrics.Field{metrics.AnnualVRM, metrics.AnnualVRH, metrics.AnnualUPT, metrics.SponsoredUPT, metrics.VOMX} {
			if f.Value(r) == nil {
				missing[r.Organization] = true
			}
		}
	}

	out := make([]types.Finding, 0, len(orgs.items))
	for _, org := range orgs.items {
		f := types.Finding{
			Organization: org,
			CheckName:    CheckMissingServiceData,
			ValueChecked: "Service data columns",
			Status:       types.StatusPass,
		}
		if missing[org] {
			f.Status = types.StatusFail
			f.Description = missingServiceDataDescription
		}
		out = append(out, f)
	}
	return out
}

type serviceKey struct {
	org  string
	mode string
	year int
}

// serviceIndex groups service records for year-over-year comparison.
type serviceIndex struct {
	orgs  orderedSet
	modes map[string]*orderedSet
	first map[serviceKey]types.ServiceRecord
	years map[string]map[int]bool
}

func indexService(records []types.ServiceRecord, current int) *serviceIndex {
	idx := &serviceIndex{
		modes: make(map[string]*orderedSet),
		first: make(map[serviceKey]types.ServiceRecord),
		years: make(map[string]map[int]bool),
	}
	for _, r := range records {
		idx.orgs.add(r.Organization)
		if idx.years[r.Organization] == nil {
			idx.years[r.Organization] = make(map[int]bool)
		}
		idx.years[r.Organization][r.FiscalYear] = true

		k := serviceKey{org: r.Organization, mode: r.Mode, year: r.FiscalYear}
		if _, ok := idx.first[k]; !ok {
			idx.first[k] = r
		}
		if r.FiscalYear == current {
			if idx.modes[r.Organization] == nil {
				idx.modes[r.Organization] = &orderedSet{}
			}
			idx.modes[r.Organization].add(r.Mode)
		}
	}
	return idx
}

// ServiceRules applies each rule to every (agency, mode) pair of the current
// year. records must be zero-filled and carry derived metrics.
//
// Agencies without both years of data are skipped. A mode missing from the
// prior year is skipped too, unless the rule substitutes zero for it.
//
// A rule naming a value that is neither a metric nor a raw field is a
// configuration error.
func (c *Checker) ServiceRules(records []types.ServiceRecord, rs []rules.Rule) ([]types.Finding, error) {
	if len(records) > 0 {
		for _, rule := range rs {
			if _, ok := metrics.Lookup(records[0], rule.Metric); !ok {
				return nil, &types.ConfigError{
					Op:     "service rules",
					Table:  "service data",
					Column: rule.Metric,
					Err:    fmt.Errorf("rule %s: %w", rule.Kind, types.ErrMissingColumn),
				}
			}
		}
	}

	idx := indexService(records, c.years.Current)
	var out []types.Finding
	for _, rule := range rs {
		for _, org := range idx.orgs.items {
			if !idx.years[org][c.years.Current] || !idx.years[org][c.years.Prior] {
				c.logger.Info("skipping comparison, agency lacks one of the compared years",
					zap.String("organization", org),
					zap.String("check", rule.Metric),
				)
				continue
			}

			for _, mode := range idx.modes[org].items {
				cur := idx.first[serviceKey{org: org, mode: mode, year: c.years.Current}]
				current, _ := metrics.Lookup(cur, rule.Metric)

				var prior float64
				prev, ok := idx.first[serviceKey{org: org, mode: mode, year: c.years.Prior}]
				switch {
				case ok:
					prior, _ = metrics.Lookup(prev, rule.Metric)
				case rule.SubstituteMissingPrior:
					c.logger.Debug("mode missing from prior year, comparing against zero",
						zap.String("organization", org),
						zap.String("mode", mode),
						zap.String("check", rule.Metric),
					)
				default:
					c.logger.Debug("skipping comparison, mode missing from prior year",
						zap.String("organization", org),
						zap.String("mode", mode),
						zap.String("check", rule.Metric),
					)
					continue
				}

				out = append(out, rule.Evaluate(mode, current, prior, c.years).Finding(org, mode))
			}
		}
	}
	return out, nil
}
