// =============================================================================
// NTD Report Validation - Comparison Rule Engine
// =============================================================================
//
// This package holds the rule policies shared by every form. Each policy is a
// pure function of the compared values and its parameters and returns an
// Outcome; the per-form passes in the checks package decide which records to
// compare and turn outcomes into findings.
//
// POLICIES:
//   - PercentChange    threshold on |current - prior| / |prior|
//   - ZeroCrossing     a value moved to or from zero, optionally followed by
//                      PercentChange
//   - FinancialFigure  identical, to/from zero, rounded to thousand and the
//                      rural formula grant special case
//   - WholeNumber, NonZero, GeneralPurposeCount, SameAsLastYear
//                      facility count checks
//
// ROUNDING:
//   Values are rounded to two decimals before differencing, half to even.
//   Whole dollar and count comparisons round to the nearest integer.
//
// =============================================================================

package rules

import (
	"github.com/cal-itp/ntd-modernization/internal/types"
)

// Outcome is the result of evaluating one rule.
type Outcome struct {
	CheckName    string
	Status       types.Status
	ValueChecked string
	Description  string
}

// Finding builds a finding for the organization and mode from the outcome.
func (o Outcome) Finding(organization, mode string) types.Finding {
	return types.Finding{
		Organization: organization,
		CheckName:    o.CheckName,
		Mode:         mode,
		ValueChecked: o.ValueChecked,
		Status:       o.Status,
		Description:  o.Description,
	}
}

// Years names the current and prior fiscal years being compared.
type Years struct {
	Current int
	Prior   int
}

func pass(name, value string) Outcome {
	return Outcome{CheckName: name, Status: types.StatusPass, ValueChecked: value}
}

func fail(name, value, description string) Outcome {
	return Outcome{CheckName: name, Status: types.StatusFail, ValueChecked: value, Description: description}
}

// =============================================================================
// SERVICE RULE SET
// =============================================================================

// Kind selects the policy a Rule applies.
type Kind int

const (
	// KindPercentChange applies PercentChange.
	KindPercentChange Kind = iota

	// KindZeroCrossing applies ZeroCrossing, followed by PercentChange when
	// a threshold is set.
	KindZeroCrossing
)

func (k Kind) String() string {
	switch k {
	case KindPercentChange:
		return "percent_change"
	case KindZeroCrossing:
		return "zero_crossing"
	}
	return "unknown"
}

// Rule is one year-over-year comparison on a service metric or raw field.
type Rule struct {
	// Metric is the derived metric or raw field compared; it is also the
	// check name.
	Metric string

	Kind Kind

	// Threshold is the fractional change that fails the rule (0.3 = 30%).
	// Required for KindPercentChange, optional for KindZeroCrossing.
	Threshold *float64

	// SubstituteMissingPrior compares against zero when the agency has prior
	// year data but not for this mode, instead of skipping the mode.
	SubstituteMissingPrior bool
}

// Evaluate applies the rule to one (agency, mode) pair.
func (r Rule) Evaluate(mode string, current, prior float64, years Years) Outcome {
	if r.Kind == KindZeroCrossing {
		return ZeroCrossing(r.Metric, mode, current, prior, r.Threshold, years)
	}
	var threshold float64
	if r.Threshold != nil {
		threshold = *r.Threshold
	}
	return PercentChange(r.Metric, mode, current, prior, threshold, years)
}

func threshold(v float64) *float64 { return &v }

// DefaultServiceRules returns the RR-20 service rule set in report order.
func DefaultServiceRules() []Rule {
	return []Rule{
		{Metric: "cost_per_hr", Kind: KindPercentChange, Threshold: threshold(0.30)},
		{Metric: "miles_per_veh", Kind: KindPercentChange, Threshold: threshold(0.20)},
		{Metric: "Annual VRM", Kind: KindZeroCrossing, Threshold: threshold(0.30), SubstituteMissingPrior: true},
		{Metric: "fare_rev_per_trip", Kind: KindPercentChange, Threshold: threshold(0.25)},
		{Metric: "fare_rev_per_trip", Kind: KindZeroCrossing, SubstituteMissingPrior: true},
		{Metric: "rev_speed", Kind: KindPercentChange, Threshold: threshold(0.15)},
		{Metric: "trips_per_hr", Kind: KindPercentChange, Threshold: threshold(0.30)},
		{Metric: "VOMX", Kind: KindZeroCrossing, SubstituteMissingPrior: true},
	}
}

// WithThresholds returns a copy of rs where every rule that already carries a
// threshold takes the override for its metric, if one is given.
func WithThresholds(rs []Rule, overrides map[string]float64) []Rule {
	out := make([]Rule, len(rs))
	for i, r := range rs {
		if t, ok := overrides[r.Metric]; ok && r.Threshold != nil {
			r.Threshold = threshold(t)
		}
		out[i] = r
	}
	return out
}
