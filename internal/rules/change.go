package rules

import (
	"fmt"
	"math"
)

// valueChecked renders the compared values for a year-over-year finding.
func valueChecked(current, prior float64, years Years) string {
	return fmt.Sprintf("%d = %s, %d = %s", years.Current, FormatNumber(current), years.Prior, FormatNumber(prior))
}

// undefinedMetric fails a comparison whose value is a ratio over a zero
// denominator in either year.
func undefinedMetric(metric, mode, value string) Outcome {
	return fail(metric, value, fmt.Sprintf(
		"The %s for %s is undefined for one of the years because its denominator is zero. Please review the reported values.",
		metric, mode))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// PercentChange fails when the value moved by at least threshold (a fraction)
// relative to the prior year. The boundary is inclusive.
//
// When the prior value is zero the absolute change is compared against the
// threshold instead; a change below it passes. A non-finite value in either
// year fails as undefined.
func PercentChange(metric, mode string, current, prior, threshold float64, years Years) Outcome {
	current, prior = Round2(current), Round2(prior)
	value := valueChecked(current, prior, years)
	if !finite(current) || !finite(prior) {
		return undefinedMetric(metric, mode, value)
	}

	if prior == 0 {
		if math.Abs(current-prior) >= threshold {
			return fail(metric, value, fmt.Sprintf(
				"The %s for %s has changed from last year by > = %s%%, please provide a narrative justification.",
				metric, mode, formatPercent(threshold)))
		}
		return pass(metric, value)
	}

	ratio := roundTo(math.Abs(current-prior)/math.Abs(prior), ratioPlaces)
	if ratio >= threshold {
		return fail(metric, value, fmt.Sprintf(
			"The %s for %s has changed from last year by %s%%, please provide a narrative justification.",
			metric, mode, formatPercent(ratio)))
	}
	return pass(metric, value)
}

// ZeroCrossing fails when exactly one of the two values rounds to zero. When
// threshold is non-nil and no crossing occurred, the percent change is checked
// as well. A non-finite value in either year fails as undefined.
func ZeroCrossing(metric, mode string, current, prior float64, threshold *float64, years Years) Outcome {
	current, prior = Round2(current), Round2(prior)
	value := valueChecked(current, prior, years)
	if !finite(current) || !finite(prior) {
		return undefinedMetric(metric, mode, value)
	}

	curZero := RoundWhole(current) == 0
	priorZero := RoundWhole(prior) == 0
	if curZero != priorZero {
		return fail(metric, value, fmt.Sprintf(
			"The %s for %s has changed either from or to zero compared to last year. Please provide a narrative justification.",
			metric, mode))
	}
	if threshold == nil {
		return pass(metric, value)
	}

	t := *threshold
	if prior == 0 {
		if math.Abs(current-prior) >= t {
			return fail(metric, value, fmt.Sprintf(
				"The %s for %s was 0 last year and has changed by > = %s%%, please provide a narrative justification.",
				metric, mode, formatPercent(t)))
		}
		return pass(metric, value)
	}

	ratio := roundTo(math.Abs(prior-current)/math.Abs(prior), ratioPlaces)
	if ratio >= t {
		return fail(metric, value, fmt.Sprintf(
			"The %s for %s has changed from last year by %s%%; please provide a narrative justification.",
			metric, mode, formatPercent(ratio)))
	}
	return pass(metric, value)
}
