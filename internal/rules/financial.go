package rules

import (
	"fmt"
	"math"
)

const (
	// RuralFormulaGrantField is the §5311 formula grant funding column.
	RuralFormulaGrantField = "FTA_Formula_Grants_for_Rural_Areas_5311"

	// OtherDirectlyGeneratedField may legitimately move to or from zero.
	OtherDirectlyGeneratedField = "Other_Directly_Generated_Funds"
)

// ZeroChangeAllowList names the financial fields exempt from the
// to-or-from-zero check.
var ZeroChangeAllowList = map[string]bool{
	OtherDirectlyGeneratedField: true,
}

// FinancialFigure checks one agency-level financial total against the prior
// year. Values are compared as whole dollars. In order of priority it fails
// when:
//
//   - the field is the rural formula grant and the current value is 0
//   - the value moved to or from zero (unless allow-listed)
//   - both years report the same nonzero value
//   - the current value is a nonzero multiple of 1000
func FinancialFigure(field string, current, prior float64, years Years) Outcome {
	current, prior = RoundWhole(current), RoundWhole(prior)
	value := fmt.Sprintf("%d = %s, %d = %s", years.Current, FormatWhole(current), years.Prior, FormatWhole(prior))

	switch {
	case field == RuralFormulaGrantField && current == 0:
		return fail("RR20F-070: no funds", value, fmt.Sprintf(
			"The §5311 program is not listed as a revenue source in your report in %d, please provide a narrative justification.",
			years.Current))

	case (current == 0) != (prior == 0) && !ZeroChangeAllowList[field]:
		return fail("Change from 0: "+field, value, fmt.Sprintf(
			"%s funding changed either from or to zero compared to last year. Please provide a narrative justification.",
			field))

	case current != 0 && prior != 0 && math.Abs(current) == math.Abs(prior):
		return fail("Same value: "+field, value, fmt.Sprintf(
			"You have identical values for %s reported in %d and %d, which is unusual. Please provide a narrative justification.",
			field, years.Current, years.Prior))

	case current != 0 && math.Mod(current, 1000) == 0:
		return fail("Rounded to thousand: "+field, value, fmt.Sprintf(
			"%s is rounded to the nearest thousand, but should be reported as exact values. Please provide a narrative justification.",
			field))
	}
	return pass(field, value)
}
