package rules

import (
	"fmt"
	"math"
)

// Facility check names.
const (
	CheckWholeNumberFacilities = "Whole Number Facilities"
	CheckNonZeroFacilities     = "Non-zero Facilities"
	CheckGenPurposeFacilities  = "Gen Purpose Facilities"
	CheckMultipleGenPurpose    = "Multiple Gen Purpose Facilities"
	CheckNonZeroGenPurpose     = "Non-zero Gen Purpose Facilities"
	CheckGenPurposeLastYear    = "Comparison to last yr: Gen Purpose Facilities"
)

// WholeNumber fails when the facility total is fractional.
func WholeNumber(total float64) Outcome {
	total = Round2(total)
	value := "Total Facilities: " + FormatNumber(total)
	if total != math.Trunc(total) {
		return fail(CheckWholeNumberFacilities, value,
			"The reported total facilities do not add up to a whole number. Please explain.")
	}
	return pass(CheckWholeNumberFacilities, value)
}

// NonZero fails when no facilities are reported.
func NonZero(total float64) Outcome {
	total = Round2(total)
	value := "Total Facilities: " + FormatNumber(total)
	if total == 0 {
		return fail(CheckNonZeroFacilities, value, "There are no reported facilities. Please explain.")
	}
	return pass(CheckNonZeroFacilities, value)
}

// GeneralPurposeCount expects exactly one general purpose facility. The count
// is rounded to an integer first; every count falls in exactly one branch.
func GeneralPurposeCount(count float64) Outcome {
	n := RoundWhole(count)
	value := "Gen Purpose Facilities: " + FormatWhole(n)
	switch {
	case n == 1:
		return pass(CheckGenPurposeFacilities, value)
	case n > 1:
		return fail(CheckMultipleGenPurpose, value,
			"You reported > 1 general purpose facility. Please verify whether this is correct.")
	default:
		return fail(CheckNonZeroGenPurpose, value,
			"You reported no general purpose facilities. Please verify whether this is correct.")
	}
}

// SameAsLastYear fails when the general purpose facility count changed.
func SameAsLastYear(current, prior float64, years Years) Outcome {
	current, prior = RoundWhole(current), RoundWhole(prior)
	value := fmt.Sprintf("%s in %d, %s in %d (Gen Purpose Facilities)",
		FormatWhole(current), years.Current, FormatWhole(prior), years.Prior)
	if current != prior {
		return fail(CheckGenPurposeLastYear, value,
			"Num. of general purpose facilities differs that last year - please verify or clarify.")
	}
	return pass(CheckGenPurposeLastYear, value)
}
