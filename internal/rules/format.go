package rules

import (
	"math"
	"strconv"
	"strings"
)

// Round2 rounds to two decimal places, half to even. All comparison values
// are rounded this way before differencing.
func Round2(v float64) float64 {
	return roundTo(v, 2)
}

// RoundWhole rounds to the nearest integer, half to even. Used for whole
// dollar financial comparisons and integer counts.
func RoundWhole(v float64) float64 {
	return math.RoundToEven(v)
}

// ratioPlaces is the precision percent-change ratios are compared at, so that
// a change of exactly the threshold is not lost to binary floating point.
const ratioPlaces = 6

func roundTo(v float64, places int) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	p := math.Pow(10, float64(places))
	return math.RoundToEven(v*p) / p
}

// FormatNumber renders a value for a finding. Whole values keep one decimal
// ("10.0") and non-finite values read "inf", "-inf" or "nan".
func FormatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// FormatWhole renders a rounded dollar amount or count without decimals.
func FormatWhole(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return FormatNumber(v)
	}
	return strconv.FormatFloat(RoundWhole(v), 'f', 0, 64)
}

// formatPercent renders a fraction as a percentage with one decimal.
func formatPercent(fraction float64) string {
	return FormatNumber(roundTo(fraction*100, 1))
}
