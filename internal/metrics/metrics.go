// =============================================================================
// NTD Report Validation - Derived Metrics
// =============================================================================
//
// This package computes the ratio metrics compared year over year on the RR-20
// service form and attaches them to each service record.
//
// PRECONDITION:
//   Null facts must be zero-filled (FillZero) before Attach is called. The
//   missing-data check has to run first so the fill does not hide gaps.
//
// DIVISION BY ZERO:
//   Not suppressed. A zero denominator yields +Inf, -Inf or NaN; the rule
//   engine decides what that means for each rule.
//
// =============================================================================

package metrics

import (
	"fmt"
	"strings"

	"github.com/cal-itp/ntd-modernization/internal/table"
	"github.com/cal-itp/ntd-modernization/internal/types"
)

// Field names a raw fact on a service record.
type Field string

const (
	AnnualVRM           Field = "Annual VRM"
	AnnualVRH           Field = "Annual VRH"
	AnnualUPT           Field = "Annual UPT"
	SponsoredUPT        Field = "Sponsored UPT"
	VOMX                Field = "VOMX"
	TotalExpensesByMode Field = "Total Annual Expenses By Mode"
	FareRevenues        Field = "Fare Revenues"
)

// Fields lists every raw service fact.
var Fields = []Field{
	AnnualVRM,
	AnnualVRH,
	AnnualUPT,
	SponsoredUPT,
	VOMX,
	TotalExpensesByMode,
	FareRevenues,
}

// ptr returns the record's pointer for the field.
func (f Field) ptr(r *types.ServiceRecord) **float64 {
	switch f {
	case AnnualVRM:
		return &r.AnnualVRM
	case AnnualVRH:
		return &r.AnnualVRH
	case AnnualUPT:
		return &r.AnnualUPT
	case SponsoredUPT:
		return &r.SponsoredUPT
	case VOMX:
		return &r.VOMX
	case TotalExpensesByMode:
		return &r.TotalExpensesByMode
	case FareRevenues:
		return &r.FareRevenues
	}
	return nil
}

// Value returns the field's value on r; nil means not reported.
func (f Field) Value(r types.ServiceRecord) *float64 {
	p := f.ptr(&r)
	if p == nil {
		return nil
	}
	return *p
}

// =============================================================================
// DEFINITIONS
// =============================================================================

// Definition describes one derived metric.
type Definition struct {
	// Name is the metric name, also used as its check name.
	Name string

	Numerator   Field
	Denominator Field

	// Aggregate sums the numerator over the (agency, mode, fiscal year) group
	// before dividing by each row's denominator. Otherwise the ratio is taken
	// row by row.
	Aggregate bool
}

// Defaults are the RR-20 service metrics.
var Defaults = []Definition{
	{Name: "cost_per_hr", Numerator: TotalExpensesByMode, Denominator: AnnualVRH, Aggregate: true},
	{Name: "miles_per_veh", Numerator: AnnualVRM, Denominator: VOMX, Aggregate: true},
	{Name: "fare_rev_per_trip", Numerator: FareRevenues, Denominator: AnnualUPT, Aggregate: true},
	{Name: "rev_speed", Numerator: AnnualVRM, Denominator: AnnualVRH},
	{Name: "trips_per_hr", Numerator: AnnualUPT, Denominator: AnnualVRH},
}

// =============================================================================
// OPERATIONS
// =============================================================================

// FillZero returns a copy of records with every unreported fact set to zero.
func FillZero(records []types.ServiceRecord) []types.ServiceRecord {
	out := make([]types.ServiceRecord, len(records))
	for i, r := range records {
		for _, f := range Fields {
			p := f.ptr(&r)
			if *p == nil {
				zero := 0.0
				*p = &zero
			}
		}
		out[i] = r
	}
	return out
}

type groupKey struct {
	org  string
	mode string
	year int
}

// Attach computes every definition and returns a copy of records carrying the
// results in Metrics. The input is not modified.
//
// A metric whose name matches a raw field or a metric already present on a
// record is a fatal configuration error wrapping types.ErrColumnCollision.
func Attach(records []types.ServiceRecord, defs []Definition) ([]types.ServiceRecord, error) {
	taken := make(map[string]bool, len(Fields))
	for _, f := range Fields {
		taken[collisionKey(string(f))] = true
	}
	for _, r := range records {
		for name := range r.Metrics {
			taken[collisionKey(name)] = true
		}
	}
	for _, d := range defs {
		key := collisionKey(d.Name)
		if taken[key] {
			return nil, &types.ConfigError{
				Op:     "derive metrics",
				Table:  "service data",
				Column: d.Name,
				Err:    types.ErrColumnCollision,
			}
		}
		taken[key] = true
		if d.Numerator.ptr(&types.ServiceRecord{}) == nil || d.Denominator.ptr(&types.ServiceRecord{}) == nil {
			return nil, &types.ConfigError{
				Op:     "derive metrics",
				Table:  "service data",
				Column: d.Name,
				Err:    fmt.Errorf("unknown field %q or %q: %w", d.Numerator, d.Denominator, types.ErrMissingColumn),
			}
		}
	}

	out := make([]types.ServiceRecord, len(records))
	for i, r := range records {
		m := make(map[string]float64, len(r.Metrics)+len(defs))
		for k, v := range r.Metrics {
			m[k] = v
		}
		r.Metrics = m
		out[i] = r
	}

	for _, d := range defs {
		sums := make(map[groupKey]float64)
		if d.Aggregate {
			for _, r := range out {
				sums[keyOf(r)] += deref(d.Numerator.Value(r))
			}
		}
		for i, r := range out {
			num := deref(d.Numerator.Value(r))
			if d.Aggregate {
				num = sums[keyOf(r)]
			}
			out[i].Metrics[d.Name] = num / deref(d.Denominator.Value(r))
		}
	}
	return out, nil
}

// Lookup returns a metric or raw field value by name. Unreported raw values
// read as zero.
func Lookup(r types.ServiceRecord, name string) (float64, bool) {
	if v, ok := r.Metrics[name]; ok {
		return v, true
	}
	key := collisionKey(name)
	for _, f := range Fields {
		if collisionKey(string(f)) == key {
			return deref(f.Value(r)), true
		}
	}
	return 0, false
}

func keyOf(r types.ServiceRecord) groupKey {
	return groupKey{org: r.Organization, mode: r.Mode, year: r.FiscalYear}
}

func collisionKey(name string) string {
	return strings.ToLower(table.CanonicalHeader(name))
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
