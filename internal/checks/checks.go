// =============================================================================
// NTD Report Validation - Form Checks
// =============================================================================
//
// This package runs the rule policies over decoded form records and produces
// findings. It holds the per-form passes (RR-20 service, RR-20 financial, A-10
// facilities) and the cross-form consistency checks (VIN reconciliation,
// fleet bounds, revenue/expense balance, capital double entry, new fleet
// capital expenses).
//
// MISSING DATA:
//   When an agency has no data for one of the compared years the comparison
//   is skipped and logged; no finding is emitted. The only exception is a
//   service rule with SubstituteMissingPrior, which compares a mode missing
//   from the prior year against zero.
//
// STATE:
//   A Checker holds only its configuration. Every method is a pure function
//   of its arguments apart from logging, so running a pass twice on the same
//   input gives the same findings.
//
// =============================================================================

package checks

import (
	"go.uber.org/zap"

	"github.com/cal-itp/ntd-modernization/internal/rules"
)

// Checker runs checks for one pair of fiscal years.
type Checker struct {
	years  rules.Years
	logger *zap.Logger
}

// New creates a Checker. A nil logger discards log output.
func New(years rules.Years, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{years: years, logger: logger}
}

// Years returns the compared fiscal years.
func (c *Checker) Years() rules.Years {
	return c.years
}

// orderedSet keeps first-seen order of string keys.
type orderedSet struct {
	seen  map[string]bool
	items []string
}

func (s *orderedSet) add(v string) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[v] {
		return
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}
