// =============================================================================
// NTD Report Validation - Findings Aggregator
// =============================================================================
//
// This package combines the findings of every check pass into one table for
// the report writer. Findings are ordered by organization; within an
// organization the order in which checks ran is kept.
//
// =============================================================================

package findings

import (
	"fmt"
	"sort"

	"github.com/cal-itp/ntd-modernization/internal/types"
)

// Aggregate concatenates finding tables and sorts the result by organization.
// The sort is stable. The inputs are not modified.
func Aggregate(tables ...[]types.Finding) []types.Finding {
	n := 0
	for _, t := range tables {
		n += len(t)
	}
	out := make([]types.Finding, 0, n)
	for _, t := range tables {
		out = append(out, t...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Organization < out[j].Organization
	})
	return out
}

// Failures returns the findings that did not pass.
func Failures(all []types.Finding) []types.Finding {
	var out []types.Finding
	for _, f := range all {
		if f.Status != types.StatusPass {
			out = append(out, f)
		}
	}
	return out
}

// Summary counts findings per status.
type Summary struct {
	Total    int
	Passed   int
	Failed   int
	Warnings int

	// Organizations is the number of distinct organizations with findings.
	Organizations int
}

// Summarize counts the findings.
func Summarize(all []types.Finding) Summary {
	s := Summary{Total: len(all)}
	orgs := make(map[string]bool)
	for _, f := range all {
		orgs[f.Organization] = true
		switch f.Status {
		case types.StatusPass:
			s.Passed++
		case types.StatusFail:
			s.Failed++
		case types.StatusWarning:
			s.Warnings++
		}
	}
	s.Organizations = len(orgs)
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d findings for %d organizations: %d passed, %d failed, %d warnings",
		s.Total, s.Organizations, s.Passed, s.Failed, s.Warnings)
}

// Validate reports the first finding that breaks the finding invariants: the
// status must be pass, fail or warning, and the description must be empty
// exactly when the finding passed.
func Validate(all []types.Finding) error {
	for i, f := range all {
		if !f.Status.Valid() {
			return fmt.Errorf("finding %d (%s, %s): invalid status %q", i, f.Organization, f.CheckName, f.Status)
		}
		if (f.Status == types.StatusPass) != (f.Description == "") {
			return fmt.Errorf("finding %d (%s, %s): status %s with description %q",
				i, f.Organization, f.CheckName, f.Status, f.Description)
		}
	}
	return nil
}
