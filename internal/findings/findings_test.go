package findings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cal-itp/ntd-modernization/internal/types"
)

func finding(org, check string, status types.Status) types.Finding {
	f := types.Finding{Organization: org, CheckName: check, Status: status}
	if status != types.StatusPass {
		f.Description = "explain"
	}
	return f
}

// TestAggregate verifies findings are sorted by organization and keep check
// order within an organization.
func TestAggregate(t *testing.T) {
	first := []types.Finding{
		finding("B", "cost_per_hr", types.StatusPass),
		finding("A", "cost_per_hr", types.StatusFail),
	}
	second := []types.Finding{
		finding("B", "VOMX", types.StatusPass),
		finding("A", "VOMX", types.StatusPass),
	}

	got := Aggregate(first, nil, second)
	require.Len(t, got, 4)

	var order []string
	for _, f := range got {
		order = append(order, f.Organization+":"+f.CheckName)
	}
	assert.Equal(t, []string{"A:cost_per_hr", "A:VOMX", "B:cost_per_hr", "B:VOMX"}, order)

	// Inputs keep their order.
	assert.Equal(t, "B", first[0].Organization)
}

func TestFailuresAndSummary(t *testing.T) {
	all := []types.Finding{
		finding("A", "x", types.StatusPass),
		finding("A", "y", types.StatusFail),
		finding("B", "x", types.StatusWarning),
	}

	assert.Len(t, Failures(all), 2)

	s := Summarize(all)
	assert.Equal(t, Summary{Total: 3, Passed: 1, Failed: 1, Warnings: 1, Organizations: 2}, s)
	assert.Equal(t, "3 findings for 2 organizations: 1 passed, 1 failed, 1 warnings", s.String())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]types.Finding{finding("A", "x", types.StatusFail)}))

	bad := finding("A", "x", types.StatusPass)
	bad.Description = "should be empty"
	assert.Error(t, Validate([]types.Finding{bad}))

	assert.Error(t, Validate([]types.Finding{{Organization: "A", Status: "maybe", Description: "?"}}))
}
