package pipeline

import (
	"fmt"
	"strings"
)

// Form identifies one check run and its report.
type Form string

const (
	FormRR20Service   Form = "rr20-service"
	FormRR20Financial Form = "rr20-financial"
	FormA10           Form = "a10"
	FormVOMS          Form = "voms"
)

// Forms lists every check run in the order "all" runs them.
var Forms = []Form{FormRR20Service, FormRR20Financial, FormA10, FormVOMS}

// ParseForm parses a form name; "all" returns every form.
func ParseForm(name string) ([]Form, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "all" || name == "" {
		return append([]Form(nil), Forms...), nil
	}
	for _, f := range Forms {
		if string(f) == name {
			return []Form{f}, nil
		}
	}
	return nil, fmt.Errorf("unknown form %q (want one of rr20-service, rr20-financial, a10, voms, all)", name)
}

// ReportName is the {form} placeholder of the report file name.
func (f Form) ReportName() string {
	return strings.ReplaceAll(string(f), "-", "_")
}
