package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/cal-itp/ntd-modernization/internal/config"
)

// Form describes how a form's uploads are named and which sheets they carry.
type Form struct {
	// Name is the form identifier used on the command line.
	Name string

	// FilePrefix is the file name prefix. "{year}" is replaced by the fiscal
	// year.
	FilePrefix string

	// Sheets are the workbook sheets ingested for the form.
	Sheets []string
}

// Forms lists the uploads the tool knows about.
var Forms = []Form{
	{
		Name:       "RR-20",
		FilePrefix: "NTD_Annual_Report_Rural_{year}",
		Sheets: []string{
			"Basics.Contacts", "Modes", "Expenses By Mode", "Revenues By Mode",
			"Financials - 2", "Service Data", "Safety", "Other Resources",
		},
	},
	{
		Name:       "A-30",
		FilePrefix: "A_30_Revenue_Vehicle_Report_{year}",
		Sheets:     []string{"A-30 (Rural) RVI"},
	},
	{
		Name:       "A-10",
		FilePrefix: "NTD_Stations_and_Maintenace_Facilities_A10_{year}",
		Sheets:     []string{"PurchaseTranspFacOwnTypes", "DirectlyOperatedFacOwnTypes"},
	},
	{
		Name:       "Inventory",
		FilePrefix: "RevenueVehicles",
		Sheets:     []string{"Revenue Vehicles"},
	},
}

// LookupForm finds a form by name, case-insensitively.
func LookupForm(name string) (Form, error) {
	for _, f := range Forms {
		if strings.EqualFold(f.Name, name) {
			return f, nil
		}
	}
	return Form{}, fmt.Errorf("unknown form %q", name)
}

// Prefix returns the form's file prefix for a fiscal year.
func (f Form) Prefix(year int) string {
	return strings.ReplaceAll(f.FilePrefix, "{year}", fmt.Sprint(year))
}

// New returns the source selected by the configuration.
func New(ctx context.Context, cfg *config.Config) (Source, error) {
	switch cfg.Source.Kind {
	case "", "local":
		return NewLocal(cfg.InputDir), nil
	case "gcs":
		return NewGCS(ctx, cfg.Source.Bucket, cfg.Source.Prefix, cfg.Source.CredentialsFile)
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}
