package checks

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cal-itp/ntd-modernization/internal/rules"
	"github.com/cal-itp/ntd-modernization/internal/types"
)

// Fleet check names.
const (
	CheckVIN         = "VIN check"
	CheckFleetTotals = "VOMS & A-30 vehicle totals"
)

// activeVINs returns each agency's distinct active inventory VINs.
func activeVINs(inventory []types.InventoryVehicle) map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	for _, v := range inventory {
		if !v.Active() {
			continue
		}
		if out[v.Organization] == nil {
			out[v.Organization] = make(map[string]bool)
		}
		out[v.Organization][strings.TrimSpace(v.VIN)] = true
	}
	return out
}

// a30VINs returns the agencies listed on the A-30 in first-seen order and
// each agency's distinct VINs in first-seen order.
func a30VINs(a30 []types.A30Vehicle) (orderedSet, map[string]*orderedSet) {
	var orgs orderedSet
	vins := make(map[string]*orderedSet)
	for _, v := range a30 {
		orgs.add(v.Organization)
		if vins[v.Organization] == nil {
			vins[v.Organization] = &orderedSet{}
		}
		vins[v.Organization].add(strings.TrimSpace(v.VIN))
	}
	return orgs, vins
}

// VINReconciliation emits one finding per distinct A-30 VIN: pass when the
// VIN is an active vehicle in the agency's inventory, fail otherwise.
func (c *Checker) VINReconciliation(a30 []types.A30Vehicle, inventory []types.InventoryVehicle) []types.Finding {
	active := activeVINs(inventory)
	orgs, vins := a30VINs(a30)

	var out []types.Finding
	for _, org := range orgs.items {
		for _, vin := range vins[org].items {
			f := types.Finding{
				Organization: org,
				CheckName:    CheckVIN,
				ValueChecked: vin,
				Status:       types.StatusPass,
			}
			if !active[org][vin] {
				f.Status = types.StatusFail
				f.Description = vin + " not an active vehicle in the inventory. Investigate."
			}
			out = append(out, f)
		}
	}
	return out
}

// FleetBounds compares, per A-30 agency, the distinct A-30 VINs (A), the
// distinct active inventory VINs (B) and the summed current-year RR-20 VOMS
// (C). Expected: A <= B, C <= B and C <= A.
//
// A > B is a warning whatever the other values are; otherwise C > A fails.
func (c *Checker) FleetBounds(a30 []types.A30Vehicle, inventory []types.InventoryVehicle, service []types.ServiceRecord) []types.Finding {
	active := activeVINs(inventory)
	orgs, vins := a30VINs(a30)

	voms := make(map[string]float64)
	for _, r := range service {
		if r.FiscalYear != c.years.Current || r.VOMX == nil {
			continue
		}
		voms[r.Organization] += *r.VOMX
	}

	var out []types.Finding
	for _, org := range orgs.items {
		a := len(vins[org].items)
		b := len(active[org])
		cnt := int(rules.RoundWhole(voms[org]))
		if b == 0 {
			c.logger.Info("no active inventory for agency", zap.String("organization", org))
		}

		f := types.Finding{
			Organization: org,
			CheckName:    CheckFleetTotals,
			ValueChecked: fmt.Sprintf("A-30 vehicles = %d, active inventory = %d, RR-20 VOMS = %d", a, b, cnt),
		}
		switch {
		case a <= b && cnt <= b && cnt <= a:
			f.Status = types.StatusPass
		case a > b:
			f.Status = types.StatusWarning
			f.Description = "More A-30 vehicles reported than in active inventory."
		default:
			f.Status = types.StatusFail
			f.Description = "Total VOMS is greater than total A-30 vehicles reported. Please clarify"
		}
		out = append(out, f)
	}
	return out
}
