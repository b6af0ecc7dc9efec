package memstore

import (
	"time"

	"github.com/pscheid92/plantpulse/internal/domain"
	"github.com/shopspring/decimal"
)

type seedMaterial struct {
	id, code, name, unit string
	cost                 string
	minimum, reorder     string
}

type seedLocation struct {
	id, name string
}

var (
	demoMaterials = []seedMaterial{
		{"mat-resin", "RES-100", "Epoxy resin", "kg", "12.40", "50", "120"},
		{"mat-bolt", "BLT-M8", "M8 bolt", "pcs", "0.08", "500", "2000"},
		{"mat-cat", "CAT-7", "Catalyst 7", "l", "31.00", "10", "25"},
		{"mat-film", "FLM-20", "Barrier film", "m", "1.75", "200", "600"},
	}
	demoLocations = []seedLocation{
		{"loc-main", "Main warehouse"},
		{"loc-line1", "Line 1 buffer"},
	}
	demoOnHand = map[string]string{
		"mat-resin/loc-main":  "340",
		"mat-resin/loc-line1": "60",
		"mat-bolt/loc-main":   "12000",
		"mat-bolt/loc-line1":  "450",
		"mat-cat/loc-main":    "18",
		"mat-cat/loc-line1":   "0",
		"mat-film/loc-main":   "900",
		"mat-film/loc-line1":  "150",
	}
)

// DemoRecords returns a small plant inventory with a spread of severities.
func DemoRecords(now time.Time) []domain.StockRecord {
	var out []domain.StockRecord
	for _, m := range demoMaterials {
		for _, l := range demoLocations {
			id := m.id + "/" + l.id
			out = append(out, domain.StockRecord{
				ID:           id,
				MaterialID:   m.id,
				MaterialCode: m.code,
				MaterialName: m.name,
				Unit:         m.unit,
				LocationID:   l.id,
				LocationName: l.name,
				OnHand:       decimal.RequireFromString(demoOnHand[id]),
				Reserved:     decimal.Zero,
				UnitCost:     decimal.RequireFromString(m.cost),
				MinimumStock: decimal.RequireFromString(m.minimum),
				ReorderPoint: decimal.RequireFromString(m.reorder),
				UpdatedAt:    now,
			})
		}
	}
	return out
}

// DemoActors returns one account per role.
func DemoActors() []domain.Actor {
	return []domain.Actor{
		{
			ID:          "admin",
			Name:        "Plant Admin",
			Role:        domain.RoleAdmin,
			Permissions: []domain.Permission{domain.PermReadDashboard, domain.PermControlReactors, domain.PermControlStations, domain.PermManageUsers, domain.PermWriteInventory},
		},
		{
			ID:          "supervisor",
			Name:        "Shift Supervisor",
			Role:        domain.RoleSupervisor,
			Permissions: []domain.Permission{domain.PermReadDashboard, domain.PermControlStations, domain.PermWriteInventory},
			Department:  "production",
			Shift:       "day",
		},
		{
			ID:          "operator",
			Name:        "Line Operator",
			Role:        domain.RoleOperator,
			Permissions: []domain.Permission{domain.PermReadDashboard, domain.PermControlStations},
			Department:  "production",
			Shift:       "day",
		},
		{
			ID:          "viewer",
			Name:        "Visitor",
			Role:        domain.RoleViewer,
			Permissions: []domain.Permission{domain.PermReadDashboard},
		},
	}
}
