package domain

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StockRecord is one material at one location, joined with the material and
// location attributes the dashboards need.
type StockRecord struct {
	ID           string          `json:"id"`
	MaterialID   string          `json:"materialId"`
	MaterialCode string          `json:"materialCode"`
	MaterialName string          `json:"materialName"`
	Unit         string          `json:"unit"`
	LocationID   string          `json:"locationId"`
	LocationName string          `json:"locationName"`
	OnHand       decimal.Decimal `json:"onHand"`
	Reserved     decimal.Decimal `json:"reserved"`
	UnitCost     decimal.Decimal `json:"unitCost"`
	MinimumStock decimal.Decimal `json:"minimumStock"`
	ReorderPoint decimal.Decimal `json:"reorderPoint"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Available is on-hand minus reserved, never negative.
func (r StockRecord) Available() decimal.Decimal {
	avail := r.OnHand.Sub(r.Reserved)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

func (r StockRecord) Severity() Severity {
	return Classify(r.Available(), r.MinimumStock, r.ReorderPoint)
}

func (r StockRecord) Value() decimal.Decimal {
	return r.OnHand.Mul(r.UnitCost)
}

// Alert is derived on every poll; it is never stored.
type Alert struct {
	StockID      string          `json:"stockId"`
	MaterialCode string          `json:"materialCode"`
	MaterialName string          `json:"materialName"`
	LocationName string          `json:"locationName"`
	Severity     Severity        `json:"severity"`
	Available    decimal.Decimal `json:"available"`
	MinimumStock decimal.Decimal `json:"minimumStock"`
	ReorderPoint decimal.Decimal `json:"reorderPoint"`
	// ShortBy is how far below the reorder point the record sits.
	ShortBy      decimal.Decimal `json:"shortBy"`
	Acknowledged bool            `json:"acknowledged"`
}

type Summary struct {
	TotalRecords int              `json:"totalRecords"`
	BySeverity   map[Severity]int `json:"bySeverity"`
	TotalOnHand  decimal.Decimal  `json:"totalOnHand"`
	TotalValue   decimal.Decimal  `json:"totalValue"`
	GeneratedAt  time.Time        `json:"generatedAt"`
}

type AlertsView struct {
	Alerts      []Alert   `json:"alerts"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type LocationStats struct {
	LocationID   string          `json:"locationId"`
	LocationName string          `json:"locationName"`
	Records      int             `json:"records"`
	OnHand       decimal.Decimal `json:"onHand"`
	Value        decimal.Decimal `json:"value"`
	Alerts       int             `json:"alerts"`
}

type Stats struct {
	Locations    []LocationStats      `json:"locations"`
	Movements24h map[MovementType]int `json:"movements24h"`
	TotalValue   decimal.Decimal      `json:"totalValue"`
	GeneratedAt  time.Time            `json:"generatedAt"`
}

// BuildSummary aggregates a snapshot into severity counts and totals.
func BuildSummary(records []StockRecord, now time.Time) Summary {
	s := Summary{
		TotalRecords: len(records),
		BySeverity: map[Severity]int{
			SeverityNormal:     0,
			SeverityLow:        0,
			SeverityCritical:   0,
			SeverityOutOfStock: 0,
		},
		TotalOnHand: decimal.Zero,
		TotalValue:  decimal.Zero,
		GeneratedAt: now,
	}
	for _, r := range records {
		s.BySeverity[r.Severity()]++
		s.TotalOnHand = s.TotalOnHand.Add(r.OnHand)
		s.TotalValue = s.TotalValue.Add(r.Value())
	}
	return s
}

// BuildAlerts returns every record whose severity is not normal, most severe
// first, then by material name and location name. acknowledged reports
// whether an operator has acknowledged the alert for a stock id.
func BuildAlerts(records []StockRecord, acknowledged func(stockID string) bool, now time.Time) AlertsView {
	alerts := make([]Alert, 0)
	for _, r := range records {
		sev := r.Severity()
		if sev == SeverityNormal {
			continue
		}
		avail := r.Available()
		shortBy := r.ReorderPoint.Sub(avail)
		if shortBy.IsNegative() {
			shortBy = decimal.Zero
		}
		alerts = append(alerts, Alert{
			StockID:      r.ID,
			MaterialCode: r.MaterialCode,
			MaterialName: r.MaterialName,
			LocationName: r.LocationName,
			Severity:     sev,
			Available:    avail,
			MinimumStock: r.MinimumStock,
			ReorderPoint: r.ReorderPoint,
			ShortBy:      shortBy,
			Acknowledged: acknowledged != nil && acknowledged(r.ID),
		})
	}
	SortAlerts(alerts)
	return AlertsView{Alerts: alerts, GeneratedAt: now}
}

func SortAlerts(alerts []Alert) {
	slices.SortStableFunc(alerts, func(a, b Alert) int {
		if c := b.Severity.Compare(a.Severity); c != 0 {
			return c
		}
		if c := strings.Compare(a.MaterialName, b.MaterialName); c != 0 {
			return c
		}
		if c := strings.Compare(a.LocationName, b.LocationName); c != 0 {
			return c
		}
		return strings.Compare(a.StockID, b.StockID)
	})
}

// BuildStats groups a snapshot per location, ordered by location name.
func BuildStats(records []StockRecord, movements map[MovementType]int, now time.Time) Stats {
	byLocation := make(map[string]*LocationStats)
	total := decimal.Zero
	for _, r := range records {
		ls, ok := byLocation[r.LocationID]
		if !ok {
			ls = &LocationStats{
				LocationID:   r.LocationID,
				LocationName: r.LocationName,
				OnHand:       decimal.Zero,
				Value:        decimal.Zero,
			}
			byLocation[r.LocationID] = ls
		}
		ls.Records++
		ls.OnHand = ls.OnHand.Add(r.OnHand)
		ls.Value = ls.Value.Add(r.Value())
		if r.Severity() != SeverityNormal {
			ls.Alerts++
		}
		total = total.Add(r.Value())
	}

	locations := make([]LocationStats, 0, len(byLocation))
	for _, ls := range byLocation {
		locations = append(locations, *ls)
	}
	slices.SortFunc(locations, func(a, b LocationStats) int {
		if c := strings.Compare(a.LocationName, b.LocationName); c != 0 {
			return c
		}
		return strings.Compare(a.LocationID, b.LocationID)
	})

	counts := make(map[MovementType]int, len(movementTypes))
	for _, t := range movementTypes {
		counts[t] = movements[t]
	}

	return Stats{
		Locations:    locations,
		Movements24h: counts,
		TotalValue:   total,
		GeneratedAt:  now,
	}
}

// InventoryStore is the transactional source of truth for stock records and
// the movement ledger. Every quantity write goes through ApplyMovement,
// Transfer or Reverse.
type InventoryStore interface {
	Snapshot(ctx context.Context) ([]StockRecord, error)
	Stock(ctx context.Context, stockID string) (StockRecord, error)
	ApplyMovement(ctx context.Context, req MovementRequest) (Movement, error)
	Transfer(ctx context.Context, req TransferRequest) (TransferResult, error)
	Reverse(ctx context.Context, req ReverseRequest) (Movement, error)
	RecentMovements(ctx context.Context, limit int) ([]Movement, error)
	MovementCounts(ctx context.Context, since time.Time) (map[MovementType]int, error)
}
