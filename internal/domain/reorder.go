package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReorderRequest asks purchasing to replenish a stock record. It is pushed
// to supervisors and admins; nothing is persisted.
type ReorderRequest struct {
	ID           uuid.UUID       `json:"id"`
	StockID      string          `json:"stockId"`
	MaterialCode string          `json:"materialCode"`
	MaterialName string          `json:"materialName"`
	LocationName string          `json:"locationName"`
	Quantity     decimal.Decimal `json:"quantity"`
	Severity     Severity        `json:"severity"`
	RequestedBy  string          `json:"requestedBy"`
	Note         string          `json:"note,omitempty"`
	RequestedAt  time.Time       `json:"requestedAt"`
}

// SuggestedReorder is the quantity that lifts available stock back to twice
// the reorder point. Zero when nothing is needed.
func SuggestedReorder(r StockRecord) decimal.Decimal {
	target := r.ReorderPoint.Mul(decimal.NewFromInt(2))
	need := target.Sub(r.Available())
	if need.IsPositive() {
		return need
	}
	return decimal.Zero
}

func NewReorderRequest(r StockRecord, qty decimal.Decimal, actorID, note string, at time.Time) ReorderRequest {
	return ReorderRequest{
		ID:           uuid.New(),
		StockID:      r.ID,
		MaterialCode: r.MaterialCode,
		MaterialName: r.MaterialName,
		LocationName: r.LocationName,
		Quantity:     qty,
		Severity:     r.Severity(),
		RequestedBy:  actorID,
		Note:         note,
		RequestedAt:  at,
	}
}
