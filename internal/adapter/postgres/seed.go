package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pscheid92/plantpulse/internal/domain"
)

// ImportRecords upserts the locations, materials and stock rows described
// by records. Quantities are set directly; nothing is written to the ledger.
func (r *InventoryRepo) ImportRecords(ctx context.Context, records []domain.StockRecord) error {
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`INSERT INTO locations (id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
			rec.LocationID, rec.LocationName)
		batch.Queue(`INSERT INTO materials (id, code, name, unit, unit_cost) VALUES ($1, $2, $3, $4, $5::numeric)
			ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, name = EXCLUDED.name, unit = EXCLUDED.unit, unit_cost = EXCLUDED.unit_cost`,
			rec.MaterialID, rec.MaterialCode, rec.MaterialName, rec.Unit, rec.UnitCost.String())
		batch.Queue(`INSERT INTO stock (id, material_id, location_id, on_hand, reserved, minimum_stock, reorder_point, updated_at)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8)
			ON CONFLICT (id) DO UPDATE SET
				on_hand = EXCLUDED.on_hand,
				reserved = EXCLUDED.reserved,
				minimum_stock = EXCLUDED.minimum_stock,
				reorder_point = EXCLUDED.reorder_point,
				updated_at = EXCLUDED.updated_at`,
			rec.ID, rec.MaterialID, rec.LocationID, rec.OnHand.String(), rec.Reserved.String(),
			rec.MinimumStock.String(), rec.ReorderPoint.String(), rec.UpdatedAt)
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to import stock records: %w", err)
		}
		return nil
	})
}
