package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/plantpulse/internal/domain"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// stockColumns must match the Scan order in scanStock.
const stockColumns = `s.id, s.material_id, m.code, m.name, m.unit, s.location_id, l.name,
	s.on_hand::text, s.reserved::text, m.unit_cost::text, s.minimum_stock::text, s.reorder_point::text, s.updated_at`

const stockFrom = `FROM stock s
	JOIN materials m ON m.id = s.material_id
	JOIN locations l ON l.id = s.location_id`

// movementColumns must match the Scan order in scanMovement.
const movementColumns = `id, stock_id, type, quantity::text, on_hand_before::text, on_hand_after::text,
	reversal_of, transfer_id, actor_id, note, created_at`

// InventoryRepo implements domain.InventoryStore. Every write runs in one
// transaction that locks the affected stock rows, updates them and appends
// the ledger entries.
type InventoryRepo struct {
	pool *pgxpool.Pool
}

var _ domain.InventoryStore = (*InventoryRepo)(nil)

func NewInventoryRepo(pool *pgxpool.Pool) *InventoryRepo {
	return &InventoryRepo{pool: pool}
}

func (r *InventoryRepo) Snapshot(ctx context.Context) ([]domain.StockRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+stockColumns+` `+stockFrom+` ORDER BY s.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock: %w", err)
	}
	defer rows.Close()

	var out []domain.StockRecord
	for rows.Next() {
		rec, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stock rows: %w", err)
	}
	return out, nil
}

func (r *InventoryRepo) Stock(ctx context.Context, stockID string) (domain.StockRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+stockColumns+` `+stockFrom+` WHERE s.id = $1`, stockID)
	rec, err := scanStock(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StockRecord{}, fmt.Errorf("%w: stock %q", domain.ErrNotFound, stockID)
	}
	return rec, err
}

func (r *InventoryRepo) ApplyMovement(ctx context.Context, req domain.MovementRequest) (domain.Movement, error) {
	delta, err := domain.Delta(req.Type, req.Quantity)
	if err != nil {
		return domain.Movement{}, err
	}

	var mv domain.Movement
	err = r.inTx(ctx, func(tx pgx.Tx) error {
		locked, err := lockStock(ctx, tx, req.StockID)
		if err != nil {
			return err
		}
		before := locked[req.StockID].onHand

		after, err := domain.ApplyDelta(before, delta)
		if err != nil {
			return err
		}

		mv = domain.NewMovement(req.StockID, req.Type, delta, before, after, req.ActorID, req.Note, req.At)
		return commitMovement(ctx, tx, mv)
	})
	return mv, err
}

func (r *InventoryRepo) Transfer(ctx context.Context, req domain.TransferRequest) (domain.TransferResult, error) {
	if err := domain.CheckTransferQuantity(req.Quantity); err != nil {
		return domain.TransferResult{}, err
	}
	if req.FromStockID == req.ToStockID {
		return domain.TransferResult{}, fmt.Errorf("%w: source and destination are the same record", domain.ErrInvalidInput)
	}

	var res domain.TransferResult
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		locked, err := lockStock(ctx, tx, req.FromStockID, req.ToStockID)
		if err != nil {
			return err
		}
		from, to := locked[req.FromStockID], locked[req.ToStockID]
		if from.materialID != to.materialID {
			return fmt.Errorf("%w: transfer between different materials", domain.ErrInvalidInput)
		}

		fromAfter, err := domain.ApplyDelta(from.onHand, req.Quantity.Neg())
		if err != nil {
			return err
		}
		toAfter, err := domain.ApplyDelta(to.onHand, req.Quantity)
		if err != nil {
			return err
		}

		transferID := uuid.New()
		out := domain.NewMovement(req.FromStockID, domain.MovementTransfer, req.Quantity.Neg(), from.onHand, fromAfter, req.ActorID, req.Note, req.At)
		out.TransferID = &transferID
		in := domain.NewMovement(req.ToStockID, domain.MovementTransfer, req.Quantity, to.onHand, toAfter, req.ActorID, req.Note, req.At)
		in.TransferID = &transferID

		if err := commitMovement(ctx, tx, out); err != nil {
			return err
		}
		if err := commitMovement(ctx, tx, in); err != nil {
			return err
		}
		res = domain.TransferResult{TransferID: transferID, Out: out, In: in}
		return nil
	})
	return res, err
}

func (r *InventoryRepo) Reverse(ctx context.Context, req domain.ReverseRequest) (domain.Movement, error) {
	var mv domain.Movement
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+movementColumns+` FROM movements WHERE id = $1 FOR UPDATE`, req.MovementID)
		original, err := scanMovement(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: movement %s", domain.ErrNotFound, req.MovementID)
		}
		if err != nil {
			return err
		}

		var reversed bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM movements WHERE reversal_of = $1)`, original.ID).Scan(&reversed); err != nil {
			return fmt.Errorf("failed to check reversal: %w", err)
		}
		if err := domain.CheckReversible(original, reversed, req.At); err != nil {
			return err
		}

		locked, err := lockStock(ctx, tx, original.StockID)
		if err != nil {
			return err
		}
		before := locked[original.StockID].onHand

		delta := original.Quantity.Neg()
		after, err := domain.ApplyDelta(before, delta)
		if err != nil {
			return err
		}

		mv = domain.NewMovement(original.StockID, original.Type, delta, before, after, req.ActorID, req.Note, req.At)
		mv.ReversalOf = &original.ID
		return commitMovement(ctx, tx, mv)
	})

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.Movement{}, domain.ErrAlreadyReversed
	}
	return mv, err
}

func (r *InventoryRepo) RecentMovements(ctx context.Context, limit int) ([]domain.Movement, error) {
	limit = max(limit, 0)
	rows, err := r.pool.Query(ctx, `SELECT `+movementColumns+` FROM movements ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Movement, 0, limit)
	for rows.Next() {
		mv, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read movement rows: %w", err)
	}
	return out, nil
}

func (r *InventoryRepo) MovementCounts(ctx context.Context, since time.Time) (map[domain.MovementType]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT type, count(*) FROM movements WHERE created_at >= $1 GROUP BY type`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count movements: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.MovementType]int)
	for rows.Next() {
		var (
			typ string
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("failed to scan movement count: %w", err)
		}
		counts[domain.MovementType(typ)] = n
	}
	return counts, rows.Err()
}

func (r *InventoryRepo) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type lockedStock struct {
	materialID string
	onHand     decimal.Decimal
}

// lockStock takes row locks in id order so that concurrent transfers over
// the same pair cannot deadlock.
func lockStock(ctx context.Context, tx pgx.Tx, ids ...string) (map[string]lockedStock, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, material_id, on_hand::text FROM stock WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock stock: %w", err)
	}
	defer rows.Close()

	locked := make(map[string]lockedStock, len(ids))
	for rows.Next() {
		var id, materialID, onHand string
		if err := rows.Scan(&id, &materialID, &onHand); err != nil {
			return nil, fmt.Errorf("failed to scan stock lock: %w", err)
		}
		qty, err := decimal.NewFromString(onHand)
		if err != nil {
			return nil, fmt.Errorf("bad on_hand for %s: %w", id, err)
		}
		locked[id] = lockedStock{materialID: materialID, onHand: qty}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to lock stock: %w", err)
	}

	for _, id := range ids {
		if _, ok := locked[id]; !ok {
			return nil, fmt.Errorf("%w: stock %q", domain.ErrNotFound, id)
		}
	}
	return locked, nil
}

func commitMovement(ctx context.Context, tx pgx.Tx, mv domain.Movement) error {
	if _, err := tx.Exec(ctx,
		`UPDATE stock SET on_hand = $2::numeric, updated_at = $3 WHERE id = $1`,
		mv.StockID, mv.OnHandAfter.String(), mv.CreatedAt); err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO movements (id, stock_id, type, quantity, on_hand_before, on_hand_after, reversal_of, transfer_id, actor_id, note, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9, $10, $11)`,
		mv.ID, mv.StockID, string(mv.Type), mv.Quantity.String(), mv.OnHandBefore.String(), mv.OnHandAfter.String(),
		mv.ReversalOf, mv.TransferID, mv.ActorID, mv.Note, mv.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert movement: %w", err)
	}
	return nil
}

func scanStock(row pgx.Row) (domain.StockRecord, error) {
	var (
		rec                                        domain.StockRecord
		onHand, reserved, cost, minimum, reorderPt string
	)
	if err := row.Scan(&rec.ID, &rec.MaterialID, &rec.MaterialCode, &rec.MaterialName, &rec.Unit,
		&rec.LocationID, &rec.LocationName, &onHand, &reserved, &cost, &minimum, &reorderPt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("failed to scan stock: %w", err)
	}

	var err error
	if rec.OnHand, err = decimal.NewFromString(onHand); err != nil {
		return rec, err
	}
	if rec.Reserved, err = decimal.NewFromString(reserved); err != nil {
		return rec, err
	}
	if rec.UnitCost, err = decimal.NewFromString(cost); err != nil {
		return rec, err
	}
	if rec.MinimumStock, err = decimal.NewFromString(minimum); err != nil {
		return rec, err
	}
	if rec.ReorderPoint, err = decimal.NewFromString(reorderPt); err != nil {
		return rec, err
	}
	return rec, nil
}

func scanMovement(row pgx.Row) (domain.Movement, error) {
	var (
		mv                     domain.Movement
		typ                    string
		qty, before, after     string
		reversalOf, transferID *uuid.UUID
	)
	if err := row.Scan(&mv.ID, &mv.StockID, &typ, &qty, &before, &after,
		&reversalOf, &transferID, &mv.ActorID, &mv.Note, &mv.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mv, err
		}
		return mv, fmt.Errorf("failed to scan movement: %w", err)
	}

	mv.Type = domain.MovementType(typ)
	mv.ReversalOf = reversalOf
	mv.TransferID = transferID

	var err error
	if mv.Quantity, err = decimal.NewFromString(qty); err != nil {
		return mv, err
	}
	if mv.OnHandBefore, err = decimal.NewFromString(before); err != nil {
		return mv, err
	}
	if mv.OnHandAfter, err = decimal.NewFromString(after); err != nil {
		return mv, err
	}
	return mv, nil
}
