package memstore

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/plantpulse/internal/domain"
	"github.com/shopspring/decimal"
)

// Inventory is an InventoryStore held in process memory. A single mutex
// covers records and ledger, so every movement and both legs of a transfer
// commit together.
type Inventory struct {
	mu        sync.RWMutex
	records   map[string]domain.StockRecord
	ledger    []domain.Movement
	reversals map[uuid.UUID]uuid.UUID
}

var _ domain.InventoryStore = (*Inventory)(nil)

func NewInventory(records ...domain.StockRecord) *Inventory {
	inv := &Inventory{
		records:   make(map[string]domain.StockRecord, len(records)),
		reversals: make(map[uuid.UUID]uuid.UUID),
	}
	for _, r := range records {
		inv.records[r.ID] = r
	}
	return inv
}

func (s *Inventory) Snapshot(_ context.Context) ([]domain.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Collect(maps.Values(s.records))
	slices.SortFunc(out, func(a, b domain.StockRecord) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Inventory) Stock(_ context.Context, stockID string) (domain.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[stockID]
	if !ok {
		return domain.StockRecord{}, fmt.Errorf("%w: stock %q", domain.ErrNotFound, stockID)
	}
	return rec, nil
}

func (s *Inventory) ApplyMovement(_ context.Context, req domain.MovementRequest) (domain.Movement, error) {
	delta, err := domain.Delta(req.Type, req.Quantity)
	if err != nil {
		return domain.Movement{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[req.StockID]
	if !ok {
		return domain.Movement{}, fmt.Errorf("%w: stock %q", domain.ErrNotFound, req.StockID)
	}

	after, err := domain.ApplyDelta(rec.OnHand, delta)
	if err != nil {
		return domain.Movement{}, err
	}

	mv := domain.NewMovement(rec.ID, req.Type, delta, rec.OnHand, after, req.ActorID, req.Note, req.At)
	s.commit(rec, after, req.At, mv)
	return mv, nil
}

func (s *Inventory) Transfer(_ context.Context, req domain.TransferRequest) (domain.TransferResult, error) {
	if err := domain.CheckTransferQuantity(req.Quantity); err != nil {
		return domain.TransferResult{}, err
	}
	if req.FromStockID == req.ToStockID {
		return domain.TransferResult{}, fmt.Errorf("%w: source and destination are the same record", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.records[req.FromStockID]
	if !ok {
		return domain.TransferResult{}, fmt.Errorf("%w: stock %q", domain.ErrNotFound, req.FromStockID)
	}
	to, ok := s.records[req.ToStockID]
	if !ok {
		return domain.TransferResult{}, fmt.Errorf("%w: stock %q", domain.ErrNotFound, req.ToStockID)
	}
	if from.MaterialID != to.MaterialID {
		return domain.TransferResult{}, fmt.Errorf("%w: transfer between different materials", domain.ErrInvalidInput)
	}

	fromAfter, err := domain.ApplyDelta(from.OnHand, req.Quantity.Neg())
	if err != nil {
		return domain.TransferResult{}, err
	}
	toAfter, err := domain.ApplyDelta(to.OnHand, req.Quantity)
	if err != nil {
		return domain.TransferResult{}, err
	}

	transferID := uuid.New()
	out := domain.NewMovement(from.ID, domain.MovementTransfer, req.Quantity.Neg(), from.OnHand, fromAfter, req.ActorID, req.Note, req.At)
	out.TransferID = &transferID
	in := domain.NewMovement(to.ID, domain.MovementTransfer, req.Quantity, to.OnHand, toAfter, req.ActorID, req.Note, req.At)
	in.TransferID = &transferID

	s.commit(from, fromAfter, req.At, out)
	s.commit(to, toAfter, req.At, in)
	return domain.TransferResult{TransferID: transferID, Out: out, In: in}, nil
}

func (s *Inventory) Reverse(_ context.Context, req domain.ReverseRequest) (domain.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.ledger, func(m domain.Movement) bool { return m.ID == req.MovementID })
	if idx < 0 {
		return domain.Movement{}, fmt.Errorf("%w: movement %s", domain.ErrNotFound, req.MovementID)
	}
	original := s.ledger[idx]

	_, reversed := s.reversals[original.ID]
	if err := domain.CheckReversible(original, reversed, req.At); err != nil {
		return domain.Movement{}, err
	}

	rec, ok := s.records[original.StockID]
	if !ok {
		return domain.Movement{}, fmt.Errorf("%w: stock %q", domain.ErrNotFound, original.StockID)
	}

	delta := original.Quantity.Neg()
	after, err := domain.ApplyDelta(rec.OnHand, delta)
	if err != nil {
		return domain.Movement{}, err
	}

	mv := domain.NewMovement(rec.ID, original.Type, delta, rec.OnHand, after, req.ActorID, req.Note, req.At)
	mv.ReversalOf = &original.ID
	s.commit(rec, after, req.At, mv)
	s.reversals[original.ID] = mv.ID
	return mv, nil
}

// RecentMovements returns the newest movements first.
func (s *Inventory) RecentMovements(_ context.Context, limit int) ([]domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := max(0, min(limit, len(s.ledger)))
	out := make([]domain.Movement, 0, n)
	for i := len(s.ledger) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.ledger[i])
	}
	return out, nil
}

func (s *Inventory) MovementCounts(_ context.Context, since time.Time) (map[domain.MovementType]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.MovementType]int)
	for _, m := range s.ledger {
		if !m.CreatedAt.Before(since) {
			counts[m.Type]++
		}
	}
	return counts, nil
}

// must hold s.mu
func (s *Inventory) commit(rec domain.StockRecord, onHand decimal.Decimal, at time.Time, mv domain.Movement) {
	rec.OnHand = onHand
	rec.UpdatedAt = at
	s.records[rec.ID] = rec
	s.ledger = append(s.ledger, mv)
}
