package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/plantpulse/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 200
)

var reorderAudience = []domain.GroupKey{
	domain.RoleGroup(domain.RoleSupervisor),
	domain.RoleGroup(domain.RoleAdmin),
}

// Inventory handles the inventory:* commands. Every committed mutation is
// announced to dashboards and followed by an eager refresh of all views.
type Inventory struct {
	store       domain.InventoryStore
	poller      *Poller
	broadcaster Broadcaster
	clock       clockwork.Clock
}

func NewInventory(store domain.InventoryStore, poller *Poller, broadcaster Broadcaster, clock clockwork.Clock) *Inventory {
	return &Inventory{store: store, poller: poller, broadcaster: broadcaster, clock: clock}
}

// Register binds every inventory command on r.
func (s *Inventory) Register(r *Router) error {
	handlers := map[domain.Command]Handler{
		domain.CmdInventorySummary:     s.viewHandler(ViewSummary),
		domain.CmdInventoryAlerts:      s.viewHandler(ViewAlerts),
		domain.CmdInventoryStats:       s.viewHandler(ViewStats),
		domain.CmdInventoryTransaction: s.recentTransactions,
		domain.CmdTransactionCreate:    s.createTransaction,
		domain.CmdTransferCreate:       s.createTransfer,
		domain.CmdTransactionReverse:   s.reverseTransaction,
		domain.CmdAlertAcknowledge:     s.acknowledgeAlert,
		domain.CmdReorder:              s.requestReorder,
	}
	for cmd, h := range handlers {
		if err := r.Register(cmd, h); err != nil {
			return err
		}
	}
	return nil
}

func (s *Inventory) viewHandler(v View) Handler {
	return func(ctx context.Context, _ domain.Session, _ json.RawMessage) (any, error) {
		payload, err := s.poller.Current(ctx, v)
		if err != nil {
			return nil, err
		}
		return Reply{Event: v.Event(), Data: payload}, nil
	}
}

type transactionsRequest struct {
	Limit int `json:"limit"`
}

type transactionsPayload struct {
	Movements []domain.Movement `json:"movements"`
	Limit     int               `json:"limit"`
}

func (s *Inventory) recentTransactions(ctx context.Context, _ domain.Session, payload json.RawMessage) (any, error) {
	req, err := decode[transactionsRequest](payload)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	switch {
	case limit <= 0:
		limit = defaultTransactionLimit
	case limit > maxTransactionLimit:
		limit = maxTransactionLimit
	}

	movements, err := s.store.RecentMovements(ctx, limit)
	if err != nil {
		return nil, storeError(err)
	}
	return Reply{Event: domain.EventInventoryTransactions, Data: transactionsPayload{Movements: movements, Limit: limit}}, nil
}

type createTransactionRequest struct {
	StockID  string              `json:"stockId"`
	Type     domain.MovementType `json:"type"`
	Quantity decimal.Decimal     `json:"quantity"`
	Note     string              `json:"note"`
}

func (s *Inventory) createTransaction(ctx context.Context, sess domain.Session, payload json.RawMessage) (any, error) {
	req, err := decode[createTransactionRequest](payload)
	if err != nil {
		return nil, err
	}
	if req.StockID == "" {
		return nil, fmt.Errorf("%w: stockId is required", domain.ErrInvalidInput)
	}

	mv, err := s.store.ApplyMovement(ctx, domain.MovementRequest{
		StockID:  req.StockID,
		Type:     req.Type,
		Quantity: req.Quantity,
		ActorID:  sess.Actor().ID,
		Note:     req.Note,
		At:       s.clock.Now(),
	})
	if err != nil {
		return nil, storeError(err)
	}

	slog.InfoContext(ctx, "Movement recorded", "movement_id", mv.ID, "stock_id", mv.StockID, "type", mv.Type, "quantity", mv.Quantity, "actor_id", mv.ActorID)
	s.announce(ctx, mv)
	return mv, nil
}

type createTransferRequest struct {
	FromStockID string          `json:"fromStockId"`
	ToStockID   string          `json:"toStockId"`
	Quantity    decimal.Decimal `json:"quantity"`
	Note        string          `json:"note"`
}

func (s *Inventory) createTransfer(ctx context.Context, sess domain.Session, payload json.RawMessage) (any, error) {
	req, err := decode[createTransferRequest](payload)
	if err != nil {
		return nil, err
	}
	if req.FromStockID == "" || req.ToStockID == "" {
		return nil, fmt.Errorf("%w: fromStockId and toStockId are required", domain.ErrInvalidInput)
	}

	res, err := s.store.Transfer(ctx, domain.TransferRequest{
		FromStockID: req.FromStockID,
		ToStockID:   req.ToStockID,
		Quantity:    req.Quantity,
		ActorID:     sess.Actor().ID,
		Note:        req.Note,
		At:          s.clock.Now(),
	})
	if err != nil {
		return nil, storeError(err)
	}

	slog.InfoContext(ctx, "Transfer recorded", "transfer_id", res.TransferID, "from", req.FromStockID, "to", req.ToStockID, "quantity", req.Quantity, "actor_id", sess.Actor().ID)
	s.announce(ctx, res.Out, res.In)
	return res, nil
}

type reverseRequest struct {
	MovementID uuid.UUID `json:"movementId"`
	Note       string    `json:"note"`
}

func (s *Inventory) reverseTransaction(ctx context.Context, sess domain.Session, payload json.RawMessage) (any, error) {
	req, err := decode[reverseRequest](payload)
	if err != nil {
		return nil, err
	}
	if req.MovementID == uuid.Nil {
		return nil, fmt.Errorf("%w: movementId is required", domain.ErrInvalidInput)
	}

	mv, err := s.store.Reverse(ctx, domain.ReverseRequest{
		MovementID: req.MovementID,
		ActorID:    sess.Actor().ID,
		Note:       req.Note,
		At:         s.clock.Now(),
	})
	if err != nil {
		return nil, storeError(err)
	}

	slog.InfoContext(ctx, "Movement reversed", "movement_id", mv.ID, "reversal_of", req.MovementID, "actor_id", mv.ActorID)
	s.announce(ctx, mv)
	return mv, nil
}

type stockRequest struct {
	StockID string `json:"stockId"`
}

type acknowledgePayload struct {
	StockID      string `json:"stockId"`
	Acknowledged bool   `json:"acknowledged"`
}

func (s *Inventory) acknowledgeAlert(ctx context.Context, sess domain.Session, payload json.RawMessage) (any, error) {
	req, err := decode[stockRequest](payload)
	if err != nil {
		return nil, err
	}
	if req.StockID == "" {
		return nil, fmt.Errorf("%w: stockId is required", domain.ErrInvalidInput)
	}

	if err := s.poller.Acknowledge(ctx, req.StockID); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Alert acknowledged", "stock_id", req.StockID, "actor_id", sess.Actor().ID)
	return acknowledgePayload{StockID: req.StockID, Acknowledged: true}, nil
}

type reorderRequest struct {
	StockID  string           `json:"stockId"`
	Quantity *decimal.Decimal `json:"quantity"`
	Note     string           `json:"note"`
}

func (s *Inventory) requestReorder(ctx context.Context, sess domain.Session, payload json.RawMessage) (any, error) {
	req, err := decode[reorderRequest](payload)
	if err != nil {
		return nil, err
	}
	if req.StockID == "" {
		return nil, fmt.Errorf("%w: stockId is required", domain.ErrInvalidInput)
	}

	rec, err := s.store.Stock(ctx, req.StockID)
	if err != nil {
		return nil, storeError(err)
	}

	qty := domain.SuggestedReorder(rec)
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: reorder quantity must be positive", domain.ErrInvalidInput)
	}
	if err := domain.CheckQuantity(qty); err != nil {
		return nil, err
	}

	order := domain.NewReorderRequest(rec, qty, sess.Actor().ID, req.Note, s.clock.Now())
	s.broadcaster.ToGroups(reorderAudience, domain.Envelope{Event: domain.EventReorderRequested, Data: order})
	slog.InfoContext(ctx, "Reorder requested", "stock_id", rec.ID, "quantity", qty, "actor_id", order.RequestedBy)
	return order, nil
}

func (s *Inventory) announce(ctx context.Context, movements ...domain.Movement) {
	for _, mv := range movements {
		s.broadcaster.ToGroup(dashboardGroup, domain.Envelope{Event: domain.EventTransactionNew, Data: mv})
	}
	// The mutation is committed; a failed refresh is picked up by the next tick.
	_ = s.poller.RefreshNow(ctx)
}

// storeError marks unexpected store failures as unavailability so callers
// get a stable code. Domain rejections pass through unchanged.
func storeError(err error) error {
	if domain.ErrorCode(err) == domain.CodeInternal {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return err
}
