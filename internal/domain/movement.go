package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MovementType string

const (
	MovementReceipt    MovementType = "receipt"
	MovementIssue      MovementType = "issue"
	MovementTransfer   MovementType = "transfer"
	MovementAdjustment MovementType = "adjustment"
	MovementProduction MovementType = "production"
)

var movementTypes = []MovementType{
	MovementReceipt, MovementIssue, MovementTransfer, MovementAdjustment, MovementProduction,
}

func (t MovementType) Valid() bool {
	for _, mt := range movementTypes {
		if t == mt {
			return true
		}
	}
	return false
}

// ReversalWindow bounds how old a movement may be and still be reversed.
const ReversalWindow = 24 * time.Hour

// Movement is an append-only ledger entry. Quantity is the signed change
// applied to the record's on-hand quantity.
type Movement struct {
	ID           uuid.UUID       `json:"id"`
	StockID      string          `json:"stockId"`
	Type         MovementType    `json:"type"`
	Quantity     decimal.Decimal `json:"quantity"`
	OnHandBefore decimal.Decimal `json:"onHandBefore"`
	OnHandAfter  decimal.Decimal `json:"onHandAfter"`
	ReversalOf   *uuid.UUID      `json:"reversalOf,omitempty"`
	TransferID   *uuid.UUID      `json:"transferId,omitempty"`
	ActorID      string          `json:"actorId"`
	Note         string          `json:"note,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type MovementRequest struct {
	StockID string
	Type    MovementType
	// Quantity is a positive amount for receipt, issue and production. For
	// adjustment it is the signed correction.
	Quantity decimal.Decimal
	ActorID  string
	Note     string
	At       time.Time
}

type TransferRequest struct {
	FromStockID string
	ToStockID   string
	Quantity    decimal.Decimal
	ActorID     string
	Note        string
	At          time.Time
}

// TransferResult holds both legs of a committed transfer.
type TransferResult struct {
	TransferID uuid.UUID `json:"transferId"`
	Out        Movement  `json:"out"`
	In         Movement  `json:"in"`
}

type ReverseRequest struct {
	MovementID uuid.UUID
	ActorID    string
	Note       string
	At         time.Time
}

// QuantityScale is the number of fractional digits the ledger keeps.
const QuantityScale = 4

// maxQuantity is the first magnitude numeric(18,4) cannot hold.
var maxQuantity = decimal.New(1, 18-QuantityScale)

// CheckQuantity rejects amounts the ledger cannot store exactly.
func CheckQuantity(qty decimal.Decimal) error {
	if !qty.Equal(qty.Truncate(QuantityScale)) {
		return fmt.Errorf("%w: quantity %s has more than %d decimal places", ErrInvalidInput, qty, QuantityScale)
	}
	if qty.Abs().GreaterThanOrEqual(maxQuantity) {
		return fmt.Errorf("%w: quantity %s is out of range", ErrInvalidInput, qty)
	}
	return nil
}

// CheckTransferQuantity validates the amount moved by a transfer.
func CheckTransferQuantity(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return fmt.Errorf("%w: transfer quantity must be positive", ErrInvalidInput)
	}
	return CheckQuantity(qty)
}

// Delta returns the signed on-hand change a request of type t and quantity
// qty implies. Transfers are not single-record movements and are rejected.
func Delta(t MovementType, qty decimal.Decimal) (decimal.Decimal, error) {
	if t.Valid() && t != MovementTransfer {
		if err := CheckQuantity(qty); err != nil {
			return decimal.Zero, err
		}
	}
	switch t {
	case MovementReceipt:
		if !qty.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: receipt quantity must be positive", ErrInvalidInput)
		}
		return qty, nil
	case MovementIssue, MovementProduction:
		if !qty.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: %s quantity must be positive", ErrInvalidInput, t)
		}
		return qty.Neg(), nil
	case MovementAdjustment:
		if qty.IsZero() {
			return decimal.Zero, fmt.Errorf("%w: adjustment must not be zero", ErrInvalidInput)
		}
		return qty, nil
	case MovementTransfer:
		return decimal.Zero, fmt.Errorf("%w: transfers need a source and a destination", ErrInvalidInput)
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown movement type %q", ErrInvalidInput, t)
	}
}

// ApplyDelta computes the new on-hand quantity. It never goes below zero:
// a decrease larger than what is on hand fails with ErrInsufficientStock.
func ApplyDelta(onHand, delta decimal.Decimal) (decimal.Decimal, error) {
	after := onHand.Add(delta)
	if after.IsNegative() {
		return onHand, fmt.Errorf("%w: on hand %s, requested %s", ErrInsufficientStock, onHand, delta.Neg())
	}
	if after.GreaterThanOrEqual(maxQuantity) {
		return onHand, fmt.Errorf("%w: on hand would reach %s", ErrInvalidInput, after)
	}
	return after, nil
}

// CheckReversible validates that original may be compensated at time at.
// alreadyReversed reports whether a compensating movement exists.
func CheckReversible(original Movement, alreadyReversed bool, at time.Time) error {
	if original.ReversalOf != nil || original.TransferID != nil {
		return ErrNotReversible
	}
	if alreadyReversed {
		return ErrAlreadyReversed
	}
	if at.Sub(original.CreatedAt) >= ReversalWindow {
		return ErrTooOld
	}
	return nil
}

// NewMovement builds a ledger entry for a delta applied to onHand.
func NewMovement(stockID string, t MovementType, delta, before, after decimal.Decimal, actorID, note string, at time.Time) Movement {
	return Movement{
		ID:           uuid.New(),
		StockID:      stockID,
		Type:         t,
		Quantity:     delta,
		OnHandBefore: before,
		OnHandAfter:  after,
		ActorID:      actorID,
		Note:         note,
		CreatedAt:    at,
	}
}
