package domain

import (
	"cmp"

	"github.com/shopspring/decimal"
)

// Severity of a stock level. Totally ordered: normal < low < critical < out_of_stock.
type Severity string

const (
	SeverityNormal     Severity = "normal"
	SeverityLow        Severity = "low"
	SeverityCritical   Severity = "critical"
	SeverityOutOfStock Severity = "out_of_stock"
)

func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityCritical:
		return 2
	case SeverityOutOfStock:
		return 3
	default:
		return 0
	}
}

// Compare orders severities by rank.
func (s Severity) Compare(other Severity) int {
	return cmp.Compare(s.Rank(), other.Rank())
}

// Classify maps an available quantity to a severity. Rules are evaluated
// most severe first so thresholds that overlap resolve to the worse tier.
func Classify(available, minimum, reorderPoint decimal.Decimal) Severity {
	switch {
	case available.LessThanOrEqual(decimal.Zero):
		return SeverityOutOfStock
	case available.LessThanOrEqual(minimum):
		return SeverityCritical
	case available.LessThanOrEqual(reorderPoint):
		return SeverityLow
	default:
		return SeverityNormal
	}
}
