package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TipStatus represents the lifecycle state of a tip.
type TipStatus string

const (
	TipStatusPending   TipStatus = "pending"
	TipStatusFailed    TipStatus = "failed"
	TipStatusCompleted TipStatus = "completed"
)

// rank orders statuses for the tie-break between success and failure events:
// pending < failed < completed. Completed is sticky and wins over failed.
func (s TipStatus) rank() int {
	switch s {
	case TipStatusPending:
		return 1
	case TipStatusFailed:
		return 2
	case TipStatusCompleted:
		return 3
	default:
		return 0
	}
}

// CanTransition reports whether a tip in status s may move to next.
// Only strictly upward moves are allowed, so a completed tip never becomes
// failed and nothing returns to pending.
func (s TipStatus) CanTransition(next TipStatus) bool {
	return next.rank() > s.rank()
}

// ErrDuplicateTip is returned by stores when a tip for the same gateway
// payment intent is already recorded.
var ErrDuplicateTip = errors.New("tip already recorded for payment intent")

// TipRecord is one tip from a sender to a recipient, tracked through the
// lifecycle of its gateway payment intent.
type TipRecord struct {
	ID                string    `json:"id"`
	SenderID          string    `json:"senderId"`
	RecipientID       string    `json:"recipientId"`
	RecipientName     string    `json:"recipientName"`
	AmountMinor       int64     `json:"-"` // cents, as reported by the gateway
	Currency          string    `json:"currency"`
	Status            TipStatus `json:"status"`
	ExternalPaymentID string    `json:"externalPaymentId"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Amount returns the tip in major currency units.
func (t *TipRecord) Amount() decimal.Decimal {
	return MinorToMajor(t.AmountMinor)
}

// MinorToMajor converts an integer amount of minor units (cents) to major
// units without rounding.
func MinorToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
