package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EarningsAggregate holds the running totals credited to a recipient.
// Created lazily on the first successful tip.
type EarningsAggregate struct {
	RecipientID        string    `json:"recipientId"`
	TotalTipsMinor     int64     `json:"-"`
	TotalEarningsMinor int64     `json:"-"`
	LastUpdated        time.Time `json:"lastUpdated"`
}

func (e *EarningsAggregate) TotalTips() decimal.Decimal {
	return MinorToMajor(e.TotalTipsMinor)
}

func (e *EarningsAggregate) TotalEarnings() decimal.Decimal {
	return MinorToMajor(e.TotalEarningsMinor)
}

// Credit adds amountMinor to both counters.
func (e *EarningsAggregate) Credit(amountMinor int64, at time.Time) {
	e.TotalTipsMinor += amountMinor
	e.TotalEarningsMinor += amountMinor
	e.LastUpdated = at
}

// AppliedPaymentIntent marks a payment intent whose amount has already been
// credited to earnings. Written in the same transaction as the credit.
type AppliedPaymentIntent struct {
	PaymentIntentID string    `json:"paymentIntentId"`
	RecipientID     string    `json:"recipientId"`
	AmountMinor     int64     `json:"amountMinor"`
	AppliedAt       time.Time `json:"appliedAt"`
}

// CompletionResult reports what a success reconciliation changed.
type CompletionResult struct {
	TipsUpdated      int
	EarningsCredited bool
}
