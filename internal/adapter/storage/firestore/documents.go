package firestore

import (
	"math"
	"time"

	"tipjar/internal/core/domain"
)

// tipDoc mirrors a document of the tips collection. amount is kept in major
// units for existing readers; amountMinor is authoritative.
type tipDoc struct {
	SenderID              string    `firestore:"senderId"`
	RecipientID           string    `firestore:"recipientId"`
	RecipientName         string    `firestore:"recipientName"`
	Amount                float64   `firestore:"amount"`
	AmountMinor           int64     `firestore:"amountMinor"`
	Currency              string    `firestore:"currency"`
	Status                string    `firestore:"status"`
	StripePaymentIntentID string    `firestore:"stripePaymentIntentId"`
	CreatedAt             time.Time `firestore:"createdAt"`
	UpdatedAt             time.Time `firestore:"updatedAt"`
}

func newTipDoc(t *domain.TipRecord) tipDoc {
	return tipDoc{
		SenderID:              t.SenderID,
		RecipientID:           t.RecipientID,
		RecipientName:         t.RecipientName,
		Amount:                t.Amount().InexactFloat64(),
		AmountMinor:           t.AmountMinor,
		Currency:              t.Currency,
		Status:                string(t.Status),
		StripePaymentIntentID: t.ExternalPaymentID,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
	}
}

func (d tipDoc) toDomain(id string) domain.TipRecord {
	minor := d.AmountMinor
	if minor == 0 && d.Amount != 0 {
		// written before amountMinor existed
		minor = int64(math.Round(d.Amount * 100))
	}
	return domain.TipRecord{
		ID:                id,
		SenderID:          d.SenderID,
		RecipientID:       d.RecipientID,
		RecipientName:     d.RecipientName,
		AmountMinor:       minor,
		Currency:          d.Currency,
		Status:            domain.TipStatus(d.Status),
		ExternalPaymentID: d.StripePaymentIntentID,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

type earningsDoc struct {
	TotalTips          float64   `firestore:"totalTips"`
	TotalEarnings      float64   `firestore:"totalEarnings"`
	TotalTipsMinor     int64     `firestore:"totalTipsMinor"`
	TotalEarningsMinor int64     `firestore:"totalEarningsMinor"`
	LastUpdated        time.Time `firestore:"lastUpdated"`
}

func newEarningsDoc(e *domain.EarningsAggregate) earningsDoc {
	return earningsDoc{
		TotalTips:          e.TotalTips().InexactFloat64(),
		TotalEarnings:      e.TotalEarnings().InexactFloat64(),
		TotalTipsMinor:     e.TotalTipsMinor,
		TotalEarningsMinor: e.TotalEarningsMinor,
		LastUpdated:        e.LastUpdated,
	}
}

func (d earningsDoc) toDomain(recipientID string) *domain.EarningsAggregate {
	e := &domain.EarningsAggregate{
		RecipientID:        recipientID,
		TotalTipsMinor:     d.TotalTipsMinor,
		TotalEarningsMinor: d.TotalEarningsMinor,
		LastUpdated:        d.LastUpdated,
	}
	if e.TotalTipsMinor == 0 && d.TotalTips != 0 {
		e.TotalTipsMinor = int64(math.Round(d.TotalTips * 100))
	}
	if e.TotalEarningsMinor == 0 && d.TotalEarnings != 0 {
		e.TotalEarningsMinor = int64(math.Round(d.TotalEarnings * 100))
	}
	return e
}

type userDoc struct {
	StripeCustomerID     string     `firestore:"stripeCustomerId"`
	SubscriptionID       string     `firestore:"subscriptionId"`
	SubscriptionStatus   string     `firestore:"subscriptionStatus"`
	SubscriptionCreated  *time.Time `firestore:"subscriptionCreated"`
	SubscriptionUpdated  *time.Time `firestore:"subscriptionUpdated"`
	SubscriptionCanceled *time.Time `firestore:"subscriptionCanceled"`
	UpdatedAt            time.Time  `firestore:"updatedAt"`
}

func (d userDoc) toDomain(userID string) *domain.UserProfile {
	return &domain.UserProfile{
		UserID:               userID,
		StripeCustomerID:     d.StripeCustomerID,
		SubscriptionID:       d.SubscriptionID,
		SubscriptionStatus:   d.SubscriptionStatus,
		SubscriptionCreated:  d.SubscriptionCreated,
		SubscriptionUpdated:  d.SubscriptionUpdated,
		SubscriptionCanceled: d.SubscriptionCanceled,
		UpdatedAt:            d.UpdatedAt,
	}
}

type appliedDoc struct {
	RecipientID string    `firestore:"recipientId"`
	AmountMinor int64     `firestore:"amountMinor"`
	AppliedAt   time.Time `firestore:"appliedAt"`
}
