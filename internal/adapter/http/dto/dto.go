package dto

import (
	"encoding/json"
	"time"

	"tipjar/internal/core/domain"

	"github.com/shopspring/decimal"
)

// CreatePaymentIntentRequest is the body of POST /payment-intents.
// Amount is in minor units (cents).
type CreatePaymentIntentRequest struct {
	Amount        int64  `json:"amount" binding:"required,gte=50"`
	Currency      string `json:"currency" binding:"omitempty,currency_code"`
	RecipientID   string `json:"recipientId" binding:"required,safe_id,max=128"`
	RecipientName string `json:"recipientName" binding:"max=200"`
}

type CreatePaymentIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

type CreateSubscriptionRequest struct {
	PriceID    string `json:"priceId" binding:"required,safe_id"`
	CustomerID string `json:"customerId" binding:"required,safe_id"`
}

type CreateSubscriptionResponse struct {
	SubscriptionID string `json:"subscriptionId"`
	Status         string `json:"status"`
}

type CreateCustomerRequest struct {
	Email string `json:"email" binding:"required,email,max=254"`
	Name  string `json:"name" binding:"max=200"`
}

type CustomerResponse struct {
	CustomerID string `json:"customerId"`
	Email      string `json:"email"`
	Name       string `json:"name"`
}

// CustomerQuery binds the customerId query parameter.
type CustomerQuery struct {
	CustomerID string `form:"customerId" binding:"required,safe_id"`
}

type SetupIntentRequest struct {
	CustomerID string `json:"customerId" binding:"required,safe_id"`
}

type SetupIntentResponse struct {
	ClientSecret  string `json:"clientSecret"`
	SetupIntentID string `json:"setupIntentId"`
}

type PaymentMethodsResponse struct {
	PaymentMethods []json.RawMessage `json:"paymentMethods"`
}

// EarningsResponse is the body of GET /earnings. Amounts are major units.
type EarningsResponse struct {
	Earnings   EarningsView  `json:"earnings"`
	RecentTips []TipResponse `json:"recentTips"`
}

// EarningsView renders as {} when the recipient has no aggregate yet.
type EarningsView struct {
	RecipientID   string           `json:"recipientId,omitempty"`
	TotalTips     *decimal.Decimal `json:"totalTips,omitempty"`
	TotalEarnings *decimal.Decimal `json:"totalEarnings,omitempty"`
	LastUpdated   *time.Time       `json:"lastUpdated,omitempty"`
}

type TipResponse struct {
	ID                string          `json:"id"`
	SenderID          string          `json:"senderId"`
	RecipientID       string          `json:"recipientId"`
	RecipientName     string          `json:"recipientName"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Status            string          `json:"status"`
	ExternalPaymentID string          `json:"externalPaymentId"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// NewEarningsResponse renders an aggregate (nil means no earnings yet) and recent tips.
func NewEarningsResponse(agg *domain.EarningsAggregate, tips []domain.TipRecord) EarningsResponse {
	resp := EarningsResponse{RecentTips: make([]TipResponse, 0, len(tips))}
	if agg != nil {
		totalTips, totalEarnings, last := agg.TotalTips(), agg.TotalEarnings(), agg.LastUpdated
		resp.Earnings = EarningsView{
			RecipientID:   agg.RecipientID,
			TotalTips:     &totalTips,
			TotalEarnings: &totalEarnings,
			LastUpdated:   &last,
		}
	}
	for i := range tips {
		resp.RecentTips = append(resp.RecentTips, NewTipResponse(&tips[i]))
	}
	return resp
}

func NewTipResponse(t *domain.TipRecord) TipResponse {
	return TipResponse{
		ID:                t.ID,
		SenderID:          t.SenderID,
		RecipientID:       t.RecipientID,
		RecipientName:     t.RecipientName,
		Amount:            t.Amount(),
		Currency:          t.Currency,
		Status:            string(t.Status),
		ExternalPaymentID: t.ExternalPaymentID,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}
