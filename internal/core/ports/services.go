package ports

import (
	"context"
	"encoding/json"
	"time"

	"tipjar/internal/core/domain"
)

//go:generate mockgen -destination=mocks/mock_services.go -package=mocks tipjar/internal/core/ports PaymentGateway,TokenService,PaymentService,EarningsService,WebhookProcessor,AuditService

// PaymentGateway is the payment processor client. Every call is a thin
// pass-through; errors are *apperror.AppError (GW_001, GW_002, WH_001, WH_002).
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, params domain.PaymentIntentParams) (*domain.PaymentIntent, error)
	CreateSubscription(ctx context.Context, params domain.SubscriptionParams) (*domain.Subscription, error)
	CreateCustomer(ctx context.Context, params domain.CustomerParams) (*domain.Customer, error)
	// ListPaymentMethods returns the customer's card payment methods as the
	// gateway serialised them.
	ListPaymentMethods(ctx context.Context, customerID string) ([]json.RawMessage, error)
	CreateSetupIntent(ctx context.Context, params domain.SetupIntentParams) (*domain.SetupIntent, error)
	// ConstructEvent verifies the signature header against the webhook
	// secret and parses the payload.
	ConstructEvent(payload []byte, signatureHeader string) (*domain.WebhookEvent, error)
}

// TokenService verifies bearer tokens.
type TokenService interface {
	// Verify returns the subject user id of a valid token.
	Verify(ctx context.Context, token string) (string, error)
	Generate(userID string) (string, time.Time, error)
}

// --- Service Ports (Business Logic) ---

// PaymentService implements the authenticated gateway operations.
type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, req CreatePaymentIntentRequest) (*domain.PaymentIntent, error)
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*domain.Subscription, error)
	CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*domain.Customer, error)
	ListPaymentMethods(ctx context.Context, userID, customerID string) ([]json.RawMessage, error)
	CreateSetupIntent(ctx context.Context, userID, customerID string) (*domain.SetupIntent, error)
}

// CreatePaymentIntentRequest holds validated input for a tip.
type CreatePaymentIntentRequest struct {
	SenderID       string
	RecipientID    string
	RecipientName  string
	AmountMinor    int64
	Currency       string
	IdempotencyKey string
}

type CreateSubscriptionRequest struct {
	UserID     string
	PriceID    string
	CustomerID string
}

type CreateCustomerRequest struct {
	UserID string
	Email  string
	Name   string
}

// EarningsService reads a recipient's earnings.
type EarningsService interface {
	GetUserEarnings(ctx context.Context, userID string) (*UserEarnings, error)
}

// UserEarnings is the aggregate (nil when absent) and the most recent tips.
type UserEarnings struct {
	Earnings   *domain.EarningsAggregate
	RecentTips []domain.TipRecord
}

// WebhookProcessor verifies and reconciles gateway events.
type WebhookProcessor interface {
	// Process returns an error only when the delivery must not be
	// acknowledged (invalid signature or malformed payload).
	Process(ctx context.Context, payload []byte, signatureHeader string) (domain.WebhookOutcome, error)
}

// AuditService records audited actions.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
