// Package stripe adapts stripe-go to ports.PaymentGateway.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tipjar/internal/core/domain"
	"tipjar/internal/metrics"
	"tipjar/pkg/apperror"

	"github.com/rs/zerolog"
	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Gateway implements ports.PaymentGateway. One instance lives for the
// whole process and is shared by handlers and the webhook processor.
type Gateway struct {
	api           *client.API
	webhookSecret string
	log           zerolog.Logger
}

// New creates a gateway using Stripe's default backends with an HTTP client
// bounded by timeout.
func New(secretKey, webhookSecret string, timeout time.Duration, log zerolog.Logger) *Gateway {
	return NewWithBackends(secretKey, webhookSecret, stripego.NewBackends(&http.Client{Timeout: timeout}), log)
}

// NewWithBackends allows pointing the SDK at another backend (tests, stripe-mock).
func NewWithBackends(secretKey, webhookSecret string, backends *stripego.Backends, log zerolog.Logger) *Gateway {
	return &Gateway{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
		log:           log,
	}
}

func params(ctx context.Context, metadata map[string]string) stripego.Params {
	return stripego.Params{Context: ctx, Metadata: metadata}
}

func (g *Gateway) CreatePaymentIntent(ctx context.Context, p domain.PaymentIntentParams) (*domain.PaymentIntent, error) {
	in := &stripego.PaymentIntentParams{
		Params:   params(ctx, p.Metadata),
		Amount:   stripego.Int64(p.AmountMinor),
		Currency: stripego.String(p.Currency),
		AutomaticPaymentMethods: &stripego.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripego.Bool(true),
		},
	}
	if p.IdempotencyKey != "" {
		in.SetIdempotencyKey(p.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(in)
	if err != nil {
		return nil, g.mapError("create_payment_intent", err)
	}
	return &domain.PaymentIntent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}

func (g *Gateway) CreateSubscription(ctx context.Context, p domain.SubscriptionParams) (*domain.Subscription, error) {
	sub, err := g.api.Subscriptions.New(&stripego.SubscriptionParams{
		Params:   params(ctx, p.Metadata),
		Customer: stripego.String(p.CustomerID),
		Items: []*stripego.SubscriptionItemsParams{
			{Price: stripego.String(p.PriceID)},
		},
	})
	if err != nil {
		return nil, g.mapError("create_subscription", err)
	}
	return &domain.Subscription{ID: sub.ID, Status: string(sub.Status)}, nil
}

func (g *Gateway) CreateCustomer(ctx context.Context, p domain.CustomerParams) (*domain.Customer, error) {
	cus, err := g.api.Customers.New(&stripego.CustomerParams{
		Params: params(ctx, p.Metadata),
		Email:  stripego.String(p.Email),
		Name:   stripego.String(p.Name),
	})
	if err != nil {
		return nil, g.mapError("create_customer", err)
	}
	return &domain.Customer{ID: cus.ID, Email: cus.Email, Name: cus.Name}, nil
}

// ListPaymentMethods walks every page of the customer's card payment methods.
func (g *Gateway) ListPaymentMethods(ctx context.Context, customerID string) ([]json.RawMessage, error) {
	lp := &stripego.PaymentMethodListParams{
		Customer: stripego.String(customerID),
		Type:     stripego.String(string(stripego.PaymentMethodTypeCard)),
	}
	lp.Context = ctx

	methods := []json.RawMessage{}
	it := g.api.PaymentMethods.List(lp)
	for it.Next() {
		raw, err := json.Marshal(it.PaymentMethod())
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("encode payment method: %w", err))
		}
		methods = append(methods, raw)
	}
	if err := it.Err(); err != nil {
		return nil, g.mapError("list_payment_methods", err)
	}
	return methods, nil
}

func (g *Gateway) CreateSetupIntent(ctx context.Context, p domain.SetupIntentParams) (*domain.SetupIntent, error) {
	si, err := g.api.SetupIntents.New(&stripego.SetupIntentParams{
		Params:   params(ctx, p.Metadata),
		Customer: stripego.String(p.CustomerID),
	})
	if err != nil {
		return nil, g.mapError("create_setup_intent", err)
	}
	return &domain.SetupIntent{ID: si.ID, ClientSecret: si.ClientSecret}, nil
}

// ConstructEvent checks the Stripe-Signature header (HMAC-SHA256 and the
// default 300s tolerance) before parsing. API version mismatches are
// tolerated; only the fields the ledger reads are decoded.
func (g *Gateway) ConstructEvent(payload []byte, signatureHeader string) (*domain.WebhookEvent, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrNotSigned),
			errors.Is(err, webhook.ErrNoValidSignature),
			errors.Is(err, webhook.ErrInvalidHeader),
			errors.Is(err, webhook.ErrTooOld):
			return nil, apperror.ErrInvalidSignature(err)
		default:
			return nil, apperror.ErrMalformedPayload(err)
		}
	}
	if evt.Type == "" || evt.Data == nil {
		return nil, apperror.ErrMalformedPayload(errors.New("event has no type or data"))
	}

	return &domain.WebhookEvent{
		ID:     evt.ID,
		Type:   string(evt.Type),
		Object: evt.Data.Raw,
	}, nil
}

// mapError turns SDK errors into GW_001 (rejected, Stripe's message is
// user-facing) or GW_002 (network, rate limit or Stripe side failure).
func (g *Gateway) mapError(op string, err error) error {
	var se *stripego.Error
	if errors.As(err, &se) && se.HTTPStatusCode < http.StatusInternalServerError &&
		se.HTTPStatusCode != http.StatusTooManyRequests && se.Type != stripego.ErrorTypeAPI && se.HTTPStatusCode != 0 {
		metrics.GatewayErrorsTotal.WithLabelValues(op, "GW_001").Inc()
		g.log.Warn().
			Str("operation", op).
			Str("stripe_type", string(se.Type)).
			Str("stripe_code", string(se.Code)).
			Int("http_status", se.HTTPStatusCode).
			Msg("stripe rejected request")
		return apperror.ErrGateway(se.Msg, err)
	}

	metrics.GatewayErrorsTotal.WithLabelValues(op, "GW_002").Inc()
	g.log.Error().Err(err).Str("operation", op).Msg("stripe unavailable")
	return apperror.ErrGatewayUnavailable(err)
}
