package domain

import (
	"encoding/json"
	"fmt"
)

// Gateway event types handled by the webhook processor.
const (
	EventPaymentIntentSucceeded     = "payment_intent.succeeded"
	EventPaymentIntentPaymentFailed = "payment_intent.payment_failed"
	EventSubscriptionCreated        = "customer.subscription.created"
	EventSubscriptionUpdated        = "customer.subscription.updated"
	EventSubscriptionDeleted        = "customer.subscription.deleted"
)

// Metadata keys written on gateway objects.
const (
	MetaSenderID      = "sender_id"
	MetaRecipientID   = "recipient_id"
	MetaRecipientName = "recipient_name"
	MetaType          = "type"
	MetaPlatform      = "platform"
	MetaUserID        = "user_id"

	TipType          = "tip"
	SubscriptionType = "subscription"
)

// WebhookEvent is a verified gateway event. Object holds the raw data.object.
type WebhookEvent struct {
	ID     string
	Type   string
	Object json.RawMessage
}

// PaymentIntentObject is the part of a payment intent the ledger reads.
type PaymentIntentObject struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

// SubscriptionObject is the part of a subscription the ledger reads.
type SubscriptionObject struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

func (e *WebhookEvent) PaymentIntent() (*PaymentIntentObject, error) {
	var pi PaymentIntentObject
	if err := json.Unmarshal(e.Object, &pi); err != nil {
		return nil, fmt.Errorf("decoding payment intent: %w", err)
	}
	return &pi, nil
}

func (e *WebhookEvent) Subscription() (*SubscriptionObject, error) {
	var sub SubscriptionObject
	if err := json.Unmarshal(e.Object, &sub); err != nil {
		return nil, fmt.Errorf("decoding subscription: %w", err)
	}
	return &sub, nil
}

// WebhookOutcome summarises how a verified delivery was handled.
type WebhookOutcome string

const (
	OutcomeProcessed WebhookOutcome = "processed"
	OutcomeIgnored   WebhookOutcome = "ignored"
	OutcomeDuplicate WebhookOutcome = "duplicate"
	OutcomeFailed    WebhookOutcome = "failed"
)

// ReconcileResult is returned by every reconciliation routine.
type ReconcileResult struct {
	Action           string
	TipsUpdated      int
	EarningsCredited bool
	Err              error
}

// Outcome maps the result onto a delivery outcome.
func (r ReconcileResult) Outcome() WebhookOutcome {
	switch {
	case r.Err != nil:
		return OutcomeFailed
	case r.Action == "":
		return OutcomeIgnored
	default:
		return OutcomeProcessed
	}
}
