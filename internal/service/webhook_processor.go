package service

import (
	"context"
	"errors"
	"time"

	"tipjar/internal/core/domain"
	"tipjar/internal/core/ports"
	"tipjar/internal/metrics"
	"tipjar/pkg/apperror"

	"github.com/rs/zerolog"
)

// AckPolicy decides how a verified delivery whose routine failed is answered.
type AckPolicy int

const (
	// AckAfterVerification acknowledges every verified delivery. Routine
	// errors are logged and counted but never reach the gateway.
	AckAfterVerification AckPolicy = iota
	// AckAfterReconciliation answers 500 when a routine fails so the gateway
	// redelivers. The ledger marker keeps redelivery safe.
	AckAfterReconciliation
)

const processedEventTTL = 72 * time.Hour

// Actions recorded in ReconcileResult.
const (
	actionTipsCompleted       = "tips_completed"
	actionTipsFailed          = "tips_failed"
	actionSubscriptionCreated = "subscription_created"
	actionSubscriptionUpdated = "subscription_updated"
	actionSubscriptionDeleted = "subscription_canceled"
)

type WebhookConfig struct {
	LedgerTimeout time.Duration
	AckPolicy     AckPolicy
}

// WebhookProcessorImpl implements ports.WebhookProcessor.
type WebhookProcessorImpl struct {
	gateway   ports.PaymentGateway
	ledger    ports.LedgerStore
	processed ports.ProcessedEventStore // nil when Redis is disabled
	cfg       WebhookConfig
	log       zerolog.Logger
	now       func() time.Time
}

func NewWebhookProcessor(
	gateway ports.PaymentGateway,
	ledger ports.LedgerStore,
	processed ports.ProcessedEventStore,
	cfg WebhookConfig,
	log zerolog.Logger,
) *WebhookProcessorImpl {
	return &WebhookProcessorImpl{
		gateway:   gateway,
		ledger:    ledger,
		processed: processed,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Process verifies the delivery, filters known duplicates and runs the
// reconciliation routine for its event type. The returned error is non-nil
// only when the delivery must not be acknowledged.
func (p *WebhookProcessorImpl) Process(ctx context.Context, payload []byte, signatureHeader string) (domain.WebhookOutcome, error) {
	evt, err := p.gateway.ConstructEvent(payload, signatureHeader)
	if err != nil {
		metrics.WebhookRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		p.log.Warn().Err(err).Msg("webhook rejected")
		return "", err
	}

	log := p.log.With().Str("event_id", evt.ID).Str("event_type", evt.Type).Logger()
	typeLabel := eventTypeLabel(evt.Type)

	if p.isProcessed(ctx, evt.ID, log) {
		metrics.WebhookEventsTotal.WithLabelValues(typeLabel, string(domain.OutcomeDuplicate)).Inc()
		log.Info().Msg("webhook event already processed")
		return domain.OutcomeDuplicate, nil
	}

	start := time.Now()
	res := p.dispatch(ctx, evt, log)
	metrics.ReconcileDuration.WithLabelValues(typeLabel).Observe(time.Since(start).Seconds())

	outcome := res.Outcome()
	metrics.WebhookEventsTotal.WithLabelValues(typeLabel, string(outcome)).Inc()
	if res.EarningsCredited {
		metrics.EarningsCreditedTotal.Inc()
	}

	switch outcome {
	case domain.OutcomeFailed:
		log.Error().Err(res.Err).Str("action", res.Action).Msg("webhook reconciliation failed")
		if p.cfg.AckPolicy == AckAfterReconciliation {
			return outcome, apperror.ErrLedger(res.Err)
		}
	case domain.OutcomeProcessed:
		log.Info().
			Str("action", res.Action).
			Int("tips_updated", res.TipsUpdated).
			Bool("earnings_credited", res.EarningsCredited).
			Msg("webhook event processed")
		p.markProcessed(ctx, evt.ID, log)
	default:
		log.Debug().Msg("webhook event ignored")
	}
	return outcome, nil
}

func (p *WebhookProcessorImpl) dispatch(ctx context.Context, evt *domain.WebhookEvent, log zerolog.Logger) domain.ReconcileResult {
	switch evt.Type {
	case domain.EventPaymentIntentSucceeded:
		return p.reconcileSuccess(ctx, evt)
	case domain.EventPaymentIntentPaymentFailed:
		return p.reconcileFailure(ctx, evt)
	case domain.EventSubscriptionCreated:
		return p.reconcileSubscription(ctx, evt, log, func(sub *domain.SubscriptionObject, now time.Time) (string, domain.ProfileUpdate) {
			return actionSubscriptionCreated, domain.ProfileUpdate{
				SubscriptionID:      &sub.ID,
				SubscriptionStatus:  &sub.Status,
				SubscriptionCreated: &now,
			}
		})
	case domain.EventSubscriptionUpdated:
		return p.reconcileSubscription(ctx, evt, log, func(sub *domain.SubscriptionObject, now time.Time) (string, domain.ProfileUpdate) {
			return actionSubscriptionUpdated, domain.ProfileUpdate{
				SubscriptionStatus:  &sub.Status,
				SubscriptionUpdated: &now,
			}
		})
	case domain.EventSubscriptionDeleted:
		return p.reconcileSubscription(ctx, evt, log, func(_ *domain.SubscriptionObject, now time.Time) (string, domain.ProfileUpdate) {
			status := domain.SubscriptionStatusCanceled
			return actionSubscriptionDeleted, domain.ProfileUpdate{
				SubscriptionStatus:   &status,
				SubscriptionCanceled: &now,
			}
		})
	default:
		return domain.ReconcileResult{}
	}
}

// reconcileSuccess completes the intent's tips and credits the recipient once.
func (p *WebhookProcessorImpl) reconcileSuccess(ctx context.Context, evt *domain.WebhookEvent) domain.ReconcileResult {
	pi, err := evt.PaymentIntent()
	if err != nil {
		return domain.ReconcileResult{Action: actionTipsCompleted, Err: err}
	}
	recipientID := pi.Metadata[domain.MetaRecipientID]
	if recipientID == "" {
		return domain.ReconcileResult{}
	}

	ctx, cancel := withTimeout(ctx, p.cfg.LedgerTimeout)
	defer cancel()

	res, err := p.ledger.CompleteTips(ctx, pi.ID, recipientID, pi.Amount)
	return domain.ReconcileResult{
		Action:           actionTipsCompleted,
		TipsUpdated:      res.TipsUpdated,
		EarningsCredited: res.EarningsCredited,
		Err:              err,
	}
}

// reconcileFailure marks the intent's pending tips failed. Earnings are never touched.
func (p *WebhookProcessorImpl) reconcileFailure(ctx context.Context, evt *domain.WebhookEvent) domain.ReconcileResult {
	pi, err := evt.PaymentIntent()
	if err != nil {
		return domain.ReconcileResult{Action: actionTipsFailed, Err: err}
	}
	if pi.Metadata[domain.MetaRecipientID] == "" {
		return domain.ReconcileResult{}
	}

	ctx, cancel := withTimeout(ctx, p.cfg.LedgerTimeout)
	defer cancel()

	n, err := p.ledger.FailTips(ctx, pi.ID)
	return domain.ReconcileResult{Action: actionTipsFailed, TipsUpdated: n, Err: err}
}

type subscriptionUpdate func(sub *domain.SubscriptionObject, now time.Time) (string, domain.ProfileUpdate)

// reconcileSubscription copies subscription state onto the profile named by
// metadata.user_id. Subscriptions without it, or for an unknown profile, are ignored.
func (p *WebhookProcessorImpl) reconcileSubscription(ctx context.Context, evt *domain.WebhookEvent, log zerolog.Logger, build subscriptionUpdate) domain.ReconcileResult {
	sub, err := evt.Subscription()
	if err != nil {
		action, _ := build(&domain.SubscriptionObject{}, p.now())
		return domain.ReconcileResult{Action: action, Err: err}
	}
	userID := sub.Metadata[domain.MetaUserID]
	if userID == "" {
		return domain.ReconcileResult{}
	}
	action, update := build(sub, p.now().UTC())

	ctx, cancel := withTimeout(ctx, p.cfg.LedgerTimeout)
	defer cancel()

	if err := p.ledger.UpdateProfile(ctx, userID, update); err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			log.Warn().Str("user_id", userID).Str("subscription_id", sub.ID).Msg("subscription event for unknown profile")
			return domain.ReconcileResult{}
		}
		return domain.ReconcileResult{Action: action, Err: err}
	}
	return domain.ReconcileResult{Action: action}
}

func (p *WebhookProcessorImpl) isProcessed(ctx context.Context, eventID string, log zerolog.Logger) bool {
	if p.processed == nil || eventID == "" {
		return false
	}
	seen, err := p.processed.IsProcessed(ctx, eventID)
	if err != nil {
		log.Warn().Err(err).Msg("processed-event lookup failed, reconciling anyway")
		return false
	}
	return seen
}

func (p *WebhookProcessorImpl) markProcessed(ctx context.Context, eventID string, log zerolog.Logger) {
	if p.processed == nil || eventID == "" {
		return
	}
	first, err := p.processed.MarkProcessed(ctx, eventID, processedEventTTL)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("failed to mark webhook event processed")
	case !first:
		// A concurrent delivery of the same event finished first; the ledger
		// marker kept the credit single.
		log.Debug().Msg("webhook event already marked by a concurrent delivery")
	}
}

func rejectReason(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Code == "WH_001" {
		return "invalid_signature"
	}
	return "malformed_payload"
}

// eventTypeLabel bounds the metric label set to the handled types.
func eventTypeLabel(t string) string {
	switch t {
	case domain.EventPaymentIntentSucceeded,
		domain.EventPaymentIntentPaymentFailed,
		domain.EventSubscriptionCreated,
		domain.EventSubscriptionUpdated,
		domain.EventSubscriptionDeleted:
		return t
	default:
		return "other"
	}
}
