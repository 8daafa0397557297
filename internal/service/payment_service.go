package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"tipjar/internal/core/domain"
	"tipjar/internal/core/ports"
	"tipjar/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	idempotencyTTL = 24 * time.Hour

	// MinTipAmount is the smallest charge Stripe accepts in USD, in cents.
	MinTipAmount        = 50
	DefaultCurrency     = "usd"
	DefaultCustomerName = "Anonymous"
)

var currencyPattern = regexp.MustCompile(`^[a-z]{3}$`)

// PaymentConfig holds the settings of PaymentServiceImpl.
type PaymentConfig struct {
	Platform      string        // written to the platform metadata key
	LedgerTimeout time.Duration // per ledger call
}

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	gateway    ports.PaymentGateway
	ledger     ports.LedgerStore
	idempCache ports.IdempotencyCache
	cfg        PaymentConfig
	log        zerolog.Logger
	now        func() time.Time
}

// NewPaymentService creates a new PaymentServiceImpl. idempCache may be nil
// when Redis is disabled; retries are then answered by Stripe's own
// idempotency and the ledger's one-tip-per-intent rule.
func NewPaymentService(
	gateway ports.PaymentGateway,
	ledger ports.LedgerStore,
	idempCache ports.IdempotencyCache,
	cfg PaymentConfig,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		gateway:    gateway,
		ledger:     ledger,
		idempCache: idempCache,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// CreatePaymentIntent creates the gateway intent for a tip, then records the
// pending tip. A ledger failure after the gateway call leaves the intent in
// place; the webhook will find no tip to complete.
func (s *PaymentServiceImpl) CreatePaymentIntent(ctx context.Context, req ports.CreatePaymentIntentRequest) (*domain.PaymentIntent, error) {
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	switch {
	case req.AmountMinor < MinTipAmount:
		return nil, apperror.Validation(fmt.Sprintf("amount must be at least %d", MinTipAmount))
	case !currencyPattern.MatchString(currency):
		return nil, apperror.Validation("currency must be a 3-letter ISO code")
	case req.RecipientID == "":
		return nil, apperror.Validation("recipientId is required")
	case req.RecipientID == req.SenderID:
		return nil, apperror.Validation("cannot tip yourself")
	}

	// Stripe keys are account wide, so the sender is part of the key.
	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildIdempotencyKey(req.SenderID, req.IdempotencyKey)
	}
	if idempKey != "" && s.idempCache != nil {
		cached, err := s.idempCache.Get(ctx, idempKey)
		if err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, calling gateway")
		}
		if cached != nil {
			var pi domain.PaymentIntent
			if err := json.Unmarshal(cached, &pi); err == nil {
				return &pi, nil
			}
			s.log.Warn().Str("key", idempKey).Msg("discarding unreadable cached payment intent")
		}
	}

	pi, err := s.gateway.CreatePaymentIntent(ctx, domain.PaymentIntentParams{
		AmountMinor: req.AmountMinor,
		Currency:    currency,
		Metadata: map[string]string{
			domain.MetaSenderID:      req.SenderID,
			domain.MetaRecipientID:   req.RecipientID,
			domain.MetaRecipientName: req.RecipientName,
			domain.MetaType:          domain.TipType,
			domain.MetaPlatform:      s.cfg.Platform,
		},
		IdempotencyKey: idempKey,
	})
	if err != nil {
		return nil, err
	}

	tip := &domain.TipRecord{
		SenderID:          req.SenderID,
		RecipientID:       req.RecipientID,
		RecipientName:     req.RecipientName,
		AmountMinor:       req.AmountMinor,
		Currency:          currency,
		Status:            domain.TipStatusPending,
		ExternalPaymentID: pi.ID,
	}
	lctx, cancel := withTimeout(ctx, s.cfg.LedgerTimeout)
	defer cancel()
	err = s.ledger.CreateTip(lctx, tip)
	switch {
	case errors.Is(err, domain.ErrDuplicateTip):
		// Stripe replayed an intent we already recorded.
		s.log.Info().Str("payment_intent_id", pi.ID).Str("sender_id", req.SenderID).
			Msg("payment intent replayed, tip already recorded")
		s.cachePaymentIntent(ctx, idempKey, pi)
		return pi, nil
	case err != nil:
		s.log.Error().Err(err).
			Str("payment_intent_id", pi.ID).
			Str("sender_id", req.SenderID).
			Msg("payment intent created but tip not recorded")
		return nil, apperror.ErrLedger(err)
	}

	s.cachePaymentIntent(ctx, idempKey, pi)

	s.log.Info().
		Str("payment_intent_id", pi.ID).
		Str("tip_id", tip.ID).
		Str("sender_id", req.SenderID).
		Str("recipient_id", req.RecipientID).
		Int64("amount", req.AmountMinor).
		Msg("tip payment intent created")

	return pi, nil
}

func (s *PaymentServiceImpl) cachePaymentIntent(ctx context.Context, idempKey string, pi *domain.PaymentIntent) {
	if idempKey == "" || s.idempCache == nil {
		return
	}
	raw, err := json.Marshal(pi)
	if err != nil {
		return
	}
	if err := s.idempCache.Set(ctx, idempKey, raw, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache payment intent in redis")
	}
}

func (s *PaymentServiceImpl) CreateSubscription(ctx context.Context, req ports.CreateSubscriptionRequest) (*domain.Subscription, error) {
	if req.PriceID == "" || req.CustomerID == "" {
		return nil, apperror.Validation("priceId and customerId are required")
	}
	if _, err := s.requireProfile(ctx, req.UserID, req.CustomerID); err != nil {
		return nil, err
	}

	meta := s.userMetadata(req.UserID)
	meta[domain.MetaType] = domain.SubscriptionType
	sub, err := s.gateway.CreateSubscription(ctx, domain.SubscriptionParams{
		CustomerID: req.CustomerID,
		PriceID:    req.PriceID,
		Metadata:   meta,
	})
	if err != nil {
		return nil, err
	}

	created := s.now().UTC()
	if err := s.updateProfile(ctx, req.UserID, domain.ProfileUpdate{
		SubscriptionID:      &sub.ID,
		SubscriptionStatus:  &sub.Status,
		SubscriptionCreated: &created,
	}); err != nil {
		s.log.Error().Err(err).Str("subscription_id", sub.ID).Str("user_id", req.UserID).
			Msg("subscription created but profile not updated")
		return nil, err
	}

	s.log.Info().Str("subscription_id", sub.ID).Str("user_id", req.UserID).Str("status", sub.Status).
		Msg("subscription created")
	return sub, nil
}

func (s *PaymentServiceImpl) CreateCustomer(ctx context.Context, req ports.CreateCustomerRequest) (*domain.Customer, error) {
	if req.Email == "" {
		return nil, apperror.Validation("email is required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = DefaultCustomerName
	}
	if _, err := s.requireProfile(ctx, req.UserID, ""); err != nil {
		return nil, err
	}

	cus, err := s.gateway.CreateCustomer(ctx, domain.CustomerParams{
		Email:    req.Email,
		Name:     name,
		Metadata: s.userMetadata(req.UserID),
	})
	if err != nil {
		return nil, err
	}

	if err := s.updateProfile(ctx, req.UserID, domain.ProfileUpdate{StripeCustomerID: &cus.ID}); err != nil {
		s.log.Error().Err(err).Str("customer_id", cus.ID).Str("user_id", req.UserID).
			Msg("customer created but profile not updated")
		return nil, err
	}

	s.log.Info().Str("customer_id", cus.ID).Str("user_id", req.UserID).Msg("customer created")
	return cus, nil
}

func (s *PaymentServiceImpl) ListPaymentMethods(ctx context.Context, userID, customerID string) ([]json.RawMessage, error) {
	if customerID == "" {
		return nil, apperror.Validation("customerId is required")
	}
	if err := s.checkCustomerOwnership(ctx, userID, customerID); err != nil {
		return nil, err
	}
	return s.gateway.ListPaymentMethods(ctx, customerID)
}

func (s *PaymentServiceImpl) CreateSetupIntent(ctx context.Context, userID, customerID string) (*domain.SetupIntent, error) {
	if customerID == "" {
		return nil, apperror.Validation("customerId is required")
	}
	if err := s.checkCustomerOwnership(ctx, userID, customerID); err != nil {
		return nil, err
	}
	return s.gateway.CreateSetupIntent(ctx, domain.SetupIntentParams{
		CustomerID: customerID,
		Metadata:   s.userMetadata(userID),
	})
}

func (s *PaymentServiceImpl) userMetadata(userID string) map[string]string {
	return map[string]string{
		domain.MetaUserID:   userID,
		domain.MetaPlatform: s.cfg.Platform,
	}
}

// requireProfile loads the caller's profile, failing with 404 when it does
// not exist. A non-empty customerID must match the recorded customer.
func (s *PaymentServiceImpl) requireProfile(ctx context.Context, userID, customerID string) (*domain.UserProfile, error) {
	lctx, cancel := withTimeout(ctx, s.cfg.LedgerTimeout)
	defer cancel()

	profile, err := s.ledger.GetProfile(lctx, userID)
	if err != nil {
		return nil, apperror.ErrLedger(err)
	}
	if profile == nil {
		return nil, apperror.ErrNotFound("user profile")
	}
	if customerID != "" && profile.StripeCustomerID != "" && profile.StripeCustomerID != customerID {
		return nil, apperror.ErrForbidden("customer does not belong to the caller")
	}
	return profile, nil
}

// checkCustomerOwnership rejects a customer id that differs from the one on
// the caller's profile. Callers without a profile or customer pass.
func (s *PaymentServiceImpl) checkCustomerOwnership(ctx context.Context, userID, customerID string) error {
	lctx, cancel := withTimeout(ctx, s.cfg.LedgerTimeout)
	defer cancel()

	profile, err := s.ledger.GetProfile(lctx, userID)
	if err != nil {
		return apperror.ErrLedger(err)
	}
	if profile != nil && profile.StripeCustomerID != "" && profile.StripeCustomerID != customerID {
		return apperror.ErrForbidden("customer does not belong to the caller")
	}
	return nil
}

func (s *PaymentServiceImpl) updateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) error {
	lctx, cancel := withTimeout(ctx, s.cfg.LedgerTimeout)
	defer cancel()

	if err := s.ledger.UpdateProfile(lctx, userID, update); err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return apperror.ErrNotFound("user profile")
		}
		return apperror.ErrLedger(err)
	}
	return nil
}
