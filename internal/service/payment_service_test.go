package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"tipjar/internal/adapter/storage/memory"
	"tipjar/internal/core/domain"
	"tipjar/internal/core/ports"
	"tipjar/internal/core/ports/mocks"
	"tipjar/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type paymentTestDeps struct {
	svc        *PaymentServiceImpl
	gateway    *mocks.MockPaymentGateway
	ledger     *mocks.MockLedgerStore
	idempCache *mocks.MockIdempotencyCache
	ctrl       *gomock.Controller
}

func setupPaymentService(t *testing.T) *paymentTestDeps {
	ctrl := gomock.NewController(t)
	d := &paymentTestDeps{
		gateway:    mocks.NewMockPaymentGateway(ctrl),
		ledger:     mocks.NewMockLedgerStore(ctrl),
		idempCache: mocks.NewMockIdempotencyCache(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewPaymentService(d.gateway, d.ledger, d.idempCache,
		PaymentConfig{Platform: "amplifi", LedgerTimeout: time.Second}, zerolog.Nop())
	return d
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func tipRequest() ports.CreatePaymentIntentRequest {
	return ports.CreatePaymentIntentRequest{
		SenderID:      "alice",
		RecipientID:   "bob",
		RecipientName: "Bob",
		AmountMinor:   500,
	}
}

// ==================== CreatePaymentIntent ====================

func TestPaymentService_CreatePaymentIntent_Success(t *testing.T) {
	d := setupPaymentService(t)

	d.gateway.EXPECT().CreatePaymentIntent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p domain.PaymentIntentParams) (*domain.PaymentIntent, error) {
			assert.Equal(t, int64(500), p.AmountMinor)
			assert.Equal(t, "usd", p.Currency)
			assert.Equal(t, map[string]string{
				"sender_id":      "alice",
				"recipient_id":   "bob",
				"recipient_name": "Bob",
				"type":           "tip",
				"platform":       "amplifi",
			}, p.Metadata)
			return &domain.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret", Status: "requires_payment_method"}, nil
		})
	d.ledger.EXPECT().CreateTip(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tip *domain.TipRecord) error {
			assert.Equal(t, domain.TipStatusPending, tip.Status)
			assert.Equal(t, "pi_1", tip.ExternalPaymentID)
			assert.Equal(t, int64(500), tip.AmountMinor)
			assert.Equal(t, "usd", tip.Currency)
			tip.ID = "tip_1"
			return nil
		})

	pi, err := d.svc.CreatePaymentIntent(context.Background(), tipRequest())
	require.NoError(t, err)
	assert.Equal(t, "pi_1", pi.ID)
	assert.Equal(t, "pi_1_secret", pi.ClientSecret)
}

func TestPaymentService_CreatePaymentIntent_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *ports.CreatePaymentIntentRequest)
	}{
		{"amount below minimum", func(r *ports.CreatePaymentIntentRequest) { r.AmountMinor = 49 }},
		{"zero amount", func(r *ports.CreatePaymentIntentRequest) { r.AmountMinor = 0 }},
		{"bad currency", func(r *ports.CreatePaymentIntentRequest) { r.Currency = "dollars" }},
		{"missing recipient", func(r *ports.CreatePaymentIntentRequest) { r.RecipientID = "" }},
		{"self tip", func(r *ports.CreatePaymentIntentRequest) { r.RecipientID = "alice" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupPaymentService(t)
			req := tipRequest()
			tt.mutate(&req)

			_, err := d.svc.CreatePaymentIntent(context.Background(), req)
			requireCode(t, err, "VAL_001")
		})
	}
}

func TestPaymentService_CreatePaymentIntent_NormalisesCurrency(t *testing.T) {
	d := setupPaymentService(t)
	req := tipRequest()
	req.Currency = " EUR "

	d.gateway.EXPECT().CreatePaymentIntent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p domain.PaymentIntentParams) (*domain.PaymentIntent, error) {
			assert.Equal(t, "eur", p.Currency)
			return &domain.PaymentIntent{ID: "pi_eur"}, nil
		})
	d.ledger.EXPECT().CreateTip(gomock.Any(), gomock.Any()).Return(nil)

	_, err := d.svc.CreatePaymentIntent(context.Background(), req)
	require.NoError(t, err)
}

func TestPaymentService_CreatePaymentIntent_GatewayError(t *testing.T) {
	d := setupPaymentService(t)

	d.gateway.EXPECT().CreatePaymentIntent(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrGateway("Your card was declined.", errors.New("card_error")))

	_, err := d.svc.CreatePaymentIntent(context.Background(), tipRequest())
	requireCode(t, err, "GW_001")
}

func TestPaymentService_CreatePaymentIntent_LedgerError(t *testing.T) {
	d := setupPaymentService(t)

	d.gateway.EXPECT().CreatePaymentIntent(gomock.Any(), gomock.Any()).
		Return(&domain.PaymentIntent{ID: "pi_1"}, nil)
	d.ledger.EXPECT().CreateTip(gomock.Any(), gomock.Any()).Return(errors.New("deadline exceeded"))

	pi, err := d.svc.CreatePaymentIntent(context.Background(), tipRequest())
	assert.Nil(t, pi)
	requireCode(t, err, "LED_001")
}

func TestPaymentService_CreatePaymentIntent_IdempotencyCacheHit(t *testing.T) {
	d := setupPaymentService(t)
	req := tipRequest()
	req.IdempotencyKey = "k1"

	cached, _ := json.Marshal(domain.PaymentIntent{ID: "pi_cached", ClientSecret: "s"})
	d.idempCache.EXPECT().Get(gomock.Any(), "pi:alice:k1").Return(cached, nil)

	pi, err := d.svc.CreatePaymentIntent(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "pi_cached", pi.ID)
}

func TestPaymentService_CreatePaymentIntent_IdempotencyCacheMiss(t *testing.T) {
	d := setupPaymentService(t)
	req := tipRequest()
	req.IdempotencyKey = "k1"

	d.idempCache.EXPECT().Get(gomock.Any(), "pi:alice:k1").Return(nil, nil)
	d.gateway.EXPECT().CreatePaymentIntent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p domain.PaymentIntentParams) (*domain.PaymentIntent, error) {
			assert.Equal(t, "pi:alice:k1", p.IdempotencyKey)
			return &domain.PaymentIntent{ID: "pi_new"}, nil
		})
	d.ledger.EXPECT().CreateTip(gomock.Any(), gomock.Any()).Return(nil)
	d.idempCache.EXPECT().Set(gomock.Any(), "pi:alice:k1", gomock.Any(), 24*time.Hour).Return(nil)

	pi, err := d.svc.CreatePaymentIntent(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "pi_new", pi.ID)
}

func TestPaymentService_CreatePaymentIntent_CacheErrorFallsThrough(t *testing.T) {
	d := setupPaymentService(t)
	req := tipRequest()
	req.IdempotencyKey = "k1"

	d.idempCache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("redis down"))
	d.gateway.EXPECT().CreatePaymentIntent(gomock.Any(), gomock.Any()).Return(&domain.PaymentIntent{ID: "pi_1"}, nil)
	d.ledger.EXPECT().CreateTip(gomock.Any(), gomock.Any()).Return(nil)
	d.idempCache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	_, err := d.svc.CreatePaymentIntent(context.Background(), req)
	require.NoError(t, err)
}

func TestPaymentService_CreatePaymentIntent_RetryWithoutCacheRecordsOneTip(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := mocks.NewMockPaymentGateway(ctrl)
	ledger := memory.NewLedger()
	svc := NewPaymentService(gateway, ledger, nil,
		PaymentConfig{Platform: "amplifi", LedgerTimeout: time.Second}, zerolog.Nop())

	// Stripe answers a repeated idempotency key with the original intent.
	byKey := map[string]*domain.PaymentIntent{}
	gateway.EXPECT().CreatePaymentIntent(gomock.Any(), gomock.Any()).Times(2).
		DoAndReturn(func(_ context.Context, p domain.PaymentIntentParams) (*domain.PaymentIntent, error) {
			if pi, ok := byKey[p.IdempotencyKey]; ok {
				return pi, nil
			}
			pi := &domain.PaymentIntent{ID: "pi_retry", ClientSecret: "pi_retry_secret"}
			byKey[p.IdempotencyKey] = pi
			return pi, nil
		})

	req := tipRequest()
	req.IdempotencyKey = "k1"
	first, err := svc.CreatePaymentIntent(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.CreatePaymentIntent(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	tips, err := ledger.ListTipsByRecipient(context.Background(), "bob", 10)
	require.NoError(t, err)
	assert.Len(t, tips, 1)
}

func TestPaymentService_CreatePaymentIntent_GatewayKeyScopedToSender(t *testing.T) {
	d := setupPaymentService(t)
	d.svc.idempCache = nil

	var keys []string
	d.gateway.EXPECT().CreatePaymentIntent(gomock.Any(), gomock.Any()).Times(2).
		DoAndReturn(func(_ context.Context, p domain.PaymentIntentParams) (*domain.PaymentIntent, error) {
			keys = append(keys, p.IdempotencyKey)
			return &domain.PaymentIntent{ID: fmt.Sprintf("pi_%d", len(keys))}, nil
		})
	d.ledger.EXPECT().CreateTip(gomock.Any(), gomock.Any()).Times(2).Return(nil)

	for _, sender := range []string{"alice", "carol"} {
		req := tipRequest()
		req.SenderID = sender
		req.IdempotencyKey = "same-key"
		_, err := d.svc.CreatePaymentIntent(context.Background(), req)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"pi:alice:same-key", "pi:carol:same-key"}, keys)
}

func TestPaymentService_CreatePaymentIntent_DuplicateTipIsReplay(t *testing.T) {
	d := setupPaymentService(t)
	req := tipRequest()
	req.IdempotencyKey = "k1"

	d.idempCache.EXPECT().Get(gomock.Any(), "pi:alice:k1").Return(nil, nil)
	d.gateway.EXPECT().CreatePaymentIntent(gomock.Any(), gomock.Any()).Return(&domain.PaymentIntent{ID: "pi_1"}, nil)
	d.ledger.EXPECT().CreateTip(gomock.Any(), gomock.Any()).Return(domain.ErrDuplicateTip)
	d.idempCache.EXPECT().Set(gomock.Any(), "pi:alice:k1", gomock.Any(), 24*time.Hour).Return(nil)

	pi, err := d.svc.CreatePaymentIntent(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "pi_1", pi.ID)
}

// ==================== CreateSubscription ====================

func TestPaymentService_CreateSubscription_Success(t *testing.T) {
	d := setupPaymentService(t)

	d.ledger.EXPECT().GetProfile(gomock.Any(), "alice").
		Return(&domain.UserProfile{UserID: "alice", StripeCustomerID: "cus_1"}, nil)
	d.gateway.EXPECT().CreateSubscription(gomock.Any(), domain.SubscriptionParams{
		CustomerID: "cus_1",
		PriceID:    "price_1",
		Metadata:   map[string]string{"user_id": "alice", "platform": "amplifi", "type": "subscription"},
	}).Return(&domain.Subscription{ID: "sub_1", Status: "incomplete"}, nil)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.svc.now = func() time.Time { return created }
	d.ledger.EXPECT().UpdateProfile(gomock.Any(), "alice", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, u domain.ProfileUpdate) error {
			require.NotNil(t, u.SubscriptionCreated)
			assert.Equal(t, created, *u.SubscriptionCreated)
			require.NotNil(t, u.SubscriptionID)
			assert.Equal(t, "sub_1", *u.SubscriptionID)
			require.NotNil(t, u.SubscriptionStatus)
			assert.Equal(t, "incomplete", *u.SubscriptionStatus)
			return nil
		})

	sub, err := d.svc.CreateSubscription(context.Background(), ports.CreateSubscriptionRequest{
		UserID: "alice", PriceID: "price_1", CustomerID: "cus_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "sub_1", sub.ID)
}

func TestPaymentService_CreateSubscription_MissingFields(t *testing.T) {
	d := setupPaymentService(t)
	_, err := d.svc.CreateSubscription(context.Background(), ports.CreateSubscriptionRequest{UserID: "alice"})
	requireCode(t, err, "VAL_001")
}

func TestPaymentService_CreateSubscription_NoProfile(t *testing.T) {
	d := setupPaymentService(t)
	d.ledger.EXPECT().GetProfile(gomock.Any(), "alice").Return(nil, nil)

	_, err := d.svc.CreateSubscription(context.Background(), ports.CreateSubscriptionRequest{
		UserID: "alice", PriceID: "price_1", CustomerID: "cus_1",
	})
	requireCode(t, err, "NF_001")
}

func TestPaymentService_CreateSubscription_ForeignCustomer(t *testing.T) {
	d := setupPaymentService(t)
	d.ledger.EXPECT().GetProfile(gomock.Any(), "alice").
		Return(&domain.UserProfile{UserID: "alice", StripeCustomerID: "cus_mine"}, nil)

	_, err := d.svc.CreateSubscription(context.Background(), ports.CreateSubscriptionRequest{
		UserID: "alice", PriceID: "price_1", CustomerID: "cus_other",
	})
	requireCode(t, err, "SEC_001")
}

func TestPaymentService_CreateSubscription_ProfileVanished(t *testing.T) {
	d := setupPaymentService(t)
	d.ledger.EXPECT().GetProfile(gomock.Any(), "alice").Return(&domain.UserProfile{UserID: "alice"}, nil)
	d.gateway.EXPECT().CreateSubscription(gomock.Any(), gomock.Any()).
		Return(&domain.Subscription{ID: "sub_1", Status: "active"}, nil)
	d.ledger.EXPECT().UpdateProfile(gomock.Any(), "alice", gomock.Any()).Return(domain.ErrProfileNotFound)

	_, err := d.svc.CreateSubscription(context.Background(), ports.CreateSubscriptionRequest{
		UserID: "alice", PriceID: "price_1", CustomerID: "cus_1",
	})
	requireCode(t, err, "NF_001")
}

// ==================== CreateCustomer ====================

func TestPaymentService_CreateCustomer_DefaultsName(t *testing.T) {
	d := setupPaymentService(t)

	d.ledger.EXPECT().GetProfile(gomock.Any(), "alice").Return(&domain.UserProfile{UserID: "alice"}, nil)
	d.gateway.EXPECT().CreateCustomer(gomock.Any(), domain.CustomerParams{
		Email:    "a@example.com",
		Name:     "Anonymous",
		Metadata: map[string]string{"user_id": "alice", "platform": "amplifi"},
	}).Return(&domain.Customer{ID: "cus_1", Email: "a@example.com", Name: "Anonymous"}, nil)
	d.ledger.EXPECT().UpdateProfile(gomock.Any(), "alice", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, u domain.ProfileUpdate) error {
			require.NotNil(t, u.StripeCustomerID)
			assert.Equal(t, "cus_1", *u.StripeCustomerID)
			return nil
		})

	cus, err := d.svc.CreateCustomer(context.Background(), ports.CreateCustomerRequest{
		UserID: "alice", Email: "a@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "cus_1", cus.ID)
}

func TestPaymentService_CreateCustomer_NoProfile(t *testing.T) {
	d := setupPaymentService(t)
	d.ledger.EXPECT().GetProfile(gomock.Any(), "alice").Return(nil, nil)

	_, err := d.svc.CreateCustomer(context.Background(), ports.CreateCustomerRequest{
		UserID: "alice", Email: "a@example.com",
	})
	requireCode(t, err, "NF_001")
}

func TestPaymentService_CreateCustomer_LedgerReadError(t *testing.T) {
	d := setupPaymentService(t)
	d.ledger.EXPECT().GetProfile(gomock.Any(), "alice").Return(nil, errors.New("unavailable"))

	_, err := d.svc.CreateCustomer(context.Background(), ports.CreateCustomerRequest{
		UserID: "alice", Email: "a@example.com",
	})
	requireCode(t, err, "LED_001")
}

// ==================== Payment methods / setup intents ====================

func TestPaymentService_ListPaymentMethods(t *testing.T) {
	d := setupPaymentService(t)
	methods := []json.RawMessage{json.RawMessage(`{"id":"pm_1","type":"card"}`)}

	d.ledger.EXPECT().GetProfile(gomock.Any(), "alice").Return(nil, nil)
	d.gateway.EXPECT().ListPaymentMethods(gomock.Any(), "cus_1").Return(methods, nil)

	got, err := d.svc.ListPaymentMethods(context.Background(), "alice", "cus_1")
	require.NoError(t, err)
	assert.Equal(t, methods, got)
}

func TestPaymentService_ListPaymentMethods_ForeignCustomer(t *testing.T) {
	d := setupPaymentService(t)
	d.ledger.EXPECT().GetProfile(gomock.Any(), "alice").
		Return(&domain.UserProfile{UserID: "alice", StripeCustomerID: "cus_mine"}, nil)

	_, err := d.svc.ListPaymentMethods(context.Background(), "alice", "cus_other")
	requireCode(t, err, "SEC_001")
}

func TestPaymentService_CreateSetupIntent(t *testing.T) {
	d := setupPaymentService(t)

	d.ledger.EXPECT().GetProfile(gomock.Any(), "alice").
		Return(&domain.UserProfile{UserID: "alice", StripeCustomerID: "cus_1"}, nil)
	d.gateway.EXPECT().CreateSetupIntent(gomock.Any(), domain.SetupIntentParams{
		CustomerID: "cus_1",
		Metadata:   map[string]string{"user_id": "alice", "platform": "amplifi"},
	}).Return(&domain.SetupIntent{ID: "seti_1", ClientSecret: "seti_1_secret"}, nil)

	si, err := d.svc.CreateSetupIntent(context.Background(), "alice", "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "seti_1_secret", si.ClientSecret)
}

func TestPaymentService_CreateSetupIntent_MissingCustomer(t *testing.T) {
	d := setupPaymentService(t)
	_, err := d.svc.CreateSetupIntent(context.Background(), "alice", "")
	requireCode(t, err, "VAL_001")
}
