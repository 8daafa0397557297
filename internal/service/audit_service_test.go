package service

import (
	"context"
	"testing"
	"time"

	"tipjar/internal/core/domain"
	"tipjar/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, zerolog.Nop())

	done := make(chan struct{})
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, log *domain.AuditLog) error {
			if log.Action != domain.AuditActionCreatePaymentIntent {
				t.Errorf("expected CREATE_PAYMENT_INTENT, got %s", log.Action)
			}
			if log.UserID != "u2" {
				t.Errorf("expected user u2, got %s", log.UserID)
			}
			close(done)
			return nil
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	svc.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		UserID:       "u2",
		Action:       domain.AuditActionCreatePaymentIntent,
		ResourceType: "payment_intent",
		IPAddress:    "127.0.0.1",
		CreatedAt:    time.Now(),
	})
	// the request finishing must not cancel the audit write
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not persisted in time")
	}
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, zerolog.Nop())

	svc.Log(context.Background(), &domain.AuditLog{
		ID:           uuid.New(),
		UserID:       "u1",
		Action:       domain.AuditActionCreateCustomer,
		ResourceType: "customer",
		IPAddress:    "127.0.0.1",
		CreatedAt:    time.Now(),
	})

	time.Sleep(50 * time.Millisecond) // let goroutine run
}
