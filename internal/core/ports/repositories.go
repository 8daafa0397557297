package ports

import (
	"context"
	"time"

	"tipjar/internal/core/domain"
)

//go:generate mockgen -destination=mocks/mock_repositories.go -package=mocks tipjar/internal/core/ports LedgerStore,AuditRepository,ProcessedEventStore,IdempotencyCache

// LedgerStore persists tips, earnings aggregates and user profiles.
// Implementations: postgres, firestore and memory.
type LedgerStore interface {
	// CreateTip stores a new tip. An empty ID is assigned by the store.
	CreateTip(ctx context.Context, tip *domain.TipRecord) error
	// ListTipsByRecipient returns up to limit tips, newest first.
	ListTipsByRecipient(ctx context.Context, recipientID string, limit int) ([]domain.TipRecord, error)
	// GetEarnings returns nil, nil if the recipient has no aggregate yet.
	GetEarnings(ctx context.Context, recipientID string) (*domain.EarningsAggregate, error)
	// GetProfile returns nil, nil if the profile does not exist.
	GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
	// UpdateProfile returns domain.ErrProfileNotFound if the profile does not exist.
	UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) error

	// CompleteTips atomically moves every tip of the payment intent that is
	// not yet completed to completed. When at least one tip moved and the
	// intent has no applied marker, it writes the marker and credits
	// amountMinor to the recipient's earnings in the same transaction.
	CompleteTips(ctx context.Context, paymentIntentID, recipientID string, amountMinor int64) (domain.CompletionResult, error)
	// FailTips moves every pending tip of the payment intent to failed and
	// returns how many moved.
	FailTips(ctx context.Context, paymentIntentID string) (int, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// ProcessedEventStore remembers gateway event ids that were already handled.
// It is a fast path only; the ledger marker stays authoritative.
type ProcessedEventStore interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	// MarkProcessed returns false if the event was already marked.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

// IdempotencyCache is the Redis-layer response cache for client retries.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
