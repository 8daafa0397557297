// Package memory is an in-process LedgerStore for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tipjar/internal/core/domain"

	"github.com/google/uuid"
)

// Ledger implements ports.LedgerStore with maps guarded by one mutex.
// CompleteTips and FailTips hold the lock for their whole read-modify-write.
type Ledger struct {
	mu       sync.RWMutex
	tips     []*domain.TipRecord
	earnings map[string]*domain.EarningsAggregate
	profiles map[string]*domain.UserProfile
	applied  map[string]domain.AppliedPaymentIntent
	now      func() time.Time
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		earnings: make(map[string]*domain.EarningsAggregate),
		profiles: make(map[string]*domain.UserProfile),
		applied:  make(map[string]domain.AppliedPaymentIntent),
		now:      time.Now,
	}
}

// PutProfile seeds a profile. Profiles are owned by another service in production.
func (l *Ledger) PutProfile(p domain.UserProfile) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.profiles[p.UserID] = &p
}

func (l *Ledger) CreateTip(ctx context.Context, tip *domain.TipRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.tips {
		if t.ExternalPaymentID == tip.ExternalPaymentID {
			return domain.ErrDuplicateTip
		}
	}
	if tip.ID == "" {
		tip.ID = uuid.NewString()
	}
	now := l.now()
	if tip.CreatedAt.IsZero() {
		tip.CreatedAt = now
	}
	tip.UpdatedAt = now
	stored := *tip
	l.tips = append(l.tips, &stored)
	return nil
}

func (l *Ledger) ListTipsByRecipient(ctx context.Context, recipientID string, limit int) ([]domain.TipRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.TipRecord
	for i := len(l.tips) - 1; i >= 0; i-- {
		if l.tips[i].RecipientID == recipientID {
			out = append(out, *l.tips[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *Ledger) GetEarnings(ctx context.Context, recipientID string) (*domain.EarningsAggregate, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.earnings[recipientID]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (l *Ledger) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.profiles[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (l *Ledger) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.profiles[userID]
	if !ok {
		return domain.ErrProfileNotFound
	}
	update.Apply(p, l.now())
	return nil
}

func (l *Ledger) CompleteTips(ctx context.Context, paymentIntentID, recipientID string, amountMinor int64) (domain.CompletionResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var res domain.CompletionResult
	now := l.now()
	for _, t := range l.tips {
		if t.ExternalPaymentID != paymentIntentID || !t.Status.CanTransition(domain.TipStatusCompleted) {
			continue
		}
		t.Status = domain.TipStatusCompleted
		t.UpdatedAt = now
		res.TipsUpdated++
	}
	if res.TipsUpdated == 0 {
		return res, nil
	}
	if _, done := l.applied[paymentIntentID]; done {
		return res, nil
	}

	l.applied[paymentIntentID] = domain.AppliedPaymentIntent{
		PaymentIntentID: paymentIntentID,
		RecipientID:     recipientID,
		AmountMinor:     amountMinor,
		AppliedAt:       now,
	}
	e, ok := l.earnings[recipientID]
	if !ok {
		e = &domain.EarningsAggregate{RecipientID: recipientID}
		l.earnings[recipientID] = e
	}
	e.Credit(amountMinor, now)
	res.EarningsCredited = true
	return res, nil
}

func (l *Ledger) FailTips(ctx context.Context, paymentIntentID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	now := l.now()
	for _, t := range l.tips {
		if t.ExternalPaymentID != paymentIntentID || !t.Status.CanTransition(domain.TipStatusFailed) {
			continue
		}
		t.Status = domain.TipStatusFailed
		t.UpdatedAt = now
		n++
	}
	return n, nil
}

// Ping implements ports.HealthChecker.
func (l *Ledger) Ping(ctx context.Context) error { return nil }

func (l *Ledger) Name() string { return "memory" }
