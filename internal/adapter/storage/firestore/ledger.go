package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tipjar/internal/core/domain"

	gcfirestore "cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Ledger implements ports.LedgerStore on Firestore.
type Ledger struct {
	client *gcfirestore.Client
	now    func() time.Time
}

func NewLedger(client *gcfirestore.Client) *Ledger {
	return &Ledger{client: client, now: time.Now}
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// CreateTip writes a tip. Without an ID the document id is generated by
// Firestore. The existence check and the write share a transaction so a
// second tip for the same payment intent fails with domain.ErrDuplicateTip.
func (l *Ledger) CreateTip(ctx context.Context, tip *domain.TipRecord) error {
	ref := l.client.Collection(collTips).NewDoc()
	if tip.ID != "" {
		ref = l.client.Collection(collTips).Doc(tip.ID)
	}
	now := l.now().UTC()
	if tip.CreatedAt.IsZero() {
		tip.CreatedAt = now
	}
	tip.UpdatedAt = now

	existing := l.client.Collection(collTips).
		Where("stripePaymentIntentId", "==", tip.ExternalPaymentID).
		Limit(1)
	err := l.client.RunTransaction(ctx, func(ctx context.Context, tx *gcfirestore.Transaction) error {
		docs, err := tx.Documents(existing).GetAll()
		if err != nil {
			return fmt.Errorf("query tips: %w", err)
		}
		if len(docs) > 0 {
			return domain.ErrDuplicateTip
		}
		return tx.Create(ref, newTipDoc(tip))
	})
	if errors.Is(err, domain.ErrDuplicateTip) {
		return err
	}
	if err != nil {
		return fmt.Errorf("create tip: %w", err)
	}
	tip.ID = ref.ID
	return nil
}

// ListTipsByRecipient needs the composite index (recipientId ASC, createdAt DESC).
func (l *Ledger) ListTipsByRecipient(ctx context.Context, recipientID string, limit int) ([]domain.TipRecord, error) {
	docs, err := l.client.Collection(collTips).
		Where("recipientId", "==", recipientID).
		OrderBy("createdAt", gcfirestore.Desc).
		Limit(limit).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list tips: %w", err)
	}

	tips := make([]domain.TipRecord, 0, len(docs))
	for _, snap := range docs {
		var d tipDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("decode tip %s: %w", snap.Ref.ID, err)
		}
		tips = append(tips, d.toDomain(snap.Ref.ID))
	}
	return tips, nil
}

func (l *Ledger) GetEarnings(ctx context.Context, recipientID string) (*domain.EarningsAggregate, error) {
	snap, err := l.client.Collection(collEarnings).Doc(recipientID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get earnings: %w", err)
	}
	var d earningsDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("decode earnings: %w", err)
	}
	return d.toDomain(recipientID), nil
}

func (l *Ledger) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	snap, err := l.client.Collection(collUsers).Doc(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	var d userDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return d.toDomain(userID), nil
}

func profileUpdates(u domain.ProfileUpdate, now time.Time) []gcfirestore.Update {
	var ups []gcfirestore.Update
	if u.StripeCustomerID != nil {
		ups = append(ups, gcfirestore.Update{Path: "stripeCustomerId", Value: *u.StripeCustomerID})
	}
	if u.SubscriptionID != nil {
		ups = append(ups, gcfirestore.Update{Path: "subscriptionId", Value: *u.SubscriptionID})
	}
	if u.SubscriptionStatus != nil {
		ups = append(ups, gcfirestore.Update{Path: "subscriptionStatus", Value: *u.SubscriptionStatus})
	}
	if u.SubscriptionCreated != nil {
		ups = append(ups, gcfirestore.Update{Path: "subscriptionCreated", Value: *u.SubscriptionCreated})
	}
	if u.SubscriptionUpdated != nil {
		ups = append(ups, gcfirestore.Update{Path: "subscriptionUpdated", Value: *u.SubscriptionUpdated})
	}
	if u.SubscriptionCanceled != nil {
		ups = append(ups, gcfirestore.Update{Path: "subscriptionCanceled", Value: *u.SubscriptionCanceled})
	}
	return append(ups, gcfirestore.Update{Path: "updatedAt", Value: now})
}

// UpdateProfile never creates the user document.
func (l *Ledger) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) error {
	_, err := l.client.Collection(collUsers).Doc(userID).Update(ctx, profileUpdates(update, l.now().UTC()))
	if err != nil {
		if isNotFound(err) {
			return domain.ErrProfileNotFound
		}
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// CompleteTips runs in a Firestore transaction. All reads happen before the
// first write; Firestore retries the function on contention.
func (l *Ledger) CompleteTips(ctx context.Context, paymentIntentID, recipientID string, amountMinor int64) (domain.CompletionResult, error) {
	var res domain.CompletionResult
	now := l.now().UTC()
	tipsQuery := l.client.Collection(collTips).Where("stripePaymentIntentId", "==", paymentIntentID)
	markerRef := l.client.Collection(collApplied).Doc(paymentIntentID)
	earningsRef := l.client.Collection(collEarnings).Doc(recipientID)

	err := l.client.RunTransaction(ctx, func(ctx context.Context, tx *gcfirestore.Transaction) error {
		res = domain.CompletionResult{}

		docs, err := tx.Documents(tipsQuery).GetAll()
		if err != nil {
			return fmt.Errorf("query tips: %w", err)
		}
		applied := true
		if _, err := tx.Get(markerRef); err != nil {
			if !isNotFound(err) {
				return fmt.Errorf("get applied marker: %w", err)
			}
			applied = false
		}
		earnings := &domain.EarningsAggregate{RecipientID: recipientID}
		earnSnap, err := tx.Get(earningsRef)
		switch {
		case err == nil:
			var d earningsDoc
			if err := earnSnap.DataTo(&d); err != nil {
				return fmt.Errorf("decode earnings: %w", err)
			}
			earnings = d.toDomain(recipientID)
		case !isNotFound(err):
			return fmt.Errorf("get earnings: %w", err)
		}

		for _, snap := range docs {
			var d tipDoc
			if err := snap.DataTo(&d); err != nil {
				return fmt.Errorf("decode tip %s: %w", snap.Ref.ID, err)
			}
			if !domain.TipStatus(d.Status).CanTransition(domain.TipStatusCompleted) {
				continue
			}
			if err := tx.Update(snap.Ref, []gcfirestore.Update{
				{Path: "status", Value: string(domain.TipStatusCompleted)},
				{Path: "updatedAt", Value: now},
			}); err != nil {
				return err
			}
			res.TipsUpdated++
		}
		if res.TipsUpdated == 0 || applied {
			return nil
		}

		if err := tx.Create(markerRef, appliedDoc{RecipientID: recipientID, AmountMinor: amountMinor, AppliedAt: now}); err != nil {
			return err
		}
		earnings.Credit(amountMinor, now)
		if err := tx.Set(earningsRef, newEarningsDoc(earnings)); err != nil {
			return err
		}
		res.EarningsCredited = true
		return nil
	})
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("complete tips: %w", err)
	}
	return res, nil
}

// FailTips moves pending tips to failed inside a transaction so a concurrent
// completion is not overwritten.
func (l *Ledger) FailTips(ctx context.Context, paymentIntentID string) (int, error) {
	n := 0
	now := l.now().UTC()
	q := l.client.Collection(collTips).Where("stripePaymentIntentId", "==", paymentIntentID)

	err := l.client.RunTransaction(ctx, func(ctx context.Context, tx *gcfirestore.Transaction) error {
		n = 0
		docs, err := tx.Documents(q).GetAll()
		if err != nil {
			return fmt.Errorf("query tips: %w", err)
		}
		for _, snap := range docs {
			var d tipDoc
			if err := snap.DataTo(&d); err != nil {
				return fmt.Errorf("decode tip %s: %w", snap.Ref.ID, err)
			}
			if !domain.TipStatus(d.Status).CanTransition(domain.TipStatusFailed) {
				continue
			}
			if err := tx.Update(snap.Ref, []gcfirestore.Update{
				{Path: "status", Value: string(domain.TipStatusFailed)},
				{Path: "updatedAt", Value: now},
			}); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("fail tips: %w", err)
	}
	return n, nil
}
