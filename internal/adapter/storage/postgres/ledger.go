package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tipjar/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Ledger implements ports.LedgerStore on PostgreSQL.
type Ledger struct {
	pool Pool
	now  func() time.Time
}

// NewLedger creates a new Ledger.
func NewLedger(pool Pool) *Ledger {
	return &Ledger{pool: pool, now: time.Now}
}

const tipColumns = `id, sender_id, recipient_id, recipient_name, amount_minor, currency, status, external_payment_id, created_at, updated_at`

// CreateTip inserts a tip. A missing id is generated here. A second tip for
// the same external payment id is rejected with domain.ErrDuplicateTip.
func (l *Ledger) CreateTip(ctx context.Context, tip *domain.TipRecord) error {
	if tip.ID == "" {
		tip.ID = uuid.NewString()
	}
	now := l.now().UTC()
	if tip.CreatedAt.IsZero() {
		tip.CreatedAt = now
	}
	tip.UpdatedAt = now

	tag, err := l.pool.Exec(ctx,
		`INSERT INTO tips (`+tipColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (external_payment_id) DO NOTHING`,
		tip.ID, tip.SenderID, tip.RecipientID, tip.RecipientName, tip.AmountMinor,
		tip.Currency, string(tip.Status), tip.ExternalPaymentID, tip.CreatedAt, tip.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateTip
	}
	return nil
}

// ListTipsByRecipient returns the newest tips first.
func (l *Ledger) ListTipsByRecipient(ctx context.Context, recipientID string, limit int) ([]domain.TipRecord, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT `+tipColumns+` FROM tips WHERE recipient_id = $1 ORDER BY created_at DESC LIMIT $2`,
		recipientID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list tips: %w", err)
	}
	defer rows.Close()

	var tips []domain.TipRecord
	for rows.Next() {
		var t domain.TipRecord
		var status string
		if err := rows.Scan(
			&t.ID, &t.SenderID, &t.RecipientID, &t.RecipientName, &t.AmountMinor,
			&t.Currency, &status, &t.ExternalPaymentID, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan tip: %w", err)
		}
		t.Status = domain.TipStatus(status)
		tips = append(tips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tips: %w", err)
	}
	return tips, nil
}

func (l *Ledger) GetEarnings(ctx context.Context, recipientID string) (*domain.EarningsAggregate, error) {
	e := &domain.EarningsAggregate{}
	err := l.pool.QueryRow(ctx,
		`SELECT recipient_id, total_tips_minor, total_earnings_minor, last_updated
		 FROM earnings WHERE recipient_id = $1`,
		recipientID,
	).Scan(&e.RecipientID, &e.TotalTipsMinor, &e.TotalEarningsMinor, &e.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get earnings: %w", err)
	}
	return e, nil
}

func (l *Ledger) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	p := &domain.UserProfile{}
	err := l.pool.QueryRow(ctx,
		`SELECT user_id, stripe_customer_id, subscription_id, subscription_status,
		        subscription_created, subscription_updated, subscription_canceled, updated_at
		 FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(
		&p.UserID, &p.StripeCustomerID, &p.SubscriptionID, &p.SubscriptionStatus,
		&p.SubscriptionCreated, &p.SubscriptionUpdated, &p.SubscriptionCanceled, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// UpdateProfile applies the non-nil fields of update. NULL parameters keep
// the stored value.
func (l *Ledger) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) error {
	tag, err := l.pool.Exec(ctx,
		`UPDATE user_profiles SET
		   stripe_customer_id    = COALESCE($2, stripe_customer_id),
		   subscription_id       = COALESCE($3, subscription_id),
		   subscription_status   = COALESCE($4, subscription_status),
		   subscription_created  = COALESCE($5, subscription_created),
		   subscription_updated  = COALESCE($6, subscription_updated),
		   subscription_canceled = COALESCE($7, subscription_canceled),
		   updated_at            = $8
		 WHERE user_id = $1`,
		userID, update.StripeCustomerID, update.SubscriptionID, update.SubscriptionStatus,
		update.SubscriptionCreated, update.SubscriptionUpdated, update.SubscriptionCanceled, l.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// CompleteTips runs in one transaction. The UPDATE takes row locks on the
// matching tips, so a concurrent duplicate waits and then sees them
// completed. The marker insert is the second guard against double credit.
func (l *Ledger) CompleteTips(ctx context.Context, paymentIntentID, recipientID string, amountMinor int64) (domain.CompletionResult, error) {
	var res domain.CompletionResult
	now := l.now().UTC()

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE tips SET status = $2, updated_at = $3
		 WHERE external_payment_id = $1 AND status <> $2`,
		paymentIntentID, string(domain.TipStatusCompleted), now,
	)
	if err != nil {
		return res, fmt.Errorf("complete tips: %w", err)
	}
	res.TipsUpdated = int(tag.RowsAffected())
	if res.TipsUpdated == 0 {
		return res, nil
	}

	tag, err = tx.Exec(ctx,
		`INSERT INTO applied_payment_intents (payment_intent_id, recipient_id, amount_minor, applied_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (payment_intent_id) DO NOTHING`,
		paymentIntentID, recipientID, amountMinor, now,
	)
	if err != nil {
		return res, fmt.Errorf("insert applied marker: %w", err)
	}

	if tag.RowsAffected() == 1 {
		_, err = tx.Exec(ctx,
			`INSERT INTO earnings (recipient_id, total_tips_minor, total_earnings_minor, last_updated)
			 VALUES ($1, $2, $2, $3)
			 ON CONFLICT (recipient_id) DO UPDATE SET
			   total_tips_minor     = earnings.total_tips_minor + EXCLUDED.total_tips_minor,
			   total_earnings_minor = earnings.total_earnings_minor + EXCLUDED.total_earnings_minor,
			   last_updated         = EXCLUDED.last_updated`,
			recipientID, amountMinor, now,
		)
		if err != nil {
			return res, fmt.Errorf("credit earnings: %w", err)
		}
		res.EarningsCredited = true
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CompletionResult{}, fmt.Errorf("commit tx: %w", err)
	}
	return res, nil
}

// FailTips only touches pending tips, so completed and failed tips keep their status.
func (l *Ledger) FailTips(ctx context.Context, paymentIntentID string) (int, error) {
	tag, err := l.pool.Exec(ctx,
		`UPDATE tips SET status = $2, updated_at = $3
		 WHERE external_payment_id = $1 AND status = $4`,
		paymentIntentID, string(domain.TipStatusFailed), l.now().UTC(), string(domain.TipStatusPending),
	)
	if err != nil {
		return 0, fmt.Errorf("fail tips: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
