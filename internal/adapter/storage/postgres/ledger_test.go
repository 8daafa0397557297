package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"tipjar/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T) (*Ledger, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	l := NewLedger(mock)
	l.now = func() time.Time { return fixedNow }
	return l, mock
}

func tipRowColumns() []string {
	return []string{"id", "sender_id", "recipient_id", "recipient_name", "amount_minor", "currency", "status", "external_payment_id", "created_at", "updated_at"}
}

func TestLedger_CreateTip(t *testing.T) {
	l, mock := newTestLedger(t)
	tip := &domain.TipRecord{
		ID:                "tip-1",
		SenderID:          "u2",
		RecipientID:       "u1",
		RecipientName:     "Alice",
		AmountMinor:       500,
		Currency:          "usd",
		Status:            domain.TipStatusPending,
		ExternalPaymentID: "pi_1",
	}

	mock.ExpectExec("INSERT INTO tips").
		WithArgs("tip-1", "u2", "u1", "Alice", int64(500), "usd", "pending", "pi_1", fixedNow, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := l.CreateTip(context.Background(), tip)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, tip.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_CreateTip_GeneratesID(t *testing.T) {
	l, mock := newTestLedger(t)
	tip := &domain.TipRecord{RecipientID: "u1", Status: domain.TipStatusPending}

	mock.ExpectExec("INSERT INTO tips").
		WithArgs(pgxmock.AnyArg(), "", "u1", "", int64(0), "", "pending", "", fixedNow, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, l.CreateTip(context.Background(), tip))
	assert.NotEmpty(t, tip.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_CreateTip_DuplicatePaymentIntent(t *testing.T) {
	l, mock := newTestLedger(t)
	tip := &domain.TipRecord{ID: "tip-2", RecipientID: "u1", Status: domain.TipStatusPending, ExternalPaymentID: "pi_1"}

	mock.ExpectExec("(?s)INSERT INTO tips.*ON CONFLICT \\(external_payment_id\\) DO NOTHING").
		WithArgs("tip-2", "", "u1", "", int64(0), "", "pending", "pi_1", fixedNow, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err := l.CreateTip(context.Background(), tip)
	assert.ErrorIs(t, err, domain.ErrDuplicateTip)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_ListTipsByRecipient(t *testing.T) {
	l, mock := newTestLedger(t)

	rows := pgxmock.NewRows(tipRowColumns()).
		AddRow("tip-2", "u3", "u1", "Alice", int64(1000), "usd", "completed", "pi_2", fixedNow, fixedNow).
		AddRow("tip-1", "u2", "u1", "Alice", int64(500), "usd", "pending", "pi_1", fixedNow.Add(-time.Hour), fixedNow)
	mock.ExpectQuery("SELECT .+ FROM tips WHERE recipient_id = \\$1 ORDER BY created_at DESC LIMIT \\$2").
		WithArgs("u1", 10).
		WillReturnRows(rows)

	tips, err := l.ListTipsByRecipient(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, tips, 2)
	assert.Equal(t, "tip-2", tips[0].ID)
	assert.Equal(t, domain.TipStatusCompleted, tips[0].Status)
	assert.Equal(t, "10", tips[0].Amount().String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_GetEarnings_NotFound(t *testing.T) {
	l, mock := newTestLedger(t)

	mock.ExpectQuery("SELECT .+ FROM earnings").
		WithArgs("u1").
		WillReturnError(pgx.ErrNoRows)

	e, err := l.GetEarnings(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_GetEarnings(t *testing.T) {
	l, mock := newTestLedger(t)

	mock.ExpectQuery("SELECT .+ FROM earnings").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"recipient_id", "total_tips_minor", "total_earnings_minor", "last_updated"}).
			AddRow("u1", int64(500), int64(500), fixedNow))

	e, err := l.GetEarnings(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "5", e.TotalTips().String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_GetProfile(t *testing.T) {
	l, mock := newTestLedger(t)

	mock.ExpectQuery("SELECT .+ FROM user_profiles").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{
			"user_id", "stripe_customer_id", "subscription_id", "subscription_status",
			"subscription_created", "subscription_updated", "subscription_canceled", "updated_at",
		}).AddRow("u1", "cus_1", "", "", nil, nil, nil, fixedNow))

	p, err := l.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "cus_1", p.StripeCustomerID)
	assert.Nil(t, p.SubscriptionCreated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_UpdateProfile_NotFound(t *testing.T) {
	l, mock := newTestLedger(t)
	cus := "cus_1"

	mock.ExpectExec("UPDATE user_profiles SET").
		WithArgs("ghost", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := l.UpdateProfile(context.Background(), "ghost", domain.ProfileUpdate{StripeCustomerID: &cus})
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_CompleteTips_CreditsEarnings(t *testing.T) {
	l, mock := newTestLedger(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tips SET status").
		WithArgs("pi_1", "completed", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO applied_payment_intents").
		WithArgs("pi_1", "u1", int64(500), fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO earnings").
		WithArgs("u1", int64(500), fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := l.CompleteTips(context.Background(), "pi_1", "u1", 500)
	require.NoError(t, err)
	assert.Equal(t, domain.CompletionResult{TipsUpdated: 1, EarningsCredited: true}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_CompleteTips_AlreadyCompleted(t *testing.T) {
	l, mock := newTestLedger(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tips SET status").
		WithArgs("pi_1", "completed", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	res, err := l.CompleteTips(context.Background(), "pi_1", "u1", 500)
	require.NoError(t, err)
	assert.Equal(t, domain.CompletionResult{}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_CompleteTips_MarkerExists(t *testing.T) {
	l, mock := newTestLedger(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tips SET status").
		WithArgs("pi_1", "completed", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO applied_payment_intents").
		WithArgs("pi_1", "u1", int64(500), fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	res, err := l.CompleteTips(context.Background(), "pi_1", "u1", 500)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TipsUpdated)
	assert.False(t, res.EarningsCredited)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_CompleteTips_RollsBackOnError(t *testing.T) {
	l, mock := newTestLedger(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tips SET status").
		WithArgs("pi_1", "completed", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO applied_payment_intents").
		WithArgs("pi_1", "u1", int64(500), fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO earnings").
		WithArgs("u1", int64(500), fixedNow).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := l.CompleteTips(context.Background(), "pi_1", "u1", 500)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credit earnings")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_FailTips_OnlyPending(t *testing.T) {
	l, mock := newTestLedger(t)

	mock.ExpectExec("UPDATE tips SET status").
		WithArgs("pi_1", "failed", fixedNow, "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := l.FailTips(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	entry := &domain.AuditLog{Action: domain.AuditActionCreateCustomer, UserID: "u1", CreatedAt: fixedNow}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, "u1", "CREATE_CUSTOMER", "", "", "", "", fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck_Ping(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	hc := NewHealthCheck(mock)
	assert.NoError(t, hc.Ping(context.Background()))
	assert.Equal(t, "postgresql", hc.Name())
}
