package service

import (
	"context"
	"time"

	"tipjar/internal/core/ports"
	"tipjar/pkg/apperror"
)

// RecentTipsLimit is how many tips GetUserEarnings returns.
const RecentTipsLimit = 10

type EarningsServiceImpl struct {
	ledger        ports.LedgerStore
	ledgerTimeout time.Duration
}

func NewEarningsService(ledger ports.LedgerStore, ledgerTimeout time.Duration) *EarningsServiceImpl {
	return &EarningsServiceImpl{ledger: ledger, ledgerTimeout: ledgerTimeout}
}

// GetUserEarnings returns the caller's aggregate and newest tips. A recipient
// with no completed tip yet has a nil aggregate.
func (s *EarningsServiceImpl) GetUserEarnings(ctx context.Context, userID string) (*ports.UserEarnings, error) {
	ctx, cancel := withTimeout(ctx, s.ledgerTimeout)
	defer cancel()

	earnings, err := s.ledger.GetEarnings(ctx, userID)
	if err != nil {
		return nil, apperror.ErrLedger(err)
	}
	tips, err := s.ledger.ListTipsByRecipient(ctx, userID, RecentTipsLimit)
	if err != nil {
		return nil, apperror.ErrLedger(err)
	}
	return &ports.UserEarnings{Earnings: earnings, RecentTips: tips}, nil
}
