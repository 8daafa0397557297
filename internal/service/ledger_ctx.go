package service

import (
	"context"
	"time"
)

// withTimeout bounds a ledger call. A zero timeout only inherits the caller's deadline.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
