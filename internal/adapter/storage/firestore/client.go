// Package firestore implements the ledger on Cloud Firestore using the
// collections the web client already reads: tips, users and earnings.
package firestore

import (
	"context"
	"fmt"

	gcfirestore "cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
)

const (
	collTips     = "tips"
	collUsers    = "users"
	collEarnings = "earnings"
	collApplied  = "appliedPaymentIntents"
)

// NewClient creates a Firestore client. FIRESTORE_EMULATOR_HOST is honoured
// by the SDK.
func NewClient(ctx context.Context, projectID string, log zerolog.Logger) (*gcfirestore.Client, error) {
	client, err := gcfirestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	log.Info().Str("project_id", projectID).Msg("Firestore client created")
	return client, nil
}

// HealthCheck implements ports.HealthChecker for Firestore.
type HealthCheck struct {
	client *gcfirestore.Client
}

func NewHealthCheck(client *gcfirestore.Client) *HealthCheck {
	return &HealthCheck{client: client}
}

// Ping runs a one-document query.
func (h *HealthCheck) Ping(ctx context.Context) error {
	_, err := h.client.Collection(collEarnings).Limit(1).Documents(ctx).GetAll()
	return err
}

func (h *HealthCheck) Name() string {
	return "firestore"
}
