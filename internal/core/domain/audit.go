package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCreatePaymentIntent AuditAction = "CREATE_PAYMENT_INTENT"
	AuditActionCreateSubscription  AuditAction = "CREATE_SUBSCRIPTION"
	AuditActionCreateCustomer      AuditAction = "CREATE_CUSTOMER"
	AuditActionCreateSetupIntent   AuditAction = "CREATE_SETUP_INTENT"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	UserID       string      `json:"user_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
