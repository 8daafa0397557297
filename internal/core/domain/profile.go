package domain

import (
	"errors"
	"time"
)

// SubscriptionStatusCanceled is set when the gateway deletes a subscription.
// Other statuses are passed through as the gateway reports them.
const SubscriptionStatusCanceled = "canceled"

// UserProfile is the subset of a user's profile owned by the payment layer.
// Profiles are created elsewhere; this service only updates them.
type UserProfile struct {
	UserID               string     `json:"userId"`
	StripeCustomerID     string     `json:"stripeCustomerId,omitempty"`
	SubscriptionID       string     `json:"subscriptionId,omitempty"`
	SubscriptionStatus   string     `json:"subscriptionStatus,omitempty"`
	SubscriptionCreated  *time.Time `json:"subscriptionCreated,omitempty"`
	SubscriptionUpdated  *time.Time `json:"subscriptionUpdated,omitempty"`
	SubscriptionCanceled *time.Time `json:"subscriptionCanceled,omitempty"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// ProfileUpdate is a partial update. Nil fields are left untouched.
type ProfileUpdate struct {
	StripeCustomerID     *string
	SubscriptionID       *string
	SubscriptionStatus   *string
	SubscriptionCreated  *time.Time
	SubscriptionUpdated  *time.Time
	SubscriptionCanceled *time.Time
}

// IsEmpty returns true if the update sets no field.
func (u ProfileUpdate) IsEmpty() bool {
	return u.StripeCustomerID == nil &&
		u.SubscriptionID == nil &&
		u.SubscriptionStatus == nil &&
		u.SubscriptionCreated == nil &&
		u.SubscriptionUpdated == nil &&
		u.SubscriptionCanceled == nil
}

// Apply copies the set fields onto p and stamps UpdatedAt.
func (u ProfileUpdate) Apply(p *UserProfile, now time.Time) {
	if u.StripeCustomerID != nil {
		p.StripeCustomerID = *u.StripeCustomerID
	}
	if u.SubscriptionID != nil {
		p.SubscriptionID = *u.SubscriptionID
	}
	if u.SubscriptionStatus != nil {
		p.SubscriptionStatus = *u.SubscriptionStatus
	}
	if u.SubscriptionCreated != nil {
		p.SubscriptionCreated = u.SubscriptionCreated
	}
	if u.SubscriptionUpdated != nil {
		p.SubscriptionUpdated = u.SubscriptionUpdated
	}
	if u.SubscriptionCanceled != nil {
		p.SubscriptionCanceled = u.SubscriptionCanceled
	}
	p.UpdatedAt = now
}

// ErrProfileNotFound is returned by stores when updating an absent profile.
var ErrProfileNotFound = errors.New("user profile not found")
