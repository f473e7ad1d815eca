package model

import (
	"time"

	"gorm.io/gorm"

	"coachpage_backend/pkg/tier"
)

type UserRole string

const (
	RoleMember  UserRole = "member"
	RoleTrainer UserRole = "trainer"
	RoleAdmin   UserRole = "admin"
)

type SubscriptionStatus string

const (
	StatusInactive SubscriptionStatus = "inactive"
	StatusActive   SubscriptionStatus = "active"
	StatusCanceled SubscriptionStatus = "canceled"
	StatusPastDue  SubscriptionStatus = "past_due"
)

type User struct {
	gorm.Model
	Name     string   `json:"name" gorm:"not null"`
	Email    string   `json:"email" gorm:"uniqueIndex;not null"`
	Password string   `json:"-" gorm:"not null"`
	Role     UserRole `json:"role" gorm:"default:'member'"`

	// Subscription record. The Stripe customer id is set at most once and
	// never cleared; the subscription id is cleared only when Stripe confirms
	// the deletion.
	SubscriptionTier     tier.Tier          `json:"subscription_tier" gorm:"default:'none'"`
	SubscriptionStatus   SubscriptionStatus `json:"subscription_status" gorm:"default:'inactive'"`
	StripeCustomerID     string             `json:"-" gorm:"uniqueIndex:idx_users_stripe_customer,where:stripe_customer_id <> ''"`
	StripeSubscriptionID string             `json:"-" gorm:"uniqueIndex:idx_users_stripe_sub,where:stripe_subscription_id <> ''"`
	SubscriptionEndDate  *time.Time         `json:"subscription_end_date"`

	Posts []Post `json:"-" gorm:"foreignKey:AuthorID"`
}

// Tier returns the user's tier with unknown values degraded to none.
func (u *User) Tier() tier.Tier {
	return tier.Normalize(u.SubscriptionTier)
}

// IsCreator reports whether the user may author and manage posts.
func (u *User) IsCreator() bool {
	return u.Role == RoleTrainer || u.Role == RoleAdmin
}

func (u *User) PublicProfile() map[string]interface{} {
	return map[string]interface{}{
		"id":                  u.ID,
		"name":                u.Name,
		"email":               u.Email,
		"role":                u.Role,
		"subscription_tier":   u.SubscriptionTier,
		"subscription_status": u.SubscriptionStatus,
	}
}
