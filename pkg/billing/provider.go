package billing

import (
	"errors"
	"time"
)

// ErrProvider wraps failures of the upstream billing API. Write paths surface
// it to the caller as a retryable error instead of swallowing it.
var ErrProvider = errors.New("billing provider request failed")

type CheckoutSession struct {
	ID  string
	URL string
}

type Subscription struct {
	ID                string
	Status            string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
}

// Provider is the payment backend consumed by the subscription flows. The
// production implementation talks to Stripe; tests substitute a fake.
type Provider interface {
	// CreateCustomer registers a customer tagged with the user id and
	// returns the provider's customer id.
	CreateCustomer(email, name string, userID uint) (string, error)

	// CreateCheckoutSession opens a hosted subscription checkout for the
	// customer, tagged with the user id for webhook correlation.
	CreateCheckoutSession(customerID string, userID uint) (*CheckoutSession, error)

	// CancelAtPeriodEnd schedules a deferred cancellation and returns the
	// subscription including its effective end date. Local state is not
	// touched until the provider confirms via webhook.
	CancelAtPeriodEnd(subscriptionID string) (*Subscription, error)

	// GetSubscription fetches the live subscription state.
	GetSubscription(subscriptionID string) (*Subscription, error)
}
