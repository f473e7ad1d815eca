package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v74/webhook"
)

// ErrInvalidSignature marks an event whose signature did not verify. Such
// events are rejected outright, never processed.
var ErrInvalidSignature = errors.New("invalid webhook signature")

type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout.session.completed"
	EventSubscriptionUpdated EventType = "customer.subscription.updated"
	EventSubscriptionDeleted EventType = "customer.subscription.deleted"
	EventPaymentFailed       EventType = "invoice.payment_failed"
	EventUnknown             EventType = "unknown"
)

// Event is a verified, typed provider notification. Only the fields relevant
// to its type are populated.
type Event struct {
	Type    EventType
	RawType string

	// UserID correlates checkout completions via session metadata.
	UserID uint

	// SubscriptionID correlates subscription update/delete events; for a
	// checkout completion it is the newly created subscription.
	SubscriptionID string

	// CustomerID correlates payment failures.
	CustomerID string

	// Status carries the provider-reported subscription status on updates.
	Status string

	// PeriodEnd is the renewal/expiry boundary when the event reports one.
	PeriodEnd *time.Time
}

// ParseEvent verifies the Stripe signature and maps the payload onto a typed
// Event. Event kinds outside the four the reconciler handles come back as
// EventUnknown with RawType set, so callers can ack and ignore them.
func ParseEvent(payload []byte, signatureHeader, secret string) (*Event, error) {
	stripeEvent, err := webhook.ConstructEvent(payload, signatureHeader, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	raw := stripeEvent.Data.Raw

	switch string(stripeEvent.Type) {
	case string(EventCheckoutCompleted):
		var session struct {
			Metadata     map[string]string `json:"metadata"`
			Subscription string            `json:"subscription"`
		}
		if err := json.Unmarshal(raw, &session); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}

		// A missing or mangled user_id tag leaves UserID zero; the
		// reconciler treats that as an unmatched subject and drops it.
		userID, _ := strconv.ParseUint(session.Metadata["user_id"], 10, 64)

		return &Event{
			Type:           EventCheckoutCompleted,
			RawType:        string(stripeEvent.Type),
			UserID:         uint(userID),
			SubscriptionID: session.Subscription,
		}, nil

	case string(EventSubscriptionUpdated):
		var sub struct {
			ID               string `json:"id"`
			Status           string `json:"status"`
			CurrentPeriodEnd int64  `json:"current_period_end"`
		}
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription update: %w", err)
		}

		event := &Event{
			Type:           EventSubscriptionUpdated,
			RawType:        string(stripeEvent.Type),
			SubscriptionID: sub.ID,
			Status:         sub.Status,
		}
		if sub.CurrentPeriodEnd > 0 {
			periodEnd := time.Unix(sub.CurrentPeriodEnd, 0)
			event.PeriodEnd = &periodEnd
		}
		return event, nil

	case string(EventSubscriptionDeleted):
		var sub struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription deletion: %w", err)
		}

		return &Event{
			Type:           EventSubscriptionDeleted,
			RawType:        string(stripeEvent.Type),
			SubscriptionID: sub.ID,
		}, nil

	case string(EventPaymentFailed):
		var invoice struct {
			Customer string `json:"customer"`
		}
		if err := json.Unmarshal(raw, &invoice); err != nil {
			return nil, fmt.Errorf("decode failed invoice: %w", err)
		}

		return &Event{
			Type:       EventPaymentFailed,
			RawType:    string(stripeEvent.Type),
			CustomerID: invoice.Customer,
		}, nil
	}

	return &Event{Type: EventUnknown, RawType: string(stripeEvent.Type)}, nil
}
