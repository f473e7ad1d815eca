package billing

import (
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

// StripeProvider implements Provider on the Stripe API with an injected key.
type StripeProvider struct {
	api       *client.API
	priceID   string
	clientURL string
}

func NewStripeProvider(secretKey, priceID, clientURL string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)

	return &StripeProvider{
		api:       api,
		priceID:   priceID,
		clientURL: clientURL,
	}
}

func (p *StripeProvider) CreateCustomer(email, name string, userID uint) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.AddMetadata("user_id", formatUserID(userID))

	customer, err := p.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create customer: %v", ErrProvider, err)
	}

	return customer.ID, nil
}

func (p *StripeProvider) CreateCheckoutSession(customerID string, userID uint) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(p.clientURL + "/subscription/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(p.clientURL + "/subscription/cancel"),
	}
	params.AddMetadata("user_id", formatUserID(userID))

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %v", ErrProvider, err)
	}

	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (p *StripeProvider) CancelAtPeriodEnd(subscriptionID string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}

	sub, err := p.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("%w: cancel subscription: %v", ErrProvider, err)
	}

	return fromStripeSubscription(sub), nil
}

func (p *StripeProvider) GetSubscription(subscriptionID string) (*Subscription, error) {
	sub, err := p.api.Subscriptions.Get(subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve subscription: %v", ErrProvider, err)
	}

	return fromStripeSubscription(sub), nil
}

func fromStripeSubscription(sub *stripe.Subscription) *Subscription {
	return &Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CurrentPeriodEnd:  time.Unix(sub.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
}

func formatUserID(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}
