package controller

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coachpage_backend/internal/model"
	"coachpage_backend/pkg/tier"
)

func TestGetPricing(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.request(t, http.MethodGet, "/api/subscription/pricing", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	tiers, ok := body["tiers"].([]interface{})
	require.True(t, ok)
	assert.Len(t, tiers, 2)
}

func TestSubscribeFree(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, model.User{
		Name:               "Member",
		Email:              "member@example.com",
		Role:               model.RoleMember,
		SubscriptionTier:   tier.None,
		SubscriptionStatus: model.StatusInactive,
	})

	resp, _ := env.request(t, http.MethodPost, "/api/subscription/free", env.tokenFor(t, user), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got := env.reloadUser(t, user.ID)
	assert.Equal(t, tier.Free, got.SubscriptionTier)
	assert.Equal(t, model.StatusActive, got.SubscriptionStatus)
}

func TestSubscribeFreeRejectsExistingSubscription(t *testing.T) {
	env := newTestEnv(t)

	for _, existing := range []tier.Tier{tier.Free, tier.Paid} {
		user := env.createUser(t, model.User{
			Name:               "Member",
			Email:              fmt.Sprintf("member+%s@example.com", existing),
			Role:               model.RoleMember,
			SubscriptionTier:   existing,
			SubscriptionStatus: model.StatusActive,
		})

		resp, body := env.request(t, http.MethodPost, "/api/subscription/free", env.tokenFor(t, user), nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "You already have a subscription", body["error"])

		got := env.reloadUser(t, user.ID)
		assert.Equal(t, existing, got.SubscriptionTier)
	}
}

func TestCreateCheckoutSession(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, model.User{
		Name:               "Member",
		Email:              "member@example.com",
		Role:               model.RoleMember,
		SubscriptionTier:   tier.None,
		SubscriptionStatus: model.StatusInactive,
	})
	token := env.tokenFor(t, user)

	resp, body := env.request(t, http.MethodPost, "/api/subscription/create-checkout-session", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["session_id"])
	assert.NotEmpty(t, body["url"])

	// Starting a checkout never touches tier or status.
	got := env.reloadUser(t, user.ID)
	assert.Equal(t, tier.None, got.SubscriptionTier)
	assert.Equal(t, model.StatusInactive, got.SubscriptionStatus)
	assert.NotEmpty(t, got.StripeCustomerID)

	// A second checkout reuses the stored customer.
	resp, _ = env.request(t, http.MethodPost, "/api/subscription/create-checkout-session", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, env.provider.createCustomerCalls)
	assert.Equal(t, 2, env.provider.checkoutCalls)
}

func TestCreateCheckoutSessionRejectsActivePaid(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, model.User{
		Name:               "Member",
		Email:              "member@example.com",
		Role:               model.RoleMember,
		SubscriptionTier:   tier.Paid,
		SubscriptionStatus: model.StatusActive,
	})

	resp, body := env.request(t, http.MethodPost, "/api/subscription/create-checkout-session", env.tokenFor(t, user), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "You already have an active paid subscription", body["error"])
	assert.Zero(t, env.provider.checkoutCalls)
}

func TestCreateCheckoutSessionAllowedAfterCancellation(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, model.User{
		Name:               "Member",
		Email:              "member@example.com",
		Role:               model.RoleMember,
		SubscriptionTier:   tier.Free,
		SubscriptionStatus: model.StatusCanceled,
	})

	resp, _ := env.request(t, http.MethodPost, "/api/subscription/create-checkout-session", env.tokenFor(t, user), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateCheckoutSessionProviderFailure(t *testing.T) {
	env := newTestEnv(t)
	env.provider.failCheckout = true

	user := env.createUser(t, model.User{
		Name:  "Member",
		Email: "member@example.com",
		Role:  model.RoleMember,
	})

	resp, body := env.request(t, http.MethodPost, "/api/subscription/create-checkout-session", env.tokenFor(t, user), nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body["error"], "retry")
}

func TestCancelSubscription(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, model.User{
		Name:                 "Member",
		Email:                "member@example.com",
		Role:                 model.RoleMember,
		SubscriptionTier:     tier.Paid,
		SubscriptionStatus:   model.StatusActive,
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
	})

	resp, body := env.request(t, http.MethodPost, "/api/subscription/cancel", env.tokenFor(t, user), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["ends_at"])
	assert.Equal(t, 1, env.provider.cancelCalls)

	// Cancellation is deferred: local state is untouched until the provider
	// confirms via webhook.
	got := env.reloadUser(t, user.ID)
	assert.Equal(t, tier.Paid, got.SubscriptionTier)
	assert.Equal(t, model.StatusActive, got.SubscriptionStatus)
	assert.Equal(t, "sub_1", got.StripeSubscriptionID)
}

func TestCancelSubscriptionWithoutSubscription(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, model.User{
		Name:  "Member",
		Email: "member@example.com",
		Role:  model.RoleMember,
	})

	resp, body := env.request(t, http.MethodPost, "/api/subscription/cancel", env.tokenFor(t, user), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No active subscription found", body["error"])
	assert.Zero(t, env.provider.cancelCalls)
}

func TestGetStatus(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, model.User{
		Name:                 "Member",
		Email:                "member@example.com",
		Role:                 model.RoleMember,
		SubscriptionTier:     tier.Paid,
		SubscriptionStatus:   model.StatusActive,
		StripeSubscriptionID: "sub_1",
	})

	resp, body := env.request(t, http.MethodGet, "/api/subscription/status", env.tokenFor(t, user), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "paid", body["tier"])
	assert.Equal(t, "active", body["status"])

	details, ok := body["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "active", details["status"])
}

func TestGetStatusWithoutSubscription(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, model.User{
		Name:  "Member",
		Email: "member@example.com",
		Role:  model.RoleMember,
	})

	resp, body := env.request(t, http.MethodGet, "/api/subscription/status", env.tokenFor(t, user), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "none", body["tier"])
	assert.Nil(t, body["details"])
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	env := newTestEnv(t)

	payload := stripeEvent("customer.subscription.deleted", `{"id":"sub_1"}`)
	resp, body := env.webhook(t, payload, "t=1,v1=deadbeef")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid webhook signature", body["error"])
}

func TestWebhookCheckoutCompleted(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, model.User{
		Name:             "Member",
		Email:            "member@example.com",
		Role:             model.RoleMember,
		StripeCustomerID: "cus_1",
	})

	payload := stripeEvent("checkout.session.completed", fmt.Sprintf(
		`{"id":"cs_1","metadata":{"user_id":"%d"},"subscription":"sub_1"}`, user.ID))

	resp, body := env.webhook(t, payload, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["received"])

	got := env.reloadUser(t, user.ID)
	assert.Equal(t, tier.Paid, got.SubscriptionTier)
	assert.Equal(t, model.StatusActive, got.SubscriptionStatus)
	assert.Equal(t, "sub_1", got.StripeSubscriptionID)
}

func TestWebhookUnknownEventIsAcked(t *testing.T) {
	env := newTestEnv(t)

	payload := stripeEvent("invoice.paid", `{"id":"in_1"}`)
	resp, body := env.webhook(t, payload, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["received"])
}

// TestSubscriptionLifecycle walks a member through the full journey: free
// enrollment, paid checkout, webhook activation, deferred cancellation, and
// the final deletion event.
func TestSubscriptionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, model.User{
		Name:               "Member",
		Email:              "member@example.com",
		Role:               model.RoleMember,
		SubscriptionTier:   tier.None,
		SubscriptionStatus: model.StatusInactive,
	})
	token := env.tokenFor(t, user)

	// Free enrollment.
	resp, _ := env.request(t, http.MethodPost, "/api/subscription/free", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := env.reloadUser(t, user.ID)
	require.Equal(t, tier.Free, got.SubscriptionTier)

	// Checkout starts but changes nothing locally beyond the customer id.
	resp, _ = env.request(t, http.MethodPost, "/api/subscription/create-checkout-session", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = env.reloadUser(t, user.ID)
	require.Equal(t, tier.Free, got.SubscriptionTier)
	require.NotEmpty(t, got.StripeCustomerID)

	// The completed checkout arrives via webhook and activates paid access.
	payload := stripeEvent("checkout.session.completed", fmt.Sprintf(
		`{"id":"cs_1","metadata":{"user_id":"%d"},"subscription":"sub_life"}`, user.ID))
	resp, _ = env.webhook(t, payload, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got = env.reloadUser(t, user.ID)
	require.Equal(t, tier.Paid, got.SubscriptionTier)
	require.Equal(t, model.StatusActive, got.SubscriptionStatus)
	require.Equal(t, "sub_life", got.StripeSubscriptionID)

	// Cancellation is scheduled with the provider; paid access continues.
	resp, _ = env.request(t, http.MethodPost, "/api/subscription/cancel", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = env.reloadUser(t, user.ID)
	require.Equal(t, tier.Paid, got.SubscriptionTier)
	require.Equal(t, model.StatusActive, got.SubscriptionStatus)

	// The deletion event lands the user back on the free tier.
	payload = stripeEvent("customer.subscription.deleted", `{"id":"sub_life"}`)
	resp, _ = env.webhook(t, payload, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got = env.reloadUser(t, user.ID)
	assert.Equal(t, tier.Free, got.SubscriptionTier)
	assert.Equal(t, model.StatusCanceled, got.SubscriptionStatus)
	assert.Empty(t, got.StripeSubscriptionID)
	assert.NotEmpty(t, got.StripeCustomerID)
}
