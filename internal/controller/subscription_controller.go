package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"coachpage_backend/internal/model"
	"coachpage_backend/internal/reconciler"
	"coachpage_backend/pkg/billing"
	"coachpage_backend/pkg/tier"
	"coachpage_backend/pkg/utils/jwt"
)

type SubscriptionController struct {
	db            *gorm.DB
	provider      billing.Provider
	rec           *reconciler.Reconciler
	webhookSecret string
	priceID       string
}

func NewSubscriptionController(db *gorm.DB, provider billing.Provider, rec *reconciler.Reconciler, webhookSecret, priceID string) *SubscriptionController {
	return &SubscriptionController{
		db:            db,
		provider:      provider,
		rec:           rec,
		webhookSecret: webhookSecret,
		priceID:       priceID,
	}
}

func (ctrl *SubscriptionController) loadUser(c *fiber.Ctx) (*model.User, error) {
	claims := c.Locals("user").(*jwt.Claims)

	var user model.User
	if err := ctrl.db.First(&user, claims.UserID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetPricing lists the available tiers. Static data, no auth.
func (ctrl *SubscriptionController) GetPricing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"tiers": []fiber.Map{
			{
				"id":    "free",
				"name":  "Free Subscriber",
				"price": 0,
				"features": []string{
					"Access to public content",
					"Access to free subscriber content",
					"Weekly newsletter",
				},
			},
			{
				"id":       "paid",
				"name":     "Premium Member",
				"price":    29.99,
				"price_id": ctrl.priceID,
				"features": []string{
					"Access to all content",
					"Exclusive workout plans",
					"Meal prep guides",
					"Video tutorials",
					"Direct trainer support",
					"Downloadable PDFs",
				},
			},
		},
	})
}

// SubscribeFree enrolls a user with no subscription into the free tier.
func (ctrl *SubscriptionController) SubscribeFree(c *fiber.Ctx) error {
	user, err := ctrl.loadUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	if user.SubscriptionTier != tier.None {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "You already have a subscription",
		})
	}

	user.SubscriptionTier = tier.Free
	user.SubscriptionStatus = model.StatusActive

	if err := ctrl.db.Save(user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save subscription",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Successfully subscribed to free tier",
		"user":    user.PublicProfile(),
	})
}

// CreateCheckoutSession starts the hosted payment flow for the paid tier. It
// creates the Stripe customer at most once and never changes tier or status
// itself; those move only when the completed checkout is reconciled.
func (ctrl *SubscriptionController) CreateCheckoutSession(c *fiber.Ctx) error {
	user, err := ctrl.loadUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	if user.SubscriptionTier == tier.Paid && user.SubscriptionStatus == model.StatusActive {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "You already have an active paid subscription",
		})
	}

	customerID := user.StripeCustomerID
	if customerID == "" {
		customerID, err = ctrl.provider.CreateCustomer(user.Email, user.Name, user.ID)
		if err != nil {
			log.Printf("Could not create billing customer for user %d: %v", user.ID, err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "Could not create checkout session, please retry",
			})
		}

		user.StripeCustomerID = customerID
		if err := ctrl.db.Save(user).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not save customer id",
			})
		}
	}

	session, err := ctrl.provider.CreateCheckoutSession(customerID, user.ID)
	if err != nil {
		log.Printf("Could not create checkout session for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Could not create checkout session, please retry",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": session.ID,
		"url":        session.URL,
	})
}

// CancelSubscription schedules a deferred cancellation with the provider.
// Local tier and status stay untouched until the deletion event arrives; the
// user keeps paid access through the period they paid for.
func (ctrl *SubscriptionController) CancelSubscription(c *fiber.Ctx) error {
	user, err := ctrl.loadUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	if user.StripeSubscriptionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No active subscription found",
		})
	}

	sub, err := ctrl.provider.CancelAtPeriodEnd(user.StripeSubscriptionID)
	if err != nil {
		log.Printf("Could not cancel subscription %s: %v", user.StripeSubscriptionID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Could not cancel subscription, please retry",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Subscription will be canceled at the end of the billing period",
		"ends_at": sub.CurrentPeriodEnd,
	})
}

// GetStatus reports the local subscription record plus live provider details
// when a subscription exists.
func (ctrl *SubscriptionController) GetStatus(c *fiber.Ctx) error {
	user, err := ctrl.loadUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	var details fiber.Map
	if user.StripeSubscriptionID != "" {
		sub, err := ctrl.provider.GetSubscription(user.StripeSubscriptionID)
		if err != nil {
			log.Printf("Could not retrieve subscription %s: %v", user.StripeSubscriptionID, err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "Could not fetch subscription status, please retry",
			})
		}

		details = fiber.Map{
			"status":               sub.Status,
			"current_period_end":   sub.CurrentPeriodEnd,
			"cancel_at_period_end": sub.CancelAtPeriodEnd,
		}
	}

	return c.JSON(fiber.Map{
		"tier":    user.SubscriptionTier,
		"status":  user.SubscriptionStatus,
		"details": details,
	})
}

// HandleWebhook verifies and reconciles provider notifications. Rejected
// signatures get a 400; storage failures get a 500 so Stripe redelivers;
// everything else, including unknown event kinds and unmatched subjects, is
// acked.
func (ctrl *SubscriptionController) HandleWebhook(c *fiber.Ctx) error {
	event, err := billing.ParseEvent(c.Body(), c.Get("Stripe-Signature"), ctrl.webhookSecret)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid webhook signature",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Malformed event payload",
		})
	}

	log.Printf("Processing webhook event: %s", event.RawType)

	if err := ctrl.rec.Apply(event); err != nil {
		log.Printf("Webhook handler error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Webhook handler failed",
		})
	}

	return c.JSON(fiber.Map{"received": true})
}

// HandleCheckoutSuccess is the browser landing after a completed payment.
// The authoritative state change happens via the webhook, not here.
func (ctrl *SubscriptionController) HandleCheckoutSuccess(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message":    "Payment received. Your membership activates as soon as the payment is confirmed.",
		"session_id": c.Query("session_id"),
	})
}

// HandleCheckoutCancel is the browser landing after an abandoned checkout.
func (ctrl *SubscriptionController) HandleCheckoutCancel(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Checkout canceled. You have not been charged.",
	})
}
