package reconciler

import (
	"errors"
	"log"
	"strconv"
	"sync"

	"gorm.io/gorm"

	"coachpage_backend/internal/model"
	"coachpage_backend/pkg/billing"
	"coachpage_backend/pkg/email"
	"coachpage_backend/pkg/tier"
)

// Reconciler applies verified billing events to the local subscription
// record. Every handler fully overwrites the fields it owns, so retried and
// duplicated events converge on the same state. Events whose subject cannot
// be matched are logged and dropped; they never fail the notification.
type Reconciler struct {
	db     *gorm.DB
	mailer *email.Service

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(db *gorm.DB, mailer *email.Service) *Reconciler {
	return &Reconciler{
		db:     db,
		mailer: mailer,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Apply dispatches one event. The returned error is non-nil only for storage
// failures; those are surfaced so the provider retries the delivery.
func (r *Reconciler) Apply(event *billing.Event) error {
	switch event.Type {
	case billing.EventCheckoutCompleted:
		return r.applyCheckoutCompleted(event)
	case billing.EventSubscriptionUpdated:
		return r.applySubscriptionUpdated(event)
	case billing.EventSubscriptionDeleted:
		return r.applySubscriptionDeleted(event)
	case billing.EventPaymentFailed:
		return r.applyPaymentFailed(event)
	}

	log.Printf("Ignoring unhandled event type: %s", event.RawType)
	return nil
}

func (r *Reconciler) applyCheckoutCompleted(event *billing.Event) error {
	unlock := r.lockSubject("user", formatUint(event.UserID))
	defer unlock()

	var user model.User
	if err := r.db.First(&user, event.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Checkout completed for unknown user %d, dropping", event.UserID)
			return nil
		}
		return err
	}

	user.SubscriptionTier = tier.Paid
	user.SubscriptionStatus = model.StatusActive
	user.StripeSubscriptionID = event.SubscriptionID

	if err := r.db.Save(&user).Error; err != nil {
		return err
	}

	log.Printf("User %d subscribed successfully (subscription %s)", user.ID, event.SubscriptionID)

	if r.mailer != nil {
		if err := r.mailer.SendSubscriptionStartedEmail(user.Email, user.Name); err != nil {
			log.Printf("Could not send subscription email: %v", err)
		}
	}

	return nil
}

func (r *Reconciler) applySubscriptionUpdated(event *billing.Event) error {
	unlock := r.lockSubject("sub", event.SubscriptionID)
	defer unlock()

	var user model.User
	if err := r.db.Where("stripe_subscription_id = ?", event.SubscriptionID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Update for unmatched subscription %s, ignoring", event.SubscriptionID)
			return nil
		}
		return err
	}

	user.SubscriptionStatus = model.SubscriptionStatus(event.Status)
	if event.PeriodEnd != nil {
		user.SubscriptionEndDate = event.PeriodEnd
	}

	if err := r.db.Save(&user).Error; err != nil {
		return err
	}

	log.Printf("Subscription %s updated (status %s)", event.SubscriptionID, event.Status)
	return nil
}

func (r *Reconciler) applySubscriptionDeleted(event *billing.Event) error {
	unlock := r.lockSubject("sub", event.SubscriptionID)
	defer unlock()

	var user model.User
	if err := r.db.Where("stripe_subscription_id = ?", event.SubscriptionID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Deletion for unmatched subscription %s, ignoring", event.SubscriptionID)
			return nil
		}
		return err
	}

	user.SubscriptionTier = tier.Free
	user.SubscriptionStatus = model.StatusCanceled
	user.StripeSubscriptionID = ""

	if err := r.db.Save(&user).Error; err != nil {
		return err
	}

	log.Printf("Subscription %s canceled", event.SubscriptionID)

	if r.mailer != nil {
		if err := r.mailer.SendSubscriptionCanceledEmail(user.Email, user.Name); err != nil {
			log.Printf("Could not send cancellation email: %v", err)
		}
	}

	return nil
}

func (r *Reconciler) applyPaymentFailed(event *billing.Event) error {
	unlock := r.lockSubject("cus", event.CustomerID)
	defer unlock()

	var user model.User
	if err := r.db.Where("stripe_customer_id = ?", event.CustomerID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Payment failure for unmatched customer %s, ignoring", event.CustomerID)
			return nil
		}
		return err
	}

	// Tier stays paid: payment failure opens a grace period that ends only
	// with an explicit subscription deletion event.
	user.SubscriptionStatus = model.StatusPastDue

	if err := r.db.Save(&user).Error; err != nil {
		return err
	}

	log.Printf("Payment failed for user %d", user.ID)
	return nil
}

// lockSubject serializes handlers per correlation key so two concurrent
// events for the same subject cannot interleave their read-modify-write.
func (r *Reconciler) lockSubject(kind, key string) func() {
	r.mu.Lock()
	lock, ok := r.locks[kind+":"+key]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[kind+":"+key] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func formatUint(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
