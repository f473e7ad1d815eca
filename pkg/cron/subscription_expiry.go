package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"coachpage_backend/internal/model"
	"coachpage_backend/pkg/email"
	"coachpage_backend/pkg/tier"
)

// StartSubscriptionExpiryCron warns paid members 7 and 3 days before their
// billing period ends. Runs daily at 09:00.
func StartSubscriptionExpiryCron(db *gorm.DB, mailer *email.Service) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc("0 9 * * *", func() {
		checkExpiringSubscriptions(db, mailer)
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}

func checkExpiringSubscriptions(db *gorm.DB, mailer *email.Service) {
	log.Println("Checking for expiring subscriptions...")

	warningDays := []int{7, 3}

	for _, days := range warningDays {
		dayStart := time.Now().AddDate(0, 0, days).Truncate(24 * time.Hour)
		dayEnd := dayStart.Add(24 * time.Hour)

		var users []model.User
		err := db.Where("subscription_tier = ? AND subscription_status = ?", tier.Paid, model.StatusActive).
			Where("subscription_end_date >= ? AND subscription_end_date < ?", dayStart, dayEnd).
			Find(&users).Error
		if err != nil {
			log.Printf("Error fetching expiring subscriptions: %v", err)
			continue
		}

		log.Printf("Found %d subscriptions expiring in %d days", len(users), days)

		if mailer == nil {
			continue
		}

		for _, user := range users {
			if user.SubscriptionEndDate == nil {
				continue
			}
			if err := mailer.SendSubscriptionExpiryWarning(user.Email, user.Name, *user.SubscriptionEndDate, days); err != nil {
				log.Printf("Error sending expiry warning to %s: %v", user.Email, err)
			}
		}
	}
}
