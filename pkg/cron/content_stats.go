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

// StartContentStatsCron mails every trainer a weekly content report. Runs
// Mondays at 08:00.
func StartContentStatsCron(db *gorm.DB, mailer *email.Service) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc("0 8 * * 1", func() {
		sendWeeklyContentStats(db, mailer)
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}

func sendWeeklyContentStats(db *gorm.DB, mailer *email.Service) {
	if mailer == nil {
		return
	}

	log.Println("Sending weekly content stats...")

	var trainers []model.User
	if err := db.Where("role IN ?", []model.UserRole{model.RoleTrainer, model.RoleAdmin}).Find(&trainers).Error; err != nil {
		log.Printf("Error fetching trainers: %v", err)
		return
	}

	weekStart := time.Now().AddDate(0, 0, -7)

	var subscribers int64
	db.Model(&model.User{}).
		Where("subscription_tier IN ?", []tier.Tier{tier.Free, tier.Paid}).
		Count(&subscribers)

	for _, trainer := range trainers {
		var totalPosts, totalViews int64
		db.Model(&model.Post{}).
			Where("author_id = ? AND published = ?", trainer.ID, true).
			Count(&totalPosts)
		db.Model(&model.Post{}).
			Where("author_id = ?", trainer.ID).
			Select("COALESCE(SUM(views), 0)").
			Scan(&totalViews)

		var topPost model.Post
		topTitle := ""
		if err := db.Where("author_id = ? AND published = ?", trainer.ID, true).
			Order("views DESC").
			First(&topPost).Error; err == nil {
			topTitle = topPost.Title
		}

		if err := mailer.SendWeeklyStatsEmail(trainer.Email, trainer.Name, totalPosts, totalViews, subscribers, topTitle, weekStart); err != nil {
			log.Printf("Error sending weekly stats to %s: %v", trainer.Email, err)
		}
	}
}
