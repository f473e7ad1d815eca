package controller

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"coachpage_backend/internal/model"
	"coachpage_backend/pkg/tier"
)

type StatsController struct {
	db *gorm.DB
}

func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

type DashboardStats struct {
	TotalPosts       int64             `json:"total_posts"`
	PublishedPosts   int64             `json:"published_posts"`
	TotalViews       int64             `json:"total_views"`
	TopPosts         []TopPost         `json:"top_posts"`
	AccessLevelStats []AccessLevelStat `json:"access_level_stats"`
	Subscribers      SubscriberStats   `json:"subscribers"`
}

type TopPost struct {
	ID          uint             `json:"id"`
	Title       string           `json:"title"`
	Views       int64            `json:"views"`
	AccessLevel tier.AccessLevel `json:"access_level"`
}

type AccessLevelStat struct {
	AccessLevel tier.AccessLevel `json:"access_level"`
	Count       int64            `json:"count"`
	Views       int64            `json:"views"`
}

type SubscriberStats struct {
	Free int64 `json:"free"`
	Paid int64 `json:"paid"`
}

// GetDashboardStats aggregates a trainer's content and audience numbers.
func (ctrl *StatsController) GetDashboardStats(c *fiber.Ctx) error {
	account := c.Locals("account").(*model.User)

	var stats DashboardStats

	ctrl.db.Model(&model.Post{}).
		Where("author_id = ?", account.ID).
		Count(&stats.TotalPosts)

	ctrl.db.Model(&model.Post{}).
		Where("author_id = ? AND published = ?", account.ID, true).
		Count(&stats.PublishedPosts)

	ctrl.db.Model(&model.Post{}).
		Where("author_id = ?", account.ID).
		Select("COALESCE(SUM(views), 0)").
		Scan(&stats.TotalViews)

	ctrl.db.Model(&model.Post{}).
		Select("id, title, views, access_level").
		Where("author_id = ? AND published = ?", account.ID, true).
		Order("views DESC").
		Limit(5).
		Scan(&stats.TopPosts)

	ctrl.db.Model(&model.Post{}).
		Select("access_level, COUNT(*) as count, COALESCE(SUM(views), 0) as views").
		Where("author_id = ?", account.ID).
		Group("access_level").
		Scan(&stats.AccessLevelStats)

	ctrl.db.Model(&model.User{}).
		Where("subscription_tier = ? AND subscription_status = ?", tier.Free, model.StatusActive).
		Count(&stats.Subscribers.Free)

	ctrl.db.Model(&model.User{}).
		Where("subscription_tier = ?", tier.Paid).
		Count(&stats.Subscribers.Paid)

	return c.JSON(stats)
}
