package seed

import (
	"log"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"coachpage_backend/internal/model"
	"coachpage_backend/pkg/tier"
)

// SeedDemoData creates a trainer with sample posts at every access level.
// Idempotent: existing rows are reused.
func SeedDemoData(db *gorm.DB) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)

	trainer := model.User{
		Name:               "Demo Trainer",
		Email:              "trainer@coachpage.app",
		Password:           string(password),
		Role:               model.RoleTrainer,
		SubscriptionTier:   tier.None,
		SubscriptionStatus: model.StatusInactive,
	}
	if err := db.FirstOrCreate(&trainer, model.User{Email: trainer.Email}).Error; err != nil {
		log.Printf("Error creating demo trainer: %v", err)
		return
	}

	members := []model.User{
		{
			Name:               "Free Member",
			Email:              "free@coachpage.app",
			Password:           string(password),
			Role:               model.RoleMember,
			SubscriptionTier:   tier.Free,
			SubscriptionStatus: model.StatusActive,
		},
		{
			Name:               "New Member",
			Email:              "new@coachpage.app",
			Password:           string(password),
			Role:               model.RoleMember,
			SubscriptionTier:   tier.None,
			SubscriptionStatus: model.StatusInactive,
		},
	}
	for _, member := range members {
		if err := db.FirstOrCreate(&member, model.User{Email: member.Email}).Error; err != nil {
			log.Printf("Error creating member %s: %v", member.Email, err)
		}
	}

	posts := []model.Post{
		{
			Title:       "5 Stretches To Start Your Day",
			Content:     "A gentle mobility routine anyone can do in ten minutes.",
			AccessLevel: tier.AccessPublic,
			AuthorID:    trainer.ID,
		},
		{
			Title:       "Beginner Full-Body Program",
			Content:     "A three-day split for your first month of training.",
			AccessLevel: tier.AccessFree,
			AuthorID:    trainer.ID,
		},
		{
			Title:       "12-Week Hypertrophy Block",
			Content:     "The complete periodized program with progression notes.",
			AccessLevel: tier.AccessPaid,
			AuthorID:    trainer.ID,
		},
	}
	for _, post := range posts {
		if err := db.FirstOrCreate(&post, model.Post{Title: post.Title}).Error; err != nil {
			log.Printf("Error creating post %q: %v", post.Title, err)
		}
	}

	log.Println("Demo data seeded successfully!")
}
