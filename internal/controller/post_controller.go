package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"coachpage_backend/internal/middleware"
	"coachpage_backend/internal/model"
	"coachpage_backend/pkg/tier"
)

type PostController struct {
	db *gorm.DB
}

func NewPostController(db *gorm.DB) *PostController {
	return &PostController{db: db}
}

type PostInput struct {
	Title       string            `json:"title" validate:"required"`
	Content     string            `json:"content" validate:"required"`
	Excerpt     string            `json:"excerpt"`
	AccessLevel tier.AccessLevel  `json:"access_level" validate:"required"`
	ContentType model.ContentType `json:"content_type"`
	Tags        datatypes.JSON    `json:"tags"`
	Published   *bool             `json:"published"`
}

// PostUpdateInput applies only the fields the client actually sent. Nil means
// "not provided"; an intentionally empty string still counts as provided.
type PostUpdateInput struct {
	Title       *string            `json:"title"`
	Content     *string            `json:"content"`
	Excerpt     *string            `json:"excerpt"`
	AccessLevel *tier.AccessLevel  `json:"access_level"`
	ContentType *model.ContentType `json:"content_type"`
	Tags        *datatypes.JSON    `json:"tags"`
	Published   *bool              `json:"published"`
}

// requesterTier resolves the caller's tier from the database, degrading to
// none for anonymous callers and stale tokens.
func (ctrl *PostController) requesterTier(c *fiber.Ctx) tier.Tier {
	claims := middleware.Claims(c)
	if claims == nil {
		return tier.None
	}

	var user model.User
	if err := ctrl.db.First(&user, claims.UserID).Error; err != nil {
		return tier.None
	}

	return user.Tier()
}

// ListPosts returns published posts visible to the caller's tier, newest
// first.
func (ctrl *PostController) ListPosts(c *fiber.Ctx) error {
	userTier := ctrl.requesterTier(c)

	var posts []model.Post
	query := ctrl.db.
		Where("published = ?", true).
		Where("access_level IN ?", tier.VisibleLevels(userTier)).
		Preload("Author").
		Preload("Media").
		Order("created_at DESC")

	if err := query.Find(&posts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch posts",
		})
	}

	return c.JSON(fiber.Map{
		"posts":       posts,
		"user_tier":   userTier,
		"total_count": len(posts),
	})
}

// GetPost gates a single post behind the tier policy. A denial names the
// required and current tiers and never leaks the post body. An allowed read
// increments the view counter before returning.
func (ctrl *PostController) GetPost(c *fiber.Ctx) error {
	id := c.Params("id")

	var post model.Post
	if err := ctrl.db.Preload("Author").Preload("Media").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Post not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch post",
		})
	}

	userTier := ctrl.requesterTier(c)
	if !tier.CanAccess(userTier, post.AccessLevel) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":         "Subscription required to view this content",
			"required_tier": post.AccessLevel,
			"current_tier":  userTier,
		})
	}

	if err := ctrl.db.Model(&post).
		UpdateColumn("views", gorm.Expr("views + ?", 1)).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not record view",
		})
	}
	post.Views++

	return c.JSON(fiber.Map{"post": post})
}

// CreatePost creates a post for the trainer loaded by the role middleware.
func (ctrl *PostController) CreatePost(c *fiber.Ctx) error {
	account := c.Locals("account").(*model.User)

	input := new(PostInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if input.Title == "" || input.Content == "" || input.AccessLevel == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Title, content, and access level are required",
		})
	}

	if !tier.ValidAccessLevel(input.AccessLevel) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Access level must be public, free or paid",
		})
	}

	excerpt := input.Excerpt
	if excerpt == "" {
		excerpt = truncate(input.Content, 150)
	}

	contentType := input.ContentType
	if contentType == "" {
		contentType = model.ContentTypeText
	}

	published := true
	if input.Published != nil {
		published = *input.Published
	}

	post := model.Post{
		Title:       input.Title,
		Content:     input.Content,
		Excerpt:     excerpt,
		AccessLevel: input.AccessLevel,
		ContentType: contentType,
		Tags:        input.Tags,
		Published:   published,
		AuthorID:    account.ID,
	}

	if err := ctrl.db.Create(&post).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create post",
		})
	}

	ctrl.db.Preload("Author").First(&post, post.ID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Post created successfully",
		"post":    post,
	})
}

// UpdatePost applies a partial update to the caller's own post.
func (ctrl *PostController) UpdatePost(c *fiber.Ctx) error {
	account := c.Locals("account").(*model.User)
	id := c.Params("id")

	input := new(PostUpdateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	var post model.Post
	if err := ctrl.db.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Post not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch post",
		})
	}

	if post.AuthorID != account.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Not authorized to update this post",
		})
	}

	if input.Title != nil {
		post.Title = *input.Title
	}
	if input.Content != nil {
		post.Content = *input.Content
	}
	if input.Excerpt != nil {
		post.Excerpt = *input.Excerpt
	}
	if input.AccessLevel != nil {
		if !tier.ValidAccessLevel(*input.AccessLevel) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Access level must be public, free or paid",
			})
		}
		post.AccessLevel = *input.AccessLevel
	}
	if input.ContentType != nil {
		post.ContentType = *input.ContentType
	}
	if input.Tags != nil {
		post.Tags = *input.Tags
	}
	if input.Published != nil {
		post.Published = *input.Published
	}

	if err := ctrl.db.Save(&post).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update post",
		})
	}

	ctrl.db.Preload("Author").Preload("Media").First(&post, post.ID)

	return c.JSON(fiber.Map{
		"message": "Post updated successfully",
		"post":    post,
	})
}

// DeletePost removes the caller's own post.
func (ctrl *PostController) DeletePost(c *fiber.Ctx) error {
	account := c.Locals("account").(*model.User)
	id := c.Params("id")

	var post model.Post
	if err := ctrl.db.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Post not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch post",
		})
	}

	if post.AuthorID != account.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Not authorized to delete this post",
		})
	}

	if err := ctrl.db.Delete(&post).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not delete post",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Post deleted successfully",
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
