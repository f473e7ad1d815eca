package controller

import (
	"errors"
	"log"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"coachpage_backend/internal/model"
	imageutil "coachpage_backend/pkg/utils/image"
	"coachpage_backend/pkg/utils/storage"
	"coachpage_backend/pkg/utils/validation"
)

const MaxMediaPerPost = 16

type UploadController struct {
	db      *gorm.DB
	storage *storage.MediaStorage
}

func NewUploadController(db *gorm.DB, mediaStorage *storage.MediaStorage) *UploadController {
	return &UploadController{db: db, storage: mediaStorage}
}

// UploadPostMedia attaches a file to the caller's own post. Images are
// re-encoded before upload; videos and PDFs are stored as sent.
func (ctrl *UploadController) UploadPostMedia(c *fiber.Ctx) error {
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
			"error": "Not authorized to upload to this post",
		})
	}

	var mediaCount int64
	ctrl.db.Model(&model.PostMedia{}).Where("post_id = ?", post.ID).Count(&mediaCount)
	if mediaCount >= MaxMediaPerPost {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Maximum media limit reached (16)",
		})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file uploaded",
		})
	}

	if err := validation.ValidateMedia(file); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	kind := validation.MediaKind(file.Filename)

	url, err := ctrl.uploadFile(c, &post, file, kind)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not upload file",
		})
	}

	media := model.PostMedia{
		PostID:   post.ID,
		Type:     kind,
		URL:      url,
		Filename: file.Filename,
	}

	if err := ctrl.db.Create(&media).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save media record",
		})
	}

	return c.JSON(fiber.Map{
		"message": "File uploaded successfully",
		"media":   media,
	})
}

func (ctrl *UploadController) uploadFile(c *fiber.Ctx, post *model.Post, file *multipart.FileHeader, kind string) (string, error) {
	if kind == "image" {
		buf, contentType, err := imageutil.ProcessImage(file)
		if err != nil {
			return "", err
		}
		return ctrl.storage.Upload(c.Context(), post.ID, file.Filename, contentType, buf)
	}

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	return ctrl.storage.Upload(c.Context(), post.ID, file.Filename, file.Header.Get("Content-Type"), src)
}

// DeletePostMedia removes an attachment from the caller's own post.
func (ctrl *UploadController) DeletePostMedia(c *fiber.Ctx) error {
	account := c.Locals("account").(*model.User)
	mediaID := c.Params("media_id")

	var media model.PostMedia
	if err := ctrl.db.Preload("Post").First(&media, mediaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Media not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch media",
		})
	}

	if media.Post.AuthorID != account.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Not authorized to delete this media",
		})
	}

	if err := ctrl.storage.Delete(c.Context(), media.URL); err != nil {
		log.Printf("Could not delete object %s: %v", media.URL, err)
	}

	if err := ctrl.db.Delete(&media).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not delete media",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
