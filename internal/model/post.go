package model

import (
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"coachpage_backend/pkg/tier"
)

type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeVideo ContentType = "video"
	ContentTypePDF   ContentType = "pdf"
	ContentTypeMixed ContentType = "mixed"
)

type Post struct {
	gorm.Model
	Title       string           `json:"title" gorm:"not null"`
	Slug        string           `json:"slug" gorm:"uniqueIndex;not null"`
	Content     string           `json:"content" gorm:"type:text;not null"`
	Excerpt     string           `json:"excerpt"`
	AccessLevel tier.AccessLevel `json:"access_level" gorm:"index;default:'public';not null"`
	ContentType ContentType      `json:"content_type" gorm:"default:'text'"`
	Tags        datatypes.JSON   `json:"tags"`
	Published   bool             `json:"published" gorm:"index;default:true"`
	Views       int64            `json:"views" gorm:"default:0"`
	AuthorID    uint             `json:"author_id" gorm:"index"`

	Author User        `json:"author" gorm:"foreignKey:AuthorID"`
	Media  []PostMedia `json:"media"`
}

type PostMedia struct {
	gorm.Model
	PostID   uint   `json:"post_id" gorm:"index"`
	Type     string `json:"type"`
	URL      string `json:"url" gorm:"not null"`
	Filename string `json:"filename"`

	Post Post `json:"-" gorm:"foreignKey:PostID"`
}

// BeforeCreate derives the slug from the title, suffixing a timestamp when
// the slug is already taken.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.Slug == "" {
		s := slug.Make(p.Title)

		var count int64
		tx.Model(&Post{}).Where("slug = ?", s).Count(&count)
		if count > 0 {
			s = fmt.Sprintf("%s-%d", s, time.Now().UnixNano())
		}

		p.Slug = s
	}
	return nil
}
