package validation

import (
	"errors"
	"mime/multipart"
	"path/filepath"
	"strings"
)

var (
	ErrFileSize     = errors.New("file size exceeds limit of 100MB")
	ErrFileType     = errors.New("invalid file type. Allowed types: JPG, PNG, WEBP, MP4, MOV, PDF")
	ErrFileRequired = errors.New("no file provided")
)

const MaxMediaSize = 100 * 1024 * 1024 // 100MB

// MediaKind is recorded on the post so the client can render the attachment.
var mediaKinds = map[string]string{
	".jpg":  "image",
	".jpeg": "image",
	".png":  "image",
	".webp": "image",
	".mp4":  "video",
	".mov":  "video",
	".pdf":  "pdf",
}

func ValidateMedia(file *multipart.FileHeader) error {
	if file == nil {
		return ErrFileRequired
	}

	if file.Size > MaxMediaSize {
		return ErrFileSize
	}

	ext := filepath.Ext(strings.ToLower(file.Filename))
	if _, ok := mediaKinds[ext]; !ok {
		return ErrFileType
	}

	return nil
}

// MediaKind returns image, video or pdf for an already validated file.
func MediaKind(filename string) string {
	return mediaKinds[filepath.Ext(strings.ToLower(filename))]
}
