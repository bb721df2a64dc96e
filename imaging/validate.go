package imaging

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxUploadSize is the default upload limit (16MB)
const MaxUploadSize = 16 << 20

var (
	ErrUnsupportedType = errors.New("Please select a valid image file (JPG, PNG, GIF)")
	ErrTooLarge        = errors.New("File size must be less than 16MB")
	ErrEmpty           = errors.New("Please select an image first!")
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
}

// IsAllowedType reports whether a MIME type (parameters ignored) is accepted
func IsAllowedType(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	return allowedTypes[mediaType]
}

// Upload is an image the user selected, already validated
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// SizeMB returns the upload size in megabytes
func (u *Upload) SizeMB() float64 {
	return float64(len(u.Data)) / 1024 / 1024
}

// Validate checks a selected file. The declared type, when present, and the
// sniffed type of the content must both be accepted image types, and the
// size must not exceed maxSize.
func Validate(fileName, declaredType string, data []byte, maxSize int64) (*Upload, error) {
	if maxSize <= 0 {
		maxSize = MaxUploadSize
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if declaredType != "" && declaredType != "application/octet-stream" && !IsAllowedType(declaredType) {
		return nil, fmt.Errorf("declared type %q: %w", declaredType, ErrUnsupportedType)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%d bytes: %w", len(data), ErrTooLarge)
	}

	detected := mimetype.Detect(data)
	if !IsAllowedType(detected.String()) {
		return nil, fmt.Errorf("detected type %q: %w", detected.String(), ErrUnsupportedType)
	}

	return &Upload{
		FileName:    fileName,
		ContentType: detected.String(),
		Data:        data,
	}, nil
}
