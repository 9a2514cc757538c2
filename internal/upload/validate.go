package upload

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Dhrumilshah777/imageDrop/internal/apperror"
	"github.com/Dhrumilshah777/imageDrop/internal/model"
)

// DefaultMaxFileSize is 5 MiB.
const DefaultMaxFileSize int64 = 5 << 20

// Validate checks a selected file before anything leaves the machine and
// returns its sniffed content type. The declared type is not trusted.
func Validate(file model.LocalFile, maxSize int64) (string, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	if len(file.Data) == 0 {
		return "", apperror.ValidationFailed("file", "could not read file").
			WithTitle("Could not read file")
	}

	size := file.Size
	if n := int64(len(file.Data)); n > size {
		size = n
	}
	if size > maxSize {
		return "", ErrTooLarge(maxSize)
	}

	mt := mimetype.Detect(file.Data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", apperror.ValidationFailed("file",
			fmt.Sprintf("%s is not an image (detected %s).", file.Name, mt.String())).
			WithTitle("Unsupported file type")
	}
	return mt.String(), nil
}

// ErrTooLarge is the validation error for files over maxSize.
func ErrTooLarge(maxSize int64) error {
	return apperror.ValidationFailed("file",
		fmt.Sprintf("Please select an image smaller than %s.", formatSize(maxSize))).
		WithTitle("File too large")
}

// formatSize renders whole megabytes as "5MB" and anything else in KB.
func formatSize(n int64) string {
	if n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%dKB", n>>10)
}
