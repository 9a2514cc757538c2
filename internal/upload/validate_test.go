package upload

import (
	"errors"
	"testing"

	"github.com/Dhrumilshah777/imageDrop/internal/apperror"
	"github.com/Dhrumilshah777/imageDrop/internal/model"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		file      model.LocalFile
		wantType  string
		wantTitle string
	}{
		{
			name:     "small png",
			file:     pngFile("a.png", 1024),
			wantType: "image/png",
		},
		{
			name:     "exactly 5 MiB",
			file:     pngFile("a.png", 5<<20),
			wantType: "image/png",
		},
		{
			name:      "6 MiB",
			file:      pngFile("big.png", 6291456),
			wantTitle: "File too large",
		},
		{
			name:      "declared size over the limit",
			file:      model.LocalFile{Name: "a.png", Size: 6 << 20, Data: pngHeader},
			wantTitle: "File too large",
		},
		{
			name:      "empty",
			file:      model.LocalFile{Name: "a.png"},
			wantTitle: "Could not read file",
		},
		{
			name:      "text pretending to be an image",
			file:      model.LocalFile{Name: "a.png", DeclaredType: "image/png", Size: 11, Data: []byte("hello world")},
			wantTitle: "Unsupported file type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.file, DefaultMaxFileSize)

			if tt.wantTitle == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				if got != tt.wantType {
					t.Errorf("Validate() type = %q, want %q", got, tt.wantType)
				}
				return
			}

			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Validate() error = %v, want validation error", err)
			}
			if title := apperror.Title(err); title != tt.wantTitle {
				t.Errorf("title = %q, want %q", title, tt.wantTitle)
			}
		})
	}
}

func TestValidate_TooLargeMessage(t *testing.T) {
	_, err := Validate(pngFile("big.png", 6<<20), DefaultMaxFileSize)
	if err == nil || err.Error() != "Please select an image smaller than 5MB." {
		t.Fatalf("Validate() error = %v", err)
	}
}
