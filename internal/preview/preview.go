// Package preview holds short-lived local previews of selected files.
//
// A preview exists from the moment a file is selected until the upload
// session releases it (upload finished or failed, selection replaced or
// cleared). Every Create must be matched by a Revoke; Len exists so tests
// can check nothing leaked.
package preview

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// MaxDimension bounds the longer side of a generated thumbnail.
const MaxDimension = 480

// Preview is the servable form of a selected file.
type Preview struct {
	Owner       string
	ContentType string
	Data        []byte
}

// Registry maps opaque tokens to previews.
type Registry struct {
	mu     sync.Mutex
	items  map[string]Preview
	logger *slog.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{items: make(map[string]Preview), logger: logger}
}

// Create stores a preview of data for owner and returns its token. Large
// images are scaled down; anything imaging cannot decode is kept as is.
func (r *Registry) Create(owner, name string, data []byte) string {
	p := Preview{Owner: owner, ContentType: http.DetectContentType(data), Data: data}

	if thumb, contentType, err := thumbnail(data); err != nil {
		r.logger.Debug("preview: keeping original bytes",
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
	} else if thumb != nil {
		p.Data, p.ContentType = thumb, contentType
	}

	token := uuid.NewString()
	r.mu.Lock()
	r.items[token] = p
	r.mu.Unlock()
	return token
}

// thumbnail returns nil bytes when the image is already small enough.
func thumbnail(data []byte) ([]byte, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("reading image header: %w", err)
	}
	if cfg.Width <= MaxDimension && cfg.Height <= MaxDimension {
		return nil, "", nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("decoding image: %w", err)
	}
	small := imaging.Fit(img, MaxDimension, MaxDimension, imaging.Lanczos)

	// PNG keeps transparency, everything else becomes JPEG.
	out, contentType := imaging.JPEG, "image/jpeg"
	if format == "png" {
		out, contentType = imaging.PNG, "image/png"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, small, out); err != nil {
		return nil, "", fmt.Errorf("encoding thumbnail: %w", err)
	}
	return buf.Bytes(), contentType, nil
}

// URL returns the path the preview is served at.
func URL(token string) string {
	return "/previews/" + token
}

// Get looks up a preview.
func (r *Registry) Get(token string) (Preview, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[token]
	return p, ok
}

// Revoke releases a preview. Revoking an unknown or already revoked token
// is a no-op.
func (r *Registry) Revoke(token string) {
	if token == "" {
		return
	}
	r.mu.Lock()
	delete(r.items, token)
	r.mu.Unlock()
}

// Len returns the number of live previews.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
