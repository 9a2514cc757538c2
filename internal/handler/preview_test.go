package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/Dhrumilshah777/imageDrop/internal/handler"
	"github.com/Dhrumilshah777/imageDrop/internal/preview"
)

func TestPreview_Get(t *testing.T) {
	e := newEnv(t)
	token := e.previews.Create("owner-1", "cat.png", pngBytes(t, 2, 2))

	router := chi.NewRouter()
	router.Get("/previews/{token}", handler.NewPreviewHandler(e.previews).HandleGet)

	tests := []struct {
		name     string
		path     string
		userID   string
		wantCode int
	}{
		{"owner", preview.URL(token), "owner-1", http.StatusOK},
		{"someone else", preview.URL(token), "owner-2", http.StatusNotFound},
		{"unknown token", preview.URL("nope"), "owner-1", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, as(httptest.NewRequest(http.MethodGet, tt.path, nil), tt.userID))
			assert.Equal(t, tt.wantCode, rr.Code)
		})
	}
}

func TestPreview_GoneAfterRevoke(t *testing.T) {
	e := newEnv(t)
	token := e.previews.Create("owner-1", "cat.png", pngBytes(t, 2, 2))
	e.previews.Revoke(token)

	router := chi.NewRouter()
	router.Get("/previews/{token}", handler.NewPreviewHandler(e.previews).HandleGet)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, as(httptest.NewRequest(http.MethodGet, preview.URL(token), nil), "owner-1"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
