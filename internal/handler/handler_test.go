package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dhrumilshah777/imageDrop/internal/auth"
	"github.com/Dhrumilshah777/imageDrop/internal/blobstore"
	"github.com/Dhrumilshah777/imageDrop/internal/diagnostics"
	docsqlite "github.com/Dhrumilshah777/imageDrop/internal/docstore/sqlite"
	"github.com/Dhrumilshah777/imageDrop/internal/model"
	"github.com/Dhrumilshah777/imageDrop/internal/preview"
	sqliteRepo "github.com/Dhrumilshah777/imageDrop/internal/repository/sqlite"
	"github.com/Dhrumilshah777/imageDrop/internal/service"
	"github.com/Dhrumilshah777/imageDrop/internal/upload"
)

// =========================================================================
// TEST ENVIRONMENT
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// env wires real services on in-memory stores.
type env struct {
	logger   *slog.Logger
	tokens   *auth.TokenService
	auth     *service.AuthService
	docs     *docsqlite.Store
	previews *preview.Registry
	uploads  *upload.Manager
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := testLogger()

	users, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { users.Close() })

	docs, err := docsqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { docs.Close() })

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", 0)
	require.NoError(t, err)

	previews := preview.NewRegistry(logger)
	orchestrator := upload.NewOrchestrator(blobstore.Inline{}, docs, diagnostics.NewRecorder(4), logger, upload.DefaultMaxFileSize)
	uploads := upload.NewManager(orchestrator, previews, logger)
	t.Cleanup(uploads.Close)

	return &env{
		logger:   logger,
		tokens:   tokens,
		auth:     service.NewAuthService(users, tokens, auth.NewPasswordServiceForTest(4), logger),
		docs:     docs,
		previews: previews,
		uploads:  uploads,
	}
}

// signup creates an account and returns its user.
func (e *env) signup(t *testing.T, email, name string) *model.User {
	t.Helper()
	res, err := e.auth.Signup(context.Background(), email, "password-123", name)
	require.NoError(t, err)
	return res.User
}

// as returns r carrying userID the way RequireAuth would.
func as(r *http.Request, userID string) *http.Request {
	return r.WithContext(auth.WithUserID(r.Context(), userID))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// multipartBody builds a form with a single "file" part.
func multipartBody(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}
