package handler

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/Dhrumilshah777/imageDrop/internal/apperror"
	"github.com/Dhrumilshah777/imageDrop/internal/auth"
	"github.com/Dhrumilshah777/imageDrop/internal/gate"
	"github.com/Dhrumilshah777/imageDrop/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// DefaultIdentityTimeout bounds the identity lookup behind the gate.
const DefaultIdentityTimeout = 2 * time.Second

// HomeOptions configures the gate page.
type HomeOptions struct {
	IdentityTimeout time.Duration
	GitHubEnabled   bool
	MaxUploadBytes  int64
}

// HomeHandler serves the gate: a loading view while the identity lookup is
// pending, a sign-in call to action for visitors, and the uploader plus
// gallery for signed-in users.
type HomeHandler struct {
	templates  *template.Template
	identities IdentityResolver
	opts       HomeOptions
	logger     *slog.Logger
}

// NewHomeHandler parses the embedded templates once.
func NewHomeHandler(identities IdentityResolver, opts HomeOptions, logger *slog.Logger) (*HomeHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if opts.IdentityTimeout <= 0 {
		opts.IdentityTimeout = DefaultIdentityTimeout
	}
	return &HomeHandler{
		templates:  tmpl,
		identities: identities,
		opts:       opts,
		logger:     logger,
	}, nil
}

// resolve turns the request's session into an AuthState. A lookup that
// does not finish in time leaves the state pending.
func (h *HomeHandler) resolve(r *http.Request) gate.AuthState {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return gate.AuthState{}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.IdentityTimeout)
	defer cancel()

	id, err := h.identities.Identity(ctx, userID)
	switch {
	case err == nil:
		return gate.AuthState{Identity: &id}
	case errors.Is(err, apperror.ErrNotFound):
		// The cookie outlived its account.
		return gate.AuthState{}
	default:
		h.logger.Warn("identity lookup did not complete",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return gate.AuthState{Pending: true}
	}
}

type homePage struct {
	Title         string
	View          gate.View
	Identity      *model.Identity
	GitHubEnabled bool
	MaxUploadMB   int64
}

// HandleHome renders the page for the visitor's view.
//
// HTTP: GET /
func (h *HomeHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	state := h.resolve(r)
	data := homePage{
		Title:         "ImageDrop",
		View:          gate.Decide(state),
		Identity:      state.Identity,
		GitHubEnabled: h.opts.GitHubEnabled,
		MaxUploadMB:   h.opts.MaxUploadBytes >> 20,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

type sessionResponse struct {
	View     gate.View       `json:"view"`
	Identity *model.Identity `json:"identity,omitempty"`
}

// HandleSession reports the gate view as JSON.
//
// HTTP: GET /api/session
func (h *HomeHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	state := h.resolve(r)
	writeJSON(w, http.StatusOK, sessionResponse{View: gate.Decide(state), Identity: state.Identity})
}
