package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/Dhrumilshah777/imageDrop/internal/apperror"
	"github.com/Dhrumilshah777/imageDrop/internal/auth"
	"github.com/Dhrumilshah777/imageDrop/internal/service"
	"github.com/Dhrumilshah777/imageDrop/internal/upload"
)

const stateCookie = "oauth_state"

// GitHubExchanger runs the GitHub OAuth code flow. *auth.GitHubProvider
// implements it.
type GitHubExchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthHandler handles sign-in, sign-up and sign-out.
//
//   - HandleGitHubLogin / HandleGitHubCallback → GitHub OAuth
//   - HandleSignup / HandleLogin              → email and password
//   - HandleLogout                            → drops the upload session, clears the cookie
//   - HandleMe                                → current user
type AuthHandler struct {
	github  GitHubExchanger // nil when GitHub sign-in is not configured
	svc     *service.AuthService
	uploads *upload.Manager
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil.
func NewAuthHandler(github GitHubExchanger, svc *service.AuthService, uploads *upload.Manager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{github: github, svc: svc, uploads: uploads, logger: logger}
}

// HandleGitHubLogin redirects to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// A random state goes into a short-lived cookie and is checked again on the
// callback.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeError(w, apperror.NotFound("sign-in provider", "github"))
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow and sets the session cookie.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeError(w, apperror.NotFound("sign-in provider", "github"))
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	result, err := h.svc.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	auth.SetSessionCookie(w, result.Token, h.svc.TokenTTL())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	var c credentials
	r.Body = http.MaxBytesReader(w, r.Body, 16<<10)
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		return c, apperror.ValidationFailed("body", "request body must be JSON with email and password")
	}
	return c, nil
}

// HandleSignup creates an email/password account and signs it in.
//
// HTTP: POST /auth/signup  {"email","password","displayName"}
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCredentials(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.Signup(r.Context(), c.Email, c.Password, c.DisplayName)
	if err != nil {
		h.logger.Info("signup rejected", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, result.Token, h.svc.TokenTTL())
	writeJSON(w, http.StatusCreated, result.User)
}

// HandleLogin signs in an email/password account.
//
// HTTP: POST /auth/login  {"email","password"}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCredentials(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.Login(r.Context(), c.Email, c.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, result.Token, h.svc.TokenTTL())
	writeJSON(w, http.StatusOK, result.User)
}

// HandleLogout ends the browser session. Signing out takes the uploader
// away, so the user's upload session is released first: the selection and
// its preview are dropped. An upload already in flight still finishes.
// The token itself stays valid until it expires.
//
// Needs OptionalAuth in front of it to know whose session to release.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if userID, ok := auth.UserIDFromContext(r.Context()); ok {
		h.uploads.Release(userID)
		h.logger.Info("signed out", slog.String("userID", userID))
	}
	auth.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the signed-in user's profile.
//
// HTTP: GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("valid authentication required"))
		return
	}

	user, err := h.svc.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("HandleMe: user lookup failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
