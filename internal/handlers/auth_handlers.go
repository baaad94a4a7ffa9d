package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"retreat_app_echo/internal/apperr"
	"retreat_app_echo/internal/middleware"
	"retreat_app_echo/internal/models"
	"retreat_app_echo/internal/services"
	"retreat_app_echo/internal/session"
	"retreat_app_echo/web/templates/pages"
)

const oauthStateCookie = "rigdzen-oauth-state"

// GoogleProvider is the OAuth flow the auth handler drives.
type GoogleProvider interface {
	Configured() bool
	AuthCodeURL(state string) string
	Identity(ctx context.Context, code string) (*services.ExternalIdentity, error)
}

// IDTokenVerifier turns a client-side ID token into an identity.
type IDTokenVerifier interface {
	Identity(ctx context.Context, idToken string) (*services.ExternalIdentity, error)
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	sessions *session.Manager
	users    *services.UserService
	google   GoogleProvider
	firebase IDTokenVerifier
	secure   bool
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. google and firebase may be nil
// when not configured.
func NewAuthHandler(sessions *session.Manager, users *services.UserService, google GoogleProvider, firebase IDTokenVerifier, secure bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		users:    users,
		google:   google,
		firebase: firebase,
		secure:   secure,
		logger:   logger,
	}
}

// LoginPage renders the login page, or sends a logged-in user on.
func (h *AuthHandler) LoginPage(c echo.Context) error {
	if middleware.EffectiveSession(c) != nil {
		return c.Redirect(http.StatusFound, "/dashboard")
	}
	return render(c, pages.Login(pages.LoginProps{
		Error:         c.QueryParam("error"),
		Email:         c.QueryParam("email"),
		GoogleEnabled: h.google != nil && h.google.Configured(),
	}))
}

// GoogleLogin starts the OAuth flow with a one-time state cookie.
func (h *AuthHandler) GoogleLogin(c echo.Context) error {
	if h.google == nil || !h.google.Configured() {
		return c.Redirect(http.StatusFound, "/login?error=auth_not_configured")
	}
	state := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		Path:     "/auth",
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, h.google.AuthCodeURL(state))
}

// GoogleCallback finishes the OAuth flow. Only pre-registered users get in.
func (h *AuthHandler) GoogleCallback(c echo.Context) error {
	if h.google == nil {
		return c.Redirect(http.StatusFound, "/login?error=auth_not_configured")
	}

	stateCookie, err := c.Cookie(oauthStateCookie)
	c.SetCookie(&http.Cookie{Name: oauthStateCookie, Value: "", MaxAge: -1, HttpOnly: true, Secure: h.secure, Path: "/auth"})
	if err != nil || stateCookie.Value == "" || stateCookie.Value != c.QueryParam("state") {
		return c.Redirect(http.StatusFound, "/login?error=invalid_state")
	}
	if c.QueryParam("error") != "" || c.QueryParam("code") == "" {
		return c.Redirect(http.StatusFound, "/login?error=oauth_failed")
	}

	identity, err := h.google.Identity(c.Request().Context(), c.QueryParam("code"))
	if err != nil {
		h.logger.Warn("google login failed", zap.Error(err))
		return c.Redirect(http.StatusFound, "/login?error=oauth_failed")
	}

	user, err := h.login(c, identity)
	if apperr.Is(err, apperr.NotFound) {
		return c.Redirect(http.StatusFound, "/login?error=user_not_found&email="+url.QueryEscape(identity.Email))
	}
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, landingPage(user))
}

// FirebaseLogin verifies a Firebase ID token sent as a bearer token.
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	if h.firebase == nil {
		return apperr.Forbidden("Firebase login is not configured")
	}

	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if authHeader == "" || token == authHeader {
		return apperr.Unauthenticated("Missing authorization header")
	}

	identity, err := h.firebase.Identity(c.Request().Context(), token)
	if err != nil {
		h.logger.Warn("firebase login failed", zap.Error(err))
		return apperr.Unauthenticated("Invalid token")
	}

	user, err := h.login(c, identity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":   "success",
		"redirect": landingPage(user),
	})
}

func (h *AuthHandler) login(c echo.Context, identity *services.ExternalIdentity) (*models.User, error) {
	user, err := h.users.LoginWithProvider(c.Request().Context(), identity.Provider, identity.ProviderID, identity.Email)
	if err != nil {
		return nil, err
	}
	if _, err := h.sessions.Create(c, user.ID, user.Email, user.Role); err != nil {
		return nil, apperr.Wrap(err)
	}
	h.logger.Info("user logged in", zap.Uint("user_id", user.ID), zap.String("provider", string(identity.Provider)))
	return user, nil
}

func landingPage(user *models.User) string {
	if user.ProfileCompleted {
		return "/dashboard"
	}
	return "/profile/complete"
}

// Logout clears the session and any impersonation.
func (h *AuthHandler) Logout(c echo.Context) error {
	h.sessions.Delete(c)
	if middleware.IsAPIRequest(c) {
		return c.JSON(http.StatusOK, map[string]string{"status": "logged out"})
	}
	return c.Redirect(http.StatusSeeOther, "/login")
}

type sessionUser struct {
	ID    uint            `json:"id"`
	Email string          `json:"email"`
	Role  models.UserRole `json:"role"`
}

// SessionResponse describes who the caller is.
type SessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *sessionUser `json:"user,omitempty"`
	RealUser      *sessionUser `json:"realUser,omitempty"`
	ExpiresAt     *time.Time   `json:"expiresAt,omitempty"`
	Impersonating bool         `json:"impersonating"`
}

// Session returns the effective identity as JSON.
func (h *AuthHandler) Session(c echo.Context) error {
	eff := middleware.EffectiveSession(c)
	if eff == nil {
		return c.JSON(http.StatusOK, SessionResponse{})
	}
	resp := SessionResponse{
		Authenticated: true,
		User:          &sessionUser{ID: eff.UserID, Email: eff.Email, Role: eff.Role},
		ExpiresAt:     &eff.ExpiresAt,
		Impersonating: middleware.Impersonating(c),
	}
	if resp.Impersonating {
		real := middleware.RealSession(c)
		resp.RealUser = &sessionUser{ID: real.UserID, Email: real.Email, Role: real.Role}
	}
	return c.JSON(http.StatusOK, resp)
}
