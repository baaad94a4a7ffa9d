package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"retreat_app_echo/internal/apperr"
	"retreat_app_echo/internal/config"
	"retreat_app_echo/internal/models"
)

const (
	SessionCookieName       = "rigdzen-session"
	ImpersonationCookieName = "rigdzen-impersonate"

	Duration      = 7 * 24 * time.Hour
	RefreshWindow = 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid session token")

// Session is the identity carried by the signed session cookie.
type Session struct {
	UserID    uint            `json:"userId"`
	Email     string          `json:"email"`
	Role      models.UserRole `json:"role"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == models.UserRoleAdmin
}

// Identity is the subject of an impersonation overlay.
type Identity struct {
	UserID uint
	Email  string
	Role   models.UserRole
}

type sessionClaims struct {
	UserID      uint   `json:"userId"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	ExpiresAtMs int64  `json:"expiresAt"`
	jwt.RegisteredClaims
}

type overlayClaims struct {
	UserID uint   `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Options configures a Manager.
type Options struct {
	Secret   []byte
	Secure   bool
	Features config.FeatureFlags
	Now      func() time.Time
}

// Manager issues and verifies session and impersonation cookies. It keeps no
// server-side state.
type Manager struct {
	secret   []byte
	secure   bool
	features config.FeatureFlags
	now      func() time.Time
}

func NewManager(opts Options) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		secret:   opts.Secret,
		secure:   opts.Secure,
		features: opts.Features,
		now:      now,
	}
}

// ImpersonationEnabled reports whether the overlay is honored at all.
func (m *Manager) ImpersonationEnabled() bool {
	return m.features.ImpersonationEnabled
}

// Create issues a fresh 7-day session and overwrites the session cookie.
func (m *Manager) Create(c echo.Context, userID uint, email string, role models.UserRole) (*Session, error) {
	now := m.now()
	expiresAt := now.Add(Duration)

	claims := sessionClaims{
		UserID:      userID,
		Email:       email,
		Role:        string(role),
		ExpiresAtMs: expiresAt.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}

	c.SetCookie(m.cookie(SessionCookieName, token, int(Duration.Seconds())))

	return &Session{
		UserID:    userID,
		Email:     email,
		Role:      role,
		ExpiresAt: time.UnixMilli(claims.ExpiresAtMs),
	}, nil
}

// Get returns the verified session or nil. A bad signature, a malformed
// payload or a past expiry all read as "no session". Cookies are left alone.
func (m *Manager) Get(c echo.Context) *Session {
	cookie, err := c.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	s, err := m.ParseSession(cookie.Value)
	if err != nil {
		return nil
	}
	return s
}

// ParseSession verifies a raw session token.
func (m *Manager) ParseSession(token string) (*Session, error) {
	var claims sessionClaims
	if _, err := m.parse(token, &claims); err != nil {
		return nil, err
	}
	if claims.UserID == 0 || claims.ExpiresAtMs == 0 || !models.UserRole(claims.Role).Valid() {
		return nil, ErrInvalidToken
	}
	expiresAt := time.UnixMilli(claims.ExpiresAtMs)
	if expiresAt.Before(m.now()) {
		return nil, ErrInvalidToken
	}
	return &Session{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Role:      models.UserRole(claims.Role),
		ExpiresAt: expiresAt,
	}, nil
}

// Refresh re-issues the session when less than a day of validity remains.
func (m *Manager) Refresh(c echo.Context) (*Session, error) {
	s := m.Get(c)
	if s == nil {
		return nil, nil
	}
	if s.ExpiresAt.Sub(m.now()) >= RefreshWindow {
		return s, nil
	}
	return m.Create(c, s.UserID, s.Email, s.Role)
}

// Delete clears the session and any impersonation overlay.
func (m *Manager) Delete(c echo.Context) {
	c.SetCookie(m.cookie(SessionCookieName, "", -1))
	c.SetCookie(m.cookie(ImpersonationCookieName, "", -1))
}

// Effective returns the identity used for data access.
func (m *Manager) Effective(c echo.Context) *Session {
	return m.ApplyOverlay(c, m.Get(c))
}

// ApplyOverlay substitutes the overlay identity for real when impersonation is
// enabled, real is an admin and the overlay cookie verifies. The real
// session's expiry is kept.
func (m *Manager) ApplyOverlay(c echo.Context, real *Session) *Session {
	if real == nil {
		return nil
	}
	if !m.features.ImpersonationEnabled || !real.IsAdmin() {
		return real
	}
	overlay, err := m.ReadOverlay(c)
	if err != nil || overlay == nil {
		return real
	}
	return &Session{
		UserID:    overlay.UserID,
		Email:     overlay.Email,
		Role:      overlay.Role,
		ExpiresAt: real.ExpiresAt,
	}
}

// ReadOverlay decodes the impersonation cookie. It returns (nil, nil) when
// the cookie is absent.
func (m *Manager) ReadOverlay(c echo.Context) (*Identity, error) {
	cookie, err := c.Cookie(ImpersonationCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	var claims overlayClaims
	if _, err := m.parse(cookie.Value, &claims); err != nil {
		return nil, err
	}
	if claims.UserID == 0 || !models.UserRole(claims.Role).Valid() {
		return nil, ErrInvalidToken
	}
	return &Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   models.UserRole(claims.Role),
	}, nil
}

// StartImpersonation stores a signed overlay for target. Only a real admin
// session may do this, and only where impersonation is enabled.
func (m *Manager) StartImpersonation(c echo.Context, target Identity) error {
	if !m.features.ImpersonationEnabled {
		return apperr.Forbidden("Impersonation is only available in development")
	}
	real := m.Get(c)
	if real == nil {
		return apperr.Unauthenticated("Please log in to continue.")
	}
	if !real.IsAdmin() {
		return apperr.Forbidden("Only admins can impersonate users")
	}

	now := m.now()
	claims := overlayClaims{
		UserID: target.UserID,
		Email:  target.Email,
		Role:   string(target.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(Duration)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("sign impersonation: %w", err)
	}

	c.SetCookie(m.cookie(ImpersonationCookieName, token, int(Duration.Seconds())))
	return nil
}

// StopImpersonation deletes the overlay cookie. No-op when disabled.
func (m *Manager) StopImpersonation(c echo.Context) {
	if !m.features.ImpersonationEnabled {
		return
	}
	m.ClearOverlay(c)
}

// ClearOverlay deletes the overlay cookie unconditionally. Request loading
// uses it to drop overlays that can never apply, such as one left over from
// a development run or one sent with a non-admin session.
func (m *Manager) ClearOverlay(c echo.Context) {
	c.SetCookie(m.cookie(ImpersonationCookieName, "", -1))
}

// IsImpersonating reports whether an admin currently views the app through
// a valid overlay.
func (m *Manager) IsImpersonating(c echo.Context) bool {
	if !m.features.ImpersonationEnabled {
		return false
	}
	if !m.Get(c).IsAdmin() {
		return false
	}
	overlay, err := m.ReadOverlay(c)
	return err == nil && overlay != nil
}

func (m *Manager) parse(token string, claims jwt.Claims) (*jwt.Token, error) {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return parsed, nil
}

func (m *Manager) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
}
