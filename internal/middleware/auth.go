package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"retreat_app_echo/internal/apperr"
	"retreat_app_echo/internal/session"
)

const (
	realSessionKey      = "realSession"
	effectiveSessionKey = "session"
	impersonatingKey    = "impersonating"
)

// LoadSession resolves the real and effective identities of every request.
// It refreshes sessions close to expiry and drops cookies that no longer
// verify, so later reads never have to touch the response.
func LoadSession(mgr *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			real, err := mgr.Refresh(c)
			if err != nil {
				return apperr.Wrap(err)
			}

			if real == nil {
				if cookie, err := c.Cookie(session.SessionCookieName); err == nil && cookie.Value != "" {
					mgr.Delete(c)
				}
			} else if cookie, err := c.Cookie(session.ImpersonationCookieName); err == nil && cookie.Value != "" {
				// An overlay that will never be honored is dropped even
				// where impersonation is switched off.
				if !mgr.ImpersonationEnabled() || !real.IsAdmin() {
					mgr.ClearOverlay(c)
				} else if _, err := mgr.ReadOverlay(c); err != nil {
					mgr.ClearOverlay(c)
				}
			}

			effective := mgr.ApplyOverlay(c, real)
			c.Set(realSessionKey, real)
			c.Set(effectiveSessionKey, effective)
			c.Set(impersonatingKey, mgr.IsImpersonating(c))
			if effective != nil {
				c.Set("userEmail", effective.Email)
				c.Set("userUID", strconv.FormatUint(uint64(effective.UserID), 10))
			}
			return next(c)
		}
	}
}

// RealSession is the logged-in user, ignoring impersonation.
func RealSession(c echo.Context) *session.Session {
	s, _ := c.Get(realSessionKey).(*session.Session)
	return s
}

// EffectiveSession is the identity used for data access.
func EffectiveSession(c echo.Context) *session.Session {
	s, _ := c.Get(effectiveSessionKey).(*session.Session)
	return s
}

// Impersonating reports whether an admin overlay is active for the request,
// including an overlay naming the admin's own account.
func Impersonating(c echo.Context) bool {
	v, _ := c.Get(impersonatingKey).(bool)
	return v
}

// IsAPIRequest reports whether the caller expects JSON.
func IsAPIRequest(c echo.Context) bool {
	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		return true
	}
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

// RequireAuth rejects requests without an effective session.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if EffectiveSession(c) == nil {
				if IsAPIRequest(c) {
					return apperr.Unauthenticated("Authentication required")
				}
				return c.Redirect(http.StatusFound, "/login")
			}
			return next(c)
		}
	}
}

// RequireAdmin checks the real session, so an admin viewing the app as
// someone else keeps admin access.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			real := RealSession(c)
			switch {
			case real == nil && IsAPIRequest(c):
				return apperr.Unauthenticated("Authentication required")
			case real == nil:
				return c.Redirect(http.StatusFound, "/login")
			case !real.IsAdmin() && IsAPIRequest(c):
				return apperr.Forbidden("Admin access required")
			case !real.IsAdmin():
				return c.Redirect(http.StatusFound, "/dashboard?error=unauthorized")
			}
			return next(c)
		}
	}
}
