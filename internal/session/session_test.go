package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retreat_app_echo/internal/apperr"
	"retreat_app_echo/internal/config"
	"retreat_app_echo/internal/models"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestManager(env string, clk *clock) *Manager {
	return NewManager(Options{
		Secret:   []byte("test-secret"),
		Features: config.FeaturesFor(env),
		Now:      clk.now,
	})
}

func newContext(cookies ...*http.Cookie) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// responseCookie returns the last Set-Cookie written for name.
func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			found = ck
		}
	}
	return found
}

// issue creates a session for the given identity and returns its cookie.
func issue(t *testing.T, m *Manager, userID uint, email string, role models.UserRole) *http.Cookie {
	t.Helper()
	c, rec := newContext()
	_, err := m.Create(c, userID, email, role)
	require.NoError(t, err)
	ck := responseCookie(rec, SessionCookieName)
	require.NotNil(t, ck)
	return &http.Cookie{Name: ck.Name, Value: ck.Value}
}

func startOverlay(t *testing.T, m *Manager, adminCookie *http.Cookie, target Identity) *http.Cookie {
	t.Helper()
	c, rec := newContext(adminCookie)
	require.NoError(t, m.StartImpersonation(c, target))
	ck := responseCookie(rec, ImpersonationCookieName)
	require.NotNil(t, ck)
	return &http.Cookie{Name: ck.Name, Value: ck.Value}
}

func TestCreateAndGet(t *testing.T) {
	clk := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(config.EnvDevelopment, clk)

	c, rec := newContext()
	s, err := m.Create(c, 7, "a@example.com", models.UserRoleParticipant)
	require.NoError(t, err)
	assert.WithinDuration(t, clk.t.Add(Duration), s.ExpiresAt, time.Millisecond)

	ck := responseCookie(rec, SessionCookieName)
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)
	assert.Equal(t, "/", ck.Path)
	assert.Equal(t, int(Duration.Seconds()), ck.MaxAge)

	c2, _ := newContext(&http.Cookie{Name: SessionCookieName, Value: ck.Value})
	got := m.Get(c2)
	require.NotNil(t, got)
	assert.Equal(t, uint(7), got.UserID)
	assert.Equal(t, "a@example.com", got.Email)
	assert.Equal(t, models.UserRoleParticipant, got.Role)
}

func TestGetRejectsBadTokens(t *testing.T) {
	clk := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(config.EnvDevelopment, clk)
	valid := issue(t, m, 1, "a@example.com", models.UserRoleAdmin)

	other := NewManager(Options{Secret: []byte("other-secret"), Now: clk.now})
	foreign := issue(t, other, 1, "a@example.com", models.UserRoleAdmin)

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{name: "no cookie", cookie: nil},
		{name: "garbage", cookie: &http.Cookie{Name: SessionCookieName, Value: "not-a-token"}},
		{name: "tampered", cookie: &http.Cookie{Name: SessionCookieName, Value: valid.Value + "x"}},
		{name: "wrong secret", cookie: foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c echo.Context
			if tt.cookie != nil {
				c, _ = newContext(tt.cookie)
			} else {
				c, _ = newContext()
			}
			assert.Nil(t, m.Get(c))
		})
	}
}

func TestGetExpired(t *testing.T) {
	clk := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(config.EnvDevelopment, clk)
	ck := issue(t, m, 1, "a@example.com", models.UserRoleParticipant)

	clk.t = clk.t.Add(Duration + time.Minute)
	c, rec := newContext(ck)
	assert.Nil(t, m.Get(c))
	assert.Empty(t, rec.Result().Cookies(), "Get must not touch cookies")
}

func TestRefresh(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clk := &clock{t: start}
	m := newTestManager(config.EnvDevelopment, clk)
	ck := issue(t, m, 3, "p@example.com", models.UserRoleParticipant)

	t.Run("plenty of time left", func(t *testing.T) {
		clk.t = start.Add(2 * 24 * time.Hour)
		c, rec := newContext(ck)
		s, err := m.Refresh(c)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.WithinDuration(t, start.Add(Duration), s.ExpiresAt, time.Millisecond)
		assert.Nil(t, responseCookie(rec, SessionCookieName))
	})

	t.Run("inside refresh window", func(t *testing.T) {
		clk.t = start.Add(Duration - 2*time.Hour)
		c, rec := newContext(ck)
		s, err := m.Refresh(c)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.WithinDuration(t, clk.t.Add(Duration), s.ExpiresAt, time.Millisecond)
		assert.NotNil(t, responseCookie(rec, SessionCookieName))
	})

	t.Run("expired", func(t *testing.T) {
		clk.t = start.Add(Duration + time.Second)
		c, _ := newContext(ck)
		s, err := m.Refresh(c)
		require.NoError(t, err)
		assert.Nil(t, s)
	})
}

func TestImpersonationLifecycle(t *testing.T) {
	clk := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(config.EnvDevelopment, clk)
	admin := issue(t, m, 1, "admin@example.com", models.UserRoleAdmin)

	overlay := startOverlay(t, m, admin, Identity{UserID: 42, Email: "p@example.com", Role: models.UserRoleParticipant})

	c, _ := newContext(admin, overlay)
	eff := m.Effective(c)
	require.NotNil(t, eff)
	assert.Equal(t, uint(42), eff.UserID)
	assert.Equal(t, "p@example.com", eff.Email)
	assert.Equal(t, models.UserRoleParticipant, eff.Role)
	assert.Equal(t, m.Get(c).ExpiresAt, eff.ExpiresAt)
	assert.True(t, m.IsImpersonating(c))

	stopCtx, rec := newContext(admin, overlay)
	m.StopImpersonation(stopCtx)
	cleared := responseCookie(rec, ImpersonationCookieName)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)

	c, _ = newContext(admin)
	assert.Equal(t, uint(1), m.Effective(c).UserID)
	assert.False(t, m.IsImpersonating(c))
}

func TestOverlayIgnoredOutsideDevelopment(t *testing.T) {
	clk := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	dev := newTestManager(config.EnvDevelopment, clk)
	prod := newTestManager(config.EnvProduction, clk)

	admin := issue(t, dev, 1, "admin@example.com", models.UserRoleAdmin)
	overlay := startOverlay(t, dev, admin, Identity{UserID: 42, Email: "p@example.com", Role: models.UserRoleParticipant})

	c, _ := newContext(admin, overlay)
	eff := prod.Effective(c)
	require.NotNil(t, eff)
	assert.Equal(t, uint(1), eff.UserID)
	assert.False(t, prod.IsImpersonating(c))

	err := prod.StartImpersonation(c, Identity{UserID: 42, Role: models.UserRoleParticipant})
	assert.True(t, apperr.Is(err, apperr.AuthorizationDenied))
}

func TestStopImpersonationVersusClearOverlay(t *testing.T) {
	clk := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	dev := newTestManager(config.EnvDevelopment, clk)
	prod := newTestManager(config.EnvProduction, clk)
	admin := issue(t, dev, 1, "admin@example.com", models.UserRoleAdmin)
	overlay := startOverlay(t, dev, admin, Identity{UserID: 42, Email: "p@example.com", Role: models.UserRoleParticipant})

	c, rec := newContext(admin, overlay)
	prod.StopImpersonation(c)
	assert.Nil(t, responseCookie(rec, ImpersonationCookieName))

	c, rec = newContext(admin, overlay)
	prod.ClearOverlay(c)
	cleared := responseCookie(rec, ImpersonationCookieName)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
}

func TestOverlayRequiresAdmin(t *testing.T) {
	clk := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(config.EnvDevelopment, clk)

	admin := issue(t, m, 1, "admin@example.com", models.UserRoleAdmin)
	participant := issue(t, m, 2, "p@example.com", models.UserRoleParticipant)
	overlay := startOverlay(t, m, admin, Identity{UserID: 42, Email: "x@example.com", Role: models.UserRoleAdmin})

	t.Run("participant cannot start", func(t *testing.T) {
		c, _ := newContext(participant)
		err := m.StartImpersonation(c, Identity{UserID: 42, Role: models.UserRoleParticipant})
		assert.True(t, apperr.Is(err, apperr.AuthorizationDenied))
	})

	t.Run("anonymous cannot start", func(t *testing.T) {
		c, _ := newContext()
		err := m.StartImpersonation(c, Identity{UserID: 42, Role: models.UserRoleParticipant})
		assert.True(t, apperr.Is(err, apperr.AuthenticationMissing))
	})

	t.Run("overlay on participant session is ignored", func(t *testing.T) {
		c, _ := newContext(participant, overlay)
		assert.Equal(t, uint(2), m.Effective(c).UserID)
		assert.False(t, m.IsImpersonating(c))
	})

	t.Run("overlay without session is anonymous", func(t *testing.T) {
		c, _ := newContext(overlay)
		assert.Nil(t, m.Effective(c))
	})

	t.Run("undecodable overlay falls back to real", func(t *testing.T) {
		c, _ := newContext(admin, &http.Cookie{Name: ImpersonationCookieName, Value: "junk"})
		assert.Equal(t, uint(1), m.Effective(c).UserID)
		assert.False(t, m.IsImpersonating(c))
	})
}

func TestExpiryEndsImpersonation(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clk := &clock{t: start}
	m := newTestManager(config.EnvDevelopment, clk)
	admin := issue(t, m, 1, "admin@example.com", models.UserRoleAdmin)
	overlay := startOverlay(t, m, admin, Identity{UserID: 42, Email: "p@example.com", Role: models.UserRoleParticipant})

	clk.t = start.Add(Duration + time.Hour)
	c, _ := newContext(admin, overlay)
	assert.Nil(t, m.Effective(c))
	assert.False(t, m.IsImpersonating(c))
}

func TestDelete(t *testing.T) {
	clk := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(config.EnvDevelopment, clk)

	c, rec := newContext()
	m.Delete(c)

	for _, name := range []string{SessionCookieName, ImpersonationCookieName} {
		ck := responseCookie(rec, name)
		require.NotNil(t, ck, name)
		assert.Equal(t, -1, ck.MaxAge)
		assert.Empty(t, ck.Value)
	}
}

func TestSecureCookieFlag(t *testing.T) {
	m := NewManager(Options{Secret: []byte("s"), Secure: true})
	c, rec := newContext()
	_, err := m.Create(c, 1, "a@example.com", models.UserRoleAdmin)
	require.NoError(t, err)
	assert.True(t, responseCookie(rec, SessionCookieName).Secure)
}
