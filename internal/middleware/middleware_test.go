package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"retreat_app_echo/internal/apperr"
	"retreat_app_echo/internal/config"
	"retreat_app_echo/internal/models"
	"retreat_app_echo/internal/session"
)

func newManager(env string) *session.Manager {
	return session.NewManager(session.Options{
		Secret:   []byte("test-secret"),
		Features: config.FeaturesFor(env),
	})
}

func cookieFrom(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			found = ck
		}
	}
	return found
}

func login(t *testing.T, mgr *session.Manager, userID uint, role models.UserRole) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_, err := mgr.Create(c, userID, "user@example.com", role)
	require.NoError(t, err)
	ck := cookieFrom(rec, session.SessionCookieName)
	require.NotNil(t, ck)
	return &http.Cookie{Name: ck.Name, Value: ck.Value}
}

func impersonate(t *testing.T, mgr *session.Manager, admin *http.Cookie, target session.Identity) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(admin)
	require.NoError(t, mgr.StartImpersonation(echo.New().NewContext(req, rec), target))
	ck := cookieFrom(rec, session.ImpersonationCookieName)
	require.NotNil(t, ck)
	return &http.Cookie{Name: ck.Name, Value: ck.Value}
}

// serve runs a request through an echo instance with the given chain and a
// handler that reports the resolved identities.
func serve(mgr *session.Manager, path string, chain []echo.MiddlewareFunc, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	e := echo.New()
	e.HTTPErrorHandler = CustomErrorHandler(zap.NewNop())
	e.Use(LoadSession(mgr))
	e.GET(path, func(c echo.Context) error {
		out := map[string]interface{}{"impersonating": Impersonating(c)}
		if s := RealSession(c); s != nil {
			out["real"] = s.UserID
		}
		if s := EffectiveSession(c); s != nil {
			out["effective"] = s.UserID
		}
		return c.JSON(http.StatusOK, out)
	}, chain...)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestLoadSessionAnonymous(t *testing.T) {
	rec := serve(newManager(config.EnvDevelopment), "/page", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.NotContains(t, out, "real")
	assert.NotContains(t, out, "effective")
	assert.Empty(t, rec.Result().Cookies())
}

func TestLoadSessionClearsStaleCookie(t *testing.T) {
	rec := serve(newManager(config.EnvDevelopment), "/page", nil,
		&http.Cookie{Name: session.SessionCookieName, Value: "garbage"})
	require.Equal(t, http.StatusOK, rec.Code)
	ck := cookieFrom(rec, session.SessionCookieName)
	require.NotNil(t, ck)
	assert.Equal(t, -1, ck.MaxAge)
}

func TestLoadSessionImpersonation(t *testing.T) {
	mgr := newManager(config.EnvDevelopment)
	admin := login(t, mgr, 1, models.UserRoleAdmin)
	overlay := impersonate(t, mgr, admin, session.Identity{UserID: 2, Email: "p@example.com", Role: models.UserRoleParticipant})

	out := decode(t, serve(mgr, "/page", nil, admin, overlay))
	assert.EqualValues(t, 1, out["real"])
	assert.EqualValues(t, 2, out["effective"])
	assert.Equal(t, true, out["impersonating"])

	rec := serve(mgr, "/admin", []echo.MiddlewareFunc{RequireAdmin()}, admin, overlay)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoadSessionSelfImpersonation(t *testing.T) {
	mgr := newManager(config.EnvDevelopment)
	admin := login(t, mgr, 1, models.UserRoleAdmin)
	overlay := impersonate(t, mgr, admin, session.Identity{UserID: 1, Email: "user@example.com", Role: models.UserRoleAdmin})

	out := decode(t, serve(mgr, "/page", nil, admin, overlay))
	assert.EqualValues(t, 1, out["real"])
	assert.EqualValues(t, 1, out["effective"])
	assert.Equal(t, true, out["impersonating"])

	out = decode(t, serve(mgr, "/page", nil, admin))
	assert.Equal(t, false, out["impersonating"])
}

func TestLoadSessionDropsOverlayOnParticipant(t *testing.T) {
	mgr := newManager(config.EnvDevelopment)
	admin := login(t, mgr, 1, models.UserRoleAdmin)
	overlay := impersonate(t, mgr, admin, session.Identity{UserID: 2, Email: "p@example.com", Role: models.UserRoleParticipant})

	rec := serve(mgr, "/page", nil, login(t, mgr, 5, models.UserRoleParticipant), overlay)
	out := decode(t, rec)
	assert.EqualValues(t, 5, out["effective"])
	assert.Equal(t, false, out["impersonating"])
	ck := cookieFrom(rec, session.ImpersonationCookieName)
	require.NotNil(t, ck)
	assert.Equal(t, -1, ck.MaxAge)
}

func TestLoadSessionDropsBadOverlay(t *testing.T) {
	mgr := newManager(config.EnvDevelopment)
	admin := login(t, mgr, 1, models.UserRoleAdmin)

	rec := serve(mgr, "/page", nil, admin, &http.Cookie{Name: session.ImpersonationCookieName, Value: "bogus"})
	out := decode(t, rec)
	assert.EqualValues(t, 1, out["effective"])
	ck := cookieFrom(rec, session.ImpersonationCookieName)
	require.NotNil(t, ck)
	assert.Equal(t, -1, ck.MaxAge)
}

func TestLoadSessionIgnoresOverlayInProduction(t *testing.T) {
	dev := newManager(config.EnvDevelopment)
	prod := newManager(config.EnvProduction)
	admin := login(t, dev, 1, models.UserRoleAdmin)
	overlay := impersonate(t, dev, admin, session.Identity{UserID: 2, Email: "p@example.com", Role: models.UserRoleParticipant})

	rec := serve(prod, "/page", nil, admin, overlay)
	out := decode(t, rec)
	assert.EqualValues(t, 1, out["effective"])
	assert.Equal(t, false, out["impersonating"])
	ck := cookieFrom(rec, session.ImpersonationCookieName)
	require.NotNil(t, ck)
	assert.Equal(t, -1, ck.MaxAge)
}

func TestRequireAuth(t *testing.T) {
	mgr := newManager(config.EnvDevelopment)
	chain := []echo.MiddlewareFunc{RequireAuth()}

	rec := serve(mgr, "/dashboard", chain)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))

	rec = serve(mgr, "/api/me", chain)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication required", decode(t, rec)["error"])

	rec = serve(mgr, "/dashboard", chain, login(t, mgr, 5, models.UserRoleParticipant))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	mgr := newManager(config.EnvDevelopment)
	chain := []echo.MiddlewareFunc{RequireAuth(), RequireAdmin()}
	participant := login(t, mgr, 5, models.UserRoleParticipant)

	rec := serve(mgr, "/admin", chain, participant)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard?error=unauthorized", rec.Header().Get(echo.HeaderLocation))

	rec = serve(mgr, "/api/admin/users", chain, participant)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(mgr, "/admin", chain, login(t, mgr, 1, models.UserRoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCustomErrorHandler(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		err     error
		code    int
		message string
	}{
		{name: "validation", path: "/api/x", err: apperr.Invalid("Name is required", map[string]string{"name": "required"}), code: http.StatusBadRequest, message: "Name is required"},
		{name: "already processed", path: "/api/x", err: apperr.AlreadyProcessed(errors.New("dup")), code: http.StatusConflict, message: "Payment already processed"},
		{name: "provider", path: "/api/x", err: apperr.ProviderFailure("Payment capture failed", errors.New("boom")), code: http.StatusBadGateway, message: "Payment capture failed"},
		{name: "echo http error", path: "/api/x", err: echo.NewHTTPError(http.StatusNotFound, "Retreat not found"), code: http.StatusNotFound, message: "Retreat not found"},
		{name: "plain error hides details", path: "/api/x", err: errors.New("sql: connection refused"), code: http.StatusInternalServerError, message: "Something went wrong. Please try again later."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, tt.path, nil), rec)

			CustomErrorHandler(zap.NewNop())(tt.err, c)

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.message, decode(t, rec)["error"])
		})
	}
}

func TestCustomErrorHandlerRendersPage(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/retreats/9", nil), rec)

	CustomErrorHandler(zap.NewNop())(apperr.NotFoundErr("Retreat <b>not</b> found"), c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "Page Not Found")
	assert.Contains(t, body, "Retreat &lt;b&gt;not&lt;/b&gt; found")
}
