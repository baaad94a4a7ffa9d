package handlers

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retreat_app_echo/internal/models"
	"retreat_app_echo/internal/services"
	"retreat_app_echo/internal/session"
)

func TestCreateRetreat(t *testing.T) {
	app := newTestApp(t)
	admin := app.seedUser(t, "admin@example.com", models.UserRoleAdmin)
	ck := app.login(t, admin)

	rec := app.sendJSON(http.MethodPost, "/api/admin/retreats", RetreatRequest{
		Name:      "Dzogchen Retreat",
		StartDate: "2026-12-01",
		EndDate:   "2026-12-05",
	}, ck)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created models.Retreat
	decodeJSON(t, rec, &created)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Dzogchen Retreat", created.Name)

	rec = app.sendJSON(http.MethodPost, "/api/admin/retreats", RetreatRequest{Name: "No dates"}, ck)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.postForm("/admin/retreats", url.Values{
		"name":      {"Bad dates"},
		"startDate": {"tomorrow"},
		"endDate":   {"2026-12-05"},
	}, ck)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	loc := redirectTarget(t, rec)
	assert.Equal(t, "/admin/retreats/new", loc.Path)
	assert.NotEmpty(t, loc.Query().Get("error"))

	rec = app.postForm("/admin/retreats", url.Values{
		"name":      {"Form Retreat"},
		"startDate": {"2027-01-10"},
		"endDate":   {"2027-01-12"},
	}, ck)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "Retreat created.", redirectTarget(t, rec).Query().Get("flash"))

	var count int64
	app.db.Model(&models.Retreat{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestAdminMealsAndMenuItems(t *testing.T) {
	app := newTestApp(t)
	admin := app.seedUser(t, "admin@example.com", models.UserRoleAdmin)
	retreat := app.seedRetreat(t, "Retreat")
	ck := app.login(t, admin)

	rec := app.sendJSON(http.MethodPost, fmt.Sprintf("/api/admin/retreats/%d/meals", retreat.ID), MealRequest{
		Name:      "Tsampa breakfast",
		Price:     7.5,
		MealDate:  "2026-12-01T08:00",
		Available: true,
	}, ck)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var meal models.Meal
	decodeJSON(t, rec, &meal)

	rec = app.sendJSON(http.MethodPost, fmt.Sprintf("/api/admin/retreats/%d/meals/%d/menu-items", retreat.ID, meal.ID), MenuItemRequest{
		Name:             "Extra portion",
		RequiresQuantity: true,
	}, ck)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var item models.MenuItem
	decodeJSON(t, rec, &item)
	assert.True(t, item.RequiresQuantity)

	rec = app.sendJSON(http.MethodDelete, fmt.Sprintf("/api/admin/retreats/%d/meals/%d/menu-items/%d", retreat.ID, meal.ID, item.ID), nil, ck)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = app.postForm(fmt.Sprintf("/admin/retreats/%d/meals/%d/delete", retreat.ID, meal.ID), url.Values{}, ck)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.NotEmpty(t, redirectTarget(t, rec).Query().Get("flash"))

	var count int64
	app.db.Model(&models.Meal{}).Count(&count)
	assert.Zero(t, count)
}

func TestAdminDutyAssignment(t *testing.T) {
	app := newTestApp(t)
	admin := app.seedUser(t, "admin@example.com", models.UserRoleAdmin)
	user := app.seedUser(t, "helper@example.com", models.UserRoleParticipant)
	retreat := app.seedRetreat(t, "Retreat")
	ck := app.login(t, admin)

	rec := app.sendJSON(http.MethodPost, fmt.Sprintf("/api/admin/retreats/%d/duties", retreat.ID), DutyRequest{Title: "Shrine keeper"}, ck)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var duty models.Duty
	decodeJSON(t, rec, &duty)

	path := fmt.Sprintf("/api/admin/retreats/%d/duties/%d", retreat.ID, duty.ID)
	rec = app.sendJSON(http.MethodPost, path+"/assign", AssignmentRequest{}, ck)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.sendJSON(http.MethodPost, path+"/assign", AssignmentRequest{UserID: user.ID}, ck)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeJSON(t, rec, &duty)
	assert.Equal(t, models.DutyStatusAssigned, duty.Status)

	rec = app.sendJSON(http.MethodPost, path+"/unassign", AssignmentRequest{UserID: user.ID}, ck)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var assignments int64
	app.db.Model(&models.DutyAssignment{}).Where("duty_id = ?", duty.ID).Count(&assignments)
	assert.Zero(t, assignments)
}

func TestUploadDuties(t *testing.T) {
	app := newTestApp(t)
	admin := app.seedUser(t, "admin@example.com", models.UserRoleAdmin)
	retreat := app.seedRetreat(t, "Retreat")
	ck := app.login(t, admin)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "duties.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("title,description\nKitchen,Wash up after lunch\nGarden,\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/admin/retreats/%d/duties/upload", retreat.ID), &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := app.do(req, ck)

	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Contains(t, redirectTarget(t, rec).Query().Get("flash"), "Imported 2 duties")

	var count int64
	app.db.Model(&models.Duty{}).Where("retreat_id = ?", retreat.ID).Count(&count)
	assert.Equal(t, int64(2), count)

	rec = app.postForm(fmt.Sprintf("/admin/retreats/%d/duties/upload", retreat.ID), url.Values{}, ck)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "No file uploaded", redirectTarget(t, rec).Query().Get("error"))
}

func TestMarkPaidCashAndUnpaidReport(t *testing.T) {
	app := newTestApp(t)
	admin := app.seedUser(t, "admin@example.com", models.UserRoleAdmin)
	user := app.seedUser(t, "guest@example.com", models.UserRoleParticipant)
	retreat := app.seedRetreat(t, "Retreat")
	meal, item := app.seedMeal(t, retreat, "Lunch", 10)

	rec := app.sendJSON(http.MethodPost, fmt.Sprintf("/api/retreats/%d/meals/%d/order", retreat.ID, meal.ID),
		PlaceOrderRequest{Selections: []services.Selection{{MenuItemID: item.ID}}}, app.login(t, user))
	require.Equal(t, http.StatusOK, rec.Code)
	var order models.MealOrder
	require.NoError(t, app.db.Where("user_id = ?", user.ID).Take(&order).Error)

	ck := app.login(t, admin)
	rec = app.sendJSON(http.MethodGet, "/api/admin/reports/unpaid-meals", nil, ck)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report services.UnpaidMealsReport
	decodeJSON(t, rec, &report)
	require.Len(t, report.Orders, 1)

	rec = app.postForm(fmt.Sprintf("/admin/meal-orders/%d/mark-paid-cash", order.ID), url.Values{"retreatId": {fmt.Sprint(retreat.ID)}}, ck)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, fmt.Sprintf("/admin/retreats/%d", retreat.ID), redirectTarget(t, rec).Path)

	require.NoError(t, app.db.First(&order, order.ID).Error)
	assert.Equal(t, models.MealOrderStatusPaid, order.Status)

	rec = app.sendJSON(http.MethodPost, fmt.Sprintf("/api/admin/meal-orders/%d/mark-paid-cash", order.ID), nil, ck)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.get("/admin/reports/unpaid-meals", ck)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "guest@example.com")
}

func TestUpdateUser(t *testing.T) {
	app := newTestApp(t)
	admin := app.seedUser(t, "admin@example.com", models.UserRoleAdmin)
	user := app.seedUser(t, "member@example.com", models.UserRoleParticipant)
	ck := app.login(t, admin)

	role := models.UserRole("OWNER")
	rec := app.sendJSON(http.MethodPatch, fmt.Sprintf("/api/admin/users/%d", user.ID), UpdateUserRequest{Role: &role}, ck)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	role = models.UserRoleAdmin
	name := "Ani Member"
	rec = app.sendJSON(http.MethodPatch, fmt.Sprintf("/api/admin/users/%d", user.ID), UpdateUserRequest{Name: &name, Role: &role}, ck)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got models.User
	require.NoError(t, app.db.First(&got, user.ID).Error)
	assert.Equal(t, models.UserRoleAdmin, got.Role)
	assert.Equal(t, "Ani Member", got.DisplayName())
}

func TestUpdateUserPreference(t *testing.T) {
	app := newTestApp(t)
	admin := app.seedUser(t, "admin@example.com", models.UserRoleAdmin)
	user := app.seedUser(t, "quiet@example.com", models.UserRoleParticipant)
	ck := app.login(t, admin)

	rec := app.postForm(fmt.Sprintf("/admin/users/%d/preference", user.ID), url.Values{"channel": {"none"}}, ck)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pref models.UserNotifPreference
	require.NoError(t, app.db.Where("user_id = ?", user.ID).Take(&pref).Error)
	assert.Equal(t, models.NotificationChannelNone, pref.Channel)

	rec = app.get(fmt.Sprintf("/admin/users/%d/preference", user.ID), ck)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestImpersonation(t *testing.T) {
	app := newTestApp(t)
	admin := app.seedUser(t, "admin@example.com", models.UserRoleAdmin)
	user := app.seedUser(t, "target@example.com", models.UserRoleParticipant)
	ck := app.login(t, admin)

	rec := app.postForm("/admin/impersonate", url.Values{"userId": {fmt.Sprint(user.ID)}}, ck)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	overlay := cookieNamed(t, rec, session.ImpersonationCookieName)

	var resp SessionResponse
	decodeJSON(t, app.get("/api/auth/session", ck, overlay), &resp)
	assert.True(t, resp.Impersonating)
	require.NotNil(t, resp.User)
	require.NotNil(t, resp.RealUser)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.Equal(t, admin.ID, resp.RealUser.ID)

	// Admin pages stay reachable while viewing as the participant.
	rec = app.get("/admin/users", ck, overlay)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.postForm("/admin/impersonate/stop", url.Values{}, ck, overlay)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Empty(t, cookieNamed(t, rec, session.ImpersonationCookieName).Value)
}

func TestImpersonationRejectsParticipants(t *testing.T) {
	app := newTestApp(t)
	user := app.seedUser(t, "plain@example.com", models.UserRoleParticipant)
	other := app.seedUser(t, "other@example.com", models.UserRoleParticipant)

	rec := app.sendJSON(http.MethodPost, "/api/admin/impersonate", map[string]uint{"userId": other.ID}, app.login(t, user))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReportsRender(t *testing.T) {
	app := newTestApp(t)
	admin := app.seedUser(t, "admin@example.com", models.UserRoleAdmin)
	retreat := app.seedRetreat(t, "Retreat")
	ck := app.login(t, admin)

	for _, path := range []string{
		"/admin/reports",
		"/admin/reports/unpaid-meals",
		"/admin/reports/unacknowledged-duties",
		"/admin/reports/user-meal-selections",
		fmt.Sprintf("/admin/reports/user-meal-selections?retreatId=%d", retreat.ID),
		"/admin/retreats",
		"/admin/retreats/new",
		fmt.Sprintf("/admin/retreats/%d", retreat.ID),
	} {
		rec := app.get(path, ck)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
