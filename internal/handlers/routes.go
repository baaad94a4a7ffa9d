package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"retreat_app_echo/internal/middleware"
	"retreat_app_echo/internal/session"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Auth       *AuthHandler
	Dashboard  *DashboardHandler
	Profile    *ProfileHandler
	Retreat    *RetreatHandler
	Payment    *PaymentHandler
	Admin      *AdminHandler
	User       *UserHandler
	Preference *UserPreferenceHandler
	Report     *ReportHandler
}

// RegisterRoutes mounts the page and JSON routes. rateLimit guards the
// login and payment endpoints; zero disables it.
func RegisterRoutes(e *echo.Echo, h Handlers, sessions *session.Manager, rateLimit float64) {
	e.Use(middleware.LoadSession(sessions))

	limited := []echo.MiddlewareFunc{}
	if rateLimit > 0 {
		limited = append(limited, middleware.RateLimit(rateLimit))
	}

	// Public routes
	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, "/dashboard")
	})
	e.GET("/login", h.Auth.LoginPage)
	e.GET("/auth/google", h.Auth.GoogleLogin, limited...)
	e.GET("/auth/google/callback", h.Auth.GoogleCallback, limited...)
	e.POST("/auth/logout", h.Auth.Logout)
	e.POST("/api/auth/firebase", h.Auth.FirebaseLogin, limited...)
	e.POST("/api/auth/logout", h.Auth.Logout)
	e.GET("/api/auth/session", h.Auth.Session)

	// Protected routes
	protected := e.Group("", middleware.RequireAuth())
	protected.GET("/dashboard", h.Dashboard.Dashboard)
	protected.GET("/profile", h.Profile.Show)
	protected.POST("/profile", h.Profile.Complete)
	protected.GET("/profile/complete", h.Profile.Show)
	protected.POST("/profile/complete", h.Profile.Complete)
	protected.POST("/profile/skip", h.Profile.Skip)

	protected.GET("/retreats/:id", h.Retreat.Show)
	protected.POST("/retreats/:id/attend", h.Retreat.Attend)
	protected.POST("/retreats/:id/decline", h.Retreat.Decline)
	protected.POST("/retreats/:id/meals/:mealId/order", h.Retreat.PlaceOrder)
	protected.POST("/retreats/:id/duties/:dutyId/sign-off", h.Retreat.SignOff)
	protected.POST("/retreats/:id/payments", h.Payment.Checkout, limited...)
	protected.GET("/retreats/:id/payments/return", h.Payment.Return, limited...)
	protected.GET("/retreats/:id/payments/cancel", h.Payment.Cancel)

	api := e.Group("/api", middleware.RequireAuth())
	api.GET("/retreats/:id", h.Retreat.Show)
	api.POST("/retreats/:id/attend", h.Retreat.Attend)
	api.POST("/retreats/:id/decline", h.Retreat.Decline)
	api.POST("/retreats/:id/meals/:mealId/order", h.Retreat.PlaceOrder)
	api.POST("/retreats/:id/duties/:dutyId/sign-off", h.Retreat.SignOff)
	api.POST("/retreats/:id/payments/create-order", h.Payment.CreateOrder, limited...)
	api.POST("/retreats/:id/payments/capture-order", h.Payment.CaptureOrder, limited...)
	api.POST("/profile", h.Profile.Complete)

	// Admin routes
	admin := e.Group("/admin", middleware.RequireAuth(), middleware.RequireAdmin())
	admin.GET("/retreats", h.Admin.ListRetreats)
	admin.GET("/retreats/new", h.Admin.NewRetreat)
	admin.POST("/retreats", h.Admin.CreateRetreat)
	admin.GET("/retreats/:id", h.Admin.ShowRetreat)
	admin.POST("/retreats/:id/meals", h.Admin.CreateMeal)
	admin.POST("/retreats/:id/meals/:mealId/delete", h.Admin.DeleteMeal)
	admin.POST("/retreats/:id/meals/:mealId/menu-items", h.Admin.CreateMenuItem)
	admin.POST("/retreats/:id/meals/:mealId/menu-items/:itemId/delete", h.Admin.DeleteMenuItem)
	admin.POST("/retreats/:id/duties", h.Admin.CreateDuty)
	admin.POST("/retreats/:id/duties/:dutyId/assign", h.Admin.AssignDuty)
	admin.POST("/retreats/:id/duties/:dutyId/unassign", h.Admin.UnassignDuty)
	admin.POST("/retreats/:id/duties/upload", h.Admin.UploadDuties)
	admin.POST("/meal-orders/:id/mark-paid-cash", h.Admin.MarkPaidCash)

	admin.GET("/users", h.User.ListUsers)
	admin.POST("/users/:id", h.User.UpdateUser)
	admin.GET("/users/:id/preference", h.Preference.GetUserPreference)
	admin.POST("/users/:id/preference", h.Preference.UpdateUserPreference)
	admin.POST("/impersonate", h.User.StartImpersonation)
	admin.POST("/impersonate/stop", h.User.StopImpersonation)

	admin.GET("/reports", h.Report.Index)
	admin.GET("/reports/unpaid-meals", h.Report.UnpaidMeals)
	admin.GET("/reports/unacknowledged-duties", h.Report.UnacknowledgedDuties)
	admin.GET("/reports/user-meal-selections", h.Report.MealSelections)

	adminAPI := e.Group("/api/admin", middleware.RequireAuth(), middleware.RequireAdmin())
	adminAPI.GET("/retreats", h.Admin.ListRetreats)
	adminAPI.POST("/retreats", h.Admin.CreateRetreat)
	adminAPI.GET("/retreats/:id", h.Admin.ShowRetreat)
	adminAPI.POST("/retreats/:id/meals", h.Admin.CreateMeal)
	adminAPI.DELETE("/retreats/:id/meals/:mealId", h.Admin.DeleteMeal)
	adminAPI.POST("/retreats/:id/meals/:mealId/menu-items", h.Admin.CreateMenuItem)
	adminAPI.DELETE("/retreats/:id/meals/:mealId/menu-items/:itemId", h.Admin.DeleteMenuItem)
	adminAPI.POST("/retreats/:id/duties", h.Admin.CreateDuty)
	adminAPI.POST("/retreats/:id/duties/:dutyId/assign", h.Admin.AssignDuty)
	adminAPI.POST("/retreats/:id/duties/:dutyId/unassign", h.Admin.UnassignDuty)
	adminAPI.POST("/retreats/:id/duties/upload", h.Admin.UploadDuties)
	adminAPI.POST("/meal-orders/:id/mark-paid-cash", h.Admin.MarkPaidCash)
	adminAPI.GET("/users", h.User.ListUsers)
	adminAPI.PATCH("/users/:id", h.User.UpdateUser)
	adminAPI.POST("/impersonate", h.User.StartImpersonation)
	adminAPI.POST("/impersonate/stop", h.User.StopImpersonation)
	adminAPI.GET("/reports/unpaid-meals", h.Report.UnpaidMeals)
	adminAPI.GET("/reports/unacknowledged-duties", h.Report.UnacknowledgedDuties)
	adminAPI.GET("/reports/user-meal-selections", h.Report.MealSelections)
}
