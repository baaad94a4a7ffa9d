package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"retreat_app_echo/internal/middleware"
	"retreat_app_echo/internal/models"
	"retreat_app_echo/internal/services"
	"retreat_app_echo/internal/session"
	"retreat_app_echo/web/templates/pages"
	"retreat_app_echo/web/templates/shared"
)

type UserHandler struct {
	users    *services.UserService
	sessions *session.Manager
	logger   *zap.Logger
}

func NewUserHandler(users *services.UserService, sessions *session.Manager, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, sessions: sessions, logger: logger}
}

// ListUsers renders the list of users
func (h *UserHandler) ListUsers(c echo.Context) error {
	users, err := h.users.List(c.Request().Context())
	if err != nil {
		return err
	}
	if middleware.IsAPIRequest(c) {
		return c.JSON(http.StatusOK, users)
	}

	props := pages.AdminUsersProps{
		PageProps:            pageProps(c, "User Management", "users", shared.Breadcrumb{Title: "Users"}),
		Users:                users,
		ImpersonationEnabled: h.sessions.ImpersonationEnabled(),
	}
	return render(c, pages.AdminUsers(props))
}

// UpdateUserRequest is the JSON body of a user edit. Omitted fields are kept.
type UpdateUserRequest struct {
	Name *string          `json:"name"`
	Role *models.UserRole `json:"role" validate:"omitempty,oneof=ADMIN PARTICIPANT"`
}

// UpdateUser handles updating an existing user
func (h *UserHandler) UpdateUser(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var in services.UpdateUserInput
	if middleware.IsAPIRequest(c) {
		var req UpdateUserRequest
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
		in = services.UpdateUserInput{Name: req.Name, Role: req.Role}
	} else {
		name := strings.TrimSpace(c.FormValue("name"))
		role := models.UserRole(c.FormValue("role"))
		in = services.UpdateUserInput{Name: &name, Role: &role}
	}

	user, err := h.users.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	if middleware.IsAPIRequest(c) {
		return c.JSON(http.StatusOK, user)
	}
	return redirectWith(c, "/admin/users", "flash", "User updated.")
}

// StartImpersonation lets an admin view the app as another user.
func (h *UserHandler) StartImpersonation(c echo.Context) error {
	var (
		id  uint
		err error
	)
	if middleware.IsAPIRequest(c) {
		var req struct {
			UserID uint `json:"userId" validate:"required"`
		}
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
		id = req.UserID
	} else if id, err = formID(c, "userId"); err != nil {
		return err
	}

	target, err := h.users.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	identity := session.Identity{UserID: target.ID, Email: target.Email, Role: target.Role}
	if err := h.sessions.StartImpersonation(c, identity); err != nil {
		return err
	}

	real := middleware.RealSession(c)
	h.logger.Info("impersonation started", zap.Uint("admin_id", real.UserID), zap.Uint("target_id", target.ID))
	if middleware.IsAPIRequest(c) {
		return c.JSON(http.StatusOK, map[string]interface{}{"impersonating": true, "userId": target.ID})
	}
	return c.Redirect(http.StatusSeeOther, "/dashboard")
}

// StopImpersonation drops the overlay and returns to the admin's own view.
func (h *UserHandler) StopImpersonation(c echo.Context) error {
	h.sessions.StopImpersonation(c)
	if middleware.IsAPIRequest(c) {
		return c.JSON(http.StatusOK, map[string]interface{}{"impersonating": false})
	}
	return c.Redirect(http.StatusSeeOther, "/admin/users")
}
