package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"retreat_app_echo/internal/apperr"
	"retreat_app_echo/internal/middleware"
	"retreat_app_echo/internal/services"
	"retreat_app_echo/web/templates/pages"
	"retreat_app_echo/web/templates/shared"
)

type ProfileHandler struct {
	users *services.UserService
}

func NewProfileHandler(users *services.UserService) *ProfileHandler {
	return &ProfileHandler{users: users}
}

// Show renders the profile form. Users who have not finished onboarding see
// it as the completion step.
func (h *ProfileHandler) Show(c echo.Context) error {
	s, err := currentUser(c)
	if err != nil {
		return err
	}
	user, err := h.users.Get(c.Request().Context(), s.UserID)
	if err != nil {
		return err
	}
	props := pages.ProfileProps{
		PageProps:  pageProps(c, "Profile", "profile", shared.Breadcrumb{Title: "Profile"}),
		User:       *user,
		Onboarding: !user.ProfileCompleted,
	}
	return render(c, pages.Profile(props))
}

func (h *ProfileHandler) Complete(c echo.Context) error {
	s, err := currentUser(c)
	if err != nil {
		return err
	}
	var in services.ProfileInput
	if err := c.Bind(&in); err != nil {
		return apperr.Invalid("Invalid request body", nil)
	}
	user, err := h.users.CompleteProfile(c.Request().Context(), s.UserID, in)
	if err != nil {
		if apperr.Is(err, apperr.ValidationFailed) && !middleware.IsAPIRequest(c) {
			return redirectWith(c, "/profile/complete", "error", apperr.PublicMessage(err))
		}
		return err
	}
	if middleware.IsAPIRequest(c) {
		return c.JSON(http.StatusOK, user)
	}
	return redirectWith(c, "/dashboard", "flash", "Profile saved.")
}

func (h *ProfileHandler) Skip(c echo.Context) error {
	s, err := currentUser(c)
	if err != nil {
		return err
	}
	if _, err := h.users.SkipProfile(c.Request().Context(), s.UserID); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/dashboard")
}
