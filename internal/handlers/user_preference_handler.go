package handlers

import (
	"strings"

	"github.com/labstack/echo/v4"

	"retreat_app_echo/internal/models"
	"retreat_app_echo/internal/services"
	"retreat_app_echo/web/templates/pages"
)

type UserPreferenceHandler struct {
	users    *services.UserService
	notifier *services.Notifier
}

func NewUserPreferenceHandler(users *services.UserService, notifier *services.Notifier) *UserPreferenceHandler {
	return &UserPreferenceHandler{users: users, notifier: notifier}
}

// GetUserPreference returns the preference modal content for HTMX
func (h *UserPreferenceHandler) GetUserPreference(c echo.Context) error {
	userID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.users.Get(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	pref, err := h.notifier.Preference(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return render(c, pages.UserPreferencePopup(*user, pref))
}

// UpdateUserPreference handles the form submission
func (h *UserPreferenceHandler) UpdateUserPreference(c echo.Context) error {
	userID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.users.Get(c.Request().Context(), userID); err != nil {
		return err
	}

	pref := models.UserNotifPreference{
		UserID:             userID,
		Channel:            models.NotificationChannel(strings.TrimSpace(c.FormValue("channel"))),
		WhatsappTargetType: strings.TrimSpace(c.FormValue("whatsapp_target_type")),
		WhatsappGroupID:    strings.TrimSpace(c.FormValue("whatsapp_group_id")),
	}
	if _, err := h.notifier.SavePreference(c.Request().Context(), pref); err != nil {
		return err
	}
	return render(c, pages.UserPreferenceSuccess())
}
