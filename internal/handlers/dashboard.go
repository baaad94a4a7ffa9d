package handlers

import (
	"github.com/labstack/echo/v4"

	"retreat_app_echo/internal/services"
	"retreat_app_echo/web/templates/pages"
)

// DashboardHandler handles dashboard endpoints
type DashboardHandler struct {
	retreats *services.RetreatService
	users    *services.UserService
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(retreats *services.RetreatService, users *services.UserService) *DashboardHandler {
	return &DashboardHandler{retreats: retreats, users: users}
}

// Dashboard lists retreats with attendance for the effective user.
func (h *DashboardHandler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	s, err := currentUser(c)
	if err != nil {
		return err
	}

	user, err := h.users.Get(ctx, s.UserID)
	if err != nil {
		return err
	}
	retreats, err := h.retreats.List(ctx)
	if err != nil {
		return err
	}
	attending, err := h.retreats.AttendingIDs(ctx, s.UserID)
	if err != nil {
		return err
	}

	ids := make([]uint, len(retreats))
	for i, r := range retreats {
		ids[i] = r.ID
	}
	counts, err := h.retreats.ParticipantCounts(ctx, ids)
	if err != nil {
		return err
	}

	cards := make([]pages.RetreatCard, len(retreats))
	for i, r := range retreats {
		cards[i] = pages.RetreatCard{Retreat: r, Participants: counts[r.ID], Attending: attending[r.ID]}
	}

	props := pages.DashboardProps{
		PageProps: pageProps(c, "Dashboard", "dashboard"),
		UserName:  user.DisplayName(),
		Retreats:  cards,
	}
	return render(c, pages.Dashboard(props))
}
