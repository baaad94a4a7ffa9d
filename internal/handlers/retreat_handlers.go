package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"retreat_app_echo/internal/apperr"
	"retreat_app_echo/internal/middleware"
	"retreat_app_echo/internal/models"
	"retreat_app_echo/internal/services"
	"retreat_app_echo/web/templates/pages"
	"retreat_app_echo/web/templates/shared"
)

type RetreatHandler struct {
	retreats *services.RetreatService
	meals    *services.MealService
	duties   *services.DutyService
	payments *services.PaymentService
}

func NewRetreatHandler(retreats *services.RetreatService, meals *services.MealService, duties *services.DutyService, payments *services.PaymentService) *RetreatHandler {
	return &RetreatHandler{retreats: retreats, meals: meals, duties: duties, payments: payments}
}

func retreatPath(id uint) string {
	return fmt.Sprintf("/retreats/%d", id)
}

// Show renders a retreat with the effective user's orders and duties.
func (h *RetreatHandler) Show(c echo.Context) error {
	ctx := c.Request().Context()
	s, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	retreat, err := h.retreats.Get(ctx, id)
	if err != nil {
		return err
	}
	reg, err := h.retreats.Registration(ctx, s.UserID, id)
	if err != nil {
		return err
	}
	participants, err := h.retreats.ParticipantCount(ctx, id)
	if err != nil {
		return err
	}
	orders, err := h.meals.UserOrders(ctx, s.UserID, id)
	if err != nil {
		return err
	}
	pending, err := h.payments.PendingOrders(ctx, s.UserID, id)
	if err != nil {
		return apperr.Wrap(err)
	}

	props := pages.RetreatProps{
		PageProps:      pageProps(c, retreat.Name, "dashboard", shared.Breadcrumb{Title: retreat.Name}),
		UserID:         s.UserID,
		Retreat:        *retreat,
		Attending:      reg != nil && reg.Status == models.RegistrationStatusRegistered,
		Participants:   participants,
		Orders:         orders,
		OrderingClosed: retreat.OrderingClosed(time.Now()),
		PendingTotal:   services.TotalExpected(pending),
		Currency:       h.payments.Currency(),
		PayPalEnabled:  h.payments.Enabled(),
	}
	return render(c, pages.RetreatDetail(props))
}

func (h *RetreatHandler) Attend(c echo.Context) error {
	s, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.retreats.Attend(c.Request().Context(), s.UserID, id); err != nil {
		return err
	}
	if middleware.IsAPIRequest(c) {
		return c.JSON(http.StatusOK, map[string]string{"status": string(models.RegistrationStatusRegistered)})
	}
	return redirectWith(c, retreatPath(id), "flash", "You are attending this retreat.")
}

func (h *RetreatHandler) Decline(c echo.Context) error {
	s, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.retreats.Decline(c.Request().Context(), s.UserID, id); err != nil {
		return err
	}
	if middleware.IsAPIRequest(c) {
		return c.JSON(http.StatusOK, map[string]string{"status": string(models.RegistrationStatusCancelled)})
	}
	return redirectWith(c, retreatPath(id), "flash", "Your attendance has been cancelled.")
}

// PlaceOrderRequest is the JSON body of an order. An empty list cancels.
type PlaceOrderRequest struct {
	Selections []services.Selection `json:"selections" validate:"dive"`
}

// PlaceOrder saves the user's selections for one meal. Browsers post a form
// with menuItem checkboxes and quantity_<id> inputs.
func (h *RetreatHandler) PlaceOrder(c echo.Context) error {
	s, err := currentUser(c)
	if err != nil {
		return err
	}
	retreatID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	mealID, err := paramID(c, "mealId")
	if err != nil {
		return err
	}

	var selections []services.Selection
	if middleware.IsAPIRequest(c) {
		var req PlaceOrderRequest
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
		selections = req.Selections
	} else {
		selections, err = formSelections(c)
		if err != nil {
			return err
		}
	}

	outcome, err := h.meals.PlaceOrder(c.Request().Context(), s.UserID, retreatID, mealID, selections)
	if err != nil {
		if !middleware.IsAPIRequest(c) && apperr.Is(err, apperr.ValidationFailed) {
			return redirectWith(c, retreatPath(retreatID), "error", apperr.PublicMessage(err))
		}
		return err
	}
	if middleware.IsAPIRequest(c) {
		return c.JSON(http.StatusOK, map[string]string{"outcome": string(outcome)})
	}

	msg := "Order saved."
	if outcome == services.OrderCancelled {
		msg = "Order cancelled."
	}
	return redirectWith(c, retreatPath(retreatID), "flash", msg)
}

func formSelections(c echo.Context) ([]services.Selection, error) {
	form, err := c.FormParams()
	if err != nil {
		return nil, apperr.Invalid("Invalid form", nil)
	}
	var selections []services.Selection
	for _, raw := range form["menuItem"] {
		id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
		if err != nil || id == 0 {
			return nil, apperr.Invalid("Invalid menu item", nil)
		}
		sel := services.Selection{MenuItemID: uint(id)}
		if q := strings.TrimSpace(form.Get(fmt.Sprintf("quantity_%d", id))); q != "" {
			n, err := strconv.Atoi(q)
			if err != nil {
				return nil, apperr.Invalid("Quantity must be a number", map[string]string{"quantity": "must be a number"})
			}
			sel.Quantity = &n
		}
		selections = append(selections, sel)
	}
	return selections, nil
}

// SignOff acknowledges the user's duty assignment.
func (h *RetreatHandler) SignOff(c echo.Context) error {
	s, err := currentUser(c)
	if err != nil {
		return err
	}
	retreatID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	dutyID, err := paramID(c, "dutyId")
	if err != nil {
		return err
	}
	assignment, err := h.duties.SignOff(c.Request().Context(), s.UserID, retreatID, dutyID)
	if err != nil {
		if !middleware.IsAPIRequest(c) && apperr.Is(err, apperr.ValidationFailed) {
			return redirectWith(c, retreatPath(retreatID), "error", apperr.PublicMessage(err))
		}
		return err
	}
	if middleware.IsAPIRequest(c) {
		return c.JSON(http.StatusOK, assignment)
	}
	return redirectWith(c, retreatPath(retreatID), "flash", "Duty acknowledged.")
}
