package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"retreat_app_echo/internal/apperr"
	"retreat_app_echo/internal/middleware"
	"retreat_app_echo/internal/models"
	"retreat_app_echo/internal/services"
	"retreat_app_echo/web/templates/pages"
	"retreat_app_echo/web/templates/shared"
)

// AdminHandler manages retreats, meals, duties and cash payments.
type AdminHandler struct {
	retreats *services.RetreatService
	meals    *services.MealService
	duties   *services.DutyService
	payments *services.PaymentService
	users    *services.UserService
	logger   *zap.Logger
}

func NewAdminHandler(retreats *services.RetreatService, meals *services.MealService, duties *services.DutyService, payments *services.PaymentService, users *services.UserService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		retreats: retreats,
		meals:    meals,
		duties:   duties,
		payments: payments,
		users:    users,
		logger:   logger,
	}
}

func adminRetreatPath(id uint) string {
	return fmt.Sprintf("/admin/retreats/%d", id)
}

var retreatsCrumb = shared.Breadcrumb{Title: "Retreats", URL: "/admin/retreats"}

// dateLayouts are the formats accepted from date inputs and JSON clients.
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.Invalid(fmt.Sprintf("Invalid %s", field), map[string]string{field: "must be a date"})
}

// finish answers a mutation with JSON for API callers or a redirect with a
// flash for forms. Validation errors on forms go back to the page.
func finish(c echo.Context, path string, payload interface{}, flash string, err error) error {
	if err != nil {
		if !middleware.IsAPIRequest(c) && apperr.Is(err, apperr.ValidationFailed) {
			return redirectWith(c, path, "error", apperr.PublicMessage(err))
		}
		return err
	}
	if middleware.IsAPIRequest(c) {
		if payload == nil {
			return c.NoContent(http.StatusNoContent)
		}
		return c.JSON(http.StatusOK, payload)
	}
	return redirectWith(c, path, "flash", flash)
}

func (h *AdminHandler) ListRetreats(c echo.Context) error {
	ctx := c.Request().Context()
	retreats, err := h.retreats.List(ctx)
	if err != nil {
		return err
	}
	if middleware.IsAPIRequest(c) {
		return c.JSON(http.StatusOK, retreats)
	}
	ids := make([]uint, len(retreats))
	for i, r := range retreats {
		ids[i] = r.ID
	}
	counts, err := h.retreats.ParticipantCounts(ctx, ids)
	if err != nil {
		return err
	}
	props := pages.AdminRetreatsProps{
		PageProps: pageProps(c, "Retreats", "admin", retreatsCrumb),
		Retreats:  retreats,
		Counts:    counts,
	}
	return render(c, pages.AdminRetreats(props))
}

func (h *AdminHandler) NewRetreat(c echo.Context) error {
	sources, err := h.retreats.List(c.Request().Context())
	if err != nil {
		return err
	}
	props := pages.AdminRetreatFormProps{
		PageProps: pageProps(c, "New retreat", "admin", retreatsCrumb, shared.Breadcrumb{Title: "New"}),
		Sources:   sources,
	}
	return render(c, pages.AdminRetreatForm(props))
}

// RetreatRequest is the create-retreat body, from a form or JSON.
type RetreatRequest struct {
	Name              string `form:"name" json:"name" validate:"required"`
	Description       string `form:"description" json:"description"`
	Location          string `form:"location" json:"location"`
	StartDate         string `form:"startDate" json:"startDate" validate:"required"`
	EndDate           string `form:"endDate" json:"endDate" validate:"required"`
	MealOrderDeadline string `form:"mealOrderDeadline" json:"mealOrderDeadline"`
	Status            string `form:"status" json:"status" validate:"omitempty,oneof=UPCOMING ACTIVE COMPLETED CANCELLED"`
	CopyFromID        uint   `form:"copyFromId" json:"copyFromId"`
	CopyMeals         bool   `form:"copyMeals" json:"copyMeals"`
	CopyDuties        bool   `form:"copyDuties" json:"copyDuties"`
}

func (r RetreatRequest) input() (services.CreateRetreatInput, error) {
	in := services.CreateRetreatInput{
		Name:        r.Name,
		Description: r.Description,
		Location:    r.Location,
		Status:      models.RetreatStatus(r.Status),
		CopyMeals:   r.CopyMeals,
		CopyDuties:  r.CopyDuties,
	}
	var err error
	if in.StartDate, err = parseDate("startDate", r.StartDate); err != nil {
		return in, err
	}
	if in.EndDate, err = parseDate("endDate", r.EndDate); err != nil {
		return in, err
	}
	deadline, err := parseDate("mealOrderDeadline", r.MealOrderDeadline)
	if err != nil {
		return in, err
	}
	if !deadline.IsZero() {
		in.MealOrderDeadline = &deadline
	}
	if r.CopyFromID != 0 {
		id := r.CopyFromID
		in.CopyFromID = &id
	}
	return in, nil
}

func (h *AdminHandler) CreateRetreat(c echo.Context) error {
	var req RetreatRequest
	err := bindAndValidate(c, &req)
	var retreat *models.Retreat
	if err == nil {
		var in services.CreateRetreatInput
		if in, err = req.input(); err == nil {
			retreat, err = h.retreats.Create(c.Request().Context(), in)
		}
	}
	if err != nil {
		return finish(c, "/admin/retreats/new", nil, "", err)
	}
	h.logger.Info("retreat created", zap.Uint("retreat_id", retreat.ID))
	return finish(c, adminRetreatPath(retreat.ID), retreat, "Retreat created.", nil)
}

// ShowRetreat renders the admin view of one retreat.
func (h *AdminHandler) ShowRetreat(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	retreat, err := h.retreats.Get(ctx, id)
	if err != nil {
		return err
	}
	if middleware.IsAPIRequest(c) {
		return c.JSON(http.StatusOK, retreat)
	}
	users, err := h.users.List(ctx)
	if err != nil {
		return err
	}
	orders, err := h.meals.RetreatOrders(ctx, id)
	if err != nil {
		return err
	}
	props := pages.AdminRetreatProps{
		PageProps: pageProps(c, retreat.Name, "admin", retreatsCrumb, shared.Breadcrumb{Title: retreat.Name}),
		Retreat:   *retreat,
		Users:     users,
		Orders:    orders,
		Currency:  h.payments.Currency(),
	}
	return render(c, pages.AdminRetreatDetail(props))
}

type MealRequest struct {
	Name        string  `form:"name" json:"name" validate:"required"`
	Description string  `form:"description" json:"description"`
	Price       float64 `form:"price" json:"price" validate:"gte=0"`
	MealDate    string  `form:"mealDate" json:"mealDate" validate:"required"`
	Available   bool    `form:"available" json:"available"`
}

func (h *AdminHandler) CreateMeal(c echo.Context) error {
	retreatID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req MealRequest
	var meal *models.Meal
	if err = bindAndValidate(c, &req); err == nil {
		var date time.Time
		if date, err = parseDate("mealDate", req.MealDate); err == nil {
			meal, err = h.meals.CreateMeal(c.Request().Context(), retreatID, services.MealInput{
				Name:        req.Name,
				Description: req.Description,
				Price:       req.Price,
				MealDate:    date,
				Available:   req.Available,
			})
		}
	}
	return finish(c, adminRetreatPath(retreatID), meal, "Meal added.", err)
}

func (h *AdminHandler) DeleteMeal(c echo.Context) error {
	retreatID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	mealID, err := paramID(c, "mealId")
	if err != nil {
		return err
	}
	err = h.meals.DeleteMeal(c.Request().Context(), retreatID, mealID)
	return finish(c, adminRetreatPath(retreatID), nil, "Meal deleted.", err)
}

type MenuItemRequest struct {
	Name             string `form:"name" json:"name" validate:"required"`
	Description      string `form:"description" json:"description"`
	RequiresQuantity bool   `form:"requiresQuantity" json:"requiresQuantity"`
}

func (h *AdminHandler) CreateMenuItem(c echo.Context) error {
	retreatID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	mealID, err := paramID(c, "mealId")
	if err != nil {
		return err
	}
	var req MenuItemRequest
	var item *models.MenuItem
	if err = bindAndValidate(c, &req); err == nil {
		item, err = h.meals.CreateMenuItem(c.Request().Context(), retreatID, mealID, services.MenuItemInput{
			Name:             req.Name,
			Description:      req.Description,
			RequiresQuantity: req.RequiresQuantity,
		})
	}
	return finish(c, adminRetreatPath(retreatID), item, "Menu item added.", err)
}

func (h *AdminHandler) DeleteMenuItem(c echo.Context) error {
	retreatID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	mealID, err := paramID(c, "mealId")
	if err != nil {
		return err
	}
	itemID, err := paramID(c, "itemId")
	if err != nil {
		return err
	}
	err = h.meals.DeleteMenuItem(c.Request().Context(), retreatID, mealID, itemID)
	return finish(c, adminRetreatPath(retreatID), nil, "Menu item removed.", err)
}

type DutyRequest struct {
	Title       string `form:"title" json:"title" validate:"required"`
	Description string `form:"description" json:"description"`
}

func (h *AdminHandler) CreateDuty(c echo.Context) error {
	retreatID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req DutyRequest
	var duty *models.Duty
	if err = bindAndValidate(c, &req); err == nil {
		duty, err = h.duties.CreateDuty(c.Request().Context(), retreatID, req.Title, req.Description)
	}
	return finish(c, adminRetreatPath(retreatID), duty, "Duty added.", err)
}

type AssignmentRequest struct {
	UserID uint `form:"userId" json:"userId" validate:"required"`
}

func (h *AdminHandler) AssignDuty(c echo.Context) error {
	return h.changeAssignment(c, h.duties.Assign, "User assigned.")
}

func (h *AdminHandler) UnassignDuty(c echo.Context) error {
	return h.changeAssignment(c, h.duties.Unassign, "Assignment removed.")
}

func (h *AdminHandler) changeAssignment(c echo.Context, change func(ctx context.Context, retreatID, dutyID, userID uint) (*models.Duty, error), flash string) error {
	retreatID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	dutyID, err := paramID(c, "dutyId")
	if err != nil {
		return err
	}
	var req AssignmentRequest
	var duty *models.Duty
	if err = bindAndValidate(c, &req); err == nil {
		duty, err = change(c.Request().Context(), retreatID, dutyID, req.UserID)
	}
	return finish(c, adminRetreatPath(retreatID), duty, flash, err)
}

// UploadDuties imports duties from a CSV file field named "file".
func (h *AdminHandler) UploadDuties(c echo.Context) error {
	retreatID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return finish(c, adminRetreatPath(retreatID), nil, "", apperr.Invalid("No file uploaded", map[string]string{"file": "required"}))
	}
	f, err := fh.Open()
	if err != nil {
		return apperr.Wrap(err)
	}
	defer f.Close()

	res, err := h.duties.ImportCSV(c.Request().Context(), retreatID, f)
	if err != nil {
		return finish(c, adminRetreatPath(retreatID), nil, "", err)
	}
	flash := fmt.Sprintf("Imported %d duties.", res.Created)
	if len(res.Errors) > 0 {
		flash = fmt.Sprintf("Imported %d duties. Skipped: %s", res.Created, strings.Join(res.Errors, "; "))
	}
	return finish(c, adminRetreatPath(retreatID), res, flash, nil)
}

// MarkPaidCash records a cash payment for a pending meal order.
func (h *AdminHandler) MarkPaidCash(c echo.Context) error {
	orderID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	back := "/admin/reports/unpaid-meals"
	if retreatID, err := formID(c, "retreatId"); err == nil {
		back = adminRetreatPath(retreatID)
	}
	err = h.payments.MarkPaidCash(c.Request().Context(), orderID)
	if err == nil {
		h.logger.Info("order marked paid in cash", zap.Uint("meal_order_id", orderID), zap.Uint("admin_id", middleware.RealSession(c).UserID))
	}
	return finish(c, back, map[string]string{"status": string(models.MealOrderStatusPaid)}, "Order marked as paid.", err)
}
