package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"retreat_app_echo/internal/middleware"
	"retreat_app_echo/internal/services"
	"retreat_app_echo/web/templates/pages"
	"retreat_app_echo/web/templates/shared"
)

type ReportHandler struct {
	reports  *services.ReportService
	currency string
}

func NewReportHandler(reports *services.ReportService, currency string) *ReportHandler {
	return &ReportHandler{reports: reports, currency: currency}
}

var reportsCrumb = shared.Breadcrumb{Title: "Reports", URL: "/admin/reports"}

func (h *ReportHandler) Index(c echo.Context) error {
	return render(c, pages.ReportsIndex(pageProps(c, "Reports", "reports", shared.Breadcrumb{Title: "Reports"})))
}

func (h *ReportHandler) UnpaidMeals(c echo.Context) error {
	report, err := h.reports.UnpaidMeals(c.Request().Context())
	if err != nil {
		return err
	}
	if middleware.IsAPIRequest(c) {
		return c.JSON(http.StatusOK, report)
	}
	return render(c, pages.UnpaidMeals(pages.UnpaidMealsProps{
		PageProps: pageProps(c, "Unpaid meals", "reports", reportsCrumb, shared.Breadcrumb{Title: "Unpaid meals"}),
		Report:    report,
		Currency:  h.currency,
	}))
}

func (h *ReportHandler) UnacknowledgedDuties(c echo.Context) error {
	report, err := h.reports.UnacknowledgedDuties(c.Request().Context())
	if err != nil {
		return err
	}
	if middleware.IsAPIRequest(c) {
		return c.JSON(http.StatusOK, report)
	}
	return render(c, pages.UnacknowledgedDuties(pages.UnacknowledgedDutiesProps{
		PageProps: pageProps(c, "Unacknowledged duties", "reports", reportsCrumb, shared.Breadcrumb{Title: "Unacknowledged duties"}),
		Report:    report,
	}))
}

// MealSelections accepts an optional retreatId query parameter.
func (h *ReportHandler) MealSelections(c echo.Context) error {
	var retreatID *uint
	if c.QueryParam("retreatId") != "" {
		id, err := queryID(c, "retreatId")
		if err != nil {
			return err
		}
		retreatID = &id
	}

	report, err := h.reports.MealSelections(c.Request().Context(), retreatID)
	if err != nil {
		return err
	}
	if middleware.IsAPIRequest(c) {
		return c.JSON(http.StatusOK, report)
	}

	props := pages.MealSelectionsProps{
		PageProps: pageProps(c, "Meal selections", "reports", reportsCrumb, shared.Breadcrumb{Title: "Meal selections"}),
		Report:    report,
		Currency:  h.currency,
	}
	if retreatID != nil {
		props.RetreatID = *retreatID
	}
	return render(c, pages.MealSelections(props))
}
