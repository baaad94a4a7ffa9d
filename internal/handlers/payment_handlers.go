package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"retreat_app_echo/internal/apperr"
	"retreat_app_echo/internal/services"
)

// PaymentHandler drives the PayPal checkout for a user's pending meal orders.
type PaymentHandler struct {
	payments *services.PaymentService
	appURL   string
	logger   *zap.Logger
}

func NewPaymentHandler(payments *services.PaymentService, appURL string, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		appURL:   strings.TrimRight(appURL, "/"),
		logger:   logger,
	}
}

func (h *PaymentHandler) callbackURLs(retreatID uint) (string, string) {
	base := fmt.Sprintf("%s/retreats/%d/payments", h.appURL, retreatID)
	return base + "/return", base + "/cancel"
}

// Checkout opens a provider order and sends the browser to approve it.
func (h *PaymentHandler) Checkout(c echo.Context) error {
	s, err := currentUser(c)
	if err != nil {
		return err
	}
	retreatID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	returnURL, cancelURL := h.callbackURLs(retreatID)
	res, err := h.payments.CreateOrder(c.Request().Context(), s.UserID, retreatID, returnURL, cancelURL)
	if err != nil {
		h.logger.Warn("checkout failed", zap.Uint("user_id", s.UserID), zap.Uint("retreat_id", retreatID), zap.Error(err))
		return redirectWith(c, retreatPath(retreatID), "error", apperr.PublicMessage(err))
	}
	if res.ApprovalURL == "" {
		return redirectWith(c, retreatPath(retreatID), "error", "The payment provider did not return an approval link.")
	}
	return c.Redirect(http.StatusSeeOther, res.ApprovalURL)
}

// Return captures an approved order. The provider passes its order ID as
// the token query parameter.
func (h *PaymentHandler) Return(c echo.Context) error {
	s, err := currentUser(c)
	if err != nil {
		return err
	}
	retreatID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	res, err := h.payments.Capture(c.Request().Context(), retreatID, c.QueryParam("token"), s.UserID)
	if err != nil {
		h.logger.Warn("capture failed", zap.Uint("user_id", s.UserID), zap.String("order_ref", c.QueryParam("token")), zap.Error(err))
		return redirectWith(c, retreatPath(retreatID), "error", apperr.PublicMessage(err))
	}
	h.logger.Info("payment captured", zap.Uint("payment_id", res.PaymentID), zap.String("capture_id", res.CaptureID))
	return redirectWith(c, retreatPath(retreatID), "flash", "Payment received. Thank you!")
}

func (h *PaymentHandler) Cancel(c echo.Context) error {
	retreatID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	return redirectWith(c, retreatPath(retreatID), "error", "Payment was cancelled.")
}

// CreateOrder is the JSON variant of Checkout for client-side buttons.
func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	s, err := currentUser(c)
	if err != nil {
		return err
	}
	retreatID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	returnURL, cancelURL := h.callbackURLs(retreatID)
	res, err := h.payments.CreateOrder(c.Request().Context(), s.UserID, retreatID, returnURL, cancelURL)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

type CaptureOrderRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

// CaptureOrder settles an approved order and returns the owning payment.
func (h *PaymentHandler) CaptureOrder(c echo.Context) error {
	s, err := currentUser(c)
	if err != nil {
		return err
	}
	retreatID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req CaptureOrderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.payments.Capture(c.Request().Context(), retreatID, req.OrderID, s.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
