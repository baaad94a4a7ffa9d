package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"retreat_app_echo/internal/apperr"
	"retreat_app_echo/internal/models"
)

type PaymentService struct {
	db       *gorm.DB
	provider PaymentProvider
	logger   *zap.Logger
	currency string
	now      func() time.Time
}

func NewPaymentService(db *gorm.DB, provider PaymentProvider, logger *zap.Logger, currency string) *PaymentService {
	if currency == "" {
		currency = "CAD"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		db:       db,
		provider: provider,
		logger:   logger,
		currency: currency,
		now:      time.Now,
	}
}

// PendingOrders returns the user's unpaid orders for a retreat, loaded with
// everything pricing needs.
func (s *PaymentService) PendingOrders(ctx context.Context, userID, retreatID uint) ([]models.MealOrder, error) {
	return pendingOrders(s.db.WithContext(ctx), userID, retreatID)
}

func pendingOrders(db *gorm.DB, userID, retreatID uint) ([]models.MealOrder, error) {
	var orders []models.MealOrder
	err := db.
		Preload("Meal").
		Preload("MenuItems.MenuItem").
		Where("user_id = ? AND retreat_id = ? AND status = ?", userID, retreatID, models.MealOrderStatusPending).
		Order("id asc").
		Find(&orders).Error
	return orders, err
}

// CreateOrderResult is returned to the checkout button.
type CreateOrderResult struct {
	OrderRef    string `json:"orderId"`
	PaymentID   uint   `json:"paymentId"`
	ApprovalURL string `json:"approvalUrl,omitempty"`
}

// CreateOrder opens a provider checkout for all of the user's pending orders
// in a retreat and reserves the reference with a tracking payment.
func (s *PaymentService) CreateOrder(ctx context.Context, userID, retreatID uint, returnURL, cancelURL string) (*CreateOrderResult, error) {
	if s.provider == nil {
		return nil, apperr.ProviderFailure("Payment provider is not configured", nil)
	}

	orders, err := s.PendingOrders(ctx, userID, retreatID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if len(orders) == 0 {
		return nil, apperr.Invalid("No pending orders to pay for", nil)
	}

	total := TotalExpected(orders)
	if !total.IsPositive() {
		return nil, apperr.Invalid("Nothing to pay for", nil)
	}

	req := ProviderOrderRequest{
		ReferenceID: fmt.Sprintf("retreat-%d-user-%d", retreatID, userID),
		Description: fmt.Sprintf("Meal orders for retreat: %d meal(s)", len(orders)),
		Amount:      total,
		Currency:    s.currency,
		ReturnURL:   returnURL,
		CancelURL:   cancelURL,
	}

	order, err := s.provider.CreateOrder(ctx, req)
	if err != nil {
		s.recordProviderCall(ctx, "create_order", userID, "", "ERROR", req, err.Error())
		return nil, apperr.ProviderFailure("Failed to create PayPal order", err)
	}
	if order.ID == "" {
		return nil, apperr.ProviderFailure("Failed to create PayPal order", errors.New("empty order id"))
	}

	var tracking models.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND external_order_ref = ? AND status = ?", userID, order.ID, models.PaymentStatusPending).
			Take(&tracking).Error
		switch {
		case err == nil:
			return tx.Model(&tracking).Update("amount", ToAmount(total)).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			ref := order.ID
			tracking = models.Payment{
				UserID:           userID,
				Amount:           ToAmount(total),
				Currency:         s.currency,
				ExternalOrderRef: &ref,
				Status:           models.PaymentStatusPending,
			}
			return tx.Create(&tracking).Error
		default:
			return err
		}
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.AlreadyProcessed(err)
		}
		return nil, apperr.Wrap(err)
	}

	s.recordProviderCall(ctx, "create_order", userID, order.ID, order.Status, req, order)

	return &CreateOrderResult{
		OrderRef:    order.ID,
		PaymentID:   tracking.ID,
		ApprovalURL: order.ApprovalURL,
	}, nil
}

// CaptureResult identifies the payment that carries the captured reference.
type CaptureResult struct {
	PaymentID uint   `json:"paymentId"`
	CaptureID string `json:"captureId"`
	OrderRef  string `json:"orderId"`
}

// Capture settles an approved provider order against the user's pending
// orders for a retreat. The provider is called before any write and all
// writes happen in one transaction. A second capture of the same reference
// fails with a constraint violation and is never retried.
func (s *PaymentService) Capture(ctx context.Context, retreatID uint, externalRef string, userID uint) (*CaptureResult, error) {
	if externalRef == "" {
		return nil, apperr.Invalid("PayPal order ID is required", map[string]string{"orderId": "required"})
	}
	if s.provider == nil {
		return nil, apperr.ProviderFailure("Payment provider is not configured", nil)
	}

	db := s.db.WithContext(ctx)

	var tracking models.Payment
	err := db.Where("external_order_ref = ? AND user_id = ? AND status = ?", externalRef, userID, models.PaymentStatusPending).
		Take(&tracking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var done int64
		if err := db.Model(&models.Payment{}).
			Where("external_order_ref = ? AND status = ?", externalRef, models.PaymentStatusCompleted).
			Count(&done).Error; err != nil {
			return nil, apperr.Wrap(err)
		}
		if done > 0 {
			return nil, apperr.AlreadyProcessed(nil)
		}
		return nil, apperr.NotFoundErr("Payment not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	capture, err := s.provider.CaptureOrder(ctx, externalRef)
	if err != nil {
		s.recordProviderCall(ctx, "capture_order", userID, externalRef, "ERROR", nil, err.Error())
		return nil, apperr.ProviderFailure("Failed to capture PayPal payment", err)
	}
	if capture.Status != ProviderStatusCompleted {
		s.recordProviderCall(ctx, "capture_order", userID, externalRef, capture.Status, nil, capture.Raw)
		return nil, apperr.ProviderFailure("Payment capture not completed", fmt.Errorf("capture status %q", capture.Status))
	}

	currency := capture.Currency
	if currency == "" {
		currency = s.currency
	}
	var payerRef *string
	if capture.PayerID != "" {
		payerRef = &capture.PayerID
	}

	result := &CaptureResult{PaymentID: tracking.ID, CaptureID: capture.CaptureID, OrderRef: externalRef}

	err = db.Transaction(func(tx *gorm.DB) error {
		orders, err := pendingOrders(tx, userID, retreatID)
		if err != nil {
			return err
		}

		pending := make([]PendingOrder, len(orders))
		for i, o := range orders {
			pending[i] = PendingOrder{MealOrderID: o.ID, Expected: ExpectedAmount(o)}
		}
		settlements := Reconcile(TrackingPayment{
			PaymentID:     tracking.ID,
			ExternalRef:   externalRef,
			LinkedOrderID: tracking.MealOrderID,
			Amount:        decimal.NewFromFloat(tracking.Amount),
		}, capture.Amount, pending)

		now := s.now()
		_, batchOwnsRef := ReferenceOwner(settlements)

		if batchOwnsRef && tracking.IsTracking() {
			// Free the reference before the owning order's row takes it.
			res := tx.Where("id = ? AND status = ?", tracking.ID, models.PaymentStatusPending).Delete(&models.Payment{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return apperr.AlreadyProcessed(nil)
			}
		} else if !batchOwnsRef {
			// Nothing in the batch takes the reference, so the tracking row
			// records the capture itself.
			updates := map[string]interface{}{
				"status":       models.PaymentStatusCompleted,
				"completed_at": now,
				"payer_ref":    payerRef,
				"currency":     currency,
			}
			if len(settlements) == 0 {
				updates["amount"] = ToAmount(capture.Amount)
			}
			res := tx.Model(&models.Payment{}).
				Where("id = ? AND status = ?", tracking.ID, models.PaymentStatusPending).
				Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return apperr.AlreadyProcessed(nil)
			}
		}

		for _, st := range settlements {
			paymentID, err := s.settleOrder(tx, userID, st, externalRef, payerRef, currency, now)
			if err != nil {
				return err
			}
			if st.OwnsReference {
				result.PaymentID = paymentID
			}

			res := tx.Model(&models.MealOrder{}).
				Where("id = ? AND status = ?", st.MealOrderID, models.MealOrderStatusPending).
				Updates(map[string]interface{}{
					"status":         models.MealOrderStatusPaid,
					"payment_method": models.PaymentMethodPayPal,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return apperr.AlreadyProcessed(nil)
			}
		}

		return tx.Create(providerLog(s.provider.Name(), "capture_order", userID, externalRef, capture.Status, settlements, capture.Raw)).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.logger.Warn("capture rejected by unique constraint",
				zap.String("order_ref", externalRef), zap.Uint("user_id", userID), zap.Error(err))
			return nil, apperr.AlreadyProcessed(err)
		}
		if ae, ok := apperr.As(err); ok {
			return nil, ae
		}
		s.logger.Error("capture transaction failed",
			zap.String("order_ref", externalRef), zap.Uint("user_id", userID), zap.Error(err))
		return nil, apperr.Wrap(err)
	}

	s.logger.Info("payment captured",
		zap.String("order_ref", externalRef),
		zap.String("capture_id", capture.CaptureID),
		zap.Uint("user_id", userID),
		zap.Uint("retreat_id", retreatID),
		zap.String("amount", capture.Amount.StringFixed(moneyPlaces)),
	)

	return result, nil
}

// settleOrder updates the order's existing payment in place or creates one.
func (s *PaymentService) settleOrder(tx *gorm.DB, userID uint, st Settlement, externalRef string, payerRef *string, currency string, now time.Time) (uint, error) {
	var ref *string
	if st.OwnsReference {
		ref = &externalRef
	}

	var existing models.Payment
	err := tx.Where("meal_order_id = ?", st.MealOrderID).Take(&existing).Error
	switch {
	case err == nil:
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", existing.ID, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"amount":             ToAmount(st.Amount),
				"currency":           currency,
				"status":             models.PaymentStatusCompleted,
				"completed_at":       now,
				"payer_ref":          payerRef,
				"external_order_ref": ref,
			})
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected == 0 {
			return 0, apperr.AlreadyProcessed(nil)
		}
		return existing.ID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		orderID := st.MealOrderID
		p := models.Payment{
			UserID:           userID,
			MealOrderID:      &orderID,
			Amount:           ToAmount(st.Amount),
			Currency:         currency,
			ExternalOrderRef: ref,
			PayerRef:         payerRef,
			Status:           models.PaymentStatusCompleted,
			CompletedAt:      &now,
		}
		if err := tx.Create(&p).Error; err != nil {
			return 0, err
		}
		return p.ID, nil
	default:
		return 0, err
	}
}

// MarkPaidCash records a cash payment for one order.
func (s *PaymentService) MarkPaidCash(ctx context.Context, mealOrderID uint) error {
	db := s.db.WithContext(ctx)

	var order models.MealOrder
	err := db.Preload("Meal").Preload("MenuItems.MenuItem").First(&order, mealOrderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFoundErr("Meal order not found")
	}
	if err != nil {
		return apperr.Wrap(err)
	}
	if order.Status == models.MealOrderStatusPaid {
		return apperr.Invalid("Meal order is already marked as paid", nil)
	}

	amount := ToAmount(ExpectedAmount(order))
	now := s.now()

	err = db.Transaction(func(tx *gorm.DB) error {
		var existing models.Payment
		err := tx.Where("meal_order_id = ?", order.ID).Take(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&existing).Updates(map[string]interface{}{
				"amount":       amount,
				"status":       models.PaymentStatusCompleted,
				"completed_at": now,
			}).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			orderID := order.ID
			if err := tx.Create(&models.Payment{
				UserID:      order.UserID,
				MealOrderID: &orderID,
				Amount:      amount,
				Currency:    s.currency,
				Status:      models.PaymentStatusCompleted,
				CompletedAt: &now,
			}).Error; err != nil {
				return err
			}
		default:
			return err
		}

		res := tx.Model(&models.MealOrder{}).
			Where("id = ? AND status = ?", order.ID, models.MealOrderStatusPending).
			Updates(map[string]interface{}{
				"status":         models.MealOrderStatusPaid,
				"payment_method": models.PaymentMethodCash,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Invalid("Meal order is already marked as paid", nil)
		}

		return tx.Create(providerLog(models.PaymentGatewayManual, "mark_paid_cash", order.UserID, "", string(models.PaymentStatusCompleted),
			map[string]interface{}{"meal_order_id": order.ID, "amount": amount}, nil)).Error
	})
	if err != nil {
		if ae, ok := apperr.As(err); ok {
			return ae
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.AlreadyProcessed(err)
		}
		return apperr.Wrap(err)
	}

	s.logger.Info("meal order marked paid with cash", zap.Uint("meal_order_id", order.ID), zap.Float64("amount", amount))
	return nil
}

func providerLog(gateway models.PaymentGateway, op string, userID uint, ref, status string, req, resp interface{}) *models.PaymentProviderLog {
	reqBytes, _ := json.Marshal(req)
	respBytes, _ := json.Marshal(resp)
	return &models.PaymentProviderLog{
		PaymentGateway:   gateway,
		Operation:        op,
		UserID:           userID,
		ExternalOrderRef: ref,
		Status:           status,
		RequestMetadata:  reqBytes,
		ResponseMetadata: respBytes,
	}
}

// recordProviderCall writes an audit row outside any transaction. Failures
// are logged and otherwise ignored.
func (s *PaymentService) recordProviderCall(ctx context.Context, op string, userID uint, ref, status string, req, resp interface{}) {
	entry := providerLog(s.provider.Name(), op, userID, ref, status, req, resp)
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		s.logger.Warn("failed to record provider call", zap.String("operation", op), zap.Error(err))
	}
}

// Enabled reports whether online payment is available.
func (s *PaymentService) Enabled() bool {
	return s.provider != nil
}

// Currency is the currency orders are charged in.
func (s *PaymentService) Currency() string {
	return s.currency
}
