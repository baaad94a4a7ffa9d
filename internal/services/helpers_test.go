package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"retreat_app_echo/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := InitDB(":memory:", DBOptions{LogLevel: logger.Silent})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db, nil))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func strPtr(s string) *string { return &s }

func seedUser(t *testing.T, db *gorm.DB, email string, role models.UserRole) models.User {
	t.Helper()
	u := models.User{Email: email, Name: strPtr(email), Role: role, ProfileCompleted: true}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func seedRetreat(t *testing.T, db *gorm.DB, name string) models.Retreat {
	t.Helper()
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	r := models.Retreat{
		Name:      name,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 3),
		Status:    models.RetreatStatusUpcoming,
	}
	require.NoError(t, db.Create(&r).Error)
	return r
}

func seedMeal(t *testing.T, db *gorm.DB, retreatID uint, name string, price float64) models.Meal {
	t.Helper()
	m := models.Meal{
		RetreatID: retreatID,
		Name:      name,
		Price:     price,
		MealDate:  time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		Available: true,
	}
	require.NoError(t, db.Create(&m).Error)
	return m
}

func seedMenuItem(t *testing.T, db *gorm.DB, mealID uint, name string, requiresQuantity bool) models.MenuItem {
	t.Helper()
	item := models.MenuItem{MealID: mealID, Name: name, RequiresQuantity: requiresQuantity}
	require.NoError(t, db.Create(&item).Error)
	return item
}

func seedOrder(t *testing.T, db *gorm.DB, userID uint, meal models.Meal, selections ...models.MealOrderMenuItem) models.MealOrder {
	t.Helper()
	o := models.MealOrder{
		UserID:    userID,
		MealID:    meal.ID,
		RetreatID: meal.RetreatID,
		Status:    models.MealOrderStatusPending,
	}
	require.NoError(t, db.Create(&o).Error)
	for _, sel := range selections {
		sel.MealOrderID = o.ID
		require.NoError(t, db.Omit("MenuItem").Create(&sel).Error)
	}
	return o
}

type fakeProvider struct {
	orderID      string
	capture      *ProviderCapture
	createErr    error
	captureErr   error
	createCalls  int
	captureCalls int
	lastCreate   ProviderOrderRequest
}

func (f *fakeProvider) Name() models.PaymentGateway { return models.PaymentGatewayPayPal }

func (f *fakeProvider) CreateOrder(_ context.Context, req ProviderOrderRequest) (*ProviderOrder, error) {
	f.createCalls++
	f.lastCreate = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &ProviderOrder{ID: f.orderID, Status: "CREATED", ApprovalURL: "https://paypal.test/approve/" + f.orderID}, nil
}

func (f *fakeProvider) CaptureOrder(_ context.Context, orderID string) (*ProviderCapture, error) {
	f.captureCalls++
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	if f.capture == nil {
		return nil, errors.New("no capture configured")
	}
	c := *f.capture
	c.OrderID = orderID
	return &c, nil
}

func completedCapture(amount string) *ProviderCapture {
	return &ProviderCapture{
		CaptureID: "CAP-1",
		Status:    ProviderStatusCompleted,
		Amount:    decimal.RequireFromString(amount),
		Currency:  "CAD",
		PayerID:   "PAYER-1",
	}
}
