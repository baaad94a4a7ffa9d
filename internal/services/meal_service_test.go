package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retreat_app_echo/internal/apperr"
	"retreat_app_echo/internal/models"
)

type mealFixture struct {
	svc      *MealService
	user     models.User
	retreat  models.Retreat
	meal     models.Meal
	soup     models.MenuItem
	portions models.MenuItem
}

func newMealFixture(t *testing.T) *mealFixture {
	t.Helper()
	db := newTestDB(t)
	retreat := seedRetreat(t, db, "R")
	meal := seedMeal(t, db, retreat.ID, "Lunch", 35)
	return &mealFixture{
		svc:      NewMealService(db, nil),
		user:     seedUser(t, db, "u@example.com", models.UserRoleParticipant),
		retreat:  retreat,
		meal:     meal,
		soup:     seedMenuItem(t, db, meal.ID, "Soup", false),
		portions: seedMenuItem(t, db, meal.ID, "Portions", true),
	}
}

func (f *mealFixture) place(t *testing.T, selections ...Selection) (OrderOutcome, error) {
	t.Helper()
	return f.svc.PlaceOrder(context.Background(), f.user.ID, f.retreat.ID, f.meal.ID, selections)
}

func TestPlaceOrderLifecycle(t *testing.T) {
	f := newMealFixture(t)
	ctx := context.Background()

	outcome, err := f.place(t, Selection{MenuItemID: f.soup.ID}, Selection{MenuItemID: f.portions.ID, Quantity: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, OrderCreated, outcome)

	orders, err := f.svc.UserOrders(ctx, f.user.ID, f.retreat.ID)
	require.NoError(t, err)
	require.Contains(t, orders, f.meal.ID)
	assert.Len(t, orders[f.meal.ID].MenuItems, 2)
	assert.Equal(t, "70.00", ExpectedAmount(orders[f.meal.ID]).StringFixed(2))

	outcome, err = f.place(t, Selection{MenuItemID: f.portions.ID, Quantity: intPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, OrderUpdated, outcome)
	orders, err = f.svc.UserOrders(ctx, f.user.ID, f.retreat.ID)
	require.NoError(t, err)
	assert.Len(t, orders[f.meal.ID].MenuItems, 1)
	assert.Equal(t, "105.00", ExpectedAmount(orders[f.meal.ID]).StringFixed(2))

	outcome, err = f.place(t)
	require.NoError(t, err)
	assert.Equal(t, OrderCancelled, outcome)
	orders, err = f.svc.UserOrders(ctx, f.user.ID, f.retreat.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)

	outcome, err = f.place(t)
	require.NoError(t, err)
	assert.Equal(t, OrderUnchanged, outcome)
}

func TestPlaceOrderValidation(t *testing.T) {
	f := newMealFixture(t)

	tests := []struct {
		name       string
		selections []Selection
	}{
		{name: "foreign menu item", selections: []Selection{{MenuItemID: 999}}},
		{name: "duplicate item", selections: []Selection{{MenuItemID: f.soup.ID}, {MenuItemID: f.soup.ID}}},
		{name: "missing quantity", selections: []Selection{{MenuItemID: f.portions.ID}}},
		{name: "zero quantity", selections: []Selection{{MenuItemID: f.portions.ID, Quantity: intPtr(0)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.place(t, tt.selections...)
			assert.True(t, apperr.Is(err, apperr.ValidationFailed), "got %v", err)
		})
	}
}

func TestPlaceOrderDeadlineAndAvailability(t *testing.T) {
	db := newTestDB(t)
	svc := NewMealService(db, nil)
	ctx := context.Background()
	user := seedUser(t, db, "u@example.com", models.UserRoleParticipant)

	retreat := seedRetreat(t, db, "R")
	deadline := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Model(&retreat).Update("meal_order_deadline", deadline).Error)
	meal := seedMeal(t, db, retreat.ID, "Lunch", 10)
	item := seedMenuItem(t, db, meal.ID, "Soup", false)

	svc.now = func() time.Time { return deadline.Add(time.Minute) }
	_, err := svc.PlaceOrder(ctx, user.ID, retreat.ID, meal.ID, []Selection{{MenuItemID: item.ID}})
	require.Error(t, err)
	assert.Equal(t, "Ordering deadline has passed", apperr.PublicMessage(err))

	svc.now = func() time.Time { return deadline.Add(-time.Minute) }
	_, err = svc.PlaceOrder(ctx, user.ID, retreat.ID, meal.ID, []Selection{{MenuItemID: item.ID}})
	require.NoError(t, err)

	require.NoError(t, db.Model(&meal).Update("available", false).Error)
	_, err = svc.PlaceOrder(ctx, user.ID, retreat.ID, meal.ID, []Selection{{MenuItemID: item.ID}})
	assert.Equal(t, "Meal is not available for ordering", apperr.PublicMessage(err))
}

func TestPlaceOrderWrongRetreat(t *testing.T) {
	f := newMealFixture(t)
	_, err := f.svc.PlaceOrder(context.Background(), f.user.ID, f.retreat.ID+1, f.meal.ID, []Selection{{MenuItemID: f.soup.ID}})
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestPaidOrderIsLocked(t *testing.T) {
	f := newMealFixture(t)
	_, err := f.place(t, Selection{MenuItemID: f.soup.ID})
	require.NoError(t, err)
	require.NoError(t, f.svc.db.Model(&models.MealOrder{}).
		Where("user_id = ?", f.user.ID).Update("status", models.MealOrderStatusPaid).Error)

	_, err = f.place(t)
	assert.True(t, apperr.Is(err, apperr.ValidationFailed))

	_, err = f.place(t, Selection{MenuItemID: f.portions.ID, Quantity: intPtr(2)})
	assert.True(t, apperr.Is(err, apperr.ValidationFailed))
}

func TestCreateMealAndMenuItem(t *testing.T) {
	db := newTestDB(t)
	svc := NewMealService(db, nil)
	ctx := context.Background()
	retreat := seedRetreat(t, db, "R")

	_, err := svc.CreateMeal(ctx, retreat.ID, MealInput{Name: "Lunch", Price: -1, MealDate: retreat.StartDate})
	assert.True(t, apperr.Is(err, apperr.ValidationFailed))

	_, err = svc.CreateMeal(ctx, retreat.ID+1, MealInput{Name: "Lunch", Price: 5, MealDate: retreat.StartDate})
	assert.True(t, apperr.Is(err, apperr.NotFound))

	meal, err := svc.CreateMeal(ctx, retreat.ID, MealInput{Name: " Lunch ", Price: 0, MealDate: retreat.StartDate, Available: true})
	require.NoError(t, err)
	assert.Equal(t, "Lunch", meal.Name)

	item, err := svc.CreateMenuItem(ctx, retreat.ID, meal.ID, MenuItemInput{Name: "Bread", RequiresQuantity: true})
	require.NoError(t, err)
	assert.True(t, item.RequiresQuantity)

	require.NoError(t, svc.DeleteMenuItem(ctx, retreat.ID, meal.ID, item.ID))
	err = svc.DeleteMenuItem(ctx, retreat.ID, meal.ID, item.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestDeleteMeal(t *testing.T) {
	f := newMealFixture(t)
	ctx := context.Background()
	_, err := f.place(t, Selection{MenuItemID: f.soup.ID})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteMeal(ctx, f.retreat.ID, f.meal.ID))

	var orders, items int64
	f.svc.db.Model(&models.MealOrder{}).Count(&orders)
	f.svc.db.Model(&models.MenuItem{}).Count(&items)
	assert.Zero(t, orders)
	assert.Zero(t, items)

	err = f.svc.DeleteMeal(ctx, f.retreat.ID, f.meal.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestDeleteMealWithPaidOrders(t *testing.T) {
	f := newMealFixture(t)
	_, err := f.place(t, Selection{MenuItemID: f.soup.ID})
	require.NoError(t, err)
	require.NoError(t, f.svc.db.Model(&models.MealOrder{}).
		Where("user_id = ?", f.user.ID).Update("status", models.MealOrderStatusPaid).Error)

	err = f.svc.DeleteMeal(context.Background(), f.retreat.ID, f.meal.ID)
	assert.True(t, apperr.Is(err, apperr.ValidationFailed))
}
