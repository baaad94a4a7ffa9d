package services

import (
	"github.com/shopspring/decimal"

	"retreat_app_echo/internal/models"
)

// moneyPlaces is the precision the payment provider accepts.
const moneyPlaces = 2

// PortionMultiplier is the largest quantity chosen among the order's menu
// items that require one, or 1 when none carries a quantity.
func PortionMultiplier(order models.MealOrder) int {
	multiplier := 1
	for _, sel := range order.MenuItems {
		if !sel.MenuItem.RequiresQuantity || sel.Quantity == nil {
			continue
		}
		if *sel.Quantity > multiplier {
			multiplier = *sel.Quantity
		}
	}
	return multiplier
}

// ExpectedAmount prices a meal order. The order must be loaded with its Meal
// and MenuItems.MenuItem.
func ExpectedAmount(order models.MealOrder) decimal.Decimal {
	price := decimal.NewFromFloat(order.Meal.Price)
	return price.Mul(decimal.NewFromInt(int64(PortionMultiplier(order)))).Round(moneyPlaces)
}

// TotalExpected sums ExpectedAmount over orders.
func TotalExpected(orders []models.MealOrder) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(ExpectedAmount(o))
	}
	return total
}

// ToAmount converts a rounded decimal to the float stored in Payment.Amount.
func ToAmount(d decimal.Decimal) float64 {
	f, _ := d.Round(moneyPlaces).Float64()
	return f
}
