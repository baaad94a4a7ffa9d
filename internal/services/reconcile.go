package services

import (
	"github.com/shopspring/decimal"
)

// reconcileTolerance is the largest gap between captured and expected totals
// still treated as an exact match.
var reconcileTolerance = decimal.NewFromFloat(0.01)

// TrackingPayment is the placeholder row that reserved the external reference
// before capture.
type TrackingPayment struct {
	PaymentID     uint
	ExternalRef   string
	LinkedOrderID *uint
	Amount        decimal.Decimal
}

// PendingOrder is an unpaid order taking part in a capture.
type PendingOrder struct {
	MealOrderID uint
	Expected    decimal.Decimal
}

// Settlement is the amount assigned to one order. At most one settlement in a
// batch owns the external reference.
type Settlement struct {
	MealOrderID   uint
	Amount        decimal.Decimal
	OwnsReference bool
}

// Reconcile splits a captured amount across pending orders.
//
// When the captured amount matches the expected total within a cent each
// order gets its expected amount. Otherwise the capture is split in
// proportion to expected amounts, or evenly when nothing was expected. Any
// rounding remainder lands on the last order so the settlements always add up
// to the captured amount. Each proportional amount therefore equals
// expected/total*captured only to within a cent.
//
// The reference goes to the tracking payment's linked order when it is part of
// the batch, else to the first order. A tracking payment linked to an order
// outside the batch keeps the reference and no settlement owns it.
func Reconcile(tracking TrackingPayment, captured decimal.Decimal, orders []PendingOrder) []Settlement {
	if len(orders) == 0 {
		return nil
	}

	settlements := make([]Settlement, len(orders))
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.Expected)
	}

	switch {
	case total.Sub(captured).Abs().LessThan(reconcileTolerance):
		for i, o := range orders {
			settlements[i] = Settlement{MealOrderID: o.MealOrderID, Amount: o.Expected.Round(moneyPlaces)}
		}
	case total.IsPositive():
		allocated := decimal.Zero
		for i, o := range orders {
			amount := o.Expected.Div(total).Mul(captured).Round(moneyPlaces)
			if i == len(orders)-1 {
				amount = captured.Sub(allocated).Round(moneyPlaces)
			}
			allocated = allocated.Add(amount)
			settlements[i] = Settlement{MealOrderID: o.MealOrderID, Amount: amount}
		}
	default:
		share := captured.Div(decimal.NewFromInt(int64(len(orders)))).Round(moneyPlaces)
		allocated := decimal.Zero
		for i, o := range orders {
			amount := share
			if i == len(orders)-1 {
				amount = captured.Sub(allocated).Round(moneyPlaces)
			}
			allocated = allocated.Add(amount)
			settlements[i] = Settlement{MealOrderID: o.MealOrderID, Amount: amount}
		}
	}

	owner := 0
	if tracking.LinkedOrderID != nil {
		owner = -1
		for i, o := range orders {
			if o.MealOrderID == *tracking.LinkedOrderID {
				owner = i
				break
			}
		}
	}
	if owner >= 0 {
		settlements[owner].OwnsReference = true
	}

	return settlements
}

// ReferenceOwner returns the settlement that carries the external reference.
func ReferenceOwner(settlements []Settlement) (Settlement, bool) {
	for _, s := range settlements {
		if s.OwnsReference {
			return s, true
		}
	}
	return Settlement{}, false
}
