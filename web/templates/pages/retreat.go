package pages

import (
	"fmt"

	"github.com/a-h/templ"
	"github.com/shopspring/decimal"

	"retreat_app_echo/internal/models"
	"retreat_app_echo/web/templates/shared"
)

type RetreatProps struct {
	shared.PageProps
	UserID         uint
	Retreat        models.Retreat
	Attending      bool
	Participants   int64
	Orders         map[uint]models.MealOrder
	OrderingClosed bool
	PendingTotal   decimal.Decimal
	Currency       string
	PayPalEnabled  bool
}

func RetreatDetail(props RetreatProps) templ.Component {
	return shared.Layout(props.PageProps, shared.Render(func(w *shared.Writer) {
		r := props.Retreat
		w.Printf(`<header class="page-header"><h1>%s</h1>`, r.Name)
		w.Raw(statusBadge(string(r.Status)))
		w.Printf(`<p>%s</p>`, formatRange(r.StartDate, r.EndDate))
		if loc := deref(r.Location); loc != "" {
			w.Printf(`<p class="muted">%s</p>`, loc)
		}
		if desc := deref(r.Description); desc != "" {
			w.Printf(`<p>%s</p>`, desc)
		}
		w.Printf(`<p>%d attending</p></header>`, props.Participants)

		attendance(w, props)
		if props.Attending {
			meals(w, props)
			payment(w, props)
			duties(w, props)
		}
	}))
}

func attendance(w *shared.Writer, props RetreatProps) {
	w.Raw(`<section class="attendance">`)
	if props.Attending {
		w.Printf(`<p>You are attending this retreat.</p><form method="post" action="/retreats/%d/decline"><button type="submit" class="secondary">I can no longer attend</button></form>`, props.Retreat.ID)
	} else {
		w.Printf(`<form method="post" action="/retreats/%d/attend"><button type="submit">I will attend</button></form>`, props.Retreat.ID)
	}
	w.Raw(`</section>`)
}

func meals(w *shared.Writer, props RetreatProps) {
	w.Raw(`<section class="meals"><h2>Meals</h2>`)
	if d := props.Retreat.MealOrderDeadline; d != nil {
		w.Printf(`<p class="muted">Order by %s</p>`, formatDateTime(*d))
	}
	if len(props.Retreat.Meals) == 0 {
		w.Raw(`<p class="empty">No meals have been added yet.</p></section>`)
		return
	}
	for _, meal := range props.Retreat.Meals {
		order, ordered := props.Orders[meal.ID]
		w.Printf(`<article class="meal"><h3>%s</h3><p>%s &middot; $%s</p>`,
			meal.Name, formatDateTime(meal.MealDate), decimal.NewFromFloat(meal.Price).StringFixed(2))

		locked := props.OrderingClosed || !meal.Available || (ordered && order.Status == models.MealOrderStatusPaid)
		if ordered {
			w.Raw(statusBadge(string(order.Status)))
			w.Printf(`<p>%s</p>`, selectionSummary(order))
		}
		if locked {
			w.Raw(`</article>`)
			continue
		}

		chosen := map[uint]*int{}
		if ordered {
			for _, sel := range order.MenuItems {
				q := sel.Quantity
				chosen[sel.MenuItemID] = q
				if q == nil {
					zero := 0
					chosen[sel.MenuItemID] = &zero
				}
			}
		}
		w.Printf(`<form method="post" action="/retreats/%d/meals/%d/order">`, props.Retreat.ID, meal.ID)
		for _, item := range meal.MenuItems {
			checked := ""
			if _, ok := chosen[item.ID]; ok {
				checked = " checked"
			}
			w.Printf(`<label><input type="checkbox" name="menuItem" value="%d"`, item.ID)
			w.Raw(checked)
			w.Printf(`> %s</label>`, item.Name)
			if item.RequiresQuantity {
				qty := ""
				if q := chosen[item.ID]; q != nil && *q > 0 {
					qty = fmt.Sprint(*q)
				}
				w.Printf(`<input type="number" min="1" name="quantity_%d" value="%s">`, item.ID, qty)
			}
		}
		w.Raw(`<button type="submit">Save order</button></form></article>`)
	}
	w.Raw(`</section>`)
}

func payment(w *shared.Writer, props RetreatProps) {
	if props.PendingTotal.IsZero() {
		return
	}
	w.Printf(`<section class="payment"><h2>Payment</h2><p>Amount due: %s</p>`, money(props.PendingTotal, props.Currency))
	if props.PayPalEnabled {
		w.Printf(`<form method="post" action="/retreats/%d/payments"><button type="submit">Pay with PayPal</button></form>`, props.Retreat.ID)
	}
	w.Raw(`<p class="muted">You can also pay in cash at the retreat.</p></section>`)
}

func duties(w *shared.Writer, props RetreatProps) {
	var mine []models.Duty
	for _, d := range props.Retreat.Duties {
		for _, a := range d.Assignments {
			if a.UserID == props.UserID {
				mine = append(mine, d)
				break
			}
		}
	}
	if len(mine) == 0 {
		return
	}
	w.Raw(`<section class="duties"><h2>Your duties</h2><ul>`)
	for _, d := range mine {
		w.Printf(`<li><strong>%s</strong> %s`, d.Title, deref(d.Description))
		for _, a := range d.Assignments {
			if a.UserID != props.UserID {
				continue
			}
			if a.Status == models.AssignmentStatusCompleted {
				w.Raw(` <span class="badge completed">Acknowledged</span>`)
			} else {
				w.Printf(`<form method="post" action="/retreats/%d/duties/%d/sign-off"><button type="submit">Acknowledge</button></form>`, props.Retreat.ID, d.ID)
			}
		}
		w.Raw(`</li>`)
	}
	w.Raw(`</ul></section>`)
}
