package pages

import (
	"github.com/a-h/templ"

	"retreat_app_echo/internal/services"
	"retreat_app_echo/web/templates/shared"
)

func ReportsIndex(props shared.PageProps) templ.Component {
	return shared.Layout(props, shared.Render(func(w *shared.Writer) {
		w.Raw(`<h1>Reports</h1><ul class="reports">`)
		w.Raw(`<li><a href="/admin/reports/unpaid-meals">Unpaid meals</a> Meal orders pending payment</li>`)
		w.Raw(`<li><a href="/admin/reports/unacknowledged-duties">Unacknowledged duties</a> Assigned duties not yet acknowledged</li>`)
		w.Raw(`<li><a href="/admin/reports/user-meal-selections">Meal selections</a> What everyone ordered</li>`)
		w.Raw(`</ul>`)
	}))
}

type UnpaidMealsProps struct {
	shared.PageProps
	Report   *services.UnpaidMealsReport
	Currency string
}

func UnpaidMeals(props UnpaidMealsProps) templ.Component {
	return shared.Layout(props.PageProps, shared.Render(func(w *shared.Writer) {
		rep := props.Report
		w.Printf(`<h1>Unpaid meals</h1><div class="summary"><p>Total unpaid orders: %d</p><p>Total unpaid amount: %s</p></div>`,
			len(rep.Orders), money(rep.Total, props.Currency))
		if len(rep.Orders) == 0 {
			w.Raw(`<p class="empty">No unpaid meal orders found. All orders have been paid!</p>`)
			return
		}
		w.Raw(`<table><thead><tr><th>User</th><th>Retreat</th><th>Meal</th><th>Menu items</th><th>Amount</th><th>Ordered</th></tr></thead><tbody>`)
		for _, line := range rep.Orders {
			o := line.Order
			w.Printf(`<tr><td>%s<br><small>%s</small></td><td>%s</td><td>%s<br><small>%s</small></td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				o.User.DisplayName(), o.User.Email, o.Meal.Retreat.Name, o.Meal.Name, formatDateTime(o.Meal.MealDate),
				selectionSummary(o), money(line.Amount, props.Currency), formatDateTime(o.CreatedAt))
		}
		w.Raw(`</tbody></table>`)
	}))
}

type UnacknowledgedDutiesProps struct {
	shared.PageProps
	Report *services.UnacknowledgedDutiesReport
}

func UnacknowledgedDuties(props UnacknowledgedDutiesProps) templ.Component {
	return shared.Layout(props.PageProps, shared.Render(func(w *shared.Writer) {
		rep := props.Report
		w.Printf(`<h1>Unacknowledged duties</h1><div class="summary"><p>Users: %d</p><p>Total unacknowledged: %d</p><p>Retreats: %d</p></div>`,
			len(rep.Users), rep.Total, rep.Retreats)
		if len(rep.Users) == 0 {
			w.Raw(`<p class="empty">All assigned duties have been acknowledged!</p>`)
			return
		}
		for _, group := range rep.Users {
			w.Printf(`<article class="card"><h2>%s</h2><p class="muted">%s</p><ul>`, group.User.DisplayName(), group.User.Email)
			for _, a := range group.Assignments {
				w.Printf(`<li><strong>%s</strong> %s <small>assigned %s</small></li>`,
					a.Duty.Title, a.Duty.Retreat.Name, formatDateTime(a.AssignedAt))
			}
			w.Raw(`</ul></article>`)
		}
	}))
}

type MealSelectionsProps struct {
	shared.PageProps
	Report    *services.MealSelectionsReport
	RetreatID uint
	Currency  string
}

func MealSelections(props MealSelectionsProps) templ.Component {
	return shared.Layout(props.PageProps, shared.Render(func(w *shared.Writer) {
		rep := props.Report
		w.Raw(`<h1>Meal selections</h1><form method="get" action="/admin/reports/user-meal-selections"><select name="retreatId" onchange="this.form.submit()"><option value="">All retreats</option>`)
		for _, r := range rep.Retreats {
			sel := ""
			if r.ID == props.RetreatID {
				sel = " selected"
			}
			w.Printf(`<option value="%d"`, r.ID)
			w.Raw(sel)
			w.Printf(`>%s</option>`, r.Name)
		}
		w.Raw(`</select></form>`)
		if len(rep.Lines) == 0 {
			w.Raw(`<p class="empty">No meal orders found.</p>`)
			return
		}
		w.Raw(`<table><thead><tr><th>User</th><th>Retreat</th><th>Meal</th><th>Selections</th><th>Amount</th><th>Status</th></tr></thead><tbody>`)
		for _, line := range rep.Lines {
			o := line.Order
			w.Printf(`<tr><td>%s`, o.User.DisplayName())
			if line.Cancelled {
				w.Raw(` <span class="badge cancelled">Not attending</span>`)
			}
			w.Printf(`</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>`,
				o.Meal.Retreat.Name, o.Meal.Name, selectionSummary(o), money(line.Amount, props.Currency))
			w.Raw(statusBadge(string(o.Status)))
			w.Raw(`</td></tr>`)
		}
		w.Raw(`</tbody></table>`)
	}))
}
