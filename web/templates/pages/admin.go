package pages

import (
	"github.com/a-h/templ"
	"github.com/shopspring/decimal"

	"retreat_app_echo/internal/models"
	"retreat_app_echo/web/templates/shared"
)

type AdminRetreatsProps struct {
	shared.PageProps
	Retreats []models.Retreat
	Counts   map[uint]int64
}

func AdminRetreats(props AdminRetreatsProps) templ.Component {
	return shared.Layout(props.PageProps, shared.Render(func(w *shared.Writer) {
		w.Raw(`<header class="page-header"><h1>Retreats</h1><a class="button" href="/admin/retreats/new">New retreat</a></header>`)
		w.Raw(`<table><thead><tr><th>Name</th><th>Dates</th><th>Status</th><th>Attending</th></tr></thead><tbody>`)
		for _, r := range props.Retreats {
			w.Printf(`<tr><td><a href="/admin/retreats/%d">%s</a></td><td>%s</td><td>`, r.ID, r.Name, formatRange(r.StartDate, r.EndDate))
			w.Raw(statusBadge(string(r.Status)))
			w.Printf(`</td><td>%d</td></tr>`, props.Counts[r.ID])
		}
		w.Raw(`</tbody></table>`)
	}))
}

type AdminRetreatFormProps struct {
	shared.PageProps
	Sources []models.Retreat
}

func AdminRetreatForm(props AdminRetreatFormProps) templ.Component {
	return shared.Layout(props.PageProps, shared.Render(func(w *shared.Writer) {
		w.Raw(`<h1>New retreat</h1><form method="post" action="/admin/retreats">`)
		w.Raw(`<label>Name <input type="text" name="name" required></label>`)
		w.Raw(`<label>Description <textarea name="description"></textarea></label>`)
		w.Raw(`<label>Location <input type="text" name="location"></label>`)
		w.Raw(`<label>Start date <input type="date" name="startDate" required></label>`)
		w.Raw(`<label>End date <input type="date" name="endDate" required></label>`)
		w.Raw(`<label>Meal order deadline <input type="datetime-local" name="mealOrderDeadline"></label>`)
		w.Raw(`<label>Status <select name="status">`)
		for _, s := range []models.RetreatStatus{models.RetreatStatusUpcoming, models.RetreatStatusActive, models.RetreatStatusCompleted, models.RetreatStatusCancelled} {
			w.Printf(`<option value="%s">%s</option>`, string(s), string(s))
		}
		w.Raw(`</select></label>`)
		if len(props.Sources) > 0 {
			w.Raw(`<fieldset><legend>Copy from an earlier retreat</legend><select name="copyFromId"><option value="">None</option>`)
			for _, r := range props.Sources {
				w.Printf(`<option value="%d">%s</option>`, r.ID, r.Name)
			}
			w.Raw(`</select><label><input type="checkbox" name="copyMeals" value="true"> Meals and menu items</label>`)
			w.Raw(`<label><input type="checkbox" name="copyDuties" value="true"> Duties and assignments</label></fieldset>`)
		}
		w.Raw(`<button type="submit">Create retreat</button></form>`)
	}))
}

type AdminRetreatProps struct {
	shared.PageProps
	Retreat  models.Retreat
	Users    []models.User
	Orders   []models.MealOrder
	Currency string
}

func AdminRetreatDetail(props AdminRetreatProps) templ.Component {
	return shared.Layout(props.PageProps, shared.Render(func(w *shared.Writer) {
		r := props.Retreat
		w.Printf(`<h1>%s</h1><p>%s</p>`, r.Name, formatRange(r.StartDate, r.EndDate))

		w.Raw(`<section><h2>Meals</h2>`)
		for _, m := range r.Meals {
			w.Printf(`<article class="meal"><h3>%s</h3><p>%s &middot; $%s</p><ul>`,
				m.Name, formatDateTime(m.MealDate), decimal.NewFromFloat(m.Price).StringFixed(2))
			for _, item := range m.MenuItems {
				w.Printf(`<li>%s`, item.Name)
				if item.RequiresQuantity {
					w.Raw(` <em>(quantity)</em>`)
				}
				w.Printf(`<form method="post" action="/admin/retreats/%d/meals/%d/menu-items/%d/delete"><button class="link">Remove</button></form></li>`, r.ID, m.ID, item.ID)
			}
			w.Printf(`</ul><form method="post" action="/admin/retreats/%d/meals/%d/menu-items">`, r.ID, m.ID)
			w.Raw(`<input type="text" name="name" placeholder="Menu item" required><input type="text" name="description" placeholder="Description">`)
			w.Raw(`<label><input type="checkbox" name="requiresQuantity" value="true"> Requires quantity</label><button type="submit">Add item</button></form>`)
			w.Printf(`<form method="post" action="/admin/retreats/%d/meals/%d/delete"><button class="danger">Delete meal</button></form></article>`, r.ID, m.ID)
		}
		w.Printf(`<form method="post" action="/admin/retreats/%d/meals">`, r.ID)
		w.Raw(`<input type="text" name="name" placeholder="Meal name" required><input type="text" name="description" placeholder="Description">`)
		w.Raw(`<input type="number" step="0.01" min="0" name="price" placeholder="Price" required><input type="datetime-local" name="mealDate" required>`)
		w.Raw(`<label><input type="checkbox" name="available" value="true" checked> Available</label><button type="submit">Add meal</button></form></section>`)

		w.Raw(`<section><h2>Duties</h2><table><thead><tr><th>Duty</th><th>Status</th><th>Assigned</th><th></th></tr></thead><tbody>`)
		for _, d := range r.Duties {
			w.Printf(`<tr><td>%s</td><td>`, d.Title)
			w.Raw(statusBadge(string(d.Status)))
			w.Raw(`</td><td><ul>`)
			for _, a := range d.Assignments {
				w.Printf(`<li>%s `, a.User.DisplayName())
				w.Raw(statusBadge(string(a.Status)))
				w.Printf(`<form method="post" action="/admin/retreats/%d/duties/%d/unassign"><input type="hidden" name="userId" value="%d"><button class="link">Remove</button></form></li>`, r.ID, d.ID, a.UserID)
			}
			w.Printf(`</ul></td><td><form method="post" action="/admin/retreats/%d/duties/%d/assign"><select name="userId">`, r.ID, d.ID)
			for _, u := range props.Users {
				w.Printf(`<option value="%d">%s</option>`, u.ID, u.DisplayName())
			}
			w.Raw(`</select><button type="submit">Assign</button></form></td></tr>`)
		}
		w.Raw(`</tbody></table>`)
		w.Printf(`<form method="post" action="/admin/retreats/%d/duties"><input type="text" name="title" placeholder="Duty title" required><input type="text" name="description" placeholder="Description"><button type="submit">Add duty</button></form>`, r.ID)
		w.Printf(`<form method="post" action="/admin/retreats/%d/duties/upload" enctype="multipart/form-data"><input type="file" name="file" accept=".csv" required><button type="submit">Upload CSV</button></form></section>`, r.ID)

		w.Raw(`<section><h2>Meal orders</h2><table><thead><tr><th>User</th><th>Meal</th><th>Selections</th><th>Status</th><th></th></tr></thead><tbody>`)
		for _, o := range props.Orders {
			w.Printf(`<tr><td>%s</td><td>%s</td><td>%s</td><td>`, o.User.DisplayName(), o.Meal.Name, selectionSummary(o))
			w.Raw(statusBadge(string(o.Status)))
			w.Raw(`</td><td>`)
			if o.Status == models.MealOrderStatusPending {
				w.Printf(`<form method="post" action="/admin/meal-orders/%d/mark-paid-cash"><input type="hidden" name="retreatId" value="%d"><button type="submit">Mark paid (cash)</button></form>`, o.ID, r.ID)
			}
			w.Raw(`</td></tr>`)
		}
		w.Raw(`</tbody></table></section>`)
	}))
}

type AdminUsersProps struct {
	shared.PageProps
	Users                []models.User
	ImpersonationEnabled bool
}

func AdminUsers(props AdminUsersProps) templ.Component {
	return shared.Layout(props.PageProps, shared.Render(func(w *shared.Writer) {
		w.Raw(`<h1>Users</h1><table><thead><tr><th>Name</th><th>Email</th><th>Role</th><th></th></tr></thead><tbody>`)
		for _, u := range props.Users {
			w.Printf(`<tr><td><form method="post" action="/admin/users/%d"><input type="text" name="name" value="%s">`, u.ID, deref(u.Name))
			w.Printf(`<select name="role">`)
			for _, role := range []models.UserRole{models.UserRoleParticipant, models.UserRoleAdmin} {
				sel := ""
				if u.Role == role {
					sel = " selected"
				}
				w.Printf(`<option value="%s"`, string(role))
				w.Raw(sel)
				w.Printf(`>%s</option>`, string(role))
			}
			w.Printf(`</select><button type="submit">Save</button></form></td><td>%s</td><td>%s</td><td>`, u.Email, string(u.Role))
			w.Printf(`<a href="/admin/users/%d/preference">Notifications</a>`, u.ID)
			if props.ImpersonationEnabled {
				w.Printf(`<form method="post" action="/admin/impersonate"><input type="hidden" name="userId" value="%d"><button type="submit">View as</button></form>`, u.ID)
			}
			w.Raw(`</td></tr>`)
		}
		w.Raw(`</tbody></table>`)
	}))
}

// UserPreferencePopup is the notification preference form of one user.
func UserPreferencePopup(user models.User, pref models.UserNotifPreference) templ.Component {
	return shared.Render(func(w *shared.Writer) {
		w.Printf(`<div class="modal"><h2>Notifications for %s</h2><form method="post" action="/admin/users/%d/preference">`, user.DisplayName(), user.ID)
		w.Raw(`<label>Channel <select name="channel">`)
		for _, ch := range []models.NotificationChannel{models.NotificationChannelEmail, models.NotificationChannelWhatsapp, models.NotificationChannelNone} {
			sel := ""
			if pref.Channel == ch {
				sel = " selected"
			}
			w.Printf(`<option value="%s"`, string(ch))
			w.Raw(sel)
			w.Printf(`>%s</option>`, string(ch))
		}
		w.Raw(`</select></label><label>WhatsApp target <select name="whatsapp_target_type">`)
		for _, tt := range []string{models.WhatsappTargetTypePersonal, models.WhatsappTargetTypeGroup} {
			sel := ""
			if pref.WhatsappTargetType == tt {
				sel = " selected"
			}
			w.Printf(`<option value="%s"`, tt)
			w.Raw(sel)
			w.Printf(`>%s</option>`, tt)
		}
		w.Printf(`</select></label><label>Group ID <input type="text" name="whatsapp_group_id" value="%s"></label>`, pref.WhatsappGroupID)
		w.Raw(`<button type="submit">Save</button></form></div>`)
	})
}

func UserPreferenceSuccess() templ.Component {
	return shared.Render(func(w *shared.Writer) {
		w.Raw(`<div class="alert success">Preference saved.</div>`)
	})
}
