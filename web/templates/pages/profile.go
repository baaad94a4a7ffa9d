package pages

import (
	"github.com/a-h/templ"

	"retreat_app_echo/internal/models"
	"retreat_app_echo/web/templates/shared"
)

// DietaryOptions are the checkboxes offered on the profile form.
var DietaryOptions = []string{"Vegetarian", "Vegan", "Gluten-free", "Dairy-free", "Nut allergy"}

type ProfileProps struct {
	shared.PageProps
	User       models.User
	Onboarding bool
}

func Profile(props ProfileProps) templ.Component {
	return shared.Layout(props.PageProps, shared.Render(func(w *shared.Writer) {
		if props.Onboarding {
			w.Raw(`<h1>Complete your profile</h1><p>Tell us your name and any dietary needs so meals can be planned.</p>`)
		} else {
			w.Raw(`<h1>Your profile</h1>`)
		}

		selected := map[string]bool{}
		notes := ""
		for _, r := range props.User.DietaryRestrictions {
			selected[r] = true
		}
		for _, r := range props.User.DietaryRestrictions {
			if !contains(DietaryOptions, r) {
				notes = r
			}
		}

		w.Raw(`<form method="post" action="/profile/complete">`)
		w.Printf(`<label>Name <input type="text" name="name" required value="%s"></label>`, deref(props.User.Name))
		w.Raw(`<fieldset><legend>Dietary restrictions</legend>`)
		for _, opt := range DietaryOptions {
			checked := ""
			if selected[opt] {
				checked = " checked"
			}
			w.Printf(`<label><input type="checkbox" name="dietaryRestrictions" value="%s"`, opt)
			w.Raw(checked)
			w.Printf(`> %s</label>`, opt)
		}
		w.Printf(`<label>Other notes <input type="text" name="dietaryNotes" value="%s"></label></fieldset>`, notes)
		w.Raw(`<button type="submit">Save</button></form>`)
		if props.Onboarding {
			w.Raw(`<form method="post" action="/profile/skip"><button type="submit" class="secondary">Skip for now</button></form>`)
		}
	}))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
