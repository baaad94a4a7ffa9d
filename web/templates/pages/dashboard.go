package pages

import (
	"github.com/a-h/templ"

	"retreat_app_echo/internal/models"
	"retreat_app_echo/web/templates/shared"
)

// RetreatCard is one retreat on the dashboard.
type RetreatCard struct {
	Retreat      models.Retreat
	Participants int64
	Attending    bool
}

type DashboardProps struct {
	shared.PageProps
	UserName string
	Retreats []RetreatCard
}

func Dashboard(props DashboardProps) templ.Component {
	return shared.Layout(props.PageProps, shared.Render(func(w *shared.Writer) {
		w.Printf(`<h1>Welcome, %s</h1>`, props.UserName)
		if len(props.Retreats) == 0 {
			w.Raw(`<p class="empty">No retreats are scheduled yet.</p>`)
			return
		}
		w.Raw(`<div class="cards">`)
		for _, card := range props.Retreats {
			r := card.Retreat
			w.Printf(`<article class="card"><h2><a href="/retreats/%d">%s</a></h2>`, r.ID, r.Name)
			w.Raw(statusBadge(string(r.Status)))
			w.Printf(`<p>%s</p>`, formatRange(r.StartDate, r.EndDate))
			if loc := deref(r.Location); loc != "" {
				w.Printf(`<p class="muted">%s</p>`, loc)
			}
			w.Printf(`<p>%d attending</p>`, card.Participants)
			if card.Attending {
				w.Raw(`<p class="attending">You are attending</p>`)
			}
			w.Raw(`</article>`)
		}
		w.Raw(`</div>`)
	}))
}
