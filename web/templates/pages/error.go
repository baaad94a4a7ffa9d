package pages

import (
	"github.com/a-h/templ"

	"retreat_app_echo/web/templates/shared"
)

type ErrorPageProps struct {
	shared.PageProps
	ErrorTitle   string
	ErrorMessage string
	BackLink     string
	BackText     string
}

func errorBody(props ErrorPageProps) templ.Component {
	return shared.Render(func(w *shared.Writer) {
		w.Printf(`<section class="error-page"><h1>%s</h1><p>%s</p>`, props.ErrorTitle, props.ErrorMessage)
		link, text := props.BackLink, props.BackText
		if link == "" {
			link, text = "/", "Back to home"
		}
		w.Printf(`<a class="button" href="%s">%s</a></section>`, link, text)
	})
}

func ErrorPage(props ErrorPageProps) templ.Component {
	return shared.Layout(props.PageProps, errorBody(props))
}

func PublicErrorPage(props ErrorPageProps) templ.Component {
	return shared.PublicLayout(props.Title, errorBody(props))
}
