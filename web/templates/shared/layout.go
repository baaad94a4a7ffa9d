package shared

import (
	"github.com/a-h/templ"
)

// Breadcrumb represents a navigation trail
type Breadcrumb struct {
	Title string
	URL   string
}

// PageProps is the chrome shared by every page.
type PageProps struct {
	Title         string
	ActiveNav     string
	Breadcrumbs   []Breadcrumb
	UserEmail     string
	UserUID       string
	IsAdmin       bool
	Impersonating bool
	Flash         string
	Error         string
}

type navLink struct {
	key, title, url string
	admin           bool
}

var navLinks = []navLink{
	{key: "dashboard", title: "Dashboard", url: "/dashboard"},
	{key: "profile", title: "Profile", url: "/profile"},
	{key: "admin", title: "Admin", url: "/admin", admin: true},
	{key: "reports", title: "Reports", url: "/admin/reports", admin: true},
}

func head(w *Writer, title string) {
	w.Raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
	w.Raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	w.Printf(`<title>%s | Rigdzen Retreats</title>`, title)
	w.Raw(`<link rel="stylesheet" href="/static/app.css"></head>`)
}

// Layout wraps authenticated pages with navigation and flash messages.
func Layout(props PageProps, content templ.Component) templ.Component {
	return Render(func(w *Writer) {
		head(w, props.Title)
		w.Raw(`<body>`)
		if props.Impersonating {
			w.Printf(`<div class="impersonation-banner">Viewing as %s <form method="post" action="/admin/impersonate/stop"><button type="submit">Stop</button></form></div>`, props.UserEmail)
		}
		w.Raw(`<nav class="navbar"><a class="brand" href="/dashboard">Rigdzen</a><ul>`)
		for _, l := range navLinks {
			if l.admin && !props.IsAdmin {
				continue
			}
			class := ""
			if l.key == props.ActiveNav {
				class = ` class="active"`
			}
			w.Printf(`<li><a href="%s"`, l.url)
			w.Raw(class)
			w.Printf(`>%s</a></li>`, l.title)
		}
		w.Raw(`</ul>`)
		if props.UserEmail != "" {
			w.Printf(`<span class="user">%s</span>`, props.UserEmail)
			w.Raw(`<form method="post" action="/auth/logout"><button type="submit">Log out</button></form>`)
		}
		w.Raw(`</nav>`)

		Breadcrumbs(props.Breadcrumbs, w)
		Alerts(props, w)

		w.Raw(`<main class="container">`)
		w.Component(content)
		w.Raw(`</main></body></html>`)
	})
}

// PublicLayout is the bare layout for login and public error pages.
func PublicLayout(title string, content templ.Component) templ.Component {
	return Render(func(w *Writer) {
		head(w, title)
		w.Raw(`<body class="public"><main class="container narrow">`)
		w.Component(content)
		w.Raw(`</main></body></html>`)
	})
}

func Breadcrumbs(crumbs []Breadcrumb, w *Writer) {
	if len(crumbs) == 0 {
		return
	}
	w.Raw(`<ol class="breadcrumbs">`)
	for _, b := range crumbs {
		if b.URL == "" {
			w.Printf(`<li aria-current="page">%s</li>`, b.Title)
			continue
		}
		w.Printf(`<li><a href="%s">%s</a></li>`, b.URL, b.Title)
	}
	w.Raw(`</ol>`)
}

func Alerts(props PageProps, w *Writer) {
	if props.Flash != "" {
		w.Printf(`<div class="alert success">%s</div>`, props.Flash)
	}
	if props.Error != "" {
		w.Printf(`<div class="alert error">%s</div>`, props.Error)
	}
}
