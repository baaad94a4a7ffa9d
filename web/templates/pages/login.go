package pages

import (
	"github.com/a-h/templ"

	"retreat_app_echo/web/templates/shared"
)

type LoginProps struct {
	Error         string
	Email         string
	GoogleEnabled bool
}

var loginErrors = map[string]string{
	"user_not_found":      "No account was found for this email. Please contact a retreat administrator to be added.",
	"oauth_failed":        "Signing in with Google failed. Please try again.",
	"invalid_state":       "Your sign-in attempt expired. Please try again.",
	"auth_not_configured": "Sign-in is not configured on this server.",
	"unauthorized":        "You do not have access to that page.",
}

func Login(props LoginProps) templ.Component {
	return shared.PublicLayout("Sign in", shared.Render(func(w *shared.Writer) {
		w.Raw(`<section class="login"><h1>Rigdzen Retreats</h1><p>Sign in to manage your retreat attendance, meals and duties.</p>`)
		if props.Error != "" {
			msg, ok := loginErrors[props.Error]
			if !ok {
				msg = "Something went wrong. Please try again."
			}
			w.Printf(`<div class="alert error">%s`, msg)
			if props.Email != "" {
				w.Printf(` <strong>%s</strong>`, props.Email)
			}
			w.Raw(`</div>`)
		}
		if props.GoogleEnabled {
			w.Raw(`<a class="button google" href="/auth/google">Sign in with Google</a>`)
		} else {
			w.Raw(`<p class="muted">Google sign-in is not configured.</p>`)
		}
		w.Raw(`</section>`)
	}))
}
