package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"

	"retreat_app_echo/internal/config"
	"retreat_app_echo/internal/models"
)

// GoogleOAuth runs the authorization code flow and verifies the returned ID
// token.
type GoogleOAuth struct {
	conf     *oauth2.Config
	exchange func(ctx context.Context, code string) (*oauth2.Token, error)
	validate func(ctx context.Context, rawIDToken, audience string) (*idtoken.Payload, error)
}

func NewGoogleOAuth(cfg config.GoogleConfig, appURL string) *GoogleOAuth {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  appURL + "/auth/google/callback",
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}
	return &GoogleOAuth{
		conf:     conf,
		exchange: func(ctx context.Context, code string) (*oauth2.Token, error) { return conf.Exchange(ctx, code) },
		validate: idtoken.Validate,
	}
}

func (g *GoogleOAuth) Configured() bool {
	return g.conf.ClientID != "" && g.conf.ClientSecret != ""
}

// AuthCodeURL is the consent screen URL carrying state.
func (g *GoogleOAuth) AuthCodeURL(state string) string {
	return g.conf.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Identity exchanges the code and validates the ID token against the client
// ID. Unverified emails are rejected.
func (g *GoogleOAuth) Identity(ctx context.Context, code string) (*ExternalIdentity, error) {
	tok, err := g.exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return nil, errors.New("no id_token in token response")
	}

	payload, err := g.validate(ctx, raw, g.conf.ClientID)
	if err != nil {
		return nil, fmt.Errorf("validate id token: %w", err)
	}

	email, _ := payload.Claims["email"].(string)
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return nil, errors.New("google email is not verified")
	}
	name, _ := payload.Claims["name"].(string)

	return &ExternalIdentity{
		Provider:   models.OAuthProviderGoogle,
		ProviderID: payload.Subject,
		Email:      email,
		Name:       name,
	}, nil
}
