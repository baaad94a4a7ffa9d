package services

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"retreat_app_echo/internal/models"
)

// ExternalIdentity is a user proven by an identity provider.
type ExternalIdentity struct {
	Provider   models.OAuthProvider
	ProviderID string
	Email      string
	Name       string
}

// InitFirebase initializes the Firebase Admin SDK and returns an auth client
func InitFirebase(ctx context.Context, credPath string) (*auth.Client, error) {
	opt := option.WithCredentialsFile(credPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, err
	}
	return app.Auth(ctx)
}

type firebaseTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseAuth turns Firebase ID tokens into identities.
type FirebaseAuth struct {
	client firebaseTokenVerifier
}

func NewFirebaseAuth(client *auth.Client) *FirebaseAuth {
	return &FirebaseAuth{client: client}
}

func (f *FirebaseAuth) Identity(ctx context.Context, idToken string) (*ExternalIdentity, error) {
	token, err := f.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("verify firebase token: %w", err)
	}

	email, _ := token.Claims["email"].(string)
	name, _ := token.Claims["name"].(string)
	return &ExternalIdentity{
		Provider:   models.OAuthProviderFirebase,
		ProviderID: token.UID,
		Email:      email,
		Name:       name,
	}, nil
}
