package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/Tallen231210/sequ3nce-ai-sub003/pkg/config"
)

// IdentityClaims are the verified claims the rest of the system consumes.
// Subject is the opaque external identity; it is never parsed.
type IdentityClaims struct {
	Subject string
	Email   string
	Name    string
}

// IdentityVerifier verifies upstream-issued credentials and extracts
// identity claims from them.
type IdentityVerifier interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (IdentityClaims, error)
	VerifyIDToken(ctx context.Context, rawIDToken string) (IdentityClaims, error)
}

// OIDCVerifier implements IdentityVerifier against a discovered OIDC
// provider. Signature verification lives entirely here; nothing downstream
// re-checks external credentials.
type OIDCVerifier struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

var _ IdentityVerifier = (*OIDCVerifier)(nil)

// NewOIDCVerifier discovers the issuer and prepares the code-exchange and
// token-verification configuration.
func NewOIDCVerifier(ctx context.Context, cfg config.APIConfig) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.OIDCRedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}
	return &OIDCVerifier{
		oauth:    oauthCfg,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.OIDCClientID}),
	}, nil
}

// AuthCodeURL returns the provider authorization URL for a login redirect.
func (v *OIDCVerifier) AuthCodeURL(state string) string {
	return v.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for a verified identity.
func (v *OIDCVerifier) Exchange(ctx context.Context, code string) (IdentityClaims, error) {
	token, err := v.oauth.Exchange(ctx, code)
	if err != nil {
		return IdentityClaims{}, fmt.Errorf("exchange authorization code: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return IdentityClaims{}, errors.New("token response missing id_token")
	}
	return v.VerifyIDToken(ctx, rawIDToken)
}

// VerifyIDToken checks an ID token's signature and extracts identity claims.
func (v *OIDCVerifier) VerifyIDToken(ctx context.Context, rawIDToken string) (IdentityClaims, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return IdentityClaims{}, fmt.Errorf("verify id token: %w", err)
	}
	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return IdentityClaims{}, fmt.Errorf("parse id token claims: %w", err)
	}
	return IdentityClaims{Subject: idToken.Subject, Email: claims.Email, Name: claims.Name}, nil
}
