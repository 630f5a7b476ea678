// Package elyby implements the ely.by account provider. Ely.by speaks the
// plain yggdrasil protocol: username/password logins only, no oauth.
package elyby

import (
	"context"
	"net/http"

	"github.com/craftauth/craftauth/internals/auth"
	"github.com/craftauth/craftauth/internals/auth/yggdrasil"
)

const authServer = "https://authserver.ely.by/auth"

type Provider struct {
	client *yggdrasil.Client
}

// New returns the ely.by provider. Pass nil to use http.DefaultClient.
func New(httpClient *http.Client) *Provider {
	return &Provider{
		client: yggdrasil.NewClient(httpClient, authServer, false),
	}
}

func (p *Provider) ID() auth.ProviderID { return auth.ElyBy }

func (p *Provider) Capabilities() auth.Capabilities {
	return auth.Capabilities{Credentials: true}
}

// LoginWithCredentials logs in with email/password. 2FA protected
// accounts resolve to StatusRequiresTwoFactor – retry with
// "password:otp" then.
func (p *Provider) LoginWithCredentials(ctx context.Context, username string, password string) (*auth.Result, error) {
	return yggdrasil.Login(ctx, p.client, auth.ElyBy, username, password)
}

// Refresh rotates the stored token for a fresh one
func (p *Provider) Refresh(ctx context.Context, username string, refreshSecret string) (*auth.Result, error) {
	return yggdrasil.Refresh(ctx, p.client, auth.ElyBy, username, refreshSecret)
}

// Revoke invalidates the token server side on logout
func (p *Provider) Revoke(ctx context.Context, username string, refreshSecret string) error {
	return p.client.Invalidate(ctx, refreshSecret)
}
