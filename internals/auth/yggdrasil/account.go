package yggdrasil

import (
	"context"
	"errors"
	"time"

	"github.com/craftauth/craftauth/internals/auth"
)

// TokenLifetime is how long we trust an issued access token before
// refreshing. Yggdrasil servers do not report a lifetime, so this is a
// conservative client side assumption.
const TokenLifetime = 24 * time.Hour

// Login runs the credentials flow and maps the outcome onto the account
// vocabulary. The issued access token doubles as the refresh secret –
// that is the yggdrasil convention, /refresh rotates it on every use.
func Login(ctx context.Context, c *Client, provider auth.ProviderID, username string, password string) (*auth.Result, error) {
	response, err := c.Authenticate(ctx, username, password)
	switch {
	case err == nil:
		return accountResult(response, provider, username), nil
	case errors.Is(err, ErrTwoFactorRequired):
		return &auth.Result{Status: auth.StatusRequiresTwoFactor}, nil
	case errors.Is(err, ErrInvalidCredentials):
		return auth.Failed("invalid username or password"), nil
	default:
		return nil, auth.NetworkError(err)
	}
}

// Refresh re-issues an access token from the stored one. A rejected
// token surfaces as ErrReauthRequired, never as a plain network error.
func Refresh(ctx context.Context, c *Client, provider auth.ProviderID, username string, refreshSecret string) (*auth.Result, error) {
	response, err := c.Refresh(ctx, refreshSecret)
	switch {
	case err == nil:
		return accountResult(response, provider, username), nil
	case errors.Is(err, ErrTokenInvalid):
		return nil, auth.ErrReauthRequired
	default:
		return nil, auth.NetworkError(err)
	}
}

func accountResult(response *AuthResponse, provider auth.ProviderID, username string) *auth.Result {
	account := &auth.Account{
		Username:    username,
		UUID:        response.SelectedProfile.ID,
		DisplayName: response.SelectedProfile.Name,
		Provider:    provider,
		AccessToken: response.AccessToken,
		TokenExpiry: time.Now().Add(TokenLifetime),
	}
	return auth.Success(account, response.AccessToken)
}
