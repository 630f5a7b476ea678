// Package littleskin implements the littleskin.cn account provider.
// LittleSkin supports both username/password logins (yggdrasil protocol)
// and the oauth device code flow; both paths end up with a yggdrasil
// access token, so refreshing works the same for either.
package littleskin

import (
	"context"
	"net/http"
	"sync"

	"github.com/craftauth/craftauth/internals/auth"
	"github.com/craftauth/craftauth/internals/auth/yggdrasil"
	"golang.org/x/oauth2"
)

const (
	authServer    = "https://littleskin.cn/api/yggdrasil/authserver"
	deviceAuthURL = "https://open.littleskin.cn/oauth/device_code"
	tokenURL      = "https://open.littleskin.cn/oauth/token"

	// oauthClientID is this launcher's registered open.littleskin.cn app
	oauthClientID = "craftauth"
	oauthScope    = "openid offline_access User.Read Player.Read Yggdrasil.PlayerProfiles.Select"
)

type Provider struct {
	client *yggdrasil.Client
	http   *http.Client
	config *oauth2.Config

	mu sync.Mutex
	// flows holds the pending device code flows by device code.
	// Entries are dropped once a flow reaches a terminal state.
	flows map[string]*auth.Flow
}

// New returns the littleskin provider. Pass nil to use http.DefaultClient.
func New(httpClient *http.Client) *Provider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	// littleskin.cn requires the Minecraft agent field
	client := yggdrasil.NewClient(httpClient, authServer, true)
	return &Provider{
		client: client,
		http:   httpClient,
		config: &oauth2.Config{
			ClientID: oauthClientID,
			Scopes:   []string{oauthScope},
			Endpoint: oauth2.Endpoint{
				DeviceAuthURL: deviceAuthURL,
				TokenURL:      tokenURL,
			},
		},
		flows: map[string]*auth.Flow{},
	}
}

func (p *Provider) ID() auth.ProviderID { return auth.LittleSkin }

func (p *Provider) Capabilities() auth.Capabilities {
	return auth.Capabilities{Credentials: true, OAuth: true}
}

// LoginWithCredentials logs in with email/password
func (p *Provider) LoginWithCredentials(ctx context.Context, username string, password string) (*auth.Result, error) {
	return yggdrasil.Login(ctx, p.client, auth.LittleSkin, username, password)
}

// Refresh rotates the stored yggdrasil token for a fresh one. Works for
// accounts from both the password and the oauth flow.
func (p *Provider) Refresh(ctx context.Context, username string, refreshSecret string) (*auth.Result, error) {
	return yggdrasil.Refresh(ctx, p.client, auth.LittleSkin, username, refreshSecret)
}

// Revoke invalidates the token server side on logout
func (p *Provider) Revoke(ctx context.Context, username string, refreshSecret string) error {
	return p.client.Invalidate(ctx, refreshSecret)
}

// StartOAuth requests device & user codes from open.littleskin.cn
func (p *Provider) StartOAuth(ctx context.Context) (*auth.Flow, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.http)
	da, err := p.config.DeviceAuth(ctx)
	if err != nil {
		return nil, auth.NetworkError(err)
	}

	flow := auth.FlowFromDeviceAuth(auth.LittleSkin, da)
	flow.SetState(auth.FlowPendingUserAction)

	p.mu.Lock()
	p.flows[flow.DeviceCode] = flow
	p.mu.Unlock()
	return flow, nil
}

// PollOAuth polls until the flow terminates, then exchanges the oauth
// token for a yggdrasil one (the same kind the password flow issues)
func (p *Provider) PollOAuth(ctx context.Context, deviceCode string) (*auth.Result, error) {
	p.mu.Lock()
	flow, ok := p.flows[deviceCode]
	p.mu.Unlock()
	if !ok {
		return auth.Failed("unknown or expired device code – start a new login"), nil
	}

	token, err := auth.PollDeviceToken(ctx, p.http, tokenURL, oauthClientID, flow)
	if flow.Terminal() {
		p.mu.Lock()
		delete(p.flows, deviceCode)
		p.mu.Unlock()
	}
	switch err {
	case nil:
		// continue below
	case auth.ErrFlowDenied:
		return auth.Failed("authorization was denied"), nil
	case auth.ErrFlowExpired:
		return auth.Failed("device code expired – start a new login"), nil
	default:
		return nil, err
	}

	return p.accountFromOAuthToken(ctx, token)
}

// accountFromOAuthToken resolves the oauth access token into a full
// account: user info for the username, then a yggdrasil token bound to
// the player profile (stored as the refresh secret, same convention as
// the password flow).
func (p *Provider) accountFromOAuthToken(ctx context.Context, token *oauth2.Token) (*auth.Result, error) {
	user, err := p.userInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, auth.NetworkError(err)
	}

	session, err := p.minecraftSession(ctx, token.AccessToken)
	if err != nil {
		return nil, auth.NetworkError(err)
	}

	displayName := session.SelectedProfile.Name
	if displayName == "" {
		displayName = user.Nickname
	}
	account := &auth.Account{
		Username:    user.Nickname,
		UUID:        session.SelectedProfile.ID,
		DisplayName: displayName,
		Provider:    auth.LittleSkin,
		AccessToken: session.AccessToken,
		TokenExpiry: yggdrasilExpiry(),
	}
	return auth.Success(account, session.AccessToken), nil
}
