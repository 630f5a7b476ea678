package microsoft

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/craftauth/craftauth/internals/auth"
	"golang.org/x/oauth2"
)

// Provider implements the Microsoft account provider on top of Client.
// Microsoft accounts only support the oauth device code flow – there is
// no password login and no server side logout.
type Provider struct {
	client *Client

	mu sync.Mutex
	// flows holds the pending device code flows by device code.
	// Entries are dropped once a flow reaches a terminal state.
	flows map[string]*auth.Flow
}

// New returns the Microsoft provider. Pass nil to use http.DefaultClient
// and the default app registration.
func New(httpClient *http.Client, config *oauth2.Config) *Provider {
	return &Provider{
		client: NewClient(httpClient, config),
		flows:  map[string]*auth.Flow{},
	}
}

func (p *Provider) ID() auth.ProviderID { return auth.Microsoft }

func (p *Provider) Capabilities() auth.Capabilities {
	return auth.Capabilities{OAuth: true}
}

// StartOAuth requests device & user codes from the Microsoft identity
// platform
func (p *Provider) StartOAuth(ctx context.Context) (*auth.Flow, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client.Client)
	da, err := p.client.Config.DeviceAuth(ctx)
	if err != nil {
		return nil, auth.NetworkError(err)
	}

	flow := auth.FlowFromDeviceAuth(auth.Microsoft, da)
	flow.SetState(auth.FlowPendingUserAction)

	p.mu.Lock()
	p.flows[flow.DeviceCode] = flow
	p.mu.Unlock()
	return flow, nil
}

// PollOAuth polls until the flow terminates, then resolves the Microsoft
// token into Minecraft credentials via the xbox chain
func (p *Provider) PollOAuth(ctx context.Context, deviceCode string) (*auth.Result, error) {
	p.mu.Lock()
	flow, ok := p.flows[deviceCode]
	p.mu.Unlock()
	if !ok {
		return auth.Failed("unknown or expired device code – start a new login"), nil
	}

	token, err := auth.PollDeviceToken(ctx, p.client.Client, p.client.Config.Endpoint.TokenURL, p.client.Config.ClientID, flow)
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

	return p.resolveToken(ctx, token)
}

// Refresh re-issues Minecraft credentials from the stored Microsoft
// refresh token. Microsoft rotates the refresh token regularly – the
// returned Result carries the one to keep.
func (p *Provider) Refresh(ctx context.Context, username string, refreshSecret string) (*auth.Result, error) {
	token := &oauth2.Token{RefreshToken: refreshSecret}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client.Client)
	newToken, err := p.client.Config.TokenSource(ctx, token).Token()
	if err != nil {
		retrieveErr := &oauth2.RetrieveError{}
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			// the refresh token itself was revoked or expired
			return nil, auth.ErrReauthRequired
		}
		return nil, auth.NetworkError(err)
	}
	return p.resolveToken(ctx, newToken)
}

// resolveToken walks the xbox chain and builds the account result
func (p *Provider) resolveToken(ctx context.Context, token *oauth2.Token) (*auth.Result, error) {
	creds, err := p.client.GetMinecraftCredentials(ctx, token)
	if err != nil {
		apiErr := &MinecraftAPIErrorResponse{}
		if errors.As(err, &apiErr) && apiErr.ErrorCode == "NOT_FOUND" {
			// the Microsoft account exists but owns no Minecraft profile
			return auth.Failed("this Microsoft account does not own Minecraft"), nil
		}
		return nil, auth.NetworkError(err)
	}

	account := &auth.Account{
		Username:    creds.GetPlayerName(),
		UUID:        creds.GetUUID(),
		DisplayName: creds.GetPlayerName(),
		Provider:    auth.Microsoft,
		AccessToken: creds.GetAccessToken(),
		TokenExpiry: creds.ExpiresAt,
	}
	return auth.Success(account, creds.MicrosoftAuth.RefreshToken), nil
}
