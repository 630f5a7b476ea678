// Package microsoft implements the Microsoft account provider: oauth
// device code flow against login.microsoftonline.com, then the
// XBL → XSTS → Minecraft services chain to obtain a game token.
package microsoft

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const (
	XBL_AUTHENTICATE   = "https://user.auth.xboxlive.com/user/authenticate"
	XBL_XSTS_AUTHORIZE = "https://xsts.auth.xboxlive.com/xsts/authorize"
	MC_API_XBOX_LOGIN  = "https://api.minecraftservices.com/authentication/login_with_xbox"
	MC_API_PROFILE     = "https://api.minecraftservices.com/minecraft/profile"

	MC_API_CHECK_ENTITLEMENT = "https://api.minecraftservices.com/entitlements/mcstore"
)

// DefaultClientID is the azure app registration used when the config
// does not bring its own
const DefaultClientID = "7a5b29d6-3c44-4e0e-8a5f-c1d9e0b4f713"

type Client struct {
	*http.Client
	// xblClient is a separate client because we need to set the token
	// and the horrifying Renegotiation option (see `NewClient`)
	xblClient *http.Client
	Config    *oauth2.Config
}

// Credentials is everything a finished Microsoft login resolves to
type Credentials struct {
	MicrosoftAuth    oauth2.Token
	MinecraftAuth    *XboxLoginResponse
	MinecraftProfile *GetProfileResponse
	ExpiresAt        time.Time
}

func (x *Credentials) GetAccessToken() string { return x.MinecraftAuth.AccessToken }
func (x *Credentials) GetPlayerName() string  { return x.MinecraftProfile.Name }
func (x *Credentials) GetUUID() string        { return x.MinecraftProfile.ID }

func (x *Credentials) IsExpired() bool {
	// add a minute current time for clock skew and stuff
	return x.ExpiresAt.Before(time.Now().Add(time.Minute))
}

// NewClient returns a Microsoft api client using the given http client
// and oauth config. Missing config values get filled with defaults.
func NewClient(httpClient *http.Client, config *oauth2.Config) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	// shallow copy the http client so we don't modify the original
	lessSecureClient := *httpClient
	// we need this cause MS API
	// https://stackoverflow.com/questions/57420833/tls-no-renegotiation-error-on-http-request
	lessSecureClient.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{Renegotiation: tls.RenegotiateOnceAsClient},
	}

	if config == nil {
		config = &oauth2.Config{}
	}
	if config.ClientID == "" {
		config.ClientID = DefaultClientID
	}
	if config.Scopes == nil {
		config.Scopes = []string{"XboxLive.signin", "offline_access"}
	}
	if config.Endpoint.TokenURL == "" {
		config.Endpoint = microsoft.AzureADEndpoint("consumers")
	}
	if config.Endpoint.DeviceAuthURL == "" {
		config.Endpoint.DeviceAuthURL = "https://login.microsoftonline.com/consumers/oauth2/v2.0/devicecode"
	}

	return &Client{
		Client:    httpClient,
		xblClient: &lessSecureClient,
		Config:    config,
	}
}

// GetMinecraftCredentials walks the whole chain from a Microsoft oauth
// token down to a Minecraft game token and profile
func (m *Client) GetMinecraftCredentials(ctx context.Context, token *oauth2.Token) (*Credentials, error) {
	if token == nil {
		return nil, fmt.Errorf("no token set")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.Client)

	// refresh token if needed
	newToken, err := m.Config.TokenSource(ctx, token).Token()
	if err != nil {
		return nil, err
	}

	// 1. Authenticate with XBL
	xblAuth, err := m.xblAuth(ctx, newToken.AccessToken)
	if err != nil {
		return nil, err
	}
	// 2. Get XSTS token
	xstsAuth, err := m.xstsAuth(ctx, xblAuth.Token)
	if err != nil {
		return nil, err
	}

	xstsToken := xstsAuth.Token
	if len(xstsAuth.DisplayClaims.Xui) == 0 {
		return nil, fmt.Errorf("XBL auth failed: no XUI claim")
	}
	userHash := xstsAuth.DisplayClaims.Xui[0].Uhs

	// 3. Get Minecraft token
	minecraftAuth, err := m.minecraftLoginWithXbox(ctx, userHash, xstsToken)
	if err != nil {
		return nil, err
	}

	// 4. Check game ownership
	if err := m.checkEntitlements(ctx, minecraftAuth.AccessToken); err != nil {
		return nil, err
	}

	// 5. Get Minecraft profile
	profile, err := m.getProfile(ctx, minecraftAuth.AccessToken)
	if err != nil {
		return nil, err
	}

	creds := &Credentials{
		MicrosoftAuth:    *newToken,
		MinecraftAuth:    minecraftAuth,
		MinecraftProfile: profile,
		ExpiresAt:        time.Now().Add(time.Duration(minecraftAuth.ExpiresIn) * time.Second),
	}

	return creds, nil
}

func jsonPostReqFromText(ctx context.Context, url string, text string) (*http.Request, error) {
	body := bytes.NewBufferString(text)
	req, err := http.NewRequestWithContext(ctx, "POST", url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}
