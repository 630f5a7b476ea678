// Package yggdrasil talks to Mojang-protocol authentication servers
// (ely.by, littleskin.cn and compatible). It issues, refreshes and
// invalidates access tokens from username/password credentials.
package yggdrasil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dchest/uniuri"
)

var (
	// ErrInvalidCredentials gets returned for wrong username/password
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrTwoFactorRequired means the account is 2FA protected. Retry the
	// login with "password:otp" as the password.
	ErrTwoFactorRequired = errors.New("account is protected with two factor auth")
	// ErrTokenInvalid means the server rejected the access token –
	// a fresh interactive login is needed
	ErrTokenInvalid = errors.New("access token was rejected")
)

// Client contains the endpoints and methods to talk to one yggdrasil
// auth server
type Client struct {
	// HTTP is the internal http client
	HTTP *http.Client

	AuthenticateURL string
	RefreshURL      string
	InvalidateURL   string

	// ClientToken scopes issued tokens to this launcher. Generated
	// randomly when left empty.
	ClientToken string
	// SendAgent adds the Minecraft agent field to authenticate requests.
	// littleskin.cn requires it, ely.by does not care.
	SendAgent bool
}

// NewClient returns a yggdrasil client for the given authserver base URL
// (everything before "/authenticate")
func NewClient(httpClient *http.Client, baseURL string, sendAgent bool) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base := strings.TrimSuffix(baseURL, "/")
	return &Client{
		HTTP:            httpClient,
		AuthenticateURL: base + "/authenticate",
		RefreshURL:      base + "/refresh",
		InvalidateURL:   base + "/invalidate",
		ClientToken:     uniuri.New(),
		SendAgent:       sendAgent,
	}
}

type agent struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
}

type authenticatePayload struct {
	Agent       *agent `json:"agent,omitempty"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	ClientToken string `json:"clientToken"`
	RequestUser bool   `json:"requestUser"`
}

type refreshPayload struct {
	AccessToken string `json:"accessToken"`
	ClientToken string `json:"clientToken"`
}

// Profile is the player profile a token is bound to
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AuthResponse is the servers answer to authenticate and refresh calls.
// The returned AccessToken replaces any previously issued one.
type AuthResponse struct {
	AccessToken     string  `json:"accessToken"`
	ClientToken     string  `json:"clientToken"`
	SelectedProfile Profile `json:"selectedProfile"`
}

// apiError is the yggdrasil error document
type apiError struct {
	ErrorCode    string `json:"error"`
	ErrorMessage string `json:"errorMessage"`
	Cause        string `json:"cause"`
}

func (e *apiError) Error() string {
	if e.ErrorMessage != "" {
		return e.ErrorCode + ": " + e.ErrorMessage
	}
	return e.ErrorCode
}

// Authenticate exchanges username/password for a fresh access token
func (c *Client) Authenticate(ctx context.Context, username string, password string) (*AuthResponse, error) {
	payload := authenticatePayload{
		Username:    username,
		Password:    password,
		ClientToken: c.ClientToken,
		RequestUser: true,
	}
	if c.SendAgent {
		payload.Agent = &agent{Name: "Minecraft", Version: 1}
	}

	res, err := c.postJSON(ctx, c.AuthenticateURL, payload)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, c.asLoginError(res)
	}

	authRes := AuthResponse{}
	if err := json.NewDecoder(res.Body).Decode(&authRes); err != nil {
		return nil, err
	}
	return &authRes, nil
}

// Refresh trades a (possibly expired) access token for a fresh one.
// The old token becomes invalid – persist the new one.
func (c *Client) Refresh(ctx context.Context, accessToken string) (*AuthResponse, error) {
	payload := refreshPayload{AccessToken: accessToken, ClientToken: c.ClientToken}

	res, err := c.postJSON(ctx, c.RefreshURL, payload)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return nil, ErrTokenInvalid
	}
	if res.StatusCode != http.StatusOK {
		return nil, c.unexpectedStatus(res)
	}

	authRes := AuthResponse{}
	if err := json.NewDecoder(res.Body).Decode(&authRes); err != nil {
		return nil, err
	}
	return &authRes, nil
}

// Invalidate revokes the access token server side
func (c *Client) Invalidate(ctx context.Context, accessToken string) error {
	payload := refreshPayload{AccessToken: accessToken, ClientToken: c.ClientToken}

	res, err := c.postJSON(ctx, c.InvalidateURL, payload)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	// both are in the wild: mojang answers 204, ely.by 200
	if res.StatusCode != http.StatusNoContent && res.StatusCode != http.StatusOK {
		return c.unexpectedStatus(res)
	}
	return nil
}

// asLoginError maps a failed authenticate response to one of the package
// sentinels (or the servers own error document)
func (c *Client) asLoginError(res *http.Response) error {
	apiErr := apiError{}
	if err := json.NewDecoder(res.Body).Decode(&apiErr); err != nil {
		return c.unexpectedStatus(res)
	}
	if apiErr.ErrorCode == "ForbiddenOperationException" &&
		strings.Contains(apiErr.ErrorMessage, "two factor auth") {
		return ErrTwoFactorRequired
	}
	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return ErrInvalidCredentials
	}
	return &apiErr
}

func (c *Client) unexpectedStatus(res *http.Response) error {
	return errors.New("auth server responded with unexpected status " + res.Status)
}

// postJSON posts json
func (c *Client) postJSON(ctx context.Context, url string, data interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.HTTP.Do(req)
}
