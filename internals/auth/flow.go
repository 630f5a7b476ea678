package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// FlowState tracks where a device code flow currently is
type FlowState int

const (
	// FlowRequested – device & user codes obtained from the provider
	FlowRequested FlowState = iota
	// FlowPendingUserAction – codes are displayed, waiting for the user
	FlowPendingUserAction
	// FlowPolling – actively polling the token endpoint
	FlowPolling
	// FlowAuthorized – the user approved, a token was issued
	FlowAuthorized
	// FlowDenied – the user rejected the request
	FlowDenied
	// FlowExpired – the codes ran out before the user acted
	FlowExpired
)

// Flow is one transient oauth device code flow. It is never persisted and
// gets discarded once it reaches a terminal state. Safe for concurrent
// use: any number of callers may poll the same flow, they all share one
// poll loop and its outcome.
type Flow struct {
	Provider ProviderID

	// DeviceCode is the opaque handle polled against the token endpoint.
	// Treat it like a secret: it is never displayed or logged.
	DeviceCode string
	// UserCode is the short code the user types in at VerificationURI
	UserCode string
	// VerificationURI is where the user approves the login
	VerificationURI string
	// VerificationURIComplete optionally embeds the user code in the URI
	VerificationURIComplete string

	ExpiresAt time.Time
	// Interval between polls, as declared by the provider
	Interval time.Duration

	mu    sync.Mutex
	state FlowState
	// token is the issued token once the flow is authorized
	token *oauth2.Token
	// poll deduplicates concurrent PollDeviceToken calls. Two loops for
	// one device code would double the request rate and trip the
	// provider's slow_down handling.
	poll singleflight.Group
}

// State returns the current flow state
func (f *Flow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SetState moves the flow to s
func (f *Flow) SetState(s FlowState) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *Flow) complete(token *oauth2.Token) {
	f.mu.Lock()
	f.state = FlowAuthorized
	f.token = token
	f.mu.Unlock()
}

func (f *Flow) issuedToken() *oauth2.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

// Expired reports whether the flow ran out before reaching a terminal state
func (f *Flow) Expired() bool {
	return time.Now().After(f.ExpiresAt)
}

// Terminal reports whether the flow is done (successfully or not)
func (f *Flow) Terminal() bool {
	state := f.State()
	return state == FlowAuthorized || state == FlowDenied || state == FlowExpired
}

// FlowFromDeviceAuth converts an oauth2 device auth response into a Flow
func FlowFromDeviceAuth(provider ProviderID, da *oauth2.DeviceAuthResponse) *Flow {
	interval := time.Duration(da.Interval) * time.Second
	if interval == 0 {
		interval = 5 * time.Second
	}
	return &Flow{
		Provider:                provider,
		DeviceCode:              da.DeviceCode,
		UserCode:                da.UserCode,
		VerificationURI:         da.VerificationURI,
		VerificationURIComplete: da.VerificationURIComplete,
		ExpiresAt:               da.Expiry,
		Interval:                interval,
		state:                   FlowRequested,
	}
}

// flow level sentinels, mapped to Result/Error by the providers
var (
	// ErrFlowDenied – the user rejected the authorization request
	ErrFlowDenied = &Error{Kind: KindValidation, Detail: "authorization was denied"}
	// ErrFlowExpired – the device code expired before the user acted
	ErrFlowExpired = &Error{Kind: KindValidation, Detail: "device code expired"}
)

// deviceTokenResponse is the token endpoint answer during device code
// polling. Providers return either a token or an oauth error code.
type deviceTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`

	ErrorCode        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// PollDeviceToken polls tokenURL until the flow resolves. Transient
// failures (network errors, 5xx answers) are absorbed by simply polling
// again – the flow's own expiry is the only deadline. Cancel ctx to
// abandon the flow; no token exists yet, so there is nothing to clean up.
//
// Concurrent calls for the same flow share a single poll loop and get
// the same outcome; calls after the flow resolved get the terminal
// result without touching the network again.
func PollDeviceToken(ctx context.Context, client *http.Client, tokenURL string, clientID string, flow *Flow) (*oauth2.Token, error) {
	v, err, _ := flow.poll.Do(flow.DeviceCode, func() (interface{}, error) {
		return pollDeviceToken(ctx, client, tokenURL, clientID, flow)
	})
	if err != nil {
		return nil, err
	}
	return v.(*oauth2.Token), nil
}

func pollDeviceToken(ctx context.Context, client *http.Client, tokenURL string, clientID string, flow *Flow) (*oauth2.Token, error) {
	switch flow.State() {
	case FlowAuthorized:
		return flow.issuedToken(), nil
	case FlowDenied:
		return nil, ErrFlowDenied
	case FlowExpired:
		return nil, ErrFlowExpired
	}

	flow.SetState(FlowPolling)
	interval := flow.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	form := url.Values{
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		"device_code": {flow.DeviceCode},
		"client_id":   {clientID},
	}

	for {
		if flow.Expired() {
			flow.SetState(FlowExpired)
			return nil, ErrFlowExpired
		}

		token, retry, err := pollDeviceTokenOnce(ctx, client, tokenURL, form)
		switch {
		case err != nil && !retry:
			switch err {
			case ErrFlowDenied:
				flow.SetState(FlowDenied)
			case ErrFlowExpired:
				flow.SetState(FlowExpired)
			}
			return nil, err
		case token != nil:
			flow.complete(token)
			return token, nil
		case err == errSlowDown:
			interval += 5 * time.Second
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

var (
	errAuthorizationPending = &Error{Kind: KindNetwork, Detail: "authorization pending"}
	errSlowDown             = &Error{Kind: KindNetwork, Detail: "slow down"}
)

// pollDeviceTokenOnce performs a single token poll. retry=true means the
// caller should wait an interval and try again.
func pollDeviceTokenOnce(ctx context.Context, client *http.Client, tokenURL string, form url.Values) (*oauth2.Token, bool, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	res, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		// transient – keep polling until the flow expires
		return nil, true, errAuthorizationPending
	}
	defer res.Body.Close()

	if res.StatusCode >= 500 {
		return nil, true, errAuthorizationPending
	}

	tokenRes := deviceTokenResponse{}
	if err := json.NewDecoder(res.Body).Decode(&tokenRes); err != nil {
		return nil, false, NetworkError(err)
	}

	switch tokenRes.ErrorCode {
	case "":
		// fallthrough to token handling below
	case "authorization_pending":
		return nil, true, errAuthorizationPending
	case "slow_down":
		return nil, true, errSlowDown
	case "access_denied":
		return nil, false, ErrFlowDenied
	case "expired_token":
		return nil, false, ErrFlowExpired
	default:
		detail := tokenRes.ErrorDescription
		if detail == "" {
			detail = tokenRes.ErrorCode
		}
		return nil, false, &Error{Kind: KindNetwork, Detail: detail}
	}

	if tokenRes.AccessToken == "" {
		// no error and no token: providers do this while the user has
		// not decided yet
		return nil, true, errAuthorizationPending
	}

	token := &oauth2.Token{
		AccessToken:  tokenRes.AccessToken,
		RefreshToken: tokenRes.RefreshToken,
		TokenType:    tokenRes.TokenType,
	}
	if tokenRes.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(tokenRes.ExpiresIn) * time.Second)
	}
	return token, false, nil
}
