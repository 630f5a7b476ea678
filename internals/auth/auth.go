// Package auth holds the account vocabulary shared by all login providers:
// account records, auth results, the error taxonomy and the capability
// interfaces the Manager dispatches on.
package auth

import "context"

// ProviderID identifies one of the supported account providers.
type ProviderID string

const (
	Microsoft  ProviderID = "microsoft"
	ElyBy      ProviderID = "elyby"
	LittleSkin ProviderID = "littleskin"
	Offline    ProviderID = "offline"
)

// ParseProviderID returns the ProviderID for s or false if unknown
func ParseProviderID(s string) (ProviderID, bool) {
	switch ProviderID(s) {
	case Microsoft, ElyBy, LittleSkin, Offline:
		return ProviderID(s), true
	}
	return "", false
}

// Capabilities describes which login mechanisms a provider supports
type Capabilities struct {
	// Credentials is true if the provider accepts username/password logins
	Credentials bool
	// OAuth is true if the provider supports the oauth device code flow
	OAuth bool
	// UsernameOnly is true if the provider creates local accounts
	// from just a username (no network, no secret)
	UsernameOnly bool
}

// Provider is the base interface every account provider implements.
// The actual login operations live in the capability interfaces below;
// a provider only implements the ones its Capabilities claim.
type Provider interface {
	ID() ProviderID
	Capabilities() Capabilities
}

// CredentialsAuth is implemented by providers that issue tokens
// from a username and password (or password:otp for 2FA accounts)
type CredentialsAuth interface {
	Provider
	// LoginWithCredentials exchanges username/password for an account.
	// Wrong credentials are a Failed result, not an error.
	LoginWithCredentials(ctx context.Context, username string, password string) (*Result, error)
}

// OAuthAuth is implemented by providers that support the oauth
// device code flow
type OAuthAuth interface {
	Provider
	// StartOAuth requests device & user codes from the provider.
	// The caller displays UserCode/VerificationURI and then calls PollOAuth.
	StartOAuth(ctx context.Context) (*Flow, error)
	// PollOAuth polls the provider until the flow reaches a terminal state.
	// It blocks for up to the flow lifetime; cancel via ctx to abandon.
	PollOAuth(ctx context.Context, deviceCode string) (*Result, error)
}

// UsernameOnly is implemented by providers that create accounts locally
// from just a username
type UsernameOnly interface {
	Provider
	LoginOffline(username string) (*Result, error)
}

// Refresher is implemented by providers that can re-issue an access token
// from a stored refresh secret. Providers may rotate the secret on every
// use – callers must persist Result.RefreshSecret after each call.
type Refresher interface {
	// Refresh exchanges the stored refresh secret for a fresh token.
	// A rejected secret returns ErrReauthRequired.
	Refresh(ctx context.Context, username string, refreshSecret string) (*Result, error)
}

// Revoker is implemented by providers that support server side logout
type Revoker interface {
	// Revoke invalidates the refresh secret on the provider side.
	// Errors are advisory – local cleanup proceeds regardless.
	Revoke(ctx context.Context, username string, refreshSecret string) error
}

// LaunchAuthData is the read-only view of a resolved account that the
// game launch component consumes. It never exposes refresh secrets.
type LaunchAuthData interface {
	// GetAccessToken returns the access token (strictly required)
	GetAccessToken() string
	// GetUUID returns the players UUID (strictly required)
	GetUUID() string
	// GetPlayerName returns the name that appears in game
	GetPlayerName() string
	// GetUserType returns the account type for the --userType game
	// argument ("msa", "mojang" or "legacy")
	GetUserType() string
}
