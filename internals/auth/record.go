package auth

import (
	"strings"
	"time"
)

// Account is the sanitized, shareable record of one logged in identity.
// It never contains the refresh secret – that lives in the credential
// store, addressed by (Username, Provider).
type Account struct {
	// Username is the provider scoped login handle (email for ElyBy,
	// the in-game name for offline accounts)
	Username string `json:"username"`
	// UUID of the player profile
	UUID string `json:"uuid"`
	// DisplayName is the in-game name. Can differ from Username
	DisplayName string `json:"displayName"`
	// Provider that issued this account
	Provider ProviderID `json:"provider"`

	// AccessToken is the short lived session token. Only set right after
	// a login or refresh, never persisted to disk and always empty for
	// offline accounts.
	AccessToken string `json:"-"`
	// TokenExpiry is when AccessToken stops working. The zero value
	// means "no token" (or a non-expiring offline identity).
	TokenExpiry time.Time `json:"-"`
}

// NeedsRefresh reports whether the account can not be used to launch the
// game as is. Offline accounts never need a refresh.
func (a *Account) NeedsRefresh() bool {
	if a.Provider == Offline {
		return false
	}
	if a.AccessToken == "" {
		return true
	}
	// a minute of headroom for clock skew and the time the game
	// itself needs to pick the token up
	return a.TokenExpiry.Before(time.Now().Add(time.Minute))
}

// DisplayNameWithSuffix returns the display name with a provider suffix
// for everything that is not a Microsoft account, so mixed account lists
// stay tellable apart.
func (a *Account) DisplayNameWithSuffix() string {
	switch a.Provider {
	case ElyBy:
		return a.DisplayName + " (elyby)"
	case LittleSkin:
		return a.DisplayName + " (littleskin)"
	case Offline:
		return a.DisplayName + " (offline)"
	default:
		return a.DisplayName
	}
}

// StripNameSuffix undoes DisplayNameWithSuffix for the given provider
func StripNameSuffix(name string, provider ProviderID) string {
	suffix := ""
	switch provider {
	case ElyBy:
		suffix = " (elyby)"
	case LittleSkin:
		suffix = " (littleskin)"
	case Offline:
		suffix = " (offline)"
	}
	if suffix == "" {
		return name
	}
	if stripped, ok := strings.CutSuffix(name, suffix); ok {
		return stripped
	}
	return name
}

// GetAccessToken implements LaunchAuthData
func (a *Account) GetAccessToken() string { return a.AccessToken }

// GetUUID implements LaunchAuthData
func (a *Account) GetUUID() string { return a.UUID }

// GetPlayerName implements LaunchAuthData
func (a *Account) GetPlayerName() string { return a.DisplayName }

// GetUserType implements LaunchAuthData
func (a *Account) GetUserType() string {
	switch a.Provider {
	case Microsoft:
		return "msa"
	case Offline:
		return "legacy"
	default:
		// yggdrasil style servers still speak the mojang protocol
		return "mojang"
	}
}
