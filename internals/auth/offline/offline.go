// Package offline implements the no-network account provider. Offline
// accounts are derived purely from the username – no token, no secret,
// no credential store entry.
package offline

import (
	"crypto/md5"
	"regexp"

	"github.com/craftauth/craftauth/internals/auth"
	"github.com/google/uuid"
)

// usernamePattern is the legal in-game name pattern
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,16}$`)

type Provider struct{}

func New() *Provider { return &Provider{} }

func (p *Provider) ID() auth.ProviderID { return auth.Offline }

func (p *Provider) Capabilities() auth.Capabilities {
	return auth.Capabilities{UsernameOnly: true}
}

// LoginOffline creates a deterministic local identity for username.
// Repeated logins with the same name always yield the same UUID.
func (p *Provider) LoginOffline(username string) (*auth.Result, error) {
	if !usernamePattern.MatchString(username) {
		return nil, auth.ValidationError("usernames must be 3–16 characters of a-z, A-Z, 0-9 or _")
	}
	account := &auth.Account{
		Username:    username,
		UUID:        UUID(username),
		DisplayName: username,
		Provider:    auth.Offline,
	}
	return auth.Success(account, ""), nil
}

// UUID derives the offline UUID for a player name the same way vanilla
// servers do: an md5 based (version 3) UUID over "OfflinePlayer:" + name.
// Java's nameUUIDFromBytes hashes the raw bytes without a namespace, so
// this can not go through uuid.NewMD5.
func UUID(username string) string {
	sum := md5.Sum([]byte("OfflinePlayer:" + username))
	sum[6] = (sum[6] & 0x0f) | 0x30 // version 3
	sum[8] = (sum[8] & 0x3f) | 0x80 // RFC 4122 variant
	id, _ := uuid.FromBytes(sum[:])
	return id.String()
}
