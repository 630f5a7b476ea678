package auth_test

import (
	"testing"

	"github.com/craftauth/craftauth/internals/auth"
	"github.com/craftauth/craftauth/internals/auth/elyby"
	"github.com/craftauth/craftauth/internals/auth/littleskin"
	"github.com/craftauth/craftauth/internals/auth/microsoft"
	"github.com/craftauth/craftauth/internals/auth/offline"
)

// Every provider advertises exactly what it can do. Interactive frontends
// rely on this matrix to decide which login prompts to offer, so a drift
// here is user visible.
func TestProviderCapabilityMatrix(t *testing.T) {
	providers := map[auth.ProviderID]auth.Provider{
		auth.Microsoft:  microsoft.New(nil, nil),
		auth.ElyBy:      elyby.New(nil),
		auth.LittleSkin: littleskin.New(nil),
		auth.Offline:    offline.New(),
	}

	want := map[auth.ProviderID]auth.Capabilities{
		auth.Microsoft:  {OAuth: true},
		auth.ElyBy:      {Credentials: true},
		auth.LittleSkin: {Credentials: true, OAuth: true},
		auth.Offline:    {UsernameOnly: true},
	}

	for id, provider := range providers {
		if provider.ID() != id {
			t.Errorf("%s reports id %s", id, provider.ID())
		}
		if got := provider.Capabilities(); got != want[id] {
			t.Errorf("%s capabilities are %+v, want %+v", id, got, want[id])
		}
	}
}

// The capability interfaces must line up with the advertised matrix –
// a provider claiming OAuth has to actually implement the flow methods.
func TestCapabilityInterfacesMatchMatrix(t *testing.T) {
	providers := []auth.Provider{
		microsoft.New(nil, nil),
		elyby.New(nil),
		littleskin.New(nil),
		offline.New(),
	}

	for _, provider := range providers {
		caps := provider.Capabilities()

		if _, ok := provider.(auth.CredentialsAuth); ok != caps.Credentials {
			t.Errorf("%s: CredentialsAuth implemented=%v, advertised=%v", provider.ID(), ok, caps.Credentials)
		}
		if _, ok := provider.(auth.OAuthAuth); ok != caps.OAuth {
			t.Errorf("%s: OAuthAuth implemented=%v, advertised=%v", provider.ID(), ok, caps.OAuth)
		}
		if _, ok := provider.(auth.UsernameOnly); ok != caps.UsernameOnly {
			t.Errorf("%s: UsernameOnly implemented=%v, advertised=%v", provider.ID(), ok, caps.UsernameOnly)
		}

		// offline sessions have nothing to refresh or revoke
		_, refresher := provider.(auth.Refresher)
		if refresher == (provider.ID() == auth.Offline) {
			t.Errorf("%s: unexpected Refresher implementation state %v", provider.ID(), refresher)
		}
	}
}
