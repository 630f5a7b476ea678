package littleskin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/craftauth/craftauth/internals/auth/yggdrasil"
)

const (
	userInfoURL     = "https://littleskin.cn/api/user"
	oauthSessionURL = "https://littleskin.cn/api/yggdrasil/authserver/oauth"
)

func yggdrasilExpiry() time.Time {
	return time.Now().Add(yggdrasil.TokenLifetime)
}

// userInfo is the littleskin.cn account behind an oauth token
type userInfo struct {
	UID      int64  `json:"uid"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
}

// sessionResponse is the yggdrasil token issued for an oauth identity
type sessionResponse struct {
	AccessToken     string            `json:"accessToken"`
	SelectedProfile yggdrasil.Profile `json:"selectedProfile"`
}

func (p *Provider) userInfo(ctx context.Context, oauthToken string) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+oauthToken)

	res, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching user info failed with status %d (%s)", res.StatusCode, res.Status)
	}

	user := userInfo{}
	if err := json.NewDecoder(res.Body).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// minecraftSession trades the oauth access token for a yggdrasil token
// bound to the users player profile
func (p *Provider) minecraftSession(ctx context.Context, oauthToken string) (*sessionResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", oauthSessionURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+oauthToken)

	res, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("creating game session failed with status %d (%s)", res.StatusCode, res.Status)
	}

	session := sessionResponse{}
	if err := json.NewDecoder(res.Body).Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}
