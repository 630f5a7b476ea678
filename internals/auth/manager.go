package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/craftauth/craftauth/internals/credentials"
	"golang.org/x/sync/singleflight"
)

// Manager is the single public surface for account handling. It owns the
// provider registry (immutable after construction) and a shared handle to
// the credential store. Provider objects never leak to callers.
type Manager struct {
	providers map[ProviderID]Provider
	store     credentials.Store

	// refreshGroup deduplicates concurrent token refreshes per account.
	// Several providers rotate the refresh secret on every use, so two
	// racing refreshes would invalidate each other.
	refreshGroup singleflight.Group

	mu sync.RWMutex
	// records caches the full account records seen this session,
	// including offline accounts (which have no store entry)
	records map[credentials.Key]*Account
}

// NewManager wires the given providers and credential store together.
// Both are explicit dependencies so tests can substitute doubles.
func NewManager(store credentials.Store, providers ...Provider) *Manager {
	registry := make(map[ProviderID]Provider, len(providers))
	for _, p := range providers {
		registry[p.ID()] = p
	}
	return &Manager{
		providers: registry,
		store:     store,
		records:   map[credentials.Key]*Account{},
	}
}

func storeKey(username string, provider ProviderID) credentials.Key {
	return credentials.Key{Username: username, Provider: string(provider)}
}

func (m *Manager) provider(id ProviderID) (Provider, error) {
	p, ok := m.providers[id]
	if !ok {
		return nil, &Error{Kind: KindNotFound, Detail: fmt.Sprintf("no such provider: %s", id)}
	}
	return p, nil
}

// ProviderCapabilities returns the static capability triple for a provider
func (m *Manager) ProviderCapabilities(id ProviderID) (Capabilities, error) {
	p, err := m.provider(id)
	if err != nil {
		return Capabilities{}, err
	}
	return p.Capabilities(), nil
}

// QuickLogin performs a username/password login against a CredentialsAuth
// provider and persists the resulting refresh secret.
//
// On a keyring failure the returned Result is still valid for this
// session; the error (KindKeyring) tells the caller that nothing was
// persisted.
func (m *Manager) QuickLogin(ctx context.Context, id ProviderID, username string, password string) (*Result, error) {
	p, err := m.provider(id)
	if err != nil {
		return nil, err
	}
	ca, ok := p.(CredentialsAuth)
	if !ok {
		return nil, &Error{Kind: KindUnsupported, Detail: fmt.Sprintf("%s does not support password logins", id)}
	}

	result, err := ca.LoginWithCredentials(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return m.finishLogin(result)
}

// QuickOfflineLogin creates a local offline account. No network, no
// credential store interaction.
func (m *Manager) QuickOfflineLogin(username string) (*Result, error) {
	p, err := m.provider(Offline)
	if err != nil {
		return nil, err
	}
	uo, ok := p.(UsernameOnly)
	if !ok {
		return nil, ErrUnsupportedOperation
	}

	result, err := uo.LoginOffline(username)
	if err != nil {
		return nil, err
	}
	if result.Status == StatusSuccess {
		m.cacheRecord(result.Account)
	}
	return result, nil
}

// StartOAuthLogin begins a device code flow. The caller displays
// Flow.UserCode and Flow.VerificationURI, then calls CompleteOAuthLogin.
func (m *Manager) StartOAuthLogin(ctx context.Context, id ProviderID) (*Flow, error) {
	p, err := m.provider(id)
	if err != nil {
		return nil, err
	}
	oa, ok := p.(OAuthAuth)
	if !ok {
		return nil, &Error{Kind: KindUnsupported, Detail: fmt.Sprintf("%s does not support oauth logins", id)}
	}
	return oa.StartOAuth(ctx)
}

// CompleteOAuthLogin polls the pending flow until it terminates and
// persists the refresh secret on success. Cancel ctx to abandon the flow.
func (m *Manager) CompleteOAuthLogin(ctx context.Context, id ProviderID, deviceCode string) (*Result, error) {
	p, err := m.provider(id)
	if err != nil {
		return nil, err
	}
	oa, ok := p.(OAuthAuth)
	if !ok {
		return nil, &Error{Kind: KindUnsupported, Detail: fmt.Sprintf("%s does not support oauth logins", id)}
	}

	result, err := oa.PollOAuth(ctx, deviceCode)
	if err != nil {
		return nil, err
	}
	return m.finishLogin(result)
}

// finishLogin caches the record and moves the refresh secret from the
// result into the credential store. Secrets never leave the Manager.
func (m *Manager) finishLogin(result *Result) (*Result, error) {
	if result.Status != StatusSuccess {
		return result, nil
	}
	m.cacheRecord(result.Account)

	secret := result.RefreshSecret
	result.RefreshSecret = ""
	if secret == "" {
		return result, nil
	}

	key := storeKey(result.Account.Username, result.Account.Provider)
	if err := m.store.Set(key, secret); err != nil {
		// the login itself worked – report the degradation, keep the
		// session usable
		return result, KeyringError(err)
	}
	return result, nil
}

// Accounts lists all known accounts: everything in the credential store
// plus offline accounts seen this session. Records are sanitized – the
// access token is only present when a still-valid one is cached. Call
// EnsureValidToken to get a usable token.
func (m *Manager) Accounts() ([]Account, error) {
	keys, err := m.store.List()
	if err != nil {
		return nil, KeyringError(err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := map[credentials.Key]bool{}
	accounts := make([]Account, 0, len(keys)+len(m.records))
	for _, k := range keys {
		seen[k] = true
		accounts = append(accounts, m.sanitizedRecord(k))
	}
	// offline accounts have no store entry, only a cached record
	for k, record := range m.records {
		if !seen[k] && record.Provider == Offline {
			accounts = append(accounts, m.sanitizedRecord(k))
		}
	}

	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Provider != accounts[j].Provider {
			return accounts[i].Provider < accounts[j].Provider
		}
		return accounts[i].Username < accounts[j].Username
	})
	return accounts, nil
}

// EnsureValidToken returns the account with a usable access token,
// refreshing it via the stored secret if needed.
//
// At most one refresh is in flight per (username, provider) – concurrent
// callers share that refresh's outcome instead of racing the (possibly
// rotating) refresh secret.
func (m *Manager) EnsureValidToken(ctx context.Context, account Account) (*Account, error) {
	if cached, ok := m.cachedRecord(storeKey(account.Username, account.Provider)); ok {
		account = *cached
	}
	if !account.NeedsRefresh() {
		return &account, nil
	}

	key := storeKey(account.Username, account.Provider)
	v, err, _ := m.refreshGroup.Do(key.Username+"#"+key.Provider, func() (interface{}, error) {
		return m.refresh(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	refreshed := v.(Account)
	return &refreshed, nil
}

// refresh performs the actual provider refresh for one account key.
// Only ever called through the singleflight group.
func (m *Manager) refresh(ctx context.Context, key credentials.Key) (interface{}, error) {
	p, err := m.provider(ProviderID(key.Provider))
	if err != nil {
		return nil, err
	}
	refresher, ok := p.(Refresher)
	if !ok {
		return nil, &Error{Kind: KindUnsupported, Detail: fmt.Sprintf("%s accounts can not be refreshed", key.Provider)}
	}

	secret, err := m.store.Get(key)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return nil, &Error{Kind: KindNotFound, Detail: "no stored credential – log in again"}
		}
		return nil, KeyringError(err)
	}

	result, err := refresher.Refresh(ctx, key.Username, secret)
	if err != nil {
		// a rejected secret (ErrReauthRequired) leaves the store entry
		// untouched so the user can re-login without losing the record
		return nil, err
	}
	if result.Status != StatusSuccess {
		return nil, &Error{Kind: KindUnknown, Detail: result.Message}
	}

	// the provider may have rotated the secret
	if result.RefreshSecret != "" && result.RefreshSecret != secret {
		if err := m.store.Set(key, result.RefreshSecret); err != nil {
			return nil, KeyringError(err)
		}
	}
	result.RefreshSecret = ""

	m.cacheRecord(result.Account)
	return *result.Account, nil
}

// Logout revokes the account provider-side where supported and removes
// the stored secret. Idempotent: logging out an unknown account succeeds.
func (m *Manager) Logout(ctx context.Context, username string, id ProviderID) error {
	p, err := m.provider(id)
	if err != nil {
		return err
	}
	key := storeKey(username, id)

	// best effort server side revocation; local cleanup happens even if
	// the provider is unreachable
	if revoker, ok := p.(Revoker); ok {
		if secret, err := m.store.Get(key); err == nil {
			_ = revoker.Revoke(ctx, username, secret)
		}
	}

	if err := m.store.Delete(key); err != nil {
		return KeyringError(err)
	}

	m.mu.Lock()
	delete(m.records, key)
	m.mu.Unlock()
	return nil
}

func (m *Manager) cacheRecord(account *Account) {
	if account == nil {
		return
	}
	record := *account
	m.mu.Lock()
	m.records[storeKey(account.Username, account.Provider)] = &record
	m.mu.Unlock()
}

func (m *Manager) cachedRecord(key credentials.Key) (*Account, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[key]
	if !ok {
		return nil, false
	}
	copied := *record
	return &copied, true
}

// sanitizedRecord builds the listing view for one key. Callers must hold
// m.mu (read locked).
func (m *Manager) sanitizedRecord(key credentials.Key) Account {
	record, ok := m.records[key]
	if !ok {
		// only the key is known – uuid and display name get filled in
		// by the next EnsureValidToken
		return Account{
			Username:    key.Username,
			DisplayName: key.Username,
			Provider:    ProviderID(key.Provider),
		}
	}
	sanitized := *record
	if sanitized.NeedsRefresh() {
		sanitized.AccessToken = ""
		sanitized.TokenExpiry = time.Time{}
	}
	return sanitized
}
