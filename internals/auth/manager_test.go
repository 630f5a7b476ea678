package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/craftauth/craftauth/internals/credentials"
)

// fakeProvider is a scriptable provider double
type fakeProvider struct {
	id   ProviderID
	caps Capabilities

	refreshCalls int32
	refreshDelay time.Duration
	refreshFn    func(username, secret string) (*Result, error)

	loginFn func(username, password string) (*Result, error)

	revokeCalls int32
}

func (f *fakeProvider) ID() ProviderID             { return f.id }
func (f *fakeProvider) Capabilities() Capabilities { return f.caps }

func (f *fakeProvider) LoginWithCredentials(ctx context.Context, username, password string) (*Result, error) {
	return f.loginFn(username, password)
}

func (f *fakeProvider) Refresh(ctx context.Context, username, secret string) (*Result, error) {
	atomic.AddInt32(&f.refreshCalls, 1)
	if f.refreshDelay > 0 {
		time.Sleep(f.refreshDelay)
	}
	return f.refreshFn(username, secret)
}

func (f *fakeProvider) Revoke(ctx context.Context, username, secret string) error {
	atomic.AddInt32(&f.revokeCalls, 1)
	return nil
}

// fakeOffline only does username logins
type fakeOffline struct{}

func (f *fakeOffline) ID() ProviderID             { return Offline }
func (f *fakeOffline) Capabilities() Capabilities { return Capabilities{UsernameOnly: true} }
func (f *fakeOffline) LoginOffline(username string) (*Result, error) {
	return Success(&Account{
		Username: username, UUID: "uuid-" + username,
		DisplayName: username, Provider: Offline,
	}, ""), nil
}

func successResult(username string, token string, secret string) *Result {
	return Success(&Account{
		Username:    username,
		UUID:        "11111111-2222-3333-4444-555555555555",
		DisplayName: username,
		Provider:    ElyBy,
		AccessToken: token,
		TokenExpiry: time.Now().Add(time.Hour),
	}, secret)
}

func TestQuickLoginStoresSecret(t *testing.T) {
	store := credentials.NewMemory()
	provider := &fakeProvider{
		id:   ElyBy,
		caps: Capabilities{Credentials: true},
		loginFn: func(username, password string) (*Result, error) {
			return successResult(username, "token-1", "secret-1"), nil
		},
	}
	manager := NewManager(store, provider)

	result, err := manager.QuickLogin(context.Background(), ElyBy, "steve", "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("expected success, got %v", result.Status)
	}
	if result.RefreshSecret != "" {
		t.Error("refresh secret leaked out of the manager")
	}

	secret, err := store.Get(credentials.Key{Username: "steve", Provider: "elyby"})
	if err != nil {
		t.Fatal(err)
	}
	if secret != "secret-1" {
		t.Errorf("stored secret is %q", secret)
	}
}

func TestQuickLoginUnsupported(t *testing.T) {
	manager := NewManager(credentials.NewMemory(), &fakeOffline{})

	_, err := manager.QuickLogin(context.Background(), Offline, "steve", "hunter2")
	if !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("expected unsupported operation, got %v", err)
	}
}

func TestEnsureValidTokenSingleFlight(t *testing.T) {
	store := credentials.NewMemory()
	key := credentials.Key{Username: "steve", Provider: "elyby"}
	if err := store.Set(key, "secret-1"); err != nil {
		t.Fatal(err)
	}

	provider := &fakeProvider{
		id:           ElyBy,
		caps:         Capabilities{Credentials: true},
		refreshDelay: 50 * time.Millisecond,
		refreshFn: func(username, secret string) (*Result, error) {
			return successResult(username, "fresh-token", "secret-2"), nil
		},
	}
	manager := NewManager(store, provider)

	expired := Account{Username: "steve", Provider: ElyBy}

	const callers = 16
	tokens := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			account, err := manager.EnsureValidToken(context.Background(), expired)
			errs[i] = err
			if err == nil {
				tokens[i] = account.AccessToken
			}
		}(i)
	}
	wg.Wait()

	if calls := atomic.LoadInt32(&provider.refreshCalls); calls != 1 {
		t.Errorf("expected exactly 1 refresh call, got %d", calls)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if tokens[i] != "fresh-token" {
			t.Errorf("caller %d got token %q", i, tokens[i])
		}
	}

	// the rotated secret must have replaced the old one
	secret, err := store.Get(key)
	if err != nil {
		t.Fatal(err)
	}
	if secret != "secret-2" {
		t.Errorf("stored secret is %q, want the rotated one", secret)
	}
}

func TestEnsureValidTokenReauthRequired(t *testing.T) {
	store := credentials.NewMemory()
	key := credentials.Key{Username: "steve", Provider: "elyby"}
	if err := store.Set(key, "stale-secret"); err != nil {
		t.Fatal(err)
	}

	provider := &fakeProvider{
		id:   ElyBy,
		caps: Capabilities{Credentials: true},
		refreshFn: func(username, secret string) (*Result, error) {
			return nil, ErrReauthRequired
		},
	}
	manager := NewManager(store, provider)

	_, err := manager.EnsureValidToken(context.Background(), Account{Username: "steve", Provider: ElyBy})
	if !errors.Is(err, ErrReauthRequired) {
		t.Fatalf("expected reauth required, got %v", err)
	}
	if errors.Is(err, ErrKeyring) || errors.Is(err, ErrNotFound) {
		t.Error("reauth must be distinguishable from other error kinds")
	}

	// the stored secret stays so the user can retry interactively
	if _, err := store.Get(key); err != nil {
		t.Errorf("store entry should survive a ReauthRequired: %v", err)
	}
}

func TestEnsureValidTokenWithoutStoredSecret(t *testing.T) {
	provider := &fakeProvider{
		id:   ElyBy,
		caps: Capabilities{Credentials: true},
		refreshFn: func(username, secret string) (*Result, error) {
			t.Error("refresh should not be reached without a secret")
			return nil, nil
		},
	}
	manager := NewManager(credentials.NewMemory(), provider)

	_, err := manager.EnsureValidToken(context.Background(), Account{Username: "ghost", Provider: ElyBy})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestEnsureValidTokenSkipsFreshAccounts(t *testing.T) {
	provider := &fakeProvider{
		id:   ElyBy,
		caps: Capabilities{Credentials: true},
		loginFn: func(username, password string) (*Result, error) {
			return successResult(username, "token-1", "secret-1"), nil
		},
		refreshFn: func(username, secret string) (*Result, error) {
			t.Error("a valid token must not trigger a refresh")
			return nil, nil
		},
	}
	manager := NewManager(credentials.NewMemory(), provider)

	result, err := manager.QuickLogin(context.Background(), ElyBy, "steve", "hunter2")
	if err != nil {
		t.Fatal(err)
	}

	account, err := manager.EnsureValidToken(context.Background(), *result.Account)
	if err != nil {
		t.Fatal(err)
	}
	if account.AccessToken != "token-1" {
		t.Errorf("got token %q", account.AccessToken)
	}
}

func TestOfflineAccountsNeedNoRefresh(t *testing.T) {
	manager := NewManager(credentials.NewMemory(), &fakeOffline{})

	result, err := manager.QuickOfflineLogin("steve")
	if err != nil {
		t.Fatal(err)
	}

	account, err := manager.EnsureValidToken(context.Background(), *result.Account)
	if err != nil {
		t.Fatal(err)
	}
	if account.AccessToken != "" {
		t.Error("offline accounts never carry a token")
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	store := credentials.NewMemory()
	provider := &fakeProvider{
		id:   ElyBy,
		caps: Capabilities{Credentials: true},
		loginFn: func(username, password string) (*Result, error) {
			return successResult(username, "token-1", "secret-1"), nil
		},
	}
	manager := NewManager(store, provider)

	if _, err := manager.QuickLogin(context.Background(), ElyBy, "steve", "hunter2"); err != nil {
		t.Fatal(err)
	}

	if err := manager.Logout(context.Background(), "steve", ElyBy); err != nil {
		t.Fatal(err)
	}
	if calls := atomic.LoadInt32(&provider.revokeCalls); calls != 1 {
		t.Errorf("expected 1 revoke call, got %d", calls)
	}

	accounts, err := manager.Accounts()
	if err != nil {
		t.Fatal(err)
	}
	for _, account := range accounts {
		if account.Username == "steve" && account.Provider == ElyBy {
			t.Error("account still listed after logout")
		}
	}

	// a second logout of the same key still succeeds
	if err := manager.Logout(context.Background(), "steve", ElyBy); err != nil {
		t.Errorf("second logout failed: %v", err)
	}
}

func TestAccountsAreSanitized(t *testing.T) {
	store := credentials.NewMemory()
	provider := &fakeProvider{
		id:   ElyBy,
		caps: Capabilities{Credentials: true},
		loginFn: func(username, password string) (*Result, error) {
			account := &Account{
				Username: username, UUID: "some-uuid", DisplayName: username,
				Provider: ElyBy, AccessToken: "expired-token",
				TokenExpiry: time.Now().Add(-time.Hour),
			}
			return Success(account, "secret-1"), nil
		},
	}
	manager := NewManager(store, provider)

	if _, err := manager.QuickLogin(context.Background(), ElyBy, "steve", "hunter2"); err != nil {
		t.Fatal(err)
	}

	accounts, err := manager.Accounts()
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts))
	}
	if accounts[0].AccessToken != "" {
		t.Error("expired tokens must not show up in listings")
	}
	if accounts[0].UUID != "some-uuid" {
		t.Errorf("cached uuid got lost: %q", accounts[0].UUID)
	}
}

func TestAccountsListsOfflineAccounts(t *testing.T) {
	manager := NewManager(credentials.NewMemory(), &fakeOffline{})

	if _, err := manager.QuickOfflineLogin("steve"); err != nil {
		t.Fatal(err)
	}

	accounts, err := manager.Accounts()
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 1 || accounts[0].Provider != Offline {
		t.Fatalf("expected the offline account to be listed, got %v", accounts)
	}
}

func TestUnknownProvider(t *testing.T) {
	manager := NewManager(credentials.NewMemory())

	if _, err := manager.ProviderCapabilities("mojang"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := manager.QuickLogin(context.Background(), "mojang", "a", "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
