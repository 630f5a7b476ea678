package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func testFlow() *Flow {
	return &Flow{
		Provider:        LittleSkin,
		DeviceCode:      "device-123",
		UserCode:        "ABCD-EFGH",
		VerificationURI: "https://example.com/activate",
		ExpiresAt:       time.Now().Add(time.Minute),
		Interval:        time.Millisecond,
		state:           FlowPendingUserAction,
	}
}

func TestPollDeviceTokenAuthorized(t *testing.T) {
	var polls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("grant_type"); got != "urn:ietf:params:oauth:grant-type:device_code" {
			t.Errorf("unexpected grant_type %q", got)
		}
		if got := r.FormValue("device_code"); got != "device-123" {
			t.Errorf("unexpected device_code %q", got)
		}

		// stay pending for the first two polls
		if atomic.AddInt32(&polls, 1) < 3 {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error": "authorization_pending"}`)
			return
		}
		fmt.Fprint(w, `{"access_token": "oauth-token", "refresh_token": "refresh-token", "expires_in": 3600}`)
	}))
	defer server.Close()

	flow := testFlow()
	token, err := PollDeviceToken(context.Background(), server.Client(), server.URL, "client-id", flow)
	if err != nil {
		t.Fatal(err)
	}
	if token.AccessToken != "oauth-token" || token.RefreshToken != "refresh-token" {
		t.Errorf("unexpected token %+v", token)
	}
	if flow.State() != FlowAuthorized {
		t.Errorf("flow should be authorized, is %v", flow.State())
	}
	if atomic.LoadInt32(&polls) != 3 {
		t.Errorf("expected 3 polls, got %d", polls)
	}
}

func TestPollDeviceTokenDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "access_denied"}`)
	}))
	defer server.Close()

	flow := testFlow()
	_, err := PollDeviceToken(context.Background(), server.Client(), server.URL, "client-id", flow)
	if err != ErrFlowDenied {
		t.Fatalf("expected ErrFlowDenied, got %v", err)
	}
	if flow.State() != FlowDenied {
		t.Errorf("flow should be denied, is %v", flow.State())
	}
}

func TestPollDeviceTokenExpired(t *testing.T) {
	// the server must never be asked – the flow is already over
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("polling an expired flow must not hit the network")
	}))
	defer server.Close()

	flow := testFlow()
	flow.ExpiresAt = time.Now().Add(-time.Second)

	_, err := PollDeviceToken(context.Background(), server.Client(), server.URL, "client-id", flow)
	if err != ErrFlowExpired {
		t.Fatalf("expected ErrFlowExpired, got %v", err)
	}
	if flow.State() != FlowExpired {
		t.Errorf("flow should be expired, is %v", flow.State())
	}
}

func TestPollDeviceTokenServerExpiry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "expired_token"}`)
	}))
	defer server.Close()

	flow := testFlow()
	if _, err := PollDeviceToken(context.Background(), server.Client(), server.URL, "client-id", flow); err != ErrFlowExpired {
		t.Fatalf("expected ErrFlowExpired, got %v", err)
	}
}

func TestPollDeviceTokenAbsorbsServerErrors(t *testing.T) {
	var polls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) < 3 {
			// transient breakage must not end the flow
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"access_token": "oauth-token"}`)
	}))
	defer server.Close()

	flow := testFlow()
	token, err := PollDeviceToken(context.Background(), server.Client(), server.URL, "client-id", flow)
	if err != nil {
		t.Fatal(err)
	}
	if token.AccessToken != "oauth-token" {
		t.Errorf("unexpected token %+v", token)
	}
}

func TestPollDeviceTokenConcurrentCallers(t *testing.T) {
	var polls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) < 3 {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error": "authorization_pending"}`)
			return
		}
		fmt.Fprint(w, `{"access_token": "oauth-token"}`)
	}))
	defer server.Close()

	// all callers must share one poll loop – two loops for the same
	// device code would double the request rate
	flow := testFlow()
	const callers = 4
	tokens := make([]*oauth2.Token, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = PollDeviceToken(context.Background(), server.Client(), server.URL, "client-id", flow)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if tokens[i] == nil || tokens[i].AccessToken != "oauth-token" {
			t.Errorf("caller %d got token %+v", i, tokens[i])
		}
	}
	if got := atomic.LoadInt32(&polls); got != 3 {
		t.Errorf("endpoint was polled %d times, want 3", got)
	}
	if flow.State() != FlowAuthorized {
		t.Errorf("flow should be authorized, is %v", flow.State())
	}

	// a caller arriving after the flow resolved gets the same token
	// without any further polling
	token, err := PollDeviceToken(context.Background(), server.Client(), server.URL, "client-id", flow)
	if err != nil {
		t.Fatal(err)
	}
	if token.AccessToken != "oauth-token" {
		t.Errorf("late caller got token %+v", token)
	}
	if got := atomic.LoadInt32(&polls); got != 3 {
		t.Errorf("late caller hit the network, poll count is %d", got)
	}
}

func TestPollDeviceTokenCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "authorization_pending"}`)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	flow := testFlow()
	flow.Interval = time.Hour // force the cancellation path, not a poll

	done := make(chan error, 1)
	go func() {
		_, err := PollDeviceToken(ctx, server.Client(), server.URL, "client-id", flow)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelling the context did not stop the poll")
	}
}

func TestFlowFromDeviceAuth(t *testing.T) {
	expiry := time.Now().Add(15 * time.Minute)
	flow := FlowFromDeviceAuth(Microsoft, &oauth2.DeviceAuthResponse{
		DeviceCode:      "device-123",
		UserCode:        "ABCD-EFGH",
		VerificationURI: "https://example.com/activate",
		Expiry:          expiry,
		Interval:        7,
	})

	if flow.UserCode == "" || flow.VerificationURI == "" {
		t.Error("user code and verification uri must be set before any polling")
	}
	if flow.Interval != 7*time.Second {
		t.Errorf("unexpected interval %v", flow.Interval)
	}
	if flow.Terminal() {
		t.Error("a fresh flow must not be terminal")
	}

	// providers that omit the interval get the oauth default
	flow = FlowFromDeviceAuth(Microsoft, &oauth2.DeviceAuthResponse{DeviceCode: "x"})
	if flow.Interval != 5*time.Second {
		t.Errorf("expected the 5s default interval, got %v", flow.Interval)
	}
}
