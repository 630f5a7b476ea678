package ownhttp

import (
	"net/http"

	"golang.org/x/time/rate"
)

// ThrottleTransport rate limits outgoing requests. All auth traffic of
// the process shares one limiter, so device code polling and token
// refreshes together stay under the providers' request limits.
type ThrottleTransport struct {
	T       http.RoundTripper
	limiter *rate.Limiter
}

// RoundTrip waits for the limiter before delegating to the wrapped
// transport. Cancelling the request context aborts the wait.
func (tt *ThrottleTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := tt.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return tt.T.RoundTrip(req)
}

// NewThrottleTransport wraps T (or the default transport) with limiter
func NewThrottleTransport(T http.RoundTripper, limiter *rate.Limiter) *ThrottleTransport {
	if T == nil {
		T = http.DefaultTransport
	}
	return &ThrottleTransport{T, limiter}
}
