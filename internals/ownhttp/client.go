// Package ownhttp provides the http client all auth servers are talked
// to with: a User-Agent header on every request and a polite request
// rate.
package ownhttp

import (
	"net/http"

	"golang.org/x/time/rate"
)

// UserAgent identifies this launcher against the auth apis
const UserAgent = "craftauth (https://github.com/craftauth/craftauth)"

// New returns a new http.Client with the AddHeaderTransport (setting the
// User-Agent header) and a rate limited transport underneath
func New() *http.Client {
	// auth apis are low volume; 10 rps with small bursts is plenty and
	// keeps oauth polling from ever tripping server side limits
	limiter := rate.NewLimiter(rate.Limit(10), 5)
	return &http.Client{
		Transport: NewAddHeaderTransport(NewThrottleTransport(nil, limiter)),
	}
}

// AddHeaderTransport sets default headers on every request
type AddHeaderTransport struct {
	T http.RoundTripper
}

func (adt *AddHeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}
	return adt.T.RoundTrip(req)
}

// NewAddHeaderTransport wraps T (or the default transport) with the
// User-Agent header
func NewAddHeaderTransport(T http.RoundTripper) *AddHeaderTransport {
	if T == nil {
		T = http.DefaultTransport
	}
	return &AddHeaderTransport{T}
}
