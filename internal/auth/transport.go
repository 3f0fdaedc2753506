package auth

import (
	"fmt"
	"net/http"
)

// TokenKind selects which token the Transport attaches.
type TokenKind int

// Tokens the Transport can attach.
const (
	UseIDToken TokenKind = iota
	UseAccessToken
)

// Transport is an http.RoundTripper that makes every request on behalf of a
// Session. It refreshes expired tokens first, then sets the Authorization
// header. By default the header carries the raw IdToken with no scheme.
type Transport struct {
	Session *Session
	// Base performs the request; http.DefaultTransport when nil.
	Base http.RoundTripper
	// Scheme, when set, prefixes the token ("Bearer").
	Scheme string
	Token  TokenKind
}

// NewTransport returns a Transport for s over base.
func NewTransport(s *Session, base http.RoundTripper) *Transport {
	return &Transport{Session: s, Base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	tokens, err := t.Session.EnsureFresh(req.Context())
	if err != nil {
		closeBody(req)
		return nil, err
	}

	token := tokens.IDToken
	if t.Token == UseAccessToken {
		token = tokens.AccessToken
	}
	if token == "" {
		closeBody(req)
		return nil, newError(KindNotAuthenticated, "transport", fmt.Errorf("session holds no token of the requested kind"))
	}

	// RoundTrippers must not modify the caller's request.
	out := req.Clone(req.Context())
	if t.Scheme != "" {
		out.Header.Set("Authorization", t.Scheme+" "+token)
	} else {
		out.Header.Set("Authorization", token)
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(out)
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
