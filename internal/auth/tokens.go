package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/fzdarsky/hiveauth/internal/logging"
	"github.com/fzdarsky/hiveauth/pkg/cognito"
)

const opRefresh = "refresh"

// TokenBundle is the set of tokens issued by one successful authentication.
type TokenBundle struct {
	IDToken      string        `json:"id_token"`
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	IssuedAt     time.Time     `json:"issued_at"`
	TTL          time.Duration `json:"ttl"`
}

// ExpiresAt returns IssuedAt + TTL.
func (b TokenBundle) ExpiresAt() time.Time {
	return b.IssuedAt.Add(b.TTL)
}

// Expired reports whether now >= IssuedAt + TTL.
func (b TokenBundle) Expired(now time.Time) bool {
	return !now.Before(b.ExpiresAt())
}

func newTokenBundle(res *cognito.AuthenticationResult, now time.Time, previousRefresh string) TokenBundle {
	b := TokenBundle{
		IDToken:      res.IDToken,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		IssuedAt:     now,
		TTL:          time.Duration(res.ExpiresIn) * time.Second,
	}
	if b.RefreshToken == "" {
		b.RefreshToken = previousRefresh
	}
	return b
}

// Tokens returns a snapshot of the current tokens and whether there are any.
func (s *Session) Tokens() (TokenBundle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tokens == nil {
		return TokenBundle{}, false
	}
	return *s.tokens, true
}

// Restore seeds the session with tokens obtained earlier, for example from
// storage. The session becomes authenticated without a network round trip.
func (s *Session) Restore(username string, b TokenBundle) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.username = username
	s.tokens = &b
	s.pending = nil
	s.mu.Unlock()
	s.transition(StateAuthenticated)
}

// NeedsRefresh reports whether the session holds tokens that have expired at now.
func (s *Session) NeedsRefresh(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens != nil && s.tokens.Expired(now)
}

func (s *Session) accessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tokens == nil {
		return ""
	}
	return s.tokens.AccessToken
}

// Refresh exchanges the refresh token for new tokens with REFRESH_TOKEN_AUTH.
// A reply without an IdToken fails with KindTokenRefreshFailed and the caller
// must fall back to Login.
func (s *Session) Refresh(ctx context.Context) (TokenBundle, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.refreshLocked(ctx)
}

// EnsureFresh returns valid tokens, refreshing first if they have expired.
// Concurrent callers that all observe expiry share a single refresh. A caller
// whose ctx ends stops waiting with KindTransport; the refresh carries on for
// the others.
func (s *Session) EnsureFresh(ctx context.Context) (TokenBundle, error) {
	if !s.NeedsRefresh(s.now()) {
		if b, ok := s.Tokens(); ok {
			return b, nil
		}
		return TokenBundle{}, newError(KindNotAuthenticated, opRefresh, fmt.Errorf("no tokens"))
	}

	ch := s.refresh.DoChan(opRefresh, func() (any, error) {
		s.opMu.Lock()
		defer s.opMu.Unlock()

		// Another caller may have refreshed between the check above and the lock.
		if !s.NeedsRefresh(s.now()) {
			b, _ := s.Tokens()
			return b, nil
		}
		// The refresh is shared, so it outlives any single caller's
		// cancellation; the provider client's timeout still bounds it.
		return s.refreshLocked(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return TokenBundle{}, classify(opRefresh, stepRefresh, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return TokenBundle{}, res.Err
		}
		if res.Shared {
			s.logger.Debug("joined in-flight refresh")
		}
		return res.Val.(TokenBundle), nil
	}
}

func (s *Session) refreshLocked(ctx context.Context) (TokenBundle, error) {
	log := s.attemptLogger(opRefresh)

	s.mu.RLock()
	var old TokenBundle
	if s.tokens != nil {
		old = *s.tokens
	}
	username, userID, state := s.username, s.userID, s.state
	s.mu.RUnlock()

	if old.RefreshToken == "" {
		return TokenBundle{}, newError(KindNotAuthenticated, opRefresh, fmt.Errorf("no refresh token"))
	}

	hashUser := userID
	if hashUser == "" {
		hashUser = username
	}
	in := cognito.NewRefreshAuth(s.pool.ClientID, old.RefreshToken).
		With(cognito.ParamDeviceKey, s.deviceKey()).
		With(cognito.ParamSecretHash, s.secretHash(hashUser))

	out, err := s.provider.InitiateAuth(ctx, in)
	if err != nil {
		return TokenBundle{}, s.refreshFailed(log, state, classify(opRefresh, stepRefresh, err))
	}
	if out == nil || out.AuthenticationResult == nil || out.AuthenticationResult.IDToken == "" {
		return TokenBundle{}, s.refreshFailed(log, state,
			newError(KindTokenRefreshFailed, opRefresh, fmt.Errorf("response carries no IdToken")))
	}

	bundle := newTokenBundle(out.AuthenticationResult, s.now(), old.RefreshToken)

	s.mu.Lock()
	s.tokens = &bundle
	s.mu.Unlock()
	if state == StateInit || state == StateFailed {
		s.transition(StateAuthenticated)
	}

	log.Info("tokens refreshed", map[string]any{"expires_at": bundle.ExpiresAt().Format(time.RFC3339)})
	return bundle, nil
}

// refreshFailed keeps the old tokens. An authenticated session moves to
// StateFailed; a login in progress is left alone.
func (s *Session) refreshFailed(log *logging.Logger, state State, err *Error) *Error {
	if state == StateAuthenticated {
		s.transition(StateFailed)
	}
	log.Warn("token refresh failed", map[string]any{"kind": err.Kind.String(), "error": err.Error()})
	return err
}
