package auth

import (
	"crypto/rand"
	"fmt"
	"io"
	"maps"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fzdarsky/hiveauth/internal/logging"
	"github.com/fzdarsky/hiveauth/pkg/cognito"
)

// Pool identifies the user pool and app client a Session authenticates against.
type Pool struct {
	ID           string // e.g. "eu-west-1_SamNfoWtf"
	ClientID     string
	ClientSecret string // optional; adds SECRET_HASH to every request
}

// DeviceIdentity is a remembered device. Password is the base64 device secret
// the verifier was derived from and must be kept as confidential as a password.
type DeviceIdentity struct {
	GroupKey string `json:"device_group_key"`
	Key      string `json:"device_key"`
	Password string `json:"device_password"`
	Name     string `json:"device_name,omitempty"`
}

// Challenge is a pending provider challenge the caller must answer.
type Challenge struct {
	Name       cognito.ChallengeName
	Session    string // continuation token issued by the provider
	Username   string // USER_ID_FOR_SRP of the login
	Parameters map[string]string
}

// Result is the outcome of a login step.
type Result struct {
	State     State
	Tokens    *TokenBundle
	Challenge *Challenge
	// NewDevice is set when the provider offers to remember this device.
	NewDevice *cognito.NewDeviceMetadata
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. Secrets are redacted by the logger itself.
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithClock replaces time.Now for timestamps and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithRandom replaces crypto/rand as the source of ephemerals, salts and device passwords.
func WithRandom(r io.Reader) Option {
	return func(s *Session) { s.random = r }
}

// WithTransitionHook registers an observer for state changes.
func WithTransitionHook(h TransitionHook) Option {
	return func(s *Session) { s.hooks = append(s.hooks, h) }
}

// WithDevice configures a previously registered device.
func WithDevice(d DeviceIdentity) Option {
	return func(s *Session) { s.device = &d }
}

// Session is one account's authentication state against one pool.
// All methods are safe for concurrent use; network sequences are serialised.
type Session struct {
	pool     Pool
	poolName string
	provider IdentityProvider
	logger   *logging.Logger
	now      func() time.Time
	random   io.Reader
	hooks    []TransitionHook

	// opMu serialises login, MFA, device and refresh sequences.
	opMu    sync.Mutex
	refresh singleflight.Group

	mu       sync.RWMutex
	state    State
	username string
	userID   string
	device   *DeviceIdentity
	tokens   *TokenBundle
	pending  *Challenge
}

// NewSession creates a Session in StateInit.
func NewSession(provider IdentityProvider, pool Pool, opts ...Option) (*Session, error) {
	if provider == nil {
		return nil, fmt.Errorf("identity provider is required")
	}
	if pool.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	poolName, err := cognito.PoolName(pool.ID)
	if err != nil {
		return nil, err
	}

	s := &Session{
		pool:     pool,
		poolName: poolName,
		provider: provider,
		now:      time.Now,
		random:   rand.Reader,
		state:    StateInit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Pool returns the pool the session authenticates against.
func (s *Session) Pool() Pool {
	return s.pool
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Username returns the username of the last login or Restore.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// Pending returns a copy of the challenge awaiting an answer, if any.
func (s *Session) Pending() *Challenge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending.clone()
}

// Device returns a copy of the configured device identity, if any.
func (s *Session) Device() *DeviceIdentity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.device == nil {
		return nil
	}
	d := *s.device
	return &d
}

// SetDevice configures a remembered device, for example one loaded from storage.
func (s *Session) SetDevice(d DeviceIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.device = &d
}

func (c *Challenge) clone() *Challenge {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Parameters = maps.Clone(c.Parameters)
	return &cp
}

func (s *Session) deviceKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.device == nil {
		return ""
	}
	return s.device.Key
}

// secretHash returns SECRET_HASH for username, or "" without a client secret.
func (s *Session) secretHash(username string) string {
	if s.pool.ClientSecret == "" {
		return ""
	}
	return cognito.SecretHash(s.pool.ClientSecret, username, s.pool.ClientID)
}

// transition moves the session through the given states in order and
// notifies hooks. Callers hold opMu, which keeps notifications ordered.
func (s *Session) transition(states ...State) {
	var seen []Transition

	s.mu.Lock()
	for _, to := range states {
		if s.state == to {
			continue
		}
		seen = append(seen, Transition{From: s.state, To: to})
		s.state = to
	}
	s.mu.Unlock()

	for _, t := range seen {
		s.logger.Debug("state transition", map[string]any{"from": t.From.String(), "to": t.To.String()})
		for _, h := range s.hooks {
			h(t)
		}
	}
}

// fail discards the pending challenge and moves to StateFailed. Tokens are kept.
func (s *Session) fail(log *logging.Logger, err *Error) *Error {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()

	s.transition(StateFailed)
	log.Warn("authentication step failed", map[string]any{"op": err.Op, "kind": err.Kind.String(), "error": err.Error()})
	return err
}

// takeChallenge consumes the pending challenge if c refers to it.
// A nil c selects whatever is pending.
func (s *Session) takeChallenge(op string, want cognito.ChallengeName, staleKind Kind, c *Challenge) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c != nil && c.Name != want {
		return nil, newError(KindUnsupportedChallenge, op, fmt.Errorf("expected %s challenge, got %s", want, c.Name))
	}

	p := s.pending
	if p == nil {
		return nil, newError(staleKind, op, fmt.Errorf("no %s challenge pending", want))
	}
	if p.Name != want {
		return nil, newError(KindUnsupportedChallenge, op, fmt.Errorf("pending challenge is %s, not %s", p.Name, want))
	}
	if c != nil && c.Session != p.Session {
		return nil, newError(staleKind, op, fmt.Errorf("challenge session is stale"))
	}

	s.pending = nil
	return p, nil
}

// handleReply interprets a provider reply. Tokens complete the login; any
// challenge in next becomes pending; everything else is unsupported.
func (s *Session) handleReply(op string, log *logging.Logger, out *cognito.AuthOutput, next ...cognito.ChallengeName) (*Result, error) {
	if out == nil {
		return nil, s.fail(log, newError(KindProviderRejected, op, fmt.Errorf("empty response")))
	}

	if res := out.AuthenticationResult; res != nil {
		if res.IDToken == "" {
			return nil, s.fail(log, newError(KindProviderRejected, op, fmt.Errorf("authentication result carries no IdToken")))
		}
		bundle := newTokenBundle(res, s.now(), "")

		s.mu.Lock()
		s.tokens = &bundle
		s.pending = nil
		s.mu.Unlock()
		s.transition(StateAuthenticated)

		log.Info("authenticated", map[string]any{"expires_at": bundle.ExpiresAt().Format(time.RFC3339)})
		return &Result{State: StateAuthenticated, Tokens: &bundle, NewDevice: res.NewDeviceMetadata}, nil
	}

	for _, name := range next {
		if out.ChallengeName != name {
			continue
		}

		s.mu.RLock()
		userID := s.userID
		s.mu.RUnlock()
		if id := out.ChallengeParameters[cognito.ParamUserIDForSRP]; id != "" {
			userID = id
		}

		c := &Challenge{
			Name:       name,
			Session:    out.Session,
			Username:   userID,
			Parameters: maps.Clone(out.ChallengeParameters),
		}
		waiting := StateAwaitingMFA
		if name == cognito.ChallengeDeviceSRPAuth {
			waiting = StateAwaitingDeviceVerifier
		}

		s.mu.Lock()
		s.pending = c
		from := s.state
		s.mu.Unlock()
		if from == StateChallengeSent {
			s.transition(StatePasswordVerified, waiting)
		} else {
			s.transition(waiting)
		}

		log.Info("challenge received", map[string]any{"challenge": string(name)})
		return &Result{State: waiting, Challenge: c.clone()}, nil
	}

	return nil, s.fail(log, newError(KindUnsupportedChallenge, op, fmt.Errorf("provider sent challenge %q", out.ChallengeName)))
}
