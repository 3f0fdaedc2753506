// Package providertest runs an in-process identity provider that speaks the
// Cognito JSON 1.1 protocol and verifies SRP proofs for real. It backs the
// end-to-end tests of the engine, the provider client and hivectl.
package providertest

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fzdarsky/hiveauth/internal/logging"
	"github.com/fzdarsky/hiveauth/pkg/cognito"
	"github.com/fzdarsky/hiveauth/pkg/srp"
)

const (
	defaultTokenTTL = time.Hour
	maxBodyBytes    = 1 << 20
)

// Config configures a fake provider.
type Config struct {
	PoolID       string
	ClientID     string
	ClientSecret string // when set, SECRET_HASH is required

	TokenTTL        time.Duration
	MaxFailures     int
	LockoutDuration time.Duration

	Now    func() time.Time
	Random io.Reader
	Logger *logging.Logger
}

// User is an account known to the fake provider.
type User struct {
	Username string
	Password string
	// MFACode, when set, makes every password login continue with SMS_MFA.
	MFACode string
	// OfferDevice makes completed logins carry NewDeviceMetadata.
	OfferDevice bool
}

// Device is the provider's record of a device.
type Device struct {
	GroupKey      string
	Key           string
	Name          string
	Owner         string
	Remembered    bool
	Confirmations int

	verifier *big.Int
	salt     *big.Int
}

// Confirmed reports whether ConfirmDevice has stored a verifier.
func (d Device) Confirmed() bool {
	return d.verifier != nil
}

type account struct {
	User
	sub         string
	salt        *big.Int
	verifier    *big.Int
	deviceGroup string
}

type pendingChallenge struct {
	name        cognito.ChallengeName
	sub         string
	handshake   *Handshake
	secretBlock []byte
	deviceKey   string
}

// Server is a fake identity provider.
type Server struct {
	cfg      Config
	poolName string
	region   string
	lockout  *lockout
	router   chi.Router
	http     *httptest.Server

	mu        sync.Mutex
	users     map[string]*account // by username and by sub
	pending   map[string]*pendingChallenge
	access    map[string]string // access token -> sub
	refresh   map[string]string // refresh token -> sub
	devices   map[string]*Device
	calls     map[string]int
	failNext  map[string]*cognito.ProviderError
	issued    int
	lastToken string
}

// New creates a fake provider. Call Start to serve it over HTTP, or use Handler directly.
func New(cfg Config) (*Server, error) {
	poolName, err := cognito.PoolName(cfg.PoolID)
	if err != nil {
		return nil, err
	}
	region, _ := cognito.Region(cfg.PoolID)

	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Random == nil {
		cfg.Random = rand.Reader
	}

	s := &Server{
		cfg:      cfg,
		poolName: poolName,
		region:   region,
		lockout:  newLockout(cfg.MaxFailures, cfg.LockoutDuration, cfg.Now),
		users:    make(map[string]*account),
		pending:  make(map[string]*pendingChallenge),
		access:   make(map[string]string),
		refresh:  make(map[string]string),
		devices:  make(map[string]*Device),
		calls:    make(map[string]int),
		failNext: make(map[string]*cognito.ProviderError),
	}

	r := chi.NewRouter()
	r.Use(requestLogging(cfg.Logger))
	r.Post("/", s.handleOperation)
	r.Get("/", s.handleBootstrapPage)
	s.router = r

	return s, nil
}

// Handler returns the HTTP handler of the fake provider.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the fake provider on a local port and returns its URL.
func (s *Server) Start() string {
	s.http = httptest.NewServer(s.router)
	return s.http.URL
}

// Close stops a started server.
func (s *Server) Close() {
	if s.http != nil {
		s.http.Close()
	}
}

// AddUser registers an account and returns its sub, the USER_ID_FOR_SRP.
func (s *Server) AddUser(u User) (string, error) {
	salt, err := NewSalt(s.cfg.Random)
	if err != nil {
		return "", err
	}
	sub := uuid.NewString()
	acct := &account{
		User:        u,
		sub:         sub,
		salt:        salt,
		verifier:    srp.ComputeVerifier(srp.PasswordIdentity(s.poolName, sub, u.Password), salt),
		deviceGroup: "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:9],
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = acct
	s.users[sub] = acct
	return sub, nil
}

// Calls returns how many times an operation was invoked.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// FailNext makes the next call of op fail with perr.
func (s *Server) FailNext(op string, perr *cognito.ProviderError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = perr
}

// Device returns a copy of the device record for key.
func (s *Server) Device(key string) (Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[key]
	if !ok {
		return Device{}, false
	}
	return *d, true
}

// LastIDToken returns the most recently issued IdToken.
func (s *Server) LastIDToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastToken
}

// RevokeRefreshTokens invalidates every refresh token issued so far.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.refresh)
}

func apiError(typ, msg string) *cognito.ProviderError {
	return &cognito.ProviderError{Type: typ, Message: msg, StatusCode: http.StatusBadRequest}
}

func writeResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", cognito.ContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProviderError(w http.ResponseWriter, perr *cognito.ProviderError) {
	w.Header().Set(cognito.HeaderErrorType, perr.Type)
	status := perr.StatusCode
	if status == 0 {
		status = http.StatusBadRequest
	}
	writeResponse(w, status, perr)
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	op, ok := strings.CutPrefix(r.Header.Get(cognito.HeaderTarget), cognito.TargetPrefix)
	if !ok {
		writeProviderError(w, apiError("UnknownOperationException", "missing or foreign X-Amz-Target"))
		return
	}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), cognito.ContentType) {
		writeProviderError(w, apiError("SerializationException", "unexpected content type"))
		return
	}

	s.mu.Lock()
	s.calls[op]++
	injected := s.failNext[op]
	delete(s.failNext, op)
	s.mu.Unlock()
	if injected != nil {
		writeProviderError(w, injected)
		return
	}

	body := io.LimitReader(r.Body, maxBodyBytes)

	var (
		out  any
		perr *cognito.ProviderError
	)
	switch op {
	case cognito.OpInitiateAuth:
		var in cognito.InitiateAuthInput
		if perr = decode(body, &in); perr == nil {
			out, perr = s.initiateAuth(&in)
		}
	case cognito.OpRespondToAuthChallenge:
		var in cognito.RespondToAuthChallengeInput
		if perr = decode(body, &in); perr == nil {
			out, perr = s.respondToAuthChallenge(&in)
		}
	case cognito.OpConfirmDevice:
		var in cognito.ConfirmDeviceInput
		if perr = decode(body, &in); perr == nil {
			out, perr = s.confirmDevice(&in)
		}
	case cognito.OpUpdateDeviceStatus:
		var in cognito.UpdateDeviceStatusInput
		if perr = decode(body, &in); perr == nil {
			out, perr = s.updateDeviceStatus(&in)
		}
	case cognito.OpForgetDevice:
		var in cognito.ForgetDeviceInput
		if perr = decode(body, &in); perr == nil {
			out, perr = s.forgetDevice(&in)
		}
	default:
		perr = apiError("UnknownOperationException", "unknown operation "+op)
	}

	if perr != nil {
		writeProviderError(w, perr)
		return
	}
	writeResponse(w, http.StatusOK, out)
}

func decode(r io.Reader, v any) *cognito.ProviderError {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return apiError("SerializationException", "invalid request body")
	}
	return nil
}

func (s *Server) initiateAuth(in *cognito.InitiateAuthInput) (*cognito.AuthOutput, *cognito.ProviderError) {
	if in.ClientID != s.cfg.ClientID {
		return nil, apiError(cognito.ErrTypeResourceNotFound, "User pool client does not exist.")
	}

	switch in.AuthFlow {
	case cognito.AuthFlowUserSRP:
		return s.startSRP(in.AuthParameters)
	case cognito.AuthFlowRefreshToken:
		return s.refreshTokens(in.AuthParameters)
	default:
		return nil, apiError(cognito.ErrTypeInvalidParameter, fmt.Sprintf("Unsupported auth flow %q", in.AuthFlow))
	}
}

func (s *Server) startSRP(params map[string]string) (*cognito.AuthOutput, *cognito.ProviderError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.users[params[cognito.ParamUsername]]
	if !ok {
		return nil, apiError(cognito.ErrTypeUserNotFound, "User does not exist.")
	}
	if perr := s.checkSecretHash(params[cognito.ParamSecretHash], params[cognito.ParamUsername]); perr != nil {
		return nil, perr
	}
	if s.lockout.locked(acct.sub) {
		return nil, apiError(cognito.ErrTypeNotAuthorized, "Password attempts exceeded")
	}

	A, err := srp.HexToBig(params[cognito.ParamSRPA])
	if err != nil {
		return nil, apiError(cognito.ErrTypeInvalidParameter, "Invalid SRP_A")
	}
	hs, err := NewHandshake(s.cfg.Random, acct.verifier, acct.salt, A)
	if err != nil {
		return nil, apiError(cognito.ErrTypeInvalidParameter, err.Error())
	}

	return s.challenge(&pendingChallenge{
		name:      cognito.ChallengePasswordVerifier,
		sub:       acct.sub,
		handshake: hs,
		deviceKey: params[cognito.ParamDeviceKey],
	}, map[string]string{
		cognito.ParamUserIDForSRP: acct.sub,
		cognito.ParamUsername:     acct.sub,
	})
}

// challenge registers p under a fresh session token and builds the reply.
// SRP challenges get a secret block and the handshake's SALT and SRP_B. Callers hold mu.
func (s *Server) challenge(p *pendingChallenge, params map[string]string) (*cognito.AuthOutput, *cognito.ProviderError) {
	if p.handshake != nil {
		block, blockB64, err := NewSecretBlock()
		if err != nil {
			return nil, apiError(cognito.ErrTypeInternalError, err.Error())
		}
		p.secretBlock = block
		for k, v := range p.handshake.ChallengeParameters() {
			params[k] = v
		}
		params[cognito.ParamSecretBlock] = blockB64
	}

	session := base64.RawURLEncoding.EncodeToString([]byte(uuid.NewString()))
	s.pending[session] = p

	return &cognito.AuthOutput{
		ChallengeName:       p.name,
		ChallengeParameters: params,
		Session:             session,
	}, nil
}

func (s *Server) refreshTokens(params map[string]string) (*cognito.AuthOutput, *cognito.ProviderError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.refresh[params[cognito.ParamRefreshToken]]
	if !ok {
		return nil, apiError(cognito.ErrTypeNotAuthorized, "Invalid Refresh Token")
	}
	acct := s.users[sub]
	if perr := s.checkSecretHash(params[cognito.ParamSecretHash], acct.sub, acct.Username); perr != nil {
		return nil, perr
	}
	if key := params[cognito.ParamDeviceKey]; key != "" {
		if d, ok := s.devices[key]; !ok || d.Owner != sub {
			return nil, apiError(cognito.ErrTypeNotAuthorized, "Invalid device key given.")
		}
	}

	return s.issueTokens(acct, false, false), nil
}

func (s *Server) respondToAuthChallenge(in *cognito.RespondToAuthChallengeInput) (*cognito.AuthOutput, *cognito.ProviderError) {
	if in.ClientID != s.cfg.ClientID {
		return nil, apiError(cognito.ErrTypeResourceNotFound, "User pool client does not exist.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[in.Session]
	if !ok {
		return nil, apiError(cognito.ErrTypeNotAuthorized, "Invalid session for the user, session is expired.")
	}
	// Sessions are single use, whatever the outcome.
	delete(s.pending, in.Session)
	if p.handshake != nil {
		defer p.handshake.Clear()
	}

	if in.ChallengeName != p.name {
		return nil, apiError(cognito.ErrTypeInvalidParameter,
			fmt.Sprintf("Expected challenge %s, got %s", p.name, in.ChallengeName))
	}

	acct := s.users[p.sub]
	resp := in.ChallengeResponses
	if user := resp[cognito.ParamUsername]; user != acct.sub && user != acct.Username {
		return nil, apiError(cognito.ErrTypeNotAuthorized, "Incorrect username or password.")
	}
	if perr := s.checkSecretHash(resp[cognito.ParamSecretHash], resp[cognito.ParamUsername]); perr != nil {
		return nil, perr
	}

	switch p.name {
	case cognito.ChallengePasswordVerifier:
		return s.verifyPassword(acct, p, resp)
	case cognito.ChallengeSMSMFA:
		if resp[cognito.ParamSMSMFACode] != acct.MFACode {
			return nil, apiError(cognito.ErrTypeCodeMismatch, "Invalid code or auth state for the user.")
		}
		return s.issueTokens(acct, acct.OfferDevice, true), nil
	case cognito.ChallengeDeviceSRPAuth:
		return s.startDeviceSRP(acct, resp)
	case cognito.ChallengeDevicePasswordVerifier:
		return s.verifyDevice(acct, p, resp)
	default:
		return nil, apiError(cognito.ErrTypeInvalidParameter, "Unsupported challenge")
	}
}

func (s *Server) verifyPassword(acct *account, p *pendingChallenge, resp map[string]string) (*cognito.AuthOutput, *cognito.ProviderError) {
	if perr := s.verifyProof(p, s.poolName, acct.sub, resp); perr != nil {
		s.lockout.recordFailure(acct.sub)
		return nil, perr
	}
	s.lockout.recordSuccess(acct.sub)

	deviceKey := p.deviceKey
	if deviceKey == "" {
		deviceKey = resp[cognito.ParamDeviceKey]
	}
	if d, ok := s.devices[deviceKey]; ok && d.Owner == acct.sub && d.Remembered && d.verifier != nil {
		return s.challenge(&pendingChallenge{name: cognito.ChallengeDeviceSRPAuth, sub: acct.sub, deviceKey: deviceKey},
			map[string]string{})
	}

	if acct.MFACode != "" {
		return s.challenge(&pendingChallenge{name: cognito.ChallengeSMSMFA, sub: acct.sub},
			map[string]string{
				cognito.ParamCodeDeliveryDeliveryMedium: "SMS",
				cognito.ParamCodeDeliveryDestination:    "+*******0000",
				cognito.ParamUserIDForSRP:               acct.sub,
			})
	}

	return s.issueTokens(acct, acct.OfferDevice, true), nil
}

func (s *Server) startDeviceSRP(acct *account, resp map[string]string) (*cognito.AuthOutput, *cognito.ProviderError) {
	key := resp[cognito.ParamDeviceKey]
	d, ok := s.devices[key]
	if !ok || d.Owner != acct.sub || d.verifier == nil {
		return nil, apiError(cognito.ErrTypeResourceNotFound, "Device does not exist.")
	}

	A, err := srp.HexToBig(resp[cognito.ParamSRPA])
	if err != nil {
		return nil, apiError(cognito.ErrTypeInvalidParameter, "Invalid SRP_A")
	}
	hs, err := NewHandshake(s.cfg.Random, d.verifier, d.salt, A)
	if err != nil {
		return nil, apiError(cognito.ErrTypeInvalidParameter, err.Error())
	}

	return s.challenge(&pendingChallenge{
		name:      cognito.ChallengeDevicePasswordVerifier,
		sub:       acct.sub,
		handshake: hs,
		deviceKey: key,
	}, map[string]string{
		cognito.ParamUsername:  acct.sub,
		cognito.ParamDeviceKey: key,
	})
}

func (s *Server) verifyDevice(acct *account, p *pendingChallenge, resp map[string]string) (*cognito.AuthOutput, *cognito.ProviderError) {
	d, ok := s.devices[p.deviceKey]
	if !ok || resp[cognito.ParamDeviceKey] != p.deviceKey {
		return nil, apiError(cognito.ErrTypeResourceNotFound, "Device does not exist.")
	}
	if perr := s.verifyProof(p, d.GroupKey, d.Key, resp); perr != nil {
		return nil, perr
	}
	return s.issueTokens(acct, false, true), nil
}

// verifyProof checks TIMESTAMP, the echoed secret block and the signature.
func (s *Server) verifyProof(p *pendingChallenge, prefix, userID string, resp map[string]string) *cognito.ProviderError {
	ts := resp[cognito.ParamTimestamp]
	parsed, err := time.Parse(cognito.TimestampLayout, ts)
	if err != nil || cognito.FormatTimestamp(parsed) != ts {
		return apiError(cognito.ErrTypeInvalidParameter, "TIMESTAMP format is invalid")
	}

	if resp[cognito.ParamPasswordClaimSecretBlock] != base64.StdEncoding.EncodeToString(p.secretBlock) {
		return apiError(cognito.ErrTypeNotAuthorized, "Incorrect username or password.")
	}

	ok, err := p.handshake.VerifySignature(prefix, userID, p.secretBlock, ts, resp[cognito.ParamPasswordClaimSignature])
	if err != nil || !ok {
		return apiError(cognito.ErrTypeNotAuthorized, "Incorrect username or password.")
	}
	return nil
}

// checkSecretHash accepts the hash computed over any of the given usernames. Callers hold mu.
func (s *Server) checkSecretHash(got string, usernames ...string) *cognito.ProviderError {
	if s.cfg.ClientSecret == "" {
		return nil
	}
	for _, u := range usernames {
		if got != "" && got == cognito.SecretHash(s.cfg.ClientSecret, u, s.cfg.ClientID) {
			return nil
		}
	}
	return apiError(cognito.ErrTypeNotAuthorized, "Unable to verify secret hash for client "+s.cfg.ClientID)
}

// issueTokens mints a token set. Callers hold mu.
func (s *Server) issueTokens(acct *account, offerDevice, withRefresh bool) *cognito.AuthOutput {
	s.issued++
	res := &cognito.AuthenticationResult{
		AccessToken: fmt.Sprintf("access-token-%d", s.issued),
		IDToken:     fmt.Sprintf("id-token-%d", s.issued),
		ExpiresIn:   int(s.cfg.TokenTTL / time.Second),
		TokenType:   "Bearer",
	}
	s.access[res.AccessToken] = acct.sub
	s.lastToken = res.IDToken

	if withRefresh {
		res.RefreshToken = fmt.Sprintf("refresh-token-%d", s.issued)
		s.refresh[res.RefreshToken] = acct.sub
	}

	if offerDevice {
		d := &Device{
			GroupKey: acct.deviceGroup,
			Key:      s.region + "_" + uuid.NewString(),
			Owner:    acct.sub,
		}
		s.devices[d.Key] = d
		res.NewDeviceMetadata = &cognito.NewDeviceMetadata{DeviceGroupKey: d.GroupKey, DeviceKey: d.Key}
	}

	return &cognito.AuthOutput{AuthenticationResult: res, ChallengeParameters: map[string]string{}}
}

// deviceFor resolves the caller's access token and one of their devices. Callers hold mu.
func (s *Server) deviceFor(accessToken, key string) (*Device, *cognito.ProviderError) {
	sub, ok := s.access[accessToken]
	if !ok {
		return nil, apiError(cognito.ErrTypeNotAuthorized, "Invalid Access Token")
	}
	d, ok := s.devices[key]
	if !ok || d.Owner != sub {
		return nil, apiError(cognito.ErrTypeResourceNotFound, "Device does not exist.")
	}
	return d, nil
}

func (s *Server) confirmDevice(in *cognito.ConfirmDeviceInput) (*cognito.ConfirmDeviceOutput, *cognito.ProviderError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, perr := s.deviceFor(in.AccessToken, in.DeviceKey)
	if perr != nil {
		return nil, perr
	}
	verifier, salt, err := DecodeDeviceVerifier(in.DeviceSecretVerifierConfig)
	if err != nil {
		return nil, apiError(cognito.ErrTypeInvalidParameter, err.Error())
	}

	// Last write wins.
	d.verifier, d.salt = verifier, salt
	d.Name = in.DeviceName
	d.Confirmations++

	return &cognito.ConfirmDeviceOutput{UserConfirmationNecessary: false}, nil
}

func (s *Server) updateDeviceStatus(in *cognito.UpdateDeviceStatusInput) (struct{}, *cognito.ProviderError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, perr := s.deviceFor(in.AccessToken, in.DeviceKey)
	if perr != nil {
		return struct{}{}, perr
	}
	switch in.DeviceRememberedStatus {
	case cognito.DeviceRemembered:
		d.Remembered = true
	case cognito.DeviceNotRemembered:
		d.Remembered = false
	default:
		return struct{}{}, apiError(cognito.ErrTypeInvalidParameter, "Invalid DeviceRememberedStatus")
	}
	return struct{}{}, nil
}

func (s *Server) forgetDevice(in *cognito.ForgetDeviceInput) (struct{}, *cognito.ProviderError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, perr := s.deviceFor(in.AccessToken, in.DeviceKey); perr != nil {
		return struct{}{}, perr
	}
	delete(s.devices, in.DeviceKey)
	return struct{}{}, nil
}
