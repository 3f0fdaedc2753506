package auth_test

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fzdarsky/hiveauth/internal/auth"
	"github.com/fzdarsky/hiveauth/internal/auth/authtest"
	"github.com/fzdarsky/hiveauth/internal/providertest"
	"github.com/fzdarsky/hiveauth/pkg/cognito"
	"github.com/fzdarsky/hiveauth/pkg/srp"
)

const (
	testPoolID   = "eu-west-1_SamNfoWtf"
	testPoolName = "SamNfoWtf"
	testClientID = "3rl4i0ajrmtdm8sbre54p9dvd9"
	testUsername = "user@example.com"
	testPassword = "Test12345"
	testSub      = "9b2f4e6a-0c1d-4e5f-8a9b-0c1d2e3f4a5b"
)

var testNow = time.Date(2026, 3, 7, 9, 4, 5, 0, time.UTC)

// peer is the verifier-holding side of an SRP exchange, used to check the
// signatures the session produces.
type peer struct {
	t        *testing.T
	prefix   string
	userID   string
	verifier *big.Int
	salt     *big.Int

	mu       sync.Mutex
	hs       *providertest.Handshake
	block    []byte
	blockB64 string
}

func newPasswordPeer(t *testing.T, password string) *peer {
	t.Helper()
	salt, err := providertest.NewSalt(rand.Reader)
	require.NoError(t, err)
	return &peer{
		t:        t,
		prefix:   testPoolName,
		userID:   testSub,
		salt:     salt,
		verifier: srp.ComputeVerifier(srp.PasswordIdentity(testPoolName, testSub, password), salt),
	}
}

func newDevicePeer(t *testing.T, d auth.DeviceIdentity) *peer {
	t.Helper()
	salt, err := providertest.NewSalt(rand.Reader)
	require.NoError(t, err)
	return &peer{
		t:        t,
		prefix:   d.GroupKey,
		userID:   d.Key,
		salt:     salt,
		verifier: srp.ComputeVerifier(srp.DeviceIdentity(d.GroupKey, d.Key, d.Password), salt),
	}
}

// challenge answers an SRP_A with a verifier challenge.
func (p *peer) challenge(name cognito.ChallengeName, srpA, session string) *cognito.AuthOutput {
	p.t.Helper()
	A, err := srp.HexToBig(srpA)
	require.NoError(p.t, err)

	hs, err := providertest.NewHandshake(rand.Reader, p.verifier, p.salt, A)
	require.NoError(p.t, err)
	block, blockB64, err := providertest.NewSecretBlock()
	require.NoError(p.t, err)

	p.mu.Lock()
	p.hs, p.block, p.blockB64 = hs, block, blockB64
	p.mu.Unlock()

	params := hs.ChallengeParameters()
	params[cognito.ParamSecretBlock] = blockB64
	params[cognito.ParamUsername] = testSub
	if name == cognito.ChallengePasswordVerifier {
		params[cognito.ParamUserIDForSRP] = testSub
	}
	return &cognito.AuthOutput{ChallengeName: name, ChallengeParameters: params, Session: session}
}

// verify checks a PASSWORD_CLAIM_SIGNATURE against the last challenge.
func (p *peer) verify(resp map[string]string) bool {
	p.t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()

	if resp[cognito.ParamPasswordClaimSecretBlock] != p.blockB64 {
		return false
	}
	ok, err := p.hs.VerifySignature(p.prefix, p.userID, p.block, resp[cognito.ParamTimestamp], resp[cognito.ParamPasswordClaimSignature])
	require.NoError(p.t, err)
	return ok
}

func tokens(n string, expiresIn int) *cognito.AuthOutput {
	return &cognito.AuthOutput{AuthenticationResult: &cognito.AuthenticationResult{
		IDToken:      "id-" + n,
		AccessToken:  "access-" + n,
		RefreshToken: "refresh-" + n,
		ExpiresIn:    expiresIn,
		TokenType:    "Bearer",
	}}
}

// recorder collects state transitions.
type recorder struct {
	mu   sync.Mutex
	seen []auth.Transition
}

func (r *recorder) hook(t auth.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, t)
}

func (r *recorder) transitions() []auth.Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]auth.Transition(nil), r.seen...)
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newSession(t *testing.T, opts ...auth.Option) (*auth.Session, *authtest.MockIdentityProvider) {
	t.Helper()
	ctrl := gomock.NewController(t)
	provider := authtest.NewMockIdentityProvider(ctrl)

	opts = append([]auth.Option{auth.WithClock(func() time.Time { return testNow })}, opts...)
	s, err := auth.NewSession(provider, auth.Pool{ID: testPoolID, ClientID: testClientID}, opts...)
	require.NoError(t, err)
	return s, provider
}

func testDevice() auth.DeviceIdentity {
	return auth.DeviceIdentity{
		GroupKey: "-KwBv9eMdQ",
		Key:      "eu-west-1_0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0",
		Password: base64.StdEncoding.EncodeToString([]byte("0123456789012345678901234567890123456789")),
		Name:     "test-host",
	}
}
