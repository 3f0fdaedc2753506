package auth_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fzdarsky/hiveauth/internal/auth"
	"github.com/fzdarsky/hiveauth/internal/auth/authtest"
	"github.com/fzdarsky/hiveauth/internal/providertest"
	"github.com/fzdarsky/hiveauth/pkg/cognito"
	"github.com/fzdarsky/hiveauth/pkg/srp"
)

// loginToDevice drives a session with a configured device to StateAwaitingDeviceVerifier.
func loginToDevice(t *testing.T, s *auth.Session, provider *authtest.MockIdentityProvider) (*auth.Result, string) {
	t.Helper()
	p := newPasswordPeer(t, testPassword)
	var loginA string

	provider.EXPECT().InitiateAuth(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *cognito.InitiateAuthInput) (*cognito.AuthOutput, error) {
			loginA = in.AuthParameters[cognito.ParamSRPA]
			return p.challenge(cognito.ChallengePasswordVerifier, loginA, "session-1"), nil
		})
	provider.EXPECT().RespondToAuthChallenge(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *cognito.RespondToAuthChallengeInput) (*cognito.AuthOutput, error) {
			require.True(t, p.verify(in.ChallengeResponses))
			return &cognito.AuthOutput{
				ChallengeName:       cognito.ChallengeDeviceSRPAuth,
				Session:             "session-2",
				ChallengeParameters: map[string]string{cognito.ParamUsername: testSub},
			}, nil
		})

	res, err := s.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
	return res, loginA
}

func TestDeviceLogin_Success(t *testing.T) {
	rec := &recorder{}
	device := testDevice()
	s, provider := newSession(t, auth.WithDevice(device), auth.WithTransitionHook(rec.hook))
	dp := newDevicePeer(t, device)

	res, loginA := loginToDevice(t, s, provider)
	assert.Equal(t, auth.StateAwaitingDeviceVerifier, res.State)
	require.NotNil(t, res.Challenge)
	assert.Equal(t, cognito.ChallengeDeviceSRPAuth, res.Challenge.Name)

	gomock.InOrder(
		provider.EXPECT().RespondToAuthChallenge(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, in *cognito.RespondToAuthChallengeInput) (*cognito.AuthOutput, error) {
				assert.Equal(t, cognito.ChallengeDeviceSRPAuth, in.ChallengeName)
				assert.Equal(t, "session-2", in.Session)
				assert.Equal(t, testSub, in.ChallengeResponses[cognito.ParamUsername])
				assert.Equal(t, device.Key, in.ChallengeResponses[cognito.ParamDeviceKey])
				assert.NotEqual(t, loginA, in.ChallengeResponses[cognito.ParamSRPA], "device step uses a fresh ephemeral")
				return dp.challenge(cognito.ChallengeDevicePasswordVerifier, in.ChallengeResponses[cognito.ParamSRPA], "session-3"), nil
			}),
		provider.EXPECT().RespondToAuthChallenge(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, in *cognito.RespondToAuthChallengeInput) (*cognito.AuthOutput, error) {
				assert.Equal(t, cognito.ChallengeDevicePasswordVerifier, in.ChallengeName)
				assert.Equal(t, "session-3", in.Session)
				assert.Equal(t, device.Key, in.ChallengeResponses[cognito.ParamDeviceKey])
				assert.True(t, dp.verify(in.ChallengeResponses), "device signature must verify")
				return tokens("1", 3600), nil
			}),
	)

	final, err := s.DeviceLogin(context.Background(), res.Challenge)
	require.NoError(t, err)
	assert.Equal(t, auth.StateAuthenticated, final.State)
	assert.Equal(t, "id-1", final.Tokens.IDToken)

	assert.Equal(t, []auth.Transition{
		{From: auth.StateInit, To: auth.StateChallengeSent},
		{From: auth.StateChallengeSent, To: auth.StatePasswordVerified},
		{From: auth.StatePasswordVerified, To: auth.StateAwaitingDeviceVerifier},
		{From: auth.StateAwaitingDeviceVerifier, To: auth.StateAuthenticated},
	}, rec.transitions())
}

func TestDeviceLogin_WrongDevicePassword(t *testing.T) {
	device := testDevice()
	s, provider := newSession(t, auth.WithDevice(device))

	registered := device
	registered.Password = "a-different-device-password"
	dp := newDevicePeer(t, registered)

	loginToDevice(t, s, provider)

	provider.EXPECT().RespondToAuthChallenge(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *cognito.RespondToAuthChallengeInput) (*cognito.AuthOutput, error) {
			return dp.challenge(cognito.ChallengeDevicePasswordVerifier, in.ChallengeResponses[cognito.ParamSRPA], "session-3"), nil
		})
	provider.EXPECT().RespondToAuthChallenge(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *cognito.RespondToAuthChallengeInput) (*cognito.AuthOutput, error) {
			if dp.verify(in.ChallengeResponses) {
				return tokens("1", 3600), nil
			}
			return nil, &cognito.ProviderError{Type: cognito.ErrTypeNotAuthorized, Message: "Incorrect username or password.", StatusCode: 400}
		})

	_, err := s.DeviceLogin(context.Background(), nil)
	assert.ErrorIs(t, err, auth.ErrInvalidDeviceAuthentication)
	assert.Equal(t, auth.StateFailed, s.State())
}

func TestDeviceLogin_UnknownDevice(t *testing.T) {
	s, provider := newSession(t, auth.WithDevice(testDevice()))
	loginToDevice(t, s, provider)

	provider.EXPECT().RespondToAuthChallenge(gomock.Any(), gomock.Any()).
		Return(nil, &cognito.ProviderError{Type: cognito.ErrTypeResourceNotFound, Message: "Device does not exist.", StatusCode: 400})

	_, err := s.DeviceLogin(context.Background(), nil)
	assert.ErrorIs(t, err, auth.ErrInvalidDeviceAuthentication)
}

func TestDeviceLogin_NoDeviceConfigured(t *testing.T) {
	s, provider := newSession(t)
	res, _ := loginToDevice(t, s, provider)

	_, err := s.DeviceLogin(context.Background(), res.Challenge)
	assert.ErrorIs(t, err, auth.ErrInvalidDeviceAuthentication)
	assert.Equal(t, auth.StateFailed, s.State())
}

func TestDeviceLogin_NothingPending(t *testing.T) {
	s, _ := newSession(t, auth.WithDevice(testDevice()))

	_, err := s.DeviceLogin(context.Background(), nil)
	assert.ErrorIs(t, err, auth.ErrInvalidDeviceAuthentication)
	assert.Equal(t, auth.StateInit, s.State())
}

func TestDeviceLogin_AfterMFA(t *testing.T) {
	device := testDevice()
	s, provider := newSession(t, auth.WithDevice(device))
	dp := newDevicePeer(t, device)

	res := loginToMFA(t, s, provider)

	provider.EXPECT().RespondToAuthChallenge(gomock.Any(), gomock.Any()).
		Return(&cognito.AuthOutput{
			ChallengeName:       cognito.ChallengeDeviceSRPAuth,
			Session:             "session-3",
			ChallengeParameters: map[string]string{cognito.ParamUsername: testSub},
		}, nil)

	next, err := s.SMS2FA(context.Background(), "123456", res.Challenge)
	require.NoError(t, err)
	assert.Equal(t, auth.StateAwaitingDeviceVerifier, next.State)

	provider.EXPECT().RespondToAuthChallenge(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *cognito.RespondToAuthChallengeInput) (*cognito.AuthOutput, error) {
			return dp.challenge(cognito.ChallengeDevicePasswordVerifier, in.ChallengeResponses[cognito.ParamSRPA], "session-4"), nil
		})
	provider.EXPECT().RespondToAuthChallenge(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *cognito.RespondToAuthChallengeInput) (*cognito.AuthOutput, error) {
			require.True(t, dp.verify(in.ChallengeResponses))
			return tokens("1", 3600), nil
		})

	final, err := s.DeviceLogin(context.Background(), next.Challenge)
	require.NoError(t, err)
	assert.Equal(t, auth.StateAuthenticated, final.State)
}

func authenticated(t *testing.T, opts ...auth.Option) (*auth.Session, *authtest.MockIdentityProvider) {
	t.Helper()
	s, provider := newSession(t, opts...)
	s.Restore(testUsername, auth.TokenBundle{
		IDToken: "id-0", AccessToken: "access-0", RefreshToken: "refresh-0",
		IssuedAt: testNow, TTL: time.Hour,
	})
	return s, provider
}

func TestRegisterDevice(t *testing.T) {
	s, provider := authenticated(t)
	meta := cognito.NewDeviceMetadata{DeviceGroupKey: "-KwBv9eMdQ", DeviceKey: "eu-west-1_new-device"}

	var confirmed *cognito.ConfirmDeviceInput
	gomock.InOrder(
		provider.EXPECT().ConfirmDevice(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, in *cognito.ConfirmDeviceInput) (*cognito.ConfirmDeviceOutput, error) {
				confirmed = in
				return &cognito.ConfirmDeviceOutput{}, nil
			}),
		provider.EXPECT().UpdateDeviceStatus(gomock.Any(), &cognito.UpdateDeviceStatusInput{
			AccessToken:            "access-0",
			DeviceKey:              meta.DeviceKey,
			DeviceRememberedStatus: cognito.DeviceRemembered,
		}).Return(nil),
	)

	identity, err := s.RegisterDevice(context.Background(), meta, "kitchen-pi")
	require.NoError(t, err)

	assert.Equal(t, meta.DeviceGroupKey, identity.GroupKey)
	assert.Equal(t, meta.DeviceKey, identity.Key)
	assert.Equal(t, "kitchen-pi", identity.Name)
	raw, err := base64.StdEncoding.DecodeString(identity.Password)
	require.NoError(t, err)
	assert.Len(t, raw, srp.DevicePasswordBytes)
	assert.Equal(t, identity, s.Device())

	require.NotNil(t, confirmed)
	assert.Equal(t, "access-0", confirmed.AccessToken)
	assert.Equal(t, meta.DeviceKey, confirmed.DeviceKey)
	assert.Equal(t, "kitchen-pi", confirmed.DeviceName)

	// The verifier sent to the provider matches the stored device password.
	v, salt, err := providertest.DecodeDeviceVerifier(confirmed.DeviceSecretVerifierConfig)
	require.NoError(t, err)
	want := srp.ComputeVerifier(srp.DeviceIdentity(identity.GroupKey, identity.Key, identity.Password), salt)
	assert.Zero(t, want.Cmp(v))
}

func TestRegisterDevice_Idempotent(t *testing.T) {
	s, provider := authenticated(t)
	meta := cognito.NewDeviceMetadata{DeviceGroupKey: "-KwBv9eMdQ", DeviceKey: "eu-west-1_new-device"}

	gomock.InOrder(
		provider.EXPECT().ConfirmDevice(gomock.Any(), gomock.Any()).Return(&cognito.ConfirmDeviceOutput{}, nil),
		provider.EXPECT().UpdateDeviceStatus(gomock.Any(), gomock.Any()).Return(nil),
		provider.EXPECT().ConfirmDevice(gomock.Any(), gomock.Any()).
			Return(nil, &cognito.ProviderError{Type: cognito.ErrTypeDeviceAlreadyConfirmed, StatusCode: 400}),
		provider.EXPECT().UpdateDeviceStatus(gomock.Any(), gomock.Any()).Return(nil),
	)

	first, err := s.RegisterDevice(context.Background(), meta, "kitchen-pi")
	require.NoError(t, err)
	second, err := s.RegisterDevice(context.Background(), meta, "kitchen-pi")
	require.NoError(t, err)

	assert.Equal(t, first.Password, second.Password)
	assert.Equal(t, first, s.Device())
}

func TestRegisterDevice_DeterministicWithRandomSource(t *testing.T) {
	entropy := bytes.Repeat([]byte{0x42}, srp.DevicePasswordBytes+srp.DeviceSaltBytes)
	s, provider := authenticated(t, auth.WithRandom(bytes.NewReader(entropy)))
	meta := cognito.NewDeviceMetadata{DeviceGroupKey: "-grp", DeviceKey: "eu-west-1_dev"}

	provider.EXPECT().ConfirmDevice(gomock.Any(), gomock.Any()).Return(&cognito.ConfirmDeviceOutput{}, nil)
	provider.EXPECT().UpdateDeviceStatus(gomock.Any(), gomock.Any()).Return(nil)

	identity, err := s.RegisterDevice(context.Background(), meta, "host")
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x42}, srp.DevicePasswordBytes)), identity.Password)
}

func TestRegisterDevice_Preconditions(t *testing.T) {
	meta := cognito.NewDeviceMetadata{DeviceGroupKey: "-grp", DeviceKey: "eu-west-1_dev"}

	s, _ := newSession(t)
	_, err := s.RegisterDevice(context.Background(), meta, "host")
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)

	s, _ = authenticated(t)
	_, err = s.RegisterDevice(context.Background(), cognito.NewDeviceMetadata{DeviceKey: "k"}, "host")
	assert.ErrorIs(t, err, auth.ErrInvalidDeviceAuthentication)
}

func TestRegisterDevice_ConfirmRejected(t *testing.T) {
	s, provider := authenticated(t)
	meta := cognito.NewDeviceMetadata{DeviceGroupKey: "-grp", DeviceKey: "eu-west-1_dev"}

	provider.EXPECT().ConfirmDevice(gomock.Any(), gomock.Any()).
		Return(nil, &cognito.ProviderError{Type: cognito.ErrTypeNotAuthorized, Message: "Access Token has expired", StatusCode: 400})

	_, err := s.RegisterDevice(context.Background(), meta, "host")
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
	assert.Nil(t, s.Device())
	assert.Equal(t, auth.StateAuthenticated, s.State(), "device registration failures do not end the session")
}

func TestForgetDevice(t *testing.T) {
	device := testDevice()
	s, provider := authenticated(t, auth.WithDevice(device))

	provider.EXPECT().ForgetDevice(gomock.Any(), &cognito.ForgetDeviceInput{AccessToken: "access-0", DeviceKey: device.Key}).Return(nil)

	require.NoError(t, s.ForgetDevice(context.Background()))
	assert.Nil(t, s.Device())

	err := s.ForgetDevice(context.Background())
	assert.ErrorIs(t, err, auth.ErrInvalidDeviceAuthentication)
}

func TestForgetDevice_AlreadyGone(t *testing.T) {
	s, provider := authenticated(t, auth.WithDevice(testDevice()))

	provider.EXPECT().ForgetDevice(gomock.Any(), gomock.Any()).
		Return(&cognito.ProviderError{Type: cognito.ErrTypeResourceNotFound, StatusCode: 400})

	require.NoError(t, s.ForgetDevice(context.Background()))
	assert.Nil(t, s.Device())
}

func TestForgetDevice_TransportError(t *testing.T) {
	s, provider := authenticated(t, auth.WithDevice(testDevice()))

	provider.EXPECT().ForgetDevice(gomock.Any(), gomock.Any()).Return(context.DeadlineExceeded)

	err := s.ForgetDevice(context.Background())
	assert.True(t, auth.IsRetryable(err))
	assert.NotNil(t, s.Device(), "the device is kept when the provider could not be reached")
}
