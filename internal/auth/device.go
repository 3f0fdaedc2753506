package auth

import (
	"context"
	"fmt"
	"maps"
	"os"

	"github.com/awnumar/memguard"

	"github.com/fzdarsky/hiveauth/pkg/cognito"
	"github.com/fzdarsky/hiveauth/pkg/srp"
)

const (
	opDeviceLogin    = "device_login"
	opRegisterDevice = "register_device"
	opForgetDevice   = "forget_device"
)

// DeviceLogin answers a pending DEVICE_SRP_AUTH challenge with a second SRP
// exchange keyed to the configured device. A fresh ephemeral is generated for
// this exchange. c may be nil to answer whatever DEVICE_SRP_AUTH is pending.
func (s *Session) DeviceLogin(ctx context.Context, c *Challenge) (*Result, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	log := s.attemptLogger(opDeviceLogin)

	pending, err := s.takeChallenge(opDeviceLogin, cognito.ChallengeDeviceSRPAuth, KindInvalidDeviceAuthentication, c)
	if err != nil {
		return nil, err
	}

	device := s.Device()
	if device == nil {
		return nil, s.fail(log, newError(KindInvalidDeviceAuthentication, opDeviceLogin, fmt.Errorf("no device configured")))
	}

	eph, err := srp.GenerateEphemeralFrom(s.random)
	if err != nil {
		return nil, s.fail(log, classify(opDeviceLogin, stepDevice, err))
	}
	defer eph.Wipe()

	resp := cognito.NewDeviceSRPResponse(s.pool.ClientID, pending.Session, pending.Username, eph.PublicHex(), device.Key).
		With(cognito.ParamSecretHash, s.secretHash(pending.Username))

	log.Debug("answering challenge", map[string]any{"challenge": string(resp.ChallengeName)})

	out, err := s.provider.RespondToAuthChallenge(ctx, resp)
	if err != nil {
		return nil, s.fail(log, classify(opDeviceLogin, stepDevice, err))
	}
	if out.ChallengeName != cognito.ChallengeDevicePasswordVerifier {
		return nil, s.fail(log, newError(KindUnsupportedChallenge, opDeviceLogin,
			fmt.Errorf("expected %s, provider sent %q", cognito.ChallengeDevicePasswordVerifier, out.ChallengeName)))
	}

	params := out.ChallengeParameters
	if params[cognito.ParamUsername] == "" && params[cognito.ParamUserIDForSRP] == "" {
		params = maps.Clone(params)
		if params == nil {
			params = map[string]string{}
		}
		params[cognito.ParamUsername] = pending.Username
	}
	challenge, err := cognito.ParseSRPChallenge(params)
	if err != nil {
		return nil, s.fail(log, newError(KindUnsupportedChallenge, opDeviceLogin, err))
	}

	if err := ctx.Err(); err != nil {
		return nil, s.fail(log, classify(opDeviceLogin, stepDevice, err))
	}

	key, err := eph.DeviceKey(device.GroupKey, device.Key, device.Password, challenge.B, challenge.Salt)
	if err != nil {
		return nil, s.fail(log, classify(opDeviceLogin, stepDevice, err))
	}
	timestamp := cognito.FormatTimestamp(s.now())
	signature := cognito.Signature(key, device.GroupKey, device.Key, challenge.SecretBlock, timestamp)
	memguard.WipeBytes(key)

	verify := cognito.NewDevicePasswordVerifierResponse(s.pool.ClientID, out.Session, challenge, timestamp, signature, device.Key).
		With(cognito.ParamSecretHash, s.secretHash(challenge.Username))

	log.Debug("answering challenge", map[string]any{"challenge": string(verify.ChallengeName)})

	reply, err := s.provider.RespondToAuthChallenge(ctx, verify)
	if err != nil {
		return nil, s.fail(log, classify(opDeviceLogin, stepDevice, err))
	}

	return s.handleReply(opDeviceLogin, log, reply)
}

// RegisterDevice confirms the device the provider offered in NewDeviceMetadata
// and marks it remembered. The device password is reused when the same device
// is already registered on this session, so repeating the call is safe.
// An empty deviceName defaults to the host name.
func (s *Session) RegisterDevice(ctx context.Context, meta cognito.NewDeviceMetadata, deviceName string) (*DeviceIdentity, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	log := s.attemptLogger(opRegisterDevice)

	if meta.DeviceKey == "" || meta.DeviceGroupKey == "" {
		return nil, newError(KindInvalidDeviceAuthentication, opRegisterDevice, fmt.Errorf("device metadata is incomplete"))
	}

	accessToken := s.accessToken()
	if accessToken == "" {
		return nil, newError(KindNotAuthenticated, opRegisterDevice, fmt.Errorf("no access token"))
	}

	if deviceName == "" {
		deviceName = defaultDeviceName()
	}

	identity := DeviceIdentity{GroupKey: meta.DeviceGroupKey, Key: meta.DeviceKey, Name: deviceName}
	if existing := s.Device(); existing != nil && existing.Key == meta.DeviceKey && existing.GroupKey == meta.DeviceGroupKey {
		identity.Password = existing.Password
		log.Debug("device already known, reusing its password", map[string]any{"device_key": meta.DeviceKey})
	} else {
		password, err := srp.GenerateDevicePasswordFrom(s.random)
		if err != nil {
			return nil, newError(KindUnknown, opRegisterDevice, err)
		}
		identity.Password = password
	}

	verifier, err := srp.NewDeviceVerifierFrom(s.random, identity.GroupKey, identity.Key, identity.Password)
	if err != nil {
		return nil, newError(KindUnknown, opRegisterDevice, err)
	}

	_, err = s.provider.ConfirmDevice(ctx, &cognito.ConfirmDeviceInput{
		AccessToken: accessToken,
		DeviceKey:   identity.Key,
		DeviceName:  identity.Name,
		DeviceSecretVerifierConfig: &cognito.DeviceSecretVerifierConfig{
			PasswordVerifier: verifier.PasswordVerifier,
			Salt:             verifier.Salt,
		},
	})
	if err != nil {
		if !cognito.IsType(err, cognito.ErrTypeDeviceAlreadyConfirmed) {
			return nil, classify(opRegisterDevice, stepRegister, err)
		}
		log.Info("device already confirmed", map[string]any{"device_key": identity.Key})
	}

	err = s.provider.UpdateDeviceStatus(ctx, &cognito.UpdateDeviceStatusInput{
		AccessToken:            accessToken,
		DeviceKey:              identity.Key,
		DeviceRememberedStatus: cognito.DeviceRemembered,
	})
	if err != nil {
		return nil, classify(opRegisterDevice, stepRegister, err)
	}

	s.SetDevice(identity)
	log.Info("device registered", map[string]any{"device_key": identity.Key, "device_name": identity.Name})

	return &identity, nil
}

// ForgetDevice removes the configured device from the provider and the session.
// A device the provider no longer knows is removed locally all the same.
func (s *Session) ForgetDevice(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	log := s.attemptLogger(opForgetDevice)

	device := s.Device()
	if device == nil {
		return newError(KindInvalidDeviceAuthentication, opForgetDevice, fmt.Errorf("no device configured"))
	}

	accessToken := s.accessToken()
	if accessToken == "" {
		return newError(KindNotAuthenticated, opForgetDevice, fmt.Errorf("no access token"))
	}

	err := s.provider.ForgetDevice(ctx, &cognito.ForgetDeviceInput{AccessToken: accessToken, DeviceKey: device.Key})
	if err != nil && !cognito.IsType(err, cognito.ErrTypeResourceNotFound) {
		return classify(opForgetDevice, stepRegister, err)
	}

	s.mu.Lock()
	s.device = nil
	s.mu.Unlock()

	log.Info("device forgotten", map[string]any{"device_key": device.Key})
	return nil
}

func defaultDeviceName() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "hiveauth"
	}
	return name
}
