package auth

import (
	"context"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"

	"github.com/fzdarsky/hiveauth/internal/logging"
	"github.com/fzdarsky/hiveauth/pkg/cognito"
	"github.com/fzdarsky/hiveauth/pkg/srp"
)

const opLogin = "login"

// Login runs USER_SRP_AUTH and answers the PASSWORD_VERIFIER challenge.
//
// The result is either StateAuthenticated with tokens, or a secondary
// challenge (SMS_MFA or DEVICE_SRP_AUTH) that must be continued with SMS2FA
// or DeviceLogin. On failure the session is left in StateFailed with its
// previous tokens untouched.
func (s *Session) Login(ctx context.Context, username, password string) (*Result, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	log := s.attemptLogger(opLogin)

	s.mu.Lock()
	s.pending = nil
	s.username = username
	s.userID = ""
	s.mu.Unlock()
	s.transition(StateInit)

	if username == "" {
		return nil, s.fail(log, newError(KindInvalidUsername, opLogin, fmt.Errorf("username is empty")))
	}
	if password == "" {
		return nil, s.fail(log, newError(KindInvalidPassword, opLogin, fmt.Errorf("password is empty")))
	}

	eph, err := srp.GenerateEphemeralFrom(s.random)
	if err != nil {
		return nil, s.fail(log, classify(opLogin, stepInitiate, err))
	}
	defer eph.Wipe()

	deviceKey := s.deviceKey()
	in := cognito.NewUserSRPAuth(s.pool.ClientID, username, eph.PublicHex()).
		With(cognito.ParamSecretHash, s.secretHash(username)).
		With(cognito.ParamDeviceKey, deviceKey)

	s.transition(StateChallengeSent)
	log.Debug("initiating auth", map[string]any{"flow": string(in.AuthFlow), "device": deviceKey != ""})

	out, err := s.provider.InitiateAuth(ctx, in)
	if err != nil {
		return nil, s.fail(log, classify(opLogin, stepInitiate, err))
	}
	if out.ChallengeName != cognito.ChallengePasswordVerifier {
		return nil, s.fail(log, newError(KindUnsupportedChallenge, opLogin,
			fmt.Errorf("expected %s, provider sent %q", cognito.ChallengePasswordVerifier, out.ChallengeName)))
	}

	challenge, err := cognito.ParseSRPChallenge(out.ChallengeParameters)
	if err != nil {
		return nil, s.fail(log, newError(KindUnsupportedChallenge, opLogin, err))
	}

	s.mu.Lock()
	s.userID = challenge.UserIDForSRP
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, s.fail(log, classify(opLogin, stepPassword, err))
	}

	key, err := eph.PasswordKey(s.poolName, challenge.UserIDForSRP, password, challenge.B, challenge.Salt)
	if err != nil {
		return nil, s.fail(log, classify(opLogin, stepPassword, err))
	}
	timestamp := cognito.FormatTimestamp(s.now())
	signature := cognito.Signature(key, s.poolName, challenge.UserIDForSRP, challenge.SecretBlock, timestamp)
	memguard.WipeBytes(key)

	resp := cognito.NewPasswordVerifierResponse(s.pool.ClientID, out.Session, challenge, timestamp, signature).
		With(cognito.ParamSecretHash, s.secretHash(challenge.Username)).
		With(cognito.ParamDeviceKey, deviceKey)

	log.Debug("answering challenge", map[string]any{"challenge": string(resp.ChallengeName)})

	reply, err := s.provider.RespondToAuthChallenge(ctx, resp)
	if err != nil {
		return nil, s.fail(log, classify(opLogin, stepPassword, err))
	}

	return s.handleReply(opLogin, log, reply, cognito.ChallengeSMSMFA, cognito.ChallengeDeviceSRPAuth)
}

// attemptLogger tags every entry of one attempt with a fresh attempt ID.
func (s *Session) attemptLogger(op string) *logging.Logger {
	return s.logger.With(map[string]any{"op": op, "attempt_id": uuid.NewString()})
}
