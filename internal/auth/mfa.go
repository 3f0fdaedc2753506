package auth

import (
	"context"
	"fmt"

	"github.com/fzdarsky/hiveauth/pkg/cognito"
)

const opSMS2FA = "sms_2fa"

// SMS2FA answers a pending SMS_MFA challenge with the code the user received.
// c may be nil to answer whatever SMS_MFA challenge is pending. A successful
// result may carry NewDevice, the provider's offer to remember this device.
func (s *Session) SMS2FA(ctx context.Context, code string, c *Challenge) (*Result, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	log := s.attemptLogger(opSMS2FA)

	pending, err := s.takeChallenge(opSMS2FA, cognito.ChallengeSMSMFA, KindInvalid2FACode, c)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, s.fail(log, newError(KindInvalid2FACode, opSMS2FA, fmt.Errorf("code is empty")))
	}

	resp := cognito.NewSMSMFAResponse(s.pool.ClientID, pending.Session, pending.Username, code).
		With(cognito.ParamSecretHash, s.secretHash(pending.Username)).
		With(cognito.ParamDeviceKey, s.deviceKey())

	log.Debug("answering challenge", map[string]any{"challenge": string(resp.ChallengeName)})

	reply, err := s.provider.RespondToAuthChallenge(ctx, resp)
	if err != nil {
		return nil, s.fail(log, classify(opSMS2FA, stepMFA, err))
	}

	return s.handleReply(opSMS2FA, log, reply, cognito.ChallengeDeviceSRPAuth)
}
