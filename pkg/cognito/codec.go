package cognito

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/fzdarsky/hiveauth/pkg/srp"
)

// TimestampLayout is the TIMESTAMP format the provider verifies signatures
// against. The day of month carries no leading zero.
const TimestampLayout = "Mon Jan 2 15:04:05 UTC 2006"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// SecretHash computes SECRET_HASH = base64(HMAC-SHA256(clientSecret, username | clientID)).
func SecretHash(clientSecret, username, clientID string) string {
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// PoolName returns the part of a user pool ID after the region prefix
// ("eu-west-1_ABCDEFGHI" -> "ABCDEFGHI"). It is embedded in the password key.
func PoolName(poolID string) (string, error) {
	_, name, err := splitPoolID(poolID)
	return name, err
}

// Region returns the region prefix of a user pool ID.
func Region(poolID string) (string, error) {
	region, _, err := splitPoolID(poolID)
	return region, err
}

func splitPoolID(poolID string) (string, string, error) {
	region, name, ok := strings.Cut(poolID, "_")
	if !ok || region == "" || name == "" {
		return "", "", fmt.Errorf("invalid user pool ID %q: must be in format '<region>_<pool name>'", poolID)
	}
	return region, name, nil
}

// SRPChallenge is the decoded form of an SRP challenge's parameters
// (PASSWORD_VERIFIER or DEVICE_PASSWORD_VERIFIER).
type SRPChallenge struct {
	Username       string
	UserIDForSRP   string
	Salt           []byte // padded, as hashed into x
	B              *big.Int
	SecretBlock    []byte
	SecretBlockB64 string
}

// ParseSRPChallenge decodes SALT, SRP_B, SECRET_BLOCK and the user identifiers.
// USER_ID_FOR_SRP falls back to USERNAME, which is all the device challenge carries.
func ParseSRPChallenge(params map[string]string) (*SRPChallenge, error) {
	c := &SRPChallenge{
		Username:       params[ParamUsername],
		UserIDForSRP:   params[ParamUserIDForSRP],
		SecretBlockB64: params[ParamSecretBlock],
	}
	if c.UserIDForSRP == "" {
		c.UserIDForSRP = c.Username
	}
	if c.Username == "" {
		c.Username = c.UserIDForSRP
	}
	if c.UserIDForSRP == "" {
		return nil, fmt.Errorf("challenge parameters missing %s", ParamUserIDForSRP)
	}

	var err error
	if c.Salt, err = srp.DecodeSalt(params[ParamSalt]); err != nil {
		return nil, fmt.Errorf("challenge parameter %s: %w", ParamSalt, err)
	}
	if c.B, err = srp.HexToBig(params[ParamSRPB]); err != nil {
		return nil, fmt.Errorf("challenge parameter %s: %w", ParamSRPB, err)
	}
	if c.SecretBlockB64 == "" {
		return nil, fmt.Errorf("challenge parameters missing %s", ParamSecretBlock)
	}
	if c.SecretBlock, err = base64.StdEncoding.DecodeString(c.SecretBlockB64); err != nil {
		return nil, fmt.Errorf("challenge parameter %s: invalid encoding: %w", ParamSecretBlock, err)
	}

	return c, nil
}

// Signature computes PASSWORD_CLAIM_SIGNATURE:
// base64(HMAC-SHA256(key, prefix | userID | secretBlock | timestamp)).
// For password logins prefix is the pool name and userID the USER_ID_FOR_SRP;
// for device logins they are the device group key and device key.
func Signature(key []byte, prefix, userID string, secretBlock []byte, timestamp string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(prefix))
	mac.Write([]byte(userID))
	mac.Write(secretBlock)
	mac.Write([]byte(timestamp))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// NewUserSRPAuth builds the InitiateAuth request opening a USER_SRP_AUTH flow.
func NewUserSRPAuth(clientID, username, srpA string) *InitiateAuthInput {
	return &InitiateAuthInput{
		AuthFlow: AuthFlowUserSRP,
		AuthParameters: map[string]string{
			ParamUsername: username,
			ParamSRPA:     srpA,
		},
		ClientID: clientID,
	}
}

// NewRefreshAuth builds the InitiateAuth request for REFRESH_TOKEN_AUTH.
func NewRefreshAuth(clientID, refreshToken string) *InitiateAuthInput {
	return &InitiateAuthInput{
		AuthFlow: AuthFlowRefreshToken,
		AuthParameters: map[string]string{
			ParamRefreshToken: refreshToken,
		},
		ClientID: clientID,
	}
}

// With sets an optional auth parameter; empty values are skipped.
func (in *InitiateAuthInput) With(key, value string) *InitiateAuthInput {
	if value != "" {
		in.AuthParameters[key] = value
	}
	return in
}

// NewPasswordVerifierResponse answers PASSWORD_VERIFIER.
func NewPasswordVerifierResponse(clientID, session string, c *SRPChallenge, timestamp, signature string) *RespondToAuthChallengeInput {
	return &RespondToAuthChallengeInput{
		ChallengeName: ChallengePasswordVerifier,
		ChallengeResponses: map[string]string{
			ParamTimestamp:                timestamp,
			ParamUsername:                 c.UserIDForSRP,
			ParamPasswordClaimSecretBlock: c.SecretBlockB64,
			ParamPasswordClaimSignature:   signature,
		},
		ClientID: clientID,
		Session:  session,
	}
}

// NewSMSMFAResponse answers SMS_MFA.
func NewSMSMFAResponse(clientID, session, username, code string) *RespondToAuthChallengeInput {
	return &RespondToAuthChallengeInput{
		ChallengeName: ChallengeSMSMFA,
		ChallengeResponses: map[string]string{
			ParamSMSMFACode: code,
			ParamUsername:   username,
		},
		ClientID: clientID,
		Session:  session,
	}
}

// NewDeviceSRPResponse answers DEVICE_SRP_AUTH with a fresh SRP_A.
func NewDeviceSRPResponse(clientID, session, username, srpA, deviceKey string) *RespondToAuthChallengeInput {
	return &RespondToAuthChallengeInput{
		ChallengeName: ChallengeDeviceSRPAuth,
		ChallengeResponses: map[string]string{
			ParamUsername:  username,
			ParamSRPA:      srpA,
			ParamDeviceKey: deviceKey,
		},
		ClientID: clientID,
		Session:  session,
	}
}

// NewDevicePasswordVerifierResponse answers DEVICE_PASSWORD_VERIFIER.
func NewDevicePasswordVerifierResponse(clientID, session string, c *SRPChallenge, timestamp, signature, deviceKey string) *RespondToAuthChallengeInput {
	return &RespondToAuthChallengeInput{
		ChallengeName: ChallengeDevicePasswordVerifier,
		ChallengeResponses: map[string]string{
			ParamUsername:                 c.Username,
			ParamPasswordClaimSecretBlock: c.SecretBlockB64,
			ParamTimestamp:                timestamp,
			ParamPasswordClaimSignature:   signature,
			ParamDeviceKey:                deviceKey,
		},
		ClientID: clientID,
		Session:  session,
	}
}

// With sets an optional challenge response; empty values are skipped.
func (in *RespondToAuthChallengeInput) With(key, value string) *RespondToAuthChallengeInput {
	if value != "" {
		in.ChallengeResponses[key] = value
	}
	return in
}
