// Package cognito defines the wire vocabulary of a Cognito-compatible identity
// provider: request and response types, challenge parameter names, provider
// errors, and the codec that builds and signs challenge responses.
package cognito

// Protocol constants of the JSON 1.1 wire format.
const (
	// TargetPrefix is prepended to the operation name in the X-Amz-Target header.
	TargetPrefix = "AWSCognitoIdentityProviderService."
	HeaderTarget = "X-Amz-Target"
	// HeaderErrorType carries the error type when the body does not.
	HeaderErrorType = "X-Amzn-ErrorType"
	ContentType     = "application/x-amz-json-1.1"
)

// Operation names used by the authentication engine.
const (
	OpInitiateAuth           = "InitiateAuth"
	OpRespondToAuthChallenge = "RespondToAuthChallenge"
	OpConfirmDevice          = "ConfirmDevice"
	OpUpdateDeviceStatus     = "UpdateDeviceStatus"
	OpForgetDevice           = "ForgetDevice"
)

// AuthFlow selects the authentication flow for InitiateAuth.
type AuthFlow string

// Supported authentication flows.
const (
	AuthFlowUserSRP      AuthFlow = "USER_SRP_AUTH"
	AuthFlowRefreshToken AuthFlow = "REFRESH_TOKEN_AUTH"
)

// ChallengeName identifies a provider challenge.
type ChallengeName string

// Challenge names. Only the first four are answered by the engine; the rest
// are listed so they can be reported by name when rejected.
const (
	ChallengePasswordVerifier       ChallengeName = "PASSWORD_VERIFIER"
	ChallengeSMSMFA                 ChallengeName = "SMS_MFA"
	ChallengeDeviceSRPAuth          ChallengeName = "DEVICE_SRP_AUTH"
	ChallengeDevicePasswordVerifier ChallengeName = "DEVICE_PASSWORD_VERIFIER"
	ChallengeSoftwareTokenMFA       ChallengeName = "SOFTWARE_TOKEN_MFA"
	ChallengeNewPasswordRequired    ChallengeName = "NEW_PASSWORD_REQUIRED"
	ChallengeSelectMFAType          ChallengeName = "SELECT_MFA_TYPE"
)

// Parameter keys for AuthParameters, ChallengeParameters and ChallengeResponses.
const (
	ParamUsername                   = "USERNAME"
	ParamSRPA                       = "SRP_A"
	ParamSRPB                       = "SRP_B"
	ParamSalt                       = "SALT"
	ParamSecretBlock                = "SECRET_BLOCK"
	ParamSecretHash                 = "SECRET_HASH"
	ParamUserIDForSRP               = "USER_ID_FOR_SRP"
	ParamDeviceKey                  = "DEVICE_KEY"
	ParamRefreshToken               = "REFRESH_TOKEN"
	ParamTimestamp                  = "TIMESTAMP"
	ParamPasswordClaimSecretBlock   = "PASSWORD_CLAIM_SECRET_BLOCK"
	ParamPasswordClaimSignature     = "PASSWORD_CLAIM_SIGNATURE"
	ParamSMSMFACode                 = "SMS_MFA_CODE"
	ParamCodeDeliveryDestination    = "CODE_DELIVERY_DESTINATION"
	ParamCodeDeliveryDeliveryMedium = "CODE_DELIVERY_DELIVERY_MEDIUM"
)

// DeviceRememberedStatus is the remembered state of a confirmed device.
type DeviceRememberedStatus string

// Device remembered states.
const (
	DeviceRemembered    DeviceRememberedStatus = "remembered"
	DeviceNotRemembered DeviceRememberedStatus = "not_remembered"
)

// InitiateAuthInput is the body of an InitiateAuth call.
type InitiateAuthInput struct {
	AuthFlow       AuthFlow          `json:"AuthFlow"`
	AuthParameters map[string]string `json:"AuthParameters"`
	ClientID       string            `json:"ClientId"`
}

// RespondToAuthChallengeInput is the body of a RespondToAuthChallenge call.
type RespondToAuthChallengeInput struct {
	ChallengeName      ChallengeName     `json:"ChallengeName"`
	ChallengeResponses map[string]string `json:"ChallengeResponses"`
	ClientID           string            `json:"ClientId"`
	Session            string            `json:"Session,omitempty"`
}

// AuthOutput is returned by both InitiateAuth and RespondToAuthChallenge.
// Exactly one of ChallengeName or AuthenticationResult is set on success.
type AuthOutput struct {
	ChallengeName        ChallengeName         `json:"ChallengeName,omitempty"`
	ChallengeParameters  map[string]string     `json:"ChallengeParameters,omitempty"`
	Session              string                `json:"Session,omitempty"`
	AuthenticationResult *AuthenticationResult `json:"AuthenticationResult,omitempty"`
}

// AuthenticationResult carries the issued tokens.
type AuthenticationResult struct {
	AccessToken       string             `json:"AccessToken"`
	ExpiresIn         int                `json:"ExpiresIn"`
	IDToken           string             `json:"IdToken"`
	RefreshToken      string             `json:"RefreshToken,omitempty"`
	TokenType         string             `json:"TokenType,omitempty"`
	NewDeviceMetadata *NewDeviceMetadata `json:"NewDeviceMetadata,omitempty"`
}

// NewDeviceMetadata is offered by the provider when a device may be remembered.
type NewDeviceMetadata struct {
	DeviceGroupKey string `json:"DeviceGroupKey"`
	DeviceKey      string `json:"DeviceKey"`
}

// DeviceSecretVerifierConfig carries the SRP verifier for a device.
type DeviceSecretVerifierConfig struct {
	PasswordVerifier string `json:"PasswordVerifier"`
	Salt             string `json:"Salt"`
}

// ConfirmDeviceInput is the body of a ConfirmDevice call.
type ConfirmDeviceInput struct {
	AccessToken                string                      `json:"AccessToken"`
	DeviceKey                  string                      `json:"DeviceKey"`
	DeviceName                 string                      `json:"DeviceName,omitempty"`
	DeviceSecretVerifierConfig *DeviceSecretVerifierConfig `json:"DeviceSecretVerifierConfig"`
}

// ConfirmDeviceOutput is the response to ConfirmDevice.
type ConfirmDeviceOutput struct {
	UserConfirmationNecessary bool `json:"UserConfirmationNecessary"`
}

// UpdateDeviceStatusInput is the body of an UpdateDeviceStatus call.
type UpdateDeviceStatusInput struct {
	AccessToken            string                 `json:"AccessToken"`
	DeviceKey              string                 `json:"DeviceKey"`
	DeviceRememberedStatus DeviceRememberedStatus `json:"DeviceRememberedStatus"`
}

// ForgetDeviceInput is the body of a ForgetDevice call.
type ForgetDeviceInput struct {
	AccessToken string `json:"AccessToken"`
	DeviceKey   string `json:"DeviceKey"`
}
