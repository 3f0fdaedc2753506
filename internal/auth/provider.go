package auth

import (
	"context"

	"github.com/fzdarsky/hiveauth/pkg/cognito"
)

// IdentityProvider is the set of identity-provider operations the engine needs.
// Implementations return *cognito.ProviderError for provider-side rejections;
// any other error is treated as a transport failure.
type IdentityProvider interface {
	InitiateAuth(ctx context.Context, in *cognito.InitiateAuthInput) (*cognito.AuthOutput, error)
	RespondToAuthChallenge(ctx context.Context, in *cognito.RespondToAuthChallengeInput) (*cognito.AuthOutput, error)
	ConfirmDevice(ctx context.Context, in *cognito.ConfirmDeviceInput) (*cognito.ConfirmDeviceOutput, error)
	UpdateDeviceStatus(ctx context.Context, in *cognito.UpdateDeviceStatusInput) error
	ForgetDevice(ctx context.Context, in *cognito.ForgetDeviceInput) error
}
