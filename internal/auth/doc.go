// Package auth implements the SRP6a authentication engine: the login state
// machine (password verifier, SMS MFA, device verifier), device registration,
// and the token lifecycle of one authenticated session.
//
//go:generate go tool mockgen -destination=authtest/mock_provider.go -package=authtest github.com/fzdarsky/hiveauth/internal/auth IdentityProvider
package auth
