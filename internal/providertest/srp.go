package providertest

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"

	"github.com/fzdarsky/hiveauth/pkg/cognito"
	"github.com/fzdarsky/hiveauth/pkg/srp"
)

// serverEphemeralBytes is the entropy of the server's private value b.
const serverEphemeralBytes = 32

// Handshake is the server side of one SRP exchange. It only knows the
// verifier v and salt, never the password.
type Handshake struct {
	Salt *big.Int
	A    *big.Int
	B    *big.Int

	verifier *big.Int
	b        *big.Int
}

// NewHandshake validates the client's A and computes B = k*v + g^b mod N.
func NewHandshake(r io.Reader, verifier, salt, A *big.Int) (*Handshake, error) {
	if new(big.Int).Mod(A, srp.N).Sign() == 0 {
		return nil, fmt.Errorf("invalid A: A mod N == 0")
	}

	bBytes := make([]byte, serverEphemeralBytes)
	if _, err := io.ReadFull(r, bBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random b: %w", err)
	}
	b := new(big.Int).SetBytes(bBytes)

	kv := new(big.Int).Mul(srp.K, verifier)
	B := new(big.Int).Exp(srp.G, b, srp.N)
	B.Add(B, kv)
	B.Mod(B, srp.N)
	if B.Sign() == 0 {
		return nil, fmt.Errorf("invalid B: B mod N == 0 (regenerate b)")
	}

	return &Handshake{Salt: salt, A: A, B: B, verifier: verifier, b: b}, nil
}

// Key derives the 16-byte signing key from S = (A * v^u)^b mod N.
func (h *Handshake) Key() ([]byte, error) {
	u, err := srp.ComputeU(h.A, h.B)
	if err != nil {
		return nil, err
	}

	S := new(big.Int).Exp(h.verifier, u, srp.N)
	S.Mul(S, h.A)
	S.Mod(S, srp.N)
	S.Exp(S, h.b, srp.N)
	defer S.SetInt64(0)

	return srp.DeriveKey(srp.PadBytes(S), srp.PadBytes(u))
}

// VerifySignature recomputes PASSWORD_CLAIM_SIGNATURE and compares it in constant time.
func (h *Handshake) VerifySignature(prefix, userID string, secretBlock []byte, timestamp, signature string) (bool, error) {
	key, err := h.Key()
	if err != nil {
		return false, err
	}
	want := cognito.Signature(key, prefix, userID, secretBlock, timestamp)
	return hmac.Equal([]byte(want), []byte(signature)), nil
}

// Clear zeroes the server's private value.
func (h *Handshake) Clear() {
	if h.b != nil {
		h.b.SetInt64(0)
		h.b = nil
	}
}

// ChallengeParameters returns SALT and SRP_B as the provider sends them.
func (h *Handshake) ChallengeParameters() map[string]string {
	return map[string]string{
		cognito.ParamSalt: srp.BigToHex(h.Salt),
		cognito.ParamSRPB: srp.BigToHex(h.B),
	}
}

// NewSalt returns a random verifier salt.
func NewSalt(r io.Reader) (*big.Int, error) {
	buf := make([]byte, srp.DeviceSaltBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return new(big.Int).SetBytes(buf), nil
}

// NewSecretBlock returns an opaque random SECRET_BLOCK.
func NewSecretBlock() ([]byte, string, error) {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return nil, "", fmt.Errorf("failed to generate secret block: %w", err)
	}
	return buf, base64.StdEncoding.EncodeToString(buf), nil
}

// DecodeDeviceVerifier parses a DeviceSecretVerifierConfig as ConfirmDevice receives it.
func DecodeDeviceVerifier(cfg *cognito.DeviceSecretVerifierConfig) (verifier, salt *big.Int, err error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("missing DeviceSecretVerifierConfig")
	}
	v, err := base64.StdEncoding.DecodeString(cfg.PasswordVerifier)
	if err != nil || len(v) == 0 {
		return nil, nil, fmt.Errorf("invalid PasswordVerifier")
	}
	s, err := base64.StdEncoding.DecodeString(cfg.Salt)
	if err != nil || len(s) == 0 {
		return nil, nil, fmt.Errorf("invalid Salt")
	}
	return new(big.Int).SetBytes(v), new(big.Int).SetBytes(s), nil
}
