package srp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/awnumar/memguard"
)

// ErrZeroSafetyCheck is returned when A, B or u reduce to zero modulo N.
// It means either the random source is broken or the peer is misbehaving;
// the attempt must be abandoned, never retried with the same values.
var ErrZeroSafetyCheck = errors.New("srp safety check failed")

// EphemeralBytes is the number of random bytes drawn for the private value a.
const EphemeralBytes = 128

// Ephemeral is the client's per-attempt keypair (a, A).
// A value must serve exactly one authentication attempt and be wiped after.
type Ephemeral struct {
	a *big.Int // Client ephemeral private value
	A *big.Int // Client ephemeral public value
}

// GenerateEphemeral draws a fresh ephemeral keypair from crypto/rand.
func GenerateEphemeral() (*Ephemeral, error) {
	return GenerateEphemeralFrom(rand.Reader)
}

// GenerateEphemeralFrom draws a fresh ephemeral keypair from r.
// a = random mod N, A = g^a mod N
func GenerateEphemeralFrom(r io.Reader) (*Ephemeral, error) {
	buf := make([]byte, EphemeralBytes)
	defer memguard.WipeBytes(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("failed to generate random a: %w", err)
	}

	a := new(big.Int).SetBytes(buf)
	a.Mod(a, N)
	return NewEphemeral(a)
}

// NewEphemeral builds an ephemeral keypair from a known private value.
// Intended for fixed test vectors; production code uses GenerateEphemeral.
func NewEphemeral(a *big.Int) (*Ephemeral, error) {
	A := new(big.Int).Exp(G, a, N)

	// Validate A (must not be 0 mod N)
	if new(big.Int).Mod(A, N).Sign() == 0 {
		return nil, fmt.Errorf("invalid A: A mod N == 0: %w", ErrZeroSafetyCheck)
	}

	return &Ephemeral{a: new(big.Int).Set(a), A: A}, nil
}

// Public returns a copy of A.
func (e *Ephemeral) Public() *big.Int {
	return new(big.Int).Set(e.A)
}

// PublicHex returns A in the unpadded hex form the provider expects in SRP_A.
func (e *Ephemeral) PublicHex() string {
	return BigToHex(e.A)
}

// Wipe clears the private value. The ephemeral cannot derive keys afterwards.
func (e *Ephemeral) Wipe() {
	if e.a != nil {
		e.a.SetInt64(0)
		e.a = nil
	}
}

// ComputeU computes the scrambling parameter u = H(pad(A) | pad(B)).
//
//nolint:gocritic // A and B are capitalized per RFC 5054 SRP-6a specification
func ComputeU(A, B *big.Int) (*big.Int, error) {
	u := new(big.Int).SetBytes(hash(PadBytes(A), PadBytes(B)))
	if u.Sign() == 0 {
		return nil, fmt.Errorf("invalid u: u == 0: %w", ErrZeroSafetyCheck)
	}
	return u, nil
}

// PasswordKey derives the 16-byte key that signs a PASSWORD_VERIFIER response.
// poolName is the part of the user pool ID after the underscore and username
// is the provider's USER_ID_FOR_SRP. salt is the padded form from DecodeSalt.
//
//nolint:gocritic // B is capitalized per RFC 5054 SRP-6a specification
func (e *Ephemeral) PasswordKey(poolName, username, password string, B *big.Int, salt []byte) ([]byte, error) {
	return e.authenticationKey(PasswordIdentity(poolName, username, password), B, salt)
}

// DeviceKey derives the 16-byte key that signs a DEVICE_PASSWORD_VERIFIER response.
//
//nolint:gocritic // B is capitalized per RFC 5054 SRP-6a specification
func (e *Ephemeral) DeviceKey(groupKey, deviceKey, devicePassword string, B *big.Int, salt []byte) ([]byte, error) {
	return e.authenticationKey(DeviceIdentity(groupKey, deviceKey, devicePassword), B, salt)
}

// PasswordIdentity is the string hashed into x for user password logins.
func PasswordIdentity(poolName, username, password string) string {
	return poolName + username + ":" + password
}

// DeviceIdentity is the string hashed into x for remembered-device logins.
func DeviceIdentity(groupKey, deviceKey, devicePassword string) string {
	return groupKey + deviceKey + ":" + devicePassword
}

// authenticationKey computes S = (B - k*g^x)^(a + u*x) mod N and runs it
// through HKDF with u as salt.
//
//nolint:gocritic // B is capitalized per RFC 5054 SRP-6a specification
func (e *Ephemeral) authenticationKey(identity string, B *big.Int, salt []byte) ([]byte, error) {
	if e.a == nil {
		return nil, fmt.Errorf("ephemeral has been wiped")
	}

	// Validate B (must not be 0 mod N)
	if new(big.Int).Mod(B, N).Sign() == 0 {
		return nil, fmt.Errorf("invalid B: B mod N == 0: %w", ErrZeroSafetyCheck)
	}

	u, err := ComputeU(e.A, B)
	if err != nil {
		return nil, err
	}

	x := privateKey(identity, salt)

	// B - k*g^x mod N
	gx := new(big.Int).Exp(G, x, N)
	base := new(big.Int).Mul(K, gx)
	base.Sub(B, base)
	base.Mod(base, N)

	// a + u*x, deliberately not reduced mod N-1
	exponent := new(big.Int).Mul(u, x)
	exponent.Add(exponent, e.a)

	S := new(big.Int).Exp(base, exponent, N)
	key, err := DeriveKey(PadBytes(S), PadBytes(u))

	x.SetInt64(0)
	exponent.SetInt64(0)
	S.SetInt64(0)

	return key, err
}

// privateKey derives x = H(paddedSalt | H(identity)).
func privateKey(identity string, paddedSalt []byte) *big.Int {
	inner := hash([]byte(identity))
	return new(big.Int).SetBytes(hash(paddedSalt, inner))
}
