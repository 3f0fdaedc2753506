package srp

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"

	"github.com/awnumar/memguard"
)

const (
	// DevicePasswordBytes is the amount of randomness in a device password.
	DevicePasswordBytes = 40

	// DeviceSaltBytes is the size of the salt generated for a device verifier.
	DeviceSaltBytes = 16
)

// DeviceVerifier is the DeviceSecretVerifierConfig sent to ConfirmDevice.
// Both values are base64 encodings of the padded big-endian bytes.
type DeviceVerifier struct {
	PasswordVerifier string
	Salt             string
}

// GenerateDevicePassword returns a base64-encoded random device password.
func GenerateDevicePassword() (string, error) {
	return GenerateDevicePasswordFrom(rand.Reader)
}

// GenerateDevicePasswordFrom returns a base64-encoded device password read from r.
func GenerateDevicePasswordFrom(r io.Reader) (string, error) {
	buf := make([]byte, DevicePasswordBytes)
	defer memguard.WipeBytes(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("failed to generate device password: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// NewDeviceVerifier computes v = g^x mod N for a device with a fresh random salt.
func NewDeviceVerifier(groupKey, deviceKey, devicePassword string) (*DeviceVerifier, error) {
	return NewDeviceVerifierFrom(rand.Reader, groupKey, deviceKey, devicePassword)
}

// NewDeviceVerifierFrom is NewDeviceVerifier with the salt read from r.
func NewDeviceVerifierFrom(r io.Reader, groupKey, deviceKey, devicePassword string) (*DeviceVerifier, error) {
	saltBytes := make([]byte, DeviceSaltBytes)
	if _, err := io.ReadFull(r, saltBytes); err != nil {
		return nil, fmt.Errorf("failed to generate device salt: %w", err)
	}
	salt := new(big.Int).SetBytes(saltBytes)

	v := ComputeVerifier(DeviceIdentity(groupKey, deviceKey, devicePassword), salt)

	return &DeviceVerifier{
		PasswordVerifier: base64.StdEncoding.EncodeToString(PadBytes(v)),
		Salt:             base64.StdEncoding.EncodeToString(PadBytes(salt)),
	}, nil
}

// ComputeVerifier returns v = g^x mod N for the given identity string and salt.
func ComputeVerifier(identity string, salt *big.Int) *big.Int {
	x := privateKey(identity, PadBytes(salt))
	defer x.SetInt64(0)
	return new(big.Int).Exp(G, x, N)
}
