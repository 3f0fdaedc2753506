package srp

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DerivedKeySize is the length of the key used to sign challenge responses.
const DerivedKeySize = 16

// derivedKeyInfo is the HKDF info string used by the provider.
const derivedKeyInfo = "Caldera Derived Key"

// DeriveKey runs HKDF-SHA256 with the shared secret as input keying material
// and the scrambling parameter as salt, returning DerivedKeySize bytes.
func DeriveKey(ikm, salt []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, []byte(derivedKeyInfo))
	key := make([]byte, DerivedKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("reading from HKDF: %w", err)
	}
	return key, nil
}
