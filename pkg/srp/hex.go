package srp

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// PadBytes returns the big-endian bytes of v with the provider's sign-safe
// padding applied: a leading 0x00 is added when the top bit of the first byte
// is set, and zero encodes as a single 0x00 byte.
//
// This is the byte form of PadHex. Hashing the unpadded form disagrees with
// the provider for roughly half of all random values.
func PadBytes(v *big.Int) []byte {
	b := v.Bytes()
	if len(b) == 0 {
		return []byte{0}
	}
	if b[0]&0x80 != 0 {
		return append([]byte{0}, b...)
	}
	return b
}

// PadHex converts v to lowercase hex and pads it: odd-length hex gets a single
// leading "0", even-length hex whose first digit is 8-f gets "00".
func PadHex(v *big.Int) string {
	return hex.EncodeToString(PadBytes(v))
}

// PadHexString applies the PadHex rule to an already hex-encoded value. The
// digits are kept as given, lowercased, so leading zero bytes survive.
func PadHexString(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty hex value")
	}
	s = strings.ToLower(s)
	if strings.Trim(s, "0123456789abcdef") != "" {
		return "", fmt.Errorf("invalid hex value")
	}
	if len(s)%2 == 1 {
		return "0" + s, nil
	}
	if strings.IndexByte("89abcdef", s[0]) >= 0 {
		return "00" + s, nil
	}
	return s, nil
}

// DecodeSalt returns the padded bytes of a salt received as hex. These are
// the bytes hashed into x.
func DecodeSalt(s string) ([]byte, error) {
	padded, err := PadHexString(s)
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(padded)
}

// HexToBig parses a hex string (either case, no prefix) into a big integer.
func HexToBig(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty hex value")
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex value")
	}
	return v, nil
}

// BigToHex returns the unpadded lowercase hex form of v, as sent in SRP_A.
func BigToHex(v *big.Int) string {
	return v.Text(16)
}

// HashHex returns the lowercase hex SHA-256 digest of data.
func HashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// hash computes SHA-256 over the concatenation of parts.
func hash(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}
