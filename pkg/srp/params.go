// Package srp provides the client-side SRP-6a math used by Cognito-compatible
// identity providers: the 3072-bit RFC 5054 group, ephemeral keypairs, the
// password and device authentication keys, and device verifiers.
package srp

import (
	"math/big"
)

// RFC 5054 3072-bit SRP Group Parameters
// These MUST match the identity provider exactly.
var (
	// N is the 3072-bit safe prime from RFC 5054 Appendix A
	N = initN()

	// G is the generator (always 2 for this group)
	G = big.NewInt(2)

	// K is the multiplier: k = H(pad(N) | pad(g))
	K = computeK(N, G)
)

const nHex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
	"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
	"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
	"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D" +
	"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F" +
	"83655D23DCA3AD961C62F356208552BB9ED529077096966D" +
	"670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
	"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9" +
	"DE2BCBF6955817183995497CEA956AE515D2261898FA0510" +
	"15728E5A8AAAC42DAD33170D04507A33A85521ABDF1CBA64" +
	"ECFB850458DBEF0A8AEA71575D060C7DB3970F85A6E1E4C7" +
	"ABF5AE8CDB0933D71E8C94E04A25619DCEE3D2261AD2EE6B" +
	"F12FFA06D98A0864D87602733EC86A64521F2B18177B200C" +
	"BBE117577A615D6C770988C0BAD946E208E24FA074E5AB31" +
	"43DB5BFCE0FD108E4B82D120A93AD2CAFFFFFFFFFFFFFFFF"

// initN initializes the N parameter (must match the provider exactly)
func initN() *big.Int {
	n, ok := new(big.Int).SetString(nHex, 16)
	if !ok {
		panic("srp: invalid group prime")
	}
	return n
}

// computeK computes the SRP-6a multiplier k = H(pad(N) | pad(g)).
// Unlike RFC 5054, g is not left-padded to the length of N: both values use
// the sign-safe hex padding, which is what the provider hashes.
//
//nolint:gocritic // N is capitalized per RFC 5054 SRP-6a specification
func computeK(N, g *big.Int) *big.Int {
	return new(big.Int).SetBytes(hash(PadBytes(N), PadBytes(g)))
}
