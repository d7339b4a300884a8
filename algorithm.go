// algorithm.go

package talestoken

import (
	"crypto"
	"crypto/hmac"
	"fmt"

	_ "crypto/sha256" // register SHA-256/384/512 for crypto.Hash.New
	_ "crypto/sha512"
)

// SigningAlgorithm identifies the MAC family used to authenticate the
// header and claims segments of a token. The zero value means "use the
// manager default" (HS256); AlgorithmNone is the explicit unsigned variant.
//
// The algorithm table is the only place that knows hash functions and key
// size floors, so adding an algorithm does not touch the manager.
type SigningAlgorithm struct {
	name      string
	hash      crypto.Hash
	minKeyLen int
}

var (
	// AlgorithmNone produces an empty signature segment. It is only applied
	// when explicitly configured; the default path always signs.
	AlgorithmNone = SigningAlgorithm{name: "none"}

	AlgorithmHS256 = SigningAlgorithm{name: "HS256", hash: crypto.SHA256, minKeyLen: 32}
	AlgorithmHS384 = SigningAlgorithm{name: "HS384", hash: crypto.SHA384, minKeyLen: 48}
	AlgorithmHS512 = SigningAlgorithm{name: "HS512", hash: crypto.SHA512, minKeyLen: 64}
)

// LookupAlgorithm resolves a wire identifier (case-sensitive, e.g. "HS256",
// "none") to its algorithm. Unknown identifiers return ErrUnsupportedAlgorithm.
func LookupAlgorithm(name string) (SigningAlgorithm, error) {
	switch name {
	case "none":
		return AlgorithmNone, nil
	case "HS256":
		return AlgorithmHS256, nil
	case "HS384":
		return AlgorithmHS384, nil
	case "HS512":
		return AlgorithmHS512, nil
	default:
		return SigningAlgorithm{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
}

// Name returns the identifier placed into the "alg" header.
func (a SigningAlgorithm) Name() string {
	return a.name
}

// None reports whether the algorithm is the unsigned variant.
func (a SigningAlgorithm) None() bool {
	return a.name == "none"
}

// isZero reports whether the algorithm was left unset, which generation
// treats as the HS256 default.
func (a SigningAlgorithm) isZero() bool {
	return a.name == ""
}

// MinKeyLength returns the smallest secret, in bytes, the algorithm accepts
// without the weak-key opt-out.
func (a SigningAlgorithm) MinKeyLength() int {
	return a.minKeyLen
}

// checkKey enforces the algorithm's minimum key length. The MAC itself stays
// functional with shorter keys; interop with short keys requires the caller
// to opt out of the check via GenerationConfig.AllowWeakKeys.
func (a SigningAlgorithm) checkKey(secret []byte, allowWeak bool) error {
	if a.None() {
		return nil
	}
	if len(secret) == 0 {
		return fmt.Errorf("%w: signing of type %q is configured but the secret is missing", ErrConfiguration, a.name)
	}
	if !allowWeak && len(secret) < a.minKeyLen {
		return fmt.Errorf("%w: %s requires a secret of at least %d bytes, got %d", ErrConfiguration, a.name, a.minKeyLen, len(secret))
	}
	return nil
}

// sign computes the MAC over message with secret. The none algorithm yields
// an empty signature.
func (a SigningAlgorithm) sign(secret, message []byte) []byte {
	if a.None() {
		return nil
	}
	mac := hmac.New(a.hash.New, secret)
	mac.Write(message)
	return mac.Sum(nil)
}

// verify recomputes the MAC over message and compares it against signature
// in constant time.
func (a SigningAlgorithm) verify(secret, message, signature []byte) bool {
	if a.None() {
		return len(signature) == 0
	}
	return hmac.Equal(a.sign(secret, message), signature)
}
