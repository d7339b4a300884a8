// config.go

package talestoken

import (
	"fmt"
	"time"
)

// GenerationConfig is the declarative policy applied when generating a
// token. Options that are unset leave the corresponding claim entirely to
// the caller; options that are set override any caller-provided value.
//
// Fields:
//   - Issuer: when non-empty, written into "iss"
//   - GenerateID: when true, "jti" receives a fresh random UUID string
//   - IncludeIssuedAt: when true, "iat" is set to the current Unix seconds
//   - IncludeNotBefore/ValidDelay: "nbf" = now + delay
//   - IncludeExpiration/ValidDuration: "exp" = now + delay + duration
//   - Algorithm: signing algorithm; the zero value means HS256
//   - AllowWeakKeys: opt out of the minimum key length check, for interop
//     with peers that use short secrets; never the default path
type GenerationConfig struct {
	Issuer            string
	GenerateID        bool
	IncludeIssuedAt   bool
	IncludeNotBefore  bool
	ValidDelay        time.Duration
	IncludeExpiration bool
	ValidDuration     time.Duration
	Algorithm         SigningAlgorithm
	AllowWeakKeys     bool
}

// DefaultGenerationConfig returns the manager's fallback policy: HS256
// signing with no timing or expiration claims.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Algorithm: AlgorithmHS256,
	}
}

// NewGenerationConfig returns the policy a typical issuing service wants:
// the given issuer and lifetime, a fresh token id, and the issued-at stamp.
func NewGenerationConfig(issuer string, validDuration time.Duration) GenerationConfig {
	return GenerationConfig{
		Issuer:            issuer,
		GenerateID:        true,
		IncludeIssuedAt:   true,
		IncludeExpiration: true,
		ValidDuration:     validDuration,
		Algorithm:         AlgorithmHS256,
	}
}

// validateGenerationConfig rejects configurations that cannot produce a
// well-formed token.
func validateGenerationConfig(config *GenerationConfig) error {
	if config.ValidDelay < 0 {
		return fmt.Errorf("%w: valid delay must be non-negative, got %v", ErrConfiguration, config.ValidDelay)
	}
	if config.ValidDuration < 0 {
		return fmt.Errorf("%w: valid duration must be non-negative, got %v", ErrConfiguration, config.ValidDuration)
	}
	return nil
}
