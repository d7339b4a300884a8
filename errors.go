// errors.go

package talestoken

import (
	"errors"
	"fmt"
)

// Predefined errors for token and access-control operations.
var (
	// Structural errors surfaced by parsing and generation
	ErrMalformedToken       = errors.New("malformed token: wrong segment count, bad base64url, or bad JSON")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")

	// Configuration errors
	ErrConfiguration         = errors.New("invalid configuration")
	ErrDuplicateRegistration = fmt.Errorf("%w: duplicate registration", ErrConfiguration)

	// Claim translation errors
	ErrClaimEncoding         = errors.New("claim codec failed to encode value")
	ErrClaimDecoding         = errors.New("claim codec failed to decode value")
	ErrInvalidClaimValue     = errors.New("invalid claim value")
	ErrUnsupportedClaimValue = errors.New("claim value has no mechanism for translation")

	// Capability errors
	ErrUnknownCapability = errors.New("capability is not part of the family")
)

// ClaimError reports a failure translating a specific claim. It carries the
// claim name so callers can surface which member of the token was at fault.
type ClaimError struct {
	Claim string // The claim (or header) that failed
	Err   error  // Underlying error
}

func (e *ClaimError) Error() string {
	return fmt.Sprintf("claim %q: %v", e.Claim, e.Err)
}

func (e *ClaimError) Unwrap() error {
	return e.Err
}

// claimError wraps err with the claim name, preserving errors.Is matching
// against the sentinel kinds above.
func claimError(claim string, err error) error {
	return &ClaimError{Claim: claim, Err: err}
}
