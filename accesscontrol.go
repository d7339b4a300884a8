// accesscontrol.go

package talestoken

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Requirement declares that a protected operation needs the listed
// capabilities, found in the capability set stored under the named claim.
// It is the data-driven equivalent of attaching the demand to the operation
// itself: the dispatch layer registers a table of requirements per
// operation at route-construction time.
type Requirement struct {
	Claim        string
	Capabilities []string
}

// DenialReason classifies why an authorization was refused.
type DenialReason string

const (
	DeniedUnverified               DenialReason = "unverified"
	DeniedNotYetValid              DenialReason = "not_yet_valid"
	DeniedExpired                  DenialReason = "expired"
	DeniedRevoked                  DenialReason = "revoked"
	DeniedMissingClaim             DenialReason = "missing_claim"
	DeniedFamilyMismatch           DenialReason = "family_mismatch"
	DeniedInsufficientCapabilities DenialReason = "insufficient_capabilities"
)

// Decision is the outcome of an authorization check. Denials carry the
// reason, the claim that was being evaluated when the check failed, and for
// capability shortfalls the specific missing names.
type Decision struct {
	Granted bool
	Reason  DenialReason
	Claim   string
	Missing []string
}

func granted() Decision {
	return Decision{Granted: true}
}

func denied(reason DenialReason, claim string) Decision {
	return Decision{Reason: reason, Claim: claim}
}

// AccessController evaluates verified tokens against declared capability
// requirements. Claim names are bound to capability families at startup;
// operations register their requirement lists once, and every capability
// name is validated against the bound family at registration time so that
// request-time evaluation never discovers a misconfiguration.
//
// Revocation is optional: when a store is attached, tokens carrying a "jti"
// are checked against it.
type AccessController struct {
	mu         sync.RWMutex
	families   map[string]*CapabilityFamily
	operations map[string][]Requirement

	revocations   RevocationStore
	allowUnsigned bool

	now func() time.Time
}

// NewAccessController creates an empty controller.
func NewAccessController() *AccessController {
	return &AccessController{
		families:   make(map[string]*CapabilityFamily),
		operations: make(map[string][]Requirement),
		now:        time.Now,
	}
}

// BindClaimFamily associates a claim name with the capability family its
// values belong to. The binding is injective and set once; rebinding is a
// configuration defect.
func (c *AccessController) BindClaimFamily(claim string, family *CapabilityFamily) error {
	if claim == "" {
		return fmt.Errorf("%w: need a claim name", ErrConfiguration)
	}
	if family == nil {
		return fmt.Errorf("%w: need a family for claim %q", ErrConfiguration, claim)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if bound, exists := c.families[claim]; exists {
		return fmt.Errorf("%w: claim %q is already bound to family %q", ErrConfiguration, claim, bound.name)
	}
	c.families[claim] = family
	return nil
}

// SetRevocationStore attaches a revocation store, consulted during
// authorization for tokens that carry an id. Call during setup.
func (c *AccessController) SetRevocationStore(store RevocationStore) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revocations = store
}

// AllowUnsignedTokens opts in to authorizing tokens that declare the none
// algorithm. Without the opt-in such tokens are always denied as
// unverified, even when parsing accepted them.
func (c *AccessController) AllowUnsignedTokens() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowUnsigned = true
}

// RegisterOperation stores the requirement list for an operation
// identifier. Every requirement must reference a bound claim and only
// capability names the bound family knows; violations surface here, at
// construction time, not per request.
func (c *AccessController) RegisterOperation(operation string, requirements ...Requirement) error {
	if operation == "" {
		return fmt.Errorf("%w: need an operation identifier", ErrConfiguration)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.operations[operation]; exists {
		return fmt.Errorf("%w: operation %q is already registered", ErrDuplicateRegistration, operation)
	}
	for _, requirement := range requirements {
		family, bound := c.families[requirement.Claim]
		if !bound {
			return fmt.Errorf("%w: operation %q requires claim %q, which is not bound to a family", ErrConfiguration, operation, requirement.Claim)
		}
		for _, name := range requirement.Capabilities {
			if _, known := family.Ordinal(name); !known {
				return fmt.Errorf("%w: operation %q requires capability %q, which family %q does not define", ErrConfiguration, operation, name, family.name)
			}
		}
	}
	c.operations[operation] = requirements
	return nil
}

// AuthorizeOperation evaluates a token against the requirements registered
// for the operation. Unknown operations are a programming error, not a
// denial.
func (c *AccessController) AuthorizeOperation(ctx context.Context, token *Token, operation string) (Decision, error) {
	c.mu.RLock()
	requirements, exists := c.operations[operation]
	c.mu.RUnlock()
	if !exists {
		return Decision{}, fmt.Errorf("%w: operation %q is not registered", ErrConfiguration, operation)
	}
	return c.Authorize(ctx, token, requirements...), nil
}

// Authorize checks a token against a requirement list. The token must be
// verified and inside its validity window; each requirement's claim must
// hold a capability set of the bound family containing every required
// capability. The first failed check decides the outcome.
func (c *AccessController) Authorize(ctx context.Context, token *Token, requirements ...Requirement) Decision {
	c.mu.RLock()
	store := c.revocations
	allowUnsigned := c.allowUnsigned
	c.mu.RUnlock()

	if token == nil || !token.Verified() {
		return denied(DeniedUnverified, "")
	}
	if token.Unsigned() && !allowUnsigned {
		return denied(DeniedUnverified, "")
	}

	// Window bounds: nbf inclusive, exp exclusive.
	now := c.now()
	if notBefore, ok := token.NotBefore(); ok && now.Before(notBefore) {
		return denied(DeniedNotYetValid, "nbf")
	}
	if expires, ok := token.ExpiresAt(); ok && !now.Before(expires) {
		return denied(DeniedExpired, "exp")
	}

	if store != nil {
		if id, ok := token.ID(); ok {
			revoked, err := store.IsRevoked(ctx, id)
			if err != nil || revoked {
				// A store failure cannot prove the token is still live.
				return denied(DeniedRevoked, "jti")
			}
		}
	}

	for _, requirement := range requirements {
		if decision := c.evaluate(token, requirement); !decision.Granted {
			return decision
		}
	}
	return granted()
}

// evaluate checks one requirement against the token's claims.
func (c *AccessController) evaluate(token *Token, requirement Requirement) Decision {
	c.mu.RLock()
	family := c.families[requirement.Claim]
	c.mu.RUnlock()

	value, present := token.Claim(requirement.Claim)
	if !present {
		return denied(DeniedMissingClaim, requirement.Claim)
	}
	set, ok := value.(*CapabilitySet)
	if !ok || family == nil || set.Family() != family {
		return denied(DeniedFamilyMismatch, requirement.Claim)
	}

	var missing []string
	for _, name := range requirement.Capabilities {
		if !set.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		decision := denied(DeniedInsufficientCapabilities, requirement.Claim)
		decision.Missing = missing
		return decision
	}
	return granted()
}
