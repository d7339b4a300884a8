// talestoken.go

package talestoken

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TokenManager is a factory for creating and parsing JSON web tokens. It
// carries the claim codec registry, so claims with registered codecs are
// translated through them while string, number and boolean values are
// handled automatically. Arrays and objects are not handled UNLESS a codec
// is registered for the claim.
//
// The general approach for the manager (and Token) is that errors are
// returned when the data or format is unexpected. Signature failures and
// expiration do not produce errors; they are queryable state on the token
// and on the access-control decision.
//
// A single manager is shared by many concurrent request handlers. All state
// after the registration phase is effectively immutable; the manager holds
// no I/O and never retains secrets across calls.
type TokenManager struct {
	defaultConfig GenerationConfig

	mu     sync.RWMutex
	codecs map[string]ClaimCodec

	now func() time.Time
}

// NewTokenManager creates a manager with the given default generation
// configuration, used whenever GenerateToken is called without an explicit
// one. A nil config falls back to DefaultGenerationConfig (no timing claims,
// HS256 signing).
//
// The "aud" claim arrives pre-registered as a string slice that tolerates
// the bare-string form on read, as the JWT spec permits either.
func NewTokenManager(config *GenerationConfig) (*TokenManager, error) {
	cfg := DefaultGenerationConfig()
	if config != nil {
		cfg = *config
	}
	if err := validateGenerationConfig(&cfg); err != nil {
		return nil, err
	}

	m := &TokenManager{
		defaultConfig: cfg,
		codecs:        make(map[string]ClaimCodec),
		now:           time.Now,
	}
	m.codecs["aud"] = audienceCodec()
	return m, nil
}

// RegisterClaimCodec associates a codec with a claim (or header) name, so
// that claim is translated through the codec instead of the primitive
// fallback. Registration happens once, during setup, before the manager is
// shared; registering a name twice is a configuration defect.
func (m *TokenManager) RegisterClaimCodec(claim string, codec ClaimCodec) error {
	if claim == "" {
		return fmt.Errorf("%w: need a claim name", ErrConfiguration)
	}
	if codec.ToJSON == nil || codec.FromJSON == nil {
		return fmt.Errorf("%w: codec for claim %q needs both translation directions", ErrConfiguration, claim)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.codecs[claim]; exists {
		return fmt.Errorf("%w: a codec was already registered for claim %q", ErrDuplicateRegistration, claim)
	}
	m.codecs[claim] = codec
	return nil
}

// claimCodec returns the registered codec for a claim, if any.
func (m *TokenManager) claimCodec(claim string) (ClaimCodec, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	codec, ok := m.codecs[claim]
	return codec, ok
}

// GenerateToken creates a token from a set of claims and a secret using the
// manager's default configuration. The secret may be nil only when the
// configuration selects the none algorithm.
func (m *TokenManager) GenerateToken(claims map[string]any, secret []byte) (*Token, error) {
	return m.GenerateTokenWith(nil, claims, secret, nil)
}

// GenerateTokenWith creates a token from headers, claims, a secret and a
// specific configuration. Extra headers exist to support the JWT provision
// for claims that must be readable without verification; encryption itself
// is not supported.
//
// The caller keeps ownership of both maps; they are copied before any
// configured values are applied. Claims set by the configuration override
// caller values and are appended in the fixed order iss, jti, iat, nbf, exp;
// the remaining claims are rendered in lexicographic order so that identical
// inputs produce identical serialized strings.
func (m *TokenManager) GenerateTokenWith(headers, claims map[string]any, secret []byte, config *GenerationConfig) (*Token, error) {
	cfg := m.defaultConfig
	if config != nil {
		cfg = *config
		if err := validateGenerationConfig(&cfg); err != nil {
			return nil, err
		}
	}
	algorithm := cfg.Algorithm
	if algorithm.isZero() {
		algorithm = AlgorithmHS256
	}
	if err := algorithm.checkKey(secret, cfg.AllowWeakKeys); err != nil {
		return nil, err
	}

	headerMembers, err := m.buildHeaders(headers, algorithm)
	if err != nil {
		return nil, err
	}
	claimMembers, err := m.buildClaims(claims, &cfg)
	if err != nil {
		return nil, err
	}

	headerSegment, err := m.renderSegment(headerMembers)
	if err != nil {
		return nil, err
	}
	claimsSegment, err := m.renderSegment(claimMembers)
	if err != nil {
		return nil, err
	}

	combined := headerSegment + "." + claimsSegment
	if algorithm.None() {
		// no signing, so slap a dot on the end
		combined += "."
	} else {
		signature := algorithm.sign(secret, []byte(combined))
		combined += "." + encodeSegment(signature)
	}

	return newToken(stripRaw(headerMembers), stripRaw(claimMembers), combined, true), nil
}

// encodedMember pairs the in-memory value of a member with its rendered
// JSON element.
type encodedMember struct {
	name  string
	value any
	raw   json.RawMessage
}

// buildHeaders copies the caller headers and applies the configured "alg"
// header. The "typ" header is deliberately not written; it only matters for
// encrypted tokens, which are not supported.
func (m *TokenManager) buildHeaders(headers map[string]any, algorithm SigningAlgorithm) ([]encodedMember, error) {
	members := make([]encodedMember, 0, len(headers)+1)
	members = append(members, encodedMember{
		name:  "alg",
		value: algorithm.Name(),
		raw:   json.RawMessage(`"` + algorithm.Name() + `"`),
	})

	for _, name := range sortedKeys(headers) {
		if name == "alg" {
			continue // always configuration-owned
		}
		raw, err := m.encodeValue(name, headers[name])
		if err != nil {
			return nil, err
		}
		members = append(members, encodedMember{name: name, value: headers[name], raw: raw})
	}
	return members, nil
}

// buildClaims copies the caller claims, overrides them with the configured
// claims, and encodes every value.
func (m *TokenManager) buildClaims(claims map[string]any, cfg *GenerationConfig) ([]encodedMember, error) {
	merged := make(map[string]any, len(claims)+5)
	for name, value := range claims {
		merged[name] = value
	}

	// If a configuration option is unset the developer can supply their own
	// value for the corresponding claim through the claims map.
	configured := make([]string, 0, 5)
	if cfg.Issuer != "" {
		merged["iss"] = cfg.Issuer
		configured = append(configured, "iss")
	}
	if cfg.GenerateID {
		merged["jti"] = uuid.NewString()
		configured = append(configured, "jti")
	}
	now := m.now().Unix()
	if cfg.IncludeIssuedAt {
		merged["iat"] = now
		configured = append(configured, "iat")
	}
	delay := int64(cfg.ValidDelay / time.Second)
	if cfg.IncludeNotBefore {
		merged["nbf"] = now + delay
		configured = append(configured, "nbf")
	} else {
		delay = 0 // only the expiration computation uses the default
	}
	if cfg.IncludeExpiration {
		merged["exp"] = now + delay + int64(cfg.ValidDuration/time.Second)
		configured = append(configured, "exp")
	}

	configuredSet := make(map[string]bool, len(configured))
	for _, name := range configured {
		configuredSet[name] = true
	}

	members := make([]encodedMember, 0, len(merged))
	for _, name := range sortedKeys(merged) {
		if configuredSet[name] {
			continue
		}
		raw, err := m.encodeValue(name, merged[name])
		if err != nil {
			return nil, err
		}
		members = append(members, encodedMember{name: name, value: merged[name], raw: raw})
	}
	for _, name := range configured {
		raw, err := m.encodeValue(name, merged[name])
		if err != nil {
			return nil, err
		}
		members = append(members, encodedMember{name: name, value: merged[name], raw: raw})
	}
	return members, nil
}

// encodeValue translates one member value to its JSON element, through the
// registered codec when one exists and the primitive fallback otherwise. A
// codec producing no element renders an explicit null.
func (m *TokenManager) encodeValue(name string, value any) (json.RawMessage, error) {
	if codec, ok := m.claimCodec(name); ok {
		raw, err := codec.ToJSON(value)
		if err != nil {
			return nil, claimError(name, fmt.Errorf("%w: %w", ErrClaimEncoding, err))
		}
		if raw == nil {
			raw = json.RawMessage("null")
		}
		return raw, nil
	}
	return encodePrimitive(name, value)
}

// decodeValue translates one wire element to its in-memory value.
func (m *TokenManager) decodeValue(name string, raw json.RawMessage) (any, error) {
	if codec, ok := m.claimCodec(name); ok {
		value, err := codec.FromJSON(raw)
		if err != nil {
			return nil, claimError(name, fmt.Errorf("%w: %w", ErrClaimDecoding, err))
		}
		return value, nil
	}
	return decodePrimitive(name, raw)
}

// renderSegment renders members as a compact JSON object and base64url
// encodes the UTF-8 bytes as one segment.
func (m *TokenManager) renderSegment(members []encodedMember) (string, error) {
	raws := make([]rawMember, len(members))
	for i, member := range members {
		raws[i] = rawMember{name: member.name, raw: member.raw}
	}
	rendered, err := renderObjectMembers(raws)
	if err != nil {
		return "", err
	}
	return encodeSegment(rendered), nil
}

// ParseToken creates a token from its compact string form, verifying the
// signature against the secret when the token declares one.
//
// Structural defects (segment counts, base64, JSON, unknown algorithms)
// return errors. A signature that fails to recompute is not an error: the
// returned token simply reports Verified() == false. Expiration and
// not-before are likewise not enforced here; policy lives with the caller
// or the AccessController.
//
// An unsigned (alg "none") token parses, but when the caller supplies a
// non-empty secret the expectation of a signature is unmet and the token is
// treated as unverified.
func (m *TokenManager) ParseToken(serialized string, secret []byte) (*Token, error) {
	if serialized == "" {
		return nil, fmt.Errorf("%w: empty token string", ErrMalformedToken)
	}

	segments := strings.Split(serialized, ".")
	if len(segments) < 2 || len(segments) > 3 {
		return nil, fmt.Errorf("%w: token contains wrong number of segments", ErrMalformedToken)
	}

	headerMembers, err := m.parseSegment(segments[0])
	if err != nil {
		return nil, err
	}
	algorithm, err := headerAlgorithm(headerMembers)
	if err != nil {
		return nil, err
	}
	// The segment count depends on the algorithm the token itself declares:
	// unsigned tokens carry an empty third slot at most, signed tokens carry
	// exactly three segments.
	if algorithm.None() {
		if len(segments) == 3 && segments[2] != "" {
			return nil, fmt.Errorf("%w: token contains wrong number of segments", ErrMalformedToken)
		}
	} else if len(segments) != 3 {
		return nil, fmt.Errorf("%w: token contains wrong number of segments", ErrMalformedToken)
	}

	claimMembers, err := m.parseSegment(segments[1])
	if err != nil {
		return nil, err
	}

	var verified bool
	if algorithm.None() {
		// Trusting an unsigned token is only sensible when the caller did
		// not expect a signature in the first place.
		verified = len(secret) == 0
	} else {
		if err := algorithm.checkKey(secret, m.defaultConfig.AllowWeakKeys); err != nil {
			return nil, err
		}
		signature, err := decodeSegment(segments[2])
		if err != nil {
			return nil, err
		}
		verified = algorithm.verify(secret, []byte(segments[0]+"."+segments[1]), signature)
	}

	return newToken(claimValues(headerMembers), claimValues(claimMembers), serialized, verified), nil
}

// parsedMember is one translated member of a parsed segment.
type parsedMember struct {
	name  string
	value any
}

// parseSegment base64url decodes one segment, parses the JSON object and
// translates every member, preserving wire order.
func (m *TokenManager) parseSegment(segment string) ([]parsedMember, error) {
	decoded, err := decodeSegment(segment)
	if err != nil {
		return nil, err
	}
	raws, err := parseObjectMembers(decoded)
	if err != nil {
		return nil, err
	}
	members := make([]parsedMember, len(raws))
	for i, raw := range raws {
		value, err := m.decodeValue(raw.name, raw.raw)
		if err != nil {
			return nil, err
		}
		members[i] = parsedMember{name: raw.name, value: value}
	}
	return members, nil
}

// headerAlgorithm extracts and resolves the mandatory "alg" header.
func headerAlgorithm(headers []parsedMember) (SigningAlgorithm, error) {
	for _, member := range headers {
		if member.name != "alg" {
			continue
		}
		name, ok := member.value.(string)
		if !ok {
			return SigningAlgorithm{}, fmt.Errorf("%w: the \"alg\" header is not a string", ErrMalformedToken)
		}
		return LookupAlgorithm(name)
	}
	return SigningAlgorithm{}, fmt.Errorf("%w: the token is missing the signing algorithm", ErrMalformedToken)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func stripRaw(members []encodedMember) []tokenMember {
	out := make([]tokenMember, len(members))
	for i, member := range members {
		out[i] = tokenMember{name: member.name, value: member.value}
	}
	return out
}

func claimValues(members []parsedMember) []tokenMember {
	out := make([]tokenMember, len(members))
	for i, member := range members {
		out[i] = tokenMember{name: member.name, value: member.value}
	}
	return out
}
