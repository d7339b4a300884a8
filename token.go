// token.go

package talestoken

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Token is the immutable result of generating or parsing a JSON web token.
// Headers and claims hold the translated in-memory values in the order they
// appear on the wire; the serialized form is the canonical compact string
// for exactly those members.
//
// Signature failures and timing outcomes are not errors: they are queryable
// state. Verified reports whether the signature recomputed correctly (or the
// token was explicitly unsigned); expiration is inspected by the caller or
// by the AccessController.
type Token struct {
	headers     []tokenMember
	headerIndex map[string]int
	claims      []tokenMember
	claimIndex  map[string]int
	serialized  string
	verified    bool
}

// tokenMember is one named value of the header or claims object.
type tokenMember struct {
	name  string
	value any
}

// newToken builds a token, constructing the lookup indexes. The member
// slices are owned by the token from this point on.
func newToken(headers, claims []tokenMember, serialized string, verified bool) *Token {
	t := &Token{
		headers:     headers,
		headerIndex: make(map[string]int, len(headers)),
		claims:      claims,
		claimIndex:  make(map[string]int, len(claims)),
		serialized:  serialized,
		verified:    verified,
	}
	for i, m := range headers {
		t.headerIndex[m.name] = i
	}
	for i, m := range claims {
		t.claimIndex[m.name] = i
	}
	return t
}

// Headers returns a copy of the token's headers. Mutating the returned map
// does not affect the token.
func (t *Token) Headers() map[string]any {
	out := make(map[string]any, len(t.headers))
	for _, m := range t.headers {
		out[m.name] = m.value
	}
	return out
}

// Claims returns a copy of the token's claims. Mutating the returned map
// does not affect the token.
func (t *Token) Claims() map[string]any {
	out := make(map[string]any, len(t.claims))
	for _, m := range t.claims {
		out[m.name] = m.value
	}
	return out
}

// Header looks up a single header value.
func (t *Token) Header(name string) (any, bool) {
	i, ok := t.headerIndex[name]
	if !ok {
		return nil, false
	}
	return t.headers[i].value, true
}

// Claim looks up a single claim value.
func (t *Token) Claim(name string) (any, bool) {
	i, ok := t.claimIndex[name]
	if !ok {
		return nil, false
	}
	return t.claims[i].value, true
}

// Serialized returns the compact representation of the token, the exact
// string that was parsed or produced at generation time.
func (t *Token) Serialized() string {
	return t.serialized
}

// String returns the compact representation of the token.
func (t *Token) String() string {
	return t.serialized
}

// Verified reports whether the signature matched under the presented secret
// and the algorithm declared in the token's own header.
func (t *Token) Verified() bool {
	return t.verified
}

// Algorithm returns the value of the "alg" header, or the empty string if
// the header is somehow absent.
func (t *Token) Algorithm() string {
	v, ok := t.Header("alg")
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Unsigned reports whether the token declares the none algorithm.
func (t *Token) Unsigned() bool {
	return t.Algorithm() == "none"
}

// Issuer returns the "iss" claim when present as a string.
func (t *Token) Issuer() (string, bool) {
	return t.stringClaim("iss")
}

// Subject returns the "sub" claim when present as a string.
func (t *Token) Subject() (string, bool) {
	return t.stringClaim("sub")
}

// ID returns the "jti" claim when present as a string.
func (t *Token) ID() (string, bool) {
	return t.stringClaim("jti")
}

// Audience returns the "aud" claim. The in-memory form is always a slice,
// regardless of whether the wire form was a single string or an array.
func (t *Token) Audience() ([]string, bool) {
	v, ok := t.Claim("aud")
	if !ok {
		return nil, false
	}
	aud, ok := v.([]string)
	if !ok {
		return nil, false
	}
	out := make([]string, len(aud))
	copy(out, aud)
	return out, true
}

// ExpiresAt returns the "exp" claim as a time when present and numeric.
func (t *Token) ExpiresAt() (time.Time, bool) {
	return t.timeClaim("exp")
}

// NotBefore returns the "nbf" claim as a time when present and numeric.
func (t *Token) NotBefore() (time.Time, bool) {
	return t.timeClaim("nbf")
}

// IssuedAt returns the "iat" claim as a time when present and numeric.
func (t *Token) IssuedAt() (time.Time, bool) {
	return t.timeClaim("iat")
}

func (t *Token) stringClaim(name string) (string, bool) {
	v, ok := t.Claim(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (t *Token) timeClaim(name string) (time.Time, bool) {
	v, ok := t.Claim(name)
	if !ok {
		return time.Time{}, false
	}
	seconds, ok := numericSeconds(v)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(seconds, 0), true
}

// numericSeconds coerces the numeric shapes a timing claim can take after
// generation (int64) or parsing (json.Number) into Unix seconds.
func numericSeconds(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return i, true
	default:
		return 0, false
	}
}

// rawMember is one named element of a JSON object, body untouched.
type rawMember struct {
	name string
	raw  json.RawMessage
}

// parseObjectMembers decodes a JSON object preserving member order, which
// map-based decoding would destroy. Duplicate names keep the last value but
// remain listed, matching the wire contents.
func parseObjectMembers(data []byte) ([]rawMember, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	open, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: segment is not valid JSON: %v", ErrMalformedToken, err)
	}
	if delim, ok := open.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: segment is not a JSON object", ErrMalformedToken)
	}

	var members []rawMember
	for dec.More() {
		keyToken, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		key, ok := keyToken.(string)
		if !ok {
			return nil, fmt.Errorf("%w: object key is not a string", ErrMalformedToken)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		members = append(members, rawMember{name: key, raw: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return members, nil
}

// renderObjectMembers writes members as a compact JSON object in order.
func renderObjectMembers(members []rawMember) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(m.raw)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
