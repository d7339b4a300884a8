// claims.go

package talestoken

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ClaimCodec translates one claim (or header) between its in-memory value
// and its JSON rendering. A codec is registered per claim name; claims
// without a codec fall back to the JSON primitive handling below.
//
// ToJSON must produce a compact JSON element. FromJSON receives the exact
// element bytes found on the wire.
type ClaimCodec struct {
	ToJSON   func(value any) (json.RawMessage, error)
	FromJSON func(raw json.RawMessage) (any, error)
}

// audienceCodec handles the "aud" claim. The JWT spec permits the audience
// to appear as either a single string or an array of strings; in memory the
// value is always []string and encoding always emits the array form.
func audienceCodec() ClaimCodec {
	return ClaimCodec{
		ToJSON: func(value any) (json.RawMessage, error) {
			switch v := value.(type) {
			case []string:
				return json.Marshal(v)
			case string:
				return json.Marshal([]string{v})
			default:
				return nil, fmt.Errorf("%w: expected string or []string, got %T", ErrUnsupportedClaimValue, value)
			}
		},
		FromJSON: func(raw json.RawMessage) (any, error) {
			trimmed := strings.TrimSpace(string(raw))
			if strings.HasPrefix(trimmed, "\"") {
				var single string
				if err := json.Unmarshal(raw, &single); err != nil {
					return nil, err
				}
				return []string{single}, nil
			}
			var many []string
			if err := json.Unmarshal(raw, &many); err != nil {
				return nil, err
			}
			return many, nil
		},
	}
}

// The expression is based on RFC 3986 (Appendix B) but modified to require
// the scheme, colon and authority, since the JWT spec calls for StringOrURI
// values to be a URI rather than a URI-reference. Rootless forms such as
// "foo:bar" do not qualify.
var uriPattern = regexp.MustCompile(`^(([^:/?#]+):)(//([^/?#]*))([^?#]*)(\?([^#]*))?(#(.*))?$`)

// validateClaimString applies the StringOrURI rule: any string value holding
// a colon must be an absolute URI. Values without a colon pass unchanged.
func validateClaimString(name, value string) error {
	if !strings.ContainsRune(value, ':') {
		return nil
	}
	if uriPattern.MatchString(value) {
		return nil
	}
	return claimError(name, fmt.Errorf("%w: %q contains a ':' but is not a valid URI", ErrInvalidClaimValue, value))
}

// encodePrimitive renders a claim value that has no registered codec.
// Strings, numbers and booleans are handled directly; everything else has
// no translation mechanism and is rejected with the claim name attached.
func encodePrimitive(name string, value any) (json.RawMessage, error) {
	switch v := value.(type) {
	case nil:
		return nil, claimError(name, fmt.Errorf("%w: null value, use absence instead", ErrInvalidClaimValue))
	case string:
		if err := validateClaimString(name, v); err != nil {
			return nil, err
		}
		return json.Marshal(v)
	case bool:
		return json.Marshal(v)
	case json.Number:
		return json.RawMessage(v.String()), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return json.Marshal(v)
	default:
		return nil, claimError(name, fmt.Errorf("%w: type %T", ErrUnsupportedClaimValue, value))
	}
}

// decodePrimitive translates a JSON element that has no registered codec.
// Only JSON primitives are accepted; arrays, objects and nulls found on the
// wire without a codec are a structural defect.
func decodePrimitive(name string, raw json.RawMessage) (any, error) {
	trimmed := strings.TrimSpace(string(raw))
	if len(trimmed) == 0 {
		return nil, claimError(name, fmt.Errorf("%w: empty JSON element", ErrMalformedToken))
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, claimError(name, fmt.Errorf("%w: %v", ErrMalformedToken, err))
		}
		return s, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, claimError(name, fmt.Errorf("%w: %v", ErrMalformedToken, err))
		}
		return b, nil
	case '{', '[', 'n':
		return nil, claimError(name, fmt.Errorf("%w: JSON element %s has no mechanism for translation", ErrMalformedToken, compactElement(trimmed)))
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, claimError(name, fmt.Errorf("%w: %v", ErrMalformedToken, err))
		}
		return n, nil
	}
}

// compactElement shortens long element bodies for error messages.
func compactElement(s string) string {
	const max = 40
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
