// encoding.go

package talestoken

import (
	"encoding/base64"
	"fmt"
)

// encodeSegment renders bytes as unpadded, URL-safe base64 (RFC 4648 §5),
// the segment encoding of the compact serialization.
func encodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// decodeSegment decodes an unpadded base64url segment. Missing padding is the
// norm; padding characters or any byte outside the URL-safe alphabet are a
// structural defect and reported as ErrMalformedToken.
func decodeSegment(segment string) ([]byte, error) {
	for i := 0; i < len(segment); i++ {
		if !isBase64URLByte(segment[i]) {
			return nil, fmt.Errorf("%w: invalid base64url character %q in segment", ErrMalformedToken, segment[i])
		}
	}
	decoded, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return decoded, nil
}

func isBase64URLByte(c byte) bool {
	return (c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_'
}
