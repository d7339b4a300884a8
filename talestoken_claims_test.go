// talestoken_claims_test.go
package talestoken

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegisterClaimCodec_Validation(t *testing.T) {
	manager := testManager(t, nil)
	codec := ClaimCodec{
		ToJSON:   func(value any) (json.RawMessage, error) { return json.Marshal(value) },
		FromJSON: func(raw json.RawMessage) (any, error) { return string(raw), nil },
	}

	t.Run("Empty claim name", func(t *testing.T) {
		err := manager.RegisterClaimCodec("", codec)
		require.Error(t, err)
		require.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("Missing translation direction", func(t *testing.T) {
		err := manager.RegisterClaimCodec("roles", ClaimCodec{ToJSON: codec.ToJSON})
		require.Error(t, err)
		require.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("Duplicate registration", func(t *testing.T) {
		require.NoError(t, manager.RegisterClaimCodec("roles", codec))
		err := manager.RegisterClaimCodec("roles", codec)
		require.Error(t, err)
		require.ErrorIs(t, err, ErrDuplicateRegistration)
		require.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("Audience codec is pre-registered", func(t *testing.T) {
		err := manager.RegisterClaimCodec("aud", codec)
		require.Error(t, err)
		require.ErrorIs(t, err, ErrDuplicateRegistration)
	})
}

func TestAudienceClaim_Polymorphism(t *testing.T) {
	manager := testManager(t, nil)

	t.Run("Slice writes as array", func(t *testing.T) {
		token, err := manager.GenerateToken(map[string]any{"aud": []string{"a", "b"}}, testSecret())
		require.NoError(t, err)
		require.Contains(t, decodeClaimsSegment(t, token.Serialized()), `"aud":["a","b"]`)
	})

	t.Run("Single string coerces to array on write", func(t *testing.T) {
		token, err := manager.GenerateToken(map[string]any{"aud": "a"}, testSecret())
		require.NoError(t, err)
		require.Contains(t, decodeClaimsSegment(t, token.Serialized()), `"aud":["a"]`)
	})

	t.Run("String form reads as one-element slice", func(t *testing.T) {
		serialized := segment(t, `{"alg":"none"}`) + "." + segment(t, `{"aud":"a"}`)
		token, err := manager.ParseToken(serialized, nil)
		require.NoError(t, err)

		audience, ok := token.Audience()
		require.True(t, ok)
		require.Equal(t, []string{"a"}, audience)
	})

	t.Run("Array form reads as slice", func(t *testing.T) {
		serialized := segment(t, `{"alg":"none"}`) + "." + segment(t, `{"aud":["a","b"]}`)
		token, err := manager.ParseToken(serialized, nil)
		require.NoError(t, err)

		audience, ok := token.Audience()
		require.True(t, ok)
		require.Equal(t, []string{"a", "b"}, audience)
	})

	t.Run("Unsupported in-memory shape", func(t *testing.T) {
		_, err := manager.GenerateToken(map[string]any{"aud": 12}, testSecret())
		require.Error(t, err)
		require.ErrorIs(t, err, ErrClaimEncoding)
	})
}

func TestStringClaims_URIRule(t *testing.T) {
	manager := testManager(t, nil)

	tests := []struct {
		name      string
		claim     string
		value     string
		expectErr bool
	}{
		{name: "Plain string passes", claim: "nickname", value: "joe"},
		{name: "Colon without URI form rejected", claim: "iss", value: "foo:bar", expectErr: true},
		{name: "Absolute URI accepted", claim: "iss", value: "https://example.com"},
		{name: "URI with path and query accepted", claim: "iss", value: "https://example.com/a/b?c=1"},
		{name: "Application claim follows the same rule", claim: "nickname", value: "a:b", expectErr: true},
		{name: "Leading colon rejected", claim: "iss", value: ":missing-scheme", expectErr: true},
		{name: "Empty string passes", claim: "note", value: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manager.GenerateToken(map[string]any{tt.claim: tt.value}, testSecret())
			if tt.expectErr {
				require.Error(t, err)
				require.ErrorIs(t, err, ErrInvalidClaimValue)

				var claimErr *ClaimError
				require.ErrorAs(t, err, &claimErr)
				require.Equal(t, tt.claim, claimErr.Claim)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestGenerateToken_PrimitiveFallback(t *testing.T) {
	manager := testManager(t, nil)

	t.Run("Primitives pass through", func(t *testing.T) {
		token, err := manager.GenerateToken(map[string]any{
			"str":   "value",
			"count": 42,
			"rate":  0.5,
			"flag":  false,
			"big":   json.Number("9007199254740993"),
		}, testSecret())
		require.NoError(t, err)

		rendered := decodeClaimsSegment(t, token.Serialized())
		require.Contains(t, rendered, `"str":"value"`)
		require.Contains(t, rendered, `"count":42`)
		require.Contains(t, rendered, `"rate":0.5`)
		require.Contains(t, rendered, `"flag":false`)
		require.Contains(t, rendered, `"big":9007199254740993`)
	})

	t.Run("Nil value rejected", func(t *testing.T) {
		_, err := manager.GenerateToken(map[string]any{"gone": nil}, testSecret())
		require.Error(t, err)
		require.ErrorIs(t, err, ErrInvalidClaimValue)
	})

	t.Run("Unregistered composite rejected", func(t *testing.T) {
		_, err := manager.GenerateToken(map[string]any{"roles": []string{"a"}}, testSecret())
		require.Error(t, err)
		require.ErrorIs(t, err, ErrUnsupportedClaimValue)

		var claimErr *ClaimError
		require.ErrorAs(t, err, &claimErr)
		require.Equal(t, "roles", claimErr.Claim)
	})
}

func TestCustomClaimCodec_RoundTrip(t *testing.T) {
	manager := testManager(t, nil)

	// A codec turning a time.Time into its RFC 3339 rendering.
	require.NoError(t, manager.RegisterClaimCodec("session_started", ClaimCodec{
		ToJSON: func(value any) (json.RawMessage, error) {
			at, ok := value.(time.Time)
			if !ok {
				return nil, fmt.Errorf("expected time.Time, got %T", value)
			}
			return json.Marshal(at.UTC().Format(time.RFC3339))
		},
		FromJSON: func(raw json.RawMessage) (any, error) {
			var rendered string
			if err := json.Unmarshal(raw, &rendered); err != nil {
				return nil, err
			}
			return time.Parse(time.RFC3339, rendered)
		},
	}))

	started := time.Date(2015, 4, 18, 9, 30, 0, 0, time.UTC)
	token, err := manager.GenerateToken(map[string]any{"session_started": started}, testSecret())
	require.NoError(t, err)

	parsed, err := manager.ParseToken(token.Serialized(), testSecret())
	require.NoError(t, err)

	value, ok := parsed.Claim("session_started")
	require.True(t, ok)
	require.Equal(t, started, value)
}

func TestClaimCodec_FailuresNameTheClaim(t *testing.T) {
	manager := testManager(t, nil)
	boom := errors.New("boom")
	require.NoError(t, manager.RegisterClaimCodec("fragile", ClaimCodec{
		ToJSON:   func(value any) (json.RawMessage, error) { return nil, boom },
		FromJSON: func(raw json.RawMessage) (any, error) { return nil, boom },
	}))

	_, err := manager.GenerateToken(map[string]any{"fragile": 1}, testSecret())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrClaimEncoding)
	require.ErrorIs(t, err, boom)

	serialized := segment(t, `{"alg":"none"}`) + "." + segment(t, `{"fragile":1}`)
	_, err = manager.ParseToken(serialized, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrClaimDecoding)
	require.ErrorIs(t, err, boom)

	var claimErr *ClaimError
	require.ErrorAs(t, err, &claimErr)
	require.Equal(t, "fragile", claimErr.Claim)
}
