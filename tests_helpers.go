// tests_helpers.go

package talestoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Test Helper Functions

const (
	testSecretKey = "test-secret-32-bytes-long-1234567890"
	testWeakKey   = "secret"
)

func testSecret() []byte {
	return []byte(testSecretKey)
}

// testManager builds a manager for tests, failing the test on any
// configuration problem.
func testManager(t *testing.T, config *GenerationConfig) *TokenManager {
	t.Helper()
	manager, err := NewTokenManager(config)
	require.NoError(t, err)
	return manager
}

// fixedClock pins a clock to the given Unix second.
func fixedClock(seconds int64) func() time.Time {
	return func() time.Time {
		return time.Unix(seconds, 0)
	}
}

// testOpsFamily builds the family used across the access-control tests.
func testOpsFamily(t *testing.T) *CapabilityFamily {
	t.Helper()
	family, err := NewCapabilityFamily("ops").
		Add("read", "write", "admin").
		Seal()
	require.NoError(t, err)
	return family
}
