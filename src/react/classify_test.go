package react

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		obs  string
		want ErrorKind
	}{
		{"Error: item M9 not found", ErrorNotFound},
		{"Error: MethodNotFound: Inventory has no method \"Teleport\"", ErrorNotFound},
		{"Error: NoCapableClient: no client supports Teleport", ErrorNotFound},
		{"Error: ConnectionTimeout: connect tcp://127.0.0.1:47800: no answer after 5s", ErrorTimeout},
		{"Error: request timed out", ErrorTimeout},
		{"Error: permission denied for user", ErrorPermission},
		{"Error: 403 Forbidden", ErrorPermission},
		{"Error: ConnectionBroken: connect tcp://x: connection refused", ErrorServiceUnavailable},
		{"Error: warehouse service unavailable", ErrorServiceUnavailable},
		{"Error: ArgumentError: missing required argument \"code\"", ErrorInvalidParameter},
		{"Error: invalid quantity", ErrorInvalidParameter},
		{"Error: InvocationError: disk on fire", ErrorUnknown},
		// timeout is checked before not-found
		{"Error: lookup timed out, record not found", ErrorTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.obs, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.obs))
		})
	}
}

func TestHintsAreDistinct(t *testing.T) {
	assert.NotEqual(t, Hint(ErrorNotFound), Hint(ErrorInvalidParameter))
	seen := map[string]ErrorKind{}
	for _, k := range []ErrorKind{ErrorTimeout, ErrorPermission, ErrorNotFound, ErrorServiceUnavailable, ErrorInvalidParameter, ErrorUnknown} {
		h := Hint(k)
		assert.NotEmpty(t, h)
		if prev, dup := seen[h]; dup {
			t.Errorf("%s and %s share a hint", prev, k)
		}
		seen[h] = k
	}
	assert.Equal(t, Hint(ErrorUnknown), Hint("Bogus"))
}

func TestIsError(t *testing.T) {
	assert.True(t, IsError("Error: nope"))
	assert.True(t, IsError("error: nope"))
	assert.True(t, IsError("MethodNotFound: x"))
	assert.False(t, IsError("42"))
	assert.False(t, IsError("stock not found in cache, fetched from disk: 42"))
}
