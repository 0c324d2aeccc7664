package json

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeNumbersKeepsIntegers(t *testing.T) {
	var out map[string]any
	require.NoError(t, DecodeNumbers([]byte(`{"qty": 9007199254740993, "price": 1.5}`), &out))

	qty, ok := out["qty"].(Number)
	require.True(t, ok, "expected Number, got %T", out["qty"])
	n, err := qty.Int64()
	require.NoError(t, err)
	require.Equal(t, int64(9007199254740993), n)
}

func TestRawMessagePassthrough(t *testing.T) {
	type envelope struct {
		Result RawMessage `json:"result"`
	}
	data, err := Marshal(envelope{Result: RawMessage(`{"a":[1,2]}`)})
	require.NoError(t, err)
	require.JSONEq(t, `{"result":{"a":[1,2]}}`, string(data))
}
