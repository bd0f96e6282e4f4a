package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalJSONSortsKeysRegardlessOfInputOrder(t *testing.T) {
	a := map[string]any{"b": 1, "a": 2, "c": 3}
	b := map[string]any{"c": 3, "a": 2, "b": 1}

	outA, err := CanonicalJSON(a)
	require.NoError(t, err)
	outB, err := CanonicalJSON(b)
	require.NoError(t, err)

	require.Equal(t, string(outA), string(outB))
	require.Equal(t, `{"a":2,"b":1,"c":3}`, string(outA))
}

func TestCanonicalJSONSortsNestedObjects(t *testing.T) {
	v := map[string]any{
		"outer": map[string]any{"z": 1, "y": 2},
	}
	out, err := CanonicalJSON(v)
	require.NoError(t, err)
	require.Equal(t, `{"outer":{"y":2,"z":1}}`, string(out))
}

func TestCanonicalJSONDoesNotEscapeHTML(t *testing.T) {
	out, err := CanonicalJSON(map[string]any{"target": "<script>&"})
	require.NoError(t, err)
	require.Contains(t, string(out), "<script>&")
}

func TestSHA256HexIsDeterministicAndDiffersOnChange(t *testing.T) {
	h1 := SHA256Hex([]byte("a"))
	h2 := SHA256Hex([]byte("a"))
	h3 := SHA256Hex([]byte("b"))
	require.Equal(t, h1, h2)
	require.NotEqual(t, h1, h3)
	require.Len(t, h1, 64)
}
