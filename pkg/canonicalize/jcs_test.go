package canonicalize_test

import (
	"encoding/json"
	"testing"

	"github.com/gowebpki/jcs"
	"github.com/stretchr/testify/require"

	"github.com/legalis-go/core/pkg/canonicalize"
)

// TestJCS_KeyOrdering pins down the one behavior the whole hashing story
// depends on: object keys sort lexicographically regardless of insertion
// order, so two equivalent statutes hash identically.
func TestJCS_KeyOrdering(t *testing.T) {
	a := map[string]interface{}{"b": 1, "a": 2, "c": 3}
	out, err := canonicalize.JCS(a)
	require.NoError(t, err)
	require.Equal(t, `{"a":2,"b":1,"c":3}`, string(out))
}

func TestJCS_NoHTMLEscaping(t *testing.T) {
	out, err := canonicalize.JCS(map[string]interface{}{"x": "<tag>&co"})
	require.NoError(t, err)
	require.Equal(t, `{"x":"<tag>&co"}`, string(out))
}

func TestJCS_NestedDeterminism(t *testing.T) {
	v := map[string]interface{}{
		"z": []interface{}{3, 1, 2},
		"a": map[string]interface{}{"y": true, "x": nil},
	}
	out1, err := canonicalize.JCS(v)
	require.NoError(t, err)
	out2, err := canonicalize.JCS(v)
	require.NoError(t, err)
	require.Equal(t, out1, out2)
}

// TestJCS_AgreesWithReferenceImplementation cross-checks our hand-rolled
// encoder against gowebpki/jcs, an independent RFC 8785 implementation,
// on a corpus of representative values that standard json.Marshal can
// already produce (our encoder re-canonicalizes standard-library output,
// so this only needs to agree on ordering/escaping, not number lexing).
func TestJCS_AgreesWithReferenceImplementation(t *testing.T) {
	cases := []interface{}{
		map[string]interface{}{"b": "2", "a": "1"},
		map[string]interface{}{"nested": map[string]interface{}{"z": "1", "a": "2"}},
		[]interface{}{"x", "y", map[string]interface{}{"k": "v"}},
		map[string]interface{}{"unicode": "café"},
	}

	for _, c := range cases {
		ours, err := canonicalize.JCS(c)
		require.NoError(t, err)

		stdBytes, err := json.Marshal(c)
		require.NoError(t, err)
		theirs, err := jcs.Transform(stdBytes)
		require.NoError(t, err)

		require.Equal(t, string(theirs), string(ours))
	}
}

func TestHashBytes_StableAndPrefixed(t *testing.T) {
	h1 := canonicalize.HashBytes([]byte("hello"))
	h2 := canonicalize.HashBytes([]byte("hello"))
	require.Equal(t, h1, h2)
	require.Contains(t, h1, "sha256:")
}
