package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize_SortsKeysAndStripsWhitespace(t *testing.T) {
	got, err := Canonicalize([]byte(`{ "zebra": 1, "alpha": {"b": true, "a": null}, "beta": [3, 2] }`))
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"a":null,"b":true},"beta":[3,2],"zebra":1}`, string(got))
}

func TestCanonicalize_UTF16KeyOrder(t *testing.T) {
	// U+10000 encodes as a surrogate pair (0xD800...) and sorts before
	// U+E000 in UTF-16 even though its UTF-8 bytes sort after.
	got, err := Canonicalize([]byte("{\"\uE000\":1,\"\U00010000\":2}"))
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(got))
}

func TestCanonicalize_NoHTMLEscaping(t *testing.T) {
	got, err := MarshalCanonical(map[string]string{"html": "<b>a & b</b>"})
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<b>a & b</b>"}`, string(got))
}

func TestCanonicalize_LineSeparatorsLiteral(t *testing.T) {
	got, err := MarshalCanonical("a\u2028b\u2029c")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(got))
}

func TestCanonicalize_EscapesControlCharacters(t *testing.T) {
	got, err := MarshalCanonical("q\"b\\n\nt\tz\x01")
	require.NoError(t, err)
	assert.Equal(t, `"q\"b\\n\nt\tz\u0001"`, string(got))
}

func TestCanonicalize_NFC(t *testing.T) {
	composed, err := MarshalCanonical(map[string]string{"caf\u00e9": "caf\u00e9"})
	require.NoError(t, err)
	decomposed, err := MarshalCanonical(map[string]string{"cafe\u0301": "cafe\u0301"})
	require.NoError(t, err)
	assert.Equal(t, string(composed), string(decomposed))
	assert.Equal(t, "{\"caf\u00e9\":\"caf\u00e9\"}", string(composed))
}

func TestCanonicalize_RejectsKeysCollidingAfterNFC(t *testing.T) {
	_, err := Canonicalize([]byte("{\"caf\u00e9\":1,\"cafe\u0301\":2}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key")
}

func TestCanonicalize_KeepsNumberText(t *testing.T) {
	got, err := Canonicalize([]byte(`[9223372036854775807,-1,0]`))
	require.NoError(t, err)
	assert.Equal(t, `[9223372036854775807,-1,0]`, string(got))
}

func TestCanonicalize_RejectsTrailingData(t *testing.T) {
	_, err := Canonicalize([]byte(`{} {}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing")
}

func TestCanonicalize_Idempotent(t *testing.T) {
	first, err := Canonicalize([]byte("{\"b\":[{\"y\":1,\"x\":2}],\"a\":\"e\u0301\"}"))
	require.NoError(t, err)
	second, err := Canonicalize(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
