package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLineUsesJSONNumber(t *testing.T) {
	doc, err := DecodeLine([]byte(`{"id":"a","retries":3}`))
	require.NoError(t, err)

	n, ok := doc["retries"].(json.Number)
	require.True(t, ok, "expected json.Number, got %T", doc["retries"])
	assert.Equal(t, "3", n.String())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	doc, err := DecodeLine([]byte(`{"id":"a","nested":{"x":1}}`))
	require.NoError(t, err)

	line, err := EncodeLine(doc)
	require.NoError(t, err)

	again, err := DecodeLine(line)
	require.NoError(t, err)
	assert.Equal(t, doc, again)
}

func TestHeaderRoundTrip(t *testing.T) {
	line, err := EncodeHeader(Header{SchemaVersion: "1.0"})
	require.NoError(t, err)

	h, err := DecodeHeader(line)
	require.NoError(t, err)
	assert.Equal(t, "1.0", h.SchemaVersion)
}

func TestCloneIsDeep(t *testing.T) {
	orig := Doc{"nested": map[string]any{"x": 1}, "list": []any{map[string]any{"y": 2}}}
	clone := Clone(orig)

	clone["nested"].(map[string]any)["x"] = 99
	clone["list"].([]any)[0].(map[string]any)["y"] = 99

	assert.Equal(t, 1, orig["nested"].(map[string]any)["x"])
	assert.Equal(t, 2, orig["list"].([]any)[0].(map[string]any)["y"])
}

func TestFromTypedToTypedRoundTrip(t *testing.T) {
	type widget struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	d, err := FromTyped(&widget{ID: "w1", Name: "sprocket"})
	require.NoError(t, err)
	assert.Equal(t, "w1", d["id"])

	var out widget
	require.NoError(t, ToTyped(d, &out))
	assert.Equal(t, "w1", out.ID)
	assert.Equal(t, "sprocket", out.Name)
}
