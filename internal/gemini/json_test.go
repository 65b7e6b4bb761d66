package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONDirect(t *testing.T) {
	out, ok := ExtractJSON(`{"actions": []}`)
	require.True(t, ok)
	assert.JSONEq(t, `{"actions": []}`, out)
}

func TestExtractJSONFenced(t *testing.T) {
	raw := "Here is the plan:\n```json\n{\"actions\": [{\"step\": 1}]}\n```\nDone."
	out, ok := ExtractJSON(raw)
	require.True(t, ok)
	assert.JSONEq(t, `{"actions": [{"step": 1}]}`, out)
}

func TestExtractJSONBraceSpan(t *testing.T) {
	raw := `The result is {"success": true, "note": "خلاصه"} as requested.`
	out, ok := ExtractJSON(raw)
	require.True(t, ok)
	assert.JSONEq(t, `{"success": true, "note": "خلاصه"}`, out)
}

func TestExtractJSONRejectsNonObjects(t *testing.T) {
	_, ok := ExtractJSON("no structured output here")
	assert.False(t, ok)

	_, ok = ExtractJSON("{broken")
	assert.False(t, ok)
}
