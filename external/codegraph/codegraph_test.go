package codegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPatchPayload_SetsEveryField(t *testing.T) {
	payload, err := BuildPatchPayload(map[string]any{
		"name": "NewName",
		"body": "func NewName() {}",
		"line": 42,
	})
	require.NoError(t, err)

	name, ok := ExtractField(payload, "name")
	require.True(t, ok)
	assert.Equal(t, "NewName", name)

	body, ok := ExtractField(payload, "body")
	require.True(t, ok)
	assert.Equal(t, "func NewName() {}", body)
}

func TestExtractField_MissingFieldReturnsFalse(t *testing.T) {
	payload, err := BuildPatchPayload(map[string]any{"name": "X"})
	require.NoError(t, err)

	_, ok := ExtractField(payload, "nonexistent")
	assert.False(t, ok)
}
