package llmaction

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractJSON_StripsFence(t *testing.T) {
	body := "Sure, here you go:\n```json\n{\"nodes\": [], \"edges\": []}\n```"
	parsed, err := extractJSON(body)
	require.NoError(t, err)
	m, ok := parsed.(map[string]any)
	require.True(t, ok)
	require.Contains(t, m, "nodes")
}

func TestExtractJSON_FindsBalancedFragmentWithoutFence(t *testing.T) {
	body := `Here is the result: {"nodes": [{"node_id": "a"}], "edges": []} Hope that helps.`
	parsed, err := extractJSON(body)
	require.NoError(t, err)
	m, ok := parsed.(map[string]any)
	require.True(t, ok)
	nodes, ok := m["nodes"].([]any)
	require.True(t, ok)
	require.Len(t, nodes, 1)
}

func TestExtractJSON_WrapsBareObjectSequence(t *testing.T) {
	body := "```json\n{\"node_id\": \"a\"}, {\"node_id\": \"b\"}\n```"
	parsed, err := extractJSON(body)
	require.NoError(t, err)
	list, ok := parsed.([]any)
	require.True(t, ok)
	require.Len(t, list, 2)
}

func TestExtractJSON_IgnoresBracesInsideStrings(t *testing.T) {
	body := `{"nodes": [{"node_id": "a", "name": "weird } brace"}], "edges": []}`
	parsed, err := extractJSON(body)
	require.NoError(t, err)
	m, ok := parsed.(map[string]any)
	require.True(t, ok)
	nodes := m["nodes"].([]any)
	require.Len(t, nodes, 1)
}

func TestExtractJSON_NoFragmentErrors(t *testing.T) {
	_, err := extractJSON("no json here at all")
	require.Error(t, err)
}
