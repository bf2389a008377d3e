package llmaction

import (
	"testing"

	"github.com/lineagekit/discovery/pkg/models"
	"github.com/stretchr/testify/require"
)

func TestRepairExtraction_CoercesAliasedNodeKeys(t *testing.T) {
	parsed := map[string]any{
		"nodes": []any{
			map[string]any{"entity_id": "tbl-1", "entity_type": "TABLE"},
		},
		"edges": []any{},
	}

	res, dropped, err := repairExtraction(parsed)
	require.NoError(t, err)
	require.Equal(t, 0, dropped)
	require.Len(t, res.Nodes, 1)
	require.Equal(t, "tbl-1", res.Nodes[0].NodeID)
	require.Equal(t, "TABLE", res.Nodes[0].NodeType)
	require.Equal(t, "tbl-1", res.Nodes[0].Name, "name should default to node_id")
}

func TestRepairExtraction_MissingNodesFails(t *testing.T) {
	_, _, err := repairExtraction(map[string]any{"edges": []any{}})
	require.ErrorIs(t, err, ErrValidation)
}

func TestRepairExtraction_MissingEdgesDefaultsToEmpty(t *testing.T) {
	res, _, err := repairExtraction(map[string]any{"nodes": []any{}})
	require.NoError(t, err)
	require.Empty(t, res.Edges)
}

func TestRepairExtraction_WrapsBareList(t *testing.T) {
	parsed := []any{map[string]any{"node_id": "x"}}
	res, _, err := repairExtraction(parsed)
	require.NoError(t, err)
	require.Len(t, res.Nodes, 1)
}

func TestRepairExtraction_DropsEdgesMissingEndpoints(t *testing.T) {
	parsed := map[string]any{
		"nodes": []any{},
		"edges": []any{
			map[string]any{"source_id": "a", "target_id": "b", "edge_type": string(models.EdgeReadsFrom)},
			map[string]any{"source_id": "a"},
		},
	}

	res, dropped, err := repairExtraction(parsed)
	require.NoError(t, err)
	require.Equal(t, 1, dropped)
	require.Len(t, res.Edges, 1)
	require.Equal(t, "a", res.Edges[0].FromNodeID)
	require.Equal(t, "b", res.Edges[0].ToNodeID)
	require.Equal(t, models.EdgeReadsFrom, res.Edges[0].EdgeType)
}

func TestFoldAttributes_FoldsNameValuePairs(t *testing.T) {
	raw := []any{
		map[string]any{"name": "schema", "value": "dbo"},
		map[string]any{"name": "rowcount", "value": float64(42)},
	}
	folded := foldAttributes(raw)
	require.Equal(t, "dbo", folded["schema"])
	require.Equal(t, float64(42), folded["rowcount"])
}
