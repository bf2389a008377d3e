package extract

import (
	"testing"

	"github.com/lineagekit/discovery/pkg/models"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `{
  "nodes": {
    "model.proj.stg_orders": {
      "unique_id": "model.proj.stg_orders",
      "name": "stg_orders",
      "resource_type": "model",
      "depends_on": {"nodes": ["source.proj.raw.orders"]}
    }
  },
  "sources": {
    "source.proj.raw.orders": {
      "unique_id": "source.proj.raw.orders",
      "name": "orders",
      "source_name": "raw"
    }
  }
}`

func TestExtractDBTManifest_NodesSourcesAndDependsOn(t *testing.T) {
	res, err := ExtractDBTManifest("target/manifest.json", sampleManifest)
	require.NoError(t, err)

	require.Len(t, res.Nodes, 2)
	require.Len(t, res.Edges, 1)
	require.Equal(t, "model.proj.stg_orders", res.Edges[0].FromNodeID)
	require.Equal(t, "source.proj.raw.orders", res.Edges[0].ToNodeID)
	require.Equal(t, models.EdgeDependsOn, res.Edges[0].EdgeType)
}
