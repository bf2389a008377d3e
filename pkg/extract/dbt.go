package extract

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lineagekit/discovery/pkg/models"
)

// dbtManifest is the subset of a dbt manifest.json this walker cares about:
// nodes (models, seeds, tests), sources, and each node's depends_on.nodes.
type dbtManifest struct {
	Nodes   map[string]dbtNode   `json:"nodes"`
	Sources map[string]dbtSource `json:"sources"`
}

type dbtNode struct {
	UniqueID  string `json:"unique_id"`
	Name      string `json:"name"`
	ResType   string `json:"resource_type"`
	DependsOn struct {
		Nodes []string `json:"nodes"`
	} `json:"depends_on"`
}

type dbtSource struct {
	UniqueID string `json:"unique_id"`
	Name     string `json:"name"`
	SourceNm string `json:"source_name"`
}

// ExtractDBTManifest is the deterministic JSON walker for a dbt
// manifest.json: every node and source becomes an asset, and each node's
// depends_on.nodes becomes a DEPENDS_ON edge.
func ExtractDBTManifest(path, content string) (*models.ExtractionResult, error) {
	var m dbtManifest
	if err := json.Unmarshal([]byte(content), &m); err != nil {
		return nil, fmt.Errorf("parse dbt manifest %s: %w", path, err)
	}

	res := &models.ExtractionResult{Meta: map[string]any{"extractor": "dbt_manifest"}}

	ids := make([]string, 0, len(m.Nodes))
	for id := range m.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		n := m.Nodes[id]
		res.Nodes = append(res.Nodes, models.ExtractedNode{
			NodeID:   n.UniqueID,
			NodeType: dbtAssetType(n.ResType),
			Name:     n.Name,
			System:   "dbt",
		})
	}

	sourceIDs := make([]string, 0, len(m.Sources))
	for id := range m.Sources {
		sourceIDs = append(sourceIDs, id)
	}
	sort.Strings(sourceIDs)

	for _, id := range sourceIDs {
		s := m.Sources[id]
		res.Nodes = append(res.Nodes, models.ExtractedNode{
			NodeID:   s.UniqueID,
			NodeType: string(models.AssetTable),
			Name:     s.SourceNm + "." + s.Name,
			System:   "dbt",
		})
	}

	for _, id := range ids {
		n := m.Nodes[id]
		deps := append([]string(nil), n.DependsOn.Nodes...)
		sort.Strings(deps)
		for _, dep := range deps {
			res.Edges = append(res.Edges, models.ExtractedEdge{
				FromNodeID:  n.UniqueID,
				ToNodeID:    dep,
				EdgeType:    models.EdgeDependsOn,
				Confidence:  1.0,
				ExtractorID: "dbt_manifest_walker",
			})
		}
	}

	return res, nil
}

func dbtAssetType(resourceType string) string {
	switch resourceType {
	case "model":
		return string(models.AssetView)
	case "seed":
		return string(models.AssetTable)
	case "source":
		return string(models.AssetTable)
	default:
		return string(models.AssetScript)
	}
}
