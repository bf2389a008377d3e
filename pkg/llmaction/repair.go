package llmaction

import (
	"fmt"
	"log/slog"

	"github.com/lineagekit/discovery/pkg/models"
	"github.com/mitchellh/mapstructure"
)

// nodeIDAliases lists, in priority order, the keys an LLM might use instead
// of "node_id".
var nodeIDAliases = []string{"id", "entity_id", "entity_name", "entity", "name"}

// nodeTypeAliases lists the keys an LLM might use instead of "node_type".
var nodeTypeAliases = []string{"entity_type", "type"}

// repairExtraction applies the lenient schema repair to a freshly
// json.Unmarshal'd response body and returns the uniform ExtractionResult,
// the count of edges dropped for missing endpoints, and an error only when
// the shape is unrecoverable (missing "nodes").
func repairExtraction(parsed any) (*models.ExtractionResult, int, error) {
	m, ok := parsed.(map[string]any)
	if !ok {
		if list, isList := parsed.([]any); isList {
			m = map[string]any{"nodes": list, "edges": []any{}}
		} else {
			return nil, 0, fmt.Errorf("%w: response is neither an object nor a list", ErrValidation)
		}
	}

	rawNodes, ok := m["nodes"]
	if !ok {
		return nil, 0, fmt.Errorf("%w: response missing \"nodes\"", ErrValidation)
	}
	nodeList, ok := rawNodes.([]any)
	if !ok {
		return nil, 0, fmt.Errorf("%w: \"nodes\" is not a list", ErrValidation)
	}

	rawEdges, ok := m["edges"]
	var edgeList []any
	if !ok {
		edgeList = []any{}
	} else if list, ok := rawEdges.([]any); ok {
		edgeList = list
	} else {
		edgeList = []any{}
	}

	nodes := make([]models.ExtractedNode, 0, len(nodeList))
	for _, raw := range nodeList {
		nm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		normalizeAliasedKey(nm, "node_id", nodeIDAliases)
		normalizeAliasedKey(nm, "node_type", nodeTypeAliases)

		// A still-missing node_id is left blank here and filled in by
		// extract.Normalize after repair, which suffixes the job prefix
		// so the "unnamed_node_N" id of one job never collides with
		// another job's.
		nodeID, _ := nm["node_id"].(string)
		nodeType, _ := nm["node_type"].(string)
		if nodeType == "" {
			nodeType = "unknown"
		}
		name, _ := nm["name"].(string)
		if name == "" {
			name = nodeID
		}
		system, _ := nm["system"].(string)
		if system == "" {
			system = "unknown"
		}

		nodes = append(nodes, models.ExtractedNode{
			NodeID:     nodeID,
			NodeType:   nodeType,
			Name:       name,
			System:     system,
			Attributes: foldAttributes(nm["attributes"]),
		})
	}

	edges := make([]models.ExtractedEdge, 0, len(edgeList))
	dropped := 0
	for _, raw := range edgeList {
		em, ok := raw.(map[string]any)
		if !ok {
			dropped++
			continue
		}
		normalizeAliasedKey(em, "from_node_id", []string{"source_id"})
		normalizeAliasedKey(em, "to_node_id", []string{"target_id"})

		from, _ := em["from_node_id"].(string)
		to, _ := em["to_node_id"].(string)
		if from == "" || to == "" {
			dropped++
			continue
		}

		var edge models.ExtractedEdge
		shim := &edgeDecodeShim{edge: &edge}
		if err := shim.decode(em); err != nil {
			slog.Warn("edge decode failed, keeping bare endpoints", "error", err)
		}
		edge.FromNodeID = from
		edge.ToNodeID = to
		edges = append(edges, edge)
	}
	if dropped > 0 {
		slog.Warn("dropped edges missing an endpoint", "count", dropped)
	}

	return &models.ExtractionResult{Nodes: nodes, Edges: edges}, dropped, nil
}

// edgeDecodeShim lets mapstructure populate a models.ExtractedEdge's
// optional fields (confidence, rationale, extractor_id) from whatever keys
// the LLM happened to emit, independent of the from/to alias handling above.
type edgeDecodeShim struct {
	edge *models.ExtractedEdge
}

func (s *edgeDecodeShim) decode(raw map[string]any) error {
	var decoded struct {
		Confidence   float64 `mapstructure:"confidence"`
		IsHypothesis bool    `mapstructure:"is_hypothesis"`
		ExtractorID  string  `mapstructure:"extractor_id"`
		Rationale    string  `mapstructure:"rationale"`
		EdgeType     string  `mapstructure:"edge_type"`
	}
	cfg := &mapstructure.DecoderConfig{WeaklyTypedInput: true, Result: &decoded}
	dec, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return err
	}
	s.edge.Confidence = decoded.Confidence
	s.edge.IsHypothesis = decoded.IsHypothesis
	s.edge.ExtractorID = decoded.ExtractorID
	s.edge.Rationale = decoded.Rationale
	if decoded.EdgeType != "" {
		s.edge.EdgeType = models.EdgeType(decoded.EdgeType)
	}
	return nil
}

// normalizeAliasedKey rewrites the first alias found in m into canonical,
// leaving an existing canonical key untouched (e.g.
// "id|entity_id|entity_name|entity|name" -> "node_id").
func normalizeAliasedKey(m map[string]any, canonical string, aliases []string) {
	if _, ok := m[canonical]; ok {
		return
	}
	for _, alias := range aliases {
		if v, ok := m[alias]; ok {
			m[canonical] = v
			return
		}
	}
}

// foldAttributes normalizes an "attributes" value into a string-keyed map,
// folding a list of {name,value} pairs when that shape is used instead.
func foldAttributes(raw any) map[string]any {
	switch v := raw.(type) {
	case map[string]any:
		return v
	case []any:
		folded := map[string]any{}
		for _, item := range v {
			pair, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name, _ := pair["name"].(string)
			if name == "" {
				continue
			}
			folded[name] = pair["value"]
		}
		return folded
	default:
		return map[string]any{}
	}
}
