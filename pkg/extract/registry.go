// Package extract dispatches a (file path, content) pair to the deterministic
// extractor that understands it, or reports that an LLM action should handle
// it instead.
package extract

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lineagekit/discovery/pkg/models"
)

// Dispatch is the resolved handling strategy for one file.
type Dispatch struct {
	// Deterministic is true when a parser in this package can handle the
	// file directly (Run below); false means the caller must invoke the
	// named LLM action instead.
	Deterministic bool
	Action        string // LLM action name when Deterministic is false
	DeepDive      bool   // whether a deep-dive pass should follow extraction
	DeepDiveLLM   bool   // true sends the deep-dive straight to the LLM; false tries RunDeepDive first, then the LLM if it does not handle the file
}

// configExts are the configuration-file extensions the regex extractor
// handles deterministically under the PARSER_ONLY strategy.
var configExts = map[string]bool{"xml": true, "config": true, "yaml": true, "yml": true, "env": true}

// Classify resolves the extractor class for a file by extension. strategy
// is the plan item's assigned strategy: an LLM_ONLY item never routes to
// the config regex parser (the planner picked the LLM for a reason, e.g. a
// yaml under jobs/), and a PARSER_ONLY item never falls through to an LLM
// action. The sql/dtsx/dsx parsers are unconditional: those files always
// have a deterministic macro pass regardless of strategy.
func Classify(path string, strategy models.Strategy) Dispatch {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	base := strings.ToLower(filepath.Base(path))

	switch {
	case ext == "sql" || ext == "ddl":
		return Dispatch{Deterministic: true, DeepDive: true}
	case ext == "dtsx":
		return Dispatch{Deterministic: true, DeepDive: true}
	case ext == "dsx":
		return Dispatch{Deterministic: true, DeepDive: true, DeepDiveLLM: true}
	case ext == "py" || ext == "ipynb":
		return Dispatch{Action: "extract.python"}
	case ext == "jpg" || ext == "jpeg" || ext == "png" || ext == "webp" || ext == "gif":
		return Dispatch{Action: "extract.diagram"}
	case base == "manifest.json":
		return Dispatch{Deterministic: true}
	case configExts[ext] && strategy != models.StrategyLLMOnly:
		return Dispatch{Deterministic: true}
	default:
		return Dispatch{Action: "extract.strict"}
	}
}

// Run executes the deterministic extractor for a classified file. Callers
// must check Classify(path).Deterministic first.
func Run(jobPrefix, path, content string) (*models.ExtractionResult, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	base := strings.ToLower(filepath.Base(path))

	var (
		res *models.ExtractionResult
		err error
	)
	switch {
	case ext == "sql" || ext == "ddl":
		res, err = ExtractSQL(path, content)
	case ext == "dtsx":
		res, err = ExtractDTSX(path, content)
	case ext == "dsx":
		res, err = ExtractDSX(path, content)
	case base == "manifest.json":
		res, err = ExtractDBTManifest(path, content)
	case configExts[ext]:
		res, err = ExtractConfigRegex(path, content)
	default:
		res = &models.ExtractionResult{}
	}
	if err != nil {
		return nil, err
	}
	Normalize(res, jobPrefix)
	return res, nil
}

// RunDeepDive executes the deterministic deep-dive pass for a classified
// file when one exists (currently only .dtsx). Callers for .dsx and .sql
// deep-dives fall back to the extract.deep_dive LLM action instead
// (pkg/llmaction).
func RunDeepDive(projectID, path, content string) (*models.DeepDiveResult, bool, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext != "dtsx" {
		return nil, false, nil
	}
	res, err := DeepDiveDTSX(projectID, path, content)
	if err != nil {
		return nil, false, err
	}
	return res, true, nil
}

// Normalize applies the node_id/node_type/system/attributes defaulting
// rules uniformly across extractors (deterministic and, via
// pkg/llmaction, LLM-derived). The fallback node id is the node's index
// plus the job prefix, so it keeps jobs apart; two files of the same job
// that both leave node i unnamed get the same fallback id.
func Normalize(res *models.ExtractionResult, jobPrefix string) {
	for i := range res.Nodes {
		n := &res.Nodes[i]
		if n.NodeID == "" {
			n.NodeID = "unnamed_node_" + strconv.Itoa(i) + "_" + jobPrefix
		}
		if n.NodeType == "" {
			n.NodeType = "unknown"
		}
		if n.System == "" {
			n.System = "unknown"
		}
		if n.Name == "" {
			n.Name = n.NodeID
		}
		if n.Attributes == nil {
			n.Attributes = map[string]any{}
		}
		n.Attributes = foldPairs(n.Attributes)
	}
}

// foldPairs folds a list-of-pairs representation ({name,value}) into a map,
// passing through values that are already string-keyed maps.
func foldPairs(attrs map[string]any) map[string]any {
	pairs, ok := attrs["__pairs__"].([]any)
	if !ok {
		return attrs
	}
	out := map[string]any{}
	for k, v := range attrs {
		if k != "__pairs__" {
			out[k] = v
		}
	}
	for _, p := range pairs {
		m, ok := p.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		if name != "" {
			out[name] = m["value"]
		}
	}
	return out
}
