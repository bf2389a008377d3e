package extract

import (
	"bufio"
	"path/filepath"
	"strings"

	"github.com/lineagekit/discovery/pkg/models"
)

// dsxState tracks which block a DataStage export line currently belongs to.
type dsxState int

const (
	dsxStateNone dsxState = iota
	dsxStateJob
	dsxStateStage
	dsxStateLink
)

// ExtractDSX is the deterministic line-state-machine macro extractor for
// DataStage .dsx exports: it scans BEGIN DSJOB / BEGIN DSSTAGE /
// BEGIN DSLINK blocks and emits a structural summary (job PIPELINE node,
// stage/link CONTAINS edges). The file's deep-dive pass (column-level
// detail) is an LLM action per the dispatch table, not implemented here.
func ExtractDSX(path, content string) (*models.ExtractionResult, error) {
	res := &models.ExtractionResult{Meta: map[string]any{"extractor": "dsx"}}

	jobName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	jobNodeID := "job:" + jobName
	res.Nodes = append(res.Nodes, models.ExtractedNode{
		NodeID:   jobNodeID,
		NodeType: string(models.AssetPipeline),
		Name:     jobName,
		System:   "datastage",
	})

	state := dsxStateNone
	var currentName string
	lineNo := 0

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		upper := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upper, "BEGIN DSJOB"):
			state = dsxStateJob
		case strings.HasPrefix(upper, "BEGIN DSSTAGE"):
			state = dsxStateStage
			currentName = ""
		case strings.HasPrefix(upper, "BEGIN DSLINK"):
			state = dsxStateLink
			currentName = ""
		case strings.HasPrefix(upper, "END DSSTAGE"), strings.HasPrefix(upper, "END DSLINK"), strings.HasPrefix(upper, "END DSJOB"):
			state = dsxStateNone
			currentName = ""
		case (state == dsxStateStage || state == dsxStateLink) && strings.HasPrefix(upper, "NAME "):
			currentName = dsxQuoted(line)
			if currentName == "" {
				continue
			}
			nodeType := string(models.AssetScript)
			edgeType := models.EdgeContains
			if state == dsxStateLink {
				nodeType = "COMPONENT_TRANSFORM"
			}
			childID := "dsx:" + jobName + ":" + currentName
			res.Nodes = append(res.Nodes, models.ExtractedNode{
				NodeID:   childID,
				NodeType: nodeType,
				Name:     currentName,
				System:   "datastage",
				Attributes: map[string]any{
					"kind": stateLabel(state),
					"line": lineNo,
				},
			})
			res.Edges = append(res.Edges, models.ExtractedEdge{
				FromNodeID:  jobNodeID,
				ToNodeID:    childID,
				EdgeType:    edgeType,
				Confidence:  1.0,
				ExtractorID: "dsx_state_machine",
			})
		}
	}

	return res, nil
}

func stateLabel(s dsxState) string {
	switch s {
	case dsxStateStage:
		return "stage"
	case dsxStateLink:
		return "link"
	default:
		return "unknown"
	}
}

// dsxQuoted extracts the quoted value following a "NAME " DSX directive, e.g.
// `NAME "Transformer_1"` -> `Transformer_1`.
func dsxQuoted(line string) string {
	start := strings.IndexByte(line, '"')
	if start < 0 {
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			return fields[1]
		}
		return ""
	}
	end := strings.IndexByte(line[start+1:], '"')
	if end < 0 {
		return ""
	}
	return line[start+1 : start+1+end]
}
