package extract

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lineagekit/discovery/pkg/models"
)

var (
	// connStringPattern matches the common key=value pairs of an ADO/ODBC
	// connection string embedded in XML/.config/.env files.
	connStringPattern = regexp.MustCompile(`(?i)\b(Data Source|Server|Initial Catalog|Database|Catalog)\s*=\s*([^;"'<>\s]+)`)

	// envDBPattern matches .env-style database settings (DB_NAME=foo,
	// DATABASE_URL=postgres://...).
	envDBPattern = regexp.MustCompile(`(?i)^\s*(?:export\s+)?((?:DB|DATABASE)[A-Z0-9_]*)\s*=\s*(\S+)`)
)

// ExtractConfigRegex is the deterministic regex extractor behind the
// PARSER_ONLY strategy for configuration files (.xml, .config, .yaml, .yml,
// .env): it scans for connection strings, database settings, and embedded
// SQL table references, emitting hypothesis edges from the file: DEPENDS_ON
// to the databases and servers it names, READS_FROM/WRITES_TO to the tables
// its embedded SQL touches. Everything found this way is a hint, not
// a parse, so every edge carries is_hypothesis=true and a regex_match
// evidence row.
func ExtractConfigRegex(path, content string) (*models.ExtractionResult, error) {
	res := &models.ExtractionResult{Meta: map[string]any{"extractor": "config_regex"}}

	base := filepath.Base(path)
	fileNodeID := "file:" + path
	res.Nodes = append(res.Nodes, models.ExtractedNode{
		NodeID:   fileNodeID,
		NodeType: string(models.AssetFile),
		Name:     base,
		System:   "config",
	})

	seen := map[string]bool{}
	lineNo := 0
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		for _, m := range connStringPattern.FindAllStringSubmatch(line, -1) {
			key := strings.ToLower(m[1])
			value := normalizeTableName(m[2])
			if value == "" {
				continue
			}
			switch {
			case key == "initial catalog" || key == "database" || key == "catalog":
				addConfigRef(res, seen, fileNodeID, value, "database", path, line, lineNo)
			default:
				addConfigRef(res, seen, fileNodeID, value, "server", path, line, lineNo)
			}
		}

		if m := envDBPattern.FindStringSubmatch(line); m != nil {
			value := strings.Trim(m[2], `"'`)
			// A connection URL names its database in the last path segment.
			if idx := strings.LastIndexByte(value, '/'); idx >= 0 && strings.Contains(value, "://") {
				value = value[idx+1:]
			}
			if value != "" {
				addConfigRef(res, seen, fileNodeID, value, "database", path, line, lineNo)
			}
		}

		for _, m := range fromJoinPattern.FindAllStringSubmatch(line, -1) {
			if name := normalizeTableName(m[1]); name != "" {
				addConfigTable(res, seen, fileNodeID, name, models.EdgeReadsFrom, path, line, lineNo)
			}
		}
		for _, m := range insertPattern.FindAllStringSubmatch(line, -1) {
			if name := normalizeTableName(m[1]); name != "" {
				addConfigTable(res, seen, fileNodeID, name, models.EdgeWritesTo, path, line, lineNo)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return res, nil
}

// addConfigRef records a non-table reference (a database or server name)
// as an unknown-typed node with a DEPENDS_ON hypothesis edge.
func addConfigRef(res *models.ExtractionResult, seen map[string]bool, fileNodeID, name, kind, path, line string, lineNo int) {
	nodeID := kind + ":" + name
	if !seen[nodeID] {
		seen[nodeID] = true
		res.Nodes = append(res.Nodes, models.ExtractedNode{
			NodeID:     nodeID,
			NodeType:   "unknown",
			Name:       name,
			System:     "config",
			Attributes: map[string]any{"ref_kind": kind},
		})
	}
	addConfigEdge(res, fileNodeID, nodeID, models.EdgeDependsOn, path, line, lineNo)
}

// addConfigTable records a table reference found in embedded SQL.
func addConfigTable(res *models.ExtractionResult, seen map[string]bool, fileNodeID, name string, edgeType models.EdgeType, path, line string, lineNo int) {
	nodeID := "table:" + name
	if !seen[nodeID] {
		seen[nodeID] = true
		res.Nodes = append(res.Nodes, models.ExtractedNode{
			NodeID:   nodeID,
			NodeType: string(models.AssetTable),
			Name:     name,
			System:   "config",
		})
	}
	addConfigEdge(res, fileNodeID, nodeID, edgeType, path, line, lineNo)
}

func addConfigEdge(res *models.ExtractionResult, fromID, toID string, edgeType models.EdgeType, path, line string, lineNo int) {
	snippet := strings.TrimSpace(line)
	if len(snippet) > 400 {
		snippet = snippet[:400] + "..."
	}
	sum := sha256.Sum256([]byte(path + toID + string(edgeType) + snippet))
	hash := hex.EncodeToString(sum[:])
	refID := "ev:" + hash

	res.Edges = append(res.Edges, models.ExtractedEdge{
		FromNodeID:   fromID,
		ToNodeID:     toID,
		EdgeType:     edgeType,
		Confidence:   0.5,
		IsHypothesis: true,
		ExtractorID:  "config_regex",
		EvidenceRef:  &refID,
	})
	start := lineNo
	res.Evidences = append(res.Evidences, models.ExtractedEvidence{
		RefID:    refID,
		FilePath: path,
		Kind:     models.EvidenceRegexMatch,
		Locator:  models.Locator{File: path, LineStart: &start},
		Snippet:  snippet,
		Hash:     &hash,
	})
}
