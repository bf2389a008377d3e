package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lineagekit/discovery/pkg/models"
)

// goSplitter splits a SQL script into batches on a line containing only "GO"
// (any surrounding whitespace, case-insensitive).
var goSplitter = regexp.MustCompile(`(?im)^\s*GO\s*$`)

var (
	withCTEPattern = regexp.MustCompile(`(?is)\bWITH\s+([a-zA-Z_][\w.$#]*)\s+AS\s*\(`)
	ctaCTEPattern  = regexp.MustCompile(`(?is),\s*([a-zA-Z_][\w.$#]*)\s+AS\s*\(`)

	fromJoinPattern = regexp.MustCompile(`(?is)\b(?:FROM|JOIN)\s+([a-zA-Z_][\w.$#]*)`)
	insertPattern   = regexp.MustCompile(`(?is)\bINSERT\s+INTO\s+([a-zA-Z_][\w.$#]*)`)
	updatePattern   = regexp.MustCompile(`(?is)\bUPDATE\s+([a-zA-Z_][\w.$#]*)`)
	mergePattern    = regexp.MustCompile(`(?is)\bMERGE\s+(?:INTO\s+)?([a-zA-Z_][\w.$#]*)`)
	createPattern   = regexp.MustCompile(`(?is)\bCREATE\s+(?:OR\s+REPLACE\s+)?(?:TABLE|VIEW)\s+([a-zA-Z_][\w.$#]*)`)
)

// ExtractSQL is the deterministic parser for .sql/.ddl scripts: it splits
// the script into GO-delimited statements, finds table references via
// FROM/JOIN/INSERT/UPDATE/MERGE/CREATE, classifies them as READS_FROM,
// WRITES_TO, or CREATES, and excludes CTE names declared within the same
// statement.
func ExtractSQL(path, content string) (*models.ExtractionResult, error) {
	res := &models.ExtractionResult{Meta: map[string]any{"extractor": "sql"}}

	base := filepath.Base(path)
	fileNodeID := "file:" + path
	res.Nodes = append(res.Nodes, models.ExtractedNode{
		NodeID:   fileNodeID,
		NodeType: string(models.AssetFile),
		Name:     base,
		System:   "sql",
	})

	seenTables := map[string]bool{}
	lineOffset := 1
	for _, stmt := range goSplitter.Split(content, -1) {
		stmtLines := strings.Count(stmt, "\n")
		startLine := lineOffset
		lineOffset += stmtLines

		ctes := cteNames(stmt)

		reads := map[string]bool{}
		writes := map[string]bool{}
		creates := map[string]bool{}
		for _, m := range fromJoinPattern.FindAllStringSubmatch(stmt, -1) {
			reads[normalizeTableName(m[1])] = true
		}
		for _, pat := range []*regexp.Regexp{insertPattern, updatePattern, mergePattern} {
			for _, m := range pat.FindAllStringSubmatch(stmt, -1) {
				writes[normalizeTableName(m[1])] = true
			}
		}
		for _, m := range createPattern.FindAllStringSubmatch(stmt, -1) {
			creates[normalizeTableName(m[1])] = true
		}

		for name := range reads {
			if ctes[name] || name == "" {
				continue
			}
			addSQLTableNode(res, seenTables, name)
			addSQLEdge(res, fileNodeID, name, models.EdgeReadsFrom, path, startLine, stmt)
		}
		for name := range writes {
			if ctes[name] || name == "" {
				continue
			}
			addSQLTableNode(res, seenTables, name)
			addSQLEdge(res, fileNodeID, name, models.EdgeWritesTo, path, startLine, stmt)
		}
		for name := range creates {
			if ctes[name] || name == "" {
				continue
			}
			addSQLTableNode(res, seenTables, name)
			addSQLEdge(res, fileNodeID, name, models.EdgeCreates, path, startLine, stmt)
		}
	}

	return res, nil
}

// cteNames returns the set of common-table-expression names declared within
// a single statement, so they are never emitted as TABLE nodes for that
// statement.
func cteNames(stmt string) map[string]bool {
	out := map[string]bool{}
	if m := withCTEPattern.FindStringSubmatch(stmt); m != nil {
		out[normalizeTableName(m[1])] = true
		for _, m2 := range ctaCTEPattern.FindAllStringSubmatch(stmt, -1) {
			out[normalizeTableName(m2[1])] = true
		}
	}
	return out
}

func normalizeTableName(raw string) string {
	name := strings.Trim(raw, "[]\"`; \t\r\n")
	name = strings.ReplaceAll(name, "[", "")
	name = strings.ReplaceAll(name, "]", "")
	return name
}

func addSQLTableNode(res *models.ExtractionResult, seen map[string]bool, name string) {
	if seen[name] {
		return
	}
	seen[name] = true
	res.Nodes = append(res.Nodes, models.ExtractedNode{
		NodeID:   "table:" + name,
		NodeType: string(models.AssetTable),
		Name:     name,
		System:   "sql",
	})
}

func addSQLEdge(res *models.ExtractionResult, fileNodeID, tableName string, edgeType models.EdgeType, path string, line int, stmt string) {
	snippet := strings.TrimSpace(stmt)
	if len(snippet) > 400 {
		snippet = snippet[:400] + "..."
	}
	sum := sha256.Sum256([]byte(path + tableName + string(edgeType) + snippet))
	hash := hex.EncodeToString(sum[:])
	refID := "ev:" + hash

	res.Edges = append(res.Edges, models.ExtractedEdge{
		FromNodeID:  fileNodeID,
		ToNodeID:    "table:" + tableName,
		EdgeType:    edgeType,
		Confidence:  1.0,
		ExtractorID: "sql_parser",
		EvidenceRef: &refID,
	})
	lineStart := line
	res.Evidences = append(res.Evidences, models.ExtractedEvidence{
		RefID:    refID,
		FilePath: path,
		Kind:     models.EvidenceRegexMatch,
		Locator:  models.Locator{File: path, LineStart: &lineStart},
		Snippet:  snippet,
		Hash:     &hash,
	})
}
