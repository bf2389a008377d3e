package extract

import (
	"encoding/xml"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/lineagekit/discovery/pkg/models"
)

// xmlNode is a generic, namespace-agnostic DOM node used to walk a DTSX
// document without binding to Microsoft's SSIS schema (no XML-schema-aware
// SSIS library exists anywhere in the retrieval pack; walking the generic
// tree with stdlib encoding/xml is the practical choice here; see
// DESIGN.md).
type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Content string     `xml:",chardata"`
	Nodes   []xmlNode  `xml:",any"`
}

// localName strips the namespace prefix so the walker never has to
// special-case DTS:Executable vs SSIS:Executable variants.
func localName(n xml.Name) string {
	return n.Local
}

func (n *xmlNode) attr(suffix string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == suffix {
			return a.Value, true
		}
	}
	return "", false
}

// walk calls fn for n and every descendant, depth-first.
func (n *xmlNode) walk(fn func(*xmlNode)) {
	fn(n)
	for i := range n.Nodes {
		n.Nodes[i].walk(fn)
	}
}

var sourceClassPattern = regexp.MustCompile(`(?i)source`)
var destClassPattern = regexp.MustCompile(`(?i)destination|target`)

// ssisComponent is one walked pipeline component, resolved to a table
// reference and a read/write direction.
type ssisComponent struct {
	name      string
	classID   string
	table     string
	direction models.EdgeType // READS_FROM or WRITES_TO
}

// ExtractDTSX is the deterministic macro extractor for .dtsx packages:
// it names the package after the first Executable's ObjectName and walks
// every pipeline "component" element, emitting a package PROCESS node plus
// one TABLE node per component that carries an OpenRowset,
// OpenRowsetVariable, SqlCommand or TableOrViewName property (the first
// table token of the first such property), with READS_FROM/WRITES_TO
// heuristics derived from the component's class name. ConnectionManager
// elements are not read.
func ExtractDTSX(path, content string) (*models.ExtractionResult, error) {
	root, err := parseDTSX(content)
	if err != nil {
		return nil, fmt.Errorf("parse dtsx %s: %w", path, err)
	}

	pkgName := dtsxPackageName(root, path)
	pkgNodeID := "pkg:" + pkgName

	res := &models.ExtractionResult{Meta: map[string]any{"extractor": "dtsx", "package": pkgName}}
	res.Nodes = append(res.Nodes, models.ExtractedNode{
		NodeID:   pkgNodeID,
		NodeType: string(models.AssetProcess),
		Name:     pkgName,
		System:   "ssis",
	})

	components := walkSSISComponents(root)
	seen := map[string]bool{}
	for _, c := range components {
		if c.table == "" {
			continue
		}
		if !seen[c.table] {
			seen[c.table] = true
			res.Nodes = append(res.Nodes, models.ExtractedNode{
				NodeID:   "table:" + c.table,
				NodeType: string(models.AssetTable),
				Name:     c.table,
				System:   "ssis",
			})
		}
		refID := "ev:" + pkgName + ":" + c.table + ":" + string(c.direction)
		res.Edges = append(res.Edges, models.ExtractedEdge{
			FromNodeID:  pkgNodeID,
			ToNodeID:    "table:" + c.table,
			EdgeType:    c.direction,
			Confidence:  0.9,
			ExtractorID: "dtsx_walker",
			EvidenceRef: &refID,
		})
		res.Evidences = append(res.Evidences, models.ExtractedEvidence{
			RefID:    refID,
			FilePath: path,
			Kind:     models.EvidenceXML,
			Locator:  models.Locator{File: path},
			Snippet:  fmt.Sprintf("component %q (%s) -> %s", c.name, c.classID, c.table),
		})
	}

	return res, nil
}

func parseDTSX(content string) (*xmlNode, error) {
	var root xmlNode
	if err := xml.Unmarshal([]byte(content), &root); err != nil {
		return nil, err
	}
	return &root, nil
}

func dtsxPackageName(root *xmlNode, path string) string {
	name := ""
	root.walk(func(n *xmlNode) {
		if name != "" {
			return
		}
		if localName(n.XMLName) == "Executable" {
			if v, ok := n.attr("ObjectName"); ok {
				name = v
			}
		}
	})
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return name
}

// walkSSISComponents finds every pipeline "component" element and resolves
// it to a table + read/write direction via its class name and the
// OpenRowset/SqlCommand property values nested beneath it.
func walkSSISComponents(root *xmlNode) []ssisComponent {
	var out []ssisComponent
	root.walk(func(n *xmlNode) {
		if localName(n.XMLName) != "component" {
			return
		}
		name, _ := n.attr("name")
		classID, _ := n.attr("componentClassID")
		if classID == "" {
			classID, _ = n.attr("componentClass")
		}

		table := ""
		n.walk(func(prop *xmlNode) {
			if table != "" {
				return
			}
			if localName(prop.XMLName) != "property" {
				return
			}
			propName, _ := prop.attr("name")
			if propName == "OpenRowset" || propName == "OpenRowsetVariable" || propName == "SqlCommand" || propName == "TableOrViewName" {
				if v := strings.TrimSpace(prop.Content); v != "" {
					table = normalizeTableName(firstTableToken(v))
				}
			}
		})

		direction := models.EdgeReadsFrom
		switch {
		case destClassPattern.MatchString(classID) || destClassPattern.MatchString(name):
			direction = models.EdgeWritesTo
		case sourceClassPattern.MatchString(classID) || sourceClassPattern.MatchString(name):
			direction = models.EdgeReadsFrom
		}

		out = append(out, ssisComponent{name: name, classID: classID, table: table, direction: direction})
	})
	return out
}

// firstTableToken extracts a table-shaped token from a SqlCommand payload
// (e.g. "SELECT * FROM dbo.Customers" -> "dbo.Customers"); for a bare
// OpenRowset/TableOrViewName value it returns the value unchanged.
func firstTableToken(v string) string {
	if m := fromJoinPattern.FindStringSubmatch(v); m != nil {
		return m[1]
	}
	if m := insertPattern.FindStringSubmatch(v); m != nil {
		return m[1]
	}
	return v
}

// DeepDiveDTSX produces the package/component/column-lineage model for a
// .dtsx file: one Package row, one PackageComponent per SOURCE/SINK, and a
// column-lineage row bridging them with the SSIS "Data Flow Path" rule.
func DeepDiveDTSX(projectID, path, content string) (*models.DeepDiveResult, error) {
	root, err := parseDTSX(content)
	if err != nil {
		return nil, fmt.Errorf("parse dtsx deep dive %s: %w", path, err)
	}
	pkgName := dtsxPackageName(root, path)

	pkg := &models.Package{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		Name:       pkgName,
		SourceFile: path,
	}

	components := walkSSISComponents(root)
	result := &models.DeepDiveResult{Package: pkg}

	var lastSource, lastSink *models.PackageComponent
	order := 0
	for _, c := range components {
		compType := models.ComponentTransform
		switch c.direction {
		case models.EdgeReadsFrom:
			compType = models.ComponentSource
		case models.EdgeWritesTo:
			compType = models.ComponentSink
		}
		pc := &models.PackageComponent{
			ID:         uuid.NewString(),
			PackageID:  pkg.ID,
			Name:       c.name,
			Type:       compType,
			OrderIndex: order,
		}
		order++
		pkg.Components = append(pkg.Components, pc)

		switch compType {
		case models.ComponentSource:
			lastSource = pc
			result.Transformations = append(result.Transformations, models.TransformationIR{
				ID:          uuid.NewString(),
				ComponentID: pc.ID,
				Operation:   models.OpRead,
				Detail:      map[string]any{"table": c.table},
			})
		case models.ComponentSink:
			lastSink = pc
			result.Transformations = append(result.Transformations, models.TransformationIR{
				ID:          uuid.NewString(),
				ComponentID: pc.ID,
				Operation:   models.OpWrite,
				Detail:      map[string]any{"table": c.table},
			})
		}
	}

	if lastSource != nil && lastSink != nil {
		rule := "Data Flow Path"
		result.ColumnLineages = append(result.ColumnLineages, models.ColumnLineage{
			ID:                 uuid.NewString(),
			ProjectID:          projectID,
			SourceColumn:       "*",
			TargetColumn:       "*",
			TransformationRule: &rule,
			Confidence:         0.8,
			SourceComponentID:  &lastSource.ID,
			TargetComponentID:  &lastSink.ID,
		})
	}

	return result, nil
}
