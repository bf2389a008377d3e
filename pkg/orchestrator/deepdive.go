package orchestrator

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/lineagekit/discovery/pkg/models"
	"github.com/mitchellh/mapstructure"
)

// decodeLLMDeepDive turns the pass-through JSON body of an
// extract.deep_dive LLM action (which carries no enforced schema) into the
// package/component/transformation/column-lineage shape catalog sync
// expects, in the lenient alias-coercion style of pkg/llmaction/repair.go
// rather than a strict schema.
func decodeLLMDeepDive(projectID, path string, raw any) (*models.DeepDiveResult, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("deep-dive response is not an object")
	}

	var body struct {
		Package struct {
			Name       string `mapstructure:"name"`
			Components []struct {
				Name string `mapstructure:"name"`
				Type string `mapstructure:"type"`
			} `mapstructure:"components"`
		} `mapstructure:"package"`
		Transformations []struct {
			Component        string         `mapstructure:"component"`
			Operation        string         `mapstructure:"operation"`
			SourceComponent  string         `mapstructure:"source_component"`
			Detail           map[string]any `mapstructure:"detail"`
		} `mapstructure:"transformations"`
		ColumnLineages []struct {
			SourceComponent    string  `mapstructure:"source_component"`
			TargetComponent    string  `mapstructure:"target_component"`
			SourceColumn       string  `mapstructure:"source_column"`
			TargetColumn       string  `mapstructure:"target_column"`
			TransformationRule string  `mapstructure:"transformation_rule"`
			Confidence         float64 `mapstructure:"confidence"`
		} `mapstructure:"column_lineages"`
	}

	cfg := &mapstructure.DecoderConfig{WeaklyTypedInput: true, Result: &body}
	dec, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("decode deep-dive body: %w", err)
	}

	pkgName := body.Package.Name
	if pkgName == "" {
		pkgName = path
	}
	pkg := &models.Package{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		Name:       pkgName,
		SourceFile: path,
	}

	byName := make(map[string]*models.PackageComponent, len(body.Package.Components))
	for i, c := range body.Package.Components {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("component_%d", i)
		}
		pc := &models.PackageComponent{
			ID:         uuid.NewString(),
			PackageID:  pkg.ID,
			Name:       name,
			Type:       componentTypeFromString(c.Type),
			OrderIndex: i,
		}
		pkg.Components = append(pkg.Components, pc)
		byName[name] = pc
	}

	result := &models.DeepDiveResult{Package: pkg}

	for _, t := range body.Transformations {
		comp, ok := byName[t.Component]
		if !ok {
			continue
		}
		ir := models.TransformationIR{
			ID:          uuid.NewString(),
			ComponentID: comp.ID,
			Operation:   models.TransformOperation(t.Operation),
			Detail:      t.Detail,
		}
		if src, ok := byName[t.SourceComponent]; ok {
			ir.SourceComponentID = &src.ID
		}
		result.Transformations = append(result.Transformations, ir)
	}

	for _, cl := range body.ColumnLineages {
		lineage := models.ColumnLineage{
			ID:            uuid.NewString(),
			ProjectID:     projectID,
			SourceColumn:  orDefault(cl.SourceColumn, "*"),
			TargetColumn:  orDefault(cl.TargetColumn, "*"),
			Confidence:    cl.Confidence,
		}
		if lineage.Confidence == 0 {
			lineage.Confidence = 0.6
		}
		if cl.TransformationRule != "" {
			rule := cl.TransformationRule
			lineage.TransformationRule = &rule
		}
		if src, ok := byName[cl.SourceComponent]; ok {
			lineage.SourceComponentID = &src.ID
		}
		if tgt, ok := byName[cl.TargetComponent]; ok {
			lineage.TargetComponentID = &tgt.ID
		}
		result.ColumnLineages = append(result.ColumnLineages, lineage)
	}

	return result, nil
}

func componentTypeFromString(s string) models.ComponentType {
	switch s {
	case "source":
		return models.ComponentSource
	case "sink":
		return models.ComponentSink
	default:
		return models.ComponentTransform
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
