package orchestrator

import (
	"testing"

	"github.com/lineagekit/discovery/pkg/models"
	"github.com/stretchr/testify/require"
)

func TestDecodeLLMDeepDive_ResolvesComponentsAndLineage(t *testing.T) {
	raw := map[string]any{
		"package": map[string]any{
			"name": "nightly_load",
			"components": []any{
				map[string]any{"name": "src_customers", "type": "source"},
				map[string]any{"name": "dim_customers", "type": "sink"},
			},
		},
		"transformations": []any{
			map[string]any{"component": "src_customers", "operation": "read", "detail": map[string]any{"table": "dbo.customers"}},
		},
		"column_lineages": []any{
			map[string]any{
				"source_component":     "src_customers",
				"target_component":     "dim_customers",
				"source_column":        "customer_id",
				"target_column":        "customer_id",
				"confidence":           0.75,
				"transformation_rule":  "direct copy",
			},
		},
	}

	dd, err := decodeLLMDeepDive("proj-1", "jobs/nightly_load.py", raw)
	require.NoError(t, err)
	require.Equal(t, "nightly_load", dd.Package.Name)
	require.Len(t, dd.Package.Components, 2)
	require.Equal(t, models.ComponentSource, dd.Package.Components[0].Type)
	require.Equal(t, models.ComponentSink, dd.Package.Components[1].Type)

	require.Len(t, dd.Transformations, 1)
	require.Equal(t, dd.Package.Components[0].ID, dd.Transformations[0].ComponentID)

	require.Len(t, dd.ColumnLineages, 1)
	lineage := dd.ColumnLineages[0]
	require.Equal(t, "customer_id", lineage.SourceColumn)
	require.Equal(t, dd.Package.Components[0].ID, *lineage.SourceComponentID)
	require.Equal(t, dd.Package.Components[1].ID, *lineage.TargetComponentID)
	require.InDelta(t, 0.75, lineage.Confidence, 0.001)
}

func TestDecodeLLMDeepDive_RejectsNonObjectBody(t *testing.T) {
	_, err := decodeLLMDeepDive("proj-1", "jobs/x.py", []any{"not", "an", "object"})
	require.Error(t, err)
}

func TestDecodeLLMDeepDive_DefaultsMissingFields(t *testing.T) {
	dd, err := decodeLLMDeepDive("proj-1", "jobs/unnamed.py", map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "jobs/unnamed.py", dd.Package.Name)
	require.Empty(t, dd.Package.Components)
	require.Empty(t, dd.Transformations)
	require.Empty(t, dd.ColumnLineages)
}
