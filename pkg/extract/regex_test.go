package extract

import (
	"testing"

	"github.com/lineagekit/discovery/pkg/models"
	"github.com/stretchr/testify/require"
)

func TestExtractConfigRegex_ConnectionString(t *testing.T) {
	content := `<configuration>
  <connectionStrings>
    <add name="DW" connectionString="Data Source=sqlprod01;Initial Catalog=SalesDW;Integrated Security=True" />
  </connectionStrings>
</configuration>`

	res, err := ExtractConfigRegex("app/web.config", content)
	require.NoError(t, err)

	var names []string
	for _, n := range res.Nodes {
		names = append(names, n.Name)
	}
	require.Contains(t, names, "web.config")
	require.Contains(t, names, "sqlprod01")
	require.Contains(t, names, "SalesDW")

	for _, e := range res.Edges {
		require.Equal(t, models.EdgeDependsOn, e.EdgeType)
		require.True(t, e.IsHypothesis)
	}
	require.Len(t, res.Evidences, len(res.Edges))
	for _, ev := range res.Evidences {
		require.Equal(t, models.EvidenceRegexMatch, ev.Kind)
		require.NotNil(t, ev.Locator.LineStart)
	}
}

func TestExtractConfigRegex_EmbeddedSQL(t *testing.T) {
	content := `<job>
  <step query="INSERT INTO dbo.audit_log SELECT * FROM staging.events" />
</job>`

	res, err := ExtractConfigRegex("jobs/audit.xml", content)
	require.NoError(t, err)

	var reads, writes bool
	for _, e := range res.Edges {
		if e.EdgeType == models.EdgeReadsFrom && e.ToNodeID == "table:staging.events" {
			reads = true
		}
		if e.EdgeType == models.EdgeWritesTo && e.ToNodeID == "table:dbo.audit_log" {
			writes = true
		}
	}
	require.True(t, reads)
	require.True(t, writes)
}

func TestExtractConfigRegex_EnvDatabaseSettings(t *testing.T) {
	content := "DB_NAME=warehouse\nexport DATABASE_URL=postgres://etl@host/warehouse\nUNRELATED=1\n"

	res, err := ExtractConfigRegex(".env", content)
	require.NoError(t, err)

	var names []string
	for _, n := range res.Nodes {
		names = append(names, n.Name)
	}
	require.Contains(t, names, "warehouse")
	require.NotContains(t, names, "1")
}

func TestClassify_StrategyRouting(t *testing.T) {
	require.True(t, Classify("etc/app.config", models.StrategyParserOnly).Deterministic)
	require.False(t, Classify("jobs/nightly.yaml", models.StrategyLLMOnly).Deterministic)
	require.Equal(t, "extract.strict", Classify("jobs/nightly.yaml", models.StrategyLLMOnly).Action)
	require.True(t, Classify("scripts/load.sql", models.StrategyParserPlusLLM).Deterministic)
	require.True(t, Classify("scripts/load.sql", models.StrategyParserPlusLLM).DeepDive)
	require.Equal(t, "extract.diagram", Classify("docs/arch.png", models.StrategyVLMExtract).Action)
}
