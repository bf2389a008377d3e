package extract

import (
	"testing"

	"github.com/lineagekit/discovery/pkg/models"
	"github.com/stretchr/testify/require"
)

const sampleDTSX = `<?xml version="1.0"?>
<DTS:Executable xmlns:DTS="www.microsoft.com/SqlServer/Dts" DTS:ObjectName="LoadCustomers">
  <DTS:Executables>
    <DTS:Executable DTS:ObjectName="Data Flow Task">
      <pipeline>
        <components>
          <component name="OLE DB Source" componentClassID="Microsoft.OLEDBSource">
            <properties>
              <property name="OpenRowset">[dbo].[Customers]</property>
            </properties>
          </component>
          <component name="OLE DB Destination" componentClassID="Microsoft.OLEDBDestination">
            <properties>
              <property name="OpenRowset">[stage].[Customers]</property>
            </properties>
          </component>
        </components>
      </pipeline>
    </DTS:Executable>
  </DTS:Executables>
</DTS:Executable>`

func TestExtractDTSX_SourceAndDestination(t *testing.T) {
	res, err := ExtractDTSX("packages/LoadCustomers.dtsx", sampleDTSX)
	require.NoError(t, err)

	var names []string
	for _, n := range res.Nodes {
		names = append(names, n.Name)
	}
	require.Contains(t, names, "LoadCustomers")
	require.Contains(t, names, "dbo.Customers")
	require.Contains(t, names, "stage.Customers")

	var reads, writes bool
	for _, e := range res.Edges {
		if e.EdgeType == models.EdgeReadsFrom && e.ToNodeID == "table:dbo.Customers" {
			reads = true
		}
		if e.EdgeType == models.EdgeWritesTo && e.ToNodeID == "table:stage.Customers" {
			writes = true
		}
	}
	require.True(t, reads)
	require.True(t, writes)
}

func TestDeepDiveDTSX_EmitsPackageComponentsAndColumnLineage(t *testing.T) {
	result, err := DeepDiveDTSX("proj-1", "packages/LoadCustomers.dtsx", sampleDTSX)
	require.NoError(t, err)

	require.Equal(t, "LoadCustomers", result.Package.Name)
	require.Len(t, result.Package.Components, 2)

	var hasSource, hasSink bool
	for _, c := range result.Package.Components {
		if c.Type == models.ComponentSource {
			hasSource = true
		}
		if c.Type == models.ComponentSink {
			hasSink = true
		}
	}
	require.True(t, hasSource)
	require.True(t, hasSink)

	require.Len(t, result.ColumnLineages, 1)
	cl := result.ColumnLineages[0]
	require.Equal(t, "*", cl.SourceColumn)
	require.Equal(t, "*", cl.TargetColumn)
	require.NotNil(t, cl.TransformationRule)
	require.Equal(t, "Data Flow Path", *cl.TransformationRule)
	require.NotNil(t, cl.SourceComponentID)
	require.NotNil(t, cl.TargetComponentID)
}
