package extract

import (
	"testing"

	"github.com/lineagekit/discovery/pkg/models"
	"github.com/stretchr/testify/require"
)

func TestExtractSQL_SingleInsertSelect(t *testing.T) {
	content := `INSERT INTO dbo.sales SELECT * FROM staging.sales_raw;`

	res, err := ExtractSQL("scripts/ingest.sql", content)
	require.NoError(t, err)

	var names []string
	for _, n := range res.Nodes {
		names = append(names, n.Name)
	}
	require.Contains(t, names, "ingest.sql")
	require.Contains(t, names, "dbo.sales")
	require.Contains(t, names, "staging.sales_raw")

	var readsFrom, writesTo bool
	for _, e := range res.Edges {
		if e.EdgeType == models.EdgeReadsFrom && e.ToNodeID == "table:staging.sales_raw" {
			readsFrom = true
		}
		if e.EdgeType == models.EdgeWritesTo && e.ToNodeID == "table:dbo.sales" {
			writesTo = true
		}
	}
	require.True(t, readsFrom, "expected a READS_FROM edge to staging.sales_raw")
	require.True(t, writesTo, "expected a WRITES_TO edge to dbo.sales")
}

func TestExtractSQL_ExcludesCTENames(t *testing.T) {
	content := `
WITH recent_orders AS (
    SELECT * FROM orders WHERE created_at > '2024-01-01'
)
INSERT INTO reporting.order_summary
SELECT * FROM recent_orders;
`
	res, err := ExtractSQL("reports/summary.sql", content)
	require.NoError(t, err)

	for _, n := range res.Nodes {
		require.NotEqual(t, "recent_orders", n.Name, "CTE name must not be emitted as a table node")
	}

	var sawOrders bool
	for _, n := range res.Nodes {
		if n.Name == "orders" {
			sawOrders = true
		}
	}
	require.True(t, sawOrders)
}

func TestExtractSQL_CreateTableEmitsCreatesEdge(t *testing.T) {
	content := "CREATE TABLE dbo.dim_customer (id INT);\nINSERT INTO dbo.dim_customer SELECT * FROM staging.customers;\n"

	res, err := ExtractSQL("ddl/dim_customer.sql", content)
	require.NoError(t, err)

	var creates, writes bool
	for _, e := range res.Edges {
		if e.EdgeType == models.EdgeCreates && e.ToNodeID == "table:dbo.dim_customer" {
			creates = true
		}
		if e.EdgeType == models.EdgeWritesTo && e.ToNodeID == "table:dbo.dim_customer" {
			writes = true
		}
	}
	require.True(t, creates, "expected a CREATES edge for the CREATE TABLE statement")
	require.True(t, writes, "expected a WRITES_TO edge for the INSERT statement")
}

func TestExtractSQL_SplitsOnGOBatchSeparator(t *testing.T) {
	content := "INSERT INTO a SELECT * FROM b;\nGO\nINSERT INTO c SELECT * FROM d;\n"

	res, err := ExtractSQL("batch.sql", content)
	require.NoError(t, err)

	var names []string
	for _, n := range res.Nodes {
		names = append(names, n.Name)
	}
	require.Contains(t, names, "a")
	require.Contains(t, names, "b")
	require.Contains(t, names, "c")
	require.Contains(t, names, "d")
}
