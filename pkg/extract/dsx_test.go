package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleDSX = `BEGIN DSJOB
NAME "LoadOrders"
BEGIN DSSTAGE
NAME "Transformer_1"
END DSSTAGE
BEGIN DSLINK
NAME "Link_1"
END DSLINK
END DSJOB
`

func TestExtractDSX_WalksStagesAndLinks(t *testing.T) {
	res, err := ExtractDSX("jobs/LoadOrders.dsx", sampleDSX)
	require.NoError(t, err)

	var names []string
	for _, n := range res.Nodes {
		names = append(names, n.Name)
	}
	require.Contains(t, names, "LoadOrders")
	require.Contains(t, names, "Transformer_1")
	require.Contains(t, names, "Link_1")
	require.Len(t, res.Edges, 2)
}
