package plan

import (
	"testing"

	"github.com/lineagekit/discovery/pkg/models"
	"github.com/stretchr/testify/require"
)

func TestDecide_SkipsLockfile(t *testing.T) {
	action, _ := Decide("go.sum", 1024)
	require.Equal(t, models.ActionSkip, action)
}

func TestDecide_SkipsTestFixtureData(t *testing.T) {
	action, _ := Decide("pkg/foo/testdata/sample.json", 1024)
	require.Equal(t, models.ActionSkip, action)
}

func TestDecide_ReviewsOversizeFile(t *testing.T) {
	action, _ := Decide("dump.sql", 30*1024*1024)
	require.Equal(t, models.ActionReview, action)
}

func TestDecide_ProcessesOrdinaryFile(t *testing.T) {
	action, _ := Decide("src/main.py", 2048)
	require.Equal(t, models.ActionProcess, action)
}

func TestApplyOverrides_ForcesSQLToProcess(t *testing.T) {
	action, reason := ApplyOverrides("dump.sql", models.ActionReview, "File exceeds size threshold")
	require.Equal(t, models.ActionProcess, action)
	require.Contains(t, reason, "override")
}

func TestApplyOverrides_LeavesNonOverrideExtAlone(t *testing.T) {
	action, _ := ApplyOverrides("notes.txt", models.ActionReview, "File exceeds size threshold")
	require.Equal(t, models.ActionReview, action)
}
