package llmaction

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lineagekit/discovery/pkg/prompt"
	"github.com/lineagekit/discovery/pkg/promptconfig"
	"github.com/lineagekit/discovery/pkg/store"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	responses []stubResponse
	calls     int
}

type stubResponse struct {
	result *CallResult
	err    error
}

func (s *stubClient) Call(ctx context.Context, model string, messages []Message, temperature float64, maxTokens int, provider string, jsonMode bool) (*CallResult, error) {
	resp := s.responses[s.calls]
	s.calls++
	return resp.result, resp.err
}

func newFixtureRunner(t *testing.T, client Client) *Runner {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "routings"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "providers"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "active.yml"), []byte(`
routings:
  - routings/default.yml
providers: []
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "routings", "default.yml"), []byte(`
routes:
  extract.schema:
    model: gpt-4o
    provider: openai
    max_tokens: 4096
    prompt_file: extract_schema.md
    fallbacks:
      - model: claude-3-haiku
        provider: anthropic
        prompt_file: extract_schema.md
`), 0o644))

	routing, err := promptconfig.Load(dir)
	require.NoError(t, err)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.ExpectQuery("SELECT action_name, base_id, domain_id, org_id, reasoner_id FROM action_prompt_config").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT solution_id FROM project_action_config").
		WillReturnError(sql.ErrNoRows)

	st := store.NewStoreFromDB(db)
	promptDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(promptDir, "extract_schema.md"), []byte("Extract the schema."), 0o644))
	composer := prompt.New(st, promptDir)

	return NewRunner(routing, composer, client, nil)
}

func TestRunner_Execute_SucceedsOnPrimaryModel(t *testing.T) {
	client := &stubClient{responses: []stubResponse{
		{result: &CallResult{Success: true, Content: `{"nodes": [{"node_id": "a", "node_type": "TABLE"}], "edges": []}`, TokensIn: 100, TokensOut: 20}},
	}}
	runner := newFixtureRunner(t, client)

	outcome, err := runner.Execute(context.Background(), "extract.schema", "proj-1", "a.sql", "SELECT 1", nil, nil, "job1")
	require.NoError(t, err)
	require.Equal(t, "success", string(outcome.Status))
	require.False(t, outcome.FallbackUsed)
	require.Equal(t, "gpt-4o", *outcome.ModelUsed)
	require.Len(t, outcome.Result.Nodes, 1)
}

func TestRunner_Execute_FallsBackToSecondModelOnParseFailure(t *testing.T) {
	client := &stubClient{responses: []stubResponse{
		{result: &CallResult{Success: true, Content: "not json at all, sorry"}},
		{result: &CallResult{Success: true, Content: `{"nodes": [{"node_id": "a"}], "edges": []}`}},
	}}
	runner := newFixtureRunner(t, client)

	outcome, err := runner.Execute(context.Background(), "extract.schema", "proj-1", "a.sql", "SELECT 1", nil, nil, "job1")
	require.NoError(t, err)
	require.True(t, outcome.FallbackUsed)
	require.Equal(t, "claude-3-haiku", *outcome.ModelUsed)
}

func TestRunner_Execute_AllModelsExhausted(t *testing.T) {
	client := &stubClient{responses: []stubResponse{
		{err: context.DeadlineExceeded},
		{err: context.DeadlineExceeded},
	}}
	runner := newFixtureRunner(t, client)

	outcome, err := runner.Execute(context.Background(), "extract.schema", "proj-1", "a.sql", "SELECT 1", nil, nil, "job1")
	require.NoError(t, err)
	require.Equal(t, "fallback_exhausted", string(outcome.Status))
	require.Equal(t, []string{"gpt-4o", "claude-3-haiku"}, outcome.FallbackChain)
}

func TestRunner_CallWithBackoff_RetriesOnRateLimit(t *testing.T) {
	original := backoffSchedule
	backoffSchedule = []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}
	defer func() { backoffSchedule = original }()

	client := &stubClient{responses: []stubResponse{
		{err: ErrRateLimited},
		{result: &CallResult{Success: true, Content: `{"nodes": [], "edges": []}`}},
	}}
	runner := newFixtureRunner(t, client)

	outcome, err := runner.Execute(context.Background(), "extract.schema", "proj-1", "a.sql", "SELECT 1", nil, nil, "job1")
	require.NoError(t, err)
	require.Equal(t, "success", string(outcome.Status))
	require.Equal(t, 1, outcome.RetryCount)
}
