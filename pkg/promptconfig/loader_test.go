package promptconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "routings"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "providers"), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "active.yml"), []byte(`
routings:
  - routings/default.yml
providers:
  - providers/default.yml
`), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "routings", "default.yml"), []byte(`
routes:
  extract.schema:
    model: gpt-4o
    provider: openai
    temperature: 0.1
    max_tokens: 4096
    prompt_file: extract_schema.md
    fallbacks:
      - model: claude-3-haiku
        provider: anthropic
        prompt_file: extract_schema.md
`), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "providers", "default.yml"), []byte(`
providers:
  openai:
    type: openai
    api_key_env: OPENAI_API_KEY
  anthropic:
    type: anthropic
    api_key_env: ANTHROPIC_API_KEY
`), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "routings", "economy.yml"), []byte(`
routes:
  extract.schema:
    model: llama3-8b
    provider: groq
    max_tokens: 2048
    prompt_file: extract_schema.md
`), 0o644))
}

func TestLoad_ResolvesActiveRoutingsAndProviders(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)

	registry, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 1, registry.Len())

	route, err := registry.Route("extract.schema")
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", route.Primary.Model)
	require.Len(t, route.Fallbacks, 1)
	require.Equal(t, "claude-3-haiku", route.Fallbacks[0].Model)

	provider, err := registry.Provider("openai")
	require.NoError(t, err)
	require.Equal(t, "OPENAI_API_KEY", provider.APIKeyEnv)

	_, err = registry.Route("missing.action")
	require.ErrorIs(t, err, ErrActionNotFound)
}

func TestLoad_EconomyModeOverridesActiveRouting(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)

	t.Setenv(EnvEconomyMode, "true")

	registry, err := Load(dir)
	require.NoError(t, err)

	route, err := registry.Route("extract.schema")
	require.NoError(t, err)
	require.Equal(t, "llama3-8b", route.Primary.Model)
	require.Equal(t, "groq", route.Primary.Provider)
}

func TestLoad_MissingActiveYAML(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.Error(t, err)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestMergeRoutes_OverrideWins(t *testing.T) {
	base := map[string]ActionRoute{
		"extract.schema": {Primary: ModelConfig{Model: "gpt-4o", MaxTokens: 4096}},
	}
	override := map[string]ActionRoute{
		"extract.schema": {Primary: ModelConfig{Model: "gpt-4o-mini"}},
	}

	merged, err := mergeRoutes(base, override)
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", merged["extract.schema"].Primary.Model)
}
