package promptconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatch_ReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)

	registry, err := Load(dir)
	require.NoError(t, err)
	route, err := registry.Route("extract.schema")
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", route.Primary.Model)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = Watch(ctx, dir, registry)
	}()

	// Give the watcher time to register its fsnotify handles before
	// mutating the file, avoiding a missed first event.
	time.Sleep(100 * time.Millisecond)

	updated := `
routes:
  extract.schema:
    model: gpt-4o-mini
    provider: openai
    max_tokens: 4096
    prompt_file: extract_schema.md
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "routings", "default.yml"), []byte(updated), 0o644))

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		route, err := registry.Route("extract.schema")
		if err == nil && route.Primary.Model == "gpt-4o-mini" {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("registry was not reloaded within the deadline")
}
