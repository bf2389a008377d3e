package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// loadFallback reads the filesystem prompt file for action, trying ".md"
// then ".txt" against prompts/{action_with_dots_as_underscores}.
func (c *Composer) loadFallback(action string) (string, error) {
	base := strings.ReplaceAll(action, ".", "_")
	for _, ext := range []string{".md", ".txt"} {
		path := filepath.Join(c.fallbackDir, base+ext)
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("read fallback prompt %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("no prompt layers and no fallback file for action %q in %s", action, c.fallbackDir)
}
