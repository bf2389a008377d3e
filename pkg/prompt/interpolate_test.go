package prompt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterpolate_ReplacesKnownKeysOnly(t *testing.T) {
	template := `Hello {{name}}, your payload is {"nodes": [], "count": {{count}}}. See {{undefined}}.`
	vars := map[string]string{"name": "Ada", "count": "3"}

	got := Interpolate(template, vars)
	require.Equal(t, `Hello Ada, your payload is {"nodes": [], "count": 3}. See {{undefined}}.`, got)
}

func TestInterpolate_NoVarsReturnsTemplateUnchanged(t *testing.T) {
	template := `{"a": 1}`
	require.Equal(t, template, Interpolate(template, nil))
}

func TestInterpolate_PreservesJSONBraces(t *testing.T) {
	template := `{"key": "value", "nested": {"inner": true}}`
	require.Equal(t, template, Interpolate(template, map[string]string{"unrelated": "x"}))
}
