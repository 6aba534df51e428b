package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplateSubstitutes(t *testing.T) {
	out, err := RenderTemplate("Title: {{.title}}", map[string]any{"title": "Voyage"})
	require.NoError(t, err)
	assert.Equal(t, "Title: Voyage", out)
}

func TestRenderTemplatePlainTextFastPath(t *testing.T) {
	out, err := RenderTemplate("no markers here", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers here", out)
}

func TestRenderTemplateDefaultFunc(t *testing.T) {
	tmpl := `Genre: {{default "unspecified" .genre}}`

	out, err := RenderTemplate(tmpl, map[string]any{"genre": "mystery"})
	require.NoError(t, err)
	assert.Equal(t, "Genre: mystery", out)

	out, err = RenderTemplate(tmpl, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Genre: unspecified", out)

	out, err = RenderTemplate(tmpl, map[string]any{"genre": ""})
	require.NoError(t, err)
	assert.Equal(t, "Genre: unspecified", out)
}

func TestRenderTemplateCaseFuncs(t *testing.T) {
	out, err := RenderTemplate("{{upper .a}} {{lower .b}}", map[string]any{"a": "loud", "b": "QUIET"})
	require.NoError(t, err)
	assert.Equal(t, "LOUD quiet", out)
}

func TestRenderTemplateJoin(t *testing.T) {
	out, err := RenderTemplate(`{{join ", " .items}}`, map[string]any{"items": []any{"a", "b", 3}})
	require.NoError(t, err)
	assert.Equal(t, "a, b, 3", out)
}

func TestRenderTemplateParseError(t *testing.T) {
	_, err := RenderTemplate("{{.title", nil)
	assert.Error(t, err)
}
