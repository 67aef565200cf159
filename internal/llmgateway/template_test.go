package llmgateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesAllPlaceholders(t *testing.T) {
	out, err := Render("Write a {genre} story about {subject}.", map[string]string{
		"genre":   "mystery",
		"subject": "a missing lighthouse keeper",
	})
	require.NoError(t, err)
	assert.Equal(t, "Write a mystery story about a missing lighthouse keeper.", out)
}

func TestRenderFailsOnMissingVariable(t *testing.T) {
	_, err := Render("Title: {title}", map[string]string{})
	require.Error(t, err)

	var tmplErr *TemplateError
	require.ErrorAs(t, err, &tmplErr)
	assert.Equal(t, "title", tmplErr.Missing)
}

func TestRenderLeavesPlainTextUntouched(t *testing.T) {
	out, err := Render("no placeholders here", nil)
	require.NoError(t, err)
	assert.Equal(t, "no placeholders here", out)
}
