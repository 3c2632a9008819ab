package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "news_scrape", artifactName("News Scrape"))
	assert.Equal(t, "already-safe_1", artifactName("already-safe_1"))
	assert.Equal(t, "workflow", artifactName("///"))
}

func TestWriteRunOutput(t *testing.T) {
	dir := t.TempDir()

	path, err := writeRunOutput(dir, "My Run", []any{
		map[string]any{"href": "https://example.com/a"},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "my_run_output.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://example.com/a")
}

func TestWriteSaveFileJSONDefault(t *testing.T) {
	dir := t.TempDir()

	path, err := writeSaveFile(dir, "", "json", map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, ".json", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"k": "v"}`, string(data))
}

func TestRenderMarkdownLayout(t *testing.T) {
	out := renderMarkdown(map[string]any{
		"title":            "Hello",
		"date":             "2024-05-01",
		"url":              "https://example.com/p",
		"content_markdown": "Body text.",
	})

	assert.Equal(t, "# Hello\n\nDate: 2024-05-01\n\nURL: https://example.com/p\n\nBody text.\n", out)
}

func TestRenderMarkdownDefaultsTitle(t *testing.T) {
	out := renderMarkdown(map[string]any{"content": "Just body."})
	assert.Contains(t, out, "# Untitled")
	assert.Contains(t, out, "Just body.")
}

func TestRenderMarkdownNonRecordData(t *testing.T) {
	assert.Equal(t, "plain\n", renderMarkdown("plain"))
}
