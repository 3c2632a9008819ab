// File: internal/workflow/output.go
// Artifact writing for save actions and the end-of-run data dump.
package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// artifactName turns a workflow or file name into a filesystem-safe slug.
func artifactName(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "_")
	slug = unsafeNameChars.ReplaceAllString(slug, "")
	if slug == "" {
		slug = "workflow"
	}
	return slug
}

// writeRunOutput dumps the accumulated run data as pretty-printed JSON named
// after the workflow.
func writeRunOutput(dir, workflowName string, data []any) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, artifactName(workflowName)+"_output.json")

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding run output: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return "", fmt.Errorf("writing run output: %w", err)
	}
	return path, nil
}

// writeSaveFile persists one save action's data in the requested format.
func writeSaveFile(dir, filename, format string, data any) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	format = strings.ToLower(strings.TrimSpace(format))
	extension := "json"
	if format == "markdown" || format == "md" {
		extension = "md"
	}
	if filename == "" {
		filename = fmt.Sprintf("output_%d.%s", time.Now().UnixNano(), extension)
	}
	path := filepath.Join(dir, filename)

	var payload []byte
	if extension == "md" {
		payload = []byte(renderMarkdown(data))
	} else {
		encoded, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding save data: %w", err)
		}
		payload = encoded
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("writing save file: %w", err)
	}
	return path, nil
}

// renderMarkdown lays a record out as a readable document: title heading,
// date and source lines, then the body.
func renderMarkdown(data any) string {
	record, ok := data.(map[string]any)
	if !ok {
		return fmt.Sprintf("%v\n", data)
	}

	var b strings.Builder
	title := stringField(record, "title")
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	if date := stringField(record, "date"); date != "" {
		fmt.Fprintf(&b, "Date: %s\n\n", date)
	}
	if source := stringField(record, "url"); source != "" {
		fmt.Fprintf(&b, "URL: %s\n\n", source)
	}

	body := stringField(record, "content_markdown")
	if body == "" {
		body = stringField(record, "content")
	}
	if body != "" {
		b.WriteString(body)
		b.WriteString("\n")
	}
	return b.String()
}

func stringField(record map[string]any, key string) string {
	value, _ := record[key].(string)
	return strings.TrimSpace(value)
}
