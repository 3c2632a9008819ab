// File: internal/extract/markdown.go
package extract

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"go.uber.org/zap"
)

// newMarkdownConverter builds the shared HTML to markdown converter.
func newMarkdownConverter() *md.Converter {
	return md.NewConverter("", true, nil)
}

// toMarkdown converts an HTML fragment to markdown. Conversion faults are
// logged and yield an empty string; extraction never hard-fails on a
// rendering problem.
func (e *Extractor) toMarkdown(htmlContent string) string {
	if strings.TrimSpace(htmlContent) == "" {
		return ""
	}
	out, err := e.md.ConvertString(htmlContent)
	if err != nil {
		e.logger.Warn("Markdown conversion failed.", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(out)
}
