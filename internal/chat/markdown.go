package chat

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// renderer converts message markdown to HTML. Raw HTML is let through here
// and stripped by the sanitizer afterwards, so nothing outside the
// allow-list ever reaches a client.
var renderer = goldmark.New(
	goldmark.WithExtensions(extension.Table, extension.Strikethrough),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
		html.WithUnsafe(),
	),
)

var sanitizer = buildSanitizer()

func buildSanitizer() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "strong", "em", "u", "s", "code", "pre",
		"blockquote", "ul", "ol", "li", "a", "img", "table",
		"thead", "tbody", "tr", "th", "td", "h1", "h2", "h3",
		"h4", "h5", "h6",
	)
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("src", "alt", "title").OnElements("img")
	p.AllowAttrs("class").OnElements("code")
	p.AllowStandardURLs()
	return p
}

// RenderContent turns raw markdown into sanitized HTML.
func RenderContent(source string) (string, error) {
	var buf bytes.Buffer
	if err := renderer.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return strings.TrimSpace(sanitizer.Sanitize(buf.String())), nil
}
