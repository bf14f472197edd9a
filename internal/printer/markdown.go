package printer

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

// Markdown converts the combined document body to markdown.
func Markdown(body template.HTML) (string, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}
	out, err := htmltomarkdown.ConvertNode(doc)
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	return strings.TrimSpace(string(out)) + "\n", nil
}

// MarkdownWriter prints documents as markdown to W.
type MarkdownWriter struct{ W io.Writer }

func (m MarkdownWriter) Print(_ context.Context, _ string, body template.HTML) error {
	md, err := Markdown(body)
	if err != nil {
		return err
	}
	_, err = io.WriteString(m.W, md)
	return err
}
