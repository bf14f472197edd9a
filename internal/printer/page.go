// Package printer renders the combined answer document as a self-contained,
// paginated print page and delivers it to a target: an HTTP response, a file
// in the blob store, or a PDF rendered by headless Chrome.
package printer

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"time"
)

const (
	DefaultTitle      = "Alle Antworten"
	DefaultLineHeight = "1.4em"
	DefaultLineColor  = "#d2d2d2"
	DefaultDelay      = 500 * time.Millisecond

	// answer areas are at least this many ruled lines tall
	minAnswerLines = 22
)

//go:embed print.html.tmpl
var pageSource string

var pageTmpl = template.Must(template.New("print").Parse(pageSource))

// PageOptions controls the look of the print page.
type PageOptions struct {
	LineHeight string
	LineColor  string
	// Delay lets layout settle before the print dialog opens.
	Delay time.Duration
	// AutoPrint embeds the script that opens the print dialog.
	AutoPrint bool
}

func DefaultPageOptions() PageOptions {
	return PageOptions{
		LineHeight: DefaultLineHeight,
		LineColor:  DefaultLineColor,
		Delay:      DefaultDelay,
		AutoPrint:  true,
	}
}

type pageData struct {
	Title           string
	Body            template.HTML
	LineHeight      template.CSS
	MinAnswerHeight template.CSS
	Rules           template.CSS
	AutoPrint       bool
	DelayMillis     int64
}

// Page writes the full print document for body to w.
func Page(w io.Writer, title string, body template.HTML, opts PageOptions) error {
	if title == "" {
		title = DefaultTitle
	}
	if opts.LineHeight == "" {
		opts.LineHeight = DefaultLineHeight
	}
	if opts.LineColor == "" {
		opts.LineColor = DefaultLineColor
	}
	lh, color := opts.LineHeight, opts.LineColor

	data := pageData{
		Title:           title,
		Body:            body,
		LineHeight:      template.CSS(lh),
		MinAnswerHeight: template.CSS(fmt.Sprintf("calc(%d * %s)", minAnswerLines, lh)),
		Rules: template.CSS(fmt.Sprintf(
			"repeating-linear-gradient(to bottom,transparent 0,transparent calc(%[1]s - 1px),%[2]s calc(%[1]s - 1px),%[2]s %[1]s)",
			lh, color)),
		AutoPrint:   opts.AutoPrint,
		DelayMillis: opts.Delay.Milliseconds(),
	}
	if err := pageTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render print page: %w", err)
	}
	return nil
}
