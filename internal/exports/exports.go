// Package exports renders combined print documents into the blob store.
package exports

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-answerbook/internal/aggregate"
	"github.com/mind-engage/mindengage-answerbook/internal/printer"
	"github.com/mind-engage/mindengage-answerbook/internal/storage"
)

type Format string

const (
	HTML     Format = "html"
	Markdown Format = "md"
	PDF      Format = "pdf"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", HTML:
		return HTML, nil
	case Markdown, PDF:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ContentType is the media type stored exports of f are served with.
func (f Format) ContentType() string {
	switch f {
	case Markdown:
		return "text/markdown; charset=utf-8"
	case PDF:
		return "application/pdf"
	}
	return "text/html; charset=utf-8"
}

type Exporter struct {
	Aggregator *aggregate.Aggregator
	Blobs      storage.BlobStore
	Chrome     *printer.Chrome
	Page       printer.PageOptions
	Now        func() time.Time
}

// Key is the blob key of an export of assignmentID rendered at t.
func Key(assignmentID string, f Format, t time.Time) string {
	if assignmentID == "" {
		assignmentID = aggregate.DefaultAssignID
	}
	return "exports/" + assignmentID + "/" + t.UTC().Format("20060102T150405.000Z") + "." + string(f)
}

// Export renders the document of assignmentID in format f, stores it and
// returns its key.
func (e *Exporter) Export(ctx context.Context, assignmentID string, f Format) (string, error) {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	key := Key(assignmentID, f, now())

	page := e.Page
	var buf bytes.Buffer
	var p aggregate.Printer
	switch f {
	case HTML:
		p = printer.New(printer.Blob(e.Blobs, key), printer.WithPageOptions(page))
	case Markdown:
		p = printer.MarkdownWriter{W: &buf}
	case PDF:
		page.AutoPrint = false
		p = printer.New(printer.PDF(e.Chrome, &buf), printer.WithPageOptions(page))
	default:
		return "", fmt.Errorf("unknown export format %q", f)
	}

	if err := e.Aggregator.Print(ctx, assignmentID, p); err != nil {
		return "", err
	}
	if f == HTML {
		return key, nil
	}
	return e.Blobs.Put(key, &buf)
}
