package http

import (
	"bytes"
	"context"
	"errors"
	"mime"
	"net/http"

	"github.com/mind-engage/mindengage-answerbook/internal/aggregate"
	"github.com/mind-engage/mindengage-answerbook/internal/autosave"
	"github.com/mind-engage/mindengage-answerbook/internal/keys"
	"github.com/mind-engage/mindengage-answerbook/internal/printer"
)

// flushed saves pending edits so prints include the latest state.
func flushed(ctx context.Context, d *autosave.Debouncer) {
	if d != nil {
		d.Flush(ctx)
	}
}

// printError writes the user notice for err.
func printError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, aggregate.ErrNothingFound):
		http.Error(w, aggregate.NoticeNothingFound, http.StatusNotFound)
	case errors.Is(err, printer.ErrNoChrome):
		http.Error(w, "PDF export is not available on this server", http.StatusNotImplemented)
	case errors.Is(err, printer.ErrWindowBlocked):
		http.Error(w, printer.NoticeWindowBlocked, http.StatusConflict)
	default:
		http.Error(w, err.Error(), statusFor(err))
	}
}

func attachment(w http.ResponseWriter, assignmentID, ext string) {
	name := keys.DisplaySuffix(assignmentID)
	if name == "" {
		name = aggregate.DefaultAssignID
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name + ext}))
}

// PrintHandler renders the combined print page for ?assignmentId=.
func PrintHandler(agg *aggregate.Aggregator, d *autosave.Debouncer, page printer.PageOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		aid := r.URL.Query().Get("assignmentId")
		flushed(r.Context(), d)

		// render into a buffer so a failure still gets its notice
		var buf bytes.Buffer
		rnd := printer.New(printer.Writer(&buf), printer.WithPageOptions(page))
		if err := agg.Print(r.Context(), aid, rnd); err != nil {
			printError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = buf.WriteTo(w)
	}
}

// ExportMarkdownHandler returns the combined document as markdown.
func ExportMarkdownHandler(agg *aggregate.Aggregator, d *autosave.Debouncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		aid := r.URL.Query().Get("assignmentId")
		flushed(r.Context(), d)

		var buf bytes.Buffer
		if err := agg.Print(r.Context(), aid, printer.MarkdownWriter{W: &buf}); err != nil {
			printError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		attachment(w, aid, ".md")
		_, _ = buf.WriteTo(w)
	}
}

// ExportPDFHandler renders the print page with headless Chrome.
func ExportPDFHandler(agg *aggregate.Aggregator, d *autosave.Debouncer, c *printer.Chrome, page printer.PageOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		aid := r.URL.Query().Get("assignmentId")
		if c == nil || !c.Available() {
			printError(w, printer.ErrNoChrome)
			return
		}
		flushed(r.Context(), d)

		page.AutoPrint = false
		var buf bytes.Buffer
		if err := agg.Print(r.Context(), aid, printer.New(printer.PDF(c, &buf), printer.WithPageOptions(page))); err != nil {
			printError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		attachment(w, aid, ".pdf")
		_, _ = buf.WriteTo(w)
	}
}
