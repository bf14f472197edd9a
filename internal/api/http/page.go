package http

import (
	_ "embed"
	"html/template"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-answerbook/internal/answers"
	"github.com/mind-engage/mindengage-answerbook/internal/autosave"
	"github.com/mind-engage/mindengage-answerbook/internal/keys"
	"github.com/mind-engage/mindengage-answerbook/internal/paragraphs"
	"github.com/mind-engage/mindengage-answerbook/internal/printer"
)

//go:embed answer.html.tmpl
var answerPageSource string

const (
	// NoticePasteImagesOnly is shown when anything but an image is pasted into the editor.
	NoticePasteImagesOnly = "Das Einfügen von Text ist deaktiviert. Sie können nur Bilder einfügen."
	EditorPlaceholder     = "Gib hier deinen Text ein..."
)

var answerPage = template.Must(template.New("answer").Parse(answerPageSource))

type answerPageData struct {
	Title         string
	AssignmentID  string
	SubID         string
	Content       string
	Paragraphs    template.HTML
	AnswersURL    string
	PrintURL      string
	BlockedNotice string
	PasteNotice   string
	Placeholder   string
}

// AnswerPageHandler serves the editor page for ?assignmentId=&subIds=. The
// p1..pN parameters of the request are stored as the paragraph set of the
// pair and shown above the editor.
func AnswerPageHandler(a *answers.Adapter, d *autosave.Debouncer, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		aid, sid := q.Get("assignmentId"), q.Get("subIds")

		set := paragraphs.Capture(r.Context(), a, aid, sid, q)
		if len(set) == 0 && aid != "" && sid != "" {
			// reloads without parameters show what was captured earlier
			set = a.LoadParagraphs(r.Context(), aid, sid)
		}

		data := answerPageData{
			AssignmentID:  aid,
			SubID:         sid,
			Paragraphs:    paragraphs.RenderScreen(set),
			AnswersURL:    "/api/answers",
			PrintURL:      "/print?" + url.Values{"assignmentId": {aid}}.Encode(),
			BlockedNotice: printer.NoticeWindowBlocked,
			PasteNotice:   NoticePasteImagesOnly,
			Placeholder:   EditorPlaceholder,
		}
		if aid != "" {
			data.Title = keys.DisplaySuffix(aid)
		}
		if aid != "" && sid != "" {
			if html, ok := d.Pending(aid, sid); ok {
				data.Content = string(answers.Sanitize(html))
			} else if html, found, err := a.Load(r.Context(), aid, sid); err != nil {
				// the editor still opens; the next save goes through
				log.Warn("load answer failed", zap.String("assignment", aid), zap.String("sub", sid), zap.Error(err))
			} else if found {
				data.Content = string(answers.Sanitize(html))
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := answerPage.Execute(w, data); err != nil {
			log.Error("render answer page", zap.Error(err))
		}
	}
}
