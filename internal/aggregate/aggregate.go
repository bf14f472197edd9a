// Package aggregate collects every answered or prepared sub-assignment of an
// assignment and builds the combined print document.
package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/mind-engage/mindengage-answerbook/internal/answers"
	"github.com/mind-engage/mindengage-answerbook/internal/document"
	"github.com/mind-engage/mindengage-answerbook/internal/keys"
	"github.com/mind-engage/mindengage-answerbook/internal/metrics"
	"github.com/mind-engage/mindengage-answerbook/internal/paragraphs"
	syncx "github.com/mind-engage/mindengage-answerbook/internal/sync"
)

const (
	// NoticeNothingFound is shown when an assignment has nothing to print.
	NoticeNothingFound = "Keine gespeicherten Themen für dieses Kapitel gefunden."

	BlockClass      = "sub-assignment-block"
	NewPageClass    = "new-page"
	LinedClass      = "lined-content"
	TopicLabel      = "Thema: "
	AnswerPrompt    = template.HTML("<p><em>Antworten:</em></p>")
	DefaultAssignID = "defaultAssignment"
)

var ErrNothingFound = errors.New("aggregate: no stored topics for assignment")

// Source is the storage the aggregator reads; *answers.Adapter satisfies it.
type Source interface {
	EnumerateAnswers(ctx context.Context, assignmentID string) (map[string]string, error)
	EnumerateParagraphSubIDs(ctx context.Context, assignmentID string) (map[string]struct{}, error)
	LoadParagraphs(ctx context.Context, assignmentID, subID string) paragraphs.Set
}

// Printer renders a finished document; see internal/printer.
type Printer interface {
	Print(ctx context.Context, title string, body template.HTML) error
}

type Journal interface {
	Append(ctx context.Context, e syncx.Event) error
}

// Collection is the merged, ordered view of one assignment.
type Collection struct {
	AssignmentID string
	Title        string
	SubIDs       []string
	Answers      map[string]string
}

type Aggregator struct {
	src     Source
	journal Journal
	log     *zap.Logger
}

type Option func(*Aggregator)

func WithJournal(j Journal) Option    { return func(a *Aggregator) { a.journal = j } }
func WithLogger(l *zap.Logger) Option { return func(a *Aggregator) { a.log = l } }

func New(src Source, opts ...Option) *Aggregator {
	a := &Aggregator{src: src, log: zap.NewNop()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Collect merges the sub-assignments with answers (from the active backend)
// and those with paragraph sets (always local), sorted naturally.
func (a *Aggregator) Collect(ctx context.Context, assignmentID string) (Collection, error) {
	if assignmentID == "" {
		assignmentID = DefaultAssignID
	}
	answered, err := a.src.EnumerateAnswers(ctx, assignmentID)
	if err != nil {
		return Collection{}, fmt.Errorf("enumerate answers: %w", err)
	}
	withParagraphs, err := a.src.EnumerateParagraphSubIDs(ctx, assignmentID)
	if err != nil {
		return Collection{}, fmt.Errorf("enumerate paragraphs: %w", err)
	}

	set := make(map[string]struct{}, len(answered)+len(withParagraphs))
	for sid := range answered {
		set[sid] = struct{}{}
	}
	for sid := range withParagraphs {
		set[sid] = struct{}{}
	}
	if len(set) == 0 {
		return Collection{}, ErrNothingFound
	}

	subIDs := make([]string, 0, len(set))
	for sid := range set {
		subIDs = append(subIDs, sid)
	}
	SortNatural(subIDs)

	return Collection{
		AssignmentID: assignmentID,
		Title:        keys.DisplaySuffix(assignmentID),
		SubIDs:       subIDs,
		Answers:      answered,
	}, nil
}

// Build turns the collection into the combined document. Sub-assignments
// with neither paragraphs nor an answer are left out; every block after the
// first starts a new page.
func (a *Aggregator) Build(ctx context.Context, assignmentID string) (document.Document, error) {
	c, err := a.Collect(ctx, assignmentID)
	if err != nil {
		return document.Document{}, err
	}

	doc := document.Document{Title: c.Title}
	doc.Add(document.Heading{Level: 2, Text: c.Title})

	emitted := 0
	for _, sid := range c.SubIDs {
		answer := answers.Sanitize(c.Answers[sid])
		paras := paragraphs.RenderPrint(a.src.LoadParagraphs(ctx, c.AssignmentID, sid))
		if answer == "" && paras == "" {
			continue
		}

		classes := []string{BlockClass}
		if emitted > 0 {
			classes = append(classes, NewPageClass)
		}
		block := document.Block{Classes: classes}
		block.Children = append(block.Children, document.Heading{Level: 3, Text: TopicLabel + sid})
		if paras != "" {
			block.Children = append(block.Children, document.Fragment{HTML: paras})
		}
		if answer == "" {
			answer = AnswerPrompt
		}
		block.Children = append(block.Children, document.Block{
			Classes:  []string{LinedClass},
			Children: []document.Node{document.Fragment{HTML: answer}},
		})
		doc.Add(block)
		emitted++
	}
	return doc, nil
}

// Print builds the document and hands it to p under the assignment's title.
func (a *Aggregator) Print(ctx context.Context, assignmentID string, p Printer) error {
	doc, err := a.Build(ctx, assignmentID)
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrNothingFound) {
			outcome = "empty"
		}
		metrics.PrintCounter.WithLabelValues(outcome).Inc()
		return err
	}
	body, err := document.Render(doc)
	if err != nil {
		metrics.PrintCounter.WithLabelValues("error").Inc()
		return fmt.Errorf("render document: %w", err)
	}
	if err := p.Print(ctx, doc.Title, body); err != nil {
		metrics.PrintCounter.WithLabelValues("failed").Inc()
		return err
	}
	metrics.PrintCounter.WithLabelValues("ok").Inc()

	if a.journal != nil {
		data, _ := json.Marshal(map[string]int{"blocks": len(doc.Blocks())})
		if err := a.journal.Append(ctx, syncx.Event{Type: syncx.TypePrintRendered, Key: assignmentID, DataJSON: string(data)}); err != nil {
			a.log.Warn("journal append failed", zap.String("assignment", assignmentID), zap.Error(err))
		}
	}
	return nil
}

// SortNatural orders sub-assignment ids the way a reader expects: digit runs
// compare numerically ("2" before "10"), case and accents are ignored.
func SortNatural(ids []string) {
	c := collate.New(language.Und, collate.Numeric, collate.IgnoreCase, collate.IgnoreDiacritics)
	sort.SliceStable(ids, func(i, j int) bool {
		if r := c.CompareString(ids[i], ids[j]); r != 0 {
			return r < 0
		}
		return ids[i] < ids[j]
	})
}
