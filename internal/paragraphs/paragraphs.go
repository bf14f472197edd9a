// Package paragraphs captures the reading paragraphs passed to the answer
// page as p1, p2, ... request parameters and renders them for screen and print.
package paragraphs

import (
	"bytes"
	"context"
	"encoding/json"
	"html/template"
	"net/url"
	"regexp"
	"sort"
	"strconv"
)

var paramPattern = regexp.MustCompile(`^p(\d+)$`)

type Paragraph struct {
	Key   string // request parameter name, e.g. "p10"
	Index int
	Text  string
}

// Set is a paragraph set ordered by numeric index.
type Set []Paragraph

// Saver persists a captured set for one (assignment, sub-assignment) pair.
type Saver interface {
	SaveParagraphs(ctx context.Context, assignmentID, subID string, set Set)
}

// FromValues builds a set from every parameter named p<digits>. When a
// parameter repeats, the last value wins. Indices need not be contiguous.
func FromValues(values url.Values) Set {
	set := make(Set, 0, len(values))
	for name, vs := range values {
		if len(vs) == 0 {
			continue
		}
		p, ok := newParagraph(name, vs[len(vs)-1])
		if !ok {
			continue
		}
		set = append(set, p)
	}
	set.sort()
	return set
}

// Capture extracts the set from values and persists it when it is not empty.
func Capture(ctx context.Context, s Saver, assignmentID, subID string, values url.Values) Set {
	if assignmentID == "" || subID == "" {
		return nil
	}
	set := FromValues(values)
	if len(set) > 0 {
		s.SaveParagraphs(ctx, assignmentID, subID, set)
	}
	return set
}

func newParagraph(key, text string) (Paragraph, bool) {
	m := paramPattern.FindStringSubmatch(key)
	if m == nil {
		return Paragraph{}, false
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil {
		return Paragraph{}, false
	}
	return Paragraph{Key: key, Index: idx, Text: text}, true
}

func (s Set) sort() {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Index != s[j].Index {
			return s[i].Index < s[j].Index
		}
		return s[i].Key < s[j].Key
	})
}

// MarshalJSON stores the set as {"p1": "...", "p2": "..."}.
func (s Set) MarshalJSON() ([]byte, error) {
	m := make(map[string]string, len(s))
	for _, p := range s {
		m[p.Key] = p.Text
	}
	return json.Marshal(m)
}

func (s *Set) UnmarshalJSON(b []byte) error {
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	out := make(Set, 0, len(m))
	for k, v := range m {
		if p, ok := newParagraph(k, v); ok {
			out = append(out, p)
		}
	}
	out.sort()
	*s = out
	return nil
}

var containerTmpl = template.Must(template.New("paragraphs").Parse(
	`<div class="{{.Class}}">{{range .Items}}<p>{{.}}</p>{{end}}</div>`))

const (
	ScreenClass = "paragraphs-container"
	PrintClass  = "paragraphs-print"
)

// RenderScreen renders the info panel variant.
func RenderScreen(s Set) template.HTML { return render(ScreenClass, s) }

// RenderPrint renders the print variant. Content and order are identical to
// RenderScreen; only the container class differs.
func RenderPrint(s Set) template.HTML { return render(PrintClass, s) }

func render(class string, s Set) template.HTML {
	if len(s) == 0 {
		return ""
	}
	items := make([]template.HTML, 0, len(s))
	for _, p := range s {
		items = append(items, Markdown(p.Text))
	}
	var buf bytes.Buffer
	if err := containerTmpl.Execute(&buf, struct {
		Class string
		Items []template.HTML
	}{class, items}); err != nil {
		return ""
	}
	return template.HTML(buf.String())
}
