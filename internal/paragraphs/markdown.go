package paragraphs

import (
	"html"
	"html/template"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	boldMarkers   = []string{"**", "__"}
	italicMarkers = []string{"*", "_"}
)

// Markdown converts the emphasis subset used in paragraph texts to HTML.
// The text is escaped first; then **x** / __x__ become <strong> and *x* / _x_
// become <em>. The characters directly inside a marker pair must not be
// whitespace, matches never span a line break, and unmatched markers are
// left as they are. Nothing else of markdown is supported.
func Markdown(text string) template.HTML {
	if text == "" {
		return ""
	}
	out := html.EscapeString(text)
	out = emphasize(out, boldMarkers, "strong")
	out = emphasize(out, italicMarkers, "em")
	return template.HTML(out)
}

func emphasize(s string, markers []string, tag string) string {
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		matched := false
		for _, m := range markers {
			if !strings.HasPrefix(s[i:], m) {
				continue
			}
			start := i + len(m)
			if end, ok := closing(s, start, m); ok {
				b.WriteString("<" + tag + ">")
				b.WriteString(s[start:end])
				b.WriteString("</" + tag + ">")
				i = end + len(m)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

// closing finds the nearest closing marker for an opening marker that ends
// at start, or reports false. Empty runs such as "****" are not emphasis.
func closing(s string, start int, m string) (int, bool) {
	if start >= len(s) {
		return 0, false
	}
	if r, _ := utf8.DecodeRuneInString(s[start:]); unicode.IsSpace(r) {
		return 0, false
	}
	for j := start; j < len(s); j++ {
		if c := s[j]; c == '\n' || c == '\r' {
			return 0, false
		}
		if j == start || !strings.HasPrefix(s[j:], m) {
			continue
		}
		if r, _ := utf8.DecodeLastRuneInString(s[:j]); !unicode.IsSpace(r) {
			return j, true
		}
	}
	return 0, false
}
