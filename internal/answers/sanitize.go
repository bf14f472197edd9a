package answers

import (
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// placeholders are what an untouched editor reports as its document.
var placeholders = map[string]bool{
	"":                true,
	"<p><br></p>":     true,
	"<p><br/></p>":    true,
	"<p></p>":         true,
	"<p><br /></p>":   true,
	"<div><br></div>": true,
}

// IsPlaceholder reports whether html is an empty editor document.
func IsPlaceholder(html string) bool {
	return placeholders[strings.TrimSpace(html)]
}

// outputPolicy allows what the answer editor can produce: inline emphasis,
// paragraphs, Quill lists and classes, and pasted images as data URIs.
var outputPolicy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowDataURIImages()
	p.AllowAttrs("data-list").Matching(regexp.MustCompile(`^(bullet|ordered|checked|unchecked)$`)).OnElements("li")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^(ql-[a-z0-9-]+\s*)+$`)).
		OnElements("p", "span", "strong", "em", "u", "s", "li", "ol", "ul", "img", "h1", "h2", "h3", "blockquote", "pre")
	return p
}

// Sanitize makes stored answer HTML safe to embed in a page. Answers are
// stored as submitted; this runs wherever they are emitted.
func Sanitize(html string) template.HTML {
	return template.HTML(outputPolicy.Sanitize(html))
}
