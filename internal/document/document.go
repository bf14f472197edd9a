// Package document builds the combined print document from typed nodes and
// renders it through a single template, so escaping happens in one place.
package document

import (
	"bytes"
	"html/template"
	"strings"
)

type Node interface{ isNode() }

// Heading is escaped text at level 1–3.
type Heading struct {
	Level int
	Text  string
}

// Fragment is trusted, already sanitized HTML.
type Fragment struct {
	HTML template.HTML
}

// Block is a container element with classes.
type Block struct {
	Classes  []string
	Children []Node
}

func (Heading) isNode()  {}
func (Fragment) isNode() {}
func (Block) isNode()    {}

type Document struct {
	Title string
	Nodes []Node
}

func (d *Document) Add(nodes ...Node) { d.Nodes = append(d.Nodes, nodes...) }

// Blocks returns the top level blocks in order.
func (d Document) Blocks() []Block {
	var out []Block
	for _, n := range d.Nodes {
		if b, ok := n.(Block); ok {
			out = append(out, b)
		}
	}
	return out
}

func (b Block) HasClass(c string) bool {
	for _, x := range b.Classes {
		if x == c {
			return true
		}
	}
	return false
}

var nodeTmpl = template.Must(template.New("nodes").Funcs(template.FuncMap{
	"heading":  func(n Node) *Heading { h, ok := n.(Heading); return ptrIf(h, ok) },
	"fragment": func(n Node) *Fragment { f, ok := n.(Fragment); return ptrIf(f, ok) },
	"asBlock":  func(n Node) *Block { b, ok := n.(Block); return ptrIf(b, ok) },
	"classes":  func(c []string) string { return strings.Join(c, " ") },
}).Parse(`{{define "node"}}
{{- with heading .}}{{if eq .Level 1}}<h1>{{.Text}}</h1>{{else if eq .Level 2}}<h2>{{.Text}}</h2>{{else}}<h3>{{.Text}}</h3>{{end}}{{end}}
{{- with fragment .}}{{.HTML}}{{end}}
{{- with asBlock .}}<div class="{{classes .Classes}}">{{range .Children}}{{template "node" .}}{{end}}</div>{{end}}
{{- end}}{{range .}}{{template "node" .}}{{end}}`))

func ptrIf[T any](v T, ok bool) *T {
	if !ok {
		return nil
	}
	return &v
}

// Render renders the nodes of d as an HTML fragment.
func Render(d Document) (template.HTML, error) {
	var buf bytes.Buffer
	if err := nodeTmpl.Execute(&buf, d.Nodes); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
