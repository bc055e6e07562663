// Package assets bundles the page template, styles and client script and
// renders them into the minified page served at the root.
package assets

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

//go:embed index.html.tpl style.css script.js favicon.svg
var files embed.FS

// PageData fills the page template.
type PageData struct {
	Title       string
	Attribution string
	CSS         template.CSS
	JS          template.JS
}

// Page is a rendered page ready to be served.
type Page struct {
	HTML    []byte
	Favicon []byte
	anchors map[string]bool
}

// id must be a whole attribute name, not the tail of data-id and the like.
var idAttr = regexp.MustCompile(`(?:^|\s)id="([^"]+)"`)

// Render builds the page: styles and script are minified and inlined into
// the template, then the whole document is minified.
func Render(title, attribution string) (*Page, error) {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/javascript", js.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)

	cssMin, err := minifyFile(m, "text/css", "style.css")
	if err != nil {
		return nil, err
	}
	jsMin, err := minifyFile(m, "text/javascript", "script.js")
	if err != nil {
		return nil, err
	}
	svgMin, err := minifyFile(m, "image/svg+xml", "favicon.svg")
	if err != nil {
		return nil, err
	}

	tmpl, err := template.ParseFS(files, "index.html.tpl")
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, PageData{
		Title:       title,
		Attribution: attribution,
		CSS:         template.CSS(cssMin),
		JS:          template.JS(jsMin),
	})
	if err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}

	anchors := anchorsOf(buf.Bytes())

	finalHTML, err := m.Bytes("text/html", buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("minify html: %w", err)
	}

	return &Page{HTML: finalHTML, Favicon: []byte(svgMin), anchors: anchors}, nil
}

// HasAnchor reports whether the page has an element with the given id.
func (p *Page) HasAnchor(id string) bool {
	return p.anchors[id]
}

// anchorsOf collects the element ids of an HTML document.
func anchorsOf(doc []byte) map[string]bool {
	anchors := make(map[string]bool)
	for _, match := range idAttr.FindAllSubmatch(doc, -1) {
		anchors[string(match[1])] = true
	}
	return anchors
}

func minifyFile(m *minify.M, mediatype, name string) (string, error) {
	raw, err := files.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}

	out, err := m.String(mediatype, string(raw))
	if err != nil {
		return "", fmt.Errorf("minify %s: %w", name, err)
	}
	return out, nil
}
