// Package views renders the HTML pages from templates embedded in the binary.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"example.com/jsonblog/internal/flash"
	"example.com/jsonblog/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	IndexPage  = "index.html"
	AddPage    = "add.html"
	UpdatePage = "update.html"
)

// PageData holds the data passed to every page.
type PageData struct {
	Title   string
	Flashes []flash.Message
	Posts   []models.Post
	Post    models.Post
}

// Renderer holds one parsed template set per page, each combined with the layout.
type Renderer struct {
	pages map[string]*template.Template
}

func New() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, page := range []string{IndexPage, AddPage, UpdatePage} {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		r.pages[page] = tmpl
	}
	return r, nil
}

// Render executes page into w. Output is buffered so a failing template
// never leaves a half-written page behind.
func (r *Renderer) Render(w io.Writer, page string, data PageData) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
