package frontend

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"

	"github.com/labstack/echo/v4"
)

//go:embed views/*.html
var templateFS embed.FS

const (
	viewsPattern = "views/*.html"
	layoutView   = "views/layout.html"
)

// Template renders a page inside the shared layout. Pages are parsed separately
// because each one defines its own "content" block.
type Template struct {
	pages map[string]*template.Template
}

func NewTemplate() (*Template, error) {
	files, err := fs.Glob(templateFS, viewsPattern)
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		if file == layoutView {
			continue
		}
		name := path.Base(file)
		page, err := template.New(name).ParseFS(templateFS, layoutView, file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse view %s: %w", name, err)
		}
		pages[name] = page
	}
	return &Template{pages: pages}, nil
}

func (t *Template) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	page, ok := t.pages[name]
	if !ok {
		return fmt.Errorf("unknown view %s", name)
	}
	return page.ExecuteTemplate(w, "layout", data)
}
