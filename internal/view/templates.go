package view

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/odyssey-erp/ledger-recon/web"
)

// Engine renders the embedded HTML templates.
type Engine struct {
	templates *template.Template
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		// formatDay renders an RFC3339 timestamp as a calendar day.
		"formatDay": func(raw string) string {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return raw
			}
			return t.Format("02 Jan 2006")
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/ledger/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Execute renders the named template into w.
func (e *Engine) Execute(w io.Writer, name string, data any) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	return e.templates.ExecuteTemplate(w, name, data)
}
