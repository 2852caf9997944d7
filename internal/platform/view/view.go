// Package view renders the dashboard's HTML pages from embedded templates.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html static/*
var files embed.FS

// Page names.
const (
	PageDashboard = "dashboard"
	PagePatients  = "patients"
	PagePanel     = "panel"
	PageError     = "error"
)

var pageNames = []string{PageDashboard, PagePatients, PagePanel, PageError}

// Page is what every template receives; handler data sits under Data.
type Page struct {
	Clinician string
	Section   string
	Data      any
}

// Chart is one rendered chart slot. Warning replaces the chart when the
// source columns were missing.
type Chart struct {
	Title   string
	SVG     template.HTML
	Warning string
	Note    string
}

// NewChart wraps SVG produced by the chart package.
func NewChart(title string, svg []byte) Chart {
	return Chart{Title: title, SVG: template.HTML(svg)}
}

// WarningChart is a chart slot showing only a warning.
func WarningChart(title, warning string) Chart {
	return Chart{Title: title, Warning: warning}
}

// ErrorData is the payload of the error page.
type ErrorData struct {
	Status  int
	Title   string
	Message string
}

// Renderer implements echo.Renderer.
type Renderer struct {
	pages     map[string]*template.Template
	clinician func(c echo.Context) string
}

// New parses the embedded templates. clinician supplies the display name
// shown in the page header.
func New(clinician func(c echo.Context) string) (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames)), clinician: clinician}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(files, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render executes the layout for the named page.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	p := Page{Section: name, Data: data}
	if r.clinician != nil && c != nil {
		p.Clinician = r.clinician(c)
	}
	return t.ExecuteTemplate(w, "layout", p)
}

// Static returns the embedded stylesheet directory.
func Static() fs.FS {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

var funcs = template.FuncMap{
	"panelURL": PanelURL,
	"num":      FormatNumber,
	"optnum": func(prec int, v *float64) string {
		if v == nil {
			return "n/a"
		}
		return FormatNumber(prec, *v)
	},
}

// PanelURL links to a patient's panel page.
func PanelURL(name, id string) string {
	q := url.Values{}
	if name != "" {
		q.Set("name", name)
	}
	if id != "" {
		q.Set("id", id)
	}
	return "/patients/panel?" + q.Encode()
}

// FormatNumber prints v with prec decimals.
func FormatNumber(prec int, v float64) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
