// Package web embeds the Kvitt pages, htmx partials and static assets.
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var TemplatesFS embed.FS

//go:embed static/*
var StaticFS embed.FS

// ParseTemplates parses every embedded template. Pages are looked up by
// file name, partials by their define name.
func ParseTemplates() (*template.Template, error) {
	return template.ParseFS(TemplatesFS, "templates/*.html")
}
