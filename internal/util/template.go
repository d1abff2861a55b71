package util

import (
	"fmt"
	"strings"
	"sync"
	"text/template"
)

var (
	templateFuncs = template.FuncMap{
		"default": func(fallback, v any) any {
			if v == nil || v == "" {
				return fallback
			}
			return v
		},
		"price": func(v float64) string { return fmt.Sprintf("₹%.0f", v) },
	}
	// parsed caches templates by source text; prompts and reply formats
	// are rendered on every message.
	parsed sync.Map
)

// RenderTemplate fills a template with state. text/template is used so
// product names and prices are not HTML-escaped. Missing keys render as
// empty values.
func RenderTemplate(text string, state map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := lookupTemplate(text)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, state); err != nil {
		return "", err
	}
	return b.String(), nil
}

func lookupTemplate(text string) (*template.Template, error) {
	if t, ok := parsed.Load(text); ok {
		return t.(*template.Template), nil
	}
	t, err := template.New("text").Funcs(templateFuncs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, err
	}
	parsed.Store(text, t)
	return t, nil
}
