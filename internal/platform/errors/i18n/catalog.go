// Package i18n renders the user-facing text of domain errors in the caller's
// locale. Templates come from the "errors" namespace of the embedded catalog
// bundle and receive the error metadata as their data.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	i18ncatalog "github.com/louisbranch/quickroll/internal/platform/i18n/catalog"
)

// Catalog holds the parsed error templates of one locale.
type Catalog struct {
	locale    string
	raw       map[string]string
	templates map[string]*template.Template
}

// catalogs caches one Catalog per resolved locale.
var catalogs sync.Map

// GetCatalog returns the catalog that best matches locale. Unknown or empty
// locales resolve to the base locale.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = i18ncatalog.BaseLocale
	}
	if cached, ok := catalogs.Load(requested); ok {
		return cached.(*Catalog)
	}

	resolved, messages := i18ncatalog.Default().NamespaceMessagesWithFallback(requested, i18ncatalog.NamespaceErrors)
	cat, _ := catalogs.LoadOrStore(resolved, NewCatalog(resolved, messages))
	if requested != resolved {
		catalogs.Store(requested, cat)
	}
	return cat.(*Catalog)
}

// NewCatalog parses messages once. A template that fails to parse is kept as
// literal text.
func NewCatalog(locale string, messages map[string]string) *Catalog {
	cat := &Catalog{
		locale:    locale,
		raw:       make(map[string]string, len(messages)),
		templates: make(map[string]*template.Template, len(messages)),
	}
	for code, text := range messages {
		cat.raw[code] = text
		if tmpl, err := template.New(code).Option("missingkey=zero").Parse(text); err == nil {
			cat.templates[code] = tmpl
		}
	}
	return cat
}

// Locale returns the resolved locale.
func (c *Catalog) Locale() string {
	return c.locale
}

// Has reports whether the catalog carries a message for code.
func (c *Catalog) Has(code string) bool {
	_, ok := c.raw[code]
	return ok
}

// Format renders the message for code with metadata. It returns the code
// itself when no message exists and the raw text when rendering fails.
func (c *Catalog) Format(code string, metadata map[string]string) string {
	text, ok := c.raw[code]
	if !ok {
		return code
	}
	tmpl, ok := c.templates[code]
	if !ok {
		return text
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, metadata); err != nil {
		return text
	}
	return buf.String()
}
