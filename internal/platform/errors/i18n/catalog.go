// Package i18n renders localized user-facing text for error codes.
package i18n

import (
	"strings"
	"sync"
	"text/template"

	i18ncatalog "github.com/lifesignal/monitor/internal/platform/i18n/catalog"
)

// Namespace is the catalog namespace that holds error messages.
const Namespace = "errors"

// Catalog holds the error templates of one locale, parsed once.
type Catalog struct {
	locale    string
	raw       map[string]string
	templates map[string]*template.Template
}

var catalogs sync.Map // locale -> *Catalog

// GetCatalog returns the catalog for locale, falling back to the base locale.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = i18ncatalog.BaseLocale
	}
	if c, ok := catalogs.Load(requested); ok {
		return c.(*Catalog)
	}

	resolved, messages := i18ncatalog.Default().NamespaceMessagesWithFallback(requested, Namespace)
	if c, ok := catalogs.Load(resolved); ok {
		return c.(*Catalog)
	}
	c, _ := catalogs.LoadOrStore(resolved, NewCatalog(resolved, messages))
	return c.(*Catalog)
}

// NewCatalog builds a catalog from code-to-template messages. Templates that
// fail to parse are kept verbatim.
func NewCatalog(locale string, messages map[string]string) *Catalog {
	c := &Catalog{
		locale:    locale,
		raw:       make(map[string]string, len(messages)),
		templates: make(map[string]*template.Template, len(messages)),
	}
	for code, text := range messages {
		c.raw[code] = text
		if tmpl, err := template.New(code).Parse(text); err == nil {
			c.templates[code] = tmpl
		}
	}
	return c
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message for code with metadata. Unknown codes render as
// the code itself; broken templates render as their raw text.
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
	var b strings.Builder
	if err := tmpl.Execute(&b, metadata); err != nil {
		return text
	}
	return b.String()
}
