// Package render turns rule messages into localized text.
package render

import (
	"fmt"
	"strings"

	"github.com/lifesignal/monitor/internal/platform/i18n/catalog"
	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"github.com/lifesignal/monitor/internal/services/monitor/rules"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// ResolveTag picks the catalog locale closest to locale, defaulting to the
// base locale.
func ResolveTag(locale string) language.Tag {
	tags := catalog.Default().Tags()
	parsed, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return tags[0]
	}
	_, index, confidence := language.NewMatcher(tags).Match(parsed)
	if confidence == language.No {
		return tags[0]
	}
	return tags[index]
}

// Printer returns a message printer for the supplied locale.
func Printer(locale string) *message.Printer {
	return message.NewPrinter(ResolveTag(locale))
}

// Renderer renders messages through one localizer.
type Renderer struct {
	loc Localizer
}

// New returns a renderer for locale.
func New(locale string) *Renderer {
	return &Renderer{loc: Printer(locale)}
}

// NewWithLocalizer wraps an existing localizer.
func NewWithLocalizer(loc Localizer) *Renderer {
	return &Renderer{loc: loc}
}

// Localizer exposes the underlying localizer, e.g. for chart labels.
func (r *Renderer) Localizer() Localizer {
	if r == nil {
		return nil
	}
	return r.loc
}

// Render formats msg. Category arguments are replaced with their localized
// labels. Keys missing from the localizer fall back to the base catalog, then
// to the raw key.
func (r *Renderer) Render(msg rules.Message) string {
	args := make([]any, len(msg.Args))
	for i, arg := range msg.Args {
		if c, ok := arg.(observation.Category); ok {
			args[i] = r.Category(c)
			continue
		}
		args[i] = arg
	}

	if value, ok := r.localize(msg.Key, args...); ok {
		return value
	}
	if format, ok := catalog.Default().Message(catalog.BaseLocale, msg.Key); ok {
		return fmt.Sprintf(format, args...)
	}
	return msg.Key
}

// RenderAll renders msgs in order.
func (r *Renderer) RenderAll(msgs []rules.Message) []string {
	out := make([]string, len(msgs))
	for i, msg := range msgs {
		out[i] = r.Render(msg)
	}
	return out
}

// Category returns the display label of c.
func (r *Renderer) Category(c observation.Category) string {
	if value, ok := r.localize("category." + c.Slug()); ok {
		return value
	}
	if label, ok := catalog.Default().Message(catalog.BaseLocale, "category."+c.Slug()); ok {
		return label
	}
	return string(c)
}

// localize reports false when the localizer has no entry for key.
func (r *Renderer) localize(key string, args ...any) (string, bool) {
	if r == nil || r.loc == nil {
		return "", false
	}
	value := strings.TrimSpace(r.loc.Sprintf(key, args...))
	if value == "" || value == key || value == fmt.Sprintf(key, args...) {
		return "", false
	}
	return value, true
}
