// Package registry maps (category, interval) pairs to the rules and charts
// evaluated for them.
package registry

import (
	"fmt"
	"sort"

	"github.com/lifesignal/monitor/internal/services/monitor/charts"
	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"github.com/lifesignal/monitor/internal/services/monitor/rules"
)

// Key addresses one registry entry.
type Key struct {
	Category observation.Category
	Interval Interval
}

func (k Key) String() string {
	return string(k.Category) + "/" + string(k.Interval)
}

// Entry is the ordered rule and chart configuration of one key.
type Entry struct {
	Category observation.Category `yaml:"category"`
	Interval Interval             `yaml:"interval"`
	Rules    []rules.Spec         `yaml:"rules,omitempty"`
	Charts   []charts.Spec        `yaml:"charts,omitempty"`
}

// Key returns the entry's address.
func (e Entry) Key() Key {
	return Key{Category: e.Category, Interval: e.Interval}
}

func (e Entry) clone() Entry {
	e.Rules = append([]rules.Spec(nil), e.Rules...)
	specs := make([]charts.Spec, len(e.Charts))
	for i, spec := range e.Charts {
		specs[i] = spec.Clone()
	}
	e.Charts = specs
	return e
}

// normalize canonicalizes the category and interval and validates every spec.
func (e Entry) normalize() (Entry, error) {
	category, ok := observation.ParseCategory(string(e.Category))
	if !ok {
		return Entry{}, fmt.Errorf("registry entry: unknown category %q", e.Category)
	}
	interval, err := ParseInterval(string(e.Interval))
	if err != nil {
		return Entry{}, fmt.Errorf("registry entry %s: %w", category, err)
	}
	e.Category = category
	e.Interval = interval
	for i, spec := range e.Rules {
		if err := spec.Validate(); err != nil {
			return Entry{}, fmt.Errorf("registry entry %s rule %d: %w", e.Key(), i, err)
		}
	}
	for i, spec := range e.Charts {
		if err := spec.Validate(); err != nil {
			return Entry{}, fmt.Errorf("registry entry %s chart %d: %w", e.Key(), i, err)
		}
	}
	return e.clone(), nil
}

// Registry is an immutable lookup table of entries.
type Registry struct {
	entries map[Key]Entry
}

// New validates entries and builds a registry. Two entries for the same key
// are rejected.
func New(entries ...Entry) (*Registry, error) {
	r := &Registry{entries: make(map[Key]Entry, len(entries))}
	for _, entry := range entries {
		normalized, err := entry.normalize()
		if err != nil {
			return nil, err
		}
		if _, exists := r.entries[normalized.Key()]; exists {
			return nil, fmt.Errorf("registry entry %s: duplicate key", normalized.Key())
		}
		r.entries[normalized.Key()] = normalized
	}
	return r, nil
}

// Rules returns a copy of the rules for key, or nil when none are registered.
func (r *Registry) Rules(key Key) []rules.Spec {
	if r == nil {
		return nil
	}
	entry, ok := r.entries[key]
	if !ok {
		return nil
	}
	return entry.clone().Rules
}

// Charts returns a copy of the chart producers for key.
func (r *Registry) Charts(key Key) []charts.Spec {
	if r == nil {
		return nil
	}
	entry, ok := r.entries[key]
	if !ok {
		return nil
	}
	return entry.clone().Charts
}

// Keys lists the registered keys ordered by category then interval.
func (r *Registry) Keys() []Key {
	if r == nil {
		return nil
	}
	keys := make([]Key, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Category != keys[j].Category {
			return keys[i].Category < keys[j].Category
		}
		return keys[i].Interval < keys[j].Interval
	})
	return keys
}

// WithOverrides returns a new registry where each override replaces the
// whole entry of its key. The receiver is left unchanged.
func (r *Registry) WithOverrides(overrides ...Entry) (*Registry, error) {
	next := &Registry{entries: make(map[Key]Entry)}
	if r != nil {
		for key, entry := range r.entries {
			next.entries[key] = entry.clone()
		}
	}
	for _, entry := range overrides {
		normalized, err := entry.normalize()
		if err != nil {
			return nil, err
		}
		next.entries[normalized.Key()] = normalized
	}
	return next, nil
}
