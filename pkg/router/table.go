package router

import (
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Suhaibinator/SDispatch/pkg/common"
)

// Table is the ordered route table. Registration order is match priority.
//
// Registration is a setup-time operation: once Freeze is called (the router does so before the
// first dispatch) the table is read-only and lookups from many goroutines need no locking.
type Table struct {
	mu     sync.Mutex // serialises registration
	routes []*common.Route
	names  map[string]*common.Route
	types  paramTypes
	frozen atomic.Bool
}

// NewTable creates an empty route table with the built-in path parameter types.
func NewTable() *Table {
	return &Table{
		names: make(map[string]*common.Route),
		types: newParamTypes(),
	}
}

// AddParamType registers a placeholder type for path templates, e.g. AddParamType("hex", "[0-9a-f]+", false).
func (t *Table) AddParamType(name, pattern string, replace bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen.Load() {
		return ErrTableFrozen
	}
	return t.types.add(name, pattern, replace)
}

// Register adds a route built from a raw regular expression, a method list and a view.
func (t *Table) Register(pattern string, methods []string, view common.View) (*common.Route, error) {
	return t.Add(RouteConfigBase{Pattern: pattern, Methods: methods, View: view})
}

// Add registers a route from its configuration.
// It fails with *InvalidPatternError, ErrEmptyMethodSet, ErrNilHandler, ErrDuplicateRouteName,
// ErrAmbiguousPattern or ErrTableFrozen.
func (t *Table) Add(cfg RouteConfigBase) (*common.Route, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen.Load() {
		return nil, ErrTableFrozen
	}

	source, err := t.patternSource(cfg)
	if err != nil {
		return nil, err
	}

	// Anchor the whole expression so a pattern never matches only a prefix of the path
	re, err := regexp.Compile(`^(?:` + source + `)$`)
	if err != nil {
		return nil, &InvalidPatternError{Pattern: source, Err: err}
	}

	methods := normalizeMethods(cfg.Methods)
	if len(methods) == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptyMethodSet)
	}

	if cfg.View.Handle == nil {
		return nil, fmt.Errorf("%s: %w", source, ErrNilHandler)
	}

	if cfg.Name != "" {
		if _, exists := t.names[cfg.Name]; exists {
			return nil, fmt.Errorf("%q: %w", cfg.Name, ErrDuplicateRouteName)
		}
	}

	route := &common.Route{
		Name:      cfg.Name,
		Pattern:   source,
		Regexp:    re,
		Methods:   methods,
		View:      cfg.View,
		AuthLevel: cfg.AuthLevel,
		Meta:      cfg.Meta,
	}
	t.routes = append(t.routes, route)
	if route.Name != "" {
		t.names[route.Name] = route
	}
	return route, nil
}

// patternSource picks the regular expression source for a route: a raw Pattern, or a Path
// template compiled with the table's parameter types.
func (t *Table) patternSource(cfg RouteConfigBase) (string, error) {
	switch {
	case cfg.Path != "" && cfg.Pattern != "":
		return "", fmt.Errorf("%s: %w", cfg.Path, ErrAmbiguousPattern)
	case cfg.Pattern != "":
		return cfg.Pattern, nil
	case cfg.Path != "":
		return compilePath(cfg.Path, t.types)
	default:
		return "", &InvalidPatternError{Pattern: "", Err: errors.New("empty pattern")}
	}
}

// normalizeMethods uppercases, trims and de-duplicates methods, keeping declaration order.
func normalizeMethods(methods []string) []string {
	out := make([]string, 0, len(methods))
	seen := make(map[string]bool, len(methods))
	for _, m := range methods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// All returns the registered routes in registration order.
// The sequence is lazy and can be ranged over any number of times.
func (t *Table) All() iter.Seq[*common.Route] {
	return func(yield func(*common.Route) bool) {
		for _, route := range t.routes {
			if !yield(route) {
				return
			}
		}
	}
}

// Len returns the number of registered routes.
func (t *Table) Len() int {
	return len(t.routes)
}

// Lookup returns the route registered under name.
func (t *Table) Lookup(name string) (*common.Route, bool) {
	route, ok := t.names[name]
	return route, ok
}

// Freeze makes the table read-only. It is idempotent.
func (t *Table) Freeze() {
	if t.frozen.Load() {
		return
	}
	t.mu.Lock()
	t.frozen.Store(true)
	t.mu.Unlock()
}

// Frozen reports whether the table no longer accepts registrations.
func (t *Table) Frozen() bool {
	return t.frozen.Load()
}
