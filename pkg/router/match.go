package router

import (
	"net/http"
	"slices"

	"github.com/Suhaibinator/SDispatch/pkg/common"
	"github.com/julienschmidt/httprouter"
)

// MatchKind is the result class of a route lookup.
type MatchKind int

const (
	// Matched means a route accepted both the path and the method.
	Matched MatchKind = iota

	// NotFound means no route pattern matched the path.
	NotFound

	// MethodNotAllowed means at least one pattern matched the path but none accepted the method.
	MethodNotAllowed
)

// String returns a readable name for the kind.
func (k MatchKind) String() string {
	switch k {
	case Matched:
		return "matched"
	case NotFound:
		return "not_found"
	case MethodNotAllowed:
		return "method_not_allowed"
	default:
		return "unknown"
	}
}

// MatchResult is returned by Matcher.Match.
type MatchResult struct {
	Kind    MatchKind
	Route   *common.Route     // Set for Matched
	Params  httprouter.Params // Named captures for Matched
	Allowed []string          // Union of methods of every path-matching route, for MethodNotAllowed
}

// Matcher resolves a path and method against a Table.
type Matcher struct {
	table        *Table
	headFallback bool
}

// NewMatcher creates a matcher over table. With headFallback set, a HEAD request may be served
// by a route that only declares GET when no path-matching route declares HEAD.
func NewMatcher(table *Table, headFallback bool) *Matcher {
	return &Matcher{table: table, headFallback: headFallback}
}

// Match scans the routes in registration order. The first route whose anchored pattern matches
// the path and whose method set contains method wins. Routes whose pattern matches but whose
// methods do not are remembered and scanning continues, so routes sharing a pattern effectively
// merge their method sets.
func (m *Matcher) Match(path, method string) MatchResult {
	var allowed []string
	var pathMatched bool
	var fallback *MatchResult

	for route := range m.table.All() {
		loc := route.Regexp.FindStringSubmatchIndex(path)
		if loc == nil {
			continue
		}
		pathMatched = true

		if route.Allows(method) {
			return MatchResult{Kind: Matched, Route: route, Params: captures(route, path, loc)}
		}

		if m.headFallback && fallback == nil && method == http.MethodHead && route.Allows(http.MethodGet) {
			fallback = &MatchResult{Kind: Matched, Route: route, Params: captures(route, path, loc)}
		}

		for _, allowedMethod := range route.Methods {
			if !slices.Contains(allowed, allowedMethod) {
				allowed = append(allowed, allowedMethod)
			}
		}
	}

	if fallback != nil {
		return *fallback
	}
	if !pathMatched {
		return MatchResult{Kind: NotFound}
	}
	return MatchResult{Kind: MethodNotAllowed, Allowed: allowed}
}

// captures turns the named groups of a match into path parameters.
// Groups that did not take part in the match, such as an absent optional segment, are omitted.
func captures(route *common.Route, path string, loc []int) httprouter.Params {
	var params httprouter.Params
	for i, name := range route.Regexp.SubexpNames() {
		if i == 0 || name == "" || loc[2*i] < 0 {
			continue
		}
		params = append(params, httprouter.Param{Key: name, Value: path[loc[2*i]:loc[2*i+1]]})
	}
	return params
}
