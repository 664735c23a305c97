package common

import (
	"regexp"
	"slices"
	"strings"
)

// AuthLevel defines the authentication level for a route.
// It is read by authentication middleware in the before_handler stage.
type AuthLevel int

const (
	// NoAuth indicates that no authentication is required for the route.
	NoAuth AuthLevel = iota

	// AuthOptional indicates that authentication is attempted but not enforced.
	// If valid credentials are present the user is added to the request context.
	AuthOptional

	// AuthRequired indicates that requests without valid credentials are rejected with 401.
	AuthRequired
)

// Route is a registered route: a compiled pattern, the methods it accepts and the view it dispatches to.
// Routes are created by the router's route table and are read-only once serving starts.
type Route struct {
	Name      string         // Optional unique name
	Pattern   string         // Pattern source as registered
	Regexp    *regexp.Regexp // Anchored compiled pattern
	Methods   []string       // Non-empty set of uppercase HTTP methods, in declaration order
	View      View           // Lifecycle hooks of the handler
	AuthLevel AuthLevel      // Authentication level enforced by auth middleware
	Meta      map[string]any // Free-form metadata for before_handler hooks
}

// Allows reports whether method is in the route's method set.
func (r *Route) Allows(method string) bool {
	return slices.Contains(r.Methods, method)
}

// String returns "METHODS pattern", e.g. "[GET POST] ^/users$".
func (r *Route) String() string {
	return "[" + strings.Join(r.Methods, " ") + "] " + r.Pattern
}
