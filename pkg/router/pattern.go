package router

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"strings"
)

// defaultParamTypes are the placeholder types understood by path templates.
// Each value is the regular expression a parameter of that type must match.
var defaultParamTypes = map[string]string{
	"str":   `[^/]+`,
	"int":   `\d+`,
	"float": `\d+\.\d+`,
	"slug":  `[a-z0-9-]+`,
	"uuid":  `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`,
}

var (
	placeholderRe  = regexp.MustCompile(`<(\??)([^<>:]*)(?::([^<>]*))?>`)
	staticRe       = regexp.MustCompile(`^[\w.~-]*$`)
	paramNameRe    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	errMultiParams = errors.New("multiple parameters in one segment are not supported")
)

// CompilePath turns a path template such as "/users/<id:int>/posts/<?slug:slug>" into an
// anchored regular expression with named groups, using the built-in parameter types.
//
// Each segment holds at most one parameter. Parameters default to type "str"; a leading "?"
// makes the whole segment optional. Static text may only contain word characters, '-', '.'
// and '~'. A trailing slash is tolerated on match.
func CompilePath(template string) (string, error) {
	return compilePath(template, defaultParamTypes)
}

func compilePath(template string, types map[string]string) (string, error) {
	trimmed := strings.Trim(template, "/")
	if trimmed == "" {
		return `^/$`, nil
	}

	var sb strings.Builder
	sb.WriteString("^")
	for _, segment := range strings.Split(trimmed, "/") {
		part, err := compileSegment(segment, types)
		if err != nil {
			return "", &InvalidPatternError{Pattern: template, Err: err}
		}
		sb.WriteString(part)
	}
	sb.WriteString("/?$")
	return sb.String(), nil
}

func compileSegment(segment string, types map[string]string) (string, error) {
	locs := placeholderRe.FindAllStringSubmatchIndex(segment, -1)
	switch len(locs) {
	case 0:
		if segment == "" {
			return "", errors.New("empty path segment")
		}
		if !staticRe.MatchString(segment) {
			return "", fmt.Errorf("static segment %q contains invalid characters", segment)
		}
		return "/" + regexp.QuoteMeta(segment), nil
	case 1:
	default:
		return "", errMultiParams
	}

	loc := locs[0]
	prefix, suffix := segment[:loc[0]], segment[loc[1]:]
	optional := loc[3] > loc[2]
	name := segment[loc[4]:loc[5]]
	typeName := "str"
	if loc[6] >= 0 {
		typeName = segment[loc[6]:loc[7]]
	}

	for _, static := range []string{prefix, suffix} {
		if strings.ContainsAny(static, "<>") || !staticRe.MatchString(static) {
			return "", fmt.Errorf("static segment %q contains invalid characters", static)
		}
	}
	if !paramNameRe.MatchString(name) {
		return "", fmt.Errorf("parameter name %q must be alphanumeric or underscore", name)
	}
	typePattern, ok := types[typeName]
	if !ok {
		return "", fmt.Errorf("parameter type %q is not defined", typeName)
	}

	group := "(?P<" + name + ">" + typePattern + ")"
	if optional {
		if prefix != "" || suffix != "" {
			return "", fmt.Errorf("optional parameter %q must occupy the whole segment", name)
		}
		return "(?:/" + group + ")?", nil
	}
	return "/" + regexp.QuoteMeta(prefix) + group + regexp.QuoteMeta(suffix), nil
}

// paramTypes is a copy-on-setup registry of placeholder types owned by a Table.
type paramTypes map[string]string

func newParamTypes() paramTypes {
	return maps.Clone(defaultParamTypes)
}

// add registers a placeholder type. The pattern must compile and must not contain capture groups
// of its own, otherwise parameter bindings would shift.
func (p paramTypes) add(name, pattern string, replace bool) error {
	if !paramNameRe.MatchString(name) {
		return fmt.Errorf("param type name %q must be alphanumeric or underscore", name)
	}
	if _, exists := p[name]; exists && !replace {
		return fmt.Errorf("param type %q already exists", name)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return &InvalidPatternError{Pattern: pattern, Err: err}
	}
	if re.NumSubexp() > 0 {
		return &InvalidPatternError{Pattern: pattern, Err: errors.New("param type patterns must not contain capture groups")}
	}
	p[name] = pattern
	return nil
}
