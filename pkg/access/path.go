package access

import (
	"fmt"
	"strings"
)

// VarPrefix marks a storage path component as a variable
const VarPrefix = "var/"

// IsVariable reports whether s is a var/<name> reference
func IsVariable(s string) bool {
	return strings.HasPrefix(s, VarPrefix)
}

// ValidateComponent checks that a component containing "/" is exactly var/<name>
func ValidateComponent(component string) error {
	if !strings.Contains(component, "/") {
		return nil
	}
	parts := strings.Split(component, "/")
	if len(parts) != 2 || parts[0] != "var" || parts[1] == "" {
		return fmt.Errorf("%w: %w: component %q must be of the form \"var/<name>\"", ErrInvalidConfig, ErrInvalidPath, component)
	}
	return nil
}

// SplitPath splits a request path into components, ignoring one leading "/"
func SplitPath(path string) []string {
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}

// Match matches path components against pattern. The pattern is a prefix:
// extra trailing components are ignored. Variables bind unconditionally and
// bindings are keyed by the full var/<name> token.
func Match(pattern []string, components []string) (map[string]string, bool) {
	if len(components) < len(pattern) {
		return nil, false
	}
	bindings := make(map[string]string)
	for i, p := range pattern {
		if IsVariable(p) {
			bindings[p] = components[i]
			continue
		}
		if components[i] != p {
			return nil, false
		}
	}
	return bindings, true
}
