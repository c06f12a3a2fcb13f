// Package route implements route keys of the form "METHOD /path", the
// glob/regex patterns used to include or exclude them, and the ordered route
// table built from default and custom handlers.
package route

import (
	"regexp"
	"strings"
)

// Methods lists the HTTP methods accepted in a route key.
var Methods = []string{
	"GET", "POST", "PUT", "DELETE",
	"PATCH", "HEAD", "OPTIONS", "TRACE",
}

// Paths may not contain router syntax ("{", "}" or "*").
var keyPattern = regexp.MustCompile(`^(?i)(` + strings.Join(Methods, "|") + `) (/[^\s{}*]*)$`)

// Key is a parsed route key.
type Key struct {
	Method string
	Path   string
}

// ParseKey parses s, reporting false when s is not of the form "METHOD /path"
// or names the same ":param" twice. The method is returned upper-cased.
func ParseKey(s string) (Key, bool) {
	m := keyPattern.FindStringSubmatch(s)
	if m == nil || duplicateParam(m[2]) {
		return Key{}, false
	}
	return Key{Method: strings.ToUpper(m[1]), Path: m[2]}, true
}

// Valid reports whether s is a well-formed route key.
func Valid(s string) bool {
	_, ok := ParseKey(s)
	return ok
}

func duplicateParam(path string) bool {
	seen := map[string]bool{}
	for _, seg := range strings.Split(path, "/") {
		if len(seg) < 2 || seg[0] != ':' {
			continue
		}
		if seen[seg[1:]] {
			return true
		}
		seen[seg[1:]] = true
	}
	return false
}

// String returns the canonical "METHOD /path" form.
func (k Key) String() string {
	return k.Method + " " + k.Path
}

// RouterPath converts ":name" segments into the "{name}" form used by chi.
func RouterPath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if len(seg) > 1 && seg[0] == ':' {
			segments[i] = "{" + seg[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}
