// Package docpath addresses values inside generic JSON documents with dotted
// paths such as "emisor.nombre" or "cuerpoDocumento.0.precioUni".
//
// A segment made only of digits indexes an array. Lookups never panic: any
// missing segment, out of range index or non-container intermediate value
// yields nil.
package docpath

import (
	"strconv"
	"strings"
	"unicode"
)

// Separator joins path segments.
const Separator = "."

// Split breaks a path into its segments. The empty path has no segments.
func Split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, Separator)
}

// Join is the inverse of Split.
func Join(segments ...string) string {
	return strings.Join(segments, Separator)
}

// Get walks doc along path and returns the value found, or nil.
func Get(doc any, path string) any {
	if path == "" {
		return nil
	}

	current := doc
	for _, seg := range Split(path) {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil
			}
			current = v
		case []any:
			idx, ok := Index(seg)
			if !ok || idx >= len(node) {
				return nil
			}
			current = node[idx]
		default:
			return nil
		}
	}
	return current
}

// Set writes value at path, creating intermediate objects as needed. Numeric
// segments only address existing array elements; Set reports false when the
// path cannot be written.
func Set(doc map[string]any, path string, value any) bool {
	segs := Split(path)
	if doc == nil || len(segs) == 0 {
		return false
	}

	var current any = doc
	for i, seg := range segs {
		last := i == len(segs)-1

		switch node := current.(type) {
		case map[string]any:
			if last {
				node[seg] = value
				return true
			}
			next, ok := node[seg]
			if !ok || !isContainer(next) {
				if _, numeric := Index(segs[i+1]); numeric {
					return false
				}
				next = map[string]any{}
				node[seg] = next
			}
			current = next
		case []any:
			idx, ok := Index(seg)
			if !ok || idx >= len(node) {
				return false
			}
			if last {
				node[idx] = value
				return true
			}
			current = node[idx]
		default:
			return false
		}
	}
	return false
}

// Index parses a repeat segment. Only plain non-negative decimals qualify.
func Index(seg string) (int, bool) {
	if seg == "" {
		return 0, false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(seg)
	if err != nil {
		return 0, false
	}
	return n, true
}

// RepeatIndex locates the first numeric segment of path. prefix is the path of
// the array it indexes.
func RepeatIndex(path string) (prefix string, idx int, ok bool) {
	segs := Split(path)
	for i, seg := range segs {
		if n, isIdx := Index(seg); isIdx {
			return Join(segs[:i]...), n, true
		}
	}
	return "", 0, false
}

// IsRepeated reports whether path crosses an array.
func IsRepeated(path string) bool {
	_, _, ok := RepeatIndex(path)
	return ok
}

// WithIndex rewrites the first numeric segment of path to i. Paths without one
// are returned unchanged.
func WithIndex(path string, i int) string {
	segs := Split(path)
	for n, seg := range segs {
		if _, ok := Index(seg); ok {
			segs[n] = strconv.Itoa(i)
			return Join(segs...)
		}
	}
	return path
}

// Root returns the first segment of path.
func Root(path string) string {
	if i := strings.Index(path, Separator); i >= 0 {
		return path[:i]
	}
	return path
}

// Leaf returns the last segment of path.
func Leaf(path string) string {
	if i := strings.LastIndex(path, Separator); i >= 0 {
		return path[i+1:]
	}
	return path
}

// LabelFromLeaf derives a display label from the last segment of a path:
// digits and brackets are dropped, a space goes before every inner capital
// and the first letter is upper-cased. "codigoGeneracion" becomes
// "Codigo Generacion".
func LabelFromLeaf(path string) string {
	leaf := Leaf(path)

	var b strings.Builder
	b.Grow(len(leaf) + 4)
	for _, r := range leaf {
		switch {
		case unicode.IsDigit(r), r == '[', r == ']':
			continue
		case unicode.IsUpper(r) && b.Len() > 0:
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}

	label := strings.TrimSpace(b.String())
	if label == "" {
		return ""
	}
	runes := []rune(label)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// Valid reports whether path is non-empty and has no empty segments.
func Valid(path string) bool {
	if path == "" {
		return false
	}
	for _, seg := range Split(path) {
		if seg == "" {
			return false
		}
	}
	return true
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}
