package apiclient

import (
	"strconv"
	"strings"
)

// Lookup resolves a field path against a decoded JSON document.
//
// Paths use dot and bracket notation with an optional leading "$":
// "token", "user.id", "$.comments[0].text", "[2].title". An empty path or
// "$" addresses the document itself. The second return value is false when
// any segment is missing, out of range or applied to the wrong type.
func Lookup(doc any, path string) (any, bool) {
	rest := strings.TrimPrefix(path, "$")
	rest = strings.TrimPrefix(rest, ".")
	if rest == "" {
		return doc, doc != nil
	}

	current := doc
	for _, seg := range splitPath(rest) {
		if seg == "" {
			continue
		}
		field, indexes, ok := parseSegment(seg)
		if !ok {
			return nil, false
		}
		if field != "" {
			m, isMap := current.(map[string]any)
			if !isMap {
				return nil, false
			}
			val, found := m[field]
			if !found {
				return nil, false
			}
			current = val
		}
		for _, idx := range indexes {
			arr, isArr := current.([]any)
			if !isArr || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			current = arr[idx]
		}
	}
	return current, true
}

// Lookup resolves path against the response body.
func (r *Response) Lookup(path string) (any, bool) {
	if r == nil {
		return nil, false
	}
	return Lookup(r.Body, path)
}

// String resolves path and returns it as a string when it is one.
func (r *Response) String(path string) (string, bool) {
	v, ok := r.Lookup(path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// splitPath splits "a.b[0].c" into ["a", "b[0]", "c"], ignoring dots
// inside brackets.
func splitPath(path string) []string {
	var segments []string
	var current strings.Builder
	depth := 0

	for _, ch := range path {
		switch ch {
		case '[':
			depth++
			current.WriteRune(ch)
		case ']':
			depth--
			current.WriteRune(ch)
		case '.':
			if depth == 0 {
				segments = append(segments, current.String())
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}
	if current.Len() > 0 {
		segments = append(segments, current.String())
	}
	return segments
}

// parseSegment splits "items[1][0]" into ("items", [1, 0]).
func parseSegment(seg string) (string, []int, bool) {
	open := strings.Index(seg, "[")
	if open < 0 {
		return seg, nil, true
	}
	field := seg[:open]
	var indexes []int
	rest := seg[open:]
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, false
		}
		end := strings.Index(rest, "]")
		if end < 0 {
			return "", nil, false
		}
		n, err := strconv.Atoi(rest[1:end])
		if err != nil {
			return "", nil, false
		}
		indexes = append(indexes, n)
		rest = rest[end+1:]
	}
	return field, indexes, true
}
