// Package expect provides composable predicates over API responses.
//
// A Predicate is a pure function of a response: it never mutates fixtures
// and never performs I/O. Each returns an Outcome naming the check, what
// it expected and what it observed, so a failing step can be reported
// without re-reading the response.
package expect

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/sagacheck/internal/apiclient"
)

// Outcome is the verdict of one predicate.
type Outcome struct {
	Pass     bool
	Check    string // predicate name, e.g. "status_equals"
	Message  string // short human-readable summary
	Expected string
	Actual   string
}

// Error renders a failed outcome in the same shape on every surface.
func (o Outcome) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", o.Check, o.Expected, o.Actual)
}

// Predicate evaluates a response.
type Predicate func(*apiclient.Response) Outcome

func pass(check, msg string) Outcome {
	return Outcome{Pass: true, Check: check, Message: msg}
}

func fail(check, expected, actual string) Outcome {
	o := Outcome{Check: check, Expected: expected, Actual: actual}
	o.Message = o.Error()
	return o
}

// StatusEquals passes when the status is exactly code.
func StatusEquals(code int) Predicate {
	return func(r *apiclient.Response) Outcome {
		if r.Status == code {
			return pass("status_equals", fmt.Sprintf("status %d", code))
		}
		return fail("status_equals", fmt.Sprintf("status %d", code), statusDetail(r))
	}
}

// StatusIn passes on any of codes and records which one occurred.
func StatusIn(codes ...int) Predicate {
	return func(r *apiclient.Response) Outcome {
		for _, c := range codes {
			if r.Status == c {
				return pass("status_in", fmt.Sprintf("status %d (accepted %v)", r.Status, codes))
			}
		}
		return fail("status_in", fmt.Sprintf("status in %v", codes), statusDetail(r))
	}
}

// BodyHasFields passes when every path resolves in the body.
func BodyHasFields(paths ...string) Predicate {
	return func(r *apiclient.Response) Outcome {
		var missing []string
		for _, p := range paths {
			if _, ok := r.Lookup(p); !ok {
				missing = append(missing, p)
			}
		}
		if len(missing) > 0 {
			return fail("body_has_fields", fmt.Sprintf("fields %v", paths), fmt.Sprintf("missing %v", missing))
		}
		return pass("body_has_fields", fmt.Sprintf("fields %v present", paths))
	}
}

// FieldEquals passes when path resolves to want. Numbers compare by value
// regardless of Go type.
func FieldEquals(path string, want any) Predicate {
	return func(r *apiclient.Response) Outcome {
		got, ok := r.Lookup(path)
		if !ok {
			return fail("field_equals", fmt.Sprintf("%s = %v", path, want), fmt.Sprintf("%s missing", path))
		}
		if !valuesEqual(got, want) {
			return fail("field_equals", fmt.Sprintf("%s = %v", path, want), fmt.Sprintf("%s = %v", path, got))
		}
		return pass("field_equals", fmt.Sprintf("%s = %v", path, want))
	}
}

// FieldHasPrefix passes when path resolves to a string starting with prefix.
func FieldHasPrefix(path, prefix string) Predicate {
	return func(r *apiclient.Response) Outcome {
		s, ok := r.String(path)
		if !ok {
			return fail("field_has_prefix", fmt.Sprintf("%s starts with %q", path, prefix), fmt.Sprintf("%s missing or not a string", path))
		}
		if !strings.HasPrefix(s, prefix) {
			return fail("field_has_prefix", fmt.Sprintf("%s starts with %q", path, prefix), fmt.Sprintf("%s = %q", path, truncate(s, 32)))
		}
		return pass("field_has_prefix", fmt.Sprintf("%s starts with %q", path, prefix))
	}
}

// FieldContains passes when path resolves to a string containing substr,
// compared with Unicode case folding.
func FieldContains(path, substr string) Predicate {
	return func(r *apiclient.Response) Outcome {
		s, ok := r.String(path)
		if !ok {
			return fail("field_contains", fmt.Sprintf("%s contains %q", path, substr), fmt.Sprintf("%s missing or not a string", path))
		}
		if !containsFold(s, substr) {
			return fail("field_contains", fmt.Sprintf("%s contains %q", path, substr), fmt.Sprintf("%s = %q", path, truncate(s, 80)))
		}
		return pass("field_contains", fmt.Sprintf("%s contains %q", path, substr))
	}
}

// ErrorMessageContains passes when the "error" or "message" field, or the
// raw body when neither exists, contains substr (case-insensitive).
func ErrorMessageContains(substr string) Predicate {
	return func(r *apiclient.Response) Outcome {
		text := ErrorText(r)
		if containsFold(text, substr) {
			return pass("error_message_contains", fmt.Sprintf("error mentions %q", substr))
		}
		return fail("error_message_contains", fmt.Sprintf("error mentions %q", substr), fmt.Sprintf("%q", truncate(text, 80)))
	}
}

// ListContains passes when path resolves to a list holding want.
func ListContains(path string, want any) Predicate {
	return func(r *apiclient.Response) Outcome {
		list, ok := lookupList(r, path)
		if !ok {
			return fail("list_contains", fmt.Sprintf("%s contains %v", label(path), want), fmt.Sprintf("%s missing or not a list", label(path)))
		}
		if !listHas(list, want) {
			return fail("list_contains", fmt.Sprintf("%s contains %v", label(path), want), fmt.Sprintf("%s has %d entries without it", label(path), len(list)))
		}
		return pass("list_contains", fmt.Sprintf("%s contains %v", label(path), want))
	}
}

// ListNotContains passes when path resolves to a list without want.
func ListNotContains(path string, want any) Predicate {
	return func(r *apiclient.Response) Outcome {
		list, ok := lookupList(r, path)
		if !ok {
			return fail("list_not_contains", fmt.Sprintf("%s without %v", label(path), want), fmt.Sprintf("%s missing or not a list", label(path)))
		}
		if listHas(list, want) {
			return fail("list_not_contains", fmt.Sprintf("%s without %v", label(path), want), fmt.Sprintf("%s still contains it", label(path)))
		}
		return pass("list_not_contains", fmt.Sprintf("%s does not contain %v", label(path), want))
	}
}

// ListLen passes when path resolves to a list of exactly n entries.
func ListLen(path string, n int) Predicate {
	return func(r *apiclient.Response) Outcome {
		list, ok := lookupList(r, path)
		if !ok {
			return fail("list_len", fmt.Sprintf("%s has %d entries", label(path), n), fmt.Sprintf("%s missing or not a list", label(path)))
		}
		if len(list) != n {
			return fail("list_len", fmt.Sprintf("%s has %d entries", label(path), n), fmt.Sprintf("%d entries", len(list)))
		}
		return pass("list_len", fmt.Sprintf("%s has %d entries", label(path), n))
	}
}

// IsList passes when the body itself is a JSON array.
func IsList() Predicate {
	return func(r *apiclient.Response) Outcome {
		list, ok := r.Body.([]any)
		if !ok {
			return fail("is_list", "JSON array body", bodyKind(r))
		}
		return pass("is_list", fmt.Sprintf("list of %d", len(list)))
	}
}

// All passes when every predicate passes. The first failure is returned.
// On success the message of the first predicate is kept: it is usually the
// status check and the most useful summary.
func All(preds ...Predicate) Predicate {
	return func(r *apiclient.Response) Outcome {
		var first Outcome
		for i, p := range preds {
			o := p(r)
			if !o.Pass {
				return o
			}
			if i == 0 {
				first = o
			}
		}
		if len(preds) == 0 {
			return pass("all", "no checks")
		}
		return first
	}
}

// Any passes when at least one predicate passes. When none do, the
// outcomes are joined in order.
func Any(preds ...Predicate) Predicate {
	return func(r *apiclient.Response) Outcome {
		var expected, actual []string
		for _, p := range preds {
			o := p(r)
			if o.Pass {
				return o
			}
			expected = append(expected, o.Expected)
			actual = append(actual, o.Actual)
		}
		return fail("any", strings.Join(expected, " or "), strings.Join(actual, "; "))
	}
}

// ErrorText extracts the service's error text from a response.
func ErrorText(r *apiclient.Response) string {
	if s, ok := r.String("error"); ok {
		return s
	}
	if s, ok := r.String("message"); ok {
		return s
	}
	return r.Raw
}

func statusDetail(r *apiclient.Response) string {
	text := ErrorText(r)
	if text == "" {
		return fmt.Sprintf("status %d", r.Status)
	}
	return fmt.Sprintf("status %d (%s)", r.Status, truncate(text, 80))
}

func lookupList(r *apiclient.Response, path string) ([]any, bool) {
	v, ok := r.Lookup(path)
	if !ok {
		return nil, false
	}
	list, ok := v.([]any)
	return list, ok
}

func listHas(list []any, want any) bool {
	for _, v := range list {
		if valuesEqual(v, want) {
			return true
		}
	}
	return false
}

func bodyKind(r *apiclient.Response) string {
	switch r.Body.(type) {
	case nil:
		return "non-JSON body"
	case map[string]any:
		return "JSON object"
	default:
		return fmt.Sprintf("%T", r.Body)
	}
}

func label(path string) string {
	if path == "" || path == "$" {
		return "body"
	}
	return path
}

func containsFold(s, substr string) bool {
	return strings.Contains(fold(s), fold(substr))
}

func fold(s string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Fold().String(norm.NFC.String(s))
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
