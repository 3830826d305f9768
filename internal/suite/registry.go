package suite

import (
	"fmt"
	"strings"

	"github.com/roach88/sagacheck/internal/harness"
)

// All selects every suite, in registry order.
const All = "all"

var registry = []func() harness.Suite{Platform, Admin, Seed, Invariants}

// Info describes a registered suite.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Steps       int    `json:"steps"`
}

// List describes every registered suite.
func List() []Info {
	out := make([]Info, 0, len(registry))
	for _, build := range registry {
		s := build()
		out = append(out, Info{Name: s.Name, Description: s.Description, Steps: s.StepCount()})
	}
	return out
}

// Names returns the selectable names, "all" last.
func Names() []string {
	names := make([]string, 0, len(registry)+1)
	for _, info := range List() {
		names = append(names, info.Name)
	}
	return append(names, All)
}

// Resolve turns a selection such as "platform", "admin,seed" or "all"
// into suites. Duplicates are dropped; order follows the selection.
func Resolve(selection string) ([]harness.Suite, error) {
	var out []harness.Suite
	seen := make(map[string]bool)
	add := func(s harness.Suite) {
		if !seen[s.Name] {
			seen[s.Name] = true
			out = append(out, s)
		}
	}

	for _, name := range strings.Split(selection, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		if name == All {
			for _, build := range registry {
				add(build())
			}
			continue
		}
		s, ok := lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown suite %q (available: %s)", name, strings.Join(Names(), ", "))
		}
		add(s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no suite selected (available: %s)", strings.Join(Names(), ", "))
	}
	return out, nil
}

func lookup(name string) (harness.Suite, bool) {
	for _, build := range registry {
		if s := build(); s.Name == name {
			return s, true
		}
	}
	return harness.Suite{}, false
}
