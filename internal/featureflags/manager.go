// Package featureflags evaluates FEATURE_FLAGS rules such as "purge=off,live_notifications=25%".
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Known flags.
const (
	// Purge gates the periodic purge of non-admin data. Admin-forced runs ignore it.
	Purge = "purge"
	// LiveNotifications gates the websocket notification stream.
	LiveNotifications = "live_notifications"
)

// Flag describes a flag the service reads and its state when FEATURE_FLAGS does not mention it.
type Flag struct {
	Name        string `json:"name"`
	Default     bool   `json:"default"`
	Description string `json:"description"`
}

var registry = []Flag{
	{Name: Purge, Default: true, Description: "periodic purge of non-admin users and their content"},
	{Name: LiveNotifications, Default: true, Description: "push notifications over /api/ws"},
}

// Registered returns the flags the service knows about, sorted by name.
func Registered() []Flag {
	out := append([]Flag(nil), registry...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func lookup(name string) (Flag, bool) {
	for _, f := range registry {
		if f.Name == name {
			return f, true
		}
	}
	return Flag{}, false
}

// rule is one parsed FEATURE_FLAGS entry. pct is -1 for plain on/off values.
type rule struct {
	raw string
	on  bool
	pct int
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, on: true, pct: -1}, true
	case "off", "false", "0":
		return rule{raw: value, pct: -1}, true
	}
	if pctRaw, ok := strings.CutSuffix(value, "%"); ok {
		pct, err := strconv.Atoi(pctRaw)
		if err != nil {
			return rule{}, false
		}
		return rule{raw: value, pct: max(0, min(pct, 100))}, true
	}
	return rule{}, false
}

// Manager holds the parsed rules. A nil Manager answers with registered defaults.
type Manager struct {
	rules map[string]rule
}

// NewManager parses a comma-separated key=value list. Malformed entries are skipped.
func NewManager(raw string) *Manager {
	rules := make(map[string]rule)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" {
			continue
		}
		if r, ok := parseRule(value); ok {
			rules[key] = r
		}
	}
	return &Manager{rules: rules}
}

// Enabled reports whether name is on for userID. Percentage rules bucket users
// deterministically and are off for anonymous callers (userID 0). A flag without a rule
// takes its registered default; unregistered flags are off.
func (m *Manager) Enabled(name string, userID uint) bool {
	name = normalize(name)
	var (
		r  rule
		ok bool
	)
	if m != nil {
		r, ok = m.rules[name]
	}
	if !ok {
		f, known := lookup(name)
		return known && f.Default
	}

	switch {
	case r.pct < 0:
		return r.on
	case r.pct == 0:
		return false
	case r.pct == 100:
		return true
	case userID == 0:
		return false
	default:
		return rolloutBucket(name, userID) < r.pct
	}
}

// Raw returns the configured rule values by flag name.
func (m *Manager) Raw() map[string]string {
	if m == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(m.rules))
	for k, r := range m.rules {
		out[k] = r.raw
	}
	return out
}

// Snapshot evaluates every registered and configured flag for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool)
	for _, f := range registry {
		out[f.Name] = m.Enabled(f.Name, userID)
	}
	if m != nil {
		for name := range m.rules {
			out[name] = m.Enabled(name, userID)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", name, userID)
	return int(h.Sum32() % 100)
}
