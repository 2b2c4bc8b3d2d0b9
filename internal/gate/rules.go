package gate

import (
	"slices"
	"strings"
)

// Rule is the compiled access rule for one endpoint: either an explicit
// unconditional allow, or "caller must own at least one of TokenIDs".
type Rule struct {
	NoRules  bool
	TokenIDs []int64
}

// RuleTable stores per-endpoint access rules keyed by normalized path
// and resolves the effective rule for an arbitrary request path via
// hierarchical prefix fallback. Built once per configuration pass,
// read-only afterwards.
type RuleTable struct {
	rules map[string]*Rule
}

// NewRuleTable creates an empty rule table
func NewRuleTable() *RuleTable {
	return &RuleTable{rules: make(map[string]*Rule)}
}

// NormalizePath strips trailing slashes and guarantees a leading slash.
// The root path stays "/".
func NormalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}

// parentPath removes the last path segment; "/a/b" -> "/a", "/a" -> "/"
func parentPath(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}

// SetNoRules marks endpoint as an explicit unconditional allow,
// replacing any rule previously set for that exact endpoint
func (t *RuleTable) SetNoRules(endpoint string) {
	t.rules[NormalizePath(endpoint)] = &Rule{NoRules: true}
}

// RequireOneOf requires ownership of at least one of tokenIDs for
// endpoint. Repeated calls for the same endpoint within one load pass
// accumulate into a growing token set; a previous no_rules marker is
// replaced.
func (t *RuleTable) RequireOneOf(endpoint string, tokenIDs []int64) {
	key := NormalizePath(endpoint)

	existing, ok := t.rules[key]
	if !ok || existing.NoRules {
		existing = &Rule{}
		t.rules[key] = existing
	}

	for _, id := range tokenIDs {
		if !slices.Contains(existing.TokenIDs, id) {
			existing.TokenIDs = append(existing.TokenIDs, id)
		}
	}
	slices.Sort(existing.TokenIDs)
}

// Resolve returns the effective rule for a request path, or nil when no
// rule is registered anywhere along the ancestor chain (implicit allow).
// The deepest registered ancestor wins; a rule registered at "/" is the
// final fallback.
func (t *RuleTable) Resolve(path string) *Rule {
	current := NormalizePath(path)
	for {
		if rule, ok := t.rules[current]; ok {
			return rule
		}
		if current == "/" {
			return nil
		}
		current = parentPath(current)
	}
}

// Endpoints returns all registered endpoint keys in sorted order
func (t *RuleTable) Endpoints() []string {
	keys := make([]string, 0, len(t.rules))
	for k := range t.rules {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Rule returns the rule registered for the exact endpoint key, if any
func (t *RuleTable) Rule(endpoint string) (*Rule, bool) {
	rule, ok := t.rules[NormalizePath(endpoint)]
	return rule, ok
}
