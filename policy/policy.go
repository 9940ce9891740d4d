package policy

import (
	"strings"

	"github.com/yairfalse/sweeper/types"
)

// Rule is one ordered preservation rule. The only verdict a rule can
// produce is preserve; delete is the complement of the whole policy.
// A rule matches when every populated matcher field matches.
type Rule struct {
	Name       string   `yaml:"name"`
	Reason     string   `yaml:"reason"`
	TagKey     string   `yaml:"tag_key,omitempty"`
	TagValue   string   `yaml:"tag_value,omitempty"`
	Pattern    string   `yaml:"pattern,omitempty"` // substring or glob on name/ARN/native id
	Service    string   `yaml:"service,omitempty"`
	TypePrefix string   `yaml:"type_prefix,omitempty"`
	Accounts   []string `yaml:"accounts,omitempty"`
	Rego       string   `yaml:"rego,omitempty"` // optional OPA module body

	regoQuery *regoQuery
}

// Policy is an ordered, first-match-wins preservation rule list.
// Configuration data, not code; loaded once per run.
type Policy struct {
	Rules []Rule `yaml:"rules"`
}

// Matches reports whether the rule applies to the resource.
func (r *Rule) Matches(res *types.Resource) bool {
	if !r.matchesTag(res) {
		return false
	}
	if !r.matchesPattern(res) {
		return false
	}
	if r.Service != "" && res.Service != r.Service {
		return false
	}
	if r.TypePrefix != "" && !strings.HasPrefix(res.Type, r.TypePrefix) {
		return false
	}
	if !r.matchesAccount(res) {
		return false
	}
	if r.regoQuery != nil {
		return r.regoQuery.Preserve(res)
	}
	return r.hasAnyMatcher()
}

func (r *Rule) matchesTag(res *types.Resource) bool {
	if r.TagKey == "" {
		return true
	}
	if res.Tags == nil {
		return false
	}
	return res.Tags[r.TagKey] == r.TagValue
}

func (r *Rule) matchesPattern(res *types.Resource) bool {
	if r.Pattern == "" {
		return true
	}
	pattern := strings.ToLower(r.Pattern)
	for _, candidate := range []string{res.Name, res.ARN, res.NativeID} {
		if candidate == "" {
			continue
		}
		if matchesGlobOrSubstring(strings.ToLower(candidate), pattern) {
			return true
		}
	}
	return false
}

func (r *Rule) matchesAccount(res *types.Resource) bool {
	if len(r.Accounts) == 0 {
		return true
	}
	for _, account := range r.Accounts {
		if res.Account == account {
			return true
		}
	}
	return false
}

// hasAnyMatcher guards against an empty rule matching everything.
func (r *Rule) hasAnyMatcher() bool {
	return r.TagKey != "" || r.Pattern != "" || r.Service != "" ||
		r.TypePrefix != "" || len(r.Accounts) > 0 || r.Rego != ""
}

// matchesGlobOrSubstring matches text against a pattern. Patterns with
// '*' use simple wildcard matching; anything else is a substring test.
func matchesGlobOrSubstring(text, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if strings.Contains(pattern, "*") {
		parts := strings.Split(pattern, "*")
		if len(parts) == 2 {
			return strings.HasPrefix(text, parts[0]) && strings.HasSuffix(text, parts[1])
		}
		return false
	}
	return strings.Contains(text, pattern)
}
