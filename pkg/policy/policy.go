// Package policy evaluates per-cave distribution rules.
//
// A policy is an ordered list of rules mapping path patterns to a desired
// role. Evaluation is first-match-wins: rules never combine, and a path no
// rule matches is one the cave holds no opinion about.
package policy

import (
	"fmt"
	"strings"
)

// Role is what a matching rule wants done with a path in its cave
type Role string

const (
	// RoleGet pulls the path into this cave if another cave has it
	RoleGet Role = "get"

	// RoleCopy maintains a redundant copy here even if this is not the home cave
	RoleCopy Role = "copy"

	// RoleCleanup removes the path here once enough copies exist elsewhere
	RoleCleanup Role = "cleanup"
)

// Rule maps one path pattern to a role
type Rule struct {
	Role    Role      `json:"role" yaml:"role"`
	Pattern string    `json:"pattern" yaml:"pattern"`
	Match   MatchKind `json:"match,omitempty" yaml:"match,omitempty"`
	_       struct{}
}

// String renders a rule in the role:pattern[:match] form accepted by ParseRule
func (r Rule) String() string {
	if r.Match == "" || r.Match == MatchGlob {
		return fmt.Sprintf("%s:%s", r.Role, r.Pattern)
	}
	return fmt.Sprintf("%s:%s:%s", r.Role, r.Pattern, r.Match)
}

// ParseRule parses the role:pattern[:match] form used on the command line
func ParseRule(spec string) (Rule, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) < 2 {
		return Rule{}, fmt.Errorf("rule %q: want role:pattern[:match]", spec)
	}
	rule := Rule{Role: Role(parts[0]), Pattern: parts[1]}
	if len(parts) == 3 {
		rule.Match = MatchKind(parts[2])
	}
	switch rule.Role {
	case RoleGet, RoleCopy, RoleCleanup:
	default:
		return Rule{}, fmt.Errorf("rule %q: unknown role %q", spec, parts[0])
	}
	if rule.Pattern == "" {
		return Rule{}, fmt.Errorf("rule %q: empty pattern", spec)
	}
	if _, err := NewMatcher(rule.Match, rule.Pattern); err != nil {
		return Rule{}, fmt.Errorf("rule %q: %v", spec, err)
	}
	return rule, nil
}

// Policy is an ordered set of rules for one cave
type Policy struct {
	rules    []Rule
	matchers []Matcher
}

// Compile validates the rules and builds their matchers once
func Compile(rules []Rule) (*Policy, error) {
	p := &Policy{
		rules:    make([]Rule, 0, len(rules)),
		matchers: make([]Matcher, 0, len(rules)),
	}
	for _, rule := range rules {
		m, err := NewMatcher(rule.Match, rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %v: %v", rule, err)
		}
		p.rules = append(p.rules, rule)
		p.matchers = append(p.matchers, m)
	}
	return p, nil
}

// MustCompile is Compile for rules known to be valid
func MustCompile(rules []Rule) *Policy {
	p, err := Compile(rules)
	if err != nil {
		panic(err)
	}
	return p
}

// Evaluate yields the desired role for a path, first match wins.
// The second return is false when no rule matches: the cave has no opinion,
// the path is never auto-pulled nor auto-cleaned here.
func (p *Policy) Evaluate(pth string) (Role, bool) {
	for i, m := range p.matchers {
		if m.Match(pth) {
			return p.rules[i].Role, true
		}
	}
	return "", false
}

// Rules yields the ordered rules of this policy
func (p *Policy) Rules() []Rule {
	return p.rules
}

// Empty tells whether the policy holds no rules at all
func (p *Policy) Empty() bool {
	return len(p.rules) == 0
}
