package policy

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar"
)

// MatchKind selects the pattern syntax of a rule
type MatchKind string

const (
	// MatchGlob matches with doublestar globs (the default), e.g. /photos/**
	MatchGlob MatchKind = "glob"

	// MatchPrefix matches a literal path prefix
	MatchPrefix MatchKind = "prefix"

	// MatchRegex matches an RE2 regular expression
	MatchRegex MatchKind = "regex"
)

// Matcher knows whether a logical path falls under a pattern.
//
// Keeping this small keeps rule syntax out of the engine: the reconciler only
// ever sees a yes/no answer.
type Matcher interface {
	Match(pth string) bool
	String() string
}

// NewMatcher compiles a pattern with the given syntax
func NewMatcher(kind MatchKind, pattern string) (Matcher, error) {
	switch kind {
	case MatchPrefix:
		return prefixMatcher(pattern), nil
	case MatchRegex:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		return regexMatcher{re: re}, nil
	case MatchGlob, "":
		// compile-check the pattern upfront
		if _, err := doublestar.Match(pattern, ""); err != nil {
			return nil, err
		}
		return globMatcher(pattern), nil
	default:
		return nil, errUnknownMatchKind(kind)
	}
}

type errUnknownMatchKind MatchKind

func (e errUnknownMatchKind) Error() string {
	return "unknown match kind: " + string(e)
}

type globMatcher string

func (g globMatcher) Match(pth string) bool {
	ok, err := doublestar.Match(string(g), pth)
	return err == nil && ok
}

func (g globMatcher) String() string {
	return string(g)
}

type prefixMatcher string

func (p prefixMatcher) Match(pth string) bool {
	return strings.HasPrefix(pth, string(p))
}

func (p prefixMatcher) String() string {
	return string(p)
}

type regexMatcher struct {
	re *regexp.Regexp
}

func (r regexMatcher) Match(pth string) bool {
	return r.re.MatchString(pth)
}

func (r regexMatcher) String() string {
	return r.re.String()
}
