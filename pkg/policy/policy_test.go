package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRule(t *testing.T) {
	rule, err := ParseRule("get:/photos/**")
	require.NoError(t, err)
	assert.Equal(t, RoleGet, rule.Role)
	assert.Equal(t, "/photos/**", rule.Pattern)
	assert.Equal(t, MatchKind(""), rule.Match)

	rule, err = ParseRule("cleanup:/old/:prefix")
	require.NoError(t, err)
	assert.Equal(t, RoleCleanup, rule.Role)
	assert.Equal(t, MatchPrefix, rule.Match)

	for _, bad := range []string{
		"",
		"get",
		"shred:/photos/**",
		"get:",
		"get:/photos/**:telepathy",
		`copy:/docs/[a-:regex`,
	} {
		_, err := ParseRule(bad)
		require.Error(t, err, "expected %q to fail", bad)
	}
}

func TestEvaluate_FirstMatchWins(t *testing.T) {
	p, err := Compile([]Rule{
		{Role: RoleGet, Pattern: "/photos/**"},
		{Role: RoleCleanup, Pattern: "/photos/raw/**"},
		{Role: RoleCopy, Pattern: "/docs/", Match: MatchPrefix},
	})
	require.NoError(t, err)

	role, ok := p.Evaluate("/photos/raw/img.cr2")
	require.True(t, ok)
	// the broader get rule comes first: the cleanup rule never fires
	assert.Equal(t, RoleGet, role)

	role, ok = p.Evaluate("/docs/report.pdf")
	require.True(t, ok)
	assert.Equal(t, RoleCopy, role)

	_, ok = p.Evaluate("/music/track.flac")
	assert.False(t, ok)
}

func TestEvaluate_NoRulesNoOpinion(t *testing.T) {
	p, err := Compile(nil)
	require.NoError(t, err)
	assert.True(t, p.Empty())
	_, ok := p.Evaluate("/anything")
	assert.False(t, ok)
}

func TestMatchers(t *testing.T) {
	glob, err := NewMatcher(MatchGlob, "/photos/**")
	require.NoError(t, err)
	assert.True(t, glob.Match("/photos/2024/img1.jpg"))
	assert.False(t, glob.Match("/music/img1.jpg"))

	prefix, err := NewMatcher(MatchPrefix, "/old/")
	require.NoError(t, err)
	assert.True(t, prefix.Match("/old/report.pdf"))
	assert.False(t, prefix.Match("/older/report.pdf"))

	re, err := NewMatcher(MatchRegex, `\.bak$`)
	require.NoError(t, err)
	assert.True(t, re.Match("/any/file.bak"))
	assert.False(t, re.Match("/any/file.bak.txt"))

	_, err = NewMatcher(MatchRegex, `([`)
	require.Error(t, err)

	_, err = NewMatcher("telepathy", "x")
	require.Error(t, err)
}

func TestCompile_InvalidRule(t *testing.T) {
	_, err := Compile([]Rule{{Role: RoleGet, Pattern: `([`, Match: MatchRegex}})
	require.Error(t, err)
}
