package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPath(t *testing.T) {
	for _, test := range []struct {
		in       string
		expected string
	}{
		{"/photos/img1.jpg", "/photos/img1.jpg"},
		{"photos/img1.jpg", "/photos/img1.jpg"},
		{"//photos//x/", "/photos//x"},
		{"\\win\\style\\path", "/win/style/path"},
		{"", "/"},
	} {
		assert.Equal(t, test.expected, CanonicalPath(test.in), "input %q", test.in)
	}
}

func TestPresenceKeyRoundtrip(t *testing.T) {
	key := GetPresenceKey("/photos/img1.jpg", "cave-1")
	components, err := ParsePresenceKey(key)
	require.NoError(t, err)
	assert.Equal(t, "/photos/img1.jpg", components.Path)
	assert.Equal(t, "cave-1", components.CaveID)

	_, err = ParsePresenceKey("entries/foo")
	require.Error(t, err)
	_, err = ParsePresenceKey("presence/no-separator")
	require.Error(t, err)
}

func TestEntryKeyRoundtrip(t *testing.T) {
	key := GetEntryKey("photos/img1.jpg")
	pth, err := ParseEntryKey(key)
	require.NoError(t, err)
	assert.Equal(t, "/photos/img1.jpg", pth)

	_, err = ParseEntryKey("presence/foo")
	require.Error(t, err)
}

func TestPresencePrefixIsolation(t *testing.T) {
	// the prefix of /doc must not capture records of /doc.txt
	prefix := GetPresenceKeyPrefix("/doc")
	other := GetPresenceKey("/doc.txt", "cave-1")
	assert.NotContains(t, other, prefix)
}
