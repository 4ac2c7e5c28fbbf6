package core

import (
	"context"
	"testing"

	"github.com/dragonhoard/dragon/pkg/core/status"
	"github.com/dragonhoard/dragon/pkg/errors"
	"github.com/dragonhoard/dragon/pkg/model"
	"github.com/dragonhoard/dragon/pkg/storage"
	"github.com/dragonhoard/dragon/pkg/storage/localfs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPull(t *testing.T) {
	th := newTestHoard(t)
	fs := th.addCave(t, "caveA", "alpha", model.CaveTypePartial, 0)

	writeFile(t, fs, "photos/img1.jpg", testContent(300))
	writeFile(t, fs, "notes.txt", []byte("remember the milk"))

	report := th.mustPull(t, "caveA")
	assert.Equal(t, 2, report.Added)
	assert.Equal(t, 0, report.Updated)
	assert.Empty(t, report.Errors)
	assert.False(t, report.Incomplete)

	entry, err := th.cat.Entry("/photos/img1.jpg")
	require.NoError(t, err)
	assert.Equal(t, th.hashOf(t, testContent(300)), entry.Hash)
	assert.EqualValues(t, 300, entry.Size)

	// nothing changed: the second pull fast-skips on size and mtime
	report = th.mustPull(t, "caveA")
	assert.Equal(t, 2, report.Unchanged)
	assert.Equal(t, 0, report.Added)
	assert.Equal(t, 0, report.Updated)

	// an edit is picked up as an update
	writeFile(t, fs, "notes.txt", []byte("remember the milk, and eggs"))
	report = th.mustPull(t, "caveA")
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Unchanged)

	entry, err = th.cat.Entry("/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, th.hashOf(t, []byte("remember the milk, and eggs")), entry.Hash)

	// a local delete clears this cave's presence
	require.NoError(t, fs.Remove("notes.txt"))
	report = th.mustPull(t, "caveA")
	assert.Equal(t, 1, report.Removed)

	presence, err := th.cat.Presence("/notes.txt")
	require.NoError(t, err)
	assert.Empty(t, presence)
}

func TestPullByName(t *testing.T) {
	th := newTestHoard(t)
	fs := th.addCave(t, "caveA", "alpha", model.CaveTypePartial, 0)
	writeFile(t, fs, "a.txt", []byte("aye"))

	report := th.mustPull(t, "alpha")
	assert.Equal(t, "caveA", report.CaveID)
	assert.Equal(t, 1, report.Added)
}

func TestPullUnknownCave(t *testing.T) {
	th := newTestHoard(t)
	_, err := th.Pull(context.Background(), "nowhere")
	assert.True(t, errors.Is(err, status.ErrUnknownCave))
}

func TestPullSkipsPartials(t *testing.T) {
	th := newTestHoard(t)
	fs := th.addCave(t, "caveA", "alpha", model.CaveTypePartial, 0)

	writeFile(t, fs, "a.txt", []byte("aye"))
	writeFile(t, fs, "big.bin"+partialSuffix, testContent(100))

	report := th.mustPull(t, "caveA")
	assert.Equal(t, 1, report.Added)

	_, err := th.cat.Entry("/big.bin" + partialSuffix)
	assert.Error(t, err)
}

// brokenWalkStore fails the walk after a fixed number of visited keys
type brokenWalkStore struct {
	storage.Store
	visits int
	budget int
}

var errWalkBroken = errors.New("device error mid-walk")

func (s *brokenWalkStore) Walk(ctx context.Context, prefix string, fn func(string) error) error {
	return s.Store.Walk(ctx, prefix, func(key string) error {
		if s.visits >= s.budget {
			return errWalkBroken
		}
		s.visits++
		return fn(key)
	})
}

func TestPullIncompleteWalk(t *testing.T) {
	th := newTestHoard(t)
	fs := th.addCave(t, "caveA", "alpha", model.CaveTypePartial, 0)

	writeFile(t, fs, "a.txt", []byte("aye"))
	writeFile(t, fs, "b.txt", []byte("bee"))
	th.mustPull(t, "caveA")

	// the cave now fails partway through every walk
	descr := model.CaveDescriptor{ID: "caveA", Name: "alpha", MountPath: "/caveA", Type: model.CaveTypePartial}
	require.NoError(t, th.AddCave(descr, &brokenWalkStore{Store: localfs.New(fs, "caveA"), budget: 1}, nil))

	// both files are gone locally, but the interrupted walk must not be
	// trusted for removal detection
	require.NoError(t, fs.Remove("a.txt"))
	require.NoError(t, fs.Remove("b.txt"))

	report, err := th.Pull(context.Background(), "caveA")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrScanIO))
	require.NotNil(t, report)
	assert.True(t, report.Incomplete)
	assert.Equal(t, 0, report.Removed)

	// last-known state survives for both paths
	for _, pth := range []string{"/a.txt", "/b.txt"} {
		presence, perr := th.cat.Presence(pth)
		require.NoError(t, perr)
		assert.Contains(t, presence, "caveA", pth)
	}
}

func TestPullDivergence(t *testing.T) {
	th := newTestHoard(t)
	fsA := th.addCave(t, "caveA", "alpha", model.CaveTypePartial, 0)
	fsB := th.addCave(t, "caveB", "bravo", model.CaveTypePartial, 0)

	writeFile(t, fsA, "doc.txt", []byte("v1"))
	writeFile(t, fsB, "doc.txt", []byte("v1"))
	th.mustPull(t, "caveA")
	th.mustPull(t, "caveB")

	entry, err := th.cat.Entry("/doc.txt")
	require.NoError(t, err)
	assert.False(t, entry.Divergent)

	// an independent edit on one cave flips the entry divergent
	writeFile(t, fsB, "doc.txt", []byte("v2, edited offline"))
	th.mustPull(t, "caveB")

	entry, err = th.cat.Entry("/doc.txt")
	require.NoError(t, err)
	assert.True(t, entry.Divergent)
}
