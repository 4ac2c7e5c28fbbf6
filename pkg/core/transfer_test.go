package core

import (
	"context"
	"testing"

	"github.com/dragonhoard/dragon/pkg/catalog"
	"github.com/dragonhoard/dragon/pkg/core/status"
	"github.com/dragonhoard/dragon/pkg/errors"
	"github.com/dragonhoard/dragon/pkg/model"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushCopy(t *testing.T) {
	th := newTestHoard(t)
	fsA := th.addCave(t, "caveA", "alpha", model.CaveTypePartial, 0)
	fsB := th.addCave(t, "caveB", "bravo", model.CaveTypePartial, 0, "get:/photos/**")

	content := testContent(10 * testChunkSize)
	writeFile(t, fsA, "photos/img1.jpg", content)
	th.mustPull(t, "caveA")

	events, plan, err := th.Push(context.Background(), "caveB")
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)

	got := drainEvents(t, events)
	require.Empty(t, failures(got))

	require.NotEmpty(t, got)
	first, last := got[0], got[len(got)-1]
	assert.Equal(t, TaskStarted, first.Kind)
	assert.False(t, first.Resumed)
	assert.EqualValues(t, 0, first.BytesDone)
	assert.Equal(t, TaskDone, last.Kind)
	assert.Equal(t, last.BytesTotal, last.BytesDone)
	assert.EqualValues(t, len(content), last.BytesTotal)

	landed, err := afero.ReadFile(fsB, "photos/img1.jpg")
	require.NoError(t, err)
	assert.Equal(t, content, landed)

	// no partial file or checkpoint survives a completed copy
	exists, err := afero.Exists(fsB, "photos/img1.jpg"+partialSuffix)
	require.NoError(t, err)
	assert.False(t, exists)
	_, err = th.cat.LoadCheckpoint("caveB", "/photos/img1.jpg")
	assert.True(t, errors.Is(err, catalog.ErrNotFound))

	presence, err := th.cat.Presence("/photos/img1.jpg")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPresent, presence["caveB"].Status)
	assert.Equal(t, th.hashOf(t, content), presence["caveB"].Hash)

	// a satisfied want schedules nothing further
	plan = th.mustPlan(t, "caveB")
	assert.Empty(t, plan.Actions)
}

func TestPushResumeAfterCancel(t *testing.T) {
	th := newTestHoard(t)
	fsA := th.addCave(t, "caveA", "alpha", model.CaveTypePartial, 0)
	fsB := th.addCave(t, "caveB", "bravo", model.CaveTypePartial, 0, "get:/big/**")

	// many more chunks than the event buffer holds, so cancellation always
	// lands mid-copy
	content := testContent(64 * testChunkSize)
	writeFile(t, fsA, "big/dataset.bin", content)
	th.mustPull(t, "caveA")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, plan, err := th.Push(ctx, "caveB")
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)

	cancelled := false
	var interrupted []TaskEvent
	for ev := range events {
		interrupted = append(interrupted, ev)
		if ev.Kind == TaskProgress && !cancelled {
			cancel()
			cancelled = true
		}
	}
	require.True(t, cancelled)
	last := interrupted[len(interrupted)-1]
	require.Equal(t, TaskFailed, last.Kind)
	assert.True(t, errors.Is(last.Err, context.Canceled))

	// recoverable state was left behind: a checkpoint matching the partial
	cp, err := th.cat.LoadCheckpoint("caveB", "/big/dataset.bin")
	require.NoError(t, err)
	assert.Greater(t, cp.Offset, int64(0))
	assert.Less(t, cp.Offset, int64(len(content)))
	fi, err := fsB.Stat("big/dataset.bin" + partialSuffix)
	require.NoError(t, err)
	assert.Equal(t, cp.Offset, fi.Size())

	// the next push picks up from the checkpoint, not from byte zero
	events, plan, err = th.Push(context.Background(), "caveB")
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	resumedEvents := drainEvents(t, events)
	require.Empty(t, failures(resumedEvents))

	first := resumedEvents[0]
	require.Equal(t, TaskStarted, first.Kind)
	assert.True(t, first.Resumed)
	assert.Equal(t, cp.Offset, first.BytesDone)

	landed, err := afero.ReadFile(fsB, "big/dataset.bin")
	require.NoError(t, err)
	assert.Equal(t, content, landed)
	_, err = th.cat.LoadCheckpoint("caveB", "/big/dataset.bin")
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
}

func TestPushVerificationFailure(t *testing.T) {
	th := newTestHoard(t)
	fsA := th.addCave(t, "caveA", "alpha", model.CaveTypePartial, 0)
	fsB := th.addCave(t, "caveB", "bravo", model.CaveTypePartial, 0, "get:/photos/**")

	writeFile(t, fsA, "photos/img1.jpg", testContent(3*testChunkSize))
	th.mustPull(t, "caveA")

	plan := th.mustPlan(t, "caveB")
	require.Len(t, plan.Actions, 1)

	// the source mutates between planning and transfer
	writeFile(t, fsA, "photos/img1.jpg", testContent(3*testChunkSize+1))

	events, err := th.Execute(context.Background(), "caveB", plan)
	require.NoError(t, err)
	got := drainEvents(t, events)
	failed := failures(got)
	require.Len(t, failed, 1)
	assert.True(t, errors.Is(failed[0].Err, status.ErrVerification))

	// nothing half-landed sticks around to poison a later attempt
	exists, err := afero.Exists(fsB, "photos/img1.jpg")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = afero.Exists(fsB, "photos/img1.jpg"+partialSuffix)
	require.NoError(t, err)
	assert.False(t, exists)
	_, err = th.cat.LoadCheckpoint("caveB", "/photos/img1.jpg")
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
}

func TestPushSourceVanished(t *testing.T) {
	th := newTestHoard(t)
	fsA := th.addCave(t, "caveA", "alpha", model.CaveTypePartial, 0)
	th.addCave(t, "caveB", "bravo", model.CaveTypePartial, 0, "get:/photos/**")

	writeFile(t, fsA, "photos/img1.jpg", testContent(300))
	th.mustPull(t, "caveA")

	plan := th.mustPlan(t, "caveB")
	require.Len(t, plan.Actions, 1)

	// the chosen source loses the file between planning and execution
	require.NoError(t, fsA.Remove("photos/img1.jpg"))

	events, err := th.Execute(context.Background(), "caveB", plan)
	require.NoError(t, err)
	failed := failures(drainEvents(t, events))
	require.Len(t, failed, 1)
	assert.True(t, errors.Is(failed[0].Err, status.ErrUnsatisfiable))
}

func TestPushSkipsFreshDivergence(t *testing.T) {
	th := newTestHoard(t)
	fsA := th.addCave(t, "caveA", "alpha", model.CaveTypePartial, 0)
	fsC := th.addCave(t, "caveC", "charlie", model.CaveTypePartial, 0)
	th.addCave(t, "caveB", "bravo", model.CaveTypePartial, 0, "get:/photos/**")

	writeFile(t, fsA, "photos/img1.jpg", testContent(300))
	th.mustPull(t, "caveA")

	plan := th.mustPlan(t, "caveB")
	require.Len(t, plan.Actions, 1)

	// a conflicting copy shows up elsewhere after the plan was computed
	writeFile(t, fsC, "photos/img1.jpg", testContent(301))
	th.mustPull(t, "caveC")

	events, err := th.Execute(context.Background(), "caveB", plan)
	require.NoError(t, err)
	failed := failures(drainEvents(t, events))
	require.Len(t, failed, 1)
	assert.True(t, errors.Is(failed[0].Err, status.ErrDivergent))
}

func TestPushCleanup(t *testing.T) {
	th := newTestHoard(t)
	fsA := th.addCave(t, "caveA", "alpha", model.CaveTypePartial, 0, "cleanup:/raw/**")
	fsB := th.addCave(t, "caveB", "bravo", model.CaveTypeBackup, 0)

	content := testContent(2 * testChunkSize)
	writeFile(t, fsA, "raw/shot.cr2", content)
	writeFile(t, fsB, "raw/shot.cr2", content)
	th.mustPull(t, "caveA")
	th.mustPull(t, "caveB")

	events, plan, err := th.Push(context.Background(), "caveA")
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	require.Empty(t, failures(drainEvents(t, events)))

	exists, err := afero.Exists(fsA, "raw/shot.cr2")
	require.NoError(t, err)
	assert.False(t, exists)

	presence, err := th.cat.Presence("/raw/shot.cr2")
	require.NoError(t, err)
	assert.NotContains(t, presence, "caveA")
	assert.Equal(t, model.StatusPresent, presence["caveB"].Status)

	// the entry survives: another cave still holds the content
	_, err = th.cat.Entry("/raw/shot.cr2")
	assert.NoError(t, err)
}

func TestCleanupRefusesEditedFile(t *testing.T) {
	th := newTestHoard(t)
	fsA := th.addCave(t, "caveA", "alpha", model.CaveTypePartial, 0, "cleanup:/raw/**")
	fsB := th.addCave(t, "caveB", "bravo", model.CaveTypeBackup, 0)

	content := testContent(400)
	writeFile(t, fsA, "raw/shot.cr2", content)
	writeFile(t, fsB, "raw/shot.cr2", content)
	th.mustPull(t, "caveA")
	th.mustPull(t, "caveB")

	plan := th.mustPlan(t, "caveA")
	require.Len(t, plan.Actions, 1)

	// the user edits the file after the plan was computed
	writeFile(t, fsA, "raw/shot.cr2", []byte("freshly edited, do not delete"))

	events, err := th.Execute(context.Background(), "caveA", plan)
	require.NoError(t, err)
	failed := failures(drainEvents(t, events))
	require.Len(t, failed, 1)
	assert.True(t, errors.Is(failed[0].Err, status.ErrVerification))

	exists, err := afero.Exists(fsA, "raw/shot.cr2")
	require.NoError(t, err)
	assert.True(t, exists)

	// the fresh observation lands in the catalog instead
	presence, perr := th.cat.Presence("/raw/shot.cr2")
	require.NoError(t, perr)
	assert.Equal(t, th.hashOf(t, []byte("freshly edited, do not delete")), presence["caveA"].Hash)
}

func TestCleanupRechecksRedundancy(t *testing.T) {
	th := newTestHoard(t)
	fsA := th.addCave(t, "caveA", "alpha", model.CaveTypePartial, 0, "cleanup:/raw/**")
	fsB := th.addCave(t, "caveB", "bravo", model.CaveTypeBackup, 0)

	content := testContent(400)
	writeFile(t, fsA, "raw/shot.cr2", content)
	writeFile(t, fsB, "raw/shot.cr2", content)
	th.mustPull(t, "caveA")
	th.mustPull(t, "caveB")

	plan := th.mustPlan(t, "caveA")
	require.Len(t, plan.Actions, 1)

	// the redundant copy disappears between planning and execution
	require.NoError(t, th.cat.ClearPresence("/raw/shot.cr2", "caveB"))

	events, err := th.Execute(context.Background(), "caveA", plan)
	require.NoError(t, err)
	failed := failures(drainEvents(t, events))
	require.Len(t, failed, 1)
	assert.True(t, errors.Is(failed[0].Err, status.ErrInsufficientRedundancy))

	exists, err := afero.Exists(fsA, "raw/shot.cr2")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestResolve(t *testing.T) {
	th := newTestHoard(t)
	fsA := th.addCave(t, "caveA", "alpha", model.CaveTypePartial, 0)
	fsB := th.addCave(t, "caveB", "bravo", model.CaveTypePartial, 0, "get:/**")

	writeFile(t, fsA, "doc.txt", []byte("v1"))
	writeFile(t, fsB, "doc.txt", []byte("v2, edited offline"))
	th.mustPull(t, "caveA")
	th.mustPull(t, "caveB")

	// resolving in favor of the alpha copy, addressed by cave name
	require.NoError(t, th.Resolve("/doc.txt", "alpha"))

	entry, err := th.cat.Entry("/doc.txt")
	require.NoError(t, err)
	assert.False(t, entry.Divergent)
	assert.Equal(t, th.hashOf(t, []byte("v1")), entry.Hash)

	// the loser now fetches the winning content back
	plan := th.mustPlan(t, "caveB")
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, model.ActionGet, plan.Actions[0].Kind)
	assert.Equal(t, "caveA", plan.Actions[0].SourceCave)
	require.Empty(t, failures(drainEvents(t, mustExecute(t, th, "caveB", plan))))

	landed, err := afero.ReadFile(fsB, "doc.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), landed)

	assert.True(t, errors.Is(th.Resolve("/doc.txt", "alpha"), status.ErrNotDivergent))
}

func mustExecute(t *testing.T, th *testHoard, caveID string, plan *model.Plan) <-chan TaskEvent {
	t.Helper()
	events, err := th.Execute(context.Background(), caveID, plan)
	require.NoError(t, err)
	return events
}

func TestExecuteCaveBusy(t *testing.T) {
	th := newTestHoard(t)
	th.addCave(t, "caveA", "alpha", model.CaveTypePartial, 0)

	require.NoError(t, th.acquireCave("caveA"))
	_, err := th.Execute(context.Background(), "caveA", &model.Plan{CaveID: "caveA"})
	assert.True(t, errors.Is(err, status.ErrCaveBusy))

	th.releaseCave("caveA")
	events, err := th.Execute(context.Background(), "caveA", &model.Plan{CaveID: "caveA"})
	require.NoError(t, err)
	drainEvents(t, events)
}
