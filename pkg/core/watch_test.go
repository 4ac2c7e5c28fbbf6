package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dragonhoard/dragon/pkg/errors"
	"github.com/dragonhoard/dragon/pkg/model"
	"github.com/dragonhoard/dragon/pkg/storage/localfs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch(t *testing.T) {
	th := newTestHoard(t)
	root := t.TempDir()
	descr := model.CaveDescriptor{
		ID:        "caveW",
		Name:      "whiskey",
		MountPath: root,
		Type:      model.CaveTypePartial,
	}
	require.NoError(t, th.AddCave(descr, localfs.NewAtRoot(root), nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- th.Watch(ctx, "caveW", Debounce(50*time.Millisecond))
	}()

	// let the watcher register the root before dropping a file in
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "dropped.txt"), []byte("landed while watching"), 0644))

	require.Eventually(t, func() bool {
		_, err := th.cat.Entry("/dropped.txt")
		return err == nil
	}, 10*time.Second, 50*time.Millisecond, "watcher never merged the new file")

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop on cancellation")
	}
}
