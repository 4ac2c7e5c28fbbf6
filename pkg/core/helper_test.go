package core

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/dragonhoard/dragon/pkg/catalog"
	"github.com/dragonhoard/dragon/pkg/fingerprint"
	"github.com/dragonhoard/dragon/pkg/model"
	"github.com/dragonhoard/dragon/pkg/policy"
	"github.com/dragonhoard/dragon/pkg/storage/localfs"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const (
	testLeafSize  = 64 * 1024
	testChunkSize = 1024
)

// testHoard is an engine over in-memory caves and a throwaway catalog
type testHoard struct {
	*Hoard
	cat *catalog.Catalog
	fss map[string]afero.Fs
}

func newTestHoard(t *testing.T) *testHoard {
	t.Helper()
	cat, err := catalog.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, cat.Close())
	})
	h := New(cat,
		Fingerprinter(fingerprint.New(fingerprint.LeafSize(testLeafSize))),
		ChunkSize(testChunkSize),
	)
	return &testHoard{Hoard: h, cat: cat, fss: make(map[string]afero.Fs)}
}

func (th *testHoard) addCave(t *testing.T, id, name string, caveType model.CaveType, minCopies int, ruleExprs ...string) afero.Fs {
	t.Helper()
	rules := make([]policy.Rule, 0, len(ruleExprs))
	for _, expr := range ruleExprs {
		rule, err := policy.ParseRule(expr)
		require.NoError(t, err)
		rules = append(rules, rule)
	}
	fs := afero.NewMemMapFs()
	descr := model.CaveDescriptor{
		ID:        id,
		Name:      name,
		MountPath: "/" + id,
		Type:      caveType,
		MinCopies: minCopies,
	}
	require.NoError(t, th.AddCave(descr, localfs.New(fs, id), rules))
	th.fss[id] = fs
	return fs
}

func writeFile(t *testing.T, fs afero.Fs, pth string, content []byte) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, pth, content, 0644))
}

// testContent yields n deterministic, non-repeating bytes
func testContent(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*7 + i/251)
	}
	return out
}

func (th *testHoard) hashOf(t *testing.T, content []byte) string {
	t.Helper()
	hash, err := th.maker.ProcessHex(bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	return hash
}

func (th *testHoard) mustPull(t *testing.T, caveID string) *ScanReport {
	t.Helper()
	report, err := th.Pull(context.Background(), caveID)
	require.NoError(t, err)
	return report
}

func (th *testHoard) mustPlan(t *testing.T, caveID string) *model.Plan {
	t.Helper()
	plan, err := th.Plan(context.Background(), caveID)
	require.NoError(t, err)
	return plan
}

// drainEvents consumes a task event stream to exhaustion
func drainEvents(t *testing.T, events <-chan TaskEvent) []TaskEvent {
	t.Helper()
	var out []TaskEvent
	timeout := time.After(30 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out draining task events")
		}
	}
}

// failures filters the failed events out of a drained stream
func failures(events []TaskEvent) []TaskEvent {
	var out []TaskEvent
	for _, ev := range events {
		if ev.Kind == TaskFailed {
			out = append(out, ev)
		}
	}
	return out
}
