// Package core implements the reconciliation and transfer engine of the
// hoard: scanning caves (pull), deriving per-cave action plans from policy
// (reconcile) and executing plans as long-running, resumable transfers
// (push).
package core

import (
	"sort"
	"sync"

	"github.com/dragonhoard/dragon/pkg/catalog"
	"github.com/dragonhoard/dragon/pkg/core/status"
	"github.com/dragonhoard/dragon/pkg/dlogger"
	"github.com/dragonhoard/dragon/pkg/fingerprint"
	"github.com/dragonhoard/dragon/pkg/model"
	"github.com/dragonhoard/dragon/pkg/policy"
	"github.com/dragonhoard/dragon/pkg/storage"

	units "github.com/docker/go-units"
	"go.uber.org/zap"
)

const (
	// partialSuffix marks in-flight destination files left by interrupted copies
	partialSuffix = ".dragonpart"

	defaultChunkSize = 1 * units.MB
)

// Cave binds one registered storage location to its policy and store
type Cave struct {
	Descriptor model.CaveDescriptor
	Store      storage.Store
	Policy     *policy.Policy
}

// MinCopies yields the redundancy floor gating cleanups for this cave
func (c *Cave) MinCopies() int {
	if c.Descriptor.MinCopies > 0 {
		return c.Descriptor.MinCopies
	}
	return 1
}

// Hoard is the engine facade: it owns the cave registry, the per-cave
// serialization locks and the session's connected set, and coordinates
// scans, plans and transfers against the catalog.
type Hoard struct {
	catalog *catalog.Catalog
	maker   *fingerprint.Maker
	l       *zap.Logger

	chunkSize int64

	mu        sync.Mutex
	caves     map[string]*Cave
	busy      map[string]bool
	connected map[string]bool
}

// Option alters the behavior of a Hoard
type Option func(*Hoard)

// Logger sets a logger for the engine
func Logger(l *zap.Logger) Option {
	return func(h *Hoard) {
		if l != nil {
			h.l = l
		}
	}
}

// Fingerprinter overrides the fingerprint maker (e.g. smaller leaves in tests)
func Fingerprinter(m *fingerprint.Maker) Option {
	return func(h *Hoard) {
		if m != nil {
			h.maker = m
		}
	}
}

// ChunkSize overrides the transfer chunk size, which is also the checkpoint
// granularity of resumable copies
func ChunkSize(sz int64) Option {
	return func(h *Hoard) {
		if sz > 0 {
			h.chunkSize = sz
		}
	}
}

// New creates an engine over a catalog
func New(cat *catalog.Catalog, opts ...Option) *Hoard {
	h := &Hoard{
		catalog:   cat,
		maker:     fingerprint.New(),
		l:         dlogger.MustGetLogger(dlogger.LogLevelNone),
		chunkSize: defaultChunkSize,
		caves:     make(map[string]*Cave),
		busy:      make(map[string]bool),
		connected: make(map[string]bool),
	}
	for _, apply := range opts {
		apply(h)
	}
	return h
}

// Catalog yields the engine's catalog
func (h *Hoard) Catalog() *catalog.Catalog {
	return h.catalog
}

// AddCave registers a cave with the engine, compiling its policy rules
func (h *Hoard) AddCave(descr model.CaveDescriptor, store storage.Store, rules []policy.Rule) error {
	compiled, err := policy.Compile(rules)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.caves[descr.ID] = &Cave{
		Descriptor: descr,
		Store:      store,
		Policy:     compiled,
	}
	return nil
}

// Cave resolves a cave by id or by name
func (h *Hoard) Cave(idOrName string) (*Cave, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cave, ok := h.caves[idOrName]; ok {
		return cave, nil
	}
	for _, cave := range h.caves {
		if cave.Descriptor.Name == idOrName {
			return cave, nil
		}
	}
	return nil, status.ErrUnknownCave
}

// Caves yields the registered caves, ordered by id for reproducible plans
func (h *Hoard) Caves() []*Cave {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Cave, 0, len(h.caves))
	for _, cave := range h.caves {
		out = append(out, cave)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Descriptor.ID < out[j].Descriptor.ID
	})
	return out
}

// acquireCave takes the per-cave serialization slot: a cave runs at most one
// scan or transfer at a time, operations on different caves run concurrently.
func (h *Hoard) acquireCave(caveID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.busy[caveID] {
		return status.ErrCaveBusy
	}
	h.busy[caveID] = true
	return nil
}

func (h *Hoard) releaseCave(caveID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.busy, caveID)
}

// markConnected remembers that a cave completed a scan in this session,
// making it a preferred transfer source.
func (h *Hoard) markConnected(caveID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected[caveID] = true
}

func (h *Hoard) isConnected(caveID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected[caveID]
}
