// Package catalog maintains the canonical record of the hoard: which logical
// path carries which content, and which cave holds (or wants, or should shed)
// a copy of it.
//
// The catalog is the single source of truth and the only component allowed to
// mutate hoard entries and presence records. Scanners and executors report
// observations and results through its contract; they never write records of
// their own. Records are keyed per path and per (path, cave), so partial
// scans merge safely and a disconnected cave keeps its last-known state until
// rescanned.
package catalog

import (
	"fmt"
	"sync"

	"github.com/dragonhoard/dragon/pkg/dlogger"
	"github.com/dragonhoard/dragon/pkg/errors"
	"github.com/dragonhoard/dragon/pkg/model"

	"github.com/dgraph-io/badger/v3"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var (
	// ErrNotFound indicates the catalog holds no record for the requested key
	ErrNotFound = errors.New("no such catalog record")
)

// Option alters the behavior of a catalog
type Option func(*Catalog)

// Logger sets a logger for the catalog
func Logger(l *zap.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.l = l
		}
	}
}

// Catalog records hoard entries, presence records and transfer checkpoints
// in a local KV store.
type Catalog struct {
	kv kvStore
	l  *zap.Logger

	// record updates are read-modify-write over several keys: one writer at
	// a time keeps per-path invariants (divergence flag) coherent
	mu sync.Mutex
}

// New opens a catalog persisted at pth
func New(pth string, opts ...Option) (*Catalog, error) {
	kv, err := makeKVBadger(pth)
	if err != nil {
		return nil, err
	}
	c := &Catalog{
		kv: kv,
		l:  dlogger.MustGetLogger(dlogger.LogLevelNone),
	}
	for _, apply := range opts {
		apply(c)
	}
	return c, nil
}

// Close releases the underlying KV store
func (c *Catalog) Close() error {
	return c.kv.Close()
}

// Size reports the size in bytes of the backing store
func (c *Catalog) Size() uint64 {
	return c.kv.Size()
}

// RecordPresence upserts the presence of a path in a cave.
//
// The upsert is idempotent. When it introduces a second `present` record
// with a conflicting hash for the same path, the hoard entry flips to
// divergent and stays that way until resolved: divergent paths are excluded
// from automatic reconciliation.
func (c *Catalog) RecordPresence(rec model.PresenceRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec.Path = model.CanonicalPath(rec.Path)
	value, err := jsoniter.Marshal(rec)
	if err != nil {
		return err
	}
	if err := c.kv.Set([]byte(model.GetPresenceKey(rec.Path, rec.CaveID)), value); err != nil {
		return err
	}
	return c.refreshEntry(rec.Path, rec.Size)
}

// ClearPresence forgets the presence of a path in one cave. The hoard entry
// survives while other caves still reference the path.
func (c *Catalog) ClearPresence(pth, caveID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pth = model.CanonicalPath(pth)
	if err := c.kv.Delete([]byte(model.GetPresenceKey(pth, caveID))); err != nil {
		return err
	}
	return c.refreshEntry(pth, -1)
}

// refreshEntry recomputes a hoard entry from its presence records.
// Callers hold c.mu.
func (c *Catalog) refreshEntry(pth string, size int64) error {
	records, err := c.presenceLocked(pth)
	if err != nil {
		return err
	}

	entry, err := c.entryLocked(pth)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, ErrNotFound) {
		if len(records) == 0 {
			// nothing references the path anymore, nothing to create
			return nil
		}
		entry = model.HoardEntry{Path: pth}
	}

	hashes := make(map[string]struct{})
	for _, rec := range records {
		if rec.Status == model.StatusPresent || rec.Status == model.StatusCleanup {
			if rec.Hash != "" {
				hashes[rec.Hash] = struct{}{}
			}
			if rec.Size > 0 {
				entry.Size = rec.Size
			}
		}
	}

	switch len(hashes) {
	case 0:
		// path known but not currently backed by any cave: last hash survives
		entry.Divergent = false
	case 1:
		for h := range hashes {
			entry.Hash = h
		}
		entry.Divergent = false
	default:
		if !entry.Divergent {
			c.l.Warn("path entered divergence",
				zap.String("path", pth),
				zap.Int("conflicting_hashes", len(hashes)))
		}
		entry.Divergent = true
	}
	if size > 0 {
		entry.Size = size
	}

	value, err := jsoniter.Marshal(entry)
	if err != nil {
		return err
	}
	return c.kv.Set([]byte(model.GetEntryKey(pth)), value)
}

// Entry yields the hoard entry for a path
func (c *Catalog) Entry(pth string) (model.HoardEntry, error) {
	value, err := c.kv.Get([]byte(model.GetEntryKey(model.CanonicalPath(pth))))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return model.HoardEntry{}, ErrNotFound
		}
		return model.HoardEntry{}, err
	}
	var entry model.HoardEntry
	if err := jsoniter.Unmarshal(value, &entry); err != nil {
		return model.HoardEntry{}, err
	}
	return entry, nil
}

func (c *Catalog) entryLocked(pth string) (model.HoardEntry, error) {
	return c.Entry(pth)
}

// Presence yields a read-only snapshot of the presence of a path across caves
func (c *Catalog) Presence(pth string) (map[string]model.PresenceRecord, error) {
	return c.presenceLocked(model.CanonicalPath(pth))
}

func (c *Catalog) presenceLocked(pth string) (map[string]model.PresenceRecord, error) {
	records := make(map[string]model.PresenceRecord)
	it := c.kv.ScanPrefix([]byte(model.GetPresenceKeyPrefix(pth)))
	defer func() {
		_ = it.Close()
	}()
	for it.Next() {
		_, value, err := it.Item()
		if err != nil {
			return nil, err
		}
		var rec model.PresenceRecord
		if err := jsoniter.Unmarshal(value, &rec); err != nil {
			return nil, err
		}
		records[rec.CaveID] = rec
	}
	return records, nil
}

// WalkPaths invokes fn for every known logical path. Iteration is stable
// within a single walk; a non-nil error from fn stops the walk.
func (c *Catalog) WalkPaths(fn func(pth string) error) error {
	it := c.kv.ScanPrefix([]byte("entries/"))
	defer func() {
		_ = it.Close()
	}()
	for it.Next() {
		key, _, err := it.Item()
		if err != nil {
			return err
		}
		pth, err := model.ParseEntryKey(string(key))
		if err != nil {
			return err
		}
		if err := fn(pth); err != nil {
			return err
		}
	}
	return nil
}

// CavePresence yields the last-known presence records of one cave, keyed by
// logical path. This is what a scanner diffs the filesystem against.
func (c *Catalog) CavePresence(caveID string) (map[string]model.PresenceRecord, error) {
	records := make(map[string]model.PresenceRecord)
	it := c.kv.ScanPrefix([]byte("presence/"))
	defer func() {
		_ = it.Close()
	}()
	for it.Next() {
		_, value, err := it.Item()
		if err != nil {
			return nil, err
		}
		var rec model.PresenceRecord
		if err := jsoniter.Unmarshal(value, &rec); err != nil {
			return nil, err
		}
		if rec.CaveID == caveID {
			records[rec.Path] = rec
		}
	}
	return records, nil
}

// RemoveIfOrphaned deletes the hoard entry for a path once no cave
// references it anymore. It reports whether the entry was removed.
//
// The caller is responsible for checking that no policy still wants the
// path: the catalog does not know about policies.
func (c *Catalog) RemoveIfOrphaned(pth string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pth = model.CanonicalPath(pth)
	records, err := c.presenceLocked(pth)
	if err != nil {
		return false, err
	}
	if len(records) > 0 {
		return false, nil
	}
	if err := c.kv.Delete([]byte(model.GetEntryKey(pth))); err != nil {
		return false, err
	}
	c.l.Debug("removed orphaned entry", zap.String("path", pth))
	return true, nil
}

// ResolveDivergence collapses a divergent path in favor of the copy held by
// one cave: that copy's hash becomes the entry's content id, and every other
// cave presenting a different hash is demoted to `wanted` so it re-fetches
// the winning content on a later pass.
func (c *Catalog) ResolveDivergence(pth, caveID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pth = model.CanonicalPath(pth)
	records, err := c.presenceLocked(pth)
	if err != nil {
		return err
	}
	winner, ok := records[caveID]
	if !ok || winner.Status != model.StatusPresent {
		return ErrNotFound.Wrap(fmt.Errorf("cave %s has no present copy of %s", caveID, pth))
	}

	for id, rec := range records {
		if id == caveID || rec.Status != model.StatusPresent || rec.Hash == winner.Hash {
			continue
		}
		rec.Status = model.StatusWanted
		value, e := jsoniter.Marshal(rec)
		if e != nil {
			return e
		}
		if e := c.kv.Set([]byte(model.GetPresenceKey(pth, id)), value); e != nil {
			return e
		}
	}

	c.l.Info("divergence resolved",
		zap.String("path", pth),
		zap.String("winner", caveID),
		zap.String("hash", winner.Hash))
	return c.refreshEntry(pth, winner.Size)
}

// SaveCheckpoint persists the resumable state of a partial transfer
func (c *Catalog) SaveCheckpoint(cp model.Checkpoint) error {
	cp.Path = model.CanonicalPath(cp.Path)
	value, err := jsoniter.Marshal(cp)
	if err != nil {
		return err
	}
	return c.kv.Set([]byte(model.GetCheckpointKey(cp.CaveID, cp.Path)), value)
}

// LoadCheckpoint retrieves the checkpoint of a partial transfer, if any
func (c *Catalog) LoadCheckpoint(caveID, pth string) (model.Checkpoint, error) {
	value, err := c.kv.Get([]byte(model.GetCheckpointKey(caveID, model.CanonicalPath(pth))))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return model.Checkpoint{}, ErrNotFound
		}
		return model.Checkpoint{}, err
	}
	var cp model.Checkpoint
	if err := jsoniter.Unmarshal(value, &cp); err != nil {
		return model.Checkpoint{}, err
	}
	return cp, nil
}

// DropCheckpoint forgets the checkpoint of a transfer
func (c *Catalog) DropCheckpoint(caveID, pth string) error {
	return c.kv.Delete([]byte(model.GetCheckpointKey(caveID, model.CanonicalPath(pth))))
}
