package core

import (
	"context"
	"io"
	"time"

	"github.com/dragonhoard/dragon/pkg/catalog"
	"github.com/dragonhoard/dragon/pkg/core/status"
	"github.com/dragonhoard/dragon/pkg/errors"
	"github.com/dragonhoard/dragon/pkg/model"
	"github.com/dragonhoard/dragon/pkg/policy"
	storagestatus "github.com/dragonhoard/dragon/pkg/storage/status"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// Execute runs a plan against a cave, one action at a time, and streams task
// events until the plan is exhausted or the context is cancelled.
//
// Individual in-flight copies are resumable across invocations: every chunk
// lands in a partial file and bumps a persisted checkpoint, so a drive
// unplugged mid-copy or a killed process leaves recoverable state behind.
// Cancellation happens between chunks and is never destructive to
// already-landed data.
func (h *Hoard) Execute(ctx context.Context, caveID string, plan *model.Plan) (<-chan TaskEvent, error) {
	cave, err := h.Cave(caveID)
	if err != nil {
		return nil, err
	}
	id := cave.Descriptor.ID
	if err = h.acquireCave(id); err != nil {
		return nil, err
	}

	events := make(chan TaskEvent, 16)
	go func() {
		defer close(events)
		defer h.releaseCave(id)

		for _, action := range plan.Actions {
			select {
			case <-ctx.Done():
				return
			default:
			}
			h.executeOne(ctx, cave, action, events)
		}
	}()
	return events, nil
}

// executeOne runs a single action, reporting its lifecycle on events
func (h *Hoard) executeOne(ctx context.Context, cave *Cave, action model.Action, events chan<- TaskEvent) {
	task := TaskEvent{
		TaskID:  ksuid.New().String(),
		CaveID:  cave.Descriptor.ID,
		Action:  action,
		Started: time.Now(),
	}

	var err error
	switch action.Kind {
	case model.ActionGet, model.ActionCopy:
		err = h.copyOne(ctx, cave, action, task, events)
	case model.ActionCleanup:
		err = h.cleanupOne(ctx, cave, action, task, events)
	}
	if err != nil {
		task.Kind = TaskFailed
		task.Err = err
		h.l.Warn("action failed",
			zap.String("cave", cave.Descriptor.ID),
			zap.String("path", action.Path),
			zap.String("kind", string(action.Kind)),
			zap.Error(err))
		events <- task
		return
	}
	task.Kind = TaskDone
	task.BytesDone = action.Size
	task.BytesTotal = action.Size
	events <- task
}

// copyOne stream-copies a path from its source cave, checkpointing every
// chunk, then verifies the landed bytes against the expected content id
// before moving the file into place and reporting back to the catalog.
func (h *Hoard) copyOne(ctx context.Context, cave *Cave, action model.Action, task TaskEvent, events chan<- TaskEvent) error {
	id := cave.Descriptor.ID
	source, err := h.Cave(action.SourceCave)
	if err != nil {
		return err
	}

	// the path may have diverged since the plan was computed
	if entry, eerr := h.catalog.Entry(action.Path); eerr == nil && entry.Divergent {
		return status.ErrDivergent
	}

	key := model.StoreKey(action.Path)
	partial := key + partialSuffix

	offset, resumed, err := h.resumeOffset(ctx, cave, action, partial)
	if err != nil {
		return err
	}

	task.Kind = TaskStarted
	task.BytesDone = offset
	task.BytesTotal = action.Size
	task.Resumed = resumed
	events <- task

	rdr, err := source.Store.GetAt(ctx, key, offset)
	if err != nil {
		if errors.Is(err, storagestatus.ErrNotExists) {
			// the chosen source lost the content since planning
			return status.ErrUnsatisfiable.Wrap(err)
		}
		return err
	}
	defer func() {
		_ = rdr.Close()
	}()
	w, err := cave.Store.OpenAppend(ctx, partial)
	if err != nil {
		return err
	}

	buf := make([]byte, h.chunkSize)
	for {
		select {
		case <-ctx.Done():
			// leave the partial file and its checkpoint behind: the next
			// invocation resumes from here
			_ = w.Close()
			return ctx.Err()
		default:
		}
		n, rerr := io.ReadFull(rdr, buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				_ = w.Close()
				return werr
			}
			offset += int64(n)
			if cerr := h.catalog.SaveCheckpoint(model.Checkpoint{
				Path:      action.Path,
				CaveID:    id,
				Hash:      action.Hash,
				Offset:    offset,
				Size:      action.Size,
				UpdatedAt: time.Now(),
			}); cerr != nil {
				_ = w.Close()
				return cerr
			}
			task.Kind = TaskProgress
			task.BytesDone = offset
			events <- task
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			_ = w.Close()
			return rerr
		}
	}
	if err = w.Close(); err != nil {
		return err
	}

	// verify the destination before declaring success: this defends against
	// silent corruption and against a source mutated mid-transfer
	if err = h.verify(ctx, cave, partial, action.Hash); err != nil {
		_ = cave.Store.Delete(ctx, partial)
		_ = h.catalog.DropCheckpoint(id, action.Path)
		return err
	}

	if err = cave.Store.Rename(ctx, partial, key); err != nil {
		return err
	}
	fi, err := cave.Store.Stat(ctx, key)
	if err != nil {
		return err
	}
	if err = h.catalog.RecordPresence(model.PresenceRecord{
		Path:   action.Path,
		CaveID: id,
		Status: model.StatusPresent,
		Hash:   action.Hash,
		Size:   fi.Size,
		Mtime:  fi.Mtime,
	}); err != nil {
		return err
	}
	return h.catalog.DropCheckpoint(id, action.Path)
}

// resumeOffset decides where a copy starts: at a persisted checkpoint when
// one exists and still matches both the expected content and the partial
// file on disk, else at zero with stale leftovers cleared.
func (h *Hoard) resumeOffset(ctx context.Context, cave *Cave, action model.Action, partial string) (int64, bool, error) {
	id := cave.Descriptor.ID
	cp, err := h.catalog.LoadCheckpoint(id, action.Path)
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			return 0, false, err
		}
		_ = cave.Store.Delete(ctx, partial)
		return 0, false, nil
	}
	if cp.Hash != action.Hash {
		// expected content changed since the interrupted attempt
		_ = cave.Store.Delete(ctx, partial)
		_ = h.catalog.DropCheckpoint(id, action.Path)
		return 0, false, nil
	}
	fi, err := cave.Store.Stat(ctx, partial)
	if err != nil || fi.Size != cp.Offset {
		_ = cave.Store.Delete(ctx, partial)
		_ = h.catalog.DropCheckpoint(id, action.Path)
		return 0, false, nil
	}
	h.l.Info("resuming transfer from checkpoint",
		zap.String("cave", id),
		zap.String("path", action.Path),
		zap.Int64("offset", cp.Offset))
	return cp.Offset, true, nil
}

// cleanupOne deletes a path from a cave, but only after re-fingerprinting
// the local copy and re-checking live redundancy: a file the user edited
// since the last scan is never deleted, and neither are the last copies of
// a content.
func (h *Hoard) cleanupOne(ctx context.Context, cave *Cave, action model.Action, task TaskEvent, events chan<- TaskEvent) error {
	id := cave.Descriptor.ID
	key := model.StoreKey(action.Path)

	task.Kind = TaskStarted
	task.BytesTotal = action.Size
	events <- task

	fi, err := cave.Store.Stat(ctx, key)
	if err != nil {
		return err
	}
	rdr, err := cave.Store.Get(ctx, key)
	if err != nil {
		return err
	}
	hash, err := h.maker.ProcessHex(rdr, fi.Size)
	_ = rdr.Close()
	if err != nil {
		return err
	}
	if hash != action.Hash {
		// the local copy was edited since last scanned: record the
		// observation instead of deleting it
		if rerr := h.catalog.RecordPresence(model.PresenceRecord{
			Path:   action.Path,
			CaveID: id,
			Status: model.StatusPresent,
			Hash:   hash,
			Size:   fi.Size,
			Mtime:  fi.Mtime,
		}); rerr != nil {
			return rerr
		}
		return status.ErrVerification
	}

	// redundancy may have degraded since planning: re-check live state
	presence, err := h.catalog.Presence(action.Path)
	if err != nil {
		return err
	}
	if h.countOtherCopies(action.Hash, id, presence) < cave.MinCopies() {
		return status.ErrInsufficientRedundancy
	}

	if err = cave.Store.Delete(ctx, key); err != nil {
		return err
	}
	if err = h.catalog.ClearPresence(action.Path, id); err != nil {
		return err
	}
	return h.removeIfUnwanted(action.Path)
}

// removeIfUnwanted drops the hoard entry once no cave references the path
// and no policy wants it anywhere.
func (h *Hoard) removeIfUnwanted(pth string) error {
	for _, cave := range h.Caves() {
		if role, ok := cave.Policy.Evaluate(pth); ok && role != policy.RoleCleanup {
			return nil
		}
	}
	_, err := h.catalog.RemoveIfOrphaned(pth)
	return err
}

// verify fingerprints a landed file and compares it to the expected content id
func (h *Hoard) verify(ctx context.Context, cave *Cave, key, expected string) error {
	fi, err := cave.Store.Stat(ctx, key)
	if err != nil {
		return err
	}
	rdr, err := cave.Store.Get(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		_ = rdr.Close()
	}()
	hash, err := h.maker.ProcessHex(rdr, fi.Size)
	if err != nil {
		return err
	}
	if hash != expected {
		h.l.Warn("verification mismatch",
			zap.String("cave", cave.Descriptor.ID),
			zap.String("key", key),
			zap.String("expected", expected),
			zap.String("actual", hash))
		return status.ErrVerification
	}
	return nil
}
