package core

import (
	"context"
	"strings"

	"github.com/dragonhoard/dragon/pkg/core/status"
	"github.com/dragonhoard/dragon/pkg/model"

	"go.uber.org/zap"
)

// ScanError scopes a scan failure to the single path it concerns
type ScanError struct {
	Path string
	Err  error
}

func (s ScanError) Error() string {
	return s.Path + ": " + s.Err.Error()
}

// ScanReport summarizes one pull over a cave
type ScanReport struct {
	CaveID    string
	Unchanged int
	Added     int
	Updated   int
	Removed   int

	// Errors lists per-path failures that did not abort the scan
	Errors []ScanError

	// Incomplete is set when the walk itself failed mid-scan: merged paths
	// stay merged, unvisited paths keep their last-known state and removal
	// detection is skipped
	Incomplete bool
}

// Pull walks the cave's current filesystem tree, fingerprints what it finds
// and merges the outcome into the catalog, path by path.
//
// Three outcomes per path: unchanged (size and mtime match the last record,
// fingerprinting skipped), added/modified (recorded as present with the new
// content id) and removed (presence cleared, the hoard entry survives while
// other caves hold the path).
func (h *Hoard) Pull(ctx context.Context, caveID string) (*ScanReport, error) {
	cave, err := h.Cave(caveID)
	if err != nil {
		return nil, err
	}
	id := cave.Descriptor.ID
	if err = h.acquireCave(id); err != nil {
		return nil, err
	}
	defer h.releaseCave(id)

	report := &ScanReport{CaveID: id}

	last, err := h.catalog.CavePresence(id)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	walkErr := cave.Store.Walk(ctx, "", func(key string) error {
		if strings.HasSuffix(key, partialSuffix) {
			// in-flight transfer leftovers are not hoard content
			return nil
		}
		pth := model.PathFromStoreKey(key)
		seen[pth] = true

		if err := h.scanOne(ctx, cave, pth, key, last, report); err != nil {
			// failures are scoped to the path they concern
			report.Errors = append(report.Errors, ScanError{Path: pth, Err: err})
			h.l.Warn("scan: skipping path",
				zap.String("cave", id),
				zap.String("path", pth),
				zap.Error(err))
		}
		return nil
	})
	if walkErr != nil {
		report.Incomplete = true
		h.l.Error("scan aborted mid-walk, catalog keeps last-known state for unvisited paths",
			zap.String("cave", id),
			zap.Error(walkErr))
		return report, status.ErrScanIO.Wrap(walkErr)
	}

	// removal detection runs only over a complete walk
	for pth, rec := range last {
		if seen[pth] {
			continue
		}
		switch rec.Status {
		case model.StatusPresent, model.StatusCleanup:
			if err := h.catalog.ClearPresence(pth, id); err != nil {
				report.Errors = append(report.Errors, ScanError{Path: pth, Err: err})
				continue
			}
			report.Removed++
		default:
			// wanted records do not reflect local files, nothing to clear
		}
	}

	h.markConnected(id)
	h.l.Info("scan merged",
		zap.String("cave", id),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("added", report.Added),
		zap.Int("updated", report.Updated),
		zap.Int("removed", report.Removed),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}

// scanOne re-examines a single path and merges it into the catalog
func (h *Hoard) scanOne(ctx context.Context, cave *Cave, pth, key string, last map[string]model.PresenceRecord, report *ScanReport) error {
	id := cave.Descriptor.ID

	fi, err := cave.Store.Stat(ctx, key)
	if err != nil {
		return err
	}

	prev, known := last[pth]
	hadFile := known && (prev.Status == model.StatusPresent || prev.Status == model.StatusCleanup)

	if hadFile && prev.Size == fi.Size && prev.Mtime.Equal(fi.Mtime) {
		// size and mtime agree with the last record: skip re-fingerprinting
		report.Unchanged++
		return nil
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

	if hadFile && prev.Hash == hash {
		// content identical, only metadata moved: refresh the record silently
		report.Unchanged++
	} else if hadFile {
		report.Updated++
	} else {
		report.Added++
	}

	return h.catalog.RecordPresence(model.PresenceRecord{
		Path:   pth,
		CaveID: id,
		Status: model.StatusPresent,
		Hash:   hash,
		Size:   fi.Size,
		Mtime:  fi.Mtime,
	})
}
