package core

import (
	"context"
	"sort"

	"github.com/dragonhoard/dragon/pkg/model"
	"github.com/dragonhoard/dragon/pkg/policy"

	"go.uber.org/zap"
)

// Plan computes, for one cave, the set difference between the policy-desired
// distribution and the catalog's actual presence, as an ordered action plan.
//
// Plans are reproducible: catalog iteration is key-ordered and source caves
// are picked deterministically (connected-this-session first, then smallest
// cave id). Gets and copies always precede cleanups. Divergent paths are
// excluded entirely, and a cleanup that would drop the last copies of a
// content is withheld, never emitted.
func (h *Hoard) Plan(ctx context.Context, caveID string) (*model.Plan, error) {
	cave, err := h.Cave(caveID)
	if err != nil {
		return nil, err
	}
	id := cave.Descriptor.ID
	plan := &model.Plan{CaveID: id}

	var fetches, cleanups []model.Action

	err = h.catalog.WalkPaths(func(pth string) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		entry, err := h.catalog.Entry(pth)
		if err != nil {
			return err
		}
		presence, err := h.catalog.Presence(pth)
		if err != nil {
			return err
		}
		rec, hasRec := presence[id]
		role, hasOpinion := cave.Policy.Evaluate(pth)

		if entry.Divergent {
			if hasOpinion || hasRec {
				plan.DivergentPaths = append(plan.DivergentPaths, pth)
			}
			return nil
		}

		if !hasOpinion {
			// no opinion: never auto-pulled, never auto-cleaned. A stale
			// wanted record from an earlier policy is dropped.
			if hasRec && rec.Status == model.StatusWanted {
				return h.catalog.ClearPresence(pth, id)
			}
			return nil
		}

		switch role {
		case policy.RoleGet, policy.RoleCopy:
			return h.planFetch(pth, entry, presence, cave, role, &fetches, plan)
		case policy.RoleCleanup:
			return h.planCleanup(pth, entry, presence, cave, &cleanups, plan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	plan.Actions = append(fetches, cleanups...)
	gets, copies, cl := plan.Counts()
	h.l.Debug("plan computed",
		zap.String("cave", id),
		zap.Int("gets", gets),
		zap.Int("copies", copies),
		zap.Int("cleanups", cl),
		zap.Int("unsatisfiable", len(plan.Unsatisfiable)),
		zap.Int("withheld", len(plan.WithheldCleanups)),
		zap.Int("divergent", len(plan.DivergentPaths)))
	return plan, nil
}

// planFetch handles desired get/copy for one path
func (h *Hoard) planFetch(pth string, entry model.HoardEntry, presence map[string]model.PresenceRecord, cave *Cave, role policy.Role, fetches *[]model.Action, plan *model.Plan) error {
	id := cave.Descriptor.ID
	rec, hasRec := presence[id]

	if hasRec && rec.Status == model.StatusPresent && rec.Hash == entry.Hash {
		// already satisfied
		return nil
	}
	if hasRec && rec.Status == model.StatusCleanup {
		// policy wants the file here again: un-schedule the cleanup
		rec.Status = model.StatusPresent
		return h.catalog.RecordPresence(rec)
	}

	source, found := h.pickSource(entry.Hash, id, presence)
	if !found {
		plan.Unsatisfiable = append(plan.Unsatisfiable, pth)
	}

	// the want is recorded either way: a cave that wants a path references
	// it, which keeps the entry alive until the want goes away
	if !hasRec || rec.Status != model.StatusWanted {
		if err := h.catalog.RecordPresence(model.PresenceRecord{
			Path:   pth,
			CaveID: id,
			Status: model.StatusWanted,
			Hash:   entry.Hash,
			Size:   entry.Size,
		}); err != nil {
			return err
		}
	}
	if !found {
		return nil
	}

	kind := model.ActionGet
	if role == policy.RoleCopy {
		kind = model.ActionCopy
	}
	*fetches = append(*fetches, model.Action{
		Kind:       kind,
		Path:       pth,
		Hash:       entry.Hash,
		Size:       entry.Size,
		SourceCave: source,
	})
	return nil
}

// planCleanup handles desired cleanup for one path
func (h *Hoard) planCleanup(pth string, entry model.HoardEntry, presence map[string]model.PresenceRecord, cave *Cave, cleanups *[]model.Action, plan *model.Plan) error {
	id := cave.Descriptor.ID
	rec, hasRec := presence[id]

	if !hasRec || (rec.Status != model.StatusPresent && rec.Status != model.StatusCleanup) {
		// nothing to remove here; a stale want under a cleanup rule is dropped
		if hasRec && rec.Status == model.StatusWanted {
			return h.catalog.ClearPresence(pth, id)
		}
		return nil
	}

	if h.countOtherCopies(entry.Hash, id, presence) < cave.MinCopies() {
		// never delete the last remaining copies, regardless of policy
		plan.WithheldCleanups = append(plan.WithheldCleanups, pth)
		return nil
	}

	if rec.Status != model.StatusCleanup {
		rec.Status = model.StatusCleanup
		if err := h.catalog.RecordPresence(rec); err != nil {
			return err
		}
	}
	*cleanups = append(*cleanups, model.Action{
		Kind: model.ActionCleanup,
		Path: pth,
		Hash: rec.Hash,
		Size: rec.Size,
	})
	return nil
}

// pickSource chooses a source cave among those presenting the wanted
// content: caves scanned this session first, then smallest cave id.
//
// The transfer-cost heuristic is deliberately simple; it is an extension
// point, not a fixed algorithm.
func (h *Hoard) pickSource(hash, targetID string, presence map[string]model.PresenceRecord) (string, bool) {
	if hash == "" {
		return "", false
	}
	var connected, others []string
	for id, rec := range presence {
		if id == targetID || rec.Status != model.StatusPresent || rec.Hash != hash {
			continue
		}
		if _, err := h.Cave(id); err != nil {
			// a cave no longer registered cannot serve transfers
			continue
		}
		if h.isConnected(id) {
			connected = append(connected, id)
		} else {
			others = append(others, id)
		}
	}
	sort.Strings(connected)
	sort.Strings(others)
	if len(connected) > 0 {
		return connected[0], true
	}
	if len(others) > 0 {
		return others[0], true
	}
	return "", false
}

// countOtherCopies tallies caves other than excludeID presenting hash
func (h *Hoard) countOtherCopies(hash, excludeID string, presence map[string]model.PresenceRecord) int {
	n := 0
	for id, rec := range presence {
		if id == excludeID || rec.Hash != hash {
			continue
		}
		if rec.Status == model.StatusPresent {
			n++
		}
	}
	return n
}
