package core

import (
	"github.com/dragonhoard/dragon/pkg/core/status"
)

// Resolve collapses a divergence at a path in favor of the copy held by one
// cave. This is the only mutation the presentation boundary may request
// besides running pull or push.
func (h *Hoard) Resolve(pth, caveIDOrName string) error {
	cave, err := h.Cave(caveIDOrName)
	if err != nil {
		return err
	}
	entry, err := h.catalog.Entry(pth)
	if err != nil {
		return err
	}
	if !entry.Divergent {
		return status.ErrNotDivergent
	}
	return h.catalog.ResolveDivergence(pth, cave.Descriptor.ID)
}
