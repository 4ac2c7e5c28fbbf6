package core

import (
	"context"

	"github.com/dragonhoard/dragon/pkg/model"
)

// Push reconciles a cave and executes the resulting plan, streaming task
// events. The returned plan tells the caller what was scheduled, including
// the needs-attention annotations that never become actions.
func (h *Hoard) Push(ctx context.Context, caveID string) (<-chan TaskEvent, *model.Plan, error) {
	plan, err := h.Plan(ctx, caveID)
	if err != nil {
		return nil, nil, err
	}
	events, err := h.Execute(ctx, caveID, plan)
	if err != nil {
		return nil, nil, err
	}
	return events, plan, nil
}
