package core

import (
	"context"
	"sort"
)

// CaveStatus summarizes the pending work and attention items of one cave
type CaveStatus struct {
	CaveID string `json:"cave_id" yaml:"cave_id"`
	Name   string `json:"name" yaml:"name"`

	PendingGets     int `json:"pending_gets" yaml:"pending_gets"`
	PendingCopies   int `json:"pending_copies" yaml:"pending_copies"`
	PendingCleanups int `json:"pending_cleanups" yaml:"pending_cleanups"`

	// needs-attention rows: nothing below ever becomes an automatic action
	Unsatisfiable    []string `json:"unsatisfiable,omitempty" yaml:"unsatisfiable,omitempty"`
	WithheldCleanups []string `json:"withheld_cleanups,omitempty" yaml:"withheld_cleanups,omitempty"`
	DivergentPaths   []string `json:"divergent_paths,omitempty" yaml:"divergent_paths,omitempty"`
	_                struct{}
}

// StatusReport is the engine-wide status snapshot rendered by `dragon status`
type StatusReport struct {
	Caves []CaveStatus `json:"caves" yaml:"caves"`
	_     struct{}
}

// Status computes per-cave scheduled action counts along with divergences,
// unsatisfiable wants and withheld cleanups. It is a read-mostly projection:
// underlying plans refresh wanted/cleanup markers in the catalog exactly as
// a push would.
func (h *Hoard) Status(ctx context.Context) (*StatusReport, error) {
	report := &StatusReport{}
	for _, cave := range h.Caves() {
		plan, err := h.Plan(ctx, cave.Descriptor.ID)
		if err != nil {
			return nil, err
		}
		gets, copies, cleanups := plan.Counts()
		report.Caves = append(report.Caves, CaveStatus{
			CaveID:           cave.Descriptor.ID,
			Name:             cave.Descriptor.Name,
			PendingGets:      gets,
			PendingCopies:    copies,
			PendingCleanups:  cleanups,
			Unsatisfiable:    plan.Unsatisfiable,
			WithheldCleanups: plan.WithheldCleanups,
			DivergentPaths:   plan.DivergentPaths,
		})
	}
	sort.Slice(report.Caves, func(i, j int) bool {
		return report.Caves[i].Name < report.Caves[j].Name
	})
	return report, nil
}
