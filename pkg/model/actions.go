package model

// ActionKind tags one reconciliation action
type ActionKind string

const (
	// ActionGet pulls a path into a cave from a source cave
	ActionGet ActionKind = "get"

	// ActionCopy maintains a redundant copy of a path in a cave
	ActionCopy ActionKind = "copy"

	// ActionCleanup removes a path from a cave once enough copies exist elsewhere
	ActionCleanup ActionKind = "cleanup"
)

// Action is one unit of a reconciliation plan
type Action struct {
	Kind       ActionKind `json:"kind" yaml:"kind"`
	Path       string     `json:"path" yaml:"path"`
	Hash       string     `json:"hash" yaml:"hash"`
	Size       int64      `json:"size" yaml:"size"`
	SourceCave string     `json:"source_cave,omitempty" yaml:"source_cave,omitempty"`
	_          struct{}
}

// Plan is the ordered sequence of actions for one cave, derived fresh on
// every reconciliation pass.
//
// A plan is a disposable projection of catalog state: gets and copies are
// ordered strictly before cleanups so a file is never removed from a source
// before it has landed elsewhere in the same pass.
type Plan struct {
	CaveID  string   `json:"cave_id" yaml:"cave_id"`
	Actions []Action `json:"actions" yaml:"actions"`

	// Unsatisfiable lists paths policy wants here but no reachable cave can provide
	Unsatisfiable []string `json:"unsatisfiable,omitempty" yaml:"unsatisfiable,omitempty"`

	// WithheldCleanups lists paths whose cleanup would drop the last copies
	WithheldCleanups []string `json:"withheld_cleanups,omitempty" yaml:"withheld_cleanups,omitempty"`

	// DivergentPaths lists paths excluded from this plan pending resolution
	DivergentPaths []string `json:"divergent_paths,omitempty" yaml:"divergent_paths,omitempty"`
	_              struct{}
}

// Counts tallies plan actions by kind
func (p *Plan) Counts() (gets, copies, cleanups int) {
	for _, a := range p.Actions {
		switch a.Kind {
		case ActionGet:
			gets++
		case ActionCopy:
			copies++
		case ActionCleanup:
			cleanups++
		}
	}
	return
}
