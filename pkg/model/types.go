// Package model describes the core data model of the hoard:
// caves, hoard entries, presence records, plans and transfer checkpoints.
package model

import (
	"time"
)

// CaveType describes the flavor of a cave in the hoard
type CaveType string

const (
	// CaveTypePartial holds a declared subset of the hoard
	CaveTypePartial CaveType = "partial"

	// CaveTypeBackup exists to provide redundant copies
	CaveTypeBackup CaveType = "backup"

	// CaveTypeIncoming receives new files before they land at their home cave
	CaveTypeIncoming CaveType = "incoming"
)

// CaveDescriptor declares one storage location participating in the hoard
type CaveDescriptor struct {
	ID        string   `json:"id" yaml:"id" mapstructure:"id"`
	Name      string   `json:"name" yaml:"name" mapstructure:"name"`
	MountPath string   `json:"mount_path" yaml:"mount_path" mapstructure:"mount_path"`
	Type      CaveType `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`

	// MinCopies is the number of other present copies required before a
	// cleanup may remove the local one
	MinCopies int `json:"min_copies,omitempty" yaml:"min_copies,omitempty" mapstructure:"min_copies"`
	_         struct{}
}

// PresenceStatus describes how a path relates to one cave
type PresenceStatus string

const (
	// StatusAbsent means the cave does not hold the path and nothing wants it to
	StatusAbsent PresenceStatus = "absent"

	// StatusPresent means the cave holds the path with the recorded content
	StatusPresent PresenceStatus = "present"

	// StatusWanted means policy wants the path here but it has not landed yet
	StatusWanted PresenceStatus = "wanted"

	// StatusCleanup means the cave holds the path but policy no longer wants it there
	StatusCleanup PresenceStatus = "cleanup"
)

// PresenceRecord relates one hoard entry to one cave.
//
// Hash, Size and Mtime are the values last observed for this cave; they
// survive the cave being disconnected until a rescan says otherwise.
type PresenceRecord struct {
	Path   string         `json:"path" yaml:"path"`
	CaveID string         `json:"cave_id" yaml:"cave_id"`
	Status PresenceStatus `json:"status" yaml:"status"`
	Hash   string         `json:"hash,omitempty" yaml:"hash,omitempty"`
	Size   int64          `json:"size,omitempty" yaml:"size,omitempty"`
	Mtime  time.Time      `json:"mtime,omitempty" yaml:"mtime,omitempty"`
	_      struct{}
}

// HoardEntry is one logical path in the merged hierarchy.
//
// Hash is empty while the path is known but not currently backed by any cave.
// A divergent entry carries conflicting present copies across caves and is
// excluded from automatic reconciliation until resolved.
type HoardEntry struct {
	Path      string `json:"path" yaml:"path"`
	Hash      string `json:"hash,omitempty" yaml:"hash,omitempty"`
	Size      int64  `json:"size,omitempty" yaml:"size,omitempty"`
	Divergent bool   `json:"divergent,omitempty" yaml:"divergent,omitempty"`
	_         struct{}
}

// Checkpoint records the resumable state of a partial transfer
type Checkpoint struct {
	Path      string    `json:"path" yaml:"path"`
	CaveID    string    `json:"cave_id" yaml:"cave_id"`
	Hash      string    `json:"hash" yaml:"hash"`
	Offset    int64     `json:"offset" yaml:"offset"`
	Size      int64     `json:"size" yaml:"size"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
	_         struct{}
}
