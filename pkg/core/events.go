package core

import (
	"time"

	"github.com/dragonhoard/dragon/pkg/model"
)

// TaskEventKind tags a transfer task event
type TaskEventKind string

const (
	// TaskStarted announces an action began executing
	TaskStarted TaskEventKind = "started"

	// TaskProgress reports incremental byte progress of an in-flight action
	TaskProgress TaskEventKind = "progress"

	// TaskDone reports an action completed and was verified
	TaskDone TaskEventKind = "done"

	// TaskFailed reports an action failed; the failure is scoped to this
	// action and never aborts the rest of the plan
	TaskFailed TaskEventKind = "failed"
)

// TaskEvent is one observation of a running transfer task.
//
// The presentation layer derives percentages, rates and ETAs from the raw
// byte counts and timestamps; the engine never formats progress itself.
type TaskEvent struct {
	Kind    TaskEventKind
	TaskID  string
	CaveID  string
	Action  model.Action
	Started time.Time

	BytesDone  int64
	BytesTotal int64

	// Resumed is set on started events when the task continues from a
	// persisted checkpoint rather than from byte zero
	Resumed bool

	Err error
}
