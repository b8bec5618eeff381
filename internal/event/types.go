package event

import "time"

// Type names a dispatcher state transition.
type Type string

const (
	DispatchStarted     Type = "dispatch.started"
	CommandNotFound     Type = "command.not_found"
	CommandResolved     Type = "command.resolved"
	ControlDirFailed    Type = "setup.control_dir_failed"
	WorkTreeFailed      Type = "setup.work_tree_failed"
	SetupReady          Type = "setup.ready"
	DirectoryChanged    Type = "setup.chdir"
	PagerDecided        Type = "pager.decided"
	HandlerInvoked      Type = "handler.invoked"
	HandlerSucceeded    Type = "handler.succeeded"
	HandlerFailed       Type = "handler.failed"
	DispatchInterrupted Type = "dispatch.interrupted"
	DispatchDone        Type = "dispatch.done"
)

// Event is one trace record.
type Event struct {
	ID      string         `json:"id"`
	Session string         `json:"session"`
	Type    Type           `json:"type"`
	Time    time.Time      `json:"time"`
	Command string         `json:"command,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}
