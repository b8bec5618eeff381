package dispatch

// State is a step of a single dispatch.
type State int

const (
	Idle State = iota
	Resolving
	NotFound
	UsageFailed
	ControlDirFailed
	WorkTreeFailed
	Ready
	Invoking
	Succeeded
	HandlerFailed
	Interrupted
	Reporting
	Done
)

var stateNames = map[State]string{
	Idle:             "idle",
	Resolving:        "resolving",
	NotFound:         "not-found",
	UsageFailed:      "usage-failed",
	ControlDirFailed: "control-dir-failed",
	WorkTreeFailed:   "work-tree-failed",
	Ready:            "ready",
	Invoking:         "invoking",
	Succeeded:        "succeeded",
	HandlerFailed:    "handler-failed",
	Interrupted:      "interrupted",
	Reporting:        "reporting",
	Done:             "done",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
