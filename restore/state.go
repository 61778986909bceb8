package restore

// State of a restore pass.
type State int

const (
	Idle State = iota
	Scheduled
	Running
	Completed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Active reports whether a pass in this state still accepts coalescing.
func (s State) Active() bool {
	return s == Scheduled || s == Running
}
