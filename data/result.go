package data

// Result discriminates the successful outcomes of a metadata write.
type Result int

const (
	// Success means the attribute was written.
	Success Result = iota
	// NoChange means nothing had to be written. No backup was taken either.
	NoChange
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case NoChange:
		return "no change"
	default:
		return "unknown"
	}
}
