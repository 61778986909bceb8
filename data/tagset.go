package data

// TagSet is an ordered list of user tags in which no two elements are equal
// under case-insensitive comparison. Build one with the tags package.
type TagSet []string

// Strings returns a copy of the tags as a plain slice.
func (ts TagSet) Strings() []string {
	out := make([]string, len(ts))
	copy(out, ts)
	return out
}

func (ts TagSet) Len() int {
	return len(ts)
}

func (ts TagSet) IsEmpty() bool {
	return len(ts) == 0
}

// CommonTagSnapshot is the optimistic-concurrency token handed out by a
// common-tag read and required by the matching write.
type CommonTagSnapshot struct {
	Files  []FileIdentity `json:"files"`
	Shared TagSet         `json:"shared"`
}
