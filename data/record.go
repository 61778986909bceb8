package data

import (
	"maps"
	"time"
)

// BackupRecord is the shadow copy of a file's canonical attributes taken at
// its last observed write. Tags and Rating hold the encoded blobs (nil when
// the attribute was absent); Values holds every other attribute by its
// physical name.
type BackupRecord struct {
	Identity   FileIdentity      `json:"identity"`
	Tags       []byte            `json:"tags,omitempty"`
	Rating     []byte            `json:"rating,omitempty"`
	Values     map[string][]byte `json:"values,omitempty"`
	UpdateTime time.Time         `json:"update_time"`
}

// Key returns the identity key the record is stored under.
func (br *BackupRecord) Key() string {
	return br.Identity.Key()
}

// Clone returns a deep copy so stores never share buffers with callers.
func (br *BackupRecord) Clone() *BackupRecord {
	clone := &BackupRecord{
		Identity:   br.Identity,
		Tags:       cloneBytes(br.Tags),
		Rating:     cloneBytes(br.Rating),
		UpdateTime: br.UpdateTime,
	}
	if br.Values != nil {
		clone.Values = make(map[string][]byte, len(br.Values))
		for k, v := range br.Values {
			clone.Values[k] = cloneBytes(v)
		}
	}
	return clone
}

// SameContent compares the attribute payload of two records, ignoring
// identity and timestamps.
func (br *BackupRecord) SameContent(other *BackupRecord) bool {
	return string(br.Tags) == string(other.Tags) &&
		string(br.Rating) == string(other.Rating) &&
		maps.EqualFunc(br.Values, other.Values, func(a, b []byte) bool {
			return string(a) == string(b)
		})
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
