package backup

import "slices"

// BackendCapability represents a capability that a backend can provide
type BackendCapability string

const (
	// CapabilityList allows enumerating every record, which restoreAll needs.
	CapabilityList BackendCapability = "list"
	// CapabilityPathLookup allows finding a record by the path of its file.
	CapabilityPathLookup BackendCapability = "path_lookup"
)

func GetAllCapabilities() *BackendCapabilities {
	return &BackendCapabilities{
		Capabilities: []BackendCapability{
			CapabilityList,
			CapabilityPathLookup,
		},
	}
}

// BackendCapabilities describes what a backend supports
type BackendCapabilities struct {
	Capabilities []BackendCapability `json:"capabilities"`
	// MaxRecordSize bounds a serialized record; 0 means unlimited.
	MaxRecordSize int64 `json:"max_record_size"`
}

// Contains checks if a capability is supported
func (bc *BackendCapabilities) Contains(cap BackendCapability) bool {
	return slices.Contains(bc.Capabilities, cap)
}
