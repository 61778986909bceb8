package data

// Key is the logical name of a metadata attribute.
type Key string

const (
	// User entered tags, for workflow and organisational reasons.
	KeyUserTags Key = "user_tags"
	// Rating from 0 to 5, floats allowed.
	KeyStarRating Key = "star_rating"
	// Present when the user hid the file.
	KeyHidden Key = "hidden"
	// Array of dictionaries: "name", "url".
	KeyBookmarks Key = "bookmarks"
	// Array of dictionaries: "name", "date".
	KeyApproved Key = "approved"
	// Array of dictionaries: "name", "what", "duedate", "auto".
	KeyWorkflow Key = "workflow"
	// Array of dictionaries: "name".
	KeyProjects Key = "projects"
)

// Class tells whether a slot is visible to the external search index.
type Class int

const (
	// Opaque slots hold arbitrary encoded values the index never reads.
	Opaque Class = iota
	// Indexed slots hold primitives or arrays of primitives only.
	Indexed
)

func (c Class) String() string {
	if c == Indexed {
		return "indexed"
	}
	return "opaque"
}

var keyClasses = map[Key]Class{
	KeyUserTags:   Indexed,
	KeyStarRating: Indexed,
	KeyHidden:     Indexed,
	KeyBookmarks:  Indexed,
	KeyApproved:   Indexed,
	KeyWorkflow:   Indexed,
	KeyProjects:   Indexed,
}

// ClassOf returns the static classification of a key. Unknown keys are
// Opaque.
func ClassOf(key Key) Class {
	if class, ok := keyClasses[key]; ok {
		return class
	}
	return Opaque
}

// IsKnown reports whether the key is part of the static classification.
func IsKnown(key Key) bool {
	_, ok := keyClasses[key]
	return ok
}

// DictionaryKeys lists the keys whose full dictionaries live in the opaque
// slot while their names live in the indexed slot.
func DictionaryKeys() []Key {
	return []Key{KeyBookmarks, KeyApproved, KeyWorkflow, KeyProjects}
}

// Naming maps keys to physical attribute names.
type Naming struct {
	IndexedPrefix string
	OpaquePrefix  string
}

// DefaultNaming uses the "user." namespace required by Linux for
// unprivileged extended attributes.
var DefaultNaming = Naming{
	IndexedPrefix: "user.xmeta.",
	OpaquePrefix:  "user.xmeta.opaque.",
}

// Name returns the attribute name of a key in the given class.
func (n Naming) Name(key Key, class Class) string {
	if class == Indexed {
		return n.IndexedPrefix + string(key)
	}
	return n.OpaquePrefix + string(key)
}

// Owns reports whether an attribute name belongs to one of the namespaces.
func (n Naming) Owns(name string) bool {
	return hasPrefix(name, n.IndexedPrefix) || hasPrefix(name, n.OpaquePrefix)
}

// Shadows reports whether the name of key in one class falls inside the
// namespace of the other class, where it would alias a different key.
func (n Naming) Shadows(key Key) bool {
	if len(n.OpaquePrefix) > len(n.IndexedPrefix) {
		return hasPrefix(n.IndexedPrefix+string(key), n.OpaquePrefix)
	}
	return hasPrefix(n.OpaquePrefix+string(key), n.IndexedPrefix)
}

func hasPrefix(s, prefix string) bool {
	return prefix != "" && len(s) > len(prefix) && s[:len(prefix)] == prefix
}
