package data

import "fmt"

// FileIdentity references a file independent of its current path. Device and
// inode survive renames within a volume; Path is kept as the alias used to
// find the file again once a copy gave it a new inode.
type FileIdentity struct {
	Device uint64 `json:"device"`
	Inode  uint64 `json:"inode"`
	Path   string `json:"path"`
}

// Key is the backup store key of the identity.
func (fi FileIdentity) Key() string {
	return fmt.Sprintf("%d-%d", fi.Device, fi.Inode)
}

// SameFile reports whether both identities point at the same device and inode.
func (fi FileIdentity) SameFile(other FileIdentity) bool {
	return fi.Device == other.Device && fi.Inode == other.Inode
}

func (fi FileIdentity) String() string {
	return fmt.Sprintf("%s (%s)", fi.Path, fi.Key())
}
