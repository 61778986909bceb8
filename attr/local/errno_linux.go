package local

import "golang.org/x/sys/unix"

// errNoAttribute is what getxattr(2) and removexattr(2) return for an absent
// attribute.
const errNoAttribute = unix.ENODATA
