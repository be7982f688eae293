// Package xattr implements the XAttrGateway: reading, writing and listing
// named NTFS extended attributes by absolute path, the mechanism WSL1 uses
// to attach the lxattrb record (see package lxattr) to every file and
// directory of a VolFs rootfs.
//
// The actual extended-attribute calls are native-Windows-only (see
// xattr_windows.go); this file holds the platform-independent path
// translation helper and the shared error type.
package xattr

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxNameLen and MaxValueLen are the limits spec.md places on attribute
// names and values; NTFS itself allows more, but VolFs never exceeds these.
const (
	MaxNameLen  = 255
	MaxValueLen = 256
)

// NamedAttr is one (name, value) pair as returned by List.
type NamedAttr struct {
	Name  string
	Value []byte
}

// Interface is the XAttrGateway capability: read/write/list named extended
// attributes by absolute path. Both platform Gateway implementations satisfy
// it; callers (package extract) depend on this interface rather than a
// concrete type so tests can substitute an in-memory fake.
type Interface interface {
	Read(path, name string) ([]byte, error)
	Write(path, name string, value []byte) (int, error)
	List(path string) ([]NamedAttr, error)
}

// Error is the tagged XAttrError from spec.md §7: a failed extended
// attribute operation, carrying the path, attribute name and the
// underlying OS status that caused it.
type Error struct {
	Path   string
	Name   string
	Status error
}

func (e *Error) Error() string {
	return fmt.Sprintf("xattr %s on %q: %v", e.Name, e.Path, e.Status)
}

func (e *Error) Unwrap() error { return e.Status }

var cygdrivePath = regexp.MustCompile(`^/cygdrive/([a-zA-Z])(/.*)?$`)

// ToNativePath translates a POSIX-shim-style path (e.g. "/cygdrive/c/foo" or
// a plain forward-slash path already rooted at a drive letter directory) into
// Windows native form ("C:\foo"), since the underlying extended-attribute API
// requires an absolute Windows path with backslash separators.
func ToNativePath(p string) string {
	if m := cygdrivePath.FindStringSubmatch(p); m != nil {
		drive := strings.ToUpper(m[1])
		rest := strings.ReplaceAll(m[2], "/", `\`)
		if rest == "" {
			rest = `\`
		}
		return drive + ":" + rest
	}
	return strings.ReplaceAll(p, "/", `\`)
}
