//go:build !windows

package xattr

import "fmt"

// Gateway is the non-Windows stand-in: extended-attribute access only makes
// sense against an NTFS volume through the Win32/NT API, so every operation
// reports ErrUnsupportedPlatform rather than silently no-opping.
type Gateway struct{}

// New returns a Gateway that always fails; it exists so the rest of the
// module still type-checks on a non-Windows GOOS (e.g. for editor tooling
// and unit tests of the platform-independent helpers in xattr.go).
func New() *Gateway { return &Gateway{} }

var ErrUnsupportedPlatform = fmt.Errorf("xattr: NTFS extended attributes are only available on Windows")

func (g *Gateway) Write(path, name string, value []byte) (int, error) {
	return 0, &Error{Path: path, Name: name, Status: ErrUnsupportedPlatform}
}

func (g *Gateway) Read(path, name string) ([]byte, error) {
	return nil, &Error{Path: path, Name: name, Status: ErrUnsupportedPlatform}
}

func (g *Gateway) List(path string) ([]NamedAttr, error) {
	return nil, &Error{Path: path, Status: ErrUnsupportedPlatform}
}
