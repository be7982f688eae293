//go:build !windows

package environment

import "errors"

// ErrUnsupportedPlatform is returned by every method outside Windows, where
// there is no Lxss registry hive to read or write.
var ErrUnsupportedPlatform = errors.New("environment: registry access requires windows")

// WindowsRegistry is a stub on non-Windows platforms, kept so the package
// type-checks on every GOOS.
type WindowsRegistry struct{}

// New returns the stub Registry.
func New() *WindowsRegistry { return &WindowsRegistry{} }

func (WindowsRegistry) GetDefaultUser() (DefaultUser, error) {
	return DefaultUser{}, ErrUnsupportedPlatform
}

func (WindowsRegistry) SetDefaultUser(DefaultUser) error { return ErrUnsupportedPlatform }
