//go:build windows

package environment

import "golang.org/x/sys/windows/registry"

const lxssKeyPath = `Software\Microsoft\Windows\CurrentVersion\Lxss`

// WindowsRegistry is the real Registry, backed by
// HKEY_CURRENT_USER\Software\Microsoft\Windows\CurrentVersion\Lxss.
type WindowsRegistry struct{}

// New returns the live Windows registry-backed Registry.
func New() *WindowsRegistry { return &WindowsRegistry{} }

func (WindowsRegistry) GetDefaultUser() (DefaultUser, error) {
	key, err := registry.OpenKey(registry.CURRENT_USER, lxssKeyPath, registry.QUERY_VALUE)
	if err != nil {
		return DefaultUser{}, err
	}
	defer key.Close()

	uid, _, err := key.GetIntegerValue("DefaultUid")
	if err != nil {
		return DefaultUser{}, err
	}
	gid, _, err := key.GetIntegerValue("DefaultGid")
	if err != nil {
		return DefaultUser{}, err
	}
	name, _, err := key.GetStringValue("DefaultUsername")
	if err != nil {
		return DefaultUser{}, err
	}
	return DefaultUser{UID: uint32(uid), GID: uint32(gid), Name: name}, nil
}

func (WindowsRegistry) SetDefaultUser(u DefaultUser) error {
	key, err := registry.OpenKey(registry.CURRENT_USER, lxssKeyPath, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer key.Close()

	if err := key.SetDWordValue("DefaultUid", u.UID); err != nil {
		return err
	}
	if err := key.SetDWordValue("DefaultGid", u.GID); err != nil {
		return err
	}
	return key.SetStringValue("DefaultUsername", u.Name)
}
