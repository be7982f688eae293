// Package environment implements the Environment collaborator: locating the
// WSL1 installation on disk, enumerating its rootfs slots, and reading or
// setting the Linux distribution's default user.
package environment

import (
	"os"
	"path/filepath"
	"strings"

	rootswitch "github.com/wsl-tools/rootfs-switch"
	"github.com/wsl-tools/rootfs-switch/internal/label"
)

// DefaultUser is the triplet the Lxss registry key stores for the
// distribution's default login identity.
type DefaultUser struct {
	UID, GID uint32
	Name     string
}

// Registry abstracts the three Lxss registry values this package reads and
// writes, so Environment can be exercised in tests without a real Windows
// registry. The concrete implementation lives in environment_windows.go.
type Registry interface {
	GetDefaultUser() (DefaultUser, error)
	SetDefaultUser(DefaultUser) error
}

// Environment is a located WSL1 installation: a basedir holding an "rootfs"
// directory (the active slot) and zero or more "rootfs_<label>" backup
// slots, plus the registry used to track the default login user.
type Environment struct {
	Basedir string
	Reg     Registry
}

// storePackagePrefixes lists the known family prefixes of WSL distro store
// packages under %LOCALAPPDATA%\Packages, used by step (3) of the probe
// chain below.
var storePackagePrefixes = []string{
	"CanonicalGroupLimited.Ubuntu",
	"TheDebianProject.DebianGNULinux",
	"46932SUSE.openSUSE",
	"KaliLinux.",
}

// Probe locates a WSL1 installation. It tries, in order: (1) explicit, if
// non-empty; (2) the ROOTFS_SWITCH_BASEDIR environment variable; (3)
// %LOCALAPPDATA%\lxss; (4) a store-package layout under
// %LOCALAPPDATA%\Packages\<prefix>*\LocalState. It returns
// rootswitch.ErrNotInstalled if none of these resolve to a directory that
// actually exists.
func Probe(explicit string, reg Registry) (*Environment, error) {
	for _, candidate := range probeCandidates(explicit) {
		if candidate == "" {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return &Environment{Basedir: candidate, Reg: reg}, nil
		}
	}
	return nil, rootswitch.ErrNotInstalled{}
}

func probeCandidates(explicit string) []string {
	candidates := []string{explicit, os.Getenv("ROOTFS_SWITCH_BASEDIR")}

	localAppData := os.Getenv("LOCALAPPDATA")
	if localAppData != "" {
		candidates = append(candidates, filepath.Join(localAppData, "lxss"))

		packagesDir := filepath.Join(localAppData, "Packages")
		for _, prefix := range storePackagePrefixes {
			matches, err := filepath.Glob(filepath.Join(packagesDir, prefix+"*"))
			if err != nil {
				continue
			}
			for _, m := range matches {
				candidates = append(candidates, filepath.Join(m, "LocalState"))
			}
		}
	}
	return candidates
}

// CheckNotRunning returns rootswitch.ErrRunning if basedir/temp exists and
// is non-empty, which the shim uses to signal an attached Linux instance.
func (e *Environment) CheckNotRunning() error {
	tempDir := filepath.Join(e.Basedir, "temp")
	entries, err := os.ReadDir(tempDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return rootswitch.ErrRunning{Basedir: e.Basedir}
	}
	return nil
}

// ActiveRootfsPath returns the path of the currently active rootfs slot.
func (e *Environment) ActiveRootfsPath() string {
	return filepath.Join(e.Basedir, "rootfs")
}

// Slots enumerates every rootfs directory under the basedir: the active
// "rootfs" directory and any "rootfs_<label>" backups, each labelled via
// the label package's precedence chain.
func (e *Environment) Slots() ([]rootswitch.RootfsSlot, error) {
	entries, err := os.ReadDir(e.Basedir)
	if err != nil {
		return nil, err
	}

	var slots []rootswitch.RootfsSlot
	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		name := ent.Name()
		if name != "rootfs" && !strings.HasPrefix(name, "rootfs_") {
			continue
		}
		path := filepath.Join(e.Basedir, name)
		lbl, _ := label.Read(path)
		slots = append(slots, rootswitch.RootfsSlot{
			Label:  lbl,
			Path:   path,
			Active: name == "rootfs",
		})
	}
	return slots, nil
}

// GetDefaultUser reads the registry's DefaultUid/DefaultGid/DefaultUsername
// triplet.
func (e *Environment) GetDefaultUser() (DefaultUser, error) {
	return e.Reg.GetDefaultUser()
}

// SetDefaultUser writes the registry's DefaultUid/DefaultGid/DefaultUsername
// triplet.
func (e *Environment) SetDefaultUser(u DefaultUser) error {
	return e.Reg.SetDefaultUser(u)
}
