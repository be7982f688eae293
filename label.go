package rootswitch

import "strings"

// Label identifies one rootfs slot as "<distro>[_<version>]", e.g.
// "debian_stretch" or "alpine_3.18". Both Name and Version are lowercase
// alphanumerics plus '.' and '-'; Version may be empty.
type Label struct {
	Name    string
	Version string
}

// String renders the label in its on-disk form, as used for the
// rootfs_<label> directory suffix and the .switch_label contents.
func (l Label) String() string {
	if l.Version == "" {
		return l.Name
	}
	return l.Name + "_" + l.Version
}

// ParseLabel splits a "<name>_<version>" string into a Label. Lowercasing and
// quote-stripping is the caller's responsibility (LabelStore does this while
// reading os-release style files); ParseLabel itself only splits on the last
// underscore, since distro names such as "opensuse_leap" legitimately contain
// underscores themselves and only the final component is the version.
func ParseLabel(s string) Label {
	s = strings.TrimSpace(s)
	idx := strings.LastIndexByte(s, '_')
	if idx < 0 {
		return Label{Name: s}
	}
	return Label{Name: s[:idx], Version: s[idx+1:]}
}

// RootfsSlot is a labelled rootfs directory on disk.
type RootfsSlot struct {
	Label  Label
	Path   string
	Active bool // Active is true for the directory named "rootfs".
}
