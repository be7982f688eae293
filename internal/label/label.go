// Package label implements the LabelStore: computing and persisting the
// distribution label (".switch_label") that identifies a rootfs slot.
package label

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"

	rootswitch "github.com/wsl-tools/rootfs-switch"
)

const fileName = ".switch_label"

// Read implements spec.md §4.6's precedence order: an existing
// .switch_label file, then the rootfs_<label> directory suffix, then the
// *release files. When precedence (2) or (3) is what resolved the label,
// Read opportunistically persists it via Write so the next call hits (1).
//
// Read returns the zero Label and false if no source yields one.
func Read(root string) (rootswitch.Label, bool) {
	if lbl, ok := readSwitchLabelFile(root); ok {
		return lbl, true
	}

	if lbl, ok := readDirSuffix(root); ok {
		Write(root, lbl)
		return lbl, true
	}

	if lbl, ok := readReleaseFiles(root); ok {
		Write(root, lbl)
		return lbl, true
	}

	return rootswitch.Label{}, false
}

// Write persists label to root/.switch_label, LF-terminated, atomically
// within the volume.
func Write(root string, lbl rootswitch.Label) error {
	return renameio.WriteFile(filepath.Join(root, fileName), []byte(lbl.String()+"\n"), 0o644)
}

func readSwitchLabelFile(root string) (rootswitch.Label, bool) {
	data, err := os.ReadFile(filepath.Join(root, fileName))
	if err != nil {
		return rootswitch.Label{}, false
	}
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		return rootswitch.ParseLabel(strings.ToLower(line)), true
	}
	return rootswitch.Label{}, false
}

func readDirSuffix(root string) (rootswitch.Label, bool) {
	base := filepath.Base(root)
	const prefix = "rootfs_"
	if !strings.HasPrefix(base, prefix) {
		return rootswitch.Label{}, false
	}
	suffix := strings.TrimPrefix(base, prefix)
	if suffix == "" {
		return rootswitch.Label{}, false
	}
	return rootswitch.ParseLabel(strings.ToLower(suffix)), true
}

// releaseKV is a parsed shell-style KEY=VALUE os-release/lsb-release file.
type releaseKV map[string]string

func readReleaseFiles(root string) (rootswitch.Label, bool) {
	var candidates []string
	if matches, err := filepath.Glob(filepath.Join(root, "etc", "*release")); err == nil {
		candidates = append(candidates, matches...)
	}
	if matches, err := filepath.Glob(filepath.Join(root, "usr", "lib", "os-release*")); err == nil {
		candidates = append(candidates, matches...)
	}

	var name, version string
	for _, path := range candidates {
		kv, err := parseShellKV(path)
		if err != nil {
			continue
		}
		if name == "" {
			name = firstNonEmpty(kv["ID"], kv["DISTRIB_ID"], kv["NAME"])
		}
		if version == "" {
			version = firstNonEmpty(kv["DISTRIB_CODENAME"], kv["DISTRIB_RELEASE"], kv["VERSION_ID"])
		}
	}

	if name == "" {
		return rootswitch.Label{}, false
	}
	lbl := rootswitch.Label{Name: strings.ToLower(name)}
	if version != "" {
		lbl.Version = strings.ToLower(version)
	}
	return lbl, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseShellKV(path string) (releaseKV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	kv := make(releaseKV)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		val = strings.Trim(val, `"'`)
		kv[key] = val
	}
	return kv, sc.Err()
}
