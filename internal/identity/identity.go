// Package identity implements the UserReconciler: it patches
// /etc/{passwd,shadow,group,gshadow} in a freshly switched-in rootfs so the
// WSL default user keeps working after the swap.
package identity

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
)

// Options configures one Reconcile call. AllowPrivilegeEscalation gates the
// competing "copy the user's shadow hash onto root when the pre-swap root
// hash is not real" behavior found in one of the two sibling sources this
// component was distilled from; the
// spec's adopted default (carry the pre-swap root hash only when it is
// real, clear otherwise) is what runs unless this is explicitly set.
type Options struct {
	AllowPrivilegeEscalation bool
}

// Reconciler patches identity files across a rootfs swap.
type Reconciler struct {
	Opts Options
}

// New returns a Reconciler with the given options.
func New(opts Options) *Reconciler {
	return &Reconciler{Opts: opts}
}

const (
	passwdFile  = "passwd"
	shadowFile  = "shadow"
	groupFile   = "group"
	gshadowFile = "gshadow"
)

// Reconcile reads the root and username identity lines from the pre-swap
// rootfs at oldRoot, and patches the freshly promoted rootfs at newRoot so
// username keeps working there. If username is "root" (or empty), nothing
// needs appending since root always exists in any base image; missing
// source entries are tolerated and logged, never fatal.
func (r *Reconciler) Reconcile(oldRoot, newRoot, username string) error {
	for _, file := range []string{passwdFile, groupFile, gshadowFile} {
		if err := r.carryUserLine(oldRoot, newRoot, file, username); err != nil {
			log.Printf("identity: carrying %s entry for %s: %v", file, username, err)
		}
	}
	if err := r.reconcileShadow(oldRoot, newRoot, username); err != nil {
		log.Printf("identity: reconciling shadow: %v", err)
	}
	return nil
}

func (r *Reconciler) carryUserLine(oldRoot, newRoot, file, username string) error {
	if username == "" || username == "root" {
		return nil
	}
	oldLines, err := readLines(filepath.Join(oldRoot, "etc", file))
	if err != nil {
		return fmt.Errorf("reading old %s: %w", file, err)
	}
	userLine, ok := findLine(oldLines, username)
	if !ok {
		return fmt.Errorf("no %s entry for %s in old rootfs", file, username)
	}

	newLines, err := readLines(filepath.Join(newRoot, "etc", file))
	if err != nil {
		return fmt.Errorf("reading new %s: %w", file, err)
	}
	if _, exists := findLine(newLines, username); exists {
		return nil // already present, nothing to do
	}
	newLines = append(newLines, userLine)
	return writeLines(filepath.Join(newRoot, "etc", file), newLines)
}

func (r *Reconciler) reconcileShadow(oldRoot, newRoot, username string) error {
	oldLines, err := readLines(filepath.Join(oldRoot, "etc", shadowFile))
	if err != nil {
		return fmt.Errorf("reading old shadow: %w", err)
	}
	newLines, err := readLines(filepath.Join(newRoot, "etc", shadowFile))
	if err != nil {
		return fmt.Errorf("reading new shadow: %w", err)
	}

	oldRootLine, haveOldRoot := findLine(oldLines, "root")
	if haveOldRoot {
		oldHash := fieldAt(oldRootLine, 1)
		if hashIsReal(oldHash) {
			newLines = setField(newLines, "root", 1, oldHash)
		} else if r.Opts.AllowPrivilegeEscalation && username != "" && username != "root" {
			if userLine, ok := findLine(oldLines, username); ok {
				newLines = setField(newLines, "root", 1, fieldAt(userLine, 1))
			}
		} else {
			newLines = setField(newLines, "root", 1, "*")
		}
	}

	if username != "" && username != "root" {
		if _, exists := findLine(newLines, username); !exists {
			if userLine, ok := findLine(oldLines, username); ok {
				newLines = append(newLines, userLine)
			}
		}
	}

	return writeLines(filepath.Join(newRoot, "etc", shadowFile), newLines)
}

// hashIsReal reports whether hash is a real password hash rather than a
// locked ("!"-prefixed) or disabled ("*") account marker.
func hashIsReal(hash string) bool {
	return hash != "*" && !strings.HasPrefix(hash, "!")
}

func fieldAt(line string, idx int) string {
	fields := strings.Split(line, ":")
	if idx >= len(fields) {
		return ""
	}
	return fields[idx]
}

func setField(lines []string, prefix string, idx int, val string) []string {
	for i, l := range lines {
		if !strings.HasPrefix(l, prefix+":") {
			continue
		}
		fields := strings.Split(l, ":")
		for len(fields) <= idx {
			fields = append(fields, "")
		}
		fields[idx] = val
		lines[i] = strings.Join(fields, ":")
		return lines
	}
	return lines
}

func findLine(lines []string, prefix string) (string, bool) {
	for _, l := range lines {
		if l == "" {
			continue
		}
		if strings.HasPrefix(l, prefix+":") {
			return l, true
		}
	}
	return "", false
}

// readLines reads a colon-file preserving line order; it never returns a
// trailing empty element for a file's final newline.
func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	content := strings.TrimRight(string(data), "\n")
	if content == "" {
		return nil, nil
	}
	return strings.Split(content, "\n"), nil
}

// writeLines writes lines back with LF endings and a trailing newline,
// atomically within the volume.
func writeLines(path string, lines []string) error {
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	return renameio.WriteFile(path, []byte(content), 0o644)
}
