// Package extract implements the Extractor: it drives an ArchiveReader,
// materializes entries on NTFS, applies lxattrb attributes through the
// XAttrGateway, and performs the directory-attribute sweep that synthesizes
// attributes for entries the archive never mentioned explicitly.
package extract

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	rootswitch "github.com/wsl-tools/rootfs-switch"
	"github.com/wsl-tools/rootfs-switch/internal/archive"
	"github.com/wsl-tools/rootfs-switch/internal/lxattr"
	"github.com/wsl-tools/rootfs-switch/internal/namemap"
	"github.com/wsl-tools/rootfs-switch/internal/xattr"
)

const lxattrbName = "lxattrb"

// sweepWorkers bounds how many sweep attribute writes run concurrently: the
// tree can hold tens of thousands of entries, and each write is an
// independent NTFS syscall, so a small worker pool shortens the sweep
// without opening one goroutine per file.
const sweepWorkers = 8

// Report is the ExtractReport from spec.md §4.5 step 5, with one additive
// field (SkippedDevices) supplementing device/fifo/socket-node accounting
// that the distillation folded into "per entry errors" but which is not an
// error at all -- it is policy (WSL cannot host device nodes on NTFS).
type Report struct {
	Total          int
	Succeeded      int
	SkippedDevices int
	PerEntryErrors []error
}

// Options configures one Extract call.
type Options struct {
	// PosixShim, when true, resets NTFS ACLs on staging_dir recursively
	// after extraction (step 4 of spec.md §4.5): the POSIX shim creates them
	// in an order Windows itself won't honor.
	PosixShim bool
}

// Extractor is constructed with the XAttrGateway it writes attributes
// through; it holds no other state between calls to Extract.
type Extractor struct {
	XAttr xattr.Interface
	Opts  Options
}

// New returns an Extractor using gw for extended-attribute writes.
func New(gw xattr.Interface, opts Options) *Extractor {
	return &Extractor{XAttr: gw, Opts: opts}
}

// Extract runs the full algorithm of spec.md §4.5 against the archive or
// image at source, materializing it under stagingDir.
func (ex *Extractor) Extract(source, stagingDir string) (*Report, error) {
	if err := ex.prepareStaging(stagingDir); err != nil {
		return nil, err
	}

	it, err := archive.Open(source)
	if err != nil {
		return nil, rootswitch.ErrArchiveOpen{Source: source, Cause: err}
	}
	defer it.Close()

	report := &Report{}
	for {
		rec, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.Total++
			report.PerEntryErrors = append(report.PerEntryErrors, err)
			continue
		}
		report.Total++
		if err := ex.materialize(stagingDir, rec); err != nil {
			if _, skipped := err.(skippedDeviceError); skipped {
				report.SkippedDevices++
				report.Succeeded++
				continue
			}
			report.PerEntryErrors = append(report.PerEntryErrors, err)
			continue
		}
		report.Succeeded++
	}

	if err := ex.sweep(stagingDir); err != nil {
		return report, err
	}

	if ex.Opts.PosixShim {
		if err := resetACLs(stagingDir); err != nil {
			return report, fmt.Errorf("resetting ACLs on %s: %v", stagingDir, err)
		}
	}

	return report, nil
}

// prepareStaging implements step 1: staging_dir must not exist. If it does
// (a previous run's leftovers), it is removed, retrying with write
// permission forced on every entry first.
func (ex *Extractor) prepareStaging(stagingDir string) error {
	if _, err := os.Stat(stagingDir); os.IsNotExist(err) {
		return nil
	}

	if err := os.RemoveAll(stagingDir); err != nil {
		forceWritable(stagingDir)
		if err := os.RemoveAll(stagingDir); err != nil {
			return rootswitch.ErrLeftoverStaging{Path: stagingDir, Cause: err}
		}
	}
	return nil
}

func forceWritable(root string) {
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil {
			return nil
		}
		os.Chmod(path, info.Mode()|0o200)
		return nil
	})
}

// skippedDeviceError marks an entry skipped by policy (device/fifo/socket),
// not an error to report.
type skippedDeviceError struct{}

func (skippedDeviceError) Error() string { return "device node skipped by policy" }

// materialize implements step 2: normalize, branch on kind, write, attribute.
func (ex *Extractor) materialize(stagingDir string, rec *archive.InodeRecord) error {
	relPath, err := normalize(rec.Path)
	if err != nil {
		return rootswitch.ErrEntry{Path: rec.Path, Cause: err}
	}
	if relPath == "" {
		return nil // the archive's own root entry, nothing to create
	}

	winPath := filepath.Join(stagingDir, filepath.FromSlash(namemap.Escape(relPath)))
	if err := os.MkdirAll(filepath.Dir(winPath), 0o755); err != nil {
		return rootswitch.ErrEntry{Path: rec.Path, Cause: err}
	}

	switch rec.Kind {
	case archive.Directory:
		if err := os.MkdirAll(winPath, 0o755); err != nil {
			return rootswitch.ErrEntry{Path: rec.Path, Cause: err}
		}

	case archive.RegularFile:
		f, err := os.Create(winPath)
		if err != nil {
			return rootswitch.ErrEntry{Path: rec.Path, Cause: err}
		}
		_, copyErr := io.Copy(f, rec.Content)
		closeErr := f.Close()
		if copyErr != nil {
			return rootswitch.ErrEntry{Path: rec.Path, Cause: copyErr}
		}
		if closeErr != nil {
			return rootswitch.ErrEntry{Path: rec.Path, Cause: closeErr}
		}

	case archive.Symlink, archive.Hardlink:
		// WSL1 stores symlinks/hardlinks as regular files whose contents are
		// the link target text; only lxattrb.mode marks them as links.
		if err := writeLinklike(winPath, rec.LinkTarget); err != nil {
			return rootswitch.ErrEntry{Path: rec.Path, Cause: err}
		}

	case archive.CharDev, archive.BlockDev, archive.Fifo, archive.Socket:
		// Policy: WSL cannot host device nodes on NTFS.
		return skippedDeviceError{}

	default:
		return rootswitch.ErrEntry{Path: rec.Path, Cause: fmt.Errorf("unknown entry kind %v", rec.Kind)}
	}

	if err := os.Chmod(winPath, os.FileMode(rec.Mode&0o777)|0o200); err != nil {
		return rootswitch.ErrEntry{Path: rec.Path, Cause: err}
	}

	v := lxattr.Encode(lxattr.From(lxattr.Entry{
		Kind:  rec.Kind,
		Mode:  rec.Mode,
		UID:   rec.UID,
		GID:   rec.GID,
		Mtime: rec.Mtime,
	}))
	if _, err := ex.XAttr.Write(winPath, lxattrbName, v[:]); err != nil {
		return rootswitch.ErrXAttr{Path: winPath, Name: lxattrbName, Status: err}
	}
	return nil
}

func writeLinklike(path, target string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(target)
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

// normalize implements step 2a: strip a leading "./", reject absolute or
// ".."-traversing paths.
func normalize(p string) (string, error) {
	p = strings.TrimPrefix(p, "./")
	if p == "." || p == "" {
		return "", nil
	}
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("absolute path not allowed: %q", p)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return "", fmt.Errorf("path traversal not allowed: %q", p)
		}
	}
	return p, nil
}

// sweep implements step 3: every directory or file under stagingDir whose
// lxattrb attribute is absent or malformed gets a synthesized default. The
// tree walk itself (finding which paths need one) is sequential, since
// filepath.Walk only ever visits one entry at a time; the attribute writes
// it collects are independent of each other, so they run concurrently
// through a bounded errgroup worker pool instead of one at a time.
func (ex *Extractor) sweep(stagingDir string) error {
	var pending []string
	err := filepath.Walk(stagingDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == stagingDir {
			return nil
		}

		existing, err := ex.XAttr.Read(path, lxattrbName)
		if err == nil && existing != nil {
			if _, decodeErr := lxattr.Decode(existing); decodeErr == nil {
				return nil // already has a well-formed attribute
			}
		}
		pending = append(pending, path)
		return nil
	})
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	work := make(chan string, len(pending))
	for _, path := range pending {
		work <- path
	}
	close(work)

	var g errgroup.Group
	for i := 0; i < sweepWorkers; i++ {
		g.Go(func() error {
			for path := range work {
				info, err := os.Lstat(path)
				if err != nil {
					return err
				}
				kind := lxattr.RegularFile
				mode := uint32(0o755)
				if info.IsDir() {
					kind = lxattr.Directory
				}
				v := lxattr.Encode(lxattr.From(lxattr.Entry{
					Kind:  kind,
					Mode:  mode,
					Mtime: now,
				}))
				if _, err := ex.XAttr.Write(path, lxattrbName, v[:]); err != nil {
					return rootswitch.ErrXAttr{Path: path, Name: lxattrbName, Status: err}
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// resetACLs runs icacls to reset NTFS ACLs recursively, undoing the
// incorrectly-ordered ACEs a POSIX shim (e.g. Cygwin/MSYS2) leaves behind
// when creating files, which otherwise block native Windows access.
func resetACLs(root string) error {
	cmd := exec.Command("icacls", root, "/reset", "/T", "/C", "/Q")
	return cmd.Run()
}
