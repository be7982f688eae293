// Package archive provides a uniform, lazy iterator over the entries of a
// tar archive (raw, gzip, bzip2 or xz) or a SquashFS image, yielding a
// canonical InodeRecord per entry regardless of the source container.
package archive

import (
	"archive/tar"
	"bufio"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
	"golang.org/x/exp/mmap"

	"github.com/wsl-tools/rootfs-switch/internal/lxattr"
	"github.com/wsl-tools/rootfs-switch/internal/squashfs"
)

// Kind mirrors lxattr.Kind; archive entries and lxattrb records share one
// vocabulary so package extract never needs to translate between two enums.
type Kind = lxattr.Kind

const (
	RegularFile = lxattr.RegularFile
	Directory   = lxattr.Directory
	Symlink     = lxattr.Symlink
	Hardlink    = lxattr.Hardlink
	CharDev     = lxattr.CharDev
	BlockDev    = lxattr.BlockDev
	Fifo        = lxattr.Fifo
	Socket      = lxattr.Socket
)

// InodeRecord is the canonical in-memory representation of one archive
// entry. At most one of LinkTarget/Content is populated (neither for
// directories and device nodes), determined by Kind.
type InodeRecord struct {
	Path       string
	Kind       Kind
	Mode       uint32 // permission + sticky/setuid/setgid bits, no type bits
	UID        uint32
	GID        uint32
	Mtime      int64
	LinkTarget string
	Content    io.Reader
}

// EntryError is the non-fatal per-entry error described by the error
// handling design: it does not abort the iterator, so the caller decides
// whether to skip or fail.
type EntryError struct {
	Path  string
	Cause error
}

func (e *EntryError) Error() string { return fmt.Sprintf("archive entry %q: %v", e.Path, e.Cause) }
func (e *EntryError) Unwrap() error { return e.Cause }

// EntryIterator is lazy, finite and non-restartable: Next returns io.EOF once
// exhausted and must not be called again afterward.
type EntryIterator interface {
	Next() (*InodeRecord, error)
	Close() error
}

// Open inspects path's magic bytes and returns the matching iterator. Codec
// detection checks SquashFS's own magic first, then gzip, bzip2 and xz, then
// falls back to a raw tar stream -- always in this fixed order, never by iterating
// a map of sniffers, so the probe is deterministic.
func Open(name string) (EntryIterator, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReaderSize(f, 512)
	magic, err := br.Peek(6)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		f.Close()
		return nil, err
	}

	if isSquashFSMagic(magic) {
		f.Close()
		return newSquashfsIterator(name)
	}

	return newTarIterator(f, br, magic)
}

func isSquashFSMagic(b []byte) bool {
	// "hsqs" little-endian, see internal/squashfs/format.go's magic const.
	return len(b) >= 4 && b[0] == 'h' && b[1] == 's' && b[2] == 'q' && b[3] == 's'
}

// --- tar ---

type tarIterator struct {
	f          io.Closer
	r          io.Reader
	tr         *tar.Reader
	triedReset bool
}

func newTarIterator(f *os.File, br *bufio.Reader, magic []byte) (*tarIterator, error) {
	var r io.Reader = br
	switch {
	case len(magic) >= 2 && magic[0] == 0x1f && magic[1] == 0x8b:
		gz, err := pgzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening gzip stream: %v", err)
		}
		r = gz
	case len(magic) >= 3 && magic[0] == 'B' && magic[1] == 'Z' && magic[2] == 'h':
		r = bzip2.NewReader(br)
	case len(magic) >= 6 && magic[0] == 0xFD && magic[1] == 0x37 && magic[2] == 0x7A &&
		magic[3] == 0x58 && magic[4] == 0x5A && magic[5] == 0x00:
		xzr, err := xz.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening xz stream: %v", err)
		}
		r = xzr
	default:
		// raw, uncompressed tar
	}

	return &tarIterator{
		f:  f,
		r:  r,
		tr: tar.NewReader(r),
	}, nil
}

func (it *tarIterator) Next() (*InodeRecord, error) {
	for {
		hdr, err := it.tr.Next()
		if err == io.EOF {
			// Concatenated archives (e.g. multiple image layers) are
			// separated by the two-zero-block end-of-archive marker; retry
			// once by resuming on the same underlying stream before
			// declaring true end of input.
			if it.triedReset {
				return nil, io.EOF
			}
			it.triedReset = true
			it.tr = tar.NewReader(it.r)
			continue
		}
		if err != nil {
			return nil, &EntryError{Path: "<tar>", Cause: err}
		}
		it.triedReset = false

		rec, err := fromTarHeader(hdr, it.tr)
		if err != nil {
			return nil, &EntryError{Path: hdr.Name, Cause: err}
		}
		if rec == nil {
			continue // pax/global headers and other non-entry records
		}
		return rec, nil
	}
}

func (it *tarIterator) Close() error { return it.f.Close() }

func fromTarHeader(hdr *tar.Header, content io.Reader) (*InodeRecord, error) {
	rec := &InodeRecord{
		Path:  hdr.Name,
		Mode:  uint32(hdr.Mode) & 0o7777,
		UID:   uint32(hdr.Uid),
		GID:   uint32(hdr.Gid),
		Mtime: hdr.ModTime.Unix(),
	}
	switch hdr.Typeflag {
	case tar.TypeReg, tar.TypeRegA:
		rec.Kind = RegularFile
		rec.Content = content
	case tar.TypeDir:
		rec.Kind = Directory
		rec.Path = strings.TrimSuffix(rec.Path, "/")
	case tar.TypeSymlink:
		rec.Kind = Symlink
		rec.LinkTarget = hdr.Linkname
	case tar.TypeLink:
		rec.Kind = Hardlink
		rec.LinkTarget = normalizeHardlinkTarget(hdr.Linkname)
	case tar.TypeChar:
		rec.Kind = CharDev
	case tar.TypeBlock:
		rec.Kind = BlockDev
	case tar.TypeFifo:
		rec.Kind = Fifo
	default:
		return nil, nil
	}
	return rec, nil
}

// normalizeHardlinkTarget strips a leading "./" (and any further leading
// "/") from a tar hardlink's linkname: a leading dot is interpreted relative
// to the symlink-as-file site on NTFS and would break resolution there.
func normalizeHardlinkTarget(name string) string {
	for strings.HasPrefix(name, "./") {
		name = name[2:]
	}
	return strings.TrimPrefix(name, "/")
}

// --- squashfs ---

type squashfsFrame struct {
	dir     string
	entries []os.FileInfo
	idx     int
}

type squashfsIterator struct {
	ra    *mmap.ReaderAt
	rd    *squashfs.Reader
	stack []squashfsFrame
}

func newSquashfsIterator(name string) (*squashfsIterator, error) {
	ra, err := mmap.Open(name)
	if err != nil {
		return nil, err
	}
	rd, err := squashfs.NewReader(ra)
	if err != nil {
		ra.Close()
		return nil, err
	}
	children, err := rd.Readdir(rd.RootInode())
	if err != nil {
		ra.Close()
		return nil, err
	}
	return &squashfsIterator{
		ra:    ra,
		rd:    rd,
		stack: []squashfsFrame{{dir: "", entries: children}},
	}, nil
}

func (it *squashfsIterator) Next() (*InodeRecord, error) {
	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]
		if top.idx >= len(top.entries) {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		fi := top.entries[top.idx]
		top.idx++

		fullPath := fi.Name()
		if top.dir != "" {
			fullPath = path.Join(top.dir, fi.Name())
		}

		rec, err := it.buildRecord(fullPath, fi)
		if err != nil {
			return nil, &EntryError{Path: fullPath, Cause: err}
		}

		if fi.IsDir() {
			sfi := fi.Sys().(*squashfs.FileInfo)
			children, err := it.rd.Readdir(sfi.Inode)
			if err != nil {
				return nil, &EntryError{Path: fullPath, Cause: err}
			}
			it.stack = append(it.stack, squashfsFrame{dir: fullPath, entries: children})
		}
		return rec, nil
	}
	return nil, io.EOF
}

func (it *squashfsIterator) buildRecord(fullPath string, fi os.FileInfo) (*InodeRecord, error) {
	sfi := fi.Sys().(*squashfs.FileInfo)
	rec := &InodeRecord{
		Path:  fullPath,
		Mode:  posixPerm(fi),
		UID:   sfi.UID(),
		GID:   sfi.GID(),
		Mtime: fi.ModTime().Unix(),
	}

	switch {
	case fi.IsDir():
		rec.Kind = Directory
	case fi.Mode()&os.ModeSymlink != 0:
		rec.Kind = Symlink
		target, err := it.rd.ReadLink(sfi.Inode)
		if err != nil {
			return nil, err
		}
		rec.LinkTarget = target
	case fi.Mode()&os.ModeNamedPipe != 0:
		rec.Kind = Fifo
	case fi.Mode()&os.ModeSocket != 0:
		rec.Kind = Socket
	case fi.Mode()&os.ModeDevice != 0:
		if fi.Mode()&os.ModeCharDevice != 0 {
			rec.Kind = CharDev
		} else {
			rec.Kind = BlockDev
		}
	default:
		rec.Kind = RegularFile
		r, err := it.rd.FileReader(sfi.Inode)
		if err != nil {
			return nil, err
		}
		rec.Content = r
	}
	return rec, nil
}

// posixPerm reconstructs the POSIX permission+sticky/setuid/setgid bits from
// an os.FileMode, since lxattr wants the raw 12 bits rather than Go's
// separate ModeSetuid/ModeSticky flags.
func posixPerm(fi os.FileInfo) uint32 {
	m := uint32(fi.Mode().Perm())
	if fi.Mode()&os.ModeSetuid != 0 {
		m |= 0o4000
	}
	if fi.Mode()&os.ModeSetgid != 0 {
		m |= 0o2000
	}
	if fi.Mode()&os.ModeSticky != 0 {
		m |= 0o1000
	}
	return m
}

func (it *squashfsIterator) Close() error { return it.ra.Close() }
