package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// testSquashBlockSize is the superblock.BlockSize this package's hand-built
// test images declare; it only has to be bigger than any test file's content
// so every file fits in one data block.
const testSquashBlockSize = 131072

// buildSquashfsImage hand-assembles a minimal SquashFS image on disk (a root
// directory with one "hello.txt" regular file) to exercise archive.Open's
// magic-sniffing and the squashfsIterator, without needing a real mksquashfs
// binary. Every metadata and data block is stored with the "didn't shrink,
// keep it raw" per-block flag set, since internal/squashfs's own tests are
// where the decompression codecs themselves are exercised -- this one only
// has to prove archive.Open and squashfsIterator wire up package squashfs
// correctly end to end.
func buildSquashfsImage(t *testing.T, fileContent []byte) string {
	t.Helper()
	const uncompressedFlag = 1 << 15
	const dataUncompressedFlag = 1 << 24
	const noFragment = 0xFFFFFFFF

	var buf bytes.Buffer
	buf.Write(make([]byte, 96)) // superblock placeholder, patched in below

	idBlockOffset := int64(buf.Len())
	binary.Write(&buf, binary.LittleEndian, uint16(4)|uncompressedFlag)
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // id table entry 0 -> uid/gid 0
	idTableStart := int64(buf.Len())
	binary.Write(&buf, binary.LittleEndian, idBlockOffset)

	dataBlockOffset := int64(buf.Len())
	buf.Write(fileContent)
	blockSizeEntry := uint32(len(fileContent)) | dataUncompressedFlag

	inodeTableStart := int64(buf.Len())
	const fileName = "hello.txt"
	dirFileSize := uint16(12 + 8 + len(fileName) + 3) // dirHeader + dirEntry + name, plus "." and ".."

	var inodePayload bytes.Buffer
	binary.Write(&inodePayload, binary.LittleEndian, uint16(1))  // InodeType: dirType
	binary.Write(&inodePayload, binary.LittleEndian, uint16(0o755)) // Mode
	binary.Write(&inodePayload, binary.LittleEndian, uint16(0))  // Uid index
	binary.Write(&inodePayload, binary.LittleEndian, uint16(0))  // Gid index
	binary.Write(&inodePayload, binary.LittleEndian, int32(0))   // Mtime
	binary.Write(&inodePayload, binary.LittleEndian, uint32(1))  // InodeNumber
	binary.Write(&inodePayload, binary.LittleEndian, uint32(0))  // StartBlock
	binary.Write(&inodePayload, binary.LittleEndian, uint32(2))  // Nlink
	binary.Write(&inodePayload, binary.LittleEndian, dirFileSize)
	binary.Write(&inodePayload, binary.LittleEndian, uint16(0)) // Offset
	binary.Write(&inodePayload, binary.LittleEndian, uint32(1)) // ParentInode
	fileInodeOffset := inodePayload.Len()

	binary.Write(&inodePayload, binary.LittleEndian, uint16(2))  // InodeType: fileType
	binary.Write(&inodePayload, binary.LittleEndian, uint16(0o644))
	binary.Write(&inodePayload, binary.LittleEndian, uint16(0)) // Uid index
	binary.Write(&inodePayload, binary.LittleEndian, uint16(0)) // Gid index
	binary.Write(&inodePayload, binary.LittleEndian, int32(0))  // Mtime
	binary.Write(&inodePayload, binary.LittleEndian, uint32(2)) // InodeNumber
	binary.Write(&inodePayload, binary.LittleEndian, uint32(dataBlockOffset))
	binary.Write(&inodePayload, binary.LittleEndian, uint32(noFragment))
	binary.Write(&inodePayload, binary.LittleEndian, uint32(0)) // Offset (fragment-only, unused)
	binary.Write(&inodePayload, binary.LittleEndian, uint32(len(fileContent)))
	binary.Write(&inodePayload, binary.LittleEndian, blockSizeEntry)

	binary.Write(&buf, binary.LittleEndian, uint16(inodePayload.Len())|uncompressedFlag)
	buf.Write(inodePayload.Bytes())

	directoryTableStart := int64(buf.Len())
	var dirPayload bytes.Buffer
	binary.Write(&dirPayload, binary.LittleEndian, uint32(0)) // dirHeader.Count, stored as count-1
	binary.Write(&dirPayload, binary.LittleEndian, uint32(0)) // dirHeader.StartBlock
	binary.Write(&dirPayload, binary.LittleEndian, uint32(0)) // dirHeader.InodeOffset
	binary.Write(&dirPayload, binary.LittleEndian, uint16(fileInodeOffset))
	binary.Write(&dirPayload, binary.LittleEndian, int16(2))  // dirEntry.InodeNumber
	binary.Write(&dirPayload, binary.LittleEndian, uint16(2)) // dirEntry.EntryType: fileType
	binary.Write(&dirPayload, binary.LittleEndian, uint16(len(fileName)-1))
	dirPayload.WriteString(fileName)
	binary.Write(&buf, binary.LittleEndian, uint16(dirPayload.Len())|uncompressedFlag)
	buf.Write(dirPayload.Bytes())

	full := buf.Bytes()
	var sbuf bytes.Buffer
	binary.Write(&sbuf, binary.LittleEndian, uint32(0x73717368)) // Magic: "hsqs"
	binary.Write(&sbuf, binary.LittleEndian, uint32(2))          // Inodes
	binary.Write(&sbuf, binary.LittleEndian, int32(0))           // MkfsTime
	binary.Write(&sbuf, binary.LittleEndian, uint32(testSquashBlockSize))
	binary.Write(&sbuf, binary.LittleEndian, uint32(0))          // Fragments
	binary.Write(&sbuf, binary.LittleEndian, uint16(1))          // Compression: gzip id
	binary.Write(&sbuf, binary.LittleEndian, uint16(0))          // BlockLog
	binary.Write(&sbuf, binary.LittleEndian, uint16(0))          // Flags
	binary.Write(&sbuf, binary.LittleEndian, uint16(1))          // NoIds
	binary.Write(&sbuf, binary.LittleEndian, uint16(4))          // Major
	binary.Write(&sbuf, binary.LittleEndian, uint16(0))          // Minor
	binary.Write(&sbuf, binary.LittleEndian, int64(0))           // RootInode
	binary.Write(&sbuf, binary.LittleEndian, int64(len(full)))   // BytesUsed
	binary.Write(&sbuf, binary.LittleEndian, idTableStart)
	binary.Write(&sbuf, binary.LittleEndian, int64(0)) // XattrIdTableStart
	binary.Write(&sbuf, binary.LittleEndian, inodeTableStart)
	binary.Write(&sbuf, binary.LittleEndian, directoryTableStart)
	binary.Write(&sbuf, binary.LittleEndian, int64(0)) // FragmentTableStart
	binary.Write(&sbuf, binary.LittleEndian, int64(0)) // LookupTableStart
	copy(full[0:96], sbuf.Bytes())

	dir := t.TempDir()
	path := filepath.Join(dir, "test.squashfs")
	if err := ioutil.WriteFile(path, full, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestSquashfsMinimal(t *testing.T) {
	content := []byte("hi from squashfs\n")
	path := buildSquashfsImage(t, content)

	it, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer it.Close()

	var recs []*InodeRecord
	for {
		rec, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		recs = append(recs, rec)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}

	rec := recs[0]
	if rec.Path != "hello.txt" || rec.Kind != RegularFile || rec.Mode != 0o644 {
		t.Errorf("record = %+v, want path=hello.txt kind=RegularFile mode=0644", rec)
	}
	body, err := ioutil.ReadAll(rec.Content)
	if err != nil {
		t.Fatalf("reading content: %v", err)
	}
	if !bytes.Equal(body, content) {
		t.Errorf("content = %q, want %q", body, content)
	}
}

func writeTestTarGz(t *testing.T, entries []tar.Header, contents map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, hdr := range entries {
		h := hdr
		body := contents[hdr.Name]
		h.Size = int64(len(body))
		if err := tw.WriteHeader(&h); err != nil {
			t.Fatalf("WriteHeader: %v", err)
		}
		if len(body) > 0 {
			if _, err := tw.Write([]byte(body)); err != nil {
				t.Fatalf("Write: %v", err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar Close: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip Close: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "test.tar.gz")
	if err := ioutil.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestMinimalTarball(t *testing.T) {
	mtime := time.Unix(1600000000, 0)
	path := writeTestTarGz(t, []tar.Header{
		{Name: "etc/", Typeflag: tar.TypeDir, Mode: 0755, ModTime: mtime},
		{Name: "etc/hostname", Typeflag: tar.TypeReg, Mode: 0644, ModTime: mtime},
	}, map[string]string{"etc/hostname": "demo\n"})

	it, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer it.Close()

	var recs []*InodeRecord
	for {
		rec, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		recs = append(recs, rec)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}

	dirRec, fileRec := recs[0], recs[1]
	if dirRec.Kind != Directory || dirRec.Mode != 0755 {
		t.Errorf("dir record = %+v, want kind=Directory mode=0755", dirRec)
	}
	if fileRec.Kind != RegularFile || fileRec.Mode != 0644 || fileRec.Mtime != 1600000000 {
		t.Errorf("file record = %+v, want kind=RegularFile mode=0644 mtime=1600000000", fileRec)
	}
	body, err := ioutil.ReadAll(fileRec.Content)
	if err != nil {
		t.Fatalf("reading content: %v", err)
	}
	if string(body) != "demo\n" {
		t.Errorf("content = %q, want %q", body, "demo\n")
	}
}

func TestSymlinkMapping(t *testing.T) {
	path := writeTestTarGz(t, []tar.Header{
		{Name: "bin/sh", Typeflag: tar.TypeSymlink, Linkname: "bash", Mode: 0777},
	}, nil)

	it, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer it.Close()

	rec, err := it.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if rec.Kind != Symlink || rec.LinkTarget != "bash" {
		t.Errorf("record = %+v, want kind=Symlink target=bash", rec)
	}
}

func TestHardlinkLeadingDotTrim(t *testing.T) {
	path := writeTestTarGz(t, []tar.Header{
		{Name: "bin/true2", Typeflag: tar.TypeLink, Linkname: "./usr/bin/true"},
	}, nil)

	it, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer it.Close()

	rec, err := it.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if rec.Kind != Hardlink || rec.LinkTarget != "usr/bin/true" {
		t.Errorf("record = %+v, want kind=Hardlink target=usr/bin/true", rec)
	}
}

func TestConcatenatedArchives(t *testing.T) {
	// Build two independent tar archives (each internally gzip-free, since
	// gzip.Multistream already merges concatenated gzip members; what this
	// test exercises is the two-zero-block tar end marker mid-stream) and
	// concatenate their raw bytes to simulate stacked image layers.
	build := func(name, body string) []byte {
		var buf bytes.Buffer
		tw := tar.NewWriter(&buf)
		hdr := &tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0644, Size: int64(len(body))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader: %v", err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := tw.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		return buf.Bytes()
	}

	combined := append(build("a.txt", "first"), build("b.txt", "second")...)

	dir := t.TempDir()
	path := filepath.Join(dir, "stacked.tar")
	if err := ioutil.WriteFile(path, combined, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	it, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer it.Close()

	var names []string
	for {
		rec, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		names = append(names, rec.Path)
	}
	if len(names) != 2 || names[0] != "a.txt" || names[1] != "b.txt" {
		t.Errorf("names = %v, want [a.txt b.txt]", names)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(os.TempDir(), "does-not-exist-rootfs-switch.tar")); err == nil {
		t.Error("Open: expected error for missing file")
	}
}
