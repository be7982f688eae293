package squashfs

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"io/ioutil"
	"testing"
)

// fakeReaderAt is an in-memory io.ReaderAt over a byte slice, standing in
// for the mmap.ReaderAt package archive normally hands NewReader.
type fakeReaderAt struct{ b []byte }

func (f fakeReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(f.b)) {
		return 0, io.EOF
	}
	n := copy(p, f.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

const testBlockSize = 131072

// imageBuilder hand-assembles a minimal SquashFS image byte-for-byte: one
// root directory containing one regular file. There is no mksquashfs here,
// so every offset is tracked as it's written rather than computed from a
// real tool's output.
type imageBuilder struct {
	buf bytes.Buffer
}

func (b *imageBuilder) offset() int64 { return int64(b.buf.Len()) }

// writeMetadataBlock writes one SquashFS metadata block: a 2-byte
// size-plus-flag header followed by either payload verbatim (compress
// false, exercising the per-block "stored uncompressed" flag) or payload
// zlib-compressed (compress true, exercising block decompression).
func (b *imageBuilder) writeMetadataBlock(t *testing.T, payload []byte, compress bool) {
	t.Helper()
	if !compress {
		header := uint16(len(payload)) | metadataUncompressedFlag
		if err := binary.Write(&b.buf, binary.LittleEndian, header); err != nil {
			t.Fatalf("writing metadata header: %v", err)
		}
		b.buf.Write(payload)
		return
	}
	compressed := mustZlibCompress(t, payload)
	header := uint16(len(compressed))
	if err := binary.Write(&b.buf, binary.LittleEndian, header); err != nil {
		t.Fatalf("writing metadata header: %v", err)
	}
	b.buf.Write(compressed)
}

func mustZlibCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	return buf.Bytes()
}

// buildTestImage lays out: a one-entry id table (uid=gid=0), a single data
// block holding fileContent, an inode table holding the root directory
// inode followed by the file's inode and its one-entry block-size list,
// and a directory table with the one "hello.txt" entry. compressMetadata
// and compressData independently choose whether each area's blocks are
// zlib-compressed or stored with the per-block uncompressed flag set.
func buildTestImage(t *testing.T, fileContent []byte, compressMetadata, compressData bool) []byte {
	t.Helper()
	var b imageBuilder
	b.buf.Write(make([]byte, 96)) // superblock placeholder, patched in below

	idBlockOffset := b.offset()
	var idPayload bytes.Buffer
	binary.Write(&idPayload, binary.LittleEndian, uint32(0))
	b.writeMetadataBlock(t, idPayload.Bytes(), compressMetadata)
	idTableStart := b.offset()
	binary.Write(&b.buf, binary.LittleEndian, int64(idBlockOffset))

	dataBlockOffset := b.offset()
	var blockSizeEntry uint32
	if compressData {
		compressed := mustZlibCompress(t, fileContent)
		b.buf.Write(compressed)
		blockSizeEntry = uint32(len(compressed))
	} else {
		b.buf.Write(fileContent)
		blockSizeEntry = uint32(len(fileContent)) | dataBlockUncompressedFlag
	}

	inodeTableStart := b.offset()
	const fileName = "hello.txt"
	dirFileSize := uint16(12 + 8 + len(fileName) + 3) // dirHeader + dirEntry + name, plus "." and ".."

	var inodePayload bytes.Buffer
	dirInode := dirInodeHeader{
		inodeHeader: inodeHeader{InodeType: dirType, Mode: 0o755, Uid: 0, Gid: 0, Mtime: 0, InodeNumber: 1},
		StartBlock:  0,
		Nlink:       2,
		FileSize:    dirFileSize,
		Offset:      0,
		ParentInode: 1,
	}
	binary.Write(&inodePayload, binary.LittleEndian, dirInode)
	fileInodeOffset := inodePayload.Len() // intra-block byte offset of the file inode, for the directory entry below

	fileHdr := regInodeHeader{
		inodeHeader: inodeHeader{InodeType: fileType, Mode: 0o644, Uid: 0, Gid: 0, Mtime: 0, InodeNumber: 2},
		StartBlock:  uint32(dataBlockOffset),
		Fragment:    noFragment,
		Offset:      0,
		FileSize:    uint32(len(fileContent)),
	}
	binary.Write(&inodePayload, binary.LittleEndian, fileHdr)
	binary.Write(&inodePayload, binary.LittleEndian, blockSizeEntry)

	b.writeMetadataBlock(t, inodePayload.Bytes(), compressMetadata)

	directoryTableStart := b.offset()
	var dirPayload bytes.Buffer
	dh := dirHeader{Count: 0, StartBlock: 0, InodeOffset: 0} // on-disk Count is count-1
	binary.Write(&dirPayload, binary.LittleEndian, dh)
	de := dirEntry{Offset: uint16(fileInodeOffset), InodeNumber: 2, EntryType: fileType, Size: uint16(len(fileName) - 1)}
	binary.Write(&dirPayload, binary.LittleEndian, de)
	dirPayload.WriteString(fileName)
	b.writeMetadataBlock(t, dirPayload.Bytes(), compressMetadata)

	sb := superblock{
		Magic:               magic,
		Inodes:              2,
		BlockSize:           testBlockSize,
		Compression:         compressionGZIP,
		RootInode:           Inode(0),
		IdTableStart:        idTableStart,
		InodeTableStart:     inodeTableStart,
		DirectoryTableStart: directoryTableStart,
	}
	full := b.buf.Bytes()
	var sbuf bytes.Buffer
	binary.Write(&sbuf, binary.LittleEndian, sb)
	copy(full[0:96], sbuf.Bytes())
	return full
}

func TestReaderRoundTrip(t *testing.T) {
	cases := []struct {
		name                         string
		compressMetadata, compressData bool
	}{
		{"everything compressed", true, true},
		{"everything stored raw", false, false},
		{"compressed metadata, raw data", true, false},
		{"raw metadata, compressed data", false, true},
	}

	content := []byte("hello, squashfs!")

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			img := buildTestImage(t, content, c.compressMetadata, c.compressData)
			r, err := NewReader(fakeReaderAt{b: img})
			if err != nil {
				t.Fatalf("NewReader: %v", err)
			}

			entries, err := r.Readdir(r.RootInode())
			if err != nil {
				t.Fatalf("Readdir: %v", err)
			}
			if len(entries) != 1 {
				t.Fatalf("Readdir returned %d entries, want 1", len(entries))
			}
			fi := entries[0]
			if fi.Name() != "hello.txt" {
				t.Errorf("Name() = %q, want %q", fi.Name(), "hello.txt")
			}
			if fi.IsDir() {
				t.Errorf("IsDir() = true, want false")
			}
			if fi.Size() != int64(len(content)) {
				t.Errorf("Size() = %d, want %d", fi.Size(), len(content))
			}

			sfi := fi.Sys().(*FileInfo)
			rd, err := r.FileReader(sfi.Inode)
			if err != nil {
				t.Fatalf("FileReader: %v", err)
			}
			got, err := ioutil.ReadAll(rd)
			if err != nil {
				t.Fatalf("reading file content: %v", err)
			}
			if !bytes.Equal(got, content) {
				t.Errorf("file content = %q, want %q", got, content)
			}
		})
	}
}

func TestNewReaderUnsupportedCompression(t *testing.T) {
	sb := superblock{Magic: magic, Compression: 99}
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, sb)

	_, err := NewReader(fakeReaderAt{b: buf.Bytes()})
	if err == nil {
		t.Fatal("NewReader: expected an error for an unsupported compression id, got nil")
	}
}

func TestNewReaderBadMagic(t *testing.T) {
	sb := superblock{Magic: 0xdeadbeef}
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, sb)

	_, err := NewReader(fakeReaderAt{b: buf.Bytes()})
	if err == nil {
		t.Fatal("NewReader: expected an error for a bad magic, got nil")
	}
}
