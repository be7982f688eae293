// Package lxattr encodes and decodes the 56-byte lxattrb extended attribute
// that WSL1 attaches to every file and directory of a VolFs rootfs to carry
// the POSIX mode, owner and timestamps that NTFS itself has no room for.
//
// The wire layout is fixed by the WSL1 kernel driver, not by us: any
// deviation produces files bash.exe cannot stat, surfacing as Win32 error
// 0x80070002 or 0x8007001f inside the subsystem.
package lxattr

import (
	"bytes"
	"encoding/binary"
	"fmt"

	rootswitch "github.com/wsl-tools/rootfs-switch"
)

// Mode type bits, the high nibble of a POSIX mode_t (the IFMT mask).
const (
	IFMT = 0170000
	SOCK = 0140000
	SYM  = 0120000
	REG  = 0100000
	BLK  = 0060000
	DIR  = 0040000
	CHR  = 0020000
	FIFO = 0010000
)

// Size is the fixed wire length of an lxattrb record.
const Size = 56

// LxAttrb is the decoded form of the lxattrb extended attribute.
type LxAttrb struct {
	Flags   uint16
	Version uint16
	Mode    uint32
	UID     uint32
	GID     uint32
	Drive   uint32
	// Reserved occupies 12 zero bytes between Drive and Atime; it has no
	// decoded representation, but Encode always zero-fills it.
	Atime int64
	Mtime int64
	Ctime int64
}

// wireRecord mirrors the 56-byte little-endian layout exactly, so that
// binary.Write/binary.Read can (de)serialize it in one shot.
type wireRecord struct {
	Flags    uint16
	Version  uint16
	Mode     uint32
	UID      uint32
	GID      uint32
	Drive    uint32
	Reserved [12]byte
	Atime    int64
	Mtime    int64
	Ctime    int64
}

// Encode serializes v into the 56-byte wire format. It is a total function:
// there is no input that makes it fail.
func Encode(v LxAttrb) [Size]byte {
	wire := wireRecord{
		Flags:   v.Flags,
		Version: v.Version,
		Mode:    v.Mode,
		UID:     v.UID,
		GID:     v.GID,
		Drive:   v.Drive,
		Atime:   v.Atime,
		Mtime:   v.Mtime,
		Ctime:   v.Ctime,
	}
	var buf bytes.Buffer
	buf.Grow(Size)
	// binary.Write on a fixed-size struct of fixed-size fields never fails.
	_ = binary.Write(&buf, binary.LittleEndian, wire)
	var out [Size]byte
	copy(out[:], buf.Bytes())
	return out
}

// Decode parses a 56-byte lxattrb record. It returns a
// rootswitch.ErrMalformedAttribute if b is not exactly Size bytes; the
// directory sweep (see package extract) treats that error identically to the
// attribute being absent.
func Decode(b []byte) (LxAttrb, error) {
	if len(b) != Size {
		return LxAttrb{}, rootswitch.ErrMalformedAttribute{Reason: fmt.Sprintf("got %d bytes, want %d", len(b), Size)}
	}
	var wire wireRecord
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &wire); err != nil {
		return LxAttrb{}, rootswitch.ErrMalformedAttribute{Reason: err.Error()}
	}
	return LxAttrb{
		Flags:   wire.Flags,
		Version: wire.Version,
		Mode:    wire.Mode,
		UID:     wire.UID,
		GID:     wire.GID,
		Drive:   wire.Drive,
		Atime:   wire.Atime,
		Mtime:   wire.Mtime,
		Ctime:   wire.Ctime,
	}, nil
}

// Kind is the canonical inode kind an archive or filesystem entry can carry.
// It is declared here (rather than in package archive) because it is the
// vocabulary From uses to pick the lxattrb type bits.
type Kind int

const (
	RegularFile Kind = iota
	Directory
	Symlink
	Hardlink
	CharDev
	BlockDev
	Fifo
	Socket
)

// Entry is the minimal set of fields From needs from an archive entry; it
// exists so this package does not need to import package archive (which in
// turn imports this package for its Kind constants), avoiding a cycle.
type Entry struct {
	Kind  Kind
	Mode  uint32 // POSIX permission + sticky/setuid/setgid bits only, no type bits
	UID   uint32
	GID   uint32
	Mtime int64
}

// From builds the lxattrb value for an archive entry: flags and version are
// fixed, the type bits are chosen from Kind, the permission bits are OR'd in
// verbatim, and atime/mtime/ctime are all set to Mtime (archives carry only
// one timestamp per entry).
func From(e Entry) LxAttrb {
	v := LxAttrb{
		Version: 1,
		Mode:    e.Mode &^ IFMT,
		UID:     e.UID,
		GID:     e.GID,
		Atime:   e.Mtime,
		Mtime:   e.Mtime,
		Ctime:   e.Mtime,
	}
	switch e.Kind {
	case Socket:
		v.Mode |= SOCK
	case Symlink, Hardlink:
		v.Mode |= SYM
	case RegularFile:
		v.Mode |= REG
	case BlockDev:
		v.Mode |= BLK
	case Directory:
		v.Mode |= DIR
	case CharDev:
		v.Mode |= CHR
	case Fifo:
		v.Mode |= FIFO
	}
	return v
}

func IsDir(mode uint32) bool    { return mode&IFMT == DIR }
func IsReg(mode uint32) bool    { return mode&IFMT == REG }
func IsSym(mode uint32) bool    { return mode&IFMT == SYM }
func IsChr(mode uint32) bool    { return mode&IFMT == CHR }
func IsBlk(mode uint32) bool    { return mode&IFMT == BLK }
func IsFifo(mode uint32) bool   { return mode&IFMT == FIFO }
func IsSocket(mode uint32) bool { return mode&IFMT == SOCK }

// IsDev reports whether mode is a character, block, or FIFO device.
func IsDev(mode uint32) bool {
	return IsChr(mode) || IsBlk(mode) || IsFifo(mode)
}

// Perm extracts the permission (and sticky/setuid/setgid) bits, discarding
// the type bits.
func Perm(mode uint32) uint32 {
	return mode &^ IFMT
}
