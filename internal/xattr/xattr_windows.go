//go:build windows

package xattr

import (
	"encoding/binary"
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Gateway is the Windows implementation of the XAttrGateway. It talks
// directly to the NT native API (NtSetEaFile/NtQueryEaFile) because the
// Win32 extended-attribute surface only exposes the WriteFile/BackupRead
// path, which cannot address a single named EA the way WSL1's VolFs driver
// does.
type Gateway struct{}

// New returns the native Windows XAttrGateway.
func New() *Gateway { return &Gateway{} }

var (
	modntdll          = windows.NewLazySystemDLL("ntdll.dll")
	procNtSetEaFile   = modntdll.NewProc("NtSetEaFile")
	procNtQueryEaFile = modntdll.NewProc("NtQueryEaFile")
)

type ioStatusBlock struct {
	status      uintptr
	information uintptr
}

// fileFullEaInformation mirrors FILE_FULL_EA_INFORMATION's fixed header;
// EaName/EaValue follow immediately in the caller-allocated buffer.
type fileFullEaInformation struct {
	nextEntryOffset uint32
	flags           uint8
	eaNameLength    uint8
	eaValueLength   uint16
}

func openHandle(path string, access uint32) (windows.Handle, error) {
	p, err := windows.UTF16PtrFromString(ToNativePath(path))
	if err != nil {
		return 0, err
	}
	h, err := windows.CreateFile(
		p,
		access,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
	if err != nil {
		return 0, err
	}
	return h, nil
}

// Write sets the named extended attribute on path to value, replacing any
// existing value. It returns the number of bytes written (len(value) on
// success, matching spec.md §4.2's `write` signature).
func (g *Gateway) Write(path, name string, value []byte) (int, error) {
	if len(name) > MaxNameLen {
		return 0, &Error{Path: path, Name: name, Status: fmt.Errorf("attribute name too long: %d bytes", len(name))}
	}
	if len(value) > MaxValueLen {
		return 0, &Error{Path: path, Name: name, Status: fmt.Errorf("attribute value too long: %d bytes", len(value))}
	}

	h, err := openHandle(path, windows.FILE_WRITE_EA|windows.GENERIC_WRITE)
	if err != nil {
		return 0, &Error{Path: path, Name: name, Status: err}
	}
	defer windows.CloseHandle(h)

	buf := encodeEaBuffer(name, value)
	var iosb ioStatusBlock
	r1, _, _ := procNtSetEaFile.Call(
		uintptr(h),
		uintptr(unsafe.Pointer(&iosb)),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
	)
	if r1 != 0 {
		return 0, &Error{Path: path, Name: name, Status: syscall.Errno(r1)}
	}
	return len(value), nil
}

// Read returns the named extended attribute's value, or (nil, nil) if it is
// absent (the spec's `read → bytes | None`).
func (g *Gateway) Read(path, name string) ([]byte, error) {
	attrs, err := g.List(path)
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		if a.Name == name {
			return a.Value, nil
		}
	}
	return nil, nil
}

// List enumerates every extended attribute on path.
func (g *Gateway) List(path string) ([]NamedAttr, error) {
	h, err := openHandle(path, windows.FILE_READ_EA|windows.GENERIC_READ)
	if err != nil {
		return nil, &Error{Path: path, Status: err}
	}
	defer windows.CloseHandle(h)

	const bufSize = 64 * 1024
	buf := make([]byte, bufSize)
	var iosb ioStatusBlock
	r1, _, _ := procNtQueryEaFile.Call(
		uintptr(h),
		uintptr(unsafe.Pointer(&iosb)),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		0, // ReturnSingleEntry
		0, // EaList
		0, // EaListLength
		0, // EaIndex
		1, // RestartScan
	)
	// STATUS_NO_EAS_ON_FILE (0xC0000052) means zero attributes, not an error.
	if r1 != 0 && r1 != 0xC0000052 {
		return nil, &Error{Path: path, Status: syscall.Errno(r1)}
	}
	if r1 == 0xC0000052 {
		return nil, nil
	}
	return decodeEaBuffer(buf), nil
}

// encodeEaBuffer builds a single-entry FILE_FULL_EA_INFORMATION buffer.
func encodeEaBuffer(name string, value []byte) []byte {
	nameBytes := append([]byte(name), 0) // NUL-terminated per FILE_FULL_EA_INFORMATION
	headerSize := 8                      // NextEntryOffset(4) + Flags(1) + EaNameLength(1) + EaValueLength(2)
	total := headerSize + len(nameBytes) + len(value)
	buf := make([]byte, total)

	binary.LittleEndian.PutUint32(buf[0:4], 0) // single entry: no next
	buf[4] = 0                                 // Flags
	buf[5] = byte(len(name))                   // EaNameLength excludes the NUL
	binary.LittleEndian.PutUint16(buf[6:8], uint16(len(value)))
	copy(buf[8:], nameBytes)
	copy(buf[8+len(nameBytes):], value)
	return buf
}

// decodeEaBuffer walks a chain of FILE_FULL_EA_INFORMATION entries.
func decodeEaBuffer(buf []byte) []NamedAttr {
	var out []NamedAttr
	off := 0
	for {
		if off+8 > len(buf) {
			break
		}
		nextOffset := binary.LittleEndian.Uint32(buf[off : off+4])
		nameLen := int(buf[off+5])
		valLen := int(binary.LittleEndian.Uint16(buf[off+6 : off+8]))

		nameStart := off + 8
		nameEnd := nameStart + nameLen
		valStart := nameEnd + 1 // skip NUL terminator
		valEnd := valStart + valLen
		if valEnd > len(buf) {
			break
		}

		name := string(buf[nameStart:nameEnd])
		value := make([]byte, valLen)
		copy(value, buf[valStart:valEnd])
		out = append(out, NamedAttr{Name: name, Value: value})

		if nextOffset == 0 {
			break
		}
		off += int(nextOffset)
	}
	return out
}
