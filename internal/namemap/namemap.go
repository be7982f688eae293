// Package namemap escapes the handful of characters that are legal in ext4
// paths but forbidden in NTFS paths, using the scheme WSL1's VolFs driver
// itself uses: each offending byte is replaced by '#' followed by its four
// hex digits.
package namemap

import (
	"fmt"
	"strings"
)

// illegal lists the NTFS-reserved characters VolFs escapes. Control
// characters and '/' are deliberately not in this set: '/' is the path
// separator and is never part of a single path component, and control
// characters are left for the underlying filesystem call to reject on its
// own terms.
const illegal = `*|:><?"`

// Escape replaces every occurrence of an NTFS-illegal character in name with
// "#" followed by its four hex digits, e.g. "foo:bar" -> "foo#003Abar".
func Escape(name string) string {
	if !strings.ContainsAny(name, illegal) {
		return name
	}
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if strings.IndexByte(illegal, c) >= 0 {
			fmt.Fprintf(&b, "#%04X", c)
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Unescape reverses Escape: every "#XXXX" run of four uppercase hex digits is
// replaced by the single byte it encodes. Sequences that merely look like an
// escape but do not decode as hex (e.g. a literal "#" the archive happened to
// contain) are left untouched.
func Unescape(name string) string {
	if !strings.ContainsRune(name, '#') {
		return name
	}
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); {
		if name[i] == '#' && i+5 <= len(name) {
			if v, ok := parseHex4(name[i+1 : i+5]); ok {
				b.WriteByte(byte(v))
				i += 5
				continue
			}
		}
		b.WriteByte(name[i])
		i++
	}
	return b.String()
}

func parseHex4(s string) (uint16, bool) {
	var v uint16
	for _, c := range []byte(s) {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint16(c - '0')
		case c >= 'A' && c <= 'F':
			v |= uint16(c-'A') + 10
		default:
			return 0, false
		}
	}
	return v, true
}
