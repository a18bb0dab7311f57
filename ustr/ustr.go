// Package ustr provides a bounded path/name string type used by the
// directory layer and facade, adapted from the teacher kernel's ustr
// package (itself a byte-slice path type used throughout biscuit's
// path-resolution code).
package ustr

import "golang.org/x/text/unicode/norm"

// / Ustr is an immutable path or directory-entry name.
type Ustr []byte

// / Isdot reports whether the string equals ".".
func (us Ustr) Isdot() bool {
	return len(us) == 1 && us[0] == '.'
}

// / Isdotdot reports whether the string equals "..".
func (us Ustr) Isdotdot() bool {
	return len(us) == 2 && us[0] == '.' && us[1] == '.'
}

// / Eq compares two Ustr values for byte equality after NFC
// / normalization, so two canonically-equal names that arrived with
// / different Unicode decompositions still compare equal — spec.md is
// / silent on name encoding; this is the Open Question resolution
// / recorded in SPEC_FULL.md.
func (us Ustr) Eq(s Ustr) bool {
	a := us.Normalized()
	b := s.Normalized()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// / Normalized returns us in NFC form. Malformed UTF-8 is returned
// / unchanged rather than rejected, since directory names are not
// / required to be valid Unicode.
func (us Ustr) Normalized() Ustr {
	return Ustr(norm.NFC.Bytes([]byte(us)))
}

// / MkUstr creates an empty Ustr value.
func MkUstr() Ustr {
	return Ustr{}
}

// / MkUstrRoot returns a Ustr for the root directory "/".
func MkUstrRoot() Ustr {
	return Ustr("/")
}

// / DotDot is a reusable Ustr containing "..".
var DotDot = Ustr{'.', '.'}

// / MkUstrSlice converts a NUL-terminated byte slice to a Ustr,
// / truncating at the first NUL byte.
func MkUstrSlice(buf []byte) Ustr {
	for i, b := range buf {
		if b == 0 {
			return buf[:i]
		}
	}
	return buf
}

// / Extend appends '/' and p to us and returns the result.
func (us Ustr) Extend(p Ustr) Ustr {
	tmp := make(Ustr, len(us))
	copy(tmp, us)
	r := append(tmp, '/')
	return append(r, p...)
}

// / ExtendStr appends '/' and the string p.
func (us Ustr) ExtendStr(p string) Ustr {
	return us.Extend(Ustr(p))
}

// / IsAbsolute reports whether the path begins with '/'.
func (us Ustr) IsAbsolute() bool {
	return len(us) > 0 && us[0] == '/'
}

// / String converts the Ustr to a Go string.
func (us Ustr) String() string {
	return string(us)
}

// / Split breaks a path into its '/'-separated components, dropping
// / empty components produced by repeated slashes.
func Split(p Ustr) []Ustr {
	var parts []Ustr
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			if i > start {
				parts = append(parts, p[start:i])
			}
			start = i + 1
		}
	}
	return parts
}
