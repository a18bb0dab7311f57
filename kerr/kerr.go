// Package kerr defines the error enum spec.md's design notes call for
// in place of the original implementation's mixed panic/NULL/silent-zero
// conventions: every recoverable failure surfaces one of these values;
// only genuine invariant violations (cache unable to evict, swap
// exhausted) still panic.
package kerr

// / Err_t is a small kernel-style error code. The zero value means
// / success, mirroring the original syscall ABI's "0 on success".
type Err_t int

const (
	OK Err_t = 0

	/// OutOfMemory is returned when a kernel heap allocation fails
	/// (inode open, SPT insert, cache-line alloc).
	OutOfMemory Err_t = -(iota + 1)
	/// DiskFull is returned when the free-map is exhausted during
	/// growth or creation; any partial allocation made before the
	/// failure is left on disk, matching the documented limitation.
	DiskFull
	/// NotFound is returned for a missing path component or file.
	NotFound
	/// Denied is returned when deny_write_count prevents a write or
	/// an operation is not permitted on the given inode.
	Denied
	/// InvalidArgument covers malformed paths, bad basenames, and
	/// out-of-range requests.
	InvalidArgument
	/// SwapFull is unrecoverable in the original design; kept here
	/// for callers that want to report it before the swap package
	/// panics.
	SwapFull
	/// NotDirectory is returned when a path component that must be a
	/// directory resolves to a regular file.
	NotDirectory
	/// IsDirectory is returned when an operation requires a regular
	/// file but the path names a directory.
	IsDirectory
	/// Busy is returned when an inode or directory cannot be modified
	/// because it is currently referenced (e.g. removing a non-empty
	/// directory).
	Busy
)

var names = map[Err_t]string{
	OK:              "ok",
	OutOfMemory:     "out of memory",
	DiskFull:        "disk full",
	NotFound:        "not found",
	Denied:          "permission denied",
	InvalidArgument: "invalid argument",
	SwapFull:        "swap full",
	NotDirectory:    "not a directory",
	IsDirectory:     "is a directory",
	Busy:            "resource busy",
}

// / Error implements the error interface so Err_t can be returned
// / wherever Go idiom expects one, while still round-tripping as a
// / small integer across whatever syscall-style ABI a caller builds on
// / top (f.eax in the original).
func (e Err_t) Error() string {
	if s, ok := names[e]; ok {
		return s
	}
	return "unknown error"
}

// / Ok reports whether e represents success.
func (e Err_t) Ok() bool {
	return e == OK
}
