// Package caller prints the calling goroutine's stack, adapted from
// the teacher's caller package. This module uses it in its
// invariant-violation panics (buffer cache unable to evict, swap area
// exhausted or swapped in from a free slot, frame table unable to find
// a victim) so a panic's cause is diagnosable from the trace that led
// to it.
package caller

import (
	"fmt"
	"runtime"
)

// / Dump returns the call stack starting at the given skip depth, one
// / frame per line.
func Dump(skip int) string {
	i := skip
	s := ""
	for {
		_, f, l, ok := runtime.Caller(i)
		if !ok {
			break
		}
		i++
		if s == "" {
			s = fmt.Sprintf("%s:%d\n", f, l)
		} else {
			s += fmt.Sprintf("\t<-%s:%d\n", f, l)
		}
	}
	return s
}
