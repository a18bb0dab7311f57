// Package vm implements the virtual-memory engine described in
// spec.md §4.G/§4.H: a global frame table with second-chance
// reclamation and a per-process supplemental page table (SPT)
// servicing demand paging from executables, memory-mapped files, and
// anonymous swap, plus heuristic stack growth. It is grounded on
// original_source/src/vm/frame.c and page.c, with the frame.c
// find_victim_frame bug documented in spec.md §9 — the scan never
// advances past a pinned (`accessing`) FTE — fixed rather than
// reproduced.
package vm

import (
	"sync/atomic"

	"github.com/yunju63/pintos-project4/util"
)

// / PageSize is the fixed virtual/physical page size.
const PageSize = 4096

// / MinUserAddr is the lowest valid user virtual address (spec.md §6):
// / every validated pointer byte must be at or above this.
const MinUserAddr Vaddr = 0x08048000

// / Vaddr is a page-aligned or byte virtual address.
type Vaddr uintptr

// / PageRoundDown truncates a to its containing page boundary.
func PageRoundDown(a Vaddr) Vaddr {
	return util.Rounddown(a, Vaddr(PageSize))
}

// / State is an SPT entry's residency state.
type State int

const (
	// / Resident means the page has a live frame-table entry.
	Resident State = iota
	// / OnFile means the page's data lives in a file (executable
	// / segment or memory map) and must be read in on fault.
	OnFile
	// / OnSwap means the page's data lives in a swap slot.
	OnSwap
)

// / FileBackend is the minimal file contract a file-backed SPT entry
// / needs: positioned read for demand paging, positioned write for
// / dirty mmap write-back. The facade adapts an open inode to this.
type FileBackend interface {
	ReadAt(buf []byte, offset int64) int
	WriteAt(buf []byte, offset int64) int
}

// / MMU abstracts the page-directory operations the original Pintos
// / code performs directly (pagedir_is_accessed, pagedir_set_accessed,
// / pagedir_is_dirty, pagedir_get_page, install_page, pagedir_clear_page).
// / spec.md §1 treats "a page-directory / MMU abstraction mapping
// / virtual→physical pages with accessed/dirty bits" as an external
// / collaborator; this interface is that collaborator's contract.
type MMU interface {
	IsAccessed(page Vaddr) bool
	SetAccessed(page Vaddr, v bool)
	IsDirty(page Vaddr) bool
	Install(page Vaddr, frame []byte, writable bool) bool
	Clear(page Vaddr)
}

// / SPTEntry is one per-page record in a process's supplemental page
// / table (spec.md §3's "SPT entry").
type SPTEntry struct {
	Page      Vaddr
	State     State
	File      FileBackend
	Offset    int64
	ReadBytes int
	ZeroBytes int
	Writable  bool
	FromMmap  bool
	SwapIndex int
	// Frame is the backing physical frame while State == Resident,
	// nil otherwise. Mirrors struct spte's `frame` field in
	// original_source/src/vm/page.c.
	Frame     []byte
	accessing boolFlag
}

// boolFlag is a tiny CAS-guarded bool, avoiding a full mutex just to
// pin/unpin a single SPT entry against the victim scanner.
type boolFlag struct {
	v int32
}

func (b *boolFlag) set(val bool) {
	if val {
		atomic.StoreInt32(&b.v, 1)
	} else {
		atomic.StoreInt32(&b.v, 0)
	}
}

func (b *boolFlag) get() bool {
	return atomic.LoadInt32(&b.v) != 0
}

// / Pin sets accessing=true, preventing the victim scanner from
// / reclaiming this entry's frame while a syscall copies through it.
func (e *SPTEntry) Pin() { e.accessing.set(true) }

// / Unpin clears the pin set by Pin.
func (e *SPTEntry) Unpin() { e.accessing.set(false) }
