// Package swap implements the swap area described in spec.md §4.B:
// a bitmap of fixed-size slots on a dedicated backing disk, one slot
// per evicted page. It is grounded directly on
// original_source/src/vm/swap.c — swap_init, swap_in and swap_out —
// translated slot-for-slot with the same bitmap-scan-and-flip
// discipline, but keyed by disk.Disk and config.Config instead of
// Pintos's global swap_disk/swap_bitmap pair.
package swap

import (
	"fmt"
	"sync"

	"github.com/yunju63/pintos-project4/caller"
	"github.com/yunju63/pintos-project4/config"
	"github.com/yunju63/pintos-project4/disk"
)

// / PageSize is the unit of data a single swap slot holds.
const PageSize = 4096

// / Area is a bitmap-indexed swap area over a dedicated disk.
type Area struct {
	mu             sync.Mutex
	disk           disk.Disk
	used           []bool
	sectorsPerSlot int
	numSlots       int
}

// / New partitions d into fixed-size slots of cfg.SectorsPerSwapSlot
// / sectors each, all initially free, matching swap_init's
// / bitmap_create(disk_size(swap_disk) / SECTORS_PER_PAGE).
func New(cfg config.Config, d disk.Disk) *Area {
	spp := cfg.SectorsPerSwapSlot
	n := d.NumSectors() / spp
	return &Area{
		disk:           d,
		used:           make([]bool, n),
		sectorsPerSlot: spp,
		numSlots:       n,
	}
}

// / SwapOut writes page (len(page) must be PageSize) into a free slot
// / and returns the slot index, matching swap_out's
// / bitmap_scan_and_flip(swap_bitmap, 0, 1, 0). Exhaustion is an
// / unrecoverable kernel panic per spec.md §7, matching the original's
// / PANIC("Swap_disk is full").
func (a *Area) SwapOut(page []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	slot := -1
	for i, u := range a.used {
		if !u {
			slot = i
			break
		}
	}
	if slot == -1 {
		panic(fmt.Sprintf("swap: area is full\n%s", caller.Dump(2)))
	}
	a.used[slot] = true

	base := slot * a.sectorsPerSlot
	for i := 0; i < a.sectorsPerSlot; i++ {
		lo, hi := i*disk.SectorSize, (i+1)*disk.SectorSize
		if err := a.disk.WriteSector(base+i, page[lo:hi]); err != nil {
			panic(fmt.Sprintf("swap: write sector %d: %v", base+i, err))
		}
	}
	return slot
}

// / SwapIn reads the slot's contents back into page (which must be at
// / least PageSize bytes) and frees the slot, matching swap_in's
// / bitmap_flip followed by a run of disk_read calls. Reading a slot
// / that is not marked used is the original's "Swap with free index"
// / invariant violation, and is likewise a panic here.
func (a *Area) SwapIn(slot int, page []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if slot < 0 || slot >= a.numSlots || !a.used[slot] {
		panic(fmt.Sprintf("swap: swap-in of free slot %d\n%s", slot, caller.Dump(2)))
	}
	a.used[slot] = false

	base := slot * a.sectorsPerSlot
	for i := 0; i < a.sectorsPerSlot; i++ {
		lo, hi := i*disk.SectorSize, (i+1)*disk.SectorSize
		if err := a.disk.ReadSector(base+i, page[lo:hi]); err != nil {
			panic(fmt.Sprintf("swap: read sector %d: %v", base+i, err))
		}
	}
}

// / Free releases slot without reading it back, used when discarding a
// / page instead of paging it back in (e.g. a process exits with pages
// / still swapped out).
func (a *Area) Free(slot int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.used[slot] = false
}

// / NumFree reports the count of currently unused slots.
func (a *Area) NumFree() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, u := range a.used {
		if !u {
			n++
		}
	}
	return n
}
