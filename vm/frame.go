package vm

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/yunju63/pintos-project4/caller"
	"github.com/yunju63/pintos-project4/kstat"
	"github.com/yunju63/pintos-project4/swap"
)

// fte is one frame-table entry: a physical frame currently bound to
// one address space's SPT entry, grounded on struct fte in
// original_source/src/vm/frame.c.
type fte struct {
	as    *AddressSpace
	spte  *SPTEntry
	frame []byte
}

// / FrameTable is the global physical-frame registry (spec.md §3's
// / "Frame-table entry", one per allocated user frame). Admission is
// / gated by a weighted semaphore sized to capacity: TryAcquire models
// / palloc_get_page's immediate-success path, and a failed TryAcquire
// / triggers a synchronous second-chance eviction before the caller's
// / Acquire is satisfied, mirroring frame_alloc's retry loop around
// / find_victim_frame.
type FrameTable struct {
	mu       sync.Mutex
	list     []*fte
	freeList [][]byte
	capacity int
	sem      *semaphore.Weighted
	swap     *swap.Area
	stats    *kstat.VMStats
}

// / NewFrameTable constructs a frame table of the given capacity,
// / evicting via sw when no frame is immediately available.
func NewFrameTable(capacity int, sw *swap.Area, stats *kstat.VMStats) *FrameTable {
	return &FrameTable{
		capacity: capacity,
		sem:      semaphore.NewWeighted(int64(capacity)),
		swap:     sw,
		stats:    stats,
	}
}

// / AllocFrame obtains a physical frame for spte, owned by as,
// / evicting a victim if the table is already at capacity.
func (ft *FrameTable) AllocFrame(ctx context.Context, as *AddressSpace, spte *SPTEntry) ([]byte, error) {
	if !ft.sem.TryAcquire(1) {
		ft.mu.Lock()
		ft.evictLocked()
		ft.mu.Unlock()
		if err := ft.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}

	ft.mu.Lock()
	defer ft.mu.Unlock()
	var buf []byte
	if n := len(ft.freeList); n > 0 {
		buf = ft.freeList[n-1]
		ft.freeList = ft.freeList[:n-1]
		for i := range buf {
			buf[i] = 0
		}
	} else {
		buf = make([]byte, PageSize)
	}
	ft.list = append(ft.list, &fte{as: as, spte: spte, frame: buf})
	spte.State = Resident
	spte.Frame = buf
	return buf, nil
}

// / FreeFrame releases the frame owned by spte without replacing it,
// / used when an address space is torn down or munmap discards a
// / mapping outright rather than evicting it for reuse.
func (ft *FrameTable) FreeFrame(spte *SPTEntry) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	for i, f := range ft.list {
		if f.spte == spte {
			ft.list = append(ft.list[:i], ft.list[i+1:]...)
			ft.freeList = append(ft.freeList, f.frame)
			ft.sem.Release(1)
			spte.Frame = nil
			return
		}
	}
}

// evictLocked runs one second-chance scan over ft.list and reclaims
// exactly one victim's frame into ft.freeList, translated from
// find_victim_frame in original_source/src/vm/frame.c. The original
// only advances its scan pointer inside the `!accessing` branch,
// meaning a pinned entry at the head of the list stalls the scan
// forever (spec.md §9); this version advances unconditionally so a
// pinned entry is simply skipped.
func (ft *FrameTable) evictLocked() {
	if len(ft.list) == 0 {
		panic(fmt.Sprintf("vm: evict on empty frame table\n%s", caller.Dump(2)))
	}
	idx := 0
	limit := 2*len(ft.list) + 1
	for i := 0; i < limit; i++ {
		f := ft.list[idx]
		if !f.spte.accessing.get() {
			if f.as.mmu.IsAccessed(f.spte.Page) {
				f.as.mmu.SetAccessed(f.spte.Page, false)
			} else {
				ft.reclaim(idx, f)
				return
			}
		}
		idx++
		if idx >= len(ft.list) {
			idx = 0
		}
	}
	panic(fmt.Sprintf("vm: second-chance scan found no victim\n%s", caller.Dump(2)))
}

func (ft *FrameTable) reclaim(idx int, f *fte) {
	spte := f.spte
	switch {
	case spte.FromMmap:
		if f.as.mmu.IsDirty(spte.Page) {
			spte.File.WriteAt(f.frame[:spte.ReadBytes], spte.Offset)
		}
		spte.State = OnFile
	case spte.Writable:
		spte.SwapIndex = ft.swap.SwapOut(f.frame)
		spte.State = OnSwap
		ft.stats.SwapOuts.Add(1)
	default:
		spte.State = OnFile
	}
	f.as.mmu.Clear(spte.Page)
	ft.list = append(ft.list[:idx], ft.list[idx+1:]...)
	ft.freeList = append(ft.freeList, f.frame)
	ft.sem.Release(1)
	spte.Frame = nil
	ft.stats.Evictions.Add(1)
}
