package vm

import (
	"context"

	"github.com/yunju63/pintos-project4/config"
	"github.com/yunju63/pintos-project4/hashtable"
	"github.com/yunju63/pintos-project4/kerr"
	"github.com/yunju63/pintos-project4/kstat"
)

// / AddressSpace is one process's supplemental page table plus the
// / bookkeeping the page-fault handler needs: its frame table, swap
// / area, MMU, and stack-growth bounds. Grounded on the thread-local
// / struct hash spt in original_source/src/vm/page.c, generalized from
// / "the current thread's SPT" to an explicit per-caller object.
type AddressSpace struct {
	spt             *hashtable.Hashtable_t
	mmu             MMU
	frames          *FrameTable
	swap            swapArea
	stats           *kstat.VMStats
	stackTop        Vaddr
	maxStackBytes   int
	stackFaultSlack int
}

// swapArea is the subset of *swap.Area the SPT needs, declared as an
// interface so tests can substitute a fake without a real disk.
type swapArea interface {
	SwapIn(slot int, page []byte)
	Free(slot int)
}

// / NewAddressSpace constructs an empty SPT for one process. stackTop
// / is the address one past the highest stack byte (the user/kernel
// / boundary in the original; here just a configured ceiling).
func NewAddressSpace(cfg config.Config, mmu MMU, frames *FrameTable, sw swapArea, stats *kstat.VMStats, stackTop Vaddr) *AddressSpace {
	return &AddressSpace{
		spt:             hashtable.MkHash(64),
		mmu:             mmu,
		frames:          frames,
		swap:            sw,
		stats:           stats,
		stackTop:        stackTop,
		maxStackBytes:   cfg.MaxStackBytes,
		stackFaultSlack: cfg.StackFaultSlack,
	}
}

func (as *AddressSpace) key(page Vaddr) int64 { return int64(page) }

func (as *AddressSpace) get(page Vaddr) (*SPTEntry, bool) {
	v, ok := as.spt.Get(as.key(page))
	if !ok {
		return nil, false
	}
	return v.(*SPTEntry), true
}

// / AddFileBacked registers page as loadable from file on first
// / access (used both for executable segments and, with
// / fromMmap=true, for memory maps) — mirrors add_spte.
func (as *AddressSpace) AddFileBacked(page Vaddr, file FileBackend, offset int64, readBytes, zeroBytes int, writable, fromMmap bool) bool {
	e := &SPTEntry{
		Page:      page,
		State:     OnFile,
		File:      file,
		Offset:    offset,
		ReadBytes: readBytes,
		ZeroBytes: zeroBytes,
		Writable:  writable,
		FromMmap:  fromMmap,
	}
	_, inserted := as.spt.Set(as.key(page), e)
	return inserted
}

// / Remove deletes page's SPT entry without touching any frame —
// / callers that also need the frame released should call
// / FrameTable.FreeFrame first.
func (as *AddressSpace) Remove(page Vaddr) {
	as.spt.Del(as.key(page))
}

// / Destroy tears down every entry in as, freeing resident frames and
// / swap slots, mirroring destroy_spt/destroy_hash_action_func.
func (as *AddressSpace) Destroy() {
	as.spt.Iter(func(_ any, v any) bool {
		e := v.(*SPTEntry)
		switch e.State {
		case Resident:
			as.frames.FreeFrame(e)
			as.mmu.Clear(e.Page)
		case OnSwap:
			as.swap.Free(e.SwapIndex)
		}
		return false
	})
}

func (as *AddressSpace) loadFromFile(ctx context.Context, e *SPTEntry) kerr.Err_t {
	frame, err := as.frames.AllocFrame(ctx, as, e)
	if err != nil {
		return kerr.OutOfMemory
	}
	n := e.File.ReadAt(frame[:e.ReadBytes], e.Offset)
	if n != e.ReadBytes {
		as.frames.FreeFrame(e)
		return kerr.OutOfMemory
	}
	for i := e.ReadBytes; i < e.ReadBytes+e.ZeroBytes; i++ {
		frame[i] = 0
	}
	if !as.mmu.Install(e.Page, frame, e.Writable) {
		as.frames.FreeFrame(e)
		return kerr.OutOfMemory
	}
	return kerr.OK
}

func (as *AddressSpace) loadFromSwap(ctx context.Context, e *SPTEntry) kerr.Err_t {
	frame, err := as.frames.AllocFrame(ctx, as, e)
	if err != nil {
		return kerr.OutOfMemory
	}
	if !as.mmu.Install(e.Page, frame, e.Writable) {
		as.frames.FreeFrame(e)
		return kerr.OutOfMemory
	}
	as.swap.SwapIn(e.SwapIndex, frame)
	as.stats.SwapIns.Add(1)
	return kerr.OK
}

// growStack installs a fresh, writable, zero-filled resident page at
// page, mirroring stack_grow.
func (as *AddressSpace) growStack(ctx context.Context, page Vaddr) kerr.Err_t {
	e := &SPTEntry{Page: page, Writable: true}
	frame, err := as.frames.AllocFrame(ctx, as, e)
	if err != nil {
		return kerr.OutOfMemory
	}
	if !as.mmu.Install(page, frame, true) {
		as.frames.FreeFrame(e)
		return kerr.OutOfMemory
	}
	as.spt.Set(as.key(page), e)
	as.stats.StackGrowths.Add(1)
	return kerr.OK
}
