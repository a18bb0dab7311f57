package vm

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/yunju63/pintos-project4/kerr"
)

// / Closer is the file-handle lifetime the mmap registry releases once
// / a mapping is torn down (an independent, reopened cursor in the
// / original — see mmap/file_reopen in
// / original_source/src/userprog/syscall.c).
type Closer interface {
	Close()
}

// / Mapping is one active memory-mapped file region, keyed by a
// / google/uuid mapping ID rather than the original's small integer
// / counter — spec.md is silent on the ID's type, resolved as an
// / Open Question in SPEC_FULL.md.
type Mapping struct {
	ID        uuid.UUID
	Base      Vaddr
	PageCount int
	closer    Closer
}

// / Registry tracks a process's active mmap descriptors.
type Registry struct {
	mu       sync.Mutex
	mappings map[uuid.UUID]*Mapping
}

// / NewRegistry constructs an empty mmap registry.
func NewRegistry() *Registry {
	return &Registry{mappings: make(map[uuid.UUID]*Mapping)}
}

// / Mmap installs one ON_FILE, writable SPT entry per page of file
// / (length fileLength) starting at addr, failing and rolling back if
// / any precondition in spec.md §4.I is violated: addr must be
// / nonzero, page-aligned, ≥ MinUserAddr; the file must be nonempty;
// / and no page in the range may already have an SPT entry.
func (r *Registry) Mmap(as *AddressSpace, addr Vaddr, file FileBackend, fileLength int64, closer Closer) (uuid.UUID, kerr.Err_t) {
	if addr == 0 || addr < MinUserAddr || addr%PageSize != 0 || fileLength <= 0 {
		return uuid.UUID{}, kerr.InvalidArgument
	}

	var pages []Vaddr
	remaining := fileLength
	offset := int64(0)
	page := addr
	for remaining > 0 {
		if _, ok := as.get(page); ok {
			for _, p := range pages {
				as.Remove(p)
			}
			return uuid.UUID{}, kerr.InvalidArgument
		}
		readBytes := remaining
		if readBytes > PageSize {
			readBytes = PageSize
		}
		zeroBytes := PageSize - int(readBytes)
		as.AddFileBacked(page, file, offset, int(readBytes), zeroBytes, true, true)
		pages = append(pages, page)

		remaining -= readBytes
		offset += readBytes
		page += PageSize
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.New()
	r.mappings[id] = &Mapping{ID: id, Base: addr, PageCount: len(pages), closer: closer}
	return id, kerr.OK
}

// / Munmap tears down the mapping named id: any resident, dirty page
// / is written back to its file at its recorded offset, its frame and
// / SPT entry are released, and the mapping's file handle is closed.
func (r *Registry) Munmap(ctx context.Context, as *AddressSpace, id uuid.UUID) kerr.Err_t {
	r.mu.Lock()
	m, ok := r.mappings[id]
	if ok {
		delete(r.mappings, id)
	}
	r.mu.Unlock()
	if !ok {
		return kerr.NotFound
	}

	for i := 0; i < m.PageCount; i++ {
		page := m.Base + Vaddr(i*PageSize)
		e, ok := as.get(page)
		if !ok {
			continue
		}
		if e.State == Resident && as.mmu.IsDirty(page) {
			e.File.WriteAt(e.Frame[:e.ReadBytes], e.Offset)
		}
		if e.State == Resident {
			as.frames.FreeFrame(e)
			as.mmu.Clear(page)
		} else if e.State == OnSwap {
			as.swap.Free(e.SwapIndex)
		}
		as.Remove(page)
	}
	m.closer.Close()
	return kerr.OK
}
