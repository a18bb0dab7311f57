package vm

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/yunju63/pintos-project4/config"
	"github.com/yunju63/pintos-project4/disk"
	"github.com/yunju63/pintos-project4/kstat"
	"github.com/yunju63/pintos-project4/swap"
)

// fakeMMU is an in-memory stand-in for the page-directory operations
// spec.md §1 puts out of scope.
type fakeMMU struct {
	mu       sync.Mutex
	accessed map[Vaddr]bool
	dirty    map[Vaddr]bool
	mapped   map[Vaddr][]byte
}

func newFakeMMU() *fakeMMU {
	return &fakeMMU{
		accessed: map[Vaddr]bool{},
		dirty:    map[Vaddr]bool{},
		mapped:   map[Vaddr][]byte{},
	}
}

func (m *fakeMMU) IsAccessed(page Vaddr) bool       { m.mu.Lock(); defer m.mu.Unlock(); return m.accessed[page] }
func (m *fakeMMU) SetAccessed(page Vaddr, v bool)   { m.mu.Lock(); defer m.mu.Unlock(); m.accessed[page] = v }
func (m *fakeMMU) IsDirty(page Vaddr) bool          { m.mu.Lock(); defer m.mu.Unlock(); return m.dirty[page] }
func (m *fakeMMU) setDirty(page Vaddr, v bool)      { m.mu.Lock(); defer m.mu.Unlock(); m.dirty[page] = v }
func (m *fakeMMU) Install(page Vaddr, frame []byte, writable bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mapped[page] = frame
	return true
}
func (m *fakeMMU) Clear(page Vaddr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mapped, page)
	delete(m.accessed, page)
	delete(m.dirty, page)
}

// fakeFile is an in-memory FileBackend.
type fakeFile struct {
	data []byte
}

func (f *fakeFile) ReadAt(buf []byte, offset int64) int {
	n := copy(buf, f.data[offset:])
	return n
}
func (f *fakeFile) WriteAt(buf []byte, offset int64) int {
	need := int(offset) + len(buf)
	if need > len(f.data) {
		grown := make([]byte, need)
		copy(grown, f.data)
		f.data = grown
	}
	return copy(f.data[offset:], buf)
}

func newTestAddressSpace(t *testing.T, capacity int) (*AddressSpace, *fakeMMU, *FrameTable) {
	t.Helper()
	cfg := config.Default()
	d := disk.NewMemDisk(64)
	sw := swap.New(cfg, d)
	frames := NewFrameTable(capacity, sw, &kstat.VMStats{})
	mmu := newFakeMMU()
	as := NewAddressSpace(cfg, mmu, frames, sw, &kstat.VMStats{}, Vaddr(0x08100000))
	return as, mmu, frames
}

func TestFaultLoadsFileBackedPage(t *testing.T) {
	as, mmu, _ := newTestAddressSpace(t, 4)
	file := &fakeFile{data: bytes.Repeat([]byte{0x55}, PageSize)}
	page := Vaddr(0x08048000)
	as.AddFileBacked(page, file, 0, PageSize, 0, true, false)

	if err := as.Fault(context.Background(), page, page); err != 0 {
		t.Fatalf("fault: %v", err)
	}
	frame := mmu.mapped[page]
	if len(frame) != PageSize || frame[0] != 0x55 {
		t.Fatalf("page not installed with file contents")
	}
}

func TestFaultZeroFillsPartialPage(t *testing.T) {
	as, mmu, _ := newTestAddressSpace(t, 4)
	file := &fakeFile{data: bytes.Repeat([]byte{0x11}, 10)}
	page := Vaddr(0x08048000)
	as.AddFileBacked(page, file, 0, 10, PageSize-10, true, false)

	as.Fault(context.Background(), page, page)
	frame := mmu.mapped[page]
	for i := 0; i < 10; i++ {
		if frame[i] != 0x11 {
			t.Fatalf("byte %d should be file data", i)
		}
	}
	for i := 10; i < PageSize; i++ {
		if frame[i] != 0 {
			t.Fatalf("byte %d should be zero-filled", i)
		}
	}
}

func TestStackGrowthWithinSlackSucceeds(t *testing.T) {
	as, _, _ := newTestAddressSpace(t, 4)
	esp := Vaddr(0x08100000 - 32)
	addr := esp // exactly at esp: always valid
	if err := as.Fault(context.Background(), addr, esp); err != 0 {
		t.Fatalf("stack growth at esp: %v", err)
	}
}

func TestStackGrowthBeyondSlackFails(t *testing.T) {
	as, _, _ := newTestAddressSpace(t, 4)
	esp := Vaddr(0x08100000)
	addr := esp - 33
	if err := as.Fault(context.Background(), addr, esp); err == 0 {
		t.Fatalf("expected fault 33 bytes below esp to fail validation")
	}
}

func TestStackGrowthPastLimitFails(t *testing.T) {
	as, _, _ := newTestAddressSpace(t, 4)
	farDown := as.stackTop - Vaddr(as.maxStackBytes) - PageSize
	esp := farDown // at esp, so only the size limit can reject it
	if err := as.Fault(context.Background(), farDown, esp); err == 0 {
		t.Fatalf("expected fault beyond max stack size to fail")
	}
}

func TestFrameTableEvictsUnderCapacity(t *testing.T) {
	as, mmu, frames := newTestAddressSpace(t, 1)
	fileA := &fakeFile{data: bytes.Repeat([]byte{1}, PageSize)}
	fileB := &fakeFile{data: bytes.Repeat([]byte{2}, PageSize)}
	pageA := Vaddr(0x08048000)
	pageB := Vaddr(0x08049000)

	as.AddFileBacked(pageA, fileA, 0, PageSize, 0, false, false)
	as.AddFileBacked(pageB, fileB, 0, PageSize, 0, false, false)

	if err := as.Fault(context.Background(), pageA, pageA); err != 0 {
		t.Fatalf("fault A: %v", err)
	}
	if err := as.Fault(context.Background(), pageB, pageB); err != 0 {
		t.Fatalf("fault B: %v", err)
	}

	// With capacity 1, resolving B must have evicted A.
	if _, ok := mmu.mapped[pageA]; ok {
		t.Fatalf("page A should have been evicted from the single-frame table")
	}
	if frame, ok := mmu.mapped[pageB]; !ok || frame[0] != 2 {
		t.Fatalf("page B should be resident")
	}
	_ = frames
}

func TestPinPreventsEviction(t *testing.T) {
	as, mmu, _ := newTestAddressSpace(t, 2)
	fileA := &fakeFile{data: bytes.Repeat([]byte{1}, PageSize)}
	fileB := &fakeFile{data: bytes.Repeat([]byte{2}, PageSize)}
	fileC := &fakeFile{data: bytes.Repeat([]byte{3}, PageSize)}
	pageA := Vaddr(0x08048000)
	pageB := Vaddr(0x08049000)
	pageC := Vaddr(0x0804a000)

	as.AddFileBacked(pageA, fileA, 0, PageSize, 0, false, false)
	as.AddFileBacked(pageB, fileB, 0, PageSize, 0, false, false)
	as.AddFileBacked(pageC, fileC, 0, PageSize, 0, false, false)

	as.Fault(context.Background(), pageA, pageA)
	as.Fault(context.Background(), pageB, pageB)

	eA, _ := as.get(pageA)
	eA.Pin()
	defer eA.Unpin()

	// Both frames are occupied; loading C must evict B, the only
	// unpinned resident entry, rather than looping forever on A.
	if err := as.Fault(context.Background(), pageC, pageC); err != 0 {
		t.Fatalf("fault C: %v", err)
	}

	if _, ok := mmu.mapped[pageA]; !ok {
		t.Fatalf("pinned page A must not be evicted")
	}
	if _, ok := mmu.mapped[pageB]; ok {
		t.Fatalf("page B should have been evicted to make room for C")
	}
}
