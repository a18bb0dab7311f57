package inode

import (
	"bytes"
	"testing"
	"time"

	"github.com/yunju63/pintos-project4/cache"
	"github.com/yunju63/pintos-project4/config"
	"github.com/yunju63/pintos-project4/disk"
	"github.com/yunju63/pintos-project4/freemap"
	"github.com/yunju63/pintos-project4/kerr"
)

func newTestTable(t *testing.T, dataSectors int) (*Table, *cache.Cache) {
	t.Helper()
	d := disk.NewMemDisk(1 + dataSectors)
	cfg := config.Default()
	cfg.FlushInterval = time.Hour
	c := cache.New(cfg, d)
	t.Cleanup(func() { c.Shutdown() })
	fm := freemap.New(1, dataSectors)
	return NewTable(c, fm), c
}

func TestCreateOpenReadWriteSmallFile(t *testing.T) {
	tbl, _ := newTestTable(t, 16)

	if err := tbl.Create(0, 0, false, 0); err != kerr.OK {
		t.Fatalf("create: %v", err)
	}
	in, err := tbl.Open(0)
	if err != kerr.OK {
		t.Fatalf("open: %v", err)
	}

	want := []byte("hello, pintos")
	if n := tbl.WriteAt(in, want, 0); n != len(want) {
		t.Fatalf("write: got %d bytes, want %d", n, len(want))
	}

	got := make([]byte, len(want))
	if n := tbl.ReadAt(in, got, 0); n != len(want) {
		t.Fatalf("read: got %d bytes, want %d", n, len(want))
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %q want %q", got, want)
	}
	if tbl.Close(in) != kerr.OK {
		t.Fatalf("close failed")
	}
}

func TestOpenSameSectorReturnsSameInode(t *testing.T) {
	tbl, _ := newTestTable(t, 16)
	tbl.Create(0, 512, false, 0)

	a, _ := tbl.Open(0)
	b, _ := tbl.Open(0)
	if a != b {
		t.Fatalf("expected the same *Inode for concurrent opens of one sector")
	}
	tbl.Close(a)
	tbl.Close(b)
}

func TestSparseGrowthZeroFills(t *testing.T) {
	tbl, _ := newTestTable(t, 16)
	tbl.Create(0, 0, false, 0)
	in, _ := tbl.Open(0)

	payload := []byte("end")
	offset := int64(disk.SectorSize + 100)
	tbl.WriteAt(in, payload, offset)

	gap := make([]byte, 50)
	tbl.ReadAt(in, gap, 10)
	for i, b := range gap {
		if b != 0 {
			t.Fatalf("byte %d of sparse gap not zero-filled: %d", i, b)
		}
	}

	tail := make([]byte, len(payload))
	tbl.ReadAt(in, tail, offset)
	if !bytes.Equal(tail, payload) {
		t.Fatalf("tail mismatch after sparse growth")
	}
	tbl.Close(in)
}

func TestBoundaryWriteAcrossDirectIndirectSplit(t *testing.T) {
	tbl, _ := newTestTable(t, 300)
	tbl.Create(0, 0, false, 0)
	in, _ := tbl.Open(0)

	buf := make([]byte, disk.SectorSize*129)
	for i := range buf {
		buf[i] = byte(i)
	}
	if n := tbl.WriteAt(in, buf, 0); n != len(buf) {
		t.Fatalf("write: got %d want %d", n, len(buf))
	}

	got := make([]byte, len(buf))
	if n := tbl.ReadAt(in, got, 0); n != len(buf) {
		t.Fatalf("read: got %d want %d", n, len(buf))
	}
	if !bytes.Equal(got, buf) {
		t.Fatalf("boundary round trip mismatch")
	}
	tbl.Close(in)
}

func TestDenyWriteBlocksWrite(t *testing.T) {
	tbl, _ := newTestTable(t, 16)
	tbl.Create(0, 16, false, 0)
	in, _ := tbl.Open(0)

	in.DenyWrite()
	if n := tbl.WriteAt(in, []byte("x"), 0); n != 0 {
		t.Fatalf("write under deny should write 0 bytes, got %d", n)
	}
	in.AllowWrite()
	if n := tbl.WriteAt(in, []byte("x"), 0); n != 1 {
		t.Fatalf("write after allow should succeed, got %d bytes", n)
	}
	tbl.Close(in)
}

func TestRemoveFreesSectorsOnLastClose(t *testing.T) {
	tbl, _ := newTestTable(t, 16)
	fm := tbl.fm
	freeBefore := fm.Free()

	tbl.Create(0, disk.SectorSize, false, 0)
	in, _ := tbl.Open(0)
	freeAfterCreate := fm.Free()
	if freeAfterCreate != freeBefore-1 {
		t.Fatalf("expected 1 sector consumed, free went from %d to %d", freeBefore, freeAfterCreate)
	}

	tbl.Remove(in)
	tbl.Close(in)
	if fm.Free() != freeBefore {
		t.Fatalf("expected all sectors reclaimed after remove, free=%d want=%d", fm.Free(), freeBefore)
	}
}
