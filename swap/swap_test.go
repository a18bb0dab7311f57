package swap

import (
	"bytes"
	"testing"

	"github.com/yunju63/pintos-project4/config"
	"github.com/yunju63/pintos-project4/disk"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.SectorsPerSwapSlot = 8
	return cfg
}

func TestSwapOutInRoundTrips(t *testing.T) {
	d := disk.NewMemDisk(8 * 4)
	a := New(testConfig(), d)

	page := bytes.Repeat([]byte{0xab}, PageSize)
	slot := a.SwapOut(page)

	got := make([]byte, PageSize)
	a.SwapIn(slot, got)
	if !bytes.Equal(got, page) {
		t.Fatalf("swap round trip mismatch")
	}
}

func TestFreeReclaimsSlot(t *testing.T) {
	d := disk.NewMemDisk(8 * 2)
	a := New(testConfig(), d)

	if a.NumFree() != 2 {
		t.Fatalf("expected 2 free slots, got %d", a.NumFree())
	}

	page := bytes.Repeat([]byte{1}, PageSize)
	slot := a.SwapOut(page)
	if a.NumFree() != 1 {
		t.Fatalf("expected 1 free slot after swap-out, got %d", a.NumFree())
	}

	a.Free(slot)
	if a.NumFree() != 2 {
		t.Fatalf("expected 2 free slots after Free, got %d", a.NumFree())
	}
}

func TestSwapOutPanicsWhenFull(t *testing.T) {
	d := disk.NewMemDisk(8)
	a := New(testConfig(), d)

	page := bytes.Repeat([]byte{1}, PageSize)
	a.SwapOut(page)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on swap exhaustion")
		}
	}()
	a.SwapOut(page)
}
