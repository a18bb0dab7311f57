package facade

import (
	"bytes"
	"testing"
	"time"

	"github.com/yunju63/pintos-project4/cache"
	"github.com/yunju63/pintos-project4/config"
	"github.com/yunju63/pintos-project4/disk"
	"github.com/yunju63/pintos-project4/freemap"
	"github.com/yunju63/pintos-project4/inode"
	"github.com/yunju63/pintos-project4/kerr"
	"github.com/yunju63/pintos-project4/ustr"
	"github.com/yunju63/pintos-project4/vdir"
)

func newTestFS(t *testing.T) *Filesystem {
	t.Helper()
	d := disk.NewMemDisk(512)
	cfg := config.Default()
	cfg.FlushInterval = time.Hour
	c := cache.New(cfg, d)
	t.Cleanup(func() { c.Shutdown() })
	fm := freemap.New(RootDirSector+1, 500)

	tbl := inode.NewTable(c, fm)
	if err := vdir.Create(tbl, RootDirSector, RootDirEntries, RootDirSector); err != kerr.OK {
		t.Fatalf("format root: %v", err)
	}

	fs, err := Open(c, fm)
	if err != kerr.OK {
		t.Fatalf("facade.Open: %v", err)
	}
	return fs
}

func TestCreateWriteReadCloseRoundTrip(t *testing.T) {
	fs := newTestFS(t)

	if err := fs.Create(nil, ustr.Ustr("sample.txt"), 0); err != kerr.OK {
		t.Fatalf("create: %v", err)
	}

	h, err := fs.Open(nil, ustr.Ustr("sample.txt"))
	if err != kerr.OK {
		t.Fatalf("open: %v", err)
	}
	want := []byte("hello from the facade")
	if n, err := fs.WriteAt(h, want, 0); n != len(want) || err != kerr.OK {
		t.Fatalf("write: got (%d,%v), want (%d,OK)", n, err, len(want))
	}
	got := make([]byte, len(want))
	if n := fs.ReadAt(h, got, 0); n != len(want) {
		t.Fatalf("read: got %d, want %d", n, len(want))
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %q want %q", got, want)
	}
	if err := fs.Close(h); err != kerr.OK {
		t.Fatalf("close: %v", err)
	}
}

func TestCreateRejectsDotBasenames(t *testing.T) {
	fs := newTestFS(t)
	if err := fs.Create(nil, ustr.Ustr("."), 0); err != kerr.InvalidArgument {
		t.Fatalf("create '.': got %v, want InvalidArgument", err)
	}
	if err := fs.Create(nil, ustr.Ustr(".."), 0); err != kerr.InvalidArgument {
		t.Fatalf("create '..': got %v, want InvalidArgument", err)
	}
}

func TestOpenEmptyPathFails(t *testing.T) {
	fs := newTestFS(t)
	if _, err := fs.Open(nil, ustr.Ustr("")); err != kerr.InvalidArgument {
		t.Fatalf("open '': got %v, want InvalidArgument", err)
	}
}

func TestMkdirChdirCreateInumberAndDotDot(t *testing.T) {
	fs := newTestFS(t)

	if err := fs.Mkdir(nil, ustr.Ustr("sub")); err != kerr.OK {
		t.Fatalf("mkdir: %v", err)
	}
	sub, err := fs.Chdir(nil, ustr.Ustr("sub"))
	if err != kerr.OK {
		t.Fatalf("chdir: %v", err)
	}

	if err := fs.Create(sub, ustr.Ustr("nested.txt"), 0); err != kerr.OK {
		t.Fatalf("create in sub: %v", err)
	}

	parent, err := fs.Chdir(sub, ustr.Ustr(".."))
	if err != kerr.OK {
		t.Fatalf("chdir ..: %v", err)
	}
	if parent.Sector() != RootDirSector {
		t.Fatalf("chdir .. landed on sector %d, want root (%d)", parent.Sector(), RootDirSector)
	}

	h, err := fs.Open(parent, ustr.Ustr("sub"))
	if err != kerr.OK {
		t.Fatalf("open sub from root: %v", err)
	}
	if !h.IsDir() {
		t.Fatalf("sub should be a directory")
	}
	if h.Inumber() != sub.Sector() {
		t.Fatalf("inumber mismatch: %d vs %d", h.Inumber(), sub.Sector())
	}
	fs.Close(h)
}

func TestWriteAtRefusesDirectory(t *testing.T) {
	fs := newTestFS(t)
	if err := fs.Mkdir(nil, ustr.Ustr("sub")); err != kerr.OK {
		t.Fatalf("mkdir: %v", err)
	}
	h, err := fs.Open(nil, ustr.Ustr("sub"))
	if err != kerr.OK {
		t.Fatalf("open sub: %v", err)
	}
	defer fs.Close(h)

	if n, werr := fs.WriteAt(h, []byte("corrupt"), 0); werr != kerr.IsDirectory || n != 0 {
		t.Fatalf("write to directory: got (%d,%v), want (0,IsDirectory)", n, werr)
	}
}

func TestWriteAtRefusesDeniedFile(t *testing.T) {
	fs := newTestFS(t)
	if err := fs.Create(nil, ustr.Ustr("exe"), 0); err != kerr.OK {
		t.Fatalf("create: %v", err)
	}
	h, err := fs.Open(nil, ustr.Ustr("exe"))
	if err != kerr.OK {
		t.Fatalf("open: %v", err)
	}
	defer fs.Close(h)

	h.DenyWrite()
	defer h.AllowWrite()

	if n, werr := fs.WriteAt(h, []byte("x"), 0); werr != kerr.Denied || n != 0 {
		t.Fatalf("write while denied: got (%d,%v), want (0,Denied)", n, werr)
	}
}

func TestRemoveRefusesNonEmptyDirectory(t *testing.T) {
	fs := newTestFS(t)
	fs.Mkdir(nil, ustr.Ustr("sub"))
	sub, _ := fs.Chdir(nil, ustr.Ustr("sub"))
	fs.Create(sub, ustr.Ustr("f"), 0)

	if err := fs.Remove(nil, ustr.Ustr("sub")); err != kerr.Busy {
		t.Fatalf("remove non-empty dir: got %v, want Busy", err)
	}

	fs.Remove(sub, ustr.Ustr("f"))
	if err := fs.Remove(nil, ustr.Ustr("sub")); err != kerr.OK {
		t.Fatalf("remove now-empty dir: %v", err)
	}
}

func TestReaddirVisitsAllEntriesOnce(t *testing.T) {
	fs := newTestFS(t)
	fs.Create(nil, ustr.Ustr("a"), 0)
	fs.Create(nil, ustr.Ustr("b"), 0)
	fs.Create(nil, ustr.Ustr("c"), 0)

	root := fs.RootDir()
	h := &Handle{in: root.Inode(), dir: root}

	seen := map[string]bool{}
	for {
		name, ok := h.Readdir(fs.table)
		if !ok {
			break
		}
		seen[name.String()] = true
	}
	for _, want := range []string{"a", "b", "c"} {
		if !seen[want] {
			t.Fatalf("readdir missed entry %q", want)
		}
	}
	fs.Close(h)
}
