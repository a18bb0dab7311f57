// Package facade implements the filesystem facade described in
// spec.md §4.J: the user-facing create/open/remove/chdir/mkdir/readdir
// surface, composed from vdir's path resolver and the open-inode
// table rather than reimplementing either. It is grounded on
// do_filesys_create/remove/open and their helpers in
// original_source/src/filesys/filesys.c, translated from the
// original's thread-local current_dir into an explicit *vdir.Dir
// passed by the caller.
package facade

import (
	"github.com/yunju63/pintos-project4/cache"
	"github.com/yunju63/pintos-project4/freemap"
	"github.com/yunju63/pintos-project4/inode"
	"github.com/yunju63/pintos-project4/kerr"
	"github.com/yunju63/pintos-project4/ustr"
	"github.com/yunju63/pintos-project4/vdir"
	"github.com/yunju63/pintos-project4/vm"
)

// / RootDirSector is the well-known inumber of the filesystem root,
// / formatted once by mkfs (spec.md §6).
const RootDirSector = 1

// / RootDirEntries is the root directory's initial entry capacity.
const RootDirEntries = 16

// / Filesystem ties the inode/directory/cache/free-map layers together
// / behind the syscall-shaped surface in spec.md §4.J.
type Filesystem struct {
	cache *cache.Cache
	fm    *freemap.FreeMap
	table *inode.Table
	root  *vdir.Dir
}

// / Open mounts the filesystem on an already-formatted disk, wiring a
// / fresh open-inode table to c and fm and opening the well-known root
// / directory.
func Open(c *cache.Cache, fm *freemap.FreeMap) (*Filesystem, kerr.Err_t) {
	t := inode.NewTable(c, fm)
	root, err := vdir.Open(t, RootDirSector)
	if err != kerr.OK {
		return nil, err
	}
	return &Filesystem{cache: c, fm: fm, table: t, root: root}, kerr.OK
}

// / Table returns the underlying open-inode table, for components
// / (mmap registry, syscall layer) that need direct read/write access
// / to an already-resolved inode.
func (fs *Filesystem) Table() *inode.Table { return fs.table }

// / RootDir returns the filesystem's root directory, reopened so the
// / caller owns an independent handle.
func (fs *Filesystem) RootDir() *vdir.Dir {
	return vdir.Reopen(fs.table, fs.root)
}

// / Shutdown flushes every open inode header and dirty cache line back
// / to disk, the persisted-state contract in spec.md §6.
func (fs *Filesystem) Shutdown() error {
	fs.root.Close(fs.table)
	return fs.cache.WriteBackAll(true)
}

func rejectDotNames(basename ustr.Ustr) kerr.Err_t {
	if len(basename) == 0 || basename.Isdot() || basename.Isdotdot() {
		return kerr.InvalidArgument
	}
	return kerr.OK
}

// / Create allocates a fresh regular-file inode of initialSize bytes
// / named by path relative to cwd (root if cwd is nil), rejecting `.`
// / and `..` basenames and rolling back the inode's sector if linking
// / it into its parent directory fails.
func (fs *Filesystem) Create(cwd *vdir.Dir, path ustr.Ustr, initialSize int64) kerr.Err_t {
	return fs.create(cwd, path, initialSize, false)
}

// / Mkdir creates an empty directory named by path relative to cwd,
// / parented at the resolved containing directory.
func (fs *Filesystem) Mkdir(cwd *vdir.Dir, path ustr.Ustr) kerr.Err_t {
	return fs.create(cwd, path, 0, true)
}

func (fs *Filesystem) create(cwd *vdir.Dir, path ustr.Ustr, initialSize int64, isDir bool) kerr.Err_t {
	dir, basename, err := vdir.Resolve(fs.table, fs.root, cwd, path)
	if err != kerr.OK {
		return err
	}
	defer dir.Close(fs.table)

	if err := rejectDotNames(basename); err != kerr.OK {
		return err
	}

	sector, err := fs.fm.Alloc()
	if err != kerr.OK {
		return err
	}

	var cerr kerr.Err_t
	if isDir {
		cerr = vdir.Create(fs.table, sector, RootDirEntries, dir.Sector())
	} else {
		cerr = fs.table.Create(sector, initialSize, false, dir.Sector())
	}
	if cerr != kerr.OK {
		fs.fm.Release(sector)
		return cerr
	}

	if aerr := dir.Add(fs.table, basename, sector); aerr != kerr.OK {
		fs.fm.Release(sector)
		return aerr
	}
	return kerr.OK
}

// / Handle is an open file or directory descriptor, the facade's
// / equivalent of struct file in the original.
type Handle struct {
	in         *inode.Inode
	dir        *vdir.Dir
	readdirPos int
}

// / Open resolves path relative to cwd and returns a Handle for it,
// / implementing spec.md §4.F's documented edge cases: an empty path
// / fails; `.` or an empty basename at the root returns the directory
// / itself; `..` returns the parent directory, or fails with
// / kerr.NotFound when the resolved directory is the root.
func (fs *Filesystem) Open(cwd *vdir.Dir, path ustr.Ustr) (*Handle, kerr.Err_t) {
	if len(path) == 0 {
		return nil, kerr.InvalidArgument
	}

	dir, basename, err := vdir.Resolve(fs.table, fs.root, cwd, path)
	if err != kerr.OK {
		return nil, err
	}

	switch {
	case basename.Isdot() || len(basename) == 0:
		return &Handle{in: dir.Inode(), dir: dir}, kerr.OK

	case basename.Isdotdot():
		parentSector := dir.Inode().Parent()
		atRoot := dir.Sector() == fs.root.Sector()
		dir.Close(fs.table)
		if atRoot {
			return nil, kerr.NotFound
		}
		pdir, err := vdir.Open(fs.table, parentSector)
		if err != kerr.OK {
			return nil, err
		}
		return &Handle{in: pdir.Inode(), dir: pdir}, kerr.OK

	default:
		sector, ok := dir.Lookup(fs.table, basename)
		dir.Close(fs.table)
		if !ok {
			return nil, kerr.NotFound
		}
		in, err := fs.table.Open(sector)
		if err != kerr.OK {
			return nil, err
		}
		if in.IsDir() {
			return &Handle{in: in, dir: vdir.FromInode(in)}, kerr.OK
		}
		return &Handle{in: in}, kerr.OK
	}
}

// / Remove unlinks the entry named by path from its resolved parent
// / directory, refusing to remove a non-empty directory with
// / kerr.Busy.
func (fs *Filesystem) Remove(cwd *vdir.Dir, path ustr.Ustr) kerr.Err_t {
	dir, basename, err := vdir.Resolve(fs.table, fs.root, cwd, path)
	if err != kerr.OK {
		return err
	}
	defer dir.Close(fs.table)

	if err := rejectDotNames(basename); err != kerr.OK {
		return err
	}

	sector, ok := dir.Lookup(fs.table, basename)
	if !ok {
		return kerr.NotFound
	}

	target, err := fs.table.Open(sector)
	if err != kerr.OK {
		return err
	}
	if target.IsDir() {
		td := vdir.FromInode(target)
		if !td.IsEmpty(fs.table) {
			fs.table.Close(target)
			return kerr.Busy
		}
	}
	fs.table.Remove(target)
	fs.table.Close(target)

	return dir.Remove(fs.table, basename)
}

// / Chdir resolves path relative to cwd and returns the directory it
// / names, for the caller to install as its new working directory.
func (fs *Filesystem) Chdir(cwd *vdir.Dir, path ustr.Ustr) (*vdir.Dir, kerr.Err_t) {
	dir, basename, err := vdir.Resolve(fs.table, fs.root, cwd, path)
	if err != kerr.OK {
		return nil, err
	}

	switch {
	case basename.Isdot() || len(basename) == 0:
		return dir, kerr.OK

	case basename.Isdotdot():
		parentSector := dir.Inode().Parent()
		dir.Close(fs.table)
		return vdir.Open(fs.table, parentSector)

	default:
		sector, ok := dir.Lookup(fs.table, basename)
		dir.Close(fs.table)
		if !ok {
			return nil, kerr.NotFound
		}
		return vdir.Open(fs.table, sector)
	}
}

// / IsDir reports whether h names a directory.
func (h *Handle) IsDir() bool { return h.in.IsDir() }

// / Inumber returns h's inode sector number.
func (h *Handle) Inumber() int { return h.in.Sector() }

// / FileSize returns h's current length in bytes.
func (h *Handle) FileSize() int64 { return h.in.Length() }

// / ReadAt reads through the open-inode table into buf at offset.
func (fs *Filesystem) ReadAt(h *Handle, buf []byte, offset int64) int {
	return fs.table.ReadAt(h.in, buf, offset)
}

// / WriteAt writes buf through the open-inode table at offset. Writing
// / to a directory's raw byte stream would corrupt its entries, so it
// / is refused with kerr.IsDirectory, matching write()'s
// / inode_is_dir check in the original syscall layer. A file currently
// / under DenyWrite (e.g. an executable's image open for running)
// / is refused with kerr.Denied rather than silently writing 0 bytes.
func (fs *Filesystem) WriteAt(h *Handle, buf []byte, offset int64) (int, kerr.Err_t) {
	if h.in.IsDir() {
		return 0, kerr.IsDirectory
	}
	if h.in.Denied() {
		return 0, kerr.Denied
	}
	return fs.table.WriteAt(h.in, buf, offset), kerr.OK
}

// / DenyWrite prevents other openers from writing to h's file, used
// / while a process has it open for execution.
func (h *Handle) DenyWrite() { h.in.DenyWrite() }

// / AllowWrite reverses a prior DenyWrite.
func (h *Handle) AllowWrite() { h.in.AllowWrite() }

// / Close releases h's underlying inode.
func (fs *Filesystem) Close(h *Handle) kerr.Err_t {
	return fs.table.Close(h.in)
}

// / Readdir advances h's per-handle cursor over its directory's
// / entries, returning the next in-use entry's name, or ok=false once
// / every slot has been visited. h must have been opened on a
// / directory.
func (h *Handle) Readdir(t *inode.Table) (ustr.Ustr, bool) {
	if h.dir == nil {
		return nil, false
	}
	count := h.dir.EntryCount()
	for h.readdirPos < count {
		idx := h.readdirPos
		h.readdirPos++
		if name, ok := h.dir.ReadEntry(t, idx); ok {
			return name, true
		}
	}
	return nil, false
}

// fileBackend adapts a Handle's inode to vm.FileBackend, the contract
// a memory-mapped file's SPT entries use for demand paging and
// dirty-page write-back.
type fileBackend struct {
	t  *inode.Table
	in *inode.Inode
}

func (f fileBackend) ReadAt(buf []byte, offset int64) int  { return f.t.ReadAt(f.in, buf, offset) }
func (f fileBackend) WriteAt(buf []byte, offset int64) int { return f.t.WriteAt(f.in, buf, offset) }

// / AsFileBackend adapts h to vm.FileBackend for use with a
// / vm.Registry's Mmap call.
func (h *Handle) AsFileBackend(t *inode.Table) vm.FileBackend {
	return fileBackend{t: t, in: h.in}
}
