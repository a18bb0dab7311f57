// Package vdir implements the directory layer described in spec.md
// §4.F: directories are ordinary files holding fixed-size
// {in_use, name, inode_sector} entries, with `.`/`..` resolved through
// the inode header's parent field rather than stored as entries. Path
// resolution is grounded on get_dir/get_filename in
// original_source/src/filesys/filesys.c, translated into an explicit
// Resolve function instead of the original's thread-local working
// directory.
package vdir

import (
	"encoding/binary"

	"github.com/yunju63/pintos-project4/inode"
	"github.com/yunju63/pintos-project4/kerr"
	"github.com/yunju63/pintos-project4/ustr"
)

// / NameMax is the longest directory-entry name, in bytes.
const NameMax = 24

const entrySize = 4 + 4 + NameMax // in_use + inode_sector + name

// / Dir wraps an open directory inode with entry-oriented operations.
type Dir struct {
	in *inode.Inode
}

func marshalEntry(inUse bool, sector int, name ustr.Ustr) [entrySize]byte {
	var buf [entrySize]byte
	if inUse {
		binary.LittleEndian.PutUint32(buf[0:4], 1)
	}
	binary.LittleEndian.PutUint32(buf[4:8], uint32(sector))
	copy(buf[8:8+NameMax], name)
	return buf
}

func unmarshalEntry(buf []byte) (inUse bool, sector int, name ustr.Ustr) {
	inUse = binary.LittleEndian.Uint32(buf[0:4]) != 0
	sector = int(binary.LittleEndian.Uint32(buf[4:8]))
	name = ustr.MkUstrSlice(buf[8 : 8+NameMax])
	return
}

// / Open opens the directory inode at sector. It fails with
// / kerr.NotDirectory if the sector holds a regular file.
func Open(t *inode.Table, sector int) (*Dir, kerr.Err_t) {
	in, err := t.Open(sector)
	if err != kerr.OK {
		return nil, err
	}
	if !in.IsDir() {
		t.Close(in)
		return nil, kerr.NotDirectory
	}
	return &Dir{in: in}, kerr.OK
}

// / Reopen bumps the directory's open count, returning the same Dir
// / identity.
func Reopen(t *inode.Table, d *Dir) *Dir {
	t.Reopen(d.in)
	return d
}

// / Close releases the directory's underlying inode.
func (d *Dir) Close(t *inode.Table) kerr.Err_t {
	return t.Close(d.in)
}

// / Inode returns the directory's backing inode.
func (d *Dir) Inode() *inode.Inode { return d.in }

// / Sector returns the directory's inumber.
func (d *Dir) Sector() int { return d.in.Sector() }

// / Create formats a fresh, empty directory of the given entry
// / capacity at sector, owned by parent.
func Create(t *inode.Table, sector int, entryCapacity int, parent int) kerr.Err_t {
	return t.Create(sector, int64(entryCapacity*entrySize), true, parent)
}

// / Lookup scans d's entries for name, returning the inode sector it
// / names. Lookups are a straight linear scan over the directory's
// / data, mirroring dir_lookup.
func (d *Dir) Lookup(t *inode.Table, name ustr.Ustr) (int, bool) {
	count := int(d.in.Length()) / entrySize
	buf := make([]byte, entrySize)
	for i := 0; i < count; i++ {
		if n := t.ReadAt(d.in, buf, int64(i*entrySize)); n != entrySize {
			break
		}
		inUse, sector, entryName := unmarshalEntry(buf)
		if inUse && entryName.Eq(name) {
			return sector, true
		}
	}
	return 0, false
}

// / Add inserts a new entry mapping name to sector, reusing the first
// / free (not in_use) slot if one exists, else appending. It fails
// / with kerr.InvalidArgument if name already exists or is too long.
func (d *Dir) Add(t *inode.Table, name ustr.Ustr, sector int) kerr.Err_t {
	name = name.Normalized()
	if len(name) == 0 || len(name) > NameMax {
		return kerr.InvalidArgument
	}
	if _, ok := d.Lookup(t, name); ok {
		return kerr.InvalidArgument
	}

	count := int(d.in.Length()) / entrySize
	buf := make([]byte, entrySize)
	for i := 0; i < count; i++ {
		if n := t.ReadAt(d.in, buf, int64(i*entrySize)); n != entrySize {
			break
		}
		inUse, _, _ := unmarshalEntry(buf)
		if !inUse {
			entry := marshalEntry(true, sector, name)
			t.WriteAt(d.in, entry[:], int64(i*entrySize))
			return kerr.OK
		}
	}

	entry := marshalEntry(true, sector, name)
	t.WriteAt(d.in, entry[:], int64(count*entrySize))
	return kerr.OK
}

// / Remove deletes the entry named name, marking its slot free. The
// / caller is responsible for checking a directory target is empty
// / before calling Remove (facade-level policy, not enforced here).
func (d *Dir) Remove(t *inode.Table, name ustr.Ustr) kerr.Err_t {
	count := int(d.in.Length()) / entrySize
	buf := make([]byte, entrySize)
	for i := 0; i < count; i++ {
		if n := t.ReadAt(d.in, buf, int64(i*entrySize)); n != entrySize {
			break
		}
		inUse, sector, entryName := unmarshalEntry(buf)
		if inUse && entryName.Eq(name) {
			cleared := marshalEntry(false, sector, nil)
			t.WriteAt(d.in, cleared[:], int64(i*entrySize))
			return kerr.OK
		}
	}
	return kerr.NotFound
}

// / IsEmpty reports whether d has no in-use entries, used to guard
// / directory removal.
func (d *Dir) IsEmpty(t *inode.Table) bool {
	count := int(d.in.Length()) / entrySize
	buf := make([]byte, entrySize)
	for i := 0; i < count; i++ {
		if n := t.ReadAt(d.in, buf, int64(i*entrySize)); n != entrySize {
			break
		}
		if inUse, _, _ := unmarshalEntry(buf); inUse {
			return false
		}
	}
	return true
}

// / ReadEntry returns the index'th entry's name if it is in use, for
// / the readdir syscall, which tracks a per-fd cursor over these
// / indices rather than a byte offset.
func (d *Dir) ReadEntry(t *inode.Table, index int) (ustr.Ustr, bool) {
	buf := make([]byte, entrySize)
	if n := t.ReadAt(d.in, buf, int64(index*entrySize)); n != entrySize {
		return nil, false
	}
	inUse, _, name := unmarshalEntry(buf)
	if !inUse {
		return nil, false
	}
	return name, true
}

// / EntryCount returns the number of entry slots (in use or not)
// / currently allocated in d.
func (d *Dir) EntryCount() int {
	return int(d.in.Length()) / entrySize
}
