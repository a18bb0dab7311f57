package vdir

import (
	"github.com/yunju63/pintos-project4/inode"
	"github.com/yunju63/pintos-project4/kerr"
	"github.com/yunju63/pintos-project4/ustr"
)

// / Resolve implements spec.md §4.F's path resolution contract: starting
// / directory is root if path is absolute or cwd is nil, else cwd;
// / every interior component is traversed (`.` skipped, `..` via the
// / inode's parent, anything else via Lookup, failing with
// / kerr.NotDirectory if it names a regular file); the final component
// / is returned unopened as the basename. Grounded on get_dir in
// / original_source/src/filesys/filesys.c.
func Resolve(t *inode.Table, root, cwd *Dir, path ustr.Ustr) (*Dir, ustr.Ustr, kerr.Err_t) {
	var dir *Dir
	if path.IsAbsolute() || cwd == nil {
		dir = Reopen(t, root)
	} else {
		dir = Reopen(t, cwd)
	}

	parts := ustr.Split(path)
	if len(parts) == 0 {
		return dir, ustr.MkUstr(), kerr.OK
	}

	for i := 0; i < len(parts)-1; i++ {
		comp := parts[i]
		switch {
		case comp.Isdot():
			continue
		case comp.Isdotdot():
			parentSector := dir.Inode().Parent()
			next, err := Open(t, parentSector)
			dir.Close(t)
			if err != kerr.OK {
				return nil, nil, err
			}
			dir = next
		default:
			sector, ok := dir.Lookup(t, comp)
			if !ok {
				dir.Close(t)
				return nil, nil, kerr.NotFound
			}
			next, err := Open(t, sector)
			if err != kerr.OK {
				dir.Close(t)
				return nil, nil, kerr.NotDirectory
			}
			dir.Close(t)
			dir = next
		}
	}
	return dir, parts[len(parts)-1], kerr.OK
}
