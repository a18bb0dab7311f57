package vdir

import "github.com/yunju63/pintos-project4/inode"

// / FromInode wraps an already-open directory inode as a *Dir without
// / going through the open-inode table again. Callers must only pass
// / an inode for which in.IsDir() is true.
func FromInode(in *inode.Inode) *Dir {
	return &Dir{in: in}
}
