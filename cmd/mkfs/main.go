// Command mkfs formats a disk image: sizes the image file to the
// requested sector count (space added by extending the file reads as
// zeros; existing contents are not cleared), then lays down the
// well-known root directory at facade.RootDirSector,
// mirroring the teacher's mkfs command (which boots a fresh ufs image,
// checks for a root inode, and copies in a skeleton directory tree).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/yunju63/pintos-project4/cache"
	"github.com/yunju63/pintos-project4/config"
	"github.com/yunju63/pintos-project4/disk"
	"github.com/yunju63/pintos-project4/facade"
	"github.com/yunju63/pintos-project4/freemap"
	"github.com/yunju63/pintos-project4/inode"
	"github.com/yunju63/pintos-project4/vdir"
)

func main() {
	cfg := config.Default()

	var (
		image    = flag.String("image", cfg.DiskPath, "path to the disk image to create")
		nsectors = flag.Int("sectors", cfg.DiskSectors, "number of 512-byte sectors in the image")
	)
	flag.Parse()
	if *image == "" {
		fmt.Fprintln(os.Stderr, "usage: mkfs -image <path> [-sectors N]")
		os.Exit(1)
	}
	cfg.DiskPath = *image
	cfg.DiskSectors = *nsectors

	d, err := disk.OpenFileDisk(cfg.DiskPath, cfg.DiskSectors)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: %v\n", err)
		os.Exit(1)
	}
	defer d.Close()

	c := cache.New(cfg, d)
	dataSectors := *nsectors - facade.RootDirSector - 1
	fm := freemap.New(facade.RootDirSector+1, dataSectors)
	t := inode.NewTable(c, fm)

	if cerr := vdir.Create(t, facade.RootDirSector, facade.RootDirEntries, facade.RootDirSector); cerr != 0 {
		fmt.Fprintf(os.Stderr, "mkfs: create root directory: %v\n", cerr)
		os.Exit(1)
	}

	if err := c.WriteBackAll(true); err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: flush: %v\n", err)
		os.Exit(1)
	}
	if err := c.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: shutdown: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("mkfs: formatted %s (%d sectors, root at sector %d)\n", *image, *nsectors, facade.RootDirSector)
}
