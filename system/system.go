// Package system wires the disk, buffer cache, free map, inode table,
// frame table, and swap area into one bootable instance, mirroring
// BootFS/BootMemFS/ShutdownFS in original teacher/ufs/ufs.go: a
// two-function lifecycle (Boot, Shutdown) around an already-formatted
// disk image, parameterized by config.Config instead of hardcoded
// constants.
package system

import (
	"fmt"

	"github.com/yunju63/pintos-project4/cache"
	"github.com/yunju63/pintos-project4/config"
	"github.com/yunju63/pintos-project4/disk"
	"github.com/yunju63/pintos-project4/facade"
	"github.com/yunju63/pintos-project4/freemap"
	"github.com/yunju63/pintos-project4/kerr"
	"github.com/yunju63/pintos-project4/kstat"
	"github.com/yunju63/pintos-project4/swap"
	"github.com/yunju63/pintos-project4/vm"
)

// / System is one running instance of the storage and VM engines,
// / holding every long-lived component a session needs.
type System struct {
	Disk       disk.Disk
	Cache      *cache.Cache
	FreeMap    *freemap.FreeMap
	FS         *facade.Filesystem
	Swap       *swap.Area
	Frames     *vm.FrameTable
	CacheStats *kstat.CacheStats
	VMStats    *kstat.VMStats
	cfg        config.Config
}

// / Boot mounts an already-formatted filesystem disk d and swap disk
// / swapDisk under cfg, reusing the root directory mkfs laid down at
// / facade.RootDirSector.
func Boot(cfg config.Config, d disk.Disk, swapDisk disk.Disk) (*System, error) {
	cacheStats := &kstat.CacheStats{}
	vmStats := &kstat.VMStats{}

	c := cache.New(cfg, d)

	dataSectors := d.NumSectors() - facade.RootDirSector - 1
	if dataSectors > cfg.MaxDataSectors {
		dataSectors = cfg.MaxDataSectors
	}
	fm := freemap.New(facade.RootDirSector+1, dataSectors)

	fs, ferr := facade.Open(c, fm)
	if ferr != kerr.OK {
		return nil, fmt.Errorf("system: boot: open root: %v", ferr)
	}

	sw := swap.New(cfg, swapDisk)
	frames := vm.NewFrameTable(cfg.CacheLines, sw, vmStats)

	return &System{
		Disk:       d,
		Cache:      c,
		FreeMap:    fm,
		FS:         fs,
		Swap:       sw,
		Frames:     frames,
		CacheStats: cacheStats,
		VMStats:    vmStats,
		cfg:        cfg,
	}, nil
}

// / BootFromConfig opens cfg.DiskPath and cfg.SwapDiskPath as
// / host-file disks sized cfg.DiskSectors/cfg.SwapSectors and boots a
// / System on them, for callers that configure a session from a path
// / (flags, TOML, JSON) rather than constructing disk.Disk values
// / (such as a disk.MemDisk) themselves and calling Boot.
func BootFromConfig(cfg config.Config) (*System, error) {
	if cfg.DiskPath == "" {
		return nil, fmt.Errorf("system: boot from config: DiskPath is empty")
	}
	if cfg.SwapDiskPath == "" {
		return nil, fmt.Errorf("system: boot from config: SwapDiskPath is empty")
	}

	d, err := disk.OpenFileDisk(cfg.DiskPath, cfg.DiskSectors)
	if err != nil {
		return nil, fmt.Errorf("system: boot from config: %w", err)
	}
	swapDisk, err := disk.OpenFileDisk(cfg.SwapDiskPath, cfg.SwapSectors)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("system: boot from config: %w", err)
	}

	return Boot(cfg, d, swapDisk)
}

// / Shutdown flushes the filesystem's persisted state (free map
// / bookkeeping lives in memory only, by design — see DESIGN.md) and
// / the buffer cache, mirroring ShutdownFS's fs.StopFS/ahci.close
// / sequence.
func (s *System) Shutdown() error {
	return s.FS.Shutdown()
}
