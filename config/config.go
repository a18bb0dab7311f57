// Package config holds the tunables spec.md hardcodes as constants
// (cache size, flush period, swap slot size, stack growth limits) so a
// caller can build a Config from whatever external source it prefers —
// flags, a TOML file, an environment-derived map — and decode it with
// mitchellh/mapstructure rather than this package knowing about any of
// those formats itself.
package config

import "time"

import "github.com/mitchellh/mapstructure"

// / Config collects every tunable the storage and VM engines need at
// / boot. Field names match the vocabulary of spec.md so a decoded
// / map stays legible next to the spec.
type Config struct {
	// CacheLines is the buffer cache's fixed capacity (spec: 64).
	CacheLines int `mapstructure:"cache_lines"`
	// FlushInterval is how often the periodic writer calls
	// WriteBackAll(false) (spec: sleep(500 ticks)).
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	// SectorsPerSwapSlot is the number of contiguous sectors a single
	// swap slot occupies (spec: 8).
	SectorsPerSwapSlot int `mapstructure:"sectors_per_swap_slot"`
	// MaxStackBytes bounds how far the user stack may grow downward
	// from the user/kernel boundary (spec: 8 MiB).
	MaxStackBytes int `mapstructure:"max_stack_bytes"`
	// StackFaultSlack is how far below the stack pointer a fault may
	// land and still be treated as stack growth (spec: 32 bytes).
	StackFaultSlack int `mapstructure:"stack_fault_slack"`
	// RootDirEntries is the root directory's initial entry capacity
	// (spec: 16).
	RootDirEntries int `mapstructure:"root_dir_entries"`
	// MaxDataSectors bounds the total number of sectors grantable to
	// files, so DiskFull can be simulated without sizing a real disk
	// image to 8MB per test file.
	MaxDataSectors int `mapstructure:"max_data_sectors"`
	// DiskPath is the host path of the filesystem disk image a
	// path-based boot entrypoint (system.BootFromConfig, cmd/mkfs)
	// opens with disk.OpenFileDisk. Empty when the caller opens its
	// own disk.Disk and calls system.Boot directly.
	DiskPath string `mapstructure:"disk_path"`
	// SwapDiskPath is the host path of the swap disk image, opened
	// the same way as DiskPath.
	SwapDiskPath string `mapstructure:"swap_disk_path"`
	// DiskSectors is the sector count DiskPath is opened/extended to.
	DiskSectors int `mapstructure:"disk_sectors"`
	// SwapSectors is the sector count SwapDiskPath is opened/extended
	// to.
	SwapSectors int `mapstructure:"swap_sectors"`
}

// / Default returns the configuration spec.md's constants describe.
func Default() Config {
	return Config{
		CacheLines:         64,
		FlushInterval:      500 * time.Millisecond,
		SectorsPerSwapSlot: 8,
		MaxStackBytes:      8 << 20,
		StackFaultSlack:    32,
		RootDirEntries:     16,
		MaxDataSectors:     1 << 20,
		DiskSectors:        8192,
		SwapSectors:        8192,
	}
}

// / Decode overlays m onto the defaults and returns the resulting
// / Config. Unknown keys in m are ignored; missing keys keep their
// / default value.
func Decode(m map[string]any) (Config, error) {
	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(m); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
