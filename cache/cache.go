// Package cache implements the fixed-capacity, write-back sector
// cache described in spec.md §4.C: second-chance (clock) eviction,
// periodic flushing, and asynchronous read-ahead. It is grounded on
// the teacher's fs/blk.go (Bdev_block_t, BlkList_t — the cache-line
// and clock-list shapes) and on original_source/src/filesys/cache.c
// for the exact eviction and read-ahead algorithms.
//
// Debug gates the same kind of conditional trace prints fs/blk.go
// gates behind its bdev_debug flag — no structured logging framework,
// matching the teacher's own register.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yunju63/pintos-project4/caller"
	"github.com/yunju63/pintos-project4/config"
	"github.com/yunju63/pintos-project4/disk"
	"github.com/yunju63/pintos-project4/kstat"
)

// / Debug gates trace prints, disabled by default.
var Debug = false

func dprintf(format string, args ...any) {
	if Debug {
		fmt.Printf("cache: "+format, args...)
	}
}

// / Line is one 512-byte cache line (spec.md §3's "Cache line").
type Line struct {
	Sector   int
	Data     [disk.SectorSize]byte
	Accessed bool
	Dirty    bool
}

// / Cache is the fixed-capacity sector cache. Every exported method
// / that touches lines serializes through a single mutex, matching the
// / lock order in spec.md §5 (buffer_cache_lock is one global lock
// / covering the line list, eviction, and the I/O eviction performs).
type Cache struct {
	mu       sync.Mutex
	lines    *list.List // of *Line, never reordered: slot position is stable once assigned
	index    map[int]*list.Element
	capacity int
	disk     disk.Disk

	ra    *readAheadQueue
	stats *kstat.CacheStats

	flushInterval time.Duration
	group         *errgroup.Group
	cancel        context.CancelFunc
}

// / New constructs a Cache of the configured capacity over d and starts
// / its periodic-writer and read-ahead background goroutines.
func New(cfg config.Config, d disk.Disk) *Cache {
	c := &Cache{
		lines:         list.New(),
		index:         make(map[int]*list.Element, cfg.CacheLines),
		capacity:      cfg.CacheLines,
		disk:          d,
		stats:         &kstat.CacheStats{},
		flushInterval: cfg.FlushInterval,
		ra:            newReadAheadQueue(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	c.group = g
	g.Go(func() error { return c.periodicWriter(gctx) })
	g.Go(func() error { return c.readAheadWorker() })
	return c
}

// / Stats exposes the running counters for kstat snapshotting.
func (c *Cache) Stats() *kstat.CacheStats {
	return c.stats
}

// / GetLine returns the cache line holding sector, evicting and
// / reading from disk first if necessary. It sets the line's accessed
// / bit and, if dirtyHint, its dirty bit. The cache mutex is held on
// / return — the caller must read/write line.Data and then call
// / ReleaseLine — matching spec.md §4.C's "upper layer then reads/
// / writes line.block[ofs..] directly under the cache mutex discipline."
func (c *Cache) GetLine(sector int, dirtyHint bool) (*Line, error) {
	c.mu.Lock()
	line, err := c.getLineLocked(sector, dirtyHint)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	return line, nil
}

// / ReleaseLine releases the cache mutex acquired by GetLine.
func (c *Cache) ReleaseLine(*Line) {
	c.mu.Unlock()
}

// / WithLine is a convenience wrapper that calls fn with the requested
// / line while the cache mutex is held, then releases it. Most callers
// / should prefer this over the GetLine/ReleaseLine pair.
func (c *Cache) WithLine(sector int, dirtyHint bool, fn func(*Line)) error {
	line, err := c.GetLine(sector, dirtyHint)
	if err != nil {
		return err
	}
	defer c.ReleaseLine(line)
	fn(line)
	return nil
}

func (c *Cache) getLineLocked(sector int, dirtyHint bool) (*Line, error) {
	if el, ok := c.index[sector]; ok {
		line := el.Value.(*Line)
		if dirtyHint {
			line.Dirty = true
		}
		line.Accessed = true
		c.stats.Hits.Add(1)
		return line, nil
	}
	c.stats.Misses.Add(1)
	return c.addLineLocked(sector, dirtyHint)
}

func (c *Cache) addLineLocked(sector int, dirtyHint bool) (*Line, error) {
	var el *list.Element
	if c.lines.Len() < c.capacity {
		el = c.lines.PushBack(&Line{})
	} else {
		var err error
		el, err = c.clockVictimLocked()
		if err != nil {
			return nil, err
		}
		victim := el.Value.(*Line)
		if victim.Dirty {
			dprintf("write back sector %d before eviction\n", victim.Sector)
			if err := c.disk.WriteSector(victim.Sector, victim.Data[:]); err != nil {
				return nil, err
			}
			c.stats.WriteBacks.Add(1)
		}
		delete(c.index, victim.Sector)
		c.stats.Evictions.Add(1)
	}

	line := el.Value.(*Line)
	if err := c.disk.ReadSector(sector, line.Data[:]); err != nil {
		return nil, err
	}
	line.Sector = sector
	line.Dirty = dirtyHint
	line.Accessed = true
	c.index[sector] = el
	dprintf("loaded sector %d\n", sector)
	return line, nil
}

// clockVictimLocked implements the second-chance algorithm from
// original_source/src/filesys/cache.c: the hand starts at the list
// head and restarts there on every call (spec.md §4.C documents this
// restart as a teaching-grade approximation, kept as-is). A line's
// position in the list never changes across its lifetime; eviction
// reuses the same *Line in place rather than moving it, exactly as
// the original's evict_cache_line reuses `cl` without removing it
// from buffer_cache.
func (c *Cache) clockVictimLocked() (*list.Element, error) {
	if c.lines.Len() == 0 {
		return nil, panicUnreachable("evict on empty cache")
	}
	e := c.lines.Front()
	limit := 2*c.lines.Len() + 1
	for i := 0; i < limit; i++ {
		line := e.Value.(*Line)
		if line.Accessed {
			line.Accessed = false
		} else {
			return e, nil
		}
		e = e.Next()
		if e == nil {
			e = c.lines.Front()
		}
	}
	return nil, panicUnreachable("clock scan did not find a victim")
}

// panicUnreachable matches spec.md §7: "Cache unable to evict → panic
// (should be unreachable)." It never returns; the error result exists
// only so callers can chain it through normal control flow up to the
// panic call site, where caller.Dump gives a diagnosable stack.
func panicUnreachable(why string) error {
	panic(fmt.Sprintf("cache: %s\n%s", why, caller.Dump(2)))
}

// / WriteBackAll flushes every dirty line. If drain, it additionally
// / frees all lines and empties the cache (used by Shutdown).
func (c *Cache) WriteBackAll(drain bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for e := c.lines.Front(); e != nil; {
		next := e.Next()
		line := e.Value.(*Line)
		if line.Dirty {
			if err := c.disk.WriteSector(line.Sector, line.Data[:]); err != nil {
				return err
			}
			line.Dirty = false
			c.stats.WriteBacks.Add(1)
		}
		if drain {
			delete(c.index, line.Sector)
			c.lines.Remove(e)
		}
		e = next
	}
	return nil
}

// / ReadAheadPut asynchronously requests that sector be present in the
// / cache; duplicates are absorbed because a find hit inside the
// / worker returns immediately.
func (c *Cache) ReadAheadPut(sector int) {
	c.ra.put(sector)
}

func (c *Cache) periodicWriter(ctx context.Context) error {
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.WriteBackAll(false); err != nil {
				return err
			}
		}
	}
}

func (c *Cache) readAheadWorker() error {
	for {
		sector, ok := c.ra.get()
		if !ok {
			return nil
		}
		if err := c.WithLine(sector, false, func(*Line) {}); err != nil {
			return err
		}
		c.stats.ReadAheads.Add(1)
	}
}

// / Shutdown stops the background goroutines and performs a final
// / draining write-back, matching filesys_done's write_behind_all(true).
func (c *Cache) Shutdown() error {
	c.cancel()
	c.ra.close()
	if err := c.group.Wait(); err != nil {
		return err
	}
	return c.WriteBackAll(true)
}
