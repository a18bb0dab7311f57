package vm

import "context"
import "github.com/yunju63/pintos-project4/kerr"

// / ValidateBuffer checks that every byte of a size-byte buffer at
// / addr is a valid, resident (paging it in if necessary) user
// / address, failing if toWrite is set and any covered page is not
// / writable. It validates the buffer's first byte, then every
// / subsequent page boundary it spans, then its last byte.
// /
// / Grounded on check_valid_buffer in
// / original_source/src/userprog/syscall.c, whose helper,
// / check_valid_buffer_helper, reads an uninitialized local `i` before
// / ever assigning it (spec.md §9's documented uninitialized-index
// / bug); this version has no such stray index; it simply validates
// / the address it was given.
func (as *AddressSpace) ValidateBuffer(ctx context.Context, addr Vaddr, size int, esp Vaddr, toWrite bool) kerr.Err_t {
	if size <= 0 {
		return kerr.OK
	}

	if err := as.validateByte(ctx, addr, esp, toWrite); err != kerr.OK {
		return err
	}

	last := addr + Vaddr(size) - 1
	firstPage := PageRoundDown(addr)
	lastPage := PageRoundDown(last)
	for p := firstPage + PageSize; p <= lastPage; p += PageSize {
		if err := as.validateByte(ctx, p, esp, toWrite); err != kerr.OK {
			return err
		}
	}

	return as.validateByte(ctx, last, esp, toWrite)
}

func (as *AddressSpace) validateByte(ctx context.Context, addr, esp Vaddr, toWrite bool) kerr.Err_t {
	if addr < MinUserAddr {
		return kerr.InvalidArgument
	}

	page := PageRoundDown(addr)
	e, ok := as.get(page)
	if !ok {
		if !as.isStackGrowth(addr, esp, page) {
			return kerr.InvalidArgument
		}
		if err := as.growStack(ctx, page); err != kerr.OK {
			return err
		}
		e, _ = as.get(page)
	} else if e.State != Resident {
		var err kerr.Err_t
		switch e.State {
		case OnFile:
			err = as.loadFromFile(ctx, e)
		case OnSwap:
			err = as.loadFromSwap(ctx, e)
		}
		if err != kerr.OK {
			return err
		}
	}

	if toWrite && !e.Writable {
		return kerr.InvalidArgument
	}
	return kerr.OK
}
