package vm

import (
	"context"

	"github.com/yunju63/pintos-project4/kerr"
)

// / Fault services a page fault at addr with stack pointer esp,
// / implementing spec.md §4.H's page-fault service: a found SPT entry
// / is paged in from file or swap; otherwise, if addr qualifies as a
// / stack-growth fault, a fresh zero-filled page is installed;
// / otherwise kerr.InvalidArgument signals the caller to kill the
// / process with status -1 (spec.md §7 — user-pointer faults never
// / panic). Grounded on check_valid_pointer/check_valid_buffer_helper
// / in original_source/src/userprog/syscall.c.
func (as *AddressSpace) Fault(ctx context.Context, addr, esp Vaddr) kerr.Err_t {
	page := PageRoundDown(addr)

	if e, ok := as.get(page); ok {
		switch e.State {
		case OnFile:
			return as.loadFromFile(ctx, e)
		case OnSwap:
			return as.loadFromSwap(ctx, e)
		default:
			return kerr.OK
		}
	}

	if !as.isStackGrowth(addr, esp, page) {
		return kerr.InvalidArgument
	}
	return as.growStack(ctx, page)
}

func (as *AddressSpace) isStackGrowth(addr, esp, page Vaddr) bool {
	if addr+Vaddr(as.stackFaultSlack) < esp {
		return false
	}
	if as.stackTop-page > Vaddr(as.maxStackBytes) {
		return false
	}
	return true
}
