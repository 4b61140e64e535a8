// Package pmm is the physical frame allocator: the alloc_kpages/free_kpages
// collaborator the VM core consumes. It owns a flat arena of page-sized
// frames, a free list threaded through unused frames (rather than through
// a side array as in biscuit's Physmem_t), and a counting semaphore that caps the number
// of frames in play so a test or a constrained target can simulate a
// machine with a small amount of physical memory.
package pmm

import "github.com/hongfeiyang/OS161-VM/mem"

// arena is the platform-specific backing store for physical frames. On
// unix targets it is backed by an anonymous mmap region so that frame
// addresses are real, page-aligned memory; elsewhere it falls back to a
// plain heap slice.
type arena interface {
	// bytes returns the full backing buffer.
	bytes() []byte
	// close releases the backing store.
	close() error
}

func newArena(frames int) (arena, error) {
	return newPlatformArena(frames * mem.PGSIZE)
}
