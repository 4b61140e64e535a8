//go:build unix

package pmm

import "golang.org/x/sys/unix"

// mmapArena backs the frame arena with an anonymous private mapping so
// that "physical memory" in this simulation is, like the real thing,
// a flat range of page-aligned host memory rather than a Go slice the
// garbage collector is free to move.
type mmapArena struct {
	buf []byte
}

func newPlatformArena(size int) (arena, error) {
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return &mmapArena{buf: buf}, nil
}

func (a *mmapArena) bytes() []byte { return a.buf }

func (a *mmapArena) close() error {
	return unix.Munmap(a.buf)
}
