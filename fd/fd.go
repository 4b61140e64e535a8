// Package fd is the descriptor table mmap validates against: a file must
// already be open before a region can be mapped from it.
package fd

import (
	"sync"

	"github.com/hongfeiyang/OS161-VM/defs"
	"github.com/hongfeiyang/OS161-VM/limits"
	"github.com/hongfeiyang/OS161-VM/vfs"
)

// Permission bits a descriptor may carry.
const (
	Read  = 0x1
	Write = 0x2
)

// Fd_t is an open file descriptor: the vnode mmap will page through, plus
// the permission bits it was opened with.
type Fd_t struct {
	Vnode *vfs.FileVnode
	Perms int
}

// Table is a process's open-descriptor table. Descriptors are small
// non-negative integers; a nil slot means closed. Table size is bounded
// by a limits.Sysatomic_t rather than growing without end.
type Table struct {
	mu   sync.Mutex
	fds  map[int]*Fd_t
	next int

	open *limits.Sysatomic_t
}

// NewTable returns an empty descriptor table governed by the given
// per-address-space limits.
func NewTable(l *limits.PerAddrspace) *Table {
	return &Table{fds: make(map[int]*Fd_t), open: &l.Fds}
}

// Install adds f to the table and returns the descriptor assigned to it,
// or (-1, false) if the open-descriptor limit is exhausted.
func (t *Table) Install(f *Fd_t) (int, bool) {
	if !t.open.Take() {
		return -1, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.next
	t.next++
	t.fds[n] = f
	return n, true
}

// Close removes a descriptor from the table and returns its slot to the
// limit.
func (t *Table) Close(n int) {
	t.mu.Lock()
	_, ok := t.fds[n]
	delete(t.fds, n)
	t.mu.Unlock()
	if ok {
		t.open.Give()
	}
}

// Get validates fd for mmap: it must be installed. BAD_DESCRIPTOR is
// returned for an unopened or absent descriptor. The descriptor's Perms
// are not checked.
func (t *Table) Get(n int) (*Fd_t, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.fds[n]
	if !ok {
		return nil, defs.EBADF
	}
	return f, 0
}
