package vm

import (
	"github.com/hongfeiyang/OS161-VM/defs"
	"github.com/hongfeiyang/OS161-VM/fd"
)

// MmapFd is the mmap(length, prot, fd, offset) syscall envelope: it
// validates fdnum against the descriptor table (BAD_DESCRIPTOR on an
// unopened descriptor) before handing the resolved vnode to Mmap.
func (as *AddressSpace) MmapFd(fds *fd.Table, length int, readable, writable, executable bool, fdnum int, offset int64) (uintptr, defs.Err_t) {
	f, err := fds.Get(fdnum)
	if err != 0 {
		return 0, err
	}
	return as.Mmap(length, readable, writable, executable, f.Vnode, offset)
}
