package vm

import (
	"os"
	"testing"

	"github.com/hongfeiyang/OS161-VM/defs"
	"github.com/hongfeiyang/OS161-VM/fd"
	"github.com/hongfeiyang/OS161-VM/limits"
	"github.com/hongfeiyang/OS161-VM/mem"
	"github.com/hongfeiyang/OS161-VM/vfs"
)

func TestMmapMunmapRoundTrip(t *testing.T) {
	as, alloc, ctx := newTestAS(t, 8)
	var sp uintptr
	as.DefineStack(&sp)

	f, err := os.CreateTemp(t.TempDir(), "mmap")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()
	if _, err := f.Write(make([]byte, mem.PGSIZE)); err != nil {
		t.Fatalf("write: %v", err)
	}
	vn := vfs.Open(f)

	fds := fd.NewTable(limits.DefaultLimits())
	n, ok := fds.Install(&fd.Fd_t{Vnode: vn, Perms: fd.Read | fd.Write})
	if !ok {
		t.Fatal("expected fd install to succeed")
	}

	vaddr, errc := as.MmapFd(fds, mem.PGSIZE, true, true, false, n, 0)
	if errc != 0 {
		t.Fatalf("mmap: %v", errc)
	}

	if errc := HandleFault(ctx, alloc, Read, vaddr); errc != 0 {
		t.Fatalf("fault on mapped region: %v", errc)
	}

	if errc := as.Munmap(vaddr); errc != 0 {
		t.Fatalf("munmap: %v", errc)
	}
	if as.Regions.FindByVbase(vaddr) != nil {
		t.Fatal("region still present after munmap")
	}
	if as.Table.Lookup(vaddr) != nil {
		t.Fatal("pte still mapped after munmap")
	}
}

func TestMmapRejectsBadArgs(t *testing.T) {
	as, _, _ := newTestAS(t, 4)
	var sp uintptr
	as.DefineStack(&sp)
	fds := fd.NewTable(limits.DefaultLimits())

	if _, errc := as.MmapFd(fds, 0, true, true, false, 0, 0); errc != defs.EBADF {
		// fd 0 was never installed, so BAD_DESCRIPTOR fires before the
		// zero-length check even runs.
		t.Fatalf("expected EBADF for unopened fd, got %v", errc)
	}
}

func TestMmapRejectsMisalignedOffset(t *testing.T) {
	as, _, _ := newTestAS(t, 4)
	var sp uintptr
	as.DefineStack(&sp)

	f, err := os.CreateTemp(t.TempDir(), "mmap")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()
	vn := vfs.Open(f)
	fds := fd.NewTable(limits.DefaultLimits())
	n, _ := fds.Install(&fd.Fd_t{Vnode: vn, Perms: fd.Read})

	if _, errc := as.MmapFd(fds, mem.PGSIZE, true, false, false, n, 7); errc != defs.EINVAL {
		t.Fatalf("expected EINVAL for misaligned offset, got %v", errc)
	}
}

func TestMunmapRejectsNonFileRegion(t *testing.T) {
	as, _, _ := newTestAS(t, 4)
	as.DefineRegion(0x00400000, mem.PGSIZE, true, true, true)

	if errc := as.Munmap(0x00400000); errc != defs.EINVAL {
		t.Fatalf("expected EINVAL for non-FILE region, got %v", errc)
	}
}

