package fd

import (
	"os"
	"testing"

	"github.com/hongfeiyang/OS161-VM/defs"
	"github.com/hongfeiyang/OS161-VM/limits"
	"github.com/hongfeiyang/OS161-VM/vfs"
)

func TestInstallGetClose(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "fd")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	table := NewTable(limits.DefaultLimits())
	n, ok := table.Install(&Fd_t{Vnode: vfs.Open(f), Perms: Read | Write})
	if !ok {
		t.Fatal("expected install to succeed")
	}

	got, errc := table.Get(n)
	if errc != 0 {
		t.Fatalf("Get: %v", errc)
	}
	if got.Perms != Read|Write {
		t.Fatalf("unexpected perms: %v", got.Perms)
	}

	table.Close(n)
	if _, errc := table.Get(n); errc != defs.EBADF {
		t.Fatalf("expected EBADF after close, got %v", errc)
	}
}

func TestGetUnopenedIsBadDescriptor(t *testing.T) {
	table := NewTable(limits.DefaultLimits())
	if _, errc := table.Get(7); errc != defs.EBADF {
		t.Fatalf("expected EBADF, got %v", errc)
	}
}

func TestInstallExhaustsLimit(t *testing.T) {
	l := &limits.PerAddrspace{Fds: 1}
	table := NewTable(l)

	if _, ok := table.Install(&Fd_t{}); !ok {
		t.Fatal("expected first install to succeed")
	}
	if _, ok := table.Install(&Fd_t{}); ok {
		t.Fatal("expected second install to fail: limit exhausted")
	}
}
