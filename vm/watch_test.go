package vm

import (
	"os"
	"testing"
	"time"

	"github.com/hongfeiyang/OS161-VM/mem"
	"github.com/hongfeiyang/OS161-VM/vfs"
)

func TestFileWatchInvalidatesChangedPages(t *testing.T) {
	as, alloc, ctx := newTestAS(t, 8)
	var sp uintptr
	as.DefineStack(&sp)

	f, err := os.CreateTemp(t.TempDir(), "watch")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()
	if _, err := f.Write(make([]byte, mem.PGSIZE)); err != nil {
		t.Fatalf("write: %v", err)
	}
	vn := vfs.Open(f)

	vaddr, errc := as.Mmap(mem.PGSIZE, true, true, false, vn, 0)
	if errc != 0 {
		t.Fatalf("mmap: %v", errc)
	}
	if err := as.EnableFileWatch(); err != nil {
		t.Fatalf("EnableFileWatch: %v", err)
	}

	if errc := HandleFault(ctx, alloc, Read, vaddr); errc != 0 {
		t.Fatalf("fault: %v", errc)
	}
	if as.Table.Lookup(vaddr) == nil {
		t.Fatal("expected pte installed before external change")
	}

	if _, err := f.WriteAt([]byte{0xFF}, 0); err != nil {
		t.Fatalf("external write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	invalidated := 0
	for time.Now().Before(deadline) {
		invalidated = as.InvalidateChangedFiles()
		if invalidated > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if invalidated == 0 {
		t.Fatal("expected external file modification to be observed")
	}
	if as.Table.Lookup(vaddr) != nil {
		t.Fatal("expected pte evicted after external change")
	}
}

func TestInvalidateChangedFilesNoopUntilEnabled(t *testing.T) {
	as, _, _ := newTestAS(t, 8)
	var sp uintptr
	as.DefineStack(&sp)
	if n := as.InvalidateChangedFiles(); n != 0 {
		t.Fatalf("expected 0 before EnableFileWatch, got %d", n)
	}
}
