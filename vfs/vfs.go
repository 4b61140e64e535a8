// Package vfs supplies the page-granularity file I/O that FILE-backed
// regions read and write through: VOP_READ/VOP_WRITE in the collaborator
// contract, reduced here to whole-page transfers against an os.File.
package vfs

import (
	"errors"
	"io"
	"os"

	"github.com/hongfeiyang/OS161-VM/defs"
	"github.com/hongfeiyang/OS161-VM/mem"
)

// FileVnode backs a mmap'd FILE region with an ordinary host file. It
// satisfies vm.FileVnode.
type FileVnode struct {
	f    *os.File
	path string
}

// Open wraps an already-open file for page-granularity access. The VM core
// never opens files itself; a descriptor table collaborator hands it a
// vnode for an fd it has already validated.
func Open(f *os.File) *FileVnode {
	return &FileVnode{f: f, path: f.Name()}
}

// Path returns the filesystem path this vnode was opened from, the handle
// a Watcher registers to learn about external modification.
func (v *FileVnode) Path() string {
	return v.path
}

// ReadPage reads one page-sized chunk at byte offset off into page. A
// short read (the file is shorter than off+PGSIZE) is zero-filled past
// EOF, matching the behavior a page-in of a file's final partial page
// needs.
func (v *FileVnode) ReadPage(off int64, page *mem.Pg_t) error {
	n, err := v.f.ReadAt(page[:], off)
	if err != nil && !errors.Is(err, io.EOF) {
		return defs.EIO
	}
	for i := n; i < len(page); i++ {
		page[i] = 0
	}
	return nil
}

// WritePage writes one page-sized chunk from page to byte offset off.
func (v *FileVnode) WritePage(off int64, page *mem.Pg_t) error {
	if _, err := v.f.WriteAt(page[:], off); err != nil {
		return defs.EIO
	}
	return nil
}
