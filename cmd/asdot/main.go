// Command asdot renders an address space's region list and page-table
// topology as a Graphviz DOT graph, for visualizing fault-handler
// behavior the way depgraph rendered the module dependency graph.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/hongfeiyang/OS161-VM/pmm"
	"github.com/hongfeiyang/OS161-VM/procctx"
	"github.com/hongfeiyang/OS161-VM/vm"
)

func main() {
	alloc, err := pmm.New(64)
	if err != nil {
		panic(err)
	}
	defer alloc.Close()

	as := vm.New(alloc)
	as.DefineRegion(0x00400000, 0x1000, true, true, true)
	var sp uintptr
	as.DefineStack(&sp)

	ctx := procctx.With(context.Background(), as)
	for _, vaddr := range []uintptr{0x00400010, as.HeapStart()} {
		if errc := vm.HandleFault(ctx, alloc, vm.Read, vaddr); errc != 0 {
			fmt.Fprintf(os.Stderr, "fault at %#x: %v\n", vaddr, errc)
		}
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	writeDot(w, as)
}

func writeDot(w *bufio.Writer, as *vm.AddressSpace) {
	w.WriteString("digraph addrspace {\n")
	w.WriteString("    rankdir=LR;\n")

	for i, r := range as.Regions.All() {
		w.WriteString(fmt.Sprintf(
			"    region%d [shape=box label=\"%s\\n[%#x,%#x)\\nr=%v w=%v x=%v\"];\n",
			i, regionName(r.Type), r.Vbase, r.Vtop, r.Readable, r.Writable, r.Executable))
	}

	for _, r := range as.Regions.All() {
		for va := r.Vbase; va < r.Vtop; va += pageSize {
			pte := as.Table.Lookup(va)
			if pte == nil {
				continue
			}
			w.WriteString(fmt.Sprintf(
				"    \"vaddr %#x\" -> \"frame %#x\" [label=\"ref=%d shared=%v\"];\n",
				va, pte.Frame(), pte.RefCount(), pte.Shared()))
		}
	}

	w.WriteString("}\n")
}

func regionName(t vm.RegionType) string {
	switch t {
	case vm.Unnamed:
		return "UNNAMED"
	case vm.Heap:
		return "HEAP"
	case vm.Stack:
		return "STACK"
	case vm.File:
		return "FILE"
	default:
		return "?"
	}
}

const pageSize = 1 << 12
