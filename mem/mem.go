// Package mem defines the physical-address and page primitives shared by
// the frame allocator and the page table. It intentionally knows nothing
// about page tables, regions, or faults; those live in higher layers.
package mem

// PGSHIFT is the base-2 exponent of the page size.
const PGSHIFT uint = 12

// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

// PGOFFSET masks the in-page offset of a virtual or physical address.
const PGOFFSET uintptr = (1 << PGSHIFT) - 1

// PGMASK masks the page-aligned portion of an address.
const PGMASK uintptr = ^PGOFFSET

// Pa_t is a page-aligned physical address, as handed out by the frame
// allocator. It never carries control bits; those are kept in the PTE
// as separate typed fields (see vm.Pte_t) and are passed to the TLB
// alongside the address, never OR-ed into it.
type Pa_t uintptr

// Pg_t is the byte content of one physical page.
type Pg_t [PGSIZE]byte
