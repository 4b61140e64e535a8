package mem

import "testing"

func TestPageConstants(t *testing.T) {
	if PGSIZE != 1<<PGSHIFT {
		t.Fatalf("PGSIZE inconsistent with PGSHIFT: %d vs %d", PGSIZE, 1<<PGSHIFT)
	}
	if PGMASK != ^PGOFFSET {
		t.Fatal("PGMASK should be the complement of PGOFFSET")
	}
	if uintptr(0x1234)&PGMASK != 0x1000 {
		t.Fatalf("unexpected masked address: %#x", uintptr(0x1234)&PGMASK)
	}
}
