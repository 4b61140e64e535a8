package tlb

import "testing"

func TestProbeRandomRoundTrip(t *testing.T) {
	tl := New()
	idx := tl.Random(0x1000, 0x2000, true)
	if got, ok := tl.Probe(0x1000); !ok || got != idx {
		t.Fatalf("expected probe to find index %d, got %d ok=%v", idx, got, ok)
	}
	if _, ok := tl.Probe(0x3000); ok {
		t.Fatal("expected probe miss for unmapped vpn")
	}
}

func TestLoadOverwritesExisting(t *testing.T) {
	tl := New()
	tl.Random(0x1000, 0x2000, false)
	tl.Load(0x1000, 0x5000, true, false)

	idx, ok := tl.Probe(0x1000)
	if !ok {
		t.Fatal("expected entry to still be present")
	}
	if tl.entries[idx].frame != 0x5000 || !tl.entries[idx].writable {
		t.Fatalf("expected overwrite, got %+v", tl.entries[idx])
	}
}

func TestLoadForceReadWrite(t *testing.T) {
	tl := New()
	tl.Load(0x1000, 0x2000, false, true)
	idx, ok := tl.Probe(0x1000)
	if !ok || !tl.entries[idx].writable {
		t.Fatal("expected forceReadWrite to force the writable bit on")
	}
}

func TestFlushAllEmptiesTLB(t *testing.T) {
	tl := New()
	tl.Random(0x1000, 0x2000, true)
	tl.FlushAll()
	if !tl.Empty() {
		t.Fatal("expected TLB empty after FlushAll")
	}
}

func TestRandomRoundRobinFillsAllSlots(t *testing.T) {
	tl := New()
	seen := map[int]bool{}
	for i := 0; i < NumTLB; i++ {
		idx := tl.Random(uintptr(i*0x1000), 0, false)
		seen[idx] = true
	}
	if len(seen) != NumTLB {
		t.Fatalf("expected %d distinct slots used, got %d", NumTLB, len(seen))
	}
}
