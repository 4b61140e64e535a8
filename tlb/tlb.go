// Package tlb simulates a software-managed translation lookaside buffer in
// the style of OS/161's MIPS target: a fixed number of entries, each
// probed, written, or replaced at a randomly (here, round-robin) chosen
// index, with no hardware page-walker backing it up. The vm package is the
// only caller (the fault handler loads entries, address-space activation
// flushes them); this package does not reach back into vm.
package tlb

import (
	"sync"

	"github.com/hongfeiyang/OS161-VM/mem"
)

// NumTLB is the number of hardware-simulated TLB slots, matching OS/161's
// NUM_TLB for the MIPS r3000 target this model is patterned on.
const NumTLB = 64

type entry struct {
	valid    bool
	vpn      uintptr
	frame    mem.Pa_t
	writable bool
}

// TLB is one CPU's translation cache. A single mutex serializes probe,
// write, and random-install: the fault handler holds it for the duration
// of the "elevated interrupt priority" section the design calls for, which
// here just means no other goroutine observes a half-written entry.
type TLB struct {
	mu      sync.Mutex
	entries [NumTLB]entry
	victim  int
}

// New returns an empty TLB.
func New() *TLB {
	return &TLB{}
}

// Probe looks for a valid entry mapping vpn and returns its index, or
// (-1, false) if none exists.
func (t *TLB) Probe(vpn uintptr) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.probeLocked(vpn)
}

func (t *TLB) probeLocked(vpn uintptr) (int, bool) {
	for i, e := range t.entries {
		if e.valid && e.vpn == vpn {
			return i, true
		}
	}
	return -1, false
}

// Write installs (vpn, frame, writable) at the given index, overwriting
// whatever was there.
func (t *TLB) Write(idx int, vpn uintptr, frame mem.Pa_t, writable bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[idx] = entry{valid: true, vpn: vpn, frame: frame, writable: writable}
}

// Random installs (vpn, frame, writable) into a slot chosen without regard
// to existing contents (round-robin, standing in for the hardware's random
// register) and returns the index used.
func (t *TLB) Random(vpn uintptr, frame mem.Pa_t, writable bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.victim
	t.victim = (t.victim + 1) % NumTLB
	t.entries[idx] = entry{valid: true, vpn: vpn, frame: frame, writable: writable}
	return idx
}

// FlushAll invalidates every entry. Called on address-space activate and
// deactivate: this model has no ASIDs, so every context switch invalidates
// the whole TLB.
func (t *TLB) FlushAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.entries {
		t.entries[i] = entry{}
	}
}

// Empty reports whether every entry is invalid, for asserting the
// idempotence of repeated activate calls.
func (t *TLB) Empty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.valid {
			return false
		}
	}
	return true
}

// Load implements the fault handler's TLB-programming step: if
// forceReadWrite is set, the writable bit is forced on before loading
// (ELF load asserts this so writes to nominally read-only segments
// succeed); probe for an existing entry at vpn and overwrite it if found,
// else install into a randomly chosen slot.
func (t *TLB) Load(vpn uintptr, frame mem.Pa_t, writable, forceReadWrite bool) {
	if forceReadWrite {
		writable = true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx, ok := t.probeLocked(vpn); ok {
		t.entries[idx] = entry{valid: true, vpn: vpn, frame: frame, writable: writable}
		return
	}
	idx := t.victim
	t.victim = (t.victim + 1) % NumTLB
	t.entries[idx] = entry{valid: true, vpn: vpn, frame: frame, writable: writable}
}
